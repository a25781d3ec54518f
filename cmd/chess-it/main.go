package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/JalenduP/Chess-it/internal/api"
	"github.com/JalenduP/Chess-it/internal/auth"
	appcfg "github.com/JalenduP/Chess-it/internal/config"
	"github.com/JalenduP/Chess-it/internal/gateway"
	"github.com/JalenduP/Chess-it/internal/match"
	"github.com/JalenduP/Chess-it/internal/msgcat"
	"github.com/JalenduP/Chess-it/internal/obslog"
	"github.com/JalenduP/Chess-it/internal/rules"
	"github.com/JalenduP/Chess-it/internal/store"
)

func main() {
	cfg, err := appcfg.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}
	if err := obslog.InitFromEnv(); err != nil {
		log.Fatalf("logger init error: %v", err)
	}

	cat, err := msgcat.New(cfg.MsgOverrideDir)
	if err != nil {
		log.Fatalf("message catalog error: %v", err)
	}

	st, err := store.New(cfg.RedisURL)
	if err != nil {
		log.Fatalf("redis init error: %v", err)
	}

	// Without a database the server runs on the in-memory repository; game
	// history and ratings do not survive a restart.
	var repo match.Repository
	var pg *match.PostgresRepository
	if cfg.DatabaseURL != "" {
		pg, err = match.NewPostgresRepository(cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("postgres init error: %v", err)
		}
		repo = pg
	} else {
		obslog.L().Warn("no DATABASE_URL, using in-memory repository")
		repo = match.NewMemoryRepository()
	}

	mgr := match.NewManager(st, repo, rules.NewEngine(), match.Options{
		DrawOfferTTL: cfg.DrawOfferTTL,
		WaitingTTL:   cfg.WaitingTTL,
		EloK:         cfg.EloK,
		DynamicK:     cfg.DynamicK,
	})

	authn := auth.New(cfg.JWTSecret)
	gw := gateway.NewServer(mgr, authn, cat)
	rest := api.NewServer(mgr, repo, authn, cat)

	ctx, cancel := context.WithCancel(context.Background())

	go mgr.Run(ctx, cfg.SweepInterval)
	go func() {
		if err := gw.Run(ctx, cfg.WSAddr); err != nil {
			obslog.L().Fatal("gateway server", zap.Error(err))
		}
	}()
	go func() {
		if err := rest.Run(ctx, cfg.HTTPAddr); err != nil {
			obslog.L().Fatal("api server", zap.Error(err))
		}
	}()

	obslog.L().Info("server up",
		zap.String("http_addr", cfg.HTTPAddr),
		zap.String("ws_addr", cfg.WSAddr),
	)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	cancel()
	_ = st.Close()
	if pg != nil {
		_ = pg.Close()
	}
	obslog.L().Info("server down")
}
