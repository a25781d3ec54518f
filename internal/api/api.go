// Package api is the REST surface: matchmaking, game lookup, history, and
// resignation for clients without a live socket.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/JalenduP/Chess-it/internal/adapter/gamepresenter"
	"github.com/JalenduP/Chess-it/internal/auth"
	"github.com/JalenduP/Chess-it/internal/domain"
	"github.com/JalenduP/Chess-it/internal/match"
	"github.com/JalenduP/Chess-it/internal/msgcat"
	"github.com/JalenduP/Chess-it/internal/obslog"
	"github.com/JalenduP/Chess-it/pkg/gamedto"
)

type Server struct {
	mgr   *match.Manager
	repo  match.Repository
	authn *auth.Authenticator
	cat   *msgcat.Catalog
}

func NewServer(mgr *match.Manager, repo match.Repository, authn *auth.Authenticator, cat *msgcat.Catalog) *Server {
	return &Server{mgr: mgr, repo: repo, authn: authn, cat: cat}
}

// Run serves the REST API until ctx is cancelled.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &fasthttp.Server{
		Handler:      s.Handle,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		Name:         "chess-it",
	}
	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe(addr) }()
	select {
	case <-ctx.Done():
		_ = srv.Shutdown()
		return nil
	case err := <-errCh:
		return err
	}
}

type createGameRequest struct {
	TimeControl domain.TimeControl `json:"timeControl"`
}

// Handle routes one request. The surface is small enough that a path
// switch beats pulling in a router.
func (s *Server) Handle(ctx *fasthttp.RequestCtx) {
	path := string(ctx.Path())
	method := string(ctx.Method())

	identity, err := s.authenticate(ctx)
	if err != nil {
		s.fail(ctx, fasthttp.StatusUnauthorized, "error.not_authorized")
		return
	}

	switch {
	case path == "/api/games" && method == fasthttp.MethodPost:
		s.createGame(ctx, identity)
	case path == "/api/games/history" && method == fasthttp.MethodGet:
		s.history(ctx, identity)
	case strings.HasPrefix(path, "/api/games/") && strings.HasSuffix(path, "/resign") && method == fasthttp.MethodPost:
		id := strings.TrimSuffix(strings.TrimPrefix(path, "/api/games/"), "/resign")
		s.resign(ctx, identity, id)
	case strings.HasPrefix(path, "/api/games/") && method == fasthttp.MethodGet:
		s.getGame(ctx, identity, strings.TrimPrefix(path, "/api/games/"))
	default:
		s.fail(ctx, fasthttp.StatusNotFound, "error.game_not_found")
	}
}

func (s *Server) authenticate(ctx *fasthttp.RequestCtx) (*auth.Identity, error) {
	header := string(ctx.Request.Header.Peek("Authorization"))
	token := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	return s.authn.Verify(token)
}

func (s *Server) createGame(ctx *fasthttp.RequestCtx, id *auth.Identity) {
	var req createGameRequest
	if err := json.Unmarshal(ctx.PostBody(), &req); err != nil {
		s.fail(ctx, fasthttp.StatusBadRequest, "error.bad_request")
		return
	}
	user, err := s.repo.GetUser(ctx, id.ID)
	if err != nil {
		s.failErr(ctx, err)
		return
	}
	g, err := s.mgr.RequestGame(ctx, user, req.TimeControl)
	if err != nil {
		s.failErr(ctx, err)
		return
	}
	status := fasthttp.StatusCreated
	if g.Status == domain.StatusActive {
		status = fasthttp.StatusOK
	}
	s.ok(ctx, status, map[string]any{"game": gamepresenter.ToGameView(g, time.Now())})
}

// getGame is restricted to the two participants; spectating happens over
// the socket.
func (s *Server) getGame(ctx *fasthttp.RequestCtx, id *auth.Identity, gameID string) {
	g, err := s.mgr.Game(ctx, gameID)
	if err != nil {
		s.failErr(ctx, err)
		return
	}
	if !g.IsParticipant(id.ID) {
		s.fail(ctx, fasthttp.StatusForbidden, "error.not_authorized")
		return
	}
	s.ok(ctx, fasthttp.StatusOK, map[string]any{"game": gamepresenter.ToGameView(g, time.Now())})
}

func (s *Server) history(ctx *fasthttp.RequestCtx, id *auth.Identity) {
	page, _ := strconv.Atoi(string(ctx.QueryArgs().Peek("page")))
	limit, _ := strconv.Atoi(string(ctx.QueryArgs().Peek("limit")))
	games, total, err := s.mgr.History(ctx, id.ID, page, limit)
	if err != nil {
		s.failErr(ctx, err)
		return
	}
	now := time.Now()
	views := make([]*gamedto.GameView, 0, len(games))
	for _, g := range games {
		views = append(views, gamepresenter.ToGameView(g, now))
	}
	s.ok(ctx, fasthttp.StatusOK, map[string]any{"games": views, "total": total})
}

func (s *Server) resign(ctx *fasthttp.RequestCtx, id *auth.Identity, gameID string) {
	g, err := s.mgr.Resign(ctx, id.ID, gameID)
	if err != nil {
		s.failErr(ctx, err)
		return
	}
	s.ok(ctx, fasthttp.StatusOK, map[string]any{"game": gamepresenter.ToGameView(g, time.Now())})
}

func (s *Server) ok(ctx *fasthttp.RequestCtx, status int, fields map[string]any) {
	body := map[string]any{"success": true}
	for k, v := range fields {
		body[k] = v
	}
	writeJSON(ctx, status, body)
}

func (s *Server) failErr(ctx *fasthttp.RequestCtx, err error) {
	status := fasthttp.StatusInternalServerError
	switch {
	case errors.Is(err, domain.ErrGameNotFound), errors.Is(err, domain.ErrUserNotFound):
		status = fasthttp.StatusNotFound
	case errors.Is(err, domain.ErrNotAuthorized):
		status = fasthttp.StatusForbidden
	case errors.Is(err, domain.ErrInvalidTimeControl):
		status = fasthttp.StatusBadRequest
	case errors.Is(err, domain.ErrInvalidGameState),
		errors.Is(err, domain.ErrNotYourTurn),
		errors.Is(err, domain.ErrIllegalMove),
		errors.Is(err, domain.ErrNoActiveOffer),
		errors.Is(err, domain.ErrGameFlagged):
		status = fasthttp.StatusConflict
	}
	if status == fasthttp.StatusInternalServerError {
		obslog.L().Error("api_internal", zap.Error(err))
	}
	s.fail(ctx, status, errorKey(err))
}

func (s *Server) fail(ctx *fasthttp.RequestCtx, status int, key string) {
	msg := s.cat.RenderOr(key, "Something went wrong. Please try again.", nil)
	writeJSON(ctx, status, map[string]any{"success": false, "message": msg})
}

func writeJSON(ctx *fasthttp.RequestCtx, status int, body any) {
	ctx.SetStatusCode(status)
	ctx.SetContentType("application/json; charset=utf-8")
	raw, err := json.Marshal(body)
	if err != nil {
		ctx.SetStatusCode(fasthttp.StatusInternalServerError)
		return
	}
	ctx.SetBody(raw)
}

func errorKey(err error) string {
	switch {
	case errors.Is(err, domain.ErrGameNotFound):
		return "error.game_not_found"
	case errors.Is(err, domain.ErrUserNotFound):
		return "error.user_not_found"
	case errors.Is(err, domain.ErrNotAuthorized):
		return "error.not_authorized"
	case errors.Is(err, domain.ErrInvalidGameState):
		return "error.invalid_game_state"
	case errors.Is(err, domain.ErrNotYourTurn):
		return "error.not_your_turn"
	case errors.Is(err, domain.ErrIllegalMove):
		return "error.illegal_move"
	case errors.Is(err, domain.ErrNoActiveOffer):
		return "error.no_active_offer"
	case errors.Is(err, domain.ErrGameFlagged):
		return "error.game_flagged"
	case errors.Is(err, domain.ErrInvalidTimeControl):
		return "error.invalid_time_control"
	default:
		return "error.internal"
	}
}
