// Package match owns the game lifecycle. The Manager is the sole mutator
// of game records: every operation takes the game's lock, validates,
// mutates, persists, and only then broadcasts, so no observer ever sees a
// state that is not durably applied.
package match

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/JalenduP/Chess-it/internal/adapter/gamepresenter"
	"github.com/JalenduP/Chess-it/internal/clock"
	"github.com/JalenduP/Chess-it/internal/domain"
	"github.com/JalenduP/Chess-it/internal/elo"
	"github.com/JalenduP/Chess-it/internal/obslog"
	"github.com/JalenduP/Chess-it/internal/rules"
	"github.com/JalenduP/Chess-it/internal/store"
	"github.com/JalenduP/Chess-it/pkg/gamedto"
)

// Options tune manager behavior. Zero values fall back to defaults.
type Options struct {
	DrawOfferTTL time.Duration // outstanding draw offers expire after this
	WaitingTTL   time.Duration // unpaired waiting games are aborted after this
	EloK         int
	DynamicK     bool // per-player K from rating and experience
}

func (o *Options) withDefaults() {
	if o.DrawOfferTTL <= 0 {
		o.DrawOfferTTL = 30 * time.Second
	}
	if o.WaitingTTL <= 0 {
		o.WaitingTTL = 5 * time.Minute
	}
	if o.EloK <= 0 {
		o.EloK = elo.DefaultK
	}
}

type Manager struct {
	store  *store.Store
	repo   Repository
	engine rules.Engine
	opts   Options
	locks  *lockTable

	// pairMu serializes matchmaking so two seekers cannot claim the same
	// waiting seat.
	pairMu sync.Mutex

	bcMu sync.RWMutex
	bc   Broadcaster
}

func NewManager(st *store.Store, repo Repository, engine rules.Engine, opts Options) *Manager {
	opts.withDefaults()
	return &Manager{
		store:  st,
		repo:   repo,
		engine: engine,
		opts:   opts,
		locks:  newLockTable(),
		bc:     NopBroadcaster{},
	}
}

// AttachBroadcaster wires the session layer in once it is listening.
func (m *Manager) AttachBroadcaster(bc Broadcaster) {
	if bc == nil {
		return
	}
	m.bcMu.Lock()
	m.bc = bc
	m.bcMu.Unlock()
}

// Game loads a game by id, falling back to the archive for records that
// have aged out of the live store.
func (m *Manager) Game(ctx context.Context, id string) (*domain.Game, error) {
	g, err := m.store.GetGame(ctx, id)
	if err != nil {
		return nil, err
	}
	if g != nil {
		return g, nil
	}
	g, err = m.repo.GetGame(ctx, id)
	if err != nil {
		return nil, err
	}
	if g == nil {
		return nil, domain.ErrGameNotFound
	}
	return g, nil
}

// History returns a player's completed games, newest first.
func (m *Manager) History(ctx context.Context, playerID string, page, limit int) ([]*domain.Game, int, error) {
	return m.repo.History(ctx, playerID, page, limit)
}

// MakeMove applies one candidate move for userID. On success the new state
// and the applied move are broadcast to the game room; on a terminal move
// rating settlement happens before anything is observable.
func (m *Manager) MakeMove(ctx context.Context, userID, gameID, from, to, promotion string) (*domain.Game, *domain.Move, error) {
	unlock := m.locks.lock(gameID)
	g, mv, evs, err := m.makeMove(ctx, userID, gameID, from, to, promotion)
	unlock()
	m.emit(evs)
	return g, mv, err
}

func (m *Manager) makeMove(ctx context.Context, userID, gameID, from, to, promotion string) (*domain.Game, *domain.Move, []event, error) {
	g, err := m.liveGame(ctx, gameID)
	if err != nil {
		return nil, nil, nil, err
	}
	mover := g.PlayerColor(userID)
	if mover == "" {
		return nil, nil, nil, domain.ErrNotAuthorized
	}
	if g.Status != domain.StatusActive {
		return nil, nil, nil, domain.ErrInvalidGameState
	}
	if mover != g.Turn {
		return nil, nil, nil, domain.ErrNotYourTurn
	}

	now := time.Now()
	if clock.IsFlagged(g, now) {
		// The sweep should have caught this; resolve the timeout instead of
		// the requested move.
		evs, ferr := m.resolveTimeout(ctx, g, now)
		if ferr != nil {
			return nil, nil, nil, ferr
		}
		return nil, nil, evs, domain.ErrGameFlagged
	}

	from = strings.ToLower(strings.TrimSpace(from))
	to = strings.ToLower(strings.TrimSpace(to))
	promotion = strings.ToLower(strings.TrimSpace(promotion))

	v, err := m.engine.Apply(g.MoveUCIs(), from, to, promotion)
	if err != nil {
		return nil, nil, nil, err
	}

	// Each side's first move carries no elapsed charge: before it there is
	// no clock-start reference that reflects real play. Increment applies
	// regardless.
	lastRef := g.LastMoveTime
	if len(g.Moves) < 2 {
		lastRef = time.Time{}
	}
	remaining := clock.ApplyElapsed(clock.Stored(g, mover), g.TimeControl.Increment, lastRef, now)
	if mover == domain.White {
		g.WhiteTimeMs = remaining
	} else {
		g.BlackTimeMs = remaining
	}

	var promo string
	if len(v.UCI) > 4 {
		promo = v.UCI[4:]
	}
	mv := domain.Move{From: from, To: to, SAN: v.SAN, Promotion: promo, Timestamp: now}
	g.Moves = append(g.Moves, mv)
	g.FEN = v.FEN
	g.Turn = v.Turn
	g.LastMoveTime = now
	g.DrawOffer = nil

	if v.Terminal {
		if err := m.complete(ctx, g, v.Result, v.Reason, now); err != nil {
			return nil, nil, nil, err
		}
	} else if err := m.store.SaveGame(ctx, g); err != nil {
		return nil, nil, nil, err
	}

	obslog.L().Info("game_move",
		zap.String("game_id", g.ID),
		zap.String("user_id", userID),
		zap.String("san", mv.SAN),
		zap.String("turn", string(g.Turn)),
		zap.String("status", string(g.Status)),
	)

	view := gamepresenter.ToGameView(g, now)
	evs := []event{roomEvent(g.ID, gamedto.EvMoveMade, gamedto.MoveMade{Game: view, Move: gamepresenter.ToMoveView(mv)})}
	if g.Terminal() {
		evs = append(evs, roomEvent(g.ID, gamedto.EvGameOver, gamedto.GameOver{Game: view}))
	}
	return g, &mv, evs, nil
}

// OfferDraw records an outstanding offer and notifies the opponent. A
// repeat offer from the same side just refreshes the expiry.
func (m *Manager) OfferDraw(ctx context.Context, userID, gameID string) (*domain.Game, error) {
	unlock := m.locks.lock(gameID)
	g, evs, err := m.offerDraw(ctx, userID, gameID)
	unlock()
	m.emit(evs)
	return g, err
}

func (m *Manager) offerDraw(ctx context.Context, userID, gameID string) (*domain.Game, []event, error) {
	g, err := m.liveGame(ctx, gameID)
	if err != nil {
		return nil, nil, err
	}
	color := g.PlayerColor(userID)
	if color == "" {
		return nil, nil, domain.ErrNotAuthorized
	}
	if g.Status != domain.StatusActive {
		return nil, nil, domain.ErrInvalidGameState
	}

	now := time.Now()
	g.DrawOffer = &domain.DrawOffer{By: color, CreatedAt: now, ExpiresAt: now.Add(m.opts.DrawOfferTTL)}
	if err := m.store.SaveGame(ctx, g); err != nil {
		return nil, nil, err
	}

	obslog.L().Info("draw_offer",
		zap.String("game_id", g.ID),
		zap.String("by", string(color)),
	)
	name := g.WhiteName
	if color == domain.Black {
		name = g.BlackName
	}
	evs := []event{
		roomExceptEvent(g.ID, userID, gamedto.EvDrawOffered, gamedto.DrawOffered{By: name, ExpiresAt: g.DrawOffer.ExpiresAt}),
		userEvent(g.ID, userID, gamedto.EvDrawOfferSent, nil),
	}
	return g, evs, nil
}

// RespondDraw accepts or declines the outstanding offer. A side cannot
// respond to its own offer.
func (m *Manager) RespondDraw(ctx context.Context, userID, gameID string, accept bool) (*domain.Game, error) {
	unlock := m.locks.lock(gameID)
	g, evs, err := m.respondDraw(ctx, userID, gameID, accept)
	unlock()
	m.emit(evs)
	return g, err
}

func (m *Manager) respondDraw(ctx context.Context, userID, gameID string, accept bool) (*domain.Game, []event, error) {
	g, err := m.liveGame(ctx, gameID)
	if err != nil {
		return nil, nil, err
	}
	color := g.PlayerColor(userID)
	if color == "" {
		return nil, nil, domain.ErrNotAuthorized
	}
	if g.Status != domain.StatusActive {
		return nil, nil, domain.ErrInvalidGameState
	}

	now := time.Now()
	if g.DrawOffer == nil || g.DrawOffer.Expired(now) {
		return nil, nil, domain.ErrNoActiveOffer
	}
	if g.DrawOffer.By == color {
		return nil, nil, domain.ErrNotAuthorized
	}

	if !accept {
		offerer := g.PlayerID(g.DrawOffer.By)
		g.DrawOffer = nil
		if err := m.store.SaveGame(ctx, g); err != nil {
			return nil, nil, err
		}
		obslog.L().Info("draw_declined", zap.String("game_id", g.ID), zap.String("by", userID))
		return g, []event{userEvent(g.ID, offerer, gamedto.EvDrawDeclined, nil)}, nil
	}

	g.DrawOffer = nil
	if err := m.complete(ctx, g, domain.ResultDraw, domain.ReasonAgreement, now); err != nil {
		return nil, nil, err
	}
	view := gamepresenter.ToGameView(g, now)
	return g, []event{roomEvent(g.ID, gamedto.EvGameOver, gamedto.GameOver{Game: view})}, nil
}

// Resign forfeits the game immediately; the opponent wins.
func (m *Manager) Resign(ctx context.Context, userID, gameID string) (*domain.Game, error) {
	unlock := m.locks.lock(gameID)
	g, evs, err := m.resign(ctx, userID, gameID)
	unlock()
	m.emit(evs)
	return g, err
}

func (m *Manager) resign(ctx context.Context, userID, gameID string) (*domain.Game, []event, error) {
	g, err := m.liveGame(ctx, gameID)
	if err != nil {
		return nil, nil, err
	}
	color := g.PlayerColor(userID)
	if color == "" {
		return nil, nil, domain.ErrNotAuthorized
	}
	if g.Status != domain.StatusActive {
		return nil, nil, domain.ErrInvalidGameState
	}

	now := time.Now()
	if err := m.complete(ctx, g, domain.WinnerResult(color.Opponent()), domain.ReasonResignation, now); err != nil {
		return nil, nil, err
	}
	obslog.L().Info("game_resign",
		zap.String("game_id", g.ID),
		zap.String("resigner", userID),
		zap.String("result", string(g.Result)),
	)
	view := gamepresenter.ToGameView(g, now)
	return g, []event{roomEvent(g.ID, gamedto.EvGameOver, gamedto.GameOver{Game: view})}, nil
}

// Timeout resolves a flag-fall for the side to move. System-triggered only
// and idempotent: terminal games and unexpired clocks are no-ops.
func (m *Manager) Timeout(ctx context.Context, gameID string) error {
	unlock := m.locks.lock(gameID)
	evs, err := m.timeout(ctx, gameID)
	unlock()
	m.emit(evs)
	return err
}

func (m *Manager) timeout(ctx context.Context, gameID string) ([]event, error) {
	g, err := m.store.GetGame(ctx, gameID)
	if err != nil {
		return nil, err
	}
	if g == nil || g.Status != domain.StatusActive {
		return nil, nil
	}
	now := time.Now()
	if !clock.IsFlagged(g, now) {
		return nil, nil
	}
	return m.resolveTimeout(ctx, g, now)
}

// resolveTimeout completes a flagged game. Caller holds the game lock and
// has verified the flag.
func (m *Manager) resolveTimeout(ctx context.Context, g *domain.Game, now time.Time) ([]event, error) {
	flagged := g.Turn
	if flagged == domain.White {
		g.WhiteTimeMs = 0
	} else {
		g.BlackTimeMs = 0
	}
	if err := m.complete(ctx, g, domain.WinnerResult(flagged.Opponent()), domain.ReasonTimeout, now); err != nil {
		return nil, err
	}
	obslog.L().Info("game_timeout",
		zap.String("game_id", g.ID),
		zap.String("flagged", string(flagged)),
	)
	view := gamepresenter.ToGameView(g, now)
	return []event{roomEvent(g.ID, gamedto.EvGameOver, gamedto.GameOver{Game: view})}, nil
}

// complete performs the terminal transition: result, rating settlement,
// PGN, archive, then the live-store write. Any failure aborts the whole
// transition before it becomes observable.
func (m *Manager) complete(ctx context.Context, g *domain.Game, result domain.Result, reason domain.Reason, now time.Time) error {
	// A failed live-store write after the archive commit leaves a settled
	// game looking active. Reuse the archived record instead of settling
	// the players a second time.
	archived, err := m.repo.GetGame(ctx, g.ID)
	if err != nil {
		return fmt.Errorf("check archive for %s: %w", g.ID, err)
	}
	if archived != nil && archived.Terminal() {
		*g = *archived
		if err := m.store.SaveGame(ctx, g); err != nil {
			return fmt.Errorf("save completed game %s: %w", g.ID, err)
		}
		obslog.L().Warn("game_settle_repair",
			zap.String("game_id", g.ID),
			zap.String("result", string(g.Result)),
		)
		return nil
	}

	g.Status = domain.StatusCompleted
	g.Result = result
	g.Reason = reason
	g.CompletedAt = now

	white, err := m.repo.GetUser(ctx, g.WhiteID)
	if err != nil {
		return fmt.Errorf("load white player: %w", err)
	}
	black, err := m.repo.GetUser(ctx, g.BlackID)
	if err != nil {
		return fmt.Errorf("load black player: %w", err)
	}

	var whiteScore float64
	switch result {
	case domain.ResultWhiteWins:
		whiteScore = 1
	case domain.ResultDraw:
		whiteScore = 0.5
	}

	var d elo.Deltas
	if m.opts.DynamicK {
		d = elo.SettleDynamic(white.Rating, black.Rating, whiteScore, white.GamesPlayed, black.GamesPlayed)
	} else {
		d = elo.Settle(white.Rating, black.Rating, whiteScore, m.opts.EloK)
	}
	g.WhiteRatingChange = d.White
	g.BlackRatingChange = d.Black

	white.Rating += d.White
	black.Rating += d.Black
	white.GamesPlayed++
	black.GamesPlayed++
	switch result {
	case domain.ResultWhiteWins:
		white.Wins++
		black.Losses++
	case domain.ResultBlackWins:
		black.Wins++
		white.Losses++
	default:
		white.Draws++
		black.Draws++
	}

	g.PGN = buildPGN(g)

	if err := m.repo.SettleGame(ctx, g, white, black); err != nil {
		return fmt.Errorf("settle game %s: %w", g.ID, err)
	}
	if err := m.store.SaveGame(ctx, g); err != nil {
		return fmt.Errorf("save completed game %s: %w", g.ID, err)
	}

	obslog.L().Info("game_over",
		zap.String("game_id", g.ID),
		zap.String("result", string(result)),
		zap.String("reason", string(reason)),
		zap.Int("white_delta", d.White),
		zap.Int("black_delta", d.Black),
	)
	return nil
}

func (m *Manager) liveGame(ctx context.Context, gameID string) (*domain.Game, error) {
	g, err := m.store.GetGame(ctx, gameID)
	if err != nil {
		return nil, err
	}
	if g == nil {
		return nil, domain.ErrGameNotFound
	}
	return g, nil
}
