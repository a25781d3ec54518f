package match

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/JalenduP/Chess-it/internal/adapter/gamepresenter"
	"github.com/JalenduP/Chess-it/internal/clock"
	"github.com/JalenduP/Chess-it/internal/domain"
	"github.com/JalenduP/Chess-it/internal/obslog"
	"github.com/JalenduP/Chess-it/pkg/gamedto"
)

// Run drives the periodic sweep until ctx is cancelled. The sweep is the
// only autonomous mutation source: it resolves flag-falls, expires draw
// offers, and aborts waiting games nobody joined. Sweep work takes the
// same per-game locks as client operations, so the two never race.
func (m *Manager) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.SweepOnce(ctx)
		}
	}
}

// SweepOnce runs a single pass over all live games.
func (m *Manager) SweepOnce(ctx context.Context) {
	now := time.Now()

	activeIDs, err := m.store.ActiveIDs(ctx)
	if err != nil {
		obslog.L().Error("sweep_active_list", zap.Error(err))
	}
	for _, id := range activeIDs {
		m.sweepActive(ctx, id, now)
	}

	waitingIDs, err := m.store.WaitingIDs(ctx)
	if err != nil {
		obslog.L().Error("sweep_waiting_list", zap.Error(err))
	}
	for _, id := range waitingIDs {
		m.sweepWaiting(ctx, id, now)
	}
}

func (m *Manager) sweepActive(ctx context.Context, gameID string, now time.Time) {
	unlock := m.locks.lock(gameID)
	evs := m.sweepActiveLocked(ctx, gameID, now)
	unlock()
	m.emit(evs)
}

func (m *Manager) sweepActiveLocked(ctx context.Context, gameID string, now time.Time) []event {
	g, err := m.store.GetGame(ctx, gameID)
	if err != nil {
		obslog.L().Error("sweep_load", zap.String("game_id", gameID), zap.Error(err))
		return nil
	}
	if g == nil || g.Status != domain.StatusActive {
		return nil
	}

	var evs []event

	// An expired offer is an implicit decline: cleared with no result
	// consequence for either side.
	if g.DrawOffer.Expired(now) {
		offerer := g.PlayerID(g.DrawOffer.By)
		g.DrawOffer = nil
		if err := m.store.SaveGame(ctx, g); err != nil {
			obslog.L().Error("sweep_offer_clear", zap.String("game_id", g.ID), zap.Error(err))
			return nil
		}
		obslog.L().Info("draw_offer_expired", zap.String("game_id", g.ID))
		evs = append(evs, userEvent(g.ID, offerer, gamedto.EvDrawDeclined, nil))
	}

	if clock.IsFlagged(g, now) {
		more, err := m.resolveTimeout(ctx, g, now)
		if err != nil {
			obslog.L().Error("sweep_timeout", zap.String("game_id", g.ID), zap.Error(err))
			return evs
		}
		evs = append(evs, more...)
	}
	return evs
}

func (m *Manager) sweepWaiting(ctx context.Context, gameID string, now time.Time) {
	unlock := m.locks.lock(gameID)
	evs := m.sweepWaitingLocked(ctx, gameID, now)
	unlock()
	m.emit(evs)
}

func (m *Manager) sweepWaitingLocked(ctx context.Context, gameID string, now time.Time) []event {
	g, err := m.store.GetGame(ctx, gameID)
	if err != nil {
		obslog.L().Error("sweep_load", zap.String("game_id", gameID), zap.Error(err))
		return nil
	}
	if g == nil || g.Status != domain.StatusWaiting {
		return nil
	}
	if now.Sub(g.CreatedAt) < m.opts.WaitingTTL {
		return nil
	}

	g.Status = domain.StatusAborted
	g.Result = domain.ResultAborted
	g.Reason = domain.ReasonAborted
	g.CompletedAt = now

	if err := m.repo.ArchiveGame(ctx, g); err != nil {
		obslog.L().Error("sweep_abort_archive", zap.String("game_id", g.ID), zap.Error(err))
		return nil
	}
	if err := m.store.SaveGame(ctx, g); err != nil {
		obslog.L().Error("sweep_abort_save", zap.String("game_id", g.ID), zap.Error(err))
		return nil
	}
	obslog.L().Info("match_abort", zap.String("game_id", g.ID), zap.String("white_id", g.WhiteID))
	view := gamepresenter.ToGameView(g, now)
	return []event{roomEvent(g.ID, gamedto.EvGameOver, gamedto.GameOver{Game: view})}
}
