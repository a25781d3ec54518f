package match

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/JalenduP/Chess-it/internal/domain"
	"github.com/JalenduP/Chess-it/internal/obslog"
)

// RequestGame pairs the seeker with an open waiting game of identical time
// control, or opens a new waiting seat with the seeker bound to white.
// First matching waiting game wins; there is no rating-band matching.
func (m *Manager) RequestGame(ctx context.Context, seeker *domain.User, tc domain.TimeControl) (*domain.Game, error) {
	if seeker == nil || seeker.ID == "" {
		return nil, domain.ErrUserNotFound
	}
	if err := tc.Validate(); err != nil {
		return nil, err
	}

	m.pairMu.Lock()
	defer m.pairMu.Unlock()

	candidate, err := m.store.FindWaiting(ctx, tc, seeker.ID)
	if err != nil {
		return nil, err
	}
	if candidate != nil {
		unlock := m.locks.lock(candidate.ID)
		g, err := m.joinWaiting(ctx, candidate.ID, seeker)
		unlock()
		if err != nil {
			return nil, err
		}
		if g != nil {
			return g, nil
		}
		// The candidate was aborted under its own lock; fall through and
		// open a fresh seat.
	}

	now := time.Now()
	g := &domain.Game{
		ID:                uuid.NewString(),
		WhiteID:           seeker.ID,
		WhiteName:         seeker.Username,
		TimeControl:       tc,
		FEN:               domain.StartFEN,
		Turn:              domain.White,
		Status:            domain.StatusWaiting,
		WhiteTimeMs:       tc.BaseMs(),
		BlackTimeMs:       tc.BaseMs(),
		WhiteRatingBefore: seeker.Rating,
		CreatedAt:         now,
	}
	if err := m.store.SaveGame(ctx, g); err != nil {
		return nil, err
	}
	obslog.L().Info("match_create",
		zap.String("game_id", g.ID),
		zap.String("white_id", g.WhiteID),
		zap.String("time_control", tc.String()),
	)
	return g, nil
}

// joinWaiting binds the seeker as black and activates the game. Returns
// (nil, nil) when the seat disappeared between lookup and lock.
func (m *Manager) joinWaiting(ctx context.Context, gameID string, seeker *domain.User) (*domain.Game, error) {
	g, err := m.store.GetGame(ctx, gameID)
	if err != nil {
		return nil, err
	}
	if g == nil || g.Status != domain.StatusWaiting || g.WhiteID == seeker.ID {
		return nil, nil
	}

	now := time.Now()
	g.BlackID = seeker.ID
	g.BlackName = seeker.Username
	g.BlackRatingBefore = seeker.Rating
	g.Status = domain.StatusActive
	g.StartedAt = now
	g.LastMoveTime = now
	g.WhiteTimeMs = g.TimeControl.BaseMs()
	g.BlackTimeMs = g.TimeControl.BaseMs()

	if err := m.store.SaveGame(ctx, g); err != nil {
		return nil, err
	}
	obslog.L().Info("match_start",
		zap.String("game_id", g.ID),
		zap.String("white_id", g.WhiteID),
		zap.String("black_id", g.BlackID),
		zap.String("time_control", g.TimeControl.String()),
	)
	return g, nil
}
