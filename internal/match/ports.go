package match

import (
	"context"

	"github.com/JalenduP/Chess-it/internal/domain"
)

// Repository is the durable record store consumed by the match manager.
// User records are owned externally; the manager reads ratings at game
// start and settles them exactly once at completion.
type Repository interface {
	GetUser(ctx context.Context, id string) (*domain.User, error)

	// SettleGame archives a completed game together with both updated user
	// records in a single transaction.
	SettleGame(ctx context.Context, g *domain.Game, white, black *domain.User) error

	// ArchiveGame stores a terminal game that carries no rating settlement
	// (aborted games).
	ArchiveGame(ctx context.Context, g *domain.Game) error

	GetGame(ctx context.Context, id string) (*domain.Game, error)

	// History returns a player's completed games, newest first, plus the
	// total count for pagination.
	History(ctx context.Context, playerID string, page, limit int) ([]*domain.Game, int, error)
}

// Broadcaster delivers room-scoped events. The session layer implements
// it; the manager never talks to connections directly.
type Broadcaster interface {
	ToRoom(gameID, event string, payload any)
	ToRoomExcept(gameID, exceptUserID, event string, payload any)
	ToUser(gameID, userID, event string, payload any)
}

// NopBroadcaster discards all events. Used until a session layer attaches
// and in tests that only assert state.
type NopBroadcaster struct{}

func (NopBroadcaster) ToRoom(string, string, any)               {}
func (NopBroadcaster) ToRoomExcept(string, string, string, any) {}
func (NopBroadcaster) ToUser(string, string, string, any)       {}
