package match

import (
	"context"
	"sort"
	"sync"

	"github.com/JalenduP/Chess-it/internal/domain"
)

// memrepo is an in-memory Repository used when no DATABASE_URL is
// configured and by tests.
type memrepo struct {
	mu    sync.RWMutex
	users map[string]*domain.User
	games map[string]*domain.Game
}

func NewMemoryRepository() *memrepo {
	return &memrepo{
		users: make(map[string]*domain.User),
		games: make(map[string]*domain.Game),
	}
}

// SeedUser inserts or replaces a user record.
func (m *memrepo) SeedUser(u *domain.User) {
	if u == nil {
		return
	}
	m.mu.Lock()
	cp := *u
	m.users[u.ID] = &cp
	m.mu.Unlock()
}

func (m *memrepo) GetUser(ctx context.Context, id string) (*domain.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.users[id]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	cp := *u
	return &cp, nil
}

func (m *memrepo) SettleGame(ctx context.Context, g *domain.Game, white, black *domain.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	gc := *g
	m.games[g.ID] = &gc
	wc, bc := *white, *black
	m.users[white.ID] = &wc
	m.users[black.ID] = &bc
	return nil
}

func (m *memrepo) ArchiveGame(ctx context.Context, g *domain.Game) error {
	m.mu.Lock()
	gc := *g
	m.games[g.ID] = &gc
	m.mu.Unlock()
	return nil
}

func (m *memrepo) GetGame(ctx context.Context, id string) (*domain.Game, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	g, ok := m.games[id]
	if !ok {
		return nil, nil
	}
	gc := *g
	return &gc, nil
}

func (m *memrepo) History(ctx context.Context, playerID string, page, limit int) ([]*domain.Game, int, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}
	m.mu.RLock()
	var all []*domain.Game
	for _, g := range m.games {
		if g.Status != domain.StatusCompleted {
			continue
		}
		if g.WhiteID == playerID || g.BlackID == playerID {
			gc := *g
			all = append(all, &gc)
		}
	}
	m.mu.RUnlock()

	sort.Slice(all, func(i, j int) bool { return all[i].CompletedAt.After(all[j].CompletedAt) })
	total := len(all)
	start := (page - 1) * limit
	if start >= total {
		return []*domain.Game{}, total, nil
	}
	end := start + limit
	if end > total {
		end = total
	}
	return all[start:end], total, nil
}
