// Package store keeps live game records in Redis. Completed games are
// archived to the relational repository; records here carry a TTL so the
// live store never accumulates.
package store

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/JalenduP/Chess-it/internal/domain"
)

const ttlGame = 24 * time.Hour

type Store struct {
	rdb *redis.Client
}

// New connects to Redis by URL and verifies the connection.
func New(redisURL string) (*Store, error) {
	if strings.TrimSpace(redisURL) == "" {
		return nil, fmt.Errorf("REDIS_URL is required")
	}
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return &Store{rdb: rdb}, nil
}

func (s *Store) Close() error {
	if s == nil || s.rdb == nil {
		return nil
	}
	return s.rdb.Close()
}

func keyGame(id string) string { return "game:" + strings.TrimSpace(id) }

const (
	keyWaiting = "game:waiting"
	keyActive  = "game:active"
)

// SaveGame writes the full game record and keeps the waiting/active
// membership sets in line with its status.
func (s *Store) SaveGame(ctx context.Context, g *domain.Game) error {
	raw, err := json.Marshal(g)
	if err != nil {
		return fmt.Errorf("marshal game: %w", err)
	}
	pipe := s.rdb.TxPipeline()
	pipe.Set(ctx, keyGame(g.ID), raw, ttlGame)
	switch g.Status {
	case domain.StatusWaiting:
		pipe.SAdd(ctx, keyWaiting, g.ID)
	case domain.StatusActive:
		pipe.SRem(ctx, keyWaiting, g.ID)
		pipe.SAdd(ctx, keyActive, g.ID)
	default:
		pipe.SRem(ctx, keyWaiting, g.ID)
		pipe.SRem(ctx, keyActive, g.ID)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("save game %s: %w", g.ID, err)
	}
	return nil
}

// GetGame loads a game by id, returning (nil, nil) when absent or expired.
func (s *Store) GetGame(ctx context.Context, id string) (*domain.Game, error) {
	raw, err := s.rdb.Get(ctx, keyGame(id)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var g domain.Game
	if err := json.Unmarshal(raw, &g); err != nil {
		return nil, fmt.Errorf("unmarshal game %s: %w", id, err)
	}
	return &g, nil
}

// WaitingIDs lists games currently open for pairing.
func (s *Store) WaitingIDs(ctx context.Context) ([]string, error) {
	return s.rdb.SMembers(ctx, keyWaiting).Result()
}

// ActiveIDs lists games subject to the flag-fall and draw-expiry sweeps.
func (s *Store) ActiveIDs(ctx context.Context) ([]string, error) {
	return s.rdb.SMembers(ctx, keyActive).Result()
}

// FindWaiting returns the first waiting game with an identical time control
// whose creator is not playerID, or nil when none is open.
func (s *Store) FindWaiting(ctx context.Context, tc domain.TimeControl, playerID string) (*domain.Game, error) {
	ids, err := s.WaitingIDs(ctx)
	if err != nil {
		return nil, err
	}
	for _, id := range ids {
		g, err := s.GetGame(ctx, id)
		if err != nil {
			return nil, err
		}
		if g == nil {
			// Record expired under its TTL; drop the stale index entry.
			_ = s.rdb.SRem(ctx, keyWaiting, id).Err()
			continue
		}
		if g.Status != domain.StatusWaiting {
			continue
		}
		if g.TimeControl == tc && g.WhiteID != playerID {
			return g, nil
		}
	}
	return nil, nil
}
