// Package clock holds the time-control arithmetic for game clocks.
// Remaining times are stored in milliseconds on the game record; wall-clock
// passage is only charged to the side currently on move.
package clock

import (
	"time"

	"github.com/JalenduP/Chess-it/internal/domain"
)

// ApplyElapsed charges the mover for the time spent since lastMoveTime and
// credits the increment. A zero lastMoveTime means no clock-start reference
// exists yet, in which case no time is charged but the increment still
// applies.
func ApplyElapsed(remainingMs int64, incrementSec int, lastMoveTime, now time.Time) int64 {
	var elapsed int64
	if !lastMoveTime.IsZero() {
		elapsed = now.Sub(lastMoveTime).Milliseconds()
		if elapsed < 0 {
			elapsed = 0
		}
	}
	remaining := remainingMs - elapsed + int64(incrementSec)*1000
	if remaining < 0 {
		return 0
	}
	return remaining
}

// Stored returns the persisted remaining time for a color, untouched by
// wall-clock passage.
func Stored(g *domain.Game, c domain.Color) int64 {
	if c == domain.White {
		return g.WhiteTimeMs
	}
	return g.BlackTimeMs
}

// RemainingAt computes a color's remaining time as observed at now. Only
// the side on move of an active game bleeds time; everyone else sees the
// stored value.
func RemainingAt(g *domain.Game, c domain.Color, now time.Time) int64 {
	stored := Stored(g, c)
	if g.Status != domain.StatusActive || c != g.Turn || g.LastMoveTime.IsZero() {
		return stored
	}
	elapsed := now.Sub(g.LastMoveTime).Milliseconds()
	if elapsed <= 0 {
		return stored
	}
	remaining := stored - elapsed
	if remaining < 0 {
		return 0
	}
	return remaining
}

// IsFlagged reports whether the side to move has run out of time.
func IsFlagged(g *domain.Game, now time.Time) bool {
	if g.Status != domain.StatusActive {
		return false
	}
	return RemainingAt(g, g.Turn, now) <= 0
}
