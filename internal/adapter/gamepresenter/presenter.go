// Package gamepresenter converts domain records into the wire views of
// pkg/gamedto, which stays free of internal imports.
package gamepresenter

import (
	"time"

	"github.com/JalenduP/Chess-it/internal/clock"
	"github.com/JalenduP/Chess-it/internal/domain"
	"github.com/JalenduP/Chess-it/pkg/gamedto"
)

// ToGameView renders a domain game for clients as observed at now. Clock
// fields are computed here so every observer sees consistent remaining
// times.
func ToGameView(g *domain.Game, now time.Time) *gamedto.GameView {
	v := &gamedto.GameView{
		ID: g.ID,
		White: &gamedto.PlayerView{
			ID:       g.WhiteID,
			Username: g.WhiteName,
			Rating:   g.WhiteRatingBefore,
		},
		TimeControl: gamedto.TimeControlView{Minutes: g.TimeControl.Minutes, Increment: g.TimeControl.Increment},
		FEN:         g.FEN,
		Moves:       make([]gamedto.MoveView, 0, len(g.Moves)),
		Turn:        string(g.Turn),
		Status:      string(g.Status),
		Result:      string(g.Result),
		Reason:      string(g.Reason),
		WhiteTimeMs: clock.RemainingAt(g, domain.White, now),
		BlackTimeMs: clock.RemainingAt(g, domain.Black, now),

		WhiteRatingChange: g.WhiteRatingChange,
		BlackRatingChange: g.BlackRatingChange,
		PGN:               g.PGN,
		CreatedAt:         g.CreatedAt,
	}
	if g.BlackID != "" {
		v.Black = &gamedto.PlayerView{
			ID:       g.BlackID,
			Username: g.BlackName,
			Rating:   g.BlackRatingBefore,
		}
	}
	for _, m := range g.Moves {
		v.Moves = append(v.Moves, ToMoveView(m))
	}
	if g.DrawOffer != nil {
		v.DrawOffer = &gamedto.DrawOfferView{By: string(g.DrawOffer.By), ExpiresAt: g.DrawOffer.ExpiresAt}
	}
	if !g.StartedAt.IsZero() {
		t := g.StartedAt
		v.StartedAt = &t
	}
	if !g.CompletedAt.IsZero() {
		t := g.CompletedAt
		v.CompletedAt = &t
	}
	return v
}

// ToMoveView renders a single applied move.
func ToMoveView(m domain.Move) gamedto.MoveView {
	return gamedto.MoveView{From: m.From, To: m.To, SAN: m.SAN, Promotion: m.Promotion, Timestamp: m.Timestamp}
}
