// Package elo computes rating settlements for finished games. Settle is a
// pure function; callers apply the returned deltas to persisted records.
package elo

import "math"

// DefaultK is the K-factor used unless the caller opts into dynamic K.
const DefaultK = 32

// Deltas carries the per-side rating adjustments for one game. The two
// values are rounded independently and need not sum to zero.
type Deltas struct {
	White int
	Black int
}

// Settle computes both rating deltas for a game where white scored
// whiteScore (1 win, 0.5 draw, 0 loss) against black.
func Settle(whiteRating, blackRating int, whiteScore float64, k int) Deltas {
	if k <= 0 {
		k = DefaultK
	}
	expWhite := Expected(whiteRating, blackRating)
	expBlack := 1 - expWhite
	blackScore := 1 - whiteScore

	return Deltas{
		White: int(math.Round(float64(k) * (whiteScore - expWhite))),
		Black: int(math.Round(float64(k) * (blackScore - expBlack))),
	}
}

// Expected is the classic ELO expected score for the first rating.
func Expected(rating, opponent int) float64 {
	return 1 / (1 + math.Pow(10, float64(opponent-rating)/400))
}

// KFactor picks a K-factor from rating and experience: provisional players
// move fast, established strong players move slowly.
func KFactor(rating, gamesPlayed int) int {
	switch {
	case gamesPlayed < 30:
		return 40
	case rating >= 2400:
		return 16
	default:
		return 32
	}
}

// SettleDynamic applies per-player K-factors instead of a shared one.
func SettleDynamic(whiteRating, blackRating int, whiteScore float64, whiteGames, blackGames int) Deltas {
	expWhite := Expected(whiteRating, blackRating)
	expBlack := 1 - expWhite
	blackScore := 1 - whiteScore

	wk := KFactor(whiteRating, whiteGames)
	bk := KFactor(blackRating, blackGames)
	return Deltas{
		White: int(math.Round(float64(wk) * (whiteScore - expWhite))),
		Black: int(math.Round(float64(bk) * (blackScore - expBlack))),
	}
}
