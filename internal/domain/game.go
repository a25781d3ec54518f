package domain

import (
	"fmt"
	"time"
)

// Color identifies a chess side.
type Color string

const (
	White Color = "white"
	Black Color = "black"
)

// Opponent returns the other side.
func (c Color) Opponent() Color {
	if c == White {
		return Black
	}
	return White
}

// Status represents a game lifecycle state. Transitions are forward-only:
// waiting -> active -> completed | aborted.
type Status string

const (
	StatusWaiting   Status = "waiting"
	StatusActive    Status = "active"
	StatusCompleted Status = "completed"
	StatusAborted   Status = "aborted"
)

// Result is the terminal outcome of a game, empty while the game runs.
type Result string

const (
	ResultWhiteWins Result = "white_wins"
	ResultBlackWins Result = "black_wins"
	ResultDraw      Result = "draw"
	ResultAborted   Result = "aborted"
)

// WinnerResult maps a winning color to its result token.
func WinnerResult(c Color) Result {
	if c == White {
		return ResultWhiteWins
	}
	return ResultBlackWins
}

// Reason explains how a result came about.
type Reason string

const (
	ReasonCheckmate            Reason = "checkmate"
	ReasonResignation          Reason = "resignation"
	ReasonTimeout              Reason = "timeout"
	ReasonAgreement            Reason = "agreement"
	ReasonStalemate            Reason = "stalemate"
	ReasonInsufficientMaterial Reason = "insufficient_material"
	ReasonThreefoldRepetition  Reason = "threefold_repetition"
	ReasonFiftyMoveRule        Reason = "fifty_move_rule"
	ReasonAborted              Reason = "aborted"
)

// TimeControl is fixed at game creation and immutable afterwards.
type TimeControl struct {
	Minutes   int `json:"minutes"`
	Increment int `json:"increment"` // seconds added per completed move
}

func (tc TimeControl) Validate() error {
	if tc.Minutes <= 0 || tc.Increment < 0 {
		return ErrInvalidTimeControl
	}
	return nil
}

// BaseMs is the starting clock value per side.
func (tc TimeControl) BaseMs() int64 {
	return int64(tc.Minutes) * 60 * 1000
}

func (tc TimeControl) String() string {
	return fmt.Sprintf("%d+%d", tc.Minutes, tc.Increment)
}

// Move is one applied half-move in the append-only log.
type Move struct {
	From      string    `json:"from"`
	To        string    `json:"to"`
	SAN       string    `json:"san"`
	Promotion string    `json:"promotion,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// UCI renders the move in coordinate notation, promotion suffix included.
func (m Move) UCI() string {
	return m.From + m.To + m.Promotion
}

// DrawOffer is the at-most-one outstanding offer on a game.
type DrawOffer struct {
	By        Color     `json:"by"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

func (o *DrawOffer) Expired(now time.Time) bool {
	return o != nil && now.After(o.ExpiresAt)
}

// Game is the central record, exclusively mutated by the match manager.
type Game struct {
	ID string `json:"id"`

	WhiteID   string `json:"white_id"`
	WhiteName string `json:"white_name"`
	BlackID   string `json:"black_id,omitempty"`
	BlackName string `json:"black_name,omitempty"`

	TimeControl TimeControl `json:"time_control"`

	FEN   string `json:"fen"`
	Moves []Move `json:"moves"`
	Turn  Color  `json:"turn"`

	Status Status `json:"status"`
	Result Result `json:"result,omitempty"`
	Reason Reason `json:"reason,omitempty"`

	WhiteTimeMs  int64     `json:"white_time_ms"`
	BlackTimeMs  int64     `json:"black_time_ms"`
	LastMoveTime time.Time `json:"last_move_time"`

	DrawOffer *DrawOffer `json:"draw_offer,omitempty"`

	WhiteRatingBefore int `json:"white_rating_before"`
	BlackRatingBefore int `json:"black_rating_before"`
	WhiteRatingChange int `json:"white_rating_change"`
	BlackRatingChange int `json:"black_rating_change"`

	PGN string `json:"pgn,omitempty"`

	CreatedAt   time.Time `json:"created_at"`
	StartedAt   time.Time `json:"started_at,omitempty"`
	CompletedAt time.Time `json:"completed_at,omitempty"`
}

// StartFEN is the standard initial position.
const StartFEN = "rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq - 0 1"

// PlayerColor returns the color bound to userID, or "" for non-participants.
func (g *Game) PlayerColor(userID string) Color {
	switch {
	case userID != "" && userID == g.WhiteID:
		return White
	case userID != "" && userID == g.BlackID:
		return Black
	default:
		return ""
	}
}

// IsParticipant reports whether userID is one of the two bound players.
func (g *Game) IsParticipant(userID string) bool {
	return g.PlayerColor(userID) != ""
}

// OpponentID returns the other participant's id.
func (g *Game) OpponentID(userID string) string {
	switch userID {
	case g.WhiteID:
		return g.BlackID
	case g.BlackID:
		return g.WhiteID
	default:
		return ""
	}
}

// PlayerID returns the id bound to a color.
func (g *Game) PlayerID(c Color) string {
	if c == White {
		return g.WhiteID
	}
	return g.BlackID
}

// Terminal reports whether the game reached a final state.
func (g *Game) Terminal() bool {
	return g.Status == StatusCompleted || g.Status == StatusAborted
}

// MoveUCIs returns the move log in coordinate notation, oldest first.
func (g *Game) MoveUCIs() []string {
	out := make([]string, len(g.Moves))
	for i, m := range g.Moves {
		out[i] = m.UCI()
	}
	return out
}

// User is the externally owned player record, read at game start and
// settled exactly once at completion.
type User struct {
	ID          string `json:"id"`
	Username    string `json:"username"`
	Rating      int    `json:"rating"`
	Wins        int    `json:"wins"`
	Losses      int    `json:"losses"`
	Draws       int    `json:"draws"`
	GamesPlayed int    `json:"games_played"`
}
