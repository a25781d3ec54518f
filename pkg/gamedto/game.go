package gamedto

import "time"

// PlayerView is the public slice of a user record.
type PlayerView struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Rating   int    `json:"rating"`
}

// TimeControlView mirrors the immutable game time control.
type TimeControlView struct {
	Minutes   int `json:"minutes"`
	Increment int `json:"increment"`
}

// MoveView is one entry of the move log.
type MoveView struct {
	From      string    `json:"from"`
	To        string    `json:"to"`
	SAN       string    `json:"san"`
	Promotion string    `json:"promotion,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// DrawOfferView is the outstanding offer, if any.
type DrawOfferView struct {
	By        string    `json:"by"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// GameView is the client-facing game snapshot. Clock fields are computed
// at emit time so every observer sees consistent remaining times.
type GameView struct {
	ID          string          `json:"id"`
	White       *PlayerView     `json:"white,omitempty"`
	Black       *PlayerView     `json:"black,omitempty"`
	TimeControl TimeControlView `json:"timeControl"`

	FEN   string     `json:"fen"`
	Moves []MoveView `json:"moves"`
	Turn  string     `json:"turn"`

	Status string `json:"status"`
	Result string `json:"result,omitempty"`
	Reason string `json:"resultReason,omitempty"`

	WhiteTimeMs int64 `json:"whiteTime"`
	BlackTimeMs int64 `json:"blackTime"`

	DrawOffer *DrawOfferView `json:"drawOffer,omitempty"`

	WhiteRatingChange int `json:"whiteRatingChange"`
	BlackRatingChange int `json:"blackRatingChange"`

	PGN string `json:"pgn,omitempty"`

	CreatedAt   time.Time  `json:"createdAt"`
	StartedAt   *time.Time `json:"startedAt,omitempty"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
}
