// Package gamedto defines the wire payloads exchanged with clients over
// the game socket and the REST API.
package gamedto

import "time"

// Inbound event names accepted by the gateway.
const (
	EvJoinGame    = "joinGame"
	EvMakeMove    = "makeMove"
	EvOfferDraw   = "offerDraw"
	EvRespondDraw = "respondDraw"
	EvResign      = "resign"
	EvChat        = "chat"
)

// Outbound event names emitted by the server.
const (
	EvGameState      = "gameState"
	EvMoveMade       = "moveMade"
	EvGameOver       = "gameOver"
	EvDrawOffered    = "drawOffered"
	EvDrawOfferSent  = "drawOfferSent"
	EvDrawDeclined   = "drawDeclined"
	EvOpponentJoined = "opponentJoined"
	EvChatMessage    = "chatMessage"
	EvError          = "error"
)

// Envelope frames every socket message in both directions.
type Envelope struct {
	Event string `json:"event"`
	Data  any    `json:"data,omitempty"`
}

// JoinGameRequest asks to enter a game room.
type JoinGameRequest struct {
	GameID string `json:"gameId"`
}

// MakeMoveRequest submits a candidate move.
type MakeMoveRequest struct {
	GameID    string `json:"gameId"`
	From      string `json:"from"`
	To        string `json:"to"`
	Promotion string `json:"promotion,omitempty"`
}

// OfferDrawRequest proposes a draw to the opponent.
type OfferDrawRequest struct {
	GameID string `json:"gameId"`
}

// RespondDrawRequest accepts or declines an outstanding offer.
type RespondDrawRequest struct {
	GameID string `json:"gameId"`
	Accept bool   `json:"accept"`
}

// ResignRequest forfeits the game.
type ResignRequest struct {
	GameID string `json:"gameId"`
}

// ChatRequest relays a free-text message to the game room.
type ChatRequest struct {
	GameID  string `json:"gameId"`
	Message string `json:"message"`
}

// GameState is sent to a connection right after it joins a room.
type GameState struct {
	Game        *GameView `json:"game"`
	ViewerColor string    `json:"viewerColor,omitempty"`
}

// MoveMade is broadcast to the room after every accepted move.
type MoveMade struct {
	Game *GameView `json:"game"`
	Move MoveView  `json:"move"`
}

// GameOver is broadcast once when a game reaches a terminal state.
type GameOver struct {
	Game *GameView `json:"game"`
}

// DrawOffered notifies the opponent of an outstanding offer.
type DrawOffered struct {
	By        string    `json:"by"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// OpponentJoined notifies the room that a participant connected.
type OpponentJoined struct {
	Username string `json:"username"`
}

// ChatMessage is the relayed room chat payload.
type ChatMessage struct {
	From      string    `json:"from"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// ErrorPayload carries a human-readable rejection to the offending
// connection only.
type ErrorPayload struct {
	Message string `json:"message"`
}
