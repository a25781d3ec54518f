package domain

// Domain failures surfaced to a single offending connection. None of them
// mutate state and none crash the process.
var (
	ErrNotAuthorized      = staticErr("not a participant of this game")
	ErrInvalidGameState   = staticErr("operation not valid for current game state")
	ErrNotYourTurn        = staticErr("not your turn")
	ErrIllegalMove        = staticErr("illegal move")
	ErrNoActiveOffer      = staticErr("no outstanding draw offer")
	ErrGameFlagged        = staticErr("player flag has fallen")
	ErrInvalidTimeControl = staticErr("invalid time control")
	ErrGameNotFound       = staticErr("game not found")
	ErrUserNotFound       = staticErr("user not found")
)

type staticErr string

func (e staticErr) Error() string { return string(e) }
