// Package rules abstracts chess legality and terminal-state detection
// behind a capability interface so any compliant implementation can be
// substituted. The default adapter wraps corentings/chess.
package rules

import (
	"fmt"
	"strings"

	nchess "github.com/corentings/chess/v2"

	"github.com/JalenduP/Chess-it/internal/domain"
)

// Verdict is the outcome of applying one candidate move to a position.
type Verdict struct {
	FEN  string
	SAN  string
	UCI  string
	Turn domain.Color // side to move after the move

	Terminal bool
	Result   domain.Result
	Reason   domain.Reason
}

// Engine validates candidate moves and reports resulting positions and
// terminal flags. Implementations must be stateless between calls; the
// full prior move list identifies the position.
type Engine interface {
	// Apply replays prior (UCI, oldest first), then attempts the candidate
	// move. Returns domain.ErrIllegalMove when the move is not legal.
	Apply(prior []string, from, to, promotion string) (*Verdict, error)

	// FinalFEN replays a move list and returns the resulting position.
	FinalFEN(moves []string) (string, error)
}

type corentingsEngine struct{}

// NewEngine returns the corentings/chess-backed Engine.
func NewEngine() Engine { return corentingsEngine{} }

func (corentingsEngine) Apply(prior []string, from, to, promotion string) (*Verdict, error) {
	game, err := reconstruct(prior)
	if err != nil {
		return nil, err
	}
	pos := game.Position()

	uci := strings.ToLower(strings.TrimSpace(from) + strings.TrimSpace(to) + strings.TrimSpace(promotion))
	if len(uci) < 4 {
		return nil, domain.ErrIllegalMove
	}
	if err := game.PushNotationMove(uci, nchess.UCINotation{}, nil); err != nil {
		// A bare from/to on a promotion square promotes to a queen, matching
		// common client behavior of omitting the piece.
		if strings.TrimSpace(promotion) != "" {
			return nil, domain.ErrIllegalMove
		}
		uci += "q"
		if err := game.PushNotationMove(uci, nchess.UCINotation{}, nil); err != nil {
			return nil, domain.ErrIllegalMove
		}
	}

	last := lastMove(game)
	if last == nil {
		return nil, domain.ErrIllegalMove
	}

	// Threefold repetition and the fifty-move rule are claimable draws in
	// the library; the server claims them on the players' behalf.
	if game.Outcome() == nchess.NoOutcome {
		for _, m := range game.EligibleDraws() {
			if m == nchess.ThreefoldRepetition || m == nchess.FiftyMoveRule {
				_ = game.Draw(m)
				break
			}
		}
	}

	v := &Verdict{
		FEN:  game.FEN(),
		SAN:  nchess.AlgebraicNotation{}.Encode(pos, last),
		UCI:  uci,
		Turn: colorFrom(game.Position().Turn()),
	}

	switch game.Outcome() {
	case nchess.WhiteWon:
		v.Terminal = true
		v.Result = domain.ResultWhiteWins
	case nchess.BlackWon:
		v.Terminal = true
		v.Result = domain.ResultBlackWins
	case nchess.Draw:
		v.Terminal = true
		v.Result = domain.ResultDraw
	}
	if v.Terminal {
		v.Reason = reasonFrom(game.Method())
	}
	return v, nil
}

func (corentingsEngine) FinalFEN(moves []string) (string, error) {
	game, err := reconstruct(moves)
	if err != nil {
		return "", err
	}
	return game.FEN(), nil
}

// reconstruct replays stored UCI moves from the start position. Replaying
// the log rather than trusting a cached FEN keeps repetition counters
// accurate.
func reconstruct(moves []string) (*nchess.Game, error) {
	game := nchess.NewGame()
	for i, mv := range moves {
		if err := game.PushNotationMove(mv, nchess.UCINotation{}, nil); err != nil {
			return nil, fmt.Errorf("replay move %d (%s): %w", i+1, mv, err)
		}
	}
	return game, nil
}

func lastMove(game *nchess.Game) *nchess.Move {
	moves := game.Moves()
	if len(moves) == 0 {
		return nil
	}
	return moves[len(moves)-1]
}

func colorFrom(c nchess.Color) domain.Color {
	if c == nchess.White {
		return domain.White
	}
	return domain.Black
}

func reasonFrom(m nchess.Method) domain.Reason {
	switch m {
	case nchess.Checkmate:
		return domain.ReasonCheckmate
	case nchess.Stalemate:
		return domain.ReasonStalemate
	case nchess.InsufficientMaterial:
		return domain.ReasonInsufficientMaterial
	case nchess.ThreefoldRepetition, nchess.FivefoldRepetition:
		return domain.ReasonThreefoldRepetition
	case nchess.FiftyMoveRule, nchess.SeventyFiveMoveRule:
		return domain.ReasonFiftyMoveRule
	default:
		return ""
	}
}
