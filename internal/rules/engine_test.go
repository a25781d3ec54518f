package rules

import (
	"errors"
	"testing"

	"github.com/JalenduP/Chess-it/internal/domain"
)

func TestApplyLegalMove(t *testing.T) {
	e := NewEngine()

	v, err := e.Apply(nil, "e2", "e4", "")
	if err != nil {
		t.Fatalf("Apply e2e4: %v", err)
	}
	if v.SAN != "e4" {
		t.Fatalf("SAN = %q, want e4", v.SAN)
	}
	if v.UCI != "e2e4" {
		t.Fatalf("UCI = %q, want e2e4", v.UCI)
	}
	if v.Turn != domain.Black {
		t.Fatalf("turn after white's move = %q, want black", v.Turn)
	}
	if v.Terminal {
		t.Fatal("opening move reported terminal")
	}
}

func TestApplyIllegalMove(t *testing.T) {
	e := NewEngine()

	// No piece on e5 in the start position.
	if _, err := e.Apply(nil, "e5", "e6", ""); !errors.Is(err, domain.ErrIllegalMove) {
		t.Fatalf("expected ErrIllegalMove, got %v", err)
	}
	// Moving out of turn: black tries to answer before white moved.
	if _, err := e.Apply(nil, "e7", "e5", ""); !errors.Is(err, domain.ErrIllegalMove) {
		t.Fatalf("expected ErrIllegalMove for out-of-turn move, got %v", err)
	}
}

func TestApplyCheckmate(t *testing.T) {
	e := NewEngine()

	// Fool's mate: 1. f3 e5 2. g4 Qh4#
	prior := []string{"f2f3", "e7e5", "g2g4"}
	v, err := e.Apply(prior, "d8", "h4", "")
	if err != nil {
		t.Fatalf("Apply mating move: %v", err)
	}
	if !v.Terminal {
		t.Fatal("checkmate not reported terminal")
	}
	if v.Result != domain.ResultBlackWins {
		t.Fatalf("result = %q, want black_wins", v.Result)
	}
	if v.Reason != domain.ReasonCheckmate {
		t.Fatalf("reason = %q, want checkmate", v.Reason)
	}
	if v.SAN != "Qh4#" {
		t.Fatalf("SAN = %q, want Qh4#", v.SAN)
	}
}

func TestApplyThreefoldRepetition(t *testing.T) {
	e := NewEngine()

	// Shuffle knights until the start position occurs a third time.
	shuffle := []string{
		"g1f3", "g8f6", "f3g1", "f6g8",
		"g1f3", "g8f6", "f3g1",
	}
	v, err := e.Apply(shuffle, "f6", "g8", "")
	if err != nil {
		t.Fatalf("Apply repetition move: %v", err)
	}
	if !v.Terminal || v.Result != domain.ResultDraw {
		t.Fatalf("repetition not drawn: terminal=%v result=%q", v.Terminal, v.Result)
	}
	if v.Reason != domain.ReasonThreefoldRepetition {
		t.Fatalf("reason = %q, want threefold_repetition", v.Reason)
	}
}

func TestFinalFENRoundTrip(t *testing.T) {
	e := NewEngine()

	moves := []string{}
	for _, mv := range [][3]string{
		{"e2", "e4", ""}, {"e7", "e5", ""}, {"g1", "f3", ""}, {"b8", "c6", ""},
	} {
		v, err := e.Apply(moves, mv[0], mv[1], mv[2])
		if err != nil {
			t.Fatalf("Apply %v: %v", mv, err)
		}
		moves = append(moves, v.UCI)

		got, err := e.FinalFEN(moves)
		if err != nil {
			t.Fatalf("FinalFEN: %v", err)
		}
		if got != v.FEN {
			t.Fatalf("replayed FEN %q != applied FEN %q", got, v.FEN)
		}
	}
}

func TestApplyDefaultQueenPromotion(t *testing.T) {
	e := NewEngine()

	// March the a-pawn through an open file while black shuffles a rook.
	prior := []string{
		"a2a4", "h7h5", "a4a5", "h8h6", "a5a6", "h6h8", "a6b7", "h8h6",
	}
	v, err := e.Apply(prior, "b7", "a8", "")
	if err != nil {
		t.Fatalf("promotion without explicit piece: %v", err)
	}
	if v.UCI != "b7a8q" {
		t.Fatalf("UCI = %q, want b7a8q", v.UCI)
	}
}
