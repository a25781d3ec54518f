package match

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"

	"github.com/JalenduP/Chess-it/internal/domain"
	"github.com/JalenduP/Chess-it/internal/rules"
	"github.com/JalenduP/Chess-it/internal/store"
	"github.com/JalenduP/Chess-it/pkg/gamedto"
)

// recorder captures broadcasts for assertions.
type recorder struct {
	mu     sync.Mutex
	events []recordedEvent
}

type recordedEvent struct {
	scope  string
	gameID string
	userID string
	name   string
}

func (r *recorder) ToRoom(gameID, event string, _ any) {
	r.add(recordedEvent{scope: "room", gameID: gameID, name: event})
}

func (r *recorder) ToRoomExcept(gameID, exceptUserID, event string, _ any) {
	r.add(recordedEvent{scope: "roomExcept", gameID: gameID, userID: exceptUserID, name: event})
}

func (r *recorder) ToUser(gameID, userID, event string, _ any) {
	r.add(recordedEvent{scope: "user", gameID: gameID, userID: userID, name: event})
}

func (r *recorder) add(ev recordedEvent) {
	r.mu.Lock()
	r.events = append(r.events, ev)
	r.mu.Unlock()
}

func (r *recorder) count(name string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, ev := range r.events {
		if ev.name == name {
			n++
		}
	}
	return n
}

type fixture struct {
	mgr  *Manager
	st   *store.Store
	repo *memrepo
	rec  *recorder
}

func newFixture(t *testing.T, opts Options) *fixture {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	t.Cleanup(func() { mr.Close() })
	st, err := store.New(fmt.Sprintf("redis://%s/0", mr.Addr()))
	if err != nil {
		t.Fatalf("store.New: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })

	repo := NewMemoryRepository()
	repo.SeedUser(&domain.User{ID: "alice", Username: "alice", Rating: 1500, GamesPlayed: 50})
	repo.SeedUser(&domain.User{ID: "bob", Username: "bob", Rating: 1500, GamesPlayed: 50})

	rec := &recorder{}
	mgr := NewManager(st, repo, rules.NewEngine(), opts)
	mgr.AttachBroadcaster(rec)
	return &fixture{mgr: mgr, st: st, repo: repo, rec: rec}
}

func (f *fixture) user(t *testing.T, id string) *domain.User {
	t.Helper()
	u, err := f.repo.GetUser(context.Background(), id)
	if err != nil {
		t.Fatalf("GetUser %s: %v", id, err)
	}
	return u
}

// pair runs both players through matchmaking and returns the active game.
func (f *fixture) pair(t *testing.T, tc domain.TimeControl) *domain.Game {
	t.Helper()
	ctx := context.Background()
	if _, err := f.mgr.RequestGame(ctx, f.user(t, "alice"), tc); err != nil {
		t.Fatalf("RequestGame alice: %v", err)
	}
	g, err := f.mgr.RequestGame(ctx, f.user(t, "bob"), tc)
	if err != nil {
		t.Fatalf("RequestGame bob: %v", err)
	}
	return g
}

func TestMatchmakingPairsIdenticalTimeControl(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()
	tc := domain.TimeControl{Minutes: 3, Increment: 2}

	g1, err := f.mgr.RequestGame(ctx, f.user(t, "alice"), tc)
	if err != nil {
		t.Fatalf("RequestGame alice: %v", err)
	}
	if g1.Status != domain.StatusWaiting || g1.WhiteID != "alice" || g1.BlackID != "" {
		t.Fatalf("first request should open a waiting seat for white: %+v", g1)
	}

	g2, err := f.mgr.RequestGame(ctx, f.user(t, "bob"), tc)
	if err != nil {
		t.Fatalf("RequestGame bob: %v", err)
	}
	if g2.ID != g1.ID {
		t.Fatalf("second request created %s instead of joining %s", g2.ID, g1.ID)
	}
	if g2.Status != domain.StatusActive || g2.BlackID != "bob" {
		t.Fatalf("join did not activate game: %+v", g2)
	}
	if g2.WhiteTimeMs != 180000 || g2.BlackTimeMs != 180000 {
		t.Fatalf("clocks = %d/%d, want 180000 each", g2.WhiteTimeMs, g2.BlackTimeMs)
	}
	if g2.WhiteRatingBefore != 1500 || g2.BlackRatingBefore != 1500 {
		t.Fatalf("rating snapshots missing: %+v", g2)
	}
}

func TestMatchmakingRejectsBadTimeControl(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()

	for _, tc := range []domain.TimeControl{
		{Minutes: 0, Increment: 2},
		{Minutes: -3, Increment: 0},
		{Minutes: 5, Increment: -1},
	} {
		if _, err := f.mgr.RequestGame(ctx, f.user(t, "alice"), tc); !errors.Is(err, domain.ErrInvalidTimeControl) {
			t.Errorf("time control %+v: got %v, want ErrInvalidTimeControl", tc, err)
		}
	}
}

func TestMatchmakingDifferentTimeControlOpensNewSeat(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()

	g1, _ := f.mgr.RequestGame(ctx, f.user(t, "alice"), domain.TimeControl{Minutes: 3, Increment: 2})
	g2, err := f.mgr.RequestGame(ctx, f.user(t, "bob"), domain.TimeControl{Minutes: 10, Increment: 0})
	if err != nil {
		t.Fatalf("RequestGame bob: %v", err)
	}
	if g2.ID == g1.ID || g2.Status != domain.StatusWaiting {
		t.Fatalf("mismatched time control should open a new waiting game: %+v", g2)
	}
}

func TestMakeMoveFlow(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()
	g := f.pair(t, domain.TimeControl{Minutes: 3, Increment: 2})

	got, mv, err := f.mgr.MakeMove(ctx, "alice", g.ID, "e2", "e4", "")
	if err != nil {
		t.Fatalf("MakeMove: %v", err)
	}
	if mv.SAN != "e4" {
		t.Fatalf("SAN = %q, want e4", mv.SAN)
	}
	if got.Turn != domain.Black {
		t.Fatalf("turn = %q, want black", got.Turn)
	}
	if len(got.Moves) != 1 {
		t.Fatalf("move log length = %d, want 1", len(got.Moves))
	}
	// First move charges no elapsed time; the increment is credited.
	if got.WhiteTimeMs != 182000 {
		t.Fatalf("white clock = %d, want 182000", got.WhiteTimeMs)
	}
	if got.BlackTimeMs != 180000 {
		t.Fatalf("black clock = %d, want untouched 180000", got.BlackTimeMs)
	}
	if f.rec.count(gamedto.EvMoveMade) != 1 {
		t.Fatalf("moveMade broadcasts = %d, want 1", f.rec.count(gamedto.EvMoveMade))
	}
	if got.DrawOffer != nil {
		t.Fatal("fresh game carries a draw offer")
	}
}

func TestMakeMoveTurnAlternationProperty(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()
	g := f.pair(t, domain.TimeControl{Minutes: 3, Increment: 2})

	line := []struct {
		user, from, to string
	}{
		{"alice", "e2", "e4"}, {"bob", "e7", "e5"},
		{"alice", "g1", "f3"}, {"bob", "b8", "c6"},
	}
	for _, step := range line {
		got, _, err := f.mgr.MakeMove(ctx, step.user, g.ID, step.from, step.to, "")
		if err != nil {
			t.Fatalf("MakeMove %s %s%s: %v", step.user, step.from, step.to, err)
		}
		want := domain.White
		if len(got.Moves)%2 == 1 {
			want = domain.Black
		}
		if got.Turn != want {
			t.Fatalf("after %d moves turn = %q, want %q", len(got.Moves), got.Turn, want)
		}
	}
}

func TestMakeMoveRejections(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()
	g := f.pair(t, domain.TimeControl{Minutes: 3, Increment: 2})

	if _, _, err := f.mgr.MakeMove(ctx, "mallory", g.ID, "e2", "e4", ""); !errors.Is(err, domain.ErrNotAuthorized) {
		t.Fatalf("outsider move: got %v, want ErrNotAuthorized", err)
	}
	if _, _, err := f.mgr.MakeMove(ctx, "bob", g.ID, "e7", "e5", ""); !errors.Is(err, domain.ErrNotYourTurn) {
		t.Fatalf("out-of-turn move: got %v, want ErrNotYourTurn", err)
	}
	if _, _, err := f.mgr.MakeMove(ctx, "alice", "no-such-game", "e2", "e4", ""); !errors.Is(err, domain.ErrGameNotFound) {
		t.Fatalf("unknown game: got %v, want ErrGameNotFound", err)
	}
}

func TestMoveFromFlaggedPlayerResolvesTimeout(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()
	g := f.pair(t, domain.TimeControl{Minutes: 3, Increment: 2})

	live, err := f.mgr.Game(ctx, g.ID)
	if err != nil {
		t.Fatalf("Game: %v", err)
	}
	live.WhiteTimeMs = 50
	live.LastMoveTime = time.Now().Add(-time.Minute)
	if err := f.st.SaveGame(ctx, live); err != nil {
		t.Fatalf("SaveGame: %v", err)
	}

	// The flag fell before the sweep got there; the move must trigger the
	// timeout instead of being applied.
	_, _, err = f.mgr.MakeMove(ctx, "alice", g.ID, "e2", "e4", "")
	if !errors.Is(err, domain.ErrGameFlagged) {
		t.Fatalf("got %v, want ErrGameFlagged", err)
	}

	final, err := f.mgr.Game(ctx, g.ID)
	if err != nil {
		t.Fatalf("Game after flag: %v", err)
	}
	if final.Status != domain.StatusCompleted || final.Result != domain.ResultBlackWins || final.Reason != domain.ReasonTimeout {
		t.Fatalf("final = %s/%s/%s, want completed/black_wins/timeout", final.Status, final.Result, final.Reason)
	}
	if len(final.Moves) != 0 {
		t.Fatalf("flagged player's move was applied: %d moves", len(final.Moves))
	}
	if final.WhiteTimeMs != 0 {
		t.Fatalf("flagged clock = %d, want 0", final.WhiteTimeMs)
	}
	if f.rec.count(gamedto.EvGameOver) != 1 {
		t.Fatalf("gameOver broadcasts = %d, want 1", f.rec.count(gamedto.EvGameOver))
	}

	alice := f.user(t, "alice")
	if alice.Losses != 1 || alice.GamesPlayed != 51 {
		t.Fatalf("alice settled %d times: %+v", alice.GamesPlayed-50, alice)
	}
}

func TestIllegalMoveLeavesStateUntouched(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()
	g := f.pair(t, domain.TimeControl{Minutes: 3, Increment: 2})

	_, _, err := f.mgr.MakeMove(ctx, "alice", g.ID, "e5", "e6", "")
	if !errors.Is(err, domain.ErrIllegalMove) {
		t.Fatalf("got %v, want ErrIllegalMove", err)
	}

	after, err := f.mgr.Game(ctx, g.ID)
	if err != nil {
		t.Fatalf("Game: %v", err)
	}
	if len(after.Moves) != 0 || after.Turn != domain.White {
		t.Fatalf("illegal move mutated state: moves=%d turn=%q", len(after.Moves), after.Turn)
	}
	if after.WhiteTimeMs != 180000 || after.BlackTimeMs != 180000 {
		t.Fatalf("illegal move touched clocks: %d/%d", after.WhiteTimeMs, after.BlackTimeMs)
	}
	if f.rec.count(gamedto.EvMoveMade) != 0 {
		t.Fatal("illegal move was broadcast")
	}
}

func TestCheckmateSettlesRatings(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()
	g := f.pair(t, domain.TimeControl{Minutes: 3, Increment: 2})

	// Fool's mate; bob (black) wins.
	line := []struct {
		user, from, to string
	}{
		{"alice", "f2", "f3"}, {"bob", "e7", "e5"},
		{"alice", "g2", "g4"}, {"bob", "d8", "h4"},
	}
	var final *domain.Game
	for _, step := range line {
		got, _, err := f.mgr.MakeMove(ctx, step.user, g.ID, step.from, step.to, "")
		if err != nil {
			t.Fatalf("MakeMove %s: %v", step.from+step.to, err)
		}
		final = got
	}

	if final.Status != domain.StatusCompleted || final.Result != domain.ResultBlackWins {
		t.Fatalf("final state: %s/%s, want completed/black_wins", final.Status, final.Result)
	}
	if final.Reason != domain.ReasonCheckmate {
		t.Fatalf("reason = %q, want checkmate", final.Reason)
	}
	if final.WhiteRatingChange != -16 || final.BlackRatingChange != 16 {
		t.Fatalf("deltas = %d/%d, want -16/+16", final.WhiteRatingChange, final.BlackRatingChange)
	}
	if final.PGN == "" || final.CompletedAt.IsZero() {
		t.Fatal("completed game missing PGN or completedAt")
	}

	alice := f.user(t, "alice")
	bob := f.user(t, "bob")
	if alice.Rating != 1484 || bob.Rating != 1516 {
		t.Fatalf("ratings = %d/%d, want 1484/1516", alice.Rating, bob.Rating)
	}
	if alice.Losses != 1 || bob.Wins != 1 {
		t.Fatalf("counters: alice losses=%d bob wins=%d", alice.Losses, bob.Wins)
	}
	if f.rec.count(gamedto.EvGameOver) != 1 {
		t.Fatalf("gameOver broadcasts = %d, want 1", f.rec.count(gamedto.EvGameOver))
	}

	// Terminal state is final: nothing else is accepted.
	if _, _, err := f.mgr.MakeMove(ctx, "bob", g.ID, "h4", "h5", ""); !errors.Is(err, domain.ErrInvalidGameState) {
		t.Fatalf("move on completed game: got %v, want ErrInvalidGameState", err)
	}
	if _, err := f.mgr.OfferDraw(ctx, "alice", g.ID); !errors.Is(err, domain.ErrInvalidGameState) {
		t.Fatalf("offer on completed game: got %v, want ErrInvalidGameState", err)
	}
	if _, err := f.mgr.Resign(ctx, "alice", g.ID); !errors.Is(err, domain.ErrInvalidGameState) {
		t.Fatalf("resign on completed game: got %v, want ErrInvalidGameState", err)
	}
}

func TestDrawOfferAndAccept(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()
	g := f.pair(t, domain.TimeControl{Minutes: 3, Increment: 2})

	if _, err := f.mgr.RespondDraw(ctx, "bob", g.ID, true); !errors.Is(err, domain.ErrNoActiveOffer) {
		t.Fatalf("respond with no offer: got %v, want ErrNoActiveOffer", err)
	}

	got, err := f.mgr.OfferDraw(ctx, "alice", g.ID)
	if err != nil {
		t.Fatalf("OfferDraw: %v", err)
	}
	if got.DrawOffer == nil || got.DrawOffer.By != domain.White {
		t.Fatalf("offer not recorded: %+v", got.DrawOffer)
	}
	if f.rec.count(gamedto.EvDrawOffered) != 1 {
		t.Fatal("opponent was not notified of the offer")
	}

	if _, err := f.mgr.RespondDraw(ctx, "alice", g.ID, true); !errors.Is(err, domain.ErrNotAuthorized) {
		t.Fatalf("accepting own offer: got %v, want ErrNotAuthorized", err)
	}

	final, err := f.mgr.RespondDraw(ctx, "bob", g.ID, true)
	if err != nil {
		t.Fatalf("RespondDraw accept: %v", err)
	}
	if final.Result != domain.ResultDraw || final.Reason != domain.ReasonAgreement {
		t.Fatalf("final = %s/%s, want draw/agreement", final.Result, final.Reason)
	}
	alice := f.user(t, "alice")
	bob := f.user(t, "bob")
	if alice.Draws != 1 || bob.Draws != 1 {
		t.Fatalf("draw counters: %d/%d, want 1/1", alice.Draws, bob.Draws)
	}
}

func TestDrawDeclineClearsOffer(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()
	g := f.pair(t, domain.TimeControl{Minutes: 3, Increment: 2})

	if _, err := f.mgr.OfferDraw(ctx, "alice", g.ID); err != nil {
		t.Fatalf("OfferDraw: %v", err)
	}
	got, err := f.mgr.RespondDraw(ctx, "bob", g.ID, false)
	if err != nil {
		t.Fatalf("RespondDraw decline: %v", err)
	}
	if got.DrawOffer != nil || got.Status != domain.StatusActive {
		t.Fatalf("decline should clear offer and keep playing: %+v", got)
	}
	if f.rec.count(gamedto.EvDrawDeclined) != 1 {
		t.Fatal("offerer was not notified of the decline")
	}
	if _, err := f.mgr.RespondDraw(ctx, "bob", g.ID, false); !errors.Is(err, domain.ErrNoActiveOffer) {
		t.Fatalf("second decline: got %v, want ErrNoActiveOffer", err)
	}
}

func TestResignBeatsStaleDrawOffer(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()
	g := f.pair(t, domain.TimeControl{Minutes: 3, Increment: 2})

	if _, err := f.mgr.OfferDraw(ctx, "alice", g.ID); err != nil {
		t.Fatalf("OfferDraw: %v", err)
	}
	final, err := f.mgr.Resign(ctx, "bob", g.ID)
	if err != nil {
		t.Fatalf("Resign: %v", err)
	}
	if final.Result != domain.ResultWhiteWins || final.Reason != domain.ReasonResignation {
		t.Fatalf("final = %s/%s, want white_wins/resignation", final.Result, final.Reason)
	}
	// The stale offer must have no further effect.
	if _, err := f.mgr.RespondDraw(ctx, "bob", g.ID, true); !errors.Is(err, domain.ErrInvalidGameState) {
		t.Fatalf("responding after resignation: got %v, want ErrInvalidGameState", err)
	}
	bob := f.user(t, "bob")
	if bob.Losses != 1 {
		t.Fatalf("bob losses = %d, want 1", bob.Losses)
	}
}

func TestMoveClearsOutstandingOffer(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()
	g := f.pair(t, domain.TimeControl{Minutes: 3, Increment: 2})

	if _, err := f.mgr.OfferDraw(ctx, "alice", g.ID); err != nil {
		t.Fatalf("OfferDraw: %v", err)
	}
	got, _, err := f.mgr.MakeMove(ctx, "alice", g.ID, "e2", "e4", "")
	if err != nil {
		t.Fatalf("MakeMove: %v", err)
	}
	if got.DrawOffer != nil {
		t.Fatal("move did not clear the outstanding offer")
	}
}
