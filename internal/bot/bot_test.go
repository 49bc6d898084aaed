package bot

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/socialconnect/backend/internal/game"
)

func apply(s game.State, actions []game.Reducer[game.State]) game.State {
	for _, a := range actions {
		s = a(s)
	}
	return s
}

func TestDecideWaitsForPartner(t *testing.T) {
	s := game.NewState("p")
	if actions := Decide(s); len(actions) != 0 {
		t.Fatalf("expected no actions without a partner, got %d", len(actions))
	}
}

func TestDecideSteersTowardPartner(t *testing.T) {
	s := game.NewState("p")
	s.RemoteConnected = true
	s.RemotePosition = game.Vec3{2, 1, -1}
	s.ConnectPercent = game.SyncPercent(s.Position, s.RemotePosition)

	next := apply(s, Decide(s))
	if next.Velocity[0] <= 0 || next.Velocity[2] >= 0 {
		t.Fatalf("expected velocity toward (+x, -z), got %v", next.Velocity)
	}
	if math.Abs(next.Velocity[0]/next.Velocity[2]-(-2)) > 1e-9 {
		t.Fatalf("expected heading along the partner direction, got %v", next.Velocity)
	}
	if next.Score <= s.Score {
		t.Fatal("expected a collect attempt while sync is high")
	}
}

func TestDecideStopsWhenTogether(t *testing.T) {
	s := game.NewState("p")
	s.RemoteConnected = true
	s.RemotePosition = s.Position
	s.Velocity = game.Vec3{3, 0, 3}
	s.RemotePosition[1] = 4

	next := apply(s, Decide(s))
	if next.Velocity[0] != 0 || next.Velocity[2] != 0 {
		t.Fatalf("expected to stop next to the partner, got %v", next.Velocity)
	}
	if next.Velocity[1] != game.JumpImpulse {
		t.Fatal("expected a jump toward a partner above")
	}
}

func TestRunStopsWithContext(t *testing.T) {
	clock := clockwork.NewFakeClock()
	session := game.NewSession(game.Config{PairID: "p", UserID: "bot", Clock: clock})
	pilot := New(session, clock, time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- pilot.Run(ctx) }()

	if err := clock.BlockUntilContext(ctx, 2); err != nil {
		t.Fatalf("waiting for tickers: %v", err)
	}
	clock.Advance(time.Second)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("expected clean stop, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("pilot did not stop")
	}
	select {
	case <-session.Done():
	default:
		t.Fatal("session should be closed when the pilot stops")
	}
}

func TestRunPlaysAgainUntilRoundsAreUsed(t *testing.T) {
	clock := clockwork.NewFakeClock()
	session := game.NewSession(game.Config{PairID: "p", UserID: "bot", Clock: clock})
	pilot := New(session, clock, time.Second).Rounds(2)
	finish := func(s game.State) game.State { s.GameOver = true; return s }
	session.Input(finish)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- pilot.Run(ctx) }()

	if err := clock.BlockUntilContext(ctx, 2); err != nil {
		t.Fatalf("waiting for tickers: %v", err)
	}
	clock.Advance(time.Second)

	deadline := time.Now().Add(2 * time.Second)
	for session.Store().Get().GameOver {
		if time.Now().After(deadline) {
			t.Fatal("pilot did not restart the finished game")
		}
		time.Sleep(5 * time.Millisecond)
	}
	if got := session.Store().Get(); got.Level != 1 || got.Score != 0 {
		t.Fatalf("expected a fresh game, got level %d score %v", got.Level, got.Score)
	}

	session.Input(finish)
	clock.Advance(time.Second)

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("expected clean stop after the last round, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("pilot kept playing after its last round")
	}
}
