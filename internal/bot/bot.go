package bot

import (
	"context"
	"errors"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/socialconnect/backend/internal/game"
	"github.com/socialconnect/backend/internal/logging"
)

const (
	// DefaultInterval is how often the pilot decides what to do.
	DefaultInterval = 250 * time.Millisecond

	steerGain       = 1.5
	interactAtSync  = 80.0
	closeEnough     = 0.5
	joystickPerUnit = 50.0
)

// Pilot plays one side of a game by following the partner and collecting
// whenever the two are in sync. It gives a lone user someone to play with.
type Pilot struct {
	session  *game.Session
	clock    clockwork.Clock
	interval time.Duration
	rounds   int
}

// New returns a pilot for session. A nil clock uses the wall clock.
func New(session *game.Session, clock clockwork.Clock, interval time.Duration) *Pilot {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Pilot{session: session, clock: clock, interval: interval, rounds: 1}
}

// Rounds sets how many games the pilot plays before stopping. Values below one mean one.
func (p *Pilot) Rounds(n int) *Pilot {
	p.rounds = max(n, 1)
	return p
}

// Run starts the session and plays until ctx ends or the last round is over.
func (p *Pilot) Run(ctx context.Context) error {
	ctx, span := logging.StartSpan(ctx, "bot.run")
	defer span.End()
	logger := logging.FromContext(ctx)

	if err := p.session.Start(ctx); err != nil {
		return err
	}
	defer p.session.Close()

	ticker := p.clock.NewTicker(p.interval)
	defer ticker.Stop()

	played := 0

	for {
		select {
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.Canceled) {
				return nil
			}
			return ctx.Err()
		case <-p.session.Done():
			return nil
		case <-ticker.Chan():
			state := p.session.Store().Get()
			if state.GameOver {
				logger.Info("game over", "round", played+1, "level", state.Level, "phase", state.Phase, "score", state.Score)
				played++
				if played >= p.rounds {
					return nil
				}
				p.session.Restart()
				continue
			}
			for _, action := range Decide(state) {
				p.session.Input(action)
			}
		}
	}
}

// Decide picks the inputs for the current state.
func Decide(s game.State) []game.Reducer[game.State] {
	if s.GameOver || s.Paused || !s.RemoteConnected {
		return nil
	}

	var actions []game.Reducer[game.State]
	dx := s.RemotePosition[0] - s.Position[0]
	dz := s.RemotePosition[2] - s.Position[2]
	if game.PlanarDistance(s.Position, s.RemotePosition) > closeEnough {
		sensitivity := s.Settings.ControlSensitivity
		if sensitivity <= 0 {
			sensitivity = 1
		}
		scale := steerGain * joystickPerUnit / sensitivity
		actions = append(actions, game.Move(dx*scale, -dz*scale))
	} else {
		actions = append(actions, game.Release())
	}

	if s.RemotePosition[1] > s.Position[1]+closeEnough && s.Grounded {
		actions = append(actions, game.Jump())
	}
	if s.ConnectPercent >= interactAtSync {
		actions = append(actions, game.Interact())
	}
	return actions
}
