package game

import (
	"context"
	"time"

	"github.com/jonboulle/clockwork"
)

const (
	// FrameInterval is the tick period of a running loop.
	FrameInterval = 16 * time.Millisecond
	// PushInterval is the minimum spacing between pushes of local state.
	PushInterval = 100 * time.Millisecond
)

// Pusher publishes local state to the other peer.
type Pusher interface {
	Push(ctx context.Context, state State)
}

// Loop drives a store from a tick source.
type Loop struct {
	store    *Store[State]
	clock    clockwork.Clock
	pusher   Pusher
	renderer Renderer

	last      time.Time
	lastPush  time.Time
	layoutKey layoutKey
	platforms []Platform
}

type layoutKey struct {
	level  int
	phase  Phase
	pairID string
}

// NewLoop builds a loop. pusher and renderer may be nil.
func NewLoop(store *Store[State], clock clockwork.Clock, pusher Pusher, renderer Renderer) *Loop {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Loop{store: store, clock: clock, pusher: pusher, renderer: renderer}
}

// Run ticks every FrameInterval until ctx is cancelled.
func (l *Loop) Run(ctx context.Context) error {
	ticker := l.clock.NewTicker(FrameInterval)
	defer ticker.Stop()

	l.Tick(ctx, l.clock.Now())
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case now := <-ticker.Chan():
			l.Tick(ctx, now)
		}
	}
}

// Tick runs one frame at now. The first tick only records the time.
func (l *Loop) Tick(ctx context.Context, now time.Time) {
	var delta time.Duration
	if !l.last.IsZero() {
		delta = min(max(now.Sub(l.last), 0), MaxStep)
	}
	l.last = now

	l.store.Dispatch(Tick(delta.Seconds()))
	state := l.store.Get()

	if l.pusher != nil && (l.lastPush.IsZero() || now.Sub(l.lastPush) >= PushInterval) {
		l.lastPush = now
		l.pusher.Push(ctx, state)
	}

	if l.renderer != nil {
		l.renderer.Render(ctx, l.frame(state))
	}
}

func (l *Loop) frame(state State) Frame {
	key := layoutKey{level: state.Level, phase: state.Phase, pairID: state.PairID}
	if l.platforms == nil || key != l.layoutKey {
		l.layoutKey = key
		l.platforms = Layout(state.Level, state.Phase, state.PairID)
	}

	return Frame{
		Local:     Transform{Position: state.Position, Rotation: state.Rotation},
		Remote:    Transform{Position: state.RemotePosition, Rotation: state.RemoteRotation},
		Camera:    followCamera(state.Position),
		Platforms: l.platforms,
		State:     state,
	}
}
