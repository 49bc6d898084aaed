package game

import (
	"context"
	"errors"
	"sync"

	"github.com/jonboulle/clockwork"

	"github.com/socialconnect/backend/internal/logging"
)

// ErrSessionClosed is returned when using a session after Close.
var ErrSessionClosed = errors.New("game session closed")

// Config describes one peer's game.
type Config struct {
	PairID    string
	UserID    string
	PartnerID string
	// Lobby connects the session to the shared document. Nil plays offline.
	Lobby    *Lobby
	Clock    clockwork.Clock
	Renderer Renderer
}

// Session owns one peer's running game: its store, loop and mirror.
type Session struct {
	cfg    Config
	store  *Store[State]
	loop   *Loop
	mirror *Mirror

	mu      sync.Mutex
	started bool
	closed  bool
	cancel  context.CancelFunc
	done    chan struct{}
}

// NewSession prepares a session. Nothing runs until Start.
func NewSession(cfg Config) *Session {
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}
	store := NewStore(NewState(cfg.PairID))

	s := &Session{cfg: cfg, store: store, done: make(chan struct{})}
	var pusher Pusher
	if cfg.Lobby != nil {
		s.mirror = NewMirror(cfg.Lobby, store, cfg.Clock, cfg.UserID, cfg.PartnerID)
		pusher = s.mirror
	}
	s.loop = NewLoop(store, cfg.Clock, pusher, cfg.Renderer)
	return s
}

// Store exposes the session's state for reading and input.
func (s *Session) Store() *Store[State] {
	return s.store
}

// Input applies a player action.
func (s *Session) Input(r Reducer[State]) {
	s.store.Dispatch(r)
}

// Restart plays again after the game is over. It does nothing mid-game.
func (s *Session) Restart() {
	s.store.Dispatch(Restart())
}

// Start joins the shared session and starts the loop. A failed join is logged
// and the game continues without a partner.
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrSessionClosed
	}
	if s.started {
		s.mu.Unlock()
		return nil
	}
	s.started = true
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.mu.Unlock()

	logger := logging.FromContext(ctx)
	if s.mirror != nil {
		if id, err := s.mirror.Join(ctx, s.cfg.PairID); err != nil {
			logger.Error("join game session", "pairId", s.cfg.PairID, "error", err)
		} else {
			logger.Info("game session started", "pairId", s.cfg.PairID, "sessionId", id)
		}
	}

	go func() {
		defer close(s.done)
		if err := s.loop.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("game loop stopped", "error", err)
		}
	}()
	return nil
}

// Done is closed when the loop has stopped.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Close stops the loop and the mirror.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	started, cancel := s.started, s.cancel
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if s.mirror != nil {
		s.mirror.Close()
	}
	if started {
		<-s.done
	}
}
