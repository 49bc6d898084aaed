package archive

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/jonboulle/clockwork"

	"github.com/socialconnect/backend/internal/game"
	"github.com/socialconnect/backend/internal/models"
)

// PairLister lists every pair.
type PairLister interface {
	ListAll(ctx context.Context) ([]models.Pair, error)
}

// SessionLister lists a pair's game sessions.
type SessionLister interface {
	ListSessions(ctx context.Context, pairID string) ([]models.GameSession, error)
}

// Queue accepts sessions to archive.
type Queue interface {
	Enqueue(ctx context.Context, session models.GameSession) error
}

// Sweeper periodically hands sessions with no activity for longer than the
// retention to the archive queue.
type Sweeper struct {
	pairs     PairLister
	games     SessionLister
	queue     Queue
	retention time.Duration
	clock     clockwork.Clock
	logger    *slog.Logger

	scheduler gocron.Scheduler
}

// NewSweeper constructs a sweeper. A nil clock uses the wall clock.
func NewSweeper(pairs PairLister, games SessionLister, queue Queue, retention time.Duration, clock clockwork.Clock, logger *slog.Logger) *Sweeper {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Sweeper{pairs: pairs, games: games, queue: queue, retention: retention, clock: clock, logger: logger}
}

// Sweep queues every abandoned session and returns how many were queued.
func (s *Sweeper) Sweep(ctx context.Context) (int, error) {
	pairs, err := s.pairs.ListAll(ctx)
	if err != nil {
		return 0, fmt.Errorf("list pairs: %w", err)
	}

	cutoff := s.clock.Now().Add(-s.retention).UnixMilli()
	queued := 0
	for _, pair := range pairs {
		sessions, err := s.games.ListSessions(ctx, pair.ID)
		if err != nil {
			s.logger.Error("list game sessions", "pairId", pair.ID, "error", err)
			continue
		}
		for _, session := range sessions {
			if game.LastActivity(session) >= cutoff {
				continue
			}
			if session.PairID == "" {
				session.PairID = pair.ID
			}
			if err := s.queue.Enqueue(ctx, session); err != nil {
				return queued, fmt.Errorf("queue session %s: %w", session.ID, err)
			}
			queued++
		}
	}
	return queued, nil
}

// Start runs Sweep every interval until Stop.
func (s *Sweeper) Start(interval time.Duration) error {
	scheduler, err := gocron.NewScheduler(gocron.WithClock(s.clock))
	if err != nil {
		return fmt.Errorf("create scheduler: %w", err)
	}

	_, err = scheduler.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(func() {
			ctx, cancel := context.WithTimeout(context.Background(), interval)
			defer cancel()
			n, err := s.Sweep(ctx)
			if err != nil {
				s.logger.Error("archive sweep failed", "queued", n, "error", err)
				return
			}
			if n > 0 {
				s.logger.Info("archive sweep queued sessions", "queued", n)
			}
		}),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		_ = scheduler.Shutdown()
		return fmt.Errorf("schedule archive sweep: %w", err)
	}

	scheduler.Start()
	s.scheduler = scheduler
	return nil
}

// Stop shuts the scheduler down.
func (s *Sweeper) Stop() error {
	if s.scheduler == nil {
		return nil
	}
	return s.scheduler.Shutdown()
}
