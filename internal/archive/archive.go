package archive

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path"
	"sync"
	"time"

	"github.com/socialconnect/backend/internal/models"
	"github.com/socialconnect/backend/internal/repositories"
)

// ObjectStorage persists archived session documents.
type ObjectStorage interface {
	Save(ctx context.Context, name string, r io.Reader) (string, error)
}

// SessionStore is the slice of game persistence the archiver needs.
type SessionStore interface {
	DeleteSession(ctx context.Context, pairID, sessionID string) error
}

// WorkerConfig controls the concurrency of the archiver.
type WorkerConfig struct {
	QueueSize int
	Workers   int
}

// Archiver uploads abandoned sessions and then removes them, on a bounded pool of workers.
type Archiver struct {
	storage  ObjectStorage
	sessions SessionStore
	logger   *slog.Logger

	mu     sync.RWMutex
	closed bool
	jobs   chan models.GameSession
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// ErrClosed is returned when enqueueing after Shutdown.
var ErrClosed = errors.New("session archiver closed")

// NewArchiver starts the worker pool.
func NewArchiver(storage ObjectStorage, sessions SessionStore, cfg WorkerConfig, logger *slog.Logger) *Archiver {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 16
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if logger == nil {
		logger = slog.Default()
	}

	ctx, cancel := context.WithCancel(context.Background())

	a := &Archiver{
		storage:  storage,
		sessions: sessions,
		logger:   logger,
		jobs:     make(chan models.GameSession, cfg.QueueSize),
		ctx:      ctx,
		cancel:   cancel,
	}

	a.wg.Add(cfg.Workers)
	for i := 0; i < cfg.Workers; i++ {
		go a.worker()
	}
	return a
}

// Enqueue schedules session for archiving.
func (a *Archiver) Enqueue(ctx context.Context, session models.GameSession) error {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.closed {
		return ErrClosed
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case a.jobs <- session:
		return nil
	}
}

// Shutdown stops accepting work and waits for the workers to drain the queue.
func (a *Archiver) Shutdown(ctx context.Context) error {
	a.mu.Lock()
	if !a.closed {
		a.closed = true
		close(a.jobs)
	}
	a.mu.Unlock()

	done := make(chan struct{})
	go func() {
		a.wg.Wait()
		close(done)
	}()

	select {
	case <-ctx.Done():
		a.cancel()
		return ctx.Err()
	case <-done:
		a.cancel()
		return nil
	}
}

func (a *Archiver) worker() {
	defer a.wg.Done()
	for session := range a.jobs {
		if err := a.archive(session); err != nil {
			a.logger.Error("archive game session", "pairId", session.PairID, "sessionId", session.ID, "error", err)
		}
	}
}

func (a *Archiver) archive(session models.GameSession) error {
	if a.storage == nil || a.sessions == nil {
		return errors.New("archiver missing dependencies")
	}

	ctx, cancel := context.WithTimeout(a.ctx, 2*time.Minute)
	defer cancel()

	body, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}

	location, err := a.storage.Save(ctx, path.Join(session.PairID, session.ID+".json"), bytes.NewReader(body))
	if err != nil {
		return err
	}

	err = a.sessions.DeleteSession(ctx, session.PairID, session.ID)
	if err != nil && !errors.Is(err, repositories.ErrNotFound) {
		return fmt.Errorf("delete archived session: %w", err)
	}

	a.logger.Info("game session archived", "pairId", session.PairID, "sessionId", session.ID, "location", location)
	return nil
}
