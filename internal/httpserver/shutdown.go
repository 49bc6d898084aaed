package httpserver

import (
	"context"
	"errors"
	"time"
)

// ShutdownTimeout controls how long to wait for graceful shutdowns.
var ShutdownTimeout = 10 * time.Second

// Shutdown stops accepting connections and cancels every request context, so
// streaming handlers on hijacked connections return too. It waits for handlers
// until ctx ends and then closes whatever is left.
func (s *Server) Shutdown(ctx context.Context) error {
	s.cancelBase()
	err := s.inner.Shutdown(ctx)
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return errors.Join(err, s.inner.Close())
	}
	return err
}
