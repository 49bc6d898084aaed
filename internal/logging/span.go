package logging

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// Span is a timed unit of work inside a trace. Entries logged through the
// span's context carry its ids; End writes one summary entry.
type Span struct {
	name   string
	userID string
	logger *slog.Logger
	start  time.Time
}

// StartSpan opens a span under whatever span ctx already carries, starting a
// new trace when there is none. The returned context holds the span's logger.
func StartSpan(ctx context.Context, name string) (context.Context, *Span) {
	if ctx == nil {
		ctx = context.Background()
	}
	logger := FromContext(ctx)

	if TraceIDFromContext(ctx) == "" {
		traceID := uuid.NewString()
		ctx = WithTraceID(ctx, traceID)
		logger = logger.With(slog.String("trace_id", traceID))
	}

	spanID := uuid.NewString()
	attrs := []any{slog.String("span_id", spanID), slog.String("span_name", name)}
	if parent := SpanIDFromContext(ctx); parent != "" {
		attrs = append(attrs, slog.String("parent_span_id", parent))
	}
	logger = logger.With(attrs...)

	ctx = WithSpanID(WithLogger(ctx, logger), spanID)
	return ctx, &Span{
		name:   name,
		userID: UserIDFromContext(ctx),
		logger: logger,
		start:  time.Now(),
	}
}

// End logs the span's duration and the user it ran for, if any.
func (s *Span) End() {
	if s == nil {
		return
	}
	summary := []any{slog.Duration("duration", time.Since(s.start))}
	if s.userID != "" {
		summary = append(summary, slog.String("user", s.userID))
	}
	s.logger.Info("span completed", slog.Group("span", summary...))
}
