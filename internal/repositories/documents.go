package repositories

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/socialconnect/backend/internal/docstore"
	"github.com/socialconnect/backend/internal/logging"
)

// encode converts a model into document data through its JSON tags.
func encode(v any) (map[string]any, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode record: %w", err)
	}
	var data map[string]any
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("encode record: %w", err)
	}
	return data, nil
}

// decode fills v from document data. Fields the model does not know are ignored.
func decode(data map[string]any, v any) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("decode record: %w", err)
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("decode record: %w", err)
	}
	return nil
}

// Stream delivers decoded snapshots of a live subscription. Slow readers only
// see the most recent snapshot.
type Stream[T any] struct {
	sub     *docstore.Subscription
	updates chan []T
}

// Updates returns the snapshot channel. It is closed when the stream ends.
func (s *Stream[T]) Updates() <-chan []T {
	return s.updates
}

// Close stops the underlying subscription.
func (s *Stream[T]) Close() {
	if s == nil {
		return
	}
	s.sub.Close()
}

func newStream[T any](ctx context.Context, sub *docstore.Subscription, convert func(docstore.Document) (T, error)) *Stream[T] {
	s := &Stream[T]{sub: sub, updates: make(chan []T, 1)}
	logger := logging.FromContext(ctx)

	go func() {
		defer close(s.updates)
		for snap := range sub.Updates() {
			if snap.Err != nil {
				logger.Error("live snapshot failed", "error", snap.Err)
				continue
			}

			items := make([]T, 0, len(snap.Docs))
			for _, doc := range snap.Docs {
				item, err := convert(doc)
				if err != nil {
					logger.Error("decode live snapshot document", "path", doc.Path, "error", err)
					continue
				}
				items = append(items, item)
			}

			latest(s.updates, items)
		}
	}()

	return s
}

// latest replaces any undelivered value in ch with v.
func latest[T any](ch chan T, v T) {
	for {
		select {
		case ch <- v:
			return
		default:
		}
		select {
		case <-ch:
		default:
		}
	}
}

func collect[T any](docs []docstore.Document, convert func(docstore.Document) (T, error)) ([]T, error) {
	out := make([]T, 0, len(docs))
	for _, doc := range docs {
		item, err := convert(doc)
		if err != nil {
			return nil, err
		}
		out = append(out, item)
	}
	return out, nil
}
