package docstore

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
)

// MemoryStore is an in-process Store used by tests and local development.
type MemoryStore struct {
	mu          sync.RWMutex
	collections map[string]map[string]Document
	clock       clockwork.Clock
	hub         *hub
	closed      bool
}

// NewMemoryStore constructs an empty store. A nil clock uses the wall clock.
func NewMemoryStore(clock clockwork.Clock) *MemoryStore {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &MemoryStore{
		collections: make(map[string]map[string]Document),
		clock:       clock,
		hub:         newHub(),
	}
}

func (s *MemoryStore) Get(ctx context.Context, path string) (Document, error) {
	collection, id, err := splitPath(path)
	if err != nil {
		return Document{}, err
	}
	if err := ctx.Err(); err != nil {
		return Document{}, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return Document{}, ErrClosed
	}
	doc, ok := s.collections[collection][id]
	if !ok {
		return Document{}, fmt.Errorf("get %s: %w", path, ErrNotFound)
	}
	return cloneDocument(doc), nil
}

func (s *MemoryStore) Query(ctx context.Context, q Query) ([]Document, error) {
	if err := validateCollection(q.Collection); err != nil {
		return nil, err
	}
	filters, err := normalizeFilters(q.Filters)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrClosed
	}
	docs := make([]Document, 0, len(s.collections[q.Collection]))
	for _, doc := range s.collections[q.Collection] {
		if matches(doc.Data, filters) {
			docs = append(docs, cloneDocument(doc))
		}
	}
	return finish(docs, q), nil
}

func (s *MemoryStore) Create(ctx context.Context, path string, data map[string]any) error {
	return s.write(ctx, path, func(existing Document, found bool) (map[string]any, error) {
		if found {
			return nil, fmt.Errorf("create %s: %w", path, ErrAlreadyExists)
		}
		return data, nil
	})
}

func (s *MemoryStore) Set(ctx context.Context, path string, data map[string]any, merge bool) error {
	return s.write(ctx, path, func(existing Document, found bool) (map[string]any, error) {
		if merge && found {
			return mergeData(existing.Data, data), nil
		}
		return data, nil
	})
}

func (s *MemoryStore) Update(ctx context.Context, path string, patch map[string]any) error {
	return s.write(ctx, path, func(existing Document, found bool) (map[string]any, error) {
		if !found {
			return nil, fmt.Errorf("update %s: %w", path, ErrNotFound)
		}
		return applyPatch(existing.Data, patch), nil
	})
}

func (s *MemoryStore) Add(ctx context.Context, collection string, data map[string]any) (string, error) {
	if err := validateCollection(collection); err != nil {
		return "", err
	}
	id := uuid.NewString()
	if err := s.Create(ctx, Path(collection, id), data); err != nil {
		return "", err
	}
	return id, nil
}

func (s *MemoryStore) Delete(ctx context.Context, path string) error {
	collection, id, err := splitPath(path)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	_, existed := s.collections[collection][id]
	delete(s.collections[collection], id)
	s.mu.Unlock()

	if existed {
		s.hub.publish(collection)
	}
	return nil
}

func (s *MemoryStore) SubscribeDoc(ctx context.Context, path string) (*Subscription, error) {
	collection, _, err := splitPath(path)
	if err != nil {
		return nil, err
	}
	return s.hub.watch(ctx, collection, func(ctx context.Context) (Snapshot, error) {
		return docSnapshot(ctx, s, path)
	})
}

func (s *MemoryStore) SubscribeQuery(ctx context.Context, q Query) (*Subscription, error) {
	if err := validateCollection(q.Collection); err != nil {
		return nil, err
	}
	return s.hub.watch(ctx, q.Collection, func(ctx context.Context) (Snapshot, error) {
		docs, err := s.Query(ctx, q)
		if err != nil {
			return Snapshot{}, err
		}
		return Snapshot{Docs: docs}, nil
	})
}

// Close ends every subscription. Further calls return ErrClosed.
func (s *MemoryStore) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	s.hub.close()
	return nil
}

func (s *MemoryStore) write(ctx context.Context, path string, next func(existing Document, found bool) (map[string]any, error)) error {
	collection, id, err := splitPath(path)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	existing, found := s.collections[collection][id]
	now := s.clock.Now().UTC()

	data, err := next(existing, found)
	if err == nil {
		data, err = prepare(data, now)
	}
	if err != nil {
		s.mu.Unlock()
		return err
	}

	doc := Document{Path: Path(collection, id), ID: id, Data: data, CreateTime: now, UpdateTime: now}
	if found {
		doc.CreateTime = existing.CreateTime
	}
	if s.collections[collection] == nil {
		s.collections[collection] = make(map[string]Document)
	}
	s.collections[collection][id] = doc
	s.mu.Unlock()

	s.hub.publish(collection)
	return nil
}

// docSnapshot evaluates a single-document subscription; a missing document
// yields an empty snapshot rather than an error.
func docSnapshot(ctx context.Context, store Store, path string) (Snapshot, error) {
	doc, err := store.Get(ctx, path)
	if err != nil {
		if isNotFound(err) {
			return Snapshot{}, nil
		}
		return Snapshot{}, err
	}
	return Snapshot{Docs: []Document{doc}}, nil
}
