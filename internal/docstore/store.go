package docstore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"
)

var (
	// ErrNotFound indicates the requested document does not exist.
	ErrNotFound = errors.New("document not found")
	// ErrAlreadyExists indicates a conditional create found an existing document.
	ErrAlreadyExists = errors.New("document already exists")
	// ErrInvalidPath indicates a malformed document or collection path.
	ErrInvalidPath = errors.New("invalid document path")
	// ErrClosed is returned by stores that have been shut down.
	ErrClosed = errors.New("document store closed")
)

// Document is a single JSON-like record addressed by a slash separated path.
type Document struct {
	Path       string
	ID         string
	Data       map[string]any
	CreateTime time.Time
	UpdateTime time.Time
}

// Op is a query filter operator.
type Op string

const (
	OpEqual         Op = "=="
	OpArrayContains Op = "array-contains"
)

// Filter restricts a query to documents whose field matches Value.
// Field may be a dotted path into nested maps.
type Filter struct {
	Field string
	Op    Op
	Value any
}

// Eq builds an equality filter.
func Eq(field string, value any) Filter {
	return Filter{Field: field, Op: OpEqual, Value: value}
}

// ArrayContains builds a filter matching array fields that hold value.
func ArrayContains(field string, value any) Filter {
	return Filter{Field: field, Op: OpArrayContains, Value: value}
}

// Direction controls the sort order of a query.
type Direction int

const (
	Ascending Direction = iota
	Descending
)

// Query selects documents from one collection.
type Query struct {
	Collection string
	Filters    []Filter
	OrderBy    string
	Direction  Direction
	Limit      int
}

// Snapshot is the full result set delivered to a subscriber. Document
// subscriptions carry zero (missing) or one document.
type Snapshot struct {
	Docs []Document
	Err  error
}

// First returns the first document of the snapshot, if any.
func (s Snapshot) First() (Document, bool) {
	if len(s.Docs) == 0 {
		return Document{}, false
	}
	return s.Docs[0], true
}

// Store is the document database the application is built on: filtered
// queries, single-document writes and push-based live subscriptions.
type Store interface {
	Get(ctx context.Context, path string) (Document, error)
	Query(ctx context.Context, q Query) ([]Document, error)
	Create(ctx context.Context, path string, data map[string]any) error
	Set(ctx context.Context, path string, data map[string]any, merge bool) error
	Update(ctx context.Context, path string, patch map[string]any) error
	Add(ctx context.Context, collection string, data map[string]any) (string, error)
	Delete(ctx context.Context, path string) error
	SubscribeDoc(ctx context.Context, path string) (*Subscription, error)
	SubscribeQuery(ctx context.Context, q Query) (*Subscription, error)
	Close() error
}

// Subscription delivers snapshots until it is closed or its context ends.
type Subscription struct {
	updates <-chan Snapshot
	stop    func()
	once    sync.Once
}

// Updates returns the snapshot channel. It is closed when the subscription ends.
func (s *Subscription) Updates() <-chan Snapshot {
	return s.updates
}

// Close stops delivery. It is safe to call more than once.
func (s *Subscription) Close() {
	if s == nil {
		return
	}
	s.once.Do(s.stop)
}

// Path joins path segments.
func Path(segments ...string) string {
	return strings.Join(segments, "/")
}

// splitPath separates a document path into its collection path and id.
func splitPath(path string) (string, string, error) {
	segments := strings.Split(strings.Trim(path, "/"), "/")
	if len(segments) < 2 || len(segments)%2 != 0 {
		return "", "", fmt.Errorf("%w: %q", ErrInvalidPath, path)
	}
	for _, segment := range segments {
		if strings.TrimSpace(segment) == "" {
			return "", "", fmt.Errorf("%w: %q", ErrInvalidPath, path)
		}
	}
	return strings.Join(segments[:len(segments)-1], "/"), segments[len(segments)-1], nil
}

func validateCollection(collection string) error {
	segments := strings.Split(strings.Trim(collection, "/"), "/")
	if len(segments)%2 != 1 {
		return fmt.Errorf("%w: %q", ErrInvalidPath, collection)
	}
	for _, segment := range segments {
		if strings.TrimSpace(segment) == "" {
			return fmt.Errorf("%w: %q", ErrInvalidPath, collection)
		}
	}
	return nil
}

func isNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
