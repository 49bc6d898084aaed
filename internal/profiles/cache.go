package profiles

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/socialconnect/backend/internal/models"
)

// ErrSourceUnavailable is returned when the cache has nothing to delegate to.
var ErrSourceUnavailable = errors.New("profile source unavailable")

// Source resolves user profiles by id.
type Source interface {
	Get(ctx context.Context, id string) (models.User, error)
}

type cacheEntry struct {
	user    models.User
	expires time.Time
}

// Cache wraps a Source with a TTL-based in-memory cache. Request lists look up
// the same senders repeatedly, so profiles are served from memory until they expire.
type Cache struct {
	source Source
	ttl    time.Duration
	clock  clockwork.Clock

	mu    sync.RWMutex
	items map[string]cacheEntry
}

// NewCache returns a Cache that keeps lookups for ttl. A nil clock uses the wall clock.
func NewCache(source Source, ttl time.Duration, clock clockwork.Clock) *Cache {
	if ttl <= 0 {
		ttl = time.Minute
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Cache{
		source: source,
		ttl:    ttl,
		clock:  clock,
		items:  make(map[string]cacheEntry),
	}
}

// Get returns a cached profile when fresh, otherwise it asks the source and stores the result.
func (c *Cache) Get(ctx context.Context, id string) (models.User, error) {
	if c == nil || c.source == nil {
		return models.User{}, ErrSourceUnavailable
	}

	now := c.clock.Now()

	c.mu.RLock()
	entry, ok := c.items[id]
	c.mu.RUnlock()
	if ok && now.Before(entry.expires) {
		return entry.user, nil
	}

	user, err := c.source.Get(ctx, id)
	if err != nil {
		return models.User{}, err
	}

	c.mu.Lock()
	c.items[id] = cacheEntry{user: user, expires: now.Add(c.ttl)}
	c.mu.Unlock()

	return user, nil
}

// Invalidate drops id so the next Get reads through. Called after profile edits.
func (c *Cache) Invalidate(id string) {
	if c == nil {
		return
	}
	c.mu.Lock()
	delete(c.items, id)
	c.mu.Unlock()
}
