package profiles

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/socialconnect/backend/internal/models"
)

type countingSource struct {
	calls int
	err   error
}

func (s *countingSource) Get(_ context.Context, id string) (models.User, error) {
	s.calls++
	if s.err != nil {
		return models.User{}, s.err
	}
	return models.User{ID: id, Name: "user-" + id}, nil
}

func TestCacheServesFreshEntries(t *testing.T) {
	clock := clockwork.NewFakeClock()
	source := &countingSource{}
	cache := NewCache(source, time.Minute, clock)

	for i := 0; i < 3; i++ {
		user, err := cache.Get(context.Background(), "u1")
		if err != nil {
			t.Fatalf("get: %v", err)
		}
		if user.Name != "user-u1" {
			t.Fatalf("unexpected user: %+v", user)
		}
	}
	if source.calls != 1 {
		t.Fatalf("expected one source call, got %d", source.calls)
	}

	clock.Advance(2 * time.Minute)
	if _, err := cache.Get(context.Background(), "u1"); err != nil {
		t.Fatalf("get after expiry: %v", err)
	}
	if source.calls != 2 {
		t.Fatalf("expected expired entry to be refreshed, got %d calls", source.calls)
	}

	cache.Invalidate("u1")
	if _, err := cache.Get(context.Background(), "u1"); err != nil {
		t.Fatalf("get after invalidate: %v", err)
	}
	if source.calls != 3 {
		t.Fatalf("expected invalidated entry to be reloaded, got %d calls", source.calls)
	}
}

func TestCacheDoesNotStoreErrors(t *testing.T) {
	source := &countingSource{err: errors.New("boom")}
	cache := NewCache(source, time.Minute, clockwork.NewFakeClock())

	if _, err := cache.Get(context.Background(), "u1"); err == nil {
		t.Fatal("expected error from source")
	}
	if _, err := cache.Get(context.Background(), "u1"); err == nil {
		t.Fatal("expected error from source")
	}
	if source.calls != 2 {
		t.Fatalf("expected failures to bypass the cache, got %d calls", source.calls)
	}

	var nilCache *Cache
	if _, err := nilCache.Get(context.Background(), "u1"); !errors.Is(err, ErrSourceUnavailable) {
		t.Fatalf("expected ErrSourceUnavailable, got %v", err)
	}
}
