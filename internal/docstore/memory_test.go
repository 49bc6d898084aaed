package docstore

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
)

func TestMemoryStore_CreateGetAndConflict(t *testing.T) {
	ctx := context.Background()
	clock := clockwork.NewFakeClockAt(time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC))
	store := NewMemoryStore(clock)
	defer store.Close()

	if err := store.Create(ctx, "codes/ABC123", map[string]any{"uid": "u1"}); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := store.Create(ctx, "codes/ABC123", map[string]any{"uid": "u2"}); !errors.Is(err, ErrAlreadyExists) {
		t.Fatalf("expected ErrAlreadyExists, got %v", err)
	}

	doc, err := store.Get(ctx, "codes/ABC123")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if doc.ID != "ABC123" || doc.Data["uid"] != "u1" {
		t.Fatalf("unexpected document: %+v", doc)
	}
	if !doc.CreateTime.Equal(clock.Now()) {
		t.Fatalf("expected create time %v, got %v", clock.Now(), doc.CreateTime)
	}

	if _, err := store.Get(ctx, "codes/missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestMemoryStore_InvalidPaths(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(nil)
	defer store.Close()

	for _, path := range []string{"", "users", "users/u1/messages", "users//x"} {
		if _, err := store.Get(ctx, path); !errors.Is(err, ErrInvalidPath) {
			t.Errorf("Get(%q): expected ErrInvalidPath, got %v", path, err)
		}
	}
	if _, err := store.Add(ctx, "pairs/p1", map[string]any{}); !errors.Is(err, ErrInvalidPath) {
		t.Fatalf("expected ErrInvalidPath for document path used as collection, got %v", err)
	}
}

func TestMemoryStore_SetMergeAndUpdateFieldPaths(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(clockwork.NewFakeClock())
	defer store.Close()

	path := "pairs/a_b/games/session_1"
	if err := store.Set(ctx, path, map[string]any{
		"createdBy": "a",
		"players":   map[string]any{"a": map[string]any{"score": 10}},
	}, false); err != nil {
		t.Fatalf("set: %v", err)
	}

	if err := store.Set(ctx, path, map[string]any{
		"players": map[string]any{"b": map[string]any{"score": 5}},
	}, true); err != nil {
		t.Fatalf("merge: %v", err)
	}

	if err := store.Update(ctx, path, map[string]any{
		"players.a.score": 20,
		"connectPercent":  75.5,
	}); err != nil {
		t.Fatalf("update: %v", err)
	}

	doc, err := store.Get(ctx, path)
	if err != nil {
		t.Fatalf("get: %v", err)
	}

	players := doc.Data["players"].(map[string]any)
	if got := players["a"].(map[string]any)["score"]; got != json.Number("20") {
		t.Fatalf("expected players.a.score 20, got %v", got)
	}
	if got := players["b"].(map[string]any)["score"]; got != json.Number("5") {
		t.Fatalf("expected players.b.score preserved by merge, got %v", got)
	}
	if doc.Data["createdBy"] != "a" {
		t.Fatalf("expected createdBy to survive merge, got %v", doc.Data["createdBy"])
	}

	if err := store.Update(ctx, "pairs/a_b/games/missing", map[string]any{"x": 1}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound updating missing document, got %v", err)
	}
}

func TestMemoryStore_ServerTimestamp(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	store := NewMemoryStore(clockwork.NewFakeClockAt(now))
	defer store.Close()

	id, err := store.Add(ctx, "pairs/a_b/messages", map[string]any{"text": "hi", "timestamp": ServerTimestamp})
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	doc, err := store.Get(ctx, Path("pairs/a_b/messages", id))
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if doc.Data["timestamp"] != now.Format(time.RFC3339Nano) {
		t.Fatalf("expected resolved timestamp, got %v", doc.Data["timestamp"])
	}
}

func TestMemoryStore_QueryFiltersOrderAndLimit(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(clockwork.NewFakeClock())
	defer store.Close()

	seed := map[string]map[string]any{
		"r1": {"toUserId": "b", "status": "pending", "createdAt": 3},
		"r2": {"toUserId": "b", "status": "pending", "createdAt": 1},
		"r3": {"toUserId": "b", "status": "accepted", "createdAt": 2},
		"r4": {"toUserId": "c", "status": "pending", "createdAt": 4},
	}
	for id, data := range seed {
		if err := store.Set(ctx, Path("requests", id), data, false); err != nil {
			t.Fatalf("seed %s: %v", id, err)
		}
	}

	docs, err := store.Query(ctx, Query{
		Collection: "requests",
		Filters:    []Filter{Eq("toUserId", "b"), Eq("status", "pending")},
		OrderBy:    "createdAt",
	})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(docs) != 2 || docs[0].ID != "r2" || docs[1].ID != "r1" {
		t.Fatalf("unexpected ordering: %+v", ids(docs))
	}

	docs, err = store.Query(ctx, Query{Collection: "requests", OrderBy: "createdAt", Direction: Descending, Limit: 2})
	if err != nil {
		t.Fatalf("query desc: %v", err)
	}
	if got := ids(docs); len(got) != 2 || got[0] != "r4" || got[1] != "r1" {
		t.Fatalf("unexpected descending result: %v", got)
	}
}

func TestMemoryStore_ArrayContains(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(nil)
	defer store.Close()

	_ = store.Set(ctx, "pairs/a_b", map[string]any{"users": []string{"a", "b"}}, false)
	_ = store.Set(ctx, "pairs/b_c", map[string]any{"users": []string{"b", "c"}}, false)

	docs, err := store.Query(ctx, Query{Collection: "pairs", Filters: []Filter{ArrayContains("users", "a")}})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if got := ids(docs); len(got) != 1 || got[0] != "a_b" {
		t.Fatalf("expected only a_b, got %v", got)
	}
}

func TestMemoryStore_ReturnedDataIsIsolated(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(nil)
	defer store.Close()

	_ = store.Set(ctx, "users/u1", map[string]any{"name": "Ann"}, false)
	doc, _ := store.Get(ctx, "users/u1")
	doc.Data["name"] = "mutated"

	again, _ := store.Get(ctx, "users/u1")
	if again.Data["name"] != "Ann" {
		t.Fatalf("expected stored data to be unaffected, got %v", again.Data["name"])
	}
}

func TestMemoryStore_SubscribeQueryDeliversSnapshots(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	store := NewMemoryStore(nil)
	defer store.Close()

	sub, err := store.SubscribeQuery(ctx, Query{Collection: "pairs/a_b/messages", OrderBy: "createdAt"})
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	defer sub.Close()

	first := next(t, sub)
	if len(first.Docs) != 0 {
		t.Fatalf("expected empty initial snapshot, got %d docs", len(first.Docs))
	}

	if _, err := store.Add(ctx, "pairs/a_b/messages", map[string]any{"text": "hello", "createdAt": 1}); err != nil {
		t.Fatalf("add: %v", err)
	}

	snap := waitFor(t, sub, func(s Snapshot) bool { return len(s.Docs) == 1 })
	if snap.Docs[0].Data["text"] != "hello" {
		t.Fatalf("unexpected document in snapshot: %+v", snap.Docs[0].Data)
	}

	// Writes to other collections never wake this subscription.
	_ = store.Set(ctx, "users/u1", map[string]any{"name": "x"}, false)
	select {
	case s := <-sub.Updates():
		t.Fatalf("unexpected snapshot after unrelated write: %+v", s)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestMemoryStore_SubscribeDocMissingAndDeleted(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(nil)
	defer store.Close()

	sub, err := store.SubscribeDoc(ctx, "pairs/a_b/games/session_1")
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	defer sub.Close()

	if _, ok := next(t, sub).First(); ok {
		t.Fatal("expected missing document to produce an empty snapshot")
	}

	_ = store.Set(ctx, "pairs/a_b/games/session_1", map[string]any{"createdBy": "a"}, false)
	waitFor(t, sub, func(s Snapshot) bool { _, ok := s.First(); return ok })

	_ = store.Delete(ctx, "pairs/a_b/games/session_1")
	waitFor(t, sub, func(s Snapshot) bool { return len(s.Docs) == 0 })
}

func TestMemoryStore_CloseEndsSubscriptions(t *testing.T) {
	store := NewMemoryStore(nil)
	sub, err := store.SubscribeQuery(context.Background(), Query{Collection: "pairs"})
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	next(t, sub)

	if err := store.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	select {
	case _, ok := <-sub.Updates():
		if ok {
			// drain a possible in-flight snapshot, then expect close
			if _, ok := <-sub.Updates(); ok {
				t.Fatal("expected updates channel to close")
			}
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for subscription to close")
	}

	if err := store.Set(context.Background(), "pairs/x_y", map[string]any{}, false); !errors.Is(err, ErrClosed) {
		t.Fatalf("expected ErrClosed after close, got %v", err)
	}
}

func next(t *testing.T, sub *Subscription) Snapshot {
	t.Helper()
	select {
	case snap, ok := <-sub.Updates():
		if !ok {
			t.Fatal("subscription closed unexpectedly")
		}
		return snap
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for snapshot")
	}
	return Snapshot{}
}

func waitFor(t *testing.T, sub *Subscription, ok func(Snapshot) bool) Snapshot {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case snap, open := <-sub.Updates():
			if !open {
				t.Fatal("subscription closed unexpectedly")
			}
			if ok(snap) {
				return snap
			}
		case <-deadline:
			t.Fatal("timed out waiting for matching snapshot")
		}
	}
}

func ids(docs []Document) []string {
	out := make([]string, len(docs))
	for i, doc := range docs {
		out[i] = doc.ID
	}
	return out
}
