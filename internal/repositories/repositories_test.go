package repositories

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/socialconnect/backend/internal/auth"
	"github.com/socialconnect/backend/internal/docstore"
	"github.com/socialconnect/backend/internal/models"
)

func newStore(t *testing.T) *docstore.MemoryStore {
	t.Helper()
	store := docstore.NewMemoryStore(clockwork.NewFakeClockAt(time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)))
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestDocUserRepository_CreateFindAndUpdate(t *testing.T) {
	ctx := context.Background()
	repo := NewDocUserRepository(newStore(t))

	user := models.User{ID: "u1", Name: "Ann", Place: "Oslo", Gender: "female", Code: "ABC123", Email: "ann@example.com", CreatedAt: 1}
	if err := repo.Create(ctx, user); err != nil {
		t.Fatalf("create user: %v", err)
	}
	if err := repo.Create(ctx, user); !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict creating duplicate user, got %v", err)
	}

	found, err := repo.FindByCode(ctx, "abc123")
	if err != nil {
		t.Fatalf("find by code: %v", err)
	}
	if found.ID != "u1" || found.Name != "Ann" {
		t.Fatalf("unexpected user: %+v", found)
	}

	if _, err := repo.FindByCode(ctx, "ZZZ999"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown code, got %v", err)
	}

	user.Age = 30
	user.Place = "Bergen"
	if err := repo.Update(ctx, user); err != nil {
		t.Fatalf("update user: %v", err)
	}
	fetched, err := repo.Get(ctx, "u1")
	if err != nil {
		t.Fatalf("get user: %v", err)
	}
	if fetched.Age != 30 || fetched.Place != "Bergen" || fetched.Email != "ann@example.com" {
		t.Fatalf("expected profile update to persist, got %+v", fetched)
	}

	if err := repo.Update(ctx, models.User{ID: "missing"}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound updating missing user, got %v", err)
	}
}

func TestDocUserRepository_CodeReservation(t *testing.T) {
	ctx := context.Background()
	repo := NewDocUserRepository(newStore(t))

	if err := repo.Reserve(ctx, "abc123", "u1"); err != nil {
		t.Fatalf("reserve: %v", err)
	}
	if err := repo.Reserve(ctx, "ABC123", "u2"); !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict reserving a held code, got %v", err)
	}
	if err := repo.Release(ctx, "ABC123"); err != nil {
		t.Fatalf("release: %v", err)
	}
	if err := repo.Reserve(ctx, "ABC123", "u2"); err != nil {
		t.Fatalf("reserve after release: %v", err)
	}
}

func TestDocUserRepository_Credentials(t *testing.T) {
	ctx := context.Background()
	repo := NewDocUserRepository(newStore(t))

	cred := models.Credential{Email: "Ann@Example.com", UserID: "u1", PasswordHash: "hash"}
	if err := repo.CreateCredential(ctx, cred); err != nil {
		t.Fatalf("create credential: %v", err)
	}
	if err := repo.CreateCredential(ctx, cred); !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict for duplicate email, got %v", err)
	}

	found, err := repo.FindCredential(ctx, "ann@example.com")
	if err != nil {
		t.Fatalf("find credential: %v", err)
	}
	if found.UserID != "u1" || found.PasswordHash != "hash" {
		t.Fatalf("unexpected credential: %+v", found)
	}
}

func TestDocPairRepository_ListTouchAndDelete(t *testing.T) {
	ctx := context.Background()
	repo := NewDocPairRepository(newStore(t))

	for _, pair := range []models.Pair{
		{ID: "a_b", Users: []string{"a", "b"}, LastActivity: 1},
		{ID: "a_c", Users: []string{"a", "c"}, LastActivity: 2},
		{ID: "b_c", Users: []string{"b", "c"}, LastActivity: 3},
	} {
		if err := repo.Create(ctx, pair); err != nil {
			t.Fatalf("create pair %s: %v", pair.ID, err)
		}
	}
	if err := repo.Create(ctx, models.Pair{ID: "a_b", Users: []string{"a", "b"}}); !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict for existing pair, got %v", err)
	}

	if err := repo.Touch(ctx, "a_b", 10); err != nil {
		t.Fatalf("touch: %v", err)
	}

	pairs, err := repo.ListForUser(ctx, "a")
	if err != nil {
		t.Fatalf("list pairs: %v", err)
	}
	if len(pairs) != 2 || pairs[0].ID != "a_b" || pairs[1].ID != "a_c" {
		t.Fatalf("expected pairs ordered by last activity, got %+v", pairs)
	}

	if err := repo.Delete(ctx, "a_b"); err != nil {
		t.Fatalf("delete pair: %v", err)
	}
	if _, err := repo.Get(ctx, "a_b"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
	if err := repo.Touch(ctx, "a_b", 11); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound touching deleted pair, got %v", err)
	}
}

func TestDocRequestRepository_StatusTransitions(t *testing.T) {
	ctx := context.Background()
	repo := NewDocRequestRepository(newStore(t))

	id, err := repo.Create(ctx, models.ConnectionRequest{
		FromUserID: "a", ToUserID: "b", Status: models.RequestPending, Type: "connection", CreatedAt: 5,
	})
	if err != nil {
		t.Fatalf("create request: %v", err)
	}

	pending, err := repo.FindPending(ctx, "a", "b")
	if err != nil || len(pending) != 1 {
		t.Fatalf("expected one pending request, got %d (%v)", len(pending), err)
	}

	received, err := repo.ListReceived(ctx, "b")
	if err != nil || len(received) != 1 || received[0].ID != id {
		t.Fatalf("expected request in received list, got %+v (%v)", received, err)
	}

	if err := repo.UpdateStatus(ctx, id, models.RequestAccepted, 99); err != nil {
		t.Fatalf("accept: %v", err)
	}
	accepted, err := repo.Get(ctx, id)
	if err != nil {
		t.Fatalf("get request: %v", err)
	}
	if accepted.Status != models.RequestAccepted || accepted.AcceptedAt != 99 {
		t.Fatalf("unexpected accepted request: %+v", accepted)
	}

	sent, err := repo.ListSent(ctx, "a")
	if err != nil || len(sent) != 0 {
		t.Fatalf("accepted request must leave the sent pending list, got %+v (%v)", sent, err)
	}
}

func TestDocMessageRepository_OrdersByClientTime(t *testing.T) {
	ctx := context.Background()
	repo := NewDocMessageRepository(newStore(t))

	for _, msg := range []models.Message{
		{Text: "second", From: "a", CreatedAt: 200},
		{Text: "first", From: "b", CreatedAt: 100},
	} {
		if _, err := repo.Append(ctx, "a_b", msg); err != nil {
			t.Fatalf("append: %v", err)
		}
	}

	messages, err := repo.List(ctx, "a_b")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(messages) != 2 || messages[0].Text != "first" || messages[1].Text != "second" {
		t.Fatalf("unexpected order: %+v", messages)
	}
	if messages[0].Timestamp.IsZero() {
		t.Fatal("expected server timestamp to be assigned")
	}
}

func TestDocGameRepository_UpdatePlayerOwnsOnlyItsEntry(t *testing.T) {
	ctx := context.Background()
	repo := NewDocGameRepository(newStore(t))

	session := models.GameSession{
		ID:        "session_1",
		PairID:    "a_b",
		CreatedBy: "a",
		CreatedAt: 1,
		Players:   map[string]models.PlayerState{"a": {Score: 10, Level: 1, Phase: "A"}},
	}
	if err := repo.CreateSession(ctx, session); err != nil {
		t.Fatalf("create session: %v", err)
	}

	stream, err := repo.WatchSession(ctx, "a_b", "session_1")
	if err != nil {
		t.Fatalf("watch: %v", err)
	}
	defer stream.Close()

	if err := repo.UpdatePlayer(ctx, "a_b", "session_1", "b", models.PlayerState{Position: [3]float64{1, 1, 2}, Score: 5}, 80); err != nil {
		t.Fatalf("update player: %v", err)
	}

	deadline := time.After(2 * time.Second)
	for {
		select {
		case sessions := <-stream.Updates():
			if len(sessions) != 1 {
				continue
			}
			got := sessions[0]
			if _, ok := got.Players["b"]; !ok {
				continue
			}
			if got.Players["a"].Score != 10 {
				t.Fatalf("peer entry must be untouched, got %+v", got.Players["a"])
			}
			if got.Players["b"].Position != [3]float64{1, 1, 2} || got.ConnectPercent != 80 {
				t.Fatalf("unexpected session: %+v", got)
			}
			return
		case <-deadline:
			t.Fatal("timed out waiting for session update")
		}
	}
}

func TestDocSessionStore_SaveFindAndDelete(t *testing.T) {
	ctx := context.Background()
	store := NewDocSessionStore(newStore(t))

	expires := time.Date(2024, 3, 2, 9, 0, 0, 0, time.UTC)
	session := auth.Session{Token: "tok", Kind: auth.RefreshToken, UserID: "u1", ExpiresAt: expires}
	if err := store.Save(ctx, session); err != nil {
		t.Fatalf("save session: %v", err)
	}

	loaded, err := store.Find(ctx, "tok")
	if err != nil {
		t.Fatalf("find session: %v", err)
	}
	if loaded.UserID != "u1" || loaded.Kind != auth.RefreshToken || !loaded.ExpiresAt.Equal(expires) {
		t.Fatalf("unexpected session loaded: %+v", loaded)
	}

	if err := store.Delete(ctx, "tok"); err != nil {
		t.Fatalf("delete session: %v", err)
	}
	if _, err := store.Find(ctx, "tok"); !errors.Is(err, auth.ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound after delete, got %v", err)
	}
	if err := store.Delete(ctx, "tok"); !errors.Is(err, auth.ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound deleting twice, got %v", err)
	}
}
