package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/socialconnect/backend/internal/auth"
	"github.com/socialconnect/backend/internal/docstore"
)

const authSessionsCollection = "authsessions"

// DocSessionStore persists issued tokens in the document store.
type DocSessionStore struct {
	store docstore.Store
}

// NewDocSessionStore constructs a session store backed by the document store.
func NewDocSessionStore(store docstore.Store) *DocSessionStore {
	return &DocSessionStore{store: store}
}

type sessionRecord struct {
	UserID    string    `json:"uid"`
	Kind      string    `json:"kind"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// Save stores or updates a session record.
func (s *DocSessionStore) Save(ctx context.Context, session auth.Session) error {
	data, err := encode(sessionRecord{
		UserID:    session.UserID,
		Kind:      string(session.Kind),
		ExpiresAt: session.ExpiresAt.UTC(),
	})
	if err != nil {
		return err
	}
	if err := s.store.Set(ctx, docstore.Path(authSessionsCollection, session.Token), data, false); err != nil {
		return fmt.Errorf("upsert session: %w", err)
	}
	return nil
}

// Find loads a session by its token.
func (s *DocSessionStore) Find(ctx context.Context, token string) (auth.Session, error) {
	doc, err := s.store.Get(ctx, docstore.Path(authSessionsCollection, token))
	if err != nil {
		if errors.Is(err, docstore.ErrNotFound) || errors.Is(err, docstore.ErrInvalidPath) {
			return auth.Session{}, auth.ErrSessionNotFound
		}
		return auth.Session{}, fmt.Errorf("select session: %w", err)
	}

	var record sessionRecord
	if err := decode(doc.Data, &record); err != nil {
		return auth.Session{}, err
	}
	return auth.Session{
		Token:     token,
		Kind:      auth.TokenKind(record.Kind),
		UserID:    record.UserID,
		ExpiresAt: record.ExpiresAt.UTC(),
	}, nil
}

// Delete removes a session by its token.
func (s *DocSessionStore) Delete(ctx context.Context, token string) error {
	if _, err := s.Find(ctx, token); err != nil {
		return err
	}
	if err := s.store.Delete(ctx, docstore.Path(authSessionsCollection, token)); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

var _ auth.SessionStore = (*DocSessionStore)(nil)
