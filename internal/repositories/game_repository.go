package repositories

import (
	"context"

	"github.com/socialconnect/backend/internal/docstore"
	"github.com/socialconnect/backend/internal/models"
)

// GameRepository defines data access for shared game session documents.
type GameRepository interface {
	CreateSession(ctx context.Context, session models.GameSession) error
	GetSession(ctx context.Context, pairID, sessionID string) (models.GameSession, error)
	ListSessions(ctx context.Context, pairID string) ([]models.GameSession, error)
	UpdatePlayer(ctx context.Context, pairID, sessionID, userID string, state models.PlayerState, connectPercent float64) error
	WatchSession(ctx context.Context, pairID, sessionID string) (*Stream[models.GameSession], error)
	WatchSessions(ctx context.Context, pairID string) (*Stream[models.GameSession], error)
	DeleteSession(ctx context.Context, pairID, sessionID string) error
}

// DocGameRepository stores sessions at pairs/{pair}/games/{session}.
type DocGameRepository struct {
	store docstore.Store
}

// NewDocGameRepository constructs a game repository over store.
func NewDocGameRepository(store docstore.Store) *DocGameRepository {
	return &DocGameRepository{store: store}
}

// CreateSession writes a new session document. It fails with ErrConflict if the id exists.
func (r *DocGameRepository) CreateSession(ctx context.Context, session models.GameSession) error {
	data, err := encode(session)
	if err != nil {
		return err
	}
	delete(data, "id")
	return translate("create game session", r.store.Create(ctx, sessionPath(session.PairID, session.ID), data))
}

func (r *DocGameRepository) GetSession(ctx context.Context, pairID, sessionID string) (models.GameSession, error) {
	doc, err := r.store.Get(ctx, sessionPath(pairID, sessionID))
	if err != nil {
		return models.GameSession{}, translate("get game session", err)
	}
	return sessionFromDoc(doc)
}

// ListSessions returns the pair's sessions, newest first.
func (r *DocGameRepository) ListSessions(ctx context.Context, pairID string) ([]models.GameSession, error) {
	docs, err := r.store.Query(ctx, sessionsQuery(pairID))
	if err != nil {
		return nil, translate("list game sessions", err)
	}
	return collect(docs, sessionFromDoc)
}

// UpdatePlayer writes only the caller's entry in the players map plus the shared scalar.
func (r *DocGameRepository) UpdatePlayer(ctx context.Context, pairID, sessionID, userID string, state models.PlayerState, connectPercent float64) error {
	entry, err := encode(state)
	if err != nil {
		return err
	}
	return translate("update player", r.store.Update(ctx, sessionPath(pairID, sessionID), map[string]any{
		"players." + userID: entry,
		"connectPercent":    connectPercent,
	}))
}

func (r *DocGameRepository) WatchSession(ctx context.Context, pairID, sessionID string) (*Stream[models.GameSession], error) {
	sub, err := r.store.SubscribeDoc(ctx, sessionPath(pairID, sessionID))
	if err != nil {
		return nil, translate("watch game session", err)
	}
	return newStream(ctx, sub, sessionFromDoc), nil
}

func (r *DocGameRepository) WatchSessions(ctx context.Context, pairID string) (*Stream[models.GameSession], error) {
	sub, err := r.store.SubscribeQuery(ctx, sessionsQuery(pairID))
	if err != nil {
		return nil, translate("watch game sessions", err)
	}
	return newStream(ctx, sub, sessionFromDoc), nil
}

func (r *DocGameRepository) DeleteSession(ctx context.Context, pairID, sessionID string) error {
	return translate("delete game session", r.store.Delete(ctx, sessionPath(pairID, sessionID)))
}

func sessionPath(pairID, sessionID string) string {
	return docstore.Path(pairsCollection, pairID, "games", sessionID)
}

func sessionsQuery(pairID string) docstore.Query {
	return docstore.Query{
		Collection: docstore.Path(pairsCollection, pairID, "games"),
		OrderBy:    "createdAt",
		Direction:  docstore.Descending,
	}
}

func sessionFromDoc(doc docstore.Document) (models.GameSession, error) {
	var session models.GameSession
	if err := decode(doc.Data, &session); err != nil {
		return models.GameSession{}, err
	}
	session.ID = doc.ID
	if session.Players == nil {
		session.Players = map[string]models.PlayerState{}
	}
	return session, nil
}

var _ GameRepository = (*DocGameRepository)(nil)
