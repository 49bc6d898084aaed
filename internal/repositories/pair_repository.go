package repositories

import (
	"context"

	"github.com/socialconnect/backend/internal/docstore"
	"github.com/socialconnect/backend/internal/models"
)

const pairsCollection = "pairs"

// PairRepository defines data access for pairs.
type PairRepository interface {
	Get(ctx context.Context, id string) (models.Pair, error)
	Create(ctx context.Context, pair models.Pair) error
	ListForUser(ctx context.Context, userID string) ([]models.Pair, error)
	WatchForUser(ctx context.Context, userID string) (*Stream[models.Pair], error)
	Touch(ctx context.Context, id string, at int64) error
	Delete(ctx context.Context, id string) error
	ListAll(ctx context.Context) ([]models.Pair, error)
}

// DocPairRepository stores pairs at pairs/{id}.
type DocPairRepository struct {
	store docstore.Store
}

// NewDocPairRepository constructs a pair repository over store.
func NewDocPairRepository(store docstore.Store) *DocPairRepository {
	return &DocPairRepository{store: store}
}

func (r *DocPairRepository) Get(ctx context.Context, id string) (models.Pair, error) {
	doc, err := r.store.Get(ctx, docstore.Path(pairsCollection, id))
	if err != nil {
		return models.Pair{}, translate("get pair", err)
	}
	return pairFromDoc(doc)
}

// Create writes the pair if no pair with the same id exists yet.
func (r *DocPairRepository) Create(ctx context.Context, pair models.Pair) error {
	data, err := encode(pair)
	if err != nil {
		return err
	}
	return translate("create pair", r.store.Create(ctx, docstore.Path(pairsCollection, pair.ID), data))
}

func (r *DocPairRepository) ListForUser(ctx context.Context, userID string) ([]models.Pair, error) {
	docs, err := r.store.Query(ctx, pairsQuery(userID))
	if err != nil {
		return nil, translate("list pairs", err)
	}
	return collect(docs, pairFromDoc)
}

func (r *DocPairRepository) WatchForUser(ctx context.Context, userID string) (*Stream[models.Pair], error) {
	sub, err := r.store.SubscribeQuery(ctx, pairsQuery(userID))
	if err != nil {
		return nil, translate("watch pairs", err)
	}
	return newStream(ctx, sub, pairFromDoc), nil
}

// Touch records activity on the pair.
func (r *DocPairRepository) Touch(ctx context.Context, id string, at int64) error {
	return translate("touch pair", r.store.Update(ctx, docstore.Path(pairsCollection, id), map[string]any{
		"lastActivity": at,
	}))
}

func (r *DocPairRepository) Delete(ctx context.Context, id string) error {
	return translate("delete pair", r.store.Delete(ctx, docstore.Path(pairsCollection, id)))
}

// ListAll returns every pair. Used by background maintenance.
func (r *DocPairRepository) ListAll(ctx context.Context) ([]models.Pair, error) {
	docs, err := r.store.Query(ctx, docstore.Query{Collection: pairsCollection})
	if err != nil {
		return nil, translate("list all pairs", err)
	}
	return collect(docs, pairFromDoc)
}

func pairsQuery(userID string) docstore.Query {
	return docstore.Query{
		Collection: pairsCollection,
		Filters:    []docstore.Filter{docstore.ArrayContains("users", userID)},
		OrderBy:    "lastActivity",
		Direction:  docstore.Descending,
	}
}

func pairFromDoc(doc docstore.Document) (models.Pair, error) {
	var pair models.Pair
	if err := decode(doc.Data, &pair); err != nil {
		return models.Pair{}, err
	}
	pair.ID = doc.ID
	return pair, nil
}

var _ PairRepository = (*DocPairRepository)(nil)
