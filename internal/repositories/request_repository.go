package repositories

import (
	"context"

	"github.com/socialconnect/backend/internal/docstore"
	"github.com/socialconnect/backend/internal/models"
)

const requestsCollection = "requests"

// RequestRepository defines data access for connection requests.
type RequestRepository interface {
	Create(ctx context.Context, request models.ConnectionRequest) (string, error)
	Get(ctx context.Context, id string) (models.ConnectionRequest, error)
	FindPending(ctx context.Context, fromUserID, toUserID string) ([]models.ConnectionRequest, error)
	UpdateStatus(ctx context.Context, id, status string, at int64) error
	Delete(ctx context.Context, id string) error
	ListReceived(ctx context.Context, userID string) ([]models.ConnectionRequest, error)
	ListSent(ctx context.Context, userID string) ([]models.ConnectionRequest, error)
	WatchReceived(ctx context.Context, userID string) (*Stream[models.ConnectionRequest], error)
	WatchSent(ctx context.Context, userID string) (*Stream[models.ConnectionRequest], error)
}

// DocRequestRepository stores requests at requests/{id}.
type DocRequestRepository struct {
	store docstore.Store
}

// NewDocRequestRepository constructs a request repository over store.
func NewDocRequestRepository(store docstore.Store) *DocRequestRepository {
	return &DocRequestRepository{store: store}
}

// Create appends a request with a generated id and returns that id.
func (r *DocRequestRepository) Create(ctx context.Context, request models.ConnectionRequest) (string, error) {
	data, err := encode(request)
	if err != nil {
		return "", err
	}
	delete(data, "id")
	id, err := r.store.Add(ctx, requestsCollection, data)
	if err != nil {
		return "", translate("create request", err)
	}
	return id, nil
}

func (r *DocRequestRepository) Get(ctx context.Context, id string) (models.ConnectionRequest, error) {
	doc, err := r.store.Get(ctx, docstore.Path(requestsCollection, id))
	if err != nil {
		return models.ConnectionRequest{}, translate("get request", err)
	}
	return requestFromDoc(doc)
}

// FindPending lists pending requests from one user to another.
func (r *DocRequestRepository) FindPending(ctx context.Context, fromUserID, toUserID string) ([]models.ConnectionRequest, error) {
	docs, err := r.store.Query(ctx, docstore.Query{
		Collection: requestsCollection,
		Filters: []docstore.Filter{
			docstore.Eq("fromUserId", fromUserID),
			docstore.Eq("toUserId", toUserID),
			docstore.Eq("status", models.RequestPending),
		},
	})
	if err != nil {
		return nil, translate("find pending requests", err)
	}
	return collect(docs, requestFromDoc)
}

// UpdateStatus moves a request to status and stamps the matching transition time.
func (r *DocRequestRepository) UpdateStatus(ctx context.Context, id, status string, at int64) error {
	patch := map[string]any{"status": status}
	switch status {
	case models.RequestAccepted:
		patch["acceptedAt"] = at
	case models.RequestDeclined:
		patch["declinedAt"] = at
	}
	return translate("update request", r.store.Update(ctx, docstore.Path(requestsCollection, id), patch))
}

func (r *DocRequestRepository) Delete(ctx context.Context, id string) error {
	return translate("delete request", r.store.Delete(ctx, docstore.Path(requestsCollection, id)))
}

func (r *DocRequestRepository) ListReceived(ctx context.Context, userID string) ([]models.ConnectionRequest, error) {
	docs, err := r.store.Query(ctx, pendingQuery("toUserId", userID))
	if err != nil {
		return nil, translate("list received requests", err)
	}
	return collect(docs, requestFromDoc)
}

func (r *DocRequestRepository) ListSent(ctx context.Context, userID string) ([]models.ConnectionRequest, error) {
	docs, err := r.store.Query(ctx, pendingQuery("fromUserId", userID))
	if err != nil {
		return nil, translate("list sent requests", err)
	}
	return collect(docs, requestFromDoc)
}

func (r *DocRequestRepository) WatchReceived(ctx context.Context, userID string) (*Stream[models.ConnectionRequest], error) {
	sub, err := r.store.SubscribeQuery(ctx, pendingQuery("toUserId", userID))
	if err != nil {
		return nil, translate("watch received requests", err)
	}
	return newStream(ctx, sub, requestFromDoc), nil
}

func (r *DocRequestRepository) WatchSent(ctx context.Context, userID string) (*Stream[models.ConnectionRequest], error) {
	sub, err := r.store.SubscribeQuery(ctx, pendingQuery("fromUserId", userID))
	if err != nil {
		return nil, translate("watch sent requests", err)
	}
	return newStream(ctx, sub, requestFromDoc), nil
}

func pendingQuery(field, userID string) docstore.Query {
	return docstore.Query{
		Collection: requestsCollection,
		Filters: []docstore.Filter{
			docstore.Eq(field, userID),
			docstore.Eq("status", models.RequestPending),
		},
		OrderBy:   "createdAt",
		Direction: docstore.Descending,
	}
}

func requestFromDoc(doc docstore.Document) (models.ConnectionRequest, error) {
	var request models.ConnectionRequest
	if err := decode(doc.Data, &request); err != nil {
		return models.ConnectionRequest{}, err
	}
	request.ID = doc.ID
	return request, nil
}

var _ RequestRepository = (*DocRequestRepository)(nil)
