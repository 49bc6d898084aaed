package repositories

import (
	"context"

	"github.com/socialconnect/backend/internal/docstore"
	"github.com/socialconnect/backend/internal/models"
)

// MessageRepository defines data access for a pair's chat log and activity feed.
type MessageRepository interface {
	Append(ctx context.Context, pairID string, message models.Message) (string, error)
	List(ctx context.Context, pairID string) ([]models.Message, error)
	Watch(ctx context.Context, pairID string) (*Stream[models.Message], error)
	RecordActivity(ctx context.Context, pairID string, activity models.Activity) error
}

// DocMessageRepository stores messages at pairs/{pair}/messages/{id}.
type DocMessageRepository struct {
	store docstore.Store
}

// NewDocMessageRepository constructs a message repository over store.
func NewDocMessageRepository(store docstore.Store) *DocMessageRepository {
	return &DocMessageRepository{store: store}
}

// Append adds a message; its timestamp field is assigned by the store.
func (r *DocMessageRepository) Append(ctx context.Context, pairID string, message models.Message) (string, error) {
	data, err := encode(message)
	if err != nil {
		return "", err
	}
	delete(data, "id")
	data["timestamp"] = docstore.ServerTimestamp

	id, err := r.store.Add(ctx, messagesCollection(pairID), data)
	if err != nil {
		return "", translate("append message", err)
	}
	return id, nil
}

func (r *DocMessageRepository) List(ctx context.Context, pairID string) ([]models.Message, error) {
	docs, err := r.store.Query(ctx, messagesQuery(pairID))
	if err != nil {
		return nil, translate("list messages", err)
	}
	return collect(docs, messageFromDoc)
}

func (r *DocMessageRepository) Watch(ctx context.Context, pairID string) (*Stream[models.Message], error) {
	sub, err := r.store.SubscribeQuery(ctx, messagesQuery(pairID))
	if err != nil {
		return nil, translate("watch messages", err)
	}
	return newStream(ctx, sub, messageFromDoc), nil
}

func (r *DocMessageRepository) RecordActivity(ctx context.Context, pairID string, activity models.Activity) error {
	data, err := encode(activity)
	if err != nil {
		return err
	}
	delete(data, "id")
	_, err = r.store.Add(ctx, docstore.Path(pairsCollection, pairID, "activities"), data)
	return translate("record activity", err)
}

func messagesCollection(pairID string) string {
	return docstore.Path(pairsCollection, pairID, "messages")
}

func messagesQuery(pairID string) docstore.Query {
	return docstore.Query{Collection: messagesCollection(pairID), OrderBy: "createdAt"}
}

func messageFromDoc(doc docstore.Document) (models.Message, error) {
	var message models.Message
	if err := decode(doc.Data, &message); err != nil {
		return models.Message{}, err
	}
	message.ID = doc.ID
	return message, nil
}

var _ MessageRepository = (*DocMessageRepository)(nil)
