package chat

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/jonboulle/clockwork"

	"github.com/socialconnect/backend/internal/logging"
	"github.com/socialconnect/backend/internal/models"
	"github.com/socialconnect/backend/internal/repositories"
)

// MaxMessageLength bounds a message's text, counted in characters.
const MaxMessageLength = 1000

// Members checks pair membership and records activity.
type Members interface {
	Member(ctx context.Context, pairID, userID string) (models.Pair, error)
	Touch(ctx context.Context, pairID string) error
}

// Service implements a pair's chat channel.
type Service struct {
	messages repositories.MessageRepository
	members  Members
	clock    clockwork.Clock
}

// NewService constructs a chat service. A nil clock uses the wall clock.
func NewService(messages repositories.MessageRepository, members Members, clock clockwork.Clock) *Service {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Service{messages: messages, members: members, clock: clock}
}

// Send appends a message from userID. createdAt is the sender's clock in epoch
// milliseconds; zero means now.
//
// The message is the only write whose failure is returned. The activity
// record and pair touch that follow are logged and dropped on error.
func (s *Service) Send(ctx context.Context, pairID, userID, text string, createdAt int64) (models.Message, error) {
	ctx, span := logging.StartSpan(ctx, "chat.send")
	defer span.End()
	logger := logging.FromContext(ctx)

	text = strings.TrimSpace(text)
	if text == "" {
		return models.Message{}, models.Alert("Empty Message", "Please type a message before sending.")
	}
	if utf8.RuneCountInString(text) > MaxMessageLength {
		return models.Message{}, models.Alert("Message Too Long", fmt.Sprintf("Messages are limited to %d characters.", MaxMessageLength))
	}

	if _, err := s.members.Member(ctx, pairID, userID); err != nil {
		return models.Message{}, err
	}
	if createdAt <= 0 {
		createdAt = s.clock.Now().UnixMilli()
	}

	message := models.Message{Text: text, From: userID, CreatedAt: createdAt}
	id, err := s.messages.Append(ctx, pairID, message)
	if err != nil {
		return models.Message{}, fmt.Errorf("send message: %w", err)
	}
	message.ID = id

	if err := s.messages.RecordActivity(ctx, pairID, models.Activity{Type: "message", From: userID, CreatedAt: createdAt}); err != nil {
		logger.Error("record chat activity", "pairId", pairID, "error", err)
	}
	if err := s.members.Touch(ctx, pairID); err != nil {
		logger.Error("touch pair after message", "pairId", pairID, "error", err)
	}
	return message, nil
}

// List returns the pair's messages oldest first.
func (s *Service) List(ctx context.Context, pairID, userID string) ([]models.Message, error) {
	if _, err := s.members.Member(ctx, pairID, userID); err != nil {
		return nil, err
	}
	return s.messages.List(ctx, pairID)
}

// Watch streams the pair's full message log each time it changes.
func (s *Service) Watch(ctx context.Context, pairID, userID string) (*repositories.Stream[models.Message], error) {
	if _, err := s.members.Member(ctx, pairID, userID); err != nil {
		return nil, err
	}
	return s.messages.Watch(ctx, pairID)
}
