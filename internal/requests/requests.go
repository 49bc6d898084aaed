package requests

import (
	"context"
	"errors"
	"fmt"

	"github.com/jonboulle/clockwork"

	"github.com/socialconnect/backend/internal/logging"
	"github.com/socialconnect/backend/internal/models"
	"github.com/socialconnect/backend/internal/pairing"
	"github.com/socialconnect/backend/internal/repositories"
)

var (
	// ErrInvalidTransition is returned when acting on a request that is no longer pending.
	ErrInvalidTransition = errors.New("request is no longer pending")
	// ErrForbidden is returned when a user acts on a request that is not theirs to act on.
	ErrForbidden = errors.New("not allowed to act on this request")
)

// ProfileSource resolves user profiles, usually through a cache.
type ProfileSource interface {
	Get(ctx context.Context, id string) (models.User, error)
}

// PairCreator materialises a pair for two users.
type PairCreator interface {
	Create(ctx context.Context, a, b models.User, code string) (models.Pair, error)
}

// Service implements the connection request workflow:
// pending -> accepted (creates a pair), pending -> declined, pending -> deleted by the sender.
type Service struct {
	users    repositories.UserRepository
	requests repositories.RequestRepository
	pairs    PairCreator
	profiles ProfileSource
	clock    clockwork.Clock
}

// NewService constructs a request service. profiles may be nil, in which case
// users are read directly.
func NewService(users repositories.UserRepository, requests repositories.RequestRepository, pairs PairCreator, profiles ProfileSource, clock clockwork.Clock) *Service {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if profiles == nil {
		profiles = users
	}
	return &Service{users: users, requests: requests, pairs: pairs, profiles: profiles, clock: clock}
}

// Send creates a pending request from one user to another.
//
// The duplicate check and the write are separate operations, so two sends
// racing each other can both persist.
func (s *Service) Send(ctx context.Context, fromUserID, toUserID string) (models.ConnectionRequest, error) {
	ctx, span := logging.StartSpan(ctx, "requests.send")
	defer span.End()

	if fromUserID == toUserID {
		return models.ConnectionRequest{}, models.Alert("Invalid Request", "You cannot send a connection request to yourself.")
	}

	from, err := s.users.Get(ctx, fromUserID)
	if err != nil {
		return models.ConnectionRequest{}, fmt.Errorf("load sender: %w", err)
	}
	to, err := s.users.Get(ctx, toUserID)
	if err != nil {
		return models.ConnectionRequest{}, err
	}

	existing, err := s.requests.FindPending(ctx, fromUserID, toUserID)
	if err != nil {
		return models.ConnectionRequest{}, fmt.Errorf("check pending requests: %w", err)
	}
	if len(existing) > 0 {
		return models.ConnectionRequest{}, models.Alert("Request Already Sent",
			fmt.Sprintf("You have already sent a connection request to %s", to.Name))
	}

	request := models.ConnectionRequest{
		FromUserID: from.ID,
		FromName:   displayName(from.Name, "Unknown User"),
		FromPlace:  displayName(from.Place, "Unknown Place"),
		ToUserID:   to.ID,
		ToName:     to.Name,
		ToPlace:    to.Place,
		Type:       "connection",
		Status:     models.RequestPending,
		Message:    fmt.Sprintf("%s wants to connect with you", displayName(from.Name, "Someone")),
		CreatedAt:  s.clock.Now().UnixMilli(),
	}

	id, err := s.requests.Create(ctx, request)
	if err != nil {
		return models.ConnectionRequest{}, fmt.Errorf("create request: %w", err)
	}
	request.ID = id

	logging.FromContext(ctx).Info("connection request sent", "requestId", id, "toUserId", toUserID)
	return request, nil
}

// Accept marks the request accepted and then creates the pair. A failure
// creating the pair does not roll the status back.
func (s *Service) Accept(ctx context.Context, requestID, userID string) (models.Pair, error) {
	ctx, span := logging.StartSpan(ctx, "requests.accept")
	defer span.End()

	request, err := s.pending(ctx, requestID)
	if err != nil {
		return models.Pair{}, err
	}
	if request.ToUserID != userID {
		return models.Pair{}, ErrForbidden
	}

	if err := s.requests.UpdateStatus(ctx, requestID, models.RequestAccepted, s.clock.Now().UnixMilli()); err != nil {
		return models.Pair{}, fmt.Errorf("accept request: %w", err)
	}

	receiver, err := s.users.Get(ctx, request.ToUserID)
	if err != nil {
		return models.Pair{}, fmt.Errorf("load receiver: %w", err)
	}
	sender, err := s.profiles.Get(ctx, request.FromUserID)
	if err != nil {
		sender = models.User{ID: request.FromUserID, Name: request.FromName, Place: request.FromPlace}
	}

	pair, err := s.pairs.Create(ctx, receiver, sender, "")
	if errors.Is(err, pairing.ErrAlreadyConnected) {
		return models.Pair{ID: pairing.PairID(receiver.ID, sender.ID), Users: []string{receiver.ID, sender.ID}}, nil
	}
	if err != nil {
		logging.FromContext(ctx).Error("pair creation after accept failed", "requestId", requestID, "error", err)
		return models.Pair{}, err
	}
	return pair, nil
}

// Decline marks the request declined. Only the receiver may decline.
func (s *Service) Decline(ctx context.Context, requestID, userID string) error {
	request, err := s.pending(ctx, requestID)
	if err != nil {
		return err
	}
	if request.ToUserID != userID {
		return ErrForbidden
	}
	if err := s.requests.UpdateStatus(ctx, requestID, models.RequestDeclined, s.clock.Now().UnixMilli()); err != nil {
		return fmt.Errorf("decline request: %w", err)
	}
	return nil
}

// Cancel deletes a pending request. Only the sender may cancel.
func (s *Service) Cancel(ctx context.Context, requestID, userID string) error {
	request, err := s.pending(ctx, requestID)
	if err != nil {
		return err
	}
	if request.FromUserID != userID {
		return ErrForbidden
	}
	if err := s.requests.Delete(ctx, requestID); err != nil {
		return fmt.Errorf("cancel request: %w", err)
	}
	return nil
}

// Received lists pending requests addressed to userID, with sender details filled in.
func (s *Service) Received(ctx context.Context, userID string) ([]models.ConnectionRequest, error) {
	list, err := s.requests.ListReceived(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.Enrich(ctx, list), nil
}

// Sent lists pending requests userID has sent.
func (s *Service) Sent(ctx context.Context, userID string) ([]models.ConnectionRequest, error) {
	return s.requests.ListSent(ctx, userID)
}

// WatchReceived streams pending requests addressed to userID.
func (s *Service) WatchReceived(ctx context.Context, userID string) (*repositories.Stream[models.ConnectionRequest], error) {
	return s.requests.WatchReceived(ctx, userID)
}

// WatchSent streams pending requests userID has sent.
func (s *Service) WatchSent(ctx context.Context, userID string) (*repositories.Stream[models.ConnectionRequest], error) {
	return s.requests.WatchSent(ctx, userID)
}

// Enrich fills in current sender profile details. Lookup failures keep the denormalised values.
func (s *Service) Enrich(ctx context.Context, list []models.ConnectionRequest) []models.ConnectionRequest {
	out := make([]models.ConnectionRequest, len(list))
	for i, request := range list {
		sender, err := s.profiles.Get(ctx, request.FromUserID)
		if err != nil {
			logging.FromContext(ctx).Warn("sender profile lookup failed", "userId", request.FromUserID, "error", err)
			out[i] = request
			continue
		}
		request.FromName = displayName(sender.Name, request.FromName)
		request.FromPlace = displayName(sender.Place, request.FromPlace)
		request.FromGender = sender.Gender
		request.FromAge = sender.Age
		request.FromUserCode = sender.Code
		out[i] = request
	}
	return out
}

func (s *Service) pending(ctx context.Context, requestID string) (models.ConnectionRequest, error) {
	request, err := s.requests.Get(ctx, requestID)
	if err != nil {
		return models.ConnectionRequest{}, err
	}
	if request.Status != models.RequestPending {
		return models.ConnectionRequest{}, ErrInvalidTransition
	}
	return request, nil
}

func displayName(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}
