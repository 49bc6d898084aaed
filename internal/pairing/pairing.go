package pairing

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/jonboulle/clockwork"

	"github.com/socialconnect/backend/internal/logging"
	"github.com/socialconnect/backend/internal/models"
	"github.com/socialconnect/backend/internal/repositories"
)

var (
	// ErrUserNotFound is returned when a connect code matches no other user.
	ErrUserNotFound = &models.AlertError{Title: "User Not Found", Message: "No user found with this code. Please check the code and try again."}
	// ErrAlreadyConnected is returned when the two users already share a pair.
	ErrAlreadyConnected = errors.New("already connected")
	// ErrNotMember is returned when a user acts on a pair they do not belong to.
	ErrNotMember = errors.New("not a member of this pair")
)

// PairID derives the pair identifier for two users. It is commutative.
func PairID(a, b string) string {
	ids := []string{a, b}
	sort.Strings(ids)
	return strings.Join(ids, "_")
}

// SessionStore is the game session storage a pair's sessions are removed from
// when the pair is disconnected.
type SessionStore interface {
	ListSessions(ctx context.Context, pairID string) ([]models.GameSession, error)
	DeleteSession(ctx context.Context, pairID, sessionID string) error
}

// ArchiveQueue takes sessions to archive before they are removed.
type ArchiveQueue interface {
	Enqueue(ctx context.Context, session models.GameSession) error
}

// Service implements connecting by code and pair management.
type Service struct {
	users    repositories.UserRepository
	pairs    repositories.PairRepository
	clock    clockwork.Clock
	sessions SessionStore
	archive  ArchiveQueue
}

// Option configures a Service.
type Option func(*Service)

// WithGameSessions removes a pair's game sessions when it is disconnected.
func WithGameSessions(sessions SessionStore) Option {
	return func(s *Service) { s.sessions = sessions }
}

// WithArchive hands a disconnected pair's sessions to queue instead of
// deleting them directly. It only applies together with WithGameSessions.
func WithArchive(queue ArchiveQueue) Option {
	return func(s *Service) { s.archive = queue }
}

// NewService constructs a pairing service. A nil clock uses the wall clock.
func NewService(users repositories.UserRepository, pairs repositories.PairRepository, clock clockwork.Clock, opts ...Option) *Service {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	s := &Service{users: users, pairs: pairs, clock: clock}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ConnectByCode pairs userID with whoever holds code.
func (s *Service) ConnectByCode(ctx context.Context, userID, code string) (models.Pair, error) {
	ctx, span := logging.StartSpan(ctx, "pairing.connect_by_code")
	defer span.End()
	logger := logging.FromContext(ctx)

	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		return models.Pair{}, models.Alert("Enter Code", "Please enter a code to connect.")
	}

	me, err := s.users.Get(ctx, userID)
	if err != nil {
		return models.Pair{}, fmt.Errorf("load profile: %w", err)
	}
	if code == me.Code {
		return models.Pair{}, models.Alert("Invalid Code", "You cannot connect with your own code.")
	}

	other, err := s.users.FindByCode(ctx, code)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			logger.Info("connect code matched no user", "code", code)
			return models.Pair{}, ErrUserNotFound
		}
		return models.Pair{}, fmt.Errorf("find user by code: %w", err)
	}
	if other.ID == me.ID {
		return models.Pair{}, ErrUserNotFound
	}

	pair, err := s.Create(ctx, me, other, code)
	if err != nil {
		return models.Pair{}, err
	}
	logger.Info("pair created", "pairId", pair.ID)
	return pair, nil
}

// Create writes the pair for two users. It returns ErrAlreadyConnected if one exists.
func (s *Service) Create(ctx context.Context, a, b models.User, code string) (models.Pair, error) {
	now := s.clock.Now().UnixMilli()
	pair := models.Pair{
		ID:           PairID(a.ID, b.ID),
		Users:        []string{a.ID, b.ID},
		UserNames:    map[string]string{a.ID: a.Name, b.ID: b.Name},
		Code:         code,
		CreatedAt:    now,
		LastActivity: now,
	}

	if err := s.pairs.Create(ctx, pair); err != nil {
		if errors.Is(err, repositories.ErrConflict) {
			return models.Pair{}, ErrAlreadyConnected
		}
		return models.Pair{}, fmt.Errorf("create pair: %w", err)
	}
	return pair, nil
}

// List returns the user's pairs, most recently active first.
func (s *Service) List(ctx context.Context, userID string) ([]models.Pair, error) {
	return s.pairs.ListForUser(ctx, userID)
}

// Watch streams the user's pairs as they change.
func (s *Service) Watch(ctx context.Context, userID string) (*repositories.Stream[models.Pair], error) {
	return s.pairs.WatchForUser(ctx, userID)
}

// Member loads a pair and checks userID belongs to it.
func (s *Service) Member(ctx context.Context, pairID, userID string) (models.Pair, error) {
	pair, err := s.pairs.Get(ctx, pairID)
	if err != nil {
		return models.Pair{}, err
	}
	if !pair.Has(userID) {
		return models.Pair{}, ErrNotMember
	}
	return pair, nil
}

// Disconnect deletes the pair. Only members may disconnect.
func (s *Service) Disconnect(ctx context.Context, pairID, userID string) error {
	if _, err := s.Member(ctx, pairID, userID); err != nil {
		return err
	}
	// Sessions go first: once the pair is gone nothing lists them.
	if err := s.dropSessions(ctx, pairID); err != nil {
		return err
	}
	if err := s.pairs.Delete(ctx, pairID); err != nil {
		return fmt.Errorf("delete pair: %w", err)
	}
	logging.FromContext(ctx).Info("pair disconnected", "pairId", pairID)
	return nil
}

func (s *Service) dropSessions(ctx context.Context, pairID string) error {
	if s.sessions == nil {
		return nil
	}
	sessions, err := s.sessions.ListSessions(ctx, pairID)
	if err != nil {
		return fmt.Errorf("list game sessions: %w", err)
	}
	for _, session := range sessions {
		if session.PairID == "" {
			session.PairID = pairID
		}
		if s.archive != nil {
			err := s.archive.Enqueue(ctx, session)
			if err == nil {
				continue
			}
			logging.FromContext(ctx).Warn("archive game session, deleting instead", "pairId", pairID, "sessionId", session.ID, "error", err)
		}
		if err := s.sessions.DeleteSession(ctx, pairID, session.ID); err != nil && !errors.Is(err, repositories.ErrNotFound) {
			return fmt.Errorf("delete game session %s: %w", session.ID, err)
		}
	}
	return nil
}

// Touch records activity on the pair.
func (s *Service) Touch(ctx context.Context, pairID string) error {
	return s.pairs.Touch(ctx, pairID, s.clock.Now().UnixMilli())
}
