package handlers

import (
	"context"

	"github.com/socialconnect/backend/internal/accounts"
	"github.com/socialconnect/backend/internal/models"
	"github.com/socialconnect/backend/internal/repositories"
)

// Accounts captures the account and profile workflows.
type Accounts interface {
	SignUp(ctx context.Context, in accounts.SignUpInput) (models.User, error)
	Login(ctx context.Context, email, password string) (models.User, error)
	Profile(ctx context.Context, userID string) (models.User, error)
	UpdateProfile(ctx context.Context, userID string, in accounts.ProfileInput) (models.User, error)
	RegenerateCode(ctx context.Context, userID string) (string, error)
	Directory(ctx context.Context, userID, search, gender string) ([]models.User, error)
	RandomUser(ctx context.Context, userID string) (models.User, error)
}

// SessionManager issues, refreshes and verifies authentication tokens for users.
type SessionManager interface {
	Issue(ctx context.Context, userID string) (models.SessionTokens, error)
	Refresh(ctx context.Context, refreshToken string) (models.SessionTokens, error)
	Authenticate(ctx context.Context, accessToken string) (string, error)
}

// Pairing captures the pair lifecycle.
type Pairing interface {
	ConnectByCode(ctx context.Context, userID, code string) (models.Pair, error)
	List(ctx context.Context, userID string) ([]models.Pair, error)
	Member(ctx context.Context, pairID, userID string) (models.Pair, error)
	Disconnect(ctx context.Context, pairID, userID string) error
}

// Requests captures the connection request workflow.
type Requests interface {
	Send(ctx context.Context, fromUserID, toUserID string) (models.ConnectionRequest, error)
	Accept(ctx context.Context, requestID, userID string) (models.Pair, error)
	Decline(ctx context.Context, requestID, userID string) error
	Cancel(ctx context.Context, requestID, userID string) error
	Received(ctx context.Context, userID string) ([]models.ConnectionRequest, error)
	Sent(ctx context.Context, userID string) ([]models.ConnectionRequest, error)
	WatchReceived(ctx context.Context, userID string) (*repositories.Stream[models.ConnectionRequest], error)
	Enrich(ctx context.Context, list []models.ConnectionRequest) []models.ConnectionRequest
}

// Chat captures the pair message channel.
type Chat interface {
	Send(ctx context.Context, pairID, userID, text string, createdAt int64) (models.Message, error)
	List(ctx context.Context, pairID, userID string) ([]models.Message, error)
	Watch(ctx context.Context, pairID, userID string) (*repositories.Stream[models.Message], error)
}

// Games captures shared game session discovery and player pushes.
type Games interface {
	Join(ctx context.Context, pairID, userID, partnerID string) (models.GameSession, error)
	Push(ctx context.Context, pairID, sessionID, userID string, player models.PlayerState, connectPercent float64) error
	Watch(ctx context.Context, pairID, sessionID string) (*repositories.Stream[models.GameSession], error)
}
