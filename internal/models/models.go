package models

import "time"

// User represents an account on the platform. Timestamps are epoch milliseconds.
type User struct {
	ID        string `json:"uid"`
	Name      string `json:"name"`
	Place     string `json:"place"`
	Age       int    `json:"age,omitempty"`
	Gender    string `json:"gender"`
	Code      string `json:"code"`
	Email     string `json:"email"`
	CreatedAt int64  `json:"createdAt"`
	UpdatedAt int64  `json:"updatedAt,omitempty"`
}

// Credential holds the password hash for an email address. It never leaves the server.
type Credential struct {
	Email        string `json:"email"`
	UserID       string `json:"uid"`
	PasswordHash string `json:"passwordHash"`
}

// Pair links exactly two users who have connected.
type Pair struct {
	ID           string            `json:"id"`
	Users        []string          `json:"users"`
	UserNames    map[string]string `json:"userNames"`
	Code         string            `json:"code,omitempty"`
	CreatedAt    int64             `json:"createdAt"`
	LastActivity int64             `json:"lastActivity"`
}

// Partner returns the member of the pair that is not userID.
func (p Pair) Partner(userID string) string {
	for _, id := range p.Users {
		if id != userID {
			return id
		}
	}
	return ""
}

// Has reports whether userID belongs to the pair.
func (p Pair) Has(userID string) bool {
	for _, id := range p.Users {
		if id == userID {
			return true
		}
	}
	return false
}

// Request statuses. Cancelling deletes the request instead of changing its status.
const (
	RequestPending  = "pending"
	RequestAccepted = "accepted"
	RequestDeclined = "declined"
)

// ConnectionRequest is an invitation from one user to another.
type ConnectionRequest struct {
	ID           string `json:"id"`
	FromUserID   string `json:"fromUserId"`
	FromName     string `json:"fromUserName"`
	FromPlace    string `json:"fromUserPlace"`
	ToUserID     string `json:"toUserId"`
	ToName       string `json:"toUserName"`
	ToPlace      string `json:"toUserPlace"`
	Type         string `json:"type"`
	Status       string `json:"status"`
	Message      string `json:"message,omitempty"`
	CreatedAt    int64  `json:"createdAt"`
	AcceptedAt   int64  `json:"acceptedAt,omitempty"`
	DeclinedAt   int64  `json:"declinedAt,omitempty"`
	FromGender   string `json:"fromUserGender,omitempty"`
	FromAge      int    `json:"fromUserAge,omitempty"`
	FromUserCode string `json:"fromUserCode,omitempty"`
}

// Message is a chat entry in a pair's log.
type Message struct {
	ID        string    `json:"id"`
	Text      string    `json:"text"`
	From      string    `json:"from"`
	CreatedAt int64     `json:"createdAt"`
	Timestamp time.Time `json:"timestamp"`
}

// Activity records something that happened inside a pair.
type Activity struct {
	ID        string `json:"id"`
	Type      string `json:"type"`
	From      string `json:"from"`
	CreatedAt int64  `json:"createdAt"`
}

// GameSession is the shared document two peers mirror their player state through.
type GameSession struct {
	ID             string                 `json:"id"`
	PairID         string                 `json:"pairId"`
	Players        map[string]PlayerState `json:"players"`
	ConnectPercent float64                `json:"connectPercent"`
	CreatedAt      int64                  `json:"createdAt"`
	CreatedBy      string                 `json:"createdBy"`
}

// PlayerState is one peer's entry in a game session.
type PlayerState struct {
	Position   [3]float64 `json:"position"`
	Rotation   [3]float64 `json:"rotation"`
	Score      float64    `json:"score"`
	Level      int        `json:"level"`
	Phase      string     `json:"phase"`
	LastUpdate int64      `json:"lastUpdate"`
}

// SessionTokens groups the bearer credentials issued to authenticated users.
type SessionTokens struct {
	AccessToken      string    `json:"accessToken"`
	AccessExpiresAt  time.Time `json:"accessExpiresAt"`
	RefreshToken     string    `json:"refreshToken"`
	RefreshExpiresAt time.Time `json:"refreshExpiresAt"`
}

// AlertError is a validation failure shown to the user as an alert.
type AlertError struct {
	Title   string
	Message string
}

func (e *AlertError) Error() string {
	if e.Message == "" {
		return e.Title
	}
	return e.Title + ": " + e.Message
}

// Alert constructs an AlertError.
func Alert(title, message string) error {
	return &AlertError{Title: title, Message: message}
}
