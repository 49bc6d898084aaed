package game

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/socialconnect/backend/internal/logging"
	"github.com/socialconnect/backend/internal/models"
	"github.com/socialconnect/backend/internal/repositories"
)

const (
	// DefaultActiveWindow is how recent a session's last activity must be for a peer to join it.
	DefaultActiveWindow = 10 * time.Minute
	// DefaultJoinTimeout is how long the non-creating peer waits for its partner's session.
	DefaultJoinTimeout = 5 * time.Second
)

// LobbyOptions tunes session discovery.
type LobbyOptions struct {
	ActiveWindow time.Duration
	JoinTimeout  time.Duration
}

// Lobby finds or creates the shared session document for a pair.
//
// A peer first looks for a session with recent activity and joins it. When
// there is none, the peer with the smaller user id creates one and the other
// watches the pair's sessions for it, creating its own only if nothing shows
// up within the join timeout.
type Lobby struct {
	games       repositories.GameRepository
	clock       clockwork.Clock
	window      time.Duration
	joinTimeout time.Duration
}

// NewLobby constructs a lobby over games. A nil clock uses the wall clock.
func NewLobby(games repositories.GameRepository, clock clockwork.Clock, opts LobbyOptions) *Lobby {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if opts.ActiveWindow <= 0 {
		opts.ActiveWindow = DefaultActiveWindow
	}
	if opts.JoinTimeout <= 0 {
		opts.JoinTimeout = DefaultJoinTimeout
	}
	return &Lobby{games: games, clock: clock, window: opts.ActiveWindow, joinTimeout: opts.JoinTimeout}
}

// Join returns the session userID should play in, with userID's player entry written.
func (l *Lobby) Join(ctx context.Context, pairID, userID, partnerID string) (models.GameSession, error) {
	ctx, span := logging.StartSpan(ctx, "game.join")
	defer span.End()

	sessions, err := l.games.ListSessions(ctx, pairID)
	if err != nil {
		return models.GameSession{}, fmt.Errorf("list sessions: %w", err)
	}
	if session, ok := l.pick(sessions); ok {
		return l.enter(ctx, session, userID)
	}

	if partnerID == "" || userID < partnerID {
		return l.create(ctx, pairID, userID)
	}
	return l.await(ctx, pairID, userID)
}

// Push writes userID's player entry and the shared sync scalar.
func (l *Lobby) Push(ctx context.Context, pairID, sessionID, userID string, player models.PlayerState, connectPercent float64) error {
	if player.LastUpdate == 0 {
		player.LastUpdate = l.clock.Now().UnixMilli()
	}
	return l.games.UpdatePlayer(ctx, pairID, sessionID, userID, player, connectPercent)
}

// Watch streams one session document.
func (l *Lobby) Watch(ctx context.Context, pairID, sessionID string) (*repositories.Stream[models.GameSession], error) {
	return l.games.WatchSession(ctx, pairID, sessionID)
}

func (l *Lobby) await(ctx context.Context, pairID, userID string) (models.GameSession, error) {
	stream, err := l.games.WatchSessions(ctx, pairID)
	if err != nil {
		return models.GameSession{}, fmt.Errorf("watch sessions: %w", err)
	}
	defer stream.Close()

	timeout := l.clock.After(l.joinTimeout)
	for {
		select {
		case <-ctx.Done():
			return models.GameSession{}, ctx.Err()
		case <-timeout:
			logging.FromContext(ctx).Info("partner session did not appear, creating one", "pairId", pairID)
			return l.create(ctx, pairID, userID)
		case sessions, ok := <-stream.Updates():
			if !ok {
				return l.create(ctx, pairID, userID)
			}
			if session, found := l.pick(sessions); found {
				return l.enter(ctx, session, userID)
			}
		}
	}
}

func (l *Lobby) create(ctx context.Context, pairID, userID string) (models.GameSession, error) {
	now := l.clock.Now().UnixMilli()
	session := models.GameSession{
		ID:             "session_" + strconv.FormatInt(now, 10),
		PairID:         pairID,
		Players:        map[string]models.PlayerState{userID: initialPlayer(now)},
		ConnectPercent: 100,
		CreatedAt:      now,
		CreatedBy:      userID,
	}

	err := l.games.CreateSession(ctx, session)
	if errors.Is(err, repositories.ErrConflict) {
		existing, getErr := l.games.GetSession(ctx, pairID, session.ID)
		if getErr != nil {
			return models.GameSession{}, fmt.Errorf("load conflicting session: %w", getErr)
		}
		return l.enter(ctx, existing, userID)
	}
	if err != nil {
		return models.GameSession{}, fmt.Errorf("create session: %w", err)
	}

	logging.FromContext(ctx).Info("game session created", "pairId", pairID, "sessionId", session.ID)
	return session, nil
}

func (l *Lobby) enter(ctx context.Context, session models.GameSession, userID string) (models.GameSession, error) {
	if _, ok := session.Players[userID]; ok {
		return session, nil
	}
	player := initialPlayer(l.clock.Now().UnixMilli())
	if err := l.games.UpdatePlayer(ctx, session.PairID, session.ID, userID, player, session.ConnectPercent); err != nil {
		return models.GameSession{}, fmt.Errorf("join session: %w", err)
	}
	if session.Players == nil {
		session.Players = map[string]models.PlayerState{}
	}
	session.Players[userID] = player
	logging.FromContext(ctx).Info("game session joined", "pairId", session.PairID, "sessionId", session.ID)
	return session, nil
}

// pick returns the most recently created session with activity inside the window.
func (l *Lobby) pick(sessions []models.GameSession) (models.GameSession, bool) {
	cutoff := l.clock.Now().Add(-l.window).UnixMilli()
	for _, session := range sessions {
		if LastActivity(session) >= cutoff {
			return session, true
		}
	}
	return models.GameSession{}, false
}

// LastActivity is the latest of a session's creation time and its players' updates.
func LastActivity(session models.GameSession) int64 {
	last := session.CreatedAt
	for _, p := range session.Players {
		last = max(last, p.LastUpdate)
	}
	return last
}

func initialPlayer(now int64) models.PlayerState {
	return models.PlayerState{
		Position:   [3]float64{0, GroundHeight, 0},
		Level:      1,
		Phase:      string(PhaseA),
		LastUpdate: now,
	}
}

// PlayerFromState extracts the entry a peer publishes for itself.
func PlayerFromState(s State, now int64) models.PlayerState {
	return models.PlayerState{
		Position:   s.Position,
		Rotation:   s.Rotation,
		Score:      s.Score,
		Level:      s.Level,
		Phase:      string(s.Phase),
		LastUpdate: now,
	}
}
