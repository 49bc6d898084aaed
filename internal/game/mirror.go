package game

import (
	"context"
	"sync"

	"github.com/jonboulle/clockwork"

	"github.com/socialconnect/backend/internal/logging"
	"github.com/socialconnect/backend/internal/models"
	"github.com/socialconnect/backend/internal/repositories"
)

// Mirror keeps the local store and the shared session document in step. The
// local player's entry is written out; the partner's entry is copied in.
// Remote failures are logged and dropped, leaving the last known state.
type Mirror struct {
	lobby     *Lobby
	store     *Store[State]
	clock     clockwork.Clock
	userID    string
	partnerID string

	mu        sync.Mutex
	pairID    string
	sessionID string
	closed    bool
	stream    *repositories.Stream[models.GameSession]
	pending   chan State
	done      chan struct{}
	wg        sync.WaitGroup
}

// NewMirror constructs a mirror for userID playing with partnerID.
func NewMirror(lobby *Lobby, store *Store[State], clock clockwork.Clock, userID, partnerID string) *Mirror {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Mirror{
		lobby:     lobby,
		store:     store,
		clock:     clock,
		userID:    userID,
		partnerID: partnerID,
		pending:   make(chan State, 1),
		done:      make(chan struct{}),
	}
}

// Join discovers or creates the pair's session and starts mirroring it.
func (m *Mirror) Join(ctx context.Context, pairID string) (string, error) {
	session, err := m.lobby.Join(ctx, pairID, m.userID, m.partnerID)
	if err != nil {
		return "", err
	}
	stream, err := m.lobby.Watch(ctx, pairID, session.ID)
	if err != nil {
		return "", err
	}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		stream.Close()
		return "", ErrSessionClosed
	}
	m.pairID, m.sessionID, m.stream = pairID, session.ID, stream
	m.mu.Unlock()

	m.store.Dispatch(func(s State) State {
		s.PairID, s.SessionID = pairID, session.ID
		return s
	})
	m.apply(session)

	m.wg.Add(2)
	go m.follow(ctx, stream)
	go m.write(ctx)
	return session.ID, nil
}

// Push queues state for writing. Only the newest unwritten state is kept.
func (m *Mirror) Push(ctx context.Context, state State) {
	m.mu.Lock()
	ready := m.sessionID != "" && !m.closed
	m.mu.Unlock()
	if !ready {
		return
	}
	for {
		select {
		case m.pending <- state:
			return
		default:
		}
		select {
		case <-m.pending:
		default:
		}
	}
}

// Close stops mirroring. Snapshots arriving afterwards are ignored.
func (m *Mirror) Close() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true
	stream := m.stream
	close(m.done)
	m.mu.Unlock()

	stream.Close()
	m.wg.Wait()
}

func (m *Mirror) follow(ctx context.Context, stream *repositories.Stream[models.GameSession]) {
	defer m.wg.Done()
	for sessions := range stream.Updates() {
		if m.isClosed() {
			return
		}
		if len(sessions) == 0 {
			logging.FromContext(ctx).Warn("game session document disappeared", "sessionId", m.sessionID)
			continue
		}
		m.apply(sessions[0])
	}
}

func (m *Mirror) write(ctx context.Context) {
	defer m.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case <-m.done:
			return
		case state := <-m.pending:
			player := PlayerFromState(state, m.clock.Now().UnixMilli())
			if err := m.lobby.Push(ctx, m.pairID, m.sessionID, m.userID, player, state.ConnectPercent); err != nil {
				logging.FromContext(ctx).Error("push player state", "sessionId", m.sessionID, "error", err)
			}
		}
	}
}

func (m *Mirror) apply(session models.GameSession) {
	for id, player := range session.Players {
		if id == m.userID {
			continue
		}
		m.store.Dispatch(RemotePlayer(player))
		return
	}
}

func (m *Mirror) isClosed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

// RemotePlayer copies the partner's published entry into local state.
func RemotePlayer(p models.PlayerState) Reducer[State] {
	return func(s State) State {
		s.RemotePosition = p.Position
		s.RemoteRotation = p.Rotation
		s.RemoteScore = p.Score
		s.RemoteConnected = true
		return s
	}
}
