package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/go-chi/chi/v5"

	"github.com/socialconnect/backend/internal/logging"
	"github.com/socialconnect/backend/internal/repositories"
)

const streamWriteTimeout = 5 * time.Second

// StreamHandler upgrades to WebSocket and forwards every live snapshot of a
// query to the client. Each frame carries the full result set.
type StreamHandler struct {
	Pairing  Pairing
	Requests Requests
	Chat     Chat
	Games    Games
	// OriginPatterns lists browser origins allowed to open streams. Native
	// clients send no Origin header and are always accepted.
	OriginPatterns []string
}

type snapshotFrame[T any] struct {
	Type  string `json:"type"`
	Items []T    `json:"items"`
}

// Messages handles GET /ws/pairs/{pairID}/messages.
func (h StreamHandler) Messages(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	stream, err := h.Chat.Watch(ctx, chi.URLParam(r, "pairID"), currentUser(r))
	if err != nil {
		respondError(ctx, w, err)
		return
	}
	serveStream(w, r, h.OriginPatterns, "messages", stream, nil)
}

// Game handles GET /ws/pairs/{pairID}/games/{sessionID}.
func (h StreamHandler) Game(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	pair, err := h.Pairing.Member(ctx, chi.URLParam(r, "pairID"), currentUser(r))
	if err != nil {
		respondError(ctx, w, err)
		return
	}
	stream, err := h.Games.Watch(ctx, pair.ID, chi.URLParam(r, "sessionID"))
	if err != nil {
		respondError(ctx, w, err)
		return
	}
	serveStream(w, r, h.OriginPatterns, "gameSession", stream, nil)
}

// ReceivedRequests handles GET /ws/requests, streaming the caller's pending received
// requests with sender details filled in.
func (h StreamHandler) ReceivedRequests(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	stream, err := h.Requests.WatchReceived(ctx, currentUser(r))
	if err != nil {
		respondError(ctx, w, err)
		return
	}
	serveStream(w, r, h.OriginPatterns, "requests", stream, h.Requests.Enrich)
}

// serveStream owns stream and closes it when the client goes away or the
// stream ends.
func serveStream[T any](w http.ResponseWriter, r *http.Request, origins []string, kind string, stream *repositories.Stream[T], transform func(context.Context, []T) []T) {
	defer stream.Close()
	logger := logging.FromContext(r.Context())

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{OriginPatterns: origins})
	if err != nil {
		logger.Warn("websocket upgrade failed", "stream", kind, "error", err)
		return
	}
	defer conn.CloseNow()

	// Clients only listen; CloseRead handles control frames and cancels ctx on close.
	ctx := conn.CloseRead(r.Context())

	for {
		select {
		case <-ctx.Done():
			return
		case items, ok := <-stream.Updates():
			if !ok {
				conn.Close(websocket.StatusGoingAway, "stream ended")
				return
			}
			if transform != nil {
				items = transform(ctx, items)
			}
			if items == nil {
				items = []T{}
			}

			payload, err := json.Marshal(snapshotFrame[T]{Type: kind, Items: items})
			if err != nil {
				logger.Error("encode stream snapshot", "stream", kind, "error", err)
				conn.Close(websocket.StatusInternalError, "encode failed")
				return
			}

			writeCtx, cancel := context.WithTimeout(ctx, streamWriteTimeout)
			err = conn.Write(writeCtx, websocket.MessageText, payload)
			cancel()
			if err != nil {
				logger.Debug("stream client gone", "stream", kind, "error", err)
				return
			}
		}
	}
}
