package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// MessageHandler serves a pair's chat channel.
type MessageHandler struct {
	Chat Chat
}

type sendMessageBody struct {
	Text string `json:"text"`
	// CreatedAt is the client's epoch milliseconds; zero lets the server pick.
	CreatedAt int64 `json:"createdAt"`
}

// List handles GET /api/v1/pairs/{pairID}/messages.
func (h MessageHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	messages, err := h.Chat.List(ctx, chi.URLParam(r, "pairID"), currentUser(r))
	if err != nil {
		respondError(ctx, w, err)
		return
	}
	respondJSON(ctx, w, http.StatusOK, map[string]any{"messages": messages})
}

// Send handles POST /api/v1/pairs/{pairID}/messages.
func (h MessageHandler) Send(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req sendMessageBody
	if !decodeJSON(w, r, &req) {
		return
	}

	message, err := h.Chat.Send(ctx, chi.URLParam(r, "pairID"), currentUser(r), req.Text, req.CreatedAt)
	if err != nil {
		respondError(ctx, w, err)
		return
	}
	respondJSON(ctx, w, http.StatusCreated, message)
}
