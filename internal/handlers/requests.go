package handlers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/socialconnect/backend/internal/models"
)

// RequestHandler drives the connection request workflow.
type RequestHandler struct {
	Requests Requests
}

type sendRequestBody struct {
	ToUserID string `json:"toUserId"`
}

type requestsResponse struct {
	Received []models.ConnectionRequest `json:"received"`
	Sent     []models.ConnectionRequest `json:"sent"`
}

// List handles GET /api/v1/requests and returns both pending inboxes.
func (h RequestHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := currentUser(r)

	received, err := h.Requests.Received(ctx, userID)
	if err != nil {
		respondError(ctx, w, err)
		return
	}
	sent, err := h.Requests.Sent(ctx, userID)
	if err != nil {
		respondError(ctx, w, err)
		return
	}
	respondJSON(ctx, w, http.StatusOK, requestsResponse{Received: received, Sent: sent})
}

// Send handles POST /api/v1/requests.
func (h RequestHandler) Send(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req sendRequestBody
	if !decodeJSON(w, r, &req) {
		return
	}
	req.ToUserID = strings.TrimSpace(req.ToUserID)
	if req.ToUserID == "" {
		respondError(ctx, w, models.Alert("Invalid Request", "Choose someone to connect with"))
		return
	}

	request, err := h.Requests.Send(ctx, currentUser(r), req.ToUserID)
	if err != nil {
		respondError(ctx, w, err)
		return
	}
	respondJSON(ctx, w, http.StatusCreated, request)
}

// Accept handles POST /api/v1/requests/{requestID}/accept.
func (h RequestHandler) Accept(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	pair, err := h.Requests.Accept(ctx, chi.URLParam(r, "requestID"), currentUser(r))
	if err != nil {
		respondError(ctx, w, err)
		return
	}
	respondJSON(ctx, w, http.StatusOK, pair)
}

// Decline handles POST /api/v1/requests/{requestID}/decline.
func (h RequestHandler) Decline(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if err := h.Requests.Decline(ctx, chi.URLParam(r, "requestID"), currentUser(r)); err != nil {
		respondError(ctx, w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Cancel handles DELETE /api/v1/requests/{requestID}.
func (h RequestHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if err := h.Requests.Cancel(ctx, chi.URLParam(r, "requestID"), currentUser(r)); err != nil {
		respondError(ctx, w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
