package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/socialconnect/backend/internal/accounts"
	"github.com/socialconnect/backend/internal/auth"
	"github.com/socialconnect/backend/internal/logging"
	"github.com/socialconnect/backend/internal/models"
	"github.com/socialconnect/backend/internal/pairing"
	"github.com/socialconnect/backend/internal/repositories"
	"github.com/socialconnect/backend/internal/requests"
)

const maxBodyBytes = 1 << 20

type errorResponse struct {
	Error   string `json:"error"`
	Title   string `json:"title,omitempty"`
	Message string `json:"message,omitempty"`
}

func respondJSON(ctx context.Context, w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logging.FromContext(ctx).Error("encode response body", "status", status, "error", err)
		return
	}

	logger := logging.FromContext(ctx)
	switch {
	case status >= http.StatusInternalServerError:
		logger.Error("request failed", "status", status, "response", payload)
	case status >= http.StatusBadRequest:
		logger.Warn("request returned client error", "status", status, "response", payload)
	}
}

// respondError maps service errors onto status codes. Unknown errors are
// logged and answered with a static message.
func respondError(ctx context.Context, w http.ResponseWriter, err error) {
	var alert *models.AlertError
	switch {
	case errors.Is(err, pairing.ErrUserNotFound):
		respondJSON(ctx, w, http.StatusNotFound, alertResponse(pairing.ErrUserNotFound))
	case errors.As(err, &alert):
		respondJSON(ctx, w, http.StatusBadRequest, alertResponse(alert))
	case errors.Is(err, repositories.ErrNotFound):
		respondJSON(ctx, w, http.StatusNotFound, errorResponse{Error: "not found"})
	case errors.Is(err, accounts.ErrNoUsers):
		respondJSON(ctx, w, http.StatusNotFound, errorResponse{Error: "no other users yet"})
	case errors.Is(err, pairing.ErrAlreadyConnected):
		respondJSON(ctx, w, http.StatusConflict, errorResponse{Error: "already connected"})
	case errors.Is(err, accounts.ErrEmailTaken):
		respondJSON(ctx, w, http.StatusConflict, errorResponse{Error: "account already exists"})
	case errors.Is(err, accounts.ErrCodeTaken):
		respondJSON(ctx, w, http.StatusConflict, errorResponse{Error: "connect code already in use"})
	case errors.Is(err, requests.ErrInvalidTransition):
		respondJSON(ctx, w, http.StatusConflict, errorResponse{Error: "request is no longer pending"})
	case errors.Is(err, repositories.ErrConflict):
		respondJSON(ctx, w, http.StatusConflict, errorResponse{Error: "conflict"})
	case errors.Is(err, pairing.ErrNotMember), errors.Is(err, requests.ErrForbidden):
		respondJSON(ctx, w, http.StatusForbidden, errorResponse{Error: "forbidden"})
	case errors.Is(err, accounts.ErrInvalidCredentials):
		respondJSON(ctx, w, http.StatusUnauthorized, errorResponse{Error: "invalid credentials"})
	case errors.Is(err, auth.ErrSessionNotFound), errors.Is(err, auth.ErrRefreshTokenExpired):
		respondJSON(ctx, w, http.StatusUnauthorized, errorResponse{Error: "unable to refresh session"})
	default:
		logging.FromContext(ctx).Error("unhandled service error", "error", err)
		respondJSON(ctx, w, http.StatusInternalServerError, errorResponse{Error: "something went wrong, please try again"})
	}
}

func alertResponse(alert *models.AlertError) errorResponse {
	return errorResponse{Error: alert.Title, Title: alert.Title, Message: alert.Message}
}

// decodeJSON reads a JSON body into dst, answering 400 on failure.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	ctx := r.Context()
	err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(dst)
	if err == nil {
		return true
	}
	logging.FromContext(ctx).Warn("invalid request payload", "error", err)
	respondJSON(ctx, w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
	return false
}

func currentUser(r *http.Request) string {
	return logging.UserIDFromContext(r.Context())
}
