package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/socialconnect/backend/internal/models"
)

// GameHandler lets clients join a pair's shared game session and push their
// own player entry.
type GameHandler struct {
	Pairing Pairing
	Games   Games
	Limiter RateLimiter
}

type pushPlayerBody struct {
	Player         models.PlayerState `json:"player"`
	ConnectPercent float64            `json:"connectPercent"`
}

// Join handles POST /api/v1/pairs/{pairID}/games. It may wait up to the
// join timeout for the partner's session to appear.
func (h GameHandler) Join(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := currentUser(r)

	pair, err := h.Pairing.Member(ctx, chi.URLParam(r, "pairID"), userID)
	if err != nil {
		respondError(ctx, w, err)
		return
	}

	session, err := h.Games.Join(ctx, pair.ID, userID, pair.Partner(userID))
	if err != nil {
		respondError(ctx, w, err)
		return
	}
	respondJSON(ctx, w, http.StatusOK, session)
}

// PushPlayer handles PUT /api/v1/pairs/{pairID}/games/{sessionID}/players/me.
func (h GameHandler) PushPlayer(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := currentUser(r)

	if !allowRequest(h.Limiter, r, "game-push") {
		respondJSON(ctx, w, http.StatusTooManyRequests, errorResponse{Error: "too many updates"})
		return
	}

	pair, err := h.Pairing.Member(ctx, chi.URLParam(r, "pairID"), userID)
	if err != nil {
		respondError(ctx, w, err)
		return
	}

	var req pushPlayerBody
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.ConnectPercent < 0 || req.ConnectPercent > 100 {
		respondError(ctx, w, models.Alert("Invalid Update", "connectPercent must be between 0 and 100"))
		return
	}

	if err := h.Games.Push(ctx, pair.ID, chi.URLParam(r, "sessionID"), userID, req.Player, req.ConnectPercent); err != nil {
		respondError(ctx, w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
