package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// PairHandler exposes connecting by code and the pair list.
type PairHandler struct {
	Pairing Pairing
}

type connectRequest struct {
	Code string `json:"code"`
}

// Connect handles POST /api/v1/connect.
func (h PairHandler) Connect(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req connectRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	pair, err := h.Pairing.ConnectByCode(ctx, currentUser(r), req.Code)
	if err != nil {
		respondError(ctx, w, err)
		return
	}
	respondJSON(ctx, w, http.StatusCreated, pair)
}

// List handles GET /api/v1/pairs.
func (h PairHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	pairs, err := h.Pairing.List(ctx, currentUser(r))
	if err != nil {
		respondError(ctx, w, err)
		return
	}
	respondJSON(ctx, w, http.StatusOK, map[string]any{"pairs": pairs})
}

// Disconnect handles DELETE /api/v1/pairs/{pairID}.
func (h PairHandler) Disconnect(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if err := h.Pairing.Disconnect(ctx, chi.URLParam(r, "pairID"), currentUser(r)); err != nil {
		respondError(ctx, w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
