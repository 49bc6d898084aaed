package handlers

import (
	"net/http"
	"strings"

	"github.com/socialconnect/backend/internal/accounts"
)

// ProfileHandler serves the caller's profile and the user directory.
type ProfileHandler struct {
	Accounts Accounts
}

// Me handles GET /api/v1/me.
func (h ProfileHandler) Me(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	user, err := h.Accounts.Profile(ctx, currentUser(r))
	if err != nil {
		respondError(ctx, w, err)
		return
	}
	respondJSON(ctx, w, http.StatusOK, user)
}

// Update handles PATCH /api/v1/me.
func (h ProfileHandler) Update(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req accounts.ProfileInput
	if !decodeJSON(w, r, &req) {
		return
	}

	user, err := h.Accounts.UpdateProfile(ctx, currentUser(r), req)
	if err != nil {
		respondError(ctx, w, err)
		return
	}
	respondJSON(ctx, w, http.StatusOK, user)
}

// RegenerateCode handles POST /api/v1/me/code.
func (h ProfileHandler) RegenerateCode(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	code, err := h.Accounts.RegenerateCode(ctx, currentUser(r))
	if err != nil {
		respondError(ctx, w, err)
		return
	}
	respondJSON(ctx, w, http.StatusOK, map[string]string{"code": code})
}

// Directory handles GET /api/v1/users?q=&gender=.
func (h ProfileHandler) Directory(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	query := r.URL.Query()

	users, err := h.Accounts.Directory(ctx, currentUser(r), strings.TrimSpace(query.Get("q")), strings.TrimSpace(query.Get("gender")))
	if err != nil {
		respondError(ctx, w, err)
		return
	}
	respondJSON(ctx, w, http.StatusOK, map[string]any{"users": users})
}

// Random handles GET /api/v1/users/random.
func (h ProfileHandler) Random(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	user, err := h.Accounts.RandomUser(ctx, currentUser(r))
	if err != nil {
		respondError(ctx, w, err)
		return
	}
	respondJSON(ctx, w, http.StatusOK, user)
}
