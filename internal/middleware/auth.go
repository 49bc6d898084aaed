package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/socialconnect/backend/internal/logging"
)

// Authenticator resolves an access token to a user id.
type Authenticator interface {
	Authenticate(ctx context.Context, accessToken string) (string, error)
}

// RequireAuth rejects requests without a valid access token. The token is read
// from the Authorization header, or from the access_token query parameter for
// WebSocket upgrades where browsers cannot set headers.
func RequireAuth(authenticator Authenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			token := bearerToken(r)
			if token == "" {
				unauthorized(w, "missing access token")
				return
			}

			userID, err := authenticator.Authenticate(ctx, token)
			if err != nil {
				logging.FromContext(ctx).Warn("rejected access token", "error", err)
				unauthorized(w, "invalid access token")
				return
			}

			ctx = logging.WithUserID(ctx, userID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearerToken(r *http.Request) string {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if scheme, token, ok := strings.Cut(header, " "); ok && strings.EqualFold(scheme, "Bearer") {
		return strings.TrimSpace(token)
	}
	return strings.TrimSpace(r.URL.Query().Get("access_token"))
}

func unauthorized(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}
