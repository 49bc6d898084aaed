package middleware

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"golang.org/x/time/rate"

	"github.com/socialconnect/backend/internal/logging"
)

type tokenAuthenticator map[string]string

func (a tokenAuthenticator) Authenticate(_ context.Context, token string) (string, error) {
	if userID, ok := a[token]; ok {
		return userID, nil
	}
	return "", errors.New("unknown token")
}

func TestRequireAuth(t *testing.T) {
	var seen string
	handler := RequireAuth(tokenAuthenticator{"good": "user-1"})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = logging.UserIDFromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	cases := []struct {
		name   string
		header string
		query  string
		status int
	}{
		{name: "missing", status: http.StatusUnauthorized},
		{name: "bad token", header: "Bearer nope", status: http.StatusUnauthorized},
		{name: "header", header: "Bearer good", status: http.StatusNoContent},
		{name: "query", query: "?access_token=good", status: http.StatusNoContent},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			seen = ""
			req := httptest.NewRequest(http.MethodGet, "/api/v1/me"+tc.query, nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			if rec.Code != tc.status {
				t.Fatalf("expected status %d got %d", tc.status, rec.Code)
			}
			if tc.status == http.StatusNoContent && seen != "user-1" {
				t.Fatalf("expected user id in context, got %q", seen)
			}
		})
	}
}

func TestKeyedRateLimiter(t *testing.T) {
	clock := clockwork.NewFakeClock()
	limiter := NewKeyedRateLimiter(rate.Limit(10), 2, time.Minute, clock)

	if !limiter.Allow("a") || !limiter.Allow("a") {
		t.Fatal("burst should be allowed")
	}
	if limiter.Allow("a") {
		t.Fatal("third immediate call should be limited")
	}
	if !limiter.Allow("b") {
		t.Fatal("keys must be limited independently")
	}

	clock.Advance(100 * time.Millisecond)
	if !limiter.Allow("a") {
		t.Fatal("token should refill after 100ms at 10/s")
	}
}

func TestRequestLoggerRecoversPanics(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	handler := RequestLogger(logger)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500 got %d", rec.Code)
	}
	if rec.Header().Get("X-Request-ID") == "" {
		t.Fatal("expected a request id header")
	}
}
