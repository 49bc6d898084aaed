package handlers

import (
	"github.com/go-chi/chi/v5"

	"github.com/socialconnect/backend/internal/middleware"
)

// Dependencies aggregates collaborators required by HTTP handlers.
type Dependencies struct {
	Accounts Accounts
	Sessions SessionManager
	Pairing  Pairing
	Requests Requests
	Chat     Chat
	Games    Games

	AuthLimiter RateLimiter
	PushLimiter RateLimiter

	OriginPatterns []string
}

// RegisterRoutes wires HTTP and WebSocket handlers into r.
func RegisterRoutes(r chi.Router, deps Dependencies) {
	health := HealthHandler{}
	authH := AuthHandler{Accounts: deps.Accounts, Sessions: deps.Sessions, Limiter: deps.AuthLimiter}
	profile := ProfileHandler{Accounts: deps.Accounts}
	pairs := PairHandler{Pairing: deps.Pairing}
	reqs := RequestHandler{Requests: deps.Requests}
	messages := MessageHandler{Chat: deps.Chat}
	games := GameHandler{Pairing: deps.Pairing, Games: deps.Games, Limiter: deps.PushLimiter}
	streams := StreamHandler{
		Pairing:        deps.Pairing,
		Requests:       deps.Requests,
		Chat:           deps.Chat,
		Games:          deps.Games,
		OriginPatterns: deps.OriginPatterns,
	}

	requireAuth := middleware.RequireAuth(deps.Sessions)

	r.Get("/healthz", health.Handle)

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/auth/signup", authH.SignUp)
		r.Post("/auth/login", authH.Login)
		r.Post("/auth/refresh", authH.Refresh)

		r.Group(func(r chi.Router) {
			r.Use(requireAuth)

			r.Get("/me", profile.Me)
			r.Patch("/me", profile.Update)
			r.Post("/me/code", profile.RegenerateCode)
			r.Get("/users", profile.Directory)
			r.Get("/users/random", profile.Random)

			r.Post("/connect", pairs.Connect)
			r.Get("/pairs", pairs.List)
			r.Delete("/pairs/{pairID}", pairs.Disconnect)

			r.Get("/requests", reqs.List)
			r.Post("/requests", reqs.Send)
			r.Post("/requests/{requestID}/accept", reqs.Accept)
			r.Post("/requests/{requestID}/decline", reqs.Decline)
			r.Delete("/requests/{requestID}", reqs.Cancel)

			r.Get("/pairs/{pairID}/messages", messages.List)
			r.Post("/pairs/{pairID}/messages", messages.Send)

			r.Post("/pairs/{pairID}/games", games.Join)
			r.Put("/pairs/{pairID}/games/{sessionID}/players/me", games.PushPlayer)
		})
	})

	r.Route("/ws", func(r chi.Router) {
		r.Use(requireAuth)
		r.Get("/pairs/{pairID}/messages", streams.Messages)
		r.Get("/pairs/{pairID}/games/{sessionID}", streams.Game)
		r.Get("/requests", streams.ReceivedRequests)
	})
}
