package routes

import (
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/ebk1996/services/internal/httpserver/deps"
	"github.com/ebk1996/services/internal/httpserver/handlers"
	"github.com/ebk1996/services/internal/httpserver/mw"
)

func init() { Register(registerSession) }

func registerSession(r chi.Router, d deps.Deps) {
	r.Route("/api/session", func(r chi.Router) {
		r.Use(middleware.Timeout(10 * time.Second))
		r.Use(mw.EnforceHost(d.AllowedHosts, d.Logger))

		r.Get("/", handlers.Session(d))

		// Sign-out mints a fresh identity; limit it like any write.
		r.With(mw.RateLimit(mw.RateLimitConfig{
			Burst:             d.RateBurst,
			RefillPerIPPerMin: d.RateRefillMin,
			TrustProxy:        d.TrustProxy,
		})).Post("/signout", handlers.SignOut(d))
	})
}
