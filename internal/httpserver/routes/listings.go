package routes

import (
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/ebk1996/services/internal/httpserver/deps"
	"github.com/ebk1996/services/internal/httpserver/handlers"
	"github.com/ebk1996/services/internal/httpserver/mw"
)

func init() { Register(registerListings) }

func registerListings(r chi.Router, d deps.Deps) {
	r.Route("/api/listings", func(r chi.Router) {
		r.Use(middleware.Timeout(10 * time.Second))
		r.Use(mw.EnforceHost(d.AllowedHosts, d.Logger))

		r.Get("/", handlers.ListListings(d))

		// Only the mutating verbs sit behind the rate limit.
		r.Group(func(r chi.Router) {
			r.Use(mw.RateLimit(mw.RateLimitConfig{
				Burst:             d.RateBurst,
				RefillPerIPPerMin: d.RateRefillMin,
				TrustProxy:        d.TrustProxy,
			}))
			r.Post("/", handlers.CreateListing(d))
			r.Delete("/{id}", handlers.DeleteListing(d))
		})
	})
}
