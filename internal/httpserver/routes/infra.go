package routes

import (
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/ebk1996/services/internal/httpserver/deps"
	"github.com/ebk1996/services/internal/httpserver/handlers"
	"github.com/ebk1996/services/internal/httpserver/mw"
)

func init() { Register(registerInfra) }

func registerInfra(r chi.Router, d deps.Deps) {
	r.With(
		middleware.Timeout(5*time.Second),
		mw.AllowOnlyCIDRS(d.AllowedCIDRS, d.TrustProxy, d.Logger),
		mw.EnforceHost(d.AllowedHosts, d.Logger),
	).Get("/infra", handlers.Infra(d))
}
