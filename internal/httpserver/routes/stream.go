package routes

import (
	"github.com/go-chi/chi/v5"

	"github.com/ebk1996/services/internal/httpserver/deps"
	"github.com/ebk1996/services/internal/httpserver/handlers"
	"github.com/ebk1996/services/internal/httpserver/mw"
)

func init() { Register(registerStream) }

// No Timeout middleware here: the stream is a long-lived WebSocket and
// a request deadline would cut every client off mid-feed.
func registerStream(r chi.Router, d deps.Deps) {
	r.With(mw.EnforceHost(d.AllowedHosts, d.Logger)).
		Get("/api/stream", handlers.Stream(d))
}
