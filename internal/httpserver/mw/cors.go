package mw

import (
	"net/http"

	"github.com/go-chi/cors"
)

// CORS opens the JSON API to the configured origins. With no origins
// configured the board is same-origin only and the middleware is a
// passthrough; browsers then refuse cross-site calls on their own.
func CORS(origins []string) func(http.Handler) http.Handler {
	if len(origins) == 0 {
		return func(next http.Handler) http.Handler { return next }
	}

	return cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-ID"},
		ExposedHeaders: []string{"X-Request-ID", "Retry-After"},
		MaxAge:         300,
	})
}
