package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/ebk1996/services/internal/httpserver/deps"
)

const readyzPingTimeout = 2 * time.Second

type readyzResponse struct {
	Ready bool   `json:"ready"`
	Error string `json:"error,omitempty"`
}

// Readyz reports whether the board can take traffic: setup succeeded
// and the backend answers a ping right now. A failed setup stays
// unready forever; it is never retried.
func Readyz(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := d.Boot.SetupErr(); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, readyzResponse{
				Ready: false,
				Error: err.Error(),
			})
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), readyzPingTimeout)
		defer cancel()
		if err := d.Backend.Ping(ctx); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, readyzResponse{
				Ready: false,
				Error: err.Error(),
			})
			return
		}

		writeJSON(w, http.StatusOK, readyzResponse{Ready: true})
	}
}
