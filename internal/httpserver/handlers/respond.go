package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/ebk1996/services/internal/domain"
	"github.com/ebk1996/services/internal/httpserver/deps"
	"github.com/ebk1996/services/internal/logger"
)

// errorResponse is the JSON body of every failed API call.
type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// writeError maps a board failure class onto an HTTP status and sends
// it as a JSON error body. Unrecognized errors become 500s.
func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, statusFor(err), errorResponse{Error: err.Error()})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrInvalidListing):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrCreateInFlight):
		return http.StatusConflict
	case errors.Is(err, domain.ErrWriteFailed), errors.Is(err, domain.ErrAuthFailed):
		return http.StatusBadGateway
	case errors.Is(err, domain.ErrSetupFailed), errors.Is(err, domain.ErrNotAuthenticated):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// blockedBySetup answers API calls with the terminal setup error while
// the backend never came up. The whole JSON surface sits behind it, so
// a broken deployment fails loudly instead of serving an empty board.
func blockedBySetup(w http.ResponseWriter, d deps.Deps) bool {
	err := d.Boot.SetupErr()
	if err == nil {
		return false
	}
	d.Logger.Debug("request rejected, backend setup failed",
		logger.Error(err))
	writeError(w, err)
	return true
}

// decodeJSON reads a small JSON request body, rejecting unknown fields.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any, maxBytes int64) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}
