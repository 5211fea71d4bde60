package handlers

import (
	"net/http"
	"time"

	"github.com/ebk1996/services/internal/httpserver/deps"
)

type healthzResponse struct {
	Status        string  `json:"status"`
	Tenant        string  `json:"tenant"`
	UptimeSeconds float64 `json:"uptime_seconds"`
	Version       string  `json:"version,omitempty"`
	Commit        string  `json:"commit,omitempty"`
	BuildDate     string  `json:"build_date,omitempty"`
	GoVersion     string  `json:"go_version,omitempty"`
}

// Healthz is liveness only: the process is up and serving. A board
// whose backend never came up is still alive; readyz is what says
// whether it can do anything useful.
func Healthz(d deps.Deps) http.HandlerFunc {
	start := d.StartTime
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, healthzResponse{
			Status:        "ok",
			Tenant:        d.Tenant,
			Version:       d.Version,
			Commit:        d.Commit,
			BuildDate:     d.BuildDate,
			GoVersion:     d.GoVersion,
			UptimeSeconds: time.Since(start).Seconds(),
		})
	}
}
