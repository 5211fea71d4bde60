package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/ebk1996/services/internal/httpserver/deps"
)

type componentStatus struct {
	OK       bool   `json:"ok"`
	Driver   string `json:"driver,omitempty"`
	State    string `json:"state,omitempty"`
	Provider string `json:"provider,omitempty"`
	UID      string `json:"uid,omitempty"`
	Count    *int   `json:"count,omitempty"`
	Revision uint64 `json:"revision,omitempty"`
	LastSync string `json:"last_sync,omitempty"`
	Stale    bool   `json:"stale,omitempty"`
	Impact   string `json:"impact,omitempty"`
	Error    string `json:"error,omitempty"`
}

type infraResponse struct {
	BoardMode  string                     `json:"board_mode"`
	Components map[string]componentStatus `json:"components"`
}

// Infra reports per-component status and an overall board mode:
// "blocked" when setup failed, "degraded" when the feed is stale or
// auth is down, "live" otherwise.
func Infra(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		components := map[string]componentStatus{
			"backend":  checkBackend(r.Context(), d),
			"session":  checkSession(d),
			"listings": checkListings(d),
			"seed":     checkSeed(d),
		}

		writeJSON(w, http.StatusOK, infraResponse{
			BoardMode:  boardMode(d, components),
			Components: components,
		})
	}
}

func boardMode(d deps.Deps, components map[string]componentStatus) string {
	if d.Boot.SetupErr() != nil {
		return "blocked"
	}
	if !components["backend"].OK || !components["session"].OK || components["listings"].Stale {
		return "degraded"
	}
	return "live"
}

func checkBackend(ctx context.Context, d deps.Deps) componentStatus {
	if d.Backend == nil {
		status := componentStatus{
			OK:     false,
			Impact: "board-blocked",
			Error:  "connection never established",
		}
		if err := d.Boot.SetupErr(); err != nil {
			status.Error = err.Error()
		}
		return status
	}

	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	if err := d.Backend.Ping(pingCtx); err != nil {
		return componentStatus{
			OK:     false,
			Driver: d.Backend.Name(),
			Impact: "writes-and-feed-failing",
			Error:  err.Error(),
		}
	}
	return componentStatus{
		OK:     true,
		Driver: d.Backend.Name(),
	}
}

func checkSession(d deps.Deps) componentStatus {
	status := componentStatus{
		State: string(d.Boot.State()),
	}
	if identity := d.Boot.Identity(); identity != nil {
		status.OK = true
		status.Provider = string(identity.Provider)
		status.UID = identity.UID
	} else {
		status.Impact = "writes-rejected"
	}
	if err := d.Boot.Err(); err != nil {
		status.Error = err.Error()
	}
	return status
}

func checkListings(d deps.Deps) componentStatus {
	count := d.Replica.Count()
	status := componentStatus{
		OK:       true,
		Count:    &count,
		Revision: d.Replica.Revision(),
	}
	if last := d.Replica.LastSync(); !last.IsZero() {
		status.LastSync = last.UTC().Format(time.RFC3339)
	}
	if err := d.Replica.Err(); err != nil {
		status.OK = false
		status.Stale = true
		status.Impact = "showing-last-known-list"
		status.Error = err.Error()
	}
	return status
}

func checkSeed(d deps.Deps) componentStatus {
	if d.SeedReloadTrigger == nil {
		return componentStatus{
			OK:    true,
			State: "disabled",
		}
	}
	return componentStatus{
		OK:    true,
		State: "enabled",
	}
}
