package handlers

import (
	"net/http"
	"time"

	"github.com/ebk1996/services/internal/httpserver/deps"
	"github.com/ebk1996/services/internal/httpserver/web"
	"github.com/ebk1996/services/internal/logger"
)

// Page serves the board UI with the current state already rendered in:
// the setup notice when the backend never came up, the loading state
// before the first auth resolution, and otherwise the form plus the
// published list. The page's script takes over from there.
func Page(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		data := web.PageData{
			Tenant:  d.Tenant,
			Version: d.Version,
		}

		status := http.StatusOK
		if err := d.Boot.SetupErr(); err != nil {
			data.SetupError = err.Error()
			status = http.StatusServiceUnavailable
		} else {
			data.Loading = d.Boot.Loading()
			if err := d.Boot.Err(); err != nil {
				data.AuthError = err.Error()
			}
			if identity := d.Boot.Identity(); identity != nil {
				data.Identity = &web.PageIdentity{
					UID:         identity.UID,
					Provider:    string(identity.Provider),
					DisplayName: identity.DisplayName,
				}
			}

			listings, _, syncErr := d.Replica.Snapshot()
			data.Stale = syncErr != nil
			data.Listings = make([]web.PageListing, 0, len(listings))
			for _, l := range listings {
				row := web.PageListing{
					ID:          l.ID,
					Name:        l.Name,
					Description: l.Description,
					AuthorID:    l.AuthorID,
				}
				if l.Dated() {
					row.CreatedAt = l.CreatedAt.UTC().Format(time.RFC3339)
				}
				data.Listings = append(data.Listings, row)
			}
		}

		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Header().Set("Cache-Control", "no-store")
		w.WriteHeader(status)
		if err := web.Render(w, data); err != nil {
			d.Logger.Error("failed to render page",
				logger.Error(err))
		}
	}
}
