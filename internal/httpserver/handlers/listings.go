package handlers

import (
	"net/http"
	"net/url"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ebk1996/services/internal/board"
	"github.com/ebk1996/services/internal/domain"
	"github.com/ebk1996/services/internal/httpserver/deps"
	"github.com/ebk1996/services/internal/logger"
)

const maxCreateBody = 16 << 10 // a name and a description, generously

// listingView is the wire shape of one listing. CreatedAt is RFC3339
// and omitted entirely while the server timestamp has not resolved, so
// clients can tell "pending" from "old".
type listingView struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	AuthorID    string `json:"author_id"`
	CreatedAt   string `json:"created_at,omitempty"`
}

// listingsResponse is the published replica as one consistent snapshot:
// the full list, its revision, and whether the feed behind it is stale.
type listingsResponse struct {
	Listings []listingView `json:"listings"`
	Revision uint64        `json:"revision"`
	Stale    bool          `json:"stale"`
	Error    string        `json:"error,omitempty"`
}

type createRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

type createResponse struct {
	ID string `json:"id"`
}

func viewListing(l *domain.Listing) listingView {
	v := listingView{
		ID:          l.ID,
		Name:        l.Name,
		Description: l.Description,
		AuthorID:    l.AuthorID,
	}
	if l.Dated() {
		v.CreatedAt = l.CreatedAt.UTC().Format(time.RFC3339)
	}
	return v
}

func snapshotResponse(replica *board.Replica) listingsResponse {
	listings, revision, syncErr := replica.Snapshot()

	resp := listingsResponse{
		Listings: make([]listingView, 0, len(listings)),
		Revision: revision,
		Stale:    syncErr != nil,
	}
	for _, l := range listings {
		resp.Listings = append(resp.Listings, viewListing(l))
	}
	if syncErr != nil {
		resp.Error = syncErr.Error()
	}
	return resp
}

// ListListings serves the published replica. It never touches the
// backend: a stale replica is served as-is with its stale flag set.
func ListListings(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if blockedBySetup(w, d) {
			return
		}
		writeJSON(w, http.StatusOK, snapshotResponse(d.Replica))
	}
}

// CreateListing validates the submitted form and issues the write. The
// response carries only the new id; the record itself shows up through
// the next snapshot, never in this response.
func CreateListing(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if blockedBySetup(w, d) {
			return
		}

		var req createRequest
		if err := decodeJSON(w, r, &req, maxCreateBody); err != nil {
			d.Logger.Debug("rejected unreadable create body",
				logger.Error(err))
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
			return
		}

		id, err := d.Gateway.Create(r.Context(), req.Name, req.Description)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, createResponse{ID: id})
	}
}

// DeleteListing removes one listing. Deleting an id that is already
// gone succeeds the same way; the observer's list is what it is.
func DeleteListing(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if blockedBySetup(w, d) {
			return
		}

		// chi hands the param back percent-encoded; seeded ids carry a
		// colon, which browsers escape.
		id := chi.URLParam(r, "id")
		if decoded, err := url.PathUnescape(id); err == nil {
			id = decoded
		}

		if err := d.Gateway.Delete(r.Context(), id); err != nil {
			writeError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
