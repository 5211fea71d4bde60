package domain

import (
	"sort"
	"strings"
	"time"
)

// Listing represents one published service offer on the board.
//
// It is NOT tied to Redis or any other backend. Every driver maps its
// stored documents into this structure before anything else sees them.
//
// A Listing is considered uniquely identified by its ID.
type Listing struct {
	// ─────────────────────────────
	// Identity (immutable)
	// ─────────────────────────────

	// ID is the canonical unique identifier, assigned by the backend
	// at creation time.
	ID string

	// AuthorID identifies the session identity that created the listing.
	// Never changes after creation.
	AuthorID string

	// ─────────────────────────────
	// Content
	// ─────────────────────────────

	// Name is the service name. Never empty for a persisted listing.
	// Example: "Plumbing"
	Name string

	// Description is free text. May be empty.
	Description string

	// ─────────────────────────────
	// Timestamps
	// ─────────────────────────────

	// CreatedAt is assigned by the backend at write time, never by the
	// caller. A zero value means the backend has acknowledged the write
	// but the timestamp has not been observed yet.
	CreatedAt time.Time
}

// Dated reports whether the backend timestamp has been resolved.
func (l *Listing) Dated() bool {
	return !l.CreatedAt.IsZero()
}

// NewListing builds a listing from already-validated input. Name and
// Description are trimmed here so every construction path stores the
// same shape. CreatedAt is left zero: only a backend assigns it.
func NewListing(id, authorID, name, description string) *Listing {
	return &Listing{
		ID:          id,
		AuthorID:    authorID,
		Name:        strings.TrimSpace(name),
		Description: strings.TrimSpace(description),
	}
}

// SortByCreation orders listings newest first. Listings whose server
// timestamp has not resolved yet (zero CreatedAt) sort after every dated
// listing, regardless of insertion order. Ties fall back to ID so the
// order is deterministic.
func SortByCreation(listings []*Listing) {
	sort.SliceStable(listings, func(i, j int) bool {
		return createdBefore(listings[j], listings[i])
	})
}

// createdBefore reports whether a was created strictly before b under
// the board ordering: dated listings compare by CreatedAt, an undated
// listing counts as older than any dated one, and equal timestamps
// compare by ID.
func createdBefore(a, b *Listing) bool {
	switch {
	case !a.Dated() && !b.Dated():
		return a.ID < b.ID
	case !a.Dated():
		return true
	case !b.Dated():
		return false
	case a.CreatedAt.Equal(b.CreatedAt):
		return a.ID < b.ID
	default:
		return a.CreatedAt.Before(b.CreatedAt)
	}
}
