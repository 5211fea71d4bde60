package domain

import "time"

// Session is the persisted record of one established identity.
// Backends store sessions with a TTL so abandoned anonymous identities
// age out instead of accumulating forever; the sweeper removes the
// stragglers whose expiry the backend could not enforce natively.
type Session struct {
	// ─────────────────────────────
	// Identity (immutable)
	// ─────────────────────────────

	// UID matches Identity.UID.
	UID string

	// Provider records how the identity was established.
	Provider AuthProvider

	// ─────────────────────────────
	// Lifecycle
	// ─────────────────────────────

	// CreatedAt is when the identity was first established.
	CreatedAt time.Time

	// ExpiresAt is when the session record may be swept. Refreshed on
	// re-authentication.
	ExpiresAt time.Time
}

// Expired reports whether the session record is past its expiry.
func (s *Session) Expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && now.After(s.ExpiresAt)
}
