// Package backend defines the capability set the board requires from a
// hosted document backend: document create/delete, live collection
// snapshots, server-assigned timestamps, and an authentication service.
// Drivers (redisb, memb) implement Connection; everything above them
// depends only on the narrow interface it consumes.
//
// A Connection is scoped to one tenant at construction time. Every read
// and write goes to that tenant's collection; two deployments sharing a
// backend never see each other's data.
package backend

import (
	"context"
	"time"

	"github.com/ebk1996/services/internal/domain"
)

// Auth is the authentication capability: anonymous sign-in, custom-token
// sign-in, sign-out, and identity-change notifications. A Connection
// holds at most one current identity; sign-in replaces it, sign-out
// clears it, and every change is delivered to identity watchers.
type Auth interface {
	// SignInAnonymously mints a fresh anonymous identity and makes it
	// the connection's current identity.
	SignInAnonymously(ctx context.Context) (*domain.Identity, error)

	// SignInWithToken derives an identity from a pre-provisioned
	// custom token and makes it the connection's current identity.
	SignInWithToken(ctx context.Context, token string) (*domain.Identity, error)

	// SignOut ends the current session. Watchers observe a nil
	// identity. Signing out with no current identity is a no-op.
	SignOut(ctx context.Context) error

	// WatchIdentity streams identity changes for this connection: the
	// current identity on subscribe, then every subsequent change
	// (nil on sign-out or external revocation). The watch stays open
	// until released or the connection closes.
	WatchIdentity(ctx context.Context) (*IdentityWatch, error)
}

// ListingStore is the document capability over the tenant's shared
// listings collection.
type ListingStore interface {
	// CreateListing persists a new listing document. The backend
	// assigns CreatedAt, and mints an ID when the listing carries
	// none; the returned id is the only thing the caller learns
	// before the next snapshot.
	CreateListing(ctx context.Context, listing *domain.Listing) (string, error)

	// DeleteListing removes a listing document. Deleting an id that
	// does not exist is not an error.
	DeleteListing(ctx context.Context, id string) error

	// Listings reads the full collection. No ordering is guaranteed;
	// callers sort.
	Listings(ctx context.Context) ([]*domain.Listing, error)
}

// ListingFeed is the live-query capability: full-snapshot change
// notifications over the tenant's listings collection.
type ListingFeed interface {
	// SubscribeListings opens a live feed that delivers the current
	// collection contents immediately and a fresh full snapshot after
	// every change. At most one snapshot is buffered; slow consumers
	// see the newest state, never a backlog of stale ones.
	SubscribeListings(ctx context.Context) (*Subscription, error)
}

// SessionStore persists session records with expiry.
type SessionStore interface {
	// PutSession stores or refreshes a session record. Drivers honor
	// ExpiresAt with native expiry where the backend supports it.
	PutSession(ctx context.Context, session *domain.Session) error

	// DeleteSession removes a session record. Removing the current
	// identity's record revokes it, which watchers observe as an
	// external sign-out. Missing records are not an error.
	DeleteSession(ctx context.Context, uid string) error

	// Sessions reads the tenant's session records, expired ones
	// included; the sweeper decides what goes.
	Sessions(ctx context.Context) ([]*domain.Session, error)
}

// Clock exposes the backend's own time, the source of every stored
// timestamp. Callers never stamp writes with local time.
type Clock interface {
	ServerTime(ctx context.Context) (time.Time, error)
}

// Connection is the full driver surface. The app holds one Connection
// for its lifetime and hands the narrow capabilities to the components
// that consume them.
type Connection interface {
	Auth
	ListingStore
	ListingFeed
	SessionStore
	Clock

	// Name identifies the driver ("redis", "memory") for diagnostics.
	Name() string

	// Ping verifies the backend is reachable.
	Ping(ctx context.Context) error

	// Close releases the connection and every feed and watch opened
	// through it.
	Close() error
}
