// Package memb is the in-process backend driver. It implements the full
// backend.Connection contract over plain maps and is what development
// mode and the test suite run against.
package memb

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ebk1996/services/internal/auth"
	"github.com/ebk1996/services/internal/backend"
	"github.com/ebk1996/services/internal/domain"
)

// ErrClosed is returned by every operation after Close.
var ErrClosed = errors.New("memory backend closed")

// DefaultSessionTTL bounds session records when no TTL is configured.
const DefaultSessionTTL = 24 * time.Hour

// Option configures a Conn.
type Option func(*Conn)

// WithValidator enables custom-token sign-in.
func WithValidator(v *auth.Validator) Option {
	return func(c *Conn) { c.validator = v }
}

// WithSessionTTL overrides the session record lifetime.
func WithSessionTTL(ttl time.Duration) Option {
	return func(c *Conn) { c.sessionTTL = ttl }
}

// WithClock overrides the server clock. Test hook.
func WithClock(now func() time.Time) Option {
	return func(c *Conn) { c.now = now }
}

// Conn is an in-process backend connection for one tenant.
type Conn struct {
	validator  *auth.Validator
	sessionTTL time.Duration
	now        func() time.Time

	mu       sync.RWMutex
	listings map[string]*domain.Listing // id -> listing
	sessions map[string]*domain.Session // uid -> session
	subs     map[*backend.Subscription]struct{}
	watches  map[*backend.IdentityWatch]struct{}
	current  *domain.Identity

	holdStamps bool
	pending    []string // ids awaiting a timestamp

	writeErr error
	closed   bool
}

// New creates an empty in-process backend.
func New(opts ...Option) *Conn {
	c := &Conn{
		sessionTTL: DefaultSessionTTL,
		now:        func() time.Time { return time.Now().UTC() },
		listings:   make(map[string]*domain.Listing),
		sessions:   make(map[string]*domain.Session),
		subs:       make(map[*backend.Subscription]struct{}),
		watches:    make(map[*backend.IdentityWatch]struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Name identifies the driver.
func (c *Conn) Name() string { return "memory" }

// Ping reports whether the backend is usable.
func (c *Conn) Ping(ctx context.Context) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return ErrClosed
	}
	return nil
}

// ServerTime returns the backend clock reading.
func (c *Conn) ServerTime(ctx context.Context) (time.Time, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return time.Time{}, ErrClosed
	}
	return c.now(), nil
}

// Close releases every open feed and watch and rejects further use.
func (c *Conn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	for sub := range c.subs {
		sub.Terminate()
	}
	c.subs = make(map[*backend.Subscription]struct{})
	for w := range c.watches {
		w.Terminate()
	}
	c.watches = make(map[*backend.IdentityWatch]struct{})
	return nil
}

// ─────────────────────────────────────────────────────────────────
// Auth
// ─────────────────────────────────────────────────────────────────

// SignInAnonymously mints a fresh anonymous identity.
func (c *Conn) SignInAnonymously(ctx context.Context) (*domain.Identity, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, ErrClosed
	}

	identity := &domain.Identity{
		UID:      uuid.NewString(),
		Provider: domain.ProviderAnonymous,
	}
	c.becomeLocked(identity)
	return identity, nil
}

// SignInWithToken validates a custom token and adopts its identity.
func (c *Conn) SignInWithToken(ctx context.Context, token string) (*domain.Identity, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, ErrClosed
	}
	if c.validator == nil {
		return nil, errors.New("custom token sign-in not configured")
	}

	identity, err := c.validator.Validate(token)
	if err != nil {
		return nil, err
	}
	c.becomeLocked(identity)
	return identity, nil
}

// SignOut clears the current identity and its session record.
func (c *Conn) SignOut(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}
	if c.current == nil {
		return nil
	}

	delete(c.sessions, c.current.UID)
	c.current = nil
	c.notifyIdentityLocked(nil)
	return nil
}

// WatchIdentity registers an identity watch and delivers the current
// identity immediately.
func (c *Conn) WatchIdentity(ctx context.Context) (*backend.IdentityWatch, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, ErrClosed
	}

	var watch *backend.IdentityWatch
	watch = backend.NewIdentityWatch(func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		delete(c.watches, watch)
		watch.Terminate()
	})
	c.watches[watch] = struct{}{}
	watch.Push(c.cloneIdentityLocked())
	return watch, nil
}

// becomeLocked installs identity as current, records its session, and
// notifies watchers.
func (c *Conn) becomeLocked(identity *domain.Identity) {
	now := c.now()
	c.sessions[identity.UID] = &domain.Session{
		UID:       identity.UID,
		Provider:  identity.Provider,
		CreatedAt: now,
		ExpiresAt: now.Add(c.sessionTTL),
	}

	c.current = identity
	c.notifyIdentityLocked(c.cloneIdentityLocked())
}

func (c *Conn) cloneIdentityLocked() *domain.Identity {
	if c.current == nil {
		return nil
	}
	clone := *c.current
	return &clone
}

func (c *Conn) notifyIdentityLocked(identity *domain.Identity) {
	for w := range c.watches {
		w.Push(identity)
	}
}

// ─────────────────────────────────────────────────────────────────
// Listings
// ─────────────────────────────────────────────────────────────────

// CreateListing stores a new document under a server timestamp and
// notifies open feeds. An ID is minted when the listing carries none.
func (c *Conn) CreateListing(ctx context.Context, listing *domain.Listing) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return "", ErrClosed
	}
	if c.writeErr != nil {
		return "", c.writeErr
	}

	stored := *listing
	if stored.ID == "" {
		stored.ID = uuid.NewString()
	}
	if c.holdStamps {
		stored.CreatedAt = time.Time{}
		c.pending = append(c.pending, stored.ID)
	} else {
		stored.CreatedAt = c.now()
	}
	c.listings[stored.ID] = &stored

	c.broadcastLocked()
	return stored.ID, nil
}

// DeleteListing removes a document. Unknown ids are a no-op, and feeds
// are only notified when something was actually removed.
func (c *Conn) DeleteListing(ctx context.Context, id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}
	if c.writeErr != nil {
		return c.writeErr
	}

	if _, ok := c.listings[id]; !ok {
		return nil
	}
	delete(c.listings, id)

	if len(c.pending) > 0 {
		kept := c.pending[:0]
		for _, pid := range c.pending {
			if pid != id {
				kept = append(kept, pid)
			}
		}
		c.pending = kept
	}

	c.broadcastLocked()
	return nil
}

// Listings returns a copy of the collection, unordered.
func (c *Conn) Listings(ctx context.Context) ([]*domain.Listing, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return nil, ErrClosed
	}
	return c.snapshotLocked(), nil
}

func (c *Conn) snapshotLocked() []*domain.Listing {
	out := make([]*domain.Listing, 0, len(c.listings))
	for _, l := range c.listings {
		clone := *l
		out = append(out, &clone)
	}
	return out
}

// ─────────────────────────────────────────────────────────────────
// Live feed
// ─────────────────────────────────────────────────────────────────

// SubscribeListings opens a feed and delivers the current contents
// immediately.
func (c *Conn) SubscribeListings(ctx context.Context) (*backend.Subscription, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, ErrClosed
	}

	var sub *backend.Subscription
	sub = backend.NewSubscription(func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		delete(c.subs, sub)
		sub.Terminate()
	})
	c.subs[sub] = struct{}{}
	sub.Push(c.snapshotLocked())
	return sub, nil
}

func (c *Conn) broadcastLocked() {
	for sub := range c.subs {
		sub.Push(c.snapshotLocked())
	}
}

// ─────────────────────────────────────────────────────────────────
// Sessions
// ─────────────────────────────────────────────────────────────────

// PutSession stores or refreshes a session record.
func (c *Conn) PutSession(ctx context.Context, session *domain.Session) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}
	clone := *session
	c.sessions[session.UID] = &clone
	return nil
}

// DeleteSession removes a session record. Removing the current
// identity's record revokes it: watchers observe a nil identity, which
// is exactly what an external sign-out looks like.
func (c *Conn) DeleteSession(ctx context.Context, uid string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}

	delete(c.sessions, uid)
	if c.current != nil && c.current.UID == uid {
		c.current = nil
		c.notifyIdentityLocked(nil)
	}
	return nil
}

// Sessions returns a copy of the session records, expired ones
// included.
func (c *Conn) Sessions(ctx context.Context) ([]*domain.Session, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return nil, ErrClosed
	}

	out := make([]*domain.Session, 0, len(c.sessions))
	for _, s := range c.sessions {
		clone := *s
		out = append(out, &clone)
	}
	return out, nil
}

// ─────────────────────────────────────────────────────────────────
// Test hooks
// ─────────────────────────────────────────────────────────────────

// HoldTimestamps makes subsequent creates store a zero CreatedAt, the
// state a record is in between write acknowledgement and timestamp
// resolution.
func (c *Conn) HoldTimestamps() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.holdStamps = true
}

// ReleaseTimestamps stamps every held record with the current server
// time and notifies feeds.
func (c *Conn) ReleaseTimestamps() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.holdStamps = false

	if len(c.pending) == 0 {
		return
	}
	now := c.now()
	for _, id := range c.pending {
		if l, ok := c.listings[id]; ok {
			l.CreatedAt = now
		}
	}
	c.pending = nil
	c.broadcastLocked()
}

// FailWrites makes creates and deletes fail with err until cleared with
// nil.
func (c *Conn) FailWrites(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.writeErr = err
}

// BreakFeed pushes a feed failure to every open subscription.
func (c *Conn) BreakFeed(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for sub := range c.subs {
		sub.Fail(err)
	}
}
