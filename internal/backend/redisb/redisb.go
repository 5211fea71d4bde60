// Package redisb is the Redis-backed driver. Listings and session
// records are JSON documents behind per-tenant index sets, listing
// changes fan out over one pub/sub channel, and session revocations over
// another, so every process sharing a tenant converges on the same
// board.
package redisb

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ebk1996/services/internal/auth"
	"github.com/ebk1996/services/internal/backend"
	"github.com/ebk1996/services/internal/domain"
	"github.com/ebk1996/services/internal/logger"
)

// ErrClosed is returned by every operation after Close.
var ErrClosed = errors.New("redis backend closed")

// DefaultSessionTTL bounds session records when no TTL is configured.
const DefaultSessionTTL = 24 * time.Hour

// Options configures a Conn.
type Options struct {
	// Tenant names this deployment's slice of the shared key space.
	Tenant string

	// SessionTTL is the logical session lifetime. Zero means
	// DefaultSessionTTL.
	SessionTTL time.Duration

	// Validator enables custom-token sign-in. Nil leaves it
	// unconfigured.
	Validator *auth.Validator
}

// Conn is a Redis-backed connection for one tenant. It owns the client:
// Close releases it.
type Conn struct {
	client     *redis.Client
	keys       keySet
	validator  *auth.Validator
	sessionTTL time.Duration
	logger     logger.Logger

	mu      sync.Mutex
	current *domain.Identity
	watches map[*backend.IdentityWatch]struct{}
	feeds   map[*redis.PubSub]struct{}
	closed  bool

	authSub  *redis.PubSub
	authDone chan struct{}
}

// New wraps an established client into a tenant-scoped connection and
// starts listening for session revocations.
func New(client *redis.Client, opts Options, log logger.Logger) (*Conn, error) {
	if opts.Tenant == "" {
		return nil, errors.New("redis backend: tenant is required")
	}
	if opts.SessionTTL <= 0 {
		opts.SessionTTL = DefaultSessionTTL
	}

	c := &Conn{
		client:     client,
		keys:       newKeySet(opts.Tenant),
		validator:  opts.Validator,
		sessionTTL: opts.SessionTTL,
		logger:     log,
		watches:    make(map[*backend.IdentityWatch]struct{}),
		feeds:      make(map[*redis.PubSub]struct{}),
		authDone:   make(chan struct{}),
	}

	// One revocation pipe for the connection's lifetime, shared by
	// every identity watch.
	c.authSub = client.Subscribe(context.Background(), c.keys.auth())
	if _, err := c.authSub.Receive(context.Background()); err != nil {
		_ = c.authSub.Close()
		return nil, fmt.Errorf("subscribe revocations: %w", err)
	}
	go c.authLoop()

	return c, nil
}

// Name identifies the driver.
func (c *Conn) Name() string { return "redis" }

// Ping verifies the backend is reachable.
func (c *Conn) Ping(ctx context.Context) error {
	if c.isClosed() {
		return ErrClosed
	}
	return c.client.Ping(ctx).Err()
}

// ServerTime reads the backend clock. Every stored timestamp comes from
// here, never from the local host.
func (c *Conn) ServerTime(ctx context.Context) (time.Time, error) {
	if c.isClosed() {
		return time.Time{}, ErrClosed
	}
	now, err := c.client.Time(ctx).Result()
	if err != nil {
		return time.Time{}, fmt.Errorf("read server time: %w", err)
	}
	return now.UTC(), nil
}

// Close terminates every watch and feed, stops the revocation listener,
// and releases the client.
func (c *Conn) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true

	watches := make([]*backend.IdentityWatch, 0, len(c.watches))
	for w := range c.watches {
		watches = append(watches, w)
	}
	c.watches = make(map[*backend.IdentityWatch]struct{})

	feeds := make([]*redis.PubSub, 0, len(c.feeds))
	for f := range c.feeds {
		feeds = append(feeds, f)
	}
	c.feeds = make(map[*redis.PubSub]struct{})
	c.mu.Unlock()

	for _, w := range watches {
		w.Terminate()
	}
	// Closing a feed's pub/sub makes its pump exit and terminate the
	// subscription itself.
	for _, f := range feeds {
		_ = f.Close()
	}

	_ = c.authSub.Close()
	<-c.authDone

	return c.client.Close()
}

func (c *Conn) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}
