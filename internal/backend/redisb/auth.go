package redisb

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/ebk1996/services/internal/backend"
	"github.com/ebk1996/services/internal/domain"
	"github.com/ebk1996/services/internal/logger"
)

// SignInAnonymously mints a fresh anonymous identity, records its
// session, and makes it current.
func (c *Conn) SignInAnonymously(ctx context.Context) (*domain.Identity, error) {
	identity := &domain.Identity{
		UID:      uuid.NewString(),
		Provider: domain.ProviderAnonymous,
	}
	if err := c.become(ctx, identity); err != nil {
		return nil, err
	}
	return identity, nil
}

// SignInWithToken validates a custom token and adopts its identity.
func (c *Conn) SignInWithToken(ctx context.Context, token string) (*domain.Identity, error) {
	if c.isClosed() {
		return nil, ErrClosed
	}
	if c.validator == nil {
		return nil, errors.New("custom token sign-in not configured")
	}

	identity, err := c.validator.Validate(token)
	if err != nil {
		return nil, err
	}
	if err := c.become(ctx, identity); err != nil {
		return nil, err
	}
	return identity, nil
}

// SignOut clears the current identity locally, then deletes its session
// record.
func (c *Conn) SignOut(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	if c.current == nil {
		c.mu.Unlock()
		return nil
	}
	uid := c.current.UID
	c.current = nil
	c.notifyWatchesLocked(nil)
	c.mu.Unlock()

	return c.DeleteSession(ctx, uid)
}

// WatchIdentity registers an identity watch and delivers the current
// identity immediately. Watches are local; the connection's single
// revocation pipe feeds all of them.
func (c *Conn) WatchIdentity(ctx context.Context) (*backend.IdentityWatch, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, ErrClosed
	}

	var watch *backend.IdentityWatch
	watch = backend.NewIdentityWatch(func() {
		c.mu.Lock()
		delete(c.watches, watch)
		c.mu.Unlock()
		watch.Terminate()
	})
	c.watches[watch] = struct{}{}
	watch.Push(c.cloneCurrentLocked())
	return watch, nil
}

// become records the identity's session on the backend first, then
// installs it as current. A session write failure leaves the previous
// identity in place.
func (c *Conn) become(ctx context.Context, identity *domain.Identity) error {
	now, err := c.ServerTime(ctx)
	if err != nil {
		return err
	}
	session := &domain.Session{
		UID:       identity.UID,
		Provider:  identity.Provider,
		CreatedAt: now,
		ExpiresAt: now.Add(c.sessionTTL),
	}
	if err := c.PutSession(ctx, session); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}
	c.current = identity
	c.notifyWatchesLocked(c.cloneCurrentLocked())
	return nil
}

// authLoop turns published revocations into local sign-outs. The
// channel carries uids whose session records were deleted; only the
// connection currently holding that uid reacts.
func (c *Conn) authLoop() {
	defer close(c.authDone)
	for msg := range c.authSub.Channel() {
		c.revoke(msg.Payload)
	}
}

func (c *Conn) revoke(uid string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current == nil || c.current.UID != uid {
		return
	}
	c.logger.Info("session revoked externally", logger.String("uid", uid))
	c.current = nil
	c.notifyWatchesLocked(nil)
}

func (c *Conn) cloneCurrentLocked() *domain.Identity {
	if c.current == nil {
		return nil
	}
	clone := *c.current
	return &clone
}

func (c *Conn) notifyWatchesLocked(identity *domain.Identity) {
	for w := range c.watches {
		w.Push(identity)
	}
}
