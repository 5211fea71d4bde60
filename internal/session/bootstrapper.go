// Package session owns the process identity: it bootstraps an
// authenticated session against the backend, watches identity changes
// for the lifetime of the process, and guarantees the board is never
// left without an identity after a successful start.
package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ebk1996/services/internal/backend"
	"github.com/ebk1996/services/internal/domain"
	"github.com/ebk1996/services/internal/logger"
)

const (
	// DefaultAuthTimeout bounds a single sign-in or sign-out call.
	DefaultAuthTimeout = 10 * time.Second
)

// Options configures a Bootstrapper.
type Options struct {
	// Token is the optional pre-provisioned custom token. When set, the
	// first bootstrap signs in with it; every later (re-)bootstrap is
	// anonymous.
	Token string

	// AuthTimeout bounds each auth call against the backend.
	AuthTimeout time.Duration

	// SessionTTL is the lifetime written into refreshed session
	// records.
	SessionTTL time.Duration

	// RefreshInterval is how often a live session record is refreshed.
	// Zero disables refreshing; the record then expires at its original
	// TTL and the identity gets revoked with it.
	RefreshInterval time.Duration
}

// Bootstrapper is the session state machine. States move between
// unauthenticated, authenticating, authenticated, and failed; entering
// unauthenticated always triggers an anonymous sign-in, so sign-out
// means "become anonymous", never "stay signed out".
type Bootstrapper struct {
	conn   backend.Connection
	opts   Options
	logger logger.Logger

	mu            sync.RWMutex
	state         domain.AuthState
	identity      *domain.Identity
	authErr       error
	setupErr      error
	firstResolved bool
	usedToken     bool
	signedInAt    time.Time

	watchers map[chan struct{}]struct{}

	watch   *backend.IdentityWatch
	stopCh  chan struct{}
	stopped sync.Once
	done    chan struct{}
}

// New creates a bootstrapper over an established connection.
func New(conn backend.Connection, opts Options, log logger.Logger) *Bootstrapper {
	if opts.AuthTimeout <= 0 {
		opts.AuthTimeout = DefaultAuthTimeout
	}
	return &Bootstrapper{
		conn:     conn,
		opts:     opts,
		logger:   log,
		state:    domain.AuthUnauthenticated,
		watchers: make(map[chan struct{}]struct{}),
		stopCh:   make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// NewFailed creates a bootstrapper representing a failed backend setup.
// It never authenticates; the shell renders the setup error instead of
// the app body. Start and Stop are safe no-ops.
func NewFailed(err error, log logger.Logger) *Bootstrapper {
	return &Bootstrapper{
		opts:     Options{AuthTimeout: DefaultAuthTimeout},
		logger:   log,
		state:    domain.AuthFailed,
		setupErr: fmt.Errorf("%w: %v", domain.ErrSetupFailed, err),
		watchers: make(map[chan struct{}]struct{}),
		stopCh:   make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start opens the identity watch, performs the initial sign-in, and
// runs the watch loop until Stop.
func (b *Bootstrapper) Start(ctx context.Context) error {
	if b.conn == nil {
		close(b.done)
		return b.setupErr
	}

	watch, err := b.conn.WatchIdentity(ctx)
	if err != nil {
		b.mu.Lock()
		b.setupErr = fmt.Errorf("%w: %v", domain.ErrSetupFailed, err)
		b.state = domain.AuthFailed
		b.mu.Unlock()
		close(b.done)
		return b.setupErr
	}
	b.watch = watch

	go b.run(ctx)
	return nil
}

// Stop ends the watch loop and releases the identity watch. It blocks
// until the loop has exited.
func (b *Bootstrapper) Stop() {
	b.stopped.Do(func() {
		close(b.stopCh)
		if b.watch != nil {
			b.watch.Close()
		}
	})
	<-b.done
}

func (b *Bootstrapper) run(ctx context.Context) {
	defer close(b.done)

	var refreshCh <-chan time.Time
	if b.opts.RefreshInterval > 0 {
		ticker := time.NewTicker(b.opts.RefreshInterval)
		defer ticker.Stop()
		refreshCh = ticker.C
	}

	for {
		select {
		case identity, ok := <-b.watch.Events():
			if !ok {
				// Connection gone; nothing left to watch.
				return
			}
			if identity != nil {
				b.setAuthenticated(identity)
				continue
			}
			// Entering unauthenticated triggers an anonymous
			// bootstrap, so an external revocation can never strand
			// the board without an identity.
			b.setState(domain.AuthUnauthenticated)
			b.authenticate(ctx)

		case <-refreshCh:
			b.refreshSession(ctx)

		case <-b.stopCh:
			return
		case <-ctx.Done():
			return
		}
	}
}

// authenticate performs one bootstrap attempt. The first attempt uses
// the configured token when present; a token failure is recoverable and
// falls back to anonymous sign-in.
func (b *Bootstrapper) authenticate(ctx context.Context) {
	b.setState(domain.AuthAuthenticating)

	authCtx, cancel := context.WithTimeout(ctx, b.opts.AuthTimeout)
	defer cancel()

	if b.useTokenAttempt() {
		identity, err := b.conn.SignInWithToken(authCtx, b.opts.Token)
		if err == nil {
			b.logger.Info("signed in with custom token",
				logger.String("uid", identity.UID))
			b.setAuthenticated(identity)
			return
		}
		b.logger.Warn("custom token sign-in failed, falling back to anonymous",
			logger.Error(err))
		b.setAuthError(err)
	}

	identity, err := b.conn.SignInAnonymously(authCtx)
	if err != nil {
		b.logger.Error("anonymous sign-in failed",
			logger.Error(err))
		b.setAuthError(err)
		b.setState(domain.AuthFailed)
		return
	}

	b.logger.Info("signed in anonymously",
		logger.String("uid", identity.UID))
	b.setAuthenticated(identity)
}

// SignOut ends the current session. The watch loop observes the cleared
// identity and immediately re-authenticates anonymously; callers only
// wait for the sign-out itself.
func (b *Bootstrapper) SignOut(ctx context.Context) error {
	if b.conn == nil {
		return b.setupErr
	}

	authCtx, cancel := context.WithTimeout(ctx, b.opts.AuthTimeout)
	defer cancel()

	if err := b.conn.SignOut(authCtx); err != nil {
		b.setAuthError(err)
		return fmt.Errorf("%w: %v", domain.ErrAuthFailed, err)
	}
	return nil
}

// refreshSession extends the current identity's session record so a
// live process keeps its identity across the sweep horizon.
func (b *Bootstrapper) refreshSession(ctx context.Context) {
	b.mu.RLock()
	identity := b.identity
	signedInAt := b.signedInAt
	b.mu.RUnlock()
	if identity == nil || b.opts.SessionTTL <= 0 {
		return
	}

	opCtx, cancel := context.WithTimeout(ctx, b.opts.AuthTimeout)
	defer cancel()

	now, err := b.conn.ServerTime(opCtx)
	if err != nil {
		b.logger.Warn("session refresh skipped, server time unavailable",
			logger.Error(err))
		return
	}

	err = b.conn.PutSession(opCtx, &domain.Session{
		UID:       identity.UID,
		Provider:  identity.Provider,
		CreatedAt: signedInAt,
		ExpiresAt: now.Add(b.opts.SessionTTL),
	})
	if err != nil {
		b.logger.Warn("session refresh failed",
			logger.String("uid", identity.UID),
			logger.Error(err))
		return
	}
	b.logger.Debug("session refreshed",
		logger.String("uid", identity.UID))
}

// ─────────────────────────────────────────────────────────────────
// State accessors
// ─────────────────────────────────────────────────────────────────

// State returns the current auth state.
func (b *Bootstrapper) State() domain.AuthState {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.state
}

// Identity returns a copy of the current identity, nil while
// unresolved.
func (b *Bootstrapper) Identity() *domain.Identity {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.identity == nil {
		return nil
	}
	clone := *b.identity
	return &clone
}

// Loading reports whether the first auth resolution is still pending.
func (b *Bootstrapper) Loading() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.setupErr == nil && !b.firstResolved
}

// Err returns the last recoverable auth failure, nil when the last
// attempt succeeded.
func (b *Bootstrapper) Err() error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.authErr
}

// SetupErr returns the terminal setup error, nil when the backend came
// up. A non-nil setup error blocks the whole UI.
func (b *Bootstrapper) SetupErr() error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.setupErr
}

// Watch registers for session change notification. The returned
// channel receives one token after every state or identity change;
// signals coalesce for slow watchers. cancel releases the registration.
func (b *Bootstrapper) Watch() (<-chan struct{}, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan struct{}, 1)
	b.watchers[ch] = struct{}{}

	cancel := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		delete(b.watchers, ch)
	}
	return ch, cancel
}

func (b *Bootstrapper) notifyLocked() {
	for ch := range b.watchers {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

func (b *Bootstrapper) setState(state domain.AuthState) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.state = state
	if state == domain.AuthUnauthenticated {
		b.identity = nil
	}
	b.notifyLocked()
}

func (b *Bootstrapper) setAuthenticated(identity *domain.Identity) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.state = domain.AuthAuthenticated
	b.identity = identity
	b.authErr = nil
	b.firstResolved = true
	b.signedInAt = time.Now().UTC()
	b.notifyLocked()
}

func (b *Bootstrapper) setAuthError(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.authErr = fmt.Errorf("%w: %v", domain.ErrAuthFailed, err)
	b.firstResolved = true
	b.notifyLocked()
}

// useTokenAttempt reports whether this attempt should use the
// configured token, and burns it: the token is only ever tried once.
func (b *Bootstrapper) useTokenAttempt() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.opts.Token == "" || b.usedToken {
		return false
	}
	b.usedToken = true
	return true
}
