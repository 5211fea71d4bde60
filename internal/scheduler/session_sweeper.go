package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/ebk1996/services/internal/backend"
	"github.com/ebk1996/services/internal/logger"
)

// SessionSweeper purges expired session records. Deleting a record
// revokes its identity, so a connection whose session ran out observes
// an external sign-out and re-authenticates on its own.
type SessionSweeper struct {
	sessions backend.SessionStore
	clock    backend.Clock
	logger   logger.Logger
	interval time.Duration
	stopCh   chan struct{}
}

// NewSessionSweeper creates a new session sweeper
func NewSessionSweeper(
	sessions backend.SessionStore,
	clock backend.Clock,
	log logger.Logger,
	interval time.Duration,
) *SessionSweeper {
	return &SessionSweeper{
		sessions: sessions,
		clock:    clock,
		logger:   log,
		interval: interval,
		stopCh:   make(chan struct{}),
	}
}

// Start begins the periodic sweep process
func (sw *SessionSweeper) Start(ctx context.Context) error {
	// Run immediately on start
	if err := sw.Sweep(ctx); err != nil {
		sw.logger.Warn("initial session sweep failed",
			logger.Error(err))
	}

	ticker := time.NewTicker(sw.interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if err := sw.Sweep(ctx); err != nil {
					sw.logger.Error("session sweep failed",
						logger.Error(err))
				}
			case <-sw.stopCh:
				return
			case <-ctx.Done():
				return
			}
		}
	}()

	return nil
}

// Stop stops the sweeper
func (sw *SessionSweeper) Stop() {
	close(sw.stopCh)
}

// Sweep deletes every session record whose expiry is behind the server
// clock. Expiry is judged against backend time, never the local host.
func (sw *SessionSweeper) Sweep(ctx context.Context) error {
	now, err := sw.clock.ServerTime(ctx)
	if err != nil {
		return fmt.Errorf("read server time: %w", err)
	}

	sessions, err := sw.sessions.Sessions(ctx)
	if err != nil {
		return fmt.Errorf("list sessions: %w", err)
	}

	swept := 0
	for _, s := range sessions {
		if !s.Expired(now) {
			continue
		}

		if err := sw.sessions.DeleteSession(ctx, s.UID); err != nil {
			sw.logger.Warn("failed to delete expired session",
				logger.String("uid", s.UID),
				logger.Error(err))
			continue
		}

		sw.logger.Info("swept expired session",
			logger.String("uid", s.UID),
			logger.String("provider", string(s.Provider)),
			logger.String("expired_for", now.Sub(s.ExpiresAt).String()))
		swept++
	}

	if swept > 0 {
		sw.logger.Info("session sweep completed",
			logger.Int("swept", swept),
			logger.Int("checked", len(sessions)))
	} else {
		sw.logger.Debug("no sessions to sweep")
	}

	return nil
}
