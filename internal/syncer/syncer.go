// Package syncer drives the one live subscription on the listings
// collection. It receives full snapshots from the backend feed, sorts
// them, and publishes them to the board replica; it never patches.
package syncer

import (
	"context"
	"fmt"

	"github.com/ebk1996/services/internal/backend"
	"github.com/ebk1996/services/internal/board"
	"github.com/ebk1996/services/internal/domain"
	"github.com/ebk1996/services/internal/logger"
	"github.com/ebk1996/services/internal/session"
)

// Synchronizer owns the listings subscription. At most one subscription
// is active at any time: it is released and reopened whenever the
// session identity changes, and released for good on Stop. Feed
// failures mark the replica stale without clearing it.
type Synchronizer struct {
	feed    backend.ListingFeed
	boot    *session.Bootstrapper
	replica *board.Replica
	logger  logger.Logger

	stopCh chan struct{}
	done   chan struct{}
}

// New creates a synchronizer publishing into replica.
func New(feed backend.ListingFeed, boot *session.Bootstrapper, replica *board.Replica, log logger.Logger) *Synchronizer {
	return &Synchronizer{
		feed:    feed,
		boot:    boot,
		replica: replica,
		logger:  log,
		stopCh:  make(chan struct{}),
		done:    make(chan struct{}),
	}
}

// Start runs the subscription loop until Stop.
func (s *Synchronizer) Start(ctx context.Context) error {
	go s.run(ctx)
	return nil
}

// Stop ends the loop and releases the active subscription. It blocks
// until the loop has exited.
func (s *Synchronizer) Stop() {
	close(s.stopCh)
	<-s.done
}

func (s *Synchronizer) run(ctx context.Context) {
	defer close(s.done)

	sessionCh, cancel := s.boot.Watch()
	defer cancel()

	var sub *backend.Subscription
	var subUID string
	defer func() {
		if sub != nil {
			sub.Close()
		}
	}()

	// Channels stay nil while no subscription is active; nil channels
	// never fire in the select below.
	var snapshots <-chan []*domain.Listing
	var errs <-chan error

	drop := func() {
		if sub != nil {
			sub.Close()
			sub = nil
			snapshots = nil
			errs = nil
		}
	}

	// ensure aligns the subscription with the current identity: no
	// identity means no subscription, a changed identity means release
	// and resubscribe.
	ensure := func() {
		identity := s.boot.Identity()
		if identity == nil {
			if sub != nil {
				s.logger.Debug("identity lost, releasing listings subscription")
				drop()
			}
			return
		}
		if sub != nil && identity.UID == subUID {
			return
		}
		drop()

		newSub, err := s.feed.SubscribeListings(ctx)
		if err != nil {
			s.logger.Error("listings subscription failed",
				logger.Error(err))
			s.replica.SetError(fmt.Errorf("%w: %v", domain.ErrSubscriptionFailed, err))
			return
		}
		sub = newSub
		subUID = identity.UID
		snapshots = newSub.Snapshots()
		errs = newSub.Errs()
		s.logger.Info("listings subscription opened",
			logger.String("uid", identity.UID))
	}

	ensure()

	for {
		select {
		case snap, ok := <-snapshots:
			if !ok {
				// The driver terminated the feed underneath us.
				s.logger.Warn("listings subscription terminated by backend")
				drop()
				s.replica.SetError(domain.ErrSubscriptionFailed)
				continue
			}
			s.publish(snap)

		case err, ok := <-errs:
			if !ok {
				s.logger.Warn("listings subscription terminated by backend")
				drop()
				s.replica.SetError(domain.ErrSubscriptionFailed)
				continue
			}
			s.logger.Warn("listings subscription error",
				logger.Error(err))
			s.replica.SetError(fmt.Errorf("%w: %v", domain.ErrSubscriptionFailed, err))

		case <-sessionCh:
			ensure()

		case <-s.stopCh:
			return
		case <-ctx.Done():
			return
		}
	}
}

// publish sorts a snapshot and installs it as the new published list.
func (s *Synchronizer) publish(listings []*domain.Listing) {
	domain.SortByCreation(listings)
	s.replica.Replace(listings)
	s.logger.Debug("published listings snapshot",
		logger.Int("count", len(listings)))
}
