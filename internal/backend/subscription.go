package backend

import (
	"sync"

	"github.com/ebk1996/services/internal/domain"
)

// Subscription is a live feed of full collection snapshots. The driver
// side pushes with Push/Fail from a single producer goroutine and closes
// the feed with Terminate when that goroutine exits; the consumer side
// receives on Snapshots/Errs and releases the feed with Close.
//
// Delivery is latest-wins: an undelivered snapshot is replaced, never
// queued, so a slow consumer always observes the newest state.
type Subscription struct {
	snapshots chan []*domain.Listing
	errs      chan error
	stop      func()
	closeOnce sync.Once
	termOnce  sync.Once
}

// NewSubscription builds the handle a driver returns from
// SubscribeListings. stop is invoked once, on the consumer's Close, and
// must make the driver's producer goroutine exit.
func NewSubscription(stop func()) *Subscription {
	return &Subscription{
		snapshots: make(chan []*domain.Listing, 1),
		errs:      make(chan error, 1),
		stop:      stop,
	}
}

// Snapshots delivers full collection states, current contents first.
// The channel closes when the feed terminates.
func (s *Subscription) Snapshots() <-chan []*domain.Listing {
	return s.snapshots
}

// Errs delivers feed failures. A failure does not terminate the feed;
// the driver keeps trying to serve snapshots until released.
func (s *Subscription) Errs() <-chan error {
	return s.errs
}

// Close releases the subscription. Safe to call more than once.
func (s *Subscription) Close() {
	s.closeOnce.Do(s.stop)
}

// Push hands a snapshot to the consumer, replacing any undelivered one.
// Producer side only, single goroutine.
func (s *Subscription) Push(listings []*domain.Listing) {
	select {
	case s.snapshots <- listings:
	default:
		select {
		case <-s.snapshots:
		default:
		}
		s.snapshots <- listings
	}
}

// Fail reports a feed failure, replacing any undelivered one. Producer
// side only, single goroutine.
func (s *Subscription) Fail(err error) {
	select {
	case s.errs <- err:
	default:
		select {
		case <-s.errs:
		default:
		}
		s.errs <- err
	}
}

// Terminate closes the consumer-facing channels. The producer calls it
// exactly when its goroutine exits; nothing may Push or Fail afterwards.
func (s *Subscription) Terminate() {
	s.termOnce.Do(func() {
		close(s.snapshots)
		close(s.errs)
	})
}

// IdentityWatch is a live feed of identity changes for one connection.
// Same producer/consumer split and latest-wins delivery as Subscription;
// a nil identity on the channel means signed out.
type IdentityWatch struct {
	events    chan *domain.Identity
	stop      func()
	closeOnce sync.Once
	termOnce  sync.Once
}

// NewIdentityWatch builds the handle a driver returns from
// WatchIdentity.
func NewIdentityWatch(stop func()) *IdentityWatch {
	return &IdentityWatch{
		events: make(chan *domain.Identity, 1),
		stop:   stop,
	}
}

// Events delivers the current identity on subscribe, then every change.
// The channel closes when the watch terminates.
func (w *IdentityWatch) Events() <-chan *domain.Identity {
	return w.events
}

// Close releases the watch. Safe to call more than once.
func (w *IdentityWatch) Close() {
	w.closeOnce.Do(w.stop)
}

// Push hands an identity change to the consumer, replacing any
// undelivered one. Producer side only, single goroutine.
func (w *IdentityWatch) Push(identity *domain.Identity) {
	select {
	case w.events <- identity:
	default:
		select {
		case <-w.events:
		default:
		}
		w.events <- identity
	}
}

// Terminate closes the consumer-facing channel. The producer calls it
// exactly when its goroutine exits.
func (w *IdentityWatch) Terminate() {
	w.termOnce.Do(func() {
		close(w.events)
	})
}
