// Package board holds the published replica of the listings collection.
// The synchronizer owns writes; everything user-facing reads from here
// and never talks to the backend directly.
package board

import (
	"sync"
	"time"

	"github.com/ebk1996/services/internal/domain"
)

// Replica is the in-memory, fully-owned copy of the collection the
// shell renders. It is rebuilt, never patched: every publish replaces
// the whole list. A subscription failure marks the replica stale but
// leaves the last published list visible.
type Replica struct {
	mu       sync.RWMutex
	listings []*domain.Listing // sorted, newest first
	revision uint64
	syncErr  error
	lastSync time.Time
	watchers map[chan struct{}]struct{}
}

// NewReplica creates an empty replica.
func NewReplica() *Replica {
	return &Replica{
		watchers: make(map[chan struct{}]struct{}),
	}
}

// Replace atomically installs a new published list. The replica takes
// ownership of the slice; the caller must not touch it afterwards.
// A successful replace clears any recorded sync error.
func (r *Replica) Replace(listings []*domain.Listing) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.listings = listings
	r.revision++
	r.syncErr = nil
	r.lastSync = time.Now()
	r.notifyLocked()
}

// SetError records a subscription failure. The published list stays as
// it was (stale-but-visible).
func (r *Replica) SetError(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.syncErr = err
	r.notifyLocked()
}

// Listings returns a copy of the published list; callers may mutate it
// without affecting later reads.
func (r *Replica) Listings() []*domain.Listing {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return copyListings(r.listings)
}

// Snapshot returns the published list, its revision, and the current
// sync error as one consistent read.
func (r *Replica) Snapshot() ([]*domain.Listing, uint64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return copyListings(r.listings), r.revision, r.syncErr
}

// Revision returns the number of publishes so far.
func (r *Replica) Revision() uint64 {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.revision
}

// Err returns the last subscription failure, nil while healthy.
func (r *Replica) Err() error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.syncErr
}

// Count returns the number of published listings.
func (r *Replica) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.listings)
}

// LastSync returns when the replica last replaced its list.
func (r *Replica) LastSync() time.Time {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.lastSync
}

// Watch registers for change notification. The returned channel
// receives one token after every Replace or SetError; a slow watcher
// coalesces signals instead of queueing them. cancel releases the
// registration.
func (r *Replica) Watch() (<-chan struct{}, func()) {
	r.mu.Lock()
	defer r.mu.Unlock()

	ch := make(chan struct{}, 1)
	r.watchers[ch] = struct{}{}

	cancel := func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		delete(r.watchers, ch)
	}
	return ch, cancel
}

func (r *Replica) notifyLocked() {
	for ch := range r.watchers {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

func copyListings(listings []*domain.Listing) []*domain.Listing {
	out := make([]*domain.Listing, 0, len(listings))
	for _, l := range listings {
		clone := *l
		out = append(out, &clone)
	}
	return out
}
