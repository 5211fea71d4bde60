package scheduler

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/ebk1996/services/internal/backend/memb"
	"github.com/ebk1996/services/internal/domain"
	"github.com/ebk1996/services/internal/logger"
)

// testClock is a mutable server clock shared with the driver.
type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (tc *testClock) Now() time.Time {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	return tc.now
}

func (tc *testClock) Advance(d time.Duration) {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	tc.now = tc.now.Add(d)
}

func TestSessionSweeper_Sweep(t *testing.T) {
	log := logger.New("error", false)
	clock := &testClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}

	conn := memb.New(
		memb.WithClock(clock.Now),
		memb.WithSessionTTL(time.Minute),
	)
	defer func() { _ = conn.Close() }()

	base := clock.Now()
	seedSessions := []*domain.Session{
		{UID: "stale", Provider: domain.ProviderAnonymous, CreatedAt: base.Add(-2 * time.Hour), ExpiresAt: base.Add(-time.Hour)},
		{UID: "fresh", Provider: domain.ProviderAnonymous, CreatedAt: base, ExpiresAt: base.Add(time.Hour)},
	}
	for _, s := range seedSessions {
		if err := conn.PutSession(context.Background(), s); err != nil {
			t.Fatalf("PutSession(%s) error = %v", s.UID, err)
		}
	}

	sweeper := NewSessionSweeper(conn, conn, log, time.Hour)

	// First pass only removes the already stale record.
	if err := sweeper.Sweep(context.Background()); err != nil {
		t.Fatalf("Sweep failed: %v", err)
	}

	sessions, err := conn.Sessions(context.Background())
	if err != nil {
		t.Fatalf("Sessions() error = %v", err)
	}
	if len(sessions) != 1 || sessions[0].UID != "fresh" {
		t.Fatalf("after first sweep sessions = %v, want only fresh", sessionUIDs(sessions))
	}
}

func TestSessionSweeper_RevokesCurrentIdentity(t *testing.T) {
	log := logger.New("error", false)
	clock := &testClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}

	conn := memb.New(
		memb.WithClock(clock.Now),
		memb.WithSessionTTL(time.Minute),
	)
	defer func() { _ = conn.Close() }()

	identity, err := conn.SignInAnonymously(context.Background())
	if err != nil {
		t.Fatalf("SignInAnonymously() error = %v", err)
	}

	watch, err := conn.WatchIdentity(context.Background())
	if err != nil {
		t.Fatalf("WatchIdentity() error = %v", err)
	}
	defer watch.Close()

	// The watch starts with the current identity.
	select {
	case got := <-watch.Events():
		if got == nil || got.UID != identity.UID {
			t.Fatalf("initial watch event = %v, want uid %s", got, identity.UID)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for initial identity event")
	}

	// Let the session run out, then sweep.
	clock.Advance(2 * time.Minute)
	sweeper := NewSessionSweeper(conn, conn, log, time.Hour)
	if err := sweeper.Sweep(context.Background()); err != nil {
		t.Fatalf("Sweep failed: %v", err)
	}

	select {
	case got := <-watch.Events():
		if got != nil {
			t.Fatalf("watch event after sweep = %v, want nil (signed out)", got)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for revocation event")
	}

	sessions, err := conn.Sessions(context.Background())
	if err != nil {
		t.Fatalf("Sessions() error = %v", err)
	}
	if len(sessions) != 0 {
		t.Errorf("sessions after sweep = %v, want none", sessionUIDs(sessions))
	}
}

func sessionUIDs(sessions []*domain.Session) []string {
	uids := make([]string, 0, len(sessions))
	for _, s := range sessions {
		uids = append(uids, s.UID)
	}
	return uids
}
