package gateway

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/ebk1996/services/internal/backend/memb"
	"github.com/ebk1996/services/internal/domain"
	"github.com/ebk1996/services/internal/logger"
	"github.com/ebk1996/services/internal/session"
)

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func startGateway(t *testing.T, conn *memb.Conn) (*Gateway, *session.Bootstrapper) {
	t.Helper()
	log := logger.New("error", false)

	boot := session.New(conn, session.Options{}, log)
	if err := boot.Start(context.Background()); err != nil {
		t.Fatalf("bootstrapper Start() error = %v", err)
	}
	t.Cleanup(boot.Stop)

	waitFor(t, "bootstrap", func() bool {
		return boot.Identity() != nil
	})

	return New(conn, boot, 0, log), boot
}

func TestCreateStampsAuthor(t *testing.T) {
	conn := memb.New()
	defer func() { _ = conn.Close() }()

	g, boot := startGateway(t, conn)

	id, err := g.Create(context.Background(), "  Plumbing  ", " Fix leaks ")
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if id == "" {
		t.Fatal("Create() returned empty id")
	}

	listings, err := conn.Listings(context.Background())
	if err != nil {
		t.Fatalf("Listings() error = %v", err)
	}
	if len(listings) != 1 {
		t.Fatalf("Listings() = %v records, want 1", len(listings))
	}
	l := listings[0]
	if l.Name != "Plumbing" || l.Description != "Fix leaks" {
		t.Errorf("stored listing = %q/%q, want trimmed Plumbing/Fix leaks", l.Name, l.Description)
	}
	if l.AuthorID != boot.Identity().UID {
		t.Errorf("AuthorID = %q, want current identity %q", l.AuthorID, boot.Identity().UID)
	}
	if !l.Dated() {
		t.Error("stored listing has no creation timestamp")
	}
}

func TestCreateRejectsWhitespaceName(t *testing.T) {
	conn := memb.New()
	defer func() { _ = conn.Close() }()

	g, _ := startGateway(t, conn)

	tests := []struct {
		name  string
		input string
	}{
		{"empty", ""},
		{"spaces", "   "},
		{"tabs and newlines", "\t\n "},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := g.Create(context.Background(), tt.input, "desc"); !errors.Is(err, domain.ErrInvalidListing) {
				t.Errorf("Create(%q) error = %v, want %v", tt.input, err, domain.ErrInvalidListing)
			}
		})
	}

	// No write may have happened.
	listings, err := conn.Listings(context.Background())
	if err != nil {
		t.Fatalf("Listings() error = %v", err)
	}
	if len(listings) != 0 {
		t.Errorf("Listings() = %v records after rejected creates, want 0", len(listings))
	}
}

func TestCreateRequiresIdentity(t *testing.T) {
	conn := memb.New()
	defer func() { _ = conn.Close() }()

	log := logger.New("error", false)
	boot := session.NewFailed(errors.New("backend unreachable"), log)
	g := New(conn, boot, 0, log)

	if _, err := g.Create(context.Background(), "Plumbing", ""); !errors.Is(err, domain.ErrNotAuthenticated) {
		t.Errorf("Create() error = %v, want %v", err, domain.ErrNotAuthenticated)
	}
}

func TestCreateSingleFlight(t *testing.T) {
	conn := memb.New()
	defer func() { _ = conn.Close() }()

	g, _ := startGateway(t, conn)

	// Race several creates. Every call either lands or is turned away
	// with ErrCreateInFlight; nothing blocks and the flag always clears.
	const writers = 8
	var wg sync.WaitGroup
	var inFlight, succeeded atomic32

	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := g.Create(context.Background(), "Racing", "")
			switch {
			case err == nil:
				succeeded.Add(1)
			case errors.Is(err, domain.ErrCreateInFlight):
				inFlight.Add(1)
			}
		}()
	}
	wg.Wait()

	if succeeded.Load() == 0 {
		t.Error("no create succeeded")
	}
	if succeeded.Load()+inFlight.Load() != writers {
		t.Errorf("succeeded %d + in-flight %d != %d writers",
			succeeded.Load(), inFlight.Load(), writers)
	}
	if g.Submitting() {
		t.Error("Submitting() = true after all creates settled")
	}
}

func TestCreateWriteFailure(t *testing.T) {
	conn := memb.New()
	defer func() { _ = conn.Close() }()

	g, _ := startGateway(t, conn)

	conn.FailWrites(errors.New("backend down"))
	if _, err := g.Create(context.Background(), "Plumbing", ""); !errors.Is(err, domain.ErrWriteFailed) {
		t.Errorf("Create() error = %v, want %v", err, domain.ErrWriteFailed)
	}
	if g.Submitting() {
		t.Error("Submitting() stuck after failed create")
	}

	// Clearing the failure lets the retry through; nothing was retried
	// automatically in between.
	conn.FailWrites(nil)
	if _, err := g.Create(context.Background(), "Plumbing", ""); err != nil {
		t.Errorf("Create() after clear error = %v", err)
	}
}

func TestDeleteRemovesListing(t *testing.T) {
	conn := memb.New()
	defer func() { _ = conn.Close() }()

	g, _ := startGateway(t, conn)

	id, err := g.Create(context.Background(), "Painting", "")
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if err := g.Delete(context.Background(), id); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}

	listings, _ := conn.Listings(context.Background())
	if len(listings) != 0 {
		t.Errorf("Listings() after delete = %v records, want 0", len(listings))
	}
}

func TestDeleteNonexistentSucceeds(t *testing.T) {
	conn := memb.New()
	defer func() { _ = conn.Close() }()

	g, _ := startGateway(t, conn)

	if err := g.Delete(context.Background(), "no-such-id"); err != nil {
		t.Errorf("Delete() nonexistent error = %v, want nil", err)
	}
}

func TestDeleteRejectsBlankID(t *testing.T) {
	conn := memb.New()
	defer func() { _ = conn.Close() }()

	g, _ := startGateway(t, conn)

	if err := g.Delete(context.Background(), "  "); !errors.Is(err, domain.ErrInvalidListing) {
		t.Errorf("Delete(blank) error = %v, want %v", err, domain.ErrInvalidListing)
	}
}

func TestDeleteIgnoresOwnership(t *testing.T) {
	conn := memb.New()
	defer func() { _ = conn.Close() }()

	g, boot := startGateway(t, conn)

	id, err := g.Create(context.Background(), "Shared", "")
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	firstUID := boot.Identity().UID

	// Become someone else, then delete the other identity's listing.
	if err := boot.SignOut(context.Background()); err != nil {
		t.Fatalf("SignOut() error = %v", err)
	}
	waitFor(t, "new identity", func() bool {
		id := boot.Identity()
		return id != nil && id.UID != firstUID
	})

	if err := g.Delete(context.Background(), id); err != nil {
		t.Errorf("Delete() of another author's listing error = %v, want nil", err)
	}
}

func TestDeleteFailureSurfaces(t *testing.T) {
	conn := memb.New()
	defer func() { _ = conn.Close() }()

	g, _ := startGateway(t, conn)

	id, err := g.Create(context.Background(), "Plumbing", "")
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	conn.FailWrites(errors.New("backend down"))
	if err := g.Delete(context.Background(), id); !errors.Is(err, domain.ErrWriteFailed) {
		t.Errorf("Delete() error = %v, want %v", err, domain.ErrWriteFailed)
	}
}

// atomic32 is a tiny counter for racing tests.
type atomic32 struct {
	mu sync.Mutex
	n  int
}

func (a *atomic32) Add(n int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.n += n
}

func (a *atomic32) Load() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.n
}
