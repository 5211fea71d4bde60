package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ebk1996/services/internal/backend/memb"
	"github.com/ebk1996/services/internal/board"
	"github.com/ebk1996/services/internal/gateway"
	"github.com/ebk1996/services/internal/httpserver/deps"
	"github.com/ebk1996/services/internal/logger"
	"github.com/ebk1996/services/internal/session"
	"github.com/ebk1996/services/internal/syncer"
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

// testBoard is a fully wired board over the in-process backend: session
// bootstrapped, synchronizer publishing into the replica, gateway ready.
type testBoard struct {
	conn    *memb.Conn
	boot    *session.Bootstrapper
	replica *board.Replica
	gateway *gateway.Gateway
	deps    deps.Deps
}

func startBoard(t *testing.T) *testBoard {
	t.Helper()
	log := logger.New("error", false)

	conn := memb.New()
	t.Cleanup(func() { _ = conn.Close() })

	boot := session.New(conn, session.Options{}, log)
	if err := boot.Start(context.Background()); err != nil {
		t.Fatalf("bootstrapper Start() error = %v", err)
	}
	t.Cleanup(boot.Stop)

	replica := board.NewReplica()
	sync := syncer.New(conn, boot, replica, log)
	if err := sync.Start(context.Background()); err != nil {
		t.Fatalf("synchronizer Start() error = %v", err)
	}
	t.Cleanup(sync.Stop)

	waitFor(t, "bootstrap", func() bool {
		return boot.Identity() != nil
	})

	gw := gateway.New(conn, boot, 0, log)

	return &testBoard{
		conn:    conn,
		boot:    boot,
		replica: replica,
		gateway: gw,
		deps: deps.Deps{
			Logger:    log,
			StartTime: time.Now(),
			Version:   "test",
			Tenant:    "tenant-a",
			Backend:   conn,
			Boot:      boot,
			Replica:   replica,
			Gateway:   gw,
		},
	}
}

// create writes one listing through the gateway and waits until the
// replica has published it.
func (b *testBoard) create(t *testing.T, name, description string) string {
	t.Helper()
	id, err := b.gateway.Create(context.Background(), name, description)
	if err != nil {
		t.Fatalf("Create(%q) error = %v", name, err)
	}
	waitFor(t, "replica to publish "+name, func() bool {
		for _, l := range b.replica.Listings() {
			if l.ID == id {
				return true
			}
		}
		return false
	})
	return id
}

// failedDeps mimics a deployment whose backend never came up.
func failedDeps(t *testing.T, reason error) deps.Deps {
	t.Helper()
	log := logger.New("error", false)
	return deps.Deps{
		Logger:    log,
		StartTime: time.Now(),
		Version:   "test",
		Tenant:    "tenant-a",
		Boot:      session.NewFailed(reason, log),
		Replica:   board.NewReplica(),
	}
}

func doJSON(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), v); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
}
