package handlers

import (
	"errors"
	"net/http"
	"strings"
	"testing"
)

func TestHealthzAlwaysOK(t *testing.T) {
	// Liveness holds even when the backend never came up.
	d := failedDeps(t, errors.New("redis unreachable"))

	rec := doJSON(t, Healthz(d), http.MethodGet, "/healthz", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}

	var resp healthzResponse
	decodeBody(t, rec, &resp)
	if resp.Status != "ok" || resp.Tenant != "tenant-a" {
		t.Errorf("healthz = %+v, want status ok, tenant tenant-a", resp)
	}
}

func TestReadyzLiveBoard(t *testing.T) {
	b := startBoard(t)

	rec := doJSON(t, Readyz(b.deps), http.MethodGet, "/readyz", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d, body %s", rec.Code, http.StatusOK, rec.Body.String())
	}

	var resp readyzResponse
	decodeBody(t, rec, &resp)
	if !resp.Ready {
		t.Error("Ready = false on a live board")
	}
}

func TestReadyzSetupFailed(t *testing.T) {
	d := failedDeps(t, errors.New("redis unreachable"))

	rec := doJSON(t, Readyz(d), http.MethodGet, "/readyz", nil)
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusServiceUnavailable)
	}

	var resp readyzResponse
	decodeBody(t, rec, &resp)
	if resp.Ready || resp.Error == "" {
		t.Errorf("readyz = %+v, want not ready with the cause", resp)
	}
}

func TestReadyzBackendGone(t *testing.T) {
	b := startBoard(t)

	// The connection dying after a good start flips readiness.
	_ = b.conn.Close()

	rec := doJSON(t, Readyz(b.deps), http.MethodGet, "/readyz", nil)
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusServiceUnavailable)
	}
}

func TestInfraLiveBoard(t *testing.T) {
	b := startBoard(t)
	b.create(t, "Plumbing", "")

	rec := doJSON(t, Infra(b.deps), http.MethodGet, "/infra", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}

	var resp infraResponse
	decodeBody(t, rec, &resp)

	if resp.BoardMode != "live" {
		t.Errorf("board_mode = %q, want live", resp.BoardMode)
	}
	backend := resp.Components["backend"]
	if !backend.OK || backend.Driver != "memory" {
		t.Errorf("backend = %+v, want ok on the memory driver", backend)
	}
	session := resp.Components["session"]
	if !session.OK || session.UID == "" {
		t.Errorf("session = %+v, want ok with a uid", session)
	}
	listings := resp.Components["listings"]
	if !listings.OK || listings.Count == nil || *listings.Count != 1 {
		t.Errorf("listings = %+v, want ok with count 1", listings)
	}
	seed := resp.Components["seed"]
	if !seed.OK || seed.State != "disabled" {
		t.Errorf("seed = %+v, want ok and disabled", seed)
	}
}

func TestInfraBlockedBoard(t *testing.T) {
	d := failedDeps(t, errors.New("redis unreachable"))

	rec := doJSON(t, Infra(d), http.MethodGet, "/infra", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}

	var resp infraResponse
	decodeBody(t, rec, &resp)

	if resp.BoardMode != "blocked" {
		t.Errorf("board_mode = %q, want blocked", resp.BoardMode)
	}
	backend := resp.Components["backend"]
	if backend.OK || !strings.Contains(backend.Error, "backend setup failed") {
		t.Errorf("backend = %+v, want the setup failure surfaced", backend)
	}
}

func TestInfraDegradedOnStaleFeed(t *testing.T) {
	b := startBoard(t)
	b.create(t, "Plumbing", "")

	b.conn.BreakFeed(errors.New("feed torn"))
	waitFor(t, "replica marked stale", func() bool {
		return b.replica.Err() != nil
	})

	rec := doJSON(t, Infra(b.deps), http.MethodGet, "/infra", nil)
	var resp infraResponse
	decodeBody(t, rec, &resp)

	if resp.BoardMode != "degraded" {
		t.Errorf("board_mode = %q, want degraded", resp.BoardMode)
	}
	listings := resp.Components["listings"]
	if listings.OK || !listings.Stale {
		t.Errorf("listings = %+v, want stale and not ok", listings)
	}
	if listings.Count == nil || *listings.Count != 1 {
		t.Errorf("listings count = %v, want the last known list kept", listings.Count)
	}
}

func TestReloadWithoutSeedFile(t *testing.T) {
	b := startBoard(t)

	rec := doJSON(t, Reload(b.deps), http.MethodPost, "/reload", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusNotFound)
	}
	if !strings.Contains(rec.Body.String(), "No seed file configured") {
		t.Errorf("body = %q, want the missing seed file reported", rec.Body.String())
	}
}

func TestReloadTriggerAndBackpressure(t *testing.T) {
	b := startBoard(t)
	b.deps.SeedReloadTrigger = make(chan struct{}, 1)
	h := Reload(b.deps)

	rec := doJSON(t, h, http.MethodPost, "/reload", nil)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("first trigger status = %d, want %d", rec.Code, http.StatusAccepted)
	}

	// Nothing drained the channel, so the next trigger reports busy.
	rec = doJSON(t, h, http.MethodPost, "/reload", nil)
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("second trigger status = %d, want %d", rec.Code, http.StatusTooManyRequests)
	}

	<-b.deps.SeedReloadTrigger
	rec = doJSON(t, h, http.MethodPost, "/reload", nil)
	if rec.Code != http.StatusAccepted {
		t.Errorf("trigger after drain status = %d, want %d", rec.Code, http.StatusAccepted)
	}
}
