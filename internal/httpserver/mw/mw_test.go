package mw

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ebk1996/services/internal/logger"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestEnforceHost(t *testing.T) {
	log := logger.New("error", false)

	tests := []struct {
		name    string
		allowed []string
		host    string
		want    int
	}{
		{"empty list passes anything", nil, "anything.example", http.StatusOK},
		{"exact match", []string{"board.example.com"}, "board.example.com", http.StatusOK},
		{"match ignores case", []string{"board.example.com"}, "Board.Example.COM", http.StatusOK},
		{"match ignores port", []string{"board.example.com"}, "board.example.com:8080", http.StatusOK},
		{"wildcard subdomain", []string{"*.example.com"}, "api.example.com", http.StatusOK},
		{"foreign host rejected", []string{"board.example.com"}, "evil.example", http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := EnforceHost(tt.allowed, log)(okHandler())
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.Host = tt.host
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			if rec.Code != tt.want {
				t.Errorf("host %q with allowlist %v = %d, want %d", tt.host, tt.allowed, rec.Code, tt.want)
			}
		})
	}
}

func TestAllowOnlyCIDRS(t *testing.T) {
	log := logger.New("error", false)

	tests := []struct {
		name       string
		allowed    []string
		remoteAddr string
		want       int
	}{
		{"empty list passes anything", nil, "203.0.113.9:1234", http.StatusOK},
		{"exact ip", []string{"127.0.0.1"}, "127.0.0.1:52000", http.StatusOK},
		{"inside cidr", []string{"10.0.0.0/8"}, "10.1.2.3:52000", http.StatusOK},
		{"outside cidr", []string{"10.0.0.0/8"}, "203.0.113.9:52000", http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := AllowOnlyCIDRS(tt.allowed, false, log)(okHandler())
			req := httptest.NewRequest(http.MethodGet, "/infra", nil)
			req.RemoteAddr = tt.remoteAddr
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			if rec.Code != tt.want {
				t.Errorf("ip %q with allowlist %v = %d, want %d", tt.remoteAddr, tt.allowed, rec.Code, tt.want)
			}
		})
	}
}

func TestAllowOnlyCIDRSProxyHeaders(t *testing.T) {
	log := logger.New("error", false)

	req := httptest.NewRequest(http.MethodGet, "/infra", nil)
	req.RemoteAddr = "127.0.0.1:52000"
	req.Header.Set("X-Forwarded-For", "198.51.100.7")

	// Forwarded headers only count when the proxy is trusted.
	h := AllowOnlyCIDRS([]string{"198.51.100.7"}, true, log)(okHandler())
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("trusted proxy header = %d, want %d", rec.Code, http.StatusOK)
	}

	h = AllowOnlyCIDRS([]string{"198.51.100.7"}, false, log)(okHandler())
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Errorf("untrusted proxy header = %d, want %d", rec.Code, http.StatusForbidden)
	}
}

func TestRateLimitExhaustsBurst(t *testing.T) {
	h := RateLimit(RateLimitConfig{Burst: 2, RefillPerIPPerMin: 1})(okHandler())

	do := func(remoteAddr string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/api/listings", nil)
		req.RemoteAddr = remoteAddr
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec
	}

	for i := 0; i < 2; i++ {
		if rec := do("203.0.113.9:4567"); rec.Code != http.StatusOK {
			t.Fatalf("request %d = %d, want %d", i+1, rec.Code, http.StatusOK)
		}
	}

	rec := do("203.0.113.9:4567")
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("request over burst = %d, want %d", rec.Code, http.StatusTooManyRequests)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Error("429 carries no Retry-After")
	}
	if rec.Header().Get("X-RateLimit-Remaining") != "0" {
		t.Errorf("X-RateLimit-Remaining = %q, want 0", rec.Header().Get("X-RateLimit-Remaining"))
	}

	// Buckets are per client; another IP is unaffected.
	if rec := do("198.51.100.7:4567"); rec.Code != http.StatusOK {
		t.Errorf("other client = %d, want %d", rec.Code, http.StatusOK)
	}
}

func TestCORSPassthroughWithoutOrigins(t *testing.T) {
	h := CORS(nil)(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/api/listings", nil)
	req.Header.Set("Origin", "https://foreign.example")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Errorf("Access-Control-Allow-Origin = %q, want unset in same-origin mode", got)
	}
}

func TestCORSAllowsConfiguredOrigin(t *testing.T) {
	h := CORS([]string{"https://app.example.com"})(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/api/listings", nil)
	req.Header.Set("Origin", "https://app.example.com")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "https://app.example.com" {
		t.Errorf("Access-Control-Allow-Origin = %q, want the configured origin", got)
	}

	// Preflight for a delete.
	req = httptest.NewRequest(http.MethodOptions, "/api/listings/some-id", nil)
	req.Header.Set("Origin", "https://app.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodDelete)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "https://app.example.com" {
		t.Errorf("preflight Access-Control-Allow-Origin = %q, want the configured origin", got)
	}
}
