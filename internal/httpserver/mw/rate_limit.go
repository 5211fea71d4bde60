package mw

import (
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/ebk1996/services/internal/utils"
)

// RateLimitConfig tunes the per-client token bucket guarding the
// mutating endpoints. Reads are never limited; the replica makes them
// cheap anyway.
type RateLimitConfig struct {
	Burst             int
	RefillPerIPPerMin int
	MaxEntries        int
	SweepInterval     time.Duration
	IdleTTL           time.Duration
	TrustProxy        bool // resolve the client IP from proxy headers when true
}

// client is one IP's bucket. Tokens refill continuously at the
// configured per-minute rate and cap at the burst size.
type client struct {
	tokens   float64
	lastSeen time.Time
}

type limiter struct {
	cfg    RateLimitConfig
	perSec float64
	burst  float64

	mu        sync.Mutex
	clients   map[string]*client
	lastSweep time.Time
}

func newLimiter(cfg RateLimitConfig) *limiter {
	if cfg.Burst < 1 {
		cfg.Burst = 1
	}
	if cfg.RefillPerIPPerMin < 1 {
		cfg.RefillPerIPPerMin = 1
	}
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = time.Minute
	}
	if cfg.IdleTTL <= 0 {
		cfg.IdleTTL = 15 * time.Minute
	}
	return &limiter{
		cfg:       cfg,
		perSec:    float64(cfg.RefillPerIPPerMin) / 60.0,
		burst:     float64(cfg.Burst),
		clients:   make(map[string]*client),
		lastSweep: time.Now(),
	}
}

// allow spends one token for key. When the bucket is dry it reports the
// seconds until the next token lands.
func (l *limiter) allow(key string, now time.Time) (ok bool, remaining, retryAfter int) {
	l.mu.Lock()
	defer l.mu.Unlock()

	overCap := l.cfg.MaxEntries > 0 && len(l.clients) >= l.cfg.MaxEntries
	if overCap || now.Sub(l.lastSweep) >= l.cfg.SweepInterval {
		l.sweepLocked(now)
	}

	c := l.clients[key]
	if c == nil {
		c = &client{tokens: l.burst}
		l.clients[key] = c
	} else {
		c.tokens = math.Min(l.burst, c.tokens+now.Sub(c.lastSeen).Seconds()*l.perSec)
	}
	c.lastSeen = now

	if c.tokens < 1 {
		wait := int(math.Ceil((1 - c.tokens) / l.perSec))
		if wait < 1 {
			wait = 1
		}
		return false, 0, wait
	}
	c.tokens--
	return true, int(c.tokens), 0
}

func (l *limiter) sweepLocked(now time.Time) {
	for ip, c := range l.clients {
		if now.Sub(c.lastSeen) > l.cfg.IdleTTL {
			delete(l.clients, ip)
		}
	}
	l.lastSweep = now
}

// RateLimit rejects clients that burn through their bucket with 429 and
// a Retry-After hint. Informational headers are set before the handler
// runs; anything set after the response body starts is dropped.
func RateLimit(cfg RateLimitConfig) func(http.Handler) http.Handler {
	l := newLimiter(cfg)
	limit := strconv.Itoa(l.cfg.Burst)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ok, remaining, retry := l.allow(utils.ClientIP(r, l.cfg.TrustProxy), time.Now())

			w.Header().Set("X-RateLimit-Limit", limit)
			if !ok {
				w.Header().Set("X-RateLimit-Remaining", "0")
				w.Header().Set("Retry-After", strconv.Itoa(retry))
				http.Error(w, http.StatusText(http.StatusTooManyRequests), http.StatusTooManyRequests)
				return
			}

			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
			next.ServeHTTP(w, r)
		})
	}
}
