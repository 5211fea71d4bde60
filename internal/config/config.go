package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	BackendRedis  = "redis"
	BackendMemory = "memory"
)

type Config struct {
	ListenPort      string        // ex: ":8080"
	ShutdownTimeout time.Duration // ex: 5s

	LogLevel  string // "debug" | "info" | "warn" | "error"
	PrettyLog bool   // true => zap dev (color), false => zap prod (JSON)

	Tenant  string // names this deployment's collection on the shared backend
	Backend string // "redis" | "memory"

	AuthToken   string        // pre-provisioned custom token, spent on the first bootstrap only
	AuthSecret  string        // HMAC secret that custom tokens are verified against
	AuthIssuer  string        // expected issuer claim on custom tokens
	AuthTimeout time.Duration // timeout for a single sign-in attempt

	WriteTimeout   time.Duration // per-write deadline for create/delete
	SessionTTL     time.Duration // session record lifetime on the backend
	SessionRefresh time.Duration // how often the live session record is re-stamped
	SweepInterval  time.Duration // how often expired session records are purged

	SeedFile           string        // path to listings.yaml seed file (optional, empty = seeding disabled)
	SeedReloadInterval time.Duration // interval to re-import the seed file (default: 24h)
	SeedWatch          bool          // true => re-import when the seed file changes on disk

	// Redis
	RedisAddr             string        // ex: "localhost:6379"
	RedisUser             string        // optional
	RedisPassword         string        // optional
	RedisPasswordRequired bool          // true => require password, false => allow empty password
	RedisDB               int           // Redis DB number
	RedisDT               time.Duration // Redis dial timeout (ex: 5s)
	RedisRT               time.Duration // Redis read timeout (ex: 3s)
	RedisWT               time.Duration // Redis write timeout (ex: 3s)
	RedisMaxWait          time.Duration // max wait between retries (ex: 10s)
	RedisPingTimeout      time.Duration // timeout for each ping attempt (ex: 5s)
	RedisPoolSize         int           // Redis connection pool size
	RedisConnectTimeout   time.Duration // Total time to retry connecting (ex: 30s)
	RedisRetryInterval    time.Duration // Initial wait between retries (ex: 2s, grows exponentially)
	RedisWarnThreshold    int           // warn after this many attempts

	AllowedHosts []string // optional, restrict access to specific Host headers
	AllowedCIDRS []string // optional, restrict infra endpoints to specific IPs/CIDRs
	TrustProxy   bool     // true => trust X-Forwarded-For headers (e.g. cloudflared)
	CORSOrigins  []string // origins allowed on the JSON API (default: same-origin only)

	RateBurst     int // write-endpoint rate limit burst per client IP
	RateRefillMin int // write-endpoint tokens refilled per client IP per minute
}

func Load() *Config {
	cfg := &Config{
		// Server settings
		ListenPort:      getenv("SVCBOARD_LISTEN_PORT", ":8080"),
		ShutdownTimeout: mustDuration("SVCBOARD_SHUTDOWN_TIMEOUT", 5*time.Second),

		// Logging
		LogLevel:  getenv("SVCBOARD_LOG_LEVEL", "info"),
		PrettyLog: mustBool("SVCBOARD_PRETTY_LOG", true),

		// Board identity
		Tenant:  requireEnv("SVCBOARD_TENANT"),
		Backend: strings.ToLower(getenv("SVCBOARD_BACKEND", BackendRedis)),

		// Authentication
		AuthToken:   getenv("SVCBOARD_AUTH_TOKEN", ""),
		AuthSecret:  getenv("SVCBOARD_AUTH_SECRET", ""),
		AuthIssuer:  getenv("SVCBOARD_AUTH_ISSUER", "svcboard"),
		AuthTimeout: mustDuration("SVCBOARD_AUTH_TIMEOUT", 10*time.Second),

		// Writes and sessions
		WriteTimeout:   mustDuration("SVCBOARD_WRITE_TIMEOUT", 10*time.Second),
		SessionTTL:     mustDuration("SVCBOARD_SESSION_TTL", 24*time.Hour),
		SessionRefresh: mustDuration("SVCBOARD_SESSION_REFRESH", 1*time.Hour),
		SweepInterval:  mustDuration("SVCBOARD_SWEEP_INTERVAL", 1*time.Hour),

		// Seed file
		SeedFile:           getenv("SVCBOARD_SEED_FILE", ""), // Optional, empty = seeding disabled
		SeedReloadInterval: mustDuration("SVCBOARD_SEED_RELOAD_INTERVAL", 24*time.Hour),
		SeedWatch:          mustBool("SVCBOARD_SEED_WATCH", true),

		// Redis settings
		RedisAddr:             getenv("SVCBOARD_REDIS_ADDR", ""),
		RedisUser:             getenv("SVCBOARD_REDIS_USERNAME", "default"),
		RedisPasswordRequired: mustBool("SVCBOARD_REDIS_PASSWORD_REQUIRED", false),
		RedisPassword:         getenv("SVCBOARD_REDIS_PASSWORD", ""),
		RedisDB:               getenvInt("SVCBOARD_REDIS_DB", 0),
		RedisDT:               mustDuration("REDIS_DIAL_TIMEOUT", 5*time.Second),
		RedisRT:               mustDuration("REDIS_READ_TIMEOUT", 3*time.Second),
		RedisWT:               mustDuration("REDIS_WRITE_TIMEOUT", 3*time.Second),
		RedisMaxWait:          mustDuration("REDIS_MAX_WAIT", 10*time.Second),
		RedisPingTimeout:      mustDuration("REDIS_PING_TIMEOUT", 5*time.Second),
		RedisPoolSize:         getenvInt("REDIS_POOL_SIZE", 10),
		RedisConnectTimeout:   mustDuration("REDIS_CONNECT_TIMEOUT", 30*time.Second),
		RedisRetryInterval:    mustDuration("REDIS_RETRY_INTERVAL", 2*time.Second),
		RedisWarnThreshold:    getenvInt("REDIS_WARN_THRESHOLD", 3),

		// Access restrictions
		AllowedHosts: splitAndTrim(getenv("SVCBOARD_ALLOWED_HOSTS", "")),
		AllowedCIDRS: parseAllowedIPs(getenv("SVCBOARD_ALLOWED_CIDRS", "")),
		TrustProxy:   mustBool("SVCBOARD_TRUST_PROXY", true),
		CORSOrigins:  splitAndTrim(getenv("SVCBOARD_CORS_ORIGINS", "")),

		// Write rate limiting
		RateBurst:     getenvInt("SVCBOARD_RATE_BURST", 10),
		RateRefillMin: getenvInt("SVCBOARD_RATE_REFILL_PER_MIN", 30),
	}

	if cfg.Backend != BackendRedis && cfg.Backend != BackendMemory {
		panic(fmt.Sprintf("❌ FATAL: SVCBOARD_BACKEND must be %q or %q, got %q", BackendRedis, BackendMemory, cfg.Backend))
	}

	if cfg.Backend == BackendRedis && cfg.RedisAddr == "" {
		panic("❌ FATAL: SVCBOARD_REDIS_ADDR is required when SVCBOARD_BACKEND=redis")
	}

	// Validate Redis password configuration
	if cfg.RedisPasswordRequired && cfg.RedisPassword == "" {
		panic("❌ FATAL: SVCBOARD_REDIS_PASSWORD is required when SVCBOARD_REDIS_PASSWORD_REQUIRED=true")
	}

	// A custom token cannot be verified without the shared secret
	if cfg.AuthToken != "" && cfg.AuthSecret == "" {
		panic("❌ FATAL: SVCBOARD_AUTH_SECRET is required when SVCBOARD_AUTH_TOKEN is set")
	}

	// Log config only in debug mode with redacted sensitive fields
	if cfg.LogLevel == "debug" {
		cfgCopy := *cfg
		cfgCopy.RedisPassword = "***REDACTED***"
		if cfg.AuthToken != "" {
			cfgCopy.AuthToken = "***REDACTED***"
		}
		if cfg.AuthSecret != "" {
			cfgCopy.AuthSecret = "***REDACTED***"
		}
		log.Printf("[DEBUG] cfg: %+v\n", cfgCopy)
	}

	return cfg
}

// helpers
func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func requireEnv(key string) string {
	v := os.Getenv(key)
	if v == "" {
		panic(fmt.Sprintf("❌ FATAL: Required environment variable %s is not set", key))
	}
	return v
}

func getenvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func mustBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err == nil {
			return b
		}
	}
	return def
}

func mustDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func parseAllowedIPs(allowed string) []string {
	if allowed == "" {
		return nil
	}
	ips := make([]string, 0, 4)
	for _, ip := range splitAndTrim(allowed) {
		if ip != "" {
			ips = append(ips, ip)
		}
	}
	return ips
}

func splitAndTrim(s string) []string {
	if s == "" {
		return nil
	}
	raw := strings.Split(s, ",")
	parts := make([]string, 0, len(raw))
	for _, part := range raw {
		trimmed := strings.TrimSpace(part)
		// Remove surrounding quotes if present
		trimmed = strings.Trim(trimmed, `"'`)
		if trimmed != "" {
			parts = append(parts, trimmed)
		}
	}
	return parts
}
