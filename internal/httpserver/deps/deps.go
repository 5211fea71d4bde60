package deps

import (
	"time"

	"github.com/ebk1996/services/internal/backend"
	"github.com/ebk1996/services/internal/board"
	"github.com/ebk1996/services/internal/gateway"
	"github.com/ebk1996/services/internal/logger"
	"github.com/ebk1996/services/internal/session"
)

type Deps struct {
	Logger    logger.Logger
	StartTime time.Time
	Version   string
	Commit    string
	BuildDate string
	GoVersion string

	Tenant string // names this deployment's collection on the shared backend

	Backend backend.Connection    // established driver connection; nil when setup failed
	Boot    *session.Bootstrapper // session state machine; carries the setup error when Backend is nil
	Replica *board.Replica        // published listings replica, owned by the synchronizer
	Gateway *gateway.Gateway      // write path; nil when setup failed

	AllowedHosts  []string // Host headers allowed to access the server
	AllowedCIDRS  []string // IPs allowed to access healthz/readyz/infra/reload
	TrustProxy    bool     // true if running behind a trusted reverse proxy (e.g., cloudflared)
	CORSOrigins   []string // origins allowed on the JSON API; empty = same-origin only
	RateBurst     int      // write-endpoint rate limit burst per client IP
	RateRefillMin int      // write-endpoint tokens refilled per client IP per minute

	SeedReloadTrigger chan struct{} // channel to trigger a manual seed re-import (nil if seeding disabled)
}
