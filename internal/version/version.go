// Package version carries build metadata. Values are overridden at
// build time via -ldflags "-X .../internal/version.Version=v0.3.0 ...".
package version

import (
	"runtime"
	"time"
)

var (
	Version   = "dev"                           // ex: v0.3.0
	Commit    = "none"                          // ex: abcd123
	BuildDate = time.Now().Format(time.RFC3339) // fallback when not injected
	GoVersion = runtime.Version()
)
