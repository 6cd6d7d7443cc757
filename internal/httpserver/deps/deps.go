package deps

import (
	"context"
	"time"

	"github.com/MrSnakeDoc/playwatch/internal/checker"
	"github.com/MrSnakeDoc/playwatch/internal/logger"
	"github.com/MrSnakeDoc/playwatch/internal/registry"
)

// Runner is the part of *checker.Runner the API drives.
type Runner interface {
	ActiveRuns() int
	Start(ctx context.Context, userKey string, opts checker.Options) bool
}

// Pinger is a backend whose reachability gates readiness.
type Pinger interface {
	Ping(ctx context.Context) error
}

type Deps struct {
	Logger       logger.Logger
	StartTime    time.Time
	Version      string
	Commit       string
	BuildDate    string
	GoVersion    string
	TimeNow      func() time.Time // for testing, defaults to time.Now
	AllowedHosts []string         // Host headers allowed on /api
	AllowedCIDRS []string         // IPs allowed to access readyz and /api
	TrustProxy   bool             // true if running behind a trusted reverse proxy (e.g., cloudflared)

	RateLimitBurst     int // per-IP burst on /api
	RateLimitPerMinute int // per-IP refill on /api

	Registry  *registry.Service
	Runner    Runner
	Location  *time.Location    // time zone for rendered timestamps
	Readiness map[string]Pinger // backends checked by /readyz, by name
}
