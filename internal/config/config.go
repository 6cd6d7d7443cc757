package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	ListenPort      string        // ex: ":8080"
	ShutdownTimeout time.Duration // ex: 10s

	LogLevel  string // "debug" | "info" | "warn" | "error"
	PrettyLog bool   // true => zap dev (color), false => zap prod (JSON)

	// Messaging
	TelegramToken string // empty => log sink, bot disabled

	// Storage
	Store            string // "redis" | "memory"
	ResultArchiveDSN string // optional Postgres DSN for the result archive

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

	// Per-user caps
	MaxLinksPerUser     int
	MaxProxiesPerUser   int
	MaxSchedulesPerUser int

	// Run pacing
	ProbeTimeout         time.Duration // upper bound for a single probe
	DelayBetweenRequests time.Duration // pause between two targets of one run
	DelayJitter          time.Duration // random extra pause in [0, DelayJitter)
	ProgressEvery        int           // progress notice every N completions
	ReportChunkSize      int           // max characters per report message

	// Probing
	Prober              string   // "http" | "browser"
	BrowserURL          string   // optional remote Chrome websocket
	UnavailableMarkers  []string // lower-cased text markers of an unavailable listing
	UnavailableSelector string   // CSS selector (browser) or id/class token (http)
	DefaultProxyType    string   // batch type used when a proxy line has no scheme

	Timezone string // IANA name, empty => local
	SeedFile string // optional YAML seed imported at startup

	AllowedCIDRS []string // optional, restrict access to specific IP (e.g. "1.2.3.4, 5.6.7.8")
	AllowedHosts []string // optional, Host headers accepted on /api (e.g. "watch.example.com, *.lan")
	TrustProxy   bool     // true => trust X-Forwarded-For headers (e.g. cloudflared)

	// API rate limiting (per client IP)
	RateLimitBurst     int
	RateLimitPerMinute int
}

func Load() *Config {
	cfg := &Config{
		// Server settings
		ListenPort:      getenv("PLAYWATCH_LISTEN_PORT", ":8080"),
		ShutdownTimeout: mustDuration("PLAYWATCH_SHUTDOWN_TIMEOUT", 10*time.Second),

		// Logging
		LogLevel:  getenv("PLAYWATCH_LOG_LEVEL", "info"),
		PrettyLog: mustBool("PLAYWATCH_PRETTY_LOG", true),

		TelegramToken: getenv("PLAYWATCH_TELEGRAM_TOKEN", ""),

		Store:            strings.ToLower(getenv("PLAYWATCH_STORE", "redis")),
		ResultArchiveDSN: getenv("PLAYWATCH_RESULT_ARCHIVE_DSN", ""),

		// Redis settings
		RedisAddr:             getenv("PLAYWATCH_REDIS_ADDR", ""),
		RedisUser:             getenv("PLAYWATCH_REDIS_USERNAME", "default"),
		RedisPasswordRequired: mustBool("PLAYWATCH_REDIS_PASSWORD_REQUIRED", false),
		RedisPassword:         getenv("PLAYWATCH_REDIS_PASSWORD", ""),
		RedisDB:               getenvInt("PLAYWATCH_REDIS_DB", 0),
		RedisDT:               mustDuration("REDIS_DIAL_TIMEOUT", 5*time.Second),
		RedisRT:               mustDuration("REDIS_READ_TIMEOUT", 3*time.Second),
		RedisWT:               mustDuration("REDIS_WRITE_TIMEOUT", 3*time.Second),
		RedisMaxWait:          mustDuration("REDIS_MAX_WAIT", 10*time.Second),
		RedisPingTimeout:      mustDuration("REDIS_PING_TIMEOUT", 5*time.Second),
		RedisPoolSize:         getenvInt("REDIS_POOL_SIZE", 10),
		RedisConnectTimeout:   mustDuration("REDIS_CONNECT_TIMEOUT", 30*time.Second),
		RedisRetryInterval:    mustDuration("REDIS_RETRY_INTERVAL", 2*time.Second),
		RedisWarnThreshold:    getenvInt("REDIS_WARN_THRESHOLD", 3),

		// Caps
		MaxLinksPerUser:     getenvInt("PLAYWATCH_MAX_LINKS_PER_USER", 100),
		MaxProxiesPerUser:   getenvInt("PLAYWATCH_MAX_PROXIES_PER_USER", 50),
		MaxSchedulesPerUser: getenvInt("PLAYWATCH_MAX_SCHEDULES_PER_USER", 5),

		// Run pacing
		ProbeTimeout:         mustDuration("PLAYWATCH_PROBE_TIMEOUT", 30*time.Second),
		DelayBetweenRequests: mustDuration("PLAYWATCH_DELAY_BETWEEN_REQUESTS", 2*time.Second),
		DelayJitter:          mustDuration("PLAYWATCH_DELAY_JITTER", 0),
		ProgressEvery:        getenvInt("PLAYWATCH_PROGRESS_EVERY", 5),
		ReportChunkSize:      getenvInt("PLAYWATCH_REPORT_CHUNK_SIZE", 4000),

		// Probing
		Prober:              strings.ToLower(getenv("PLAYWATCH_PROBER", "http")),
		BrowserURL:          getenv("PLAYWATCH_BROWSER_URL", ""),
		UnavailableMarkers:  lowerAll(splitAndTrim(getenv("PLAYWATCH_UNAVAILABLE_MARKERS", "not found,not be found,unavailable"))),
		UnavailableSelector: getenv("PLAYWATCH_UNAVAILABLE_SELECTOR", ""),
		DefaultProxyType:    strings.ToUpper(getenv("PLAYWATCH_DEFAULT_PROXY_TYPE", "HTTP")),

		Timezone: getenv("PLAYWATCH_TIMEZONE", ""),
		SeedFile: getenv("PLAYWATCH_SEED_FILE", ""),

		// Access restrictions
		AllowedCIDRS: parseAllowedIPs(getenv("PLAYWATCH_ALLOWED_CIDRS", "")),
		AllowedHosts: splitAndTrim(getenv("PLAYWATCH_ALLOWED_HOSTS", "")),
		TrustProxy:   mustBool("PLAYWATCH_TRUST_PROXY", false),

		RateLimitBurst:     getenvInt("PLAYWATCH_RATE_LIMIT_BURST", 10),
		RateLimitPerMinute: getenvInt("PLAYWATCH_RATE_LIMIT_PER_MINUTE", 30),
	}

	if err := cfg.Validate(); err != nil {
		panic(fmt.Sprintf("❌ FATAL: %v", err))
	}

	// Log config only in debug mode with redacted sensitive fields
	if cfg.LogLevel == "debug" {
		cfgCopy := *cfg
		cfgCopy.RedisPassword = "***REDACTED***"
		if cfg.RedisUser != "" {
			cfgCopy.RedisUser = "***REDACTED***"
		}
		if cfg.TelegramToken != "" {
			cfgCopy.TelegramToken = "***REDACTED***"
		}
		if cfg.ResultArchiveDSN != "" {
			cfgCopy.ResultArchiveDSN = "***REDACTED***"
		}
		log.Printf("[DEBUG] cfg: %+v\n", cfgCopy)
	}

	return cfg
}

// Validate checks cross-field constraints that the env helpers cannot.
func (c *Config) Validate() error {
	switch c.Store {
	case "redis":
		if c.RedisAddr == "" {
			return fmt.Errorf("PLAYWATCH_REDIS_ADDR is required when PLAYWATCH_STORE=redis")
		}
		if c.RedisPasswordRequired && c.RedisPassword == "" {
			return fmt.Errorf("PLAYWATCH_REDIS_PASSWORD is required when PLAYWATCH_REDIS_PASSWORD_REQUIRED=true")
		}
	case "memory":
	default:
		return fmt.Errorf("unknown PLAYWATCH_STORE %q (want redis or memory)", c.Store)
	}

	switch c.Prober {
	case "http", "browser":
	default:
		return fmt.Errorf("unknown PLAYWATCH_PROBER %q (want http or browser)", c.Prober)
	}

	switch c.DefaultProxyType {
	case "HTTP", "HTTPS", "SOCKS5":
	default:
		return fmt.Errorf("unknown PLAYWATCH_DEFAULT_PROXY_TYPE %q", c.DefaultProxyType)
	}

	if c.ReportChunkSize <= 0 {
		return fmt.Errorf("PLAYWATCH_REPORT_CHUNK_SIZE must be > 0, got %d", c.ReportChunkSize)
	}
	if c.ProgressEvery <= 0 {
		return fmt.Errorf("PLAYWATCH_PROGRESS_EVERY must be > 0, got %d", c.ProgressEvery)
	}
	if c.ProbeTimeout <= 0 {
		return fmt.Errorf("PLAYWATCH_PROBE_TIMEOUT must be > 0, got %v", c.ProbeTimeout)
	}
	if c.MaxLinksPerUser < 0 || c.MaxProxiesPerUser < 0 || c.MaxSchedulesPerUser < 0 {
		return fmt.Errorf("per-user caps must be >= 0")
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	return nil
}

// Location resolves Timezone; empty means the process local zone.
func (c *Config) Location() (*time.Location, error) {
	if c.Timezone == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid PLAYWATCH_TIMEZONE %q: %w", c.Timezone, err)
	}
	return loc, nil
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

// RequireEnv is exported for commands that need a value only in one mode
// (ex: the bot token for `serve` with Telegram enabled).
func RequireEnv(key string) string { return requireEnv(key) }

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

func lowerAll(in []string) []string {
	for i, s := range in {
		in[i] = strings.ToLower(s)
	}
	return in
}
