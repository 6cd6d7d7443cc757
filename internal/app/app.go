package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/MrSnakeDoc/playwatch/internal/bot"
	"github.com/MrSnakeDoc/playwatch/internal/checker"
	"github.com/MrSnakeDoc/playwatch/internal/config"
	"github.com/MrSnakeDoc/playwatch/internal/domain"
	"github.com/MrSnakeDoc/playwatch/internal/httpserver"
	"github.com/MrSnakeDoc/playwatch/internal/httpserver/deps"
	"github.com/MrSnakeDoc/playwatch/internal/logger"
	"github.com/MrSnakeDoc/playwatch/internal/notify"
	"github.com/MrSnakeDoc/playwatch/internal/probe"
	"github.com/MrSnakeDoc/playwatch/internal/redis"
	"github.com/MrSnakeDoc/playwatch/internal/registry"
	"github.com/MrSnakeDoc/playwatch/internal/rotator"
	"github.com/MrSnakeDoc/playwatch/internal/runguard"
	"github.com/MrSnakeDoc/playwatch/internal/scheduler"
	"github.com/MrSnakeDoc/playwatch/internal/seed"
	"github.com/MrSnakeDoc/playwatch/internal/store"
	"github.com/MrSnakeDoc/playwatch/internal/store/memory"
	"github.com/MrSnakeDoc/playwatch/internal/store/postgres"
	redisstore "github.com/MrSnakeDoc/playwatch/internal/store/redis"
	"github.com/MrSnakeDoc/playwatch/internal/version"
)

type App struct {
	cfg      *config.Config
	logger   logger.Logger
	location *time.Location

	store     store.Store
	registry  *registry.Service
	runner    *checker.Runner
	trigger   *scheduler.Trigger
	bot       *bot.Bot // nil without a Telegram token
	server    *httpserver.Server
	readiness map[string]deps.Pinger

	closers []namedCloser // released in reverse order
}

type namedCloser struct {
	name string
	c    io.Closer
}

// New wires every component from cfg. Backends are dialled here so a
// misconfiguration fails fast, before anything is scheduled.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	loggerClient := logger.New(cfg.LogLevel, cfg.PrettyLog)

	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}

	a := &App{
		cfg:       cfg,
		logger:    loggerClient,
		location:  loc,
		readiness: make(map[string]deps.Pinger),
	}

	if err := a.initStore(ctx); err != nil {
		a.Close()
		return nil, err
	}

	a.registry = registry.New(a.store, registry.Limits{
		Targets:   cfg.MaxLinksPerUser,
		Proxies:   cfg.MaxProxiesPerUser,
		Schedules: cfg.MaxSchedulesPerUser,
	}, domain.ProxyType(cfg.DefaultProxyType), logger.Named(loggerClient, "registry"))

	sink, api, err := a.initMessaging()
	if err != nil {
		a.Close()
		return nil, err
	}

	a.runner = checker.New(
		runguard.New(),
		a.store,
		a.store,
		rotator.New(a.store, logger.Named(loggerClient, "rotator")),
		a.initProber(),
		sink,
		checker.Config{
			ProbeTimeout:  cfg.ProbeTimeout,
			Delay:         cfg.DelayBetweenRequests,
			Jitter:        cfg.DelayJitter,
			ProgressEvery: cfg.ProgressEvery,
			ChunkSize:     cfg.ReportChunkSize,
		},
		logger.Named(loggerClient, "runner"),
	)

	a.trigger = scheduler.NewTrigger(a.store, a.runner, scheduler.InLocation(loc), logger.Named(loggerClient, "trigger"))

	if api != nil {
		a.bot = bot.New(api, a.registry, a.runner, bot.Config{
			ChunkSize: cfg.ReportChunkSize,
			Location:  loc,
		}, logger.Named(loggerClient, "bot"))
	}

	a.server = httpserver.New(cfg.ListenPort, deps.Deps{
		Logger:             loggerClient,
		StartTime:          time.Now(),
		Version:            version.Version,
		Commit:             version.Commit,
		BuildDate:          version.BuildDate,
		GoVersion:          version.GoVersion,
		TimeNow:            time.Now,
		AllowedHosts:       cfg.AllowedHosts,
		AllowedCIDRS:       cfg.AllowedCIDRS,
		TrustProxy:         cfg.TrustProxy,
		RateLimitBurst:     cfg.RateLimitBurst,
		RateLimitPerMinute: cfg.RateLimitPerMinute,
		Registry:           a.registry,
		Runner:             a.runner,
		Location:           loc,
		Readiness:          a.readiness,
	})

	return a, nil
}

func (a *App) initStore(ctx context.Context) error {
	switch a.cfg.Store {
	case "memory":
		a.logger.Warn("using in-memory store, data is lost on restart")
		a.store = memory.New()
	default:
		a.logger.Info("connecting to redis", logger.String("addr", a.cfg.RedisAddr))
		client, err := redis.New(ctx, redis.ConnectOptions{
			Addr:           a.cfg.RedisAddr,
			User:           a.cfg.RedisUser,
			Password:       a.cfg.RedisPassword,
			RedisDB:        a.cfg.RedisDB,
			DialTimeout:    a.cfg.RedisDT,
			ReadTimeout:    a.cfg.RedisRT,
			WriteTimeout:   a.cfg.RedisWT,
			PoolSize:       a.cfg.RedisPoolSize,
			ConnectTimeout: a.cfg.RedisConnectTimeout,
			RetryInterval:  a.cfg.RedisRetryInterval,
			MaxWait:        a.cfg.RedisMaxWait,
			PingTimeout:    a.cfg.RedisPingTimeout,
			WarnThreshold:  a.cfg.RedisWarnThreshold,
		}, a.logger)
		if err != nil {
			return fmt.Errorf("failed to connect to redis: %w", err)
		}
		a.closers = append(a.closers, namedCloser{"redis", client})
		rs := redisstore.NewStore(client)
		a.readiness["redis"] = rs
		a.store = rs
	}

	if a.cfg.ResultArchiveDSN == "" {
		return nil
	}

	archive, err := postgres.Open(ctx, a.cfg.ResultArchiveDSN)
	if err != nil {
		return fmt.Errorf("failed to open result archive: %w", err)
	}
	a.closers = append(a.closers, namedCloser{"postgres", archive})
	if err := archive.InitSchema(ctx); err != nil {
		return fmt.Errorf("failed to init result archive schema: %w", err)
	}
	a.readiness["postgres"] = archive
	a.store = store.WithResults(a.store, archive)
	a.logger.Info("check results archived to postgres")
	return nil
}

// initMessaging returns the sink runs report through and, when Telegram
// is configured, the bot API the command handler polls.
func (a *App) initMessaging() (notify.Sink, bot.API, error) {
	if a.cfg.TelegramToken == "" {
		a.logger.Warn("no telegram token, notifications go to the log and the bot is disabled")
		return notify.NewLogSink(logger.Named(a.logger, "notify")), nil, nil
	}

	api, err := tgbotapi.NewBotAPI(a.cfg.TelegramToken)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to init telegram bot: %w", err)
	}
	api.Debug = false
	a.logger.Info("telegram bot authorized", logger.String("bot", api.Self.UserName))
	return notify.NewTelegramSink(api), api, nil
}

func (a *App) initProber() probe.Prober {
	rules := probe.Rules{
		Markers:  a.cfg.UnavailableMarkers,
		Selector: a.cfg.UnavailableSelector,
	}

	if a.cfg.Prober == "browser" {
		b := probe.NewBrowser(probe.BrowserConfig{
			RemoteURL: a.cfg.BrowserURL,
			Timeout:   a.cfg.ProbeTimeout,
			Rules:     rules,
		}, logger.Named(a.logger, "browser"))
		a.closers = append(a.closers, namedCloser{"browser", b})
		a.logger.Info("using browser prober")
		return b
	}

	a.logger.Info("using http prober")
	return probe.NewHTTP(probe.HTTPConfig{
		Timeout: a.cfg.ProbeTimeout,
		Rules:   rules,
	}, logger.Named(a.logger, "http-prober"))
}

// Run serves until SIGINT/SIGTERM: schedule trigger, HTTP API and, when
// configured, the Telegram bot.
func (a *App) Run() error {
	a.logger.Info("🚀 starting playwatch",
		logger.String("version", version.Version),
		logger.String("commit", version.Commit),
		logger.String("built", version.BuildDate),
		logger.String("go", version.GoVersion),
		logger.String("timezone", a.location.String()))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	defer a.Close()

	if a.cfg.SeedFile != "" {
		if _, err := a.Import(ctx, a.cfg.SeedFile); err != nil {
			return err
		}
	}

	a.trigger.Start(ctx)

	errCh := make(chan error, 2)
	go func() {
		if err := a.server.Start(); err != nil {
			errCh <- fmt.Errorf("http server error: %w", err)
		}
	}()

	if a.bot != nil {
		go func() {
			if err := a.bot.Run(ctx); err != nil {
				errCh <- fmt.Errorf("telegram bot error: %w", err)
			}
		}()
	}

	var runErr error
	select {
	case <-ctx.Done():
		a.logger.Info("⏳ shutting down gracefully")
	case runErr = <-errCh:
		a.logger.Error("component failed, shutting down", logger.Error(runErr))
		stop()
	}

	a.trigger.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
	defer cancel()

	if err := a.server.Stop(shutdownCtx); err != nil {
		a.logger.Warn("failed to stop http server", logger.Error(err))
	}

	// In-flight runs are not cancellable; give them the shutdown budget.
	if err := errors.Join(a.trigger.Wait(shutdownCtx), a.runner.Wait(shutdownCtx)); err != nil {
		a.logger.Warn("runs still in flight at shutdown", logger.Error(err))
	}

	a.logger.Info("✅ playwatch stopped cleanly")
	return runErr
}

// CheckNow runs one user's check in the foreground, for the CLI.
func (a *App) CheckNow(ctx context.Context, userKey string, direct bool) (checker.Summary, error) {
	defer a.Close()
	return a.runner.RunWith(ctx, userKey, checker.Options{UseProxy: !direct})
}

// Import applies a seed file through the registry.
func (a *App) Import(ctx context.Context, path string) (seed.Report, error) {
	f, err := seed.NewLoader(path).Load()
	if err != nil {
		return seed.Report{}, err
	}
	rep, err := seed.NewImporter(a.registry, logger.Named(a.logger, "seed")).Import(ctx, f)
	if err != nil {
		return rep, fmt.Errorf("failed to import %s: %w", path, err)
	}
	return rep, nil
}

// Close releases backends in reverse order of acquisition. Safe to call
// more than once.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		nc := a.closers[i]
		if err := nc.c.Close(); err != nil {
			a.logger.Warn("failed to close", logger.String("component", nc.name), logger.Error(err))
			continue
		}
		a.logger.Debug("closed", logger.String("component", nc.name))
	}
	a.closers = nil
	_ = a.logger.Sync()
}
