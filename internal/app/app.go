package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ebk1996/services/internal/auth"
	"github.com/ebk1996/services/internal/backend"
	"github.com/ebk1996/services/internal/backend/memb"
	"github.com/ebk1996/services/internal/backend/redisb"
	"github.com/ebk1996/services/internal/board"
	"github.com/ebk1996/services/internal/config"
	"github.com/ebk1996/services/internal/gateway"
	"github.com/ebk1996/services/internal/httpserver"
	"github.com/ebk1996/services/internal/httpserver/deps"
	"github.com/ebk1996/services/internal/logger"
	"github.com/ebk1996/services/internal/scheduler"
	"github.com/ebk1996/services/internal/session"
	"github.com/ebk1996/services/internal/syncer"
	"github.com/ebk1996/services/internal/version"
)

type App struct {
	cfg     *config.Config
	logger  logger.Logger
	server  *httpserver.Server
	conn    backend.Connection
	boot    *session.Bootstrapper
	replica *board.Replica
	syncer  *syncer.Synchronizer
	seeder  *scheduler.SeedReloader
	sweeper *scheduler.SessionSweeper
}

func New() *App {
	cfg := config.Load()

	loggerClient := logger.New(cfg.LogLevel, cfg.PrettyLog)

	conn, setupErr := connect(cfg, loggerClient)

	replica := board.NewReplica()

	var (
		boot        *session.Bootstrapper
		gw          *gateway.Gateway
		sync        *syncer.Synchronizer
		seeder      *scheduler.SeedReloader
		sweeper     *scheduler.SessionSweeper
		seedTrigger chan struct{}
	)

	if setupErr != nil {
		// Backend setup failures are display-fatal, not process-fatal:
		// the server still comes up so the page can say what broke.
		loggerClient.Error("backend setup failed",
			logger.Error(setupErr))
		boot = session.NewFailed(setupErr, loggerClient)
	} else {
		boot = session.New(conn, session.Options{
			Token:           cfg.AuthToken,
			AuthTimeout:     cfg.AuthTimeout,
			SessionTTL:      cfg.SessionTTL,
			RefreshInterval: cfg.SessionRefresh,
		}, loggerClient)

		gw = gateway.New(conn, boot, cfg.WriteTimeout, loggerClient)
		sync = syncer.New(conn, boot, replica, loggerClient)
		sweeper = scheduler.NewSessionSweeper(conn, conn, loggerClient, cfg.SweepInterval)

		if cfg.SeedFile != "" {
			loggerClient.Info("seed file configured, initializing seed reloader",
				logger.String("file", cfg.SeedFile))
			seedTrigger = make(chan struct{}, 1)
			seeder = scheduler.NewSeedReloader(
				cfg.SeedFile,
				conn,
				loggerClient,
				cfg.SeedReloadInterval,
				cfg.SeedWatch,
				seedTrigger,
			)
		} else {
			loggerClient.Info("seed file not configured, seeding disabled")
		}
	}

	// Dependencies passed to routes (extend as needed).
	d := deps.Deps{
		Logger:    loggerClient,
		StartTime: time.Now(),
		Version:   version.Version,
		Commit:    version.Commit,
		BuildDate: version.BuildDate,
		GoVersion: version.GoVersion,
		Tenant:    cfg.Tenant,

		Backend: conn,
		Boot:    boot,
		Replica: replica,
		Gateway: gw,

		AllowedHosts:  cfg.AllowedHosts,
		AllowedCIDRS:  cfg.AllowedCIDRS,
		TrustProxy:    cfg.TrustProxy,
		CORSOrigins:   cfg.CORSOrigins,
		RateBurst:     cfg.RateBurst,
		RateRefillMin: cfg.RateRefillMin,

		SeedReloadTrigger: seedTrigger,
	}

	server := httpserver.New(cfg, loggerClient, d)

	return &App{
		cfg:     cfg,
		logger:  loggerClient,
		server:  server,
		conn:    conn,
		boot:    boot,
		replica: replica,
		syncer:  sync,
		seeder:  seeder,
		sweeper: sweeper,
	}
}

// connect establishes the configured backend driver. A nil connection
// with an error means setup failed and the board runs in its error
// shell.
func connect(cfg *config.Config, log logger.Logger) (backend.Connection, error) {
	var validator *auth.Validator
	if cfg.AuthSecret != "" {
		v, err := auth.NewValidator(cfg.AuthSecret, cfg.AuthIssuer)
		if err != nil {
			return nil, fmt.Errorf("auth validator: %w", err)
		}
		validator = v
	}

	if cfg.Backend == config.BackendMemory {
		log.Info("using in-memory backend",
			logger.String("tenant", cfg.Tenant))
		opts := []memb.Option{memb.WithSessionTTL(cfg.SessionTTL)}
		if validator != nil {
			opts = append(opts, memb.WithValidator(validator))
		}
		return memb.New(opts...), nil
	}

	log.Infof("Connecting to Redis at %s", cfg.RedisAddr)
	client, err := redisb.Dial(redisb.DialOptions{
		Addr:           cfg.RedisAddr,
		User:           cfg.RedisUser,
		Password:       cfg.RedisPassword,
		DB:             cfg.RedisDB,
		DialTimeout:    cfg.RedisDT,
		ReadTimeout:    cfg.RedisRT,
		WriteTimeout:   cfg.RedisWT,
		PoolSize:       cfg.RedisPoolSize,
		ConnectTimeout: cfg.RedisConnectTimeout,
		RetryInterval:  cfg.RedisRetryInterval,
		MaxWait:        cfg.RedisMaxWait,
		PingTimeout:    cfg.RedisPingTimeout,
		WarnThreshold:  cfg.RedisWarnThreshold,
	}, log)
	if err != nil {
		return nil, fmt.Errorf("connect redis: %w", err)
	}

	conn, err := redisb.New(client, redisb.Options{
		Tenant:     cfg.Tenant,
		SessionTTL: cfg.SessionTTL,
		Validator:  validator,
	}, log)
	if err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("init redis backend: %w", err)
	}

	log.Info("Redis backend initialized successfully",
		logger.String("tenant", cfg.Tenant))
	return conn, nil
}

func (a *App) Run() error {
	a.logger.Infof("🚀 Starting servicesd v%s on %s", version.Version, a.cfg.ListenPort)
	a.logger.Infof("servicesd %s (commit=%s, built=%s, go=%s)",
		version.Version, version.Commit, version.BuildDate, version.GoVersion)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// live tracks which components actually started; only those are
	// stopped on the way down.
	live := a.conn != nil
	if live {
		if err := a.boot.Start(ctx); err != nil {
			// The bootstrapper records the failure and the page renders
			// it; serving continues.
			a.logger.Errorf("session bootstrap failed: %v", err)
			live = false
		}
	}

	if live {
		if err := a.syncer.Start(ctx); err != nil {
			return fmt.Errorf("failed to start listings synchronizer: %w", err)
		}
		a.logger.Info("listings synchronizer started")

		if a.seeder != nil {
			if err := a.seeder.Start(ctx); err != nil {
				return fmt.Errorf("failed to start seed reloader: %w", err)
			}
			a.logger.Info("seed reloader started",
				logger.Duration("interval", a.cfg.SeedReloadInterval))
		}

		if err := a.sweeper.Start(ctx); err != nil {
			return fmt.Errorf("failed to start session sweeper: %w", err)
		}
		a.logger.Info("session sweeper started",
			logger.Duration("interval", a.cfg.SweepInterval))
	} else {
		a.logger.Warn("backend unavailable, serving the setup error shell only")
	}

	errCh := make(chan error, 1)
	go func() {
		if err := a.server.Start(); err != nil {
			errCh <- fmt.Errorf("http server error: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		a.logger.Info("⏳ Shutting down gracefully...")
	case err := <-errCh:
		return err
	}

	// Schedulers first so no re-import or sweep lands mid-drain.
	if live {
		if a.seeder != nil {
			a.seeder.Stop()
		}
		a.sweeper.Stop()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
	defer cancel()
	if err := a.server.Stop(shutdownCtx); err != nil {
		return fmt.Errorf("failed to stop server: %w", err)
	}

	// Handlers are drained; now the session machinery can go.
	if live {
		a.syncer.Stop()
		a.boot.Stop()
	}

	if a.conn != nil {
		if err := a.conn.Close(); err != nil {
			a.logger.Warnf("failed to close backend: %v", err)
		} else {
			a.logger.Info("✅ Backend closed cleanly")
		}
	}

	a.logger.Info("✅ servicesd stopped cleanly")
	return nil
}
