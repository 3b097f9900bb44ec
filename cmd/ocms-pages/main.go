// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.opentelemetry.io/otel"

	"github.com/olegiv/ocms-pages/internal/config"
	"github.com/olegiv/ocms-pages/internal/etag"
	"github.com/olegiv/ocms-pages/internal/handler/api"
	"github.com/olegiv/ocms-pages/internal/lifecycle"
	"github.com/olegiv/ocms-pages/internal/lock"
	"github.com/olegiv/ocms-pages/internal/logging"
	"github.com/olegiv/ocms-pages/internal/scheduler"
	"github.com/olegiv/ocms-pages/internal/service"
	"github.com/olegiv/ocms-pages/internal/store"
	"github.com/olegiv/ocms-pages/internal/telemetry"
	"github.com/olegiv/ocms-pages/internal/version"
)

// Version information - injected at build time via ldflags
var (
	appVersion   = "dev"
	appGitCommit = "unknown"
	appBuildTime = "unknown"
)

func main() {
	showVersion := flag.Bool("version", false, "Show version information")
	flag.BoolVar(showVersion, "v", false, "Show version information (shorthand)")
	showHelp := flag.Bool("help", false, "Show help information")
	flag.BoolVar(showHelp, "h", false, "Show help information (shorthand)")

	flag.Usage = func() {
		_, _ = fmt.Fprintf(os.Stderr, "ocms-pages - page lifecycle and concurrency control service\n\n")
		_, _ = fmt.Fprintf(os.Stderr, "Usage: %s [options]\n\n", os.Args[0])
		_, _ = fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		_, _ = fmt.Fprintf(os.Stderr, "\nEnvironment Variables:\n")
		_, _ = fmt.Fprintf(os.Stderr, "  OCMS_ETAG_SECRET          ETag signing key (required, min 32 bytes)\n")
		_, _ = fmt.Fprintf(os.Stderr, "  OCMS_DB_PATH              SQLite database path (default: ./data/ocms-pages.db)\n")
		_, _ = fmt.Fprintf(os.Stderr, "  OCMS_SERVER_PORT          Server port (default: 8080)\n")
		_, _ = fmt.Fprintf(os.Stderr, "  OCMS_ENV                  Environment: development|production (default: development)\n")
		_, _ = fmt.Fprintf(os.Stderr, "  OCMS_REDIS_URL            Redis URL for shared edit locks (optional)\n")
		_, _ = fmt.Fprintf(os.Stderr, "  OCMS_REQUIRE_EDIT_LOCK    Require an edit lock for every change (default: false)\n")
		_, _ = fmt.Fprintf(os.Stderr, "  OCMS_SCHEDULER_SPEC       Publish sweep schedule (default: @every 30s)\n")
		_, _ = fmt.Fprintf(os.Stderr, "  OCMS_OTEL_ENABLED         Export traces and metrics (default: false)\n")
	}

	flag.Parse()

	if *showHelp {
		flag.Usage()
		os.Exit(0)
	}
	if *showVersion {
		_, _ = fmt.Printf("ocms-pages %s (commit: %s, built: %s)\n", appVersion, appGitCommit, appBuildTime)
		os.Exit(0)
	}

	if err := run(); err != nil {
		slog.Error("application error", "error", err)
		os.Exit(1)
	}
}

func run() error {
	// Load .env if present (development)
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	versionInfo := version.Info{
		Version:   appVersion,
		GitCommit: appGitCommit,
		BuildTime: appBuildTime,
	}

	textHandler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.SlogLevel()})
	logger := slog.New(textHandler)
	slog.SetDefault(logger)
	slog.Info("starting ocms-pages", "version", versionInfo.String(), "env", cfg.Env)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var providers *telemetry.Providers
	if cfg.OTelEnabled {
		providers, err = telemetry.Setup(ctx, telemetry.Config{
			ServiceName:    cfg.OTelServiceName,
			ServiceVersion: versionInfo.Version,
			Environment:    cfg.Env,
			Exporter:       cfg.OTelExporter,
			Insecure:       cfg.IsDevelopment(),
		})
		if err != nil {
			return fmt.Errorf("setting up telemetry: %w", err)
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := providers.Shutdown(shutdownCtx); err != nil {
				slog.Error("error shutting down telemetry", "error", err)
			}
		}()
		slog.Info("telemetry enabled", "exporter", cfg.OTelExporter)
	}

	if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0755); err != nil {
		return fmt.Errorf("creating data directory: %w", err)
	}

	slog.Info("initializing database", "path", cfg.DBPath)
	dbCfg := store.DefaultDBConfig()
	dbCfg.Instrument = cfg.OTelEnabled
	db, err := store.NewDBWithConfig(cfg.DBPath, dbCfg)
	if err != nil {
		return fmt.Errorf("initializing database: %w", err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			slog.Error("error closing database connection", "error", err)
		}
	}()

	if err := store.Migrate(db); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}
	st := store.NewStore(db)
	slog.Info("database ready")

	// Background jobs also mirror their warnings and errors into the event log.
	// The lifecycle service records its own audit events and keeps the plain logger.
	auditLogger := slog.New(logging.NewEventLogHandler(textHandler, st.Queries()))

	var backend lock.Backend
	if cfg.UseRedisLocks() {
		rb, err := lock.NewRedisBackend(lock.RedisOptions{URL: cfg.RedisURL, Prefix: cfg.LockPrefix})
		if err != nil {
			return fmt.Errorf("initializing redis locks: %w", err)
		}
		backend = rb
		slog.Info("edit locks initialized", "backend", "redis")
	} else {
		backend = lock.NewMemoryBackend()
		slog.Info("edit locks initialized", "backend", "memory")
	}
	locks := lock.NewManager(backend, cfg.LockTTL, cfg.LockMaxTTL, auditLogger)
	defer func() {
		if err := locks.Close(); err != nil {
			slog.Error("error closing lock backend", "error", err)
		}
	}()

	guard, err := etag.NewGuard([]byte(cfg.ETagSecret))
	if err != nil {
		return fmt.Errorf("initializing etag guard: %w", err)
	}

	pages, err := lifecycle.New(st, guard, locks,
		lifecycle.WithLogger(logger),
		lifecycle.WithRequireEditLock(cfg.RequireEditLock),
		lifecycle.WithVersionRetention(cfg.VersionRetention),
	)
	if err != nil {
		return fmt.Errorf("initializing page service: %w", err)
	}

	sched := scheduler.New(pages, scheduler.Config{
		Spec:           cfg.SchedulerSpec,
		MaxAttempts:    cfg.SchedulerMaxAttempts,
		Concurrency:    cfg.SchedulerConcurrency,
		Rate:           cfg.SchedulerRate,
		RetryBase:      cfg.SchedulerRetryBase,
		RetryMax:       cfg.SchedulerRetryMax,
		EventRetention: cfg.EventRetention,
	}, auditLogger,
		scheduler.WithEventPruner(service.NewEventService(st.Queries())),
		scheduler.WithRegistry(scheduler.NewRegistry(st.Queries(), auditLogger)),
		scheduler.WithMeter(otel.Meter("github.com/olegiv/ocms-pages/internal/scheduler")),
	)
	if err := sched.Start(); err != nil {
		return fmt.Errorf("starting scheduler: %w", err)
	}
	defer sched.Stop()

	h := api.NewHandler(pages, sched.Registry(), db, logger)
	router := api.NewRouter(h, api.RouterConfig{
		IsDevelopment:  cfg.IsDevelopment(),
		RequestTimeout: cfg.RequestTimeout,
		RateLimit:      cfg.APIRateLimit,
		RateBurst:      cfg.APIRateBurst,
	})

	srv := &http.Server{
		Addr:              cfg.ServerAddr(),
		Handler:           router,
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      cfg.RequestTimeout + 15*time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	case <-ctx.Done():
	}

	slog.Info("shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	slog.Info("server stopped")
	return nil
}
