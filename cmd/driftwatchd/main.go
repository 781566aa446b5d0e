// Command driftwatchd starts the drift-detection HTTP service: it loads
// configuration from the environment, opens the hash-chained audit log
// and template store, wires the authenticator and rate limiter, and
// serves the HTTP surface until an interrupt or term signal arrives.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/greywatch/driftwatch/pkg/api"
	"github.com/greywatch/driftwatch/pkg/auditlog"
	"github.com/greywatch/driftwatch/pkg/auth"
	"github.com/greywatch/driftwatch/pkg/config"
	"github.com/greywatch/driftwatch/pkg/observability"
	"github.com/greywatch/driftwatch/pkg/patternrule"
	"github.com/greywatch/driftwatch/pkg/server"
	"github.com/greywatch/driftwatch/pkg/template"
)

func main() {
	os.Exit(run())
}

func run() int {
	cfg := config.Load()
	logger := observability.NewLogger(cfg.JSONLogs, parseLevel(cfg.LogLevel))
	slog.SetDefault(logger)

	logger.Info("driftwatch starting", "port", cfg.Port, "log_path", cfg.LogPath)

	templates := template.NewStore(cfg.TemplatesPath)
	if diagnostics, err := templates.Reload(); err != nil {
		logger.Error("template store: initial load failed", "error", err)
		return 1
	} else if len(diagnostics) > 0 {
		for path, errs := range diagnostics {
			logger.Warn("template store: skipped invalid template", "path", path, "errors", errs)
		}
	}

	ctx := context.Background()
	var idx auditlog.Index
	if cfg.DatabaseURL != "" {
		pgIdx, err := auditlog.OpenPostgresIndex(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.Error("audit log: postgres index unavailable, continuing without secondary index", "error", err)
		} else {
			idx = pgIdx
		}
	} else {
		sqliteIdx, err := auditlog.OpenSQLiteIndex(ctx, cfg.LogPath+".idx.db")
		if err != nil {
			logger.Warn("audit log: sqlite index unavailable, continuing without secondary index", "error", err)
		} else {
			idx = sqliteIdx
		}
	}

	logOpts := []auditlog.Option{auditlog.WithDurability(true)}
	if idx != nil {
		logOpts = append(logOpts, auditlog.WithIndex(idx))
	}
	auditLog, err := auditlog.Open(cfg.LogPath, logOpts...)
	if err != nil {
		logger.Error("audit log: open failed", "error", err)
		return 1
	}
	defer func() {
		if err := auditLog.Close(); err != nil {
			logger.Error("audit log: close failed", "error", err)
		}
	}()

	keys, err := auth.NewKeyStore(cfg.APIKeysPath)
	if err != nil {
		logger.Error("key store: open failed", "error", err)
		return 1
	}

	rules, err := patternrule.NewEngine()
	if err != nil {
		logger.Error("pattern rule engine: init failed", "error", err)
		return 1
	}

	metrics := observability.NewRegistry()

	var health *observability.HealthChecker
	if cfg.EnableHealth {
		health = observability.NewHealthChecker()
		health.Register("audit_log", func(ctx context.Context) (observability.Status, string) {
			ok, badIndex := auditLog.VerifyIntegrity()
			if !ok {
				return observability.StatusUnhealthy, fmt.Sprintf("chain verification failed at index %d", badIndex)
			}
			return observability.StatusHealthy, ""
		})
		health.Register("templates", func(ctx context.Context) (observability.Status, string) {
			if templates.Count() == 0 {
				return observability.StatusDegraded, "no templates loaded"
			}
			return observability.StatusHealthy, ""
		})
	}

	var metricsRegistry *observability.Registry
	if cfg.EnableMetrics {
		metricsRegistry = metrics
	}

	var limiter *auth.RateLimiter
	if cfg.EnableRateLimiting {
		limiter = auth.NewRateLimiter(auth.NewInProcessLimiterStore(), cfg.RateLimitRPM, cfg.RateLimitBurst)
	}

	srv := server.New()
	srv.Templates = templates
	srv.Log = auditLog
	srv.Keys = keys
	srv.Limiter = limiter
	srv.IPLimiter = api.NewIPLimiter(cfg.RateLimitRPM, cfg.RateLimitBurst)
	srv.Rules = rules
	srv.Metrics = metricsRegistry
	srv.Health = health
	srv.Logger = logger
	srv.MaxBodyMB = cfg.MaxRequestSizeMB
	srv.CORSOrigins = cfg.CORSOrigins

	sweepDone := make(chan struct{})
	go func() {
		ticker := time.NewTicker(5 * time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				srv.IPLimiter.Sweep(10 * time.Minute)
			case <-sweepDone:
				return
			}
		}
	}()
	defer close(sweepDone)

	httpServer := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      srv.Mux(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  90 * time.Second,
	}

	serveErrs := make(chan error, 1)
	go func() {
		logger.Info("driftwatch listening", "addr", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serveErrs <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serveErrs:
		logger.Error("http server failed", "error", err)
		return 1
	case sig := <-sigCh:
		logger.Info("shutting down", "signal", sig.String())
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server: graceful shutdown failed", "error", err)
		return 1
	}
	return 0
}

func parseLevel(name string) slog.Level {
	switch name {
	case "DEBUG":
		return slog.LevelDebug
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
