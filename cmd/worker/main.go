package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"semantic-linker/internal/app"
	"semantic-linker/internal/config"
	"semantic-linker/internal/infra/db"
	workerPkg "semantic-linker/internal/infra/worker"
	"semantic-linker/internal/observability/logging"
	"semantic-linker/internal/observability/metrics"
	"semantic-linker/internal/observability/tracing"
	pkgconfig "semantic-linker/internal/pkg/config"
)

func waitForMigrations(ctx context.Context, logger *slog.Logger, database *sql.DB) error {
	if os.Getenv("AUTO_MIGRATE") == "true" {
		return db.MigrateUp(ctx, database)
	}
	const probe = "SELECT 1 FROM link_edges LIMIT 1"
	for i := 0; i < 10; i++ {
		if _, err := database.ExecContext(ctx, probe); err == nil {
			return nil
		}
		logger.Info("waiting for migrations, retrying in 3s", slog.Int("attempt", i+1))
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(3 * time.Second):
		}
	}
	return fmt.Errorf("migrations did not complete in time")
}

func main() {
	logger := initLogger()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing := tracing.InitProvider()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(shutdownCtx); err != nil {
			logger.Error("failed to shut down tracer provider", logging.Error(err))
		}
	}()

	// Load worker configuration (fail-open strategy)
	workerMetrics := workerPkg.NewWorkerMetrics()
	workerConfig, _ := workerPkg.LoadConfigFromEnv(logger, workerMetrics)
	logger.Info("worker configuration loaded",
		slog.String("cron_schedule", workerConfig.CronSchedule),
		slog.String("timezone", workerConfig.Timezone),
		slog.Duration("job_timeout", workerConfig.JobTimeout),
		slog.Int("workspace_concurrency", workerConfig.WorkspaceConcurrency),
		slog.Int("health_port", workerConfig.HealthPort),
		slog.Int("metrics_port", workerConfig.MetricsPort),
		slog.Int("grpc_health_port", workerConfig.GRPCHealthPort))

	linkerConfig, err := config.LoadLinkerConfig(logger, pkgconfig.NewConfigMetrics("linker"))
	if err != nil {
		logger.Error("failed to load linker configuration", logging.Error(err))
		os.Exit(1)
	}
	embedderConfig, err := config.LoadEmbedderConfig(logger, pkgconfig.NewConfigMetrics("embedder"))
	if err != nil {
		logger.Error("failed to load embedder configuration", logging.Error(err))
		os.Exit(1)
	}

	database, err := db.Open(ctx)
	if err != nil {
		logger.Error("failed to open database", logging.Error(err))
		os.Exit(1)
	}
	defer func() {
		if err := database.Close(); err != nil {
			logger.Error("failed to close database", logging.Error(err))
		}
	}()
	if err := waitForMigrations(ctx, logger, database); err != nil {
		logger.Error("database schema not ready", logging.Error(err))
		os.Exit(1)
	}

	engine, err := app.New(database, linkerConfig, embedderConfig, logger)
	if err != nil {
		logger.Error("failed to assemble engine", logging.Error(err))
		os.Exit(1)
	}
	defer func() {
		if err := engine.Close(); err != nil {
			logger.Error("failed to close engine", logging.Error(err))
		}
	}()

	startMetricsServer(ctx, logger, workerConfig.MetricsPort, engine)
	go collectDBStats(ctx, database)

	healthServer := workerPkg.NewHealthServer(fmt.Sprintf(":%d", workerConfig.HealthPort), logger)
	healthServer.AddCheck("database", engine.Ping)
	go func() {
		if err := healthServer.Start(ctx); err != nil && err != http.ErrServerClosed {
			logger.Error("health server failed", logging.Error(err))
		}
	}()

	if workerConfig.GRPCHealthPort != 0 {
		grpcHealth := workerPkg.NewGRPCHealthServer(fmt.Sprintf(":%d", workerConfig.GRPCHealthPort), logger)
		healthServer.OnReadyChange(grpcHealth.SetServing)
		go func() {
			if err := grpcHealth.Start(ctx); err != nil {
				logger.Error("grpc health server failed", logging.Error(err))
			}
		}()
	}

	scheduler, err := workerPkg.NewScheduler(workerConfig, engine.Runner, workerMetrics, logger)
	if err != nil {
		logger.Error("failed to create scheduler", logging.Error(err))
		os.Exit(1)
	}
	scheduler.Start()
	if workerConfig.RunOnStart {
		go scheduler.RunPass(ctx)
	}

	healthServer.SetReady(true)
	logger.Info("worker started")

	<-ctx.Done()
	logger.Info("shutdown signal received")
	healthServer.SetReady(false)

	// Let the running pass finish; its context is not tied to the signal.
	select {
	case <-scheduler.Stop().Done():
	case <-time.After(workerConfig.JobTimeout):
		logger.Warn("reconciliation pass still running at shutdown")
	}
	logger.Info("worker stopped")
}

// initLogger initializes the JSON logger and installs it as the default.
func initLogger() *slog.Logger {
	logger := logging.NewLogger()
	slog.SetDefault(logger)
	return logger
}

// collectDBStats publishes connection pool statistics every 15 seconds.
func collectDBStats(ctx context.Context, database *sql.DB) {
	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()
	for {
		stats := database.Stats()
		metrics.UpdateDBConnectionStats(stats.InUse, stats.Idle)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
