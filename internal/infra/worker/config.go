package worker

import (
	"fmt"
	"log/slog"
	"time"

	"semantic-linker/internal/pkg/config"
)

// Config holds the configuration of the reconciliation worker process: when
// runs are scheduled, how long they may take and where it serves health and
// metrics.
//
// Example usage:
//
//	cfg, _ := LoadConfigFromEnv(logger, metrics)
//	if err := cfg.Validate(); err != nil {
//	    log.Fatal("Invalid configuration: %v", err)
//	}
type Config struct {
	// CronSchedule is the cron expression of reconciliation runs.
	// Format: "minute hour day month weekday"
	// Default: "*/30 * * * *"
	CronSchedule string

	// Timezone is the IANA timezone name the schedule is evaluated in.
	// Default: "UTC"
	Timezone string

	// JobTimeout bounds one scheduled pass over all workspaces.
	// Range: 1m-12h
	// Default: 1 hour
	JobTimeout time.Duration

	// WorkspaceConcurrency is how many workspaces are reconciled at once.
	// Range: 1-32
	// Default: 4
	WorkspaceConcurrency int

	// RunOnStart triggers a pass immediately after startup.
	// Default: false
	RunOnStart bool

	// HealthPort serves /health and /health/ready.
	// Default: 9091
	HealthPort int

	// MetricsPort serves /metrics.
	// Default: 9090
	MetricsPort int

	// GRPCHealthPort serves grpc.health.v1.Health. 0 disables it.
	// Default: 9092
	GRPCHealthPort int
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() Config {
	return Config{
		CronSchedule:         "*/30 * * * *",
		Timezone:             "UTC",
		JobTimeout:           time.Hour,
		WorkspaceConcurrency: 4,
		HealthPort:           9091,
		MetricsPort:          9090,
		GRPCHealthPort:       9092,
	}
}

// Validate checks every field and reports all failures together.
func (c *Config) Validate() error {
	var errors []error

	if err := config.ValidateCronSchedule(c.CronSchedule); err != nil {
		errors = append(errors, fmt.Errorf("cron schedule: %w", err))
	}
	if err := config.ValidateTimezone(c.Timezone); err != nil {
		errors = append(errors, fmt.Errorf("timezone: %w", err))
	}
	if err := config.ValidateDuration(c.JobTimeout, time.Minute, 12*time.Hour); err != nil {
		errors = append(errors, fmt.Errorf("job timeout: %w", err))
	}
	if err := config.ValidateIntRange(c.WorkspaceConcurrency, 1, 32); err != nil {
		errors = append(errors, fmt.Errorf("workspace concurrency: %w", err))
	}
	if err := config.ValidateIntRange(c.HealthPort, 1024, 65535); err != nil {
		errors = append(errors, fmt.Errorf("health port: %w", err))
	}
	if err := config.ValidateIntRange(c.MetricsPort, 1024, 65535); err != nil {
		errors = append(errors, fmt.Errorf("metrics port: %w", err))
	}
	if c.GRPCHealthPort != 0 {
		if err := config.ValidateIntRange(c.GRPCHealthPort, 1024, 65535); err != nil {
			errors = append(errors, fmt.Errorf("grpc health port: %w", err))
		}
	}
	if c.HealthPort == c.MetricsPort || (c.GRPCHealthPort != 0 &&
		(c.GRPCHealthPort == c.HealthPort || c.GRPCHealthPort == c.MetricsPort)) {
		errors = append(errors, fmt.Errorf("ports must be distinct"))
	}

	if len(errors) > 0 {
		return fmt.Errorf("validation failed: %v", errors)
	}
	return nil
}

// LoadConfigFromEnv loads the worker configuration with fail-open semantics:
// every invalid value is replaced by its default, logged and counted in
// metrics. The returned error is always nil.
//
// Environment variables:
//   - CRON_SCHEDULE (default: "*/30 * * * *")
//   - WORKER_TIMEZONE (default: "UTC")
//   - JOB_TIMEOUT: 1m-12h (default: 1h)
//   - WORKSPACE_CONCURRENCY: 1-32 (default: 4)
//   - RUN_ON_START (default: false)
//   - WORKER_HEALTH_PORT (default: 9091)
//   - METRICS_PORT (default: 9090)
//   - GRPC_HEALTH_PORT: 0 disables (default: 9092)
func LoadConfigFromEnv(logger *slog.Logger, metrics *WorkerMetrics) (*Config, error) {
	cfg := DefaultConfig()

	var cm *config.ConfigMetrics
	if metrics != nil {
		cm = metrics.ConfigMetrics
	}
	rec := config.NewRecorder(logger, cm)

	port := func(v int) error { return config.ValidateIntRange(v, 1024, 65535) }

	cfg.CronSchedule = rec.Track("cron_schedule",
		config.LoadEnvWithFallback("CRON_SCHEDULE", cfg.CronSchedule, config.ValidateCronSchedule)).(string)
	cfg.Timezone = rec.Track("timezone",
		config.LoadEnvWithFallback("WORKER_TIMEZONE", cfg.Timezone, config.ValidateTimezone)).(string)
	cfg.JobTimeout = rec.Track("job_timeout",
		config.LoadEnvDuration("JOB_TIMEOUT", cfg.JobTimeout, func(d time.Duration) error {
			return config.ValidateDuration(d, time.Minute, 12*time.Hour)
		})).(time.Duration)
	cfg.WorkspaceConcurrency = rec.Track("workspace_concurrency",
		config.LoadEnvInt("WORKSPACE_CONCURRENCY", cfg.WorkspaceConcurrency, func(v int) error {
			return config.ValidateIntRange(v, 1, 32)
		})).(int)
	cfg.RunOnStart = rec.Track("run_on_start", config.LoadEnvBool("RUN_ON_START", cfg.RunOnStart)).(bool)
	cfg.HealthPort = rec.Track("health_port",
		config.LoadEnvInt("WORKER_HEALTH_PORT", cfg.HealthPort, port)).(int)
	cfg.MetricsPort = rec.Track("metrics_port",
		config.LoadEnvInt("METRICS_PORT", cfg.MetricsPort, port)).(int)
	cfg.GRPCHealthPort = rec.Track("grpc_health_port",
		config.LoadEnvInt("GRPC_HEALTH_PORT", cfg.GRPCHealthPort, func(v int) error {
			if v == 0 {
				return nil
			}
			return port(v)
		})).(int)

	rec.Finish()
	return &cfg, nil
}
