package worker

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

// globalTestMetrics is shared because promauto registers with the default registry.
var globalTestMetrics = NewWorkerMetrics()

var workerEnvVars = []string{
	"CRON_SCHEDULE", "WORKER_TIMEZONE", "JOB_TIMEOUT", "WORKSPACE_CONCURRENCY",
	"RUN_ON_START", "WORKER_HEALTH_PORT", "METRICS_PORT", "GRPC_HEALTH_PORT",
}

func clearWorkerEnv(t *testing.T) {
	t.Helper()
	for _, key := range workerEnvVars {
		t.Setenv(key, "")
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.CronSchedule != "*/30 * * * *" {
		t.Errorf("Expected CronSchedule '*/30 * * * *', got '%s'", cfg.CronSchedule)
	}
	if cfg.Timezone != "UTC" {
		t.Errorf("Expected Timezone 'UTC', got '%s'", cfg.Timezone)
	}
	if cfg.JobTimeout != time.Hour {
		t.Errorf("Expected JobTimeout 1h, got %v", cfg.JobTimeout)
	}
	if cfg.WorkspaceConcurrency != 4 {
		t.Errorf("Expected WorkspaceConcurrency 4, got %d", cfg.WorkspaceConcurrency)
	}
	if cfg.HealthPort != 9091 || cfg.MetricsPort != 9090 || cfg.GRPCHealthPort != 9092 {
		t.Errorf("Unexpected default ports: %d %d %d", cfg.HealthPort, cfg.MetricsPort, cfg.GRPCHealthPort)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Default config should be valid, got: %v", err)
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"invalid cron", func(c *Config) { c.CronSchedule = "every hour" }, "cron schedule"},
		{"empty timezone", func(c *Config) { c.Timezone = "" }, "timezone"},
		{"unknown timezone", func(c *Config) { c.Timezone = "Mars/Olympus" }, "timezone"},
		{"job timeout too short", func(c *Config) { c.JobTimeout = time.Second }, "job timeout"},
		{"job timeout too long", func(c *Config) { c.JobTimeout = 13 * time.Hour }, "job timeout"},
		{"zero concurrency", func(c *Config) { c.WorkspaceConcurrency = 0 }, "workspace concurrency"},
		{"privileged health port", func(c *Config) { c.HealthPort = 80 }, "health port"},
		{"metrics port too high", func(c *Config) { c.MetricsPort = 70000 }, "metrics port"},
		{"grpc port out of range", func(c *Config) { c.GRPCHealthPort = 22 }, "grpc health port"},
		{"duplicate ports", func(c *Config) { c.MetricsPort = c.HealthPort }, "distinct"},
		{"grpc disabled", func(c *Config) { c.GRPCHealthPort = 0 }, ""},
		{"boundary ports", func(c *Config) { c.HealthPort, c.MetricsPort, c.GRPCHealthPort = 1024, 65535, 2000 }, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)

			err := cfg.Validate()

			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Expected valid config, got: %v", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("Expected error containing %q, got nil", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Expected error containing %q, got: %v", tt.wantErr, err)
			}
		})
	}
}

func TestConfig_Validate_MultipleErrors(t *testing.T) {
	cfg := DefaultConfig()
	cfg.CronSchedule = "bad"
	cfg.WorkspaceConcurrency = 100

	err := cfg.Validate()
	if err == nil {
		t.Fatal("Expected error, got nil")
	}
	for _, want := range []string{"cron schedule", "workspace concurrency"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("Expected error to mention %q, got: %v", want, err)
		}
	}
}

func TestLoadConfigFromEnv_AllEnvVarsValid(t *testing.T) {
	clearWorkerEnv(t)
	t.Setenv("CRON_SCHEDULE", "0 * * * *")
	t.Setenv("WORKER_TIMEZONE", "Asia/Tokyo")
	t.Setenv("JOB_TIMEOUT", "2h")
	t.Setenv("WORKSPACE_CONCURRENCY", "8")
	t.Setenv("RUN_ON_START", "true")
	t.Setenv("WORKER_HEALTH_PORT", "8081")
	t.Setenv("METRICS_PORT", "8082")
	t.Setenv("GRPC_HEALTH_PORT", "0")

	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	cfg, err := LoadConfigFromEnv(logger, globalTestMetrics)
	if err != nil {
		t.Errorf("Expected no error, got: %v", err)
	}

	want := Config{
		CronSchedule:         "0 * * * *",
		Timezone:             "Asia/Tokyo",
		JobTimeout:           2 * time.Hour,
		WorkspaceConcurrency: 8,
		RunOnStart:           true,
		HealthPort:           8081,
		MetricsPort:          8082,
		GRPCHealthPort:       0,
	}
	if *cfg != want {
		t.Errorf("Expected %+v, got %+v", want, *cfg)
	}
	if buf.Len() > 0 {
		t.Errorf("Expected no warnings, got: %s", buf.String())
	}
	if got := testutil.ToFloat64(globalTestMetrics.FallbackActive); got != 0 {
		t.Errorf("Expected fallback gauge 0, got %v", got)
	}
}

func TestLoadConfigFromEnv_MissingEnvVars(t *testing.T) {
	clearWorkerEnv(t)

	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	cfg, err := LoadConfigFromEnv(logger, globalTestMetrics)
	if err != nil {
		t.Errorf("Expected no error, got: %v", err)
	}
	if *cfg != DefaultConfig() {
		t.Errorf("Expected defaults, got %+v", *cfg)
	}
	if buf.Len() > 0 {
		t.Errorf("Expected no warnings, got: %s", buf.String())
	}
}

func TestLoadConfigFromEnv_InvalidValuesFallBack(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
		field string
		check func(cfg *Config) bool
	}{
		{"cron", "CRON_SCHEDULE", "invalid cron", "cron_schedule",
			func(cfg *Config) bool { return cfg.CronSchedule == DefaultConfig().CronSchedule }},
		{"timezone", "WORKER_TIMEZONE", "Invalid/Zone", "timezone",
			func(cfg *Config) bool { return cfg.Timezone == "UTC" }},
		{"job timeout", "JOB_TIMEOUT", "30s", "job_timeout",
			func(cfg *Config) bool { return cfg.JobTimeout == time.Hour }},
		{"concurrency", "WORKSPACE_CONCURRENCY", "abc", "workspace_concurrency",
			func(cfg *Config) bool { return cfg.WorkspaceConcurrency == 4 }},
		{"run on start", "RUN_ON_START", "maybe", "run_on_start",
			func(cfg *Config) bool { return !cfg.RunOnStart }},
		{"health port", "WORKER_HEALTH_PORT", "80", "health_port",
			func(cfg *Config) bool { return cfg.HealthPort == 9091 }},
		{"grpc port", "GRPC_HEALTH_PORT", "-1", "grpc_health_port",
			func(cfg *Config) bool { return cfg.GRPCHealthPort == 9092 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearWorkerEnv(t)
			t.Setenv(tt.key, tt.value)

			var buf bytes.Buffer
			logger := slog.New(slog.NewJSONHandler(&buf, nil))
			before := testutil.ToFloat64(globalTestMetrics.FallbacksTotal.WithLabelValues(tt.field))

			cfg, err := LoadConfigFromEnv(logger, globalTestMetrics)
			if err != nil {
				t.Errorf("Expected no error, got: %v", err)
			}
			if !tt.check(cfg) {
				t.Errorf("Expected default for %s, got %+v", tt.key, *cfg)
			}
			if !strings.Contains(buf.String(), "Configuration fallback applied") {
				t.Errorf("Expected fallback warning, got: %s", buf.String())
			}
			if !strings.Contains(buf.String(), tt.key) {
				t.Errorf("Expected warning to mention %s, got: %s", tt.key, buf.String())
			}
			after := testutil.ToFloat64(globalTestMetrics.FallbacksTotal.WithLabelValues(tt.field))
			if after != before+1 {
				t.Errorf("Expected fallback counter for %s to increase by 1, got %v -> %v", tt.field, before, after)
			}
			if got := testutil.ToFloat64(globalTestMetrics.FallbackActive); got != 1 {
				t.Errorf("Expected fallback gauge 1, got %v", got)
			}
		})
	}
}

func TestLoadConfigFromEnv_NilMetrics(t *testing.T) {
	clearWorkerEnv(t)
	t.Setenv("CRON_SCHEDULE", "bad")

	cfg, err := LoadConfigFromEnv(slog.New(slog.NewJSONHandler(&bytes.Buffer{}, nil)), nil)
	if err != nil {
		t.Errorf("Expected no error, got: %v", err)
	}
	if cfg.CronSchedule != DefaultConfig().CronSchedule {
		t.Errorf("Expected default CronSchedule, got '%s'", cfg.CronSchedule)
	}
}
