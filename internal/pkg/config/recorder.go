package config

import (
	"log/slog"
)

// Recorder reports fallbacks of a configuration load to the log and, when
// metrics are given, to ConfigMetrics.
//
// Example:
//
//	rec := NewRecorder(logger, metrics)
//	cfg.CronSchedule = rec.Track("cron_schedule",
//	    LoadEnvWithFallback("CRON_SCHEDULE", cfg.CronSchedule, ValidateCronSchedule)).(string)
//	rec.Finish()
type Recorder struct {
	logger   *slog.Logger
	metrics  *ConfigMetrics
	fallback bool
}

// NewRecorder creates a Recorder. metrics may be nil.
func NewRecorder(logger *slog.Logger, metrics *ConfigMetrics) *Recorder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Recorder{logger: logger, metrics: metrics}
}

// Track logs the warnings of result and returns its value.
func (r *Recorder) Track(field string, result ConfigLoadResult) interface{} {
	if result.FallbackApplied {
		r.fallback = true
		if r.metrics != nil {
			r.metrics.RecordFallback(field)
		}
		for _, warning := range result.Warnings {
			r.logger.Warn("Configuration fallback applied",
				slog.String("field", field),
				slog.String("warning", warning))
		}
	}
	return result.Value
}

// FallbackApplied reports whether any tracked value fell back to its default.
func (r *Recorder) FallbackApplied() bool {
	return r.fallback
}

// Finish publishes the fallback gauge and the load timestamp.
func (r *Recorder) Finish() {
	if r.metrics == nil {
		return
	}
	r.metrics.SetFallbackActive(r.fallback)
	r.metrics.RecordLoadTimestamp()
}
