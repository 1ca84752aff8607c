package config

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestConfigMetrics(t *testing.T) {
	metrics := NewConfigMetrics("test_config_metrics")

	metrics.RecordLoadTimestamp()
	assert.Greater(t, testutil.ToFloat64(metrics.LoadTimestamp), float64(0))

	metrics.RecordFallback("cron_schedule")
	metrics.RecordFallback("cron_schedule")
	metrics.RecordFallback("timezone")
	assert.Equal(t, float64(2), testutil.ToFloat64(metrics.FallbacksTotal.WithLabelValues("cron_schedule")))
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.FallbacksTotal.WithLabelValues("timezone")))

	metrics.SetFallbackActive(true)
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.FallbackActive))
	metrics.SetFallbackActive(false)
	assert.Equal(t, float64(0), testutil.ToFloat64(metrics.FallbackActive))

	// A second handle for the same component shares the series.
	again := NewConfigMetrics("test_config_metrics")
	again.RecordFallback("timezone")
	assert.Equal(t, float64(2), testutil.ToFloat64(metrics.FallbacksTotal.WithLabelValues("timezone")))
	assert.Equal(t, float64(0), testutil.ToFloat64(NewConfigMetrics("other").FallbacksTotal.WithLabelValues("timezone")))
}

func TestRecorder(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	metrics := NewConfigMetrics("test_config_recorder")
	rec := NewRecorder(logger, metrics)

	t.Setenv("TEST_RECORDER_K", "0")
	t.Setenv("TEST_RECORDER_TZ", "Mars/Olympus")

	k := rec.Track("neighbor_k", LoadEnvInt("TEST_RECORDER_K", 20, func(v int) error { return ValidateIntRange(v, 1, 100) })).(int)
	tz := rec.Track("timezone", LoadEnvWithFallback("TEST_RECORDER_TZ", "UTC", ValidateTimezone)).(string)
	schedule := rec.Track("cron_schedule", LoadEnvWithFallback("TEST_RECORDER_UNSET", "*/15 * * * *", ValidateCronSchedule)).(string)
	rec.Finish()

	assert.Equal(t, 20, k)
	assert.Equal(t, "UTC", tz)
	assert.Equal(t, "*/15 * * * *", schedule)
	assert.True(t, rec.FallbackApplied())
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.FallbackActive))
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.FallbacksTotal.WithLabelValues("neighbor_k")))
	assert.Contains(t, buf.String(), "Configuration fallback applied")
	assert.Contains(t, buf.String(), `"field":"timezone"`)
}

func TestRecorder_NoMetrics(t *testing.T) {
	rec := NewRecorder(nil, nil)
	v := rec.Track("x", ConfigLoadResult{Value: 1})
	rec.Finish()

	assert.Equal(t, 1, v)
	assert.False(t, rec.FallbackApplied())
}
