package worker

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNewWorkerMetrics(t *testing.T) {
	metrics := globalTestMetrics

	if metrics.ConfigMetrics == nil {
		t.Error("ConfigMetrics is nil")
	}
	if metrics.CronJobRunsTotal == nil {
		t.Error("CronJobRunsTotal is nil")
	}
	if metrics.CronJobDurationSeconds == nil {
		t.Error("CronJobDurationSeconds is nil")
	}
	if metrics.CronJobWorkspacesProcessedTotal == nil {
		t.Error("CronJobWorkspacesProcessedTotal is nil")
	}
	if metrics.CronJobLastSuccessTimestamp == nil {
		t.Error("CronJobLastSuccessTimestamp is nil")
	}
}

// newTestWorkerMetrics builds WorkerMetrics on an isolated registry.
func newTestWorkerMetrics(t *testing.T) *WorkerMetrics {
	t.Helper()
	reg := prometheus.NewRegistry()
	m := &WorkerMetrics{
		CronJobRunsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "test_worker_cron_job_runs_total", Help: "test",
		}, []string{"status"}),
		CronJobDurationSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name: "test_worker_cron_job_duration_seconds", Help: "test",
		}),
		CronJobWorkspacesProcessedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "test_worker_cron_job_workspaces_processed_total", Help: "test",
		}),
		CronJobLastSuccessTimestamp: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "test_worker_cron_job_last_success_timestamp", Help: "test",
		}),
	}
	reg.MustRegister(m.CronJobRunsTotal, m.CronJobDurationSeconds,
		m.CronJobWorkspacesProcessedTotal, m.CronJobLastSuccessTimestamp)
	return m
}

func TestWorkerMetrics_RecordJobRun(t *testing.T) {
	metrics := newTestWorkerMetrics(t)

	metrics.RecordJobRun("success")
	metrics.RecordJobRun("success")
	metrics.RecordJobRun("failure")

	if got := testutil.ToFloat64(metrics.CronJobRunsTotal.WithLabelValues("success")); got != 2 {
		t.Errorf("Expected success count 2, got %f", got)
	}
	if got := testutil.ToFloat64(metrics.CronJobRunsTotal.WithLabelValues("failure")); got != 1 {
		t.Errorf("Expected failure count 1, got %f", got)
	}
}

func TestWorkerMetrics_RecordJobDuration(t *testing.T) {
	metrics := newTestWorkerMetrics(t)

	metrics.RecordJobDuration(1.5)
	metrics.RecordJobDuration(40)

	if got := testutil.CollectAndCount(metrics.CronJobDurationSeconds); got != 1 {
		t.Errorf("Expected 1 histogram series, got %d", got)
	}
}

func TestWorkerMetrics_RecordWorkspacesProcessed(t *testing.T) {
	metrics := newTestWorkerMetrics(t)

	metrics.RecordWorkspacesProcessed(3)
	metrics.RecordWorkspacesProcessed(2)

	if got := testutil.ToFloat64(metrics.CronJobWorkspacesProcessedTotal); got != 5 {
		t.Errorf("Expected 5 workspaces, got %f", got)
	}
}

func TestWorkerMetrics_RecordLastSuccess(t *testing.T) {
	metrics := newTestWorkerMetrics(t)

	metrics.RecordLastSuccess()

	if got := testutil.ToFloat64(metrics.CronJobLastSuccessTimestamp); got <= 0 {
		t.Errorf("Expected positive timestamp, got %f", got)
	}
}
