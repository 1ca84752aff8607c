package worker

import (
	"semantic-linker/internal/pkg/config"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// WorkerMetrics provides Prometheus metrics for the scheduled reconciliation pass.
// Per-workspace run metrics live in observability/metrics; these cover the
// cron job that fans out over all workspaces.
//
// The embedded ConfigMetrics report under component="worker".
//
// Worker metrics:
//   - worker_cron_job_runs_total{status}: started, success, partial, failure, skipped
//   - worker_cron_job_duration_seconds
//   - worker_cron_job_workspaces_processed_total
//   - worker_cron_job_last_success_timestamp
type WorkerMetrics struct {
	*config.ConfigMetrics

	CronJobRunsTotal                *prometheus.CounterVec
	CronJobDurationSeconds          prometheus.Histogram
	CronJobWorkspacesProcessedTotal prometheus.Counter
	CronJobLastSuccessTimestamp     prometheus.Gauge
}

// NewWorkerMetrics creates and registers the worker metrics. Call it once per process.
func NewWorkerMetrics() *WorkerMetrics {
	return &WorkerMetrics{
		ConfigMetrics: config.NewConfigMetrics("worker"),

		CronJobRunsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "worker_cron_job_runs_total",
			Help: "Total number of scheduled reconciliation passes by status",
		}, []string{"status"}),

		CronJobDurationSeconds: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "worker_cron_job_duration_seconds",
			Help:    "Duration of a scheduled reconciliation pass in seconds",
			Buckets: []float64{1, 5, 30, 60, 300, 900, 1800, 3600},
		}),

		CronJobWorkspacesProcessedTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "worker_cron_job_workspaces_processed_total",
			Help: "Total number of workspace runs across all scheduled passes",
		}),

		CronJobLastSuccessTimestamp: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "worker_cron_job_last_success_timestamp",
			Help: "Unix timestamp of the last pass in which no workspace failed",
		}),
	}
}

// RecordJobRun increments the pass counter for status.
func (m *WorkerMetrics) RecordJobRun(status string) {
	m.CronJobRunsTotal.WithLabelValues(status).Inc()
}

// RecordJobDuration observes the duration of a pass in seconds.
func (m *WorkerMetrics) RecordJobDuration(seconds float64) {
	m.CronJobDurationSeconds.Observe(seconds)
}

// RecordWorkspacesProcessed adds the number of workspace runs of a pass.
func (m *WorkerMetrics) RecordWorkspacesProcessed(count int) {
	m.CronJobWorkspacesProcessedTotal.Add(float64(count))
}

// RecordLastSuccess sets the last success timestamp to now.
func (m *WorkerMetrics) RecordLastSuccess() {
	m.CronJobLastSuccessTimestamp.SetToCurrentTime()
}
