// Package slo tracks the service level indicators of the linking engine:
// how much of each workspace is embedded, how fresh its link map is and how
// often embedding refreshes fail.
package slo

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// SLO targets define the service level objectives of the engine.
const (
	// EmbeddingCoverageSLO is the target ratio of published articles holding a current embedding.
	EmbeddingCoverageSLO = 0.99

	// FreshnessSLO is the maximum age of a workspace's last successful reconciliation.
	FreshnessSLO = 2 * time.Hour

	// RefreshFailureRateSLO is the maximum acceptable ratio of failed embedding refreshes per run.
	RefreshFailureRateSLO = 0.01
)

// SLO tracking metrics, updated at the end of every reconciliation run.
var (
	// SLOEmbeddingCoverage tracks the ratio of published articles with a current embedding.
	SLOEmbeddingCoverage = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "slo_embedding_coverage_ratio",
			Help: "Ratio of published articles holding a current embedding (0-1), target: 0.99",
		},
		[]string{"workspace"},
	)

	// SLOLastSuccess records when a workspace last reconciled successfully.
	SLOLastSuccess = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "slo_last_success_timestamp_seconds",
			Help: "Unix time of the last successful reconciliation, target age: 2h",
		},
		[]string{"workspace"},
	)

	// SLORefreshFailureRate tracks the ratio of refresh attempts that failed in the last run.
	SLORefreshFailureRate = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "slo_refresh_failure_ratio",
			Help: "Ratio of failed embedding refreshes in the last run (0-1), target: 0.01",
		},
		[]string{"workspace"},
	)
)

// UpdateEmbeddingCoverage sets the coverage ratio of a workspace.
// A workspace without published articles is fully covered.
func UpdateEmbeddingCoverage(workspaceID string, embedded, published int) {
	ratio := 1.0
	if published > 0 {
		ratio = float64(embedded) / float64(published)
	}
	SLOEmbeddingCoverage.WithLabelValues(workspaceID).Set(ratio)
}

// UpdateLastSuccess records a successful run of a workspace.
func UpdateLastSuccess(workspaceID string, at time.Time) {
	SLOLastSuccess.WithLabelValues(workspaceID).Set(float64(at.Unix()))
}

// UpdateRefreshFailureRate sets the failure ratio of the last refresh of a workspace.
// A run that attempted nothing has a zero failure rate.
func UpdateRefreshFailureRate(workspaceID string, failed, attempted int) {
	ratio := 0.0
	if attempted > 0 {
		ratio = float64(failed) / float64(attempted)
	}
	SLORefreshFailureRate.WithLabelValues(workspaceID).Set(ratio)
}
