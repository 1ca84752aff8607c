package metrics

import (
	"time"
)

// RecordReconcileRun records a finished reconciliation run.
func RecordReconcileRun(outcome string) {
	ReconcileRunsTotal.WithLabelValues(outcome).Inc()
}

// RecordReconcileCoalesced records a trigger dropped because a run was in flight.
func RecordReconcileCoalesced() {
	ReconcileCoalescedTotal.Inc()
}

// RecordPhaseDuration records the duration of one reconciliation phase.
func RecordPhaseDuration(phase string, duration time.Duration) {
	ReconcilePhaseDuration.WithLabelValues(phase).Observe(duration.Seconds())
}

// RunStarted increments the in-flight gauge and returns a func that decrements it.
//
// Example:
//
//	defer metrics.RunStarted()()
func RunStarted() func() {
	ReconcileInFlight.Inc()
	return ReconcileInFlight.Dec
}

// RecordArticleRefresh records the refresh result of one article.
func RecordArticleRefresh(result string) {
	ArticlesRefreshedTotal.WithLabelValues(result).Inc()
}

// RecordEmbeddingsPurged records embeddings deleted by the purge step.
func RecordEmbeddingsPurged(count int) {
	if count > 0 {
		EmbeddingsPurgedTotal.Add(float64(count))
	}
}

// RecordEdgeMutations records link map writes of one run.
func RecordEdgeMutations(upserted, deleted, retired int) {
	LinkEdgesMutatedTotal.WithLabelValues("upserted").Add(float64(upserted))
	LinkEdgesMutatedTotal.WithLabelValues("deleted").Add(float64(deleted))
	LinkEdgesMutatedTotal.WithLabelValues("retired").Add(float64(retired))
}

// RecordEdgeApplied records an edge marked applied by the publisher.
func RecordEdgeApplied() {
	LinkEdgesAppliedTotal.Inc()
}

// RecordDBQuery records the duration of a database query operation.
// Operation should describe the query type (e.g., "upsert_candidate", "list_embeddings").
func RecordDBQuery(operation string, duration time.Duration) {
	DBQueryDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// UpdateDBConnectionStats updates database connection pool statistics.
func UpdateDBConnectionStats(active, idle int) {
	DBConnectionsActive.Set(float64(active))
	DBConnectionsIdle.Set(float64(idle))
}

// RecordDBBreakerState records the database circuit breaker state.
func RecordDBBreakerState(state int) {
	DBCircuitBreakerState.Set(float64(state))
}
