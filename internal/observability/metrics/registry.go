// Package metrics provides centralized Prometheus metrics for the linking engine.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Reconciliation metrics track runs of the per-workspace reconciliation job.
var (
	// ReconcileRunsTotal counts finished runs by outcome (success, partial, aborted, failed).
	ReconcileRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reconcile_runs_total",
			Help: "Total number of reconciliation runs by outcome",
		},
		[]string{"outcome"},
	)

	// ReconcileCoalescedTotal counts triggers dropped because a run was already in flight.
	ReconcileCoalescedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "reconcile_coalesced_total",
			Help: "Total number of reconciliation triggers coalesced into a running pass",
		},
	)

	// ReconcilePhaseDuration measures how long each phase of a run takes.
	ReconcilePhaseDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "reconcile_phase_duration_seconds",
			Help:    "Duration of reconciliation phases in seconds",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 14),
		},
		[]string{"phase"},
	)

	// ReconcileInFlight tracks runs currently executing.
	ReconcileInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "reconcile_in_flight",
			Help: "Number of reconciliation runs currently executing",
		},
	)
)

// Embedding refresh metrics
var (
	// ArticlesRefreshedTotal counts refresh decisions per article by result
	// (embedded, transient, permanent, suppressed, unchanged).
	ArticlesRefreshedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "articles_refreshed_total",
			Help: "Total number of articles processed by the embedding refresh by result",
		},
		[]string{"result"},
	)

	// EmbeddingsPurgedTotal counts embeddings deleted because their article disappeared.
	EmbeddingsPurgedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "embeddings_purged_total",
			Help: "Total number of embeddings deleted for removed or unpublished articles",
		},
	)
)

// Link map metrics
var (
	// LinkEdgesMutatedTotal counts link map writes by action (upserted, deleted, retired).
	LinkEdgesMutatedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "link_edges_mutated_total",
			Help: "Total number of link edge mutations by action",
		},
		[]string{"action"},
	)

	// LinkEdgesAppliedTotal counts edges marked applied by the publisher.
	LinkEdgesAppliedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "link_edges_applied_total",
			Help: "Total number of link edges marked applied",
		},
	)
)

// Database metrics track database performance
var (
	// DBQueryDuration measures database query duration
	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "db_query_duration_seconds",
			Help:    "Database query duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 10),
		},
		[]string{"operation"},
	)

	// DBConnectionsActive tracks active database connections
	DBConnectionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "db_connections_active",
			Help: "Number of active database connections",
		},
	)

	// DBConnectionsIdle tracks idle database connections
	DBConnectionsIdle = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "db_connections_idle",
			Help: "Number of idle database connections",
		},
	)

	// DBCircuitBreakerState tracks the database breaker (0=closed, 1=half-open, 2=open).
	DBCircuitBreakerState = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "db_circuit_breaker_state",
			Help: "Database circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
	)
)
