// Package metrics provides the Prometheus metrics of the linking engine and
// small recording helpers.
//
// All metrics are registered with the Prometheus default registry through
// promauto and exposed by the worker's /metrics endpoint.
//
// Example usage:
//
//	start := time.Now()
//	// ... refresh embeddings ...
//	metrics.RecordPhaseDuration("refreshing_embeddings", time.Since(start))
//	metrics.RecordReconcileRun("success")
package metrics
