package embedder

import (
	"errors"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/sony/gobreaker"

	"semantic-linker/internal/domain/entity"
)

const (
	outcomeSuccess   = "success"
	outcomeTransient = "transient"
	outcomePermanent = "permanent"
)

func outcomeOf(err error) string {
	switch {
	case err == nil:
		return outcomeSuccess
	case errors.Is(err, entity.ErrEmbeddingPermanent):
		return outcomePermanent
	default:
		return outcomeTransient
	}
}

// MetricsRecorder records embedding client metrics.
// Tests inject a fake instead of the Prometheus implementation.
type MetricsRecorder interface {
	// RecordRequest records one API call by outcome (success, transient, permanent).
	RecordRequest(outcome string, duration time.Duration)

	// RecordBreakerState records the circuit breaker's current state.
	RecordBreakerState(state gobreaker.State)
}

// PrometheusMetrics implements MetricsRecorder using Prometheus metrics.
type PrometheusMetrics struct {
	requests     *prometheus.CounterVec
	duration     prometheus.Histogram
	breakerState prometheus.Gauge
}

var (
	prometheusMetricsInstance *PrometheusMetrics
	prometheusMetricsOnce     sync.Once
)

// NewPrometheusMetrics returns the process-wide recorder.
// Uses a singleton to avoid duplicate metric registration in tests.
func NewPrometheusMetrics() *PrometheusMetrics {
	prometheusMetricsOnce.Do(func() {
		prometheusMetricsInstance = &PrometheusMetrics{
			requests: promauto.NewCounterVec(prometheus.CounterOpts{
				Name: "embedding_requests_total",
				Help: "Total number of embedding API calls by outcome",
			}, []string{"outcome"}),
			duration: promauto.NewHistogram(prometheus.HistogramOpts{
				Name:    "embedding_request_duration_seconds",
				Help:    "Latency of embedding API calls",
				Buckets: prometheus.ExponentialBuckets(0.05, 2, 10),
			}),
			breakerState: promauto.NewGauge(prometheus.GaugeOpts{
				Name: "embedding_circuit_breaker_state",
				Help: "Embedding API circuit breaker state (0=closed, 1=half-open, 2=open)",
			}),
		}
	})
	return prometheusMetricsInstance
}

// RecordRequest implements MetricsRecorder.RecordRequest
func (p *PrometheusMetrics) RecordRequest(outcome string, duration time.Duration) {
	p.requests.WithLabelValues(outcome).Inc()
	p.duration.Observe(duration.Seconds())
}

// RecordBreakerState implements MetricsRecorder.RecordBreakerState
func (p *PrometheusMetrics) RecordBreakerState(state gobreaker.State) {
	p.breakerState.Set(float64(state))
}
