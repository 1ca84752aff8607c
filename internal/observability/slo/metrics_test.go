package slo

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	io_prometheus_client "github.com/prometheus/client_model/go"
)

func gaugeValue(t *testing.T, g prometheus.Gauge) float64 {
	t.Helper()
	metric := &io_prometheus_client.Metric{}
	if err := g.Write(metric); err != nil {
		t.Fatalf("failed to write metric: %v", err)
	}
	return metric.GetGauge().GetValue()
}

func TestSLOConstants(t *testing.T) {
	if EmbeddingCoverageSLO != 0.99 {
		t.Errorf("EmbeddingCoverageSLO = %v, want 0.99", EmbeddingCoverageSLO)
	}
	if FreshnessSLO != 2*time.Hour {
		t.Errorf("FreshnessSLO = %v, want 2h", FreshnessSLO)
	}
	if RefreshFailureRateSLO != 0.01 {
		t.Errorf("RefreshFailureRateSLO = %v, want 0.01", RefreshFailureRateSLO)
	}
}

func TestUpdateEmbeddingCoverage(t *testing.T) {
	tests := []struct {
		name      string
		embedded  int
		published int
		want      float64
	}{
		{"fully covered", 10, 10, 1},
		{"partially covered", 3, 4, 0.75},
		{"empty workspace", 0, 0, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			UpdateEmbeddingCoverage("ws-coverage", tt.embedded, tt.published)
			got := gaugeValue(t, SLOEmbeddingCoverage.WithLabelValues("ws-coverage"))
			if got != tt.want {
				t.Errorf("coverage = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestUpdateLastSuccess(t *testing.T) {
	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	UpdateLastSuccess("ws-fresh", at)

	if got := gaugeValue(t, SLOLastSuccess.WithLabelValues("ws-fresh")); got != float64(at.Unix()) {
		t.Errorf("last success = %v, want %v", got, at.Unix())
	}
}

func TestUpdateRefreshFailureRate(t *testing.T) {
	UpdateRefreshFailureRate("ws-fail", 1, 4)
	if got := gaugeValue(t, SLORefreshFailureRate.WithLabelValues("ws-fail")); got != 0.25 {
		t.Errorf("failure rate = %v, want 0.25", got)
	}

	UpdateRefreshFailureRate("ws-fail", 0, 0)
	if got := gaugeValue(t, SLORefreshFailureRate.WithLabelValues("ws-fail")); got != 0 {
		t.Errorf("failure rate = %v, want 0", got)
	}
}

func TestMetricsAreRegistered(t *testing.T) {
	UpdateEmbeddingCoverage("ws-registered", 1, 1)

	families, err := prometheus.DefaultGatherer.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	found := map[string]bool{}
	for _, f := range families {
		found[f.GetName()] = true
	}
	for _, name := range []string{"slo_embedding_coverage_ratio"} {
		if !found[name] {
			t.Errorf("metric %s not registered", name)
		}
	}
}
