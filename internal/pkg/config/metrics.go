package config

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Series shared by every component, told apart by the "component" label.
var (
	configLoadedAt = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "linker_config_load_timestamp_seconds",
		Help: "Unix time of the last configuration load",
	}, []string{"component"})

	configFallbacks = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "linker_config_fallbacks_total",
		Help: "Configuration values rejected and replaced by their default",
	}, []string{"component", "field"})

	configFallbackActive = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "linker_config_fallback_active",
		Help: "1 while any configuration value of the component is a fallback",
	}, []string{"component"})
)

// ConfigMetrics holds one component's view of the configuration series.
// Creating it twice for the same component is safe.
type ConfigMetrics struct {
	LoadTimestamp  prometheus.Gauge
	FallbacksTotal *prometheus.CounterVec // by field
	FallbackActive prometheus.Gauge
}

// NewConfigMetrics returns the configuration metrics of component.
func NewConfigMetrics(component string) *ConfigMetrics {
	return &ConfigMetrics{
		LoadTimestamp:  configLoadedAt.WithLabelValues(component),
		FallbacksTotal: configFallbacks.MustCurryWith(prometheus.Labels{"component": component}),
		FallbackActive: configFallbackActive.WithLabelValues(component),
	}
}

func (m *ConfigMetrics) RecordLoadTimestamp() { m.LoadTimestamp.SetToCurrentTime() }

// RecordFallback counts a value of field that was replaced by its default.
func (m *ConfigMetrics) RecordFallback(field string) {
	m.FallbacksTotal.WithLabelValues(field).Inc()
}

func (m *ConfigMetrics) SetFallbackActive(active bool) {
	v := 0.0
	if active {
		v = 1
	}
	m.FallbackActive.Set(v)
}
