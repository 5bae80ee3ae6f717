package telemetry

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Result labels shared by the item counters.
const (
	ResultApplied   = "applied"
	ResultUnchanged = "unchanged"
	ResultUpdated   = "updated"
	ResultUpToDate  = "up_to_date"
	ResultPending   = "pending"
	ResultFailed    = "failed"
)

// Metrics provides Prometheus metrics for a reconciliation run. A nil
// *Metrics, or one built with metrics disabled, records nothing.
type Metrics struct {
	config MetricsConfig

	configEntries *prometheus.CounterVec
	pluginChecks  *prometheus.CounterVec
	downloadBytes prometheus.Counter
	runDuration   *prometheus.HistogramVec

	registry *prometheus.Registry
}

// NewMetrics creates a new metrics collector with the given configuration.
func NewMetrics(cfg MetricsConfig) (*Metrics, error) {
	if !cfg.Enabled {
		// Return a no-op metrics instance
		return &Metrics{config: cfg}, nil
	}

	namespace := cfg.Namespace
	registry := prometheus.NewRegistry()

	m := &Metrics{
		config:   cfg,
		registry: registry,

		configEntries: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "config_entries_total",
				Help:      "Config manifest entries processed, by format and result",
			},
			[]string{"format", "result"},
		),
		pluginChecks: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "plugin_checks_total",
				Help:      "Plugin records processed, by origin and result",
			},
			[]string{"origin", "result"},
		),
		downloadBytes: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "download_bytes_total",
				Help:      "Bytes downloaded for plugin artifacts",
			},
		),
		runDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "run_duration_seconds",
				Help:      "Duration of reconciliation phases in seconds",
				Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60, 300},
			},
			[]string{"phase"},
		),
	}

	collectors := []prometheus.Collector{
		m.configEntries,
		m.pluginChecks,
		m.downloadBytes,
		m.runDuration,
	}
	for _, c := range collectors {
		if err := registry.Register(c); err != nil {
			return nil, fmt.Errorf("failed to register metric: %w", err)
		}
	}

	return m, nil
}

func (m *Metrics) enabled() bool {
	return m != nil && m.registry != nil
}

// RecordConfigEntry counts one processed config manifest entry.
func (m *Metrics) RecordConfigEntry(format, result string) {
	if !m.enabled() {
		return
	}
	m.configEntries.WithLabelValues(format, result).Inc()
}

// RecordPluginCheck counts one processed plugin record.
func (m *Metrics) RecordPluginCheck(origin, result string) {
	if !m.enabled() {
		return
	}
	m.pluginChecks.WithLabelValues(origin, result).Inc()
}

// AddDownloadBytes adds to the downloaded byte counter.
func (m *Metrics) AddDownloadBytes(n int64) {
	if !m.enabled() || n <= 0 {
		return
	}
	m.downloadBytes.Add(float64(n))
}

// ObserveRun records the duration of a run phase.
func (m *Metrics) ObserveRun(phase string, d time.Duration) {
	if !m.enabled() {
		return
	}
	m.runDuration.WithLabelValues(phase).Observe(d.Seconds())
}

// Registry returns the Prometheus registry, or nil when disabled.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// WriteTextfile writes all metrics to the configured textfile. It is a
// no-op when metrics are disabled or no textfile is configured.
func (m *Metrics) WriteTextfile() error {
	if !m.enabled() || m.config.Textfile == "" {
		return nil
	}
	if err := prometheus.WriteToTextfile(m.config.Textfile, m.registry); err != nil {
		return fmt.Errorf("failed to write metrics textfile: %w", err)
	}
	return nil
}
