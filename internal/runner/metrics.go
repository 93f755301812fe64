package runner

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/signalnine/skillcheck/internal/result"
)

// Metrics mirrors batch counters into a private prometheus registry so a run
// can be exported as a node-exporter textfile. A nil *Metrics records
// nothing.
type Metrics struct {
	Registry *prometheus.Registry

	units    *prometheus.CounterVec
	running  prometheus.Gauge
	duration prometheus.Histogram
	fallback *prometheus.CounterVec
}

func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)
	return &Metrics{
		Registry: reg,
		units: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "skillcheck_units_total",
			Help: "Finished work units by status",
		}, []string{"status"}),
		running: factory.NewGauge(prometheus.GaugeOpts{
			Name: "skillcheck_units_running",
			Help: "Work units currently executing",
		}),
		duration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "skillcheck_unit_duration_seconds",
			Help:    "Wall-clock duration of a work unit",
			Buckets: prometheus.ExponentialBuckets(1, 2, 10), // 1s to ~8.5m
		}),
		fallback: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "skillcheck_log_fallback_total",
			Help: "Log fallback attempts by outcome",
		}, []string{"outcome"}),
	}
}

func (m *Metrics) unitStarted() {
	if m == nil {
		return
	}
	m.running.Inc()
}

func (m *Metrics) unitFinished(status result.Status, d time.Duration) {
	if m == nil {
		return
	}
	m.running.Dec()
	m.units.WithLabelValues(string(status)).Inc()
	m.duration.Observe(d.Seconds())
}

func (m *Metrics) logFallback(outcome string) {
	if m == nil {
		return
	}
	m.fallback.WithLabelValues(outcome).Inc()
}

// WriteFile writes the registry in the prometheus text format.
func (m *Metrics) WriteFile(path string) error {
	if err := prometheus.WriteToTextfile(path, m.Registry); err != nil {
		return fmt.Errorf("writing metrics: %w", err)
	}
	return nil
}
