// Package middleware provides cross-cutting concerns for the scoring engine.
package middleware

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/ahrav/go-nns/internal/ports"
)

// PrometheusMetrics implements the MetricsCollector interface using Prometheus.
// It tracks the distribution of pairing scores, repetition outcomes and
// failure reasons, plus unit and repetition latency.
type PrometheusMetrics struct {
	pairingScore     *prometheus.HistogramVec
	repetitions      *prometheus.CounterVec
	pairingFailures  *prometheus.CounterVec
	unitDuration     *prometheus.HistogramVec
	repetitionTime   *prometheus.HistogramVec
	operationCounter *prometheus.CounterVec
	systemGauges     *prometheus.GaugeVec
}

// NewPrometheusMetrics creates a new PrometheusMetrics instance and registers
// all required metrics with reg. A nil reg uses the default registerer.
func NewPrometheusMetrics(reg prometheus.Registerer) *PrometheusMetrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &PrometheusMetrics{
		pairingScore: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    ports.MetricPairingScore,
				Help:    "Distribution of NNS pairing scores in percent.",
				Buckets: prometheus.LinearBuckets(0, 10, 11),
			},
			[]string{"pairing"},
		),
		repetitions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: ports.MetricRepetitions,
				Help: "Total number of repetitions scored, by outcome.",
			},
			[]string{"status"},
		),
		pairingFailures: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: ports.MetricPairingFailures,
				Help: "Total number of pairings that could not be scored, by reason.",
			},
			[]string{"reason"},
		),
		unitDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    ports.MetricUnitDuration,
				Help:    "Execution time of scoring units.",
				Buckets: prometheus.ExponentialBuckets(0.0001, 4, 10),
			},
			[]string{"unit"},
		),
		repetitionTime: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    ports.MetricRepetitionDuration,
				Help:    "End-to-end time to score one repetition.",
				Buckets: prometheus.ExponentialBuckets(0.0001, 4, 10),
			},
			[]string{"pipeline"},
		),
		operationCounter: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "nns_operations_total",
				Help: "Total number of other operations performed by the engine.",
			},
			[]string{"operation", "unit"},
		),
		systemGauges: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "nns_system_state",
				Help: "Current system state values for the scoring engine.",
			},
			[]string{"metric", "unit"},
		),
	}
}

// labelOr returns labels[key], or fallback when it is missing or empty.
func labelOr(labels map[string]string, key, fallback string) string {
	if v := labels[key]; v != "" {
		return v
	}
	return fallback
}

// RecordLatency implements the MetricsCollector interface by recording
// execution latency in a Prometheus histogram. Whole-repetition latency has
// its own histogram; everything else is per-unit time.
func (pm *PrometheusMetrics) RecordLatency(
	operation string,
	duration time.Duration,
	labels map[string]string,
) {
	if operation == ports.MetricRepetitionDuration {
		pm.repetitionTime.WithLabelValues(labelOr(labels, "pipeline", "unknown")).Observe(duration.Seconds())
		return
	}
	pm.unitDuration.WithLabelValues(labelOr(labels, "unit", "unknown")).Observe(duration.Seconds())
}

// RecordCounter implements the MetricsCollector interface by incrementing
// Prometheus counters.
func (pm *PrometheusMetrics) RecordCounter(
	metric string, value float64, labels map[string]string,
) {
	switch metric {
	case ports.MetricRepetitions:
		pm.repetitions.WithLabelValues(labelOr(labels, "status", "unknown")).Add(value)
	case ports.MetricPairingFailures:
		pm.pairingFailures.WithLabelValues(labelOr(labels, "reason", "other")).Add(value)
	default:
		pm.operationCounter.WithLabelValues(metric, labelOr(labels, "unit", "unknown")).Add(value)
	}
}

// RecordGauge implements the MetricsCollector interface by setting
// Prometheus gauge values.
func (pm *PrometheusMetrics) RecordGauge(
	metric string, value float64, labels map[string]string,
) {
	pm.systemGauges.WithLabelValues(metric, labelOr(labels, "unit", "unknown")).Set(value)
}

// RecordHistogram implements the MetricsCollector interface. Pairing scores
// go to their own histogram; other values are treated as durations in
// seconds for the metric's unit.
func (pm *PrometheusMetrics) RecordHistogram(
	metric string, value float64, labels map[string]string,
) {
	if metric == ports.MetricPairingScore {
		pm.pairingScore.WithLabelValues(labelOr(labels, "pairing", "unknown")).Observe(value)
		return
	}
	pm.unitDuration.WithLabelValues(labelOr(labels, "unit", metric)).Observe(value)
}

// Compile-time verification that PrometheusMetrics implements MetricsCollector.
var _ ports.MetricsCollector = (*PrometheusMetrics)(nil)
