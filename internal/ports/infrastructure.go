package ports

import (
	"context"
	"time"

	"github.com/ahrav/go-nns/internal/domain"
)

// Metric names recorded by the scoring engine. Collectors route on these;
// any other name is treated as a generic operation metric.
const (
	MetricPairingScore        = "nns_pairing_score"
	MetricRepetitions         = "nns_repetitions_total"
	MetricPairingFailures     = "nns_pairing_failures_total"
	MetricUnitDuration        = "nns_unit_duration_seconds"
	MetricRepetitionDuration  = "nns_repetition_duration_seconds"
	MetricRepetitionsInFlight = "repetitions_in_flight"
	MetricDatasetsLoaded      = "datasets_loaded"
)

// MetricsCollector defines the interface for collecting operational metrics.
// Implementations should integrate with observability platforms like
// Prometheus or OpenTelemetry.
type MetricsCollector interface {
	// RecordLatency records the execution time of an operation.
	// The labels map provides additional context for the metric.
	RecordLatency(operation string, duration time.Duration, labels map[string]string)

	// RecordCounter increments a counter metric.
	RecordCounter(metric string, value float64, labels map[string]string)

	// RecordGauge sets the current value of a gauge metric.
	RecordGauge(metric string, value float64, labels map[string]string)

	// RecordHistogram records a value in a histogram, for example a
	// pairing score distribution.
	RecordHistogram(metric string, value float64, labels map[string]string)
}

// Dataset is a template trajectory together with the ordered repetitions
// that are scored against it.
type Dataset struct {
	// Name identifies the movement the dataset records (e.g. "ABD_30").
	Name string

	// Template is the reference trajectory.
	Template domain.Trajectory

	// Repetitions are the candidate trajectories, in repetition order.
	Repetitions []domain.Trajectory
}

// TrajectorySource loads datasets from external storage.
// File formats and parsing live entirely behind this interface.
type TrajectorySource interface {
	// Load reads the named dataset. The returned repetitions keep the
	// order defined by the source (trial number for file datasets).
	Load(ctx context.Context, name string) (Dataset, error)
}

// ReportStore persists analysis reports.
type ReportStore interface {
	// SaveReport stores a finished report.
	SaveReport(ctx context.Context, report domain.Report) error

	// GetReport loads a report by run ID. It returns ErrReportNotFound
	// when no report with that ID exists.
	GetReport(ctx context.Context, runID string) (domain.Report, error)

	// ListReports returns the reports recorded for a dataset, newest first.
	ListReports(ctx context.Context, dataset string) ([]domain.Report, error)
}
