package application

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/ahrav/go-nns/internal/domain"
	"github.com/ahrav/go-nns/internal/ports"
)

// sampleTrajectory builds a small W, X, Y, Z trajectory in which every
// channel has distinct values.
func sampleTrajectory(id string) domain.Trajectory {
	return domain.Trajectory{
		ID:       id,
		Channels: []string{"W", "X", "Y", "Z"},
		Columns: [][]float64{
			{0.9, 0.8, 0.7, 0.6, 0.5},
			{0.0, 0.1, 0.2, 0.3, 0.4},
			{0.0, 0.2, 0.4, 0.6, 0.8},
			{0.1, 0.3, 0.2, 0.4, 0.5},
		},
	}
}

// flatX returns a trajectory whose X channel never changes, so every
// pairing interpolating along X is degenerate.
func flatX(id string) domain.Trajectory {
	traj := sampleTrajectory(id)
	traj.Columns[1] = []float64{0.2, 0.2, 0.2, 0.2, 0.2}
	return traj
}

// shifted returns the sample trajectory with every Y sample raised by delta.
func shifted(id string, delta float64) domain.Trajectory {
	traj := sampleTrajectory(id)
	y := make([]float64, len(traj.Columns[2]))
	for i, v := range traj.Columns[2] {
		y[i] = v + delta
	}
	traj.Columns[2] = y
	return traj
}

func sampleDataset() ports.Dataset {
	return ports.Dataset{
		Name:     "ABD_30",
		Template: sampleTrajectory("trial01"),
		Repetitions: []domain.Trajectory{
			sampleTrajectory("trial02"),
			shifted("trial03", 0.3),
			flatX("trial04"),
		},
	}
}

// recordingMetrics captures everything a BatchAggregator reports.
type recordingMetrics struct {
	mu         sync.Mutex
	counters   map[string]float64
	histograms map[string][]float64
	gauges     map[string][]float64
	latencies  map[string]int
}

func newRecordingMetrics() *recordingMetrics {
	return &recordingMetrics{
		counters:   make(map[string]float64),
		histograms: make(map[string][]float64),
		gauges:     make(map[string][]float64),
		latencies:  make(map[string]int),
	}
}

func metricKey(metric string, labels map[string]string) string {
	keys := make([]string, 0, len(labels))
	for k := range labels {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	out := metric
	for _, k := range keys {
		out += fmt.Sprintf(",%s=%s", k, labels[k])
	}
	return out
}

func (m *recordingMetrics) RecordLatency(operation string, _ time.Duration, _ map[string]string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.latencies[operation]++
}

func (m *recordingMetrics) RecordCounter(metric string, value float64, labels map[string]string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counters[metricKey(metric, labels)] += value
}

func (m *recordingMetrics) RecordGauge(metric string, value float64, labels map[string]string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := metricKey(metric, labels)
	m.gauges[key] = append(m.gauges[key], value)
}

func (m *recordingMetrics) RecordHistogram(metric string, value float64, labels map[string]string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := metricKey(metric, labels)
	m.histograms[key] = append(m.histograms[key], value)
}

func (m *recordingMetrics) counter(metric string, labels map[string]string) float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.counters[metricKey(metric, labels)]
}

func (m *recordingMetrics) latencyCount(operation string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.latencies[operation]
}

// gaugeValues returns every value set on the gauge, in call order.
func (m *recordingMetrics) gaugeValues(metric string, labels map[string]string) []float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.gauges[metricKey(metric, labels)])
}

func (m *recordingMetrics) observations(metric string, labels map[string]string) []float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.histograms[metricKey(metric, labels)]
}

// stubSource serves a single dataset by name.
type stubSource struct {
	dataset ports.Dataset
	err     error
}

func (s *stubSource) Load(_ context.Context, name string) (ports.Dataset, error) {
	if s.err != nil {
		return ports.Dataset{}, s.err
	}
	if name != s.dataset.Name {
		return ports.Dataset{}, fmt.Errorf("%w: %s", ports.ErrDatasetNotFound, name)
	}
	return s.dataset, nil
}

// memoryStore keeps saved reports in memory.
type memoryStore struct {
	mu      sync.Mutex
	reports map[string]domain.Report
	saveErr error
}

func newMemoryStore() *memoryStore {
	return &memoryStore{reports: make(map[string]domain.Report)}
}

func (s *memoryStore) SaveReport(_ context.Context, report domain.Report) error {
	if s.saveErr != nil {
		return s.saveErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reports[report.RunID] = report
	return nil
}

func (s *memoryStore) GetReport(_ context.Context, runID string) (domain.Report, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.reports[runID]
	if !ok {
		return domain.Report{}, ports.ErrReportNotFound
	}
	return r, nil
}

func (s *memoryStore) ListReports(_ context.Context, dataset string) ([]domain.Report, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Report
	for _, r := range s.reports {
		if r.Dataset == dataset {
			out = append(out, r)
		}
	}
	return out, nil
}

var (
	_ ports.MetricsCollector = (*recordingMetrics)(nil)
	_ ports.TrajectorySource = (*stubSource)(nil)
	_ ports.ReportStore      = (*memoryStore)(nil)
)
