package application

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/ahrav/go-nns/internal/domain"
	"github.com/ahrav/go-nns/internal/ports"
)

// Analyzer ties a trajectory source, a batch aggregator and an optional
// report store into one end-to-end analysis run.
type Analyzer struct {
	source ports.TrajectorySource
	batch  *BatchAggregator
	store  ports.ReportStore
}

// NewAnalyzer creates an Analyzer. store may be nil, in which case reports
// are returned but not persisted.
func NewAnalyzer(source ports.TrajectorySource, batch *BatchAggregator, store ports.ReportStore) (*Analyzer, error) {
	if source == nil {
		return nil, fmt.Errorf("trajectory source cannot be nil")
	}
	if batch == nil {
		return nil, fmt.Errorf("batch aggregator cannot be nil")
	}
	return &Analyzer{source: source, batch: batch, store: store}, nil
}

// Analyze loads the named dataset, scores every repetition and persists the
// report when a store is configured. Each call gets a fresh run ID.
func (a *Analyzer) Analyze(ctx context.Context, dataset string) (domain.Report, error) {
	ds, err := a.source.Load(ctx, dataset)
	if err != nil {
		return domain.Report{}, fmt.Errorf("loading dataset %s: %w", dataset, err)
	}
	if m := a.batch.metrics; m != nil {
		m.RecordCounter(ports.MetricDatasetsLoaded, 1, map[string]string{"unit": "analyzer"})
	}

	report, err := a.batch.ScoreDataset(ctx, ds, uuid.NewString())
	if err != nil {
		return domain.Report{}, err
	}

	if a.store != nil {
		if err := a.store.SaveReport(ctx, report); err != nil {
			return report, fmt.Errorf("saving report %s: %w", report.RunID, err)
		}
	}
	return report, nil
}
