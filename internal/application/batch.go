package application

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ahrav/go-nns/infrastructure/units"
	"github.com/ahrav/go-nns/internal/domain"
	"github.com/ahrav/go-nns/internal/ports"
)

// Repetition status label values.
const (
	StatusOK     = "ok"
	StatusFailed = "failed"
)

// BatchOption configures a BatchAggregator.
type BatchOption func(*batchOptions)

type batchOptions struct {
	metrics ports.MetricsCollector
	wrap    func(ports.Unit) ports.Unit
}

// WithMetrics records repetition outcomes, pairing scores and failure
// reasons on the collector.
func WithMetrics(m ports.MetricsCollector) BatchOption {
	return func(o *batchOptions) { o.metrics = m }
}

// WithUnitWrapper decorates every unit the aggregator builds, for example
// with tracing middleware.
func WithUnitWrapper(wrap func(ports.Unit) ports.Unit) BatchOption {
	return func(o *batchOptions) { o.wrap = wrap }
}

// BatchAggregator scores every repetition of a dataset against its template.
// Each repetition runs through a two-step pipeline (NNS over the configured
// pairings, then the configured aggregator) and repetitions run
// concurrently up to the configured limit.
//
// Its configuration and pipeline are fixed after construction and it is
// safe for concurrent use.
type BatchAggregator struct {
	config   *AnalysisConfig
	pairings []domain.Pairing
	pipeline *Pipeline
	metrics  ports.MetricsCollector

	// inFlight counts repetitions currently executing, across all calls.
	inFlight atomic.Int64
}

// NewBatchAggregator validates config and builds the scoring pipeline from
// units created by registry.
func NewBatchAggregator(
	config *AnalysisConfig,
	registry ports.UnitRegistry,
	opts ...BatchOption,
) (*BatchAggregator, error) {
	if config == nil {
		return nil, fmt.Errorf("%w: config cannot be nil", domain.ErrInvalidConfiguration)
	}
	if registry == nil {
		return nil, fmt.Errorf("unit registry cannot be nil")
	}

	v, err := defaultValidator()
	if err != nil {
		return nil, err
	}
	if err := validateAnalysisConfig(v, config); err != nil {
		return nil, err
	}

	var o batchOptions
	for _, opt := range opts {
		opt(&o)
	}

	pairings := config.EffectivePairings()
	scorer, err := registry.CreateUnit(UnitTypeNNS, "nns", map[string]any{
		"pairings":  pairingsParam(pairings),
		"fail_fast": config.Execution.FailFast,
	})
	if err != nil {
		return nil, err
	}
	aggregator, err := registry.CreateUnit(config.Aggregator.Type, config.Aggregator.Type, map[string]any{
		"require_all_scores": config.Aggregator.RequireAllScores,
	})
	if err != nil {
		return nil, err
	}

	pipeline := NewPipeline("repetition")
	for _, u := range []ports.Unit{scorer, aggregator} {
		if o.wrap != nil {
			u = o.wrap(u)
		}
		if err := u.Validate(); err != nil {
			return nil, fmt.Errorf("unit %s: %w", u.Name(), err)
		}
		if err := pipeline.Add(NewUnitAdapter(u, "")); err != nil {
			return nil, err
		}
	}

	return &BatchAggregator{
		config:   config,
		pairings: pairings,
		pipeline: pipeline,
		metrics:  o.metrics,
	}, nil
}

// pairingsParam renders pairings in the [first, second] form the NNS unit
// factory decodes.
func pairingsParam(pairings []domain.Pairing) [][]string {
	out := make([][]string, len(pairings))
	for i, p := range pairings {
		out[i] = []string{p.First, p.Second}
	}
	return out
}

// Config returns the configuration the aggregator was built from.
func (b *BatchAggregator) Config() *AnalysisConfig { return b.config }

// Pairings returns the pairings scored for every repetition.
func (b *BatchAggregator) Pairings() []domain.Pairing {
	return append([]domain.Pairing(nil), b.pairings...)
}

// Thresholds derives the per-channel thresholds for template from the
// configured accuracy and coefficient.
func (b *BatchAggregator) Thresholds(template domain.Trajectory) (map[string]domain.Thresholds, error) {
	return domain.DeriveThresholds(
		template,
		b.config.ThresholdChannels(),
		b.config.Thresholds.Coefficient,
		b.config.Thresholds.Accuracy,
	)
}

// Score derives thresholds from template and scores every repetition.
// The result has one entry per repetition, in repetition order.
func (b *BatchAggregator) Score(
	ctx context.Context,
	template domain.Trajectory,
	repetitions []domain.Trajectory,
) ([]domain.RepetitionScore, error) {
	if err := template.Validate(); err != nil {
		return nil, fmt.Errorf("template %s: %w", template.ID, err)
	}
	thresholds, err := b.Thresholds(template)
	if err != nil {
		return nil, fmt.Errorf("deriving thresholds: %w", err)
	}
	return b.ScoreWithThresholds(ctx, template, repetitions, thresholds)
}

// ScoreWithThresholds scores every repetition using precomputed thresholds
// keyed by channel name.
//
// Pairing failures are recorded on the returned scores. An error is returned
// only when the context is cancelled, a unit fails outright, or FailFast is
// configured and a pairing fails.
func (b *BatchAggregator) ScoreWithThresholds(
	ctx context.Context,
	template domain.Trajectory,
	repetitions []domain.Trajectory,
	thresholds map[string]domain.Thresholds,
) ([]domain.RepetitionScore, error) {
	results := make([]domain.RepetitionScore, len(repetitions))
	if len(repetitions) == 0 {
		return results, nil
	}

	base := domain.With(domain.NewState(), domain.KeyTemplate, template)
	base = domain.With(base, domain.KeyThresholds, thresholds)
	if ec, ok := executionContextFrom(ctx); ok {
		base = base.WithExecutionContext(ec)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(b.config.concurrency())

	for i, rep := range repetitions {
		i, rep := i, rep
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}

			b.recordInFlight(b.inFlight.Add(1))
			defer func() { b.recordInFlight(b.inFlight.Add(-1)) }()

			score, err := b.scoreRepetition(gctx, base, i, rep)
			if err != nil {
				return fmt.Errorf("repetition %d (%s): %w", i, rep.ID, err)
			}
			results[i] = score
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// scoreRepetition runs the pipeline for one repetition and records metrics.
func (b *BatchAggregator) scoreRepetition(
	ctx context.Context,
	base domain.State,
	index int,
	rep domain.Trajectory,
) (domain.RepetitionScore, error) {
	start := time.Now()

	state := domain.With(base, domain.KeyCandidate, rep)
	state = domain.With(state, domain.KeyRepetitionIndex, index)

	out, err := b.pipeline.Execute(ctx, state)
	b.recordLatency(time.Since(start))
	if err != nil {
		b.recordFailure(err)
		b.recordRepetition(StatusFailed)
		return domain.RepetitionScore{}, err
	}

	score, err := domain.MustGet(out, domain.KeyRepetitionScore)
	if err != nil {
		return domain.RepetitionScore{}, err
	}

	for _, p := range score.Pairings {
		if p.OK() {
			b.recordPairingScore(p)
		} else {
			b.recordFailure(p.Err)
		}
	}
	if score.Err != nil {
		b.recordRepetition(StatusFailed)
	} else {
		b.recordRepetition(StatusOK)
	}

	return *score, nil
}

// ScoreDataset scores ds and assembles a Report identified by runID.
func (b *BatchAggregator) ScoreDataset(ctx context.Context, ds ports.Dataset, runID string) (domain.Report, error) {
	ctx = withExecutionContext(ctx, domain.ExecutionContext{RunID: runID, Dataset: ds.Name})

	scores, err := b.Score(ctx, ds.Template, ds.Repetitions)
	if err != nil {
		return domain.Report{}, fmt.Errorf("dataset %s: %w", ds.Name, err)
	}

	return domain.Report{
		RunID:      runID,
		Dataset:    ds.Name,
		TemplateID: ds.Template.ID,
		Aggregator: b.config.Aggregator.Type,
		CreatedAt:  time.Now().UTC(),
		Scores:     scores,
	}, nil
}

// FailureReason classifies a pairing error into a short metric label.
func FailureReason(err error) string {
	switch {
	case errors.Is(err, domain.ErrEmptyTemplate):
		return "empty_template"
	case errors.Is(err, domain.ErrInvalidCurveLength):
		return "invalid_curve_length"
	case errors.Is(err, domain.ErrDegenerateCandidate):
		return "degenerate_candidate"
	case errors.Is(err, domain.ErrNonFiniteSample):
		return "non_finite_sample"
	case errors.Is(err, domain.ErrUnknownChannel):
		return "unknown_channel"
	case errors.Is(err, units.ErrMissingThresholds):
		return "missing_thresholds"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "cancelled"
	default:
		return "other"
	}
}

func (b *BatchAggregator) recordLatency(d time.Duration) {
	if b.metrics == nil {
		return
	}
	b.metrics.RecordLatency(ports.MetricRepetitionDuration, d, map[string]string{"pipeline": b.pipeline.ID()})
}

func (b *BatchAggregator) recordInFlight(n int64) {
	if b.metrics == nil {
		return
	}
	b.metrics.RecordGauge(ports.MetricRepetitionsInFlight, float64(n), map[string]string{"unit": b.pipeline.ID()})
}

func (b *BatchAggregator) recordRepetition(status string) {
	if b.metrics == nil {
		return
	}
	b.metrics.RecordCounter(ports.MetricRepetitions, 1, map[string]string{"status": status})
}

func (b *BatchAggregator) recordPairingScore(p domain.PairingScore) {
	if b.metrics == nil {
		return
	}
	b.metrics.RecordHistogram(ports.MetricPairingScore, p.Score, map[string]string{"pairing": p.Pairing.Label()})
}

func (b *BatchAggregator) recordFailure(err error) {
	if b.metrics == nil {
		return
	}
	b.metrics.RecordCounter(ports.MetricPairingFailures, 1, map[string]string{"reason": FailureReason(err)})
}

type executionContextKey struct{}

// withExecutionContext attaches run metadata that ScoreWithThresholds copies
// into every repetition's state.
func withExecutionContext(ctx context.Context, ec domain.ExecutionContext) context.Context {
	return context.WithValue(ctx, executionContextKey{}, ec)
}

func executionContextFrom(ctx context.Context) (domain.ExecutionContext, bool) {
	ec, ok := ctx.Value(executionContextKey{}).(domain.ExecutionContext)
	return ec, ok
}
