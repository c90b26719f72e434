package middleware

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/ahrav/go-nns/internal/domain"
	"github.com/ahrav/go-nns/internal/ports"
)

// TracerName is the instrumentation scope used for unit spans.
const TracerName = "go-nns"

var _ ports.Unit = (*TracedUnit)(nil)

// TracedUnit wraps a ports.Unit with an OpenTelemetry span per Execute and,
// when a collector is supplied, a latency observation labeled with the
// unit's name.
type TracedUnit struct {
	next    ports.Unit
	tracer  trace.Tracer
	metrics ports.MetricsCollector
}

// NewTracedUnit wraps next. metrics may be nil.
func NewTracedUnit(next ports.Unit, metrics ports.MetricsCollector) *TracedUnit {
	return &TracedUnit{
		next:    next,
		tracer:  otel.Tracer(TracerName),
		metrics: metrics,
	}
}

// Wrapper returns a function suitable for application.WithUnitWrapper.
func Wrapper(metrics ports.MetricsCollector) func(ports.Unit) ports.Unit {
	return func(u ports.Unit) ports.Unit { return NewTracedUnit(u, metrics) }
}

// Name returns the wrapped unit's name.
func (t *TracedUnit) Name() string { return t.next.Name() }

// Validate delegates to the wrapped unit.
func (t *TracedUnit) Validate() error { return t.next.Validate() }

// Execute runs the wrapped unit inside a span named after it.
func (t *TracedUnit) Execute(ctx context.Context, state domain.State) (domain.State, error) {
	ctx, span := t.tracer.Start(ctx, "Unit.Execute", trace.WithAttributes(
		attribute.String("unit.name", t.next.Name()),
	))
	defer span.End()

	if idx, ok := domain.Get(state, domain.KeyRepetitionIndex); ok {
		span.SetAttributes(attribute.Int("nns.repetition", idx))
	}
	if ec, ok := state.GetExecutionContext(); ok {
		span.SetAttributes(
			attribute.String("nns.run_id", ec.RunID),
			attribute.String("nns.dataset", ec.Dataset),
		)
	}

	start := time.Now()
	out, err := t.next.Execute(ctx, state)
	elapsed := time.Since(start)

	if t.metrics != nil {
		t.metrics.RecordLatency(ports.MetricUnitDuration, elapsed, map[string]string{"unit": t.next.Name()})
	}

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return out, err
	}

	t.annotate(span, out)
	span.SetStatus(codes.Ok, "")
	return out, nil
}

// annotate records the unit's scoring results as span events.
func (t *TracedUnit) annotate(span trace.Span, out domain.State) {
	if rs, ok := domain.Get(out, domain.KeyRepetitionScore); ok && rs != nil {
		span.SetAttributes(
			attribute.Float64("nns.repetition_score", rs.Score),
			attribute.Int("nns.failed_pairings", rs.Failed),
		)
		if rs.Err != nil {
			span.AddEvent("repetition.failed", trace.WithAttributes(
				attribute.String("error", rs.Err.Error()),
			))
		}
		return
	}

	scores, ok := domain.Get(out, domain.KeyPairingScores)
	if !ok {
		return
	}
	for _, p := range scores {
		attrs := []attribute.KeyValue{attribute.String("pairing", p.Pairing.Label())}
		if p.Err != nil {
			attrs = append(attrs, attribute.String("error", p.Err.Error()))
			span.AddEvent("pairing.failed", trace.WithAttributes(attrs...))
			continue
		}
		attrs = append(attrs, attribute.Float64("score", p.Score))
		span.AddEvent("pairing.scored", trace.WithAttributes(attrs...))
	}
}
