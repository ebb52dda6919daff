package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const pipelineMeterName = "github.com/airwaycast/airwaycast/internal/pipeline"

// PipelineMetrics records prediction pipeline measurements. It satisfies the
// pipeline observer and the environment resolution observer.
type PipelineMetrics struct {
	runs            metric.Int64Counter
	runDuration     metric.Float64Histogram
	records         metric.Int64Counter
	cacheLookups    metric.Int64Counter
	fallbackUsers   metric.Int64Counter
	upsertFailures  metric.Int64Counter
	resolutions     metric.Int64Counter
	synthesizedDays metric.Int64Counter
}

// NewPipelineMetrics creates the instruments on the global meter provider.
func NewPipelineMetrics() (*PipelineMetrics, error) {
	meter := otel.Meter(pipelineMeterName)
	m := &PipelineMetrics{}

	var err error
	if m.runs, err = meter.Int64Counter(
		"pipeline.runs",
		metric.WithDescription("Number of pipeline runs"),
		metric.WithUnit("{run}"),
	); err != nil {
		return nil, err
	}
	if m.runDuration, err = meter.Float64Histogram(
		"pipeline.run.duration",
		metric.WithDescription("Duration of pipeline runs in seconds"),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}
	if m.records, err = meter.Int64Counter(
		"pipeline.records",
		metric.WithDescription("Prediction records returned"),
		metric.WithUnit("{record}"),
	); err != nil {
		return nil, err
	}
	if m.cacheLookups, err = meter.Int64Counter(
		"pipeline.cache.lookups",
		metric.WithDescription("Prediction cache lookups by outcome"),
		metric.WithUnit("{lookup}"),
	); err != nil {
		return nil, err
	}
	if m.fallbackUsers, err = meter.Int64Counter(
		"pipeline.fallback.users",
		metric.WithDescription("Users scored by the environment-only model"),
		metric.WithUnit("{user}"),
	); err != nil {
		return nil, err
	}
	if m.upsertFailures, err = meter.Int64Counter(
		"pipeline.upsert.failures",
		metric.WithDescription("Failed prediction cache writes"),
		metric.WithUnit("{failure}"),
	); err != nil {
		return nil, err
	}
	if m.resolutions, err = meter.Int64Counter(
		"environment.resolutions",
		metric.WithDescription("Environmental resolutions by serving tier"),
		metric.WithUnit("{resolution}"),
	); err != nil {
		return nil, err
	}
	if m.synthesizedDays, err = meter.Int64Counter(
		"environment.synthesized_days",
		metric.WithDescription("Days filled by the synthetic generator"),
		metric.WithUnit("{day}"),
	); err != nil {
		return nil, err
	}
	return m, nil
}

// ObserveRun records one pipeline run.
func (m *PipelineMetrics) ObserveRun(ctx context.Context, cached bool, records int, elapsed time.Duration, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	attrs := metric.WithAttributes(attribute.String("outcome", outcome))
	m.runs.Add(ctx, 1, attrs)
	m.runDuration.Record(ctx, elapsed.Seconds(), attrs)
	if err != nil {
		return
	}

	lookup := "miss"
	if cached {
		lookup = "hit"
	}
	m.cacheLookups.Add(ctx, 1, metric.WithAttributes(attribute.String("result", lookup)))
	m.records.Add(ctx, int64(records))
}

// ObserveFallback records users switched to the environment-only model.
func (m *PipelineMetrics) ObserveFallback(ctx context.Context, users int) {
	m.fallbackUsers.Add(ctx, int64(users))
}

// ObserveUpsertFailure records a failed cache write.
func (m *PipelineMetrics) ObserveUpsertFailure(ctx context.Context) {
	m.upsertFailures.Add(ctx, 1)
}

// ObserveResolution records which tier served an environmental resolution.
func (m *PipelineMetrics) ObserveResolution(ctx context.Context, tier string, synthesizedDays int) {
	m.resolutions.Add(ctx, 1, metric.WithAttributes(attribute.String("tier", tier)))
	if synthesizedDays > 0 {
		m.synthesizedDays.Add(ctx, int64(synthesizedDays))
	}
}
