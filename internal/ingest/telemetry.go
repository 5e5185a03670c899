package ingest

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"

	"github.com/iksnae/chat-recorder/internal"
)

const instrumentationName = "github.com/iksnae/chat-recorder/internal/ingest"

// Outcomes of one ingestion attempt
const (
	outcomeRecorded = "recorded"
	outcomeSkipped  = "skipped"
	outcomeFailed   = "failed"
)

type telemetry struct {
	tracer   trace.Tracer
	attempts metric.Int64Counter
	duration metric.Float64Histogram
}

func newTelemetry(tp trace.TracerProvider, mp metric.MeterProvider) *telemetry {
	meter := mp.Meter(instrumentationName)
	t := &telemetry{tracer: tp.Tracer(instrumentationName)}

	var err error
	t.attempts, err = meter.Int64Counter("chatrecorder.ingest.attempts",
		metric.WithDescription("Ingestion attempts by path and outcome"),
		metric.WithUnit("{attempt}"),
	)
	if err != nil {
		internal.LogWarn("ingest metrics disabled: %v", err)
		t.attempts, _ = metricnoop.NewMeterProvider().Meter(instrumentationName).Int64Counter("chatrecorder.ingest.attempts")
	}
	t.duration, err = meter.Float64Histogram("chatrecorder.ingest.duration",
		metric.WithDescription("Time spent resolving, serializing and persisting one message"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1),
	)
	if err != nil {
		internal.LogWarn("ingest metrics disabled: %v", err)
		t.duration, _ = metricnoop.NewMeterProvider().Meter(instrumentationName).Float64Histogram("chatrecorder.ingest.duration")
	}
	return t
}

// track starts a span for one attempt; the returned func ends it and records
// the outcome.
func (t *telemetry) track(ctx context.Context, path, adapter string) (context.Context, func(outcome string, err error)) {
	start := time.Now()
	attrs := []attribute.KeyValue{
		attribute.String("chatrecorder.path", path),
		attribute.String("chatrecorder.adapter", adapter),
	}
	ctx, span := t.tracer.Start(ctx, "ingest."+path,
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(attrs...),
	)
	return ctx, func(outcome string, err error) {
		all := append(attrs, attribute.String("chatrecorder.outcome", outcome))
		t.attempts.Add(ctx, 1, metric.WithAttributes(all...))
		t.duration.Record(ctx, time.Since(start).Seconds(), metric.WithAttributes(all...))
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.SetAttributes(attribute.String("chatrecorder.outcome", outcome))
		span.End()
	}
}
