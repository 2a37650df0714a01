package mailindex

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const (
	instrumentationName = "github.com/rbaliyan/mailindex"
)

// otelInstrumentation holds OpenTelemetry instrumentation for a database
// and everything created from it.
type otelInstrumentation struct {
	enabled bool

	// Tracing
	tracingEnabled bool
	tracer         trace.Tracer

	// Metrics
	metricsEnabled bool

	searchLatency metric.Float64Histogram
	searchCount   metric.Int64Counter
	searchErrors  metric.Int64Counter
	countLatency  metric.Float64Histogram
	countErrors   metric.Int64Counter
	tagLatency    metric.Float64Histogram
	tagErrors     metric.Int64Counter

	handlesCreated   metric.Int64Counter
	handlesDestroyed metric.Int64Counter
}

func newOtelInstrumentation(opts *options) (*otelInstrumentation, error) {
	o := &otelInstrumentation{
		enabled:        opts.tracingEnabled || opts.metricsEnabled,
		tracingEnabled: opts.tracingEnabled,
		metricsEnabled: opts.metricsEnabled,
	}

	if !o.enabled {
		return o, nil
	}

	if opts.tracingEnabled {
		tp := opts.tracerProvider
		if tp == nil {
			tp = otel.GetTracerProvider()
		}
		o.tracer = tp.Tracer(instrumentationName)
	}

	if opts.metricsEnabled {
		mp := opts.meterProvider
		if mp == nil {
			mp = otel.GetMeterProvider()
		}
		if err := o.initMetrics(mp); err != nil {
			return nil, err
		}
	}

	return o, nil
}

func (o *otelInstrumentation) initMetrics(mp metric.MeterProvider) error {
	meter := mp.Meter(instrumentationName)

	var err error

	o.searchLatency, err = meter.Float64Histogram(
		"mailindex.search.duration",
		metric.WithDescription("Duration of search operations"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return err
	}

	o.searchCount, err = meter.Int64Counter(
		"mailindex.search.count",
		metric.WithDescription("Number of search operations"),
	)
	if err != nil {
		return err
	}

	o.searchErrors, err = meter.Int64Counter(
		"mailindex.search.errors",
		metric.WithDescription("Number of search errors"),
	)
	if err != nil {
		return err
	}

	o.countLatency, err = meter.Float64Histogram(
		"mailindex.count.duration",
		metric.WithDescription("Duration of count operations"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return err
	}

	o.countErrors, err = meter.Int64Counter(
		"mailindex.count.errors",
		metric.WithDescription("Number of count errors"),
	)
	if err != nil {
		return err
	}

	o.tagLatency, err = meter.Float64Histogram(
		"mailindex.tag.duration",
		metric.WithDescription("Duration of tag mutations"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return err
	}

	o.tagErrors, err = meter.Int64Counter(
		"mailindex.tag.errors",
		metric.WithDescription("Number of failed tag mutations"),
	)
	if err != nil {
		return err
	}

	o.handlesCreated, err = meter.Int64Counter(
		"mailindex.handles.created",
		metric.WithDescription("Number of engine handles created"),
	)
	if err != nil {
		return err
	}

	o.handlesDestroyed, err = meter.Int64Counter(
		"mailindex.handles.destroyed",
		metric.WithDescription("Number of engine handles destroyed"),
	)
	return err
}

// startSpan starts a new span if tracing is enabled.
// Returns the updated context and a function to end the span.
func (o *otelInstrumentation) startSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, func(error)) {
	if !o.tracingEnabled || o.tracer == nil {
		return ctx, func(error) {}
	}
	ctx, span := o.tracer.Start(ctx, name,
		trace.WithAttributes(attrs...),
		trace.WithSpanKind(trace.SpanKindInternal),
	)
	return ctx, func(err error) {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		} else {
			span.SetStatus(codes.Ok, "")
		}
		span.End()
	}
}

// recordSearch records a message or thread search. target is "messages"
// or "threads".
func (o *otelInstrumentation) recordSearch(ctx context.Context, duration time.Duration, target string, err error) {
	if !o.metricsEnabled {
		return
	}

	attrs := metric.WithAttributes(
		attribute.String("target", target),
	)

	o.searchLatency.Record(ctx, duration.Seconds(), attrs)
	o.searchCount.Add(ctx, 1, attrs)
	if err != nil {
		o.searchErrors.Add(ctx, 1, attrs)
	}
}

func (o *otelInstrumentation) recordCount(ctx context.Context, duration time.Duration, target string, err error) {
	if !o.metricsEnabled {
		return
	}

	attrs := metric.WithAttributes(
		attribute.String("target", target),
	)

	o.countLatency.Record(ctx, duration.Seconds(), attrs)
	if err != nil {
		o.countErrors.Add(ctx, 1, attrs)
	}
}

func (o *otelInstrumentation) recordTag(ctx context.Context, duration time.Duration, operation string, err error) {
	if !o.metricsEnabled {
		return
	}

	attrs := metric.WithAttributes(
		attribute.String("operation", operation),
	)

	o.tagLatency.Record(ctx, duration.Seconds(), attrs)
	if err != nil {
		o.tagErrors.Add(ctx, 1, attrs)
	}
}

// recordHandle counts engine handle creation and destruction by kind.
func (o *otelInstrumentation) recordHandle(kind string, created bool) {
	if !o.metricsEnabled {
		return
	}

	attrs := metric.WithAttributes(attribute.String("kind", kind))
	if created {
		o.handlesCreated.Add(context.Background(), 1, attrs)
	} else {
		o.handlesDestroyed.Add(context.Background(), 1, attrs)
	}
}
