// Package telemetry provides OpenTelemetry integration for the planner.
//
// Telemetry is disabled by default and installs no-op providers in that case.
//
//	OTEL_ENABLED=true   enable tracing and metrics
//	OTEL_STDOUT=true    pretty-print spans and metrics to stdout
package telemetry

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"

	"weekly-planner/internal/shared"
)

const instrumentationScope = "weekly-planner"

// Options selects which providers Init installs.
type Options struct {
	Enabled     bool
	Stdout      bool
	ServiceName string
}

// Provider owns the installed providers and flushes them on Shutdown.
type Provider struct {
	shutdownFns []func(context.Context) error
}

// Init configures OTel providers. When telemetry is disabled it installs no-op
// providers and returns immediately.
func Init(ctx context.Context, opts Options) (*Provider, error) {
	p := &Provider{}
	if !opts.Enabled {
		otel.SetTracerProvider(tracenoop.NewTracerProvider())
		otel.SetMeterProvider(metricnoop.NewMeterProvider())
		return p, nil
	}

	name := opts.ServiceName
	if name == "" {
		name = instrumentationScope
	}
	res := resource.NewSchemaless(attribute.String("service.name", name))

	traceOpts := []sdktrace.TracerProviderOption{
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
	}
	metricOpts := []sdkmetric.Option{sdkmetric.WithResource(res)}

	if opts.Stdout {
		texp, err := stdouttrace.New(stdouttrace.WithPrettyPrint())
		if err != nil {
			return nil, fmt.Errorf("telemetry: stdout trace exporter: %w", err)
		}
		traceOpts = append(traceOpts, sdktrace.WithBatcher(texp))

		mexp, err := stdoutmetric.New()
		if err != nil {
			return nil, fmt.Errorf("telemetry: stdout metric exporter: %w", err)
		}
		metricOpts = append(metricOpts, sdkmetric.WithReader(
			sdkmetric.NewPeriodicReader(mexp, sdkmetric.WithInterval(15*time.Second)),
		))
	}

	tp := sdktrace.NewTracerProvider(traceOpts...)
	otel.SetTracerProvider(tp)
	p.shutdownFns = append(p.shutdownFns, tp.Shutdown)

	mp := sdkmetric.NewMeterProvider(metricOpts...)
	otel.SetMeterProvider(mp)
	p.shutdownFns = append(p.shutdownFns, mp.Shutdown)

	slog.DebugContext(ctx, "telemetry enabled", "service", name, "stdout", opts.Stdout)
	return p, nil
}

// Shutdown flushes all spans/metrics and shuts down OTel providers.
func (p *Provider) Shutdown(ctx context.Context) {
	for _, fn := range p.shutdownFns {
		_ = fn(ctx)
	}
	p.shutdownFns = nil
}

// Tracer returns the planner's tracer.
func Tracer() trace.Tracer {
	return otel.Tracer(instrumentationScope)
}

// Meter returns the planner's meter.
func Meter() metric.Meter {
	return otel.Meter(instrumentationScope)
}

// Sink persists the outcome of finished operations.
type Sink interface {
	RecordOperation(ctx context.Context, operation, outcome string, latency time.Duration) error
}

// Operation instruments core operations with a span and counters, and reports
// each finished operation to an optional Sink. The sink is called on the
// caller's goroutine; wrap slow sinks in an AsyncSink.
type Operation struct {
	ops  metric.Int64Counter
	errs metric.Int64Counter
	dur  metric.Float64Histogram
	sink Sink
}

// NewOperation builds the instruments shared by all core operations. sink may be nil.
func NewOperation(sink Sink) *Operation {
	m := Meter()
	ops, _ := m.Int64Counter("planner.operations",
		metric.WithDescription("Total core operations executed"),
	)
	errs, _ := m.Int64Counter("planner.operation.errors",
		metric.WithDescription("Total core operation errors"),
	)
	dur, _ := m.Float64Histogram("planner.operation.duration",
		metric.WithDescription("Core operation duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	return &Operation{ops: ops, errs: errs, dur: dur, sink: sink}
}

// Start opens a span for the named operation. The returned func ends it and
// records duration and the error, if any.
func (o *Operation) Start(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, func(err error)) {
	all := append([]attribute.KeyValue{attribute.String("planner.operation", name)}, attrs...)
	ctx, span := Tracer().Start(ctx, name, trace.WithAttributes(all...))
	start := time.Now()
	o.ops.Add(ctx, 1, metric.WithAttributes(all...))

	return ctx, func(err error) {
		elapsed := time.Since(start)
		o.dur.Record(ctx, float64(elapsed.Milliseconds()), metric.WithAttributes(all...))
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			o.errs.Add(ctx, 1, metric.WithAttributes(all...))
		}
		span.End()

		// Rejected input never reaches the store, so it is only counted above.
		if o.sink != nil && shared.KindOf(err) != shared.KindValidation {
			if serr := o.sink.RecordOperation(context.WithoutCancel(ctx), name, Outcome(err), elapsed); serr != nil {
				slog.Debug("failed to record operation metric", "operation", name, "error", serr)
			}
		}
	}
}

// Outcome names the result of an operation: "ok" or the error's kind.
func Outcome(err error) string {
	if err == nil {
		return "ok"
	}
	return shared.KindOf(err).String()
}
