// Package observe records text-generation calls as OpenTelemetry spans. The
// recorder is optional: without credentials every call is a no-op, so the
// pipeline never depends on the observability provider being reachable.
package observe

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"

	"github.com/odvcencio/uplift/pkg/config"
)

const tracerName = "github.com/odvcencio/uplift/pkg/observe"

// Recorder traces generation calls. A nil or disabled recorder is safe to
// call and records nothing.
type Recorder struct {
	provider *sdktrace.TracerProvider
	tracer   trace.Tracer
}

// NewRecorder builds a recorder from configuration. Missing credentials
// disable recording without returning an error.
func NewRecorder(cfg config.ObserveConfig) (*Recorder, error) {
	if cfg.APIKey == "" {
		return nil, nil
	}

	exporter, err := stdouttrace.New(stdouttrace.WithPrettyPrint())
	if err != nil {
		return nil, fmt.Errorf("failed to create trace exporter: %w", err)
	}

	res := resource.NewSchemaless(
		attribute.String("service.name", "uplift"),
		attribute.String("observe.project", cfg.Project),
		attribute.String("observe.log_stream", cfg.LogStream),
		attribute.String("observe.console_url", cfg.ConsoleURL),
	)

	provider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
	)

	return &Recorder{
		provider: provider,
		tracer:   provider.Tracer(tracerName),
	}, nil
}

// Generation wraps one text-generation call. The returned finish func closes
// the span with the outcome; it must always be called.
func (r *Recorder) Generation(ctx context.Context, operation, model string) (context.Context, func(err error)) {
	if r == nil {
		return ctx, func(error) {}
	}

	start := time.Now()
	ctx, span := r.tracer.Start(ctx, operation, trace.WithAttributes(
		attribute.String("gen_ai.operation.name", operation),
		attribute.String("gen_ai.request.model", model),
	))

	return ctx, func(err error) {
		span.SetAttributes(attribute.Int64("gen_ai.duration_ms", time.Since(start).Milliseconds()))
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		} else {
			span.SetStatus(codes.Ok, "")
		}
		span.End()
	}
}

// Shutdown flushes any buffered spans.
func (r *Recorder) Shutdown(ctx context.Context) error {
	if r == nil {
		return nil
	}
	return r.provider.Shutdown(ctx)
}
