// Package telemetry traces build steps with OpenTelemetry and renders them as they run.
package telemetry

import (
	"context"
	"fmt"
	"slices"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	"go.trai.ch/kiln/internal/core/ports"
)

// InstrumentationName names the tracer kiln creates its spans with.
const InstrumentationName = "go.trai.ch/kiln"

// OTelTracer implements ports.Tracer on an OpenTelemetry SDK provider.
// Every span is mirrored to the renderer through a Bridge.
type OTelTracer struct {
	provider *sdktrace.TracerProvider
	tracer   trace.Tracer
	renderer ports.Renderer
}

// NewOTelTracer creates a tracer reporting to renderer. Extra processors receive every span as well.
func NewOTelTracer(renderer ports.Renderer, processors ...sdktrace.SpanProcessor) *OTelTracer {
	opts := []sdktrace.TracerProviderOption{
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
		sdktrace.WithSpanProcessor(NewBridge(renderer)),
	}
	for _, p := range processors {
		opts = append(opts, sdktrace.WithSpanProcessor(p))
	}

	provider := sdktrace.NewTracerProvider(opts...)
	return &OTelTracer{
		provider: provider,
		tracer:   provider.Tracer(InstrumentationName),
		renderer: renderer,
	}
}

// Start creates a new span as a child of the span in ctx, if any.
func (t *OTelTracer) Start(ctx context.Context, name string) (context.Context, ports.Span) {
	ctx, span := t.tracer.Start(ctx, name)
	return ctx, &OTelSpan{
		span:     span,
		renderer: t.renderer,
		spanID:   span.SpanContext().SpanID().String(),
	}
}

// Shutdown flushes and stops the provider.
func (t *OTelTracer) Shutdown(ctx context.Context) error {
	return t.provider.Shutdown(ctx)
}

// OTelSpan implements ports.Span.
type OTelSpan struct {
	span     trace.Span
	renderer ports.Renderer
	spanID   string
}

// End completes the span.
func (s *OTelSpan) End() {
	s.span.End()
}

// RecordError marks the span as failed.
func (s *OTelSpan) RecordError(err error) {
	if err == nil {
		return
	}
	s.span.RecordError(err)
	s.span.SetStatus(codes.Error, err.Error())
}

// SetAttribute adds a key-value pair to the span.
func (s *OTelSpan) SetAttribute(key string, value any) {
	switch v := value.(type) {
	case string:
		s.span.SetAttributes(attribute.String(key, v))
	case int:
		s.span.SetAttributes(attribute.Int(key, v))
	case int64:
		s.span.SetAttributes(attribute.Int64(key, v))
	case bool:
		s.span.SetAttributes(attribute.Bool(key, v))
	case []string:
		s.span.SetAttributes(attribute.StringSlice(key, v))
	default:
		s.span.SetAttributes(attribute.String(key, fmt.Sprintf("%v", v)))
	}
}

// Write records p as a log event and passes it on to the renderer.
func (s *OTelSpan) Write(p []byte) (int, error) {
	s.span.AddEvent("log", trace.WithAttributes(attribute.String("message", string(p))))
	if s.renderer != nil {
		s.renderer.OnStepLog(s.spanID, slices.Clone(p))
	}
	return len(p), nil
}
