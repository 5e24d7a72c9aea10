// Package telemetry traces heartbeat dispatches with OpenTelemetry.
//
// Each dispatch is one span; each transport attempt is a child span carrying
// the transport name and outcome. Without an installed provider the spans are
// no-ops.
package telemetry

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/vinayprograms/wakabeat/heartbeat"
)

// InstrumentationName is the tracer name used for all wakabeat spans.
const InstrumentationName = "github.com/vinayprograms/wakabeat"

// Tracer wraps an OpenTelemetry tracer with heartbeat-specific helpers.
type Tracer struct {
	tracer trace.Tracer
}

var (
	globalTracer *Tracer
	tracerMu     sync.RWMutex
)

// SetGlobalTracer sets the tracer returned by GetTracer.
func SetGlobalTracer(t *Tracer) {
	tracerMu.Lock()
	defer tracerMu.Unlock()
	globalTracer = t
}

// GetTracer returns the global tracer, or a no-op tracer if none is set.
func GetTracer() *Tracer {
	tracerMu.RLock()
	defer tracerMu.RUnlock()
	if globalTracer == nil {
		return NewTracerFromProvider(noop.NewTracerProvider())
	}
	return globalTracer
}

// NewTracer creates a tracer from the global OpenTelemetry provider.
func NewTracer() *Tracer {
	return &Tracer{tracer: otel.Tracer(InstrumentationName)}
}

// NewTracerFromProvider creates a tracer from a specific provider.
func NewTracerFromProvider(tp trace.TracerProvider) *Tracer {
	return &Tracer{tracer: tp.Tracer(InstrumentationName)}
}

// StartDispatchSpan starts the span covering one heartbeat dispatch.
func (t *Tracer) StartDispatchSpan(ctx context.Context, ev heartbeat.Event) (context.Context, trace.Span) {
	ctx, span := t.tracer.Start(ctx, "heartbeat.dispatch", trace.WithSpanKind(trace.SpanKindInternal))
	span.SetAttributes(
		attribute.String("heartbeat.id", ev.ID),
		attribute.Float64("heartbeat.time", ev.Seconds()),
	)
	return ctx, span
}

// EndDispatchSpan ends a dispatch span with the final outcome.
func (t *Tracer) EndDispatchSpan(span trace.Span, out heartbeat.Outcome, attempts int) {
	span.SetAttributes(attribute.Int("heartbeat.attempts", attempts))
	end(span, out)
}

// StartTransportSpan starts a span for one transport attempt.
func (t *Tracer) StartTransportSpan(ctx context.Context, transport, url string) (context.Context, trace.Span) {
	ctx, span := t.tracer.Start(ctx, "transport."+transport, trace.WithSpanKind(trace.SpanKindClient))
	span.SetAttributes(
		attribute.String("transport.name", transport),
		attribute.String("url.full", url),
	)
	return ctx, span
}

// EndTransportSpan ends a transport span with the attempt outcome.
func (t *Tracer) EndTransportSpan(span trace.Span, out heartbeat.Outcome) {
	if out.Code != 0 {
		span.SetAttributes(attribute.Int("http.response.status_code", out.Code))
	}
	end(span, out)
}

func end(span trace.Span, out heartbeat.Outcome) {
	span.SetAttributes(attribute.String("heartbeat.outcome", out.Status.String()))
	if out.OK() {
		span.SetStatus(codes.Ok, "")
	} else {
		if out.Err != nil {
			span.RecordError(out.Err)
		}
		span.SetStatus(codes.Error, out.String())
	}
	span.End()
}
