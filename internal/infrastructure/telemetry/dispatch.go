package telemetry

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/garyjia/hookmanager/internal/application/port"
	"github.com/garyjia/hookmanager/internal/domain/hook"
)

const dispatchScopeName = "github.com/garyjia/hookmanager/dispatcher"

// DispatchTracker records a span per dispatch call and counts handler
// outcomes in hookmanager.* metrics
type DispatchTracker struct {
	tracer      trace.Tracer
	calls       metric.Int64Counter
	invocations metric.Int64Counter
	duration    metric.Float64Histogram
}

// NewDispatchTracker creates instruments from the given providers
func NewDispatchTracker(p *Providers) (*DispatchTracker, error) {
	if p == nil {
		p = Noop()
	}
	m := p.Meter.Meter(dispatchScopeName)

	calls, err := m.Int64Counter("hookmanager.dispatch.calls",
		metric.WithDescription("Dispatch calls by mode"),
	)
	if err != nil {
		return nil, fmt.Errorf("telemetry: dispatch calls counter: %w", err)
	}
	invocations, err := m.Int64Counter("hookmanager.handler.invocations",
		metric.WithDescription("Handler calls by event, handler and outcome"),
	)
	if err != nil {
		return nil, fmt.Errorf("telemetry: handler invocations counter: %w", err)
	}
	duration, err := m.Float64Histogram("hookmanager.handler.duration",
		metric.WithDescription("Handler call duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, fmt.Errorf("telemetry: handler duration histogram: %w", err)
	}

	return &DispatchTracker{
		tracer:      p.Tracer.Tracer(dispatchScopeName),
		calls:       calls,
		invocations: invocations,
		duration:    duration,
	}, nil
}

// Begin starts a span for one dispatch call
func (t *DispatchTracker) Begin(ctx context.Context, mode hook.Mode, event string) (context.Context, func(int)) {
	attrs := []attribute.KeyValue{
		attribute.String("hook.mode", mode.String()),
		attribute.String("hook.event", event),
	}
	ctx, span := t.tracer.Start(ctx, "hook."+mode.String(),
		trace.WithAttributes(attrs...),
		trace.WithSpanKind(trace.SpanKindInternal),
	)
	t.calls.Add(ctx, 1, metric.WithAttributes(attrs...))

	return ctx, func(handlers int) {
		span.SetAttributes(attribute.Int("hook.handler_count", handlers))
		span.End()
	}
}

// Handler counts one handler call and marks failures on the current span
func (t *DispatchTracker) Handler(ctx context.Context, mode hook.Mode, event, handlerID string, status hook.Status, elapsed time.Duration) {
	attrs := metric.WithAttributes(
		attribute.String("hook.mode", mode.String()),
		attribute.String("hook.event", event),
		attribute.String("hook.handler", handlerID),
		attribute.String("hook.status", status.String()),
	)
	t.invocations.Add(ctx, 1, attrs)
	t.duration.Record(ctx, float64(elapsed)/float64(time.Millisecond), attrs)

	if status == hook.StatusFailed {
		span := trace.SpanFromContext(ctx)
		span.AddEvent("hook.handler_failed", trace.WithAttributes(
			attribute.String("hook.handler", handlerID),
		))
		span.SetStatus(codes.Error, "handler failed: "+handlerID)
	}
}

// Verify interface compliance
var _ port.DispatchTracker = (*DispatchTracker)(nil)
