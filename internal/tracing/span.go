package tracing

import (
	"context"
	"net/http"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

// StartRunSpan starts the span that covers one whole benchmark run.
func StartRunSpan(ctx context.Context, tracer trace.Tracer, runID, address string, connections, messages int) (context.Context, trace.Span) {
	return tracer.Start(ctx, "wsbench run",
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String("wsbench.run_id", runID),
			attribute.String("wsbench.address", address),
			attribute.Int("wsbench.connections", connections),
			attribute.Int("wsbench.messages", messages),
		),
	)
}

// StartConnectionSpan starts a client span for one connection, from
// handshake to flush.
func StartConnectionSpan(ctx context.Context, tracer trace.Tracer, conn int, address string) (context.Context, trace.Span) {
	ctx, span := tracer.Start(ctx, "websocket connection",
		trace.WithSpanKind(trace.SpanKindClient),
	)
	span.SetAttributes(
		attribute.String("network.protocol.name", "websocket"),
		attribute.Int("wsbench.conn", conn),
	)
	if address != "" {
		span.SetAttributes(attribute.String("wsbench.address", address))
	}
	return ctx, span
}

// EndSpan finishes a span, recording error status if applicable.
func EndSpan(span trace.Span, err error, attrs ...attribute.KeyValue) {
	if len(attrs) > 0 {
		span.SetAttributes(attrs...)
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}

// InjectHTTPHeaders injects W3C trace context into the handshake headers.
func InjectHTTPHeaders(ctx context.Context, headers http.Header) {
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(headers))
}
