package service

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("projectd.service")

// startSpan creates a span for a service operation on a path.
func startSpan(ctx context.Context, operation, path string) (context.Context, trace.Span) {
	return tracer.Start(ctx, "Service."+operation,
		trace.WithAttributes(
			attribute.String("projectd.operation", operation),
			attribute.String("projectd.path", path),
		),
	)
}

// endSpan records err, if any, and ends the span.
func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
