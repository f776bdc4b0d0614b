package otelx

import (
	"context"

	"go.opentelemetry.io/otel/trace"
)

// TraceID is the hex trace id carried by ctx, or empty when there is no span.
// Log lines and persisted rows use it to point back at the trace.
func TraceID(ctx context.Context) string {
	sc := trace.SpanContextFromContext(ctx)
	if !sc.HasTraceID() {
		return ""
	}
	return sc.TraceID().String()
}
