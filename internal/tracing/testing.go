package tracing

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	tracesdk "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace/noop"
)

// UseRecorder installs a synchronous in-memory provider for tests and returns
// the recorder plus a func that puts back a no-op provider and propagator.
func UseRecorder(serviceName string) (*tracetest.SpanRecorder, func()) {
	rec := tracetest.NewSpanRecorder()
	install(newProvider(serviceName, tracesdk.WithSpanProcessor(rec)))

	return rec, func() {
		otel.SetTracerProvider(noop.NewTracerProvider())
		otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator())
	}
}
