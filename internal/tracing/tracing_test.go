package tracing

import (
	"context"
	"net/http"
	"testing"
)

func TestStartSpanRecordsAndPropagates(t *testing.T) {
	rec, restore := UseRecorder("tandem-test")
	defer restore()

	ctx, span := StartSpan(context.Background(), "relay")
	traceID := TraceIDFromContext(ctx)
	if traceID == "" {
		t.Fatal("expected a trace id inside the span")
	}

	h := http.Header{}
	Inject(ctx, h)
	if h.Get("traceparent") == "" {
		t.Fatal("traceparent header not injected")
	}
	span.End()

	if got := TraceIDFromContext(Extract(context.Background(), h)); got != traceID {
		t.Errorf("extracted trace id = %q, want %q", got, traceID)
	}

	ended := rec.Ended()
	if len(ended) != 1 || ended[0].Name() != "relay" {
		t.Fatalf("ended spans = %v", ended)
	}
	var svc string
	for _, kv := range ended[0].Resource().Attributes() {
		if kv.Key == "service.name" {
			svc = kv.Value.AsString()
		}
	}
	if svc != "tandem-test" {
		t.Errorf("service.name = %q, want tandem-test", svc)
	}
}

func TestInjectWithoutProviderIsNoop(t *testing.T) {
	_, restore := UseRecorder("x")
	restore()

	h := http.Header{}
	Inject(context.Background(), h)
	if len(h) != 0 {
		t.Errorf("expected no headers, got %v", h)
	}
	if TraceIDFromContext(context.Background()) != "" {
		t.Error("expected empty trace id without a span")
	}
}
