package otelx

import (
	"context"
	"testing"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

func TestTraceContextRoundTrip(t *testing.T) {
	otel.SetTextMapPropagator(propagation.TraceContext{})

	traceID, _ := trace.TraceIDFromHex("4bf92f3577b34da6a3ce929d0e0e4736")
	spanID, _ := trace.SpanIDFromHex("00f067aa0ba902b7")
	sc := trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    traceID,
		SpanID:     spanID,
		TraceFlags: trace.FlagsSampled,
	})
	ctx := trace.ContextWithSpanContext(context.Background(), sc)

	parent, state := TraceContextStrings(ctx)
	if parent == "" {
		t.Fatal("expected traceparent to be injected")
	}

	restored := trace.SpanContextFromContext(ContextWithTraceContext(context.Background(), parent, state))
	if restored.TraceID() != traceID || restored.SpanID() != spanID {
		t.Fatalf("span context mismatch: %s/%s", restored.TraceID(), restored.SpanID())
	}
}

func TestContextWithEmptyTraceContext(t *testing.T) {
	ctx := context.Background()
	if got := ContextWithTraceContext(ctx, "", ""); got != ctx {
		t.Fatal("expected the same context back when nothing was stored")
	}
}

func TestConfigFromEnvDefaults(t *testing.T) {
	t.Setenv("OTEL_ENABLED", "")
	t.Setenv("OTEL_SAMPLING_RATIO", "2")
	cfg := ConfigFromEnv("booking-service")
	if cfg.Enabled {
		t.Fatal("tracing should be disabled by default")
	}
	if cfg.SampleRatio != 1 {
		t.Fatalf("out-of-range ratio should fall back to 1, got %v", cfg.SampleRatio)
	}
}
