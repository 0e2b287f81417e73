package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"go.opentelemetry.io/otel/trace"
)

func TestJSONLoggerWritesFields(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Level: "debug", Format: "json", Output: &buf})

	log.With(Component("listener")).Info(context.Background(), "received query",
		String("key_expr", "robot/command"),
		Float32s("reply", []float32{1, 2}),
		Err(errors.New("boom")),
	)

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("unmarshal log line %q: %v", buf.String(), err)
	}
	if entry["msg"] != "received query" {
		t.Fatalf("msg = %v, want %q", entry["msg"], "received query")
	}
	if entry["component"] != "listener" {
		t.Fatalf("component = %v, want listener", entry["component"])
	}
	if entry["error"] != "boom" {
		t.Fatalf("error = %v, want boom", entry["error"])
	}
}

func TestLevelFiltersDebug(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Level: "warn", Output: &buf})

	log.Debug(context.Background(), "hidden")
	log.Info(context.Background(), "hidden too")
	log.Warn(context.Background(), "visible")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Fatalf("expected debug/info to be filtered, got %q", out)
	}
	if !strings.Contains(out, "visible") {
		t.Fatalf("expected warn line, got %q", out)
	}
}

func TestWithRequestLoggerReusesExistingID(t *testing.T) {
	ctx := ContextWithRequestID(context.Background(), "abc")
	ctx, _ = WithRequestLogger(ctx, nil)
	if got := RequestIDFromContext(ctx); got != "abc" {
		t.Fatalf("request id = %q, want abc", got)
	}

	fresh, _ := EnsureRequestID(context.Background())
	if RequestIDFromContext(fresh) == "" {
		t.Fatalf("expected a generated request id")
	}
}

func TestSpanIDsAreCopiedFromContext(t *testing.T) {
	traceID, _ := trace.TraceIDFromHex("0102030405060708090a0b0c0d0e0f10")
	spanID, _ := trace.SpanIDFromHex("0102030405060708")
	ctx := trace.ContextWithSpanContext(context.Background(), trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    traceID,
		SpanID:     spanID,
		TraceFlags: trace.FlagsSampled,
	}))

	var buf bytes.Buffer
	New(Config{Format: "json", Output: &buf}).With(Component("grpcbus")).Info(ctx, "get")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("unmarshal log line %q: %v", buf.String(), err)
	}
	if entry["trace_id"] != traceID.String() || entry["span_id"] != spanID.String() {
		t.Fatalf("ids = %v/%v, want %s/%s", entry["trace_id"], entry["span_id"], traceID, spanID)
	}
	if entry["component"] != "grpcbus" {
		t.Fatalf("component = %v, want grpcbus", entry["component"])
	}

	buf.Reset()
	New(Config{Format: "json", Output: &buf, NoSpanIDs: true}).Info(ctx, "get")
	if strings.Contains(buf.String(), "trace_id") {
		t.Fatalf("NoSpanIDs logger wrote trace ids: %s", buf.String())
	}
}

func TestFromContextFallsBack(t *testing.T) {
	if _, ok := FromContext(context.Background(), nil).(noopLogger); !ok {
		t.Fatalf("expected noop logger fallback")
	}

	stored := New(Config{Output: &bytes.Buffer{}})
	ctx := ContextWithLogger(context.Background(), stored)
	if got := FromContext(ctx, Noop()); got != stored {
		t.Fatalf("FromContext returned %v, want stored logger", got)
	}
}
