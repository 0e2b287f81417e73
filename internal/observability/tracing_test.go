package observability

import (
	"context"
	"testing"

	"github.com/signalsfoundry/colosseum/internal/logging"
)

func TestTracingConfigFromEnv(t *testing.T) {
	t.Setenv("COLOSSEUM_TRACING_ENABLED", "true")
	t.Setenv("COLOSSEUM_TRACING_EXPORTER", "OTLP")
	t.Setenv("COLOSSEUM_OTLP_ENDPOINT", "collector:4317")
	t.Setenv("COLOSSEUM_TRACING_SAMPLE_RATIO", "0.25")

	cfg := TracingConfigFromEnv()
	if !cfg.Enabled || cfg.Exporter != "otlp" || cfg.Endpoint != "collector:4317" || cfg.SampleRatio != 0.25 {
		t.Fatalf("TracingConfigFromEnv = %+v", cfg)
	}
	if cfg.ServiceName != "colosseum" {
		t.Fatalf("ServiceName = %q, want default colosseum", cfg.ServiceName)
	}
	if !cfg.Insecure {
		t.Fatalf("Insecure = false, want default true")
	}
}

func TestResourceCarriesKeyExpr(t *testing.T) {
	res, err := newResource(context.Background(), TracingConfig{ServiceName: "arena", KeyExpr: "robot/command"})
	if err != nil {
		t.Fatalf("newResource: %v", err)
	}
	got := map[string]string{}
	for _, kv := range res.Attributes() {
		got[string(kv.Key)] = kv.Value.Emit()
	}
	if got["service.name"] != "arena" || got["colosseum.key_expr"] != "robot/command" {
		t.Fatalf("resource attributes = %v", got)
	}
}

func TestTracingConfigFromEnvClampsRatio(t *testing.T) {
	t.Setenv("COLOSSEUM_TRACING_SAMPLE_RATIO", "7")
	if cfg := TracingConfigFromEnv(); cfg.SampleRatio != 1 {
		t.Fatalf("SampleRatio = %v, want 1", cfg.SampleRatio)
	}
}

func TestInitTracingDisabled(t *testing.T) {
	shutdown, err := InitTracing(context.Background(), TracingConfig{}, logging.Noop())
	if err != nil {
		t.Fatalf("InitTracing: %v", err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
}

func TestInitTracingRejectsUnknownExporter(t *testing.T) {
	_, err := InitTracing(context.Background(), TracingConfig{Enabled: true, Exporter: "carrier-pigeon"}, nil)
	if err == nil {
		t.Fatalf("InitTracing accepted an unknown exporter")
	}
}
