package config

import (
	"flag"
	"io"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/signalsfoundry/colosseum/timectrl"
)

func parse(t *testing.T, args ...string) (Config, error) {
	t.Helper()
	fs := flag.NewFlagSet("colosseum", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	return ParseConfig(fs, args)
}

func TestParseConfigDefaults(t *testing.T) {
	cfg, err := parse(t)
	if err != nil {
		t.Fatalf("ParseConfig: %v", err)
	}
	if cfg.KeyExpr != "robot/command" {
		t.Fatalf("KeyExpr = %q, want robot/command", cfg.KeyExpr)
	}
	if !slices.Equal(cfg.Transports, []string{"grpc", "ws"}) {
		t.Fatalf("Transports = %v, want [grpc ws]", cfg.Transports)
	}
	if cfg.FrameInterval != 16*time.Millisecond || cfg.Mode() != timectrl.RealTime {
		t.Fatalf("FrameInterval = %s, Mode = %s", cfg.FrameInterval, cfg.Mode())
	}
	if cfg.MaxFrames != 0 || cfg.PoseLogEvery != 60 {
		t.Fatalf("MaxFrames = %d, PoseLogEvery = %d", cfg.MaxFrames, cfg.PoseLogEvery)
	}
}

func TestParseConfigEnvThenFlags(t *testing.T) {
	t.Setenv("COLOSSEUM_KEY_EXPR", "arena/cmd")
	t.Setenv("COLOSSEUM_TRANSPORTS", "ws")
	t.Setenv("COLOSSEUM_TIME_MODE", "accelerated")
	t.Setenv("COLOSSEUM_MAX_FRAMES", "120")
	t.Setenv("COLOSSEUM_LOG_LEVEL", "debug")

	cfg, err := parse(t, "-max-frames", "10", "-transports", " GRPC, ws ,grpc")
	if err != nil {
		t.Fatalf("ParseConfig: %v", err)
	}
	if cfg.KeyExpr != "arena/cmd" || cfg.LogLevel != "debug" || cfg.Mode() != timectrl.Accelerated {
		t.Fatalf("env values not applied: %+v", cfg)
	}
	if cfg.MaxFrames != 10 {
		t.Fatalf("MaxFrames = %d, want flag override 10", cfg.MaxFrames)
	}
	if !slices.Equal(cfg.Transports, []string{"grpc", "ws"}) {
		t.Fatalf("Transports = %v, want [grpc ws]", cfg.Transports)
	}
	if !cfg.Serves(TransportGRPC) || !cfg.Serves(TransportWebsocket) {
		t.Fatalf("Serves reported a configured transport as disabled")
	}
}

func TestParseConfigNoTransports(t *testing.T) {
	cfg, err := parse(t, "-transports", "")
	if err != nil {
		t.Fatalf("ParseConfig: %v", err)
	}
	if len(cfg.Transports) != 0 || cfg.Serves(TransportGRPC) {
		t.Fatalf("Transports = %v, want none", cfg.Transports)
	}
}

func TestParseConfigRejectsInvalid(t *testing.T) {
	cases := map[string][]string{
		"transport":      {"-transports", "carrier-pigeon"},
		"key":            {"-key", "robot//command"},
		"time mode":      {"-time-mode", "sideways"},
		"frame interval": {"-frame-interval", "0s"},
		"grpc addr":      {"-transports", "grpc", "-grpc-addr", ""},
	}
	for name, args := range cases {
		if _, err := parse(t, args...); err == nil {
			t.Fatalf("%s: ParseConfig(%v) succeeded, want error", name, args)
		}
	}
}

func TestParseConfigBadEnv(t *testing.T) {
	t.Setenv("COLOSSEUM_MAX_FRAMES", "lots")
	_, err := parse(t)
	if err == nil || !strings.Contains(err.Error(), "parse env") {
		t.Fatalf("err = %v, want parse env error", err)
	}
}
