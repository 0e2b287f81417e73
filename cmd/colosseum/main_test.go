package main

import (
	"context"
	"io"
	"net"
	"net/http"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/signalsfoundry/colosseum/internal/config"
	"github.com/signalsfoundry/colosseum/internal/logging"
	"github.com/signalsfoundry/colosseum/internal/transport"
	"github.com/signalsfoundry/colosseum/internal/transport/grpcbus"
	"github.com/signalsfoundry/colosseum/internal/transport/wsbus"
)

func loopback(t *testing.T) net.Listener {
	t.Helper()
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("net.Listen: %v", err)
	}
	return lis
}

func testConfig() config.Config {
	return config.Config{
		KeyExpr:       "robot/command",
		Transports:    []string{config.TransportGRPC, config.TransportWebsocket},
		TimeMode:      "accelerated",
		FrameInterval: time.Second / 60,
		LogLevel:      "warn",
		LogFormat:     "text",
	}
}

// queryUntilDeclared retries a Get until the command listener answers.
func queryUntilDeclared(t *testing.T, ctx context.Context, c transport.Client, line string) []float32 {
	t.Helper()
	for {
		replies, err := c.Get(ctx, "robot/command", transport.EncodeText(line))
		if err != nil {
			t.Fatalf("Get(%q): %v", line, err)
		}
		if len(replies) == 1 {
			vals, err := transport.DecodeValues(replies[0])
			if err != nil {
				t.Fatalf("DecodeValues: %v", err)
			}
			return vals
		}
		select {
		case <-ctx.Done():
			t.Fatalf("listener never answered %q", line)
		case <-time.After(10 * time.Millisecond):
		}
	}
}

func TestServerStartupSmoke(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	lis := listeners{grpc: loopback(t), ws: loopback(t), metrics: loopback(t)}
	log := logging.New(logging.Config{Level: "warn", Format: "text", Output: io.Discard})

	errCh := make(chan error, 1)
	go func() {
		errCh <- run(ctx, testConfig(), log, lis)
	}()

	grpcClient, err := grpcbus.Dial(lis.grpc.Addr().String())
	if err != nil {
		t.Fatalf("grpcbus.Dial: %v", err)
	}
	defer grpcClient.Close()

	pose := queryUntilDeclared(t, ctx, grpcClient, "POSE_OF_BALL")
	if len(pose) != 7 {
		t.Fatalf("POSE_OF_BALL = %v, want 7 values", pose)
	}
	if err := grpcClient.Put(ctx, "robot/command", transport.EncodeText("0 5 0 ADD_FORCE_TO_BALL")); err != nil {
		t.Fatalf("Put: %v", err)
	}

	wsClient, err := wsbus.Dial(ctx, "ws://"+lis.ws.Addr().String()+wsPath)
	if err != nil {
		t.Fatalf("wsbus.Dial: %v", err)
	}
	defer wsClient.Close()

	counts := queryUntilDeclared(t, ctx, wsClient, "BODY_COUNT")
	if !slices.Equal(counts, []float32{1, 2}) {
		t.Fatalf("BODY_COUNT = %v, want [1 2]", counts)
	}

	resp, err := http.Get("http://" + lis.metrics.Addr().String() + "/metrics")
	if err != nil {
		t.Fatalf("GET /metrics: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	for _, metric := range []string{"commands_total", "inbound_messages_total", "transport_requests_total", "frames_rendered_total"} {
		if !strings.Contains(string(body), metric) {
			t.Fatalf("expected %q in /metrics output", metric)
		}
	}

	cancel()
	if err := <-errCh; err != nil {
		t.Fatalf("server returned error: %v", err)
	}
}

func TestRunStopsAtFrameLimit(t *testing.T) {
	cfg := testConfig()
	cfg.Transports = nil
	cfg.MaxFrames = 30

	done := make(chan error, 1)
	go func() {
		done <- run(context.Background(), cfg, logging.Noop(), listeners{})
	}()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("run: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("run did not stop after the frame limit")
	}
}
