// Package config holds the server's runtime configuration and scene file
// format.
package config

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/signalsfoundry/colosseum/internal/logging"
	"github.com/signalsfoundry/colosseum/internal/transport"
	"github.com/signalsfoundry/colosseum/timectrl"
)

// Network transports the server can expose the bus on.
const (
	TransportGRPC      = "grpc"
	TransportWebsocket = "ws"
)

// Config holds the command server configuration.
type Config struct {
	KeyExpr       string        `env:"COLOSSEUM_KEY_EXPR" envDefault:"robot/command"`
	Transports    []string      `env:"COLOSSEUM_TRANSPORTS" envSeparator:"," envDefault:"grpc,ws"`
	GRPCAddr      string        `env:"COLOSSEUM_GRPC_ADDR" envDefault:":7447"`
	WSAddr        string        `env:"COLOSSEUM_WS_ADDR" envDefault:":8081"`
	MetricsAddr   string        `env:"COLOSSEUM_METRICS_ADDR" envDefault:":9090"`
	ScenePath     string        `env:"COLOSSEUM_SCENE"`
	TimeMode      string        `env:"COLOSSEUM_TIME_MODE" envDefault:"realtime"`
	FrameInterval time.Duration `env:"COLOSSEUM_FRAME_INTERVAL" envDefault:"16ms"`
	MaxFrames     uint64        `env:"COLOSSEUM_MAX_FRAMES"`
	PoseLogEvery  uint64        `env:"COLOSSEUM_POSE_LOG_EVERY" envDefault:"60"`
	LogLevel      string        `env:"COLOSSEUM_LOG_LEVEL" envDefault:"info"`
	LogFormat     string        `env:"COLOSSEUM_LOG_FORMAT" envDefault:"text"`
}

// ParseConfig reads COLOSSEUM_* environment variables and then lets flags in
// args override them.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}

	transports := strings.Join(cfg.Transports, ",")
	fs.StringVar(&cfg.KeyExpr, "key", cfg.KeyExpr, "key expression commands are accepted on")
	fs.StringVar(&transports, "transports", transports, "comma-separated network transports to serve (grpc, ws); empty for none")
	fs.StringVar(&cfg.GRPCAddr, "grpc-addr", cfg.GRPCAddr, "listen address for the gRPC bus")
	fs.StringVar(&cfg.WSAddr, "ws-addr", cfg.WSAddr, "listen address for the websocket bus")
	fs.StringVar(&cfg.MetricsAddr, "metrics-addr", cfg.MetricsAddr, "listen address for /metrics; empty disables")
	fs.StringVar(&cfg.ScenePath, "scene", cfg.ScenePath, "YAML scene file (default: built-in ground and ball)")
	fs.StringVar(&cfg.TimeMode, "time-mode", cfg.TimeMode, "frame pacing: realtime or accelerated")
	fs.DurationVar(&cfg.FrameInterval, "frame-interval", cfg.FrameInterval, "simulated time per rendered frame")
	fs.Uint64Var(&cfg.MaxFrames, "max-frames", cfg.MaxFrames, "stop after this many frames (0 = run until interrupted)")
	fs.Uint64Var(&cfg.PoseLogEvery, "pose-log-every", cfg.PoseLogEvery, "log object poses every N frames at debug level (0 = never)")
	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "log level: debug, info, warn, error")
	fs.StringVar(&cfg.LogFormat, "log-format", cfg.LogFormat, "log format: text or json")
	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}
	cfg.Transports = splitList(transports)

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks cross-field constraints.
func (c Config) Validate() error {
	var errs []error
	if err := transport.ValidateKeyExpr(c.KeyExpr); err != nil {
		errs = append(errs, fmt.Errorf("key: %w", err))
	}
	for _, t := range c.Transports {
		switch t {
		case TransportGRPC, TransportWebsocket:
		default:
			errs = append(errs, fmt.Errorf("transports: unknown transport %q", t))
		}
	}
	if c.Serves(TransportGRPC) && c.GRPCAddr == "" {
		errs = append(errs, errors.New("grpc-addr: required when serving grpc"))
	}
	if c.Serves(TransportWebsocket) && c.WSAddr == "" {
		errs = append(errs, errors.New("ws-addr: required when serving ws"))
	}
	if _, err := timectrl.ParseMode(c.TimeMode); err != nil {
		errs = append(errs, fmt.Errorf("time-mode: %w", err))
	}
	if c.FrameInterval <= 0 {
		errs = append(errs, fmt.Errorf("frame-interval: must be positive, got %s", c.FrameInterval))
	}
	return errors.Join(errs...)
}

// Serves reports whether transport t is enabled.
func (c Config) Serves(t string) bool {
	return slices.Contains(c.Transports, t)
}

// Mode returns the parsed time mode. Validate must have succeeded.
func (c Config) Mode() timectrl.Mode {
	mode, _ := timectrl.ParseMode(c.TimeMode)
	return mode
}

// Logging returns the logger configuration writing to out.
func (c Config) Logging(out io.Writer) logging.Config {
	if out == nil {
		out = os.Stdout
	}
	return logging.Config{Level: c.LogLevel, Format: c.LogFormat, Output: out}
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		part = strings.ToLower(strings.TrimSpace(part))
		if part != "" && !slices.Contains(out, part) {
			out = append(out, part)
		}
	}
	return out
}
