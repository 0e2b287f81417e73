package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/signalsfoundry/colosseum/internal/command"
	"github.com/signalsfoundry/colosseum/internal/config"
	"github.com/signalsfoundry/colosseum/internal/listener"
	"github.com/signalsfoundry/colosseum/internal/logging"
	"github.com/signalsfoundry/colosseum/internal/observability"
	"github.com/signalsfoundry/colosseum/internal/scene"
	"github.com/signalsfoundry/colosseum/internal/sim"
	"github.com/signalsfoundry/colosseum/internal/transport"
	"github.com/signalsfoundry/colosseum/internal/transport/grpcbus"
	"github.com/signalsfoundry/colosseum/internal/transport/wsbus"
	"github.com/signalsfoundry/colosseum/internal/world"
	"github.com/signalsfoundry/colosseum/timectrl"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
)

// wsPath is where the websocket bus is mounted.
const wsPath = "/bus"

func main() {
	cfg, err := config.ParseConfig(flag.CommandLine, os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	log := logging.New(cfg.Logging(os.Stdout))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	tracingCfg := observability.TracingConfigFromEnv()
	tracingCfg.KeyExpr = cfg.KeyExpr
	shutdownTracing, err := observability.InitTracing(ctx, tracingCfg, log)
	if err != nil {
		log.Error(ctx, "failed to initialise tracing", logging.Err(err))
		os.Exit(1)
	}

	err = run(ctx, cfg, log, listeners{})
	observability.ShutdownWithTimeout(context.Background(), shutdownTracing, log)
	if err != nil {
		log.Error(ctx, "colosseum exited", logging.Err(err))
		os.Exit(1)
	}
}

// listeners lets callers hand run pre-bound sockets. A nil listener is
// opened from the configured address.
type listeners struct {
	grpc    net.Listener
	ws      net.Listener
	metrics net.Listener
}

// run wires the world, the command listener and the network transports and
// blocks until ctx is done, the window stops or a component fails.
func run(ctx context.Context, cfg config.Config, log logging.Logger, lis listeners) error {
	collector, err := observability.NewCollector(nil)
	if err != nil {
		return fmt.Errorf("initialise metrics collector: %w", err)
	}

	sc := config.DefaultScene()
	if cfg.ScenePath != "" {
		if sc, err = config.LoadScene(cfg.ScenePath); err != nil {
			return err
		}
		log.Info(ctx, "loaded scene", logging.String("path", cfg.ScenePath), logging.Int("objects", len(sc.Objects)))
	}

	clock := timectrl.NewTimeController(time.Now().UTC(), cfg.FrameInterval, cfg.Mode())
	winOpts := []scene.WindowOption{
		scene.WithMaxFrames(cfg.MaxFrames),
		scene.WithLogger(log),
		scene.WithFrameRecorder(collector),
	}
	if cfg.PoseLogEvery > 0 {
		winOpts = append(winOpts, scene.WithFrameListener(scene.LogEvery(log, cfg.PoseLogEvery)))
	}
	window := scene.NewHeadlessWindow("colosseum", clock, winOpts...)
	log.Info(ctx, "simulation clock ready",
		logging.String("mode", cfg.TimeMode),
		logging.Duration("frame_interval", cfg.FrameInterval),
		logging.Uint64("max_frames", cfg.MaxFrames),
	)

	w := sim.NewWorld(sc)
	objects, err := sim.BuildScene(window, w, sc)
	if err != nil {
		return err
	}
	state := world.NewState(w, world.WithLogger(log), world.WithMetricsRecorder(collector))

	registry := command.NewRegistry(command.WithRecorder(collector))
	names := command.RegisterBuiltins(registry, objects)
	log.Info(ctx, "registered commands", logging.Any("commands", names))
	interp := command.NewInterpreter(registry, state, command.WithLogger(log))

	router := transport.NewRouter(transport.WithLogger(log))
	cmdListener := listener.New(cfg.KeyExpr, interp,
		listener.WithLogger(log),
		listener.WithRecorder(collector),
	)

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(runCtx)

	g.Go(func() error { return state.Run(gctx) })
	g.Go(func() error { return cmdListener.Serve(gctx, router) })
	g.Go(func() error {
		defer cancel()
		return sim.Run(gctx, window, state, objects, log)
	})
	g.Go(func() error {
		<-gctx.Done()
		return router.Close()
	})

	if cfg.Serves(config.TransportGRPC) {
		if err := serveGRPC(gctx, g, cfg.GRPCAddr, lis.grpc, router, collector, log); err != nil {
			cancel()
			_ = g.Wait()
			return err
		}
	}
	if cfg.Serves(config.TransportWebsocket) {
		if err := serveWebsocket(gctx, g, cfg.WSAddr, lis.ws, router, collector, log); err != nil {
			cancel()
			_ = g.Wait()
			return err
		}
	}
	if cfg.MetricsAddr != "" || lis.metrics != nil {
		if err := serveMetrics(gctx, g, cfg.MetricsAddr, lis.metrics, collector, log); err != nil {
			cancel()
			_ = g.Wait()
			return err
		}
	}

	if err := g.Wait(); err != nil {
		return err
	}
	log.Info(ctx, "colosseum stopped")
	return nil
}

func listen(addr string, lis net.Listener) (net.Listener, error) {
	if lis != nil {
		return lis, nil
	}
	l, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen on %s: %w", addr, err)
	}
	return l, nil
}

func serveGRPC(ctx context.Context, g *errgroup.Group, addr string, lis net.Listener, bus transport.Client, collector *observability.Collector, log logging.Logger) error {
	lis, err := listen(addr, lis)
	if err != nil {
		return err
	}

	server := grpc.NewServer(
		grpc.StatsHandler(otelgrpc.NewServerHandler()),
		grpc.ChainUnaryInterceptor(
			grpcbus.RequestIDUnaryServerInterceptor(log),
			grpcbus.TracingUnaryServerInterceptor(nil),
			collector.UnaryServerInterceptor(),
		),
	)
	grpcbus.RegisterBusServer(server, grpcbus.NewService(bus, log))

	log.Info(ctx, "starting gRPC bus", logging.String("addr", lis.Addr().String()))
	g.Go(func() error {
		if err := server.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			return fmt.Errorf("gRPC bus: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		server.GracefulStop()
		return nil
	})
	return nil
}

func serveWebsocket(ctx context.Context, g *errgroup.Group, addr string, lis net.Listener, bus transport.Client, collector *observability.Collector, log logging.Logger) error {
	lis, err := listen(addr, lis)
	if err != nil {
		return err
	}

	ws := wsbus.NewServer(bus, log)
	ws.RequestObserver = collector.WebsocketObserver()
	mux := http.NewServeMux()
	mux.Handle(wsPath, ws)

	srv := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
		// Upgraded connections watch their request context.
		BaseContext: func(net.Listener) context.Context { return ctx },
	}

	log.Info(ctx, "starting websocket bus", logging.String("addr", lis.Addr().String()), logging.String("path", wsPath))
	serveHTTP(ctx, g, "websocket bus", srv, lis)
	return nil
}

func serveMetrics(ctx context.Context, g *errgroup.Group, addr string, lis net.Listener, collector *observability.Collector, log logging.Logger) error {
	lis, err := listen(addr, lis)
	if err != nil {
		return err
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", collector.Handler())
	srv := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	log.Info(ctx, "serving Prometheus metrics", logging.String("addr", lis.Addr().String()))
	serveHTTP(ctx, g, "metrics server", srv, lis)
	return nil
}

func serveHTTP(ctx context.Context, g *errgroup.Group, name string, srv *http.Server, lis net.Listener) {
	g.Go(func() error {
		if err := srv.Serve(lis); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("%s: %w", name, err)
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		return nil
	})
}
