package observability

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"google.golang.org/grpc"
	"google.golang.org/grpc/status"
)

// Transport label values.
const (
	TransportGRPC      = "grpc"
	TransportWebsocket = "ws"
)

// Collector bundles the Prometheus metrics for the command server and
// provides helpers to wire them into the bus transports, the world state,
// the command registry and the headless window.
type Collector struct {
	gatherer prometheus.Gatherer

	TransportRequests  *prometheus.CounterVec
	TransportDurations *prometheus.HistogramVec

	Commands         *prometheus.CounterVec
	CommandDurations *prometheus.HistogramVec
	InboundMessages  *prometheus.CounterVec

	SimTicks        prometheus.Counter
	SimTickDuration prometheus.Histogram
	WorldBodies     prometheus.Gauge
	WorldColliders  prometheus.Gauge
	FramesRendered  prometheus.Counter
}

// NewCollector registers all metrics against the provided registerer,
// defaulting to the global Prometheus registry when nil.
func NewCollector(reg prometheus.Registerer) (*Collector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	requests, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "transport_requests_total",
		Help: "Total number of bus requests handled by a network transport, labeled by transport, operation, and status code.",
	}, []string{"transport", "op", "code"}), "transport_requests_total")
	if err != nil {
		return nil, err
	}

	durations, err := registerHistogramVec(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "transport_request_duration_seconds",
		Help:    "Bus request latency in seconds, including the wait for query replies.",
		Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
	}, []string{"transport", "op"}), "transport_request_duration_seconds")
	if err != nil {
		return nil, err
	}

	c := &Collector{
		gatherer:           gatherer,
		TransportRequests:  requests,
		TransportDurations: durations,
	}
	if err := c.registerSim(reg); err != nil {
		return nil, err
	}
	return c, nil
}

// Gatherer returns the Prometheus gatherer associated with the collector.
func (c *Collector) Gatherer() prometheus.Gatherer {
	if c == nil {
		return nil
	}
	return c.gatherer
}

// ObserveTransportRequest records one handled request on a network transport.
func (c *Collector) ObserveTransportRequest(transport, op, code string, d time.Duration) {
	if c == nil {
		return
	}
	if c.TransportRequests != nil {
		c.TransportRequests.WithLabelValues(transport, op, code).Inc()
	}
	if c.TransportDurations != nil {
		c.TransportDurations.WithLabelValues(transport, op).Observe(d.Seconds())
	}
}

// UnaryServerInterceptor records request counts and durations for unary RPCs.
func (c *Collector) UnaryServerInterceptor() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		start := time.Now()
		resp, err := handler(ctx, req)

		if c == nil {
			return resp, err
		}

		fullMethod := ""
		if info != nil {
			fullMethod = info.FullMethod
		}
		_, method := SplitMethod(fullMethod)
		c.ObserveTransportRequest(TransportGRPC, strings.ToLower(method), status.Code(err).String(), time.Since(start))

		return resp, err
	}
}

// WebsocketObserver returns a function suitable for wsbus.Server's
// RequestObserver. Unrecognised ops are folded into "unknown".
func (c *Collector) WebsocketObserver() func(op string, d time.Duration, err error) {
	return func(op string, d time.Duration, err error) {
		switch op {
		case "put", "get":
		default:
			op = "unknown"
		}
		code := "OK"
		if err != nil {
			code = "Error"
		}
		c.ObserveTransportRequest(TransportWebsocket, op, code, d)
	}
}

// Handler exposes a ready-to-use /metrics handler.
func (c *Collector) Handler() http.Handler {
	gatherer := c.gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// SplitMethod parses a fully-qualified gRPC method name into service and method
// components. It tolerates empty strings and partial paths, returning
// "unknown"/"unknown" when parsing fails.
func SplitMethod(fullMethod string) (string, string) {
	if fullMethod == "" {
		return "unknown", "unknown"
	}
	fullMethod = strings.TrimPrefix(fullMethod, "/")
	parts := strings.Split(fullMethod, "/")
	if len(parts) < 2 {
		return "unknown", "unknown"
	}
	service := parts[len(parts)-2]
	method := parts[len(parts)-1]
	if dot := strings.LastIndex(service, "."); dot >= 0 && dot+1 < len(service) {
		service = service[dot+1:]
	}
	if service == "" {
		service = "unknown"
	}
	if method == "" {
		method = "unknown"
	}
	return service, method
}

func registerCounterVec(reg prometheus.Registerer, vec *prometheus.CounterVec, name string) (*prometheus.CounterVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.CounterVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}

func registerHistogramVec(reg prometheus.Registerer, vec *prometheus.HistogramVec, name string) (*prometheus.HistogramVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.HistogramVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}

func registerGauge(reg prometheus.Registerer, gauge prometheus.Gauge, name string) (prometheus.Gauge, error) {
	if err := reg.Register(gauge); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Gauge); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return gauge, nil
}
