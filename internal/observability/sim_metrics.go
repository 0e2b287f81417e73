package observability

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Outcome label values for commands_total.
const (
	OutcomeInvoked = "invoked"
	OutcomeUnknown = "unknown"
)

// unknownCommand replaces the name of an unregistered command so arbitrary
// client input cannot grow the label set.
const unknownCommand = "_unknown"

func (c *Collector) registerSim(reg prometheus.Registerer) error {
	var err error

	c.Commands, err = registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "commands_total",
		Help: "Command invocations, labeled by command name and whether it was registered.",
	}, []string{"command", "outcome"}), "commands_total")
	if err != nil {
		return err
	}

	c.CommandDurations, err = registerHistogramVec(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "command_duration_seconds",
		Help:    "Time spent inside registered command callbacks.",
		Buckets: []float64{0.00001, 0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1},
	}, []string{"command"}), "command_duration_seconds")
	if err != nil {
		return err
	}

	c.InboundMessages, err = registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "inbound_messages_total",
		Help: "Messages received by the command listener, labeled by source.",
	}, []string{"source"}), "inbound_messages_total")
	if err != nil {
		return err
	}

	c.SimTicks, err = registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "sim_ticks_total",
		Help: "Physics steps performed by the world state.",
	}), "sim_ticks_total")
	if err != nil {
		return err
	}

	c.SimTickDuration, err = registerHistogram(reg, prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "sim_tick_duration_seconds",
		Help:    "Duration of one physics step.",
		Buckets: []float64{0.00001, 0.00005, 0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05},
	}), "sim_tick_duration_seconds")
	if err != nil {
		return err
	}

	c.WorldBodies, err = registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "world_bodies",
		Help: "Current number of rigid bodies in the world.",
	}), "world_bodies")
	if err != nil {
		return err
	}

	c.WorldColliders, err = registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "world_colliders",
		Help: "Current number of colliders in the world.",
	}), "world_colliders")
	if err != nil {
		return err
	}

	c.FramesRendered, err = registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "frames_rendered_total",
		Help: "Frames produced by the headless window.",
	}), "frames_rendered_total")
	return err
}

// ObserveCommand records one command lookup. Unregistered names share a
// single label value.
func (c *Collector) ObserveCommand(name string, known bool, d time.Duration) {
	if c == nil || c.Commands == nil {
		return
	}
	if !known {
		c.Commands.WithLabelValues(unknownCommand, OutcomeUnknown).Inc()
		return
	}
	c.Commands.WithLabelValues(name, OutcomeInvoked).Inc()
	if c.CommandDurations != nil {
		c.CommandDurations.WithLabelValues(name).Observe(d.Seconds())
	}
}

// IncInbound counts a message received by the listener.
func (c *Collector) IncInbound(source string) {
	if c == nil || c.InboundMessages == nil {
		return
	}
	c.InboundMessages.WithLabelValues(source).Inc()
}

// ObserveTick records a physics step.
func (c *Collector) ObserveTick(d time.Duration) {
	if c == nil {
		return
	}
	if c.SimTicks != nil {
		c.SimTicks.Inc()
	}
	if c.SimTickDuration != nil {
		c.SimTickDuration.Observe(d.Seconds())
	}
}

// SetWorldCounts updates the body and collider gauges.
func (c *Collector) SetWorldCounts(bodies, colliders int) {
	if c == nil {
		return
	}
	if c.WorldBodies != nil {
		c.WorldBodies.Set(float64(bodies))
	}
	if c.WorldColliders != nil {
		c.WorldColliders.Set(float64(colliders))
	}
}

// IncFramesRendered counts a frame produced by the window.
func (c *Collector) IncFramesRendered() {
	if c == nil || c.FramesRendered == nil {
		return
	}
	c.FramesRendered.Inc()
}

func registerHistogram(reg prometheus.Registerer, hist prometheus.Histogram, name string) (prometheus.Histogram, error) {
	if err := reg.Register(hist); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Histogram); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return hist, nil
}

func registerCounter(reg prometheus.Registerer, counter prometheus.Counter, name string) (prometheus.Counter, error) {
	if err := reg.Register(counter); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Counter); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return counter, nil
}
