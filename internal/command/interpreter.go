package command

import (
	"context"
	"fmt"

	"github.com/signalsfoundry/colosseum/internal/logging"
	"github.com/signalsfoundry/colosseum/internal/world"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/signalsfoundry/colosseum/internal/command"

// Interpreter executes command lines against a registry under one world
// access per line.
type Interpreter struct {
	registry *Registry
	state    *world.State
	log      logging.Logger
	tracer   trace.Tracer
}

// InterpreterOption customises an Interpreter.
type InterpreterOption func(*Interpreter)

// WithLogger attaches a structured logger.
func WithLogger(log logging.Logger) InterpreterOption {
	return func(in *Interpreter) { in.log = log }
}

// WithTracerProvider overrides the global OpenTelemetry tracer provider.
func WithTracerProvider(tp trace.TracerProvider) InterpreterOption {
	return func(in *Interpreter) { in.tracer = tp.Tracer(tracerName) }
}

// NewInterpreter returns an Interpreter dispatching to registry with
// exclusive access to state.
func NewInterpreter(registry *Registry, state *world.State, opts ...InterpreterOption) *Interpreter {
	in := &Interpreter{
		registry: registry,
		state:    state,
		log:      logging.Noop(),
		tracer:   otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(in)
	}
	if in.log == nil {
		in.log = logging.Noop()
	}
	return in
}

// Registry returns the registry commands are dispatched to.
func (in *Interpreter) Registry() *Registry { return in.registry }

// Execute runs every invocation in line, in scan order, inside one world
// access. The reply is the result of the last invocation to run, which is
// the leftmost name on the line; an invocation without a result clears any
// earlier one. Lines with no command names never touch the world and yield
// no reply.
//
// The returned error is non-nil only when the world could not be accessed
// (cancelled context, stopped or poisoned state).
func (in *Interpreter) Execute(ctx context.Context, line string) ([]float32, bool, error) {
	invocations := Parse(line)
	if len(invocations) == 0 {
		return nil, false, nil
	}

	ctx, span := in.tracer.Start(ctx, "command.Execute", trace.WithAttributes(
		attribute.String("command.line", line),
		attribute.Int("command.invocations", len(invocations)),
	))
	defer span.End()

	log := logging.FromContext(ctx, in.log)

	var (
		reply    []float32
		hasReply bool
	)
	err := in.state.Do(ctx, func(ctx context.Context, w *world.World) error {
		for _, inv := range invocations {
			span.AddEvent("invoke", trace.WithAttributes(
				attribute.String("command.name", inv.Name),
				attribute.Int("command.args", len(inv.Args)),
			))
			reply, hasReply = in.registry.Invoke(ctx, w, inv.Name, inv.Args)
			log.Debug(ctx, "command invoked",
				logging.String("command", inv.Name),
				logging.Float32s("args", inv.Args),
				logging.Bool("has_result", hasReply),
			)
		}
		return nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, false, fmt.Errorf("execute %q: %w", line, err)
	}
	return reply, hasReply, nil
}
