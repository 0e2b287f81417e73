package command

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/signalsfoundry/colosseum/internal/world"
)

// Recorder receives the outcome and latency of every invocation. known is
// false for names with no registered command.
type Recorder interface {
	ObserveCommand(name string, known bool, d time.Duration)
}

// Registry maps command names to Commands. A lookup miss is not an error:
// invoking an unknown name does nothing and yields no result.
type Registry struct {
	// mu guards commands and is also held while a command runs, so at most
	// one command executes at a time. Commands must not call Register.
	mu       sync.Mutex
	commands map[string]Command

	metrics Recorder
}

// RegistryOption customises a Registry.
type RegistryOption func(*Registry)

// WithRecorder attaches an invocation recorder.
func WithRecorder(r Recorder) RegistryOption {
	return func(reg *Registry) { reg.metrics = r }
}

// NewRegistry returns an empty registry.
func NewRegistry(opts ...RegistryOption) *Registry {
	r := &Registry{commands: make(map[string]Command)}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register binds name to cmd, replacing any previous binding.
func (r *Registry) Register(name string, cmd Command) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.commands[name] = cmd
}

// RegisterFunc is Register for a plain function.
func (r *Registry) RegisterFunc(name string, fn func(ctx context.Context, w *world.World, args []float32) ([]float32, bool)) {
	r.Register(name, Func(fn))
}

// Invoke runs the command bound to name. It returns (nil, false) when no
// command is registered under name.
func (r *Registry) Invoke(ctx context.Context, w *world.World, name string, args []float32) ([]float32, bool) {
	start := time.Now()
	r.mu.Lock()
	defer r.mu.Unlock()

	cmd, ok := r.commands[name]
	if !ok {
		r.observe(name, false, start)
		return nil, false
	}
	results, hasResult := cmd.Invoke(ctx, w, args)
	r.observe(name, true, start)
	return results, hasResult
}

func (r *Registry) observe(name string, known bool, start time.Time) {
	if r.metrics != nil {
		r.metrics.ObserveCommand(name, known, time.Since(start))
	}
}

// Names returns the registered names in sorted order.
func (r *Registry) Names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	names := make([]string, 0, len(r.commands))
	for name := range r.commands {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Len returns the number of registered commands.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.commands)
}
