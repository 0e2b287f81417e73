package world

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/signalsfoundry/colosseum/internal/logging"
)

var (
	// ErrPoisoned is returned by every access after a closure panicked.
	ErrPoisoned = errors.New("world state poisoned by an earlier panic")
	// ErrReentrant is returned when a closure running on the State tries to
	// submit another closure to the same State.
	ErrReentrant = errors.New("re-entrant world state access")
	// ErrStateStopped is returned once Run has exited.
	ErrStateStopped = errors.New("world state is not running")
	// ErrAlreadyRunning is returned by a second call to Run.
	ErrAlreadyRunning = errors.New("world state already running")
)

// PanicError carries a panic recovered from a closure submitted with Do.
type PanicError struct {
	Value any
	Stack []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("panic in world state access: %v", e.Value)
}

// Is lets callers match a PanicError against ErrPoisoned.
func (e *PanicError) Is(target error) bool { return target == ErrPoisoned }

// MetricsRecorder receives step timings and entity counts.
type MetricsRecorder interface {
	ObserveTick(d time.Duration)
	SetWorldCounts(bodies, colliders int)
}

// Option customises State construction.
type Option func(*State)

// WithLogger attaches a structured logger for lifecycle events.
func WithLogger(log logging.Logger) Option {
	return func(s *State) { s.log = log }
}

// WithMetricsRecorder attaches an optional recorder for tick timings and counts.
func WithMetricsRecorder(m MetricsRecorder) Option {
	return func(s *State) { s.metrics = m }
}

type request struct {
	ctx   context.Context
	fn    func(context.Context, *World) error
	reply chan error
}

type ownerKey struct{}

// State owns a World on a dedicated goroutine (Run) and executes submitted
// closures one at a time, so no two accesses ever overlap.
//
// Closures must not retain the *World, or any body or collider pointer
// obtained from it, after they return. A closure must not call Do on the same
// State; when it passes along the context it was given, Do detects this and
// returns ErrReentrant.
type State struct {
	world    *World
	requests chan request
	done     chan struct{}
	running  atomic.Bool

	mu     sync.Mutex
	poison *PanicError

	log     logging.Logger
	metrics MetricsRecorder
}

// NewState hands w to a new State. The caller must not touch w afterwards
// except through Do.
func NewState(w *World, opts ...Option) *State {
	if w == nil {
		w = NewWorld()
	}
	s := &State{
		world:    w,
		requests: make(chan request),
		done:     make(chan struct{}),
		log:      logging.Noop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.log == nil {
		s.log = logging.Noop()
	}
	s.log = s.log.With(logging.Component("world"))
	return s
}

// Run serves submitted closures until ctx is done or a closure panics. It
// returns nil on cancellation and the *PanicError on poisoning. Run may only
// be called once.
func (s *State) Run(ctx context.Context) error {
	if !s.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	defer close(s.done)

	if s.metrics != nil {
		s.metrics.SetWorldCounts(s.world.Counts())
	}
	s.log.Debug(ctx, "world state running")

	for {
		select {
		case <-ctx.Done():
			s.log.Debug(ctx, "world state stopped", logging.Uint64("tick", s.world.Tick()))
			return nil
		case req := <-s.requests:
			err := s.serve(req)
			var pe *PanicError
			if errors.As(err, &pe) {
				s.mu.Lock()
				s.poison = pe
				s.mu.Unlock()
				req.reply <- err
				s.log.Error(ctx, "world state poisoned",
					logging.Err(pe),
					logging.String("stack", string(pe.Stack)),
				)
				return pe
			}
			req.reply <- err
		}
	}
}

func (s *State) serve(req request) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &PanicError{Value: r, Stack: debug.Stack()}
		}
	}()
	err = req.fn(context.WithValue(req.ctx, ownerKey{}, s), s.world)
	if s.metrics != nil {
		s.metrics.SetWorldCounts(s.world.Counts())
	}
	return err
}

// Do runs fn on the owning goroutine and waits for it to return. It blocks
// until Run is serving, ctx is done or the State has stopped. Once fn has been
// accepted Do always waits for it to finish.
func (s *State) Do(ctx context.Context, fn func(context.Context, *World) error) error {
	if owner, ok := ctx.Value(ownerKey{}).(*State); ok && owner == s {
		return ErrReentrant
	}
	if err := s.stoppedErr(); err != nil {
		return err
	}

	req := request{ctx: ctx, fn: fn, reply: make(chan error, 1)}
	select {
	case s.requests <- req:
	case <-s.done:
		return s.stoppedErr()
	case <-ctx.Done():
		return ctx.Err()
	}
	return <-req.reply
}

// Step advances the world by one timestep.
func (s *State) Step(ctx context.Context) error {
	return s.Do(ctx, func(_ context.Context, w *World) error {
		start := time.Now()
		w.Step()
		if s.metrics != nil {
			s.metrics.ObserveTick(time.Since(start))
		}
		return nil
	})
}

// Poisoned reports whether a closure has panicked.
func (s *State) Poisoned() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.poison != nil
}

func (s *State) stoppedErr() error {
	s.mu.Lock()
	poisoned := s.poison != nil
	s.mu.Unlock()
	if poisoned {
		return ErrPoisoned
	}
	select {
	case <-s.done:
		return ErrStateStopped
	default:
		return nil
	}
}
