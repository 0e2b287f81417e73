package timectrl

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"
)

// SimClock is the read side of a TimeController. Components that only need
// to observe simulation time depend on it instead of the concrete type.
type SimClock interface {
	// Now returns the current simulation time.
	Now() time.Time
	// Frames returns how many ticks have elapsed since the start time.
	Frames() uint64
}

// Mode describes how the TimeController advances simulation time.
type Mode int

const (
	// RealTime advances according to wall-clock time.
	RealTime Mode = iota
	// Accelerated advances as quickly as the loop can run while still stepping by Tick.
	Accelerated
)

func (m Mode) String() string {
	switch m {
	case RealTime:
		return "realtime"
	case Accelerated:
		return "accelerated"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// ParseMode maps "realtime" or "accelerated" (case-insensitive) to a Mode.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "realtime", "real-time":
		return RealTime, nil
	case "accelerated", "fast":
		return Accelerated, nil
	default:
		return RealTime, fmt.Errorf("unknown time mode %q", s)
	}
}

// TimeController drives simulation time one Tick at a time and notifies
// registered listeners after every advance.
type TimeController struct {
	mu        sync.RWMutex
	StartTime time.Time
	Tick      time.Duration
	Mode      Mode

	// currentTime tracks the current simulation time. It is updated
	// as the controller advances time.
	currentTime time.Time
	frames      uint64

	// nextWall is the wall-clock deadline of the next RealTime tick.
	nextWall time.Time

	listeners []func(time.Time)
}

// NewTimeController constructs a controller.
func NewTimeController(start time.Time, tick time.Duration, mode Mode) *TimeController {
	return &TimeController{
		StartTime:   start,
		Tick:        tick,
		Mode:        mode,
		currentTime: start,
	}
}

// Now returns the current simulation time. Implements SimClock.
func (tc *TimeController) Now() time.Time {
	tc.mu.RLock()
	defer tc.mu.RUnlock()
	return tc.currentTime
}

// Frames returns the number of completed ticks. Implements SimClock.
func (tc *TimeController) Frames() uint64 {
	tc.mu.RLock()
	defer tc.mu.RUnlock()
	return tc.frames
}

// SetTime jumps simulation time to t without notifying listeners.
func (tc *TimeController) SetTime(t time.Time) {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	tc.currentTime = t
}

// AddListener registers a callback invoked on every tick.
func (tc *TimeController) AddListener(fn func(time.Time)) {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	tc.listeners = append(tc.listeners, fn)
}

// Advance waits for the next tick boundary and moves simulation time forward
// by Tick. In RealTime mode the wait is paced against the wall clock; a loop
// that falls behind by more than a tick is re-anchored rather than allowed to
// burst. Accelerated mode never waits. Advance returns ctx.Err() if the
// context is cancelled while waiting, in which case time does not move.
func (tc *TimeController) Advance(ctx context.Context) (time.Time, error) {
	if err := ctx.Err(); err != nil {
		return time.Time{}, err
	}
	if tc.Mode == RealTime && tc.Tick > 0 {
		if err := tc.waitWall(ctx); err != nil {
			return time.Time{}, err
		}
	}

	tc.mu.Lock()
	tc.currentTime = tc.currentTime.Add(tc.Tick)
	tc.frames++
	simTime := tc.currentTime
	listeners := slices.Clone(tc.listeners)
	tc.mu.Unlock()

	for _, fn := range listeners {
		fn(simTime)
	}
	return simTime, nil
}

func (tc *TimeController) waitWall(ctx context.Context) error {
	now := time.Now()
	if tc.nextWall.IsZero() || now.Sub(tc.nextWall) > tc.Tick {
		// First frame, or we fell behind: start pacing from here.
		tc.nextWall = now.Add(tc.Tick)
		return nil
	}
	deadline := tc.nextWall
	tc.nextWall = deadline.Add(tc.Tick)
	wait := time.Until(deadline)
	if wait <= 0 {
		return nil
	}
	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		tc.nextWall = time.Time{}
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Start runs the controller for the specified duration of simulation time in
// a separate goroutine (0 runs until ctx is done). It returns a channel that
// is closed when the controller finishes.
func (tc *TimeController) Start(ctx context.Context, duration time.Duration) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)

		tc.mu.Lock()
		tc.currentTime = tc.StartTime
		tc.frames = 0
		tc.mu.Unlock()

		elapsed := time.Duration(0)
		for {
			if duration > 0 && elapsed >= duration {
				return
			}
			if _, err := tc.Advance(ctx); err != nil {
				return
			}
			elapsed += tc.Tick
		}
	}()
	return done
}
