// Package command maps textual command lines onto named operations that run
// against the shared world.
package command

import (
	"context"

	"github.com/signalsfoundry/colosseum/internal/world"
)

// Command is a named operation invoked with a flat list of numeric
// arguments. ok is false when the command produces no result.
//
// Invoke always runs while the world is held, so implementations may read
// and mutate w freely but must not retain it. The registry serializes
// invocations, so stateful commands need no locking of their own.
type Command interface {
	Invoke(ctx context.Context, w *world.World, args []float32) (results []float32, ok bool)
}

// Func adapts an ordinary function to Command.
type Func func(ctx context.Context, w *world.World, args []float32) ([]float32, bool)

// Invoke calls f.
func (f Func) Invoke(ctx context.Context, w *world.World, args []float32) ([]float32, bool) {
	return f(ctx, w, args)
}
