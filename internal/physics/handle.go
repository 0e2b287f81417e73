package physics

import (
	"errors"
	"fmt"
)

// ErrInvalidHandle is returned when a handle does not resolve to a live entry.
var ErrInvalidHandle = errors.New("invalid handle")

// Handle is a stable (index, generation) reference into a set. Generations
// start at 1 so the zero Handle never resolves.
type Handle struct {
	Index      uint32
	Generation uint32
}

// IsZero reports whether h is the zero handle.
func (h Handle) IsZero() bool { return h.Generation == 0 }

func (h Handle) String() string { return fmt.Sprintf("%d@%d", h.Index, h.Generation) }

// RigidBodyHandle identifies a body in a RigidBodySet.
type RigidBodyHandle Handle

func (h RigidBodyHandle) String() string { return "body:" + Handle(h).String() }

// ColliderHandle identifies a collider in a ColliderSet.
type ColliderHandle Handle

func (h ColliderHandle) String() string { return "collider:" + Handle(h).String() }

type slot[T any] struct {
	value      *T
	generation uint32
}

// arena stores values in reusable slots. Removing a value bumps the slot's
// generation so stale handles miss instead of aliasing a later insert.
type arena[T any] struct {
	slots []slot[T]
	free  []uint32
	live  int
}

func (a *arena[T]) insert(v T) Handle {
	a.live++
	if n := len(a.free); n > 0 {
		idx := a.free[n-1]
		a.free = a.free[:n-1]
		s := &a.slots[idx]
		s.value = &v
		return Handle{Index: idx, Generation: s.generation}
	}
	a.slots = append(a.slots, slot[T]{value: &v, generation: 1})
	return Handle{Index: uint32(len(a.slots) - 1), Generation: 1}
}

func (a *arena[T]) get(h Handle) (*T, bool) {
	if int(h.Index) >= len(a.slots) {
		return nil, false
	}
	s := a.slots[h.Index]
	if s.value == nil || s.generation != h.Generation {
		return nil, false
	}
	return s.value, true
}

func (a *arena[T]) remove(h Handle) (*T, bool) {
	v, ok := a.get(h)
	if !ok {
		return nil, false
	}
	s := &a.slots[h.Index]
	s.value = nil
	s.generation++
	a.free = append(a.free, h.Index)
	a.live--
	return v, true
}

func (a *arena[T]) each(fn func(Handle, *T)) {
	for i := range a.slots {
		s := a.slots[i]
		if s.value == nil {
			continue
		}
		fn(Handle{Index: uint32(i), Generation: s.generation}, s.value)
	}
}
