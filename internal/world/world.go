// Package world holds the shared rigid-body simulation and the single-owner
// State that serializes every access to it.
package world

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/signalsfoundry/colosseum/internal/physics"
	"github.com/signalsfoundry/colosseum/internal/scene"
)

// World is the mutable simulation: body and collider sets plus the
// parameters of the physics step. It is not safe for concurrent use; once
// handed to a State, only closures run by that State may touch it.
type World struct {
	Bodies    *physics.RigidBodySet
	Colliders *physics.ColliderSet

	gravity  mgl32.Vec3
	params   physics.IntegrationParameters
	pipeline *physics.Pipeline
	tick     uint64
}

// WorldOption customises World construction.
type WorldOption func(*World)

// WithGravity overrides the default downward gravity.
func WithGravity(g mgl32.Vec3) WorldOption {
	return func(w *World) { w.gravity = g }
}

// WithIntegrationParameters overrides the default 60 Hz step parameters.
func WithIntegrationParameters(p physics.IntegrationParameters) WorldOption {
	return func(w *World) { w.params = p }
}

// NewWorld returns an empty world with standard gravity and a 1/60 s step.
func NewWorld(opts ...WorldOption) *World {
	w := &World{
		Bodies:    physics.NewRigidBodySet(),
		Colliders: physics.NewColliderSet(),
		gravity:   physics.DefaultGravity,
		params:    physics.DefaultIntegrationParameters(),
		pipeline:  physics.NewPipeline(),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Step advances the simulation by one integration timestep.
func (w *World) Step() {
	w.pipeline.Step(w.gravity, w.params, w.Bodies, w.Colliders)
	w.tick++
}

// Tick returns the number of completed steps.
func (w *World) Tick() uint64 { return w.tick }

// Gravity returns the acceleration applied to every dynamic body.
func (w *World) Gravity() mgl32.Vec3 { return w.gravity }

// IntegrationParameters returns the step settings passed to the pipeline.
func (w *World) IntegrationParameters() physics.IntegrationParameters { return w.params }

// Counts returns the number of live bodies and colliders.
func (w *World) Counts() (bodies, colliders int) {
	return w.Bodies.Len(), w.Colliders.Len()
}

// AddObjectFromParts inserts collider, and body when non-nil, and pairs them
// with node. A collider without a body is anchored to the world.
func (w *World) AddObjectFromParts(name string, node *scene.Node, collider physics.Collider, body *physics.RigidBody) (*Object, error) {
	if node == nil {
		return nil, fmt.Errorf("add object %q: nil scene node", name)
	}
	if body == nil {
		ch := w.Colliders.Insert(collider)
		return &Object{name: name, node: node, collider: ch}, nil
	}

	bh := w.Bodies.Insert(*body)
	ch, err := w.Colliders.InsertWithParent(collider, bh, w.Bodies)
	if err != nil {
		w.Bodies.Remove(bh, w.Colliders)
		return nil, fmt.Errorf("add object %q: %w", name, err)
	}
	return &Object{name: name, node: node, collider: ch, body: bh, hasBody: true}, nil
}
