package world

import (
	"context"

	"github.com/signalsfoundry/colosseum/internal/physics"
	"github.com/signalsfoundry/colosseum/internal/scene"
)

// Object pairs a scene node with its physical representation. The node is
// exclusively owned by the object; nothing else writes its transform.
type Object struct {
	name     string
	node     *scene.Node
	collider physics.ColliderHandle
	body     physics.RigidBodyHandle
	hasBody  bool
}

func (o *Object) Name() string { return o.name }

func (o *Object) Node() *scene.Node { return o.node }

func (o *Object) Collider() physics.ColliderHandle { return o.collider }

// Body returns the rigid body handle, if the object has one.
func (o *Object) Body() (physics.RigidBodyHandle, bool) { return o.body, o.hasBody }

// SynchronizeWith copies the body's current pose onto the node. Objects
// without a body, or whose body has been removed, are left unchanged.
func (o *Object) SynchronizeWith(w *World) {
	if !o.hasBody {
		return
	}
	b, ok := w.Bodies.Get(o.body)
	if !ok {
		return
	}
	p := b.Position()
	o.node.SetLocalTransform(scene.Transform{Translation: p.Translation, Rotation: p.Rotation})
}

// Synchronize runs SynchronizeWith under one State access.
func (o *Object) Synchronize(ctx context.Context, s *State) error {
	return s.Do(ctx, func(_ context.Context, w *World) error {
		o.SynchronizeWith(w)
		return nil
	})
}

// SyncAll synchronizes every object inside a single State access.
func SyncAll(ctx context.Context, s *State, objects []*Object) error {
	if len(objects) == 0 {
		return nil
	}
	return s.Do(ctx, func(_ context.Context, w *World) error {
		for _, o := range objects {
			o.SynchronizeWith(w)
		}
		return nil
	})
}
