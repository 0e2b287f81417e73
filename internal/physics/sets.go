package physics

import "fmt"

// RigidBodySet owns rigid bodies and hands out stable handles.
type RigidBodySet struct {
	bodies arena[RigidBody]
}

// NewRigidBodySet returns an empty set.
func NewRigidBodySet() *RigidBodySet { return &RigidBodySet{} }

// Insert stores b and returns its handle.
func (s *RigidBodySet) Insert(b RigidBody) RigidBodyHandle {
	return RigidBodyHandle(s.bodies.insert(b))
}

// Get resolves h. The pointer must not be retained past the current world
// access.
func (s *RigidBodySet) Get(h RigidBodyHandle) (*RigidBody, bool) {
	return s.bodies.get(Handle(h))
}

// Remove deletes the body and every collider attached to it.
func (s *RigidBodySet) Remove(h RigidBodyHandle, colliders *ColliderSet) (RigidBody, bool) {
	b, ok := s.bodies.remove(Handle(h))
	if !ok {
		return RigidBody{}, false
	}
	if colliders != nil {
		for _, ch := range b.colliders {
			colliders.colliders.remove(Handle(ch))
		}
	}
	out := *b
	out.colliders = nil
	return out, true
}

// Len returns the number of live bodies.
func (s *RigidBodySet) Len() int { return s.bodies.live }

// Each calls fn for every live body in index order.
func (s *RigidBodySet) Each(fn func(RigidBodyHandle, *RigidBody)) {
	s.bodies.each(func(h Handle, b *RigidBody) { fn(RigidBodyHandle(h), b) })
}

// ColliderSet owns colliders and hands out stable handles.
type ColliderSet struct {
	colliders arena[Collider]
}

// NewColliderSet returns an empty set.
func NewColliderSet() *ColliderSet { return &ColliderSet{} }

// Insert stores a world-anchored collider.
func (s *ColliderSet) Insert(c Collider) ColliderHandle {
	c.hasParent = false
	c.parent = RigidBodyHandle{}
	return ColliderHandle(s.colliders.insert(c))
}

// InsertWithParent attaches c to the body identified by parent and folds the
// collider mass into the body.
func (s *ColliderSet) InsertWithParent(c Collider, parent RigidBodyHandle, bodies *RigidBodySet) (ColliderHandle, error) {
	body, ok := bodies.Get(parent)
	if !ok {
		return ColliderHandle{}, fmt.Errorf("attach collider to %s: %w", parent, ErrInvalidHandle)
	}
	c.parent = parent
	c.hasParent = true
	h := ColliderHandle(s.colliders.insert(c))
	body.colliders = append(body.colliders, h)
	body.addMassProperties(c.Mass(), c.inertia())
	return h, nil
}

// Get resolves h. The pointer must not be retained past the current world
// access.
func (s *ColliderSet) Get(h ColliderHandle) (*Collider, bool) {
	return s.colliders.get(Handle(h))
}

// Remove deletes a collider and detaches it from its parent body.
func (s *ColliderSet) Remove(h ColliderHandle, bodies *RigidBodySet) (Collider, bool) {
	c, ok := s.colliders.remove(Handle(h))
	if !ok {
		return Collider{}, false
	}
	if c.hasParent && bodies != nil {
		if body, ok := bodies.Get(c.parent); ok {
			for i, attached := range body.colliders {
				if attached == h {
					body.colliders = append(body.colliders[:i], body.colliders[i+1:]...)
					break
				}
			}
			body.removeMassProperties(c.Mass(), c.inertia())
		}
	}
	return *c, true
}

// Len returns the number of live colliders.
func (s *ColliderSet) Len() int { return s.colliders.live }

// Each calls fn for every live collider in index order.
func (s *ColliderSet) Each(fn func(ColliderHandle, *Collider)) {
	s.colliders.each(func(h Handle, c *Collider) { fn(ColliderHandle(h), c) })
}
