package physics

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

// Shape is the geometry of a collider.
type Shape interface {
	// Volume is used with the collider density to derive mass.
	Volume() float32
	// inertiaPerMass returns the scalar moment of inertia of a unit mass.
	inertiaPerMass() float32
}

// Ball is a sphere centred on the collider origin.
type Ball struct {
	Radius float32
}

func (b Ball) Volume() float32 {
	return 4.0 / 3.0 * math.Pi * b.Radius * b.Radius * b.Radius
}

func (b Ball) inertiaPerMass() float32 { return 0.4 * b.Radius * b.Radius }

// Cuboid is a box described by its half extents.
type Cuboid struct {
	HalfExtents mgl32.Vec3
}

func (c Cuboid) Volume() float32 {
	return 8 * c.HalfExtents.X() * c.HalfExtents.Y() * c.HalfExtents.Z()
}

func (c Cuboid) inertiaPerMass() float32 {
	// Mean of the three principal moments of a solid box.
	return 2.0 / 9.0 * c.HalfExtents.LenSqr()
}

// Collider attaches a shape to a body, or to the world when it has no parent.
type Collider struct {
	shape       Shape
	local       Isometry
	restitution float32
	friction    float32
	density     float32

	parent    RigidBodyHandle
	hasParent bool
}

// Shape returns the collider geometry.
func (c *Collider) Shape() Shape { return c.shape }

// Parent returns the body the collider is attached to, if any.
func (c *Collider) Parent() (RigidBodyHandle, bool) { return c.parent, c.hasParent }

// Restitution returns the bounciness coefficient.
func (c *Collider) Restitution() float32 { return c.restitution }

// Friction returns the Coulomb friction coefficient.
func (c *Collider) Friction() float32 { return c.friction }

// Mass returns density * volume.
func (c *Collider) Mass() float32 { return c.density * c.shape.Volume() }

// LocalPosition returns the pose relative to the parent body (or the world).
func (c *Collider) LocalPosition() Isometry { return c.local }

func (c *Collider) inertia() float32 {
	m := c.Mass()
	// Parallel axis shift for colliders offset from the body origin.
	return m*c.shape.inertiaPerMass() + m*c.local.Translation.LenSqr()
}

// ColliderBuilder assembles a Collider.
type ColliderBuilder struct {
	collider Collider
}

// BallCollider starts a builder for a sphere of the given radius.
func BallCollider(radius float32) *ColliderBuilder {
	return newColliderBuilder(Ball{Radius: radius})
}

// CuboidCollider starts a builder for a box with the given half extents.
func CuboidCollider(hx, hy, hz float32) *ColliderBuilder {
	return newColliderBuilder(Cuboid{HalfExtents: mgl32.Vec3{hx, hy, hz}})
}

func newColliderBuilder(s Shape) *ColliderBuilder {
	return &ColliderBuilder{collider: Collider{
		shape:    s,
		local:    IdentityIsometry(),
		friction: 0.5,
		density:  1,
	}}
}

// Translation offsets the collider from its parent (or places it in the world).
func (cb *ColliderBuilder) Translation(t mgl32.Vec3) *ColliderBuilder {
	cb.collider.local.Translation = t
	return cb
}

// Rotation orients the collider relative to its parent.
func (cb *ColliderBuilder) Rotation(q mgl32.Quat) *ColliderBuilder {
	cb.collider.local.Rotation = q.Normalize()
	return cb
}

// Restitution sets the bounciness coefficient.
func (cb *ColliderBuilder) Restitution(r float32) *ColliderBuilder {
	cb.collider.restitution = r
	return cb
}

// Friction sets the Coulomb friction coefficient.
func (cb *ColliderBuilder) Friction(f float32) *ColliderBuilder {
	cb.collider.friction = f
	return cb
}

// Density sets the mass per unit volume.
func (cb *ColliderBuilder) Density(d float32) *ColliderBuilder {
	cb.collider.density = d
	return cb
}

// Build returns the configured collider.
func (cb *ColliderBuilder) Build() Collider {
	return cb.collider
}
