package physics

import (
	"github.com/go-gl/mathgl/mgl32"
)

// BodyType selects how the pipeline treats a rigid body.
type BodyType int

const (
	// Dynamic bodies are moved by gravity, impulses and contacts.
	Dynamic BodyType = iota
	// Fixed bodies never move.
	Fixed
)

func (t BodyType) String() string {
	switch t {
	case Dynamic:
		return "dynamic"
	case Fixed:
		return "fixed"
	default:
		return "unknown"
	}
}

// Isometry is a rigid transform: rotation followed by translation.
type Isometry struct {
	Translation mgl32.Vec3
	Rotation    mgl32.Quat
}

// IdentityIsometry returns the transform that leaves points unchanged.
func IdentityIsometry() Isometry {
	return Isometry{Rotation: mgl32.QuatIdent()}
}

// TransformPoint maps p from local into parent space.
func (iso Isometry) TransformPoint(p mgl32.Vec3) mgl32.Vec3 {
	return iso.Rotation.Rotate(p).Add(iso.Translation)
}

// InverseTransformPoint maps p from parent into local space.
func (iso Isometry) InverseTransformPoint(p mgl32.Vec3) mgl32.Vec3 {
	return iso.Rotation.Conjugate().Rotate(p.Sub(iso.Translation))
}

// Mul composes iso with a child isometry expressed in iso's local frame.
func (iso Isometry) Mul(child Isometry) Isometry {
	return Isometry{
		Translation: iso.TransformPoint(child.Translation),
		Rotation:    iso.Rotation.Mul(child.Rotation).Normalize(),
	}
}

// RigidBody carries the kinematic state of one simulated body. Pointers
// obtained from a RigidBodySet are only valid while the owning world is held.
type RigidBody struct {
	bodyType BodyType
	position Isometry
	linvel   mgl32.Vec3
	angvel   mgl32.Vec3

	mass       float32
	invMass    float32
	inertia    float32
	invInertia float32

	linearDamping  float32
	angularDamping float32
	gravityScale   float32

	colliders []ColliderHandle
}

// BodyType reports whether the body is dynamic or fixed.
func (b *RigidBody) BodyType() BodyType { return b.bodyType }

// IsDynamic reports whether the body responds to forces.
func (b *RigidBody) IsDynamic() bool { return b.bodyType == Dynamic }

// Position returns the body's world pose.
func (b *RigidBody) Position() Isometry { return b.position }

// Translation returns the body's world position.
func (b *RigidBody) Translation() mgl32.Vec3 { return b.position.Translation }

// Rotation returns the body's world orientation.
func (b *RigidBody) Rotation() mgl32.Quat { return b.position.Rotation }

// LinVel returns the linear velocity.
func (b *RigidBody) LinVel() mgl32.Vec3 { return b.linvel }

// AngVel returns the angular velocity.
func (b *RigidBody) AngVel() mgl32.Vec3 { return b.angvel }

// Mass returns the body's mass, derived from its attached colliders.
func (b *RigidBody) Mass() float32 { return b.mass }

// Colliders lists the colliders attached to the body.
func (b *RigidBody) Colliders() []ColliderHandle {
	out := make([]ColliderHandle, len(b.colliders))
	copy(out, b.colliders)
	return out
}

// SetTranslation teleports the body.
func (b *RigidBody) SetTranslation(t mgl32.Vec3) { b.position.Translation = t }

// SetRotation sets the body's orientation.
func (b *RigidBody) SetRotation(q mgl32.Quat) { b.position.Rotation = q.Normalize() }

// SetLinVel overrides the linear velocity of a dynamic body.
func (b *RigidBody) SetLinVel(v mgl32.Vec3) {
	if b.IsDynamic() {
		b.linvel = v
	}
}

// SetAngVel overrides the angular velocity of a dynamic body.
func (b *RigidBody) SetAngVel(w mgl32.Vec3) {
	if b.IsDynamic() {
		b.angvel = w
	}
}

// ApplyImpulse changes the linear momentum of a dynamic body by impulse.
// Bodies without mass ignore impulses.
func (b *RigidBody) ApplyImpulse(impulse mgl32.Vec3) {
	if !b.IsDynamic() {
		return
	}
	b.linvel = b.linvel.Add(impulse.Mul(b.invMass))
}

// ApplyTorqueImpulse changes the angular momentum of a dynamic body.
func (b *RigidBody) ApplyTorqueImpulse(torque mgl32.Vec3) {
	if !b.IsDynamic() {
		return
	}
	b.angvel = b.angvel.Add(torque.Mul(b.invInertia))
}

func (b *RigidBody) addMassProperties(mass, inertia float32) {
	b.mass += mass
	b.inertia += inertia
	b.refreshInverse()
}

func (b *RigidBody) removeMassProperties(mass, inertia float32) {
	b.mass -= mass
	b.inertia -= inertia
	if b.mass < 0 {
		b.mass = 0
	}
	if b.inertia < 0 {
		b.inertia = 0
	}
	b.refreshInverse()
}

func (b *RigidBody) refreshInverse() {
	b.invMass, b.invInertia = 0, 0
	if !b.IsDynamic() {
		return
	}
	if b.mass > 0 {
		b.invMass = 1 / b.mass
	}
	if b.inertia > 0 {
		b.invInertia = 1 / b.inertia
	}
}

// RigidBodyBuilder assembles a RigidBody.
type RigidBodyBuilder struct {
	body RigidBody
}

// DynamicBody starts a builder for a body moved by the simulation.
func DynamicBody() *RigidBodyBuilder { return newBodyBuilder(Dynamic) }

// FixedBody starts a builder for an immovable body.
func FixedBody() *RigidBodyBuilder { return newBodyBuilder(Fixed) }

func newBodyBuilder(t BodyType) *RigidBodyBuilder {
	return &RigidBodyBuilder{body: RigidBody{
		bodyType:     t,
		position:     IdentityIsometry(),
		gravityScale: 1,
	}}
}

// Translation sets the initial world position.
func (bb *RigidBodyBuilder) Translation(t mgl32.Vec3) *RigidBodyBuilder {
	bb.body.position.Translation = t
	return bb
}

// Rotation sets the initial orientation.
func (bb *RigidBodyBuilder) Rotation(q mgl32.Quat) *RigidBodyBuilder {
	bb.body.position.Rotation = q.Normalize()
	return bb
}

// LinVel sets the initial linear velocity.
func (bb *RigidBodyBuilder) LinVel(v mgl32.Vec3) *RigidBodyBuilder {
	bb.body.linvel = v
	return bb
}

// LinearDamping sets the linear velocity damping coefficient.
func (bb *RigidBodyBuilder) LinearDamping(d float32) *RigidBodyBuilder {
	bb.body.linearDamping = d
	return bb
}

// AngularDamping sets the angular velocity damping coefficient.
func (bb *RigidBodyBuilder) AngularDamping(d float32) *RigidBodyBuilder {
	bb.body.angularDamping = d
	return bb
}

// GravityScale multiplies the world gravity for this body.
func (bb *RigidBodyBuilder) GravityScale(s float32) *RigidBodyBuilder {
	bb.body.gravityScale = s
	return bb
}

// Build returns the configured body. Mass is accumulated when colliders are
// attached through ColliderSet.InsertWithParent.
func (bb *RigidBodyBuilder) Build() RigidBody {
	b := bb.body
	b.colliders = nil
	if !b.IsDynamic() {
		b.linvel, b.angvel = mgl32.Vec3{}, mgl32.Vec3{}
	}
	return b
}
