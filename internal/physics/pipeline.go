package physics

import (
	"github.com/go-gl/mathgl/mgl32"
)

// DefaultGravity is the standard downward acceleration in metres per second squared.
var DefaultGravity = mgl32.Vec3{0, -9.81, 0}

// IntegrationParameters are the fixed constants of one tick.
type IntegrationParameters struct {
	// Dt is the tick length in seconds.
	Dt float32
	// AllowedPenetration is left uncorrected to keep resting contacts stable.
	AllowedPenetration float32
	// ErrorReduction is the fraction of the remaining penetration removed per tick.
	ErrorReduction float32
	// RestitutionThreshold is the approach speed below which contacts do not bounce.
	RestitutionThreshold float32
}

// DefaultIntegrationParameters returns a 60 Hz configuration.
func DefaultIntegrationParameters() IntegrationParameters {
	return IntegrationParameters{
		Dt:                   1.0 / 60.0,
		AllowedPenetration:   0.001,
		ErrorReduction:       0.8,
		RestitutionThreshold: 0.5,
	}
}

type posedCollider struct {
	collider *Collider
	body     *RigidBody
	pose     Isometry
}

type contact struct {
	a, b        *RigidBody
	normal      mgl32.Vec3 // from a towards b
	depth       float32
	point       mgl32.Vec3
	restitution float32
	friction    float32
}

// Pipeline advances bodies and resolves contacts. It keeps scratch buffers
// between ticks and is not safe for concurrent use.
type Pipeline struct {
	posed    []posedCollider
	contacts []contact
}

// NewPipeline returns a ready pipeline.
func NewPipeline() *Pipeline { return &Pipeline{} }

// Step advances every dynamic body by one tick of params.Dt. Only ball/ball
// and ball/cuboid pairs generate contacts.
func (p *Pipeline) Step(gravity mgl32.Vec3, params IntegrationParameters, bodies *RigidBodySet, colliders *ColliderSet) {
	dt := params.Dt
	if dt <= 0 || bodies == nil || colliders == nil {
		return
	}

	bodies.Each(func(_ RigidBodyHandle, b *RigidBody) {
		if !b.IsDynamic() {
			return
		}
		b.linvel = b.linvel.Add(gravity.Mul(b.gravityScale * dt))
		if b.linearDamping > 0 {
			b.linvel = b.linvel.Mul(1 / (1 + dt*b.linearDamping))
		}
		if b.angularDamping > 0 {
			b.angvel = b.angvel.Mul(1 / (1 + dt*b.angularDamping))
		}
	})

	p.detectContacts(bodies, colliders)
	for i := range p.contacts {
		solveVelocity(&p.contacts[i], params)
	}
	for i := range p.contacts {
		correctPosition(&p.contacts[i], params)
	}

	bodies.Each(func(_ RigidBodyHandle, b *RigidBody) {
		if !b.IsDynamic() {
			return
		}
		b.position.Translation = b.position.Translation.Add(b.linvel.Mul(dt))
		if b.angvel.LenSqr() > 0 {
			q := b.position.Rotation
			spin := mgl32.Quat{W: 0, V: b.angvel}.Mul(q).Scale(0.5 * dt)
			b.position.Rotation = q.Add(spin).Normalize()
		}
	})
}

func (p *Pipeline) detectContacts(bodies *RigidBodySet, colliders *ColliderSet) {
	p.posed = p.posed[:0]
	p.contacts = p.contacts[:0]

	colliders.Each(func(_ ColliderHandle, c *Collider) {
		pc := posedCollider{collider: c, pose: c.local}
		if parent, ok := c.Parent(); ok {
			body, ok := bodies.Get(parent)
			if !ok {
				return
			}
			pc.body = body
			pc.pose = body.position.Mul(c.local)
		}
		p.posed = append(p.posed, pc)
	})

	for i := 0; i < len(p.posed); i++ {
		for j := i + 1; j < len(p.posed); j++ {
			a, b := p.posed[i], p.posed[j]
			if a.body != nil && a.body == b.body {
				continue
			}
			if !isDynamic(a.body) && !isDynamic(b.body) {
				continue
			}
			if c, ok := collide(a, b); ok {
				p.contacts = append(p.contacts, c)
			}
		}
	}
}

func collide(a, b posedCollider) (contact, bool) {
	c := contact{
		a:           a.body,
		b:           b.body,
		restitution: (a.collider.restitution + b.collider.restitution) / 2,
		friction:    (a.collider.friction + b.collider.friction) / 2,
	}

	switch sa := a.collider.shape.(type) {
	case Ball:
		switch sb := b.collider.shape.(type) {
		case Ball:
			return ballBall(c, a.pose.Translation, sa.Radius, b.pose.Translation, sb.Radius)
		case Cuboid:
			n, depth, point, ok := ballCuboid(a.pose.Translation, sa.Radius, b.pose, sb.HalfExtents)
			if !ok {
				return contact{}, false
			}
			// ballCuboid's normal points from the box to the ball.
			c.normal, c.depth, c.point = n.Mul(-1), depth, point
			return c, true
		}
	case Cuboid:
		if sb, ok := b.collider.shape.(Ball); ok {
			n, depth, point, ok := ballCuboid(b.pose.Translation, sb.Radius, a.pose, sa.HalfExtents)
			if !ok {
				return contact{}, false
			}
			c.normal, c.depth, c.point = n, depth, point
			return c, true
		}
	}
	return contact{}, false
}

func ballBall(c contact, ca mgl32.Vec3, ra float32, cb mgl32.Vec3, rb float32) (contact, bool) {
	d := cb.Sub(ca)
	dist := d.Len()
	if dist >= ra+rb {
		return contact{}, false
	}
	n := mgl32.Vec3{0, 1, 0}
	if dist > 1e-6 {
		n = d.Mul(1 / dist)
	}
	c.normal = n
	c.depth = ra + rb - dist
	c.point = ca.Add(n.Mul(ra))
	return c, true
}

// ballCuboid returns the contact normal pointing from the box towards the
// ball centre, the penetration depth and the contact point on the box.
func ballCuboid(center mgl32.Vec3, radius float32, box Isometry, half mgl32.Vec3) (mgl32.Vec3, float32, mgl32.Vec3, bool) {
	local := box.InverseTransformPoint(center)
	clamped := mgl32.Vec3{
		mgl32.Clamp(local.X(), -half.X(), half.X()),
		mgl32.Clamp(local.Y(), -half.Y(), half.Y()),
		mgl32.Clamp(local.Z(), -half.Z(), half.Z()),
	}

	var (
		nLocal     mgl32.Vec3
		depth      float32
		pointLocal mgl32.Vec3
	)
	if diff := local.Sub(clamped); diff.LenSqr() > 0 {
		dist := diff.Len()
		if dist >= radius {
			return mgl32.Vec3{}, 0, mgl32.Vec3{}, false
		}
		nLocal = diff.Mul(1 / dist)
		depth = radius - dist
		pointLocal = clamped
	} else {
		// Centre inside the box: push out through the nearest face.
		axis := 0
		best := half[0] - abs32(local[0])
		for i := 1; i < 3; i++ {
			if d := half[i] - abs32(local[i]); d < best {
				axis, best = i, d
			}
		}
		sign := float32(1)
		if local[axis] < 0 {
			sign = -1
		}
		nLocal[axis] = sign
		depth = radius + best
		pointLocal = local
		pointLocal[axis] = sign * half[axis]
	}
	return box.Rotation.Rotate(nLocal), depth, box.TransformPoint(pointLocal), true
}

func solveVelocity(c *contact, params IntegrationParameters) {
	ra := leverArm(c.a, c.point)
	rb := leverArm(c.b, c.point)

	rv := velocityAt(c.b, rb).Sub(velocityAt(c.a, ra))
	vn := rv.Dot(c.normal)
	if vn >= 0 {
		return
	}

	k := effectiveMass(c.a, ra, c.normal) + effectiveMass(c.b, rb, c.normal)
	if k == 0 {
		return
	}
	e := c.restitution
	if -vn < params.RestitutionThreshold {
		e = 0
	}
	j := -(1 + e) * vn / k
	impulse := c.normal.Mul(j)
	applyImpulseAt(c.a, impulse.Mul(-1), ra)
	applyImpulseAt(c.b, impulse, rb)

	rv = velocityAt(c.b, rb).Sub(velocityAt(c.a, ra))
	tangent := rv.Sub(c.normal.Mul(rv.Dot(c.normal)))
	tl := tangent.Len()
	if tl < 1e-6 {
		return
	}
	t := tangent.Mul(1 / tl)
	kt := effectiveMass(c.a, ra, t) + effectiveMass(c.b, rb, t)
	if kt == 0 {
		return
	}
	maxFriction := c.friction * j
	jt := mgl32.Clamp(-rv.Dot(t)/kt, -maxFriction, maxFriction)
	frictionImpulse := t.Mul(jt)
	applyImpulseAt(c.a, frictionImpulse.Mul(-1), ra)
	applyImpulseAt(c.b, frictionImpulse, rb)
}

func correctPosition(c *contact, params IntegrationParameters) {
	excess := c.depth - params.AllowedPenetration
	if excess <= 0 {
		return
	}
	ia, ib := invMass(c.a), invMass(c.b)
	if ia+ib == 0 {
		return
	}
	corr := excess * params.ErrorReduction / (ia + ib)
	if ia > 0 {
		c.a.position.Translation = c.a.position.Translation.Sub(c.normal.Mul(corr * ia))
	}
	if ib > 0 {
		c.b.position.Translation = c.b.position.Translation.Add(c.normal.Mul(corr * ib))
	}
}

func isDynamic(b *RigidBody) bool { return b != nil && b.IsDynamic() }

func invMass(b *RigidBody) float32 {
	if !isDynamic(b) {
		return 0
	}
	return b.invMass
}

func leverArm(b *RigidBody, point mgl32.Vec3) mgl32.Vec3 {
	if b == nil {
		return mgl32.Vec3{}
	}
	return point.Sub(b.position.Translation)
}

func velocityAt(b *RigidBody, r mgl32.Vec3) mgl32.Vec3 {
	if !isDynamic(b) {
		return mgl32.Vec3{}
	}
	return b.linvel.Add(b.angvel.Cross(r))
}

func effectiveMass(b *RigidBody, r, dir mgl32.Vec3) float32 {
	if !isDynamic(b) {
		return 0
	}
	return b.invMass + b.invInertia*r.Cross(dir).LenSqr()
}

func applyImpulseAt(b *RigidBody, impulse, r mgl32.Vec3) {
	if !isDynamic(b) {
		return
	}
	b.linvel = b.linvel.Add(impulse.Mul(b.invMass))
	b.angvel = b.angvel.Add(r.Cross(impulse).Mul(b.invInertia))
}

func abs32(v float32) float32 {
	if v < 0 {
		return -v
	}
	return v
}
