package physics

import (
	"errors"
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
)

func newGroundAndBall(t *testing.T) (*RigidBodySet, *ColliderSet, RigidBodyHandle) {
	t.Helper()
	bodies := NewRigidBodySet()
	colliders := NewColliderSet()

	colliders.Insert(CuboidCollider(5, 1, 5).Translation(mgl32.Vec3{0, -1, 0}).Build())

	ball := bodies.Insert(DynamicBody().Translation(mgl32.Vec3{0, 3, 0}).Build())
	if _, err := colliders.InsertWithParent(BallCollider(0.05).Restitution(0.7).Build(), ball, bodies); err != nil {
		t.Fatalf("InsertWithParent: %v", err)
	}
	return bodies, colliders, ball
}

func TestFreeFallMatchesGravity(t *testing.T) {
	bodies := NewRigidBodySet()
	colliders := NewColliderSet()
	h := bodies.Insert(DynamicBody().Translation(mgl32.Vec3{0, 100, 0}).Build())
	if _, err := colliders.InsertWithParent(BallCollider(0.5).Build(), h, bodies); err != nil {
		t.Fatalf("InsertWithParent: %v", err)
	}

	params := DefaultIntegrationParameters()
	pipeline := NewPipeline()
	for i := 0; i < 60; i++ {
		pipeline.Step(DefaultGravity, params, bodies, colliders)
	}

	b, ok := bodies.Get(h)
	if !ok {
		t.Fatalf("body handle no longer resolves")
	}
	if vy := b.LinVel().Y(); math.Abs(float64(vy+9.81)) > 1e-3 {
		t.Fatalf("vy after 1s = %v, want about -9.81", vy)
	}
	if y := b.Translation().Y(); y > 96 || y < 94.5 {
		t.Fatalf("y after 1s = %v, want about 95.1", y)
	}
}

func TestBallSettlesOnGround(t *testing.T) {
	bodies, colliders, ball := newGroundAndBall(t)

	params := DefaultIntegrationParameters()
	pipeline := NewPipeline()
	for i := 0; i < 600; i++ {
		pipeline.Step(DefaultGravity, params, bodies, colliders)
	}

	b, _ := bodies.Get(ball)
	y := b.Translation().Y()
	if y < 0 || y > 0.2 {
		t.Fatalf("ball resting height = %v, want just above the ground top (0.05)", y)
	}
}

func TestBallBouncesOffGround(t *testing.T) {
	bodies, colliders, ball := newGroundAndBall(t)

	params := DefaultIntegrationParameters()
	pipeline := NewPipeline()
	sawUpward := false
	for i := 0; i < 240; i++ {
		pipeline.Step(DefaultGravity, params, bodies, colliders)
		b, _ := bodies.Get(ball)
		if b.LinVel().Y() > 1 {
			sawUpward = true
			break
		}
	}
	if !sawUpward {
		t.Fatalf("expected the restitution of the ball to produce an upward bounce")
	}
}

func TestApplyImpulseScalesByMass(t *testing.T) {
	bodies := NewRigidBodySet()
	colliders := NewColliderSet()
	h := bodies.Insert(DynamicBody().Build())
	if _, err := colliders.InsertWithParent(CuboidCollider(0.5, 0.5, 0.5).Density(2).Build(), h, bodies); err != nil {
		t.Fatalf("InsertWithParent: %v", err)
	}

	b, _ := bodies.Get(h)
	if got := b.Mass(); math.Abs(float64(got-2)) > 1e-5 {
		t.Fatalf("mass = %v, want 2", got)
	}
	b.ApplyImpulse(mgl32.Vec3{1, 2, 3})
	want := mgl32.Vec3{0.5, 1, 1.5}
	if !b.LinVel().ApproxEqual(want) {
		t.Fatalf("linvel = %v, want %v", b.LinVel(), want)
	}
}

func TestFixedBodyIgnoresImpulsesAndGravity(t *testing.T) {
	bodies := NewRigidBodySet()
	colliders := NewColliderSet()
	h := bodies.Insert(FixedBody().Translation(mgl32.Vec3{1, 2, 3}).Build())
	if _, err := colliders.InsertWithParent(BallCollider(1).Build(), h, bodies); err != nil {
		t.Fatalf("InsertWithParent: %v", err)
	}

	b, _ := bodies.Get(h)
	b.ApplyImpulse(mgl32.Vec3{10, 10, 10})
	NewPipeline().Step(DefaultGravity, DefaultIntegrationParameters(), bodies, colliders)

	if !b.Translation().ApproxEqual(mgl32.Vec3{1, 2, 3}) {
		t.Fatalf("fixed body moved to %v", b.Translation())
	}
	if b.LinVel() != (mgl32.Vec3{}) {
		t.Fatalf("fixed body velocity = %v, want zero", b.LinVel())
	}
}

func TestRemovedHandleDoesNotAliasNewBody(t *testing.T) {
	bodies := NewRigidBodySet()
	colliders := NewColliderSet()

	first := bodies.Insert(DynamicBody().Build())
	ch, err := colliders.InsertWithParent(BallCollider(1).Build(), first, bodies)
	if err != nil {
		t.Fatalf("InsertWithParent: %v", err)
	}

	if _, ok := bodies.Remove(first, colliders); !ok {
		t.Fatalf("Remove returned ok=false")
	}
	if _, ok := colliders.Get(ch); ok {
		t.Fatalf("attached collider survived body removal")
	}

	second := bodies.Insert(DynamicBody().Build())
	if second.Index != first.Index {
		t.Fatalf("expected slot reuse, got index %d want %d", second.Index, first.Index)
	}
	if _, ok := bodies.Get(first); ok {
		t.Fatalf("stale handle %v resolved after slot reuse", first)
	}
	if bodies.Len() != 1 || colliders.Len() != 0 {
		t.Fatalf("Len = (%d, %d), want (1, 0)", bodies.Len(), colliders.Len())
	}
}

func TestInsertWithParentRejectsUnknownBody(t *testing.T) {
	bodies := NewRigidBodySet()
	colliders := NewColliderSet()

	_, err := colliders.InsertWithParent(BallCollider(1).Build(), RigidBodyHandle{}, bodies)
	if !errors.Is(err, ErrInvalidHandle) {
		t.Fatalf("err = %v, want ErrInvalidHandle", err)
	}
	if colliders.Len() != 0 {
		t.Fatalf("collider inserted despite error")
	}
}

func TestBallsCollideAndSeparate(t *testing.T) {
	bodies := NewRigidBodySet()
	colliders := NewColliderSet()

	left := bodies.Insert(DynamicBody().Translation(mgl32.Vec3{-1, 0, 0}).LinVel(mgl32.Vec3{2, 0, 0}).GravityScale(0).Build())
	right := bodies.Insert(DynamicBody().Translation(mgl32.Vec3{1, 0, 0}).LinVel(mgl32.Vec3{-2, 0, 0}).GravityScale(0).Build())
	for _, h := range []RigidBodyHandle{left, right} {
		if _, err := colliders.InsertWithParent(BallCollider(0.5).Restitution(1).Friction(0).Build(), h, bodies); err != nil {
			t.Fatalf("InsertWithParent: %v", err)
		}
	}

	pipeline := NewPipeline()
	for i := 0; i < 60; i++ {
		pipeline.Step(DefaultGravity, DefaultIntegrationParameters(), bodies, colliders)
	}

	l, _ := bodies.Get(left)
	r, _ := bodies.Get(right)
	if l.LinVel().X() >= 0 || r.LinVel().X() <= 0 {
		t.Fatalf("expected balls to rebound, got vl=%v vr=%v", l.LinVel(), r.LinVel())
	}
	if gap := r.Translation().X() - l.Translation().X(); gap < 1 {
		t.Fatalf("balls interpenetrate: centre gap %v < 1", gap)
	}
}
