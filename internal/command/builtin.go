package command

import (
	"context"
	"strings"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/signalsfoundry/colosseum/internal/world"
)

// Built-in command names. Per-object commands append the object's
// upper-cased name, e.g. ADD_FORCE_TO_BALL.
const (
	AddForcePrefix = "ADD_FORCE_TO_"
	PosePrefix     = "POSE_OF_"
	TeleportPrefix = "TELEPORT_"
	TickCommand    = "TICK"
	CountCommand   = "BODY_COUNT"
)

// CommandSuffix turns an object name into the suffix used by per-object
// commands: upper case, with runs of non-alphanumerics collapsed to "_".
func CommandSuffix(name string) string {
	var b strings.Builder
	underscore := false
	for _, r := range strings.ToUpper(strings.TrimSpace(name)) {
		if (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
			underscore = false
			continue
		}
		if !underscore && b.Len() > 0 {
			b.WriteByte('_')
			underscore = true
		}
	}
	return strings.TrimSuffix(b.String(), "_")
}

// RegisterBuiltins binds the standard commands for every object that has a
// rigid body, plus the global TICK and BODY_COUNT commands. It returns the
// names it registered.
func RegisterBuiltins(reg *Registry, objects []*world.Object) []string {
	var names []string
	add := func(name string, fn Func) {
		reg.Register(name, fn)
		names = append(names, name)
	}

	for _, obj := range objects {
		if _, ok := obj.Body(); !ok {
			continue
		}
		suffix := CommandSuffix(obj.Name())
		if suffix == "" {
			continue
		}
		add(AddForcePrefix+suffix, addForce(obj))
		add(PosePrefix+suffix, poseOf(obj))
		add(TeleportPrefix+suffix, teleport(obj))
	}

	add(TickCommand, func(_ context.Context, w *world.World, _ []float32) ([]float32, bool) {
		return []float32{float32(w.Tick())}, true
	})
	add(CountCommand, func(_ context.Context, w *world.World, _ []float32) ([]float32, bool) {
		bodies, colliders := w.Counts()
		return []float32{float32(bodies), float32(colliders)}, true
	})
	return names
}

// addForce applies args[0:3] as an impulse to the object's body.
func addForce(obj *world.Object) Func {
	return func(_ context.Context, w *world.World, args []float32) ([]float32, bool) {
		h, _ := obj.Body()
		if b, ok := w.Bodies.Get(h); ok {
			b.ApplyImpulse(vec3(args))
		}
		return nil, false
	}
}

// poseOf replies with x y z qw qx qy qz.
func poseOf(obj *world.Object) Func {
	return func(_ context.Context, w *world.World, _ []float32) ([]float32, bool) {
		h, _ := obj.Body()
		b, ok := w.Bodies.Get(h)
		if !ok {
			return nil, false
		}
		p := b.Position()
		t, q := p.Translation, p.Rotation
		return []float32{t.X(), t.Y(), t.Z(), q.W, q.V.X(), q.V.Y(), q.V.Z()}, true
	}
}

// teleport moves the body to args[0:3] and stops it.
func teleport(obj *world.Object) Func {
	return func(_ context.Context, w *world.World, args []float32) ([]float32, bool) {
		h, _ := obj.Body()
		if b, ok := w.Bodies.Get(h); ok {
			b.SetTranslation(vec3(args))
			b.SetLinVel(mgl32.Vec3{})
			b.SetAngVel(mgl32.Vec3{})
		}
		return nil, false
	}
}

// vec3 pads short argument lists with zeros and ignores extras.
func vec3(args []float32) mgl32.Vec3 {
	var v mgl32.Vec3
	copy(v[:], args)
	return v
}
