// Package sim assembles a world from a scene description and drives the
// render, step and sync loop.
package sim

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/signalsfoundry/colosseum/internal/command"
	"github.com/signalsfoundry/colosseum/internal/config"
	"github.com/signalsfoundry/colosseum/internal/logging"
	"github.com/signalsfoundry/colosseum/internal/physics"
	"github.com/signalsfoundry/colosseum/internal/scene"
	"github.com/signalsfoundry/colosseum/internal/world"
)

// NewWorld returns an empty world using the scene's gravity and timestep.
func NewWorld(sc config.Scene) *world.World {
	params := physics.DefaultIntegrationParameters()
	if sc.Timestep > 0 {
		params.Dt = sc.Timestep
	}
	return world.NewWorld(
		world.WithGravity(vec3(sc.Gravity)),
		world.WithIntegrationParameters(params),
	)
}

// BuildScene creates a node on window and a collider, plus an optional body,
// in w for every object in sc. Objects with bodies must map to distinct
// command suffixes.
func BuildScene(window scene.Window, w *world.World, sc config.Scene) ([]*world.Object, error) {
	if err := sc.Validate(); err != nil {
		return nil, fmt.Errorf("invalid scene: %w", err)
	}

	owners := make(map[string]string)
	objects := make([]*world.Object, 0, len(sc.Objects))
	for _, spec := range sc.Objects {
		if spec.Body != nil {
			suffix := command.CommandSuffix(spec.Name)
			if suffix == "" {
				return nil, fmt.Errorf("object %q: name yields no command suffix", spec.Name)
			}
			if other, ok := owners[suffix]; ok {
				return nil, fmt.Errorf("objects %q and %q share command suffix %s", other, spec.Name, suffix)
			}
			owners[suffix] = spec.Name
		}

		node := window.AddNode(spec.Name, primitive(spec.Visual))
		styleNode(node, spec.Visual)

		var body *physics.RigidBody
		if spec.Body != nil {
			b := buildBody(*spec.Body)
			body = &b
		}
		obj, err := w.AddObjectFromParts(spec.Name, node, buildCollider(spec.Collider), body)
		if err != nil {
			return nil, fmt.Errorf("add object %q: %w", spec.Name, err)
		}
		obj.SynchronizeWith(w)
		objects = append(objects, obj)
	}
	return objects, nil
}

// Run renders frames until the window stops, stepping the world and
// synchronizing objects after each frame. It returns nil when the window or
// ctx ends the loop and the state's error otherwise.
func Run(ctx context.Context, window scene.Window, state *world.State, objects []*world.Object, log logging.Logger) error {
	if log == nil {
		log = logging.Noop()
	}
	log.Info(ctx, "simulation loop started", logging.Int("objects", len(objects)))

	for window.RenderFrame(ctx) {
		if err := state.Step(ctx); err != nil {
			return loopErr(ctx, "step", err)
		}
		if err := world.SyncAll(ctx, state, objects); err != nil {
			return loopErr(ctx, "sync", err)
		}
	}

	log.Info(ctx, "simulation loop stopped")
	return nil
}

func loopErr(ctx context.Context, stage string, err error) error {
	if ctx.Err() != nil && (errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) || errors.Is(err, world.ErrStateStopped)) {
		return nil
	}
	return fmt.Errorf("simulation %s: %w", stage, err)
}

func primitive(v config.VisualSpec) scene.Primitive {
	switch v.Shape {
	case config.ShapeQuad:
		return scene.Quad{Width: v.Width, Height: v.Height, WSubdivs: v.Subdivs[0], HSubdivs: v.Subdivs[1]}
	case config.ShapeCube:
		return scene.Cube{Width: v.Width, Height: v.Height, Depth: v.Depth}
	default:
		return scene.Capsule{Radius: v.Radius, Height: v.Height}
	}
}

func styleNode(n *scene.Node, v config.VisualSpec) {
	if c := v.Color; c != nil {
		n.SetColor(c[0], c[1], c[2])
	}
	if c := v.LinesColor; c != nil {
		n.SetLinesColor(&scene.Color{R: c[0], G: c[1], B: c[2]})
	}
	if v.LinesWidth > 0 {
		n.SetLinesWidth(v.LinesWidth)
	}
	if v.Surface != nil {
		n.SetSurfaceRendering(*v.Surface)
	}
	if q := v.Rotation; q != nil {
		n.SetLocalRotation(mgl32.Quat{W: q[0], V: mgl32.Vec3{q[1], q[2], q[3]}})
	}
}

func buildCollider(c config.ColliderSpec) physics.Collider {
	var b *physics.ColliderBuilder
	switch c.Shape {
	case config.ColliderCuboid:
		b = physics.CuboidCollider(c.HalfExtents[0], c.HalfExtents[1], c.HalfExtents[2])
	default:
		b = physics.BallCollider(c.Radius)
	}
	b = b.Translation(vec3(c.Translation))
	if c.Restitution != nil {
		b = b.Restitution(*c.Restitution)
	}
	if c.Friction != nil {
		b = b.Friction(*c.Friction)
	}
	if c.Density != nil {
		b = b.Density(*c.Density)
	}
	return b.Build()
}

func buildBody(s config.BodySpec) physics.RigidBody {
	b := physics.DynamicBody()
	if s.Type == config.BodyFixed {
		b = physics.FixedBody()
	}
	b = b.Translation(vec3(s.Translation)).LinVel(vec3(s.LinVel))
	if s.GravityScale != nil {
		b = b.GravityScale(*s.GravityScale)
	}
	return b.Build()
}

func vec3(v config.Vec3) mgl32.Vec3 { return mgl32.Vec3{v[0], v[1], v[2]} }
