package config

import (
	"errors"
	"fmt"
	"math"
	"os"

	"gopkg.in/yaml.v3"
)

// Visual primitive kinds.
const (
	ShapeQuad    = "quad"
	ShapeCapsule = "capsule"
	ShapeCube    = "cube"
)

// Collider shape kinds.
const (
	ColliderBall   = "ball"
	ColliderCuboid = "cuboid"
)

// Body kinds.
const (
	BodyDynamic = "dynamic"
	BodyFixed   = "fixed"
)

// Vec3 is an x, y, z triple.
type Vec3 [3]float32

// Quat is a rotation written w, x, y, z.
type Quat [4]float32

// Scene describes the initial world: physics constants and the objects
// placed in it.
type Scene struct {
	Gravity  Vec3         `yaml:"gravity"`
	Timestep float32      `yaml:"timestep"`
	Objects  []ObjectSpec `yaml:"objects"`
}

// ObjectSpec is one simulation object: a visual node, a collider and an
// optional rigid body.
type ObjectSpec struct {
	Name     string       `yaml:"name"`
	Visual   VisualSpec   `yaml:"visual"`
	Collider ColliderSpec `yaml:"collider"`
	Body     *BodySpec    `yaml:"body,omitempty"`
}

// VisualSpec describes the scene node.
type VisualSpec struct {
	Shape      string  `yaml:"shape"`
	Width      float32 `yaml:"width,omitempty"`
	Height     float32 `yaml:"height,omitempty"`
	Depth      float32 `yaml:"depth,omitempty"`
	Radius     float32 `yaml:"radius,omitempty"`
	Subdivs    [2]int  `yaml:"subdivisions,omitempty"`
	Color      *Vec3   `yaml:"color,omitempty"`
	LinesColor *Vec3   `yaml:"lines_color,omitempty"`
	LinesWidth float32 `yaml:"lines_width,omitempty"`
	Surface    *bool   `yaml:"surface,omitempty"`
	Rotation   *Quat   `yaml:"rotation,omitempty"`
}

// ColliderSpec describes the collision shape and its material.
type ColliderSpec struct {
	Shape       string   `yaml:"shape"`
	Radius      float32  `yaml:"radius,omitempty"`
	HalfExtents Vec3     `yaml:"half_extents,omitempty"`
	Translation Vec3     `yaml:"translation,omitempty"`
	Restitution *float32 `yaml:"restitution,omitempty"`
	Friction    *float32 `yaml:"friction,omitempty"`
	Density     *float32 `yaml:"density,omitempty"`
}

// BodySpec describes a rigid body.
type BodySpec struct {
	Type         string   `yaml:"type"`
	Translation  Vec3     `yaml:"translation,omitempty"`
	LinVel       Vec3     `yaml:"linvel,omitempty"`
	GravityScale *float32 `yaml:"gravity_scale,omitempty"`
}

// DefaultScene is the stock arena: a wireframe ground slab and a red ball
// dropped from three metres.
func DefaultScene() Scene {
	half := float32(math.Sqrt2 / 2)
	surface := false
	restitution := float32(0.7)
	return Scene{
		Gravity:  Vec3{0, -9.81, 0},
		Timestep: 1.0 / 60.0,
		Objects: []ObjectSpec{
			{
				Name: "ground",
				Visual: VisualSpec{
					Shape:      ShapeQuad,
					Width:      5,
					Height:     5,
					Subdivs:    [2]int{50, 50},
					LinesColor: &Vec3{0, 1, 0},
					LinesWidth: 1,
					Surface:    &surface,
					Rotation:   &Quat{half, half, 0, 0},
				},
				Collider: ColliderSpec{
					Shape:       ColliderCuboid,
					HalfExtents: Vec3{5, 1, 5},
					Translation: Vec3{0, -1, 0},
				},
			},
			{
				Name: "ball",
				Visual: VisualSpec{
					Shape:  ShapeCapsule,
					Radius: 0.05,
					Height: 0,
					Color:  &Vec3{1, 0, 0},
				},
				Collider: ColliderSpec{
					Shape:       ColliderBall,
					Radius:      0.05,
					Restitution: &restitution,
				},
				Body: &BodySpec{
					Type:        BodyDynamic,
					Translation: Vec3{0, 3, 0},
				},
			},
		},
	}
}

// LoadScene reads a YAML scene file. Gravity and timestep default to the
// stock scene's values when omitted.
func LoadScene(path string) (Scene, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Scene{}, fmt.Errorf("read scene: %w", err)
	}
	return ParseScene(data)
}

// ParseScene decodes and validates a YAML scene document.
func ParseScene(data []byte) (Scene, error) {
	defaults := DefaultScene()
	sc := Scene{Gravity: defaults.Gravity, Timestep: defaults.Timestep}
	if err := yaml.Unmarshal(data, &sc); err != nil {
		return Scene{}, fmt.Errorf("decode scene: %w", err)
	}
	if err := sc.Validate(); err != nil {
		return Scene{}, err
	}
	return sc, nil
}

// Validate checks that every object can be built and that object names are
// unique, since built-in command names are derived from them.
func (s Scene) Validate() error {
	var errs []error
	if s.Timestep <= 0 {
		errs = append(errs, fmt.Errorf("timestep: must be positive, got %v", s.Timestep))
	}
	seen := make(map[string]bool, len(s.Objects))
	for i, obj := range s.Objects {
		if obj.Name == "" {
			errs = append(errs, fmt.Errorf("objects[%d]: name is required", i))
		} else if seen[obj.Name] {
			errs = append(errs, fmt.Errorf("objects[%d]: duplicate name %q", i, obj.Name))
		}
		seen[obj.Name] = true
		if err := obj.validate(); err != nil {
			errs = append(errs, fmt.Errorf("objects[%d] %q: %w", i, obj.Name, err))
		}
	}
	return errors.Join(errs...)
}

func (o ObjectSpec) validate() error {
	var errs []error
	switch o.Visual.Shape {
	case ShapeQuad:
		if o.Visual.Width <= 0 || o.Visual.Height <= 0 {
			errs = append(errs, errors.New("visual: quad needs positive width and height"))
		}
	case ShapeCapsule:
		if o.Visual.Radius <= 0 || o.Visual.Height < 0 {
			errs = append(errs, errors.New("visual: capsule needs positive radius and non-negative height"))
		}
	case ShapeCube:
		if o.Visual.Width <= 0 || o.Visual.Height <= 0 || o.Visual.Depth <= 0 {
			errs = append(errs, errors.New("visual: cube needs positive width, height and depth"))
		}
	default:
		errs = append(errs, fmt.Errorf("visual: unknown shape %q", o.Visual.Shape))
	}

	switch o.Collider.Shape {
	case ColliderBall:
		if o.Collider.Radius <= 0 {
			errs = append(errs, errors.New("collider: ball needs a positive radius"))
		}
	case ColliderCuboid:
		h := o.Collider.HalfExtents
		if h[0] <= 0 || h[1] <= 0 || h[2] <= 0 {
			errs = append(errs, errors.New("collider: cuboid needs positive half extents"))
		}
	default:
		errs = append(errs, fmt.Errorf("collider: unknown shape %q", o.Collider.Shape))
	}
	if d := o.Collider.Density; d != nil && *d <= 0 {
		errs = append(errs, errors.New("collider: density must be positive"))
	}

	if o.Body != nil {
		switch o.Body.Type {
		case BodyDynamic, BodyFixed:
		default:
			errs = append(errs, fmt.Errorf("body: unknown type %q", o.Body.Type))
		}
	}
	return errors.Join(errs...)
}
