// Package scene is a headless scene graph: nodes carrying a primitive, a
// local transform and render hints, owned by a Window that produces frames.
package scene

import (
	"fmt"
	"sync"

	"github.com/go-gl/mathgl/mgl32"
)

// Primitive is the geometry a node renders.
type Primitive interface {
	Kind() string
}

// Quad is a flat rectangle in the local XY plane, split into a grid.
type Quad struct {
	Width, Height      float32
	WSubdivs, HSubdivs int
}

func (Quad) Kind() string { return "quad" }

// Capsule is a cylinder of the given height capped by two hemispheres. A zero
// height renders as a sphere.
type Capsule struct {
	Radius, Height float32
}

func (Capsule) Kind() string { return "capsule" }

// Cube is an axis-aligned box of full extents.
type Cube struct {
	Width, Height, Depth float32
}

func (Cube) Kind() string { return "cube" }

// Color is an RGB triple in [0, 1].
type Color struct {
	R, G, B float32
}

func (c Color) String() string { return fmt.Sprintf("rgb(%.2f,%.2f,%.2f)", c.R, c.G, c.B) }

// Transform is a node's pose relative to its parent.
type Transform struct {
	Translation mgl32.Vec3
	Rotation    mgl32.Quat
}

// IdentityTransform leaves the node at the origin, unrotated.
func IdentityTransform() Transform {
	return Transform{Rotation: mgl32.QuatIdent()}
}

// Node is one renderable entry in a window. It is safe for one writer and
// any number of concurrent readers.
type Node struct {
	mu sync.RWMutex

	name      string
	primitive Primitive
	transform Transform

	color      Color
	linesColor *Color
	linesWidth float32
	surface    bool
}

// NewNode returns a white, surface-rendered node at the origin.
func NewNode(name string, prim Primitive) *Node {
	return &Node{
		name:      name,
		primitive: prim,
		transform: IdentityTransform(),
		color:     Color{1, 1, 1},
		surface:   true,
	}
}

func (n *Node) Name() string { return n.name }

func (n *Node) Primitive() Primitive { return n.primitive }

// SetLocalTransform replaces the node's pose.
func (n *Node) SetLocalTransform(t Transform) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.transform = Transform{Translation: t.Translation, Rotation: t.Rotation.Normalize()}
}

// SetLocalRotation keeps the translation and replaces the rotation.
func (n *Node) SetLocalRotation(q mgl32.Quat) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.transform.Rotation = q.Normalize()
}

// SetLocalTranslation keeps the rotation and replaces the translation.
func (n *Node) SetLocalTranslation(v mgl32.Vec3) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.transform.Translation = v
}

// LocalTransform returns the node's current pose.
func (n *Node) LocalTransform() Transform {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.transform
}

func (n *Node) SetColor(r, g, b float32) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.color = Color{r, g, b}
}

// SetLinesColor enables wireframe edges in c. A nil color disables them.
func (n *Node) SetLinesColor(c *Color) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if c == nil {
		n.linesColor = nil
		return
	}
	cc := *c
	n.linesColor = &cc
}

func (n *Node) SetLinesWidth(w float32) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.linesWidth = w
}

// SetSurfaceRendering toggles filled faces. A node with lines and no surface
// renders as a wireframe.
func (n *Node) SetSurfaceRendering(on bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.surface = on
}

// Snapshot copies the node's render state.
func (n *Node) Snapshot() NodeSnapshot {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return NodeSnapshot{
		Name:      n.name,
		Kind:      n.primitive.Kind(),
		Transform: n.transform,
		Color:     n.color,
		Surface:   n.surface,
		Wireframe: n.linesColor != nil && n.linesWidth > 0,
	}
}

// NodeSnapshot is an immutable copy of a node taken during a frame.
type NodeSnapshot struct {
	Name      string
	Kind      string
	Transform Transform
	Color     Color
	Surface   bool
	Wireframe bool
}
