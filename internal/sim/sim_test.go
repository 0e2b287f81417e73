package sim

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/signalsfoundry/colosseum/internal/config"
	"github.com/signalsfoundry/colosseum/internal/scene"
	"github.com/signalsfoundry/colosseum/internal/world"
	"github.com/signalsfoundry/colosseum/timectrl"
)

func newWindow(maxFrames uint64) *scene.HeadlessWindow {
	clock := timectrl.NewTimeController(time.Unix(0, 0), time.Second/60, timectrl.Accelerated)
	return scene.NewHeadlessWindow("test", clock, scene.WithMaxFrames(maxFrames))
}

func buildDefault(t *testing.T, window scene.Window) (*world.World, []*world.Object) {
	t.Helper()
	sc := config.DefaultScene()
	w := NewWorld(sc)
	objects, err := BuildScene(window, w, sc)
	if err != nil {
		t.Fatalf("BuildScene: %v", err)
	}
	return w, objects
}

func TestBuildDefaultScene(t *testing.T) {
	w, objects := buildDefault(t, newWindow(0))

	if len(objects) != 2 {
		t.Fatalf("objects = %d, want 2", len(objects))
	}
	if bodies, colliders := w.Counts(); bodies != 1 || colliders != 2 {
		t.Fatalf("Counts = %d, %d; want 1, 2", bodies, colliders)
	}
	if g := w.Gravity(); g.Y() != -9.81 {
		t.Fatalf("Gravity = %v", g)
	}

	ground, ball := objects[0], objects[1]
	if _, ok := ground.Body(); ok {
		t.Fatalf("ground has a body")
	}
	snap := ground.Node().Snapshot()
	if snap.Surface || !snap.Wireframe {
		t.Fatalf("ground snapshot = %+v, want wireframe only", snap)
	}
	if r := snap.Transform.Rotation; math.Abs(float64(r.W)-math.Sqrt2/2) > 1e-5 {
		t.Fatalf("ground rotation = %v", r)
	}

	if tr := ball.Node().LocalTransform().Translation; tr.Y() != 3 {
		t.Fatalf("ball node starts at %v, want y=3", tr)
	}
	if c := ball.Node().Snapshot().Color; c.R != 1 || c.G != 0 || c.B != 0 {
		t.Fatalf("ball color = %v, want red", c)
	}
}

func TestBuildSceneRejectsSuffixCollision(t *testing.T) {
	sc := config.DefaultScene()
	twin := sc.Objects[1]
	twin.Name = "Ball!"
	sc.Objects = append(sc.Objects, twin)

	if _, err := BuildScene(newWindow(0), NewWorld(sc), sc); err == nil {
		t.Fatalf("BuildScene accepted two objects mapping to BALL")
	}
}

func TestRunDropsBallOntoGround(t *testing.T) {
	window := newWindow(180)
	w, objects := buildDefault(t, window)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	state := world.NewState(w)
	go func() { _ = state.Run(ctx) }()

	if err := Run(ctx, window, state, objects, nil); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got := window.Frames(); got != 180 {
		t.Fatalf("frames = %d, want 180", got)
	}

	var tick uint64
	if err := state.Do(ctx, func(_ context.Context, w *world.World) error {
		tick = w.Tick()
		return nil
	}); err != nil {
		t.Fatalf("Do: %v", err)
	}
	if tick != 180 {
		t.Fatalf("world ticks = %d, want one per frame", tick)
	}

	y := objects[1].Node().LocalTransform().Translation.Y()
	if y >= 3 || y < -0.1 {
		t.Fatalf("ball y after 3s = %v, want it resting near the ground", y)
	}
}

func TestRunReturnsNilOnCancel(t *testing.T) {
	window := newWindow(0)
	w, objects := buildDefault(t, window)

	ctx, cancel := context.WithCancel(context.Background())
	state := world.NewState(w)
	go func() { _ = state.Run(ctx) }()

	done := make(chan error, 1)
	go func() { done <- Run(ctx, window, state, objects, nil) }()
	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run err = %v, want nil", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("Run did not stop after cancel")
	}
}

func TestRunFailsOnPoisonedState(t *testing.T) {
	window := newWindow(0)
	w, objects := buildDefault(t, window)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	state := world.NewState(w)
	go func() { _ = state.Run(ctx) }()

	_ = state.Do(ctx, func(context.Context, *world.World) error { panic("boom") })

	err := Run(ctx, window, state, objects, nil)
	if !errors.Is(err, world.ErrPoisoned) {
		t.Fatalf("Run err = %v, want ErrPoisoned", err)
	}
}
