package scene

import (
	"context"
	"sync"
	"time"

	"github.com/signalsfoundry/colosseum/internal/logging"
	"github.com/signalsfoundry/colosseum/timectrl"
)

// Window owns scene nodes and produces frames.
type Window interface {
	// AddNode creates a node rendering prim and attaches it to the window.
	AddNode(name string, prim Primitive) *Node
	// RenderFrame presents one frame and reports whether the caller should
	// keep running its loop.
	RenderFrame(ctx context.Context) bool
}

// Frame is the state of every node at one presented frame.
type Frame struct {
	Index uint64
	Time  time.Time
	Nodes []NodeSnapshot
}

// FrameListener observes presented frames. It runs on the render goroutine
// and must not block.
type FrameListener interface {
	OnFrame(ctx context.Context, f Frame)
}

// FrameListenerFunc adapts a function to FrameListener.
type FrameListenerFunc func(ctx context.Context, f Frame)

func (fn FrameListenerFunc) OnFrame(ctx context.Context, f Frame) { fn(ctx, f) }

// FrameRecorder receives a count of presented frames.
type FrameRecorder interface {
	IncFramesRendered()
}

// HeadlessWindow renders to frame listeners instead of a display. Frames are
// paced by a timectrl.TimeController.
type HeadlessWindow struct {
	title string
	clock *timectrl.TimeController

	mu        sync.Mutex
	nodes     []*Node
	listeners []FrameListener
	maxFrames uint64
	closed    bool

	log     logging.Logger
	metrics FrameRecorder
}

// WindowOption customises a HeadlessWindow.
type WindowOption func(*HeadlessWindow)

// WithMaxFrames stops the window after n frames. Zero means unbounded.
func WithMaxFrames(n uint64) WindowOption {
	return func(w *HeadlessWindow) { w.maxFrames = n }
}

// WithFrameListener registers l for every presented frame.
func WithFrameListener(l FrameListener) WindowOption {
	return func(w *HeadlessWindow) { w.listeners = append(w.listeners, l) }
}

// WithLogger attaches a logger for window lifecycle events.
func WithLogger(log logging.Logger) WindowOption {
	return func(w *HeadlessWindow) { w.log = log }
}

// WithFrameRecorder attaches a frame counter.
func WithFrameRecorder(r FrameRecorder) WindowOption {
	return func(w *HeadlessWindow) { w.metrics = r }
}

// NewHeadlessWindow returns a window that advances clock once per frame.
func NewHeadlessWindow(title string, clock *timectrl.TimeController, opts ...WindowOption) *HeadlessWindow {
	w := &HeadlessWindow{
		title: title,
		clock: clock,
		log:   logging.Noop(),
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.log == nil {
		w.log = logging.Noop()
	}
	return w
}

// Title returns the window title.
func (w *HeadlessWindow) Title() string { return w.title }

// AddNode implements Window.
func (w *HeadlessWindow) AddNode(name string, prim Primitive) *Node {
	n := NewNode(name, prim)
	w.mu.Lock()
	w.nodes = append(w.nodes, n)
	w.mu.Unlock()
	return n
}

// AddFrameListener registers l for every subsequent frame.
func (w *HeadlessWindow) AddFrameListener(l FrameListener) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.listeners = append(w.listeners, l)
}

// Close makes the next RenderFrame return false.
func (w *HeadlessWindow) Close() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.closed = true
}

// Frames returns the number of frames presented so far.
func (w *HeadlessWindow) Frames() uint64 { return w.clock.Frames() }

// RenderFrame implements Window. It returns false once the window is closed,
// the frame limit is reached or ctx is done.
func (w *HeadlessWindow) RenderFrame(ctx context.Context) bool {
	w.mu.Lock()
	closed := w.closed
	limit := w.maxFrames
	w.mu.Unlock()

	if closed || ctx.Err() != nil {
		return false
	}
	if limit > 0 && w.clock.Frames() >= limit {
		w.log.Info(ctx, "frame limit reached",
			logging.String("window", w.title),
			logging.Uint64("frames", limit),
		)
		return false
	}

	now, err := w.clock.Advance(ctx)
	if err != nil {
		return false
	}

	w.mu.Lock()
	frame := Frame{
		Index: w.clock.Frames(),
		Time:  now,
		Nodes: make([]NodeSnapshot, 0, len(w.nodes)),
	}
	for _, n := range w.nodes {
		frame.Nodes = append(frame.Nodes, n.Snapshot())
	}
	listeners := append([]FrameListener(nil), w.listeners...)
	w.mu.Unlock()

	for _, l := range listeners {
		l.OnFrame(ctx, frame)
	}
	if w.metrics != nil {
		w.metrics.IncFramesRendered()
	}
	return true
}

// LogEvery returns a listener that logs node poses at debug level every n
// frames.
func LogEvery(log logging.Logger, n uint64) FrameListener {
	if n == 0 {
		n = 1
	}
	return FrameListenerFunc(func(ctx context.Context, f Frame) {
		if f.Index%n != 0 {
			return
		}
		for _, node := range f.Nodes {
			t := node.Transform.Translation
			log.Debug(ctx, "frame pose",
				logging.Uint64("frame", f.Index),
				logging.String("node", node.Name),
				logging.Float32s("translation", []float32{t.X(), t.Y(), t.Z()}),
			)
		}
	})
}
