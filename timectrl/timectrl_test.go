package timectrl

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestTimeControllerSetTime(t *testing.T) {
	start := time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC)
	tc := NewTimeController(start, time.Second, RealTime)

	newNow := start.Add(42 * time.Second)
	tc.SetTime(newNow)

	if got := tc.Now(); !got.Equal(newNow) {
		t.Fatalf("Now() = %v, want %v", got, newNow)
	}
}

func TestTimeControllerStartUpdatesNow(t *testing.T) {
	start := time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC)
	tc := NewTimeController(start, 5*time.Millisecond, Accelerated)

	done := tc.Start(context.Background(), 15*time.Millisecond)
	<-done

	expected := start.Add(15 * time.Millisecond)
	if got := tc.Now(); !got.Equal(expected) {
		t.Fatalf("Now() = %v, want %v", got, expected)
	}
	if got := tc.Frames(); got != 3 {
		t.Fatalf("Frames() = %d, want 3", got)
	}
}

func TestAdvanceNotifiesListeners(t *testing.T) {
	start := time.Unix(0, 0).UTC()
	tc := NewTimeController(start, time.Second, Accelerated)

	var seen []time.Time
	tc.AddListener(func(now time.Time) { seen = append(seen, now) })

	for i := 0; i < 2; i++ {
		if _, err := tc.Advance(context.Background()); err != nil {
			t.Fatalf("Advance: %v", err)
		}
	}
	if len(seen) != 2 {
		t.Fatalf("listener called %d times, want 2", len(seen))
	}
	if !seen[1].Equal(start.Add(2 * time.Second)) {
		t.Fatalf("second notification = %v, want %v", seen[1], start.Add(2*time.Second))
	}
}

func TestListenerAddedDuringAdvanceWaitsForNextTick(t *testing.T) {
	tc := NewTimeController(time.Unix(0, 0).UTC(), time.Second, Accelerated)

	var late int
	added := false
	tc.AddListener(func(time.Time) {
		if !added {
			added = true
			tc.AddListener(func(time.Time) { late++ })
		}
	})

	if _, err := tc.Advance(context.Background()); err != nil {
		t.Fatalf("Advance: %v", err)
	}
	if late != 0 {
		t.Fatalf("late listener called %d times during the tick that added it", late)
	}
	if _, err := tc.Advance(context.Background()); err != nil {
		t.Fatalf("Advance: %v", err)
	}
	if late != 1 {
		t.Fatalf("late listener called %d times, want 1", late)
	}
}

func TestRealTimeAdvanceHonoursCancellation(t *testing.T) {
	tc := NewTimeController(time.Unix(0, 0), time.Hour, RealTime)

	// The first frame anchors the pacing and returns immediately.
	if _, err := tc.Advance(context.Background()); err != nil {
		t.Fatalf("first Advance: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := tc.Advance(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Advance err = %v, want deadline exceeded", err)
	}
	if got := tc.Frames(); got != 1 {
		t.Fatalf("Frames() = %d after cancelled advance, want 1", got)
	}
}

func TestRealTimeAdvancePacesFrames(t *testing.T) {
	tick := 10 * time.Millisecond
	tc := NewTimeController(time.Unix(0, 0), tick, RealTime)

	begin := time.Now()
	for i := 0; i < 4; i++ {
		if _, err := tc.Advance(context.Background()); err != nil {
			t.Fatalf("Advance: %v", err)
		}
	}
	// Three waits follow the anchoring frame.
	if elapsed := time.Since(begin); elapsed < 3*tick-2*time.Millisecond {
		t.Fatalf("4 realtime frames took %v, want at least ~%v", elapsed, 3*tick)
	}
}

func TestParseMode(t *testing.T) {
	cases := map[string]Mode{"": RealTime, "RealTime": RealTime, "accelerated": Accelerated}
	for in, want := range cases {
		got, err := ParseMode(in)
		if err != nil || got != want {
			t.Fatalf("ParseMode(%q) = %v, %v; want %v", in, got, err, want)
		}
	}
	if _, err := ParseMode("warp"); err == nil {
		t.Fatalf("ParseMode(warp) returned nil error")
	}
}
