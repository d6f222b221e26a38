package sketch

import (
	"testing"

	"bouncer/canvas"
	"bouncer/hal"
	"bouncer/kernel"
)

func newTestAnimator(t *testing.T, w, h int, sys *kernel.System, cfg Config) (*Animator, *canvas.Canvas) {
	t.Helper()
	c := canvas.New(hal.NewFramebuffer(w, h))
	if c == nil {
		t.Fatal("canvas.New() = nil")
	}
	return New(c, sys, cfg), c
}

func tick(t *testing.T, a *Animator) State {
	t.Helper()
	if err := a.Tick(); err != nil {
		t.Fatalf("Tick: %v", err)
	}
	return a.State()
}

func TestAnimatorStaysInBoundsAndFlipsOncePerEdge(t *testing.T) {
	const width = 10
	a, _ := newTestAnimator(t, width, 8, nil, Config{Diameter: 3})

	prevDir := a.State().Dir
	flips := 0
	for i := 0; i < 100; i++ {
		st := tick(t, a)
		if st.X < 0 || st.X > width {
			t.Fatalf("tick %d: x = %d, want within [0, %d]", i, st.X, width)
		}
		if st.Dir != prevDir {
			flips++
			if st.X != width-1 && st.X != 1 {
				t.Fatalf("tick %d: flipped at x = %d, want next to an edge", i, st.X)
			}
		}
		prevDir = st.Dir
	}
	// 0 -> 10 -> 0 -> 10 ... takes 10 ticks per leg; 100 ticks cover 10 legs.
	if flips != 9 {
		t.Fatalf("flips = %d, want 9", flips)
	}
}

func TestAnimatorFirstTicks(t *testing.T) {
	a, _ := newTestAnimator(t, 3, 3, nil, Config{})

	want := []struct{ x, dir int }{{1, 1}, {2, 1}, {3, 1}, {2, -1}, {1, -1}, {0, -1}, {1, 1}}
	for i, w := range want {
		st := tick(t, a)
		if st.X != w.x || st.Dir != w.dir {
			t.Fatalf("tick %d: x, dir = %d, %d, want %d, %d", i, st.X, st.Dir, w.x, w.dir)
		}
	}
}

func TestAnimatorAppliesNewestLinkValue(t *testing.T) {
	sys := kernel.NewSystem()
	a, _ := newTestAnimator(t, 50, 50, sys, Config{StartY: 7})

	if st := tick(t, a); st.Y != 7 {
		t.Fatalf("y = %d, want start value 7", st.Y)
	}

	sys.SendInt(kernel.EPLink, kernel.EPAnimator, kernel.MsgLinkValue, 12)
	sys.SendInt(kernel.EPLink, kernel.EPAnimator, kernel.MsgLinkValue, 42)
	st := tick(t, a)
	if st.Y != 42 {
		t.Fatalf("y = %d, want 42", st.Y)
	}
	if st.LinkValues != 2 {
		t.Fatalf("LinkValues = %d, want 2", st.LinkValues)
	}

	if st := tick(t, a); st.Y != 42 {
		t.Fatalf("y = %d after idle tick, want 42", st.Y)
	}
}

func TestAnimatorLinkClosed(t *testing.T) {
	sys := kernel.NewSystem()
	a, _ := newTestAnimator(t, 64, 32, sys, Config{HUD: true})

	sys.Send(kernel.EPLink, kernel.EPAnimator, kernel.MsgLinkClosed, []byte("removed"))
	st := tick(t, a)
	if !st.LinkClosed || st.LinkReason != "removed" {
		t.Fatalf("LinkClosed, LinkReason = %v, %q, want true, \"removed\"", st.LinkClosed, st.LinkReason)
	}
}

func TestAnimatorReportsDroppedLinkValues(t *testing.T) {
	sys := kernel.NewSystem()
	a, _ := newTestAnimator(t, 50, 50, sys, Config{})

	for v := int64(1); v <= 10; v++ {
		sys.SendInt(kernel.EPLink, kernel.EPAnimator, kernel.MsgLinkValue, v)
	}
	st := tick(t, a)
	if st.Dropped != 2 {
		t.Fatalf("Dropped = %d, want 2", st.Dropped)
	}
	if st.Y != 10 || st.LinkValues != 8 {
		t.Fatalf("y, LinkValues = %d, %d, want 10, 8", st.Y, st.LinkValues)
	}
}

func TestAnimatorHueFollowsFrameCount(t *testing.T) {
	a, _ := newTestAnimator(t, 20, 20, nil, Config{})

	prev := -1
	for i := 0; i < 400; i++ {
		st := tick(t, a)
		if want := i % 360; st.Hue != want {
			t.Fatalf("tick %d: hue = %d, want %d", i, st.Hue, want)
		}
		if st.Hue != 0 && st.Hue <= prev {
			t.Fatalf("tick %d: hue %d did not increase from %d", i, st.Hue, prev)
		}
		prev = st.Hue
		if st.Frame != uint64(i+1) {
			t.Fatalf("tick %d: frame = %d, want %d", i, st.Frame, i+1)
		}
	}
}

func TestAnimatorDrawsCircleAtPosition(t *testing.T) {
	a, c := newTestAnimator(t, 40, 40, nil, Config{StartY: 20})

	st := tick(t, a)
	got := c.At(st.X, st.Y)
	if got.R == 0 && got.G == 0 && got.B == 0 {
		t.Fatalf("pixel at circle centre (%d, %d) is black", st.X, st.Y)
	}
	if far := c.At(35, 5); far.R != 0 || far.G != 0 || far.B != 0 {
		t.Fatalf("pixel away from the circle = %v, want black", far)
	}
}
