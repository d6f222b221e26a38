// Package sketch holds the per-frame draw routine: a circle that bounces
// between the left and right edges of the canvas, leaving a fading trail.
package sketch

import (
	"fmt"
	"image/color"
	"sync"

	"bouncer/canvas"
	"bouncer/kernel"
)

const (
	DefaultDiameter = 25

	trailAlpha       = 10
	circleSat        = 80
	circleBrightness = 90
)

// Config tunes the animator.
type Config struct {
	Diameter int
	StartY   int
	HUD      bool
}

// State is a snapshot of the animation after a tick.
type State struct {
	X          int    `json:"x"`
	Y          int    `json:"y"`
	Dir        int    `json:"dir"`
	Frame      uint64 `json:"frame"`
	Hue        int    `json:"hue"`
	LinkValues uint64 `json:"link_values"`
	LinkClosed bool   `json:"link_closed"`
	LinkReason string `json:"link_reason,omitempty"`
	// Dropped counts link values evicted before a tick could apply them.
	Dropped uint64 `json:"dropped"`
	Width   int    `json:"width"`
	Height  int    `json:"height"`
}

// Animator owns the circle position and draws one frame per Tick.
type Animator struct {
	c   *canvas.Canvas
	sys *kernel.System
	cfg Config

	x, y, dir  int
	linkValues uint64
	linkClosed bool
	linkReason string

	mu   sync.Mutex
	snap State
}

// New returns an animator at x = 0 moving right. sys may be nil when no
// link feeds the vertical position.
func New(c *canvas.Canvas, sys *kernel.System, cfg Config) *Animator {
	if cfg.Diameter <= 0 {
		cfg.Diameter = DefaultDiameter
	}
	a := &Animator{c: c, sys: sys, cfg: cfg, y: cfg.StartY, dir: 1}
	a.publish(0)
	return a
}

// Tick advances the circle one step and draws the frame.
func (a *Animator) Tick() error {
	a.drainLink()
	a.step()

	frame := a.c.FrameCount()
	hue := int(frame % 360)

	a.c.SetFillColor(canvas.HSB(0, 0, 0, trailAlpha))
	a.c.DrawRectangle(0, 0, a.c.Width(), a.c.Height())

	a.c.SetFillColor(canvas.HSB(float64(hue), circleSat, circleBrightness, 100))
	a.c.DrawEllipse(a.x, a.y, a.cfg.Diameter, a.cfg.Diameter)

	if a.cfg.HUD {
		a.drawHUD(frame)
	}

	if err := a.c.Advance(); err != nil {
		return fmt.Errorf("present frame %d: %w", frame, err)
	}
	a.publish(hue)
	return nil
}

// step moves x by one unit. The direction flips when the next position
// would leave [0, width], so x itself never leaves that range.
func (a *Animator) step() {
	w := a.c.Width()
	if w <= 0 {
		a.x = 0
		return
	}
	next := a.x + a.dir
	if next > w || next < 0 {
		a.dir = -a.dir
		next = a.x + a.dir
	}
	a.x = next
}

// drainLink applies the newest link value queued since the last tick.
func (a *Animator) drainLink() {
	if a.sys == nil {
		return
	}
	a.sys.Drain(kernel.EPAnimator, func(msg kernel.Message) {
		switch msg.Kind {
		case kernel.MsgLinkValue:
			if v, ok := msg.Int(); ok {
				a.y = int(v)
				a.linkValues++
			}
		case kernel.MsgLinkClosed:
			a.linkClosed = true
			a.linkReason = string(msg.Payload())
		}
	})
}

func (a *Animator) drawHUD(frame uint64) {
	line := fmt.Sprintf("x=%d y=%d frame=%d", a.x, a.y, frame)
	fg := color.RGBA{R: 0xB0, G: 0xB0, B: 0xB0, A: 0xFF}
	a.c.DrawText(4, 2, line, fg)
	if a.linkClosed {
		msg := "link closed"
		if a.linkReason != "" {
			msg += ": " + a.linkReason
		}
		a.c.DrawText(4, 2+canvas.LineHeight(), msg, color.RGBA{R: 0xE0, G: 0x60, B: 0x60, A: 0xFF})
	}
}

func (a *Animator) publish(hue int) {
	var dropped uint64
	if a.sys != nil {
		dropped = a.sys.Dropped(kernel.EPAnimator)
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.snap = State{
		X:          a.x,
		Y:          a.y,
		Dir:        a.dir,
		Frame:      a.c.FrameCount(),
		Hue:        hue,
		LinkValues: a.linkValues,
		LinkClosed: a.linkClosed,
		LinkReason: a.linkReason,
		Dropped:    dropped,
		Width:      a.c.Width(),
		Height:     a.c.Height(),
	}
}

// State returns the snapshot taken after the most recent tick. It is safe
// to call from any goroutine.
func (a *Animator) State() State {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.snap
}
