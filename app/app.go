package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"bouncer/api"
	"bouncer/canvas"
	"bouncer/capture"
	"bouncer/hal"
	"bouncer/internal/config"
	"bouncer/kernel"
	"bouncer/link"
	"bouncer/sketch"
)

// App is one running sketch: the animator, and optionally the serial link,
// its recorder and the status API.
type App struct {
	h    hal.HAL
	c    *canvas.Canvas
	sys  *kernel.System
	anim *sketch.Animator
	link *link.Service
	rec  *capture.Writer
	api  *api.Server
}

// New initializes the sketch on h. When the link is enabled and no serial
// port can be found it returns hal.ErrNoPorts.
func New(h hal.HAL, cfg config.Config) (*App, error) {
	log := h.Logger()

	var fb hal.Framebuffer
	if d := h.Display(); d != nil {
		fb = d.Framebuffer()
	}
	c := canvas.New(fb)
	if c == nil {
		return nil, errors.New("app: display has no RGB565 framebuffer")
	}

	a := &App{h: h, c: c, sys: kernel.NewSystem()}
	a.anim = sketch.New(c, a.sys, sketch.Config{
		Diameter: cfg.Canvas.Diameter,
		StartY:   cfg.StartY(),
		HUD:      cfg.HUD,
	})

	if cfg.Link.Enabled {
		if err := a.startLink(cfg); err != nil {
			a.Close()
			return nil, err
		}
	}

	if cfg.API.Addr != "" {
		opts := api.Options{
			Sketch:      a.anim,
			Ports:       h.Ports(),
			Framebuffer: fb,
			Log:         log,
			StreamHz:    cfg.API.StreamHz,
		}
		if a.link != nil {
			opts.Link = a.link
		}
		a.api = api.NewServer(opts)
		if err := a.api.Start(cfg.API.Addr); err != nil {
			a.Close()
			return nil, err
		}
	}

	log.WriteLineString(fmt.Sprintf("sketch ready: %dx%d canvas at %d fps", c.Width(), c.Height(), cfg.Canvas.FPS))
	return a, nil
}

func (a *App) startLink(cfg config.Config) error {
	lc := link.Config{
		Port:      cfg.Link.Port,
		Baud:      cfg.Link.Baud,
		Delimiter: cfg.DelimiterByte(),
		Echo:      cfg.Link.Echo,
	}
	if cfg.Link.Record != "" {
		w, err := capture.Create(cfg.Link.Record)
		if err != nil {
			return err
		}
		a.rec = w
		lc.Recorder = w
	}
	a.link = link.NewService(a.h.Logger(), a.h.Ports(), a.sys, lc)
	return a.link.Start()
}

// Step draws one frame. A panic while drawing is returned as an error.
func (a *App) Step() (err error) {
	defer a.recoverStep(&err)
	return a.anim.Tick()
}

// State returns the latest animation snapshot.
func (a *App) State() sketch.State { return a.anim.State() }

// Close stops the API, the link and the recorder, in that order.
func (a *App) Close() error {
	var errs []error
	if a.api != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		errs = append(errs, a.api.Shutdown(ctx))
		cancel()
	}
	if a.link != nil {
		errs = append(errs, a.link.Close())
	}
	if a.rec != nil {
		errs = append(errs, a.rec.Close())
	}
	return errors.Join(errs...)
}

// Preflight fails with hal.ErrNoPorts when the link is enabled and ports
// lists nothing, so callers can stop before opening a window.
func Preflight(cfg config.Config, ports hal.Ports) error {
	if !cfg.Link.Enabled {
		return nil
	}
	if ports == nil {
		return hal.ErrNoPorts
	}
	names, err := ports.List()
	if err != nil {
		return err
	}
	if len(names) == 0 {
		return hal.ErrNoPorts
	}
	return nil
}

// Ports picks the port source for cfg: a recording when replay is set,
// otherwise the system serial ports.
func Ports(cfg config.Config) hal.Ports {
	if cfg.Link.Replay != "" {
		return capture.ReplayPorts{Path: cfg.Link.Replay, Speed: cfg.Link.ReplaySpeed}
	}
	return hal.SystemPorts()
}
