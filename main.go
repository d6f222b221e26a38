package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"bouncer/app"
	"bouncer/hal"
	"bouncer/internal/buildinfo"
	"bouncer/internal/config"

	"github.com/gin-gonic/gin"
)

func main() {
	var (
		cfgPath  string
		headless hal.HeadlessConfig
		port     string
		baud     int
		noLink   bool
		httpAddr string
		record   string
		replay   string
		echo     bool
		hud      bool
	)
	flag.StringVar(&cfgPath, "config", "", "YAML config file.")
	flag.BoolVar(&headless.Enabled, "headless", false, "Run without a window.")
	flag.IntVar(&headless.Hz, "hz", 0, "Tick rate in headless mode (default: canvas fps).")
	flag.Uint64Var(&headless.Ticks, "ticks", 0, "Stop after N ticks in headless mode (0 = run forever).")
	flag.StringVar(&port, "port", "", "Serial port to open (default: first listed).")
	flag.IntVar(&baud, "baud", 0, "Serial baud rate.")
	flag.BoolVar(&noLink, "no-link", false, "Animate without reading a serial port.")
	flag.StringVar(&httpAddr, "http", "", "Serve the status API on this address.")
	flag.StringVar(&record, "record", "", "Record received serial data to this file.")
	flag.StringVar(&replay, "replay", "", "Read serial data from a recording instead of a port.")
	flag.BoolVar(&echo, "echo", false, "Log every received chunk.")
	flag.BoolVar(&hud, "hud", false, "Draw position and frame counters.")
	flag.Parse()

	cfg := config.Default()
	if cfgPath != "" {
		var err error
		if cfg, err = config.Load(cfgPath); err != nil {
			fatal(err)
		}
	}
	cfg.ApplyEnv(os.Getenv)

	// Flags win over the file and the environment, but only when given.
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "port":
			cfg.Link.Port = port
		case "baud":
			cfg.Link.Baud = baud
		case "no-link":
			cfg.Link.Enabled = !noLink
		case "http":
			cfg.API.Addr = httpAddr
		case "record":
			cfg.Link.Record = record
		case "replay":
			cfg.Link.Replay = replay
		case "echo":
			cfg.Link.Echo = echo
		case "hud":
			cfg.HUD = hud
		}
	})
	if err := cfg.Validate(); err != nil {
		fatal(err)
	}
	if headless.Hz == 0 {
		headless.Hz = cfg.Canvas.FPS
	}
	gin.SetMode(gin.ReleaseMode)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	host := hal.HostConfig{
		Width:  cfg.Canvas.Width,
		Height: cfg.Canvas.Height,
		Ports:  app.Ports(cfg),
	}

	if err := app.Preflight(cfg, host.Ports); err != nil {
		exitOnError(err)
	}

	var running *app.App
	newApp := func(h hal.HAL) func() error {
		a, err := app.New(h, cfg)
		if err != nil {
			return func() error { return err }
		}
		running = a
		return a.Step
	}

	var err error
	if headless.Enabled {
		err = hal.RunHeadless(ctx, host, newApp, headless)
	} else {
		err = hal.RunWindow(ctx, host, newApp, hal.WindowConfig{
			Title: "Bouncer (" + buildinfo.Short() + ")",
			Scale: cfg.Canvas.Scale,
			TPS:   cfg.Canvas.FPS,
		})
	}
	if running != nil {
		if cerr := running.Close(); cerr != nil {
			fmt.Fprintln(os.Stderr, cerr)
		}
	}

	exitOnError(err)
}

func exitOnError(err error) {
	switch {
	case err == nil, errors.Is(err, context.Canceled):
	case errors.Is(err, hal.ErrNoPorts):
		fmt.Println("No connected serial ports found. Please connect your USB to serial adapter(s) and run the program again.")
		os.Exit(1)
	default:
		fatal(err)
	}
}

func fatal(err error) {
	fmt.Fprintln(os.Stderr, err)
	os.Exit(1)
}
