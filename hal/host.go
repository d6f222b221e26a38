package hal

import (
	"fmt"
	"io"
	"os"
	"sync"
)

// HostConfig describes the host side of the HAL.
type HostConfig struct {
	Width  int
	Height int

	// Ports overrides serial port discovery (nil selects the system ports).
	Ports Ports

	// Log overrides the log destination (nil selects stdout).
	Log io.Writer
}

type hostHAL struct {
	logger *hostLogger
	fb     *hostFramebuffer
	ports  Ports
}

// New returns a host HAL implementation.
func New(cfg HostConfig) HAL {
	return newHost(cfg)
}

func newHost(cfg HostConfig) *hostHAL {
	if cfg.Width <= 0 {
		cfg.Width = 500
	}
	if cfg.Height <= 0 {
		cfg.Height = 300
	}
	var w io.Writer = os.Stdout
	if cfg.Log != nil {
		w = cfg.Log
	}
	ports := cfg.Ports
	if ports == nil {
		ports = SystemPorts()
	}
	return &hostHAL{
		logger: &hostLogger{w: w},
		fb:     newHostFramebuffer(cfg.Width, cfg.Height),
		ports:  ports,
	}
}

func (h *hostHAL) Logger() Logger   { return h.logger }
func (h *hostHAL) Display() Display { return hostDisplay{fb: h.fb} }
func (h *hostHAL) Ports() Ports     { return h.ports }

type hostDisplay struct {
	fb *hostFramebuffer
}

func (d hostDisplay) Framebuffer() Framebuffer { return d.fb }

type hostLogger struct {
	mu sync.Mutex
	w  io.Writer
}

func (l *hostLogger) WriteLineString(s string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	fmt.Fprintln(l.w, s)
}

func (l *hostLogger) WriteLineBytes(b []byte) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.w.Write(b)
	l.w.Write([]byte{'\n'})
}
