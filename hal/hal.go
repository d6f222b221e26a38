package hal

import "errors"

// Logger writes newline-delimited log lines.
type Logger interface {
	WriteLineString(s string)
	WriteLineBytes(b []byte)
}

var (
	ErrNotImplemented = errors.New("not implemented")

	// ErrNoPorts is returned when port discovery finds nothing to open.
	ErrNoPorts = errors.New("no connected serial ports found")
)

// PixelFormat defines the framebuffer pixel encoding.
type PixelFormat uint8

const (
	// PixelFormatRGB565 is 16bpp: rrrrrggggggbbbbb.
	PixelFormatRGB565 PixelFormat = iota + 1
)

// Framebuffer is a back buffer plus a "present" hook.
//
// Drawing goes into Buffer. Present publishes the back buffer so that
// Snapshot (safe from any goroutine) returns the last presented frame.
type Framebuffer interface {
	Width() int
	Height() int
	Format() PixelFormat
	StrideBytes() int
	Buffer() []byte
	ClearRGB(r, g, b uint8)
	Present() error
	Snapshot(dst []byte) []byte
}

// Display provides access to the framebuffer (if available).
type Display interface {
	Framebuffer() Framebuffer
}

// Serial is an open, receive-only byte link to an external device.
type Serial interface {
	Name() string
	Read(p []byte) (int, error)
	Close() error
}

// Ports discovers and opens serial links.
type Ports interface {
	List() ([]string, error)
	Open(name string, baud int) (Serial, error)
}

// HAL provides the only contact point between the sketch and the outside world.
type HAL interface {
	Logger() Logger
	Display() Display
	Ports() Ports
}
