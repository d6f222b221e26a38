package canvas

import (
	"image/color"

	"bouncer/hal"

	"tinygo.org/x/drivers"
	"tinygo.org/x/tinyfont"
	"tinygo.org/x/tinyfont/proggy"
)

var hudFont tinyfont.Fonter = &proggy.TinySZ8pt7b

const hudLineHeight = 10

// DrawText writes one line of text. Unlike the shape primitives it uses
// screen coordinates: (x, top) is measured from the top-left corner.
func (c *Canvas) DrawText(x, top int, s string, col color.RGBA) {
	d := &fbDisplayer{fb: c.fb}
	tinyfont.WriteLine(d, hudFont, int16(x), int16(top+hudLineHeight-2), s, col)
}

// TextWidth returns the rendered width of s in pixels.
func TextWidth(s string) int {
	_, w := tinyfont.LineWidth(hudFont, s)
	return int(w)
}

// LineHeight is the vertical advance used by DrawText.
func LineHeight() int { return hudLineHeight }

type fbDisplayer struct {
	fb hal.Framebuffer
}

var _ drivers.Displayer = (*fbDisplayer)(nil)

func (d *fbDisplayer) Size() (x, y int16) {
	if d.fb == nil {
		return 0, 0
	}
	return int16(d.fb.Width()), int16(d.fb.Height())
}

func (d *fbDisplayer) SetPixel(x, y int16, c color.RGBA) {
	if d.fb == nil || d.fb.Format() != hal.PixelFormatRGB565 {
		return
	}
	buf := d.fb.Buffer()
	if buf == nil {
		return
	}
	ix := int(x)
	iy := int(y)
	if ix < 0 || ix >= d.fb.Width() || iy < 0 || iy >= d.fb.Height() {
		return
	}
	pixel := hal.RGB565(c.R, c.G, c.B)
	off := iy*d.fb.StrideBytes() + ix*2
	if off < 0 || off+1 >= len(buf) {
		return
	}
	buf[off] = byte(pixel)
	buf[off+1] = byte(pixel >> 8)
}

func (d *fbDisplayer) Display() error { return nil }
