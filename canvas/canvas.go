// Package canvas is a small immediate-mode drawing surface over an RGB565
// framebuffer. Coordinates put the origin at the bottom-left corner with y
// growing upward; pixels outside the surface are clipped.
package canvas

import (
	"image/color"

	"bouncer/hal"
)

// Canvas draws shapes in bottom-left coordinates with alpha blending.
// DrawText is the exception: it takes screen coordinates (top-left origin,
// y down) and paints opaque glyphs without blending.
type Canvas struct {
	fb     hal.Framebuffer
	w      int
	h      int
	stride int

	fill    Color
	borders bool
	frames  uint64
}

// New wraps fb. It returns nil if fb is missing or not RGB565.
func New(fb hal.Framebuffer) *Canvas {
	if fb == nil || fb.Format() != hal.PixelFormatRGB565 {
		return nil
	}
	return &Canvas{
		fb:     fb,
		w:      fb.Width(),
		h:      fb.Height(),
		stride: fb.StrideBytes(),
		fill:   HSB(0, 0, 100, 100),
	}
}

func (c *Canvas) Width() int  { return c.w }
func (c *Canvas) Height() int { return c.h }

// FrameCount is the number of frames presented so far.
func (c *Canvas) FrameCount() uint64 { return c.frames }

func (c *Canvas) FillColor() Color     { return c.fill }
func (c *Canvas) SetFillColor(k Color) { c.fill = k }

// Clear fills the whole surface with k, ignoring its alpha.
func (c *Canvas) Clear(k Color) {
	col := k.RGBA()
	c.fb.ClearRGB(col.R, col.G, col.B)
}

// SetDrawBorders toggles a one pixel outline around shapes. The outline
// uses the fill color at full brightness.
func (c *Canvas) SetDrawBorders(on bool) { c.borders = on }

// DrawRectangle fills the rectangle whose bottom-left corner is (x, y).
func (c *Canvas) DrawRectangle(x, y, w, h int) {
	if w <= 0 || h <= 0 {
		return
	}
	col := c.fill.RGBA()
	x0, x1 := clip(x, x+w, c.w)
	y0, y1 := clip(y, y+h, c.h)
	for py := y0; py < y1; py++ {
		for px := x0; px < x1; px++ {
			c.blend(px, py, col)
		}
	}
	if c.borders {
		edge := HSB(c.fill.Hue, c.fill.Saturation, 100, 100).RGBA()
		for px := x; px < x+w; px++ {
			c.blend(px, y, edge)
			c.blend(px, y+h-1, edge)
		}
		for py := y; py < y+h; py++ {
			c.blend(x, py, edge)
			c.blend(x+w-1, py, edge)
		}
	}
}

// DrawEllipse fills the ellipse centred on (cx, cy) with the given diameters.
func (c *Canvas) DrawEllipse(cx, cy, w, h int) {
	if w <= 0 || h <= 0 {
		return
	}
	col := c.fill.RGBA()
	rx := float64(w) / 2
	ry := float64(h) / 2
	ix := int(rx)
	iy := int(ry)
	for dy := -iy; dy <= iy; dy++ {
		for dx := -ix; dx <= ix; dx++ {
			if !inEllipse(dx, dy, rx, ry) {
				continue
			}
			if c.borders && onEllipseEdge(dx, dy, rx, ry) {
				c.blend(cx+dx, cy+dy, HSB(c.fill.Hue, c.fill.Saturation, 100, 100).RGBA())
				continue
			}
			c.blend(cx+dx, cy+dy, col)
		}
	}
}

// Advance marks the end of a frame and publishes it.
func (c *Canvas) Advance() error {
	c.frames++
	return c.fb.Present()
}

// At returns the pixel at canvas coordinates (x, y) from the back buffer.
func (c *Canvas) At(x, y int) color.RGBA {
	if x < 0 || y < 0 || x >= c.w || y >= c.h {
		return color.RGBA{}
	}
	return hal.PixelAt(c.fb.Buffer(), c.stride, x, c.row(y))
}

func (c *Canvas) row(y int) int { return c.h - 1 - y }

func (c *Canvas) blend(x, y int, src color.RGBA) {
	if x < 0 || y < 0 || x >= c.w || y >= c.h || src.A == 0 {
		return
	}
	buf := c.fb.Buffer()
	off := c.row(y)*c.stride + x*2
	if off < 0 || off+1 >= len(buf) {
		return
	}
	r, g, b := src.R, src.G, src.B
	if src.A < 0xFF {
		dr, dg, db := hal.RGB888(uint16(buf[off]) | uint16(buf[off+1])<<8)
		r = mix(r, dr, src.A)
		g = mix(g, dg, src.A)
		b = mix(b, db, src.A)
	}
	p := hal.RGB565(r, g, b)
	buf[off] = byte(p)
	buf[off+1] = byte(p >> 8)
}

func mix(src, dst, a uint8) uint8 {
	return uint8((uint32(src)*uint32(a) + uint32(dst)*uint32(255-a) + 127) / 255)
}

func clip(lo, hi, max int) (int, int) {
	if lo < 0 {
		lo = 0
	}
	if hi > max {
		hi = max
	}
	if hi < lo {
		hi = lo
	}
	return lo, hi
}

func inEllipse(dx, dy int, rx, ry float64) bool {
	fx := float64(dx) / rx
	fy := float64(dy) / ry
	return fx*fx+fy*fy <= 1
}

func onEllipseEdge(dx, dy int, rx, ry float64) bool {
	return !inEllipse(dx+1, dy, rx, ry) || !inEllipse(dx-1, dy, rx, ry) ||
		!inEllipse(dx, dy+1, rx, ry) || !inEllipse(dx, dy-1, rx, ry)
}
