package canvas

import (
	"image/color"
	"math"

	"github.com/lucasb-eyer/go-colorful"
)

// Color is a hue/saturation/brightness color with alpha.
//
// Hue is in degrees and wraps; saturation, brightness and alpha use 0..100.
type Color struct {
	Hue        float64
	Saturation float64
	Brightness float64
	Alpha      float64
}

// HSB builds a Color.
func HSB(h, s, b, a float64) Color {
	return Color{Hue: h, Saturation: s, Brightness: b, Alpha: a}
}

// WrappedHue returns the hue folded into [0, 360).
func (c Color) WrappedHue() float64 {
	h := math.Mod(c.Hue, 360)
	if h < 0 {
		h += 360
	}
	return h
}

// RGBA converts to 8-bit channels. The alpha channel maps 0..100 onto 0..255.
func (c Color) RGBA() color.RGBA {
	rgb := colorful.Hsv(c.WrappedHue(), clampUnit(c.Saturation/100), clampUnit(c.Brightness/100)).Clamped()
	r, g, b := rgb.RGB255()
	return color.RGBA{R: r, G: g, B: b, A: uint8(math.Round(clampUnit(c.Alpha/100) * 255))}
}

func clampUnit(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
