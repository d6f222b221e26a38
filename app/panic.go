package app

import (
	"fmt"
	"image/color"
	"runtime/debug"
	"strings"

	"bouncer/canvas"
)

// recoverStep turns a panic inside a frame into an error. The panic and
// its stack go to the logger and the canvas is replaced by a panic screen
// so the window shows why it stopped.
func (a *App) recoverStep(err *error) {
	r := recover()
	if r == nil {
		return
	}
	stack := debug.Stack()

	if l := a.h.Logger(); l != nil {
		l.WriteLineString(fmt.Sprintf("Bouncer panic: frame=%d panic=%v", a.c.FrameCount(), r))
		for _, line := range strings.Split(string(stack), "\n") {
			if line == "" {
				continue
			}
			l.WriteLineString(line)
		}
	}

	a.drawPanicScreen(fmt.Sprint(r))
	*err = fmt.Errorf("sketch panic: %v", r)
}

func (a *App) drawPanicScreen(msg string) {
	c := a.c
	c.Clear(canvas.HSB(0, 0, 100, 100))

	black := color.RGBA{A: 255}
	lines := append([]string{"Bouncer Panic:"}, wrap(msg, c.Width())...)
	top := 4
	for _, line := range lines {
		if top+canvas.LineHeight() > c.Height() {
			break
		}
		c.DrawText(4, top, line, black)
		top += canvas.LineHeight()
	}
	_ = c.Advance()
}

// wrap breaks s into lines that fit width pixels, splitting on runes.
func wrap(s string, width int) []string {
	var out []string
	var cur []rune
	for _, r := range s {
		if r == '\n' {
			out = append(out, string(cur))
			cur = cur[:0]
			continue
		}
		if len(cur) > 0 && 4+canvas.TextWidth(string(append(cur, r))) > width {
			out = append(out, string(cur))
			cur = cur[:0]
		}
		cur = append(cur, r)
	}
	if len(cur) > 0 {
		out = append(out, string(cur))
	}
	return out
}
