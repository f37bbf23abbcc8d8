// Package status drives the RGB status LED: transient colours while a phase
// runs, a brief flash for "ok" and a held colour for errors.
package status

import (
	"time"

	"picologger-go/x/mathx"
)

// Channel is one PWM output. Set takes a physical level in 0..Top.
type Channel interface {
	Set(level uint16)
}

// Color is an RGB mix, each component in 0..1.
type Color struct{ R, G, B float64 }

var (
	Off     = Color{}
	Red     = Color{1, 0, 0}
	Green   = Color{0, 1, 0}
	Blue    = Color{0, 0, 1}
	White   = Color{1, 0.80, 0.75}
	Yellow  = Color{1, 0.33, 0}
	Cyan    = Color{0, 0.90, 0.75}
	Magenta = Color{1, 0, 1}
	DimRed  = Color{0.20, 0, 0}
	Orange  = Color{1, 0.12, 0}
)

// Flash timing defaults.
const (
	DefaultFlashes = 3
	DefaultOn      = 200 * time.Millisecond
	DefaultOff     = 100 * time.Millisecond
)

type LED struct {
	r, g, b   Channel
	top       uint16
	activeLow bool
	pause     func(time.Duration)
	cur       Color
}

// New drives three channels sharing resolution top. pause blocks for the
// flash phases.
func New(r, g, b Channel, top uint16, activeLow bool, pause func(time.Duration)) *LED {
	l := &LED{r: r, g: g, b: b, top: mathx.Max(top, 1), activeLow: activeLow, pause: pause}
	l.Off()
	return l
}

// toPhys maps a 0..1 component to a physical level, inverted if active-low.
func (l *LED) toPhys(v float64) uint16 {
	lvl := uint16(mathx.Clamp(v, 0, 1) * float64(l.top))
	if !l.activeLow {
		return lvl
	}
	return l.top - lvl
}

func (l *LED) On(c Color) {
	l.r.Set(l.toPhys(c.R))
	l.g.Set(l.toPhys(c.G))
	l.b.Set(l.toPhys(c.B))
	l.cur = c
}

func (l *LED) Off() { l.On(Off) }

// Current is the colour last shown.
func (l *LED) Current() Color { return l.cur }

// Flash blinks c with the default count and timing, then turns off.
func (l *LED) Flash(c Color) { l.FlashN(c, DefaultFlashes, DefaultOn, DefaultOff) }

func (l *LED) FlashN(c Color, n int, on, off time.Duration) {
	for i := 0; i < n; i++ {
		l.On(c)
		l.pause(on)
		l.Off()
		l.pause(off)
	}
	l.Off()
}

// DualFlash alternates a and b with default timing, then turns off.
func (l *LED) DualFlash(a, b Color) {
	for i := 0; i < DefaultFlashes; i++ {
		l.On(a)
		l.pause(DefaultOn)
		l.On(b)
		l.pause(DefaultOn)
	}
	l.Off()
}

var palette = []struct {
	name string
	c    Color
}{
	{"off", Off}, {"red", Red}, {"green", Green}, {"blue", Blue},
	{"white", White}, {"yellow", Yellow}, {"cyan", Cyan},
	{"magenta", Magenta}, {"dim-red", DimRed}, {"orange", Orange},
}

// Name returns the palette colour nearest to c.
func Name(c Color) string {
	best, dist := "", 4.0
	for _, p := range palette {
		dr, dg, db := c.R-p.c.R, c.G-p.c.G, c.B-p.c.B
		if d := dr*dr + dg*dg + db*db; d < dist {
			best, dist = p.name, d
		}
	}
	return best
}
