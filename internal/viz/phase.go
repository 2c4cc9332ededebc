package viz

import (
	"fmt"
	"math"

	"github.com/san-kum/odeguard/internal/dynamo"
)

// Bounds is the padded data rectangle of a phase portrait.
type Bounds struct {
	MinX, MaxX, MinY, MaxY float64
}

// PhaseBounds returns the extent of components xi and yi over states, padded
// by a tenth of the range on every side. Non-finite points are skipped.
func PhaseBounds(states []dynamo.State, xi, yi int) (Bounds, error) {
	if len(states) == 0 {
		return Bounds{}, fmt.Errorf("no states to plot")
	}
	dim := len(states[0])
	if xi < 0 || yi < 0 || xi >= dim || yi >= dim {
		return Bounds{}, fmt.Errorf("%w: components %d and %d of a %d dimensional state", dynamo.ErrDimensionMismatch, xi, yi, dim)
	}

	b := Bounds{math.Inf(1), math.Inf(-1), math.Inf(1), math.Inf(-1)}
	for _, s := range states {
		x, y := s[xi], s[yi]
		if !finite(x) || !finite(y) {
			continue
		}
		b.MinX, b.MaxX = math.Min(b.MinX, x), math.Max(b.MaxX, x)
		b.MinY, b.MaxY = math.Min(b.MinY, y), math.Max(b.MaxY, y)
	}
	if math.IsInf(b.MinX, 1) {
		return Bounds{}, fmt.Errorf("no finite states to plot")
	}

	pad := func(lo, hi float64) (float64, float64) {
		r := hi - lo
		if r == 0 {
			r = math.Max(1, math.Abs(lo))
		}
		return lo - r/10, hi + r/10
	}
	b.MinX, b.MaxX = pad(b.MinX, b.MaxX)
	b.MinY, b.MaxY = pad(b.MinY, b.MaxY)
	return b, nil
}

// Scale maps (x, y) into a w by h raster with y growing downwards.
func (b Bounds) Scale(x, y float64, w, h int) (float64, float64) {
	px := (x - b.MinX) / (b.MaxX - b.MinX) * float64(w-1)
	py := float64(h-1) - (y-b.MinY)/(b.MaxY-b.MinY)*float64(h-1)
	return px, py
}

// Phase draws component yi against component xi as a braille line plot of
// cols by rows characters. The axes are drawn dashed when they are in view,
// so excursions out of the positive orthant are easy to spot.
func Phase(states []dynamo.State, xi, yi, cols, rows int) (string, error) {
	b, err := PhaseBounds(states, xi, yi)
	if err != nil {
		return "", err
	}
	if cols <= 0 {
		cols = 60
	}
	if rows <= 0 {
		rows = 20
	}

	c := newCanvas(cols, rows)
	w, h := c.size()
	if b.MinX <= 0 && b.MaxX >= 0 {
		x, _ := b.Scale(0, 0, w, h)
		c.dashed(int(math.Round(x)), 0, int(math.Round(x)), h-1)
	}
	if b.MinY <= 0 && b.MaxY >= 0 {
		_, y := b.Scale(0, 0, w, h)
		c.dashed(0, int(math.Round(y)), w-1, int(math.Round(y)))
	}

	prevOK := false
	var px, py int
	for _, s := range states {
		if !finite(s[xi]) || !finite(s[yi]) {
			prevOK = false
			continue
		}
		fx, fy := b.Scale(s[xi], s[yi], w, h)
		x, y := int(math.Round(fx)), int(math.Round(fy))
		if prevOK {
			c.line(px, py, x, y)
		} else {
			c.set(x, y)
		}
		px, py, prevOK = x, y, true
	}

	caption := Subtle.Render(fmt.Sprintf("u%d ∈ [%.3g, %.3g]  u%d ∈ [%.3g, %.3g]",
		xi, b.MinX, b.MaxX, yi, b.MinY, b.MaxY))
	return c.String() + caption, nil
}

func finite(v float64) bool { return !math.IsNaN(v) && !math.IsInf(v, 0) }
