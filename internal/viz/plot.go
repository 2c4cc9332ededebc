package viz

import (
	"fmt"
	"math"

	"github.com/guptarohit/asciigraph"

	"github.com/san-kum/odeguard/internal/dynamo"
)

var seriesColors = []asciigraph.AnsiColor{
	asciigraph.Cyan, asciigraph.Magenta, asciigraph.Yellow, asciigraph.Green, asciigraph.Red,
}

type PlotOptions struct {
	Width, Height int
	Caption       string
	// Components selects which state components to draw. Empty means all.
	Components []int
}

// Plot draws the selected components against time. Adaptive runs have
// uneven steps, so every series is first resampled onto a uniform grid.
func Plot(states []dynamo.State, times []float64, opts PlotOptions) (string, error) {
	if len(states) == 0 {
		return "", fmt.Errorf("no states to plot")
	}
	if opts.Width <= 0 {
		opts.Width = 80
	}
	if opts.Height <= 0 {
		opts.Height = 12
	}
	comps := opts.Components
	if len(comps) == 0 {
		for i := range states[0] {
			comps = append(comps, i)
		}
	}

	series := make([][]float64, 0, len(comps))
	colors := make([]asciigraph.AnsiColor, 0, len(comps))
	for k, c := range comps {
		if c < 0 || c >= len(states[0]) {
			return "", fmt.Errorf("%w: component %d of a %d dimensional state", dynamo.ErrDimensionMismatch, c, len(states[0]))
		}
		vals := make([]float64, len(states))
		for i, s := range states {
			vals[i] = s[c]
		}
		series = append(series, Resample(times, vals, opts.Width))
		colors = append(colors, seriesColors[k%len(seriesColors)])
	}

	return asciigraph.PlotMany(series,
		asciigraph.Height(opts.Height),
		asciigraph.Width(opts.Width),
		asciigraph.SeriesColors(colors...),
		asciigraph.Caption(opts.Caption),
	), nil
}

// Resample linearly interpolates (times, vals) at n evenly spaced times
// spanning the same interval. Times may run backwards.
func Resample(times, vals []float64, n int) []float64 {
	if len(vals) < 2 || n < 2 {
		return append([]float64(nil), vals...)
	}
	t0, t1 := times[0], times[len(times)-1]
	out := make([]float64, n)
	j := 0
	for i := range out {
		t := t0 + (t1-t0)*float64(i)/float64(n-1)
		for j < len(times)-2 && (t-times[j+1])*(t1-t0) > 0 {
			j++
		}
		h := times[j+1] - times[j]
		if h == 0 {
			out[i] = vals[j+1]
			continue
		}
		theta := math.Max(0, math.Min(1, (t-times[j])/h))
		out[i] = vals[j] + theta*(vals[j+1]-vals[j])
	}
	return out
}
