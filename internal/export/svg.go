// Package export renders stored trajectories for use outside the terminal.
package export

import (
	"bufio"
	"fmt"
	"io"
	"math"

	"github.com/san-kum/odeguard/internal/dynamo"
	"github.com/san-kum/odeguard/internal/viz"
)

type SVGOptions struct {
	Width, Height int
	Stroke        string
	// Tolerance marks points with either component below -Tolerance.
	// Zero disables the markers.
	Tolerance float64
}

func DefaultSVGOptions() SVGOptions {
	return SVGOptions{Width: 640, Height: 480, Stroke: "#00ccff"}
}

// PhaseSVG writes component yi against component xi as an SVG path. Axes in
// view are drawn dashed and states outside the positive orthant by more than
// the tolerance are marked.
func PhaseSVG(w io.Writer, states []dynamo.State, xi, yi int, opts SVGOptions) error {
	b, err := viz.PhaseBounds(states, xi, yi)
	if err != nil {
		return err
	}
	def := DefaultSVGOptions()
	if opts.Width <= 0 {
		opts.Width = def.Width
	}
	if opts.Height <= 0 {
		opts.Height = def.Height
	}
	if opts.Stroke == "" {
		opts.Stroke = def.Stroke
	}
	W, H := opts.Width, opts.Height

	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, `<?xml version="1.0" encoding="UTF-8"?>
<svg xmlns="http://www.w3.org/2000/svg" width="%d" height="%d" viewBox="0 0 %d %d">
<rect width="100%%" height="100%%" fill="#0a0a0a"/>
`, W, H, W, H)

	if b.MinX <= 0 && b.MaxX >= 0 {
		x, _ := b.Scale(0, 0, W, H)
		fmt.Fprintf(bw, `<line class="axis" x1="%.1f" y1="0" x2="%.1f" y2="%d" stroke="#444466" stroke-dasharray="4 4"/>`+"\n", x, x, H)
	}
	if b.MinY <= 0 && b.MaxY >= 0 {
		_, y := b.Scale(0, 0, W, H)
		fmt.Fprintf(bw, `<line class="axis" x1="0" y1="%.1f" x2="%d" y2="%.1f" stroke="#444466" stroke-dasharray="4 4"/>`+"\n", y, W, y)
	}

	fmt.Fprintf(bw, `<path fill="none" stroke="%s" stroke-width="1.5" d="`, opts.Stroke)
	move := true
	for _, s := range states {
		if !finite(s[xi]) || !finite(s[yi]) {
			move = true
			continue
		}
		x, y := b.Scale(s[xi], s[yi], W, H)
		cmd := "L"
		if move {
			cmd = "M"
		}
		fmt.Fprintf(bw, "%s%.1f,%.1f ", cmd, x, y)
		move = false
	}
	bw.WriteString("\"/>\n")

	if opts.Tolerance > 0 {
		for _, s := range states {
			if !(s[xi] < -opts.Tolerance || s[yi] < -opts.Tolerance) || !finite(s[xi]) || !finite(s[yi]) {
				continue
			}
			x, y := b.Scale(s[xi], s[yi], W, H)
			fmt.Fprintf(bw, `<circle class="violation" cx="%.1f" cy="%.1f" r="3" fill="#ff4444"/>`+"\n", x, y)
		}
	}

	bw.WriteString("</svg>\n")
	return bw.Flush()
}

func finite(v float64) bool { return !math.IsNaN(v) && !math.IsInf(v, 0) }
