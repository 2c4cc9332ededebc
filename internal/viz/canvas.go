package viz

import "strings"

const brailleBlank = 0x2800

// brailleBits maps a sub-pixel (row, col) inside one cell to its dot.
var brailleBits = [4][2]rune{
	{0x01, 0x08},
	{0x02, 0x10},
	{0x04, 0x20},
	{0x40, 0x80},
}

// canvas is a grid of braille cells, each holding 2x4 sub-pixels.
type canvas struct {
	cols, rows int
	cells      [][]rune
}

func newCanvas(cols, rows int) *canvas {
	c := &canvas{cols: cols, rows: rows, cells: make([][]rune, rows)}
	for i := range c.cells {
		c.cells[i] = []rune(strings.Repeat(string(rune(brailleBlank)), cols))
	}
	return c
}

// size is the canvas size in sub-pixels.
func (c *canvas) size() (w, h int) { return 2 * c.cols, 4 * c.rows }

func (c *canvas) set(x, y int) {
	if x < 0 || y < 0 || x >= 2*c.cols || y >= 4*c.rows {
		return
	}
	c.cells[y/4][x/2] |= brailleBits[y%4][x%2]
}

// line draws from (x0, y0) to (x1, y1) with Bresenham's algorithm.
func (c *canvas) line(x0, y0, x1, y1 int) {
	dx, dy := abs(x1-x0), -abs(y1-y0)
	sx, sy := 1, 1
	if x0 > x1 {
		sx = -1
	}
	if y0 > y1 {
		sy = -1
	}
	e := dx + dy
	for {
		c.set(x0, y0)
		if x0 == x1 && y0 == y1 {
			return
		}
		e2 := 2 * e
		if e2 >= dy {
			e += dy
			x0 += sx
		}
		if e2 <= dx {
			e += dx
			y0 += sy
		}
	}
}

// dashed draws every other pair of sub-pixels along a horizontal or vertical
// line.
func (c *canvas) dashed(x0, y0, x1, y1 int) {
	w, h := c.size()
	switch {
	case x0 == x1:
		for y := max(0, min(y0, y1)); y <= min(h-1, max(y0, y1)); y++ {
			if y%4 < 2 {
				c.set(x0, y)
			}
		}
	case y0 == y1:
		for x := max(0, min(x0, x1)); x <= min(w-1, max(x0, x1)); x++ {
			if x%4 < 2 {
				c.set(x, y0)
			}
		}
	}
}

func (c *canvas) String() string {
	var b strings.Builder
	for _, row := range c.cells {
		b.WriteString(string(row))
		b.WriteByte('\n')
	}
	return b.String()
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
