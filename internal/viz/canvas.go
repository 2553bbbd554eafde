package viz

import (
	"math"
	"strings"

	"gonum.org/v1/gonum/spatial/r2"
)

// Braille Patterns: 2x4 dots
// 1 4
// 2 5
// 3 6
// 7 8
//
// Unicode offset 0x2800
var pixelMap = [4][2]int{
	{0x1, 0x8},
	{0x2, 0x10},
	{0x4, 0x20},
	{0x40, 0x80},
}

type Canvas struct {
	Width, Height int
	Grid          [][]rune
}

func NewCanvas(w, h int) *Canvas {
	c := &Canvas{
		Width:  w,
		Height: h,
		Grid:   make([][]rune, h),
	}
	for i := range c.Grid {
		c.Grid[i] = make([]rune, w)
		for j := range c.Grid[i] {
			c.Grid[i][j] = 0x2800 // Empty braille char
		}
	}
	return c
}

// Set lights the dot at (x, y) in sub-pixel coordinates. The canvas is
// Width*2 by Height*4 dots.
func (c *Canvas) Set(x, y int) {
	if x < 0 || y < 0 {
		return
	}

	col := x / 2
	row := y / 4
	if col >= c.Width || row >= c.Height {
		return
	}

	subX := x % 2
	subY := y % 4

	c.Grid[row][col] |= rune(pixelMap[subY][subX])
}

func (c *Canvas) Clear() {
	for i := range c.Grid {
		for j := range c.Grid[i] {
			c.Grid[i][j] = 0x2800
		}
	}
}

// DrawLine draws a line with Bresenham's algorithm.
func (c *Canvas) DrawLine(x0, y0, x1, y1 int) {
	dx := absInt(x1 - x0)
	dy := absInt(y1 - y0)
	sx := -1
	if x0 < x1 {
		sx = 1
	}
	sy := -1
	if y0 < y1 {
		sy = 1
	}
	err := dx - dy

	for {
		c.Set(x0, y0)
		if x0 == x1 && y0 == y1 {
			break
		}
		e2 := 2 * err
		if e2 > -dy {
			err -= dy
			x0 += sx
		}
		if e2 < dx {
			err += dx
			y0 += sy
		}
	}
}

func (c *Canvas) String() string {
	var b strings.Builder
	for _, row := range c.Grid {
		b.WriteString(string(row) + "\n")
	}
	return b.String()
}

func absInt(x int) int {
	if x < 0 {
		return -x
	}
	return x
}

// Viewport maps world coordinates in meters onto canvas dots, x to the
// right and y up. Braille dots are close to square so one scale serves
// both axes.
type Viewport struct {
	Center r2.Vec
	// Scale is dots per meter.
	Scale float64
	c     *Canvas
}

func (c *Canvas) Viewport(center r2.Vec, scale float64) *Viewport {
	return &Viewport{Center: center, Scale: scale, c: c}
}

func (v *Viewport) dot(p r2.Vec) (int, int) {
	w, h := v.c.Width*2, v.c.Height*4
	x := float64(w)/2 + (p.X-v.Center.X)*v.Scale
	y := float64(h)/2 - (p.Y-v.Center.Y)*v.Scale
	return int(math.Round(x)), int(math.Round(y))
}

func (v *Viewport) Point(p r2.Vec) {
	v.c.Set(v.dot(p))
}

func (v *Viewport) Line(a, b r2.Vec) {
	x0, y0 := v.dot(a)
	x1, y1 := v.dot(b)
	v.c.DrawLine(x0, y0, x1, y1)
}

// Polygon draws the closed outline through pts.
func (v *Viewport) Polygon(pts []r2.Vec) {
	for i := range pts {
		v.Line(pts[i], pts[(i+1)%len(pts)])
	}
}

// Cross marks p with a small plus sign.
func (v *Viewport) Cross(p r2.Vec) {
	x, y := v.dot(p)
	for d := -1; d <= 1; d++ {
		v.c.Set(x+d, y)
		v.c.Set(x, y+d)
	}
}
