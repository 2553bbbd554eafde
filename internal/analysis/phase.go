package analysis

import (
	"math"

	"github.com/san-kum/dcmwalk/internal/sim"
	"github.com/san-kum/dcmwalk/internal/viz"
	"gonum.org/v1/gonum/floats"
)

type Point struct{ X, Y float64 }

// PhasePortrait2D holds data for a 2D phase space plot
type PhasePortrait2D struct {
	Label  string
	Points []Point
}

// PhasePortrait plots the CoM position against its velocity along one axis
// (0 for x, 1 for y). The velocity is differentiated from the positions.
func PhasePortrait(records []sim.Record, axis int) *PhasePortrait2D {
	label := "com x / vx"
	if axis == 1 {
		label = "com y / vy"
	}
	portrait := &PhasePortrait2D{Label: label, Points: make([]Point, 0, len(records))}
	for i := 1; i < len(records); i++ {
		prev, cur := records[i-1], records[i]
		dt := cur.Time - prev.Time
		if dt <= 0 {
			continue
		}
		p, q := prev.CoM.X, cur.CoM.X
		if axis == 1 {
			p, q = prev.CoM.Y, cur.CoM.Y
		}
		portrait.Points = append(portrait.Points, Point{X: q, Y: (q - p) / dt})
	}
	return portrait
}

// Braille draws the portrait as a connected trace on a width by height
// character braille canvas, scaled to the data bounds.
func (p *PhasePortrait2D) Braille(width, height int) string {
	if p == nil || len(p.Points) == 0 || width < 1 || height < 1 {
		return ""
	}
	xs := make([]float64, len(p.Points))
	ys := make([]float64, len(p.Points))
	for i, pt := range p.Points {
		xs[i], ys[i] = pt.X, pt.Y
	}
	c := viz.NewCanvas(width, height)
	w, h := float64(width*2-1), float64(height*4-1)
	scale := func(v, lo, hi, size float64) int {
		if hi == lo {
			return int(size / 2)
		}
		return int(math.Round((v - lo) / (hi - lo) * size))
	}
	minX, maxX := floats.Min(xs), floats.Max(xs)
	minY, maxY := floats.Min(ys), floats.Max(ys)
	dot := func(i int) (int, int) {
		return scale(xs[i], minX, maxX, w), int(h) - scale(ys[i], minY, maxY, h)
	}

	x0, y0 := dot(0)
	c.Set(x0, y0)
	for i := 1; i < len(xs); i++ {
		x1, y1 := dot(i)
		c.DrawLine(x0, y0, x1, y1)
		x0, y0 = x1, y1
	}
	return c.String()
}
