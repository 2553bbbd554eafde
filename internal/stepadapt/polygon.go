package stepadapt

import (
	"fmt"

	"github.com/san-kum/dcmwalk/internal/dynamo"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r2"
)

// Rectangle bounds the landing ZMP around its nominal value. Distances are
// measured in the frame of the landing foot and must be non-negative.
type Rectangle struct {
	Front float64 `yaml:"front"`
	Back  float64 `yaml:"back"`
	Left  float64 `yaml:"left"`
	Right float64 `yaml:"right"`
}

func (r Rectangle) Validate() error {
	if r.Front < 0 || r.Back < 0 || r.Left < 0 || r.Right < 0 {
		return fmt.Errorf("stepadapt: negative rectangle offset %+v: %w", r, dynamo.ErrConfiguration)
	}
	return nil
}

// SupportPolygon is the convex region {p : A p <= B}.
type SupportPolygon struct {
	A *mat.Dense
	B []float64
}

// Polygon places the rectangle at center, rotated by yaw.
func (r Rectangle) Polygon(center r2.Vec, yaw float64) SupportPolygon {
	local := [hullRows]struct {
		n r2.Vec
		d float64
	}{
		{r2.Vec{X: 1}, r.Front},
		{r2.Vec{X: -1}, r.Back},
		{r2.Vec{Y: 1}, r.Left},
		{r2.Vec{Y: -1}, r.Right},
	}
	rot := r2.NewRotation(yaw, r2.Vec{})
	p := SupportPolygon{A: mat.NewDense(hullRows, 2, nil), B: make([]float64, hullRows)}
	for i, h := range local {
		n := rot.Rotate(h.n)
		p.A.Set(i, 0, n.X)
		p.A.Set(i, 1, n.Y)
		p.B[i] = h.d + r2.Dot(n, center)
	}
	return p
}

func (p SupportPolygon) Contains(pt r2.Vec, tol float64) bool {
	for i, b := range p.B {
		if p.A.At(i, 0)*pt.X+p.A.At(i, 1)*pt.Y > b+tol {
			return false
		}
	}
	return true
}
