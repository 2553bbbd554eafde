package lipm

import (
	"fmt"
	"math"

	"github.com/san-kum/dcmwalk/internal/dynamo"
)

// Omega returns sqrt(g/h). Both quantities must be strictly positive.
func Omega(comHeight, gravity float64) (float64, error) {
	if !(comHeight > 0) || !(gravity > 0) || math.IsInf(comHeight, 0) || math.IsInf(gravity, 0) {
		return 0, fmt.Errorf("com height %g, gravity %g: %w", comHeight, gravity, dynamo.ErrConfiguration)
	}
	return math.Sqrt(gravity / comHeight), nil
}

// StableDCM is c' = -omega (c - u) over the two horizontal axes, with the
// DCM reference as control input.
type StableDCM struct {
	omega float64
}

func NewStableDCM(omega float64) *StableDCM {
	return &StableDCM{omega: omega}
}

func (s *StableDCM) Derive(x dynamo.State, u dynamo.Control, t float64) dynamo.State {
	return dynamo.State{
		-s.omega * (x[0] - u[0]),
		-s.omega * (x[1] - u[1]),
	}
}

func (s *StableDCM) StateDim() int   { return 2 }
func (s *StableDCM) ControlDim() int { return 2 }
