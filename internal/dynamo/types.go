package dynamo

import (
	"math"
)

// State is a flat vector of continuous states integrated by an [Integrator].
type State []float64

func (s State) IsValid() bool {
	for _, v := range s {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// Control is the exogenous input held constant over one integration period.
type Control []float64

type System interface {
	Derive(x State, u Control, t float64) State
	StateDim() int
	ControlDim() int
}

type Integrator interface {
	Step(dyn System, x State, u Control, t float64, dt float64) State
}

// Resettable is implemented by integrators that carry memory between steps.
type Resettable interface {
	Reset()
}
