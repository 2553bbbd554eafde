package integrators

import "github.com/san-kum/dcmwalk/internal/dynamo"

// Heun is the explicit trapezoidal rule: an Euler predictor followed by the
// average of the slopes at both ends of the period.
type Heun struct {
	k1      dynamo.State
	scratch dynamo.State
}

func NewHeun() *Heun {
	return &Heun{}
}

func (h *Heun) Step(dyn dynamo.System, x dynamo.State, u dynamo.Control, t, dt float64) dynamo.State {
	n := len(x)
	if len(h.k1) != n {
		h.k1 = make(dynamo.State, n)
		h.scratch = make(dynamo.State, n)
	}

	copy(h.k1, dyn.Derive(x, u, t))
	for i := 0; i < n; i++ {
		h.scratch[i] = x[i] + dt*h.k1[i]
	}
	k2 := dyn.Derive(h.scratch, u, t+dt)

	result := make(dynamo.State, n)
	for i := 0; i < n; i++ {
		result[i] = x[i] + 0.5*dt*(h.k1[i]+k2[i])
	}
	return result
}
