package integrators

import "github.com/san-kum/dcmwalk/internal/dynamo"

// Trapezoid integrates the derivative signal with the causal trapezoidal
// rule y_k = y_{k-1} + dt/2 (v_k + v_{k-1}). It evaluates the system once per
// step and remembers the previous derivative; the first step after a reset
// degenerates to forward Euler.
type Trapezoid struct {
	prev dynamo.State
}

func NewTrapezoid() *Trapezoid {
	return &Trapezoid{}
}

func (tr *Trapezoid) Reset() {
	tr.prev = nil
}

func (tr *Trapezoid) Step(dyn dynamo.System, x dynamo.State, u dynamo.Control, t, dt float64) dynamo.State {
	n := len(x)
	v := dyn.Derive(x, u, t)
	if len(tr.prev) != n {
		tr.prev = make(dynamo.State, n)
		copy(tr.prev, v)
	}

	result := make(dynamo.State, n)
	for i := 0; i < n; i++ {
		result[i] = x[i] + 0.5*dt*(v[i]+tr.prev[i])
	}
	copy(tr.prev, v)
	return result
}
