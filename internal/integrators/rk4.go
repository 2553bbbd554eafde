package integrators

import "github.com/san-kum/dcmwalk/internal/dynamo"

// RK4 is the classic fourth order Runge-Kutta rule. Inputs are held
// constant over the period.
type RK4 struct {
	k       [4]dynamo.State
	scratch dynamo.State
}

func NewRK4() *RK4 {
	return &RK4{}
}

var (
	rk4Nodes   = [4]float64{0, 0.5, 0.5, 1}
	rk4Weights = [4]float64{1.0 / 6, 1.0 / 3, 1.0 / 3, 1.0 / 6}
)

func (r *RK4) Step(dyn dynamo.System, x dynamo.State, u dynamo.Control, t, dt float64) dynamo.State {
	n := len(x)
	if len(r.scratch) != n {
		for s := range r.k {
			r.k[s] = make(dynamo.State, n)
		}
		r.scratch = make(dynamo.State, n)
	}

	copy(r.k[0], dyn.Derive(x, u, t))
	for s := 1; s < 4; s++ {
		h := rk4Nodes[s] * dt
		for i := 0; i < n; i++ {
			r.scratch[i] = x[i] + h*r.k[s-1][i]
		}
		copy(r.k[s], dyn.Derive(r.scratch, u, t+h))
	}

	result := make(dynamo.State, n)
	copy(result, x)
	for s, w := range rk4Weights {
		for i := 0; i < n; i++ {
			result[i] += dt * w * r.k[s][i]
		}
	}
	return result
}
