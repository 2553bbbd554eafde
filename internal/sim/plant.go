package sim

import (
	"github.com/san-kum/dcmwalk/internal/dynamo"
)

// lipmPlant is the linear inverted pendulum with an external force:
//
//	c'' = omega^2 (c - zmp) + f/m
//
// State is [cx, cy, vx, vy], control is [zx, zy, fx, fy].
type lipmPlant struct {
	omega float64
	mass  float64
}

func (p *lipmPlant) Derive(x dynamo.State, u dynamo.Control, t float64) dynamo.State {
	w2 := p.omega * p.omega
	return dynamo.State{
		x[2],
		x[3],
		w2*(x[0]-u[0]) + u[2]/p.mass,
		w2*(x[1]-u[1]) + u[3]/p.mass,
	}
}

func (p *lipmPlant) StateDim() int   { return 4 }
func (p *lipmPlant) ControlDim() int { return 4 }
