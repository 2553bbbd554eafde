package sim

import (
	"context"
	"math"
	"math/rand/v2"
	"sync"

	"github.com/san-kum/dcmwalk/internal/config"
	"github.com/san-kum/dcmwalk/internal/control"
	"github.com/san-kum/dcmwalk/internal/dynamo"
	"github.com/san-kum/dcmwalk/internal/integrators"
	"github.com/san-kum/dcmwalk/internal/stepadapt"
	"github.com/san-kum/dcmwalk/internal/trajectory"
	"github.com/san-kum/dcmwalk/internal/walking"
	"gonum.org/v1/gonum/spatial/r2"
	"gonum.org/v1/gonum/stat/distuv"
)

// Robot is a point-mass robot that tracks the walking references with a
// DCM feedback law. Feet follow their references exactly and the ZMP is
// kept inside the feet in contact.
type Robot struct {
	mu sync.Mutex

	cfg    config.SimConfig
	dt     float64
	height float64
	omega  float64

	plant *lipmPlant
	integ dynamo.Integrator
	ctrl  *control.DCMReactive
	left  stepadapt.Rectangle
	right stepadapt.Rectangle

	x     dynamo.State
	zmp   r2.Vec
	force r2.Vec
	t     float64

	refs      walking.References
	hasRefs   bool
	homePolls int
	homing    bool

	noise *distuv.Normal
}

func NewRobot(cfg *config.Config) (*Robot, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	omega, err := cfg.Omega()
	if err != nil {
		return nil, err
	}
	integ, err := integrators.New(cfg.Integrator)
	if err != nil {
		return nil, err
	}
	r := &Robot{
		cfg:    cfg.Sim,
		dt:     cfg.Period,
		height: cfg.CoMHeight,
		omega:  omega,
		plant:  &lipmPlant{omega: omega, mass: cfg.Sim.Mass},
		integ:  integ,
		ctrl:   control.NewDCMReactive(omega, cfg.Sim.DCMGain),
		left:   cfg.Step.LeftPolygon,
		right:  cfg.Step.RightPolygon,
		x:      make(dynamo.State, 4),
	}
	if cfg.Sim.NoiseStd > 0 {
		r.noise = &distuv.Normal{Mu: 0, Sigma: cfg.Sim.NoiseStd, Src: rand.NewPCG(uint64(cfg.Sim.Seed), 0)}
	}
	return r, nil
}

func (r *Robot) sample() float64 {
	if r.noise == nil {
		return 0
	}
	return r.noise.Rand()
}

func (r *Robot) Feedback(ctx context.Context) (walking.Feedback, error) {
	if err := ctx.Err(); err != nil {
		return walking.Feedback{}, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	fb := walking.Feedback{
		Time:        r.t,
		CoM:         r2.Vec{X: r.x[0] + r.sample(), Y: r.x[1] + r.sample()},
		CoMVelocity: r2.Vec{X: r.x[2] + r.sample(), Y: r.x[3] + r.sample()},
		CoMHeight:   r.height,
		ZMP:         r.zmp,
	}
	if r.hasRefs {
		fb.CoMHeight = r.refs.CoMHeight
		fb.BaseYaw = (r.refs.LeftFoot.Yaw + r.refs.RightFoot.Yaw) / 2
	}
	// compliant arms deflect with the external force
	g := r.cfg.ArmGain
	fb.Arms = stepadapt.ArmErrors{
		LeftPitch:  g * r.force.X,
		RightPitch: g * r.force.X,
		LeftRoll:   g * r.force.Y,
		RightRoll:  -g * r.force.Y,
	}
	return fb, nil
}

// Send tracks refs for one period.
func (r *Robot) Send(refs walking.References) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.refs, r.hasRefs = refs, true

	dcm := r2.Vec{X: r.x[0] + r.x[2]/r.omega, Y: r.x[1] + r.x[3]/r.omega}
	desired := r.ctrl.Compute(refs.DCM, refs.DCMVelocity, dcm)
	if lag := r.cfg.ZMPLag; lag > 0 {
		a := r.dt / (lag + r.dt)
		desired = r2.Add(r.zmp, r2.Scale(a, r2.Sub(desired, r.zmp)))
	}
	r.zmp = r.clamp(desired, refs)
	r.force = r.pushForce(r.t)

	u := dynamo.Control{r.zmp.X, r.zmp.Y, r.force.X, r.force.Y}
	next := r.integ.Step(r.plant, r.x, u, r.t, r.dt)
	if !next.IsValid() {
		return dynamo.ErrInvalidState
	}
	r.x = next
	r.t += r.dt
	return nil
}

func (r *Robot) MoveHome(stance walking.Stance) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	mid := r2.Scale(0.5, r2.Add(stance.LeftFoot.Planar(), stance.RightFoot.Planar()))
	r.x = dynamo.State{mid.X, mid.Y, 0, 0}
	r.zmp = mid
	r.height = stance.CoMHeight
	r.homing = true
	r.homePolls = 0
	if ri, ok := r.integ.(dynamo.Resettable); ok {
		ri.Reset()
	}
	return nil
}

func (r *Robot) MotionDone() (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.homing {
		return true, nil
	}
	r.homePolls++
	if r.homePolls >= r.cfg.HomeTicks {
		r.homing = false
	}
	return !r.homing, nil
}

func (r *Robot) State() PlantState {
	r.mu.Lock()
	defer r.mu.Unlock()
	com := r2.Vec{X: r.x[0], Y: r.x[1]}
	vel := r2.Vec{X: r.x[2], Y: r.x[3]}
	return PlantState{
		Time:        r.t,
		CoM:         com,
		CoMVelocity: vel,
		DCM:         r2.Add(com, r2.Scale(1/r.omega, vel)),
		ZMP:         r.zmp,
		Force:       r.force,
	}
}

func (r *Robot) pushForce(t float64) r2.Vec {
	var f r2.Vec
	for _, p := range r.cfg.Pushes {
		if t >= p.Time && t < p.Time+p.Duration {
			f = r2.Add(f, p.Force.R2())
		}
	}
	return f
}

// clamp keeps zmp inside the bounding box of the feet in contact.
func (r *Robot) clamp(zmp r2.Vec, refs walking.References) r2.Vec {
	lo := r2.Vec{X: math.Inf(1), Y: math.Inf(1)}
	hi := r2.Vec{X: math.Inf(-1), Y: math.Inf(-1)}
	extend := func(foot trajectory.Pose, rect stepadapt.Rectangle) {
		for _, c := range []r2.Vec{
			{X: rect.Front, Y: rect.Left},
			{X: rect.Front, Y: -rect.Right},
			{X: -rect.Back, Y: rect.Left},
			{X: -rect.Back, Y: -rect.Right},
		} {
			p := r2.Add(foot.Planar(), trajectory.Rotate(c, foot.Yaw))
			lo = r2.Vec{X: math.Min(lo.X, p.X), Y: math.Min(lo.Y, p.Y)}
			hi = r2.Vec{X: math.Max(hi.X, p.X), Y: math.Max(hi.Y, p.Y)}
		}
	}
	if refs.LeftContact {
		extend(refs.LeftFoot, r.left)
	}
	if refs.RightContact {
		extend(refs.RightFoot, r.right)
	}
	if math.IsInf(lo.X, 0) {
		return zmp
	}
	return r2.Vec{
		X: math.Min(math.Max(zmp.X, lo.X), hi.X),
		Y: math.Min(math.Max(zmp.Y, lo.Y), hi.Y),
	}
}
