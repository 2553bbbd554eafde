package trajectory

import (
	"context"
	"fmt"
	"math"

	"github.com/san-kum/dcmwalk/internal/dynamo"
	"gonum.org/v1/gonum/interp"
	"gonum.org/v1/gonum/spatial/r2"
	"gonum.org/v1/gonum/spatial/r3"
)

type StraightConfig struct {
	Dt            float64
	Omega         float64
	CoMHeight     float64
	StepLength    float64
	StepWidth     float64
	StepHeight    float64
	SingleSupport float64
	DoubleSupport float64
	// Settle is how long the plan keeps standing after the last step.
	Settle         float64
	MaxSteps       int
	GoalTolerance  float64
	LeftZMPOffset  r2.Vec
	RightZMPOffset r2.Vec
}

func (c StraightConfig) validate() error {
	switch {
	case c.Dt <= 0, c.Omega <= 0, c.CoMHeight <= 0:
		return fmt.Errorf("straight: period, omega and com height must be positive: %w", dynamo.ErrConfiguration)
	case c.SingleSupport <= 0, c.DoubleSupport <= 0, c.Settle <= 0:
		return fmt.Errorf("straight: phase durations must be positive: %w", dynamo.ErrConfiguration)
	case c.StepLength <= 0, c.StepWidth < 0, c.StepHeight < 0:
		return fmt.Errorf("straight: invalid step geometry: %w", dynamo.ErrConfiguration)
	case c.MaxSteps <= 0:
		return fmt.Errorf("straight: max steps must be positive: %w", dynamo.ErrConfiguration)
	}
	return nil
}

// Straight walks toward the goal along the line joining the current feet
// midpoint to the goal, with a final step that brings the feet side by side.
type Straight struct {
	cfg StraightConfig
}

func NewStraight(cfg StraightConfig) (*Straight, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &Straight{cfg: cfg}, nil
}

type footstep struct {
	swing   Side
	landing Pose
}

func (g *Straight) zmpOffset(side Side) r2.Vec {
	if side == Left {
		return g.cfg.LeftZMPOffset
	}
	return g.cfg.RightZMPOffset
}

func (g *Straight) footZMP(side Side, p Pose) r2.Vec {
	return p.Local(g.zmpOffset(side))
}

func (g *Straight) footsteps(req Request) []footstep {
	c := g.cfg
	mid := r2.Scale(0.5, r2.Add(req.LeftFoot.Planar(), req.RightFoot.Planar()))
	delta := r2.Sub(req.Goal, mid)
	dist := r2.Norm(delta)
	if dist <= c.GoalTolerance {
		return nil
	}
	dir := r2.Unit(delta)
	perp := r2.Vec{X: -dir.Y, Y: dir.X}
	heading := math.Atan2(dir.Y, dir.X)

	n := int(math.Ceil(dist / c.StepLength))
	if n > c.MaxSteps {
		n = c.MaxSteps
	}
	swing := Right
	if req.LeftSwinging {
		swing = Left
	}
	z := map[Side]float64{Left: req.LeftFoot.Position.Z, Right: req.RightFoot.Position.Z}

	place := func(side Side, along float64) footstep {
		lateral := c.StepWidth / 2
		if side == Right {
			lateral = -lateral
		}
		p := r2.Add(mid, r2.Add(r2.Scale(along, dir), r2.Scale(lateral, perp)))
		return footstep{swing: side, landing: Pose{Position: r3.Vec{X: p.X, Y: p.Y, Z: z[side]}, Yaw: heading}}
	}

	steps := make([]footstep, 0, n+1)
	var along float64
	for k := 1; k <= n; k++ {
		along = math.Min(float64(k)*c.StepLength, dist)
		steps = append(steps, place(swing, along))
		swing = swing.Other()
	}
	return append(steps, place(swing, along))
}

type swingSpline struct {
	x, y, z, yaw interp.PiecewiseCubic
	t0, t1       float64
}

func newSwingSpline(from, to Pose, t0, t1, height float64) *swingSpline {
	s := &swingSpline{t0: t0, t1: t1}
	ends := []float64{t0, t1}
	zero := []float64{0, 0}
	s.x.FitWithDerivatives(ends, []float64{from.Position.X, to.Position.X}, zero)
	s.y.FitWithDerivatives(ends, []float64{from.Position.Y, to.Position.Y}, zero)
	s.yaw.FitWithDerivatives(ends, []float64{from.Yaw, from.Yaw + wrapAngle(to.Yaw-from.Yaw)}, zero)
	apex := math.Max(from.Position.Z, to.Position.Z) + height
	s.z.FitWithDerivatives(
		[]float64{t0, (t0 + t1) / 2, t1},
		[]float64{from.Position.Z, apex, to.Position.Z},
		[]float64{0, 0, 0},
	)
	return s
}

func (s *swingSpline) pose(t float64) Pose {
	return Pose{
		Position: r3.Vec{X: s.x.Predict(t), Y: s.y.Predict(t), Z: s.z.Predict(t)},
		Yaw:      s.yaw.Predict(t),
	}
}

func (s *swingSpline) twist(t float64) Twist {
	return Twist{
		Linear:  r3.Vec{X: s.x.PredictDerivative(t), Y: s.y.PredictDerivative(t), Z: s.z.PredictDerivative(t)},
		Angular: r3.Vec{Z: s.yaw.PredictDerivative(t)},
	}
}

func (s *swingSpline) acceleration(t, h float64) Twist {
	lo, hi := math.Max(t-h, s.t0), math.Min(t+h, s.t1)
	if hi <= lo {
		return Twist{}
	}
	a, b := s.twist(lo), s.twist(hi)
	return Twist{
		Linear:  r3.Scale(1/(hi-lo), r3.Sub(b.Linear, a.Linear)),
		Angular: r3.Scale(1/(hi-lo), r3.Sub(b.Angular, a.Angular)),
	}
}

// Generate builds the plan. The DCM follows the backward LIPM recursion
// toward the final ZMP, blended from the requested boundary DCM over the
// initial double support. The blend moves the implied ZMP away from the
// planned one, so it must end before a foot leaves the ground.
func (g *Straight) Generate(ctx context.Context, req Request) (*Plan, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c := g.cfg
	steps := g.footsteps(req)
	t0 := req.InitTime
	half := c.DoubleSupport / 2
	cycle := c.SingleSupport + c.DoubleSupport

	takeoff := func(k int) float64 { return t0 + half + float64(k)*cycle }
	impact := func(k int) float64 { return takeoff(k) + c.SingleSupport }

	feet := map[Side]Pose{Left: req.LeftFoot, Right: req.RightFoot}
	initialMid := r2.Scale(0.5, r2.Add(g.footZMP(Left, feet[Left]), g.footZMP(Right, feet[Right])))

	var ts, zx, zy []float64
	knot := func(t float64, z r2.Vec) {
		ts = append(ts, t)
		zx = append(zx, z.X)
		zy = append(zy, z.Y)
	}
	knot(t0, initialMid)

	splines := make([]*swingSpline, len(steps))
	meta := make([]Step, len(steps))
	for k, st := range steps {
		stance := st.swing.Other()
		stanceZMP := g.footZMP(stance, feet[stance])
		knot(takeoff(k), stanceZMP)
		knot(impact(k), stanceZMP)
		splines[k] = newSwingSpline(feet[st.swing], st.landing, takeoff(k), impact(k), c.StepHeight)
		meta[k] = Step{
			Swing:             st.swing,
			TakeOff:           takeoff(k),
			Impact:            impact(k),
			NextDoubleSupport: c.DoubleSupport,
			StanceZMP:         stanceZMP,
			LandingZMP:        g.footZMP(st.swing, st.landing),
			Landing:           st.landing,
		}
		feet[st.swing] = st.landing
	}
	finalMid := r2.Scale(0.5, r2.Add(g.footZMP(Left, feet[Left]), g.footZMP(Right, feet[Right])))
	end := t0 + half + c.Settle
	if len(steps) > 0 {
		last := impact(len(steps) - 1)
		knot(last+c.DoubleSupport, finalMid)
		end = last + c.DoubleSupport + c.Settle
	}
	knot(end, finalMid)

	var zmpX, zmpY interp.PiecewiseLinear
	if err := zmpX.Fit(ts, zx); err != nil {
		return nil, err
	}
	if err := zmpY.Fit(ts, zy); err != nil {
		return nil, err
	}

	n := int(math.Round((end-t0)/c.Dt)) + 1
	plan := &Plan{StartTime: t0, Dt: c.Dt, Samples: make([]Sample, n), Steps: meta}
	zmpAt := func(t float64) r2.Vec { return r2.Vec{X: zmpX.Predict(t), Y: zmpY.Predict(t)} }

	// backward recursion, exact for a ZMP held at the interval midpoint
	decay := math.Exp(-c.Omega * c.Dt)
	dcm := finalMid
	for i := n - 1; i >= 0; i-- {
		t := plan.TimeAt(i)
		z := zmpAt(t)
		if i < n-1 {
			zm := r2.Scale(0.5, r2.Add(z, zmpAt(t+c.Dt)))
			dcm = r2.Add(zm, r2.Scale(decay, r2.Sub(dcm, zm)))
		}
		plan.Samples[i].ZMP = z
		plan.Samples[i].DCM = dcm
	}

	blend := half
	delta := r2.Sub(req.DCM, plan.Samples[0].DCM)
	for i := range plan.Samples {
		s := &plan.Samples[i]
		tau := plan.TimeAt(i) - t0
		s.DCMVelocity = r2.Scale(c.Omega, r2.Sub(s.DCM, s.ZMP))
		if tau < blend {
			w := 0.5 * (1 + math.Cos(math.Pi*tau/blend))
			dw := -0.5 * math.Pi / blend * math.Sin(math.Pi*tau/blend)
			s.DCM = r2.Add(s.DCM, r2.Scale(w, delta))
			s.DCMVelocity = r2.Add(s.DCMVelocity, r2.Scale(dw, delta))
		}
	}

	for k := range meta {
		mid := plan.IndexOf(meta[k].Impact + half)
		meta[k].DCMOffset = r2.Sub(plan.At(mid).DCM, meta[k].LandingZMP)
	}

	g.fillFeet(plan, req, steps, splines, meta)

	plan.MergePoints = append(plan.MergePoints, 0)
	for _, st := range meta {
		if m := plan.IndexOf(st.Impact + half); m < n && m > plan.MergePoints[len(plan.MergePoints)-1] {
			plan.MergePoints = append(plan.MergePoints, m)
		}
	}
	return plan, nil
}

func (g *Straight) fillFeet(plan *Plan, req Request, steps []footstep, splines []*swingSpline, meta []Step) {
	c := g.cfg
	feet := map[Side]Pose{Left: req.LeftFoot, Right: req.RightFoot}
	leftFixed := !req.LeftSwinging
	standing := len(steps) == 0
	k := 0
	for i := range plan.Samples {
		t := plan.TimeAt(i)
		for k < len(steps) && t >= meta[k].Impact {
			feet[steps[k].swing] = steps[k].landing
			k++
			if k == len(steps) {
				standing = true
			}
		}
		s := &plan.Samples[i]
		s.LeftFoot, s.RightFoot = feet[Left], feet[Right]
		s.LeftContact, s.RightContact = true, true
		s.CoMHeight = c.CoMHeight

		if k < len(steps) && t >= meta[k].TakeOff {
			sp := splines[k]
			pose, tw, acc := sp.pose(t), sp.twist(t), sp.acceleration(t, c.Dt/2)
			if steps[k].swing == Left {
				s.LeftFoot, s.LeftTwist, s.LeftAcc, s.LeftContact = pose, tw, acc, false
				leftFixed = false
			} else {
				s.RightFoot, s.RightTwist, s.RightAcc, s.RightContact = pose, tw, acc, false
				leftFixed = true
			}
		}
		s.LeftFixed = leftFixed
		s.Stance = standing && t >= lastDoubleSupportEnd(meta, c.DoubleSupport)
	}
}

func lastDoubleSupportEnd(meta []Step, ds float64) float64 {
	if len(meta) == 0 {
		return math.Inf(-1)
	}
	last := meta[len(meta)-1]
	return last.Impact + ds
}

func wrapAngle(a float64) float64 {
	return math.Atan2(math.Sin(a), math.Cos(a))
}
