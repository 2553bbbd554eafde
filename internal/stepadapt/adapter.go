package stepadapt

import (
	"fmt"

	"github.com/san-kum/dcmwalk/internal/dynamo"
	"github.com/san-kum/dcmwalk/internal/qp"
	"github.com/san-kum/dcmwalk/internal/trajectory"
	"gonum.org/v1/gonum/spatial/r2"
)

type Weights struct {
	ZMP       r2.Vec
	DCMOffset r2.Vec
	Sigma     float64
}

type AdapterConfig struct {
	Weights Weights
	// Tolerance is the allowed change of the step duration, in seconds.
	Tolerance     float64
	MaxIterations int
	LeftPolygon   Rectangle
	RightPolygon  Rectangle
}

func (c AdapterConfig) Validate() error {
	if c.Tolerance < 0 {
		return fmt.Errorf("stepadapt: negative duration tolerance: %w", dynamo.ErrConfiguration)
	}
	if err := c.LeftPolygon.Validate(); err != nil {
		return err
	}
	return c.RightPolygon.Validate()
}

// Input is the state of one adaptation cycle.
type Input struct {
	Now   float64
	Omega float64
	Step  trajectory.Step
	// DCM is the current DCM, estimated or reference.
	DCM r2.Vec
}

type Output struct {
	Solution
	ImpactTime    float64
	NominalImpact float64
	// Landing is the swing foot pose that puts the foot ZMP on the adapted
	// ZMP.
	Landing trajectory.Pose
}

// Adapter builds and solves the step-adaptation QP for the step in progress.
type Adapter struct {
	cfg AdapterConfig
	qp  *QP
}

func NewAdapter(cfg AdapterConfig, backend qp.Backend) (*Adapter, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if backend == nil {
		backend = qp.NewActiveSet(cfg.MaxIterations)
	}
	q := NewQP(backend)
	if err := q.SetWeights(cfg.Weights.ZMP, cfg.Weights.DCMOffset, cfg.Weights.Sigma); err != nil {
		return nil, err
	}
	return &Adapter{cfg: cfg, qp: q}, nil
}

func (a *Adapter) polygon(side trajectory.Side) Rectangle {
	if side == trajectory.Left {
		return a.cfg.LeftPolygon
	}
	return a.cfg.RightPolygon
}

// Run solves one cycle. It fails with ErrOptimization when called outside
// the single support of in.Step.
func (a *Adapter) Run(in Input) (Output, error) {
	st := in.Step
	timing := Timing{Now: in.Now, Impact: st.Impact, DoubleSupport: st.NextDoubleSupport}
	remaining := timing.RemainingSingleSupport()
	if remaining <= 0 {
		return Output{}, fmt.Errorf("stepadapt: impact at %.3f already passed: %w", st.Impact, dynamo.ErrOptimization)
	}

	hull := a.polygon(st.Swing).Polygon(st.LandingZMP, st.Landing.Yaw)
	if err := a.qp.SetGradient(st.LandingZMP, st.DCMOffset, timing.NominalSigma(in.Omega)); err != nil {
		return Output{}, err
	}
	if err := a.qp.SetConstraints(in.DCM, st.StanceZMP, hull.A); err != nil {
		return Output{}, err
	}
	if err := a.qp.SetBounds(st.StanceZMP, hull.B, timing.Horizon(), a.cfg.Tolerance, remaining, in.Omega); err != nil {
		return Output{}, err
	}
	if err := a.qp.Solve(); err != nil {
		return Output{}, err
	}
	sol, _ := a.qp.Solution()

	zmpToFoot := r2.Sub(st.Landing.Planar(), st.LandingZMP)
	foot := r2.Add(sol.ZMP, zmpToFoot)
	landing := st.Landing
	landing.Position.X, landing.Position.Y = foot.X, foot.Y

	return Output{
		Solution:      sol,
		ImpactTime:    timing.ImpactTime(sol.Sigma, in.Omega),
		NominalImpact: st.Impact,
		Landing:       landing,
	}, nil
}

// Reset makes the next cycle start from a cold solve.
func (a *Adapter) Reset() {
	a.qp.Reset()
}
