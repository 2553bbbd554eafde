package stepadapt

import (
	"errors"
	"fmt"
	"math"

	"github.com/san-kum/dcmwalk/internal/dynamo"
	"github.com/san-kum/dcmwalk/internal/qp"
	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r2"
)

var log = logrus.WithFields(logrus.Fields{"pkg": "stepadapt"})

// ErrWeightsAlreadySet is returned by a second call to SetWeights.
var ErrWeightsAlreadySet = errors.New("stepadapt: weights already set")

type Solution struct {
	ZMP       r2.Vec
	DCMOffset r2.Vec
	Sigma     float64
}

// QP is the step-adaptation problem. Constant coefficients of the
// constraint matrix are written once by NewQP, the rest is refreshed every
// cycle by SetGradient, SetConstraints and SetBounds.
type QP struct {
	backend qp.Backend
	problem qp.Problem

	weights    [numVars]float64
	weightsSet bool

	coldSolved bool
	solution   Solution
	solved     bool
	last       *qp.Result
}

func NewQP(backend qp.Backend) *QP {
	q := &QP{
		backend: backend,
		problem: qp.Problem{
			H:     mat.NewDense(numVars, numVars, nil),
			G:     mat.NewVecDense(numVars, nil),
			A:     mat.NewDense(numRows, numVars, nil),
			Lower: mat.NewVecDense(numRows, nil),
			Upper: mat.NewVecDense(numRows, nil),
		},
	}
	a := q.problem.A
	a.Set(RowLandingX, VarZmpX, 1)
	a.Set(RowLandingY, VarZmpY, 1)
	a.Set(RowLandingX, VarOffsetX, 1)
	a.Set(RowLandingY, VarOffsetY, 1)
	a.Set(RowTiming, VarSigma, 1)
	for r := RowHull0; r <= RowHull3; r++ {
		q.problem.Lower.SetVec(r, math.Inf(-1))
	}
	return q
}

// SetWeights writes the diagonal Hessian. It may only be called once.
func (q *QP) SetWeights(zmp, offset r2.Vec, sigma float64) error {
	if q.weightsSet {
		return ErrWeightsAlreadySet
	}
	w := [numVars]float64{
		VarZmpX:    zmp.X,
		VarZmpY:    zmp.Y,
		VarSigma:   sigma,
		VarOffsetX: offset.X,
		VarOffsetY: offset.Y,
	}
	for i, v := range w {
		if !(v > 0) || math.IsInf(v, 0) {
			return fmt.Errorf("stepadapt: weight %d is %g, must be positive: %w", i, v, dynamo.ErrConfiguration)
		}
	}
	for i, v := range w {
		q.problem.H.Set(i, i, v)
	}
	q.weights = w
	q.weightsSet = true
	return nil
}

// SetGradient sets g = -W*nominal so that the unconstrained minimum is the
// nominal step.
func (q *QP) SetGradient(zmp, offset r2.Vec, sigma float64) error {
	if !q.weightsSet {
		return fmt.Errorf("stepadapt: gradient before weights: %w", dynamo.ErrNotInitialized)
	}
	nominal := [numVars]float64{
		VarZmpX:    zmp.X,
		VarZmpY:    zmp.Y,
		VarSigma:   sigma,
		VarOffsetX: offset.X,
		VarOffsetY: offset.Y,
	}
	for i, v := range nominal {
		q.problem.G.SetVec(i, -q.weights[i]*v)
	}
	return nil
}

// SetConstraints writes the sigma column of the landing rows and the hull
// coefficients. hull must be 4x2; on a shape error nothing is changed.
func (q *QP) SetConstraints(dcm, zmp r2.Vec, hull mat.Matrix) error {
	if hull == nil {
		return fmt.Errorf("stepadapt: nil hull: %w", dynamo.ErrDimensionMismatch)
	}
	if r, c := hull.Dims(); r != hullRows || c != 2 {
		return fmt.Errorf("stepadapt: hull is %dx%d, want %dx2: %w", r, c, hullRows, dynamo.ErrDimensionMismatch)
	}
	a := q.problem.A
	a.Set(RowLandingX, VarSigma, zmp.X-dcm.X)
	a.Set(RowLandingY, VarSigma, zmp.Y-dcm.Y)
	for i := 0; i < hullRows; i++ {
		a.Set(RowHull0+i, VarZmpX, hull.At(i, 0))
		a.Set(RowHull0+i, VarZmpY, hull.At(i, 1))
	}
	return nil
}

// SetBounds writes the row bounds. target is the current stance ZMP, offsets
// the right-hand side of the hull rows. The sigma window is
// [exp((T - min(tol, remaining))*omega), exp((T + tol)*omega)], with the
// lower end never below 1.
func (q *QP) SetBounds(target r2.Vec, offsets []float64, horizon, tol, remaining, omega float64) error {
	if len(offsets) != hullRows {
		return fmt.Errorf("stepadapt: %d hull offsets, want %d: %w", len(offsets), hullRows, dynamo.ErrDimensionMismatch)
	}
	if !(omega > 0) || tol < 0 || horizon < 0 {
		return fmt.Errorf("stepadapt: invalid timing (T=%g, tol=%g, omega=%g): %w", horizon, tol, omega, dynamo.ErrConfiguration)
	}
	lo, up := q.problem.Lower, q.problem.Upper
	lo.SetVec(RowLandingX, target.X)
	up.SetVec(RowLandingX, target.X)
	lo.SetVec(RowLandingY, target.Y)
	up.SetVec(RowLandingY, target.Y)
	for i, b := range offsets {
		up.SetVec(RowHull0+i, b)
	}
	up.SetVec(RowTiming, math.Exp((horizon+tol)*omega))
	lo.SetVec(RowTiming, math.Max(1, math.Exp((horizon-math.Min(tol, math.Max(remaining, 0)))*omega)))
	return nil
}

// Solve runs the backend, cold the first time and warm afterwards. On
// failure the previous solution is kept.
func (q *QP) Solve() error {
	if !q.weightsSet {
		return fmt.Errorf("stepadapt: solve before weights: %w", dynamo.ErrNotInitialized)
	}
	var (
		res *qp.Result
		err error
	)
	if q.coldSolved {
		res, err = q.backend.WarmSolve(&q.problem)
	} else {
		res, err = q.backend.ColdSolve(&q.problem)
	}
	if err != nil {
		if errors.Is(err, dynamo.ErrOptimization) {
			return fmt.Errorf("stepadapt: %w", err)
		}
		return fmt.Errorf("stepadapt: %w: %w", dynamo.ErrOptimization, err)
	}
	q.coldSolved = true
	q.last = res
	x := res.X
	q.solution = Solution{
		ZMP:       r2.Vec{X: x.AtVec(VarZmpX), Y: x.AtVec(VarZmpY)},
		DCMOffset: r2.Vec{X: x.AtVec(VarOffsetX), Y: x.AtVec(VarOffsetY)},
		Sigma:     x.AtVec(VarSigma),
	}
	q.solved = true
	log.Debugf("solved in %d iterations, sigma %.4f", res.Iterations, q.solution.Sigma)
	return nil
}

// Solution returns the last successful solution.
func (q *QP) Solution() (Solution, bool) {
	return q.solution, q.solved
}

// Result returns the raw backend result of the last successful solve.
func (q *QP) Result() *qp.Result {
	return q.last
}

// Reset forgets the previous solution so the next Solve starts cold.
func (q *QP) Reset() {
	q.coldSolved = false
	q.solved = false
	q.solution = Solution{}
	q.last = nil
}
