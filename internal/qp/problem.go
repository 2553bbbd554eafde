package qp

import (
	"errors"
	"fmt"
	"math"

	"github.com/san-kum/dcmwalk/internal/dynamo"
	"gonum.org/v1/gonum/mat"
)

var (
	// ErrInfeasible indicates that the constraints admit no solution.
	ErrInfeasible = fmt.Errorf("qp: problem infeasible: %w", dynamo.ErrOptimization)

	// ErrMaxIterations indicates that the working-set budget was exhausted.
	ErrMaxIterations = fmt.Errorf("qp: iteration budget exceeded: %w", dynamo.ErrOptimization)

	// ErrNotConvex indicates a Hessian that is not positive definite.
	ErrNotConvex = fmt.Errorf("qp: hessian not positive definite: %w", dynamo.ErrOptimization)

	errSingular = errors.New("qp: singular working set")
)

// Problem holds the data of one QP instance. Lower and Upper may contain
// ±Inf. Problem values are read, never modified, by the solvers.
type Problem struct {
	H     *mat.Dense
	G     *mat.VecDense
	A     *mat.Dense
	Lower *mat.VecDense
	Upper *mat.VecDense
}

// Side says which bound of a row is held active.
type Side int

const (
	SideLower Side = iota
	SideUpper
	SideEqual
)

func (s Side) String() string {
	switch s {
	case SideLower:
		return "lower"
	case SideUpper:
		return "upper"
	case SideEqual:
		return "equal"
	}
	return "unknown"
}

// Bound identifies an active row of the constraint matrix.
type Bound struct {
	Row  int
	Side Side
}

type Result struct {
	X *mat.VecDense
	// Multipliers has one entry per row: positive when the lower bound is
	// active, negative for the upper bound, zero when inactive.
	Multipliers []float64
	WorkingSet  []Bound
	Iterations  int
}

// Backend is the solver strategy used by the step-adaptation problem.
type Backend interface {
	ColdSolve(p *Problem) (*Result, error)
	WarmSolve(p *Problem) (*Result, error)
}

func (p *Problem) dims() (n, m int, err error) {
	if p.H == nil || p.G == nil {
		return 0, 0, fmt.Errorf("qp: missing hessian or gradient: %w", dynamo.ErrDimensionMismatch)
	}
	r, c := p.H.Dims()
	if r != c || p.G.Len() != r {
		return 0, 0, fmt.Errorf("qp: hessian %dx%d, gradient %d: %w", r, c, p.G.Len(), dynamo.ErrDimensionMismatch)
	}
	n = r
	if p.A == nil {
		return n, 0, nil
	}
	ar, ac := p.A.Dims()
	if ac != n {
		return 0, 0, fmt.Errorf("qp: constraint matrix %dx%d for %d variables: %w", ar, ac, n, dynamo.ErrDimensionMismatch)
	}
	if p.Lower == nil || p.Upper == nil || p.Lower.Len() != ar || p.Upper.Len() != ar {
		return 0, 0, fmt.Errorf("qp: bounds do not match %d rows: %w", ar, dynamo.ErrDimensionMismatch)
	}
	return n, ar, nil
}

// constraint is one side of a row written as n'x >= b.
type constraint struct {
	row   int
	side  Side
	n     []float64
	b     float64
	equal bool
}

// constraints expands the rows into one-sided constraints. Rows with crossed
// bounds are reported as infeasible.
func (p *Problem) constraints(n, m int) ([]constraint, error) {
	out := make([]constraint, 0, 2*m)
	for i := 0; i < m; i++ {
		lo, hi := p.Lower.AtVec(i), p.Upper.AtVec(i)
		if math.IsNaN(lo) || math.IsNaN(hi) {
			return nil, fmt.Errorf("qp: row %d has NaN bound: %w", i, dynamo.ErrDimensionMismatch)
		}
		if lo > hi {
			return nil, fmt.Errorf("qp: row %d lower %g above upper %g: %w", i, lo, hi, ErrInfeasible)
		}
		a := mat.Row(nil, i, p.A)
		switch {
		case lo == hi:
			out = append(out, constraint{row: i, side: SideEqual, n: a, b: lo, equal: true})
		default:
			if !math.IsInf(lo, -1) {
				out = append(out, constraint{row: i, side: SideLower, n: a, b: lo})
			}
			if !math.IsInf(hi, 1) {
				neg := make([]float64, n)
				for j := range a {
					neg[j] = -a[j]
				}
				out = append(out, constraint{row: i, side: SideUpper, n: neg, b: -hi})
			}
		}
	}
	return out, nil
}
