package qp

import (
	"errors"
	"fmt"
	"math"

	"github.com/san-kum/dcmwalk/internal/dynamo"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

const (
	DefaultMaxIterations = 100
	DefaultTolerance     = 1e-9
)

// ActiveSet is a dense dual active-set solver. It keeps the working set of
// its last successful solve for WarmSolve. Not safe for concurrent use.
type ActiveSet struct {
	MaxIterations int
	Tolerance     float64

	working []Bound
}

func NewActiveSet(maxIterations int) *ActiveSet {
	if maxIterations <= 0 {
		maxIterations = DefaultMaxIterations
	}
	return &ActiveSet{MaxIterations: maxIterations, Tolerance: DefaultTolerance}
}

func (s *ActiveSet) ColdSolve(p *Problem) (*Result, error) {
	return s.solve(p, nil)
}

// WarmSolve starts from the previous working set. Without a previous solve
// it behaves like ColdSolve.
func (s *ActiveSet) WarmSolve(p *Problem) (*Result, error) {
	return s.solve(p, s.working)
}

// WorkingSet returns the working set that the next WarmSolve will start from.
func (s *ActiveSet) WorkingSet() []Bound {
	out := make([]Bound, len(s.working))
	copy(out, s.working)
	return out
}

type activeRow struct {
	idx     int
	c       constraint
	flipped bool
	u       float64
}

func (s *ActiveSet) solve(p *Problem, start []Bound) (*Result, error) {
	n, m, err := p.dims()
	if err != nil {
		return nil, err
	}
	cons, err := p.constraints(n, m)
	if err != nil {
		s.working = nil
		return nil, err
	}
	hinv, err := inverse(p.H, n)
	if err != nil {
		s.working = nil
		return nil, err
	}

	g := p.G.RawVector().Data
	x := unconstrained(hinv, g)
	iterations := 0

	var act []activeRow
	if len(start) > 0 {
		wa, wx, drops, err := s.warmStart(p, cons, start, n)
		if err == nil {
			act, x, iterations = wa, wx, drops
		}
	}

	for {
		pi, flip := s.mostViolated(cons, act, x)
		if pi < 0 {
			break
		}
		add := cons[pi]
		if flip {
			add.n = negated(add.n)
			add.b = -add.b
		}

		uPlus := 0.0
		for {
			iterations++
			if iterations > s.MaxIterations {
				s.working = nil
				return nil, fmt.Errorf("after %d iterations: %w", s.MaxIterations, ErrMaxIterations)
			}

			z, r, err := directions(hinv, act, add.n)
			if err != nil {
				s.working = nil
				return nil, fmt.Errorf("qp: %v: %w", err, dynamo.ErrOptimization)
			}

			t1, k := math.Inf(1), -1
			for j := range act {
				if act[j].c.equal || r[j] <= s.Tolerance {
					continue
				}
				if v := act[j].u / r[j]; v < t1 {
					t1, k = v, j
				}
			}

			t2 := math.Inf(1)
			if zn := floats.Dot(z, add.n); floats.Norm(z, 2) > s.Tolerance && zn > s.Tolerance {
				t2 = (add.b - floats.Dot(add.n, x)) / zn
			}

			if math.IsInf(t1, 1) && math.IsInf(t2, 1) {
				s.working = nil
				return nil, fmt.Errorf("row %d (%s) cannot be satisfied: %w", add.row, add.side, ErrInfeasible)
			}

			if math.IsInf(t2, 1) {
				for j := range act {
					act[j].u -= t1 * r[j]
				}
				uPlus += t1
				act = removeRow(act, k)
				continue
			}

			t := math.Min(t1, t2)
			floats.AddScaled(x, t, z)
			for j := range act {
				act[j].u -= t * r[j]
			}
			uPlus += t

			if t2 <= t1 {
				act = append(act, activeRow{idx: pi, c: add, flipped: flip, u: uPlus})
				break
			}
			act = removeRow(act, k)
		}
	}

	res := &Result{
		X:           mat.NewVecDense(n, x),
		Multipliers: make([]float64, m),
		WorkingSet:  make([]Bound, 0, len(act)),
		Iterations:  iterations,
	}
	for _, a := range act {
		u := a.u
		switch {
		case a.c.side == SideUpper:
			u = -u
		case a.c.side == SideEqual && a.flipped:
			u = -u
		}
		res.Multipliers[a.c.row] = u
		res.WorkingSet = append(res.WorkingSet, Bound{Row: a.c.row, Side: a.c.side})
	}
	s.working = res.WorkingSet
	return res, nil
}

// mostViolated returns the constraint to add next: any violated equality
// first, then the inequality with the largest violation. flip reports an
// equality approached from above.
func (s *ActiveSet) mostViolated(cons []constraint, act []activeRow, x []float64) (int, bool) {
	isActive := make(map[int]bool, len(act))
	for _, a := range act {
		isActive[a.idx] = true
	}

	for i, c := range cons {
		if !c.equal || isActive[i] {
			continue
		}
		slack := floats.Dot(c.n, x) - c.b
		if math.Abs(slack) > s.Tolerance*(1+math.Abs(c.b)) {
			return i, slack > 0
		}
	}

	best, worst := -1, 0.0
	for i, c := range cons {
		if c.equal || isActive[i] {
			continue
		}
		slack := floats.Dot(c.n, x) - c.b
		if slack < -s.Tolerance*(1+math.Abs(c.b)) && slack < worst {
			best, worst = i, slack
		}
	}
	return best, false
}

// warmStart rebuilds the previous working set against the new data, solves
// the equality-constrained problem on it and drops rows with negative
// multipliers until the point is dual feasible.
func (s *ActiveSet) warmStart(p *Problem, cons []constraint, start []Bound, n int) ([]activeRow, []float64, int, error) {
	var act []activeRow
	seen := make(map[int]bool)
	for _, b := range start {
		for i, c := range cons {
			if c.row != b.Row || seen[i] {
				continue
			}
			if c.side == b.Side || c.equal {
				act = append(act, activeRow{idx: i, c: c})
				seen[i] = true
				break
			}
		}
	}

	drops := 0
	for {
		x, u, err := kkt(p, act, n)
		if err != nil {
			return nil, nil, 0, err
		}
		k, worst := -1, -s.Tolerance
		for j := range act {
			if !act[j].c.equal && u[j] < worst {
				k, worst = j, u[j]
			}
		}
		if k < 0 {
			for j := range act {
				act[j].u = u[j]
			}
			return act, x, drops, nil
		}
		act = removeRow(act, k)
		drops++
	}
}

// kkt solves [H -N; N' 0][x; u] = [-g; b] for the rows in act.
func kkt(p *Problem, act []activeRow, n int) ([]float64, []float64, error) {
	q := len(act)
	k := mat.NewDense(n+q, n+q, nil)
	rhs := mat.NewVecDense(n+q, nil)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			k.Set(i, j, p.H.At(i, j))
		}
		rhs.SetVec(i, -p.G.AtVec(i))
	}
	for j, a := range act {
		for i := 0; i < n; i++ {
			k.Set(i, n+j, -a.c.n[i])
			k.Set(n+j, i, a.c.n[i])
		}
		rhs.SetVec(n+j, a.c.b)
	}

	var sol mat.VecDense
	if err := sol.SolveVec(k, rhs); err != nil {
		return nil, nil, errSingular
	}
	data := sol.RawVector().Data
	x := make([]float64, n)
	u := make([]float64, q)
	copy(x, data[:n])
	copy(u, data[n:])
	return x, u, nil
}

// directions returns the primal step z = H^-1 (np - N r) and the dual step
// r = (N'H^-1 N)^-1 N'H^-1 np for adding the constraint with normal np.
func directions(hinv mat.Matrix, act []activeRow, np []float64) ([]float64, []float64, error) {
	n := len(np)
	var hn mat.VecDense
	hn.MulVec(hinv, mat.NewVecDense(n, np))

	q := len(act)
	if q == 0 {
		z := make([]float64, n)
		copy(z, hn.RawVector().Data)
		return z, nil, nil
	}

	N := mat.NewDense(n, q, nil)
	for j, a := range act {
		N.SetCol(j, a.c.n)
	}
	var hN, M mat.Dense
	hN.Mul(hinv, N)
	M.Mul(N.T(), &hN)

	var rhs mat.VecDense
	rhs.MulVec(N.T(), &hn)

	var chol mat.Cholesky
	if !chol.Factorize(symmetric(&M, q)) {
		return nil, nil, errSingular
	}
	var r mat.VecDense
	if err := chol.SolveVecTo(&r, &rhs); err != nil {
		var cond mat.Condition
		if !errors.As(err, &cond) {
			return nil, nil, err
		}
	}

	var corr, z mat.VecDense
	corr.MulVec(&hN, &r)
	z.SubVec(&hn, &corr)

	zs := make([]float64, n)
	rs := make([]float64, q)
	copy(zs, z.RawVector().Data)
	copy(rs, r.RawVector().Data)
	return zs, rs, nil
}

func inverse(h mat.Matrix, n int) (mat.Matrix, error) {
	var chol mat.Cholesky
	if !chol.Factorize(symmetric(h, n)) {
		return nil, ErrNotConvex
	}
	var inv mat.SymDense
	if err := chol.InverseTo(&inv); err != nil {
		var cond mat.Condition
		if !errors.As(err, &cond) {
			return nil, fmt.Errorf("qp: %v: %w", err, ErrNotConvex)
		}
	}
	return &inv, nil
}

func unconstrained(hinv mat.Matrix, g []float64) []float64 {
	n := len(g)
	var x mat.VecDense
	x.MulVec(hinv, mat.NewVecDense(n, g))
	out := make([]float64, n)
	for i := range out {
		out[i] = -x.AtVec(i)
	}
	return out
}

func symmetric(a mat.Matrix, n int) *mat.SymDense {
	s := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			s.SetSym(i, j, 0.5*(a.At(i, j)+a.At(j, i)))
		}
	}
	return s
}

func negated(v []float64) []float64 {
	out := make([]float64, len(v))
	for i := range v {
		out[i] = -v[i]
	}
	return out
}

func removeRow(act []activeRow, k int) []activeRow {
	return append(act[:k:k], act[k+1:]...)
}
