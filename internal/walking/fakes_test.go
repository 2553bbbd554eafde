package walking_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/san-kum/dcmwalk/internal/qp"
	"github.com/san-kum/dcmwalk/internal/trajectory"
	"github.com/san-kum/dcmwalk/internal/walking"
	"gonum.org/v1/gonum/spatial/r2"
)

var (
	errSink      = errors.New("sink offline")
	errSolver    = errors.New("solver diverged")
	errGenerator = errors.New("planner unavailable")
)

// flakyBackend solves with the active-set method until failing is set.
type flakyBackend struct {
	inner   qp.Backend
	failing atomic.Bool
}

func (b *flakyBackend) ColdSolve(p *qp.Problem) (*qp.Result, error) {
	if b.failing.Load() {
		return nil, errSolver
	}
	return b.inner.ColdSolve(p)
}

func (b *flakyBackend) WarmSolve(p *qp.Problem) (*qp.Result, error) {
	if b.failing.Load() {
		return nil, errSolver
	}
	return b.inner.WarmSolve(p)
}

// flakyGenerator plans with inner until broken is set. Generation runs on
// its own goroutine, hence the atomic.
type flakyGenerator struct {
	inner  trajectory.Generator
	broken atomic.Bool
	calls  atomic.Int32
}

func (g *flakyGenerator) Generate(ctx context.Context, req trajectory.Request) (*trajectory.Plan, error) {
	g.calls.Add(1)
	if g.broken.Load() {
		return nil, errGenerator
	}
	return g.inner.Generate(ctx, req)
}

// fakeRobot tracks the references perfectly. Offset is added to the
// measured CoM to emulate a push.
type fakeRobot struct {
	mu sync.Mutex

	refs      []walking.References
	home      []walking.Stance
	homeTicks int
	polls     int

	stale   int
	fbErr   error
	sendErr error
	offset  r2.Vec
}

func (r *fakeRobot) Feedback(ctx context.Context) (walking.Feedback, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.stale != 0 {
		if r.stale > 0 {
			r.stale--
		}
		return walking.Feedback{}, walking.ErrNotUpdated
	}
	if r.fbErr != nil {
		return walking.Feedback{}, r.fbErr
	}
	if len(r.refs) == 0 {
		fb := walking.Feedback{CoMHeight: 0.53, CoM: r.offset}
		if len(r.home) > 0 {
			h := r.home[len(r.home)-1]
			mid := r2.Scale(0.5, r2.Add(h.LeftFoot.Planar(), h.RightFoot.Planar()))
			fb.CoM, fb.ZMP = r2.Add(mid, r.offset), mid
		}
		return fb, nil
	}
	last := r.refs[len(r.refs)-1]
	return walking.Feedback{
		Time:        last.Time,
		CoM:         r2.Add(last.CoM, r.offset),
		CoMVelocity: last.CoMVelocity,
		CoMHeight:   last.CoMHeight,
		ZMP:         last.ZMP,
		BaseYaw:     (last.LeftFoot.Yaw + last.RightFoot.Yaw) / 2,
	}, nil
}

func (r *fakeRobot) Send(refs walking.References) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.sendErr != nil {
		return r.sendErr
	}
	r.refs = append(r.refs, refs)
	return nil
}

func (r *fakeRobot) MoveHome(stance walking.Stance) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.home = append(r.home, stance)
	r.polls = 0
	return nil
}

func (r *fakeRobot) MotionDone() (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.polls++
	return r.polls > r.homeTicks, nil
}

func (r *fakeRobot) setOffset(o r2.Vec) {
	r.mu.Lock()
	r.offset = o
	r.mu.Unlock()
}

func (r *fakeRobot) sent() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.refs)
}
