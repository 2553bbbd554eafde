package walking

import (
	"context"
	"fmt"

	"github.com/san-kum/dcmwalk/internal/dynamo"
	"github.com/san-kum/dcmwalk/internal/trajectory"
	"gonum.org/v1/gonum/spatial/r2"
)

// regeneration tracks one requested plan. counter is the merge index in the
// active plan and decreases with it every cycle.
type regeneration struct {
	counter   int
	seq       uint64
	submitted bool
	goal      r2.Vec
}

// selectMergeIndex picks where a new plan would join the active one. A
// negative index with a nil error means the pending regeneration should be
// kept as is.
func (f *FSM) selectMergeIndex(pending bool) (int, error) {
	horizon := f.cfg.Merge.RequestHorizon
	threshold := f.cfg.Merge.MergeThreshold
	mp := f.plan.MergePoints

	switch {
	case len(mp) == 0:
		if !f.plan.Front().DoubleSupport() || !f.plan.At(horizon).DoubleSupport() {
			return 0, fmt.Errorf("walking: no merge point and not in double support: %w", dynamo.ErrTransitionRejected)
		}
		if pending {
			return -1, nil
		}
		return horizon, nil
	case mp[0] > horizon:
		return mp[0], nil
	case pending:
		return -1, nil
	case len(mp) > 1:
		return mp[1], nil
	case mp[0] > threshold:
		return mp[0], nil
	case f.plan.At(horizon).DoubleSupport():
		return horizon, nil
	}
	return 0, fmt.Errorf("walking: no reachable merge point: %w", dynamo.ErrTransitionRejected)
}

// schedule arranges for a plan toward f.goal. A pending request that is
// kept picks the goal up when submitted, or through a follow-up after it
// merges.
func (f *FSM) schedule() error {
	idx, err := f.selectMergeIndex(f.regen != nil)
	if err != nil {
		return err
	}
	if idx < 0 {
		return nil
	}
	f.scheduleAt(idx)
	return nil
}

// scheduleAt replaces any pending regeneration. A request already submitted
// runs to completion and its plan is dropped by sequence number.
func (f *FSM) scheduleAt(idx int) {
	if f.regen != nil && f.regen.submitted {
		f.async.Discard()
	}
	f.regen = &regeneration{counter: idx}
	log.Debugf("regeneration scheduled at index %d (t=%.3f)", idx, f.plan.TimeAt(idx))
}

// request builds the boundary of the new plan from sample idx of the
// active one, taking the adapted landing and DCM into account.
func (f *FSM) request(idx int) trajectory.Request {
	s := f.plan.At(idx)
	t := f.plan.TimeAt(idx)
	req := trajectory.Request{
		InitTime:    t,
		LeftFoot:    s.LeftFoot,
		RightFoot:   s.RightFoot,
		DCM:         s.DCM,
		DCMVelocity: s.DCMVelocity,
		Goal:        f.goal,
	}

	if a := f.adapt; a != nil && !a.returning {
		landing := a.out.Landing
		if a.step.Swing == trajectory.Left {
			landing.Position.Z = req.LeftFoot.Position.Z
			req.LeftFoot = landing
		} else {
			landing.Position.Z = req.RightFoot.Position.Z
			req.RightFoot = landing
		}
		w := a.dcmWindow.Value(f.cycle + idx)
		pos, vel := a.dcmAt(t, f.omega)
		req.DCM = lerp(s.DCM, pos, w)
		req.DCMVelocity = lerp(s.DCMVelocity, vel, w)
	}

	switch next, ok := f.plan.NextStep(t); {
	case ok:
		req.LeftSwinging = next.Swing == trajectory.Left
	case len(f.plan.Steps) > 0:
		req.LeftSwinging = f.plan.Steps[len(f.plan.Steps)-1].Swing == trajectory.Right
	default:
		req.LeftSwinging = true
	}
	return req
}

// runRegeneration submits and merges the pending plan. It reports whether
// a merge happened this cycle.
func (f *FSM) runRegeneration(ctx context.Context) bool {
	r := f.regen
	if r == nil {
		return false
	}
	if !r.submitted && r.counter <= f.cfg.Merge.RequestHorizon {
		r.goal = f.goal
		r.seq = f.async.Submit(ctx, f.request(r.counter))
		r.submitted = true
		if a := f.adapt; a != nil {
			a.committed = true
		}
	}
	if r.counter > f.cfg.Merge.MergeThreshold {
		r.counter--
		return false
	}
	f.regen = nil

	incoming, err := f.collect(ctx, r.seq)
	if err != nil {
		f.stats.LateMerges++
		log.WithError(err).Warnf("keeping current plan, new one unavailable at index %d", r.counter)
		return false
	}
	merged, err := trajectory.Merge(f.plan, incoming, r.counter)
	if err != nil {
		f.stats.LateMerges++
		log.WithError(err).Warn("keeping current plan, merge failed")
		return false
	}

	f.plan = merged
	f.stats.Merges++
	if a := f.adapt; a != nil && !a.returning {
		// the adapted references stay until the new plan is at the front
		a.handover = f.cycle + r.counter
	}
	log.Infof("merged plan at t=%.3f, %d steps ahead, goal (%.3f, %.3f)",
		f.plan.TimeAt(r.counter), len(incoming.Steps), r.goal.X, r.goal.Y)

	if r.goal != f.goal {
		if err := f.schedule(); err != nil {
			log.WithError(err).Warn("follow-up regeneration not scheduled")
		}
	}
	return true
}

func (f *FSM) collect(ctx context.Context, seq uint64) (*trajectory.Plan, error) {
	if f.opts.BlockOnMerge {
		return f.async.Wait(ctx, seq)
	}
	plan, ready, err := f.async.Poll(seq)
	if err != nil {
		return nil, err
	}
	if !ready {
		return nil, fmt.Errorf("walking: plan not ready at merge time")
	}
	return plan, nil
}

func lerp(a, b r2.Vec, w float64) r2.Vec {
	return r2.Add(a, r2.Scale(w, r2.Sub(b, a)))
}
