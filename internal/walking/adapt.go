package walking

import (
	"math"

	"github.com/san-kum/dcmwalk/internal/lipm"
	"github.com/san-kum/dcmwalk/internal/stepadapt"
	"github.com/san-kum/dcmwalk/internal/trajectory"
	"gonum.org/v1/gonum/spatial/r2"
	"gonum.org/v1/gonum/spatial/r3"
)

// adaptation is the state of a step modified after a push. It ends when a
// merged plan takes over at handover, or after the return window brings the
// references back to the nominal plan.
type adaptation struct {
	step       trajectory.Step
	anchorTime float64
	anchorDCM  r2.Vec
	out        stepadapt.Output

	dcmWindow  SmoothingWindow
	footWindow SmoothingWindow

	// committed is set once a plan from the adapted landing is requested.
	// The solution is frozen from then on so the plan starts where the
	// adapted references are.
	committed bool
	// handover is the tick at which the merged plan reaches the front, -1
	// while no plan has been merged.
	handover  int
	returning bool
	back      SmoothingWindow

	swing      trajectory.Pose
	swingTwist trajectory.Twist
}

// windowEnd is the middle of the double support after the adapted impact.
func (a *adaptation) windowEnd() float64 {
	return a.out.ImpactTime + a.step.NextDoubleSupport/2
}

// dcmAt is the DCM implied by the adapted step: it diverges from the stance
// ZMP until the middle of the next double support and is held there
// afterwards.
func (a *adaptation) dcmAt(t, omega float64) (r2.Vec, r2.Vec) {
	z0 := a.step.StanceZMP
	if end := a.windowEnd(); t > end {
		return diverge(z0, a.anchorDCM, omega*(end-a.anchorTime)), r2.Vec{}
	}
	pos := diverge(z0, a.anchorDCM, omega*(t-a.anchorTime))
	return pos, r2.Scale(omega, r2.Sub(pos, z0))
}

func diverge(zmp, dcm r2.Vec, wt float64) r2.Vec {
	return r2.Add(zmp, r2.Scale(math.Exp(wt), r2.Sub(dcm, zmp)))
}

func (f *FSM) endAdaptation() {
	f.adapt = nil
	f.detector.Reset()
	f.adapter.Reset()
}

// settleAdaptation ends the adaptation once the merged plan is at the front
// or the return is complete. When no plan is pending the return opens as
// soon as both windows have elapsed past the adapted impact, or when the
// nominal plan moves on to its next step.
func (f *FSM) settleAdaptation(t float64) {
	a := f.adapt
	switch {
	case a.handover >= 0:
		if f.cycle >= a.handover {
			f.endAdaptation()
		}
	case a.returning:
		if a.back.Done(f.cycle) {
			f.endAdaptation()
		}
	case f.regen != nil:
		// the pending plan either takes over or fails first
	default:
		next, ok := f.plan.StepAt(t)
		moved := ok && next.TakeOff > a.step.TakeOff
		elapsed := t >= a.windowEnd() && a.dcmWindow.Done(f.cycle) && a.footWindow.Done(f.cycle)
		if moved || elapsed {
			sm := f.cfg.Smoothing
			a.returning = true
			a.back = SmoothingWindow{StartTick: f.cycle, DurationTicks: sm.ReturnWindow, From: 1, To: 0, Gain: sm.ReturnGain}
			log.Warnf("no plan from the adapted landing, returning to nominal over %d ticks at t=%.3f", sm.ReturnWindow, t)
		}
	}
}

// recoverPush estimates the DCM, detects pushes during single support and
// modifies refs toward the adapted step.
func (f *FSM) recoverPush(fb Feedback, front trajectory.Sample, refs *References, info *TickInfo) {
	t := f.time
	tilt := f.tilt.Update(fb.Arms, front.LeftContact, front.RightContact, fb.BaseYaw)
	est := f.est.Update(lipm.EstimatorInput{
		Roll:        tilt.Roll,
		Pitch:       tilt.Pitch,
		Yaw:         tilt.Yaw,
		ZMP:         fb.ZMP,
		CoM:         r3.Vec{X: fb.CoM.X, Y: fb.CoM.Y, Z: fb.CoMHeight},
		CoMVelocity: fb.CoMVelocity,
	})
	info.EstimatedDCM = est
	if !f.cfg.Push.Enabled {
		return
	}

	if f.adapt != nil {
		f.settleAdaptation(t)
	}

	var (
		step    trajectory.Step
		solving bool
	)
	if a := f.adapt; a != nil {
		step = a.step
		solving = !a.committed && !a.returning && t < math.Min(a.out.ImpactTime, a.step.Impact)
	} else if s, ok := f.plan.StepAt(t); ok {
		step, solving = s, true
		if s.TakeOff != f.stepTakeOff {
			f.stepTakeOff = s.TakeOff
			f.detector.Reset()
			f.adapter.Reset()
		}
	}

	// a failed solve leaves this cycle on the nominal plan
	if solving && !f.solveStep(t, step, front, est, info) {
		return
	}
	if f.adapt != nil {
		f.applyAdaptation(t, front, refs, info)
	}
}

// solveStep runs the push detector against the nominal DCM of this cycle
// and, once engaged, the step-adaptation QP. It reports false when the QP
// failed.
func (f *FSM) solveStep(t float64, step trajectory.Step, front trajectory.Sample, est r2.Vec, info *TickInfo) bool {
	det := f.detector.Update(front.DCM, est)
	info.PushEngaged = det.Engaged
	if !det.Engaged {
		return true
	}

	a := f.adapt
	current := front.DCM
	if a != nil {
		current, _ = a.dcmAt(t, f.omega)
	} else {
		current = det.Merge(current, est)
	}

	out, err := f.adapter.Run(stepadapt.Input{Now: t, Omega: f.omega, Step: step, DCM: current})
	if err != nil {
		f.stats.QPFailures++
		info.QPFailed = true
		log.WithError(err).Warnf("step adaptation failed at t=%.3f, using the nominal plan", t)
		return false
	}
	if a != nil {
		a.out = out
		return true
	}

	f.startAdaptation(t, step, front, current, out)
	info.PushTriggered = true
	return true
}

func (f *FSM) startAdaptation(t float64, step trajectory.Step, front trajectory.Sample, dcm r2.Vec, out stepadapt.Output) {
	dt := f.cfg.Period
	sm := f.cfg.Smoothing
	dcmTicks := int(math.Round((step.NextDoubleSupport/2 + out.ImpactTime - t) / dt))
	footTicks := int(math.Round((out.ImpactTime - t) / dt))

	swing, twist := front.Foot(step.Swing), front.FootTwist(step.Swing)
	if f.hasRefs {
		if step.Swing == trajectory.Left {
			swing, twist = f.lastRefs.LeftFoot, f.lastRefs.LeftTwist
		} else {
			swing, twist = f.lastRefs.RightFoot, f.lastRefs.RightTwist
		}
	}

	f.adapt = &adaptation{
		step:       step,
		anchorTime: t,
		anchorDCM:  dcm,
		out:        out,
		dcmWindow:  SmoothingWindow{StartTick: f.cycle, DurationTicks: max(dcmTicks, sm.DCMMinWindow), To: 1, Gain: sm.DCMGain},
		footWindow: SmoothingWindow{StartTick: f.cycle, DurationTicks: max(footTicks, sm.FootMinWindow), To: 1, Gain: sm.FootGain},
		handover:   -1,
		swing:      swing,
		swingTwist: twist,
	}
	f.stats.Pushes++

	// The step after the adapted one starts from the adapted landing.
	idx := f.plan.IndexOf(out.ImpactTime + step.NextDoubleSupport/2)
	if idx < 1 {
		idx = 1
	}
	if idx >= f.plan.Len() {
		idx = f.plan.Len() - 1
	}
	f.scheduleAt(idx)

	log.Infof("push at t=%.3f: landing (%.3f, %.3f) -> (%.3f, %.3f), impact %.3f -> %.3f",
		t, step.Landing.Position.X, step.Landing.Position.Y,
		out.Landing.Position.X, out.Landing.Position.Y, step.Impact, out.ImpactTime)
}

func (f *FSM) applyAdaptation(t float64, front trajectory.Sample, refs *References, info *TickInfo) {
	a := f.adapt
	info.Adapting = true
	info.Sigma = a.out.Sigma
	info.AdaptedZMP = a.out.ZMP
	info.AdaptedImpact = a.out.ImpactTime

	scale := 1.0
	if a.returning {
		scale = a.back.Value(f.cycle)
	}
	wd := a.dcmWindow.Value(f.cycle) * scale
	pos, vel := a.dcmAt(t, f.omega)
	refs.DCM = lerp(refs.DCM, pos, wd)
	refs.DCMVelocity = lerp(refs.DCMVelocity, vel, wd)

	sw, err := stepadapt.SwingTrajectory(stepadapt.SwingInput{
		Now:          t,
		Dt:           f.cfg.Period,
		TakeOff:      a.step.TakeOff,
		Impact:       a.out.ImpactTime,
		StepHeight:   f.cfg.Step.StepHeight,
		Current:      a.swing,
		CurrentTwist: a.swingTwist,
		Landing:      a.out.Landing,
	})
	if err != nil {
		log.WithError(err).Warn("adapted swing unavailable")
		return
	}
	a.swing, a.swingTwist = sw.Pose, sw.Twist

	landed := t >= a.out.ImpactTime
	wf := a.footWindow.Value(f.cycle)
	if landed {
		wf = 1
	}
	wf *= scale
	side := a.step.Swing
	pose := blendPose(front.Foot(side), sw.Pose, wf)
	twist := blendTwist(front.FootTwist(side), sw.Twist, wf)
	acc := sw.Acceleration
	acc.Linear = r3.Scale(wf, acc.Linear)
	acc.Angular = r3.Scale(wf, acc.Angular)

	if side == trajectory.Left {
		refs.LeftFoot, refs.LeftTwist, refs.LeftContact = pose, twist, landed
		acc.Linear = r3.Add(acc.Linear, r3.Scale(1-wf, front.LeftAcc.Linear))
		acc.Angular = r3.Add(acc.Angular, r3.Scale(1-wf, front.LeftAcc.Angular))
		refs.LeftAcc = acc
	} else {
		refs.RightFoot, refs.RightTwist, refs.RightContact = pose, twist, landed
		acc.Linear = r3.Add(acc.Linear, r3.Scale(1-wf, front.RightAcc.Linear))
		acc.Angular = r3.Add(acc.Angular, r3.Scale(1-wf, front.RightAcc.Angular))
		refs.RightAcc = acc
	}
}

func blendPose(from, to trajectory.Pose, w float64) trajectory.Pose {
	return trajectory.Pose{
		Position: r3.Add(from.Position, r3.Scale(w, r3.Sub(to.Position, from.Position))),
		Roll:     from.Roll + w*(to.Roll-from.Roll),
		Pitch:    from.Pitch + w*(to.Pitch-from.Pitch),
		Yaw:      from.Yaw + w*math.Remainder(to.Yaw-from.Yaw, 2*math.Pi),
	}
}

func blendTwist(from, to trajectory.Twist, w float64) trajectory.Twist {
	return trajectory.Twist{
		Linear:  r3.Add(from.Linear, r3.Scale(w, r3.Sub(to.Linear, from.Linear))),
		Angular: r3.Add(from.Angular, r3.Scale(w, r3.Sub(to.Angular, from.Angular))),
	}
}
