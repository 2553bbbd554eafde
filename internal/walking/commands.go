package walking

import (
	"context"
	"fmt"

	"github.com/san-kum/dcmwalk/internal/dynamo"
	"github.com/san-kum/dcmwalk/internal/trajectory"
	"gonum.org/v1/gonum/spatial/r2"
	"gonum.org/v1/gonum/spatial/r3"
)

type commandKind int

const (
	cmdPrepare commandKind = iota
	cmdStart
	cmdPause
	cmdSetGoal
)

func (k commandKind) String() string {
	switch k {
	case cmdPrepare:
		return "prepare"
	case cmdStart:
		return "start"
	case cmdPause:
		return "pause"
	case cmdSetGoal:
		return "set goal"
	}
	return "unknown"
}

type command struct {
	kind commandKind
	goal r2.Vec
}

func reject(cmd string, p Phase) error {
	return fmt.Errorf("walking: %s in phase %s: %w", cmd, p, dynamo.ErrTransitionRejected)
}

// enqueue must be called with f.mu held. Commands are checked against the
// phase the controller will be in once the queue is drained and applied at
// the start of the next tick.
func (f *FSM) enqueue(c command, next Phase) error {
	select {
	case f.cmds <- c:
		f.queued = next
		return nil
	default:
		return fmt.Errorf("walking: %s: command queue full: %w", c.kind, dynamo.ErrTransitionRejected)
	}
}

// Prepare plans a standing trajectory and moves the robot to its home
// stance. Accepted from Configured and Stopped.
func (f *FSM) Prepare() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.queued != Configured && f.queued != Stopped {
		return reject("prepare", f.queued)
	}
	if f.cfg == nil {
		return fmt.Errorf("walking: prepare before configure: %w", dynamo.ErrNotInitialized)
	}
	return f.enqueue(command{kind: cmdPrepare}, Preparing)
}

// Start begins or resumes walking.
func (f *FSM) Start() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.queued != Prepared && f.queued != Paused {
		return reject("start", f.queued)
	}
	return f.enqueue(command{kind: cmdStart}, Walking)
}

// Pause freezes the references. The plan does not advance while paused.
func (f *FSM) Pause() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.queued != Walking {
		return reject("pause", f.queued)
	}
	return f.enqueue(command{kind: cmdPause}, Paused)
}

// SetGoal asks for a new plan toward goal, in world coordinates. The most
// recent goal wins when several arrive before a plan is merged.
func (f *FSM) SetGoal(goal r2.Vec) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.queued != Walking {
		return reject("set goal", f.queued)
	}
	if _, err := f.selectMergeIndex(f.regen != nil); err != nil {
		return err
	}
	return f.enqueue(command{kind: cmdSetGoal, goal: goal}, Walking)
}

// Stop halts immediately from any phase and drops queued commands.
// Stopping twice is a no-op.
func (f *FSM) Stop() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.phase == Stopped && f.queued == Stopped {
		return nil
	}
	log.Infof("stop requested at t=%.3f", f.time)
	f.halt()
	return nil
}

func (f *FSM) applyCommands(ctx context.Context) error {
	for {
		select {
		case c := <-f.cmds:
			if err := f.apply(ctx, c); err != nil {
				return err
			}
		default:
			f.queued = f.phase
			return nil
		}
	}
}

func (f *FSM) apply(ctx context.Context, c command) error {
	switch c.kind {
	case cmdPrepare:
		if f.phase == Configured || f.phase == Stopped {
			return f.prepare(ctx)
		}
	case cmdStart:
		if f.phase == Prepared || f.phase == Paused {
			f.setPhase(Walking)
			return nil
		}
	case cmdPause:
		if f.phase == Walking {
			f.setPhase(Paused)
			return nil
		}
	case cmdSetGoal:
		if f.phase == Walking {
			f.goal = c.goal
			if err := f.schedule(); err != nil {
				log.WithError(err).Warnf("goal (%.3f, %.3f) not scheduled", c.goal.X, c.goal.Y)
			}
			return nil
		}
	}
	log.Warnf("dropping %s in phase %s", c.kind, f.phase)
	return nil
}

// homeStance is where the robot stands before walking: the feet of the last
// references sent, or a symmetric stance about the origin.
func (f *FSM) homeStance() Stance {
	if f.hasRefs {
		l, r := f.lastRefs.LeftFoot, f.lastRefs.RightFoot
		l.Position.Z, r.Position.Z = 0, 0
		return Stance{LeftFoot: l, RightFoot: r, CoMHeight: f.cfg.CoMHeight}
	}
	half := f.cfg.Step.StepWidth / 2
	return Stance{
		LeftFoot:  trajectory.Pose{Position: r3.Vec{Y: half}},
		RightFoot: trajectory.Pose{Position: r3.Vec{Y: -half}},
		CoMHeight: f.cfg.CoMHeight,
	}
}

func (f *FSM) prepare(ctx context.Context) error {
	stance := f.homeStance()
	mid := r2.Scale(0.5, r2.Add(stance.LeftFoot.Planar(), stance.RightFoot.Planar()))

	plan, err := f.deps.Generator.Generate(ctx, trajectory.Request{
		InitTime:     f.time,
		LeftFoot:     stance.LeftFoot,
		RightFoot:    stance.RightFoot,
		DCM:          mid,
		LeftSwinging: true,
		Goal:         mid,
	})
	if err != nil {
		return f.fail(fmt.Errorf("walking: initial plan: %w: %w", dynamo.ErrFatalRuntime, err))
	}
	if plan.Len() == 0 {
		return f.fail(fmt.Errorf("walking: initial plan is empty: %w", dynamo.ErrFatalRuntime))
	}
	if len(plan.MergePoints) > 0 && plan.MergePoints[0] == 0 {
		plan.MergePoints = plan.MergePoints[1:]
	}
	if err := f.deps.Sink.MoveHome(stance); err != nil {
		return f.fail(fmt.Errorf("walking: move home: %w: %w", dynamo.ErrFatalRuntime, err))
	}

	f.plan = plan
	f.goal = mid
	f.regen = nil
	f.adapt = nil
	f.stepTakeOff = 0
	f.detector.Reset()
	f.adapter.Reset()
	f.setPhase(Preparing)
	return nil
}
