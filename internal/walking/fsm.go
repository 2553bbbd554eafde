package walking

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/san-kum/dcmwalk/internal/config"
	"github.com/san-kum/dcmwalk/internal/dynamo"
	"github.com/san-kum/dcmwalk/internal/integrators"
	"github.com/san-kum/dcmwalk/internal/lipm"
	"github.com/san-kum/dcmwalk/internal/qp"
	"github.com/san-kum/dcmwalk/internal/stepadapt"
	"github.com/san-kum/dcmwalk/internal/trajectory"
	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/spatial/r2"
)

var log = logrus.WithFields(logrus.Fields{"pkg": "walking"})

const commandQueueSize = 16

type Options struct {
	// BlockOnMerge waits for the generator at merge time instead of keeping
	// the old plan when the new one is late. Use it when ticking faster than
	// real time.
	BlockOnMerge bool
}

type Deps struct {
	Feedback  FeedbackProvider
	Sink      ReferenceSink
	Generator trajectory.Generator
	// Backend solves the step-adaptation QP. Defaults to qp.ActiveSet.
	Backend qp.Backend
}

type Stats struct {
	Cycles          int
	Merges          int
	LateMerges      int
	Pushes          int
	QPFailures      int
	FeedbackRetries int
}

// TickInfo summarises one tick.
type TickInfo struct {
	Tick  int
	Time  float64
	Phase Phase

	Sent         bool
	Refs         References
	Feedback     Feedback
	EstimatedDCM r2.Vec

	PushEngaged   bool
	PushTriggered bool
	Adapting      bool
	QPFailed      bool
	Sigma         float64
	AdaptedZMP    r2.Vec
	AdaptedImpact float64
	Merged        bool
}

type FSM struct {
	mu     sync.Mutex
	phase  Phase
	queued Phase
	cmds   chan command

	opts Options
	deps Deps
	cfg  *config.Config

	omega    float64
	stab     *lipm.Stabilizer
	est      *lipm.Estimator
	adapter  *stepadapt.Adapter
	detector *stepadapt.PushDetector
	tilt     *stepadapt.TiltDetector
	async    *trajectory.Async

	plan        *trajectory.Plan
	time        float64
	tick        int
	cycle       int
	goal        r2.Vec
	regen       *regeneration
	adapt       *adaptation
	stepTakeOff float64

	lastRefs References
	hasRefs  bool
	stats    Stats
}

func New(deps Deps, opts Options) *FSM {
	return &FSM{
		deps:   deps,
		opts:   opts,
		cmds:   make(chan command, commandQueueSize),
		phase:  Idle,
		queued: Idle,
	}
}

// Configure builds the controller from cfg. Nothing is changed on error.
func (f *FSM) Configure(cfg *config.Config) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.phase != Idle {
		return reject("configure", f.phase)
	}
	if f.deps.Feedback == nil || f.deps.Sink == nil || f.deps.Generator == nil {
		return fmt.Errorf("walking: feedback, sink and generator are required: %w", dynamo.ErrConfiguration)
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	omega, err := cfg.Omega()
	if err != nil {
		return err
	}
	integ, err := integrators.New(cfg.Integrator)
	if err != nil {
		return err
	}
	stab := lipm.NewStabilizer(integ)
	if err := stab.Initialize(cfg.CoMHeight, cfg.Gravity, cfg.Period); err != nil {
		return err
	}
	backend := f.deps.Backend
	if backend == nil {
		backend = qp.NewActiveSet(cfg.QP.MaxIterations)
	}
	adapter, err := stepadapt.NewAdapter(cfg.Adapter(), backend)
	if err != nil {
		return err
	}

	f.cfg = cfg.Clone()
	f.omega = omega
	f.stab = stab
	f.est = lipm.NewEstimator(omega)
	f.adapter = adapter
	f.detector = stepadapt.NewPushDetector(cfg.Push.DCMErrorThreshold.R2(), cfg.Push.ActivationIndex)
	f.tilt = stepadapt.NewTiltDetector(cfg.Tilt())
	f.async = trajectory.NewAsync(f.deps.Generator)
	f.phase, f.queued = Configured, Configured

	log.Infof("configured: omega %.3f rad/s, period %.3f s, integrator %s", omega, cfg.Period, cfg.Integrator)
	return nil
}

func (f *FSM) Phase() Phase {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.phase
}

func (f *FSM) Stats() Stats {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.stats
}

func (f *FSM) Time() float64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.time
}

func (f *FSM) Goal() r2.Vec {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.goal
}

// Plan returns a copy of the active plan, nil before Prepare.
func (f *FSM) Plan() *trajectory.Plan {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.plan == nil {
		return nil
	}
	return f.plan.Clone()
}

// Tick applies queued commands and runs one control cycle.
func (f *FSM) Tick(ctx context.Context) (TickInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	defer func() { f.tick++ }()

	info := TickInfo{Tick: f.tick, Time: f.time}
	err := f.applyCommands(ctx)
	if err == nil {
		switch f.phase {
		case Preparing:
			err = f.tickPreparing()
		case Walking:
			err = f.tickWalking(ctx, &info)
		}
	}
	info.Phase = f.phase
	return info, err
}

// Run ticks at the configured period until ctx is done or a tick fails.
func (f *FSM) Run(ctx context.Context) error {
	f.mu.Lock()
	cfg := f.cfg
	f.mu.Unlock()
	if cfg == nil {
		return fmt.Errorf("walking: run before configure: %w", dynamo.ErrNotInitialized)
	}

	ticker := time.NewTicker(time.Duration(cfg.Period * float64(time.Second)))
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if _, err := f.Tick(ctx); err != nil {
				return err
			}
		}
	}
}

func (f *FSM) tickPreparing() error {
	done, err := f.deps.Sink.MotionDone()
	if err != nil {
		return f.fail(fmt.Errorf("walking: home motion: %w: %w", dynamo.ErrFatalRuntime, err))
	}
	if !done {
		return nil
	}
	dcm := f.plan.Front().DCM
	if err := f.stab.Reset(dcm); err != nil {
		return f.fail(err)
	}
	f.setPhase(Prepared)
	return nil
}

func (f *FSM) tickWalking(ctx context.Context, info *TickInfo) error {
	fb, err := f.readFeedback(ctx)
	if err != nil {
		return f.fail(err)
	}
	info.Feedback = fb
	info.Merged = f.runRegeneration(ctx)

	front := f.plan.Front()
	refs := References{
		Time:              f.time,
		CoMHeight:         front.CoMHeight,
		CoMHeightVelocity: front.CoMHeightVelocity,
		DCM:               front.DCM,
		DCMVelocity:       front.DCMVelocity,
		ZMP:               front.ZMP,
		LeftFoot:          front.LeftFoot,
		RightFoot:         front.RightFoot,
		LeftTwist:         front.LeftTwist,
		RightTwist:        front.RightTwist,
		LeftAcc:           front.LeftAcc,
		RightAcc:          front.RightAcc,
		LeftContact:       front.LeftContact,
		RightContact:      front.RightContact,
		LeftFixed:         front.LeftFixed,
	}
	f.recoverPush(fb, front, &refs, info)

	f.stab.SetInput(refs.DCM)
	if err := f.stab.Integrate(); err != nil {
		return f.fail(fmt.Errorf("walking: stabilizer: %w: %w", dynamo.ErrFatalRuntime, err))
	}
	refs.CoM, _ = f.stab.Position()
	refs.CoMVelocity, _ = f.stab.Velocity()

	if err := f.deps.Sink.Send(refs); err != nil {
		return f.fail(fmt.Errorf("walking: send references: %w: %w", dynamo.ErrFatalRuntime, err))
	}
	info.Sent, info.Refs = true, refs
	f.lastRefs, f.hasRefs = refs, true

	f.plan.Advance()
	f.time += f.cfg.Period
	f.cycle++
	f.stats.Cycles++
	return nil
}

func (f *FSM) readFeedback(ctx context.Context) (Feedback, error) {
	for i := 0; i < f.cfg.FeedbackRetries; i++ {
		if err := ctx.Err(); err != nil {
			return Feedback{}, err
		}
		fb, err := f.deps.Feedback.Feedback(ctx)
		if err == nil {
			return fb, nil
		}
		if !errors.Is(err, ErrNotUpdated) {
			return Feedback{}, fmt.Errorf("walking: feedback: %w: %w", dynamo.ErrFatalRuntime, err)
		}
		f.stats.FeedbackRetries++
	}
	return Feedback{}, fmt.Errorf("walking: no fresh feedback after %d attempts: %w", f.cfg.FeedbackRetries, dynamo.ErrFeedbackUnavailable)
}

func (f *FSM) setPhase(p Phase) {
	if f.phase != p {
		log.Infof("phase %s -> %s at t=%.3f", f.phase, p, f.time)
	}
	f.phase = p
	if len(f.cmds) == 0 {
		f.queued = p
	}
}

// halt moves to Stopped and drops everything in flight.
func (f *FSM) halt() {
	for len(f.cmds) > 0 {
		<-f.cmds
	}
	f.regen = nil
	f.adapt = nil
	if f.async != nil {
		f.async.Discard()
	}
	f.setPhase(Stopped)
	f.queued = Stopped
}

func (f *FSM) fail(err error) error {
	phase := f.phase
	log.WithError(err).Errorf("stopping at t=%.3f", f.time)
	f.halt()
	return &dynamo.TickError{Tick: f.tick, Time: f.time, Phase: phase.String(), Wrapped: err}
}
