package walking_test

import (
	"context"
	"errors"
	"math"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/san-kum/dcmwalk/internal/config"
	"github.com/san-kum/dcmwalk/internal/dynamo"
	"github.com/san-kum/dcmwalk/internal/qp"
	"github.com/san-kum/dcmwalk/internal/trajectory"
	"github.com/san-kum/dcmwalk/internal/walking"
	"gonum.org/v1/gonum/spatial/r2"
)

var _ = Describe("FSM", func() {
	var (
		ctx   context.Context
		cfg   *config.Config
		robot *fakeRobot
		gen   trajectory.Generator
		fsm   *walking.FSM
	)

	tick := func() walking.TickInfo {
		GinkgoHelper()
		info, err := fsm.Tick(ctx)
		Expect(err).NotTo(HaveOccurred())
		return info
	}

	ticks := func(n int) []walking.TickInfo {
		GinkgoHelper()
		out := make([]walking.TickInfo, 0, n)
		for i := 0; i < n; i++ {
			out = append(out, tick())
		}
		return out
	}

	prepare := func() {
		GinkgoHelper()
		Expect(fsm.Prepare()).To(Succeed())
		for i := 0; i <= robot.homeTicks+1 && fsm.Phase() != walking.Prepared; i++ {
			tick()
		}
		Expect(fsm.Phase()).To(Equal(walking.Prepared))
	}

	walk := func() {
		GinkgoHelper()
		prepare()
		Expect(fsm.Start()).To(Succeed())
		tick()
		Expect(fsm.Phase()).To(Equal(walking.Walking))
	}

	rebuild := func(deps walking.Deps) {
		GinkgoHelper()
		fsm = walking.New(deps, walking.Options{BlockOnMerge: true})
		Expect(fsm.Configure(cfg)).To(Succeed())
	}

	// push walks toward x = 1, shoves the measured CoM forward ten ticks
	// into the first single support and returns the tick that triggered
	// the adaptation.
	push := func() walking.TickInfo {
		GinkgoHelper()
		Expect(fsm.SetGoal(r2.Vec{X: 1})).To(Succeed())

		var info walking.TickInfo
		for i := 0; i < 400; i++ {
			info = tick()
			if !info.Refs.LeftContact || !info.Refs.RightContact {
				break
			}
		}
		Expect(info.Refs.LeftContact && info.Refs.RightContact).To(BeFalse())
		ticks(10)

		robot.setOffset(r2.Vec{X: 0.06})
		var trig walking.TickInfo
		for i := 0; i < 10 && !trig.PushTriggered; i++ {
			trig = tick()
		}
		robot.setOffset(r2.Vec{})
		Expect(trig.PushTriggered).To(BeTrue())
		return trig
	}

	BeforeEach(func() {
		ctx = context.Background()
		cfg = config.DefaultConfig()
		robot = &fakeRobot{homeTicks: 3}
		sc, err := cfg.Straight()
		Expect(err).NotTo(HaveOccurred())
		straight, err := trajectory.NewStraight(sc)
		Expect(err).NotTo(HaveOccurred())
		gen = straight
		fsm = walking.New(walking.Deps{Feedback: robot, Sink: robot, Generator: gen}, walking.Options{BlockOnMerge: true})
		Expect(fsm.Configure(cfg)).To(Succeed())
	})

	Describe("configuration", func() {
		It("starts configured", func() {
			Expect(fsm.Phase()).To(Equal(walking.Configured))
		})

		It("refuses to configure twice", func() {
			Expect(fsm.Configure(cfg)).To(MatchError(dynamo.ErrTransitionRejected))
		})

		It("requires its collaborators", func() {
			f := walking.New(walking.Deps{Sink: robot, Generator: gen}, walking.Options{})
			Expect(f.Configure(cfg)).To(MatchError(dynamo.ErrConfiguration))
			Expect(f.Phase()).To(Equal(walking.Idle))
		})

		It("rejects invalid parameters and stays idle", func() {
			bad := config.DefaultConfig()
			bad.CoMHeight = 0
			f := walking.New(walking.Deps{Feedback: robot, Sink: robot, Generator: gen}, walking.Options{})
			Expect(f.Configure(bad)).To(MatchError(dynamo.ErrConfiguration))
			Expect(f.Phase()).To(Equal(walking.Idle))
		})

		It("does not run before configure", func() {
			f := walking.New(walking.Deps{}, walking.Options{})
			Expect(f.Run(ctx)).To(MatchError(dynamo.ErrNotInitialized))
		})
	})

	Describe("preparing", func() {
		It("moves home and waits for the motion to finish", func() {
			Expect(fsm.Prepare()).To(Succeed())
			Expect(fsm.Phase()).To(Equal(walking.Configured))

			info := tick()
			Expect(info.Phase).To(Equal(walking.Preparing))
			Expect(robot.home).To(HaveLen(1))
			Expect(robot.home[0].LeftFoot.Position.Y).To(BeNumerically("~", cfg.Step.StepWidth/2, 1e-12))
			Expect(robot.home[0].RightFoot.Position.Y).To(BeNumerically("~", -cfg.Step.StepWidth/2, 1e-12))

			for i := 0; i < robot.homeTicks-1; i++ {
				Expect(tick().Phase).To(Equal(walking.Preparing))
			}
			Expect(tick().Phase).To(Equal(walking.Prepared))
			Expect(robot.sent()).To(BeZero())
		})

		It("rejects commands that do not fit the phase", func() {
			Expect(fsm.Start()).To(MatchError(dynamo.ErrTransitionRejected))
			Expect(fsm.Pause()).To(MatchError(dynamo.ErrTransitionRejected))
			Expect(fsm.SetGoal(r2.Vec{X: 1})).To(MatchError(dynamo.ErrTransitionRejected))

			Expect(fsm.Prepare()).To(Succeed())
			Expect(fsm.Prepare()).To(MatchError(dynamo.ErrTransitionRejected))
			Expect(fsm.Start()).To(MatchError(dynamo.ErrTransitionRejected))
		})

		It("leaves a standing plan without merge points", func() {
			prepare()
			plan := fsm.Plan()
			Expect(plan).NotTo(BeNil())
			Expect(plan.MergePoints).To(BeEmpty())
			Expect(plan.Steps).To(BeEmpty())
			Expect(plan.Front().DoubleSupport()).To(BeTrue())
		})
	})

	Describe("walking", func() {
		It("sends one set of references per tick and advances time", func() {
			walk()
			before := fsm.Time()
			infos := ticks(10)
			for _, info := range infos {
				Expect(info.Sent).To(BeTrue())
				Expect(info.Refs.LeftContact && info.Refs.RightContact).To(BeTrue())
			}
			Expect(robot.sent()).To(Equal(11))
			Expect(fsm.Time()).To(BeNumerically("~", before+10*cfg.Period, 1e-9))
			Expect(fsm.Stats().Cycles).To(Equal(11))
		})

		It("holds still while paused and resumes", func() {
			walk()
			Expect(fsm.Pause()).To(Succeed())
			Expect(tick().Phase).To(Equal(walking.Paused))
			t := fsm.Time()
			n := robot.sent()
			for _, info := range ticks(5) {
				Expect(info.Sent).To(BeFalse())
			}
			Expect(fsm.Time()).To(Equal(t))
			Expect(robot.sent()).To(Equal(n))

			Expect(fsm.Start()).To(Succeed())
			Expect(tick().Sent).To(BeTrue())
		})

		It("walks to a goal through a merged plan", func() {
			walk()
			goal := r2.Vec{X: 0.6}
			Expect(fsm.SetGoal(goal)).To(Succeed())
			Expect(fsm.Goal()).NotTo(Equal(goal))

			var merged, swung bool
			for i := 0; i < 1200; i++ {
				info := tick()
				merged = merged || info.Merged
				swung = swung || !info.Refs.LeftContact || !info.Refs.RightContact
			}
			Expect(fsm.Goal()).To(Equal(goal))
			Expect(merged).To(BeTrue())
			Expect(swung).To(BeTrue())
			Expect(fsm.Stats().Merges).To(Equal(1))
			Expect(fsm.Stats().Pushes).To(BeZero())

			last := robot.refs[len(robot.refs)-1]
			mid := r2.Scale(0.5, r2.Add(last.LeftFoot.Planar(), last.RightFoot.Planar()))
			Expect(mid.X).To(BeNumerically("~", goal.X, 0.05))
			Expect(mid.Y).To(BeNumerically("~", goal.Y, 0.05))
			Expect(last.DCM.X).To(BeNumerically("~", goal.X, 0.05))
		})

		It("keeps only the latest goal", func() {
			walk()
			Expect(fsm.SetGoal(r2.Vec{X: 2})).To(Succeed())
			Expect(fsm.SetGoal(r2.Vec{X: 0.3})).To(Succeed())
			ticks(1)
			Expect(fsm.Goal()).To(Equal(r2.Vec{X: 0.3}))
		})

		It("rejects commands once the queue is full", func() {
			walk()
			var err error
			for i := 0; i < 32 && err == nil; i++ {
				err = fsm.SetGoal(r2.Vec{X: float64(i)})
			}
			Expect(err).To(MatchError(dynamo.ErrTransitionRejected))
			tick()
			Expect(fsm.SetGoal(r2.Vec{X: 1})).To(Succeed())
		})
	})

	Describe("push recovery", func() {
		It("adapts the step in progress and hands over to the plan from the new landing", func() {
			walk()
			trig := push()
			Expect(trig.Adapting).To(BeTrue())
			Expect(trig.Sigma).To(BeNumerically(">", 1))
			Expect(fsm.Stats().Pushes).To(Equal(1))

			var info walking.TickInfo
			landed := false
			mergedAfter := false
			for i := 0; i < 300 && !mergedAfter; i++ {
				info = tick()
				if info.Adapting && info.Time >= info.AdaptedImpact {
					landed = landed || (info.Refs.LeftContact && info.Refs.RightContact)
				}
				mergedAfter = info.Merged
			}
			Expect(landed).To(BeTrue())
			Expect(mergedAfter).To(BeTrue())
			Expect(info.Adapting).To(BeTrue())
			Expect(fsm.Stats().LateMerges).To(BeZero())

			// the adapted references stay until the merged plan reaches the
			// front, then the new plan continues from where they were
			prev := info.Refs.DCM
			var adapting int
			for i := 0; i <= cfg.Merge.MergeThreshold; i++ {
				next := tick()
				if next.Adapting {
					adapting++
				}
				Expect(r2.Norm(r2.Sub(next.Refs.DCM, prev))).To(BeNumerically("<", 0.05))
				prev = next.Refs.DCM
			}
			Expect(adapting).To(Equal(cfg.Merge.MergeThreshold - 1))
		})

		It("falls back to the nominal references on a cycle where the QP fails", func() {
			backend := &flakyBackend{inner: qp.NewActiveSet(cfg.QP.MaxIterations)}
			rebuild(walking.Deps{Feedback: robot, Sink: robot, Generator: gen, Backend: backend})
			walk()
			Expect(push().Adapting).To(BeTrue())
			failures := fsm.Stats().QPFailures

			backend.failing.Store(true)
			nominal := fsm.Plan().Front()
			info := tick()
			Expect(info.QPFailed).To(BeTrue())
			Expect(info.Adapting).To(BeFalse())
			Expect(info.Refs.DCM).To(Equal(nominal.DCM))
			Expect(info.Refs.DCMVelocity).To(Equal(nominal.DCMVelocity))
			Expect(info.Refs.LeftFoot).To(Equal(nominal.LeftFoot))
			Expect(info.Refs.RightFoot).To(Equal(nominal.RightFoot))
			Expect(info.Phase).To(Equal(walking.Walking))
			Expect(fsm.Stats().QPFailures).To(Equal(failures + 1))

			backend.failing.Store(false)
			info = tick()
			Expect(info.QPFailed).To(BeFalse())
			Expect(info.Adapting).To(BeTrue())
			Expect(fsm.Stats().Pushes).To(Equal(1))
		})

		It("returns smoothly to the nominal plan when no plan follows the adapted step", func() {
			planner := &flakyGenerator{inner: gen}
			rebuild(walking.Deps{Feedback: robot, Sink: robot, Generator: planner})
			walk()
			trig := push()
			planner.broken.Store(true)
			merges := fsm.Stats().Merges

			prev := trig.Refs.DCM
			var (
				info      walking.TickInfo
				maxJump   float64
				returning int
			)
			for i := 0; i < 300; i++ {
				info = tick()
				Expect(r2.Norm(info.Refs.DCM)).To(BeNumerically("<", 2))
				maxJump = math.Max(maxJump, r2.Norm(r2.Sub(info.Refs.DCM, prev)))
				prev = info.Refs.DCM
				if !info.Adapting {
					break
				}
				if info.Time > info.AdaptedImpact+cfg.Step.DoubleSupportDuration/2 {
					returning++
				}
			}
			Expect(info.Adapting).To(BeFalse())
			Expect(info.QPFailed).To(BeFalse())
			Expect(info.Phase).To(Equal(walking.Walking))
			Expect(fsm.Stats().LateMerges).To(BeNumerically(">=", 1))
			Expect(fsm.Stats().Merges).To(Equal(merges))
			Expect(planner.calls.Load()).To(BeNumerically(">=", 3))

			Expect(returning).To(BeNumerically(">=", cfg.Smoothing.ReturnWindow-1))
			Expect(maxJump).To(BeNumerically("<", 0.25))

			nominal := fsm.Plan().Front()
			Expect(tick().Refs.DCM).To(Equal(nominal.DCM))
		})

		It("keeps walking on the current plan when the generator fails at merge time", func() {
			planner := &flakyGenerator{inner: gen}
			rebuild(walking.Deps{Feedback: robot, Sink: robot, Generator: planner})
			walk()
			planner.broken.Store(true)
			Expect(fsm.SetGoal(r2.Vec{X: 1})).To(Succeed())

			for _, info := range ticks(cfg.Merge.RequestHorizon + 5) {
				Expect(info.Sent).To(BeTrue())
				Expect(info.Merged).To(BeFalse())
				Expect(info.Phase).To(Equal(walking.Walking))
			}
			Expect(fsm.Stats().LateMerges).To(Equal(1))
			Expect(fsm.Stats().Merges).To(BeZero())
			Expect(fsm.Plan().Steps).To(BeEmpty())

			planner.broken.Store(false)
			Expect(fsm.SetGoal(r2.Vec{X: 1})).To(Succeed())
			var merged bool
			for _, info := range ticks(cfg.Merge.RequestHorizon + 5) {
				merged = merged || info.Merged
			}
			Expect(merged).To(BeTrue())
			Expect(fsm.Plan().Steps).NotTo(BeEmpty())
		})

		It("ignores pushes when disabled", func() {
			off := config.DefaultConfig()
			off.Push.Enabled = false
			fsm = walking.New(walking.Deps{Feedback: robot, Sink: robot, Generator: gen}, walking.Options{BlockOnMerge: true})
			Expect(fsm.Configure(off)).To(Succeed())
			walk()
			Expect(fsm.SetGoal(r2.Vec{X: 1})).To(Succeed())
			robot.setOffset(r2.Vec{X: 0.1, Y: 0.1})
			for _, info := range ticks(300) {
				Expect(info.PushEngaged).To(BeFalse())
				Expect(info.Adapting).To(BeFalse())
			}
			Expect(fsm.Stats().Pushes).To(BeZero())
		})
	})

	Describe("failures", func() {
		It("retries stale feedback", func() {
			walk()
			robot.stale = 2
			Expect(tick().Sent).To(BeTrue())
			Expect(fsm.Stats().FeedbackRetries).To(Equal(2))
		})

		It("stops when feedback never arrives", func() {
			walk()
			robot.stale = -1
			_, err := fsm.Tick(ctx)
			Expect(err).To(MatchError(dynamo.ErrFeedbackUnavailable))
			var te *dynamo.TickError
			Expect(errors.As(err, &te)).To(BeTrue())
			Expect(te.Phase).To(Equal("walking"))
			Expect(fsm.Phase()).To(Equal(walking.Stopped))
		})

		It("stops when the sink fails", func() {
			walk()
			robot.sendErr = errSink
			_, err := fsm.Tick(ctx)
			Expect(err).To(MatchError(dynamo.ErrFatalRuntime))
			Expect(err).To(MatchError(errSink))
			Expect(fsm.Phase()).To(Equal(walking.Stopped))
		})

		It("stops on a feedback error", func() {
			walk()
			robot.fbErr = errors.New("bus error")
			_, err := fsm.Tick(ctx)
			Expect(err).To(MatchError(dynamo.ErrFatalRuntime))
			Expect(fsm.Phase()).To(Equal(walking.Stopped))
		})
	})

	Describe("stopping", func() {
		It("is immediate, idempotent and can be followed by prepare", func() {
			walk()
			ticks(5)
			Expect(fsm.Pause()).To(Succeed())
			Expect(fsm.Stop()).To(Succeed())
			Expect(fsm.Phase()).To(Equal(walking.Stopped))
			Expect(fsm.Stop()).To(Succeed())

			Expect(tick().Phase).To(Equal(walking.Stopped))
			Expect(fsm.Start()).To(MatchError(dynamo.ErrTransitionRejected))

			last := robot.refs[len(robot.refs)-1]
			prepare()
			Expect(robot.home).To(HaveLen(2))
			Expect(robot.home[1].LeftFoot.Position.X).To(BeNumerically("~", last.LeftFoot.Position.X, 1e-12))
		})

		It("stops from idle, before any configuration", func() {
			f := walking.New(walking.Deps{}, walking.Options{})
			Expect(f.Phase()).To(Equal(walking.Idle))
			Expect(f.Stop()).To(Succeed())
			Expect(f.Phase()).To(Equal(walking.Stopped))
			Expect(f.Stop()).To(Succeed())
			Expect(f.Prepare()).To(MatchError(dynamo.ErrNotInitialized))
			Expect(f.Phase()).To(Equal(walking.Stopped))
		})
	})

	It("emits finite references", func() {
		walk()
		Expect(fsm.SetGoal(r2.Vec{X: 0.45, Y: 0.1})).To(Succeed())
		for _, info := range ticks(600) {
			Expect(math.IsNaN(info.Refs.CoM.X) || math.IsNaN(info.Refs.DCM.Y)).To(BeFalse())
		}
	})
})
