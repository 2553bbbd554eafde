package sim

import (
	"context"
	"fmt"
	"math"

	"github.com/san-kum/dcmwalk/internal/config"
	"github.com/san-kum/dcmwalk/internal/dynamo"
	"github.com/san-kum/dcmwalk/internal/metrics"
	"github.com/san-kum/dcmwalk/internal/trajectory"
	"github.com/san-kum/dcmwalk/internal/walking"
	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/spatial/r2"
)

var log = logrus.WithFields(logrus.Fields{"pkg": "sim"})

// Simulator drives a walking FSM against a simulated Robot as fast as
// possible. Plans are merged synchronously so runs are reproducible.
type Simulator struct {
	cfg       *config.Config
	name      string
	metrics   []metrics.Metric
	observers []Observer
}

func New(name string, cfg *config.Config) *Simulator {
	return &Simulator{cfg: cfg.Clone(), name: name}
}

func (s *Simulator) AddMetric(m metrics.Metric) { s.metrics = append(s.metrics, m) }
func (s *Simulator) AddObserver(o Observer)     { s.observers = append(s.observers, o) }

// Run prepares the robot, walks toward the configured goal and returns the
// records. A controller failure ends the run; it is reported in Result.Err
// and the partial records are kept.
func (s *Simulator) Run(ctx context.Context) (*Result, error) {
	cfg := s.cfg
	robot, err := NewRobot(cfg)
	if err != nil {
		return nil, err
	}
	sc, err := cfg.Straight()
	if err != nil {
		return nil, err
	}
	gen, err := trajectory.NewStraight(sc)
	if err != nil {
		return nil, err
	}
	fsm := walking.New(walking.Deps{Feedback: robot, Sink: robot, Generator: gen}, walking.Options{BlockOnMerge: true})
	if err := fsm.Configure(cfg); err != nil {
		return nil, err
	}

	ms := s.metrics
	if len(ms) == 0 {
		ms = metrics.Defaults(cfg.Push.DCMErrorThreshold.R2().X)
	}
	for _, m := range ms {
		m.Reset()
	}

	steps := int(math.Round(cfg.Sim.Duration / cfg.Period))
	res := &Result{
		Name:    s.name,
		Config:  cfg,
		Records: make([]Record, 0, steps),
		Metrics: make(map[string]float64),
	}

	if err := s.prepare(ctx, fsm); err != nil {
		return nil, err
	}
	if err := fsm.Start(); err != nil {
		return nil, err
	}
	started := false

	log.WithFields(logrus.Fields{"run": s.name, "goal": cfg.Sim.Goal, "pushes": len(cfg.Sim.Pushes)}).Info("starting run")
	for i := 0; i < steps; i++ {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		info, err := fsm.Tick(ctx)
		if err != nil {
			res.Err = err
			log.WithError(err).Warnf("run %s ended early", s.name)
			break
		}
		if !started && info.Phase == walking.Walking {
			started = true
			if err := fsm.SetGoal(cfg.Sim.Goal.R2()); err != nil {
				return nil, fmt.Errorf("sim: set goal: %w", err)
			}
		}

		st := robot.State()
		rec := record(info, st)
		res.Records = append(res.Records, rec)
		sample := metrics.Sample{
			Time:        rec.Time,
			DCM:         rec.DCM,
			DCMRef:      rec.DCMRef,
			ZMP:         rec.ZMP,
			ZMPRef:      rec.ZMPRef,
			CoMVelocity: st.CoMVelocity,
			Adapting:    rec.Adapting,
			QPFailed:    rec.QPFailed,
		}
		for _, m := range ms {
			m.Observe(sample)
		}
		for _, o := range s.observers {
			o.OnTick(rec)
		}
	}

	res.Stats = fsm.Stats()
	for _, m := range ms {
		res.Metrics[m.Name()] = m.Value()
	}
	res.Metrics["merges"] = float64(res.Stats.Merges)
	res.Metrics["pushes"] = float64(res.Stats.Pushes)
	res.Metrics["qp_failures"] = float64(res.Stats.QPFailures)
	return res, nil
}

func (s *Simulator) prepare(ctx context.Context, fsm *walking.FSM) error {
	if err := fsm.Prepare(); err != nil {
		return err
	}
	limit := s.cfg.Sim.HomeTicks + 2
	for i := 0; i <= limit; i++ {
		if _, err := fsm.Tick(ctx); err != nil {
			return err
		}
		if fsm.Phase() == walking.Prepared {
			return nil
		}
	}
	return fmt.Errorf("sim: robot not home after %d ticks: %w", limit, dynamo.ErrFatalRuntime)
}

func record(info walking.TickInfo, st PlantState) Record {
	refs := info.Refs
	return Record{
		Tick:          info.Tick,
		Time:          info.Time,
		Phase:         info.Phase,
		CoM:           st.CoM,
		CoMRef:        refs.CoM,
		DCM:           st.DCM,
		DCMRef:        refs.DCM,
		EstDCM:        info.EstimatedDCM,
		ZMP:           st.ZMP,
		ZMPRef:        refs.ZMP,
		Force:         st.Force,
		Speed:         r2.Norm(st.CoMVelocity),
		LeftFoot:      refs.LeftFoot,
		RightFoot:     refs.RightFoot,
		LeftContact:   refs.LeftContact,
		RightContact:  refs.RightContact,
		PushTriggered: info.PushTriggered,
		Adapting:      info.Adapting,
		QPFailed:      info.QPFailed,
		Merged:        info.Merged,
		Sigma:         info.Sigma,
	}
}
