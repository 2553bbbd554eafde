package config

import (
	"fmt"
	"os"

	"github.com/san-kum/dcmwalk/internal/dynamo"
	"github.com/san-kum/dcmwalk/internal/integrators"
	"github.com/san-kum/dcmwalk/internal/lipm"
	"github.com/san-kum/dcmwalk/internal/stepadapt"
	"github.com/san-kum/dcmwalk/internal/trajectory"
	"gonum.org/v1/gonum/spatial/r2"
	"gopkg.in/yaml.v3"
)

const (
	DefaultPeriod          = 0.01
	DefaultCoMHeight       = 0.53
	DefaultGravity         = 9.81
	DefaultIntegrator      = "heun"
	DefaultFeedbackRetries = 100
	DefaultMaxIterations   = 100
	DefaultRequestHorizon  = 20
	DefaultMergeThreshold  = 2
	DefaultDuration        = 12.0
)

// Vec2 is written as a two element sequence.
type Vec2 [2]float64

func (v Vec2) R2() r2.Vec {
	return r2.Vec{X: v[0], Y: v[1]}
}

type Config struct {
	Period          float64 `yaml:"period"`
	CoMHeight       float64 `yaml:"com_height"`
	Gravity         float64 `yaml:"gravity"`
	Integrator      string  `yaml:"integrator"`
	FeedbackRetries int     `yaml:"feedback_retries"`

	QP        QPConfig        `yaml:"qp"`
	Push      PushConfig      `yaml:"push"`
	Step      StepConfig      `yaml:"step"`
	Smoothing SmoothingConfig `yaml:"smoothing"`
	Merge     MergeConfig     `yaml:"merge"`
	Sim       SimConfig       `yaml:"sim"`
}

type QPConfig struct {
	ZMPWeight       Vec2    `yaml:"zmp_weight"`
	DCMOffsetWeight Vec2    `yaml:"dcm_offset_weight"`
	SigmaWeight     float64 `yaml:"sigma_weight"`
	MaxIterations   int     `yaml:"max_iterations"`
}

type PushConfig struct {
	Enabled                 bool `yaml:"enabled"`
	DCMErrorThreshold       Vec2 `yaml:"dcm_error_threshold"`
	RollPitchErrorThreshold Vec2 `yaml:"roll_pitch_error_threshold"`
	RollPitchErrorOffset    Vec2 `yaml:"roll_pitch_error_offset"`
	ActivationIndex         int  `yaml:"activation_index"`
}

type StepConfig struct {
	// NominalDuration is the single support duration.
	NominalDuration       float64             `yaml:"nominal_duration"`
	DurationTolerance     float64             `yaml:"duration_tolerance"`
	DoubleSupportDuration float64             `yaml:"double_support_duration"`
	StepLength            float64             `yaml:"step_length"`
	StepWidth             float64             `yaml:"step_width"`
	StepHeight            float64             `yaml:"step_height"`
	MaxSteps              int                 `yaml:"max_steps"`
	Settle                float64             `yaml:"settle"`
	LeftZMPOffset         Vec2                `yaml:"left_zmp_offset"`
	RightZMPOffset        Vec2                `yaml:"right_zmp_offset"`
	LeftPolygon           stepadapt.Rectangle `yaml:"left_polygon"`
	RightPolygon          stepadapt.Rectangle `yaml:"right_polygon"`
}

// SmoothingConfig shapes the blend toward the adapted references. Window
// lengths come from the adapted timing; the minimums avoid one-tick jumps.
// ReturnWindow is how many ticks the references take to go back to the
// nominal plan when an adaptation ends without a merged plan.
type SmoothingConfig struct {
	DCMGain       float64 `yaml:"dcm_gain"`
	DCMMinWindow  int     `yaml:"dcm_min_window"`
	FootGain      float64 `yaml:"foot_gain"`
	FootMinWindow int     `yaml:"foot_min_window"`
	ReturnGain    float64 `yaml:"return_gain"`
	ReturnWindow  int     `yaml:"return_window"`
}

type MergeConfig struct {
	RequestHorizon int `yaml:"request_horizon"`
	MergeThreshold int `yaml:"merge_threshold"`
}

type Push struct {
	Time     float64 `yaml:"time"`
	Force    Vec2    `yaml:"force"`
	Duration float64 `yaml:"duration"`
}

type SimConfig struct {
	Duration  float64 `yaml:"duration"`
	Goal      Vec2    `yaml:"goal"`
	Pushes    []Push  `yaml:"pushes"`
	NoiseStd  float64 `yaml:"noise_std"`
	Seed      int64   `yaml:"seed"`
	Mass      float64 `yaml:"mass"`
	ZMPLag    float64 `yaml:"zmp_lag"`
	DCMGain   float64 `yaml:"dcm_gain"`
	HomeTicks int     `yaml:"home_ticks"`
	ArmGain   float64 `yaml:"arm_gain"`
}

func DefaultConfig() *Config {
	return &Config{
		Period:          DefaultPeriod,
		CoMHeight:       DefaultCoMHeight,
		Gravity:         DefaultGravity,
		Integrator:      DefaultIntegrator,
		FeedbackRetries: DefaultFeedbackRetries,
		QP: QPConfig{
			ZMPWeight:       Vec2{1, 1},
			DCMOffsetWeight: Vec2{10, 10},
			SigmaWeight:     1,
			MaxIterations:   DefaultMaxIterations,
		},
		Push: PushConfig{
			Enabled:                 true,
			DCMErrorThreshold:       Vec2{0.03, 0.03},
			RollPitchErrorThreshold: Vec2{0.1, 0.1},
			ActivationIndex:         3,
		},
		Step: StepConfig{
			NominalDuration:       0.8,
			DurationTolerance:     0.1,
			DoubleSupportDuration: 0.4,
			StepLength:            0.15,
			StepWidth:             0.16,
			StepHeight:            0.03,
			MaxSteps:              30,
			Settle:                1.0,
			LeftPolygon:           stepadapt.Rectangle{Front: 0.12, Back: 0.06, Left: 0.08, Right: 0.03},
			RightPolygon:          stepadapt.Rectangle{Front: 0.12, Back: 0.06, Left: 0.03, Right: 0.08},
		},
		Smoothing: SmoothingConfig{
			DCMGain:       3,
			DCMMinWindow:  5,
			FootGain:      3,
			FootMinWindow: 5,
			ReturnGain:    3,
			ReturnWindow:  10,
		},
		Merge: MergeConfig{
			RequestHorizon: DefaultRequestHorizon,
			MergeThreshold: DefaultMergeThreshold,
		},
		Sim: SimConfig{
			Duration:  DefaultDuration,
			Goal:      Vec2{1.2, 0},
			Seed:      1,
			Mass:      30,
			ZMPLag:    0.01,
			DCMGain:   3,
			HomeTicks: 50,
		},
	}
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return cfg, nil
}

func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("config: "+format+": %w", append(args, dynamo.ErrConfiguration)...)
}

func (c *Config) Validate() error {
	switch {
	case c.Period <= 0:
		return invalid("period must be positive, got %g", c.Period)
	case c.FeedbackRetries <= 0:
		return invalid("feedback_retries must be positive, got %d", c.FeedbackRetries)
	}
	if _, err := lipm.Omega(c.CoMHeight, c.Gravity); err != nil {
		return err
	}
	if _, err := integrators.New(c.Integrator); err != nil {
		return err
	}

	q := c.QP
	for _, w := range []float64{q.ZMPWeight[0], q.ZMPWeight[1], q.DCMOffsetWeight[0], q.DCMOffsetWeight[1], q.SigmaWeight} {
		if !(w > 0) {
			return invalid("qp weights must be positive")
		}
	}
	if q.MaxIterations <= 0 {
		return invalid("qp.max_iterations must be positive")
	}

	p := c.Push
	if p.DCMErrorThreshold[0] < 0 || p.DCMErrorThreshold[1] < 0 || p.ActivationIndex < 0 {
		return invalid("push thresholds and activation index must not be negative")
	}

	s := c.Step
	switch {
	case s.NominalDuration <= 0, s.DoubleSupportDuration <= 0:
		return invalid("step durations must be positive")
	case s.DurationTolerance < 0 || s.DurationTolerance >= s.NominalDuration:
		return invalid("step.duration_tolerance must be in [0, nominal_duration)")
	case s.DurationTolerance >= s.DoubleSupportDuration/2:
		return invalid("step.duration_tolerance must be below half the double support")
	case s.StepLength <= 0, s.StepWidth < 0, s.StepHeight < 0, s.Settle <= 0, s.MaxSteps <= 0:
		return invalid("invalid step geometry")
	}
	if err := s.LeftPolygon.Validate(); err != nil {
		return err
	}
	if err := s.RightPolygon.Validate(); err != nil {
		return err
	}

	if c.Smoothing.DCMMinWindow < 1 || c.Smoothing.FootMinWindow < 1 || c.Smoothing.ReturnWindow < 1 {
		return invalid("smoothing windows must be at least one tick")
	}
	m := c.Merge
	if m.MergeThreshold < 1 || m.RequestHorizon <= m.MergeThreshold {
		return invalid("merge.request_horizon (%d) must exceed merge.merge_threshold (%d) >= 1", m.RequestHorizon, m.MergeThreshold)
	}

	sim := c.Sim
	if sim.Duration <= 0 || sim.Mass <= 0 || sim.ZMPLag < 0 || sim.NoiseStd < 0 || sim.HomeTicks < 0 {
		return invalid("invalid simulation parameters")
	}
	if sim.DCMGain <= 1 {
		return invalid("sim.dcm_gain must exceed 1 for the DCM to converge, got %g", sim.DCMGain)
	}
	for i, push := range sim.Pushes {
		if push.Duration <= 0 || push.Time < 0 {
			return invalid("push %d must have positive duration and non-negative time", i)
		}
	}
	return nil
}

func (c *Config) Omega() (float64, error) {
	return lipm.Omega(c.CoMHeight, c.Gravity)
}

func (c *Config) Straight() (trajectory.StraightConfig, error) {
	omega, err := c.Omega()
	if err != nil {
		return trajectory.StraightConfig{}, err
	}
	s := c.Step
	return trajectory.StraightConfig{
		Dt:             c.Period,
		Omega:          omega,
		CoMHeight:      c.CoMHeight,
		StepLength:     s.StepLength,
		StepWidth:      s.StepWidth,
		StepHeight:     s.StepHeight,
		SingleSupport:  s.NominalDuration,
		DoubleSupport:  s.DoubleSupportDuration,
		Settle:         s.Settle,
		MaxSteps:       s.MaxSteps,
		GoalTolerance:  s.StepLength / 10,
		LeftZMPOffset:  s.LeftZMPOffset.R2(),
		RightZMPOffset: s.RightZMPOffset.R2(),
	}, nil
}

func (c *Config) Adapter() stepadapt.AdapterConfig {
	return stepadapt.AdapterConfig{
		Weights: stepadapt.Weights{
			ZMP:       c.QP.ZMPWeight.R2(),
			DCMOffset: c.QP.DCMOffsetWeight.R2(),
			Sigma:     c.QP.SigmaWeight,
		},
		Tolerance:     c.Step.DurationTolerance,
		MaxIterations: c.QP.MaxIterations,
		LeftPolygon:   c.Step.LeftPolygon,
		RightPolygon:  c.Step.RightPolygon,
	}
}

func (c *Config) Tilt() stepadapt.TiltConfig {
	p := c.Push
	return stepadapt.TiltConfig{
		RollThreshold:  p.RollPitchErrorThreshold[0],
		PitchThreshold: p.RollPitchErrorThreshold[1],
		RollOffset:     p.RollPitchErrorOffset[0],
		PitchOffset:    p.RollPitchErrorOffset[1],
	}
}

// Clone returns a deep copy.
func (c *Config) Clone() *Config {
	out := *c
	out.Sim.Pushes = append([]Push(nil), c.Sim.Pushes...)
	return &out
}
