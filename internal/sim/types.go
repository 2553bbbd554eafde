package sim

import (
	"github.com/san-kum/dcmwalk/internal/config"
	"github.com/san-kum/dcmwalk/internal/trajectory"
	"github.com/san-kum/dcmwalk/internal/walking"
	"gonum.org/v1/gonum/spatial/r2"
)

// PlantState is the simulated robot after a control cycle.
type PlantState struct {
	Time        float64
	CoM         r2.Vec
	CoMVelocity r2.Vec
	DCM         r2.Vec
	ZMP         r2.Vec
	Force       r2.Vec
}

// Record is one tick of a run.
type Record struct {
	Tick  int
	Time  float64
	Phase walking.Phase

	CoM    r2.Vec
	CoMRef r2.Vec
	DCM    r2.Vec
	DCMRef r2.Vec
	EstDCM r2.Vec
	ZMP    r2.Vec
	ZMPRef r2.Vec
	Force  r2.Vec
	Speed  float64

	LeftFoot, RightFoot       trajectory.Pose
	LeftContact, RightContact bool

	PushTriggered bool
	Adapting      bool
	QPFailed      bool
	Merged        bool
	Sigma         float64
}

type Result struct {
	Name    string
	Config  *config.Config
	Records []Record
	Stats   walking.Stats
	Metrics map[string]float64
	// Err is the error that ended the run early, if any.
	Err error
}

// Observer is notified after every tick.
type Observer interface {
	OnTick(rec Record)
}

type ObserverFunc func(rec Record)

func (f ObserverFunc) OnTick(rec Record) { f(rec) }
