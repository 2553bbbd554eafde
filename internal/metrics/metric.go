// Package metrics scores walking runs tick by tick.
package metrics

import "gonum.org/v1/gonum/spatial/r2"

// Sample is what a metric sees of one control cycle.
type Sample struct {
	Time        float64
	DCM         r2.Vec
	DCMRef      r2.Vec
	ZMP         r2.Vec
	ZMPRef      r2.Vec
	CoMVelocity r2.Vec
	Adapting    bool
	QPFailed    bool
}

type Metric interface {
	Name() string
	Observe(s Sample)
	Value() float64
	Reset()
}

// Defaults is the metric set used when a run does not name its own.
// threshold is the DCM error considered stable.
func Defaults(threshold float64) []Metric {
	return []Metric{
		NewDCMTracking(),
		NewMaxDCMError(),
		NewZMPTracking(),
		NewStability(threshold),
		NewAdaptationRatio(),
		NewPeakSpeed(),
		NewMeanSpeed(),
	}
}
