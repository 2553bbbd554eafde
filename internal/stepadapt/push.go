package stepadapt

import (
	"math"

	"gonum.org/v1/gonum/spatial/r2"
)

// Detection is the outcome of one PushDetector update.
type Detection struct {
	Error r2.Vec
	// Axes marks the axes whose error exceeds the threshold.
	Axes [2]bool
	// Triggered is set on the cycle the push is recognised. The estimated
	// DCM replaces the reference on the marked axes for that cycle and the
	// smoothing windows open.
	Triggered bool
	// Engaged stays set from Triggered until Reset.
	Engaged bool
}

// Merge returns reference with the axes marked in d taken from estimated.
func (d Detection) Merge(reference, estimated r2.Vec) r2.Vec {
	if d.Axes[0] {
		reference.X = estimated.X
	}
	if d.Axes[1] {
		reference.Y = estimated.Y
	}
	return reference
}

// PushDetector counts consecutive cycles in which the estimated DCM is away
// from its reference and declares a push after activationIndex of them.
type PushDetector struct {
	threshold  r2.Vec
	activation int
	counter    int
}

func NewPushDetector(threshold r2.Vec, activationIndex int) *PushDetector {
	if activationIndex < 0 {
		activationIndex = 0
	}
	return &PushDetector{threshold: threshold, activation: activationIndex}
}

func (d *PushDetector) Update(reference, estimated r2.Vec) Detection {
	e := r2.Sub(reference, estimated)
	det := Detection{
		Error: e,
		Axes:  [2]bool{math.Abs(e.X) > d.threshold.X, math.Abs(e.Y) > d.threshold.Y},
	}

	switch over := det.Axes[0] || det.Axes[1]; {
	case over:
		det.Triggered = d.counter == d.activation
		d.counter++
	case d.counter <= d.activation:
		d.counter = 0
	}
	det.Engaged = d.counter > d.activation
	return det
}

func (d *PushDetector) Counter() int {
	return d.counter
}

func (d *PushDetector) Reset() {
	d.counter = 0
}
