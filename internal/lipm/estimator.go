package lipm

import (
	"gonum.org/v1/gonum/spatial/r2"
	"gonum.org/v1/gonum/spatial/r3"
)

// EstimatorInput is the measured state used to estimate the DCM. Roll and
// Pitch are the tilt errors of the stance foot, Yaw its heading.
type EstimatorInput struct {
	Roll, Pitch, Yaw float64
	ZMP              r2.Vec
	CoM              r3.Vec
	CoMVelocity      r2.Vec
}

// Estimator computes the DCM from the CoM rotated about the ZMP by the
// stance-foot tilt. The tilt is applied in the foot frame.
type Estimator struct {
	omega float64
	com   r3.Vec
	dcm   r2.Vec
}

func NewEstimator(omega float64) *Estimator {
	return &Estimator{omega: omega}
}

func (e *Estimator) Update(in EstimatorInput) r2.Vec {
	pivot := r3.Vec{X: in.ZMP.X, Y: in.ZMP.Y}
	rel := r3.Sub(in.CoM, pivot)

	toFoot := r3.NewRotation(-in.Yaw, r3.Vec{Z: 1})
	fromFoot := r3.NewRotation(in.Yaw, r3.Vec{Z: 1})
	pitch := r3.NewRotation(in.Pitch, r3.Vec{Y: 1})
	roll := r3.NewRotation(in.Roll, r3.Vec{X: 1})

	rel = fromFoot.Rotate(pitch.Rotate(roll.Rotate(toFoot.Rotate(rel))))
	e.com = r3.Add(pivot, rel)

	e.dcm = r2.Vec{
		X: e.com.X + in.CoMVelocity.X/e.omega,
		Y: e.com.Y + in.CoMVelocity.Y/e.omega,
	}
	return e.dcm
}

// CoM returns the rotated CoM of the last update.
func (e *Estimator) CoM() r3.Vec { return e.com }

func (e *Estimator) DCM() r2.Vec { return e.dcm }
