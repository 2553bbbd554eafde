package stepadapt

import (
	"fmt"
	"math"

	"github.com/san-kum/dcmwalk/internal/dynamo"
	"github.com/san-kum/dcmwalk/internal/trajectory"
	"gonum.org/v1/gonum/interp"
	"gonum.org/v1/gonum/spatial/r3"
)

// apexRatio places the highest point of the adapted swing at this fraction
// of the swing duration.
const apexRatio = 0.8

type SwingInput struct {
	Now, Dt    float64
	TakeOff    float64
	Impact     float64
	StepHeight float64

	Current      trajectory.Pose
	CurrentTwist trajectory.Twist
	Landing      trajectory.Pose
}

type SwingSample struct {
	Pose         trajectory.Pose
	Twist        trajectory.Twist
	Acceleration trajectory.Twist
}

// SwingTrajectory steers the swing foot from its current state to the
// adapted landing, starting with the current velocity and arriving at rest.
// It returns the sample one period ahead. Once the impact time is reached
// the landing pose is returned with zero velocity.
func SwingTrajectory(in SwingInput) (SwingSample, error) {
	if !(in.Dt > 0) {
		return SwingSample{}, fmt.Errorf("stepadapt: swing period %g: %w", in.Dt, dynamo.ErrConfiguration)
	}
	landing := in.Landing
	landing.Roll, landing.Pitch = 0, 0
	if in.Now >= in.Impact {
		return SwingSample{Pose: landing}, nil
	}

	var x, y, z, yaw interp.PiecewiseCubic
	ends := []float64{in.Now, in.Impact}
	v := in.CurrentTwist.Linear

	apex := (in.Impact-in.TakeOff)*apexRatio + in.TakeOff
	if in.Now < apex && apex < in.Impact {
		z.FitWithDerivatives(
			[]float64{in.Now, apex, in.Impact},
			[]float64{in.Current.Position.Z, landing.Position.Z + in.StepHeight, landing.Position.Z},
			[]float64{v.Z, 0, 0},
		)
	} else {
		z.FitWithDerivatives(ends, []float64{in.Current.Position.Z, landing.Position.Z}, []float64{v.Z, 0})
	}
	x.FitWithDerivatives(ends, []float64{in.Current.Position.X, landing.Position.X}, []float64{v.X, 0})
	y.FitWithDerivatives(ends, []float64{in.Current.Position.Y, landing.Position.Y}, []float64{v.Y, 0})
	startYaw := landing.Yaw - wrap(landing.Yaw-in.Current.Yaw)
	yaw.FitWithDerivatives(ends, []float64{startYaw, landing.Yaw}, []float64{in.CurrentTwist.Angular.Z, 0})

	at := math.Min(in.Now+in.Dt, in.Impact)
	velocity := func(t float64) trajectory.Twist {
		return trajectory.Twist{
			Linear:  r3.Vec{X: x.PredictDerivative(t), Y: y.PredictDerivative(t), Z: z.PredictDerivative(t)},
			Angular: r3.Vec{Z: yaw.PredictDerivative(t)},
		}
	}

	out := SwingSample{
		Pose: trajectory.Pose{
			Position: r3.Vec{X: x.Predict(at), Y: y.Predict(at), Z: z.Predict(at)},
			Yaw:      yaw.Predict(at),
		},
		Twist: velocity(at),
	}
	lo, hi := math.Max(at-in.Dt/2, in.Now), math.Min(at+in.Dt/2, in.Impact)
	if hi > lo {
		a, b := velocity(lo), velocity(hi)
		out.Acceleration.Linear = r3.Scale(1/(hi-lo), r3.Sub(b.Linear, a.Linear))
	}
	return out, nil
}

func wrap(a float64) float64 {
	return math.Atan2(math.Sin(a), math.Cos(a))
}
