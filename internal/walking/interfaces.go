package walking

import (
	"context"
	"errors"

	"github.com/san-kum/dcmwalk/internal/stepadapt"
	"github.com/san-kum/dcmwalk/internal/trajectory"
	"gonum.org/v1/gonum/spatial/r2"
)

// ErrNotUpdated is returned by a FeedbackProvider whose measurements are not
// fresh yet. The read is retried.
var ErrNotUpdated = errors.New("walking: feedback not updated")

// Feedback is the measured robot state of one control cycle.
type Feedback struct {
	Time        float64
	CoM         r2.Vec
	CoMVelocity r2.Vec
	CoMHeight   float64
	ZMP         r2.Vec
	BaseYaw     float64
	Arms        stepadapt.ArmErrors
}

type FeedbackProvider interface {
	Feedback(ctx context.Context) (Feedback, error)
}

// References is what the controller asks of the robot for one cycle.
type References struct {
	Time float64

	CoM               r2.Vec
	CoMVelocity       r2.Vec
	CoMHeight         float64
	CoMHeightVelocity float64
	DCM               r2.Vec
	DCMVelocity       r2.Vec
	ZMP               r2.Vec

	LeftFoot, RightFoot   trajectory.Pose
	LeftTwist, RightTwist trajectory.Twist
	LeftAcc, RightAcc     trajectory.Twist

	LeftContact, RightContact bool
	LeftFixed                 bool
}

// Stance is the home posture reached while preparing.
type Stance struct {
	LeftFoot, RightFoot trajectory.Pose
	CoMHeight           float64
}

// ReferenceSink consumes references, typically through inverse kinematics.
type ReferenceSink interface {
	Send(refs References) error
	MoveHome(stance Stance) error
	MotionDone() (bool, error)
}
