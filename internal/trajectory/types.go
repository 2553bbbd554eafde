package trajectory

import (
	"math"

	"gonum.org/v1/gonum/spatial/r2"
	"gonum.org/v1/gonum/spatial/r3"
)

type Side int

const (
	Left Side = iota
	Right
)

func (s Side) String() string {
	if s == Left {
		return "left"
	}
	return "right"
}

func (s Side) Other() Side {
	if s == Left {
		return Right
	}
	return Left
}

// Pose is a foot placement. Feet are kept flat by the planner so only yaw is
// planned, roll and pitch are carried for completeness.
type Pose struct {
	Position         r3.Vec
	Roll, Pitch, Yaw float64
}

// Planar returns the ground projection of the pose.
func (p Pose) Planar() r2.Vec {
	return r2.Vec{X: p.Position.X, Y: p.Position.Y}
}

// Local maps a point expressed in the foot frame to the world frame,
// ignoring roll and pitch.
func (p Pose) Local(offset r2.Vec) r2.Vec {
	return r2.Add(p.Planar(), Rotate(offset, p.Yaw))
}

// Twist holds linear and angular velocity. It is reused for accelerations.
type Twist struct {
	Linear  r3.Vec
	Angular r3.Vec
}

// Sample is one control period worth of references.
type Sample struct {
	LeftFoot, RightFoot   Pose
	LeftTwist, RightTwist Twist
	LeftAcc, RightAcc     Twist

	ZMP         r2.Vec
	DCM         r2.Vec
	DCMVelocity r2.Vec

	CoMHeight         float64
	CoMHeightVelocity float64

	LeftContact, RightContact bool
	LeftFixed                 bool
	Stance                    bool
}

func (s Sample) Foot(side Side) Pose {
	if side == Left {
		return s.LeftFoot
	}
	return s.RightFoot
}

func (s Sample) FootTwist(side Side) Twist {
	if side == Left {
		return s.LeftTwist
	}
	return s.RightTwist
}

func (s Sample) DoubleSupport() bool {
	return s.LeftContact && s.RightContact
}

// Step describes one single support phase and the landing that ends it.
// Times are absolute controller times.
type Step struct {
	Swing             Side
	TakeOff           float64
	Impact            float64
	NextDoubleSupport float64

	StanceZMP  r2.Vec
	LandingZMP r2.Vec
	Landing    Pose

	// DCMOffset is the DCM at the middle of the following double support
	// minus LandingZMP.
	DCMOffset r2.Vec
}

// Rotate rotates v by yaw about the vertical axis.
func Rotate(v r2.Vec, yaw float64) r2.Vec {
	s, c := math.Sincos(yaw)
	return r2.Vec{X: c*v.X - s*v.Y, Y: s*v.X + c*v.Y}
}
