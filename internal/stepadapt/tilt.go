package stepadapt

import "math"

// ArmErrors are the summed joint tracking errors of the compliant arms.
// Pitch errors are signed, roll errors are magnitudes.
type ArmErrors struct {
	LeftPitch, RightPitch float64
	LeftRoll, RightRoll   float64
}

type TiltConfig struct {
	RollThreshold  float64
	PitchThreshold float64
	// RollOffset and PitchOffset are added, with the sign of the error, to
	// the tilt handed to the DCM estimator.
	RollOffset  float64
	PitchOffset float64
}

// Tilt is the stance-foot orientation inferred from the arms.
type Tilt struct {
	Roll, Pitch, Yaw float64
	RollActive       bool
	PitchActive      bool
}

// TiltDetector turns arm compliance into a virtual stance-foot tilt. Roll is
// only taken from the arm on the side whose foot is on the ground, and is
// ignored during the step that follows the one where it was last taken.
type TiltDetector struct {
	cfg         TiltConfig
	steps       int
	pushStep    int
	wasSwinging bool
}

func NewTiltDetector(cfg TiltConfig) *TiltDetector {
	return &TiltDetector{cfg: cfg, pushStep: -2}
}

// Step counts a new step every time double support follows single support.
func (t *TiltDetector) Step(leftContact, rightContact bool) {
	if leftContact && rightContact {
		if t.wasSwinging {
			t.steps++
			t.wasSwinging = false
		}
		return
	}
	t.wasSwinging = true
}

func (t *TiltDetector) Steps() int {
	return t.steps
}

func (t *TiltDetector) Update(arms ArmErrors, leftContact, rightContact bool, yaw float64) Tilt {
	t.Step(leftContact, rightContact)
	var out Tilt

	switch {
	case arms.LeftPitch > t.cfg.PitchThreshold:
		out.Pitch, out.PitchActive = arms.LeftPitch, true
	case arms.RightPitch > t.cfg.PitchThreshold:
		out.Pitch, out.PitchActive = arms.RightPitch, true
	}

	left, right := math.Abs(arms.LeftRoll), math.Abs(arms.RightRoll)
	repeat := t.pushStep+1 == t.steps
	switch {
	case left > t.cfg.RollThreshold && left > right:
		if !repeat && leftContact {
			out.Roll, out.RollActive = arms.LeftRoll, true
			t.pushStep = t.steps
		}
	case right > t.cfg.RollThreshold && right > left:
		if !repeat && rightContact {
			out.Roll, out.RollActive = -arms.RightRoll, true
			t.pushStep = t.steps
		}
	}

	if out.RollActive {
		out.Roll += sign(out.Roll) * t.cfg.RollOffset
		out.Yaw = yaw
	}
	if out.PitchActive {
		out.Pitch += sign(out.Pitch) * t.cfg.PitchOffset
		out.Yaw = yaw
	}
	return out
}

func sign(v float64) float64 {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	}
	return 0
}
