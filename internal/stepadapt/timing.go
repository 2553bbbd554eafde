package stepadapt

import "math"

// Timing relates the current time to the nominal impact of the step in
// progress.
type Timing struct {
	Now           float64
	Impact        float64
	DoubleSupport float64
}

// Horizon is the time left until the middle of the next double support.
func (t Timing) Horizon() float64 {
	return t.Impact + t.DoubleSupport/2 - t.Now
}

func (t Timing) RemainingSingleSupport() float64 {
	return t.Impact - t.Now
}

func (t Timing) NominalSigma(omega float64) float64 {
	return math.Exp(omega * t.Horizon())
}

// ImpactTime converts sigma back to an impact time.
func (t Timing) ImpactTime(sigma, omega float64) float64 {
	return t.Now + math.Log(sigma)/omega - t.DoubleSupport/2
}
