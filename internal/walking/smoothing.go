package walking

import "math"

// SmoothingWindow moves a value from From to To over DurationTicks ticks
// starting at StartTick. A positive Gain gives an exponential profile,
// otherwise the blend is linear.
type SmoothingWindow struct {
	StartTick     int
	DurationTicks int
	From, To      float64
	Gain          float64
}

func (w SmoothingWindow) Value(tick int) float64 {
	k := tick - w.StartTick
	switch {
	case k <= 0:
		return w.From
	case w.DurationTicks <= 0 || k >= w.DurationTicks:
		return w.To
	}
	frac := float64(k) / float64(w.DurationTicks)
	if w.Gain > 0 {
		frac = (1 - math.Exp(-w.Gain*frac)) / (1 - math.Exp(-w.Gain))
	}
	return w.From + (w.To-w.From)*frac
}

func (w SmoothingWindow) Done(tick int) bool {
	return tick-w.StartTick >= w.DurationTicks
}
