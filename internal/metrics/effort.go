package metrics

import (
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/spatial/r2"
	"gonum.org/v1/gonum/stat"
)

// AdaptationRatio is the fraction of cycles spent on an adapted step.
type AdaptationRatio struct {
	name     string
	adapting int
	samples  int
}

func NewAdaptationRatio() *AdaptationRatio {
	return &AdaptationRatio{name: "adaptation_ratio"}
}

func (a *AdaptationRatio) Name() string { return a.name }

func (a *AdaptationRatio) Observe(s Sample) {
	if s.Adapting {
		a.adapting++
	}
	a.samples++
}

func (a *AdaptationRatio) Value() float64 {
	if a.samples == 0 {
		return 0
	}
	return float64(a.adapting) / float64(a.samples)
}

func (a *AdaptationRatio) Reset() {
	a.adapting = 0
	a.samples = 0
}

type speedSeries struct {
	name   string
	speeds []float64
}

func (s *speedSeries) Name() string      { return s.name }
func (s *speedSeries) Observe(x Sample)  { s.speeds = append(s.speeds, r2.Norm(x.CoMVelocity)) }
func (s *speedSeries) Reset()            { s.speeds = s.speeds[:0] }
func (s *speedSeries) empty() bool       { return len(s.speeds) == 0 }
func (s *speedSeries) values() []float64 { return s.speeds }

// PeakSpeed is the largest horizontal CoM speed.
type PeakSpeed struct{ speedSeries }

func NewPeakSpeed() *PeakSpeed { return &PeakSpeed{speedSeries{name: "peak_speed"}} }

func (p *PeakSpeed) Value() float64 {
	if p.empty() {
		return 0
	}
	return floats.Max(p.values())
}

type MeanSpeed struct{ speedSeries }

func NewMeanSpeed() *MeanSpeed { return &MeanSpeed{speedSeries{name: "mean_speed"}} }

func (m *MeanSpeed) Value() float64 {
	if m.empty() {
		return 0
	}
	return stat.Mean(m.values(), nil)
}
