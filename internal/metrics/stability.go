package metrics

import "gonum.org/v1/gonum/spatial/r2"

// Stability is the fraction of cycles whose DCM error norm stays within
// the push threshold. A run without samples counts as stable.
type Stability struct {
	threshold float64
	within    int
	total     int
}

func NewStability(threshold float64) *Stability {
	return &Stability{threshold: threshold}
}

func (s *Stability) Name() string { return "stability" }

func (s *Stability) Observe(x Sample) {
	s.total++
	if r2.Norm(r2.Sub(x.DCM, x.DCMRef)) <= s.threshold {
		s.within++
	}
}

func (s *Stability) Value() float64 {
	if s.total == 0 {
		return 1
	}
	return float64(s.within) / float64(s.total)
}

func (s *Stability) Reset() { s.within, s.total = 0, 0 }
