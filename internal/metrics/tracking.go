package metrics

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/spatial/r2"
	"gonum.org/v1/gonum/stat"
)

type errorSeries struct {
	name string
	pick func(Sample) (r2.Vec, r2.Vec)
	errs []float64
}

func (e *errorSeries) Name() string { return e.name }

func (e *errorSeries) Observe(s Sample) {
	a, b := e.pick(s)
	e.errs = append(e.errs, r2.Norm(r2.Sub(a, b)))
}

func (e *errorSeries) Reset() { e.errs = e.errs[:0] }

// RMS is the root mean square of the distance between two signals.
type RMS struct{ errorSeries }

func (r *RMS) Value() float64 {
	if len(r.errs) == 0 {
		return 0
	}
	sq := make([]float64, len(r.errs))
	floats.MulTo(sq, r.errs, r.errs)
	return math.Sqrt(stat.Mean(sq, nil))
}

type Max struct{ errorSeries }

func (m *Max) Value() float64 {
	if len(m.errs) == 0 {
		return 0
	}
	return floats.Max(m.errs)
}

func dcmPair(s Sample) (r2.Vec, r2.Vec) { return s.DCM, s.DCMRef }
func zmpPair(s Sample) (r2.Vec, r2.Vec) { return s.ZMP, s.ZMPRef }

func NewDCMTracking() *RMS {
	return &RMS{errorSeries{name: "dcm_rms", pick: dcmPair}}
}

func NewMaxDCMError() *Max {
	return &Max{errorSeries{name: "dcm_max", pick: dcmPair}}
}

func NewZMPTracking() *RMS {
	return &RMS{errorSeries{name: "zmp_rms", pick: zmpPair}}
}
