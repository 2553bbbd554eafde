package trajectory

import (
	"fmt"
	"math"

	"github.com/san-kum/dcmwalk/internal/dynamo"
)

// Plan is a sequence of samples starting at StartTime and spaced by Dt.
// MergePoints are strictly increasing sample indices.
type Plan struct {
	StartTime   float64
	Dt          float64
	Samples     []Sample
	Steps       []Step
	MergePoints []int
}

func (p *Plan) Len() int {
	return len(p.Samples)
}

func (p *Plan) Front() Sample {
	return p.Samples[0]
}

func (p *Plan) At(i int) Sample {
	if i >= len(p.Samples) {
		return p.Samples[len(p.Samples)-1]
	}
	return p.Samples[i]
}

// TimeAt returns the time of sample i.
func (p *Plan) TimeAt(i int) float64 {
	return p.StartTime + float64(i)*p.Dt
}

// IndexOf returns the index of the sample closest to t.
func (p *Plan) IndexOf(t float64) int {
	return int(math.Round((t - p.StartTime) / p.Dt))
}

// Advance consumes the front sample and repeats the last one so that the
// length is preserved. Merge points move one index closer and are dropped
// when they reach the front. Steps that are entirely in the past are dropped.
func (p *Plan) Advance() {
	if len(p.Samples) == 0 {
		return
	}
	last := p.Samples[len(p.Samples)-1]
	copy(p.Samples, p.Samples[1:])
	p.Samples[len(p.Samples)-1] = last
	p.StartTime += p.Dt

	kept := p.MergePoints[:0]
	for _, m := range p.MergePoints {
		if m-1 > 0 {
			kept = append(kept, m-1)
		}
	}
	p.MergePoints = kept

	for len(p.Steps) > 0 && p.Steps[0].Impact+p.Steps[0].NextDoubleSupport < p.StartTime {
		p.Steps = p.Steps[1:]
	}
}

// StepAt returns the step whose single support contains t.
func (p *Plan) StepAt(t float64) (Step, bool) {
	for _, s := range p.Steps {
		if t >= s.TakeOff && t < s.Impact {
			return s, true
		}
	}
	return Step{}, false
}

// NextStep returns the first step taking off at or after t.
func (p *Plan) NextStep(t float64) (Step, bool) {
	for _, s := range p.Steps {
		if s.TakeOff >= t {
			return s, true
		}
	}
	return Step{}, false
}

func (p *Plan) Clone() *Plan {
	c := &Plan{
		StartTime:   p.StartTime,
		Dt:          p.Dt,
		Samples:     make([]Sample, len(p.Samples)),
		Steps:       make([]Step, len(p.Steps)),
		MergePoints: make([]int, len(p.MergePoints)),
	}
	copy(c.Samples, p.Samples)
	copy(c.Steps, p.Steps)
	copy(c.MergePoints, p.MergePoints)
	return c
}

// Merge returns a plan that follows active up to mergeIndex and incoming
// from there on. incoming must start at the time of active's sample
// mergeIndex. The first merge point of incoming is its own start and is
// dropped; the others are shifted by mergeIndex. Neither input is modified.
func Merge(active, incoming *Plan, mergeIndex int) (*Plan, error) {
	if active == nil || incoming == nil || incoming.Len() == 0 {
		return nil, fmt.Errorf("merge: empty plan: %w", dynamo.ErrDimensionMismatch)
	}
	if mergeIndex < 0 || mergeIndex >= active.Len() {
		return nil, fmt.Errorf("merge: index %d outside active plan of %d samples: %w", mergeIndex, active.Len(), dynamo.ErrDimensionMismatch)
	}
	if math.Abs(active.Dt-incoming.Dt) > 1e-12 {
		return nil, fmt.Errorf("merge: period %g differs from %g: %w", incoming.Dt, active.Dt, dynamo.ErrConfiguration)
	}
	mergeTime := active.TimeAt(mergeIndex)
	if math.Abs(incoming.StartTime-mergeTime) > active.Dt/2 {
		return nil, fmt.Errorf("merge: incoming plan starts at %.4f, merge point is at %.4f: %w", incoming.StartTime, mergeTime, dynamo.ErrConfiguration)
	}

	out := &Plan{
		StartTime: active.StartTime,
		Dt:        active.Dt,
		Samples:   make([]Sample, 0, mergeIndex+incoming.Len()),
	}
	out.Samples = append(out.Samples, active.Samples[:mergeIndex]...)
	out.Samples = append(out.Samples, incoming.Samples...)

	for _, s := range active.Steps {
		if s.TakeOff < mergeTime {
			out.Steps = append(out.Steps, s)
		}
	}
	for _, s := range incoming.Steps {
		if s.TakeOff >= mergeTime {
			out.Steps = append(out.Steps, s)
		}
	}

	for _, m := range incoming.MergePoints {
		if m == 0 {
			continue
		}
		out.MergePoints = append(out.MergePoints, m+mergeIndex)
	}
	return out, nil
}
