package lipm

import (
	"fmt"

	"github.com/san-kum/dcmwalk/internal/dynamo"
	"gonum.org/v1/gonum/spatial/r2"
)

// Stabilizer propagates the CoM reference that tracks a DCM reference.
//
// Usage per control cycle:
//
//	st.SetInput(dcmRef)
//	if err := st.Integrate(); err != nil { ... }
//	com, _ := st.Position()
//	vel, _ := st.Velocity()
type Stabilizer struct {
	integ dynamo.Integrator
	sys   *StableDCM

	omega float64
	dt    float64
	t     float64

	com   dynamo.State
	vel   r2.Vec
	input r2.Vec

	initialized bool
	propagated  bool
}

func NewStabilizer(integ dynamo.Integrator) *Stabilizer {
	return &Stabilizer{integ: integ}
}

// Initialize fixes omega and the sampling period. The CoM state starts at the
// origin until Reset is called.
func (s *Stabilizer) Initialize(comHeight, gravity, samplingTime float64) error {
	omega, err := Omega(comHeight, gravity)
	if err != nil {
		return err
	}
	if !(samplingTime > 0) {
		return fmt.Errorf("sampling time %g: %w", samplingTime, dynamo.ErrConfiguration)
	}

	s.omega = omega
	s.dt = samplingTime
	s.sys = NewStableDCM(omega)
	s.com = dynamo.State{0, 0}
	s.vel = r2.Vec{}
	s.t = 0
	s.initialized = true
	s.propagated = false
	if r, ok := s.integ.(dynamo.Resettable); ok {
		r.Reset()
	}
	return nil
}

func (s *Stabilizer) Omega() float64 {
	return s.omega
}

func (s *Stabilizer) SetInput(dcm r2.Vec) {
	s.input = dcm
}

// Integrate advances the CoM by one sampling period. The reported velocity is
// the law evaluated at the state before the step.
func (s *Stabilizer) Integrate() error {
	if !s.initialized {
		return dynamo.ErrNotInitialized
	}

	u := dynamo.Control{s.input.X, s.input.Y}
	v := s.sys.Derive(s.com, u, s.t)
	next := s.integ.Step(s.sys, s.com, u, s.t, s.dt)
	if !next.IsValid() {
		return fmt.Errorf("stabilizer at t=%.4f: %w", s.t, dynamo.ErrInvalidState)
	}

	s.vel = r2.Vec{X: v[0], Y: v[1]}
	s.com = next
	s.t += s.dt
	s.propagated = true
	return nil
}

func (s *Stabilizer) Position() (r2.Vec, error) {
	if !s.propagated {
		return r2.Vec{}, dynamo.ErrNotPropagated
	}
	return r2.Vec{X: s.com[0], Y: s.com[1]}, nil
}

func (s *Stabilizer) Velocity() (r2.Vec, error) {
	if !s.propagated {
		return r2.Vec{}, dynamo.ErrNotPropagated
	}
	return s.vel, nil
}

// Reset reseeds the CoM and clears integrator memory. Omega is unchanged.
func (s *Stabilizer) Reset(com r2.Vec) error {
	if !s.initialized {
		return dynamo.ErrNotInitialized
	}
	s.com = dynamo.State{com.X, com.Y}
	s.vel = r2.Vec{}
	if r, ok := s.integ.(dynamo.Resettable); ok {
		r.Reset()
	}
	return nil
}
