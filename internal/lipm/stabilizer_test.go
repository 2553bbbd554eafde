package lipm

import (
	"math"
	"testing"

	"github.com/san-kum/dcmwalk/internal/dynamo"
	"github.com/san-kum/dcmwalk/internal/integrators"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r2"
	"gonum.org/v1/gonum/spatial/r3"
)

func TestOmega(t *testing.T) {
	omega, err := Omega(1.0, 9.81)
	require.NoError(t, err)
	assert.Equal(t, math.Sqrt(9.81), omega)

	tests := []struct {
		name      string
		h, g      float64
		expectErr bool
	}{
		{"nominal", 0.53, 9.81, false},
		{"zero height", 0, 9.81, true},
		{"negative gravity", 0.5, -9.81, true},
		{"nan height", math.NaN(), 9.81, true},
		{"inf gravity", 0.5, math.Inf(1), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Omega(tt.h, tt.g)
			if tt.expectErr {
				assert.ErrorIs(t, err, dynamo.ErrConfiguration)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestStabilizerOmegaInvariant(t *testing.T) {
	st := NewStabilizer(integrators.NewTrapezoid())
	require.NoError(t, st.Initialize(1.0, 9.81, 0.01))
	assert.Equal(t, math.Sqrt(9.81), st.Omega())

	st.SetInput(r2.Vec{X: 0.3, Y: -0.1})
	for i := 0; i < 200; i++ {
		require.NoError(t, st.Integrate())
	}
	assert.Equal(t, math.Sqrt(9.81), st.Omega())
}

func TestStabilizerLifecycleErrors(t *testing.T) {
	st := NewStabilizer(integrators.NewHeun())

	assert.ErrorIs(t, st.Integrate(), dynamo.ErrNotInitialized)
	assert.ErrorIs(t, st.Reset(r2.Vec{}), dynamo.ErrNotInitialized)

	require.NoError(t, st.Initialize(0.53, 9.81, 0.01))
	_, err := st.Position()
	assert.ErrorIs(t, err, dynamo.ErrNotPropagated)
	_, err = st.Velocity()
	assert.ErrorIs(t, err, dynamo.ErrNotPropagated)

	require.NoError(t, st.Integrate())
	_, err = st.Position()
	assert.NoError(t, err)

	assert.ErrorIs(t, st.Initialize(0.53, 9.81, 0), dynamo.ErrConfiguration)
}

func TestStabilizerFixedPoint(t *testing.T) {
	for _, name := range integrators.Names() {
		t.Run(name, func(t *testing.T) {
			integ, err := integrators.New(name)
			require.NoError(t, err)
			st := NewStabilizer(integ)
			require.NoError(t, st.Initialize(0.53, 9.81, 0.01))

			p := r2.Vec{X: 0.12, Y: -0.04}
			require.NoError(t, st.Reset(p))
			st.SetInput(p)
			require.NoError(t, st.Integrate())

			pos, _ := st.Position()
			vel, _ := st.Velocity()
			assert.Equal(t, p, pos)
			assert.Equal(t, 0.0, r2.Norm(vel))
		})
	}
}

func TestStabilizerMonotonicConvergence(t *testing.T) {
	st := NewStabilizer(integrators.NewTrapezoid())
	require.NoError(t, st.Initialize(0.53, 9.81, 0.01))
	require.NoError(t, st.Reset(r2.Vec{}))

	ref := r2.Vec{X: 0.25, Y: 0.1}
	st.SetInput(ref)

	prev := r2.Norm(ref)
	for i := 0; i < 400; i++ {
		require.NoError(t, st.Integrate())
		pos, _ := st.Position()
		dist := r2.Norm(r2.Sub(pos, ref))
		assert.LessOrEqual(t, dist, prev, "step %d", i)
		prev = dist
	}
	assert.Less(t, prev, 1e-3)
}

func TestEstimatorNoTilt(t *testing.T) {
	omega, _ := Omega(0.53, 9.81)
	est := NewEstimator(omega)

	dcm := est.Update(EstimatorInput{
		ZMP:         r2.Vec{X: 0.01, Y: 0.02},
		CoM:         r3.Vec{X: 0.05, Y: -0.03, Z: 0.53},
		CoMVelocity: r2.Vec{X: 0.2, Y: 0.1},
	})

	assert.InDelta(t, 0.05+0.2/omega, dcm.X, 1e-12)
	assert.InDelta(t, -0.03+0.1/omega, dcm.Y, 1e-12)
}

func TestEstimatorTiltInFootFrame(t *testing.T) {
	h := 0.5
	theta := 0.1
	est := NewEstimator(math.Sqrt(9.81 / h))

	dcm := est.Update(EstimatorInput{
		Pitch: theta,
		CoM:   r3.Vec{Z: h},
	})
	assert.InDelta(t, h*math.Sin(theta), dcm.X, 1e-9)
	assert.InDelta(t, 0, dcm.Y, 1e-9)

	dcm = est.Update(EstimatorInput{
		Pitch: theta,
		Yaw:   math.Pi / 2,
		CoM:   r3.Vec{Z: h},
	})
	assert.InDelta(t, 0, dcm.X, 1e-9)
	assert.InDelta(t, h*math.Sin(theta), dcm.Y, 1e-9)
	assert.InDelta(t, h*math.Cos(theta), est.CoM().Z, 1e-9)
}
