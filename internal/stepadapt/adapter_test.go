package stepadapt

import (
	"math"
	"testing"

	"github.com/san-kum/dcmwalk/internal/dynamo"
	"github.com/san-kum/dcmwalk/internal/trajectory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r2"
	"gonum.org/v1/gonum/spatial/r3"
)

func testAdapterConfig() AdapterConfig {
	rect := Rectangle{Front: 0.1, Back: 0.05, Left: 0.05, Right: 0.05}
	return AdapterConfig{
		Weights:      Weights{ZMP: r2.Vec{X: 1, Y: 1}, DCMOffset: r2.Vec{X: 10, Y: 10}, Sigma: 1},
		Tolerance:    0.1,
		LeftPolygon:  rect,
		RightPolygon: rect,
	}
}

func leftStep(s scenario) trajectory.Step {
	return trajectory.Step{
		Swing:             trajectory.Left,
		TakeOff:           -0.3,
		Impact:            s.remaining,
		NextDoubleSupport: 2 * (s.horizon - s.remaining),
		StanceZMP:         s.stance,
		LandingZMP:        s.landing,
		Landing:           trajectory.Pose{Position: r3.Vec{X: s.landing.X - 0.01, Y: s.landing.Y}},
		DCMOffset:         s.offset,
	}
}

func TestPolygon(t *testing.T) {
	rect := Rectangle{Front: 0.1, Back: 0.05, Left: 0.02, Right: 0.03}
	p := rect.Polygon(r2.Vec{X: 1, Y: 1}, 0)
	assert.True(t, p.Contains(r2.Vec{X: 1, Y: 1}, 0))
	assert.True(t, p.Contains(r2.Vec{X: 1.1, Y: 1.02}, 1e-12))
	assert.False(t, p.Contains(r2.Vec{X: 1.11, Y: 1}, 0))
	assert.False(t, p.Contains(r2.Vec{X: 1, Y: 0.96}, 0))

	// facing +y, front is now along +y and left along -x
	q := rect.Polygon(r2.Vec{}, math.Pi/2)
	assert.True(t, q.Contains(r2.Vec{Y: 0.09}, 1e-12))
	assert.False(t, q.Contains(r2.Vec{Y: 0.11}, 0))
	assert.True(t, q.Contains(r2.Vec{X: -0.019}, 1e-12))
	assert.False(t, q.Contains(r2.Vec{X: -0.021}, 0))

	assert.ErrorIs(t, Rectangle{Front: -1}.Validate(), dynamo.ErrConfiguration)
}

func TestTiming(t *testing.T) {
	tm := Timing{Now: 1.0, Impact: 1.5, DoubleSupport: 0.2}
	assert.InDelta(t, 0.6, tm.Horizon(), 1e-12)
	assert.InDelta(t, 0.5, tm.RemainingSingleSupport(), 1e-12)
	sigma := tm.NominalSigma(omega)
	assert.InDelta(t, math.Exp(0.6*omega), sigma, 1e-9)
	assert.InDelta(t, 1.5, tm.ImpactTime(sigma, omega), 1e-12)
}

func TestAdapterNominal(t *testing.T) {
	s := newScenario()
	a, err := NewAdapter(testAdapterConfig(), nil)
	require.NoError(t, err)

	out, err := a.Run(Input{Now: 0, Omega: omega, Step: leftStep(s), DCM: s.dcm()})
	require.NoError(t, err)
	assert.InDelta(t, s.remaining, out.ImpactTime, 1e-6)
	assert.InDelta(t, s.remaining, out.NominalImpact, 1e-12)
	assert.InDelta(t, s.landing.X-0.01, out.Landing.Position.X, 1e-6, "zmp to foot offset preserved")
	assert.InDelta(t, s.landing.Y, out.Landing.Position.Y, 1e-6)
}

func TestAdapterPush(t *testing.T) {
	s := newScenario()
	a, err := NewAdapter(testAdapterConfig(), nil)
	require.NoError(t, err)

	out, err := a.Run(Input{Now: 0, Omega: omega, Step: leftStep(s), DCM: r2.Add(s.dcm(), r2.Vec{X: 0.02})})
	require.NoError(t, err)
	assert.Greater(t, out.Landing.Position.X, s.landing.X)
	assert.InDelta(t, out.ZMP.X-0.01, out.Landing.Position.X, 1e-12)
	assert.GreaterOrEqual(t, out.ImpactTime, s.remaining-s.tol-1e-9)
	assert.LessOrEqual(t, out.ImpactTime, s.remaining+s.tol+1e-9)
}

func TestAdapterAfterImpact(t *testing.T) {
	s := newScenario()
	a, err := NewAdapter(testAdapterConfig(), nil)
	require.NoError(t, err)
	_, err = a.Run(Input{Now: 0.6, Omega: omega, Step: leftStep(s), DCM: s.dcm()})
	assert.ErrorIs(t, err, dynamo.ErrOptimization)
}

func TestAdapterRejectsConfig(t *testing.T) {
	cfg := testAdapterConfig()
	cfg.Weights.Sigma = 0
	_, err := NewAdapter(cfg, nil)
	assert.ErrorIs(t, err, dynamo.ErrConfiguration)

	cfg = testAdapterConfig()
	cfg.RightPolygon.Back = -0.1
	_, err = NewAdapter(cfg, nil)
	assert.ErrorIs(t, err, dynamo.ErrConfiguration)
}
