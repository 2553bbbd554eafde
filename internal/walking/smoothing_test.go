package walking

import (
	"math"
	"testing"

	"github.com/san-kum/dcmwalk/internal/stepadapt"
	"github.com/san-kum/dcmwalk/internal/trajectory"
	"github.com/stretchr/testify/assert"
	"gonum.org/v1/gonum/spatial/r2"
)

func TestSmoothingWindow(t *testing.T) {
	tests := []struct {
		name string
		w    SmoothingWindow
		tick int
		want float64
	}{
		{"before start", SmoothingWindow{StartTick: 10, DurationTicks: 10, To: 1}, 5, 0},
		{"at start", SmoothingWindow{StartTick: 10, DurationTicks: 10, To: 1}, 10, 0},
		{"linear half", SmoothingWindow{StartTick: 10, DurationTicks: 10, To: 1}, 15, 0.5},
		{"end", SmoothingWindow{StartTick: 10, DurationTicks: 10, To: 1}, 20, 1},
		{"after end", SmoothingWindow{StartTick: 10, DurationTicks: 10, To: 1}, 40, 1},
		{"zero length", SmoothingWindow{StartTick: 10, To: 1}, 11, 1},
		{"descending", SmoothingWindow{DurationTicks: 4, From: 1, To: 0}, 1, 0.75},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, tt.w.Value(tt.tick), 1e-12)
		})
	}
}

func TestSmoothingWindowExponential(t *testing.T) {
	w := SmoothingWindow{DurationTicks: 20, To: 1, Gain: 3}
	prev := 0.0
	for k := 1; k <= 20; k++ {
		v := w.Value(k)
		assert.Greater(t, v, prev)
		prev = v
	}
	assert.InDelta(t, 1, prev, 1e-12)
	// front-loaded compared to the linear profile
	assert.Greater(t, w.Value(10), 0.5)
	assert.False(t, w.Done(19))
	assert.True(t, w.Done(20))
}

func TestAdaptationDCM(t *testing.T) {
	omega := math.Sqrt(9.81 / 0.53)
	a := adaptation{
		step: trajectory.Step{
			StanceZMP:         r2.Vec{Y: -0.08},
			NextDoubleSupport: 0.4,
		},
		anchorTime: 1,
		anchorDCM:  r2.Vec{X: 0.05, Y: -0.05},
		out: stepadapt.Output{
			Solution:   stepadapt.Solution{ZMP: r2.Vec{X: 0.2, Y: 0.08}},
			ImpactTime: 1.5,
		},
	}

	pos, vel := a.dcmAt(1, omega)
	assert.Equal(t, a.anchorDCM, pos)
	assert.InDelta(t, omega*0.05, vel.X, 1e-12)

	end := 1.5 + 0.2
	before, _ := a.dcmAt(end, omega)
	want := math.Exp(omega*0.7) * 0.05
	assert.InDelta(t, want, before.X, 1e-9)

	// continuous across the switch of the reference ZMP
	after, velAfter := a.dcmAt(end+1e-9, omega)
	assert.InDelta(t, before.X, after.X, 1e-6)
	assert.InDelta(t, omega*(after.X-0.2), velAfter.X, 1e-9)
}

func TestBlendPoseWrapsYaw(t *testing.T) {
	from := trajectory.Pose{Yaw: math.Pi - 0.1}
	to := trajectory.Pose{Yaw: -math.Pi + 0.1}
	mid := blendPose(from, to, 0.5)
	assert.InDelta(t, math.Pi, mid.Yaw, 1e-9)
	assert.Equal(t, to.Position, blendPose(from, to, 1).Position)
}
