package walking

import (
	"testing"

	"github.com/san-kum/dcmwalk/internal/config"
	"github.com/san-kum/dcmwalk/internal/dynamo"
	"github.com/san-kum/dcmwalk/internal/trajectory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testPlan has n double-support samples except for a swing in [swingFrom, swingTo).
func testPlan(n, swingFrom, swingTo int, merge ...int) *trajectory.Plan {
	p := &trajectory.Plan{Dt: 0.01, Samples: make([]trajectory.Sample, n), MergePoints: merge}
	for i := range p.Samples {
		p.Samples[i].LeftContact = true
		p.Samples[i].RightContact = i < swingFrom || i >= swingTo
	}
	return p
}

func TestSelectMergeIndex(t *testing.T) {
	cfg := config.DefaultConfig()
	tests := []struct {
		name    string
		plan    *trajectory.Plan
		pending bool
		want    int
		err     error
	}{
		{"standing", testPlan(100, 100, 100), false, 20, nil},
		{"standing pending", testPlan(100, 100, 100), true, -1, nil},
		{"swinging without merge points", testPlan(100, 0, 50), false, 0, dynamo.ErrTransitionRejected},
		{"far merge point", testPlan(100, 0, 50, 60), false, 60, nil},
		{"far merge point overrides pending", testPlan(100, 0, 50, 60), true, 60, nil},
		{"near merge point pending", testPlan(100, 0, 10, 15, 60), true, -1, nil},
		{"skip to second", testPlan(100, 0, 10, 15, 60), false, 60, nil},
		{"single near", testPlan(100, 0, 10, 15), false, 15, nil},
		{"single too close, double support ahead", testPlan(100, 0, 1, 2), false, 20, nil},
		{"single too close, swinging ahead", testPlan(100, 0, 30, 2), false, 0, dynamo.ErrTransitionRejected},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := &FSM{cfg: cfg, plan: tt.plan}
			got, err := f.selectMergeIndex(tt.pending)
			if tt.err != nil {
				assert.ErrorIs(t, err, tt.err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRequestSwingAlternates(t *testing.T) {
	f := &FSM{cfg: config.DefaultConfig(), plan: testPlan(100, 100, 100)}
	assert.True(t, f.request(10).LeftSwinging)

	f.plan.Steps = []trajectory.Step{{Swing: trajectory.Left, TakeOff: 0, Impact: 0.05}}
	assert.False(t, f.request(20).LeftSwinging)

	f.plan.Steps = append(f.plan.Steps, trajectory.Step{Swing: trajectory.Right, TakeOff: 0.5, Impact: 0.9})
	req := f.request(20)
	assert.False(t, req.LeftSwinging)
	assert.InDelta(t, 0.2, req.InitTime, 1e-12)
}
