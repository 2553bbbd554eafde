package analysis

import (
	"context"
	"fmt"

	"github.com/san-kum/dcmwalk/internal/config"
	"github.com/san-kum/dcmwalk/internal/sim"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/spatial/r2"
)

// CapturePoint is the outcome of one push magnitude.
type CapturePoint struct {
	Force     float64
	Recovered bool
	Pushes    int
	MaxError  float64
}

// CaptureSweep pushes the robot at the same instant with each force along
// dir and reports whether it kept walking. A run recovers when it ends
// without error and with the DCM error back under the push threshold.
func CaptureSweep(ctx context.Context, base *config.Config, at, duration float64, dir r2.Vec, forces []float64, workers int) ([]CapturePoint, error) {
	if r2.Norm(dir) == 0 {
		return nil, fmt.Errorf("analysis: push direction must be non-zero")
	}
	dir = r2.Unit(dir)

	scenarios := make([]sim.Scenario, len(forces))
	for i, f := range forces {
		cfg := base.Clone()
		force := r2.Scale(f, dir)
		cfg.Sim.Pushes = []config.Push{{Time: at, Force: config.Vec2{force.X, force.Y}, Duration: duration}}
		scenarios[i] = sim.Scenario{Name: fmt.Sprintf("push-%.0fN", f), Config: cfg}
	}

	results, err := sim.NewEnsemble(scenarios, workers).Run(ctx)
	if err != nil {
		return nil, err
	}

	threshold := r2.Norm(base.Push.DCMErrorThreshold.R2())
	points := make([]CapturePoint, len(results))
	for i, res := range results {
		errs := make([]float64, len(res.Records))
		for j, r := range res.Records {
			errs[j] = r2.Norm(r2.Sub(r.DCM, r.DCMRef))
		}
		p := CapturePoint{Force: forces[i], Pushes: res.Stats.Pushes}
		if len(errs) > 0 {
			p.MaxError = floats.Max(errs)
			p.Recovered = res.Err == nil && errs[len(errs)-1] < threshold
		}
		points[i] = p
	}
	return points, nil
}
