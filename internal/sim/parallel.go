package sim

import (
	"context"
	"fmt"
	"runtime"
	"sync"

	"github.com/san-kum/dcmwalk/internal/config"
)

// Scenario is one named run of a sweep.
type Scenario struct {
	Name   string
	Config *config.Config
}

// Ensemble runs scenarios concurrently, at most workers at a time. Zero
// workers means one per CPU.
type Ensemble struct {
	scenarios []Scenario
	workers   int
}

func NewEnsemble(scenarios []Scenario, workers int) *Ensemble {
	if workers < 1 {
		workers = runtime.NumCPU()
	}
	return &Ensemble{scenarios: scenarios, workers: workers}
}

// Seeds returns numRuns copies of cfg with consecutive noise seeds.
func Seeds(name string, cfg *config.Config, numRuns int, seedStart int64) []Scenario {
	out := make([]Scenario, numRuns)
	for i := range out {
		c := cfg.Clone()
		c.Sim.Seed = seedStart + int64(i)
		out[i] = Scenario{Name: fmt.Sprintf("%s-%d", name, c.Sim.Seed), Config: c}
	}
	return out
}

// Run returns results in scenario order. The first setup error is returned;
// controller failures are reported per result.
func (e *Ensemble) Run(ctx context.Context) ([]*Result, error) {
	results := make([]*Result, len(e.scenarios))
	errs := make([]error, len(e.scenarios))
	sem := make(chan struct{}, e.workers)

	var wg sync.WaitGroup
	for i, sc := range e.scenarios {
		wg.Add(1)
		go func(idx int, sc Scenario) {
			defer wg.Done()
			select {
			case sem <- struct{}{}:
			case <-ctx.Done():
				errs[idx] = ctx.Err()
				return
			}
			defer func() { <-sem }()
			results[idx], errs[idx] = New(sc.Name, sc.Config).Run(ctx)
		}(i, sc)
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}
	return results, nil
}
