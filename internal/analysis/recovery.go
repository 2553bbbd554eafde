package analysis

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// RecoveryRate fits err(t) = a exp(-rate t) from the peak of errs onward
// and returns rate. A positive rate means the error decays. Samples not
// above floor are ignored since their logarithm is dominated by noise.
func RecoveryRate(times, errs []float64, floor float64) (float64, bool) {
	if len(times) != len(errs) || len(errs) < 3 {
		return 0, false
	}
	peak := floats.MaxIdx(errs)
	var xs, ys []float64
	for i := peak; i < len(errs); i++ {
		if errs[i] <= floor {
			break
		}
		xs = append(xs, times[i])
		ys = append(ys, math.Log(errs[i]))
	}
	if len(xs) < 3 {
		return 0, false
	}
	_, slope := stat.LinearRegression(xs, ys, nil, false)
	return -slope, true
}

// RecoveryTime is the time from the error peak until it first falls back
// below threshold. It reports false when the error never recovers.
func RecoveryTime(times, errs []float64, threshold float64) (float64, bool) {
	if len(times) != len(errs) || len(errs) == 0 {
		return 0, false
	}
	peak := floats.MaxIdx(errs)
	for i := peak; i < len(errs); i++ {
		if errs[i] < threshold {
			return times[i] - times[peak], true
		}
	}
	return 0, false
}
