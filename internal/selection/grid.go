package selection

import (
	"fmt"
	"math"

	"eb-evaluation-lab/internal/domain"
)

// Ratios builds an ascending grid of n cost ratios from start to stop inclusive.
// With logScale the points are evenly spaced in log space and both ends must be positive.
func Ratios(start, stop float64, n int, logScale bool) ([]float64, error) {
	switch {
	case n < 1:
		return nil, fmt.Errorf("%w: ratio grid needs at least one point, got %d", domain.ErrInvalidConfig, n)
	case math.IsNaN(start) || math.IsNaN(stop) || math.IsInf(start, 0) || math.IsInf(stop, 0):
		return nil, fmt.Errorf("%w: ratio grid bounds must be finite", domain.ErrInvalidConfig)
	case start < 0 || stop < start:
		return nil, fmt.Errorf("%w: ratio grid requires 0 <= start <= stop, got [%v, %v]", domain.ErrInvalidConfig, start, stop)
	case logScale && start <= 0:
		return nil, fmt.Errorf("%w: log ratio grid requires start > 0", domain.ErrInvalidConfig)
	}

	if n == 1 {
		return []float64{start}, nil
	}

	out := make([]float64, n)
	if logScale {
		lo, hi := math.Log(start), math.Log(stop)
		step := (hi - lo) / float64(n-1)
		for i := range out {
			out[i] = math.Exp(lo + step*float64(i))
		}
	} else {
		step := (stop - start) / float64(n-1)
		for i := range out {
			out[i] = start + step*float64(i)
		}
	}
	// Pin the ends so boundaries land on the configured values
	out[0], out[n-1] = start, stop
	return out, nil
}
