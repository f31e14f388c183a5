package metrics

import (
	"fmt"
	"math"
	"strings"

	"eb-evaluation-lab/internal/domain"
)

// BaselineMetric is a classical symmetric metric used as the comparator for EB rankings.
// Lower is better.
type BaselineMetric interface {
	Name() string
	Score(a *Alignment) float64
}

// RMSE is root mean squared error.
type RMSE struct{}

// Name returns "rmse".
func (RMSE) Name() string { return "rmse" }

// Score returns sqrt(Σe² / n).
func (RMSE) Score(a *Alignment) float64 {
	p := a.Profile()
	return math.Sqrt(p.SquaredError / float64(p.Count))
}

// MAE is mean absolute error. Equals the EB mean score under equal weights.
type MAE struct{}

// Name returns "mae".
func (MAE) Name() string { return "mae" }

// Score returns Σ|e| / n.
func (MAE) Score(a *Alignment) float64 {
	p := a.Profile()
	return (p.Shortfall + p.Overbuild) / float64(p.Count)
}

// BaselineByName returns the baseline metric for a config name.
func BaselineByName(name string) (BaselineMetric, error) {
	switch strings.ToLower(name) {
	case "rmse":
		return RMSE{}, nil
	case "mae":
		return MAE{}, nil
	default:
		return nil, fmt.Errorf("%w: unknown baseline metric %q", domain.ErrInvalidConfig, name)
	}
}
