// Package metrics computes Electric Barometer scores, symmetric baseline metrics and
// service-level diagnostics over aligned series/forecast pairs.
package metrics

import (
	"fmt"

	"eb-evaluation-lab/internal/cost"
	"eb-evaluation-lab/internal/domain"
)

// Engine computes the cost-weighted aggregate error of a forecast.
// The reduction is fixed per run.
type Engine struct {
	reduction domain.Reduction
}

// NewEngine creates a metric engine. The reduction has no default:
// an empty or unknown value returns ErrInvalidConfig.
func NewEngine(reduction domain.Reduction) (*Engine, error) {
	if !reduction.IsValid() {
		return nil, fmt.Errorf("%w: unknown reduction %q", domain.ErrInvalidConfig, reduction)
	}
	return &Engine{reduction: reduction}, nil
}

// Reduction returns the engine's reduction rule.
func (e *Engine) Reduction() domain.Reduction { return e.reduction }

// Score aligns the forecast with the series and returns its raw score.
func (e *Engine) Score(series *domain.Series, forecast *domain.Forecast, model *cost.Model) (float64, error) {
	a, err := Align(series, forecast)
	if err != nil {
		return 0, err
	}
	return e.ScoreAlignment(a, model)
}

// ScoreAlignment returns the raw score of a prepared alignment.
// Uses only the alignment profile, so repeated calls under different cost models
// do not touch the pairs.
func (e *Engine) ScoreAlignment(a *Alignment, model *cost.Model) (float64, error) {
	p := a.Profile()
	total := model.Total(p.Shortfall, p.Overbuild)

	switch e.reduction {
	case domain.ReductionSum:
		return total, nil
	case domain.ReductionMean:
		return total / float64(p.Count), nil
	case domain.ReductionNormalized:
		if p.ActualSum <= 0 {
			return 0, &domain.AlignmentError{
				SeriesID: a.SeriesID,
				ModelID:  a.ModelID,
				Err:      domain.ErrEmptyHorizon,
				Reason:   "normalized reduction requires positive total actual",
			}
		}
		return total / p.ActualSum, nil
	default:
		return 0, fmt.Errorf("%w: unknown reduction %q", domain.ErrInvalidConfig, e.reduction)
	}
}
