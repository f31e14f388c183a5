package orchestrator

import (
	"context"
	"fmt"

	"eb-evaluation-lab/internal/selection"
)

// OpenSweep prepares a lazy cost-ratio sweep for one stored series with the run's
// candidates, gate and readiness spec. A nil ratios uses the configured grid.
// The returned sweep is owned by the caller.
func (o *Orchestrator) OpenSweep(ctx context.Context, seriesID string, ratios []float64) (*selection.Sweep, error) {
	plan, err := o.plan()
	if err != nil {
		return nil, err
	}
	if ratios == nil {
		ratios = plan.ratios
	}

	series, err := o.seriesStore.GetByID(ctx, seriesID)
	if err != nil {
		return nil, fmt.Errorf("load series %s: %w", seriesID, err)
	}
	candidates, err := o.forecastStore.GetBySeriesID(ctx, seriesID)
	if err != nil {
		return nil, fmt.Errorf("load forecasts %s: %w", seriesID, err)
	}

	if o.evaluator != nil && o.enforce {
		candidates, _ = o.evaluator.Filter(series, candidates)
	}

	return plan.engine.Sweep(series, candidates, ratios, o.cfg.Readiness)
}
