package selection

import (
	"context"
	"runtime"

	"golang.org/x/sync/errgroup"

	"eb-evaluation-lab/internal/cost"
	"eb-evaluation-lab/internal/domain"
)

// Task is one series and its candidate forecasts.
type Task struct {
	Series     *domain.Series
	Candidates []*domain.Forecast
}

// Outcome is the selection result for one task. Err is set on per-series failure.
type Outcome struct {
	SeriesID string
	Decision domain.SelectionDecision
	Results  []domain.EvaluationResult
	Err      error
}

// SweepOutcome is the materialised sweep for one task.
type SweepOutcome struct {
	SeriesID   string
	Steps      []SweepStep
	Boundaries []Boundary
	Stable     bool
	Err        error
}

// SelectBatch runs Select for every task on up to workers goroutines.
// Outcomes are returned in task order. Per-series failures are stored in Outcome.Err
// and never abort the batch; only context cancellation does.
func (e *Engine) SelectBatch(ctx context.Context, tasks []Task, model *cost.Model, spec *domain.ReadinessSpec, workers int) ([]Outcome, error) {
	out := make([]Outcome, len(tasks))
	err := forEach(ctx, len(tasks), workers, func(i int) {
		t := tasks[i]
		decision, results, err := e.Select(t.Series, t.Candidates, model, spec)
		out[i] = Outcome{SeriesID: t.Series.ID, Decision: decision, Results: results, Err: err}
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// SweepBatch runs a full sweep for every task on up to workers goroutines.
// Outcomes are returned in task order.
func (e *Engine) SweepBatch(ctx context.Context, tasks []Task, ratios []float64, spec *domain.ReadinessSpec, workers int) ([]SweepOutcome, error) {
	out := make([]SweepOutcome, len(tasks))
	err := forEach(ctx, len(tasks), workers, func(i int) {
		t := tasks[i]
		res := SweepOutcome{SeriesID: t.Series.ID}
		sw, err := e.Sweep(t.Series, t.Candidates, ratios, spec)
		if err != nil {
			res.Err = err
			out[i] = res
			return
		}
		res.Steps = sw.Collect()
		res.Boundaries = Boundaries(res.Steps)
		res.Stable = Stable(res.Steps)
		out[i] = res
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Failures collects per-series errors from batch outcomes in task order.
func Failures(outcomes []Outcome) []domain.ItemError {
	var errs []domain.ItemError
	for _, o := range outcomes {
		if o.Err != nil {
			errs = append(errs, domain.ItemError{ID: o.SeriesID, Err: o.Err})
		}
	}
	return errs
}

// SweepFailures collects per-series errors from sweep outcomes in task order.
func SweepFailures(outcomes []SweepOutcome) []domain.ItemError {
	var errs []domain.ItemError
	for _, o := range outcomes {
		if o.Err != nil {
			errs = append(errs, domain.ItemError{ID: o.SeriesID, Err: o.Err})
			continue
		}
		for _, st := range o.Steps {
			if st.Err != nil {
				errs = append(errs, domain.ItemError{ID: o.SeriesID, Err: st.Err})
			}
		}
	}
	return errs
}

// forEach calls fn(i) for i in [0, n) with bounded parallelism.
// Each call writes only its own index, so completion order never affects output.
func forEach(ctx context.Context, n, workers int, fn func(i int)) error {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i := 0; i < n; i++ {
		if err := gctx.Err(); err != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			fn(i)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	return ctx.Err()
}
