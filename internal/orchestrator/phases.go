package orchestrator

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"eb-evaluation-lab/internal/domain"
	"eb-evaluation-lab/internal/governance"
	"eb-evaluation-lab/internal/hierarchy"
	"eb-evaluation-lab/internal/idhash"
	"eb-evaluation-lab/internal/robustness"
	"eb-evaluation-lab/internal/selection"
	"eb-evaluation-lab/internal/serving"
)

// panel is the loaded input of a run.
type panel struct {
	tasks []selection.Task // ordered by series id
	nodes []domain.HierarchyNode

	// candidates as loaded, before an enforced gate filters the tasks
	forecasts map[string][]*domain.Forecast
}

func (p *panel) seriesIDs() []string {
	ids := make([]string, len(p.tasks))
	for i, t := range p.tasks {
		ids[i] = t.Series.ID
	}
	return ids
}

// digest hashes every series and forecast point, so changed data changes the run id.
func (p *panel) digest() string {
	d := idhash.NewDigest()
	for _, t := range p.tasks {
		d.Add("series|"+t.Series.ID, t.Series.Points)
		for _, c := range t.Candidates {
			d.Add(fmt.Sprintf("forecast|%s|%s|%d", c.SeriesID, c.ModelID, c.LeadTimeMs), c.Points)
		}
	}
	return d.Sum()
}

// store times one store operation and records it.
func (o *Orchestrator) store(name, operation string, fn func() error) error {
	start := time.Now()
	err := fn()
	o.metrics.RecordStore(name, operation, time.Since(start), err)
	return err
}

// loadPanel loads every series with its candidates, then the hierarchy.
func (o *Orchestrator) loadPanel(ctx context.Context) (*panel, error) {
	var ids []string
	err := o.store("series", "list_ids", func() error {
		var err error
		ids, err = o.seriesStore.ListIDs(ctx)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("list series: %w", err)
	}

	p := &panel{
		tasks:     make([]selection.Task, 0, len(ids)),
		forecasts: make(map[string][]*domain.Forecast, len(ids)),
	}
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		var task selection.Task
		err := o.store("series", "get_by_id", func() error {
			var err error
			task.Series, err = o.seriesStore.GetByID(ctx, id)
			return err
		})
		if err != nil {
			return nil, fmt.Errorf("load series %s: %w", id, err)
		}

		err = o.store("forecasts", "get_by_series_id", func() error {
			var err error
			task.Candidates, err = o.forecastStore.GetBySeriesID(ctx, id)
			return err
		})
		if err != nil {
			return nil, fmt.Errorf("load forecasts %s: %w", id, err)
		}

		p.tasks = append(p.tasks, task)
		p.forecasts[id] = task.Candidates
	}

	if o.hierarchyStore != nil {
		err = o.store("hierarchy", "get_all", func() error {
			var err error
			p.nodes, err = o.hierarchyStore.GetAll(ctx)
			return err
		})
		if err != nil {
			return nil, fmt.Errorf("load hierarchy: %w", err)
		}
	}

	return p, nil
}

// govern runs the gate over every task. When enforced, rejected candidates are
// removed from the task so selection and readiness only see admitted ones.
func (o *Orchestrator) govern(p *panel) []governance.Decision {
	var all []governance.Decision
	for i, t := range p.tasks {
		admitted, decisions := o.evaluator.Filter(t.Series, t.Candidates)
		all = append(all, decisions...)
		if o.enforce {
			p.tasks[i].Candidates = admitted
		}
	}
	governance.SortDecisions(all)
	o.metrics.RecordRejected(len(governance.Rejected(all)))
	return all
}

// selectionOutput holds the per-series results of phase 3.
type selectionOutput struct {
	outcomes  []selection.Outcome // task order
	sweeps    []selection.SweepOutcome
	decisions map[string]domain.SelectionDecision
	results   map[string][]domain.EvaluationResult
	swept     map[string][]selection.SweepStep
	errors    []domain.ItemError
}

// selectAll runs selection and the sweep side by side over every task.
func (o *Orchestrator) selectAll(ctx context.Context, plan *runPlan, p *panel) (*selectionOutput, error) {
	out := &selectionOutput{
		decisions: make(map[string]domain.SelectionDecision, len(p.tasks)),
		results:   make(map[string][]domain.EvaluationResult, len(p.tasks)),
		swept:     make(map[string][]selection.SweepStep, len(p.tasks)),
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		out.outcomes, err = plan.engine.SelectBatch(gctx, p.tasks, plan.model, o.cfg.Readiness, o.cfg.Workers)
		return err
	})
	if len(plan.ratios) > 0 {
		g.Go(func() error {
			var err error
			out.sweeps, err = plan.engine.SweepBatch(gctx, p.tasks, plan.ratios, o.cfg.Readiness, o.cfg.Workers)
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	for i, oc := range out.outcomes {
		o.metrics.RecordSelection(len(p.tasks[i].Candidates), oc.Err)
		if oc.Err != nil {
			continue
		}
		out.decisions[oc.SeriesID] = oc.Decision
		out.results[oc.SeriesID] = oc.Results
	}
	out.errors = selection.Failures(out.outcomes)

	// A series that failed selection fails its sweep the same way; report it once.
	for _, ie := range selection.SweepFailures(out.sweeps) {
		if _, ok := out.decisions[ie.ID]; ok {
			out.errors = append(out.errors, ie)
		}
	}
	for _, sw := range out.sweeps {
		if sw.Err != nil {
			continue
		}
		o.metrics.RecordSweep(len(sw.Steps), len(sw.Boundaries), sw.Stable)
		out.swept[sw.SeriesID] = sw.Steps
	}

	return out, nil
}

// aggregate rolls the selected series up the stored hierarchy.
func (o *Orchestrator) aggregate(p *panel, sel *selectionOutput) ([]domain.GroupDecision, []domain.ItemError, error) {
	forest, err := hierarchy.NewForest(p.nodes, p.seriesIDs())
	if err != nil {
		return nil, nil, err
	}

	res, err := hierarchy.NewAggregator(o.reducer).Aggregate(forest, hierarchy.Inputs{
		Decisions: sel.decisions,
		Results:   sel.results,
	}, o.rule())
	if err != nil {
		return nil, nil, err
	}

	groups := res.Sorted()
	o.metrics.RecordGroupDecisions(o.rule(), len(groups))
	return groups, res.Errors, nil
}

// robustness compares EB rankings against the baseline for every selected series.
func (o *Orchestrator) robustness(plan *runPlan, p *panel, sel *selectionOutput) (*domain.RobustnessSummary, []domain.ItemError) {
	var errs []domain.ItemError
	inputs := make([]robustness.SeriesInput, 0, len(sel.results))

	for _, t := range p.tasks {
		results, ok := sel.results[t.Series.ID]
		if !ok {
			continue
		}
		alignments, err := selection.Prepare(t.Series, t.Candidates)
		if err != nil {
			errs = append(errs, domain.ItemError{ID: t.Series.ID, Err: err})
			continue
		}
		inputs = append(inputs, robustness.SeriesInput{
			SeriesID:   t.Series.ID,
			Results:    results,
			Alignments: alignments,
			Steps:      sel.swept[t.Series.ID],
		})
	}

	summary, itemErrs := robustness.NewAnalyzer(plan.baseline).Summarize(inputs)
	return summary, append(errs, itemErrs...)
}

// serve resolves the served forecast of every series from the loaded candidates,
// so a rejected selection can still fall back to the baseline model.
// A series with neither a selection nor a baseline forecast already failed
// selection and is not reported twice.
func (o *Orchestrator) serve(p *panel, sel *selectionOutput, decisions []governance.Decision) ([]*serving.Forecast, []domain.ItemError) {
	inputs := make([]serving.Input, len(p.tasks))
	for i, t := range p.tasks {
		id := t.Series.ID
		inputs[i] = serving.Input{
			SeriesID:   id,
			Selected:   sel.decisions[id].ModelID,
			Candidates: p.forecasts[id],
		}
	}

	served, itemErrs := serving.NewResolver(o.cfg.Serving.BaselineModel, o.evaluator != nil, decisions).ServeAll(inputs)
	var errs []domain.ItemError
	for _, ie := range itemErrs {
		if _, ok := sel.decisions[ie.ID]; ok {
			errs = append(errs, ie)
		}
	}
	o.metrics.RecordServed(serving.Counts(served))
	return served, errs
}
