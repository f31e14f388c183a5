package orchestrator

import (
	"context"
	"fmt"

	"eb-evaluation-lab/internal/domain"
	"eb-evaluation-lab/internal/reporting"
)

// persist writes the run's results under runID. Stores are append-only: a duplicate
// key means an identical run was already persisted and the stored results are kept.
func (o *Orchestrator) persist(
	ctx context.Context,
	runID string,
	sel *selectionOutput,
	groups []domain.GroupDecision,
	summary *domain.RobustnessSummary,
) (bool, error) {
	var evaluations []domain.EvaluationResult
	var decisions []domain.SelectionDecision
	for _, oc := range sel.outcomes {
		if oc.Err != nil {
			continue
		}
		evaluations = append(evaluations, oc.Results...)
		decisions = append(decisions, oc.Decision)
	}

	err := o.store("evaluations", "insert_bulk", func() error {
		return o.evaluationStore.InsertBulk(ctx, runID, evaluations)
	})
	if isDuplicate(err) {
		return true, nil
	}
	if err != nil {
		return false, fmt.Errorf("persist evaluations: %w", err)
	}

	err = o.store("decisions", "insert_bulk", func() error {
		return o.decisionStore.InsertBulk(ctx, runID, decisions)
	})
	if isDuplicate(err) {
		return true, nil
	}
	if err != nil {
		return false, fmt.Errorf("persist decisions: %w", err)
	}

	for _, sw := range sel.sweeps {
		if sw.Err != nil {
			continue
		}
		// Failed steps carry no decision and are reported as item errors instead
		steps := make([]domain.SelectionDecision, 0, len(sw.Steps))
		for _, st := range sw.Steps {
			if st.Err == nil {
				steps = append(steps, st.Decision)
			}
		}
		if len(steps) == 0 {
			continue
		}

		err = o.store("decisions", "insert_sweep", func() error {
			return o.decisionStore.InsertSweep(ctx, runID, sw.SeriesID, steps)
		})
		if isDuplicate(err) {
			return true, nil
		}
		if err != nil {
			return false, fmt.Errorf("persist sweep %s: %w", sw.SeriesID, err)
		}
	}

	if len(groups) > 0 {
		err = o.store("group_decisions", "insert_bulk", func() error {
			return o.groupDecisionStore.InsertBulk(ctx, runID, groups)
		})
		if isDuplicate(err) {
			return true, nil
		}
		if err != nil {
			return false, fmt.Errorf("persist group decisions: %w", err)
		}
	}

	if summary != nil {
		err = o.store("summaries", "insert", func() error {
			return o.summaryStore.Insert(ctx, runID, summary)
		})
		if isDuplicate(err) {
			return true, nil
		}
		if err != nil {
			return false, fmt.Errorf("persist robustness summary: %w", err)
		}
	}

	return false, nil
}

// report builds the run report back from the result stores.
func (o *Orchestrator) report(ctx context.Context, result *RunResult) (*reporting.Report, error) {
	info := reporting.RunInfo{
		RunID:      result.RunID,
		ConfigName: o.cfg.Name,
		Baseline:   o.cfg.Baseline,
		Served:     result.Served,
		Errors:     result.Errors,
	}
	if o.evaluator != nil {
		info.Governance = &reporting.GovernanceSection{
			Policy:    o.evaluator.Policy(),
			Decisions: result.Governance,
		}
	}

	gen := reporting.NewGenerator(o.evaluationStore, o.decisionStore, o.groupDecisionStore, o.summaryStore).
		WithClock(o.now)
	return gen.Generate(ctx, info)
}
