// Package orchestrator provides end-to-end evaluation runs.
// It coordinates: load → governance → selection + sweep → hierarchy → robustness → serve → persist → report
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"eb-evaluation-lab/internal/config"
	"eb-evaluation-lab/internal/cost"
	"eb-evaluation-lab/internal/domain"
	"eb-evaluation-lab/internal/governance"
	"eb-evaluation-lab/internal/hierarchy"
	"eb-evaluation-lab/internal/idhash"
	"eb-evaluation-lab/internal/metrics"
	"eb-evaluation-lab/internal/observability"
	"eb-evaluation-lab/internal/readiness"
	"eb-evaluation-lab/internal/reporting"
	"eb-evaluation-lab/internal/selection"
	"eb-evaluation-lab/internal/serving"
	"eb-evaluation-lab/internal/storage"
)

// Phase names, as recorded in metrics and logs.
const (
	PhaseLoad       = "load"
	PhaseGovernance = "governance"
	PhaseSelection  = "selection"
	PhaseHierarchy  = "hierarchy"
	PhaseRobustness = "robustness"
	PhaseServe      = "serve"
	PhasePersist    = "persist"
	PhaseReport     = "report"
)

// Orchestrator coordinates one evaluation run.
// Flow: load panel → gate → select/sweep → roll-up → robustness → serve → persist → report
type Orchestrator struct {
	// Panel stores
	seriesStore    storage.SeriesStore
	forecastStore  storage.ForecastStore
	hierarchyStore storage.HierarchyStore

	// Result stores
	evaluationStore    storage.EvaluationStore
	decisionStore      storage.DecisionStore
	groupDecisionStore storage.GroupDecisionStore
	summaryStore       storage.SummaryStore

	cfg         *config.RunConfig
	enforce     bool
	reducer     hierarchy.Reducer
	reducerName string
	metrics     *observability.Metrics
	now         func() time.Time
	verbose     bool
	evaluator   *governance.Evaluator
}

// Options for creating Orchestrator.
type Options struct {
	// Panel stores (PostgreSQL or memory)
	SeriesStore    storage.SeriesStore
	ForecastStore  storage.ForecastStore
	HierarchyStore storage.HierarchyStore

	// Result stores (ClickHouse or memory)
	EvaluationStore    storage.EvaluationStore
	DecisionStore      storage.DecisionStore
	GroupDecisionStore storage.GroupDecisionStore
	SummaryStore       storage.SummaryStore

	// Run configuration; nil means config.Default()
	Config *config.RunConfig

	// EnforceGovernance drops rejected candidates before selection.
	// Without it the gate checklist is reported only.
	EnforceGovernance bool

	// Reducer, when set, replaces the configured hierarchy rule.
	Reducer hierarchy.Reducer

	// ReducerName tells reducers apart in the run id. Default "custom".
	ReducerName string

	Metrics *observability.Metrics // optional
	Clock   func() time.Time       // optional, for deterministic reports
	Verbose bool
}

// New creates a new Orchestrator.
func New(opts Options) *Orchestrator {
	cfg := opts.Config
	if cfg == nil {
		cfg = config.Default()
	}
	now := opts.Clock
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}

	o := &Orchestrator{
		seriesStore:        opts.SeriesStore,
		forecastStore:      opts.ForecastStore,
		hierarchyStore:     opts.HierarchyStore,
		evaluationStore:    opts.EvaluationStore,
		decisionStore:      opts.DecisionStore,
		groupDecisionStore: opts.GroupDecisionStore,
		summaryStore:       opts.SummaryStore,
		cfg:                cfg,
		enforce:            opts.EnforceGovernance,
		reducer:            opts.Reducer,
		reducerName:        opts.ReducerName,
		metrics:            opts.Metrics,
		now:                now,
		verbose:            opts.Verbose,
	}
	if o.reducer != nil && o.reducerName == "" {
		o.reducerName = string(domain.RuleCustom)
	}
	if cfg.Governance != nil {
		o.evaluator = governance.NewEvaluator(*cfg.Governance)
	}
	return o
}

// Config returns the run configuration.
func (o *Orchestrator) Config() *config.RunConfig { return o.cfg }

// RunResult contains results from orchestrator execution.
type RunResult struct {
	RunID          string
	SeriesLoaded   int
	SeriesSelected int
	SweepSteps     int
	Boundaries     int
	GroupDecisions int
	Summary        *domain.RobustnessSummary
	Governance     []governance.Decision
	Served         []*serving.Forecast
	Report         *reporting.Report

	// Reused is set when results for this run id were already persisted.
	Reused bool

	// Per-item failures; they never abort the run
	Errors []domain.ItemError
}

// Run executes the full evaluation.
// Phases:
//  1. Load series, candidates and hierarchy
//  2. Governance gate (when a policy is configured)
//  3. Selection and sweep, in parallel
//  4. Hierarchical roll-up (when a hierarchy is stored)
//  5. Robustness against the baseline metric
//  6. Resolve served forecasts (selected or baseline fallback)
//  7. Persist results under the run id
//  8. Build the report from the result stores
//
// Only invalid configuration, structural hierarchy failures, storage failures and
// cancellation return an error.
func (o *Orchestrator) Run(ctx context.Context) (*RunResult, error) {
	start := time.Now()
	result, err := o.run(ctx)

	status := observability.StatusSuccess
	if err != nil {
		status = observability.StatusFailed
	}
	o.metrics.RecordRun(status, time.Since(start), o.now())
	return result, err
}

func (o *Orchestrator) run(ctx context.Context) (*RunResult, error) {
	plan, err := o.plan()
	if err != nil {
		return nil, err
	}
	result := &RunResult{}

	// Phase 1: Load panel
	o.log("Phase 1: Loading panel...")
	var p *panel
	err = o.phase(PhaseLoad, func() error {
		p, err = o.loadPanel(ctx)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("phase 1 (load) failed: %w", err)
	}
	result.SeriesLoaded = len(p.tasks)
	result.RunID = o.runID(p)
	o.log("  Run %s: %d series, %d hierarchy nodes", result.RunID, len(p.tasks), len(p.nodes))

	// Phase 2: Governance
	if o.evaluator != nil {
		o.log("Phase 2: Applying governance gate (enforce=%v)...", o.enforce)
		_ = o.phase(PhaseGovernance, func() error {
			result.Governance = o.govern(p)
			return nil
		})
		o.log("  %d checklist decisions, %d rejected", len(result.Governance), len(governance.Rejected(result.Governance)))
	} else {
		o.log("Phase 2: Skipping governance (no policy)")
	}

	// Phase 3: Selection and sweep
	o.log("Phase 3: Selecting models...")
	var sel *selectionOutput
	err = o.phase(PhaseSelection, func() error {
		sel, err = o.selectAll(ctx, plan, p)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("phase 3 (selection) failed: %w", err)
	}
	result.Errors = append(result.Errors, sel.errors...)
	result.SeriesSelected = len(sel.decisions)
	for _, sw := range sel.sweeps {
		result.SweepSteps += len(sw.Steps)
		result.Boundaries += len(sw.Boundaries)
	}
	o.log("  Selected %d/%d series, %d sweep steps, %d boundaries",
		result.SeriesSelected, len(p.tasks), result.SweepSteps, result.Boundaries)

	// Phase 4: Hierarchy
	var groups []domain.GroupDecision
	if len(p.nodes) > 0 {
		o.log("Phase 4: Aggregating hierarchy (%s)...", o.rule())
		err = o.phase(PhaseHierarchy, func() error {
			var errs []domain.ItemError
			groups, errs, err = o.aggregate(p, sel)
			result.Errors = append(result.Errors, errs...)
			return err
		})
		if err != nil {
			return nil, fmt.Errorf("phase 4 (hierarchy) failed: %w", err)
		}
		result.GroupDecisions = len(groups)
		o.log("  %d group decisions", len(groups))
	} else {
		o.log("Phase 4: Skipping hierarchy (no nodes)")
	}

	// Phase 5: Robustness
	o.log("Phase 5: Comparing against %s...", o.cfg.Baseline)
	_ = o.phase(PhaseRobustness, func() error {
		var errs []domain.ItemError
		result.Summary, errs = o.robustness(plan, p, sel)
		result.Errors = append(result.Errors, errs...)
		return nil
	})
	o.metrics.RecordRobustness(result.Summary)

	// Phase 6: Serve
	o.log("Phase 6: Resolving served forecasts (baseline %q)...", o.cfg.Serving.BaselineModel)
	_ = o.phase(PhaseServe, func() error {
		var errs []domain.ItemError
		result.Served, errs = o.serve(p, sel, result.Governance)
		result.Errors = append(result.Errors, errs...)
		return nil
	})
	counts := serving.Counts(result.Served)
	o.log("  Served %d series: %d selected, %d baseline, %d unadmitted", len(result.Served),
		counts[serving.SourceSelected], counts[serving.SourceBaseline], counts[serving.SourceUnadmitted])

	// Phase 7: Persist
	o.log("Phase 7: Persisting run %s...", result.RunID)
	err = o.phase(PhasePersist, func() error {
		result.Reused, err = o.persist(ctx, result.RunID, sel, groups, result.Summary)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("phase 7 (persist) failed: %w", err)
	}
	if result.Reused {
		o.log("  Run %s already persisted, keeping stored results", result.RunID)
	}

	// Phase 8: Report
	o.log("Phase 8: Building report...")
	err = o.phase(PhaseReport, func() error {
		result.Report, err = o.report(ctx, result)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("phase 8 (report) failed: %w", err)
	}

	o.log("Run completed: %d series, %d selected, %d group decisions, %d item errors",
		result.SeriesLoaded, result.SeriesSelected, result.GroupDecisions, len(result.Errors))

	return result, nil
}

// runPlan is the validated, ready-to-use form of the run configuration.
type runPlan struct {
	engine   *selection.Engine
	model    *cost.Model
	ratios   []float64
	baseline metrics.BaselineMetric
}

func (o *Orchestrator) plan() (*runPlan, error) {
	if err := o.cfg.Validate(); err != nil {
		return nil, err
	}
	me, err := metrics.NewEngine(o.cfg.Reduction)
	if err != nil {
		return nil, err
	}
	model, err := cost.New(o.cfg.Cost)
	if err != nil {
		return nil, err
	}
	ratios, err := o.cfg.Sweep.Grid()
	if err != nil {
		return nil, err
	}
	baseline, err := metrics.BaselineByName(o.cfg.Baseline)
	if err != nil {
		return nil, err
	}

	return &runPlan{
		engine:   selection.NewEngine(me, readiness.NewAdjuster()),
		model:    model,
		ratios:   ratios,
		baseline: baseline,
	}, nil
}

// rule returns the hierarchy rule in effect.
func (o *Orchestrator) rule() domain.AggregationRule {
	if o.reducer != nil {
		return domain.RuleCustom
	}
	return o.cfg.Hierarchy.Rule
}

// runID identifies the run by everything that shapes its results: config,
// gate enforcement, the rule in effect and the panel data.
func (o *Orchestrator) runID(p *panel) string {
	fingerprint := fmt.Sprintf("%s|enforce=%t|rule=%s|reducer=%s",
		o.cfg.Fingerprint(), o.enforce, o.rule(), o.reducerName)
	return idhash.ComputeRunID(fingerprint, p.seriesIDs(), p.digest())
}

// phase times fn and records it under name.
func (o *Orchestrator) phase(name string, fn func() error) error {
	start := time.Now()
	err := fn()
	o.metrics.RecordPhase(name, time.Since(start))
	return err
}

// isDuplicate reports whether err means the run was already persisted.
func isDuplicate(err error) bool {
	return errors.Is(err, storage.ErrDuplicateKey)
}

func (o *Orchestrator) log(format string, args ...interface{}) {
	if o.verbose {
		log.Printf("[orchestrator] "+format, args...)
	}
}
