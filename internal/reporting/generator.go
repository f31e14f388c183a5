package reporting

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"eb-evaluation-lab/internal/domain"
	"eb-evaluation-lab/internal/selection"
	"eb-evaluation-lab/internal/serving"
	"eb-evaluation-lab/internal/storage"
)

// RunInfo is what the generator cannot read back from the stores.
type RunInfo struct {
	RunID      string
	ConfigName string
	Baseline   string
	Governance *GovernanceSection
	Served     []*serving.Forecast
	Errors     []domain.ItemError
}

// Generator produces reports from stored run results.
type Generator struct {
	evaluations storage.EvaluationStore
	decisions   storage.DecisionStore
	groups      storage.GroupDecisionStore
	summaries   storage.SummaryStore
	now         func() time.Time // Injectable clock for deterministic output
}

// NewGenerator creates a new report generator.
func NewGenerator(
	evaluations storage.EvaluationStore,
	decisions storage.DecisionStore,
	groups storage.GroupDecisionStore,
	summaries storage.SummaryStore,
) *Generator {
	return &Generator{
		evaluations: evaluations,
		decisions:   decisions,
		groups:      groups,
		summaries:   summaries,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// WithClock sets a custom clock function for deterministic output.
func (g *Generator) WithClock(now func() time.Time) *Generator {
	g.now = now
	return g
}

// Generate produces the report of one run.
func (g *Generator) Generate(ctx context.Context, info RunInfo) (*Report, error) {
	evaluations, err := g.evaluations.GetByRun(ctx, info.RunID)
	if err != nil {
		return nil, fmt.Errorf("load evaluations: %w", err)
	}

	decisions, err := g.decisions.GetByRun(ctx, info.RunID)
	if err != nil {
		return nil, fmt.Errorf("load decisions: %w", err)
	}

	groups, err := g.groups.GetByRun(ctx, info.RunID)
	if err != nil {
		return nil, fmt.Errorf("load group decisions: %w", err)
	}

	summaries, err := g.summaries.GetByRun(ctx, info.RunID)
	if err != nil {
		return nil, fmt.Errorf("load robustness summaries: %w", err)
	}

	sweeps, boundaries, err := g.generateSweeps(ctx, info.RunID, decisions)
	if err != nil {
		return nil, err
	}

	r := &Report{
		GeneratedAt: g.now(),
		RunID:       info.RunID,
		ConfigName:  info.ConfigName,
		Baseline:    info.Baseline,
		Selections:  generateSelections(decisions),
		ModelWins:   generateModelWins(decisions),
		Evaluations: evaluations,
		Sweeps:      sweeps,
		Boundaries:  boundaries,
		Groups:      generateGroups(groups),
		Robustness:  summaries,
		Governance:  info.Governance,
		Served:      info.Served,
		Errors:      formatErrors(info.Errors),
	}
	if len(decisions) > 0 {
		r.CostRatio = decisions[0].CostRatio
	}
	r.Overview = overview(r)
	return r, nil
}

// generateSweeps rebuilds sweep steps from stored decisions and derives boundaries.
func (g *Generator) generateSweeps(ctx context.Context, runID string, decisions []domain.SelectionDecision) ([]SweepRow, []BoundaryRow, error) {
	var sweeps []SweepRow
	var boundaries []BoundaryRow

	for _, d := range decisions {
		stored, err := g.decisions.GetSweep(ctx, runID, d.SeriesID)
		if err != nil {
			return nil, nil, fmt.Errorf("load sweep %s: %w", d.SeriesID, err)
		}
		if len(stored) == 0 {
			continue
		}

		steps := make([]selection.SweepStep, len(stored))
		for i, s := range stored {
			steps[i] = selection.SweepStep{Index: i, Ratio: s.CostRatio, Decision: s}
		}

		found := selection.Boundaries(steps)
		for _, b := range found {
			boundaries = append(boundaries, BoundaryRow{
				SeriesID:   d.SeriesID,
				LowerRatio: b.LowerRatio,
				UpperRatio: b.UpperRatio,
				From:       b.From,
				To:         b.To,
			})
		}

		sweeps = append(sweeps, SweepRow{
			SeriesID:   d.SeriesID,
			Steps:      len(steps),
			Boundaries: len(found),
			Stable:     selection.Stable(steps),
			Choices:    choices(steps),
		})
	}

	return sweeps, boundaries, nil
}

// choices lists the distinct consecutive winners of a sweep.
func choices(steps []selection.SweepStep) string {
	var out []string
	for _, s := range steps {
		if len(out) == 0 || out[len(out)-1] != s.Decision.ModelID {
			out = append(out, s.Decision.ModelID)
		}
	}
	return strings.Join(out, " > ")
}

func generateSelections(decisions []domain.SelectionDecision) []SelectionRow {
	rows := make([]SelectionRow, len(decisions))
	for i, d := range decisions {
		rows[i] = SelectionRow{
			SeriesID:   d.SeriesID,
			ModelID:    d.ModelID,
			RunnerUpID: d.RunnerUpID,
			Margin:     d.Margin,
			CostRatio:  d.CostRatio,
			Candidates: d.CandidateCount,
		}
	}
	sort.Slice(rows, func(i, j int) bool {
		return rows[i].SeriesID < rows[j].SeriesID
	})
	return rows
}

func generateModelWins(decisions []domain.SelectionDecision) []ModelWinRow {
	wins := make(map[string]int)
	for _, d := range decisions {
		wins[d.ModelID]++
	}

	rows := make([]ModelWinRow, 0, len(wins))
	for model, n := range wins {
		rows = append(rows, ModelWinRow{
			ModelID: model,
			Wins:    n,
			Share:   float64(n) / float64(len(decisions)),
		})
	}

	// Sort by wins DESC, then model_id ASC
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Wins != rows[j].Wins {
			return rows[i].Wins > rows[j].Wins
		}
		return rows[i].ModelID < rows[j].ModelID
	})
	return rows
}

func generateGroups(groups []domain.GroupDecision) []GroupRow {
	rows := make([]GroupRow, len(groups))
	for i, gd := range groups {
		rows[i] = GroupRow{
			NodeID:      gd.NodeID,
			ModelID:     gd.ModelID,
			Rule:        gd.Rule,
			Margin:      gd.Margin,
			VoteMargin:  gd.VoteMargin,
			MemberCount: gd.MemberCount,
		}
	}
	sort.Slice(rows, func(i, j int) bool {
		return rows[i].NodeID < rows[j].NodeID
	})
	return rows
}

// formatErrors renders item errors sorted by id for stable output.
func formatErrors(errs []domain.ItemError) []string {
	if len(errs) == 0 {
		return nil
	}
	out := make([]string, len(errs))
	for i, e := range errs {
		out[i] = e.Error()
	}
	sort.Strings(out)
	return out
}

func overview(r *Report) Overview {
	series := make(map[string]struct{})
	models := make(map[string]struct{})
	for _, e := range r.Evaluations {
		series[e.SeriesID] = struct{}{}
		models[e.ModelID] = struct{}{}
	}

	o := Overview{
		SeriesCount:     len(series),
		ModelCount:      len(models),
		EvaluationCount: len(r.Evaluations),
		SweptSeries:     len(r.Sweeps),
		BoundaryCount:   len(r.Boundaries),
		GroupCount:      len(r.Groups),
		ErrorCount:      len(r.Errors),
	}
	for _, s := range r.Sweeps {
		if s.Stable {
			o.StableSeries++
		}
	}
	return o
}
