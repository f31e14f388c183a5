package reporting

import (
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"eb-evaluation-lab/internal/domain"
	"eb-evaluation-lab/internal/governance"
	"eb-evaluation-lab/internal/serving"
	"eb-evaluation-lab/internal/storage/memory"
)

type testStores struct {
	evaluations *memory.EvaluationStore
	decisions   *memory.DecisionStore
	groups      *memory.GroupDecisionStore
	summaries   *memory.SummaryStore
}

func setupTestData(t *testing.T) testStores {
	t.Helper()
	ctx := context.Background()

	st := testStores{
		evaluations: memory.NewEvaluationStore(),
		decisions:   memory.NewDecisionStore(),
		groups:      memory.NewGroupDecisionStore(),
		summaries:   memory.NewSummaryStore(),
	}

	evaluations := []domain.EvaluationResult{
		{SeriesID: "s1", ModelID: "under", RawScore: 29, AdjustedScore: 29, Rank: 1},
		{SeriesID: "s1", ModelID: "over", RawScore: 30, AdjustedScore: 30, Rank: 2},
		{SeriesID: "s2", ModelID: "over", RawScore: 4, AdjustedScore: 4, Rank: 1},
		{SeriesID: "s2", ModelID: "under", RawScore: 9, AdjustedScore: 9, Rank: 2},
	}
	if err := st.evaluations.InsertBulk(ctx, "run1", evaluations); err != nil {
		t.Fatalf("Insert evaluations failed: %v", err)
	}

	decisions := []domain.SelectionDecision{
		{SeriesID: "s2", ModelID: "over", RunnerUpID: "under", Margin: 5, CostRatio: 2, CandidateCount: 2},
		{SeriesID: "s1", ModelID: "under", RunnerUpID: "over", Margin: 1, CostRatio: 2, CandidateCount: 2},
	}
	if err := st.decisions.InsertBulk(ctx, "run1", decisions); err != nil {
		t.Fatalf("Insert decisions failed: %v", err)
	}

	// s1 flips from under to over between ratio 1 and 4; s2 never flips
	sweepS1 := []domain.SelectionDecision{
		{ModelID: "under", CostRatio: 0.5},
		{ModelID: "under", CostRatio: 1},
		{ModelID: "over", CostRatio: 4},
	}
	sweepS2 := []domain.SelectionDecision{
		{ModelID: "over", CostRatio: 0.5},
		{ModelID: "over", CostRatio: 1},
		{ModelID: "over", CostRatio: 4},
	}
	if err := st.decisions.InsertSweep(ctx, "run1", "s1", sweepS1); err != nil {
		t.Fatalf("Insert sweep failed: %v", err)
	}
	if err := st.decisions.InsertSweep(ctx, "run1", "s2", sweepS2); err != nil {
		t.Fatalf("Insert sweep failed: %v", err)
	}

	groups := []domain.GroupDecision{
		{NodeID: "total", ModelID: "over", Rule: domain.RuleCostWeighted, Margin: 4, MemberCount: 2,
			Totals: map[string]float64{"over": 34, "under": 38}},
	}
	if err := st.groups.InsertBulk(ctx, "run1", groups); err != nil {
		t.Fatalf("Insert groups failed: %v", err)
	}

	summary := &domain.RobustnessSummary{
		Baseline:        "rmse",
		SeriesCount:     2,
		InversionMean:   0.5,
		InversionMax:    1,
		TopOneAgreement: 0.5,
		StabilityRate:   0.5,
	}
	if err := st.summaries.Insert(ctx, "run1", summary); err != nil {
		t.Fatalf("Insert summary failed: %v", err)
	}

	return st
}

func newTestGenerator(st testStores) *Generator {
	fixed := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	return NewGenerator(st.evaluations, st.decisions, st.groups, st.summaries).
		WithClock(func() time.Time { return fixed })
}

func TestGenerator_Generate(t *testing.T) {
	st := setupTestData(t)
	g := newTestGenerator(st)

	r, err := g.Generate(context.Background(), RunInfo{
		RunID:      "run1",
		ConfigName: "demo",
		Baseline:   "rmse",
		Errors:     []domain.ItemError{{ID: "s3", Err: domain.ErrNoCandidates}},
	})
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	if r.CostRatio != 2 {
		t.Errorf("CostRatio = %v, want 2", r.CostRatio)
	}
	o := r.Overview
	if o.SeriesCount != 2 || o.ModelCount != 2 || o.EvaluationCount != 4 {
		t.Errorf("Unexpected overview counts: %+v", o)
	}
	if o.SweptSeries != 2 || o.StableSeries != 1 || o.BoundaryCount != 1 || o.ErrorCount != 1 {
		t.Errorf("Unexpected sweep counts: %+v", o)
	}

	if len(r.Selections) != 2 || r.Selections[0].SeriesID != "s1" {
		t.Errorf("Selections not sorted by series: %+v", r.Selections)
	}
	if len(r.ModelWins) != 2 || r.ModelWins[0].ModelID != "over" || r.ModelWins[0].Share != 0.5 {
		t.Errorf("Unexpected model wins: %+v", r.ModelWins)
	}

	if len(r.Boundaries) != 1 {
		t.Fatalf("Expected 1 boundary, got %d", len(r.Boundaries))
	}
	b := r.Boundaries[0]
	if b.SeriesID != "s1" || b.LowerRatio != 1 || b.UpperRatio != 4 || b.From != "under" || b.To != "over" {
		t.Errorf("Unexpected boundary: %+v", b)
	}
	if r.Sweeps[0].Choices != "under > over" || r.Sweeps[1].Choices != "over" {
		t.Errorf("Unexpected choices: %q / %q", r.Sweeps[0].Choices, r.Sweeps[1].Choices)
	}

	if len(r.Errors) != 1 || !strings.HasPrefix(r.Errors[0], "s3: ") {
		t.Errorf("Unexpected errors: %v", r.Errors)
	}
}

func TestGenerator_EmptyRun(t *testing.T) {
	st := setupTestData(t)
	r, err := newTestGenerator(st).Generate(context.Background(), RunInfo{RunID: "other"})
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if r.CostRatio != 0 || len(r.Selections) != 0 || len(r.Sweeps) != 0 {
		t.Errorf("Expected empty report, got %+v", r)
	}

	md := RenderMarkdown(r)
	for _, want := range []string{"No selections available.", "No sweep was run.", "No hierarchy decisions available."} {
		if !strings.Contains(md, want) {
			t.Errorf("Missing %q in empty report", want)
		}
	}
}

type failingDecisions struct{ *memory.DecisionStore }

func (failingDecisions) GetByRun(context.Context, string) ([]domain.SelectionDecision, error) {
	return nil, errors.New("connection reset")
}

func TestGenerator_StoreError(t *testing.T) {
	st := setupTestData(t)
	g := NewGenerator(st.evaluations, failingDecisions{st.decisions}, st.groups, st.summaries)

	_, err := g.Generate(context.Background(), RunInfo{RunID: "run1"})
	if err == nil || !strings.Contains(err.Error(), "load decisions") {
		t.Errorf("Expected wrapped store error, got %v", err)
	}
}

func TestRenderMarkdown(t *testing.T) {
	st := setupTestData(t)
	r, err := newTestGenerator(st).Generate(context.Background(), RunInfo{
		RunID:      "run1",
		ConfigName: "demo",
		Baseline:   "rmse",
		Governance: &GovernanceSection{
			Policy: governance.DefaultPolicy(),
			Decisions: []governance.Decision{
				{SeriesID: "s1", ModelID: "under", Admitted: true},
				{SeriesID: "s1", ModelID: "noisy", Reasons: []string{"HR@2 0.5000 < 0.70"}},
			},
		},
	})
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	md := RenderMarkdown(r)

	wants := []string{
		"# Evaluation Report",
		"Generated: 2026-01-01T00:00:00Z",
		"Run: run1 | Config: demo | Cost ratio (cu/co): 2 | Baseline: rmse",
		"| s1 | under | over | 1.0000 | 2 |",
		"| s1 | 1 | 4 | under | over |",
		"| total | over | cost_weighted | 4.0000 | 0 | 2 |",
		"| rmse | 2 | 0.5000 |",
		"Admitted: 1/2 candidates",
		"- s1 / noisy: HR@2 0.5000 < 0.70",
	}
	for _, want := range wants {
		if !strings.Contains(md, want) {
			t.Errorf("Missing %q in:\n%s", want, md)
		}
	}
}

func TestRenderCSV(t *testing.T) {
	st := setupTestData(t)
	r, err := newTestGenerator(st).Generate(context.Background(), RunInfo{RunID: "run1"})
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	evals := RenderEvaluationsCSV(r.Evaluations)
	lines := strings.Split(strings.TrimSpace(evals), "\n")
	if len(lines) != 5 {
		t.Fatalf("Expected header + 4 rows, got %d", len(lines))
	}
	if lines[0] != "series_id,model_id,raw_score,adjusted_score,penalty,rank" {
		t.Errorf("Unexpected header: %s", lines[0])
	}
	if lines[1] != "s1,under,29.000000,29.000000,0.000000,1" {
		t.Errorf("Unexpected first row: %s", lines[1])
	}

	bounds := RenderBoundariesCSV(r.Boundaries)
	if !strings.Contains(bounds, "s1,1.000000,4.000000,under,over") {
		t.Errorf("Unexpected boundaries CSV:\n%s", bounds)
	}

	groups := RenderGroupsCSV(r.Groups)
	if !strings.Contains(groups, "total,over,cost_weighted,4.000000,0,2") {
		t.Errorf("Unexpected groups CSV:\n%s", groups)
	}

	sel := RenderSelectionsCSV([]SelectionRow{{SeriesID: "a,b", ModelID: "m"}})
	if !strings.Contains(sel, `"a,b",m`) {
		t.Errorf("Expected quoted field, got:\n%s", sel)
	}
}

func TestWriteFiles(t *testing.T) {
	st := setupTestData(t)
	r, err := newTestGenerator(st).Generate(context.Background(), RunInfo{RunID: "run1"})
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	dir := filepath.Join(t.TempDir(), "out")
	paths, err := WriteFiles(dir, r)
	if err != nil {
		t.Fatalf("WriteFiles failed: %v", err)
	}
	if len(paths) != 5 {
		t.Fatalf("Expected 5 files without governance, got %d", len(paths))
	}

	data, err := os.ReadFile(filepath.Join(dir, ReportFile))
	if err != nil {
		t.Fatalf("Read report failed: %v", err)
	}
	if !strings.HasPrefix(string(data), "# Evaluation Report") {
		t.Errorf("Unexpected report content:\n%s", data)
	}

	r.Governance = &GovernanceSection{Policy: governance.DefaultPolicy()}
	paths, err = WriteFiles(dir, r)
	if err != nil {
		t.Fatalf("WriteFiles with governance failed: %v", err)
	}
	if len(paths) != 6 || filepath.Base(paths[5]) != GovernanceFile {
		t.Errorf("Expected governance report last, got %v", paths)
	}

	r.Served = testServed()
	paths, err = WriteFiles(dir, r)
	if err != nil {
		t.Fatalf("WriteFiles with served forecasts failed: %v", err)
	}
	if len(paths) != 7 || filepath.Base(paths[6]) != ServedFile {
		t.Errorf("Expected served forecasts last, got %v", paths)
	}
}

func testServed() []*serving.Forecast {
	return []*serving.Forecast{
		{
			SeriesID: "0001::100", EntityID: "100",
			SelectedModelID: "over", ServedModelID: "over",
			Source: serving.SourceSelected, Admitted: true,
			Points: []serving.Point{{TimestampMs: 1000, Served: 12, Selected: 12, Baseline: 10}},
		},
		{
			SeriesID: "0002::100", EntityID: "100",
			SelectedModelID: "over", ServedModelID: "seasonal_naive",
			Source: serving.SourceBaseline,
			Points: []serving.Point{{TimestampMs: 1000, Served: 9, Selected: math.NaN(), Baseline: 9}},
		},
	}
}

func TestRenderServed(t *testing.T) {
	served := testServed()

	csv := RenderServedCSV(served)
	lines := strings.Split(strings.TrimSpace(csv), "\n")
	if len(lines) != 3 {
		t.Fatalf("Expected header + 2 rows, got %d", len(lines))
	}
	if lines[0] != "series_id,forecast_entity_id,timestamp_ms,y_served,served_source,served_model,selected_model,y_selected,y_baseline,admitted" {
		t.Errorf("Unexpected header: %s", lines[0])
	}
	if lines[2] != "0002::100,100,1000,9.000000,baseline,seasonal_naive,over,NaN,9.000000,false" {
		t.Errorf("Unexpected fallback row: %s", lines[2])
	}

	md := RenderMarkdown(&Report{Served: served})
	for _, want := range []string{"## Served Forecasts", "| selected | 1 |", "| baseline | 1 |", "| selected_unadmitted | 0 |"} {
		if !strings.Contains(md, want) {
			t.Errorf("Missing %q in:\n%s", want, md)
		}
	}
}
