package hierarchy

import (
	"errors"
	"testing"

	"eb-evaluation-lab/internal/domain"
)

func node(id, parent string, series ...string) domain.HierarchyNode {
	return domain.HierarchyNode{ID: id, ParentID: parent, SeriesIDs: series}
}

func results(seriesID string, scores map[string]float64) []domain.EvaluationResult {
	var out []domain.EvaluationResult
	for m, s := range scores {
		out = append(out, domain.EvaluationResult{SeriesID: seriesID, ModelID: m, RawScore: s, AdjustedScore: s})
	}
	return out
}

// twoSiteForest: root -> {siteA -> a1, a2, a3; siteB -> b1}
func twoSiteForest(t *testing.T) *Forest {
	t.Helper()
	f, err := NewForest([]domain.HierarchyNode{
		node("root", ""),
		node("siteB", "root", "b1"),
		node("siteA", "root", "a1", "a2", "a3"),
	}, []string{"a1", "a2", "a3", "b1"})
	if err != nil {
		t.Fatalf("NewForest failed: %v", err)
	}
	return f
}

func TestNewForest_BottomUpOrder(t *testing.T) {
	f := twoSiteForest(t)

	pos := make(map[string]int)
	for i, id := range f.Order() {
		pos[id] = i
	}
	if pos["siteA"] > pos["root"] || pos["siteB"] > pos["root"] {
		t.Errorf("children must come before parents: %v", f.Order())
	}
	if roots := f.Roots(); len(roots) != 1 || roots[0] != "root" {
		t.Errorf("unexpected roots: %v", roots)
	}
	if leaf, ok := f.LeafOf("a2"); !ok || leaf != "siteA" {
		t.Errorf("LeafOf(a2) = %q, %v", leaf, ok)
	}
	if got := f.SeriesUnder("root"); len(got) != 4 || got[0] != "a1" || got[3] != "b1" {
		t.Errorf("unexpected SeriesUnder(root): %v", got)
	}
}

func TestNewForest_Cyclic(t *testing.T) {
	tests := []struct {
		name  string
		nodes []domain.HierarchyNode
	}{
		{"two-node cycle", []domain.HierarchyNode{node("a", "b"), node("b", "a")}},
		{"self parent", []domain.HierarchyNode{node("a", "a")}},
		{"unknown parent", []domain.HierarchyNode{node("a", "ghost")}},
		{"duplicate id", []domain.HierarchyNode{node("a", ""), node("a", "")}},
		{"cycle above leaf", []domain.HierarchyNode{node("x", "y"), node("y", "z"), node("z", "x"), node("leaf", "x", "s1")}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewForest(tt.nodes, nil)
			if !errors.Is(err, domain.ErrCyclicHierarchy) {
				t.Fatalf("expected ErrCyclicHierarchy, got %v", err)
			}
			var he *domain.HierarchyError
			if !errors.As(err, &he) || he.NodeID == "" {
				t.Errorf("expected HierarchyError with node id, got %v", err)
			}
		})
	}
}

func TestNewForest_OrphanSeries(t *testing.T) {
	tests := []struct {
		name   string
		nodes  []domain.HierarchyNode
		series []string
	}{
		{"two leaves", []domain.HierarchyNode{node("l1", "", "s1"), node("l2", "", "s1")}, []string{"s1"}},
		{"no leaf", []domain.HierarchyNode{node("l1", "", "s1")}, []string{"s1", "s2"}},
		{"non-leaf", []domain.HierarchyNode{node("p", "", "s1"), node("c", "p", "s2")}, []string{"s1", "s2"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewForest(tt.nodes, tt.series)
			if !errors.Is(err, domain.ErrOrphanSeries) {
				t.Fatalf("expected ErrOrphanSeries, got %v", err)
			}
			var he *domain.HierarchyError
			if !errors.As(err, &he) || he.SeriesID == "" {
				t.Errorf("expected HierarchyError with series id, got %v", err)
			}
		})
	}
}

func TestAggregate_SingleLeafIdentity(t *testing.T) {
	f, err := NewForest([]domain.HierarchyNode{node("leaf", "", "s1")}, []string{"s1"})
	if err != nil {
		t.Fatalf("NewForest failed: %v", err)
	}
	decision := domain.SelectionDecision{SeriesID: "s1", ModelID: "m2", RunnerUpID: "m1", Margin: 0.25, CandidateCount: 2}
	in := Inputs{
		Decisions: map[string]domain.SelectionDecision{"s1": decision},
		Results:   map[string][]domain.EvaluationResult{"s1": results("s1", map[string]float64{"m1": 1.25, "m2": 1.0})},
	}

	for _, rule := range []domain.AggregationRule{domain.RuleMajority, domain.RuleCostWeighted} {
		res, err := NewAggregator(nil).Aggregate(f, in, rule)
		if err != nil {
			t.Fatalf("%s: Aggregate failed: %v", rule, err)
		}
		gd, ok := res.Decision("leaf")
		if !ok {
			t.Fatalf("%s: no decision for leaf", rule)
		}
		if gd.ModelID != decision.ModelID || gd.Margin != decision.Margin || gd.MemberCount != 1 {
			t.Errorf("%s: group decision %+v does not match leaf decision %+v", rule, gd, decision)
		}
	}
}

func TestAggregate_Majority(t *testing.T) {
	f := twoSiteForest(t)
	in := Inputs{Decisions: map[string]domain.SelectionDecision{
		"a1": {SeriesID: "a1", ModelID: "naive"},
		"a2": {SeriesID: "a2", ModelID: "naive"},
		"a3": {SeriesID: "a3", ModelID: "over"},
		"b1": {SeriesID: "b1", ModelID: "over"},
	}}

	res, err := NewAggregator(nil).Aggregate(f, in, domain.RuleMajority)
	if err != nil {
		t.Fatalf("Aggregate failed: %v", err)
	}

	siteA, _ := res.Decision("siteA")
	if siteA.ModelID != "naive" || siteA.VoteMargin != 1 || siteA.MemberCount != 3 {
		t.Errorf("unexpected siteA: %+v", siteA)
	}
	// root: siteA votes naive, siteB votes over -> tie -> "naive"
	root, _ := res.Decision("root")
	if root.ModelID != "naive" || root.VoteMargin != 0 || root.MemberCount != 4 {
		t.Errorf("unexpected root: %+v", root)
	}
	if len(res.Errors) != 0 {
		t.Errorf("unexpected errors: %v", res.Errors)
	}
}

func TestAggregate_MajoritySingleChildCopiesTotals(t *testing.T) {
	f, err := NewForest([]domain.HierarchyNode{
		node("root", ""),
		node("leaf", "root", "s1"),
	}, []string{"s1"})
	if err != nil {
		t.Fatalf("NewForest failed: %v", err)
	}
	in := Inputs{
		Decisions: map[string]domain.SelectionDecision{"s1": {SeriesID: "s1", ModelID: "m1", Margin: 0.5}},
		Results:   map[string][]domain.EvaluationResult{"s1": results("s1", map[string]float64{"m1": 1, "m2": 1.5})},
	}

	res, err := NewAggregator(nil).Aggregate(f, in, domain.RuleMajority)
	if err != nil {
		t.Fatalf("Aggregate failed: %v", err)
	}
	leaf, _ := res.Decision("leaf")
	root, _ := res.Decision("root")
	if root.Totals["m1"] != 1 || root.Margin != 0.5 {
		t.Fatalf("root should carry the single child's totals, got %+v", root)
	}

	root.Totals["m1"] = 99
	if leaf.Totals["m1"] != 1 {
		t.Error("root and leaf decisions must not share a totals map")
	}
}

func TestAggregate_CostWeighted(t *testing.T) {
	f := twoSiteForest(t)
	in := Inputs{
		Decisions: map[string]domain.SelectionDecision{
			"a1": {ModelID: "x"}, "a2": {ModelID: "x"}, "a3": {ModelID: "y"}, "b1": {ModelID: "y"},
		},
		Results: map[string][]domain.EvaluationResult{
			"a1": results("a1", map[string]float64{"x": 1, "y": 2}),
			"a2": results("a2", map[string]float64{"x": 1, "y": 2, "z": 0}),
			"a3": results("a3", map[string]float64{"x": 5, "y": 1}),
			"b1": results("b1", map[string]float64{"x": 4, "y": 1}),
		},
	}

	res, err := NewAggregator(nil).Aggregate(f, in, domain.RuleCostWeighted)
	if err != nil {
		t.Fatalf("Aggregate failed: %v", err)
	}

	siteA, _ := res.Decision("siteA")
	if siteA.ModelID != "y" || siteA.Margin != 2 {
		t.Errorf("unexpected siteA: %+v", siteA)
	}
	if _, ok := siteA.Totals["z"]; ok {
		t.Error("model missing from some children must not be comparable")
	}
	root, _ := res.Decision("root")
	if root.ModelID != "y" || root.Totals["x"] != 11 || root.Totals["y"] != 6 {
		t.Errorf("unexpected root: %+v", root)
	}
}

func TestAggregate_MissingChildrenRecorded(t *testing.T) {
	f := twoSiteForest(t)
	in := Inputs{Decisions: map[string]domain.SelectionDecision{
		"a1": {ModelID: "x"},
	}}

	res, err := NewAggregator(nil).Aggregate(f, in, domain.RuleMajority)
	if err != nil {
		t.Fatalf("Aggregate failed: %v", err)
	}
	if len(res.Errors) != 1 || res.Errors[0].ID != "siteB" || !errors.Is(res.Errors[0], ErrNoChildResults) {
		t.Errorf("unexpected errors: %v", res.Errors)
	}
	root, ok := res.Decision("root")
	if !ok || root.ModelID != "x" || root.MemberCount != 1 {
		t.Errorf("root should be decided from siteA only, got %+v", root)
	}
}

func TestAggregate_Custom(t *testing.T) {
	f := twoSiteForest(t)
	in := Inputs{Decisions: map[string]domain.SelectionDecision{
		"a1": {ModelID: "x"}, "a2": {ModelID: "y"}, "a3": {ModelID: "y"}, "b1": {ModelID: "z"},
	}}

	// Pick the alphabetically last model seen
	last := func(_ domain.HierarchyNode, children []Child) (domain.GroupDecision, error) {
		best := ""
		for _, c := range children {
			if c.ModelID > best {
				best = c.ModelID
			}
		}
		return domain.GroupDecision{ModelID: best}, nil
	}

	res, err := NewAggregator(last).Aggregate(f, in, domain.RuleCustom)
	if err != nil {
		t.Fatalf("Aggregate failed: %v", err)
	}
	root, _ := res.Decision("root")
	if root.ModelID != "z" || root.Rule != domain.RuleCustom {
		t.Errorf("unexpected root: %+v", root)
	}

	if _, err := NewAggregator(nil).Aggregate(f, in, domain.RuleCustom); !errors.Is(err, domain.ErrInvalidConfig) {
		t.Errorf("expected ErrInvalidConfig without reducer, got %v", err)
	}
	if _, err := NewAggregator(nil).Aggregate(f, in, "median"); !errors.Is(err, domain.ErrInvalidConfig) {
		t.Errorf("expected ErrInvalidConfig for unknown rule, got %v", err)
	}
}
