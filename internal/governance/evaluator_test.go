package governance

import (
	"math"
	"strings"
	"testing"

	"eb-evaluation-lab/internal/domain"
	"eb-evaluation-lab/internal/metrics"
)

func testSeries(values ...float64) *domain.Series {
	s := &domain.Series{ID: "site::item"}
	for i, v := range values {
		s.Points = append(s.Points, domain.Point{TimestampMs: int64(i + 1), Value: v})
	}
	return s
}

func testForecast(modelID string, values ...float64) *domain.Forecast {
	f := &domain.Forecast{SeriesID: "site::item", ModelID: modelID}
	for i, v := range values {
		f.Points = append(f.Points, domain.Point{TimestampMs: int64(i + 1), Value: v})
	}
	return f
}

func align(t *testing.T, s *domain.Series, f *domain.Forecast) *metrics.Alignment {
	t.Helper()
	a, err := metrics.Align(s, f)
	if err != nil {
		t.Fatalf("Align failed: %v", err)
	}
	return a
}

func TestEvaluate_Admitted(t *testing.T) {
	evaluator := NewEvaluator(DefaultPolicy())

	// errors: 1, 0, 2, 1 -> all within τ = 2
	s := testSeries(10, 10, 10, 10)
	d := evaluator.Evaluate(align(t, s, testForecast("good", 9, 10, 12, 11)))

	if !d.Admitted {
		t.Errorf("Expected admitted, got reasons %v", d.Reasons)
	}
	if len(d.Criteria) != 4 {
		t.Fatalf("Expected 4 criteria without NSL, got %d", len(d.Criteria))
	}
	if d.DQC != DQCQuantized || d.FPC != FPCCompatible {
		t.Errorf("Unexpected structural classes: DQC=%s FPC=%s", d.DQC, d.FPC)
	}
	for i, c := range d.Criteria {
		if !c.Pass {
			t.Errorf("Criterion %d (%s) should pass", i+1, c.Name)
		}
	}
}

func TestEvaluate_RejectedOnHitRate(t *testing.T) {
	evaluator := NewEvaluator(DefaultPolicy())

	// errors: 5, 0, 5, 0 -> HR@2 = 0.5 < 0.70
	s := testSeries(10, 10, 10, 10)
	d := evaluator.Evaluate(align(t, s, testForecast("rough", 5, 10, 15, 10)))

	if d.Admitted {
		t.Fatal("Expected rejection")
	}
	if d.Criteria[3].Pass || d.Criteria[3].Actual != "0.5000" {
		t.Errorf("Unexpected HR criterion: %+v", d.Criteria[3])
	}
	if len(d.Reasons) != 1 || !strings.Contains(d.Reasons[0], "HR@2") {
		t.Errorf("Unexpected reasons: %v", d.Reasons)
	}
}

func TestEvaluate_NSLAndSupport(t *testing.T) {
	nslMin := 0.9
	evaluator := NewEvaluator(Policy{Tau: 10, HitRateMin: 0, NSLMin: &nslMin, MinSupport: 5})

	// two shortfalls out of four -> NSL = 0.5; support 4 < 5
	s := testSeries(10, 10, 10, 10)
	d := evaluator.Evaluate(align(t, s, testForecast("under", 9, 9, 10, 11)))

	if d.Admitted {
		t.Fatal("Expected rejection")
	}
	if len(d.Criteria) != 5 {
		t.Fatalf("Expected 5 criteria with NSL, got %d", len(d.Criteria))
	}
	if !d.Criteria[0].Pass || !d.Criteria[1].Pass {
		t.Error("Structural criteria should pass")
	}
	if d.Criteria[2].Pass {
		t.Error("Support criterion should fail")
	}
	if !d.Criteria[3].Pass {
		t.Error("HR criterion should pass with min 0")
	}
	if d.Criteria[4].Pass {
		t.Error("NSL criterion should fail")
	}
	if len(d.Reasons) != 2 {
		t.Errorf("Expected 2 reasons, got %v", d.Reasons)
	}
}

func TestFilter(t *testing.T) {
	evaluator := NewEvaluator(DefaultPolicy())
	s := testSeries(10, 10, 10, 10)

	misaligned := &domain.Forecast{SeriesID: "site::item", ModelID: "broken", Points: []domain.Point{{TimestampMs: 99, Value: 1}}}
	candidates := []*domain.Forecast{
		testForecast("good", 10, 10, 11, 9),
		testForecast("rough", 0, 0, 0, 0),
		misaligned,
	}

	admitted, decisions := evaluator.Filter(s, candidates)

	if len(admitted) != 2 || admitted[0].ModelID != "good" || admitted[1].ModelID != "broken" {
		t.Errorf("Unexpected admitted set: %d candidates", len(admitted))
	}
	if len(decisions) != 2 {
		t.Fatalf("Expected decisions for aligned candidates only, got %d", len(decisions))
	}
	rejected := Rejected(decisions)
	if len(rejected) != 1 || rejected[0].ModelID != "rough" {
		t.Errorf("Unexpected rejections: %+v", rejected)
	}
}

func TestRenderMarkdown(t *testing.T) {
	evaluator := NewEvaluator(DefaultPolicy())
	s := testSeries(10, 10, 10, 10)
	_, decisions := evaluator.Filter(s, []*domain.Forecast{
		testForecast("rough", 0, 0, 0, 0),
		testForecast("good", 10, 10, 10, 10),
	})
	SortDecisions(decisions)

	md := RenderMarkdown(evaluator.Policy(), decisions)

	if !strings.Contains(md, "# Governance Gate Report") {
		t.Error("Missing report header")
	}
	if !strings.Contains(md, "Admitted: 1/2 candidates") {
		t.Error("Missing admitted count")
	}
	if !strings.Contains(md, "| site::item | good | HR@2 | >= 0.70 | 1.0000 | PASS |") {
		t.Errorf("Missing checklist row for good:\n%s", md)
	}
	if !strings.Contains(md, "- site::item / rough:") {
		t.Error("Missing rejection line")
	}
	if !strings.Contains(md, "NSL minimum: not enforced") {
		t.Error("Missing NSL policy line")
	}
	if !strings.Contains(md, "| site::item | rough | FPC | not INCOMPATIBLE | INCOMPATIBLE | FAIL |") {
		t.Errorf("Missing FPC row for rough:\n%s", md)
	}
	if !strings.Contains(md, "| item | good | 1 | 1 | 1.0000 |") {
		t.Errorf("Missing entity summary row:\n%s", md)
	}
}

func TestEvaluate_StructuralBlocksAdmission(t *testing.T) {
	evaluator := NewEvaluator(DefaultPolicy())

	// one demand event in 25 intervals: too intermittent
	values := make([]float64, 25)
	values[10] = 1
	s := testSeries(values...)
	forecast := make([]float64, 25)
	forecast[10] = 1

	admitted, decisions := evaluator.Filter(s, []*domain.Forecast{testForecast("exact", forecast...)})

	if len(admitted) != 0 || len(decisions) != 1 {
		t.Fatalf("Expected the candidate to be rejected, admitted %d", len(admitted))
	}
	d := decisions[0]
	if d.DQC != DQCIncompatible || d.FPC != FPCCompatible {
		t.Errorf("Unexpected classes: DQC=%s FPC=%s", d.DQC, d.FPC)
	}
	if d.Criteria[0].Pass || !d.Criteria[3].Pass {
		t.Errorf("Only DQC should fail: %+v", d.Criteria)
	}
	if !strings.Contains(strings.Join(d.Reasons, "; "), "zero demand") {
		t.Errorf("Expected intermittency reason, got %v", d.Reasons)
	}
}

func TestClassifyDQC(t *testing.T) {
	thr := DefaultThresholds()
	nan := math.NaN()

	tests := []struct {
		name        string
		actuals     []float64
		class       string
		granularity float64
	}{
		{"unit demand", []float64{0, 3, 5, nan, 2}, DQCQuantized, 1},
		{"case packs", []float64{12, 24, 0, 36}, DQCQuantized, 12},
		{"continuous", []float64{1.5, 2.25, 0}, DQCContinuous, 0},
		{"all unknown", []float64{nan, nan}, DQCIncompatible, 0},
		{"all zero", []float64{0, 0, 0}, DQCIncompatible, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := ClassifyDQC(tt.actuals, thr)
			if res.Class != tt.class || res.Granularity != tt.granularity {
				t.Errorf("ClassifyDQC = %s (granularity %v), want %s (%v)", res.Class, res.Granularity, tt.class, tt.granularity)
			}
			if res.Class == DQCIncompatible && len(res.Reasons) == 0 {
				t.Error("INCOMPATIBLE without a reason")
			}
		})
	}
}

func TestClassifyFPC(t *testing.T) {
	thr := DefaultThresholds()
	s := testSeries(10, 10, 10, 10)

	tests := []struct {
		name     string
		forecast *domain.Forecast
		class    string
	}{
		{"close", testForecast("m", 9, 10, 11, 10), FPCCompatible},
		{"loose", testForecast("m", 4, 10, 16, 13), FPCMarginal},
		{"never covers", testForecast("m", 1, 2, 3, 4), FPCIncompatible},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := ClassifyFPC(align(t, s, tt.forecast), 2, thr)
			if res.Class != tt.class {
				t.Errorf("ClassifyFPC = %s, want %s (signals %+v)", res.Class, tt.class, res.Signals)
			}
		})
	}

	// CWSL: shortfall 1 at cu = 2 over demand 40
	res := ClassifyFPC(align(t, s, testForecast("m", 9, 10, 10, 10)), 2, thr)
	if math.Abs(res.Signals.CWSL-0.05) > 1e-12 {
		t.Errorf("CWSL = %v, want 0.05", res.Signals.CWSL)
	}
}

func TestSummarizeByEntity(t *testing.T) {
	decisions := []Decision{
		{SeriesID: "0002::100", ModelID: "a", Admitted: false, Signals: FPCSignals{HitRate: 0.5, NSL: 0.2}},
		{SeriesID: "0001::100", ModelID: "a", Admitted: true, Signals: FPCSignals{HitRate: 0.9, NSL: 0.6}},
		{SeriesID: "0001::200", ModelID: "a", Admitted: true, Signals: FPCSignals{HitRate: 1}},
		{SeriesID: "plain", ModelID: "b", Admitted: true},
	}

	got := SummarizeByEntity(decisions)

	if len(got) != 3 {
		t.Fatalf("Expected 3 entity rows, got %d", len(got))
	}
	first := got[0]
	if first.EntityID != "100" || first.Sites != 2 || first.Admitted != 1 {
		t.Errorf("Unexpected first row: %+v", first)
	}
	if math.Abs(first.HitRate-0.7) > 1e-12 || math.Abs(first.NSL-0.4) > 1e-12 {
		t.Errorf("Expected averaged signals, got %+v", first)
	}
	if got[1].EntityID != "200" || got[2].EntityID != "plain" {
		t.Errorf("Unexpected order: %+v", got)
	}
}
