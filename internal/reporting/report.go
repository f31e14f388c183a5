package reporting

import (
	"time"

	"eb-evaluation-lab/internal/domain"
	"eb-evaluation-lab/internal/governance"
	"eb-evaluation-lab/internal/serving"
)

// Report is the evaluation report of one run.
type Report struct {
	// Metadata
	GeneratedAt time.Time
	RunID       string
	ConfigName  string
	CostRatio   float64 // cu/co of the final decisions, 0 when nothing was selected
	Baseline    string

	Overview Overview

	// Selection (sorted by series_id)
	Selections  []SelectionRow
	ModelWins   []ModelWinRow // sorted by wins DESC, model_id ASC
	Evaluations []domain.EvaluationResult

	// Sweep (sorted by series_id)
	Sweeps     []SweepRow
	Boundaries []BoundaryRow

	// Hierarchy (sorted by node_id)
	Groups []GroupRow

	// Robustness (sorted by baseline)
	Robustness []*domain.RobustnessSummary

	// Governance is nil when the gate was off
	Governance *GovernanceSection

	// Served forecasts (sorted by series_id)
	Served []*serving.Forecast

	// Per-item failures, "id: error"
	Errors []string
}

// Overview holds the headline counts of a run.
type Overview struct {
	SeriesCount     int
	ModelCount      int
	EvaluationCount int
	SweptSeries     int
	StableSeries    int
	BoundaryCount   int
	GroupCount      int
	ErrorCount      int
}

// SelectionRow is one final per-series decision.
type SelectionRow struct {
	SeriesID   string
	ModelID    string
	RunnerUpID string
	Margin     float64
	CostRatio  float64
	Candidates int
}

// ModelWinRow counts how often a model was selected.
type ModelWinRow struct {
	ModelID string
	Wins    int
	Share   float64 // wins / selected series
}

// SweepRow summarizes the cost-ratio sweep of one series.
type SweepRow struct {
	SeriesID   string
	Steps      int
	Boundaries int
	Stable     bool
	Choices    string // distinct chosen models in ratio order, e.g. "under > over"
}

// BoundaryRow is one decision boundary found by a sweep.
type BoundaryRow struct {
	SeriesID   string
	LowerRatio float64
	UpperRatio float64
	From       string
	To         string
}

// GroupRow is one hierarchy node decision.
type GroupRow struct {
	NodeID      string
	ModelID     string
	Rule        domain.AggregationRule
	Margin      float64
	VoteMargin  int
	MemberCount int
}

// GovernanceSection carries the gate policy and its per-candidate decisions.
type GovernanceSection struct {
	Policy    governance.Policy
	Decisions []governance.Decision
}

// Admitted returns the number of admitted candidates.
func (g *GovernanceSection) Admitted() int {
	n := 0
	for _, d := range g.Decisions {
		if d.Admitted {
			n++
		}
	}
	return n
}
