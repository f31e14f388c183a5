package domain

// EvaluationResult is the score of one candidate on one series.
// Corresponds to evaluation_results table in ClickHouse.
type EvaluationResult struct {
	SeriesID      string
	ModelID       string
	RawScore      float64 // cost-weighted aggregate error
	AdjustedScore float64 // after readiness adjustment
	Penalty       float64 // readiness penalty applied (0 when no spec)
	Rank          int     // 1-based rank among candidates for the series
}

// SelectionDecision is the winning candidate for one series at one cost ratio.
// Corresponds to selection_decisions table in ClickHouse.
type SelectionDecision struct {
	SeriesID       string
	ModelID        string  // chosen model
	RunnerUpID     string  // second-best model, "" for a single candidate
	Margin         float64 // runner-up score - best score, 0 on tie
	CostRatio      float64 // cu/co at which the decision was computed
	CandidateCount int
}

// AggregationRule selects how child results are rolled up into a group decision.
type AggregationRule string

const (
	RuleMajority     AggregationRule = "majority"      // vote of child decisions
	RuleCostWeighted AggregationRule = "cost_weighted" // min total adjusted cost
	RuleCustom       AggregationRule = "custom"        // caller-supplied reducer
)

// IsValid checks if the rule is a known value.
func (r AggregationRule) IsValid() bool {
	return r == RuleMajority || r == RuleCostWeighted || r == RuleCustom
}

// GroupDecision is the decision for one hierarchy node.
// Corresponds to group_decisions table in ClickHouse.
type GroupDecision struct {
	NodeID      string
	ModelID     string
	Rule        AggregationRule
	Margin      float64            // score gap to runner-up (cost_weighted)
	VoteMargin  int                // vote gap to runner-up (majority)
	MemberCount int                // number of series below the node
	Totals      map[string]float64 // per-model total adjusted cost (cost_weighted)
	Votes       map[string]int     // per-model votes (majority)
}

// RobustnessSummary is the cross-series comparison of EB against a baseline metric.
// Corresponds to robustness_summaries table in ClickHouse.
type RobustnessSummary struct {
	Baseline string // baseline metric name, e.g. "rmse"

	// Cost-ratio range covered by the sweeps
	MinRatio float64
	MaxRatio float64

	// Population
	SeriesCount      int
	SweptSeriesCount int

	// Inversion distribution (EB rank order vs baseline rank order)
	InversionMean      float64
	InversionP10       float64
	InversionP25       float64
	InversionMedian    float64
	InversionP75       float64
	InversionP90       float64
	InversionMax       int
	InversionRateMean  float64     // inversions / comparable pairs, averaged
	InversionHistogram map[int]int // inversion count -> number of series

	// Selection stability across the cost-ratio sweep
	StableSeries  int
	StabilityRate float64

	// Fraction of series whose EB winner equals the baseline winner
	TopOneAgreement float64
}

// ItemError is a per-item failure reported alongside successful batch results.
type ItemError struct {
	ID  string // series id, model id or node id
	Err error
}

// Error implements error.
func (e ItemError) Error() string {
	return e.ID + ": " + e.Err.Error()
}

// Unwrap returns the underlying error.
func (e ItemError) Unwrap() error {
	return e.Err
}
