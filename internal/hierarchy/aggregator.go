package hierarchy

import (
	"errors"
	"fmt"
	"maps"
	"sort"

	"eb-evaluation-lab/internal/domain"
)

// ErrNoChildResults is recorded for a node none of whose children produced a result.
var ErrNoChildResults = errors.New("no child results")

// Inputs are the per-series results to roll up, keyed by series id.
type Inputs struct {
	Decisions map[string]domain.SelectionDecision
	Results   map[string][]domain.EvaluationResult
}

// Child is one contribution to a node: a series below a leaf, or a child node.
type Child struct {
	ID       string
	IsSeries bool
	ModelID  string             // chosen model of the child
	Margin   float64            // child's own score margin
	Totals   map[string]float64 // per-model adjusted cost, nil when unknown
	Members  int                // series represented by the child
}

// Reducer is a caller-supplied aggregation rule. children is never empty.
// NodeID, Rule and MemberCount of the returned decision are filled in by the aggregator.
type Reducer func(node domain.HierarchyNode, children []Child) (domain.GroupDecision, error)

// Result holds the group decisions of one aggregation pass.
type Result struct {
	Decisions map[string]domain.GroupDecision // by node id
	Order     []string                        // decided node ids, bottom-up
	Errors    []domain.ItemError              // per-node failures, bottom-up
}

// Decision returns the group decision of a node.
func (r *Result) Decision(nodeID string) (domain.GroupDecision, bool) {
	d, ok := r.Decisions[nodeID]
	return d, ok
}

// Sorted returns every group decision ordered by node id.
func (r *Result) Sorted() []domain.GroupDecision {
	out := make([]domain.GroupDecision, 0, len(r.Decisions))
	for _, d := range r.Decisions {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].NodeID < out[j].NodeID })
	return out
}

// Aggregator rolls child results up a forest.
type Aggregator struct {
	Reducer Reducer // required for RuleCustom
}

// NewAggregator creates an aggregator. reducer may be nil unless RuleCustom is used.
func NewAggregator(reducer Reducer) *Aggregator {
	return &Aggregator{Reducer: reducer}
}

// Aggregate makes one bottom-up pass over the forest.
// A node whose children all failed or have no inputs records an ItemError and is
// skipped by its parent. Only configuration errors abort.
func (a *Aggregator) Aggregate(forest *Forest, in Inputs, rule domain.AggregationRule) (*Result, error) {
	if !rule.IsValid() {
		return nil, fmt.Errorf("%w: unknown aggregation rule %q", domain.ErrInvalidConfig, rule)
	}
	if rule == domain.RuleCustom && a.Reducer == nil {
		return nil, fmt.Errorf("%w: custom aggregation rule requires a reducer", domain.ErrInvalidConfig)
	}

	res := &Result{Decisions: make(map[string]domain.GroupDecision, forest.Len())}
	for _, i := range forest.order {
		node := forest.nodes[i]
		children := a.collect(forest, i, in, res)
		if len(children) == 0 {
			res.Errors = append(res.Errors, domain.ItemError{ID: node.ID, Err: ErrNoChildResults})
			continue
		}

		var (
			gd  domain.GroupDecision
			err error
		)
		switch rule {
		case domain.RuleMajority:
			gd, err = majority(children)
		case domain.RuleCostWeighted:
			gd, err = costWeighted(children)
		case domain.RuleCustom:
			gd, err = a.Reducer(node, children)
		}
		if err != nil {
			res.Errors = append(res.Errors, domain.ItemError{ID: node.ID, Err: err})
			continue
		}

		gd.NodeID = node.ID
		gd.Rule = rule
		gd.MemberCount = 0
		for _, c := range children {
			gd.MemberCount += c.Members
		}
		res.Decisions[node.ID] = gd
		res.Order = append(res.Order, node.ID)
	}
	return res, nil
}

// collect gathers usable children of node i. Series come before child nodes.
func (a *Aggregator) collect(forest *Forest, i int, in Inputs, res *Result) []Child {
	var children []Child

	sids := append([]string(nil), forest.nodes[i].SeriesIDs...)
	sort.Strings(sids)
	for _, sid := range sids {
		d, ok := in.Decisions[sid]
		if !ok {
			continue
		}
		c := Child{ID: sid, IsSeries: true, ModelID: d.ModelID, Margin: d.Margin, Members: 1}
		if results, ok := in.Results[sid]; ok && len(results) > 0 {
			c.Totals = make(map[string]float64, len(results))
			for _, r := range results {
				c.Totals[r.ModelID] = r.AdjustedScore
			}
		}
		children = append(children, c)
	}

	for _, ci := range forest.children[i] {
		id := forest.nodes[ci].ID
		gd, ok := res.Decisions[id]
		if !ok {
			continue
		}
		children = append(children, Child{
			ID:      id,
			ModelID: gd.ModelID,
			Margin:  gd.Margin,
			Totals:  gd.Totals,
			Members: gd.MemberCount,
		})
	}
	return children
}

// majority gives each child one vote for its chosen model. Ties go to the smallest id.
// Above the leaves a child node votes once whatever its MemberCount, so each
// site counts equally at the root.
func majority(children []Child) (domain.GroupDecision, error) {
	votes := make(map[string]int)
	for _, c := range children {
		votes[c.ModelID]++
	}

	ids := sortedKeys(votes)
	sort.SliceStable(ids, func(i, j int) bool { return votes[ids[i]] > votes[ids[j]] })

	gd := domain.GroupDecision{ModelID: ids[0], Votes: votes}
	if len(ids) > 1 {
		gd.VoteMargin = votes[ids[0]] - votes[ids[1]]
	} else {
		gd.VoteMargin = votes[ids[0]]
	}
	if len(children) == 1 {
		gd.Margin = children[0].Margin
		gd.Totals = maps.Clone(children[0].Totals)
	}
	return gd, nil
}

// costWeighted sums adjusted costs per model over children that carry totals.
// Only models present in every such child are comparable.
func costWeighted(children []Child) (domain.GroupDecision, error) {
	var withTotals []Child
	for _, c := range children {
		if len(c.Totals) > 0 {
			withTotals = append(withTotals, c)
		}
	}
	if len(withTotals) == 0 {
		return domain.GroupDecision{}, ErrNoChildResults
	}

	totals := make(map[string]float64)
	seen := make(map[string]int)
	for _, c := range withTotals {
		for _, m := range sortedKeys(c.Totals) {
			totals[m] += c.Totals[m]
			seen[m]++
		}
	}
	for m, n := range seen {
		if n != len(withTotals) {
			delete(totals, m)
		}
	}
	if len(totals) == 0 {
		return domain.GroupDecision{}, fmt.Errorf("%w: no model scored in every child", domain.ErrIncomparableCandidates)
	}

	ids := sortedKeys(totals)
	sort.SliceStable(ids, func(i, j int) bool { return totals[ids[i]] < totals[ids[j]] })

	gd := domain.GroupDecision{ModelID: ids[0], Totals: totals}
	if len(ids) > 1 {
		gd.Margin = totals[ids[1]] - totals[ids[0]]
	}
	return gd, nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
