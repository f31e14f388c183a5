// Package hierarchy rolls per-series selection decisions up a forest of groups.
//
// Nodes are held in an index-based store. The bottom-up processing order is
// computed once with Kahn's algorithm, so cycles are rejected before any
// aggregation runs.
package hierarchy

import (
	"sort"

	"eb-evaluation-lab/internal/domain"
)

// Forest is a validated, immutable hierarchy.
type Forest struct {
	nodes    []domain.HierarchyNode
	index    map[string]int
	parent   []int // -1 for roots
	children [][]int
	order    []int          // children before parents
	leafOf   map[string]int // series id -> leaf index
}

// NewForest validates nodes and builds the bottom-up order.
//
// seriesIDs lists the series known to the run. Each must sit in exactly one leaf.
//
// Errors (all *domain.HierarchyError):
//   - ErrCyclicHierarchy: empty or duplicate node id, unknown parent, or a cycle
//   - ErrOrphanSeries: a known series in zero leaves, a series in more than one leaf,
//     or a series attached to a node that has children
func NewForest(nodes []domain.HierarchyNode, seriesIDs []string) (*Forest, error) {
	f := &Forest{
		nodes:    make([]domain.HierarchyNode, len(nodes)),
		index:    make(map[string]int, len(nodes)),
		parent:   make([]int, len(nodes)),
		children: make([][]int, len(nodes)),
		leafOf:   make(map[string]int),
	}

	for i, n := range nodes {
		if n.ID == "" {
			return nil, &domain.HierarchyError{Err: domain.ErrCyclicHierarchy, Reason: "empty node id"}
		}
		if _, dup := f.index[n.ID]; dup {
			return nil, &domain.HierarchyError{NodeID: n.ID, Err: domain.ErrCyclicHierarchy, Reason: "duplicate node id"}
		}
		f.index[n.ID] = i
		cp := n
		cp.SeriesIDs = append([]string(nil), n.SeriesIDs...)
		f.nodes[i] = cp
	}

	for i, n := range f.nodes {
		f.parent[i] = -1
		if n.ParentID == "" {
			continue
		}
		p, ok := f.index[n.ParentID]
		if !ok {
			return nil, &domain.HierarchyError{NodeID: n.ID, Err: domain.ErrCyclicHierarchy, Reason: "unknown parent " + n.ParentID}
		}
		if p == i {
			return nil, &domain.HierarchyError{NodeID: n.ID, Err: domain.ErrCyclicHierarchy, Reason: "node is its own parent"}
		}
		f.parent[i] = p
		f.children[p] = append(f.children[p], i)
	}
	for i := range f.children {
		sort.Slice(f.children[i], func(a, b int) bool {
			return f.nodes[f.children[i][a]].ID < f.nodes[f.children[i][b]].ID
		})
	}

	if err := f.topoSort(); err != nil {
		return nil, err
	}
	if err := f.indexSeries(seriesIDs); err != nil {
		return nil, err
	}
	return f, nil
}

// topoSort computes the bottom-up order with Kahn's algorithm on child counts.
func (f *Forest) topoSort() error {
	pending := make([]int, len(f.nodes))
	var queue []int
	for i := range f.nodes {
		pending[i] = len(f.children[i])
		if pending[i] == 0 {
			queue = append(queue, i)
		}
	}
	sort.Slice(queue, func(a, b int) bool { return f.nodes[queue[a]].ID < f.nodes[queue[b]].ID })

	f.order = make([]int, 0, len(f.nodes))
	for len(queue) > 0 {
		i := queue[0]
		queue = queue[1:]
		f.order = append(f.order, i)
		if p := f.parent[i]; p >= 0 {
			pending[p]--
			if pending[p] == 0 {
				queue = append(queue, p)
			}
		}
	}

	if len(f.order) < len(f.nodes) {
		// Report the smallest id on a cycle for a stable message
		stuck := ""
		for i := range f.nodes {
			if pending[i] > 0 && (stuck == "" || f.nodes[i].ID < stuck) {
				stuck = f.nodes[i].ID
			}
		}
		return &domain.HierarchyError{NodeID: stuck, Err: domain.ErrCyclicHierarchy, Reason: "cycle detected"}
	}
	return nil
}

func (f *Forest) indexSeries(seriesIDs []string) error {
	for _, i := range f.order {
		n := f.nodes[i]
		for _, sid := range n.SeriesIDs {
			if len(f.children[i]) > 0 {
				return &domain.HierarchyError{NodeID: n.ID, SeriesID: sid, Err: domain.ErrOrphanSeries, Reason: "series attached to a non-leaf node"}
			}
			if other, dup := f.leafOf[sid]; dup {
				return &domain.HierarchyError{NodeID: n.ID, SeriesID: sid, Err: domain.ErrOrphanSeries, Reason: "series also in leaf " + f.nodes[other].ID}
			}
			f.leafOf[sid] = i
		}
	}

	for _, sid := range seriesIDs {
		if _, ok := f.leafOf[sid]; !ok {
			return &domain.HierarchyError{SeriesID: sid, Err: domain.ErrOrphanSeries, Reason: "series in no leaf"}
		}
	}
	return nil
}

// Len returns the number of nodes.
func (f *Forest) Len() int { return len(f.nodes) }

// Node returns a node by id.
func (f *Forest) Node(id string) (domain.HierarchyNode, bool) {
	i, ok := f.index[id]
	if !ok {
		return domain.HierarchyNode{}, false
	}
	return f.nodes[i], true
}

// Order returns node ids children-before-parents.
func (f *Forest) Order() []string {
	ids := make([]string, len(f.order))
	for k, i := range f.order {
		ids[k] = f.nodes[i].ID
	}
	return ids
}

// Roots returns root node ids sorted.
func (f *Forest) Roots() []string {
	var roots []string
	for i, p := range f.parent {
		if p < 0 {
			roots = append(roots, f.nodes[i].ID)
		}
	}
	sort.Strings(roots)
	return roots
}

// Children returns the child node ids of a node, sorted.
func (f *Forest) Children(id string) []string {
	i, ok := f.index[id]
	if !ok {
		return nil
	}
	ids := make([]string, len(f.children[i]))
	for k, c := range f.children[i] {
		ids[k] = f.nodes[c].ID
	}
	return ids
}

// LeafOf returns the leaf node id holding a series.
func (f *Forest) LeafOf(seriesID string) (string, bool) {
	i, ok := f.leafOf[seriesID]
	if !ok {
		return "", false
	}
	return f.nodes[i].ID, true
}

// SeriesUnder returns every series id below a node, sorted.
func (f *Forest) SeriesUnder(id string) []string {
	i, ok := f.index[id]
	if !ok {
		return nil
	}
	var out []string
	stack := []int{i}
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		out = append(out, f.nodes[n].SeriesIDs...)
		stack = append(stack, f.children[n]...)
	}
	sort.Strings(out)
	return out
}
