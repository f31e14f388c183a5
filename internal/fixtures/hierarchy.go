package fixtures

import (
	"sort"

	"eb-evaluation-lab/internal/domain"
)

// RootNodeID is the id of the single root of a derived hierarchy.
const RootNodeID = "total"

// HierarchyFromEntityIDs derives root -> site -> item nodes from "site::item" ids.
// Every item node is a leaf carrying exactly its own series.
func HierarchyFromEntityIDs(entityIDs []string) ([]domain.HierarchyNode, error) {
	ids := append([]string(nil), entityIDs...)
	sort.Strings(ids)

	nodes := []domain.HierarchyNode{{ID: RootNodeID}}
	sites := make(map[string]bool)

	for i, id := range ids {
		if i > 0 && ids[i-1] == id {
			return nil, &domain.HierarchyError{SeriesID: id, Err: domain.ErrOrphanSeries, Reason: "duplicate entity id"}
		}
		site, _, ok := domain.SplitEntityID(id)
		if !ok {
			return nil, &domain.HierarchyError{SeriesID: id, Err: domain.ErrOrphanSeries, Reason: "entity id is not site::item"}
		}
		if site == RootNodeID {
			return nil, &domain.HierarchyError{NodeID: site, Err: domain.ErrCyclicHierarchy, Reason: "site id collides with root"}
		}
		if !sites[site] {
			sites[site] = true
			nodes = append(nodes, domain.HierarchyNode{ID: site, ParentID: RootNodeID})
		}
		nodes = append(nodes, domain.HierarchyNode{ID: id, ParentID: site, SeriesIDs: []string{id}})
	}

	return nodes, nil
}
