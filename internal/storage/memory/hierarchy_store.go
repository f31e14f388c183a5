package memory

import (
	"context"
	"sort"
	"sync"

	"eb-evaluation-lab/internal/domain"
	"eb-evaluation-lab/internal/storage"
)

// HierarchyStore is an in-memory implementation of storage.HierarchyStore.
type HierarchyStore struct {
	mu   sync.RWMutex
	data map[string]domain.HierarchyNode // keyed by node id
}

// NewHierarchyStore creates a new in-memory hierarchy store.
func NewHierarchyStore() *HierarchyStore {
	return &HierarchyStore{
		data: make(map[string]domain.HierarchyNode),
	}
}

// InsertBulk adds multiple nodes atomically. Fails entire batch on any duplicate node id.
func (s *HierarchyStore) InsertBulk(_ context.Context, nodes []domain.HierarchyNode) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	seen := make(map[string]bool, len(nodes))
	for _, n := range nodes {
		if n.ID == "" {
			return storage.ErrInvalidInput
		}
		if _, exists := s.data[n.ID]; exists || seen[n.ID] {
			return storage.ErrDuplicateKey
		}
		seen[n.ID] = true
	}

	for _, n := range nodes {
		s.data[n.ID] = copyNode(n)
	}
	return nil
}

// GetAll retrieves every node ordered by id ASC.
func (s *HierarchyStore) GetAll(_ context.Context) ([]domain.HierarchyNode, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.HierarchyNode, 0, len(s.data))
	for _, n := range s.data {
		result = append(result, copyNode(n))
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].ID < result[j].ID
	})
	return result, nil
}

func copyNode(in domain.HierarchyNode) domain.HierarchyNode {
	out := in
	if in.SeriesIDs != nil {
		out.SeriesIDs = make([]string, len(in.SeriesIDs))
		copy(out.SeriesIDs, in.SeriesIDs)
		sort.Strings(out.SeriesIDs)
	}
	return out
}

// Verify interface compliance at compile time.
var _ storage.HierarchyStore = (*HierarchyStore)(nil)
