package memory

import (
	"context"
	"maps"
	"sort"
	"sync"

	"eb-evaluation-lab/internal/domain"
	"eb-evaluation-lab/internal/storage"
)

// groupKey is the composite primary key (run_id, node_id).
type groupKey struct {
	runID  string
	nodeID string
}

// GroupDecisionStore is an in-memory implementation of storage.GroupDecisionStore.
type GroupDecisionStore struct {
	mu   sync.RWMutex
	data map[groupKey]domain.GroupDecision
}

// NewGroupDecisionStore creates a new in-memory group decision store.
func NewGroupDecisionStore() *GroupDecisionStore {
	return &GroupDecisionStore{
		data: make(map[groupKey]domain.GroupDecision),
	}
}

// InsertBulk adds group decisions for a run. Fails on duplicate (run_id, node_id).
func (s *GroupDecisionStore) InsertBulk(_ context.Context, runID string, decisions []domain.GroupDecision) error {
	if runID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	seen := make(map[groupKey]bool, len(decisions))
	for _, d := range decisions {
		if d.NodeID == "" {
			return storage.ErrInvalidInput
		}
		key := groupKey{runID, d.NodeID}
		if _, exists := s.data[key]; exists || seen[key] {
			return storage.ErrDuplicateKey
		}
		seen[key] = true
	}

	for _, d := range decisions {
		s.data[groupKey{runID, d.NodeID}] = copyGroupDecision(d)
	}
	return nil
}

// GetByRun retrieves group decisions for a run, ordered by node_id.
func (s *GroupDecisionStore) GetByRun(_ context.Context, runID string) ([]domain.GroupDecision, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []domain.GroupDecision
	for key, d := range s.data {
		if key.runID == runID {
			result = append(result, copyGroupDecision(d))
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].NodeID < result[j].NodeID
	})
	return result, nil
}

func copyGroupDecision(in domain.GroupDecision) domain.GroupDecision {
	out := in
	out.Totals = maps.Clone(in.Totals)
	out.Votes = maps.Clone(in.Votes)
	return out
}

// Verify interface compliance at compile time.
var _ storage.GroupDecisionStore = (*GroupDecisionStore)(nil)
