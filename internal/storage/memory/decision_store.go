package memory

import (
	"context"
	"sort"
	"sync"

	"eb-evaluation-lab/internal/domain"
	"eb-evaluation-lab/internal/storage"
)

// decisionKey identifies a final decision (step = -1) or one sweep step.
type decisionKey struct {
	runID    string
	seriesID string
	step     int
}

// finalStep marks the final decision of a series.
const finalStep = -1

// DecisionStore is an in-memory implementation of storage.DecisionStore.
type DecisionStore struct {
	mu   sync.RWMutex
	data map[decisionKey]domain.SelectionDecision
}

// NewDecisionStore creates a new in-memory decision store.
func NewDecisionStore() *DecisionStore {
	return &DecisionStore{
		data: make(map[decisionKey]domain.SelectionDecision),
	}
}

// InsertBulk adds final decisions for a run. Fails on duplicate (run_id, series_id).
func (s *DecisionStore) InsertBulk(_ context.Context, runID string, decisions []domain.SelectionDecision) error {
	if runID == "" {
		return storage.ErrInvalidInput
	}
	keys := make([]decisionKey, len(decisions))
	for i, d := range decisions {
		if d.SeriesID == "" {
			return storage.ErrInvalidInput
		}
		keys[i] = decisionKey{runID, d.SeriesID, finalStep}
	}
	return s.insert(keys, decisions)
}

// InsertSweep adds the sweep decisions of one series in step order.
func (s *DecisionStore) InsertSweep(_ context.Context, runID, seriesID string, steps []domain.SelectionDecision) error {
	if runID == "" || seriesID == "" {
		return storage.ErrInvalidInput
	}
	keys := make([]decisionKey, len(steps))
	for i := range steps {
		keys[i] = decisionKey{runID, seriesID, i}
	}
	return s.insert(keys, steps)
}

func (s *DecisionStore) insert(keys []decisionKey, decisions []domain.SelectionDecision) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	seen := make(map[decisionKey]bool, len(keys))
	for _, key := range keys {
		if _, exists := s.data[key]; exists || seen[key] {
			return storage.ErrDuplicateKey
		}
		seen[key] = true
	}

	for i, key := range keys {
		d := decisions[i]
		d.SeriesID = key.seriesID
		s.data[key] = d
	}
	return nil
}

// GetByRun retrieves final decisions for a run, ordered by series_id.
func (s *DecisionStore) GetByRun(_ context.Context, runID string) ([]domain.SelectionDecision, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []domain.SelectionDecision
	for key, d := range s.data {
		if key.runID == runID && key.step == finalStep {
			result = append(result, d)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].SeriesID < result[j].SeriesID
	})
	return result, nil
}

// GetSweep retrieves the sweep decisions of one series, ordered by step.
func (s *DecisionStore) GetSweep(_ context.Context, runID, seriesID string) ([]domain.SelectionDecision, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	type stepped struct {
		step int
		d    domain.SelectionDecision
	}
	var found []stepped
	for key, d := range s.data {
		if key.runID == runID && key.seriesID == seriesID && key.step != finalStep {
			found = append(found, stepped{key.step, d})
		}
	}

	sort.Slice(found, func(i, j int) bool {
		return found[i].step < found[j].step
	})

	result := make([]domain.SelectionDecision, len(found))
	for i, f := range found {
		result[i] = f.d
	}
	return result, nil
}

// Verify interface compliance at compile time.
var _ storage.DecisionStore = (*DecisionStore)(nil)
