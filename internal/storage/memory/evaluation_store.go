package memory

import (
	"context"
	"sort"
	"sync"

	"eb-evaluation-lab/internal/domain"
	"eb-evaluation-lab/internal/storage"
)

// evaluationKey is the composite primary key (run_id, series_id, model_id).
type evaluationKey struct {
	runID    string
	seriesID string
	modelID  string
}

// EvaluationStore is an in-memory implementation of storage.EvaluationStore.
type EvaluationStore struct {
	mu   sync.RWMutex
	data map[evaluationKey]domain.EvaluationResult
}

// NewEvaluationStore creates a new in-memory evaluation store.
func NewEvaluationStore() *EvaluationStore {
	return &EvaluationStore{
		data: make(map[evaluationKey]domain.EvaluationResult),
	}
}

// InsertBulk adds results for a run. Fails entire batch on any duplicate.
func (s *EvaluationStore) InsertBulk(_ context.Context, runID string, results []domain.EvaluationResult) error {
	if runID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	seen := make(map[evaluationKey]bool, len(results))
	for _, r := range results {
		if r.SeriesID == "" || r.ModelID == "" {
			return storage.ErrInvalidInput
		}
		key := evaluationKey{runID, r.SeriesID, r.ModelID}
		if _, exists := s.data[key]; exists || seen[key] {
			return storage.ErrDuplicateKey
		}
		seen[key] = true
	}

	for _, r := range results {
		s.data[evaluationKey{runID, r.SeriesID, r.ModelID}] = r
	}
	return nil
}

// GetByRun retrieves results for a run, ordered by series_id, rank.
func (s *EvaluationStore) GetByRun(_ context.Context, runID string) ([]domain.EvaluationResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []domain.EvaluationResult
	for key, r := range s.data {
		if key.runID == runID {
			result = append(result, r)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].SeriesID != result[j].SeriesID {
			return result[i].SeriesID < result[j].SeriesID
		}
		if result[i].Rank != result[j].Rank {
			return result[i].Rank < result[j].Rank
		}
		return result[i].ModelID < result[j].ModelID
	})
	return result, nil
}

// Verify interface compliance at compile time.
var _ storage.EvaluationStore = (*EvaluationStore)(nil)
