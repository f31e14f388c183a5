package clickhouse

import (
	"context"
	"fmt"

	"eb-evaluation-lab/internal/domain"
	"eb-evaluation-lab/internal/storage"
)

// EvaluationStore implements storage.EvaluationStore using ClickHouse.
type EvaluationStore struct {
	conn *Conn
}

// NewEvaluationStore creates a new EvaluationStore.
func NewEvaluationStore(conn *Conn) *EvaluationStore {
	return &EvaluationStore{conn: conn}
}

// Compile-time interface check.
var _ storage.EvaluationStore = (*EvaluationStore)(nil)

// InsertBulk adds results for a run atomically. Fails entire batch on any duplicate.
func (s *EvaluationStore) InsertBulk(ctx context.Context, runID string, results []domain.EvaluationResult) error {
	if runID == "" {
		return storage.ErrInvalidInput
	}
	if len(results) == 0 {
		return nil
	}

	// ReplacingMergeTree would replace silently; append-only semantics are checked here
	existing, err := s.conn.existingKeys(ctx, "evaluation_results", runID, "series_id", "model_id")
	if err != nil {
		return fmt.Errorf("check exists: %w", err)
	}
	seen := make(map[string]bool, len(results))
	for _, r := range results {
		if r.SeriesID == "" || r.ModelID == "" {
			return storage.ErrInvalidInput
		}
		key := r.SeriesID + "|" + r.ModelID
		if existing[key] || seen[key] {
			return storage.ErrDuplicateKey
		}
		seen[key] = true
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO evaluation_results (
			run_id, series_id, model_id, raw_score, adjusted_score, penalty, rank
		)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, r := range results {
		err = batch.Append(
			runID, r.SeriesID, r.ModelID,
			r.RawScore, r.AdjustedScore, r.Penalty, uint32(r.Rank),
		)
		if err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}
	return nil
}

// GetByRun retrieves results for a run, ordered by series_id, rank.
func (s *EvaluationStore) GetByRun(ctx context.Context, runID string) ([]domain.EvaluationResult, error) {
	query := `
		SELECT series_id, model_id, raw_score, adjusted_score, penalty, rank
		FROM evaluation_results FINAL
		WHERE run_id = ?
		ORDER BY series_id ASC, rank ASC, model_id ASC
	`

	rows, err := s.conn.Query(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("query by run: %w", err)
	}
	defer rows.Close()

	return scanEvaluationResults(rows)
}

func scanEvaluationResults(rows chRows) ([]domain.EvaluationResult, error) {
	var results []domain.EvaluationResult

	for rows.Next() {
		var (
			r    domain.EvaluationResult
			rank uint32
		)
		err := rows.Scan(&r.SeriesID, &r.ModelID, &r.RawScore, &r.AdjustedScore, &r.Penalty, &rank)
		if err != nil {
			return nil, fmt.Errorf("scan evaluation row: %w", err)
		}
		r.Rank = int(rank)
		results = append(results, r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate evaluation rows: %w", err)
	}

	return results, nil
}
