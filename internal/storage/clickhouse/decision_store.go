package clickhouse

import (
	"context"
	"fmt"
	"strconv"

	"eb-evaluation-lab/internal/domain"
	"eb-evaluation-lab/internal/storage"
)

// Decision kinds stored in selection_decisions.kind.
const (
	kindFinal = "final"
	kindSweep = "sweep"
)

// DecisionStore implements storage.DecisionStore using ClickHouse.
type DecisionStore struct {
	conn *Conn
}

// NewDecisionStore creates a new DecisionStore.
func NewDecisionStore(conn *Conn) *DecisionStore {
	return &DecisionStore{conn: conn}
}

// Compile-time interface check.
var _ storage.DecisionStore = (*DecisionStore)(nil)

// decisionRow is one selection_decisions row before insert.
type decisionRow struct {
	seriesID string
	kind     string
	step     uint32
	d        domain.SelectionDecision
}

func (r decisionRow) key() string {
	return r.seriesID + "|" + r.kind + "|" + strconv.FormatUint(uint64(r.step), 10)
}

// InsertBulk adds final decisions for a run. Fails on duplicate (run_id, series_id).
func (s *DecisionStore) InsertBulk(ctx context.Context, runID string, decisions []domain.SelectionDecision) error {
	rows := make([]decisionRow, len(decisions))
	for i, d := range decisions {
		if d.SeriesID == "" {
			return storage.ErrInvalidInput
		}
		rows[i] = decisionRow{seriesID: d.SeriesID, kind: kindFinal, d: d}
	}
	return s.insert(ctx, runID, rows)
}

// InsertSweep adds the sweep decisions of one series in step order.
func (s *DecisionStore) InsertSweep(ctx context.Context, runID, seriesID string, steps []domain.SelectionDecision) error {
	if seriesID == "" {
		return storage.ErrInvalidInput
	}
	rows := make([]decisionRow, len(steps))
	for i, d := range steps {
		rows[i] = decisionRow{seriesID: seriesID, kind: kindSweep, step: uint32(i), d: d}
	}
	return s.insert(ctx, runID, rows)
}

func (s *DecisionStore) insert(ctx context.Context, runID string, rows []decisionRow) error {
	if runID == "" {
		return storage.ErrInvalidInput
	}
	if len(rows) == 0 {
		return nil
	}

	existing, err := s.conn.existingKeys(ctx, "selection_decisions", runID, "series_id", "kind", "toString(step_index)")
	if err != nil {
		return fmt.Errorf("check exists: %w", err)
	}
	seen := make(map[string]bool, len(rows))
	for _, r := range rows {
		key := r.key()
		if existing[key] || seen[key] {
			return storage.ErrDuplicateKey
		}
		seen[key] = true
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO selection_decisions (
			run_id, series_id, kind, step_index,
			model_id, runner_up_id, margin, cost_ratio, candidate_count
		)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, r := range rows {
		err = batch.Append(
			runID, r.seriesID, r.kind, r.step,
			r.d.ModelID, r.d.RunnerUpID, r.d.Margin, r.d.CostRatio, uint32(r.d.CandidateCount),
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

// GetByRun retrieves final decisions for a run, ordered by series_id.
func (s *DecisionStore) GetByRun(ctx context.Context, runID string) ([]domain.SelectionDecision, error) {
	query := `
		SELECT series_id, model_id, runner_up_id, margin, cost_ratio, candidate_count
		FROM selection_decisions FINAL
		WHERE run_id = ? AND kind = ?
		ORDER BY series_id ASC
	`

	rows, err := s.conn.Query(ctx, query, runID, kindFinal)
	if err != nil {
		return nil, fmt.Errorf("query by run: %w", err)
	}
	defer rows.Close()

	return scanDecisions(rows)
}

// GetSweep retrieves the sweep decisions of one series, ordered by step.
func (s *DecisionStore) GetSweep(ctx context.Context, runID, seriesID string) ([]domain.SelectionDecision, error) {
	query := `
		SELECT series_id, model_id, runner_up_id, margin, cost_ratio, candidate_count
		FROM selection_decisions FINAL
		WHERE run_id = ? AND series_id = ? AND kind = ?
		ORDER BY step_index ASC
	`

	rows, err := s.conn.Query(ctx, query, runID, seriesID, kindSweep)
	if err != nil {
		return nil, fmt.Errorf("query sweep: %w", err)
	}
	defer rows.Close()

	return scanDecisions(rows)
}

func scanDecisions(rows chRows) ([]domain.SelectionDecision, error) {
	var decisions []domain.SelectionDecision

	for rows.Next() {
		var (
			d     domain.SelectionDecision
			count uint32
		)
		err := rows.Scan(&d.SeriesID, &d.ModelID, &d.RunnerUpID, &d.Margin, &d.CostRatio, &count)
		if err != nil {
			return nil, fmt.Errorf("scan decision row: %w", err)
		}
		d.CandidateCount = int(count)
		decisions = append(decisions, d)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate decision rows: %w", err)
	}

	return decisions, nil
}
