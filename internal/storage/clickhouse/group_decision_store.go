package clickhouse

import (
	"context"
	"fmt"

	"eb-evaluation-lab/internal/domain"
	"eb-evaluation-lab/internal/storage"
)

// GroupDecisionStore implements storage.GroupDecisionStore using ClickHouse.
type GroupDecisionStore struct {
	conn *Conn
}

// NewGroupDecisionStore creates a new GroupDecisionStore.
func NewGroupDecisionStore(conn *Conn) *GroupDecisionStore {
	return &GroupDecisionStore{conn: conn}
}

// Compile-time interface check.
var _ storage.GroupDecisionStore = (*GroupDecisionStore)(nil)

// InsertBulk adds group decisions for a run. Fails on duplicate (run_id, node_id).
func (s *GroupDecisionStore) InsertBulk(ctx context.Context, runID string, decisions []domain.GroupDecision) error {
	if runID == "" {
		return storage.ErrInvalidInput
	}
	if len(decisions) == 0 {
		return nil
	}

	existing, err := s.conn.existingKeys(ctx, "group_decisions", runID, "node_id")
	if err != nil {
		return fmt.Errorf("check exists: %w", err)
	}
	seen := make(map[string]bool, len(decisions))
	for _, d := range decisions {
		if d.NodeID == "" {
			return storage.ErrInvalidInput
		}
		if existing[d.NodeID] || seen[d.NodeID] {
			return storage.ErrDuplicateKey
		}
		seen[d.NodeID] = true
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO group_decisions (
			run_id, node_id, model_id, rule, margin, vote_margin, member_count, totals, votes
		)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, d := range decisions {
		totals := d.Totals
		if totals == nil {
			totals = map[string]float64{}
		}
		votes := make(map[string]int64, len(d.Votes))
		for model, n := range d.Votes {
			votes[model] = int64(n)
		}

		err = batch.Append(
			runID, d.NodeID, d.ModelID, string(d.Rule),
			d.Margin, int32(d.VoteMargin), uint32(d.MemberCount),
			totals, votes,
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

// GetByRun retrieves group decisions for a run, ordered by node_id.
func (s *GroupDecisionStore) GetByRun(ctx context.Context, runID string) ([]domain.GroupDecision, error) {
	query := `
		SELECT node_id, model_id, rule, margin, vote_margin, member_count, totals, votes
		FROM group_decisions FINAL
		WHERE run_id = ?
		ORDER BY node_id ASC
	`

	rows, err := s.conn.Query(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("query by run: %w", err)
	}
	defer rows.Close()

	return scanGroupDecisions(rows)
}

// scanGroupDecisions scans group rows. Empty maps come back as nil.
func scanGroupDecisions(rows chRows) ([]domain.GroupDecision, error) {
	var decisions []domain.GroupDecision

	for rows.Next() {
		var (
			d          domain.GroupDecision
			rule       string
			voteMargin int32
			members    uint32
			totals     map[string]float64
			votes      map[string]int64
		)
		err := rows.Scan(&d.NodeID, &d.ModelID, &rule, &d.Margin, &voteMargin, &members, &totals, &votes)
		if err != nil {
			return nil, fmt.Errorf("scan group decision row: %w", err)
		}

		d.Rule = domain.AggregationRule(rule)
		d.VoteMargin = int(voteMargin)
		d.MemberCount = int(members)
		if len(totals) > 0 {
			d.Totals = totals
		}
		if len(votes) > 0 {
			d.Votes = make(map[string]int, len(votes))
			for model, n := range votes {
				d.Votes[model] = int(n)
			}
		}
		decisions = append(decisions, d)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate group decision rows: %w", err)
	}

	return decisions, nil
}
