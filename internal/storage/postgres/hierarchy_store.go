package postgres

import (
	"context"
	"fmt"
	"sort"

	"github.com/jackc/pgx/v5"

	"eb-evaluation-lab/internal/domain"
	"eb-evaluation-lab/internal/storage"
)

// HierarchyStore implements storage.HierarchyStore using PostgreSQL.
type HierarchyStore struct {
	pool *Pool
}

// NewHierarchyStore creates a new HierarchyStore.
func NewHierarchyStore(pool *Pool) *HierarchyStore {
	return &HierarchyStore{pool: pool}
}

// Compile-time interface check.
var _ storage.HierarchyStore = (*HierarchyStore)(nil)

// InsertBulk adds multiple nodes atomically. Fails entire batch on any duplicate node id.
func (s *HierarchyStore) InsertBulk(ctx context.Context, nodes []domain.HierarchyNode) error {
	if len(nodes) == 0 {
		return nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `
		INSERT INTO hierarchy_nodes (node_id, parent_id, series_ids)
		VALUES ($1, $2, $3)
	`

	for _, n := range nodes {
		if n.ID == "" {
			return storage.ErrInvalidInput
		}
		seriesIDs := append([]string{}, n.SeriesIDs...)
		sort.Strings(seriesIDs)

		if _, err := tx.Exec(ctx, query, n.ID, n.ParentID, seriesIDs); err != nil {
			if isDuplicateKeyError(err) {
				return storage.ErrDuplicateKey
			}
			return fmt.Errorf("insert hierarchy node in bulk: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// GetAll retrieves every node ordered by id ASC.
func (s *HierarchyStore) GetAll(ctx context.Context) ([]domain.HierarchyNode, error) {
	query := `
		SELECT node_id, parent_id, series_ids
		FROM hierarchy_nodes
		ORDER BY node_id ASC
	`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("get hierarchy nodes: %w", err)
	}
	defer rows.Close()

	return scanNodes(rows)
}

// scanNodes scans hierarchy rows. An empty series array becomes nil.
func scanNodes(rows pgx.Rows) ([]domain.HierarchyNode, error) {
	var nodes []domain.HierarchyNode

	for rows.Next() {
		var n domain.HierarchyNode
		if err := rows.Scan(&n.ID, &n.ParentID, &n.SeriesIDs); err != nil {
			return nil, fmt.Errorf("scan hierarchy row: %w", err)
		}
		if len(n.SeriesIDs) == 0 {
			n.SeriesIDs = nil
		}
		nodes = append(nodes, n)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate hierarchy rows: %w", err)
	}

	return nodes, nil
}
