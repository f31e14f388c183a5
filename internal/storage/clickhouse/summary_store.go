package clickhouse

import (
	"context"
	"fmt"

	"eb-evaluation-lab/internal/domain"
	"eb-evaluation-lab/internal/storage"
)

// SummaryStore implements storage.SummaryStore using ClickHouse.
type SummaryStore struct {
	conn *Conn
}

// NewSummaryStore creates a new SummaryStore.
func NewSummaryStore(conn *Conn) *SummaryStore {
	return &SummaryStore{conn: conn}
}

// Compile-time interface check.
var _ storage.SummaryStore = (*SummaryStore)(nil)

// Insert adds a summary. Returns ErrDuplicateKey if (run_id, baseline) exists.
func (s *SummaryStore) Insert(ctx context.Context, runID string, r *domain.RobustnessSummary) error {
	if runID == "" || r == nil || r.Baseline == "" {
		return storage.ErrInvalidInput
	}

	exists, err := s.exists(ctx, runID, r.Baseline)
	if err != nil {
		return fmt.Errorf("check exists: %w", err)
	}
	if exists {
		return storage.ErrDuplicateKey
	}

	histogram := make(map[uint32]uint32, len(r.InversionHistogram))
	for inversions, n := range r.InversionHistogram {
		histogram[uint32(inversions)] = uint32(n)
	}

	query := `
		INSERT INTO robustness_summaries (
			run_id, baseline, min_ratio, max_ratio,
			series_count, swept_series_count,
			inversion_mean, inversion_p10, inversion_p25, inversion_median, inversion_p75, inversion_p90,
			inversion_max, inversion_rate_mean, inversion_histogram,
			stable_series, stability_rate, top_one_agreement
		) VALUES (
			?, ?, ?, ?,
			?, ?,
			?, ?, ?, ?, ?, ?,
			?, ?, ?,
			?, ?, ?
		)
	`

	err = s.conn.Exec(ctx, query,
		runID, r.Baseline, r.MinRatio, r.MaxRatio,
		uint32(r.SeriesCount), uint32(r.SweptSeriesCount),
		r.InversionMean, r.InversionP10, r.InversionP25, r.InversionMedian, r.InversionP75, r.InversionP90,
		uint32(r.InversionMax), r.InversionRateMean, histogram,
		uint32(r.StableSeries), r.StabilityRate, r.TopOneAgreement,
	)
	if err != nil {
		return fmt.Errorf("insert robustness summary: %w", err)
	}
	return nil
}

// GetByRun retrieves the summaries of a run, ordered by baseline.
func (s *SummaryStore) GetByRun(ctx context.Context, runID string) ([]*domain.RobustnessSummary, error) {
	query := `
		SELECT
			baseline, min_ratio, max_ratio,
			series_count, swept_series_count,
			inversion_mean, inversion_p10, inversion_p25, inversion_median, inversion_p75, inversion_p90,
			inversion_max, inversion_rate_mean, inversion_histogram,
			stable_series, stability_rate, top_one_agreement
		FROM robustness_summaries FINAL
		WHERE run_id = ?
		ORDER BY baseline ASC
	`

	rows, err := s.conn.Query(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("query by run: %w", err)
	}
	defer rows.Close()

	return scanSummaries(rows)
}

func (s *SummaryStore) exists(ctx context.Context, runID, baseline string) (bool, error) {
	query := `
		SELECT count(*) FROM robustness_summaries FINAL
		WHERE run_id = ? AND baseline = ?
	`

	var count uint64
	if err := s.conn.QueryRow(ctx, query, runID, baseline).Scan(&count); err != nil {
		return false, err
	}
	return count > 0, nil
}

func scanSummaries(rows chRows) ([]*domain.RobustnessSummary, error) {
	var summaries []*domain.RobustnessSummary

	for rows.Next() {
		var (
			r                    domain.RobustnessSummary
			seriesCount, swept   uint32
			inversionMax, stable uint32
			histogram            map[uint32]uint32
		)
		err := rows.Scan(
			&r.Baseline, &r.MinRatio, &r.MaxRatio,
			&seriesCount, &swept,
			&r.InversionMean, &r.InversionP10, &r.InversionP25, &r.InversionMedian, &r.InversionP75, &r.InversionP90,
			&inversionMax, &r.InversionRateMean, &histogram,
			&stable, &r.StabilityRate, &r.TopOneAgreement,
		)
		if err != nil {
			return nil, fmt.Errorf("scan summary row: %w", err)
		}

		r.SeriesCount = int(seriesCount)
		r.SweptSeriesCount = int(swept)
		r.InversionMax = int(inversionMax)
		r.StableSeries = int(stable)
		r.InversionHistogram = make(map[int]int, len(histogram))
		for inversions, n := range histogram {
			r.InversionHistogram[int(inversions)] = int(n)
		}
		summaries = append(summaries, &r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate summary rows: %w", err)
	}

	return summaries, nil
}
