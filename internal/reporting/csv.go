package reporting

import (
	"encoding/csv"
	"strconv"
	"strings"

	"eb-evaluation-lab/internal/domain"
	"eb-evaluation-lab/internal/serving"
)

// RenderEvaluationsCSV renders per-candidate scores as CSV.
func RenderEvaluationsCSV(results []domain.EvaluationResult) string {
	rows := make([][]string, len(results))
	for i, r := range results {
		rows[i] = []string{
			r.SeriesID, r.ModelID,
			formatFloat(r.RawScore), formatFloat(r.AdjustedScore), formatFloat(r.Penalty),
			strconv.Itoa(r.Rank),
		}
	}
	return renderCSV([]string{"series_id", "model_id", "raw_score", "adjusted_score", "penalty", "rank"}, rows)
}

// RenderSelectionsCSV renders final decisions as CSV.
func RenderSelectionsCSV(selections []SelectionRow) string {
	rows := make([][]string, len(selections))
	for i, s := range selections {
		rows[i] = []string{
			s.SeriesID, s.ModelID, s.RunnerUpID,
			formatFloat(s.Margin), formatFloat(s.CostRatio), strconv.Itoa(s.Candidates),
		}
	}
	return renderCSV([]string{"series_id", "model_id", "runner_up_id", "margin", "cost_ratio", "candidates"}, rows)
}

// RenderBoundariesCSV renders sweep decision boundaries as CSV.
func RenderBoundariesCSV(boundaries []BoundaryRow) string {
	rows := make([][]string, len(boundaries))
	for i, b := range boundaries {
		rows[i] = []string{b.SeriesID, formatFloat(b.LowerRatio), formatFloat(b.UpperRatio), b.From, b.To}
	}
	return renderCSV([]string{"series_id", "lower_ratio", "upper_ratio", "from_model", "to_model"}, rows)
}

// RenderGroupsCSV renders hierarchy node decisions as CSV.
func RenderGroupsCSV(groups []GroupRow) string {
	rows := make([][]string, len(groups))
	for i, g := range groups {
		rows[i] = []string{
			g.NodeID, g.ModelID, string(g.Rule),
			formatFloat(g.Margin), strconv.Itoa(g.VoteMargin), strconv.Itoa(g.MemberCount),
		}
	}
	return renderCSV([]string{"node_id", "model_id", "rule", "margin", "vote_margin", "member_count"}, rows)
}

// RenderServedCSV renders served forecasts as CSV, one row per interval.
// Missing selected or baseline values are written as NaN.
func RenderServedCSV(served []*serving.Forecast) string {
	var rows [][]string
	for _, f := range served {
		for _, p := range f.Points {
			rows = append(rows, []string{
				f.SeriesID, f.EntityID, strconv.FormatInt(p.TimestampMs, 10),
				formatFloat(p.Served), f.Source, f.ServedModelID, f.SelectedModelID,
				formatFloat(p.Selected), formatFloat(p.Baseline), strconv.FormatBool(f.Admitted),
			})
		}
	}
	return renderCSV([]string{
		"series_id", "forecast_entity_id", "timestamp_ms", "y_served", "served_source",
		"served_model", "selected_model", "y_selected", "y_baseline", "admitted",
	}, rows)
}

func renderCSV(header []string, rows [][]string) string {
	var sb strings.Builder
	w := csv.NewWriter(&sb)
	// Writes to a strings.Builder cannot fail
	_ = w.Write(header)
	_ = w.WriteAll(rows)
	return sb.String()
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', 6, 64)
}
