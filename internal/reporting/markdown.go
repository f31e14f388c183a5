package reporting

import (
	"fmt"
	"strings"
	"time"

	"eb-evaluation-lab/internal/serving"
)

// RenderMarkdown renders report as Markdown string.
func RenderMarkdown(r *Report) string {
	var sb strings.Builder

	// Header
	sb.WriteString("# Evaluation Report\n\n")
	sb.WriteString(fmt.Sprintf("Generated: %s\n\n", r.GeneratedAt.Format(time.RFC3339)))
	sb.WriteString(fmt.Sprintf("Run: %s | Config: %s | Cost ratio (cu/co): %.4g | Baseline: %s\n\n",
		r.RunID, r.ConfigName, r.CostRatio, r.Baseline))

	// Overview
	o := r.Overview
	sb.WriteString("## Overview\n\n")
	sb.WriteString("| Metric | Value |\n")
	sb.WriteString("|--------|-------|\n")
	sb.WriteString(fmt.Sprintf("| Series | %d |\n", o.SeriesCount))
	sb.WriteString(fmt.Sprintf("| Models | %d |\n", o.ModelCount))
	sb.WriteString(fmt.Sprintf("| Evaluations | %d |\n", o.EvaluationCount))
	sb.WriteString(fmt.Sprintf("| Swept Series | %d |\n", o.SweptSeries))
	sb.WriteString(fmt.Sprintf("| Stable Series | %d |\n", o.StableSeries))
	sb.WriteString(fmt.Sprintf("| Decision Boundaries | %d |\n", o.BoundaryCount))
	sb.WriteString(fmt.Sprintf("| Hierarchy Nodes | %d |\n", o.GroupCount))
	sb.WriteString(fmt.Sprintf("| Item Errors | %d |\n", o.ErrorCount))
	sb.WriteString("\n")

	// Model wins
	sb.WriteString("## Selected Models\n\n")
	if len(r.ModelWins) > 0 {
		sb.WriteString("| Model | Wins | Share |\n")
		sb.WriteString("|-------|------|-------|\n")
		for _, w := range r.ModelWins {
			sb.WriteString(fmt.Sprintf("| %s | %d | %.4f |\n", w.ModelID, w.Wins, w.Share))
		}
	} else {
		sb.WriteString("No selections available.\n")
	}
	sb.WriteString("\n")

	// Per-series selection
	sb.WriteString("## Per-Series Selection\n\n")
	if len(r.Selections) > 0 {
		sb.WriteString("| Series | Model | Runner-up | Margin | Candidates |\n")
		sb.WriteString("|--------|-------|-----------|--------|------------|\n")
		for _, s := range r.Selections {
			runnerUp := s.RunnerUpID
			if runnerUp == "" {
				runnerUp = "-"
			}
			sb.WriteString(fmt.Sprintf("| %s | %s | %s | %.4f | %d |\n",
				s.SeriesID, s.ModelID, runnerUp, s.Margin, s.Candidates))
		}
	} else {
		sb.WriteString("No selections available.\n")
	}
	sb.WriteString("\n")

	// Sweep
	sb.WriteString("## Cost-Ratio Sweep\n\n")
	if len(r.Sweeps) > 0 {
		sb.WriteString("| Series | Steps | Boundaries | Stable | Choices |\n")
		sb.WriteString("|--------|-------|------------|--------|---------|\n")
		for _, s := range r.Sweeps {
			sb.WriteString(fmt.Sprintf("| %s | %d | %d | %s | %s |\n",
				s.SeriesID, s.Steps, s.Boundaries, yesNo(s.Stable), s.Choices))
		}
		sb.WriteString("\n")

		if len(r.Boundaries) > 0 {
			sb.WriteString("### Decision Boundaries\n\n")
			sb.WriteString("| Series | Lower Ratio | Upper Ratio | From | To |\n")
			sb.WriteString("|--------|-------------|-------------|------|----|\n")
			for _, b := range r.Boundaries {
				sb.WriteString(fmt.Sprintf("| %s | %.4g | %.4g | %s | %s |\n",
					b.SeriesID, b.LowerRatio, b.UpperRatio, b.From, b.To))
			}
			sb.WriteString("\n")
		}
	} else {
		sb.WriteString("No sweep was run.\n\n")
	}

	// Hierarchy
	sb.WriteString("## Hierarchy\n\n")
	if len(r.Groups) > 0 {
		sb.WriteString("| Node | Model | Rule | Margin | Vote Margin | Members |\n")
		sb.WriteString("|------|-------|------|--------|-------------|---------|\n")
		for _, g := range r.Groups {
			sb.WriteString(fmt.Sprintf("| %s | %s | %s | %.4f | %d | %d |\n",
				g.NodeID, g.ModelID, g.Rule, g.Margin, g.VoteMargin, g.MemberCount))
		}
	} else {
		sb.WriteString("No hierarchy decisions available.\n")
	}
	sb.WriteString("\n")

	// Robustness
	sb.WriteString("## Robustness vs Baseline\n\n")
	if len(r.Robustness) > 0 {
		sb.WriteString("| Baseline | Series | Inversion Mean | P50 | P90 | Max | Rate Mean | Top-1 Agreement | Stability |\n")
		sb.WriteString("|----------|--------|----------------|-----|-----|-----|-----------|-----------------|-----------|\n")
		for _, s := range r.Robustness {
			sb.WriteString(fmt.Sprintf("| %s | %d | %.4f | %.4f | %.4f | %d | %.4f | %.4f | %.4f |\n",
				s.Baseline, s.SeriesCount, s.InversionMean, s.InversionMedian, s.InversionP90,
				s.InversionMax, s.InversionRateMean, s.TopOneAgreement, s.StabilityRate))
		}
	} else {
		sb.WriteString("No robustness summary available.\n")
	}
	sb.WriteString("\n")

	// Governance
	if g := r.Governance; g != nil {
		sb.WriteString("## Governance Gate\n\n")
		sb.WriteString(fmt.Sprintf("Admitted: %d/%d candidates (τ = %g, HR@τ >= %.2f)\n\n",
			g.Admitted(), len(g.Decisions), g.Policy.Tau, g.Policy.HitRateMin))
		var rejected []string
		for _, d := range g.Decisions {
			if !d.Admitted {
				rejected = append(rejected, fmt.Sprintf("- %s / %s: %s\n",
					d.SeriesID, d.ModelID, strings.Join(d.Reasons, "; ")))
			}
		}
		if len(rejected) > 0 {
			sb.WriteString("### Rejected Candidates\n\n")
			for _, line := range rejected {
				sb.WriteString(line)
			}
			sb.WriteString("\n")
		}
	}

	// Serving
	if len(r.Served) > 0 {
		counts := serving.Counts(r.Served)
		sb.WriteString("## Served Forecasts\n\n")
		sb.WriteString("| Source | Series |\n")
		sb.WriteString("|--------|--------|\n")
		for _, src := range []string{serving.SourceSelected, serving.SourceBaseline, serving.SourceUnadmitted} {
			sb.WriteString(fmt.Sprintf("| %s | %d |\n", src, counts[src]))
		}
		sb.WriteString("\n")
	}

	// Errors are always shown if present
	if len(r.Errors) > 0 {
		sb.WriteString("## Item Errors\n\n")
		for _, e := range r.Errors {
			sb.WriteString(fmt.Sprintf("- %s\n", e))
		}
		sb.WriteString("\n")
	}

	return sb.String()
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
