package governance

import (
	"fmt"
	"strings"
)

// RenderMarkdown renders governance decisions as a Markdown checklist.
// Decisions are rendered in the order given.
func RenderMarkdown(policy Policy, decisions []Decision) string {
	var sb strings.Builder

	sb.WriteString("# Governance Gate Report\n\n")

	// Policy
	sb.WriteString("## Policy\n\n")
	sb.WriteString(fmt.Sprintf("- HR@τ: τ = %g, minimum %.2f\n", policy.Tau, policy.HitRateMin))
	if policy.NSLMin != nil {
		sb.WriteString(fmt.Sprintf("- NSL minimum: %.2f\n", *policy.NSLMin))
	} else {
		sb.WriteString("- NSL minimum: not enforced\n")
	}
	sb.WriteString(fmt.Sprintf("- Minimum support: %d intervals\n\n", policy.MinSupport))

	admitted := 0
	for _, d := range decisions {
		if d.Admitted {
			admitted++
		}
	}
	sb.WriteString(fmt.Sprintf("Admitted: %d/%d candidates\n\n", admitted, len(decisions)))

	// Checklist
	sb.WriteString("## Checklist\n\n")
	sb.WriteString("| Series | Model | Criterion | Threshold | Actual | Pass |\n")
	sb.WriteString("|--------|-------|-----------|-----------|--------|------|\n")
	for _, d := range decisions {
		for _, c := range d.Criteria {
			passStr := "PASS"
			if !c.Pass {
				passStr = "FAIL"
			}
			sb.WriteString(fmt.Sprintf("| %s | %s | %s | %s | %s | %s |\n",
				d.SeriesID, d.ModelID, c.Name, c.Threshold, c.Actual, passStr))
		}
	}
	sb.WriteString("\n")

	// Signals averaged across sites
	sb.WriteString("## By Forecast Entity\n\n")
	sb.WriteString("| Entity | Model | Sites | Admitted | HR@τ | NSL | UD | CWSL |\n")
	sb.WriteString("|--------|-------|-------|----------|------|-----|----|------|\n")
	for _, s := range SummarizeByEntity(decisions) {
		sb.WriteString(fmt.Sprintf("| %s | %s | %d | %d | %.4f | %.4f | %.4f | %.4f |\n",
			s.EntityID, s.ModelID, s.Sites, s.Admitted, s.HitRate, s.NSL, s.UD, s.CWSL))
	}
	sb.WriteString("\n")

	// Rejections
	rejected := Rejected(decisions)
	sb.WriteString("## Rejections\n\n")
	if len(rejected) == 0 {
		sb.WriteString("No candidate was rejected.\n")
		return sb.String()
	}
	for _, d := range rejected {
		sb.WriteString(fmt.Sprintf("- %s / %s: %s\n", d.SeriesID, d.ModelID, strings.Join(d.Reasons, "; ")))
	}

	return sb.String()
}
