package reporting

import (
	"fmt"
	"os"
	"path/filepath"

	"eb-evaluation-lab/internal/governance"
)

// Output file names written by WriteFiles.
const (
	ReportFile         = "EVALUATION_REPORT.md"
	EvaluationsFile    = "evaluations.csv"
	SelectionsFile     = "selections.csv"
	BoundariesFile     = "boundaries.csv"
	GroupDecisionsFile = "group_decisions.csv"
	GovernanceFile     = "GOVERNANCE_REPORT.md"
	ServedFile         = "served_forecasts.csv"
)

type outputFile struct {
	name    string
	content string
}

// WriteFiles renders r into dir and returns the written paths in write order.
// The governance report is written only when the run had a gate, the served
// forecasts only when something was served.
func WriteFiles(dir string, r *Report) ([]string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create output directory: %w", err)
	}

	outputs := []outputFile{
		{ReportFile, RenderMarkdown(r)},
		{EvaluationsFile, RenderEvaluationsCSV(r.Evaluations)},
		{SelectionsFile, RenderSelectionsCSV(r.Selections)},
		{BoundariesFile, RenderBoundariesCSV(r.Boundaries)},
		{GroupDecisionsFile, RenderGroupsCSV(r.Groups)},
	}
	if r.Governance != nil {
		outputs = append(outputs, outputFile{GovernanceFile, governance.RenderMarkdown(r.Governance.Policy, r.Governance.Decisions)})
	}

	if len(r.Served) > 0 {
		outputs = append(outputs, outputFile{ServedFile, RenderServedCSV(r.Served)})
	}

	paths := make([]string, 0, len(outputs))
	for _, out := range outputs {
		path := filepath.Join(dir, out.name)
		if err := os.WriteFile(path, []byte(out.content), 0644); err != nil {
			return nil, fmt.Errorf("write %s: %w", out.name, err)
		}
		paths = append(paths, path)
	}
	return paths, nil
}
