package main

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/goccy/go-json"
	"github.com/pterm/pterm"
)

// printSummary renders one row per collection followed by the overall verdict.
func printSummary(w io.Writer, report *RunReport) error {
	data := pterm.TableData{{"Collection", "Expected", "Actual", "Status"}}
	succeeded := 0
	for _, res := range report.Results {
		status := "ok"
		if !res.Succeeded() {
			status = "FAILED: " + describeFailure(res.Err)
		} else {
			succeeded++
		}
		data = append(data, []string{
			res.Namespace + "." + res.Collection,
			strconv.Itoa(res.ExpectedCount),
			strconv.Itoa(res.ActualCount),
			status,
		})
	}

	if len(report.Results) > 0 {
		table, err := pterm.DefaultTable.WithHasHeader().WithData(data).Srender()
		if err != nil {
			return fmt.Errorf("render summary: %w", err)
		}
		fmt.Fprintln(w, table)
	}

	target := report.Target
	if report.DryRun {
		target = "memory (dry run)"
	}
	fmt.Fprintf(w, "%d of %d collections imported into %s on %s (%s mode)\n",
		succeeded, len(report.Results), report.Namespace, target, report.Mode)
	return nil
}

type jsonReport struct {
	RunID      string             `json:"run_id"`
	StartedAt  time.Time          `json:"started_at"`
	FinishedAt time.Time          `json:"finished_at"`
	SourceType string             `json:"source_type"`
	Source     string             `json:"source"`
	Target     string             `json:"target"`
	Namespace  string             `json:"namespace"`
	Mode       WriteMode          `json:"mode"`
	DryRun     bool               `json:"dry_run"`
	Documents  int                `json:"documents"`
	Success    bool               `json:"success"`
	Error      string             `json:"error,omitempty"`
	Results    []jsonResultReport `json:"collections"`
}

type jsonResultReport struct {
	Collection    string          `json:"collection"`
	ExpectedCount int             `json:"expected_count"`
	ActualCount   int             `json:"actual_count"`
	StoredCount   int64           `json:"stored_count"`
	State         CollectionState `json:"state"`
	ErrorKind     ErrorKind       `json:"error_kind,omitempty"`
	Error         string          `json:"error,omitempty"`
	DurationMS    int64           `json:"duration_ms"`
}

func newJSONReport(r *RunReport) jsonReport {
	out := jsonReport{
		RunID:      r.RunID.String(),
		StartedAt:  r.StartedAt.UTC(),
		FinishedAt: r.FinishedAt.UTC(),
		SourceType: r.SourceType,
		Source:     r.Source,
		Target:     r.Target,
		Namespace:  r.Namespace,
		Mode:       r.Mode,
		DryRun:     r.DryRun,
		Documents:  r.Documents,
		Success:    r.Succeeded(),
		Results:    make([]jsonResultReport, 0, len(r.Results)),
	}
	if r.Err != nil {
		out.Error = r.Err.Error()
	}
	for _, res := range r.Results {
		jr := jsonResultReport{
			Collection:    res.Collection,
			ExpectedCount: res.ExpectedCount,
			ActualCount:   res.ActualCount,
			StoredCount:   res.StoredCount,
			State:         res.State,
			DurationMS:    res.Duration.Milliseconds(),
		}
		if res.Err != nil {
			jr.ErrorKind = KindOf(res.Err)
			jr.Error = res.Err.Error()
		}
		out.Results = append(out.Results, jr)
	}
	return out
}

// writeReport writes the run report as indented JSON to path.
func writeReport(path string, report *RunReport) error {
	data, err := json.MarshalIndent(newJSONReport(report), "", "  ")
	if err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	return nil
}
