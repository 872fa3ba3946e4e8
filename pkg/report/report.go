// Package report persists and presents the outcome of pipeline stage
// runs. Each stage command writes a JSON report beside its other state
// so an interrupted or degraded run leaves an inspectable record, and
// prints the same summary to the terminal.
package report

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"typeporter/pkg/storage"
	"typeporter/pkg/ui"
)

// maxPrintedFailures caps the failure lines shown on the terminal; the
// saved report always carries the full list.
const maxPrintedFailures = 10

// Run records the outcome of one pipeline stage
type Run struct {
	Stage    string    `json:"stage"`
	Site     string    `json:"site,omitempty"`
	Started  time.Time `json:"started"`
	Finished time.Time `json:"finished"`

	// Counts keep the order they were added in, so reports read the
	// same on the terminal and in the file
	Counts []Count `json:"counts"`

	// Failures lists references that stayed unresolved when the run
	// ended
	Failures []Failure `json:"failures,omitempty"`
}

// Count is one labeled tally of a run
type Count struct {
	Name  string `json:"name"`
	Value int    `json:"value"`
}

// Failure is one reference the stage could not resolve, with the
// document it belongs to
type Failure struct {
	Document string `json:"document,omitempty"`
	Ref      string `json:"ref"`
	Reason   string `json:"reason,omitempty"`
}

// New starts a report for one stage run
func New(stage, site string) *Run {
	return &Run{
		Stage:   stage,
		Site:    site,
		Started: time.Now(),
	}
}

// Add appends a labeled count
func (r *Run) Add(name string, value int) {
	r.Counts = append(r.Counts, Count{Name: name, Value: value})
}

// AddFailure appends one unresolved reference
func (r *Run) AddFailure(document, ref, reason string) {
	r.Failures = append(r.Failures, Failure{
		Document: document,
		Ref:      ref,
		Reason:   reason,
	})
}

// Finish stamps the end of the run
func (r *Run) Finish() {
	r.Finished = time.Now()
}

// Duration returns the wall time of the run
func (r *Run) Duration() time.Duration {
	if r.Finished.IsZero() {
		return time.Since(r.Started)
	}
	return r.Finished.Sub(r.Started)
}

// Filename returns the report file name for a stage
func Filename(stage string) string {
	return stage + "_report.json"
}

// Save writes the report as indented JSON, atomically
func (r *Run) Save(path string) error {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal report: %w", err)
	}
	if err := storage.WriteFileAtomic(path, data); err != nil {
		return fmt.Errorf("failed to write report file: %w", err)
	}
	return nil
}

// Load reads a previously saved report
func Load(path string) (*Run, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read report file: %w", err)
	}

	var run Run
	if err := json.Unmarshal(data, &run); err != nil {
		return nil, fmt.Errorf("failed to unmarshal report: %w", err)
	}
	return &run, nil
}

// Print writes the run summary to the terminal. savedTo names the
// report file for runs with more failures than fit on screen; pass ""
// when the report was not persisted.
func (r *Run) Print(savedTo string) {
	fmt.Println()
	if len(r.Failures) == 0 {
		ui.PrintSuccess(fmt.Sprintf("%s finished in %s", r.Stage, r.Duration().Round(time.Millisecond)))
	} else {
		ui.PrintWarning(fmt.Sprintf("%s finished in %s with %d unresolved references",
			r.Stage, r.Duration().Round(time.Millisecond), len(r.Failures)))
	}

	for _, c := range r.Counts {
		ui.PrintInfo("  "+c.Name, fmt.Sprintf("%d", c.Value))
	}

	for i, f := range r.Failures {
		if i == maxPrintedFailures {
			fmt.Println(ui.Dim(fmt.Sprintf("  ... and %d more", len(r.Failures)-maxPrintedFailures)))
			break
		}
		line := "  " + f.Ref
		if f.Document != "" {
			line += " (in " + f.Document + ")"
		}
		if f.Reason != "" {
			line += ": " + f.Reason
		}
		fmt.Println(ui.Dim(line))
	}

	if len(r.Failures) > 0 && savedTo != "" {
		ui.PrintInfo("  full report", savedTo)
	}
}
