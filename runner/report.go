/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package runner

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/acoyfellow/loop-demo/gates"
)

// Result is the outcome of one story in one run. Results are never mutated
// after the run that created them.
type Result struct {
	StoryID string
	Title   string
	Verdict gates.Verdict
}

// Report aggregates every story result of one run, in run order.
type Report struct {
	// Success is true iff every result succeeded.
	Success bool
	Stories []Result
}

// Failed returns the results that did not succeed.
func (r *Report) Failed() []Result {
	var out []Result
	for _, res := range r.Stories {
		if !res.Verdict.Succeeded() {
			out = append(out, res)
		}
	}
	return out
}

// Document is the serialized form of a Report.
type Document struct {
	Success bool            `json:"success" jsonschema:"required,description=True iff every story succeeded"`
	Stories []StoryDocument `json:"stories" jsonschema:"required,description=Story outcomes in run order"`
}

// StoryDocument is the serialized form of a Result.
type StoryDocument struct {
	ID          string         `json:"id" jsonschema:"required"`
	Title       string         `json:"title" jsonschema:"required"`
	Status      gates.Status   `json:"status" jsonschema:"required,enum=success,enum=failed"`
	Error       *ErrorDocument `json:"error,omitempty"`
	Diagnostics []string       `json:"diagnostics,omitempty"`
}

// ErrorDocument carries the message of a failure cause.
type ErrorDocument struct {
	Message string `json:"message" jsonschema:"required"`
}

// Document converts r to its serialized form.
func (r *Report) Document() Document {
	doc := Document{Success: r.Success, Stories: make([]StoryDocument, 0, len(r.Stories))}
	for _, res := range r.Stories {
		sd := StoryDocument{
			ID:          res.StoryID,
			Title:       res.Title,
			Status:      res.Verdict.Status,
			Diagnostics: res.Verdict.Diagnostics,
		}
		if res.Verdict.Err != nil {
			sd.Error = &ErrorDocument{Message: res.Verdict.Err.Error()}
		}
		doc.Stories = append(doc.Stories, sd)
	}
	return doc
}

// MarshalJSON implements json.Marshaler using the Document form.
func (r *Report) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.Document())
}

// WriteReport serializes r as JSON to path, creating parent directories.
func WriteReport(path string, r *Report) error {
	data, err := json.MarshalIndent(r.Document(), "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling report: %w", err)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating report directory: %w", err)
		}
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("writing report: %w", err)
	}
	return nil
}

// Summary renders one line per story, followed by the error and diagnostics
// of failed stories. It is the text handed to the repair step.
func (r *Report) Summary() string {
	var sb strings.Builder
	for _, res := range r.Stories {
		mark := "✓"
		if !res.Verdict.Succeeded() {
			mark = "✗"
		}
		fmt.Fprintf(&sb, "%s %s: %s\n", mark, res.StoryID, res.Title)
		if res.Verdict.Succeeded() {
			continue
		}
		if res.Verdict.Err != nil {
			fmt.Fprintf(&sb, "  Error: %s\n", res.Verdict.Err)
		}
		for _, line := range res.Verdict.Diagnostics {
			fmt.Fprintf(&sb, "  %s\n", line)
		}
	}
	return sb.String()
}
