/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package runner_test

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/acoyfellow/loop-demo/gates"
	"github.com/acoyfellow/loop-demo/runner"
	"github.com/google/go-cmp/cmp"
)

func sampleReport() *runner.Report {
	return &runner.Report{
		Success: false,
		Stories: []runner.Result{
			{StoryID: "rs", Title: "Repo has required files", Verdict: gates.Success()},
			{StoryID: "ls", Title: "Loop script exists", Verdict: gates.Failed(errors.New("1 of 1 file checks failed"), "missing: scripts/loop.sh")},
		},
	}
}

func TestWriteReport(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".gateproof", "prd-report.json")
	if err := runner.WriteReport(path, sampleReport()); err != nil {
		t.Fatalf("WriteReport() error = %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}

	var got map[string]any
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("report is not JSON: %v", err)
	}
	want := map[string]any{
		"success": false,
		"stories": []any{
			map[string]any{"id": "rs", "title": "Repo has required files", "status": "success"},
			map[string]any{
				"id":          "ls",
				"title":       "Loop script exists",
				"status":      "failed",
				"error":       map[string]any{"message": "1 of 1 file checks failed"},
				"diagnostics": []any{"missing: scripts/loop.sh"},
			},
		},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("report (-want +got):\n%s", diff)
	}
}

func TestMarshalJSON(t *testing.T) {
	data, err := json.Marshal(sampleReport())
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	var doc runner.Document
	if err := json.Unmarshal(data, &doc); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if doc.Success || len(doc.Stories) != 2 || doc.Stories[1].Error == nil {
		t.Errorf("document: got = %+v", doc)
	}
}

func TestSummary(t *testing.T) {
	want := strings.Join([]string{
		"✓ rs: Repo has required files",
		"✗ ls: Loop script exists",
		"  Error: 1 of 1 file checks failed",
		"  missing: scripts/loop.sh",
		"",
	}, "\n")
	if diff := cmp.Diff(want, sampleReport().Summary()); diff != "" {
		t.Errorf("Summary() (-want +got):\n%s", diff)
	}
}

func TestWriteTable(t *testing.T) {
	var buf bytes.Buffer
	if err := sampleReport().WriteTable(&buf); err != nil {
		t.Fatalf("WriteTable() error = %v", err)
	}
	for _, want := range []string{"rs", "Loop script exists", "✅ success", "❌ failed", "1 of 1 file checks failed"} {
		if !strings.Contains(buf.String(), want) {
			t.Errorf("table missing %q:\n%s", want, buf.String())
		}
	}
}

func TestMarkdown(t *testing.T) {
	md := sampleReport().Markdown()
	if !strings.HasPrefix(md, "## Loop Report\n") {
		t.Errorf("Markdown() heading: got = %q", md)
	}
	if !strings.Contains(md, "1 of 2 stories passed.") {
		t.Errorf("Markdown() verdict missing:\n%s", md)
	}

	ok := &runner.Report{Success: true, Stories: []runner.Result{{StoryID: "a", Title: "A", Verdict: gates.Success()}}}
	if !strings.Contains(ok.Markdown(), "All 1 stories passed.") {
		t.Errorf("Markdown() verdict missing:\n%s", ok.Markdown())
	}
}

func TestSchema(t *testing.T) {
	s := runner.Schema()
	if diff := cmp.Diff([]string{"success", "stories"}, s.Required); diff != "" {
		t.Errorf("required (-want +got):\n%s", diff)
	}
	stories, ok := s.Properties.Get("stories")
	if !ok {
		t.Fatal("schema has no stories property")
	}
	if stories.Type != "array" || stories.Items == nil {
		t.Fatalf("stories: got type %q", stories.Type)
	}
	status, ok := stories.Items.Properties.Get("status")
	if !ok {
		t.Fatal("story schema has no status property")
	}
	if diff := cmp.Diff([]any{"success", "failed"}, status.Enum); diff != "" {
		t.Errorf("status enum (-want +got):\n%s", diff)
	}
}
