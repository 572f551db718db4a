/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package runner

import (
	"fmt"
	"io"
	"strings"

	"github.com/invopop/jsonschema"
	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/renderer"
	"github.com/olekukonko/tablewriter/tw"
)

// reportTable builds a markdown-styled table so the same rendering reads well
// in a terminal and in a GitHub step summary.
func reportTable(w io.Writer) *tablewriter.Table {
	cfg := tablewriter.Config{
		Header: tw.CellConfig{
			Alignment:  tw.CellAlignment{Global: tw.AlignLeft},
			Formatting: tw.CellFormatting{AutoFormat: tw.Off},
		},
		Row: tw.CellConfig{
			Alignment: tw.CellAlignment{Global: tw.AlignLeft},
		},
		MaxWidth: 120,
		Behavior: tw.Behavior{TrimSpace: tw.Off},
	}
	return tablewriter.NewTable(w,
		tablewriter.WithConfig(cfg),
		tablewriter.WithHeader([]string{"Status", "Story", "Title", "Error"}),
		tablewriter.WithRenderer(renderer.NewBlueprint()),
		tablewriter.WithRendition(tw.Rendition{
			Symbols: tw.NewSymbols(tw.StyleMarkdown),
			Borders: tw.Border{
				Left:   tw.On,
				Top:    tw.Off,
				Right:  tw.On,
				Bottom: tw.Off,
			},
		}),
		tablewriter.WithRowAutoWrap(tw.WrapNone),
	)
}

// WriteTable renders one row per story.
func (r *Report) WriteTable(w io.Writer) error {
	table := reportTable(w)
	for _, res := range r.Stories {
		status := "✅ success"
		errText := ""
		if !res.Verdict.Succeeded() {
			status = "❌ failed"
			if res.Verdict.Err != nil {
				errText = strings.ReplaceAll(res.Verdict.Err.Error(), "\n", " ")
			}
		}
		if err := table.Append([]string{status, res.StoryID, res.Title, errText}); err != nil {
			return fmt.Errorf("appending row: %w", err)
		}
	}
	return table.Render()
}

// Markdown renders the report as a markdown section with a heading, a verdict
// line and the story table.
func (r *Report) Markdown() string {
	var sb strings.Builder
	sb.WriteString("## Loop Report\n\n")
	passed := len(r.Stories) - len(r.Failed())
	if r.Success {
		sb.WriteString(fmt.Sprintf("All %d stories passed.\n\n", len(r.Stories)))
	} else {
		sb.WriteString(fmt.Sprintf("%d of %d stories passed.\n\n", passed, len(r.Stories)))
	}
	_ = r.WriteTable(&sb)
	return sb.String()
}

// Schema returns the JSON schema of the serialized report.
func Schema() *jsonschema.Schema {
	reflector := jsonschema.Reflector{
		RequiredFromJSONSchemaTags: true,
		ExpandedStruct:             true,
		DoNotReference:             true,
	}
	return reflector.Reflect(&Document{})
}
