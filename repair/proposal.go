/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package repair

import (
	"fmt"
	"strings"
)

const (
	fileMarker = "---FILE:"
	endMarker  = "---END---"
)

// Proposal is the full replacement content of one file, relative to the
// repository root.
type Proposal struct {
	Path    string `json:"path"`
	Content string `json:"content"`
}

// Parse extracts the file blocks of a repair response:
//
//	---FILE: path/to/file---
//	contents
//	---END---
//
// Content runs from the line after the header up to the end marker. Text
// outside blocks is ignored. An unterminated block, a block that opens
// another block before it ends, or an empty path yields ErrMalformedResponse.
// A response with no blocks yields an empty slice and no error.
func Parse(text string) ([]Proposal, error) {
	var out []Proposal
	for n := 1; ; n++ {
		start := strings.Index(text, fileMarker)
		if start == -1 {
			return out, nil
		}
		text = text[start+len(fileMarker):]

		nl := strings.IndexByte(text, '\n')
		if nl == -1 {
			return nil, fmt.Errorf("%w: block %d: header is not terminated by a newline", ErrMalformedResponse, n)
		}
		header := strings.TrimRight(text[:nl], "\r")
		if !strings.HasSuffix(header, "---") {
			return nil, fmt.Errorf("%w: block %d: header %q does not end with ---", ErrMalformedResponse, n, header)
		}
		path := strings.TrimSpace(strings.TrimSuffix(header, "---"))
		if path == "" {
			return nil, fmt.Errorf("%w: block %d: empty path", ErrMalformedResponse, n)
		}
		text = text[nl+1:]

		end := strings.Index(text, endMarker)
		if end == -1 {
			return nil, fmt.Errorf("%w: block %d (%s): missing %s", ErrMalformedResponse, n, path, endMarker)
		}
		content := text[:end]
		if strings.Contains(content, fileMarker) {
			return nil, fmt.Errorf("%w: block %d (%s): nested %s", ErrMalformedResponse, n, path, fileMarker)
		}
		out = append(out, Proposal{Path: path, Content: content})
		text = text[end+len(endMarker):]
	}
}
