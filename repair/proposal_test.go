/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package repair_test

import (
	"errors"
	"testing"

	"github.com/acoyfellow/loop-demo/repair"
	"github.com/google/go-cmp/cmp"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []repair.Proposal
	}{{
		name:  "no blocks",
		input: "I could not figure this out.",
		want:  nil,
	}, {
		name:  "single block with chatter",
		input: "Here you go:\n---FILE: scripts/loop.sh---\n#!/bin/sh\necho loop\n---END---\nDone.",
		want:  []repair.Proposal{{Path: "scripts/loop.sh", Content: "#!/bin/sh\necho loop\n"}},
	}, {
		name:  "multiple blocks and spacing",
		input: "---FILE:   README.md  ---\n# loop\n---END---\n\n---FILE: a/b.txt---\n---END---",
		want: []repair.Proposal{
			{Path: "README.md", Content: "# loop\n"},
			{Path: "a/b.txt", Content: ""},
		},
	}, {
		name:  "crlf header",
		input: "---FILE: x.txt---\r\nhi\r\n---END---",
		want:  []repair.Proposal{{Path: "x.txt", Content: "hi\r\n"}},
	}, {
		name:  "content with dashes",
		input: "---FILE: notes.md---\n--- not a marker ---\n---END---",
		want:  []repair.Proposal{{Path: "notes.md", Content: "--- not a marker ---\n"}},
	}}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := repair.Parse(tt.input)
			if err != nil {
				t.Fatalf("Parse() error = %v", err)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("Parse() (-want +got):\n%s", diff)
			}
		})
	}
}

func TestParseMalformed(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{name: "unterminated", input: "---FILE: a.txt---\ncontent"},
		{name: "nested", input: "---FILE: a.txt---\nx\n---FILE: b.txt---\ny\n---END---"},
		{name: "empty path", input: "---FILE: ---\nx\n---END---"},
		{name: "header without newline", input: "---FILE: a.txt---"},
		{name: "header without closing dashes", input: "---FILE: a.txt\nx\n---END---"},
		{name: "second block unterminated", input: "---FILE: a---\n---END---\n---FILE: b---\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := repair.Parse(tt.input)
			if !errors.Is(err, repair.ErrMalformedResponse) {
				t.Errorf("Parse() error: got = %v, wanted %v", err, repair.ErrMalformedResponse)
			}
			if !errors.Is(err, repair.ErrUpstream) {
				t.Errorf("Parse() error: got = %v, wanted %v", err, repair.ErrUpstream)
			}
		})
	}
}
