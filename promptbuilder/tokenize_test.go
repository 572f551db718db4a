/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package promptbuilder

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestIsIdentifier(t *testing.T) {
	valid := []string{"a", "Z", "manifest", "failure_tail", "tail2000", "CamelCase"}
	for _, s := range valid {
		if !isIdentifier(s) {
			t.Errorf("isIdentifier(%q): got = false, wanted = true", s)
		}
	}
	invalid := []string{"", " ", "2fast", "_x", "a-b", "a.b", "a b"}
	for _, s := range invalid {
		if isIdentifier(s) {
			t.Errorf("isIdentifier(%q): got = true, wanted = false", s)
		}
	}
}

func TestTokenize(t *testing.T) {
	tests := []struct {
		name     string
		template string
		want     []segment
	}{{
		name:     "plain",
		template: "no placeholders",
		want:     []segment{{text: "no placeholders"}},
	}, {
		name:     "leading and trailing",
		template: "{{a}} and {{ b }}",
		want:     []segment{{text: "a", placeholder: true}, {text: " and "}, {text: "b", placeholder: true}},
	}, {
		name:     "adjacent",
		template: "x{{a}}{{a}}y",
		want:     []segment{{text: "x"}, {text: "a", placeholder: true}, {text: "a", placeholder: true}, {text: "y"}},
	}, {
		name:     "empty",
		template: "",
		want:     nil,
	}}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tokenize(tt.template)
			if err != nil {
				t.Fatalf("tokenize() error = %v", err)
			}
			if diff := cmp.Diff(tt.want, got, cmp.AllowUnexported(segment{})); diff != "" {
				t.Errorf("tokenize() (-want +got):\n%s", diff)
			}
		})
	}
}

func TestTokenizeErrors(t *testing.T) {
	for _, template := range []string{"{{open", "a {{}} b", "{{not-valid}}", "{{ 1x }}"} {
		if _, err := tokenize(template); err == nil {
			t.Errorf("tokenize(%q): got nil error, wanted error", template)
		}
	}
}
