/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package promptbuilder

import (
	"errors"
	"fmt"
	"strings"
	"unicode"
)

var errUnclosed = errors.New("unclosed placeholder: missing '}}'")

// segment is either literal text or a placeholder name.
type segment struct {
	text        string
	placeholder bool
}

// tokenize splits a template into literal and placeholder segments.
func tokenize(template string) ([]segment, error) {
	var out []segment
	for len(template) > 0 {
		start := strings.Index(template, "{{")
		if start == -1 {
			out = append(out, segment{text: template})
			break
		}
		if start > 0 {
			out = append(out, segment{text: template[:start]})
		}
		end := strings.Index(template[start:], "}}")
		if end == -1 {
			return nil, errUnclosed
		}
		name := strings.TrimSpace(template[start+2 : start+end])
		if !isIdentifier(name) {
			return nil, fmt.Errorf("invalid placeholder %q", name)
		}
		out = append(out, segment{text: name, placeholder: true})
		template = template[start+end+2:]
	}
	return out, nil
}

// isIdentifier reports whether s is a letter followed by letters, digits
// or underscores.
func isIdentifier(s string) bool {
	for i, r := range s {
		switch {
		case unicode.IsLetter(r):
		case i > 0 && (unicode.IsDigit(r) || r == '_'):
		default:
			return false
		}
	}
	return s != ""
}
