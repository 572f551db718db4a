/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Package filegate implements declarative gates over repository files:
// existence, executability, substring and pattern matches, and JSON keys.
package filegate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/acoyfellow/loop-demo/gates"
	"github.com/chainguard-dev/clog"
)

// Kind selects what a Check asserts.
type Kind string

const (
	// KindExists asserts the file exists.
	KindExists Kind = "exists"
	// KindExecutable asserts the file exists and has an execute bit set.
	KindExecutable Kind = "executable"
	// KindContains asserts the file contains Value.
	KindContains Kind = "contains"
	// KindMatches asserts the file matches the regular expression Value.
	// Patterns are compiled in multi-line mode.
	KindMatches Kind = "matches"
	// KindJSON asserts the file is a JSON object holding every dotted key in Keys.
	KindJSON Kind = "json"
)

// Check is one assertion about a file under the repository root.
type Check struct {
	Path  string   `json:"path" yaml:"path"`
	Kind  Kind     `json:"kind" yaml:"kind"`
	Value string   `json:"value,omitempty" yaml:"value,omitempty"`
	Keys  []string `json:"keys,omitempty" yaml:"keys,omitempty"`
	// Message replaces the default diagnostic when the check fails.
	Message string `json:"message,omitempty" yaml:"message,omitempty"`
}

// Gate evaluates every check and reports all failures, not just the first.
type Gate struct {
	checks   []Check
	patterns map[int]*regexp.Regexp
}

var _ gates.Gate = (*Gate)(nil)

// New validates the checks and compiles their patterns.
func New(checks ...Check) (*Gate, error) {
	if len(checks) == 0 {
		return nil, errors.New("file gate needs at least one check")
	}
	g := &Gate{checks: checks, patterns: make(map[int]*regexp.Regexp)}
	for i, c := range checks {
		if !filepath.IsLocal(c.Path) {
			return nil, fmt.Errorf("check %d: path %q must be relative to the repository root", i, c.Path)
		}
		switch c.Kind {
		case KindExists, KindExecutable:
		case KindContains:
			if c.Value == "" {
				return nil, fmt.Errorf("check %d: %s needs a value", i, c.Kind)
			}
		case KindMatches:
			re, err := regexp.Compile("(?m)" + c.Value)
			if err != nil {
				return nil, fmt.Errorf("check %d: compiling pattern: %w", i, err)
			}
			g.patterns[i] = re
		case KindJSON:
		default:
			return nil, fmt.Errorf("check %d: unknown kind %q", i, c.Kind)
		}
	}
	return g, nil
}

// Evaluate implements gates.Gate.
func (g *Gate) Evaluate(ctx context.Context, root string) gates.Verdict {
	log := clog.FromContext(ctx)

	var diagnostics []string
	failed := 0
	for i, c := range g.checks {
		if err := g.check(i, c, root); err != nil {
			failed++
			msg := err.Error()
			if c.Message != "" {
				msg = c.Message
			}
			log.With("path", c.Path).With("kind", string(c.Kind)).Infof("✗ %s", msg)
			diagnostics = append(diagnostics, msg)
			continue
		}
		log.With("path", c.Path).With("kind", string(c.Kind)).Infof("✓ %s", c.Path)
	}

	if failed > 0 {
		return gates.Failed(fmt.Errorf("%d of %d file checks failed", failed, len(g.checks)), diagnostics...)
	}
	return gates.Success()
}

func (g *Gate) check(i int, c Check, root string) error {
	full := filepath.Join(root, c.Path)
	info, err := os.Stat(full)
	if errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("missing: %s", c.Path)
	} else if err != nil {
		return fmt.Errorf("stat %s: %w", c.Path, err)
	}

	switch c.Kind {
	case KindExists:
		return nil
	case KindExecutable:
		if info.IsDir() || info.Mode().Perm()&0o111 == 0 {
			return fmt.Errorf("%s is not executable", c.Path)
		}
		return nil
	}

	data, err := os.ReadFile(full)
	if err != nil {
		return fmt.Errorf("reading %s: %w", c.Path, err)
	}

	switch c.Kind {
	case KindContains:
		if !strings.Contains(string(data), c.Value) {
			return fmt.Errorf("%s does not contain %q", c.Path, c.Value)
		}
	case KindMatches:
		if !g.patterns[i].Match(data) {
			return fmt.Errorf("%s does not match /%s/", c.Path, c.Value)
		}
	case KindJSON:
		var doc map[string]any
		if err := json.Unmarshal(data, &doc); err != nil {
			return fmt.Errorf("%s is not a JSON object: %w", c.Path, err)
		}
		for _, key := range c.Keys {
			if !hasKey(doc, key) {
				return fmt.Errorf("%s is missing key %q", c.Path, key)
			}
		}
	}
	return nil
}

// hasKey resolves a dotted key such as "scripts.loop" against doc.
func hasKey(doc map[string]any, key string) bool {
	var cur any = doc
	for _, part := range strings.Split(key, ".") {
		obj, ok := cur.(map[string]any)
		if !ok {
			return false
		}
		if cur, ok = obj[part]; !ok {
			return false
		}
	}
	return cur != nil
}
