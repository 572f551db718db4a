/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package promptbuilder

import (
	"fmt"
	"maps"
	"strings"

	"gopkg.in/yaml.v3"
)

// Prompt is a parsed template together with its bindings.
type Prompt struct {
	segments []segment
	values   map[string]*string
}

// NewPrompt parses template and collects its placeholders.
func NewPrompt(template string) (*Prompt, error) {
	segs, err := tokenize(template)
	if err != nil {
		return nil, err
	}
	values := make(map[string]*string)
	for _, s := range segs {
		if s.placeholder {
			values[s.text] = nil
		}
	}
	return &Prompt{segments: segs, values: values}, nil
}

// MustNewPrompt is NewPrompt for package-level templates; it panics on a
// malformed template.
func MustNewPrompt(template string) *Prompt {
	return Must(NewPrompt(template))
}

// Must panics if err is non-nil.
func Must(p *Prompt, err error) *Prompt {
	if err != nil {
		panic(err)
	}
	return p
}

// Placeholders returns the names of every placeholder, bound or not.
func (p *Prompt) Placeholders() map[string]struct{} {
	out := make(map[string]struct{}, len(p.values))
	for name := range p.values {
		out[name] = struct{}{}
	}
	return out
}

// Bind returns a copy of p with value substituted for name.
func (p *Prompt) Bind(name, value string) (*Prompt, error) {
	cur, ok := p.values[name]
	if !ok {
		return nil, fmt.Errorf("placeholder %q not found in template", name)
	}
	if cur != nil {
		return nil, fmt.Errorf("placeholder %q already bound", name)
	}
	next := &Prompt{segments: p.segments, values: maps.Clone(p.values)}
	next.values[name] = &value
	return next, nil
}

// BindYAML binds data marshaled as YAML.
func (p *Prompt) BindYAML(name string, data any) (*Prompt, error) {
	b, err := yaml.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("marshaling %q as YAML: %w", name, err)
	}
	return p.Bind(name, strings.TrimSuffix(string(b), "\n"))
}

// Build renders the prompt. Every placeholder must be bound.
func (p *Prompt) Build() (string, error) {
	var sb strings.Builder
	for _, s := range p.segments {
		if !s.placeholder {
			sb.WriteString(s.text)
			continue
		}
		v := p.values[s.text]
		if v == nil {
			return "", fmt.Errorf("unbound placeholder: %s", s.text)
		}
		sb.WriteString(*v)
	}
	return sb.String(), nil
}
