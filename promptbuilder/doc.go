/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Package promptbuilder renders prompt templates with {{name}} placeholders.
//
// Templates are parsed once; every placeholder must be bound exactly once
// before Build succeeds. Bound values are substituted verbatim and are never
// re-scanned, so text taken from a failing report may contain braces:
//
//	p := promptbuilder.MustNewPrompt("Manifest:\n{{manifest}}\n\nFailure:\n{{failure}}")
//	p, err := p.Bind("manifest", string(raw))
//	...
//	p, err = p.Bind("failure", report.Summary())
//	...
//	text, err := p.Build()
//
// Binding returns a new Prompt, so a parsed template can be shared.
package promptbuilder
