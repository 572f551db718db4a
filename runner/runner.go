/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Package runner evaluates stories in dependency order and aggregates their
// verdicts into a Report.
package runner

import (
	"context"
	"errors"
	"fmt"

	"github.com/acoyfellow/loop-demo/gates"
	"github.com/acoyfellow/loop-demo/stories"
	"github.com/chainguard-dev/clog"
)

// ErrBlocked is matched by the cause of a story skipped because one of its
// dependencies failed earlier in the same run.
var ErrBlocked = errors.New("blocked by failed dependency")

// BlockedError names the failed dependency that blocked a story.
type BlockedError struct {
	Dependency string
}

func (e *BlockedError) Error() string {
	return fmt.Sprintf("blocked by failed dependency: %s", e.Dependency)
}

// Is implements errors.Is matching.
func (e *BlockedError) Is(target error) bool {
	return target == ErrBlocked
}

// GateResolver binds stories to the gates that validate them.
type GateResolver interface {
	Resolve(set []stories.Story) (map[string]gates.Gate, error)
}

// Runner evaluates a fixed story set against a repository root.
// The order and the gate bindings are resolved once, in New.
type Runner struct {
	order []stories.Story
	gates map[string]gates.Gate
	root  string
}

// New resolves the execution order and binds every story to its gate.
// Errors match stories.ErrConfiguration.
func New(set []stories.Story, resolver GateResolver, root string) (*Runner, error) {
	order, err := stories.ResolveOrder(set)
	if err != nil {
		return nil, err
	}
	bound, err := resolver.Resolve(order)
	if err != nil {
		return nil, err
	}
	return &Runner{order: order, gates: bound, root: root}, nil
}

// Stories returns the stories in execution order.
func (r *Runner) Stories() []stories.Story {
	return append([]stories.Story(nil), r.order...)
}

// Run evaluates every story once. Execution continues past failures so the
// report reflects the whole repository; a story whose dependency failed is
// recorded as failed without evaluating its gate.
func (r *Runner) Run(ctx context.Context) *Report {
	log := clog.FromContext(ctx)

	report := &Report{Success: true, Stories: make([]Result, 0, len(r.order))}
	failed := make(map[string]struct{}, len(r.order))

	for _, s := range r.order {
		storyLog := log.With("story", s.ID)

		var v gates.Verdict
		if dep, blocked := firstFailed(s.DependsOn, failed); blocked {
			cause := &BlockedError{Dependency: dep}
			v = gates.Failed(cause, cause.Error())
		} else {
			v = gates.Evaluate(clog.WithLogger(ctx, storyLog), r.gates[s.ID], r.root)
		}

		if v.Succeeded() {
			storyLog.Infof("✓ %s: %s", s.ID, s.Title)
		} else {
			failed[s.ID] = struct{}{}
			report.Success = false
			storyLog.With("error", v.Err).Warnf("✗ %s: %s", s.ID, s.Title)
		}
		report.Stories = append(report.Stories, Result{StoryID: s.ID, Title: s.Title, Verdict: v})
	}
	return report
}

func firstFailed(deps []string, failed map[string]struct{}) (string, bool) {
	for _, dep := range deps {
		if _, ok := failed[dep]; ok {
			return dep, true
		}
	}
	return "", false
}

// Run resolves set and evaluates it once. It is a convenience for callers
// that do not keep a Runner across iterations.
func Run(ctx context.Context, set []stories.Story, resolver GateResolver, root string) (*Report, error) {
	r, err := New(set, resolver, root)
	if err != nil {
		return nil, err
	}
	return r.Run(ctx), nil
}
