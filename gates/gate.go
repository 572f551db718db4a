/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Package gates defines the validation capability shared by every story gate,
// the verdict it produces, and a registry that binds stories to gates.
package gates

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"

	"github.com/chainguard-dev/clog"
)

// Status is the outcome of a gate evaluation.
type Status string

const (
	StatusSuccess Status = "success"
	StatusFailed  Status = "failed"
)

// Verdict is the result of evaluating one gate.
type Verdict struct {
	Status Status
	// Diagnostics are ordered, human readable lines explaining the verdict.
	Diagnostics []string
	// Err is the structured cause of a failure, if any.
	Err error
}

// Succeeded reports whether the verdict is a success.
func (v Verdict) Succeeded() bool {
	return v.Status == StatusSuccess
}

// Success returns a successful verdict.
func Success(diagnostics ...string) Verdict {
	return Verdict{Status: StatusSuccess, Diagnostics: diagnostics}
}

// Failed returns a failed verdict with the given cause.
func Failed(err error, diagnostics ...string) Verdict {
	return Verdict{Status: StatusFailed, Err: err, Diagnostics: diagnostics}
}

// Gate validates one requirement against the repository rooted at root.
//
// Implementations must not mutate the repository. Progress output belongs on
// the context logger, not in the verdict.
type Gate interface {
	Evaluate(ctx context.Context, root string) Verdict
}

// Func adapts an ordinary function to the Gate interface.
type Func func(ctx context.Context, root string) Verdict

// Evaluate implements Gate.
func (f Func) Evaluate(ctx context.Context, root string) Verdict {
	return f(ctx, root)
}

// FaultError is the cause recorded when a gate panics.
type FaultError struct {
	Value any
	Stack []byte
}

func (e *FaultError) Error() string {
	return fmt.Sprintf("gate fault: %v", e.Value)
}

// Unwrap exposes a panicked error value.
func (e *FaultError) Unwrap() error {
	if err, ok := e.Value.(error); ok {
		return err
	}
	return nil
}

// Evaluate runs g and converts any internal fault into a failed verdict.
// A verdict without a recognised status is treated as a failure.
func Evaluate(ctx context.Context, g Gate, root string) (v Verdict) {
	defer func() {
		if r := recover(); r != nil {
			fault := &FaultError{Value: r, Stack: debug.Stack()}
			clog.FromContext(ctx).With("error", fault.Error()).Error("Gate panicked")
			v = Failed(fault, fault.Error())
		}
	}()

	v = g.Evaluate(ctx, root)
	switch v.Status {
	case StatusSuccess:
		if v.Err != nil {
			// A success with a cause is contradictory; trust the cause.
			v.Status = StatusFailed
		}
	case StatusFailed:
		if v.Err == nil {
			v.Err = errors.New("gate failed")
		}
	default:
		unknown := fmt.Errorf("unknown gate status %q", v.Status)
		v.Diagnostics = append(v.Diagnostics, unknown.Error())
		v.Status = StatusFailed
		if v.Err == nil {
			v.Err = unknown
		}
	}
	return v
}
