/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Package loop drives a repository to convergence: run every gate, and
// while any fail, ask for a repair, apply it and run again.
//
// Each iteration moves through these states:
//
//	CheckingPause -> RunningGates -> Converged
//	                              -> InvokingRepair -> CheckingPause
//
// Converged and Halted are terminal. The pause check is consulted before
// the gates run and again before a repair is requested.
package loop

import (
	"context"
	"errors"
	"fmt"

	"github.com/acoyfellow/loop-demo/repair"
	"github.com/acoyfellow/loop-demo/runner"
	"github.com/chainguard-dev/clog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	oteltrace "go.opentelemetry.io/otel/trace"
)

// DefaultMaxNoProgress is the no-progress bound used by the CLI.
const DefaultMaxNoProgress = 3

// State is a controller state.
type State string

const (
	StateCheckingPause  State = "checking_pause"
	StateRunningGates   State = "running_gates"
	StateInvokingRepair State = "invoking_repair"
	StateConverged      State = "converged"
	StateHalted         State = "halted"
)

// Reason explains a Halted outcome.
type Reason string

const (
	ReasonNone        Reason = ""
	ReasonPaused      Reason = "paused"
	ReasonExhausted   Reason = "exhausted"
	ReasonInterrupted Reason = "interrupted"
)

// Pass runs every gate once. *runner.Runner implements it.
type Pass interface {
	Run(ctx context.Context) *runner.Report
}

// Applier writes accepted proposals into the repository.
type Applier func(ctx context.Context, proposals []repair.Proposal) error

// ApplyTo returns an Applier that writes proposals under root.
func ApplyTo(root string, opts ...repair.ApplyOption) Applier {
	return func(ctx context.Context, proposals []repair.Proposal) error {
		_, err := repair.Apply(ctx, root, proposals, opts...)
		return err
	}
}

// Outcome is the terminal result of Run.
type Outcome struct {
	State  State
	Reason Reason
	// Report is the report of the last pass, nil if no pass ran.
	Report *runner.Report
	// Iterations counts the gate passes that ran.
	Iterations int
	// NoProgress counts consecutive iterations that applied nothing.
	NoProgress int
	// Repairs counts repair requests.
	Repairs int
}

func (o *Outcome) String() string {
	if o.Reason == ReasonNone {
		return string(o.State)
	}
	return fmt.Sprintf("%s(%s)", o.State, o.Reason)
}

// Controller runs the loop.
type Controller struct {
	pass          Pass
	proposer      repair.Proposer
	apply         Applier
	descriptor    []byte
	paused        func() bool
	maxNoProgress int
	metrics       *Metrics
}

// Option configures a Controller.
type Option func(*Controller) error

// WithApplier replaces ApplyTo(".").
func WithApplier(a Applier) Option {
	return func(c *Controller) error {
		if a == nil {
			return errors.New("applier must not be nil")
		}
		c.apply = a
		return nil
	}
}

// WithDescriptor sets the repository description sent with each repair
// request.
func WithDescriptor(d []byte) Option {
	return func(c *Controller) error {
		c.descriptor = d
		return nil
	}
}

// WithPause sets the pause check.
func WithPause(paused func() bool) Option {
	return func(c *Controller) error {
		if paused == nil {
			return errors.New("pause check must not be nil")
		}
		c.paused = paused
		return nil
	}
}

// WithMaxNoProgress bounds consecutive iterations without an applied
// repair. 0 means unbounded.
func WithMaxNoProgress(n int) Option {
	return func(c *Controller) error {
		if n < 0 {
			return fmt.Errorf("max no-progress iterations cannot be negative, got %d", n)
		}
		c.maxNoProgress = n
		return nil
	}
}

// WithMetrics records loop series.
func WithMetrics(m *Metrics) Option {
	return func(c *Controller) error {
		c.metrics = m
		return nil
	}
}

// New creates a Controller.
func New(pass Pass, proposer repair.Proposer, opts ...Option) (*Controller, error) {
	if pass == nil {
		return nil, errors.New("pass must not be nil")
	}
	if proposer == nil {
		return nil, repair.ErrNoCredentials
	}
	c := &Controller{
		pass:          pass,
		proposer:      proposer,
		apply:         ApplyTo("."),
		paused:        NeverPaused,
		maxNoProgress: DefaultMaxNoProgress,
	}
	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, err
		}
	}
	return c, nil
}

func tracer() oteltrace.Tracer {
	return otel.Tracer("github.com/acoyfellow/loop-demo/loop",
		oteltrace.WithInstrumentationVersion("1.0.0"))
}

// Run iterates until the gates pass or the loop halts. Cancelling ctx
// halts with ReasonInterrupted at the next poll point.
func (c *Controller) Run(ctx context.Context) *Outcome {
	log := clog.FromContext(ctx)
	out := &Outcome{}

	finish := func(s State, r Reason) *Outcome {
		out.State, out.Reason = s, r
		c.metrics.observeOutcome(out)
		log.With("state", s).With("reason", r).
			With("iterations", out.Iterations).
			Infof("Loop finished: %s", out)
		return out
	}

	for {
		// CheckingPause
		if ctx.Err() != nil {
			return finish(StateHalted, ReasonInterrupted)
		}
		if c.paused() {
			log.Info("PAUSED")
			return finish(StateHalted, ReasonPaused)
		}

		// RunningGates
		out.Iterations++
		iterCtx, span := tracer().Start(ctx, "loop.iteration",
			oteltrace.WithAttributes(attribute.Int("loop.iteration", out.Iterations)))
		iterLog := log.With("iteration", out.Iterations)
		iterCtx = clog.WithLogger(iterCtx, iterLog)
		iterLog.Infof("=== Iteration %d ===", out.Iterations)

		out.Report = c.pass.Run(iterCtx)
		c.metrics.observePass(out.Report)
		span.SetAttributes(attribute.Int("loop.failed_stories", len(out.Report.Failed())))

		if out.Report.Success {
			span.End()
			iterLog.Info("✓ All gates pass!")
			return finish(StateConverged, ReasonNone)
		}
		if ctx.Err() != nil {
			span.End()
			return finish(StateHalted, ReasonInterrupted)
		}
		if c.paused() {
			span.End()
			iterLog.Info("PAUSED")
			return finish(StateHalted, ReasonPaused)
		}

		// InvokingRepair
		out.Repairs++
		err := c.repair(iterCtx, out.Report)
		switch {
		case err == nil:
			out.NoProgress = 0
			c.metrics.observeRepair("applied", out.NoProgress)
		case ctx.Err() != nil:
			span.End()
			return finish(StateHalted, ReasonInterrupted)
		default:
			out.NoProgress++
			span.RecordError(err)
			span.SetStatus(codes.Error, "no progress")
			c.metrics.observeRepair(repairResult(err), out.NoProgress)
			iterLog.With("error", err).
				Warnf("No progress (%d/%d): %v", out.NoProgress, c.maxNoProgress, err)
		}
		span.SetAttributes(attribute.Int("loop.no_progress", out.NoProgress))
		span.End()

		if c.maxNoProgress > 0 && out.NoProgress >= c.maxNoProgress {
			return finish(StateHalted, ReasonExhausted)
		}
	}
}

// repair requests proposals for the current report and applies them. An
// empty proposal set is ErrNoProposal.
func (c *Controller) repair(ctx context.Context, report *runner.Report) error {
	ctx, span := tracer().Start(ctx, "loop.repair")
	defer span.End()

	proposals, err := c.proposer.Propose(ctx, repair.Request{
		Report:     report,
		Descriptor: c.descriptor,
	})
	if err != nil {
		return err
	}
	if len(proposals) == 0 {
		return repair.ErrNoProposal
	}
	span.SetAttributes(attribute.Int("loop.proposals", len(proposals)))
	if err := c.apply(ctx, proposals); err != nil {
		return fmt.Errorf("applying proposals: %w", err)
	}
	clog.FromContext(ctx).Infof("Done. Wrote %d files.", len(proposals))
	return nil
}

func repairResult(err error) string {
	switch {
	case errors.Is(err, repair.ErrNoProposal):
		return "no_proposal"
	case errors.Is(err, repair.ErrNoCredentials):
		return "no_credentials"
	case errors.Is(err, repair.ErrUpstream):
		return "upstream_error"
	default:
		return "apply_error"
	}
}
