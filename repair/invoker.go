/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Package repair asks a language model for file changes that make failing
// stories pass, and writes those changes into the repository.
package repair

import (
	"context"
	"errors"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/acoyfellow/loop-demo/promptbuilder"
	"github.com/acoyfellow/loop-demo/runner"
	"github.com/chainguard-dev/clog"
)

const (
	// DefaultTimeout bounds one Propose call, retries included.
	DefaultTimeout = 2 * time.Minute
	// DefaultTailBytes is how much of the failure rendering is sent.
	DefaultTailBytes = 2000
)

// DefaultPrompt is the repair request. It binds manifest, stories and
// failure.
var DefaultPrompt = promptbuilder.MustNewPrompt(`Fix this gateproof PRD failure. Create or modify files to make gates pass.

PRD (loop.yaml):
{{manifest}}

Failing stories:
{{stories}}

Failure output:
{{failure}}

Output ONLY the file contents in this exact format (can have multiple files):
---FILE: path/to/file.ts---
file contents here
---END---`)

// Transport sends one prompt to a model and returns its text reply.
// Implementations return ErrNoCredentials before any network call when they
// have no key, and errors matching ErrUpstream for everything else.
type Transport interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// Request is what a repair is asked to fix.
type Request struct {
	// Report is the failing report of the last pass.
	Report *runner.Report
	// Descriptor describes the repository, typically the raw manifest.
	Descriptor []byte
}

// Proposer produces proposals for a failing report.
type Proposer interface {
	Propose(ctx context.Context, req Request) ([]Proposal, error)
}

// Invoker is a Proposer backed by a Transport.
type Invoker struct {
	transport Transport
	timeout   time.Duration
	tailBytes int
	prompt    *promptbuilder.Prompt
	metrics   *TokenMetrics
}

var _ Proposer = (*Invoker)(nil)

// Option configures an Invoker.
type Option func(*Invoker) error

// WithTimeout bounds each Propose call.
func WithTimeout(d time.Duration) Option {
	return func(i *Invoker) error {
		if d <= 0 {
			return fmt.Errorf("timeout must be positive, got %s", d)
		}
		i.timeout = d
		return nil
	}
}

// WithTailBytes sets how many trailing bytes of the failure rendering are
// sent.
func WithTailBytes(n int) Option {
	return func(i *Invoker) error {
		if n <= 0 {
			return fmt.Errorf("tail bytes must be positive, got %d", n)
		}
		i.tailBytes = n
		return nil
	}
}

// WithPrompt replaces DefaultPrompt. The prompt must have the placeholders
// manifest and failure, and may have stories; no others.
func WithPrompt(p *promptbuilder.Prompt) Option {
	return func(i *Invoker) error {
		ph := p.Placeholders()
		_, hasManifest := ph["manifest"]
		_, hasFailure := ph["failure"]
		_, hasStories := ph["stories"]
		want := 2
		if hasStories {
			want++
		}
		if len(ph) != want || !hasManifest || !hasFailure {
			return errors.New("prompt must bind {{manifest}} and {{failure}}, and optionally {{stories}}")
		}
		i.prompt = p
		return nil
	}
}

// WithMetrics records request outcomes.
func WithMetrics(m *TokenMetrics) Option {
	return func(i *Invoker) error {
		i.metrics = m
		return nil
	}
}

// New creates an Invoker.
func New(t Transport, opts ...Option) (*Invoker, error) {
	if t == nil {
		return nil, ErrNoCredentials
	}
	i := &Invoker{
		transport: t,
		timeout:   DefaultTimeout,
		tailBytes: DefaultTailBytes,
		prompt:    DefaultPrompt,
	}
	for _, opt := range opts {
		if err := opt(i); err != nil {
			return nil, err
		}
	}
	return i, nil
}

// Propose sends the failure to the transport and parses the reply. A reply
// with no file blocks is ErrNoProposal.
func (i *Invoker) Propose(ctx context.Context, req Request) ([]Proposal, error) {
	log := clog.FromContext(ctx)

	prompt, err := i.buildPrompt(req)
	if err != nil {
		return nil, err
	}

	callCtx, cancel := context.WithTimeout(ctx, i.timeout)
	defer cancel()

	log.Info("Calling agent to fix...")
	reply, err := i.transport.Complete(callCtx, prompt)
	if err != nil {
		err = i.classify(ctx, callCtx, err)
		i.metrics.RecordRequest(ctx, outcome(err))
		return nil, err
	}
	log.Infof("Agent response: %s", head(reply, 200))

	proposals, err := Parse(reply)
	if err == nil && len(proposals) == 0 {
		log.Warnf("No files parsed from response. Raw:\n%s", reply)
		err = ErrNoProposal
	}
	i.metrics.RecordRequest(ctx, outcome(err))
	if err != nil {
		return nil, err
	}
	return proposals, nil
}

func (i *Invoker) buildPrompt(req Request) (string, error) {
	failure := "No output"
	if req.Report != nil {
		failure = tail(req.Report.Summary(), i.tailBytes)
	}
	p, err := i.prompt.Bind("manifest", string(req.Descriptor))
	if err != nil {
		return "", err
	}
	if p, err = p.Bind("failure", failure); err != nil {
		return "", err
	}
	if _, ok := p.Placeholders()["stories"]; ok {
		if p, err = p.BindYAML("stories", failingStories(req.Report)); err != nil {
			return "", err
		}
	}
	return p.Build()
}

// failingStory is the YAML form of one failed story in the prompt.
type failingStory struct {
	ID    string `yaml:"id"`
	Title string `yaml:"title"`
	Error string `yaml:"error,omitempty"`
}

func failingStories(r *runner.Report) []failingStory {
	out := []failingStory{}
	if r == nil {
		return out
	}
	for _, res := range r.Failed() {
		fs := failingStory{ID: res.StoryID, Title: res.Title}
		if res.Verdict.Err != nil {
			fs.Error = res.Verdict.Err.Error()
		}
		out = append(out, fs)
	}
	return out
}

// classify maps transport errors onto the package sentinels. A deadline hit
// by the call's own timeout is an upstream failure; a parent cancellation is
// returned unchanged.
func (i *Invoker) classify(parent, call context.Context, err error) error {
	switch {
	case errors.Is(err, ErrNoCredentials), errors.Is(err, ErrUpstream):
		return err
	case parent.Err() != nil:
		return parent.Err()
	case errors.Is(call.Err(), context.DeadlineExceeded):
		return fmt.Errorf("%w: timed out after %s: %w", ErrUpstream, i.timeout, err)
	default:
		return fmt.Errorf("%w: %w", ErrUpstream, err)
	}
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "proposed"
	case errors.Is(err, ErrNoProposal):
		return "no_proposal"
	case errors.Is(err, ErrNoCredentials):
		return "no_credentials"
	case errors.Is(err, ErrMalformedResponse):
		return "malformed"
	case errors.Is(err, ErrUpstream):
		return "upstream_error"
	default:
		return "canceled"
	}
}

// tail returns at most n trailing bytes of s without splitting a rune.
func tail(s string, n int) string {
	if len(s) <= n {
		return s
	}
	start := len(s) - n
	for start < len(s) && !utf8.RuneStart(s[start]) {
		start++
	}
	return s[start:]
}

// head returns at most n leading bytes of s without splitting a rune.
func head(s string, n int) string {
	if len(s) <= n {
		return s
	}
	end := n
	for end > 0 && !utf8.RuneStart(s[end]) {
		end--
	}
	return s[:end]
}
