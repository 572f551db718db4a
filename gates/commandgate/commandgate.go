/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Package commandgate implements a gate that runs a command in the
// repository root and passes when it exits zero.
package commandgate

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/acoyfellow/loop-demo/gates"
	"github.com/chainguard-dev/clog"
)

const (
	// DefaultTimeout bounds a command that does not set its own timeout.
	DefaultTimeout = 30 * time.Second

	// tailLines is how many trailing output lines a failure carries.
	tailLines = 20
)

// Gate runs Argv with the repository root as working directory.
// Commands are expected to only read the repository.
type Gate struct {
	argv    []string
	env     []string
	timeout time.Duration
	expect  []string
}

var _ gates.Gate = (*Gate)(nil)

// Option configures a Gate.
type Option func(*Gate) error

// WithTimeout bounds each run of the command.
func WithTimeout(d time.Duration) Option {
	return func(g *Gate) error {
		if d <= 0 {
			return fmt.Errorf("timeout must be positive, got %s", d)
		}
		g.timeout = d
		return nil
	}
}

// WithEnv adds KEY=VALUE pairs to the inherited environment.
func WithEnv(env map[string]string) Option {
	return func(g *Gate) error {
		for k, v := range env {
			if k == "" || strings.Contains(k, "=") {
				return fmt.Errorf("invalid environment variable name %q", k)
			}
			g.env = append(g.env, k+"="+v)
		}
		return nil
	}
}

// WithExpect requires each string to appear in the combined output.
func WithExpect(expect ...string) Option {
	return func(g *Gate) error {
		g.expect = append(g.expect, expect...)
		return nil
	}
}

// New creates a command gate.
func New(argv []string, opts ...Option) (*Gate, error) {
	if len(argv) == 0 || argv[0] == "" {
		return nil, errors.New("command gate needs a command")
	}
	g := &Gate{argv: argv, timeout: DefaultTimeout}
	for _, opt := range opts {
		if err := opt(g); err != nil {
			return nil, fmt.Errorf("failed to apply option: %w", err)
		}
	}
	return g, nil
}

// Evaluate implements gates.Gate.
func (g *Gate) Evaluate(ctx context.Context, root string) gates.Verdict {
	log := clog.FromContext(ctx).With("command", strings.Join(g.argv, " "))

	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, g.argv[0], g.argv[1:]...)
	cmd.Dir = root
	cmd.Env = append(os.Environ(), g.env...)
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out
	cmd.WaitDelay = time.Second

	start := time.Now()
	err := cmd.Run()
	log.With("duration", time.Since(start)).Info("Command finished")

	output := out.String()
	tail := lastLines(output, tailLines)
	switch {
	case ctx.Err() == context.DeadlineExceeded:
		return gates.Failed(fmt.Errorf("command timed out after %s", g.timeout), tail...)
	case err != nil:
		return gates.Failed(fmt.Errorf("command failed: %w", err), tail...)
	}

	for _, want := range g.expect {
		if !strings.Contains(output, want) {
			return gates.Failed(fmt.Errorf("command output does not contain %q", want), tail...)
		}
	}
	return gates.Success()
}

func lastLines(s string, n int) []string {
	lines := strings.Split(strings.TrimRight(s, "\n"), "\n")
	if len(lines) == 1 && lines[0] == "" {
		return nil
	}
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return lines
}
