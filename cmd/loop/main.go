/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Command loop runs a repository's story gates and, while any fail, asks a
// model for repairs until every gate passes, the PAUSED token appears or
// repairs stop making progress.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/acoyfellow/loop-demo/gates"
	"github.com/acoyfellow/loop-demo/manifest"
	"github.com/acoyfellow/loop-demo/runner"
	"github.com/chainguard-dev/clog"
	"github.com/sethvargo/go-envconfig"
	"github.com/spf13/cobra"
)

// Exit codes.
const (
	exitOK          = 0
	exitFailed      = 1
	exitConfig      = 2
	exitInterrupted = 130
)

// exitError carries the process exit code of a command.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string {
	if e.err == nil {
		return fmt.Sprintf("exit status %d", e.code)
	}
	return e.err.Error()
}

func (e *exitError) Unwrap() error { return e.err }

func withCode(code int, err error) error { return &exitError{code: code, err: err} }

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := execute(ctx, os.Args[1:], os.Stdout, os.Stderr, envconfig.OsLookuper())
	cancel()
	os.Exit(code)
}

// execute runs the CLI and returns the process exit code.
func execute(ctx context.Context, args []string, stdout, stderr io.Writer, lookuper envconfig.Lookuper) int {
	root := newRootCmd(lookuper)
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)

	err := root.ExecuteContext(ctx)
	if err == nil {
		return exitOK
	}
	var ee *exitError
	if errors.As(err, &ee) {
		if ee.err != nil {
			fmt.Fprintf(stderr, "Error: %v\n", ee.err)
		}
		return ee.code
	}
	fmt.Fprintf(stderr, "Error: %v\n", err)
	return exitConfig
}

// app holds what every subcommand shares once the configuration is loaded.
type app struct {
	lookuper envconfig.Lookuper
	cfg      config
}

func newRootCmd(lookuper envconfig.Lookuper) *cobra.Command {
	a := &app{lookuper: lookuper}
	root := &cobra.Command{
		Use:           "loop",
		Short:         "Drive a repository until every story gate passes",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup(cmd)
		},
	}
	root.AddCommand(a.runCmd(), a.checkCmd(), a.schemaCmd())
	return root
}

// setup processes the environment and installs the logger on the command
// context.
func (a *app) setup(cmd *cobra.Command) error {
	ctx := cmd.Context()
	if err := envconfig.ProcessWith(ctx, &envconfig.Config{
		Target:   &a.cfg,
		Lookuper: a.lookuper,
	}); err != nil {
		return withCode(exitConfig, fmt.Errorf("processing config: %w", err))
	}
	if err := a.cfg.Validate(); err != nil {
		return withCode(exitConfig, err)
	}
	level, _ := a.cfg.level()
	logger := clog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))
	cmd.SetContext(clog.WithLogger(ctx, logger))
	return nil
}

// loadRunner reads the manifest and resolves its stories and gates.
func (a *app) loadRunner() (*manifest.Manifest, *runner.Runner, error) {
	m, err := manifest.Load(a.cfg.manifestPath())
	if err != nil {
		return nil, nil, withCode(exitConfig, err)
	}
	reg, err := m.Registry()
	if err != nil {
		return nil, nil, withCode(exitConfig, err)
	}
	r, err := runner.New(m.StorySet(), reg, a.cfg.Root)
	if err != nil {
		return nil, nil, withCode(exitConfig, err)
	}
	return m, r, nil
}

// reportPath picks the positional argument over --report.
func reportPath(flag string, args []string) string {
	if len(args) > 0 {
		return args[0]
	}
	return flag
}

// printResults writes one ✓/✗ line per story, with the error of failures.
func printResults(w io.Writer, r *runner.Report) {
	for _, res := range r.Stories {
		mark := "✓"
		if res.Verdict.Status != gates.StatusSuccess {
			mark = "✗"
		}
		fmt.Fprintf(w, "%s %s: %s\n", mark, res.StoryID, res.Title)
		if res.Verdict.Err != nil {
			fmt.Fprintf(w, "  Error: %s\n", res.Verdict.Err)
		}
	}
}

// appendStepSummary appends markdown to the GitHub step summary file.
func appendStepSummary(path, markdown string) error {
	if path == "" {
		return nil
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("opening step summary: %w", err)
	}
	if _, err := io.WriteString(f, markdown); err != nil {
		f.Close()
		return fmt.Errorf("writing step summary: %w", err)
	}
	return f.Close()
}
