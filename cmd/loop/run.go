/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package main

import (
	"context"
	"fmt"

	"github.com/acoyfellow/loop-demo/loop"
	"github.com/acoyfellow/loop-demo/repair"
	"github.com/acoyfellow/loop-demo/runner"
	"github.com/chainguard-dev/clog"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
)

func (a *app) runCmd() *cobra.Command {
	var report string
	cmd := &cobra.Command{
		Use:   "run [report-path]",
		Short: "Run gates and repairs until the repository converges",
		Long: `Runs every story gate; while any fail, sends the manifest and the failure
output to the configured model, writes the files it proposes and runs again.

The loop stops when every gate passes, when the pause file exists, or after
LOOP_MAX_NO_PROGRESS consecutive iterations that changed nothing.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.run(cmd, reportPath(report, args))
		},
	}
	cmd.Flags().StringVar(&report, "report", "", "write the final JSON report to this path")
	return cmd
}

func (a *app) run(cmd *cobra.Command, reportPath string) error {
	ctx := cmd.Context()
	log := clog.FromContext(ctx)

	tokens := repair.NewTokenMetrics(ctx)
	transport, provider, err := a.cfg.transport(tokens)
	if err != nil {
		return withCode(exitConfig, err)
	}
	m, r, err := a.loadRunner()
	if err != nil {
		return err
	}

	invoker, err := repair.New(transport,
		repair.WithTimeout(a.cfg.Timeout),
		repair.WithTailBytes(a.cfg.TailBytes),
		repair.WithMetrics(tokens),
	)
	if err != nil {
		return withCode(exitConfig, err)
	}

	var applyOpts []repair.ApplyOption
	if a.cfg.Stage {
		applyOpts = append(applyOpts, repair.WithGitStaging())
	}
	reg := prometheus.NewRegistry()
	controller, err := loop.New(r, invoker,
		loop.WithDescriptor(m.Raw()),
		loop.WithApplier(loop.ApplyTo(a.cfg.Root, applyOpts...)),
		loop.WithPause(loop.PauseFile(a.cfg.pauseFile())),
		loop.WithMaxNoProgress(a.cfg.MaxNoProgress),
		loop.WithMetrics(loop.NewMetrics(reg)),
	)
	if err != nil {
		return withCode(exitConfig, err)
	}

	log.With("provider", provider).
		With("stories", len(r.Stories())).
		With("max_no_progress", a.cfg.MaxNoProgress).
		Infof("Starting loop for %s", m.Name)

	out := controller.Run(ctx)
	a.publish(ctx, cmd, out, reportPath, reg)
	return exitFor(out)
}

// publish writes everything the run leaves behind. Failures are logged and
// do not change the exit code.
func (a *app) publish(ctx context.Context, cmd *cobra.Command, out *loop.Outcome, reportPath string, reg prometheus.Gatherer) {
	log := clog.FromContext(ctx)

	if out.Report != nil {
		if err := out.Report.WriteTable(cmd.OutOrStdout()); err != nil {
			log.With("error", err).Warn("Failed to render report")
		}
		if reportPath != "" {
			if err := runner.WriteReport(reportPath, out.Report); err != nil {
				log.With("error", err).Warn("Failed to write report")
			}
		}
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Loop %s after %d iteration(s)\n", out, out.Iterations)

	summary := fmt.Sprintf("**Loop %s** after %d iteration(s).\n\n", out, out.Iterations)
	if out.Report != nil {
		summary = out.Report.Markdown() + "\n" + summary
	}
	if err := appendStepSummary(a.cfg.StepSummary, summary); err != nil {
		log.With("error", err).Warn("Failed to write step summary")
	}

	if a.cfg.MetricsFile != "" {
		if err := loop.WriteMetrics(a.cfg.resolve(a.cfg.MetricsFile), reg); err != nil {
			log.With("error", err).Warn("Failed to write metrics")
		}
	}
}

// exitFor maps an outcome onto the process exit code.
func exitFor(out *loop.Outcome) error {
	switch {
	case out.State == loop.StateConverged:
		return nil
	case out.Reason == loop.ReasonPaused:
		return nil
	case out.Reason == loop.ReasonInterrupted:
		return withCode(exitInterrupted, nil)
	default:
		return withCode(exitFailed, fmt.Errorf("loop %s", out))
	}
}
