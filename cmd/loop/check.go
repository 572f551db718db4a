/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package main

import (
	"errors"

	"github.com/acoyfellow/loop-demo/runner"
	"github.com/chainguard-dev/clog"
	"github.com/spf13/cobra"
)

func (a *app) checkCmd() *cobra.Command {
	var report string
	cmd := &cobra.Command{
		Use:   "check [report-path]",
		Short: "Run every story gate once",
		Long:  "Runs every story gate once in dependency order, prints one line per story and exits 0 iff all pass.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			_, r, err := a.loadRunner()
			if err != nil {
				return err
			}

			result := r.Run(ctx)
			printResults(cmd.OutOrStdout(), result)

			if path := reportPath(report, args); path != "" {
				if err := runner.WriteReport(path, result); err != nil {
					clog.FromContext(ctx).With("error", err).Warn("Failed to write report")
				}
			}
			if err := appendStepSummary(a.cfg.StepSummary, result.Markdown()); err != nil {
				clog.FromContext(ctx).With("error", err).Warn("Failed to write step summary")
			}

			switch {
			case ctx.Err() != nil:
				return withCode(exitInterrupted, ctx.Err())
			case !result.Success:
				return withCode(exitFailed, errors.New("one or more stories failed"))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&report, "report", "", "write the JSON report to this path")
	return cmd
}
