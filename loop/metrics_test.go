/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package loop_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/acoyfellow/loop-demo/loop"
	"github.com/acoyfellow/loop-demo/repair"
	"github.com/acoyfellow/loop-demo/runner"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/require"
)

// gathered flattens counters and gauges to name{label=value,...}.
func gathered(t *testing.T, g prometheus.Gatherer) map[string]float64 {
	t.Helper()
	families, err := g.Gather()
	require.NoError(t, err)

	out := map[string]float64{}
	for _, family := range families {
		for _, m := range family.GetMetric() {
			key := family.GetName()
			if len(m.GetLabel()) > 0 {
				var parts []string
				for _, l := range m.GetLabel() {
					parts = append(parts, l.GetName()+"="+l.GetValue())
				}
				key += "{" + strings.Join(parts, ",") + "}"
			}
			switch family.GetType() {
			case dto.MetricType_COUNTER:
				out[key] = m.GetCounter().GetValue()
			case dto.MetricType_GAUGE:
				out[key] = m.GetGauge().GetValue()
			}
		}
	}
	return out
}

func TestMetricsExhausted(t *testing.T) {
	reg := prometheus.NewRegistry()
	pass := &scriptedPass{reports: []*runner.Report{failing()}}
	prop := &scriptedProposer{replies: []reply{{err: repair.ErrNoProposal}, {err: repair.ErrUpstream}}}
	out := newController(t, pass, prop, loop.WithMaxNoProgress(2), loop.WithMetrics(loop.NewMetrics(reg))).
		Run(context.Background())
	require.Equal(t, loop.ReasonExhausted, out.Reason)

	got := gathered(t, reg)
	require.Equal(t, 2.0, got["loop_iterations_total"])
	require.Equal(t, 1.0, got["loop_repairs_total{result=no_proposal}"])
	require.Equal(t, 1.0, got["loop_repairs_total{result=upstream_error}"])
	require.Equal(t, 1.0, got["loop_failed_stories"])
	require.Equal(t, 2.0, got["loop_no_progress_iterations"])
	// Labels are sorted by name.
	require.Equal(t, 1.0, got["loop_outcomes_total{reason=exhausted,state=halted}"])
}

func TestWriteMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	loop.NewMetrics(reg)
	path := filepath.Join(t.TempDir(), "metrics", "loop.prom")
	require.NoError(t, loop.WriteMetrics(path, reg))

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, testutil.CollectAndCompare(prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "loop_failed_stories",
		Help: "Number of failed stories in the most recent pass",
	}), f, "loop_failed_stories"))
}
