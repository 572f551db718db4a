/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package loop

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/acoyfellow/loop-demo/runner"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics are the Prometheus series of one controller. A nil *Metrics
// records nothing.
type Metrics struct {
	iterations    prometheus.Counter
	repairs       *prometheus.CounterVec
	failedStories prometheus.Gauge
	noProgress    prometheus.Gauge
	outcomes      *prometheus.CounterVec
}

// NewMetrics registers the loop series on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		iterations: f.NewCounter(prometheus.CounterOpts{
			Name: "loop_iterations_total",
			Help: "Total number of gate passes run by the loop",
		}),
		repairs: f.NewCounterVec(prometheus.CounterOpts{
			Name: "loop_repairs_total",
			Help: "Total number of repair attempts by result",
		}, []string{"result"}),
		failedStories: f.NewGauge(prometheus.GaugeOpts{
			Name: "loop_failed_stories",
			Help: "Number of failed stories in the most recent pass",
		}),
		noProgress: f.NewGauge(prometheus.GaugeOpts{
			Name: "loop_no_progress_iterations",
			Help: "Consecutive iterations without an applied repair",
		}),
		outcomes: f.NewCounterVec(prometheus.CounterOpts{
			Name: "loop_outcomes_total",
			Help: "Terminal loop outcomes by state and reason",
		}, []string{"state", "reason"}),
	}
}

func (m *Metrics) observePass(r *runner.Report) {
	if m == nil {
		return
	}
	m.iterations.Inc()
	m.failedStories.Set(float64(len(r.Failed())))
}

func (m *Metrics) observeRepair(result string, noProgress int) {
	if m == nil {
		return
	}
	m.repairs.WithLabelValues(result).Inc()
	m.noProgress.Set(float64(noProgress))
}

func (m *Metrics) observeOutcome(o *Outcome) {
	if m == nil {
		return
	}
	m.outcomes.WithLabelValues(string(o.State), string(o.Reason)).Inc()
}

// WriteMetrics writes every series gathered from g to path in the node
// exporter textfile format.
func WriteMetrics(path string, g prometheus.Gatherer) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating metrics directory: %w", err)
		}
	}
	if err := prometheus.WriteToTextfile(path, g); err != nil {
		return fmt.Errorf("writing metrics: %w", err)
	}
	return nil
}
