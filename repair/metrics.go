/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package repair

import (
	"context"

	"github.com/chainguard-dev/clog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

// MeterName is the instrumentation scope of repair metrics.
const MeterName = "github.com/acoyfellow/loop-demo/repair"

// TokenMetrics counts repair requests and the tokens they consume.
// A nil *TokenMetrics records nothing.
type TokenMetrics struct {
	promptTokens     metric.Int64Counter
	completionTokens metric.Int64Counter
	requests         metric.Int64Counter
}

// NewTokenMetrics creates the counters on the global meter provider. A
// counter that cannot be created is replaced by a no-op.
func NewTokenMetrics(ctx context.Context) *TokenMetrics {
	return newTokenMetrics(ctx, otel.Meter(MeterName, metric.WithInstrumentationVersion("1.0.0")))
}

func newTokenMetrics(ctx context.Context, meter metric.Meter) *TokenMetrics {
	log := clog.FromContext(ctx)
	counter := func(name, desc, unit string) metric.Int64Counter {
		c, err := meter.Int64Counter(name, metric.WithDescription(desc), metric.WithUnit(unit))
		if err != nil {
			log.With("error", err).Warnf("Failed to create %s counter, metric disabled", name)
			return noop.Int64Counter{}
		}
		return c
	}
	return &TokenMetrics{
		promptTokens:     counter("loop.repair.token.prompt", "The number of prompt tokens sent for repair", "{tokens}"),
		completionTokens: counter("loop.repair.token.completion", "The number of completion tokens received from repair", "{tokens}"),
		requests:         counter("loop.repair.requests", "The number of repair requests by outcome", "{requests}"),
	}
}

// RecordTokens records the usage of one completion.
func (m *TokenMetrics) RecordTokens(ctx context.Context, provider, model string, prompt, completion int64) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("provider", provider),
		attribute.String("model", model),
	)
	m.promptTokens.Add(ctx, prompt, attrs)
	m.completionTokens.Add(ctx, completion, attrs)
}

// RecordRequest records one Propose call and its outcome.
func (m *TokenMetrics) RecordRequest(ctx context.Context, outcome string) {
	if m == nil {
		return
	}
	m.requests.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}
