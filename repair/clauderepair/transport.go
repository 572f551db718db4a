/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Package clauderepair is a repair transport for the Anthropic Messages API.
package clauderepair

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/acoyfellow/loop-demo/repair"
	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/chainguard-dev/clog"
)

const (
	// DefaultModel is the Claude model used when none is configured.
	DefaultModel = string(anthropic.ModelClaudeSonnet4_5)
	// DefaultMaxTokens caps the reply length.
	DefaultMaxTokens = 2000
)

// Transport implements repair.Transport with the Anthropic SDK.
type Transport struct {
	apiKey    string
	baseURL   string
	model     string
	maxTokens int64
	retry     repair.RetryConfig
	metrics   *repair.TokenMetrics
	httpc     *http.Client
}

var _ repair.Transport = (*Transport)(nil)

// Option configures a Transport.
type Option func(*Transport)

// WithBaseURL overrides the API endpoint.
func WithBaseURL(u string) Option { return func(t *Transport) { t.baseURL = u } }

// WithModel sets the model name.
func WithModel(m string) Option { return func(t *Transport) { t.model = m } }

// WithMaxTokens caps the reply length.
func WithMaxTokens(n int64) Option { return func(t *Transport) { t.maxTokens = n } }

// WithRetry replaces repair.DefaultRetryConfig.
func WithRetry(cfg repair.RetryConfig) Option { return func(t *Transport) { t.retry = cfg } }

// WithMetrics records token usage.
func WithMetrics(m *repair.TokenMetrics) Option { return func(t *Transport) { t.metrics = m } }

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(c *http.Client) Option { return func(t *Transport) { t.httpc = c } }

// New creates a Transport. An empty apiKey is reported by Complete as
// repair.ErrNoCredentials.
func New(apiKey string, opts ...Option) *Transport {
	t := &Transport{
		apiKey:    apiKey,
		model:     DefaultModel,
		maxTokens: DefaultMaxTokens,
		retry:     repair.DefaultRetryConfig(),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Complete sends prompt as a single user turn and returns the concatenated
// text blocks of the reply.
func (t *Transport) Complete(ctx context.Context, prompt string) (string, error) {
	if t.apiKey == "" {
		return "", repair.ErrNoCredentials
	}

	clientOpts := []option.RequestOption{
		option.WithAPIKey(t.apiKey),
		option.WithMaxRetries(0),
	}
	if t.baseURL != "" {
		clientOpts = append(clientOpts, option.WithBaseURL(t.baseURL))
	}
	if t.httpc != nil {
		clientOpts = append(clientOpts, option.WithHTTPClient(t.httpc))
	}
	client := anthropic.NewClient(clientOpts...)

	msg, err := repair.RetryWithBackoff(ctx, t.retry, "claude messages", func() (*anthropic.Message, error) {
		msg, err := client.Messages.New(ctx, anthropic.MessageNewParams{
			Model:     anthropic.Model(t.model),
			MaxTokens: t.maxTokens,
			Messages: []anthropic.MessageParam{
				anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
			},
		})
		var apiErr *anthropic.Error
		if errors.As(err, &apiErr) {
			return nil, &repair.StatusError{Provider: "anthropic", StatusCode: apiErr.StatusCode, Err: err}
		}
		return msg, err
	})
	if err != nil {
		if errors.Is(err, repair.ErrUpstream) || ctx.Err() != nil {
			return "", err
		}
		return "", fmt.Errorf("%w: anthropic: %w", repair.ErrUpstream, err)
	}

	t.metrics.RecordTokens(ctx, "anthropic", t.model, msg.Usage.InputTokens, msg.Usage.OutputTokens)
	clog.FromContext(ctx).With("model", t.model).
		With("input_tokens", msg.Usage.InputTokens).
		With("output_tokens", msg.Usage.OutputTokens).
		Info("Claude response received")

	var sb strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}
	if sb.Len() == 0 {
		return "", fmt.Errorf("%w: anthropic: no text in response", repair.ErrUpstream)
	}
	return sb.String(), nil
}
