/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Package openairepair is a repair transport for OpenAI-compatible chat
// completion APIs, including OpenCode Zen.
package openairepair

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/acoyfellow/loop-demo/repair"
	"github.com/chainguard-dev/clog"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

const (
	// ZenBaseURL is the OpenCode Zen endpoint.
	ZenBaseURL = "https://opencode.ai/zen/v1"
	// ZenModel is the default OpenCode Zen model.
	ZenModel = "big-pickle"
	// DefaultModel is used against api.openai.com.
	DefaultModel = "gpt-4o-mini"
	// DefaultMaxTokens caps the reply length.
	DefaultMaxTokens = 2000
)

// Transport implements repair.Transport with the openai-go client.
type Transport struct {
	provider  string
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

// WithBaseURL points the client at an OpenAI-compatible endpoint.
func WithBaseURL(u string) Option { return func(t *Transport) { t.baseURL = u } }

// WithModel sets the model name.
func WithModel(m string) Option { return func(t *Transport) { t.model = m } }

// WithMaxTokens caps the reply length.
func WithMaxTokens(n int64) Option { return func(t *Transport) { t.maxTokens = n } }

// WithRetry replaces repair.DefaultRetryConfig.
func WithRetry(cfg repair.RetryConfig) Option { return func(t *Transport) { t.retry = cfg } }

// WithMetrics records token usage.
func WithMetrics(m *repair.TokenMetrics) Option { return func(t *Transport) { t.metrics = m } }

// WithProvider names the provider in logs, metrics and errors.
func WithProvider(name string) Option { return func(t *Transport) { t.provider = name } }

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(c *http.Client) Option { return func(t *Transport) { t.httpc = c } }

// New creates a Transport. An empty apiKey is reported by Complete as
// repair.ErrNoCredentials.
func New(apiKey string, opts ...Option) *Transport {
	t := &Transport{
		provider:  "openai",
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

// NewZen creates a Transport for OpenCode Zen with its defaults. Later
// options override them.
func NewZen(apiKey string, opts ...Option) *Transport {
	return New(apiKey, append([]Option{
		WithProvider("opencode-zen"),
		WithBaseURL(ZenBaseURL),
		WithModel(ZenModel),
	}, opts...)...)
}

// Complete sends prompt as a single user message and returns the first
// choice's content.
func (t *Transport) Complete(ctx context.Context, prompt string) (string, error) {
	if t.apiKey == "" {
		return "", repair.ErrNoCredentials
	}

	clientOpts := []option.RequestOption{
		option.WithAPIKey(t.apiKey),
		// Retries are handled by repair.RetryWithBackoff.
		option.WithMaxRetries(0),
	}
	if t.baseURL != "" {
		clientOpts = append(clientOpts, option.WithBaseURL(t.baseURL))
	}
	if t.httpc != nil {
		clientOpts = append(clientOpts, option.WithHTTPClient(t.httpc))
	}
	client := openai.NewClient(clientOpts...)

	log := clog.FromContext(ctx).With("provider", t.provider).With("model", t.model)

	resp, err := repair.RetryWithBackoff(ctx, t.retry, t.provider+" chat completion", func() (*openai.ChatCompletion, error) {
		resp, err := client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
			Model:     t.model,
			Messages:  []openai.ChatCompletionMessageParamUnion{openai.UserMessage(prompt)},
			MaxTokens: openai.Int(t.maxTokens),
		})
		var apiErr *openai.Error
		if errors.As(err, &apiErr) {
			return nil, &repair.StatusError{Provider: t.provider, StatusCode: apiErr.StatusCode, Err: err}
		}
		return resp, err
	})
	if err != nil {
		if errors.Is(err, repair.ErrUpstream) || ctx.Err() != nil {
			return "", err
		}
		return "", fmt.Errorf("%w: %s: %w", repair.ErrUpstream, t.provider, err)
	}

	t.metrics.RecordTokens(ctx, t.provider, t.model, resp.Usage.PromptTokens, resp.Usage.CompletionTokens)
	log.With("prompt_tokens", resp.Usage.PromptTokens).
		With("completion_tokens", resp.Usage.CompletionTokens).
		Info("Chat completion received")

	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		return "", fmt.Errorf("%w: %s: no content in response", repair.ErrUpstream, t.provider)
	}
	return resp.Choices[0].Message.Content, nil
}
