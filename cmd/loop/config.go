/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package main

import (
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/acoyfellow/loop-demo/loop"
	"github.com/acoyfellow/loop-demo/manifest"
	"github.com/acoyfellow/loop-demo/repair"
	"github.com/acoyfellow/loop-demo/repair/clauderepair"
	"github.com/acoyfellow/loop-demo/repair/openairepair"
)

const (
	providerZen       = "opencode-zen"
	providerAnthropic = "anthropic"
	providerOpenAI    = "openai"
)

type config struct {
	Manifest      string `env:"LOOP_MANIFEST,default=loop.yaml"`
	Root          string `env:"LOOP_ROOT,default=."`
	PauseFile     string `env:"LOOP_PAUSE_FILE,default=.gateproof/PAUSED"`
	MaxNoProgress int    `env:"LOOP_MAX_NO_PROGRESS,default=3"`
	Stage         bool   `env:"LOOP_STAGE,default=false"`
	MetricsFile   string `env:"LOOP_METRICS_FILE"`
	StepSummary   string `env:"GITHUB_STEP_SUMMARY"`
	LogLevel      string `env:"LOG_LEVEL,default=info"`

	Provider  string        `env:"REPAIR_PROVIDER"`
	Model     string        `env:"REPAIR_MODEL"`
	BaseURL   string        `env:"REPAIR_BASE_URL"`
	Timeout   time.Duration `env:"REPAIR_TIMEOUT,default=2m"`
	MaxTokens int64         `env:"REPAIR_MAX_TOKENS,default=2000"`
	TailBytes int           `env:"REPAIR_TAIL_BYTES,default=2000"`

	ZenAPIKey       string `env:"OPENCODE_ZEN_API_KEY"`
	AnthropicAPIKey string `env:"ANTHROPIC_API_KEY"`
	OpenAIAPIKey    string `env:"OPENAI_API_KEY"`
}

// Validate checks the values that do not depend on credentials.
func (c *config) Validate() error {
	var errs []error
	if c.MaxNoProgress < 0 {
		errs = append(errs, fmt.Errorf("LOOP_MAX_NO_PROGRESS must not be negative, got %d", c.MaxNoProgress))
	}
	if c.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("REPAIR_TIMEOUT must be positive, got %s", c.Timeout))
	}
	if c.MaxTokens <= 0 {
		errs = append(errs, fmt.Errorf("REPAIR_MAX_TOKENS must be positive, got %d", c.MaxTokens))
	}
	if c.TailBytes <= 0 {
		errs = append(errs, fmt.Errorf("REPAIR_TAIL_BYTES must be positive, got %d", c.TailBytes))
	}
	switch c.Provider {
	case "", providerZen, providerAnthropic, providerOpenAI:
	default:
		errs = append(errs, fmt.Errorf("REPAIR_PROVIDER %q is not one of %s, %s, %s", c.Provider, providerZen, providerAnthropic, providerOpenAI))
	}
	if _, err := c.level(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func (c *config) level() (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(strings.ToUpper(c.LogLevel))); err != nil {
		return 0, fmt.Errorf("LOG_LEVEL: %w", err)
	}
	return l, nil
}

// resolve joins a relative path onto Root.
func (c *config) resolve(path string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(c.Root, path)
}

func (c *config) manifestPath() string {
	if c.Manifest == "" {
		return c.resolve(manifest.DefaultPath)
	}
	return c.resolve(c.Manifest)
}

func (c *config) pauseFile() string {
	if c.PauseFile == "" {
		return c.resolve(loop.DefaultPauseFile)
	}
	return c.resolve(c.PauseFile)
}

// provider picks the repair provider: REPAIR_PROVIDER when set, otherwise
// the first of OPENCODE_ZEN_API_KEY, ANTHROPIC_API_KEY and OPENAI_API_KEY
// that is set.
func (c *config) provider() (name, key string, err error) {
	keys := map[string]string{
		providerZen:       c.ZenAPIKey,
		providerAnthropic: c.AnthropicAPIKey,
		providerOpenAI:    c.OpenAIAPIKey,
	}
	if c.Provider != "" {
		if keys[c.Provider] == "" {
			return "", "", fmt.Errorf("%w: REPAIR_PROVIDER=%s but its API key is not set", repair.ErrNoCredentials, c.Provider)
		}
		return c.Provider, keys[c.Provider], nil
	}
	for _, name := range []string{providerZen, providerAnthropic, providerOpenAI} {
		if keys[name] != "" {
			return name, keys[name], nil
		}
	}
	return "", "", fmt.Errorf("%w: set OPENCODE_ZEN_API_KEY, ANTHROPIC_API_KEY or OPENAI_API_KEY", repair.ErrNoCredentials)
}

// transport builds the repair transport for the selected provider.
func (c *config) transport(metrics *repair.TokenMetrics) (repair.Transport, string, error) {
	name, key, err := c.provider()
	if err != nil {
		return nil, "", err
	}
	switch name {
	case providerAnthropic:
		opts := []clauderepair.Option{
			clauderepair.WithMaxTokens(c.MaxTokens),
			clauderepair.WithMetrics(metrics),
		}
		if c.Model != "" {
			opts = append(opts, clauderepair.WithModel(c.Model))
		}
		if c.BaseURL != "" {
			opts = append(opts, clauderepair.WithBaseURL(c.BaseURL))
		}
		return clauderepair.New(key, opts...), name, nil

	default:
		opts := []openairepair.Option{
			openairepair.WithMaxTokens(c.MaxTokens),
			openairepair.WithMetrics(metrics),
		}
		if c.Model != "" {
			opts = append(opts, openairepair.WithModel(c.Model))
		}
		if c.BaseURL != "" {
			opts = append(opts, openairepair.WithBaseURL(c.BaseURL))
		}
		if name == providerZen {
			return openairepair.NewZen(key, opts...), name, nil
		}
		return openairepair.New(key, opts...), name, nil
	}
}
