/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package main

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/acoyfellow/loop-demo/repair"
	"github.com/acoyfellow/loop-demo/repair/clauderepair"
	"github.com/acoyfellow/loop-demo/repair/openairepair"
	"github.com/google/go-cmp/cmp"
	"github.com/sethvargo/go-envconfig"
)

func loadConfig(t *testing.T, env map[string]string) config {
	t.Helper()
	var cfg config
	if err := envconfig.ProcessWith(context.Background(), &envconfig.Config{
		Target:   &cfg,
		Lookuper: envconfig.MapLookuper(env),
	}); err != nil {
		t.Fatalf("ProcessWith() error = %v", err)
	}
	return cfg
}

func TestConfigDefaults(t *testing.T) {
	got := loadConfig(t, nil)
	want := config{
		Manifest:      "loop.yaml",
		Root:          ".",
		PauseFile:     ".gateproof/PAUSED",
		MaxNoProgress: 3,
		LogLevel:      "info",
		Timeout:       2 * time.Minute,
		MaxTokens:     2000,
		TailBytes:     2000,
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("config (-want +got):\n%s", diff)
	}
	if err := got.Validate(); err != nil {
		t.Errorf("Validate() = %v", err)
	}
	if got, want := got.pauseFile(), filepath.Join(".", ".gateproof", "PAUSED"); got != want {
		t.Errorf("pauseFile(): got = %q, wanted = %q", got, want)
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{name: "negative bound", env: map[string]string{"LOOP_MAX_NO_PROGRESS": "-1"}},
		{name: "zero timeout", env: map[string]string{"REPAIR_TIMEOUT": "0s"}},
		{name: "unknown provider", env: map[string]string{"REPAIR_PROVIDER": "gemini"}},
		{name: "bad level", env: map[string]string{"LOG_LEVEL": "loud"}},
		{name: "zero tail", env: map[string]string{"REPAIR_TAIL_BYTES": "0"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := loadConfig(t, tt.env)
			if err := cfg.Validate(); err == nil {
				t.Error("Validate(): got nil error")
			}
		})
	}
}

func TestProviderSelection(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		want    string
		wantErr error
	}{{
		name:    "no keys",
		env:     map[string]string{},
		wantErr: repair.ErrNoCredentials,
	}, {
		name: "zen first",
		env:  map[string]string{"OPENAI_API_KEY": "o", "OPENCODE_ZEN_API_KEY": "z", "ANTHROPIC_API_KEY": "a"},
		want: providerZen,
	}, {
		name: "anthropic before openai",
		env:  map[string]string{"OPENAI_API_KEY": "o", "ANTHROPIC_API_KEY": "a"},
		want: providerAnthropic,
	}, {
		name: "openai only",
		env:  map[string]string{"OPENAI_API_KEY": "o"},
		want: providerOpenAI,
	}, {
		name: "explicit provider",
		env:  map[string]string{"REPAIR_PROVIDER": "openai", "OPENCODE_ZEN_API_KEY": "z", "OPENAI_API_KEY": "o"},
		want: providerOpenAI,
	}, {
		name:    "explicit provider without key",
		env:     map[string]string{"REPAIR_PROVIDER": "anthropic", "OPENAI_API_KEY": "o"},
		wantErr: repair.ErrNoCredentials,
	}}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := loadConfig(t, tt.env)
			got, _, err := cfg.provider()
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("provider() error: got = %v, wanted %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("provider(): got = %q, wanted = %q", got, tt.want)
			}
		})
	}
}

func TestTransport(t *testing.T) {
	cfg := loadConfig(t, map[string]string{"ANTHROPIC_API_KEY": "a"})
	tr, name, err := cfg.transport(nil)
	if err != nil {
		t.Fatalf("transport() error = %v", err)
	}
	if _, ok := tr.(*clauderepair.Transport); !ok || name != providerAnthropic {
		t.Errorf("transport(): got = %T %q, wanted *clauderepair.Transport", tr, name)
	}

	cfg = loadConfig(t, map[string]string{"OPENCODE_ZEN_API_KEY": "z"})
	tr, name, err = cfg.transport(nil)
	if err != nil {
		t.Fatalf("transport() error = %v", err)
	}
	if _, ok := tr.(*openairepair.Transport); !ok || name != providerZen {
		t.Errorf("transport(): got = %T %q, wanted *openairepair.Transport", tr, name)
	}
}
