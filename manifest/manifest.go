/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Package manifest loads the YAML file that declares a repository's stories
// and the gates that validate them.
//
// A manifest looks like:
//
//	name: loop-demo
//	description: A self-healing repo
//	stories:
//	  - id: repo-structure
//	    title: Repo has required files
//	    checks:
//	      - {path: package.json, kind: json, keys: [name, scripts]}
//	      - {path: README.md, kind: contains, value: loop}
//	  - id: pause-resume
//	    title: PAUSED file stops the loop
//	    dependsOn: [repo-structure]
//	    command:
//	      run: [bash, scripts/loop.sh]
//	      expect: [PAUSED]
//	      timeout: 5s
//
// The raw manifest text doubles as the repository descriptor handed to the
// repair step, so it should describe what "done" means in plain words too.
package manifest

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/acoyfellow/loop-demo/gates"
	"github.com/acoyfellow/loop-demo/gates/commandgate"
	"github.com/acoyfellow/loop-demo/gates/filegate"
	"github.com/acoyfellow/loop-demo/stories"
	"gopkg.in/yaml.v3"
)

// DefaultPath is where the CLI looks for a manifest.
const DefaultPath = "loop.yaml"

// Manifest is a parsed story manifest.
type Manifest struct {
	Name        string      `yaml:"name"`
	Description string      `yaml:"description,omitempty"`
	Stories     []StorySpec `yaml:"stories"`

	raw []byte
}

// StorySpec declares one story and, optionally, its gate.
type StorySpec struct {
	ID        string   `yaml:"id"`
	Title     string   `yaml:"title"`
	DependsOn []string `yaml:"dependsOn,omitempty"`
	// Gate reuses the gate declared by another story.
	Gate    string           `yaml:"gate,omitempty"`
	Checks  []filegate.Check `yaml:"checks,omitempty"`
	Command *CommandSpec     `yaml:"command,omitempty"`
}

// CommandSpec declares a command gate.
type CommandSpec struct {
	Run     []string          `yaml:"run"`
	Env     map[string]string `yaml:"env,omitempty"`
	Expect  []string          `yaml:"expect,omitempty"`
	Timeout time.Duration     `yaml:"timeout,omitempty"`
}

// Load reads and parses the manifest at path.
func Load(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading manifest: %w", err)
	}
	m, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return m, nil
}

// Parse decodes a manifest. Unknown fields are rejected.
func Parse(data []byte) (*Manifest, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var m Manifest
	if err := dec.Decode(&m); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: empty manifest", stories.ErrConfiguration)
		}
		return nil, fmt.Errorf("%w: decoding manifest: %w", stories.ErrConfiguration, err)
	}
	m.raw = data

	for i, s := range m.Stories {
		declared := 0
		if len(s.Checks) > 0 {
			declared++
		}
		if s.Command != nil {
			declared++
		}
		if s.Gate != "" {
			declared++
		}
		if declared != 1 {
			return nil, fmt.Errorf("%w: story %d (%q) must declare exactly one of checks, command or gate", stories.ErrConfiguration, i, s.ID)
		}
	}
	return &m, nil
}

// Raw returns the manifest text as it was read.
func (m *Manifest) Raw() []byte {
	return m.raw
}

// StorySet returns the stories in declaration order.
func (m *Manifest) StorySet() []stories.Story {
	out := make([]stories.Story, 0, len(m.Stories))
	for _, s := range m.Stories {
		out = append(out, stories.Story{
			ID:        s.ID,
			Title:     s.Title,
			Gate:      s.Gate,
			DependsOn: s.DependsOn,
		})
	}
	return out
}

// Registry builds the gates declared inline, each registered under its
// story id.
func (m *Manifest) Registry() (*gates.Registry, error) {
	reg := gates.NewRegistry()
	for _, s := range m.Stories {
		var (
			g   gates.Gate
			err error
		)
		switch {
		case len(s.Checks) > 0:
			g, err = filegate.New(s.Checks...)
		case s.Command != nil:
			opts := []commandgate.Option{
				commandgate.WithEnv(s.Command.Env),
				commandgate.WithExpect(s.Command.Expect...),
			}
			if s.Command.Timeout > 0 {
				opts = append(opts, commandgate.WithTimeout(s.Command.Timeout))
			}
			g, err = commandgate.New(s.Command.Run, opts...)
		default:
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("%w: story %q: %w", stories.ErrConfiguration, s.ID, err)
		}
		if err := reg.Register(s.ID, g); err != nil {
			return nil, fmt.Errorf("%w: %w", stories.ErrConfiguration, err)
		}
	}
	return reg, nil
}
