/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package gates

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/acoyfellow/loop-demo/stories"
)

// ErrUnknownGate is returned when a story references an unregistered gate.
// It matches stories.ErrConfiguration.
var ErrUnknownGate = fmt.Errorf("%w: unknown gate", stories.ErrConfiguration)

// Registry maps gate names to implementations.
type Registry struct {
	mu    sync.RWMutex
	gates map[string]Gate
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{gates: make(map[string]Gate)}
}

// Register adds a gate under name. Registering the same name twice is an error.
func (r *Registry) Register(name string, g Gate) error {
	if name == "" {
		return errors.New("gate name is required")
	}
	if g == nil {
		return fmt.Errorf("gate %q is nil", name)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.gates[name]; exists {
		return fmt.Errorf("gate %q already registered", name)
	}
	r.gates[name] = g
	return nil
}

// Lookup returns the gate registered under name.
func (r *Registry) Lookup(name string) (Gate, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	g, ok := r.gates[name]
	return g, ok
}

// Names returns the registered gate names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.gates))
	for name := range r.gates {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Resolve binds every story to its gate, keyed by story id.
func (r *Registry) Resolve(set []stories.Story) (map[string]Gate, error) {
	bound := make(map[string]Gate, len(set))
	for _, s := range set {
		g, ok := r.Lookup(s.GateRef())
		if !ok {
			return nil, fmt.Errorf("%w %q for story %q", ErrUnknownGate, s.GateRef(), s.ID)
		}
		bound[s.ID] = g
	}
	return bound, nil
}
