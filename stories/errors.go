/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package stories

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrConfiguration is matched by every story graph error. A configuration
	// error is fatal: no gate runs when the graph is invalid.
	ErrConfiguration = errors.New("invalid story configuration")

	// ErrUnknownDependency is matched when a story depends on an undeclared id.
	ErrUnknownDependency = errors.New("unknown dependency")

	// ErrCycleDetected is matched when the dependency relation is cyclic.
	ErrCycleDetected = errors.New("dependency cycle detected")
)

// UnknownDependencyError reports a DependsOn entry with no matching story.
type UnknownDependencyError struct {
	Story      string
	Dependency string
}

func (e *UnknownDependencyError) Error() string {
	return fmt.Sprintf("story %q depends on unknown story %q", e.Story, e.Dependency)
}

// Is implements errors.Is matching.
func (e *UnknownDependencyError) Is(target error) bool {
	return target == ErrUnknownDependency || target == ErrConfiguration
}

// CycleError reports a dependency cycle. Cycle holds the stories along one
// cycle, starting and ending with the same id.
type CycleError struct {
	Cycle []string
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("dependency cycle: %s", strings.Join(e.Cycle, " -> "))
}

// Is implements errors.Is matching.
func (e *CycleError) Is(target error) bool {
	return target == ErrCycleDetected || target == ErrConfiguration
}

// DuplicateStoryError reports a repeated or empty story id.
type DuplicateStoryError struct {
	ID string
}

func (e *DuplicateStoryError) Error() string {
	if e.ID == "" {
		return "story id is required"
	}
	return fmt.Sprintf("duplicate story id %q", e.ID)
}

// Is implements errors.Is matching.
func (e *DuplicateStoryError) Is(target error) bool {
	return target == ErrConfiguration
}
