/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

/*
Package stories defines the named, dependency-ordered checks that the
convergence loop validates a repository against, and resolves them into an
execution order.

A Story names a gate and the stories it depends on:

	set := []stories.Story{
		{ID: "repo-structure", Title: "Repo has required files"},
		{ID: "loop-script", Title: "Loop script is wired", DependsOn: []string{"repo-structure"}},
	}

	order, err := stories.ResolveOrder(set)
	if err != nil {
		// errors.Is(err, stories.ErrConfiguration) is always true here.
	}

# Ordering

ResolveOrder runs Kahn's algorithm. Among the stories whose dependencies are
all scheduled, the one declared first goes first, so the same input always
produces the same order and therefore the same report.

# Errors

Every error returned by this package matches ErrConfiguration. The concrete
types are:

  - *UnknownDependencyError: a DependsOn entry names an undeclared story
    (also matches ErrUnknownDependency).
  - *CycleError: the dependency relation has a cycle; Cycle lists the stories
    along it (also matches ErrCycleDetected).
  - *DuplicateStoryError: two stories share an ID, or an ID is empty.
*/
package stories
