/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package stories

import (
	"container/heap"
	"slices"
)

// Story is a named requirement with a gate and a set of prerequisites.
type Story struct {
	// ID uniquely identifies the story within a graph.
	ID string `json:"id" yaml:"id"`
	// Title is the human readable requirement.
	Title string `json:"title" yaml:"title"`
	// Gate names the gate that validates this story. When empty the gate is
	// looked up under the story ID.
	Gate string `json:"gate,omitempty" yaml:"gate,omitempty"`
	// DependsOn lists the ids of stories that must be evaluated first.
	DependsOn []string `json:"dependsOn,omitempty" yaml:"dependsOn,omitempty"`
}

// GateRef returns the name of the gate that validates s.
func (s Story) GateRef() string {
	if s.Gate != "" {
		return s.Gate
	}
	return s.ID
}

// ResolveOrder returns the stories ordered so that every story appears after
// all of its dependencies. Ties are broken by declaration order.
func ResolveOrder(set []Story) ([]Story, error) {
	index := make(map[string]int, len(set))
	for i, s := range set {
		if s.ID == "" {
			return nil, &DuplicateStoryError{}
		}
		if _, dup := index[s.ID]; dup {
			return nil, &DuplicateStoryError{ID: s.ID}
		}
		index[s.ID] = i
	}

	indeg := make([]int, len(set))
	dependents := make([][]int, len(set))
	for i, s := range set {
		seen := make(map[int]struct{}, len(s.DependsOn))
		for _, dep := range s.DependsOn {
			j, ok := index[dep]
			if !ok {
				return nil, &UnknownDependencyError{Story: s.ID, Dependency: dep}
			}
			// A repeated dependency is one edge.
			if _, ok := seen[j]; ok {
				continue
			}
			seen[j] = struct{}{}
			indeg[i]++
			dependents[j] = append(dependents[j], i)
		}
	}

	ready := &declOrder{}
	for i := range set {
		if indeg[i] == 0 {
			heap.Push(ready, i)
		}
	}

	order := make([]Story, 0, len(set))
	for ready.Len() > 0 {
		i := heap.Pop(ready).(int)
		order = append(order, set[i])
		for _, d := range dependents[i] {
			indeg[d]--
			if indeg[d] == 0 {
				heap.Push(ready, d)
			}
		}
	}

	if len(order) < len(set) {
		return nil, &CycleError{Cycle: findCycle(set, index, indeg)}
	}
	return order, nil
}

// findCycle walks residual dependencies from the first residual story in
// declaration order until a story repeats. Every residual story has at least
// one residual dependency, so the walk always closes a cycle.
func findCycle(set []Story, index map[string]int, indeg []int) []string {
	start := slices.IndexFunc(indeg, func(d int) bool { return d > 0 })

	pos := make(map[int]int)
	var path []int
	for cur := start; ; {
		if at, ok := pos[cur]; ok {
			cycle := make([]string, 0, len(path)-at+1)
			for _, i := range path[at:] {
				cycle = append(cycle, set[i].ID)
			}
			return append(cycle, set[cur].ID)
		}
		pos[cur] = len(path)
		path = append(path, cur)

		for _, dep := range set[cur].DependsOn {
			if j := index[dep]; indeg[j] > 0 {
				cur = j
				break
			}
		}
	}
}

// declOrder is a min-heap of declaration indices.
type declOrder []int

func (h declOrder) Len() int           { return len(h) }
func (h declOrder) Less(i, j int) bool { return h[i] < h[j] }
func (h declOrder) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *declOrder) Push(x any)        { *h = append(*h, x.(int)) }
func (h *declOrder) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}
