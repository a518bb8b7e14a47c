package curriculum

import (
	"errors"
	"fmt"
	"strings"
)

// DanglingPrerequisiteError reports a prerequisite id that names no topic.
type DanglingPrerequisiteError struct {
	TopicID        string
	PrerequisiteID string
}

func (e *DanglingPrerequisiteError) Error() string {
	return fmt.Sprintf("topic %q lists unknown prerequisite %q", e.TopicID, e.PrerequisiteID)
}

// CycleError reports a prerequisite cycle. Path starts and ends with the same id.
type CycleError struct {
	Path []string
}

func (e *CycleError) Error() string {
	return "prerequisite cycle: " + strings.Join(e.Path, " -> ")
}

// Validate checks the graph for authoring defects. It returns nil for a clean
// graph, otherwise every defect joined into one error.
func (g *Graph) Validate() error {
	var errs []error

	for _, t := range g.topics {
		for _, p := range t.Prerequisites {
			if _, ok := g.byID[p]; !ok {
				errs = append(errs, &DanglingPrerequisiteError{TopicID: t.ID, PrerequisiteID: p})
			}
		}
	}

	for _, cycle := range g.findCycles() {
		errs = append(errs, &CycleError{Path: cycle})
	}

	return errors.Join(errs...)
}

const (
	white = iota // unvisited
	grey         // on the current DFS path
	black        // finished
)

// findCycles reports one path per back edge found by a DFS started from each
// topic in authoring order.
func (g *Graph) findCycles() [][]string {
	color := make([]int, len(g.topics))
	var path []string
	var cycles [][]string

	var visit func(idx int)
	visit = func(idx int) {
		color[idx] = grey
		path = append(path, g.topics[idx].ID)

		for _, p := range g.topics[idx].Prerequisites {
			next, ok := g.byID[p]
			if !ok {
				continue
			}
			switch color[next] {
			case white:
				visit(next)
			case grey:
				start := 0
				for i, id := range path {
					if id == p {
						start = i
						break
					}
				}
				cycle := append([]string(nil), path[start:]...)
				cycles = append(cycles, append(cycle, p))
			}
		}

		path = path[:len(path)-1]
		color[idx] = black
	}

	for i := range g.topics {
		if color[i] == white {
			visit(i)
		}
	}
	return cycles
}
