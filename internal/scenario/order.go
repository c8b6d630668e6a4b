package scenario

import (
	"errors"
	"fmt"

	"github.com/dominikbraun/graph"
)

// Order resolves the launch order for the given scenarios: declaration order,
// constrained by depends_on edges. Scenarios never reorder relative to their
// declaration unless a dependency forces it. A dependency cycle is an error.
// Edges to scenarios outside the given slice are ignored, so a limited run
// does not drag in unselected dependencies.
func Order(scenarios []*Scenario) ([]*Scenario, error) {
	byID := make(map[string]*Scenario, len(scenarios))
	index := make(map[string]int, len(scenarios))
	for i, sc := range scenarios {
		byID[sc.ID] = sc
		index[sc.ID] = i
	}

	g := graph.New(graph.StringHash, graph.Directed(), graph.PreventCycles())
	for _, sc := range scenarios {
		if err := g.AddVertex(sc.ID); err != nil {
			return nil, fmt.Errorf("add scenario %q: %w", sc.ID, err)
		}
	}
	for _, sc := range scenarios {
		for _, dep := range sc.DependsOn {
			if _, ok := byID[dep]; !ok {
				continue
			}
			err := g.AddEdge(dep, sc.ID)
			if err != nil && !errors.Is(err, graph.ErrEdgeAlreadyExists) {
				return nil, fmt.Errorf("scenario %q depends_on %q: %w", sc.ID, dep, err)
			}
		}
	}

	ids, err := graph.StableTopologicalSort(g, func(a, b string) bool {
		return index[a] < index[b]
	})
	if err != nil {
		return nil, fmt.Errorf("resolve scenario order: %w", err)
	}

	ordered := make([]*Scenario, 0, len(ids))
	for _, id := range ids {
		ordered = append(ordered, byID[id])
	}
	return ordered, nil
}

// Levels groups already-ordered scenarios into dependency waves: every
// scenario in a wave only depends on scenarios in earlier waves, so each wave
// can run concurrently once the previous one finished.
func Levels(ordered []*Scenario) [][]*Scenario {
	depth := make(map[string]int, len(ordered))
	present := make(map[string]struct{}, len(ordered))
	for _, sc := range ordered {
		present[sc.ID] = struct{}{}
	}

	var levels [][]*Scenario
	for _, sc := range ordered {
		d := 0
		for _, dep := range sc.DependsOn {
			if _, ok := present[dep]; !ok {
				continue
			}
			if depth[dep]+1 > d {
				d = depth[dep] + 1
			}
		}
		depth[sc.ID] = d
		for len(levels) <= d {
			levels = append(levels, nil)
		}
		levels[d] = append(levels[d], sc)
	}
	return levels
}
