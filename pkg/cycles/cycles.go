// Package cycles finds circular dependencies in traced graphs.
package cycles

import (
	"slices"
	"sort"

	"gonum.org/v1/gonum/graph/topo"

	"github.com/ritzau/calltrace/pkg/definition"
	"github.com/ritzau/calltrace/pkg/graph"
)

// Cycle is a strongly connected set of nodes, sorted by name
type Cycle struct {
	Nodes []string
}

// FindCycles returns every strongly connected component of sg with more than
// one node. Cycles are ordered by their first node.
func FindCycles(sg *graph.SourceGraph) []Cycle {
	cycles := make([]Cycle, 0)
	for _, scc := range topo.TarjanSCC(sg.Graph()) {
		// Only components with more than one node are cycles; self edges
		// are never added to a SourceGraph
		if len(scc) < 2 {
			continue
		}

		names := make([]string, 0, len(scc))
		for _, node := range scc {
			if name, ok := sg.Name(node.ID()); ok {
				names = append(names, name)
			}
		}
		sort.Strings(names)
		cycles = append(cycles, Cycle{Nodes: names})
	}

	slices.SortFunc(cycles, func(a, b Cycle) int {
		return slices.Compare(a.Nodes, b.Nodes)
	})
	return cycles
}

// FindSourceCycles finds cycles between traced sources
func FindSourceCycles(def *definition.Definition) []Cycle {
	return FindCycles(graph.BuildSourceGraph(def))
}

// FindModuleCycles finds cycles between module labels
func FindModuleCycles(def *definition.Definition) []Cycle {
	return FindCycles(graph.BuildModuleGraph(def))
}
