package graph

import (
	"sort"

	"github.com/ritzau/calltrace/pkg/definition"
)

// ModuleDependency is an edge between two module labels, rolled up from
// source-level dependencies.
type ModuleDependency struct {
	From string
	To   string
	// Sources lists the "source -> target" edges behind this one, sorted
	Sources []string
}

// ModuleDependencies rolls the source graph up to module labels. A source
// carrying several labels contributes to each of them. Sources without
// labels are skipped, as are edges between a module and itself.
func ModuleDependencies(def *definition.Definition) []ModuleDependency {
	type key struct{ from, to string }
	rolled := make(map[key]map[string]struct{})

	for _, source := range def.Sources() {
		fromModules := source.ModuleNames()
		if len(fromModules) == 0 {
			continue
		}
		for _, dep := range source.Dependencies() {
			target := def.Source(dep.Name())
			if target == nil {
				continue
			}
			edge := source.Name() + " -> " + target.Name()
			for _, from := range fromModules {
				for _, to := range target.ModuleNames() {
					if from == to {
						continue
					}
					k := key{from, to}
					if rolled[k] == nil {
						rolled[k] = make(map[string]struct{})
					}
					rolled[k][edge] = struct{}{}
				}
			}
		}
	}

	deps := make([]ModuleDependency, 0, len(rolled))
	for k, edges := range rolled {
		md := ModuleDependency{From: k.from, To: k.to}
		for edge := range edges {
			md.Sources = append(md.Sources, edge)
		}
		sort.Strings(md.Sources)
		deps = append(deps, md)
	}
	sort.Slice(deps, func(i, j int) bool {
		if deps[i].From != deps[j].From {
			return deps[i].From < deps[j].From
		}
		return deps[i].To < deps[j].To
	})
	return deps
}

// BuildModuleGraph builds a graph whose nodes are module labels. Every
// label in use is a node, even without edges.
func BuildModuleGraph(def *definition.Definition) *SourceGraph {
	mg := NewSourceGraph()
	for _, source := range def.Sources() {
		for _, m := range source.ModuleNames() {
			mg.AddNode(m)
		}
	}
	for _, md := range ModuleDependencies(def) {
		mg.AddEdge(md.From, md.To)
	}
	return mg
}
