package graph

import (
	"sort"

	gonum "gonum.org/v1/gonum/graph"
	"gonum.org/v1/gonum/graph/simple"

	"github.com/ritzau/calltrace/pkg/definition"
)

// SourceGraph is a directed graph of named nodes backed by gonum. Nodes are
// traced sources, or modules for a module rollup.
type SourceGraph struct {
	graph  *simple.DirectedGraph
	ids    map[string]int64 // Map from name to graph ID
	names  map[int64]string // Map from graph ID to name
	nextID int64
}

// NewSourceGraph creates an empty graph
func NewSourceGraph() *SourceGraph {
	return &SourceGraph{
		graph: simple.NewDirectedGraph(),
		ids:   make(map[string]int64),
		names: make(map[int64]string),
	}
}

// AddNode adds a named node if it is not present yet
func (sg *SourceGraph) AddNode(name string) {
	if _, exists := sg.ids[name]; exists {
		return
	}

	sg.ids[name] = sg.nextID
	sg.names[sg.nextID] = name
	sg.graph.AddNode(simple.Node(sg.nextID))
	sg.nextID++
}

// AddEdge adds an edge from source to target, adding missing nodes.
// Self edges are ignored.
func (sg *SourceGraph) AddEdge(source, target string) {
	sg.AddNode(source)
	sg.AddNode(target)
	if source == target {
		return
	}

	sourceID := sg.ids[source]
	targetID := sg.ids[target]

	// Add edge if it doesn't already exist
	if !sg.graph.HasEdgeFromTo(sourceID, targetID) {
		sg.graph.SetEdge(sg.graph.NewEdge(sg.graph.Node(sourceID), sg.graph.Node(targetID)))
	}
}

// Graph returns the underlying directed graph
func (sg *SourceGraph) Graph() *simple.DirectedGraph {
	return sg.graph
}

// Name returns the node name for a graph ID
func (sg *SourceGraph) Name(id int64) (string, bool) {
	name, ok := sg.names[id]
	return name, ok
}

// Has reports whether name is a node
func (sg *SourceGraph) Has(name string) bool {
	_, ok := sg.ids[name]
	return ok
}

// Nodes returns all node names, sorted
func (sg *SourceGraph) Nodes() []string {
	nodes := make([]string, 0, len(sg.ids))
	for name := range sg.ids {
		nodes = append(nodes, name)
	}
	sort.Strings(nodes)
	return nodes
}

// Edges returns all edges as [source, target] pairs, sorted
func (sg *SourceGraph) Edges() [][2]string {
	var edges [][2]string

	iter := sg.graph.Edges()
	for iter.Next() {
		edge := iter.Edge()
		edges = append(edges, [2]string{sg.names[edge.From().ID()], sg.names[edge.To().ID()]})
	}

	sort.Slice(edges, func(i, j int) bool {
		if edges[i][0] != edges[j][0] {
			return edges[i][0] < edges[j][0]
		}
		return edges[i][1] < edges[j][1]
	})
	return edges
}

// Dependencies returns the nodes name has edges to, sorted
func (sg *SourceGraph) Dependencies(name string) []string {
	id, exists := sg.ids[name]
	if !exists {
		return nil
	}
	return sg.collect(sg.graph.From(id))
}

// Dependents returns the nodes with edges to name, sorted
func (sg *SourceGraph) Dependents(name string) []string {
	id, exists := sg.ids[name]
	if !exists {
		return nil
	}
	return sg.collect(sg.graph.To(id))
}

func (sg *SourceGraph) collect(nodes gonum.Nodes) []string {
	var names []string
	for nodes.Next() {
		names = append(names, sg.names[nodes.Node().ID()])
	}
	sort.Strings(names)
	return names
}

// BuildSourceGraph builds the source-level graph of a definition. Every
// source becomes a node, every dependency an edge.
func BuildSourceGraph(def *definition.Definition) *SourceGraph {
	sg := NewSourceGraph()

	for _, source := range def.Sources() {
		sg.AddNode(source.Name())
		for _, dep := range source.Dependencies() {
			sg.AddEdge(source.Name(), dep.Name())
		}
	}

	return sg
}
