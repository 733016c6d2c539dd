// Package definition holds the dependency graph captured by a trace and the
// algebra used to merge graphs from several runs.
package definition

import (
	"reflect"
	"slices"
	"strings"
)

// Definition is the complete graph captured by one trace.
type Definition struct {
	Group string
	Title string

	sources map[string]*Source
}

// New creates an empty definition
func New(group, title string) *Definition {
	return &Definition{
		Group:   group,
		Title:   title,
		sources: make(map[string]*Source),
	}
}

// FindOrBuildSource returns the named source, creating it on first use.
func (d *Definition) FindOrBuildSource(name string) *Source {
	s, ok := d.sources[name]
	if !ok {
		s = NewSource(name)
		d.sources[name] = s
	}
	return s
}

// Source returns the named source or nil.
func (d *Definition) Source(name string) *Source {
	return d.sources[name]
}

// Sources returns all sources sorted by name.
func (d *Definition) Sources() []*Source {
	sources := make([]*Source, 0, len(d.sources))
	for _, s := range d.sources {
		sources = append(sources, s)
	}
	slices.SortFunc(sources, func(a, b *Source) int {
		return strings.Compare(a.name, b.name)
	})
	return sources
}

// Len returns the number of sources.
func (d *Definition) Len() int {
	return len(d.sources)
}

// DependencyCount returns the number of source-to-source edges.
func (d *Definition) DependencyCount() int {
	n := 0
	for _, s := range d.sources {
		n += len(s.dependencies)
	}
	return n
}

// Equal reports whether two definitions describe the same graph.
func Equal(a, b *Definition) bool {
	if a == nil || b == nil {
		return a == b
	}
	return reflect.DeepEqual(a.Document(), b.Document())
}
