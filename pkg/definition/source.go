package definition

import (
	"slices"
	"strings"
)

// Module is a label grouping sources into a higher-level architectural unit.
type Module struct {
	Name string
}

// Source is one traced component.
type Source struct {
	name         string
	dependencies map[string]*Dependency
	modules      map[string]Module
}

// NewSource creates a source carrying the given module labels.
func NewSource(name string, modules ...string) *Source {
	s := &Source{
		name:         name,
		dependencies: make(map[string]*Dependency),
		modules:      make(map[string]Module),
	}
	s.AddModule(modules...)
	return s
}

// Name returns the unique source name.
func (s *Source) Name() string { return s.name }

// FindOrBuildDependency returns the edge to target, creating it on first use.
// It returns nil when target is the source itself: self references are not
// dependencies.
func (s *Source) FindOrBuildDependency(target string) *Dependency {
	if target == s.name {
		return nil
	}
	d, ok := s.dependencies[target]
	if !ok {
		d = NewDependency(target)
		s.dependencies[target] = d
	}
	return d
}

// Dependency returns the edge to target or nil.
func (s *Source) Dependency(target string) *Dependency {
	if target == s.name {
		return nil
	}
	return s.dependencies[target]
}

// Dependencies returns every edge sorted by target name.
func (s *Source) Dependencies() []*Dependency {
	return sortedDependencies(s.dependencies)
}

func sortedDependencies(byName map[string]*Dependency) []*Dependency {
	deps := make([]*Dependency, 0, len(byName))
	for _, d := range byName {
		deps = append(deps, d)
	}
	slices.SortFunc(deps, func(a, b *Dependency) int {
		return strings.Compare(a.name, b.name)
	})
	return deps
}

// AddModule attaches module labels. Labels already present are kept once.
func (s *Source) AddModule(names ...string) {
	for _, name := range names {
		s.modules[name] = Module{Name: name}
	}
}

// Modules returns the labels sorted by name.
func (s *Source) Modules() []Module {
	modules := make([]Module, 0, len(s.modules))
	for _, m := range s.modules {
		modules = append(modules, m)
	}
	slices.SortFunc(modules, func(a, b Module) int {
		return strings.Compare(a.Name, b.Name)
	})
	return modules
}

// ModuleNames returns the label names sorted.
func (s *Source) ModuleNames() []string {
	names := make([]string, 0, len(s.modules))
	for name := range s.modules {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}
