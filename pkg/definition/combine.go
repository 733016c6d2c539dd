package definition

import (
	"fmt"
	"slices"
)

// Combine merges definitions describing the same component universe.
// Sources are grouped by name, dependencies by target, method ids by
// (name, kind) and paths are unioned. Same-named sources must carry the same
// module labels; otherwise ErrUnmatchedModules is returned. Inputs are not
// modified.
func Combine(group, title string, definitions ...*Definition) (*Definition, error) {
	grouped := make(map[string][]*Source)
	var order []string

	for _, def := range definitions {
		if def == nil {
			continue
		}
		for _, s := range def.sources {
			if _, seen := grouped[s.name]; !seen {
				order = append(order, s.name)
			}
			grouped[s.name] = append(grouped[s.name], s)
		}
	}

	combined := New(group, title)
	for _, name := range order {
		s, err := CombineSources(grouped[name]...)
		if err != nil {
			return nil, err
		}
		combined.sources[name] = s
	}

	return combined, nil
}

// CombineSources merges sources sharing one name into a new source.
func CombineSources(sources ...*Source) (*Source, error) {
	if len(sources) == 0 {
		return nil, ErrNoSources
	}

	first := sources[0]
	modules := first.ModuleNames()
	var all []*Dependency

	for _, s := range sources {
		if s.name != first.name {
			return nil, fmt.Errorf("%w: %q and %q", ErrUnmatchedSources, first.name, s.name)
		}
		if other := s.ModuleNames(); !slices.Equal(modules, other) {
			return nil, fmt.Errorf("%w: source %q has %v and %v", ErrUnmatchedModules, s.name, modules, other)
		}
		for _, d := range s.dependencies {
			all = append(all, d)
		}
	}

	combined := NewSource(first.name, modules...)
	for _, d := range CombineDependencies(all...) {
		combined.dependencies[d.name] = d
	}

	return combined, nil
}

// CombineDependencies unions dependencies by target name, returning one new
// dependency per target sorted by name.
func CombineDependencies(dependencies ...*Dependency) []*Dependency {
	byName := make(map[string]*Dependency)

	for _, d := range dependencies {
		merged, ok := byName[d.name]
		if !ok {
			merged = NewDependency(d.name)
			byName[d.name] = merged
		}
		for _, m := range d.methodIDs {
			merged.FindOrBuildMethodID(m.name, m.kind).AddPath(m.Paths()...)
		}
	}

	return sortedDependencies(byName)
}
