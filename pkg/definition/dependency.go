package definition

import (
	"slices"
)

// Dependency is a directed edge to the source called Name.
type Dependency struct {
	name      string
	methodIDs map[methodKey]*MethodID
}

// NewDependency creates an edge to the named source
func NewDependency(name string, methodIDs ...*MethodID) *Dependency {
	d := &Dependency{
		name:      name,
		methodIDs: make(map[methodKey]*MethodID),
	}
	for _, m := range methodIDs {
		d.FindOrBuildMethodID(m.Name(), m.Kind()).AddPath(m.Paths()...)
	}
	return d
}

// Name returns the target source name.
func (d *Dependency) Name() string { return d.name }

// FindOrBuildMethodID returns the method id for (name, kind), creating it on first use.
func (d *Dependency) FindOrBuildMethodID(name string, kind Kind) *MethodID {
	key := methodKey{name: name, kind: kind}
	m, ok := d.methodIDs[key]
	if !ok {
		m = NewMethodID(name, kind)
		d.methodIDs[key] = m
	}
	return m
}

// MethodID returns the method id for (name, kind) or nil.
func (d *Dependency) MethodID(name string, kind Kind) *MethodID {
	return d.methodIDs[methodKey{name: name, kind: kind}]
}

// MethodIDs returns all method ids sorted by name, then kind.
func (d *Dependency) MethodIDs() []*MethodID {
	ids := make([]*MethodID, 0, len(d.methodIDs))
	for _, m := range d.methodIDs {
		ids = append(ids, m)
	}
	slices.SortFunc(ids, func(a, b *MethodID) int {
		return methodKey{a.name, a.kind}.compare(methodKey{b.name, b.kind})
	})
	return ids
}
