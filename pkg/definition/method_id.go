package definition

import (
	"fmt"
	"slices"
)

// Kind tells whether a method was invoked on the type itself or on an instance
type Kind string

const (
	KindStatic   Kind = "static"
	KindInstance Kind = "instance"
)

// KindOf maps the static flag of a call event to a Kind.
func KindOf(static bool) Kind {
	if static {
		return KindStatic
	}
	return KindInstance
}

// ParseKind validates a serialized kind.
func ParseKind(s string) (Kind, error) {
	switch Kind(s) {
	case KindStatic, KindInstance:
		return Kind(s), nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidKind, s)
}

// MethodID is one callable surface on a dependency together with the call
// sites (file:line) it was observed from.
type MethodID struct {
	name  string
	kind  Kind
	paths map[string]struct{}
}

// NewMethodID creates a method id with an initial set of paths.
func NewMethodID(name string, kind Kind, paths ...string) *MethodID {
	m := &MethodID{
		name:  name,
		kind:  kind,
		paths: make(map[string]struct{}, len(paths)),
	}
	m.AddPath(paths...)
	return m
}

func (m *MethodID) Name() string { return m.name }
func (m *MethodID) Kind() Kind   { return m.kind }

// AddPath adds call sites to the set. Existing paths are kept.
func (m *MethodID) AddPath(paths ...string) {
	for _, p := range paths {
		m.paths[p] = struct{}{}
	}
}

// HasPath reports whether the call site was recorded.
func (m *MethodID) HasPath(path string) bool {
	_, ok := m.paths[path]
	return ok
}

// Paths returns the recorded call sites in sorted order.
func (m *MethodID) Paths() []string {
	paths := make([]string, 0, len(m.paths))
	for p := range m.paths {
		paths = append(paths, p)
	}
	slices.Sort(paths)
	return paths
}

// HumanName renders the method the way it is written in selectors:
// ".name" for static calls, "#name" for instance calls.
func (m *MethodID) HumanName() string {
	if m.kind == KindInstance {
		return "#" + m.name
	}
	return "." + m.name
}

func (m *MethodID) String() string {
	return fmt.Sprintf("%s paths=%v", m.HumanName(), m.Paths())
}

type methodKey struct {
	name string
	kind Kind
}

func (k methodKey) compare(o methodKey) int {
	if k.name != o.name {
		if k.name < o.name {
			return -1
		}
		return 1
	}
	switch {
	case k.kind < o.kind:
		return -1
	case k.kind > o.kind:
		return 1
	}
	return 0
}
