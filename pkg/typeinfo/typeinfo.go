// Package typeinfo describes receiver types the way the tracer sees them:
// an external name plus an optional single-parent ancestor chain.
package typeinfo

import "errors"

var (
	// ErrNotReady is returned by Parent while a type is still being constructed.
	// Callers treat it as a transient condition rather than a failure.
	ErrNotReady = errors.New("type not fully constructed")

	// ErrUnknownType is returned by a Resolver when a name has no live type.
	ErrUnknownType = errors.New("unknown type")
)

// Type is a receiver type observed in a call event.
type Type interface {
	// Name returns the external namespaced name, or "" for anonymous types.
	Name() string

	// Inheritable reports whether the type has an ancestor chain at all.
	// Plain namespaces return false and are never walked.
	Inheritable() bool

	// Parent returns the single parent type, or nil at the root of the chain.
	Parent() (Type, error)
}

// Located is implemented by types that know the file they are declared in.
type Located interface {
	File() string
}

// Resolver maps an external name to the live type object.
type Resolver interface {
	Resolve(name string) (Type, error)
}

// ResolverFunc adapts a function to the Resolver interface.
type ResolverFunc func(name string) (Type, error)

// Resolve calls f(name).
func (f ResolverFunc) Resolve(name string) (Type, error) {
	return f(name)
}
