package typeinfo

import "fmt"

// Class is an explicitly declared type. Hosts that cannot derive type
// information from the runtime declare their class hierarchy with a Registry.
type Class struct {
	name        string
	parent      Type
	inheritable bool
	file        string
	pending     bool
}

// ClassOption configures a Class at declaration time.
type ClassOption func(*Class)

// WithParent sets the single parent of the class.
func WithParent(parent Type) ClassOption {
	return func(c *Class) {
		c.parent = parent
	}
}

// DeclaredIn records the file the class is declared in.
func DeclaredIn(file string) ClassOption {
	return func(c *Class) {
		c.file = file
	}
}

// Pending marks the class as still under construction; Parent fails with
// ErrNotReady until Complete is called.
func Pending() ClassOption {
	return func(c *Class) {
		c.pending = true
	}
}

func (c *Class) Name() string      { return c.name }
func (c *Class) Inheritable() bool { return c.inheritable }
func (c *Class) File() string      { return c.file }

func (c *Class) Parent() (Type, error) {
	if c.pending {
		return nil, ErrNotReady
	}
	return c.parent, nil
}

// Complete finishes construction of a pending class.
func (c *Class) Complete() {
	c.pending = false
}

func (c *Class) String() string {
	if c.name == "" {
		return "<anonymous>"
	}
	return c.name
}

// Registry is a name-to-type resolver over declared classes and registered
// Go types. It is not safe for concurrent mutation; declare everything before
// tracing starts.
type Registry struct {
	types map[string]Type
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{
		types: make(map[string]Type),
	}
}

// Class declares an inheritable class. An empty name declares an anonymous
// class that is never registered by name.
func (r *Registry) Class(name string, opts ...ClassOption) *Class {
	c := &Class{name: name, inheritable: true}
	for _, opt := range opts {
		opt(c)
	}
	if name != "" {
		r.types[name] = c
	}
	return c
}

// Namespace declares a type without an ancestor chain.
func (r *Registry) Namespace(name string, opts ...ClassOption) *Class {
	c := r.Class(name, opts...)
	c.inheritable = false
	c.parent = nil
	return c
}

// Register adds an existing type under its own name.
func (r *Registry) Register(t Type) error {
	if t == nil || t.Name() == "" {
		return fmt.Errorf("cannot register anonymous type")
	}
	r.types[t.Name()] = t
	return nil
}

// Resolve returns the type registered under name.
func (r *Registry) Resolve(name string) (Type, error) {
	t, ok := r.types[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownType, name)
	}
	return t, nil
}
