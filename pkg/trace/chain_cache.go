package trace

import (
	"sync"

	"github.com/ritzau/calltrace/pkg/typeinfo"
)

type chainKey struct {
	typ    typeinfo.Type
	method string
}

// chainCache memoises a per-type verdict that is inherited along the
// single-parent chain. A miss walks up until a resolved ancestor (or a seed
// hit) is found and stores the verdict for every type visited on the way.
// It is safe for concurrent use.
type chainCache[V comparable] struct {
	mu     sync.Mutex
	values map[chainKey]V
	// seed reports a verdict for a type that is not cached yet, if it has one
	// of its own.
	seed func(t typeinfo.Type) (V, bool)
}

func newChainCache[V comparable](seed func(typeinfo.Type) (V, bool)) *chainCache[V] {
	return &chainCache[V]{
		values: make(map[chainKey]V),
		seed:   seed,
	}
}

func (c *chainCache[V]) set(t typeinfo.Type, method string, v V) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.store(t, method, v)
}

func (c *chainCache[V]) store(t typeinfo.Type, method string, v V) {
	c.values[chainKey{typ: t, method: method}] = v
}

// lookup returns the verdict for (t, method). Errors from Parent abort the
// walk without memoising anything. A chain that loops back on itself ends at
// the first revisited type.
func (c *chainCache[V]) lookup(t typeinfo.Type, method string) (V, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if v, ok := c.values[chainKey{typ: t, method: method}]; ok {
		return v, nil
	}

	var verdict V
	if !t.Inheritable() {
		if c.seed != nil {
			if v, ok := c.seed(t); ok {
				verdict = v
			}
		}
		c.store(t, method, verdict)
		return verdict, nil
	}

	var visited []typeinfo.Type
	seen := make(map[typeinfo.Type]struct{})
	for current := t; current != nil; {
		if v, ok := c.values[chainKey{typ: current, method: method}]; ok {
			verdict = v
			break
		}
		if _, ok := seen[current]; ok {
			break
		}
		seen[current] = struct{}{}
		visited = append(visited, current)
		if c.seed != nil {
			if v, ok := c.seed(current); ok {
				verdict = v
				break
			}
		}
		if !current.Inheritable() {
			break
		}
		parent, err := current.Parent()
		if err != nil {
			var zero V
			return zero, err
		}
		current = parent
	}

	for _, v := range visited {
		c.store(v, method, verdict)
	}
	return verdict, nil
}
