package trace

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ritzau/calltrace/pkg/typeinfo"
)

// Effect is what an ignore rule does to a matching call.
type Effect string

const (
	// EffectNone means the call is not ignored.
	EffectNone Effect = ""
	// EffectSingle ignores the matching frame only; calls nested under it are
	// still traced and attach to the nearest traced ancestor.
	EffectSingle Effect = "single"
	// EffectAll ignores the matching frame and everything nested under it
	// until it returns.
	EffectAll Effect = "all"
)

// ParseEffect validates an effect value.
func ParseEffect(s string) (Effect, error) {
	switch Effect(s) {
	case EffectSingle, EffectAll:
		return Effect(s), nil
	}
	return EffectNone, fmt.Errorf("%w: unknown effect %q (valid values are %q and %q)", ErrInvalidSelector, s, EffectSingle, EffectAll)
}

// IgnoreRules decides whether a specific call is excluded from tracing, at
// whole-type, static-method and instance-method granularity. Rules are
// inherited along the single-parent chain and every granularity has its own
// memo table. IgnoreRules is safe for concurrent use.
type IgnoreRules struct {
	types    *chainCache[Effect]
	static   *chainCache[Effect]
	instance *chainCache[Effect]
}

// NewIgnoreRules parses selectors of the form "Type", "Type#method"
// (instance method) and "Type.method" (static method). Since type names may
// themselves contain dots, a selector without '#' that resolves as a whole
// is a type selector; otherwise the last '.' separates the method.
func NewIgnoreRules(resolver typeinfo.Resolver, rules map[string]Effect) (*IgnoreRules, error) {
	r := &IgnoreRules{
		types:    newChainCache[Effect](nil),
		static:   newChainCache[Effect](nil),
		instance: newChainCache[Effect](nil),
	}

	for selector, effect := range rules {
		if _, err := ParseEffect(string(effect)); err != nil {
			return nil, fmt.Errorf("selector %q: %w", selector, err)
		}
		if err := r.add(resolver, selector, effect); err != nil {
			return nil, err
		}
	}

	return r, nil
}

func (r *IgnoreRules) add(resolver typeinfo.Resolver, selector string, effect Effect) error {
	invalid := func(reason string) error {
		return fmt.Errorf("%w: %q: %s", ErrInvalidSelector, selector, reason)
	}
	resolve := func(name string) (typeinfo.Type, error) {
		t, err := resolver.Resolve(name)
		if err != nil {
			return nil, fmt.Errorf("%w: %q: %w", ErrInvalidSelector, selector, err)
		}
		return t, nil
	}

	if strings.TrimSpace(selector) == "" {
		return invalid("empty selector")
	}

	if typeName, method, ok := strings.Cut(selector, "#"); ok {
		if typeName == "" || method == "" || strings.ContainsAny(method, "#.") {
			return invalid("expected Type#method")
		}
		t, err := resolve(typeName)
		if err != nil {
			return err
		}
		r.instance.set(t, method, effect)
		return nil
	}

	if t, err := resolver.Resolve(selector); err == nil {
		r.types.set(t, "", effect)
		return nil
	}

	i := strings.LastIndex(selector, ".")
	if i < 0 {
		// a bare name that does not resolve
		_, err := resolve(selector)
		return err
	}
	typeName, method := selector[:i], selector[i+1:]
	if typeName == "" || method == "" {
		return invalid("expected Type.method")
	}
	t, err := resolve(typeName)
	if err != nil {
		return err
	}
	r.static.set(t, method, effect)
	return nil
}

// Ignored returns the effect applying to a call of method on t, or
// EffectNone. Types still under construction are never ignored.
func (r *IgnoreRules) Ignored(t typeinfo.Type, static bool, method string) (Effect, error) {
	if t == nil {
		return EffectNone, nil
	}

	effect, err := r.types.lookup(t, "")
	if err != nil || effect != EffectNone {
		return recoverNotReady(effect, err)
	}

	store := r.instance
	if static {
		store = r.static
	}
	return recoverNotReady(store.lookup(t, method))
}

func recoverNotReady(effect Effect, err error) (Effect, error) {
	if errors.Is(err, typeinfo.ErrNotReady) {
		return EffectNone, nil
	}
	return effect, err
}
