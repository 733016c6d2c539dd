package trace

import (
	"errors"
	"fmt"

	"github.com/ritzau/calltrace/pkg/typeinfo"
)

// ScopeFilter decides whether a type is recorded as a source. A type is in
// scope when it, or any ancestor on its single-parent chain, is a member.
// Verdicts are memoised, so repeated queries are O(1). A ScopeFilter is
// safe for concurrent use.
type ScopeFilter struct {
	cache *chainCache[bool]
	files map[string]struct{}
}

// NewScopeFilter creates a filter whose explicit members are types.
func NewScopeFilter(types ...typeinfo.Type) *ScopeFilter {
	f := &ScopeFilter{}
	f.cache = newChainCache(f.located)
	for _, t := range types {
		if t != nil {
			f.cache.set(t, "", true)
		}
	}
	return f
}

// NewScopeFilterFromNames resolves names and uses them as members.
func NewScopeFilterFromNames(resolver typeinfo.Resolver, names ...string) (*ScopeFilter, error) {
	types := make([]typeinfo.Type, 0, len(names))
	for _, name := range names {
		t, err := resolver.Resolve(name)
		if err != nil {
			return nil, fmt.Errorf("building scope filter: %w", err)
		}
		types = append(types, t)
	}
	return NewScopeFilter(types...), nil
}

// IncludeFiles adds every type declared in one of files to the scope.
// Only types implementing typeinfo.Located can match.
func (f *ScopeFilter) IncludeFiles(files ...string) *ScopeFilter {
	if f.files == nil {
		f.files = make(map[string]struct{}, len(files))
	}
	for _, file := range files {
		f.files[file] = struct{}{}
	}
	return f
}

func (f *ScopeFilter) located(t typeinfo.Type) (bool, bool) {
	if len(f.files) == 0 {
		return false, false
	}
	l, ok := t.(typeinfo.Located)
	if !ok {
		return false, false
	}
	if _, ok := f.files[l.File()]; ok {
		return true, true
	}
	return false, false
}

// Include reports whether t is in scope. A type that is still being
// constructed is reported as out of scope.
func (f *ScopeFilter) Include(t typeinfo.Type) (bool, error) {
	if t == nil {
		return false, nil
	}
	included, err := f.cache.lookup(t, "")
	if errors.Is(err, typeinfo.ErrNotReady) {
		return false, nil
	}
	return included, err
}
