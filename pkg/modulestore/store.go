// Package modulestore maps source names to module labels. The labels are
// kept in a YAML file of the form
//
//	github.com/acme/shop/cart.Cart: [shop, checkout]
//	github.com/acme/shop/db.Pool: [infra]
//
// and can be reloaded while a tracer is using the store.
package modulestore

import (
	"fmt"
	"os"
	"slices"
	"sort"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/ritzau/calltrace/pkg/definition"
)

// Store is a concurrency-safe source → module labels table
type Store struct {
	mu      sync.RWMutex
	path    string
	modules map[string][]string
}

// New creates an in-memory store from a copy of modules
func New(modules map[string][]string) *Store {
	s := &Store{}
	s.replace(modules)
	return s
}

// Load reads the store from a YAML file and remembers the path for Reload
// and Watch.
func Load(path string) (*Store, error) {
	s := &Store{path: path}
	if err := s.Reload(); err != nil {
		return nil, err
	}
	return s, nil
}

// Reload re-reads the file the store was loaded from. On error the current
// labels are kept.
func (s *Store) Reload() error {
	if s.path == "" {
		return fmt.Errorf("module store has no backing file")
	}

	data, err := os.ReadFile(s.path)
	if err != nil {
		return fmt.Errorf("failed to read module file: %w", err)
	}

	var modules map[string][]string
	if err := yaml.Unmarshal(data, &modules); err != nil {
		return fmt.Errorf("failed to parse module file %s: %w", s.path, err)
	}

	s.replace(modules)
	return nil
}

func (s *Store) replace(modules map[string][]string) {
	next := make(map[string][]string, len(modules))
	for source, labels := range modules {
		labels = slices.Clone(labels)
		sort.Strings(labels)
		next[source] = slices.Compact(labels)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.modules = next
}

// Modules returns the sorted labels of source, nil when it has none
func (s *Store) Modules(source string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.modules[source])
}

// Sources returns every labelled source name, sorted
func (s *Store) Sources() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sources := make([]string, 0, len(s.modules))
	for source := range s.modules {
		sources = append(sources, source)
	}
	sort.Strings(sources)
	return sources
}

// Path returns the backing file, "" for in-memory stores
func (s *Store) Path() string {
	return s.path
}

// Label adds the stored labels to every source of def and returns how many
// sources received at least one label.
func (s *Store) Label(def *definition.Definition) int {
	labelled := 0
	for _, source := range def.Sources() {
		if modules := s.Modules(source.Name()); len(modules) > 0 {
			source.AddModule(modules...)
			labelled++
		}
	}
	return labelled
}
