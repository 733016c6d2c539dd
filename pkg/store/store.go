// Package store aggregates finished Definitions, for example all traces of
// a test run, and combines them per group.
package store

import (
	"errors"
	"fmt"
	"slices"
	"sort"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/ritzau/calltrace/pkg/definition"
)

// ErrNotFound is returned for unknown ids
var ErrNotFound = errors.New("definition not found")

type metrics struct {
	added    prometheus.Counter
	stored   prometheus.Gauge
	combined *prometheus.CounterVec
}

func newMetrics(reg prometheus.Registerer) *metrics {
	return &metrics{
		added: register(reg, prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "calltrace",
			Subsystem: "store",
			Name:      "definitions_added_total",
			Help:      "Total definitions added to the store",
		})),
		stored: register(reg, prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "calltrace",
			Subsystem: "store",
			Name:      "definitions",
			Help:      "Definitions currently held by the store",
		})),
		combined: register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "calltrace",
			Subsystem: "store",
			Name:      "combines_total",
			Help:      "Total combine operations by status",
		}, []string{"status"})),
	}
}

// register adds c to reg. Stores sharing a registry share the collectors
// registered by the first of them.
func register[C prometheus.Collector](reg prometheus.Registerer, c C) C {
	if err := reg.Register(c); err != nil {
		var already prometheus.AlreadyRegisteredError
		if errors.As(err, &already) {
			if existing, ok := already.ExistingCollector.(C); ok {
				return existing
			}
		}
		panic(fmt.Sprintf("registering store metrics: %v", err))
	}
	return c
}

// Store holds Definitions under sequential ids starting at 1. It is safe
// for concurrent use.
type Store struct {
	mu          sync.RWMutex
	nextID      int
	definitions map[int]*definition.Definition
	metrics     *metrics
}

// Option configures a Store
type Option func(*storeOptions)

type storeOptions struct {
	registerer prometheus.Registerer
}

// WithRegisterer registers the store metrics with reg. Without it every
// store gets a private registry.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(o *storeOptions) {
		o.registerer = reg
	}
}

// New creates an empty store
func New(opts ...Option) *Store {
	o := storeOptions{registerer: prometheus.NewRegistry()}
	for _, opt := range opts {
		opt(&o)
	}
	return &Store{
		nextID:      1,
		definitions: make(map[int]*definition.Definition),
		metrics:     newMetrics(o.registerer),
	}
}

// Set adds definitions and returns their ids. Nil entries are skipped.
func (s *Store) Set(defs ...*definition.Definition) []int {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids := make([]int, 0, len(defs))
	for _, d := range defs {
		if d == nil {
			continue
		}
		id := s.nextID
		s.nextID++
		s.definitions[id] = d
		ids = append(ids, id)
	}

	s.metrics.added.Add(float64(len(ids)))
	s.metrics.stored.Set(float64(len(s.definitions)))
	return ids
}

// Get returns the definition stored under id
func (s *Store) Get(id int) (*definition.Definition, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	d, ok := s.definitions[id]
	if !ok {
		return nil, fmt.Errorf("%w: id %d", ErrNotFound, id)
	}
	return d, nil
}

// Len returns the number of stored definitions
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.definitions)
}

func (s *Store) sortedIDs() []int {
	ids := make([]int, 0, len(s.definitions))
	for id := range s.definitions {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// Each calls fn for every definition in id order. The store is read-locked
// while fn runs.
func (s *Store) Each(fn func(id int, d *definition.Definition)) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, id := range s.sortedIDs() {
		fn(id, s.definitions[id])
	}
}

// All returns every definition in id order
func (s *Store) All() []*definition.Definition {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*definition.Definition, 0, len(s.definitions))
	for _, id := range s.sortedIDs() {
		out = append(out, s.definitions[id])
	}
	return out
}

// Groups returns the distinct groups, sorted, with the empty group last
func (s *Store) Groups() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	seen := make(map[string]struct{})
	for _, d := range s.definitions {
		seen[d.Group] = struct{}{}
	}

	groups := make([]string, 0, len(seen))
	for g := range seen {
		groups = append(groups, g)
	}
	sort.Slice(groups, func(i, j int) bool {
		if groups[i] == "" || groups[j] == "" {
			return groups[j] == ""
		}
		return groups[i] < groups[j]
	})
	return groups
}

// FilterByGroup returns the definitions of group in id order
func (s *Store) FilterByGroup(group string) []*definition.Definition {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*definition.Definition
	for _, id := range s.sortedIDs() {
		if d := s.definitions[id]; d.Group == group {
			out = append(out, d)
		}
	}
	return out
}

// Clear removes every definition. Ids are not reused.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	clear(s.definitions)
	s.metrics.stored.Set(0)
}

// Combined merges every definition of group into one titled title
func (s *Store) Combined(group, title string) (*definition.Definition, error) {
	d, err := definition.Combine(group, title, s.FilterByGroup(group)...)
	if err != nil {
		s.metrics.combined.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("combining group %q: %w", group, err)
	}
	s.metrics.combined.WithLabelValues("ok").Inc()
	return d, nil
}
