package store

import (
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ritzau/calltrace/pkg/definition"
)

func newTestStore() *Store {
	return New(WithRegisterer(prometheus.NewRegistry()))
}

func def(group, title string, edges ...[2]string) *definition.Definition {
	d := definition.New(group, title)
	for _, e := range edges {
		d.FindOrBuildSource(e[0]).FindOrBuildDependency(e[1]).
			FindOrBuildMethodID("call", definition.KindInstance).AddPath(title)
		d.FindOrBuildSource(e[1])
	}
	return d
}

func TestSetAssignsSequentialIDs(t *testing.T) {
	s := newTestStore()

	ids := s.Set(def("g", "one"), nil, def("g", "two"))
	assert.Equal(t, []int{1, 2}, ids)
	assert.Equal(t, []int{3}, s.Set(def("", "three")))
	assert.Equal(t, 3, s.Len())

	d, err := s.Get(2)
	require.NoError(t, err)
	assert.Equal(t, "two", d.Title)

	_, err = s.Get(42)
	assert.ErrorIs(t, err, ErrNotFound)

	assert.Equal(t, 3.0, testutil.ToFloat64(s.metrics.added))
	assert.Equal(t, 3.0, testutil.ToFloat64(s.metrics.stored))
}

func TestGroupsEmptyLast(t *testing.T) {
	s := newTestStore()
	s.Set(def("", "a"), def("zeta", "b"), def("alpha", "c"), def("zeta", "d"))

	assert.Equal(t, []string{"alpha", "zeta", ""}, s.Groups())
}

func TestFilterByGroupAndEach(t *testing.T) {
	s := newTestStore()
	s.Set(def("x", "1"), def("y", "2"), def("x", "3"))

	var titles []string
	for _, d := range s.FilterByGroup("x") {
		titles = append(titles, d.Title)
	}
	assert.Equal(t, []string{"1", "3"}, titles)
	assert.Empty(t, s.FilterByGroup("none"))

	var ids []int
	s.Each(func(id int, _ *definition.Definition) { ids = append(ids, id) })
	assert.Equal(t, []int{1, 2, 3}, ids)
}

func TestClearKeepsIDsMonotonic(t *testing.T) {
	s := newTestStore()
	s.Set(def("", "a"), def("", "b"))
	s.Clear()

	assert.Equal(t, 0, s.Len())
	assert.Equal(t, 0.0, testutil.ToFloat64(s.metrics.stored))
	assert.Equal(t, []int{3}, s.Set(def("", "c")))
}

func TestCombined(t *testing.T) {
	s := newTestStore()
	s.Set(
		def("run", "t1", [2]string{"A", "B"}),
		def("run", "t2", [2]string{"A", "B"}, [2]string{"B", "C"}),
		def("other", "t3", [2]string{"X", "Y"}),
	)

	c, err := s.Combined("run", "all")
	require.NoError(t, err)
	assert.Equal(t, "run", c.Group)
	assert.Equal(t, "all", c.Title)
	assert.Equal(t, 3, c.Len())
	assert.Equal(t, []string{"t1", "t2"},
		c.Source("A").Dependency("B").MethodID("call", definition.KindInstance).Paths())
	assert.Nil(t, c.Source("X"))
	assert.Equal(t, 1.0, testutil.ToFloat64(s.metrics.combined.WithLabelValues("ok")))
}

func TestCombinedModuleMismatch(t *testing.T) {
	s := newTestStore()
	a := definition.New("g", "a")
	a.FindOrBuildSource("S").AddModule("one")
	b := definition.New("g", "b")
	b.FindOrBuildSource("S").AddModule("two")
	s.Set(a, b)

	_, err := s.Combined("g", "x")
	assert.ErrorIs(t, err, definition.ErrUnmatchedModules)
	assert.Equal(t, 1.0, testutil.ToFloat64(s.metrics.combined.WithLabelValues("error")))
}

func TestConcurrentSet(t *testing.T) {
	s := newTestStore()

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 25 {
				s.Set(def("g", "t"))
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 200, s.Len())
	_, err := s.Get(200)
	assert.NoError(t, err)
}

func TestNewWithDefaultRegistryTwice(t *testing.T) {
	a := New()
	b := New()

	a.Set(def("g", "one"))
	assert.Equal(t, 1.0, testutil.ToFloat64(a.metrics.added))
	assert.Equal(t, 0.0, testutil.ToFloat64(b.metrics.added))
}

func TestStoresShareRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	a := New(WithRegisterer(reg))
	b := New(WithRegisterer(reg))

	a.Set(def("g", "one"))
	b.Set(def("g", "two"))
	assert.Equal(t, 2.0, testutil.ToFloat64(a.metrics.added))
	assert.Same(t, a.metrics.combined, b.metrics.combined)
}
