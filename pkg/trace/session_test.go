package trace

import (
	"errors"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ritzau/calltrace/pkg/definition"
	"github.com/ritzau/calltrace/pkg/typeinfo"
)

// scriptedSource replays hand-written call events
type scriptedSource struct {
	hooks []Hook
}

func (s *scriptedSource) Attach(h Hook) func() {
	s.hooks = append(s.hooks, h)
	return func() {
		s.hooks = slices.DeleteFunc(s.hooks, func(x Hook) bool { return x == h })
	}
}

func (s *scriptedSource) enter(recv typeinfo.Type, static bool, method string, callers ...Location) error {
	f := Frame{Receiver: recv, Static: static, Method: method, Callers: Locations(callers...)}
	var errs []error
	for _, h := range slices.Clone(s.hooks) {
		errs = append(errs, h.OnEnter(f))
	}
	return errors.Join(errs...)
}

func (s *scriptedSource) exit(recv typeinfo.Type, static bool, method string) error {
	f := Frame{Receiver: recv, Static: static, Method: method}
	var errs []error
	for _, h := range slices.Clone(s.hooks) {
		errs = append(errs, h.OnExit(f))
	}
	return errors.Join(errs...)
}

// call runs enter, body and exit, failing the test on hook errors
func (s *scriptedSource) call(t *testing.T, recv typeinfo.Type, static bool, method string, at Location, body func()) {
	t.Helper()
	require.NoError(t, s.enter(recv, static, method, at))
	if body != nil {
		body()
	}
	require.NoError(t, s.exit(recv, static, method))
}

func loc(file string, line int) Location {
	return Location{File: file, Line: line}
}

type fixture struct {
	reg    *typeinfo.Registry
	source *scriptedSource
	a, b   *typeinfo.Class
	c      *typeinfo.Class
}

func newFixture() *fixture {
	reg := typeinfo.NewRegistry()
	return &fixture{
		reg:    reg,
		source: &scriptedSource{},
		a:      reg.Class("A"),
		b:      reg.Class("B"),
		c:      reg.Class("C"),
	}
}

func (fx *fixture) tracer(t *testing.T, scope []typeinfo.Type, opts ...Option) *Tracer {
	t.Helper()
	tr, err := NewTracer(fx.source, NewScopeFilter(scope...), opts...)
	require.NoError(t, err)
	return tr
}

func TestEndToEndScriptedChain(t *testing.T) {
	fx := newFixture()
	tr := fx.tracer(t, []typeinfo.Type{fx.a, fx.b})

	def, err := tr.Trace(func() error {
		fx.source.call(t, fx.a, false, "run", loc("/app/main.rb", 3), func() {
			fx.source.call(t, fx.b, true, "call_c", loc("/app/a.rb", 7), nil)
		})
		return nil
	}, WithTitle("e2e"), WithGroup("test"))
	require.NoError(t, err)

	want := definition.Document{
		Group: "test",
		Title: "e2e",
		Sources: []definition.SourceDocument{
			{
				Name: "A",
				Dependencies: []definition.DependencyDocument{{
					Name: "B",
					MethodIDs: []definition.MethodIDDocument{{
						Name:  "call_c",
						Kind:  "static",
						Paths: []string{"/app/main.rb:3"},
					}},
				}},
				Modules: []definition.ModuleDocument{},
			},
			{Name: "B", Dependencies: []definition.DependencyDocument{}, Modules: []definition.ModuleDocument{}},
		},
	}
	assert.Equal(t, want, def.Document())
}

func TestOutOfScopeFramesAreTransparent(t *testing.T) {
	fx := newFixture()
	tr := fx.tracer(t, []typeinfo.Type{fx.a, fx.c})

	def, err := tr.Trace(func() error {
		fx.source.call(t, fx.a, false, "run", loc("/x.go", 1), func() {
			fx.source.call(t, fx.b, false, "helper", loc("/a.go", 2), func() {
				fx.source.call(t, fx.c, false, "work", loc("/b.go", 3), nil)
			})
		})
		return nil
	})
	require.NoError(t, err)

	require.Equal(t, 2, def.Len())
	dep := def.Source("A").Dependency("C")
	require.NotNil(t, dep)
	assert.NotNil(t, dep.MethodID("work", definition.KindInstance))
	assert.Nil(t, def.Source("B"))
}

func TestSelfCallsAddNoDependency(t *testing.T) {
	fx := newFixture()
	tr := fx.tracer(t, []typeinfo.Type{fx.a})

	def, err := tr.Trace(func() error {
		fx.source.call(t, fx.a, false, "outer", loc("/x.go", 1), func() {
			fx.source.call(t, fx.a, false, "inner", loc("/a.go", 2), nil)
		})
		return nil
	})
	require.NoError(t, err)
	assert.Empty(t, def.Source("A").Dependencies())
}

func TestIgnoreEffects(t *testing.T) {
	tests := []struct {
		name   string
		effect Effect
		// whether A → C is recorded when A calls B (ignored) which calls C
		wantAC bool
	}{
		{"single only hides the frame", EffectSingle, true},
		{"all hides the nested region", EffectAll, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fx := newFixture()
			rules, err := NewIgnoreRules(fx.reg, map[string]Effect{"B#proxy": tt.effect})
			require.NoError(t, err)
			tr := fx.tracer(t, []typeinfo.Type{fx.a, fx.b, fx.c}, WithIgnoreRules(rules))

			def, err := tr.Trace(func() error {
				fx.source.call(t, fx.a, false, "run", loc("/x.go", 1), func() {
					fx.source.call(t, fx.b, false, "proxy", loc("/a.go", 2), func() {
						fx.source.call(t, fx.c, false, "work", loc("/b.go", 3), nil)
					})
					// after the ignored frame returns tracing continues
					fx.source.call(t, fx.b, false, "direct", loc("/a.go", 4), nil)
				})
				return nil
			})
			require.NoError(t, err)

			a := def.Source("A")
			require.NotNil(t, a)
			assert.Nil(t, a.Dependency("B").MethodID("proxy", definition.KindInstance))
			assert.NotNil(t, a.Dependency("B").MethodID("direct", definition.KindInstance))
			assert.Equal(t, tt.wantAC, a.Dependency("C") != nil)
		})
	}
}

func TestNestedAllRegionsCloseAtOutermost(t *testing.T) {
	fx := newFixture()
	rules, err := NewIgnoreRules(fx.reg, map[string]Effect{"B": EffectAll, "C#hide": EffectAll})
	require.NoError(t, err)
	d := fx.reg.Class("D")
	tr := fx.tracer(t, []typeinfo.Type{fx.a, fx.b, fx.c, d}, WithIgnoreRules(rules))

	s := tr.NewSession()
	require.NoError(t, s.Start())

	src := fx.source
	require.NoError(t, src.enter(fx.a, false, "run", loc("/x.go", 1)))
	require.NoError(t, src.enter(fx.b, false, "open", loc("/a.go", 2)))
	require.NoError(t, src.enter(fx.c, false, "hide", loc("/b.go", 3)))
	require.NoError(t, src.exit(fx.c, false, "hide"))
	// still inside B's region
	require.NoError(t, src.enter(d, false, "hidden", loc("/b.go", 4)))
	require.NoError(t, src.exit(d, false, "hidden"))
	require.NoError(t, src.exit(fx.b, false, "open"))
	require.NoError(t, src.enter(d, false, "shown", loc("/a.go", 5)))
	require.NoError(t, src.exit(d, false, "shown"))
	require.NoError(t, src.exit(fx.a, false, "run"))

	require.NoError(t, s.Stop())
	dep := s.Definition().Source("A").Dependency("D")
	require.NotNil(t, dep)
	assert.Nil(t, dep.MethodID("hidden", definition.KindInstance))
	assert.NotNil(t, dep.MethodID("shown", definition.KindInstance))
}

func TestCallerPathAllowList(t *testing.T) {
	fx := newFixture()
	tr := fx.tracer(t, []typeinfo.Type{fx.a, fx.b}, WithCallerPaths("/app/a.go"))

	def, err := tr.Trace(func() error {
		// the first caller outside the allow-list is skipped
		require.NoError(t, fx.source.enter(fx.a, false, "run", loc("/lib/x.go", 9), loc("/app/a.go", 12)))
		fx.source.call(t, fx.b, false, "work", loc("/app/a.go", 13), nil)
		require.NoError(t, fx.source.exit(fx.a, false, "run"))

		// no allowed caller: A is recorded but cannot be a parent
		require.NoError(t, fx.source.enter(fx.a, false, "again", loc("/lib/x.go", 20)))
		fx.source.call(t, fx.b, false, "orphan", loc("/lib/y.go", 21), nil)
		require.NoError(t, fx.source.exit(fx.a, false, "again"))
		return nil
	})
	require.NoError(t, err)

	dep := def.Source("A").Dependency("B")
	require.NotNil(t, dep)
	assert.Equal(t, []string{"/app/a.go:12"}, dep.MethodID("work", definition.KindInstance).Paths())
	assert.Nil(t, dep.MethodID("orphan", definition.KindInstance))
}

func TestRelativeCallerPathRejected(t *testing.T) {
	_, err := NewTracer(&scriptedSource{}, nil, WithCallerPaths("app/a.go"))
	assert.ErrorIs(t, err, ErrRelativeCallerPath)
}

func TestPathFilterAndClassifier(t *testing.T) {
	fx := newFixture()
	classifier := classifierFunc(func(source string) []string {
		if source == "A" {
			return []string{"web", "core"}
		}
		return nil
	})
	tr := fx.tracer(t, []typeinfo.Type{fx.a, fx.b},
		WithTrimPrefix("/src/"),
		WithClassifier(classifier))

	def, err := tr.Trace(func() error {
		fx.source.call(t, fx.a, false, "run", loc("/src/main.go", 1), func() {
			fx.source.call(t, fx.b, false, "work", loc("/src/a.go", 2), nil)
		})
		return nil
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"core", "web"}, def.Source("A").ModuleNames())
	assert.Empty(t, def.Source("B").ModuleNames())
	assert.Equal(t, []string{"main.go:1"},
		def.Source("A").Dependency("B").MethodID("work", definition.KindInstance).Paths())
}

type classifierFunc func(string) []string

func (f classifierFunc) Modules(source string) []string { return f(source) }

func TestUnderflowDisablesSession(t *testing.T) {
	fx := newFixture()
	tr := fx.tracer(t, []typeinfo.Type{fx.a})

	s := tr.NewSession()
	require.NoError(t, s.Start())
	require.NoError(t, fx.source.enter(fx.a, false, "run", loc("/x.go", 1)))
	require.NoError(t, fx.source.exit(fx.a, false, "run"))

	err := fx.source.exit(fx.a, false, "run")
	require.ErrorIs(t, err, ErrStackUnderflow)
	assert.False(t, s.Active())
	assert.Empty(t, fx.source.hooks, "failed session detaches")

	assert.ErrorIs(t, s.Stop(), ErrStackUnderflow)
	assert.ErrorIs(t, s.Start(), ErrStackUnderflow, "a failed session cannot restart")
	assert.NotNil(t, s.Definition().Source("A"), "partial graph is kept")
}

// brokenType fails while walking its ancestors
type brokenType struct{}

var errBroken = errors.New("broken hierarchy")

func (brokenType) Name() string                   { return "Broken" }
func (brokenType) Inheritable() bool              { return true }
func (brokenType) Parent() (typeinfo.Type, error) { return nil, errBroken }

func TestResolverErrorFailsTrace(t *testing.T) {
	fx := newFixture()
	tr := fx.tracer(t, []typeinfo.Type{fx.a})

	def, err := tr.Trace(func() error {
		return fx.source.enter(brokenType{}, false, "run", loc("/x.go", 1))
	})
	assert.ErrorIs(t, err, errBroken)
	assert.NotNil(t, def)
	assert.Empty(t, fx.source.hooks)
}

type panickingClassifier struct{}

func (panickingClassifier) Modules(string) []string { panic("boom") }

func TestHandlerPanicIsRecovered(t *testing.T) {
	fx := newFixture()
	tr := fx.tracer(t, []typeinfo.Type{fx.a}, WithClassifier(panickingClassifier{}))

	_, err := tr.Trace(func() error {
		return fx.source.enter(fx.a, false, "run", loc("/x.go", 1))
	})
	assert.ErrorIs(t, err, ErrHandlerPanic)
}

func TestTracePropagatesCallbackErrorAndPanics(t *testing.T) {
	fx := newFixture()
	tr := fx.tracer(t, []typeinfo.Type{fx.a})

	errCallback := errors.New("callback failed")
	_, err := tr.Trace(func() error { return errCallback })
	assert.ErrorIs(t, err, errCallback)
	assert.Empty(t, fx.source.hooks)

	assert.Panics(t, func() {
		_, _ = tr.Trace(func() error { panic("boom") })
	})
	assert.Empty(t, fx.source.hooks, "stopped on panic")
}

func TestSessionMatchesTrace(t *testing.T) {
	script := func(t *testing.T, fx *fixture) {
		fx.source.call(t, fx.a, false, "run", loc("/x.go", 1), func() {
			fx.source.call(t, fx.b, true, "build", loc("/a.go", 2), func() {
				fx.source.call(t, fx.c, false, "work", loc("/b.go", 3), nil)
			})
		})
	}

	fx := newFixture()
	tr := fx.tracer(t, []typeinfo.Type{fx.a, fx.b, fx.c})
	traced, err := tr.Trace(func() error {
		script(t, fx)
		return nil
	}, WithTitle("same"))
	require.NoError(t, err)

	s := tr.NewSession(WithTitle("same"))
	require.NoError(t, s.Start())
	script(t, fx)
	require.NoError(t, s.Stop())

	assert.True(t, definition.Equal(traced, s.Definition()))
}

func TestStoppedSessionIgnoresEvents(t *testing.T) {
	fx := newFixture()
	tr := fx.tracer(t, []typeinfo.Type{fx.a})

	s := tr.NewSession()
	assert.False(t, s.Active())
	require.NoError(t, s.OnEnter(Frame{Receiver: fx.a, Method: "run"}))
	require.NoError(t, s.OnExit(Frame{Receiver: fx.a, Method: "run"}))
	require.NoError(t, s.OnExit(Frame{Receiver: fx.a, Method: "run"}))
	assert.Equal(t, 0, s.Definition().Len())
	assert.NotEmpty(t, s.Definition().Title, "default title")
}
