package trace

import (
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/ritzau/calltrace/pkg/config"
	"github.com/ritzau/calltrace/pkg/definition"
	"github.com/ritzau/calltrace/pkg/logging"
	"github.com/ritzau/calltrace/pkg/modulestore"
	"github.com/ritzau/calltrace/pkg/typeinfo"
)

// Classifier labels sources with the modules they belong to
type Classifier interface {
	Modules(source string) []string
}

// Tracer holds the configuration shared by its sessions. Sessions may run
// concurrently.
type Tracer struct {
	source      EventSource
	scope       *ScopeFilter
	ignore      *IgnoreRules
	callerPaths map[string]struct{}
	pathFilter  func(string) string
	classifier  Classifier
	group       string
	logger      *slog.Logger
}

// Option configures a Tracer
type Option func(*Tracer) error

// WithIgnoreRules suppresses calls matching rules
func WithIgnoreRules(rules *IgnoreRules) Option {
	return func(t *Tracer) error {
		t.ignore = rules
		return nil
	}
}

// WithCallerPaths restricts recorded call sites to the given absolute files.
// The first caller location in one of them is used; a call with no such
// location is not traced as a parent.
func WithCallerPaths(paths ...string) Option {
	return func(t *Tracer) error {
		for _, p := range paths {
			if !filepath.IsAbs(p) {
				return fmt.Errorf("%w: %q", ErrRelativeCallerPath, p)
			}
			if t.callerPaths == nil {
				t.callerPaths = make(map[string]struct{}, len(paths))
			}
			t.callerPaths[filepath.Clean(p)] = struct{}{}
		}
		return nil
	}
}

// WithPathFilter rewrites every recorded call site before it is stored
func WithPathFilter(filter func(string) string) Option {
	return func(t *Tracer) error {
		t.pathFilter = filter
		return nil
	}
}

// WithTrimPrefix strips prefix from recorded call sites
func WithTrimPrefix(prefix string) Option {
	return WithPathFilter(func(path string) string {
		return strings.TrimPrefix(path, prefix)
	})
}

// WithClassifier labels every new source with its modules
func WithClassifier(c Classifier) Option {
	return func(t *Tracer) error {
		t.classifier = c
		return nil
	}
}

// WithDefaultGroup sets the group used by sessions that do not set one
func WithDefaultGroup(group string) Option {
	return func(t *Tracer) error {
		t.group = group
		return nil
	}
}

// WithLogger replaces the package logger
func WithLogger(logger *slog.Logger) Option {
	return func(t *Tracer) error {
		t.logger = logger
		return nil
	}
}

// NewTracer creates a tracer that records types accepted by scope from the
// events delivered by source.
func NewTracer(source EventSource, scope *ScopeFilter, opts ...Option) (*Tracer, error) {
	if source == nil {
		return nil, errors.New("tracer needs an event source")
	}
	if scope == nil {
		scope = NewScopeFilter()
	}

	t := &Tracer{
		source: source,
		scope:  scope,
	}
	for _, opt := range opts {
		if err := opt(t); err != nil {
			return nil, err
		}
	}
	if t.logger == nil {
		t.logger = logging.New("trace")
	}
	return t, nil
}

// NewTracerFromConfig builds scope, ignore rules, caller paths, path filter
// and module classifier from cfg. Type names are looked up with resolver.
// Explicit opts are applied last.
func NewTracerFromConfig(cfg *config.Config, resolver typeinfo.Resolver, source EventSource, opts ...Option) (*Tracer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	scope, err := NewScopeFilterFromNames(resolver, cfg.Scope...)
	if err != nil {
		return nil, err
	}
	scope.IncludeFiles(cfg.ScopeFiles...)

	selectors, err := cfg.IgnoreRules()
	if err != nil {
		return nil, err
	}
	rules := make(map[string]Effect, len(selectors))
	for selector, effect := range selectors {
		rules[selector] = Effect(effect)
	}
	ignore, err := NewIgnoreRules(resolver, rules)
	if err != nil {
		return nil, err
	}

	base := []Option{
		WithIgnoreRules(ignore),
		WithCallerPaths(cfg.CallerPaths...),
		WithDefaultGroup(cfg.Group),
	}
	if cfg.TrimPrefix != "" {
		base = append(base, WithTrimPrefix(cfg.TrimPrefix))
	}
	if cfg.ModulesFile != "" {
		modules, err := modulestore.Load(cfg.ModulesFile)
		if err != nil {
			return nil, err
		}
		base = append(base, WithClassifier(modules))
	}

	return NewTracer(source, scope, append(base, opts...)...)
}

// NewSession creates a stopped session. Its title defaults to a random UUID.
func (t *Tracer) NewSession(opts ...SessionOption) *Session {
	s := &Session{
		tracer:     t,
		definition: definition.New(t.group, uuid.New().String()),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = t.logger.With("session", s.definition.Title)
	return s
}

// Trace records the calls made while fn runs. The session is stopped on
// every path out of fn, panics included. Errors from fn and from the
// session are both returned, alongside whatever was recorded.
func (t *Tracer) Trace(fn func() error, opts ...SessionOption) (def *definition.Definition, err error) {
	s := t.NewSession(opts...)
	if err := s.Start(); err != nil {
		return s.Definition(), err
	}
	defer func() {
		def = s.Definition()
		err = errors.Join(err, s.Stop())
	}()

	return nil, fn()
}

// callerSite picks the call site recorded for a traced frame
func (t *Tracer) callerSite(callers iter.Seq[Location]) (Location, bool) {
	if callers == nil {
		return Location{}, false
	}
	for loc := range callers {
		if len(t.callerPaths) == 0 {
			return loc, true
		}
		if _, ok := t.callerPaths[loc.File]; ok {
			return loc, true
		}
	}
	return Location{}, false
}

func (t *Tracer) filterPath(path string) string {
	if t.pathFilter == nil {
		return path
	}
	return t.pathFilter(path)
}
