package trace

import (
	"fmt"
	"log/slog"

	"github.com/ritzau/calltrace/pkg/definition"
)

// frameContext is what the stack remembers for a traced frame: the source
// it belongs to and where it was called from.
type frameContext struct {
	source   *definition.Source
	callSite Location
}

// Session records one trace into a Definition. It implements Hook and is
// driven by the tracer's EventSource between Start and Stop. A session
// models the call stack of a single goroutine. Its EventSource must not
// deliver events concurrently.
type Session struct {
	tracer     *Tracer
	definition *definition.Definition
	stack      CallStack[frameContext]
	// depth at which the outermost open "all" region started, 0 if none
	ignoredDepth int

	active bool
	err    error
	detach func()
	logger *slog.Logger
}

// SessionOption configures a Session
type SessionOption func(*Session)

// WithTitle sets the title of the recorded Definition
func WithTitle(title string) SessionOption {
	return func(s *Session) {
		s.definition.Title = title
	}
}

// WithGroup sets the group of the recorded Definition
func WithGroup(group string) SessionOption {
	return func(s *Session) {
		s.definition.Group = group
	}
}

// Start attaches the session to the tracer's event source. Starting an
// active session does nothing; a failed session cannot be restarted.
func (s *Session) Start() error {
	if s.err != nil {
		return s.err
	}
	if s.active {
		return nil
	}

	s.stack = CallStack[frameContext]{}
	s.ignoredDepth = 0
	s.active = true
	s.detach = s.tracer.source.Attach(s)
	s.logger.Debug("session started", "group", s.definition.Group)
	return nil
}

// Stop detaches the session and returns the error that disabled it, if any.
// The Definition recorded so far stays available.
func (s *Session) Stop() error {
	if s.active {
		s.active = false
		s.release()
		s.logger.Debug("session stopped",
			"sources", s.definition.Len(),
			"dependencies", s.definition.DependencyCount())
	}
	return s.err
}

// Active reports whether the session is receiving events
func (s *Session) Active() bool {
	return s.active
}

// Definition returns the graph recorded so far
func (s *Session) Definition() *definition.Definition {
	return s.definition
}

// Err returns the error that disabled the session
func (s *Session) Err() error {
	return s.err
}

func (s *Session) release() {
	if s.detach != nil {
		s.detach()
		s.detach = nil
	}
}

func (s *Session) fail(err error) error {
	s.active = false
	s.err = err
	s.release()
	s.logger.Error("session disabled", "error", err)
	return err
}

// OnEnter implements Hook
func (s *Session) OnEnter(f Frame) (err error) {
	if !s.active {
		return nil
	}
	defer func() {
		if r := recover(); r != nil {
			err = s.fail(fmt.Errorf("%w: entering %s: %v", ErrHandlerPanic, f.Method, r))
		}
	}()

	if err := s.enter(f); err != nil {
		return s.fail(fmt.Errorf("entering %s: %w", f.Method, err))
	}
	return nil
}

func (s *Session) enter(f Frame) error {
	if f.Receiver == nil || s.ignoredDepth != 0 {
		s.stack.Push()
		return nil
	}

	t := s.tracer
	if t.ignore != nil {
		effect, err := t.ignore.Ignored(f.Receiver, f.Static, f.Method)
		if err != nil {
			return err
		}
		if effect != EffectNone {
			s.stack.Push()
			if effect == EffectAll {
				s.ignoredDepth = s.stack.Depth()
			}
			return nil
		}
	}

	included, err := t.scope.Include(f.Receiver)
	if err != nil {
		return err
	}
	name := f.Receiver.Name()
	if !included || name == "" {
		s.stack.Push()
		return nil
	}

	source := s.source(name)
	if caller, ok := s.stack.Top(); ok {
		if dep := caller.source.FindOrBuildDependency(name); dep != nil {
			dep.FindOrBuildMethodID(f.Method, definition.KindOf(f.Static)).
				AddPath(t.filterPath(caller.callSite.String()))
		}
	}

	site, ok := t.callerSite(f.Callers)
	if !ok {
		s.stack.Push()
		return nil
	}
	s.stack.PushContext(frameContext{source: source, callSite: site})
	return nil
}

// source finds or builds the named source, labelling it on first sight
func (s *Session) source(name string) *definition.Source {
	if existing := s.definition.Source(name); existing != nil {
		return existing
	}
	source := s.definition.FindOrBuildSource(name)
	if s.tracer.classifier != nil {
		source.AddModule(s.tracer.classifier.Modules(name)...)
	}
	return source
}

// OnExit implements Hook
func (s *Session) OnExit(f Frame) (err error) {
	if !s.active {
		return nil
	}
	defer func() {
		if r := recover(); r != nil {
			err = s.fail(fmt.Errorf("%w: leaving %s: %v", ErrHandlerPanic, f.Method, r))
		}
	}()

	if s.ignoredDepth != 0 && s.ignoredDepth == s.stack.Depth() {
		s.ignoredDepth = 0
	}
	if err := s.stack.Pop(); err != nil {
		return s.fail(fmt.Errorf("leaving %s: %w", f.Method, err))
	}
	return nil
}
