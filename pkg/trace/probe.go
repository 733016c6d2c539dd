package trace

import (
	"iter"
	"reflect"
	"runtime"
	"slices"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/ritzau/calltrace/pkg/typeinfo"
)

// tracePackage prefixes the function names of frames that belong to this
// package; they are never reported as call sites.
var (
	tracePackage   = reflect.TypeFor[Probe]().PkgPath() + "."
	probeFunctions = tracePackage + "(*Probe)."
)

// Probe is an EventSource for Go programs. Instrumented methods announce
// themselves with
//
//	defer probe.Call(recv, "Method")()
//
// and caller locations are taken from the goroutine's stack on demand.
//
// A session attached to a probe sees one call stack, so the traced code is
// expected to call instrumented methods from a single goroutine. Calls from
// other goroutines are delivered one at a time per hook and interleave into
// that stack.
type Probe struct {
	mu     sync.Mutex
	nextID int
	hooks  atomic.Pointer[[]probeHook]
}

type probeHook struct {
	id   int
	hook Hook
	mu   *sync.Mutex
}

func (h probeHook) enter(f Frame) {
	h.mu.Lock()
	defer h.mu.Unlock()
	// a failing hook disables itself; the error surfaces when its session
	// stops
	_ = h.hook.OnEnter(f)
}

func (h probeHook) exit(f Frame) {
	h.mu.Lock()
	defer h.mu.Unlock()
	_ = h.hook.OnExit(f)
}

// NewProbe creates a probe without attached hooks
func NewProbe() *Probe {
	return &Probe{}
}

// Attach implements EventSource. Events reach h one at a time, but h sees
// the calls of every goroutine that uses the probe.
func (p *Probe) Attach(h Hook) func() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.nextID++
	id := p.nextID
	p.store(append(p.snapshot(), probeHook{id: id, hook: h, mu: &sync.Mutex{}}))

	var once sync.Once
	return func() {
		once.Do(func() { p.detach(id) })
	}
}

func (p *Probe) detach(id int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	current := p.snapshot()
	next := make([]probeHook, 0, len(current))
	for _, h := range current {
		if h.id != id {
			next = append(next, h)
		}
	}
	p.store(next)
}

func (p *Probe) snapshot() []probeHook {
	if hooks := p.hooks.Load(); hooks != nil {
		return slices.Clone(*hooks)
	}
	return nil
}

func (p *Probe) store(hooks []probeHook) {
	p.hooks.Store(&hooks)
}

// Call announces an instance call on recv, or a static call when recv is a
// typeinfo.Type. The returned function announces the return; exits go to
// the hooks that saw the matching enter.
func (p *Probe) Call(recv any, method string) func() {
	_, static := recv.(typeinfo.Type)
	return p.emit(typeinfo.Of(recv), static, method)
}

// CallStatic announces a type-level call.
func (p *Probe) CallStatic(t typeinfo.Type, method string) func() {
	return p.emit(t, true, method)
}

func (p *Probe) emit(t typeinfo.Type, static bool, method string) func() {
	hooks := p.hooks.Load()
	if hooks == nil || len(*hooks) == 0 {
		return func() {}
	}
	attached := *hooks

	frame := Frame{
		Receiver: t,
		Static:   static,
		Method:   method,
		Callers:  stackCallers(),
	}
	for _, h := range attached {
		h.enter(frame)
	}

	return func() {
		exit := Frame{Receiver: t, Static: static, Method: method}
		for _, h := range attached {
			h.exit(exit)
		}
	}
}

// stackCallers yields the call sites above the instrumented method. The
// walk starts below the probe's own frames (anything above them is hook
// code), skips the instrumented method and reports the rest innermost first.
func stackCallers() iter.Seq[Location] {
	return func(yield func(Location) bool) {
		pcs := make([]uintptr, 32)
		for {
			n := runtime.Callers(1, pcs)
			if n < len(pcs) {
				pcs = pcs[:n]
				break
			}
			pcs = make([]uintptr, len(pcs)*2)
		}

		frames := runtime.CallersFrames(pcs)
		inProbe, calleeSkipped := false, false
		for {
			frame, more := frames.Next()
			switch {
			case strings.HasPrefix(frame.Function, probeFunctions):
				inProbe = true
			case !inProbe || frame.Function == "" || strings.HasPrefix(frame.Function, tracePackage):
			case !calleeSkipped:
				calleeSkipped = true
			default:
				if !yield(Location{File: frame.File, Line: frame.Line}) {
					return
				}
			}
			if !more {
				return
			}
		}
	}
}
