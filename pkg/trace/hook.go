package trace

import (
	"iter"
	"strconv"

	"github.com/ritzau/calltrace/pkg/typeinfo"
)

// Location is a file:line position in the traced program.
type Location struct {
	File string
	Line int
}

func (l Location) String() string {
	return l.File + ":" + strconv.Itoa(l.Line)
}

// Frame describes one call event.
type Frame struct {
	// Receiver is the effective type the method was invoked on.
	Receiver typeinfo.Type
	// Static is true for type-level calls.
	Static bool
	// Method is the invoked method name.
	Method string
	// Callers yields the caller locations, innermost first. It is only
	// evaluated on demand and only while the event is being handled.
	Callers iter.Seq[Location]
}

// Hook is the instrumentation port: it receives every call and return of the
// traced program, synchronously and in order.
type Hook interface {
	OnEnter(f Frame) error
	OnExit(f Frame) error
}

// EventSource delivers call events to attached hooks.
type EventSource interface {
	// Attach starts delivering events to h and returns a function that
	// stops delivery again.
	Attach(h Hook) (detach func())
}

// Locations adapts a fixed list of caller locations to Frame.Callers.
func Locations(locs ...Location) iter.Seq[Location] {
	return func(yield func(Location) bool) {
		for _, l := range locs {
			if !yield(l) {
				return
			}
		}
	}
}
