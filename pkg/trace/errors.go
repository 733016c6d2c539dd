package trace

import "errors"

var (
	// ErrStackUnderflow is returned by Pop on an empty stack. During a trace it
	// means the event source delivered an exit without a matching enter.
	ErrStackUnderflow = errors.New("call stack underflow")

	// ErrInvalidSelector is returned for malformed ignore selectors and
	// unknown effect values.
	ErrInvalidSelector = errors.New("invalid ignore selector")

	// ErrRelativeCallerPath is returned when a caller path is not absolute.
	ErrRelativeCallerPath = errors.New("caller paths must be absolute")

	// ErrHandlerPanic wraps a panic recovered while handling an event.
	ErrHandlerPanic = errors.New("panic while handling call event")
)
