package trace

// CallStack mirrors the call depth of the traced program while only storing
// context for the frames that matter. Every call pushes and every return
// pops, so depth stays symmetric with the event stream; memory is bounded by
// the number of stored contexts, not by the total depth.
type CallStack[T any] struct {
	depth   int
	entries []stackEntry[T]
}

type stackEntry[T any] struct {
	depth   int
	context T
}

// Push enters an uninteresting frame.
func (s *CallStack[T]) Push() {
	s.depth++
}

// PushContext enters a frame and remembers ctx for it.
func (s *CallStack[T]) PushContext(ctx T) {
	s.depth++
	s.entries = append(s.entries, stackEntry[T]{depth: s.depth, context: ctx})
}

// Pop leaves the current frame, dropping its context if one was stored.
func (s *CallStack[T]) Pop() error {
	if s.depth == 0 {
		return ErrStackUnderflow
	}
	if n := len(s.entries); n > 0 && s.entries[n-1].depth == s.depth {
		var zero stackEntry[T]
		s.entries[n-1] = zero
		s.entries = s.entries[:n-1]
	}
	s.depth--
	return nil
}

// Stack returns the stored contexts, oldest first.
func (s *CallStack[T]) Stack() []T {
	out := make([]T, len(s.entries))
	for i, e := range s.entries {
		out[i] = e.context
	}
	return out
}

// Top returns the most recently stored context.
func (s *CallStack[T]) Top() (T, bool) {
	if len(s.entries) == 0 {
		var zero T
		return zero, false
	}
	return s.entries[len(s.entries)-1].context, true
}

// Empty reports whether no context is stored. The raw depth may still be
// positive.
func (s *CallStack[T]) Empty() bool {
	return len(s.entries) == 0
}

// Depth returns the raw call depth.
func (s *CallStack[T]) Depth() int {
	return s.depth
}
