package definition

import "errors"

var (
	// ErrUnmatchedModules is returned by Combine when same-named sources carry
	// different module labels.
	ErrUnmatchedModules = errors.New("sources have unmatched modules")

	// ErrUnmatchedSources is returned by CombineSources for differently named sources.
	ErrUnmatchedSources = errors.New("sources are unmatched")

	// ErrNoSources is returned by CombineSources when called without sources.
	ErrNoSources = errors.New("sources are empty")

	// ErrInvalidKind is returned for call kinds other than static and instance.
	ErrInvalidKind = errors.New("invalid call kind")

	// ErrDuplicateSource is returned when a document lists a source name twice.
	ErrDuplicateSource = errors.New("duplicate source")
)
