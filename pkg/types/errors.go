package types

import "errors"

// Sentinel errors shared across the pipeline. Callers distinguish
// outcome kinds with errors.Is rather than matching message text.
var (
	// ErrNotFound is returned when a requested entity doesn't exist.
	ErrNotFound = errors.New("not found")
	// ErrLowConfidence marks a section rejected by the confidence gate.
	ErrLowConfidence = errors.New("extraction confidence below write threshold")
	// ErrUnavailable is returned when a required external service
	// (embedding model, vector index) cannot be reached. It is distinct
	// from zero results by design.
	ErrUnavailable = errors.New("service unavailable")
	// ErrInvariant is returned when a transition-safety assertion fails.
	// Activation aborts entirely on this error; no partial state.
	ErrInvariant = errors.New("safety invariant violated")
)
