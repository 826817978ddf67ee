package buffer

import "errors"

// Error taxonomy for the buffer service. Callers match with errors.Is.
var (
	// ErrNotFound: archive node, chapter, persona, or buffer missing.
	// Fails immediately, no retry.
	ErrNotFound = errors.New("not found")

	// ErrMisconfigured: a required adapter was not supplied for the
	// requested call. Fails fast rather than silently no-opping.
	ErrMisconfigured = errors.New("adapter not configured")

	// ErrPreconditionFailed: the call names a precondition the caller
	// has not met (similarity search before embed, merge of empty input).
	ErrPreconditionFailed = errors.New("precondition failed")

	// ErrExternalService: a rewrite or embedding call failed after
	// bounded retries were exhausted.
	ErrExternalService = errors.New("external service failure")
)
