package pricing

import "errors"

var (
	// ErrNotFound indicates no rule matches the resolution criteria. It is a
	// business outcome, never a technical failure.
	ErrNotFound = errors.New("pricing: no applicable price rule")

	// ErrServiceUnavailable indicates the rule store is unreachable, timed
	// out, or short-circuited. Callers may retry with backoff.
	ErrServiceUnavailable = errors.New("pricing: service unavailable")

	// ErrInvalidArgument indicates missing or malformed caller input.
	ErrInvalidArgument = errors.New("pricing: invalid argument")
)
