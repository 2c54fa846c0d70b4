package storage

import "errors"

// Sentinel errors for storage operations.
var (
	// ErrNotFound is returned when a deployment does not exist or
	// belongs to a different organisation. Callers must not be able to
	// tell these cases apart.
	ErrNotFound = errors.New("deployment not found")

	// ErrConflict is returned when a row is no longer in the state a
	// conditional write expected.
	ErrConflict = errors.New("deployment state conflict")

	// ErrNoTenant is returned when an operation reaches a store without
	// an organisation in its context.
	ErrNoTenant = errors.New("no organisation in request context")
)
