package registry

import "errors"

// Sentinel errors for repository operations.
var (
	// ErrNotFound is returned when a mutating operation targets a crate
	// that is not in the repository.
	ErrNotFound = errors.New("not found")

	// ErrInvalidVersion is returned when a release does not strictly
	// increase a crate's version history.
	ErrInvalidVersion = errors.New("invalid version")

	// ErrAlreadyExists is returned when adding a crate whose name is
	// already taken.
	ErrAlreadyExists = errors.New("already exists")
)
