package database

import "errors"

// The read and mutation paths report these instead of masking store
// failures as empty results, so callers can tell "no matches" from "the
// backend is down".
var (
	// ErrNotFound means no listing has the requested identifier.
	ErrNotFound = errors.New("property not found")

	// ErrInvalidID means the identifier did not parse as an integer.
	ErrInvalidID = errors.New("invalid property id")

	// ErrUnavailable wraps connectivity or query failures against the
	// listing store.
	ErrUnavailable = errors.New("listing store unavailable")
)
