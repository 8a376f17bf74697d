// Package storage defines the error taxonomy shared by post store
// backends. Callers must be able to tell "row does not exist" apart
// from "backend unreachable": the first is terminal, the second is
// retryable by the upstream transport.
package storage

import "errors"

var (
	// ErrNotFound reports that no row matches the requested key.
	ErrNotFound = errors.New("post not found")

	// ErrUnavailable reports a connection-level backend failure.
	ErrUnavailable = errors.New("store unavailable")
)
