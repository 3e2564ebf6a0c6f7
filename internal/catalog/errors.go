package catalog

import "errors"

// Errors returned by Catalog implementations. Implementations wrap them with
// details, so callers should test with errors.Is.
var (
	// ErrTransport covers network failures, unexpected HTTP statuses and
	// undecodable responses.
	ErrTransport = errors.New("catalog unreachable")

	// ErrAuth is returned for invalid credentials or a rejected token.
	ErrAuth = errors.New("authentication failed")

	// ErrNotFound is returned when a mix or user does not exist.
	ErrNotFound = errors.New("not found")

	// ErrExhausted is returned by a TrackSequence after its last track.
	ErrExhausted = errors.New("no more tracks in mix")

	// ErrSkipNotAllowed is returned when the catalog refuses a skip.
	ErrSkipNotAllowed = errors.New("skip not allowed")
)
