package eighttracks

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Error represents an 8tracks API error.
//
// StatusCode is the HTTP status of the response. Messages holds whatever
// the API put into the "errors" field of the body.
type Error struct {
	StatusCode int
	Messages   []string
}

// Error returns the error message.
func (e *Error) Error() string {
	if len(e.Messages) == 0 {
		return fmt.Sprintf("eighttracks: status %d", e.StatusCode)
	}
	return fmt.Sprintf("eighttracks: status %d: %s", e.StatusCode, strings.Join(e.Messages, "; "))
}

// Is checks if the target error is an 8tracks error with the same status.
//
// This allows errors.Is() to work with *Error types.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.StatusCode == t.StatusCode
}

// Unauthorized reports whether the request was rejected because of missing
// or invalid credentials. 8tracks answers failed logins with 401 or 422.
func (e *Error) Unauthorized() bool {
	return e.StatusCode == http.StatusUnauthorized || e.StatusCode == http.StatusUnprocessableEntity
}

// NotFound reports whether the requested resource does not exist.
func (e *Error) NotFound() bool {
	return e.StatusCode == http.StatusNotFound
}

// Forbidden reports whether the action is not allowed, e.g. skipping more
// tracks than the licensing rules permit.
func (e *Error) Forbidden() bool {
	return e.StatusCode == http.StatusForbidden
}

// Temporary returns true for server side failures.
func (e *Error) Temporary() bool {
	return e.StatusCode >= 500
}

// Predefined errors for common cases.
var (
	// ErrNoUserToken is returned when an operation requires a logged in user
	// but no user token was given.
	ErrNoUserToken = errors.New("eighttracks: user token required")
)
