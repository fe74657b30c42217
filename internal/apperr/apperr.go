// Package apperr defines the domain error taxonomy shared by services and
// the HTTP layer. Handlers map these sentinels to status codes with errors.Is.
package apperr

import "errors"

var (
	// ErrValidation marks malformed or missing input.
	ErrValidation = errors.New("validation error")
	// ErrNotFound covers both absent and not-owned records so existence
	// is not leaked across users.
	ErrNotFound = errors.New("not found")
	// ErrForbidden is reserved for cases where distinguishing from
	// ErrNotFound matters to the caller.
	ErrForbidden = errors.New("forbidden")
	// ErrConflict marks a status precondition that no longer holds, e.g.
	// cancel after the deadline or a lost transition race.
	ErrConflict = errors.New("conflict")
)
