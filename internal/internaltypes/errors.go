package internaltypes

import "errors"

var (
	// ErrUnauthorized marks an invalid or expired portal session, or a login
	// flow that could not complete. Callers re-authenticate instead of counting it.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrNetwork marks a transport failure or an unexpected portal response.
	ErrNetwork  = errors.New("network error")
	ErrNotFound = errors.New("not found")
	ErrTimedOut = errors.New("timed out")
)
