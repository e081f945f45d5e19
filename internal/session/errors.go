package session

import "github.com/cockroachdb/errors"

// Sentinel kinds for session errors.
var (
	ErrNotAuthenticated = errors.New("not authenticated")
	ErrMalformedSession = errors.New("malformed session payload")
	ErrMalformedToken   = errors.New("malformed session token")
)
