package stubapi

import "github.com/cockroachdb/errors"

// Sentinel kinds for stub backend errors.
var (
	ErrServe        = errors.New("stub api serve failed")
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrUnauthorized = errors.New("unauthorized")
)
