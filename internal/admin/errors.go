package admin

import "github.com/cockroachdb/errors"

// Sentinel kinds for admin errors.
var (
	ErrAdminsOnly      = errors.New("admins only")
	ErrUnknownFormat   = errors.New("unknown export format")
	ErrUnknownStatus   = errors.New("unknown exercise status")
	ErrAlreadyResolved = errors.New("flag already resolved")
	ErrIDRequired      = errors.New("id is required")
)
