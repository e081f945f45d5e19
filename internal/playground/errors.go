package playground

import "github.com/cockroachdb/errors"

// Sentinel kinds for playground errors.
var (
	ErrBusy = errors.New("a submission is already in flight")
)
