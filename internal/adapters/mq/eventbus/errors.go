package eventbus

import "github.com/cockroachdb/errors"

// Sentinel kinds for bus errors.
var (
	ErrClosed = errors.New("event bus closed")
)
