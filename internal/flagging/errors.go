package flagging

import "github.com/cockroachdb/errors"

// Sentinel kinds for flag workflow errors.
var (
	ErrNoInteraction = errors.New("generate a response before flagging")
)
