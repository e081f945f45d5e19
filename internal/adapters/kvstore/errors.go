package kvstore

import "github.com/cockroachdb/errors"

// Sentinel kinds for store errors.
var (
	ErrInvalidKey = errors.New("invalid key")
	ErrStorage    = errors.New("storage failure")
)

func storageErr(err error, op, key string) error {
	return errors.Mark(errors.Wrapf(err, "%s %q", op, key), ErrStorage)
}
