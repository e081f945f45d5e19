package cli

import (
	"fmt"
	"strings"

	"github.com/cockroachdb/errors"

	"github.com/okian/flames/internal/adapters/apiclient"
	"github.com/okian/flames/internal/team"
)

// Sentinel errors for command parsing.
var (
	ErrUsage          = errors.New("usage error")
	ErrUnknownCommand = errors.New("unknown command")
)

func usage(format string, args ...interface{}) error {
	return errors.Mark(errors.Newf(format, args...), ErrUsage)
}

// Message renders err as the text shown to the user.
func Message(err error) string {
	if err == nil {
		return ""
	}
	var partial *team.PartialCreateError
	if errors.As(err, &partial) {
		return fmt.Sprintf("team %s was created but joining it failed: %v\nrun: flames team join -id %s",
			partial.TeamID, partial.Err, partial.TeamID)
	}

	msg := err.Error()
	var reqErr *apiclient.RequestError
	if errors.As(err, &reqErr) {
		msg = reqErr.Error()
	}
	if hint := errors.FlattenHints(err); hint != "" {
		msg += "\nhint: " + strings.ReplaceAll(hint, "\n--\n", "; ")
	}
	return msg
}
