package team

import (
	"fmt"

	"github.com/cockroachdb/errors"
)

// Sentinel kinds for team errors.
var (
	ErrNameRequired   = errors.New("team name is required")
	ErrTeamIDRequired = errors.New("team id is required")
)

// PartialCreateError reports a team that was created but could not be
// joined. The caller can finish with JoinTeam(TeamID).
type PartialCreateError struct {
	TeamID string
	Err    error
}

func (e *PartialCreateError) Error() string {
	return fmt.Sprintf("team %s was created but joining it failed: %v", e.TeamID, e.Err)
}

func (e *PartialCreateError) Unwrap() error {
	return e.Err
}
