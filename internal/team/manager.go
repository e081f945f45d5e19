// Package team creates and joins teams and discovers their members.
package team

import (
	"context"
	"strings"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/cockroachdb/errors"
	"github.com/hashicorp/go-set/v2"

	"github.com/okian/flames/internal/adapters/apiclient"
	"github.com/okian/flames/internal/domain/model"
	"github.com/okian/flames/pkg/logger"
	"github.com/okian/flames/pkg/metrics"
)

const (
	defaultJoinAttempts = 3
	defaultJoinDelay    = 100 * time.Millisecond
)

// API is the subset of the backend client used by the Manager.
type API interface {
	CreateTeam(ctx context.Context, token, name string) (model.Team, error)
	JoinTeam(ctx context.Context, token string, req model.JoinRequest) (model.Membership, error)
	ListInteractions(ctx context.Context, token string, filter model.InteractionFilter) ([]model.Interaction, error)
}

// Sessions is the subset of the session store used by the Manager.
type Sessions interface {
	RequireUser(ctx context.Context) (*model.User, error)
	Set(ctx context.Context, u model.User) error
}

// Manager runs team operations on behalf of the session user.
type Manager struct {
	api          API
	sessions     Sessions
	logger       logger.Logger
	joinAttempts uint
	joinDelay    time.Duration
}

// NewManager creates a Manager.
func NewManager(api API, sessions Sessions, opts ...Option) *Manager {
	m := &Manager{
		api:          api,
		sessions:     sessions,
		logger:       logger.Nop(),
		joinAttempts: defaultJoinAttempts,
		joinDelay:    defaultJoinDelay,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// CreateTeam creates a team named name and joins the session user to it.
// When the team exists but the join keeps failing the error is a
// *PartialCreateError.
func (m *Manager) CreateTeam(ctx context.Context, name string) (model.Team, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return model.Team{}, ErrNameRequired
	}
	user, err := m.sessions.RequireUser(ctx)
	if err != nil {
		return model.Team{}, err
	}

	t, err := m.api.CreateTeam(ctx, user.Token, name)
	if err != nil {
		metrics.RecordTeamOperation("create", "error")
		return model.Team{}, errors.Wrap(err, "create team")
	}
	m.logger.Info(ctx, "team created", logger.String("teamID", t.ID), logger.String("name", name))

	err = retry.Do(
		func() error { return m.join(ctx, *user, t.ID) },
		retry.Context(ctx),
		retry.Attempts(m.joinAttempts),
		retry.Delay(m.joinDelay),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
		retry.RetryIf(retryable),
		retry.OnRetry(func(n uint, err error) {
			m.logger.Warn(ctx, "join after create failed, retrying",
				logger.String("teamID", t.ID), logger.Int("attempt", int(n)+1), logger.Error(err))
		}),
	)
	if err != nil {
		metrics.RecordTeamOperation("create", "partial")
		return t, &PartialCreateError{TeamID: t.ID, Err: err}
	}
	metrics.RecordTeamOperation("create", "ok")
	return t, nil
}

// JoinTeam joins the session user to teamID.
func (m *Manager) JoinTeam(ctx context.Context, teamID string) error {
	teamID = strings.TrimSpace(teamID)
	if teamID == "" {
		return ErrTeamIDRequired
	}
	user, err := m.sessions.RequireUser(ctx)
	if err != nil {
		return err
	}
	if err := m.join(ctx, *user, teamID); err != nil {
		metrics.RecordTeamOperation("join", "error")
		return err
	}
	metrics.RecordTeamOperation("join", "ok")
	return nil
}

func (m *Manager) join(ctx context.Context, user model.User, teamID string) error {
	membership, err := m.api.JoinTeam(ctx, user.Token, model.JoinRequest{TeamID: teamID, UserEmail: user.Email})
	if err != nil {
		return errors.Wrap(err, "join team")
	}
	joined := membership.TeamID
	if joined == "" {
		joined = teamID
	}
	if err := m.sessions.Set(ctx, user.WithTeam(joined)); err != nil {
		return retry.Unrecoverable(errors.Wrap(err, "update session team"))
	}
	return nil
}

// ListMembers returns the distinct emails that authored interactions in
// teamID, in first-seen order. Members without interactions are not found.
func (m *Manager) ListMembers(ctx context.Context, teamID string) ([]string, error) {
	teamID = strings.TrimSpace(teamID)
	if teamID == "" {
		return nil, ErrTeamIDRequired
	}
	var token string
	if user, err := m.sessions.RequireUser(ctx); err == nil {
		token = user.Token
	}
	interactions, err := m.api.ListInteractions(ctx, token, model.InteractionFilter{TeamID: teamID})
	if err != nil {
		return nil, errors.Wrap(err, "list team interactions")
	}

	seen := set.New[string](len(interactions))
	members := make([]string, 0, len(interactions))
	for _, it := range interactions {
		if it.UserEmail == "" {
			continue
		}
		if seen.Insert(it.UserEmail) {
			members = append(members, it.UserEmail)
		}
	}
	return members, nil
}

// retryable keeps retrying transport failures and server errors only.
func retryable(err error) bool {
	status := apiclient.StatusOf(err)
	return status == 0 || status >= 500
}
