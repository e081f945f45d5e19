package apiclient

import (
	"context"
	"net/http"
	"net/url"

	"github.com/okian/flames/internal/domain/model"
)

// Signup registers a user and returns the session user.
func (c *Client) Signup(ctx context.Context, creds model.Credentials) (model.User, error) {
	return doJSON[model.User](ctx, c, "/auth/signup", WithMethod(http.MethodPost), WithBody(creds))
}

// Login authenticates and returns the session user.
func (c *Client) Login(ctx context.Context, creds model.Credentials) (model.User, error) {
	return doJSON[model.User](ctx, c, "/auth/login", WithMethod(http.MethodPost), WithBody(creds))
}

// ListExercises returns every exercise.
func (c *Client) ListExercises(ctx context.Context, token string) ([]model.Exercise, error) {
	return doJSON[[]model.Exercise](ctx, c, "/exercises", WithToken(token))
}

// CreateExercise creates an exercise.
func (c *Client) CreateExercise(ctx context.Context, token string, ex model.NewExercise) (model.Exercise, error) {
	return doJSON[model.Exercise](ctx, c, "/exercises", WithMethod(http.MethodPost), WithBody(ex), WithToken(token))
}

// DeleteExercise deletes an exercise by id.
func (c *Client) DeleteExercise(ctx context.Context, token, id string) error {
	_, err := c.Do(ctx, "/exercises/"+url.PathEscape(id),
		WithMethod(http.MethodDelete), WithToken(token), WithRoute("/exercises/{id}"))
	return err
}

// ListModelMappings returns every blind-label mapping.
func (c *Client) ListModelMappings(ctx context.Context, token string) ([]model.ModelMapping, error) {
	return doJSON[[]model.ModelMapping](ctx, c, "/model-mappings", WithToken(token))
}

// CreateModelMapping creates a mapping.
func (c *Client) CreateModelMapping(ctx context.Context, token string, m model.ModelMapping) (model.ModelMapping, error) {
	return doJSON[model.ModelMapping](ctx, c, "/model-mappings", WithMethod(http.MethodPost), WithBody(m), WithToken(token))
}

// DeleteModelMapping deletes a mapping by id.
func (c *Client) DeleteModelMapping(ctx context.Context, token, id string) error {
	_, err := c.Do(ctx, "/model-mappings/"+url.PathEscape(id),
		WithMethod(http.MethodDelete), WithToken(token), WithRoute("/model-mappings/{id}"))
	return err
}

// Generate submits a prompt to a blind slot and returns the recorded interaction.
func (c *Client) Generate(ctx context.Context, token string, req model.GenerateRequest) (model.Interaction, error) {
	return doJSON[model.Interaction](ctx, c, "/api/generate", WithMethod(http.MethodPost), WithBody(req), WithToken(token))
}

// ListInteractions returns interactions scoped by filter.
func (c *Client) ListInteractions(ctx context.Context, token string, filter model.InteractionFilter) ([]model.Interaction, error) {
	return doJSON[[]model.Interaction](ctx, c, "/interactions", WithQuery(filter.Query()), WithToken(token))
}

// CreateFlag submits a flag.
func (c *Client) CreateFlag(ctx context.Context, token string, f model.NewFlag) (model.Flag, error) {
	return doJSON[model.Flag](ctx, c, "/flags", WithMethod(http.MethodPost), WithBody(f), WithToken(token))
}

// ListFlags returns every flag.
func (c *Client) ListFlags(ctx context.Context, token string) ([]model.Flag, error) {
	return doJSON[[]model.Flag](ctx, c, "/flags", WithToken(token))
}

// ResolveFlag moves a flag to resolved.
func (c *Client) ResolveFlag(ctx context.Context, token, id string) (model.Flag, error) {
	return doJSON[model.Flag](ctx, c, "/flags/"+url.PathEscape(id)+"/resolve",
		WithMethod(http.MethodPost), WithToken(token), WithRoute("/flags/{id}/resolve"))
}

// Analytics returns aggregate counters.
func (c *Client) Analytics(ctx context.Context, token string) (model.Analytics, error) {
	return doJSON[model.Analytics](ctx, c, "/admin/analytics", WithToken(token))
}

// ExportJSON returns the backend-rendered JSON export unchanged.
func (c *Client) ExportJSON(ctx context.Context, token string) ([]byte, error) {
	resp, err := c.Do(ctx, "/export/json", WithToken(token))
	if err != nil {
		return nil, err
	}
	return resp.Body, nil
}

// ExportCSV returns the backend-rendered CSV export unchanged.
func (c *Client) ExportCSV(ctx context.Context, token string) ([]byte, error) {
	resp, err := c.Do(ctx, "/export/csv", WithToken(token))
	if err != nil {
		return nil, err
	}
	return resp.Body, nil
}

// CreateTeam creates a team.
func (c *Client) CreateTeam(ctx context.Context, token, name string) (model.Team, error) {
	return doJSON[model.Team](ctx, c, "/teams", WithMethod(http.MethodPost),
		WithBody(map[string]string{"name": name}), WithToken(token))
}

// JoinTeam joins userEmail to a team.
func (c *Client) JoinTeam(ctx context.Context, token string, req model.JoinRequest) (model.Membership, error) {
	return doJSON[model.Membership](ctx, c, "/teams/join", WithMethod(http.MethodPost), WithBody(req), WithToken(token))
}
