package admin

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/hashicorp/go-set/v2"

	"github.com/okian/flames/internal/domain/model"
	"github.com/okian/flames/pkg/logger"
)

// DefaultMappings are created by SeedMappings when their blind label is
// missing. The custom label is served by the backend proxy and needs none.
var DefaultMappings = []model.ModelMapping{
	{Blind: model.BlindAlpha, Provider: "OpenAI", Model: "gpt-4o-mini", APIKeyEnv: "OPENAI_API_KEY"},
	{Blind: model.BlindBeta, Provider: "Anthropic", Model: "claude-3-haiku-20240307", APIKeyEnv: "ANTHROPIC_API_KEY"},
}

// SeedMappings creates the default mappings that do not exist yet and
// returns the ones it created. An empty result means the mappings were
// already present.
func (d *Dashboard) SeedMappings(ctx context.Context) ([]model.ModelMapping, error) {
	u, err := d.admin(ctx)
	if err != nil {
		return nil, err
	}
	existing, err := d.api.ListModelMappings(ctx, u.Token)
	if err != nil {
		return nil, errors.Wrap(err, "list model mappings")
	}

	blinds := set.New[string](len(existing))
	for _, m := range existing {
		blinds.Insert(m.Blind)
	}

	created := make([]model.ModelMapping, 0, len(DefaultMappings))
	for _, m := range DefaultMappings {
		if blinds.Contains(m.Blind) {
			continue
		}
		c, err := d.api.CreateModelMapping(ctx, u.Token, m)
		if err != nil {
			return created, errors.Wrapf(err, "seed %s mapping", m.Blind)
		}
		created = append(created, c)
		d.logger.Info(ctx, "seeded model mapping", logger.String("blind", c.Blind), logger.String("model", c.Model))
	}

	d.mu.Lock()
	d.mappings = append(existing, created...)
	d.mu.Unlock()
	return created, nil
}
