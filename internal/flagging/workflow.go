// Package flagging files structured reports against the playground's latest
// interaction.
package flagging

import (
	"context"
	"strings"

	"github.com/cockroachdb/errors"

	"github.com/okian/flames/internal/domain/model"
	"github.com/okian/flames/pkg/logger"
	"github.com/okian/flames/pkg/metrics"
)

// Form is the user input of one flag.
type Form struct {
	Category model.Category
	Severity int
	Comments string
}

// API is the subset of the backend client used by the workflow.
type API interface {
	CreateFlag(ctx context.Context, token string, f model.NewFlag) (model.Flag, error)
}

// Sessions is the subset of the session store used by the workflow.
type Sessions interface {
	RequireUser(ctx context.Context) (*model.User, error)
}

// Source yields the interaction a flag refers to.
type Source interface {
	Latest(ctx context.Context) (model.Interaction, bool)
}

// Workflow submits flags.
type Workflow struct {
	api      API
	sessions Sessions
	source   Source
	logger   logger.Logger
}

// New creates a Workflow. l may be nil.
func New(api API, sessions Sessions, source Source, l logger.Logger) *Workflow {
	if l == nil {
		l = logger.Nop()
	}
	return &Workflow{api: api, sessions: sessions, source: source, logger: l}
}

// Submit files a flag against the latest interaction. The created flag is
// returned as-is and not merged into any local list.
func (w *Workflow) Submit(ctx context.Context, form Form) (model.Flag, error) {
	user, err := w.sessions.RequireUser(ctx)
	if err != nil {
		return model.Flag{}, err
	}
	interaction, ok := w.source.Latest(ctx)
	if !ok {
		return model.Flag{}, ErrNoInteraction
	}

	body := model.NewFlag{
		InteractionID: interaction.ID,
		UserEmail:     user.Email,
		Category:      form.Category,
		Severity:      model.NewSeverity(form.Severity),
		Comments:      strings.TrimSpace(form.Comments),
	}
	if err := model.Validate(body); err != nil {
		metrics.RecordFlagSubmitted(string(form.Category), "invalid")
		return model.Flag{}, err
	}

	flag, err := w.api.CreateFlag(ctx, user.Token, body)
	if err != nil {
		metrics.RecordFlagSubmitted(string(body.Category), "error")
		return model.Flag{}, errors.Wrap(err, "submit flag")
	}
	metrics.RecordFlagSubmitted(string(body.Category), "ok")
	w.logger.Info(ctx, "flag submitted",
		logger.String("flagID", flag.ID),
		logger.String("interactionID", interaction.ID),
		logger.String("category", string(body.Category)),
		logger.Int("severity", int(body.Severity)))
	return flag, nil
}
