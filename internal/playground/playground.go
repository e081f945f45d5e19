// Package playground submits prompts to a blind-labelled model and keeps the
// latest interaction for flagging.
//
// A submission moves the playground from idle to submitting and then to
// success or failure. Each transition is published on the event bus.
package playground

import (
	"context"
	"encoding/json"
	"html"
	"strings"
	"sync"
	"unicode"

	"github.com/cockroachdb/errors"
	"github.com/microcosm-cc/bluemonday"

	"github.com/okian/flames/internal/adapters/kvstore"
	"github.com/okian/flames/internal/adapters/mq/eventbus"
	"github.com/okian/flames/internal/domain/model"
	"github.com/okian/flames/pkg/logger"
	"github.com/okian/flames/pkg/metrics"
)

// Durable keys owned by the playground.
const (
	KeyCustomEndpoint   = "custom_endpoint"
	KeyCustomKey        = "custom_key"
	KeySelectedExercise = "selected_exercise"
	KeyLatest           = "latest_interaction"
)

// Form defaults.
const (
	DefaultPrompt         = "Explain model cards for AI systems in simple terms."
	DefaultCustomEndpoint = "https://api.your-model.example/v1/generate"
)

// State is the submission state.
type State string

// Submission states.
const (
	StateIdle       State = "idle"
	StateSubmitting State = "submitting"
	StateSuccess    State = "success"
	StateFailure    State = "failure"
)

// Request is one playground submission.
type Request struct {
	Prompt         string
	Blind          string
	ExerciseID     string
	CustomEndpoint string
	CustomKey      string
}

// Snapshot is the observable playground state, published on
// eventbus.TopicPlayground after every transition.
type Snapshot struct {
	State    State
	Response string
	Latest   *model.Interaction
}

// API is the subset of the backend client used by the playground.
type API interface {
	Generate(ctx context.Context, token string, req model.GenerateRequest) (model.Interaction, error)
	ListInteractions(ctx context.Context, token string, filter model.InteractionFilter) ([]model.Interaction, error)
}

// Sessions is the subset of the session store used by the playground.
type Sessions interface {
	RequireUser(ctx context.Context) (*model.User, error)
}

// Playground holds the form state of one participant.
type Playground struct {
	api      API
	sessions Sessions
	kv       kvstore.Store
	bus      eventbus.Bus
	logger   logger.Logger
	policy   *bluemonday.Policy

	mu           sync.RWMutex
	state        State
	response     string
	latest       *model.Interaction
	owner        string
	interactions []model.Interaction
}

// latestRecord is the durable form of the latest interaction. Owner is the
// email of the session user that produced it.
type latestRecord struct {
	Owner       string            `json:"owner"`
	Interaction model.Interaction `json:"interaction"`
}

func sameUser(owner string, u *model.User) bool {
	return u != nil && owner != "" && strings.EqualFold(owner, u.Email)
}

// New creates an idle playground.
func New(api API, sessions Sessions, kv kvstore.Store, opts ...Option) *Playground {
	p := &Playground{
		api:      api,
		sessions: sessions,
		kv:       kv,
		logger:   logger.Nop(),
		policy:   bluemonday.StrictPolicy(),
		state:    StateIdle,
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.bus == nil {
		p.bus = eventbus.New()
	}
	return p
}

// Defaults returns the initial form values: the default prompt and blind,
// the persisted custom endpoint and credential, and the selected exercise.
func (p *Playground) Defaults(ctx context.Context) Request {
	req := Request{
		Prompt:         DefaultPrompt,
		Blind:          model.BlindAlpha,
		CustomEndpoint: DefaultCustomEndpoint,
	}
	if v, ok := p.read(ctx, KeyCustomEndpoint); ok {
		req.CustomEndpoint = v
	}
	if v, ok := p.read(ctx, KeyCustomKey); ok {
		req.CustomKey = v
	}
	if ex := p.SelectedExercise(ctx); ex != nil {
		req.ExerciseID = ex.ID
	}
	return req
}

func (p *Playground) read(ctx context.Context, key string) (string, bool) {
	v, ok, err := p.kv.Get(ctx, key)
	if err != nil {
		p.logger.Warn(ctx, "read form default", logger.String("key", key), logger.Error(err))
		return "", false
	}
	return v, ok
}

// SelectExercise persists ex as the exercise to attach to submissions.
// A nil ex clears the selection.
func (p *Playground) SelectExercise(ctx context.Context, ex *model.Exercise) error {
	if ex == nil {
		return p.kv.Remove(ctx, KeySelectedExercise)
	}
	b, err := json.Marshal(ex)
	if err != nil {
		return errors.Wrap(err, "encode selected exercise")
	}
	return p.kv.Set(ctx, KeySelectedExercise, string(b))
}

// SelectedExercise returns the persisted selection. Unreadable data reads
// as no selection.
func (p *Playground) SelectedExercise(ctx context.Context) *model.Exercise {
	raw, ok := p.read(ctx, KeySelectedExercise)
	if !ok {
		return nil
	}
	var ex *model.Exercise
	if err := json.Unmarshal([]byte(raw), &ex); err != nil || ex == nil || ex.ID == "" {
		return nil
	}
	return ex
}

// Submit sends req to the backend. On success the response text and the
// latest interaction are updated and the user's interactions are re-fetched.
// On failure the error text becomes the response and the error is returned.
func (p *Playground) Submit(ctx context.Context, req Request) error {
	user, err := p.sessions.RequireUser(ctx)
	if err != nil {
		return err
	}
	body := model.GenerateRequest{
		Prompt:     strings.TrimSpace(req.Prompt),
		Blind:      req.Blind,
		ExerciseID: req.ExerciseID,
	}
	if req.Blind == model.BlindCustom {
		body.CustomEndpoint = strings.TrimSpace(req.CustomEndpoint)
		body.CustomKey = req.CustomKey
	}
	if err := model.Validate(body); err != nil {
		return err
	}

	p.mu.Lock()
	if p.state == StateSubmitting {
		p.mu.Unlock()
		return ErrBusy
	}
	p.state = StateSubmitting
	p.response = ""
	p.mu.Unlock()
	p.publish(ctx)

	if req.Blind == model.BlindCustom {
		p.persistCustom(ctx, body.CustomEndpoint, body.CustomKey)
	}

	interaction, err := p.api.Generate(ctx, user.Token, body)
	if err != nil {
		metrics.RecordGeneration(req.Blind, "error")
		p.logger.Warn(ctx, "generation failed", logger.String("blind", req.Blind), logger.Error(err))
		p.mu.Lock()
		p.state = StateFailure
		p.response = err.Error()
		p.mu.Unlock()
		p.publish(ctx)
		return errors.Wrap(err, "generate")
	}
	metrics.RecordGeneration(req.Blind, "ok")

	p.mu.Lock()
	p.state = StateSuccess
	p.response = interaction.Response
	p.latest = &interaction
	p.owner = user.Email
	p.mu.Unlock()
	p.persistLatest(ctx, user.Email, interaction)

	if err := p.Refresh(ctx); err != nil {
		p.logger.Warn(ctx, "refresh interactions after generate", logger.Error(err))
	}
	p.publish(ctx)
	return nil
}

func (p *Playground) persistCustom(ctx context.Context, endpoint, key string) {
	if err := p.kv.Set(ctx, KeyCustomEndpoint, endpoint); err != nil {
		p.logger.Warn(ctx, "persist custom endpoint", logger.Error(err))
	}
	if err := p.kv.Set(ctx, KeyCustomKey, key); err != nil {
		p.logger.Warn(ctx, "persist custom key", logger.Error(err))
	}
}

func (p *Playground) persistLatest(ctx context.Context, owner string, it model.Interaction) {
	b, err := json.Marshal(latestRecord{Owner: owner, Interaction: it})
	if err != nil {
		return
	}
	if err := p.kv.Set(ctx, KeyLatest, string(b)); err != nil {
		p.logger.Warn(ctx, "persist latest interaction", logger.Error(err))
	}
}

// Refresh re-fetches the session user's interactions.
func (p *Playground) Refresh(ctx context.Context) error {
	user, err := p.sessions.RequireUser(ctx)
	if err != nil {
		return err
	}
	list, err := p.api.ListInteractions(ctx, user.Token, model.InteractionFilter{UserEmail: user.Email})
	if err != nil {
		return errors.Wrap(err, "list interactions")
	}
	p.mu.Lock()
	p.interactions = list
	p.mu.Unlock()
	return nil
}

func (p *Playground) publish(ctx context.Context) {
	p.bus.Publish(ctx, eventbus.Event{Topic: eventbus.TopicPlayground, Payload: p.Snapshot()})
}

// Snapshot returns the current state.
func (p *Playground) Snapshot() Snapshot {
	p.mu.RLock()
	defer p.mu.RUnlock()
	s := Snapshot{State: p.state, Response: p.response}
	if p.latest != nil {
		cp := *p.latest
		s.Latest = &cp
	}
	return s
}

// State returns the submission state.
func (p *Playground) State() State {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.state
}

// Response returns the raw response or error text of the last submission.
func (p *Playground) Response() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.response
}

// Display returns the response verbatim except for terminal control
// characters, which are dropped. Newlines and tabs are kept.
func (p *Playground) Display() string {
	return printable(p.Response())
}

// Sanitized returns the response as plain text with any markup removed.
func (p *Playground) Sanitized() string {
	return printable(strings.TrimSpace(html.UnescapeString(p.policy.Sanitize(p.Response()))))
}

func printable(s string) string {
	return strings.Map(func(r rune) rune {
		if r == '\n' || r == '\t' {
			return r
		}
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, s)
}

// Latest returns the interaction produced by the session user's last
// successful submission, falling back to the one persisted by an earlier
// process. An interaction produced by another user is never returned.
func (p *Playground) Latest(ctx context.Context) (model.Interaction, bool) {
	user, err := p.sessions.RequireUser(ctx)
	if err != nil {
		return model.Interaction{}, false
	}

	p.mu.RLock()
	latest, owner := p.latest, p.owner
	p.mu.RUnlock()
	if latest != nil {
		if !sameUser(owner, user) {
			return model.Interaction{}, false
		}
		return *latest, true
	}

	rec, ok := p.readLatest(ctx)
	if !ok || !sameUser(rec.Owner, user) {
		return model.Interaction{}, false
	}
	p.mu.Lock()
	if p.latest == nil {
		it := rec.Interaction
		p.latest = &it
		p.owner = rec.Owner
	}
	p.mu.Unlock()
	return rec.Interaction, true
}

func (p *Playground) readLatest(ctx context.Context) (latestRecord, bool) {
	raw, ok := p.read(ctx, KeyLatest)
	if !ok {
		return latestRecord{}, false
	}
	var rec latestRecord
	if err := json.Unmarshal([]byte(raw), &rec); err != nil || rec.Interaction.ID == "" {
		return latestRecord{}, false
	}
	return rec, true
}

// Forget drops the latest interaction, in memory and on disk.
func (p *Playground) Forget(ctx context.Context) error {
	p.mu.Lock()
	p.latest = nil
	p.owner = ""
	p.mu.Unlock()
	return p.kv.Remove(ctx, KeyLatest)
}

// Reconcile forgets the latest interaction unless u produced it. It is
// called whenever the session user changes.
func (p *Playground) Reconcile(ctx context.Context, u *model.User) error {
	p.mu.RLock()
	latest, owner := p.latest, p.owner
	p.mu.RUnlock()

	stale := latest != nil && !sameUser(owner, u)
	if !stale {
		if _, found, err := p.kv.Get(ctx, KeyLatest); err == nil && found {
			rec, ok := p.readLatest(ctx)
			stale = !ok || !sameUser(rec.Owner, u)
		}
	}
	if !stale {
		return nil
	}
	p.logger.Debug(ctx, "dropping latest interaction of another user")
	return p.Forget(ctx)
}

// Interactions returns the last fetched interaction list.
func (p *Playground) Interactions() []model.Interaction {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]model.Interaction, len(p.interactions))
	copy(out, p.interactions)
	return out
}
