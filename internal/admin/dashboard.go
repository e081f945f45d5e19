// Package admin is the admin dashboard: exercise and model-mapping
// management, flag review, analytics and exports.
//
// Gate is a convenience for the client. Authorization is enforced by the
// backend on every admin route.
package admin

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/cockroachdb/errors"
	"golang.org/x/sync/errgroup"

	"github.com/okian/flames/internal/domain/model"
	"github.com/okian/flames/pkg/logger"
	"github.com/okian/flames/pkg/metrics"
)

// Section names one independently loaded part of the dashboard.
type Section string

// Dashboard sections.
const (
	SectionExercises Section = "exercises"
	SectionMappings  Section = "mappings"
	SectionFlags     Section = "flags"
	SectionAnalytics Section = "analytics"
)

// API is the subset of the backend client used by the dashboard.
type API interface {
	ListExercises(ctx context.Context, token string) ([]model.Exercise, error)
	CreateExercise(ctx context.Context, token string, ex model.NewExercise) (model.Exercise, error)
	DeleteExercise(ctx context.Context, token, id string) error
	ListModelMappings(ctx context.Context, token string) ([]model.ModelMapping, error)
	CreateModelMapping(ctx context.Context, token string, m model.ModelMapping) (model.ModelMapping, error)
	DeleteModelMapping(ctx context.Context, token, id string) error
	ListFlags(ctx context.Context, token string) ([]model.Flag, error)
	ResolveFlag(ctx context.Context, token, id string) (model.Flag, error)
	Analytics(ctx context.Context, token string) (model.Analytics, error)
	ExportJSON(ctx context.Context, token string) ([]byte, error)
	ExportCSV(ctx context.Context, token string) ([]byte, error)
}

// Sessions is the subset of the session store used by the dashboard.
type Sessions interface {
	RequireUser(ctx context.Context) (*model.User, error)
}

// LoadReport lists the sections that failed during Load.
type LoadReport struct {
	Errors map[Section]error
}

// OK reports whether every section loaded.
func (r LoadReport) OK() bool {
	return len(r.Errors) == 0
}

// Failed returns the failed sections in name order.
func (r LoadReport) Failed() []Section {
	out := make([]Section, 0, len(r.Errors))
	for s := range r.Errors {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Dashboard holds the admin view state.
type Dashboard struct {
	api       API
	sessions  Sessions
	logger    logger.Logger
	exportDir string

	mu        sync.RWMutex
	exercises []model.Exercise
	mappings  []model.ModelMapping
	flags     []model.Flag
	analytics *model.Analytics
}

// New creates an empty dashboard.
func New(api API, sessions Sessions, opts ...Option) *Dashboard {
	d := &Dashboard{
		api:       api,
		sessions:  sessions,
		logger:    logger.Nop(),
		exportDir: ".",
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Gate returns ErrAdminsOnly unless u holds the admin role.
func Gate(u *model.User) error {
	if !u.IsAdmin() {
		return ErrAdminsOnly
	}
	return nil
}

func (d *Dashboard) admin(ctx context.Context) (*model.User, error) {
	u, err := d.sessions.RequireUser(ctx)
	if err != nil {
		return nil, err
	}
	if err := Gate(u); err != nil {
		return nil, err
	}
	return u, nil
}

// Load fetches every section concurrently. A failed section keeps its
// previous contents and is recorded in the report; only the admin gate
// produces an error.
func (d *Dashboard) Load(ctx context.Context) (LoadReport, error) {
	u, err := d.admin(ctx)
	if err != nil {
		return LoadReport{}, err
	}

	var g errgroup.Group
	var mu sync.Mutex
	report := LoadReport{Errors: map[Section]error{}}
	fail := func(s Section, err error) {
		mu.Lock()
		report.Errors[s] = err
		mu.Unlock()
		metrics.RecordDashboardSectionError(string(s))
		d.logger.Warn(ctx, "dashboard section failed", logger.String("section", string(s)), logger.Error(err))
	}

	g.Go(func() error {
		list, err := d.api.ListExercises(ctx, u.Token)
		if err != nil {
			fail(SectionExercises, err)
			return nil
		}
		d.mu.Lock()
		d.exercises = list
		d.mu.Unlock()
		return nil
	})
	g.Go(func() error {
		list, err := d.api.ListModelMappings(ctx, u.Token)
		if err != nil {
			fail(SectionMappings, err)
			return nil
		}
		d.mu.Lock()
		d.mappings = list
		d.mu.Unlock()
		return nil
	})
	g.Go(func() error {
		list, err := d.api.ListFlags(ctx, u.Token)
		if err != nil {
			fail(SectionFlags, err)
			return nil
		}
		d.mu.Lock()
		d.flags = list
		d.mu.Unlock()
		return nil
	})
	g.Go(func() error {
		a, err := d.api.Analytics(ctx, u.Token)
		if err != nil {
			fail(SectionAnalytics, err)
			return nil
		}
		d.mu.Lock()
		d.analytics = &a
		d.mu.Unlock()
		return nil
	})
	_ = g.Wait()

	return report, nil
}

// Exercises returns the loaded exercises.
func (d *Dashboard) Exercises() []model.Exercise {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return append([]model.Exercise(nil), d.exercises...)
}

// Mappings returns the loaded model mappings.
func (d *Dashboard) Mappings() []model.ModelMapping {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return append([]model.ModelMapping(nil), d.mappings...)
}

// Flags returns the loaded flags.
func (d *Dashboard) Flags() []model.Flag {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return append([]model.Flag(nil), d.flags...)
}

// Analytics returns the loaded counters, if any.
func (d *Dashboard) Analytics() (model.Analytics, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.analytics == nil {
		return model.Analytics{}, false
	}
	return *d.analytics, true
}

// CreateExercise creates an exercise and prepends it locally.
func (d *Dashboard) CreateExercise(ctx context.Context, ex model.NewExercise) (model.Exercise, error) {
	u, err := d.admin(ctx)
	if err != nil {
		return model.Exercise{}, err
	}
	ex.Title = strings.TrimSpace(ex.Title)
	if err := model.Validate(ex); err != nil {
		return model.Exercise{}, err
	}
	created, err := d.api.CreateExercise(ctx, u.Token, ex)
	if err != nil {
		return model.Exercise{}, errors.Wrap(err, "create exercise")
	}
	d.mu.Lock()
	d.exercises = append([]model.Exercise{created}, d.exercises...)
	d.mu.Unlock()
	return created, nil
}

// DeleteExercise deletes id and drops it locally.
func (d *Dashboard) DeleteExercise(ctx context.Context, id string) error {
	u, err := d.admin(ctx)
	if err != nil {
		return err
	}
	if id == "" {
		return ErrIDRequired
	}
	if err := d.api.DeleteExercise(ctx, u.Token, id); err != nil {
		return errors.Wrap(err, "delete exercise")
	}
	d.mu.Lock()
	d.exercises = without(d.exercises, func(e model.Exercise) bool { return e.ID == id })
	d.mu.Unlock()
	return nil
}

// CreateMapping binds a blind label to a provider/model and appends it locally.
func (d *Dashboard) CreateMapping(ctx context.Context, m model.ModelMapping) (model.ModelMapping, error) {
	u, err := d.admin(ctx)
	if err != nil {
		return model.ModelMapping{}, err
	}
	if err := model.Validate(m); err != nil {
		return model.ModelMapping{}, err
	}
	created, err := d.api.CreateModelMapping(ctx, u.Token, m)
	if err != nil {
		return model.ModelMapping{}, errors.Wrap(err, "create model mapping")
	}
	d.mu.Lock()
	d.mappings = append(d.mappings, created)
	d.mu.Unlock()
	return created, nil
}

// DeleteMapping deletes a mapping and drops it locally.
func (d *Dashboard) DeleteMapping(ctx context.Context, id string) error {
	u, err := d.admin(ctx)
	if err != nil {
		return err
	}
	if id == "" {
		return ErrIDRequired
	}
	if err := d.api.DeleteModelMapping(ctx, u.Token, id); err != nil {
		return errors.Wrap(err, "delete model mapping")
	}
	d.mu.Lock()
	d.mappings = without(d.mappings, func(m model.ModelMapping) bool { return m.ID == id })
	d.mu.Unlock()
	return nil
}

// ResolveFlag moves an open flag to resolved. A flag already known to be
// resolved is rejected without a call.
func (d *Dashboard) ResolveFlag(ctx context.Context, id string) (model.Flag, error) {
	u, err := d.admin(ctx)
	if err != nil {
		return model.Flag{}, err
	}
	if id == "" {
		return model.Flag{}, ErrIDRequired
	}
	d.mu.RLock()
	for _, f := range d.flags {
		if f.ID == id && f.Status == model.FlagResolved {
			d.mu.RUnlock()
			return f, ErrAlreadyResolved
		}
	}
	d.mu.RUnlock()

	resolved, err := d.api.ResolveFlag(ctx, u.Token, id)
	if err != nil {
		return model.Flag{}, errors.Wrap(err, "resolve flag")
	}
	if resolved.ID == "" {
		resolved.ID = id
	}
	resolved.Status = model.FlagResolved

	d.mu.Lock()
	for i := range d.flags {
		if d.flags[i].ID == id {
			d.flags[i].Status = model.FlagResolved
		}
	}
	d.mu.Unlock()
	return resolved, nil
}

func without[T any](list []T, drop func(T) bool) []T {
	out := list[:0:0]
	for _, v := range list {
		if !drop(v) {
			out = append(out, v)
		}
	}
	return out
}
