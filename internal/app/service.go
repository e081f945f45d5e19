// Package service wires the flames client components together: durable
// storage, the event bus, the API client, the session store and the
// participant and admin workflows built on them.
package service

import (
	"context"
	"strings"
	"sync"

	"github.com/cockroachdb/errors"

	"github.com/okian/flames/internal/adapters/apiclient"
	"github.com/okian/flames/internal/adapters/kvstore"
	"github.com/okian/flames/internal/adapters/mq/eventbus"
	"github.com/okian/flames/internal/admin"
	"github.com/okian/flames/internal/config"
	"github.com/okian/flames/internal/domain/model"
	"github.com/okian/flames/internal/flagging"
	"github.com/okian/flames/internal/playground"
	"github.com/okian/flames/internal/session"
	"github.com/okian/flames/internal/team"
	"github.com/okian/flames/pkg/logger"
)

// ErrNotStarted is returned by operations called before Start.
var ErrNotStarted = errors.New("service not started")

// Service owns every client component.
type Service struct {
	mu sync.RWMutex

	cfg    *config.Config
	logger logger.Logger
	watch  bool
	apiOps []apiclient.Option

	kv         *kvstore.FileStore
	bus        *eventbus.InMemoryBus
	api        *apiclient.Client
	sessions   *session.Store
	teams      *team.Manager
	playground *playground.Playground
	flags      *flagging.Workflow
	dashboard  *admin.Dashboard

	started bool
	cancel  context.CancelFunc
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithSessionWatch keeps the session in step with other processes while
// the service runs.
func WithSessionWatch(enabled bool) Option {
	return func(s *Service) {
		s.watch = enabled
	}
}

// WithAPIOptions passes extra options to the API client.
func WithAPIOptions(opts ...apiclient.Option) Option {
	return func(s *Service) {
		s.apiOps = append(s.apiOps, opts...)
	}
}

// New constructs a Service for cfg. Nothing is opened until Start.
func New(cfg *config.Config, opts ...Option) *Service {
	s := &Service{
		cfg:    cfg,
		logger: logger.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start opens the state directory and builds the components.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}

	kv, err := kvstore.New(s.cfg.StateDir, kvstore.WithLogger(s.logger.Named("kvstore")))
	if err != nil {
		return errors.Wrap(err, "open state dir")
	}

	apiOpts := append([]apiclient.Option{
		apiclient.WithTimeout(s.cfg.RequestTimeout()),
		apiclient.WithLogger(s.logger.Named("api")),
	}, s.apiOps...)
	api, err := apiclient.New(s.cfg.BaseURL, apiOpts...)
	if err != nil {
		return errors.Wrap(err, "create api client")
	}

	bus := eventbus.New()

	sessionOpts := []session.Option{
		session.WithBus(bus),
		session.WithLogger(s.logger.Named("session")),
	}
	if s.cfg.SessionSecret != "" {
		sessionOpts = append(sessionOpts, session.WithCodec(session.NewSecureCodec(s.cfg.SessionSecret)))
	}
	sessions := session.New(kv, sessionOpts...)

	pg := playground.New(api, sessions, kv,
		playground.WithBus(bus),
		playground.WithLogger(s.logger.Named("playground")))

	// A session switched by another process drops the previous user's latest interaction.
	bus.Subscribe(eventbus.TopicSession, func(ctx context.Context, e eventbus.Event) {
		c, ok := e.Payload.(session.Change)
		if !ok || c.Source != session.SourceExternal {
			return
		}
		if err := pg.Reconcile(ctx, c.User); err != nil {
			s.logger.Warn(ctx, "reconcile latest interaction", logger.Error(err))
		}
	})

	s.kv = kv
	s.bus = bus
	s.api = api
	s.sessions = sessions
	s.playground = pg
	s.teams = team.NewManager(api, sessions,
		team.WithJoinAttempts(s.cfg.JoinRetryAttempts),
		team.WithJoinDelay(s.cfg.JoinRetryDelay()),
		team.WithLogger(s.logger.Named("team")))
	s.flags = flagging.New(api, sessions, pg, s.logger.Named("flagging"))
	s.dashboard = admin.New(api, sessions,
		admin.WithExportDir(s.cfg.ExportDir),
		admin.WithLogger(s.logger.Named("admin")))

	if s.watch {
		wctx, cancel := context.WithCancel(ctx)
		if err := sessions.Watch(wctx); err != nil {
			cancel()
			return errors.Wrap(err, "watch session")
		}
		s.cancel = cancel
	}

	s.started = true
	s.logger.Debug(ctx, "service started",
		logger.String("baseURL", api.BaseURL()),
		logger.String("stateDir", kv.Dir()))
	return nil
}

// Stop releases the watch and closes the bus.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	_ = s.bus.Close()
	s.started = false
}

func (s *Service) ready() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.started {
		return ErrNotStarted
	}
	return nil
}

// API returns the backend client.
func (s *Service) API() *apiclient.Client { return s.api }

// Bus returns the event bus.
func (s *Service) Bus() eventbus.Bus { return s.bus }

// Session returns the session store.
func (s *Service) Session() *session.Store { return s.sessions }

// Teams returns the team manager.
func (s *Service) Teams() *team.Manager { return s.teams }

// Playground returns the playground.
func (s *Service) Playground() *playground.Playground { return s.playground }

// Flags returns the flag workflow.
func (s *Service) Flags() *flagging.Workflow { return s.flags }

// Admin returns the admin dashboard.
func (s *Service) Admin() *admin.Dashboard { return s.dashboard }

// Signup creates an account and signs in with it.
func (s *Service) Signup(ctx context.Context, creds model.Credentials) (model.User, error) {
	return s.authenticate(ctx, creds, s.api.Signup)
}

// Login signs in with existing credentials.
func (s *Service) Login(ctx context.Context, creds model.Credentials) (model.User, error) {
	return s.authenticate(ctx, creds, s.api.Login)
}

func (s *Service) authenticate(ctx context.Context, creds model.Credentials,
	call func(context.Context, model.Credentials) (model.User, error)) (model.User, error) {
	if err := s.ready(); err != nil {
		return model.User{}, err
	}
	creds.Email = strings.TrimSpace(creds.Email)
	if err := model.Validate(creds); err != nil {
		return model.User{}, err
	}
	u, err := call(ctx, creds)
	if err != nil {
		return model.User{}, err
	}
	if err := s.sessions.Set(ctx, u); err != nil {
		return model.User{}, err
	}
	if err := s.playground.Reconcile(ctx, &u); err != nil {
		return model.User{}, err
	}
	s.logger.Info(ctx, "signed in", logger.String("email", u.Email), logger.String("role", string(u.Role)))
	return u, nil
}

// Logout clears the session and the playground's latest interaction.
func (s *Service) Logout(ctx context.Context) error {
	if err := s.ready(); err != nil {
		return err
	}
	if err := s.sessions.Clear(ctx); err != nil {
		return err
	}
	return s.playground.Forget(ctx)
}

// Exercises lists exercises, authenticated when a session exists.
func (s *Service) Exercises(ctx context.Context) ([]model.Exercise, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	return s.api.ListExercises(ctx, s.sessions.Token(ctx))
}

// Interactions lists interactions matching filter with the session token.
func (s *Service) Interactions(ctx context.Context, filter model.InteractionFilter) ([]model.Interaction, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	u, err := s.sessions.RequireUser(ctx)
	if err != nil {
		return nil, err
	}
	return s.api.ListInteractions(ctx, u.Token, filter)
}
