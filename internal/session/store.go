// Package session owns the authenticated user of this client.
//
// The Store is the single writer of the durable session key. It loads the
// key lazily, treats unreadable data as "signed out", and publishes every
// change on the event bus so that views can follow along. Watch keeps the
// in-memory copy in step with writes made by other flames processes.
package session

import (
	"context"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/golang-jwt/jwt/v5"

	"github.com/okian/flames/internal/adapters/kvstore"
	"github.com/okian/flames/internal/adapters/mq/eventbus"
	"github.com/okian/flames/internal/domain/model"
	"github.com/okian/flames/pkg/logger"
	"github.com/okian/flames/pkg/metrics"
)

// Key is the durable storage key of the session user.
const Key = "session_user"

// Change sources.
const (
	SourceLocal    = "local"
	SourceExternal = "external"
)

// Change is the payload published on eventbus.TopicSession.
type Change struct {
	User   *model.User
	Source string
}

// Store holds the current session user.
type Store struct {
	kv     kvstore.Store
	bus    eventbus.Bus
	codec  Codec
	logger logger.Logger

	mu     sync.RWMutex
	loaded bool
	user   *model.User
	raw    string
}

// New creates a Store persisted in kv.
func New(kv kvstore.Store, opts ...Option) *Store {
	s := &Store{
		kv:     kv,
		codec:  JSONCodec{},
		logger: logger.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.bus == nil {
		s.bus = eventbus.New()
	}
	return s
}

// load reads the durable key once. Any failure leaves the store signed out.
func (s *Store) load(ctx context.Context) {
	s.mu.RLock()
	loaded := s.loaded
	s.mu.RUnlock()
	if loaded {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.loaded {
		return
	}
	s.loaded = true

	raw, ok, err := s.kv.Get(ctx, Key)
	if err != nil {
		s.logger.Warn(ctx, "session storage unreadable", logger.Error(err))
		return
	}
	if !ok {
		return
	}
	u, err := s.codec.Decode(raw)
	if err != nil {
		s.logger.Warn(ctx, "ignoring stored session", logger.Error(err))
		return
	}
	s.user = &u
	s.raw = raw
	metrics.UpdateSessionActive(true)
}

// User returns a copy of the session user, or nil when signed out.
func (s *Store) User(ctx context.Context) *model.User {
	s.load(ctx)
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.user == nil {
		return nil
	}
	u := *s.user
	return &u
}

// Token returns the bearer token of the session, or "".
func (s *Store) Token(ctx context.Context) string {
	if u := s.User(ctx); u != nil {
		return u.Token
	}
	return ""
}

// RequireUser returns the session user or ErrNotAuthenticated.
func (s *Store) RequireUser(ctx context.Context) (*model.User, error) {
	u := s.User(ctx)
	if u == nil {
		return nil, errors.WithHint(ErrNotAuthenticated, "log in first")
	}
	return u, nil
}

// Set replaces the session user in memory and durable storage.
func (s *Store) Set(ctx context.Context, u model.User) error {
	if err := checkUser(u); err != nil {
		return err
	}
	raw, err := s.codec.Encode(u)
	if err != nil {
		return err
	}

	s.mu.Lock()
	if err := s.kv.Set(ctx, Key, raw); err != nil {
		s.mu.Unlock()
		return errors.Wrap(err, "persist session")
	}
	s.loaded = true
	s.user = &u
	s.raw = raw
	s.mu.Unlock()

	s.changed(ctx, &u, SourceLocal, "set")
	return nil
}

// Clear signs out, removing the durable key.
func (s *Store) Clear(ctx context.Context) error {
	s.mu.Lock()
	if err := s.kv.Remove(ctx, Key); err != nil {
		s.mu.Unlock()
		return errors.Wrap(err, "remove session")
	}
	s.loaded = true
	s.user = nil
	s.raw = ""
	s.mu.Unlock()

	s.changed(ctx, nil, SourceLocal, "clear")
	return nil
}

// Subscribe calls fn with the new user (nil when signed out) after every
// change. The returned func unsubscribes.
func (s *Store) Subscribe(fn func(ctx context.Context, u *model.User)) func() {
	return s.bus.Subscribe(eventbus.TopicSession, func(ctx context.Context, e eventbus.Event) {
		if c, ok := e.Payload.(Change); ok {
			fn(ctx, c.User)
		}
	})
}

// Watch follows durable changes made by other processes until ctx is done.
// It returns once the watch is established.
func (s *Store) Watch(ctx context.Context) error {
	s.load(ctx)
	changes, err := s.kv.Watch(ctx)
	if err != nil {
		return errors.Wrap(err, "watch session")
	}
	go func() {
		for c := range changes {
			s.apply(ctx, c)
		}
	}()
	return nil
}

// apply re-synchronises memory with one durable change. Our own writes and
// malformed payloads are ignored.
func (s *Store) apply(ctx context.Context, c kvstore.Change) {
	if c.Key != Key {
		return
	}

	s.mu.Lock()
	if c.Removed {
		if s.user == nil {
			s.mu.Unlock()
			return
		}
		s.user = nil
		s.raw = ""
		s.mu.Unlock()
		s.changed(ctx, nil, SourceExternal, "clear")
		return
	}
	if c.Value == s.raw {
		s.mu.Unlock()
		return
	}
	u, err := s.codec.Decode(c.Value)
	if err != nil {
		s.mu.Unlock()
		s.logger.Debug(ctx, "ignoring external session payload", logger.Error(err))
		return
	}
	s.user = &u
	s.raw = c.Value
	s.mu.Unlock()

	cp := u
	s.changed(ctx, &cp, SourceExternal, "set")
}

func (s *Store) changed(ctx context.Context, u *model.User, source, kind string) {
	metrics.RecordSessionChange(source, kind)
	metrics.UpdateSessionActive(u != nil)
	s.logger.Debug(ctx, "session changed", logger.String("source", source), logger.String("kind", kind))
	var payload *model.User
	if u != nil {
		cp := *u
		payload = &cp
	}
	s.bus.Publish(ctx, eventbus.Event{Topic: eventbus.TopicSession, Payload: Change{User: payload, Source: source}})
}

// Claims decodes the session token's claims without verifying the
// signature. The result is informational only.
func (s *Store) Claims(ctx context.Context) (jwt.MapClaims, error) {
	token := s.Token(ctx)
	if token == "" {
		return nil, ErrNotAuthenticated
	}
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return nil, errors.Mark(errors.Wrap(err, "parse token"), ErrMalformedToken)
	}
	return claims, nil
}
