package stubapi

import (
	"time"

	"github.com/okian/flames/pkg/logger"
)

// Option applies a configuration option to the Server.
type Option func(*Server)

// WithSecret sets the HS256 signing secret.
func WithSecret(secret string) Option {
	return func(s *Server) {
		if secret != "" {
			s.secret = secret
		}
	}
}

// WithTokenTTL sets the lifetime of issued tokens. Zero means no expiry.
func WithTokenTTL(ttl time.Duration) Option {
	return func(s *Server) {
		if ttl >= 0 {
			s.tokenTTL = ttl
		}
	}
}

// WithBcryptCost sets the password hashing cost.
func WithBcryptCost(cost int) Option {
	return func(s *Server) {
		if cost > 0 {
			s.bcryptCost = cost
		}
	}
}

// WithStore replaces the in-memory store.
func WithStore(store *Store) Option {
	return func(s *Server) {
		if store != nil {
			s.store = store
		}
	}
}

// WithLogger sets the server logger.
func WithLogger(l logger.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}
