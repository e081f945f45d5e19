package session

import (
	"github.com/okian/flames/internal/adapters/mq/eventbus"
	"github.com/okian/flames/pkg/logger"
)

// Option applies a configuration option to the Store.
type Option func(*Store)

// WithBus publishes session changes on bus instead of a private one.
func WithBus(bus eventbus.Bus) Option {
	return func(s *Store) {
		if bus != nil {
			s.bus = bus
		}
	}
}

// WithCodec sets the durable encoding of the session.
func WithCodec(c Codec) Option {
	return func(s *Store) {
		if c != nil {
			s.codec = c
		}
	}
}

// WithLogger sets the store logger.
func WithLogger(l logger.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.logger = l
		}
	}
}
