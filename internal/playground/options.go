package playground

import (
	"github.com/okian/flames/internal/adapters/mq/eventbus"
	"github.com/okian/flames/pkg/logger"
)

// Option applies a configuration option to the Playground.
type Option func(*Playground)

// WithBus publishes state transitions on bus.
func WithBus(bus eventbus.Bus) Option {
	return func(p *Playground) {
		if bus != nil {
			p.bus = bus
		}
	}
}

// WithLogger sets the playground logger.
func WithLogger(l logger.Logger) Option {
	return func(p *Playground) {
		if l != nil {
			p.logger = l
		}
	}
}
