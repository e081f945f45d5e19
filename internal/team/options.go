package team

import (
	"time"

	"github.com/okian/flames/pkg/logger"
)

// Option applies a configuration option to the Manager.
type Option func(*Manager)

// WithJoinAttempts bounds how many times the join step of CreateTeam runs.
func WithJoinAttempts(n int) Option {
	return func(m *Manager) {
		if n > 0 {
			m.joinAttempts = uint(n)
		}
	}
}

// WithJoinDelay sets the initial backoff between join attempts.
func WithJoinDelay(d time.Duration) Option {
	return func(m *Manager) {
		if d >= 0 {
			m.joinDelay = d
		}
	}
}

// WithLogger sets the manager logger.
func WithLogger(l logger.Logger) Option {
	return func(m *Manager) {
		if l != nil {
			m.logger = l
		}
	}
}
