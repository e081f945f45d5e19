package admin

import "github.com/okian/flames/pkg/logger"

// Option applies a configuration option to the Dashboard.
type Option func(*Dashboard)

// WithLogger sets the dashboard logger.
func WithLogger(l logger.Logger) Option {
	return func(d *Dashboard) {
		if l != nil {
			d.logger = l
		}
	}
}

// WithExportDir sets where ExportFile writes.
func WithExportDir(dir string) Option {
	return func(d *Dashboard) {
		if dir != "" {
			d.exportDir = dir
		}
	}
}
