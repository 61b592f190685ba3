package monitor

import (
	"io"

	"github.com/paywatch/pmtproc/internal/logger"
)

// Option is a functional option for configuring the Monitor.
type Option func(*Monitor) error

// WithConfig sets the entire configuration.
func WithConfig(config *Config) Option {
	return func(m *Monitor) error {
		m.config = config
		return nil
	}
}

// WithTarget sets the campaign target (slug or full URL).
func WithTarget(target string) Option {
	return func(m *Monitor) error {
		m.config.Target = target
		return nil
	}
}

// WithOutputDir sets the directory receiving the HAR file.
func WithOutputDir(dir string) Option {
	return func(m *Monitor) error {
		m.config.OutputDir = dir
		return nil
	}
}

// WithLogger sets a custom logger.
func WithLogger(l *logger.Logger) Option {
	return func(m *Monitor) error {
		m.log = l
		return nil
	}
}

// WithOutput sets the writer receiving the final report sections.
func WithOutput(w io.Writer) Option {
	return func(m *Monitor) error {
		m.out = w
		return nil
	}
}

// WithHeadless toggles headless operation (tests only; operator runs are
// headed so the window can be interacted with and closed).
func WithHeadless(headless bool) Option {
	return func(m *Monitor) error {
		m.config.Headless = headless
		return nil
	}
}

// WithHistory toggles the run ledger.
func WithHistory(enabled bool) Option {
	return func(m *Monitor) error {
		m.config.History = enabled
		return nil
	}
}
