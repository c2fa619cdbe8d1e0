package link

import (
	"errors"
	"fmt"
	"time"

	"github.com/venlet/go-armlink/logger"
	"github.com/venlet/go-armlink/wire"
)

// Default timeout values.
const (
	// DefaultOpenTimeout bounds Open: transport open plus boot banner plus
	// the readiness sentinel. Controllers take a few seconds to boot.
	DefaultOpenTimeout = 10 * time.Second

	// DefaultCloseTimeout bounds Close waiting for the read loop to stop.
	DefaultCloseTimeout = 3 * time.Second
)

// Config holds all configuration for a Link.
type Config struct {
	// dialect is the framing grammar spoken on the wire.
	dialect wire.Dialect

	openTimeout  time.Duration
	closeTimeout time.Duration

	// replyTimeout bounds Do waiting for a reply; zero means wait until the
	// caller's context is done. No timeout is enforced on Send handles.
	replyTimeout time.Duration

	statusHandler StatusHandler
	errorHandler  ErrorHandler

	logger logger.Logger
}

// NewConfig creates a new link configuration.
//
// opts are functional options applied in order; see With* functions.
func NewConfig(opts ...Option) (*Config, error) {
	cfg := &Config{
		dialect:      wire.DefaultDialect,
		openTimeout:  DefaultOpenTimeout,
		closeTimeout: DefaultCloseTimeout,
		logger:       logger.GetLogger(),
	}

	for _, opt := range opts {
		if err := opt.apply(cfg); err != nil {
			return nil, err
		}
	}

	return cfg, nil
}

// --- Getters ---

// Dialect returns the configured framing dialect.
func (cfg *Config) Dialect() wire.Dialect { return cfg.dialect }

// OpenTimeout returns the timeout for Open reaching readiness.
func (cfg *Config) OpenTimeout() time.Duration { return cfg.openTimeout }

// CloseTimeout returns the timeout for Close.
func (cfg *Config) CloseTimeout() time.Duration { return cfg.closeTimeout }

// ReplyTimeout returns the reply timeout for Do; zero means none.
func (cfg *Config) ReplyTimeout() time.Duration { return cfg.replyTimeout }

// GetLogger returns the configured logger.
func (cfg *Config) GetLogger() logger.Logger { return cfg.logger }

// --- Option ---

// Option is a functional option for configuring a Config.
type Option interface {
	apply(*Config) error
}

type optFunc func(*Config) error

func (f optFunc) apply(cfg *Config) error { return f(cfg) }

// WithDialect sets the framing dialect. The dialect must validate; see
// [wire.Dialect.Validate]. Default is [wire.DefaultDialect].
func WithDialect(d wire.Dialect) Option {
	return optFunc(func(cfg *Config) error {
		if err := d.Validate(); err != nil {
			return err
		}
		cfg.dialect = d

		return nil
	})
}

// WithOpenTimeout sets the timeout for Open reaching readiness.
func WithOpenTimeout(d time.Duration) Option {
	return optFunc(func(cfg *Config) error {
		if d <= 0 {
			return errors.New("link: open timeout must be positive")
		}
		cfg.openTimeout = d

		return nil
	})
}

// WithCloseTimeout sets the timeout for Close waiting on the read loop.
func WithCloseTimeout(d time.Duration) Option {
	return optFunc(func(cfg *Config) error {
		if d <= 0 {
			return errors.New("link: close timeout must be positive")
		}
		cfg.closeTimeout = d

		return nil
	})
}

// WithReplyTimeout sets a reply timeout for Do. Zero disables it (the
// default): a request without a reply then waits until the caller's context
// is done.
func WithReplyTimeout(d time.Duration) Option {
	return optFunc(func(cfg *Config) error {
		if d < 0 {
			return fmt.Errorf("link: reply timeout %v is negative", d)
		}
		cfg.replyTimeout = d

		return nil
	})
}

// WithStatusHandler sets the handler for unsolicited status lines.
func WithStatusHandler(h StatusHandler) Option {
	return optFunc(func(cfg *Config) error {
		cfg.statusHandler = h

		return nil
	})
}

// WithErrorHandler sets the link-level error handler. It receives device
// errors, protocol violations, and transport faults.
func WithErrorHandler(h ErrorHandler) Option {
	return optFunc(func(cfg *Config) error {
		cfg.errorHandler = h

		return nil
	})
}

// WithLogger sets the logger for the link.
func WithLogger(l logger.Logger) Option {
	return optFunc(func(cfg *Config) error {
		if l == nil {
			return errors.New("link: logger must not be nil")
		}
		cfg.logger = l

		return nil
	})
}
