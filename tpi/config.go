package tpi

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/arloliu/go-tinyprog/logger"
)

const (
	DefaultTickInterval   = 100 * time.Millisecond
	DefaultTimeoutTicks   = 100 // 10 seconds at the default tick
	DefaultEventQueueSize = 64
)

const (
	MinTickInterval = 10 * time.Millisecond
	MaxTickInterval = 1 * time.Second

	MinTimeoutTicks = 1
	MaxTimeoutTicks = 6000

	MinEventQueueSize = 1
	MaxEventQueueSize = 4096
)

// StateHandler is called on every state change of a transaction, from the transaction's goroutine.
type StateHandler func(from, to State)

// Config holds the engine configuration.
type Config struct {
	tickInterval   time.Duration
	timeoutTicks   int
	eventQueueSize int

	trace        io.Writer
	stateHandler StateHandler

	logger logger.Logger
}

// NewConfig creates an engine configuration.
func NewConfig(opts ...Option) (*Config, error) {
	cfg := &Config{
		tickInterval:   DefaultTickInterval,
		timeoutTicks:   DefaultTimeoutTicks,
		eventQueueSize: DefaultEventQueueSize,
		logger:         logger.GetLogger(),
	}

	for _, opt := range opts {
		if err := opt.apply(cfg); err != nil {
			return nil, err
		}
	}

	return cfg, nil
}

// TickInterval returns the countdown tick.
func (cfg *Config) TickInterval() time.Duration { return cfg.tickInterval }

// TimeoutTicks returns the countdown start value.
func (cfg *Config) TimeoutTicks() int { return cfg.timeoutTicks }

// Timeout returns the time without received bytes after which a wait gives up.
func (cfg *Config) Timeout() time.Duration {
	return cfg.tickInterval * time.Duration(cfg.timeoutTicks)
}

// EventQueueSize returns the capacity of the received byte queue.
func (cfg *Config) EventQueueSize() int { return cfg.eventQueueSize }

// GetLogger returns the logger.
func (cfg *Config) GetLogger() logger.Logger { return cfg.logger }

// Option configures a Config.
type Option interface {
	apply(*Config) error
}

type optFunc func(*Config) error

func (f optFunc) apply(cfg *Config) error {
	return f(cfg)
}

// WithTickInterval sets the countdown tick.
func WithTickInterval(d time.Duration) Option {
	return optFunc(func(cfg *Config) error {
		if d < MinTickInterval || d > MaxTickInterval {
			return fmt.Errorf("tpi: tick interval %v out of range [%v, %v]", d, MinTickInterval, MaxTickInterval)
		}
		cfg.tickInterval = d

		return nil
	})
}

// WithTimeoutTicks sets the countdown start value.
func WithTimeoutTicks(n int) Option {
	return optFunc(func(cfg *Config) error {
		if n < MinTimeoutTicks || n > MaxTimeoutTicks {
			return fmt.Errorf("tpi: timeout ticks %d out of range [%d, %d]", n, MinTimeoutTicks, MaxTimeoutTicks)
		}
		cfg.timeoutTicks = n

		return nil
	})
}

// WithEventQueueSize sets the capacity of the received byte queue.
func WithEventQueueSize(size int) Option {
	return optFunc(func(cfg *Config) error {
		if size < MinEventQueueSize || size > MaxEventQueueSize {
			return fmt.Errorf("tpi: event queue size %d out of range [%d, %d]", size, MinEventQueueSize, MaxEventQueueSize)
		}
		cfg.eventQueueSize = size

		return nil
	})
}

// WithTrace mirrors every received printable byte and line feed to w. Write errors are ignored.
//
// w is written from the transaction goroutine, so a writer shared with other goroutines must be
// safe for concurrent use.
func WithTrace(w io.Writer) Option {
	return optFunc(func(cfg *Config) error {
		cfg.trace = w
		return nil
	})
}

// WithStateHandler registers a handler for state changes.
func WithStateHandler(h StateHandler) Option {
	return optFunc(func(cfg *Config) error {
		cfg.stateHandler = h
		return nil
	})
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return optFunc(func(cfg *Config) error {
		if l == nil {
			return errors.New("tpi: nil logger")
		}
		cfg.logger = l

		return nil
	})
}
