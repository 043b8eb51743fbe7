package link

import (
	"errors"
	"fmt"
	"time"

	"github.com/arloliu/go-tinyprog/logger"
)

// Default port settings.
const (
	DefaultBaudRate     = 115200
	DefaultReadTimeout  = 50 * time.Millisecond // serial read poll interval
	DefaultCloseTimeout = 1 * time.Second
	DefaultReadBufSize  = 64
)

// Port setting limits.
const (
	MinBaudRate = 1200
	MaxBaudRate = 1000000

	MinReadTimeout = 1 * time.Millisecond
	MaxReadTimeout = 1 * time.Second

	MinCloseTimeout = 10 * time.Millisecond
	MaxCloseTimeout = 10 * time.Second

	MinReadBufSize = 1
	MaxReadBufSize = 4096
)

// PortConfig holds the settings of a serial Port.
type PortConfig struct {
	name string

	baudRate     int
	readTimeout  time.Duration
	closeTimeout time.Duration
	readBufSize  int

	logger logger.Logger
}

// NewPortConfig creates the configuration of the serial device name, e.g. "/dev/ttyUSB0" or "COM3".
func NewPortConfig(name string, opts ...PortOption) (*PortConfig, error) {
	if name == "" {
		return nil, errors.New("link: empty port name")
	}

	cfg := &PortConfig{
		name:         name,
		baudRate:     DefaultBaudRate,
		readTimeout:  DefaultReadTimeout,
		closeTimeout: DefaultCloseTimeout,
		readBufSize:  DefaultReadBufSize,
		logger:       logger.GetLogger(),
	}

	for _, opt := range opts {
		if err := opt.apply(cfg); err != nil {
			return nil, err
		}
	}

	return cfg, nil
}

// Name returns the serial device name.
func (cfg *PortConfig) Name() string { return cfg.name }

// BaudRate returns the line speed.
func (cfg *PortConfig) BaudRate() int { return cfg.baudRate }

// ReadTimeout returns the serial read timeout, which bounds how long Close waits for the reader.
func (cfg *PortConfig) ReadTimeout() time.Duration { return cfg.readTimeout }

// CloseTimeout returns how long Close waits for the receive goroutine to stop.
func (cfg *PortConfig) CloseTimeout() time.Duration { return cfg.closeTimeout }

// ReadBufSize returns the size of the receive buffer.
func (cfg *PortConfig) ReadBufSize() int { return cfg.readBufSize }

// GetLogger returns the logger.
func (cfg *PortConfig) GetLogger() logger.Logger { return cfg.logger }

// PortOption configures a PortConfig.
type PortOption interface {
	apply(*PortConfig) error
}

type portOptFunc func(*PortConfig) error

func (f portOptFunc) apply(cfg *PortConfig) error {
	return f(cfg)
}

// WithBaudRate sets the line speed.
func WithBaudRate(baud int) PortOption {
	return portOptFunc(func(cfg *PortConfig) error {
		if baud < MinBaudRate || baud > MaxBaudRate {
			return fmt.Errorf("link: baud rate %d out of range [%d, %d]", baud, MinBaudRate, MaxBaudRate)
		}
		cfg.baudRate = baud

		return nil
	})
}

// WithReadTimeout sets the serial read timeout.
func WithReadTimeout(d time.Duration) PortOption {
	return portOptFunc(func(cfg *PortConfig) error {
		if d < MinReadTimeout || d > MaxReadTimeout {
			return fmt.Errorf("link: read timeout %v out of range [%v, %v]", d, MinReadTimeout, MaxReadTimeout)
		}
		cfg.readTimeout = d

		return nil
	})
}

// WithCloseTimeout sets how long Close waits for the receive goroutine.
func WithCloseTimeout(d time.Duration) PortOption {
	return portOptFunc(func(cfg *PortConfig) error {
		if d < MinCloseTimeout || d > MaxCloseTimeout {
			return fmt.Errorf("link: close timeout %v out of range [%v, %v]", d, MinCloseTimeout, MaxCloseTimeout)
		}
		cfg.closeTimeout = d

		return nil
	})
}

// WithReadBufSize sets the receive buffer size.
func WithReadBufSize(size int) PortOption {
	return portOptFunc(func(cfg *PortConfig) error {
		if size < MinReadBufSize || size > MaxReadBufSize {
			return fmt.Errorf("link: read buffer size %d out of range [%d, %d]", size, MinReadBufSize, MaxReadBufSize)
		}
		cfg.readBufSize = size

		return nil
	})
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) PortOption {
	return portOptFunc(func(cfg *PortConfig) error {
		if l == nil {
			return errors.New("link: nil logger")
		}
		cfg.logger = l

		return nil
	})
}
