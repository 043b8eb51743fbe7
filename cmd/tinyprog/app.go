package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/arloliu/go-tinyprog/chip"
	"github.com/arloliu/go-tinyprog/isp"
	"github.com/arloliu/go-tinyprog/link"
	"github.com/arloliu/go-tinyprog/logger"
	"github.com/arloliu/go-tinyprog/tpi"
)

// ispDevice is what the ISP commands need from avrdude.
type ispDevice interface {
	isp.FuseProgrammer
	ReadSignature(ctx context.Context) (string, error)
}

// app holds the state shared by all commands of one invocation.
type app struct {
	out    io.Writer
	errOut io.Writer

	cfg      *Config
	registry *chip.Registry
	logger   logger.Logger

	// factories, replaced in tests
	newLink func(cfg *Config) (link.Link, error)
	newISP  func(cfg *Config, info chip.Info) (ispDevice, error)
}

// syncWriter serializes writes from command code and transaction goroutines.
type syncWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (w *syncWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	return w.w.Write(p)
}

func newApp(out, errOut io.Writer) *app {
	return &app{
		out:     &syncWriter{w: out},
		errOut:  errOut,
		cfg:     defaultConfig(),
		newLink: openSerialLink,
		newISP:  newAvrdude,
	}
}

func (a *app) printf(format string, args ...any) {
	fmt.Fprintf(a.out, format, args...)
}

// setup applies the loaded configuration: logger and chip registry.
func (a *app) setup() error {
	level, err := logger.ParseLevel(a.cfg.LogLevel)
	if err != nil {
		return err
	}
	a.logger = logger.NewSlogWriter(a.errOut, level, false, os.Getenv("ENV") == logger.DevelopmentEnv)
	logger.SetDefault(a.logger)

	b := chip.DefaultBuilder()
	if a.cfg.ChipProfiles != "" {
		f, err := os.Open(a.cfg.ChipProfiles)
		if err != nil {
			return fmt.Errorf("open chip profiles: %w", err)
		}
		defer f.Close()

		if err := chip.LoadProfiles(f, b); err != nil {
			return err
		}
	}
	a.registry = b.Build()

	return nil
}

// target returns the configured chip.
func (a *app) target() (string, chip.Info, error) {
	if a.cfg.Chip == "" {
		return "", chip.Info{}, errNoChip
	}
	info, ok := a.registry.Lookup(a.cfg.Chip)
	if !ok {
		return "", chip.Info{}, fmt.Errorf("unknown chip %q, see 'tinyprog chips'", a.cfg.Chip)
	}

	return a.cfg.Chip, info, nil
}

// programmer builds a TPI programmer on the configured link.
func (a *app) programmer() (*tpi.Programmer, error) {
	l, err := a.newLink(a.cfg)
	if err != nil {
		return nil, err
	}

	opts := []tpi.Option{
		tpi.WithTickInterval(a.cfg.TickInterval),
		tpi.WithTimeoutTicks(a.cfg.TimeoutTicks),
		tpi.WithLogger(a.logger),
		tpi.WithStateHandler(func(from, to tpi.State) {
			a.logger.Debug("transaction state", "from", from.String(), "to", to.String())
		}),
	}
	if a.cfg.Trace {
		opts = append(opts, tpi.WithTrace(a.out))
	}

	cfg, err := tpi.NewConfig(opts...)
	if err != nil {
		return nil, err
	}
	e, err := tpi.NewEngine(l, cfg)
	if err != nil {
		return nil, err
	}

	return tpi.NewProgrammer(e), nil
}

func openSerialLink(cfg *Config) (link.Link, error) {
	if cfg.Port == "" {
		return nil, errNoPort
	}

	pc, err := link.NewPortConfig(cfg.Port, link.WithBaudRate(cfg.Baud), link.WithLogger(logger.GetLogger()))
	if err != nil {
		return nil, err
	}

	return link.NewPort(pc), nil
}

func newAvrdude(cfg *Config, info chip.Info) (ispDevice, error) {
	opts := []isp.AvrdudeOption{
		isp.WithAvrdudePath(cfg.Avrdude.Path),
		isp.WithProgrammer(cfg.Avrdude.Programmer),
		isp.WithVerbose(cfg.Avrdude.Verbose),
		isp.WithAvrdudeLogger(logger.GetLogger()),
	}
	if cfg.Avrdude.ConfigFile != "" {
		opts = append(opts, isp.WithConfigFile(cfg.Avrdude.ConfigFile))
	}
	if cfg.Avrdude.Port != "" {
		opts = append(opts, isp.WithSerialPort(cfg.Avrdude.Port, cfg.Avrdude.Baud))
	}

	a, err := isp.NewAvrdude(info.Part, opts...)
	if err != nil {
		return nil, err
	}

	return a, nil
}
