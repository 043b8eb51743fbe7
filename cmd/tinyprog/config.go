package main

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/arloliu/go-tinyprog/isp"
	"github.com/arloliu/go-tinyprog/link"
	"github.com/arloliu/go-tinyprog/tpi"
)

const defaultConfigName = ".tinyprog.yaml"

// Config is the tinyprog configuration file. Command line flags override it.
type Config struct {
	Port         string        `yaml:"port"`
	Baud         int           `yaml:"baud"`
	Chip         string        `yaml:"chip"`
	LogLevel     string        `yaml:"log_level"`
	Trace        bool          `yaml:"trace"`
	TickInterval time.Duration `yaml:"tick_interval"`
	TimeoutTicks int           `yaml:"timeout_ticks"`
	// ChipProfiles is a YAML file with extra chip definitions.
	ChipProfiles string        `yaml:"chip_profiles"`
	Avrdude      AvrdudeConfig `yaml:"avrdude"`
}

// AvrdudeConfig configures the ISP path.
type AvrdudeConfig struct {
	Path       string `yaml:"path"`
	ConfigFile string `yaml:"config_file"`
	Programmer string `yaml:"programmer"`
	Port       string `yaml:"port"`
	Baud       int    `yaml:"baud"`
	Verbose    bool   `yaml:"verbose"`
}

func defaultConfig() *Config {
	return &Config{
		Baud:         link.DefaultBaudRate,
		LogLevel:     "info",
		TickInterval: tpi.DefaultTickInterval,
		TimeoutTicks: tpi.DefaultTimeoutTicks,
		Avrdude: AvrdudeConfig{
			Path:       isp.DefaultAvrdudePath,
			Programmer: isp.DefaultProgrammer,
			Baud:       isp.DefaultSerialBaud,
		},
	}
}

func defaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}

	return filepath.Join(home, defaultConfigName)
}

// loadConfig reads path over the defaults. A missing file is an error only when required.
func loadConfig(path string, required bool) (*Config, error) {
	cfg := defaultConfig()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) && !required {
			return cfg, nil
		}

		return nil, fmt.Errorf("read config: %w", err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}

	return cfg, nil
}
