// Package config loads the spintouch YAML configuration file.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/joyfulhouse/lamotte-spintouch/internal/lifecycle"
	"github.com/joyfulhouse/lamotte-spintouch/internal/protocol"
	"github.com/joyfulhouse/lamotte-spintouch/internal/transport"
)

// Config holds all application configuration.
type Config struct {
	Instrument InstrumentConfig `yaml:"instrument"`
	Timings    TimingsConfig    `yaml:"timings"`
	LogLevel   string           `yaml:"log_level"`
}

// InstrumentConfig identifies the instrument and its cartridge.
type InstrumentConfig struct {
	Address string `yaml:"address"`
	// DiskSeries is "auto" or an explicit series like "303"; an
	// explicit value overrides inference from the decoded parameters.
	DiskSeries string `yaml:"disk_series"`
}

// TimingsConfig tunes the connection lifecycle.
type TimingsConfig struct {
	DisconnectDelay    time.Duration `yaml:"disconnect_delay"`
	ReconnectDelay     time.Duration `yaml:"reconnect_delay"`
	VisibilityInterval time.Duration `yaml:"visibility_interval"`
	ConnectTimeout     time.Duration `yaml:"connect_timeout"`
}

// DefaultConfigDir returns the default config directory path.
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "spintouch")
}

// DefaultConfigPath returns the default config file path.
func DefaultConfigPath() string {
	return filepath.Join(DefaultConfigDir(), "config.yaml")
}

// Default returns a Config with sensible default values.
func Default() *Config {
	return &Config{
		Instrument: InstrumentConfig{
			DiskSeries: "auto",
		},
		Timings: TimingsConfig{
			DisconnectDelay:    lifecycle.DefaultDisconnectDelay,
			ReconnectDelay:     lifecycle.DefaultReconnectDelay,
			VisibilityInterval: lifecycle.DefaultVisibilityInterval,
			ConnectTimeout:     transport.DefaultConnectTimeout,
		},
		LogLevel: "info",
	}
}

// Load reads and parses a YAML config file. Missing fields are filled
// with defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	return cfg, nil
}

// Validate checks the config for invalid values.
func (c *Config) Validate() error {
	if c.Instrument.DiskSeries != "auto" {
		series := protocol.CartridgeSeries(c.Instrument.DiskSeries)
		if _, err := protocol.DescriptorFor(series); err != nil {
			return fmt.Errorf("instrument.disk_series %q is not a supported series", c.Instrument.DiskSeries)
		}
	}

	if c.Timings.DisconnectDelay <= 0 {
		return fmt.Errorf("timings.disconnect_delay must be > 0")
	}
	if c.Timings.ReconnectDelay <= 0 {
		return fmt.Errorf("timings.reconnect_delay must be > 0")
	}
	if c.Timings.VisibilityInterval <= 0 {
		return fmt.Errorf("timings.visibility_interval must be > 0")
	}
	if c.Timings.ConnectTimeout <= 0 {
		return fmt.Errorf("timings.connect_timeout must be > 0")
	}

	switch c.LogLevel {
	case "trace", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log_level must be trace, debug, info, warn, or error, got %q", c.LogLevel)
	}

	return nil
}
