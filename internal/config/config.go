// Package config loads the rover's runtime configuration from a YAML file
// with environment overrides.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/teslashibe/go-rescue/pkg/bridge"
	"github.com/teslashibe/go-rescue/pkg/drive"
	"github.com/teslashibe/go-rescue/pkg/link"
	"github.com/teslashibe/go-rescue/pkg/oi"
	"github.com/teslashibe/go-rescue/pkg/rover"
	"github.com/teslashibe/go-rescue/pkg/survey"
	"gopkg.in/yaml.v3"
)

// Environment variables that override the file.
const (
	EnvBasePort    = "ROVER_BASE_PORT"
	EnvBridgePort  = "ROVER_BRIDGE_PORT"
	EnvConsolePort = "ROVER_CONSOLE_PORT"
	EnvWebPort     = "ROVER_WEB_PORT"
	EnvLogLevel    = "ROVER_LOG_LEVEL"
	EnvSimulate    = "ROVER_SIMULATE"
)

// Serial describes one UART.
type Serial struct {
	Port        string        `yaml:"port"`
	Baud        int           `yaml:"baud"`
	ReadTimeout time.Duration `yaml:"read_timeout"`
}

// Web holds the dashboard and operator endpoint settings.
type Web struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
}

// Survey holds the sweep parameters.
type Survey struct {
	Threshold int           `yaml:"threshold"`
	Step      int           `yaml:"step"`
	Settle    time.Duration `yaml:"settle"`
	Capacity  int           `yaml:"capacity"`
}

// Config is the full rover configuration.
type Config struct {
	// Simulate replaces all hardware with the in-memory simulator.
	Simulate bool   `yaml:"simulate"`
	LogLevel string `yaml:"log_level"`

	Base    Serial `yaml:"base"`
	Bridge  Serial `yaml:"bridge"`
	Console Serial `yaml:"console"`
	Web     Web    `yaml:"web"`

	// ManeuverTimeout bounds each drive maneuver. Zero waits forever.
	ManeuverTimeout time.Duration `yaml:"maneuver_timeout"`
	// CycleDelay is slept between control cycles.
	CycleDelay time.Duration `yaml:"cycle_delay"`

	Survey Survey `yaml:"survey"`
}

// DefaultConfig returns the configuration the rover ships with.
func DefaultConfig() Config {
	base, br, con := oi.DefaultConfig(), bridge.DefaultConfig(), link.DefaultConfig()
	sv := survey.DefaultConfig()
	return Config{
		LogLevel: "info",
		Base:     Serial{Port: base.Port, Baud: base.Baud, ReadTimeout: base.ReadTimeout},
		Bridge:   Serial{Port: br.Port, Baud: br.Baud, ReadTimeout: br.ReadTimeout},
		Console:  Serial{Port: con.Port, Baud: con.Baud, ReadTimeout: con.ReadTimeout},
		Web:      Web{Enabled: true, Port: 8080},
		Survey: Survey{
			Threshold: sv.Threshold,
			Step:      sv.Step,
			Settle:    sv.Settle,
			Capacity:  sv.Capacity,
		},
	}
}

// Load reads path over the defaults and applies environment overrides.
// A missing file is not an error.
func Load(path string) (Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			return cfg, fmt.Errorf("config: read %s: %w", path, err)
		default:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return cfg, fmt.Errorf("config: parse %s: %w", path, err)
			}
		}
	}

	if err := cfg.applyEnvOverrides(); err != nil {
		return cfg, err
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (c *Config) applyEnvOverrides() error {
	if v := os.Getenv(EnvBasePort); v != "" {
		c.Base.Port = v
	}
	if v := os.Getenv(EnvBridgePort); v != "" {
		c.Bridge.Port = v
	}
	if v := os.Getenv(EnvConsolePort); v != "" {
		c.Console.Port = v
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		c.LogLevel = v
	}
	if v := os.Getenv(EnvWebPort); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return &ConfigError{Field: "Web.Port", Message: fmt.Sprintf("%s must be a number, got %q", EnvWebPort, v)}
		}
		c.Web.Port = port
	}
	if v := os.Getenv(EnvSimulate); v != "" {
		sim, err := strconv.ParseBool(v)
		if err != nil {
			return &ConfigError{Field: "Simulate", Message: fmt.Sprintf("%s must be a boolean, got %q", EnvSimulate, v)}
		}
		c.Simulate = sim
	}
	return nil
}

// Validate checks the configuration for values the rover cannot run with.
func (c *Config) Validate() error {
	if !c.Simulate {
		for _, s := range []struct {
			name string
			cfg  Serial
		}{{"Base", c.Base}, {"Bridge", c.Bridge}, {"Console", c.Console}} {
			if s.cfg.Port == "" {
				return &ConfigError{Field: s.name + ".Port", Message: s.name + " serial port is required"}
			}
			if s.cfg.Baud <= 0 {
				return &ConfigError{Field: s.name + ".Baud", Message: s.name + " baud rate must be positive"}
			}
		}
	}
	if c.Web.Enabled && (c.Web.Port <= 0 || c.Web.Port > 65535) {
		return &ConfigError{Field: "Web.Port", Message: fmt.Sprintf("web port %d out of range", c.Web.Port)}
	}
	if c.ManeuverTimeout < 0 || c.CycleDelay < 0 {
		return &ConfigError{Field: "ManeuverTimeout", Message: "durations must not be negative"}
	}
	if err := c.SurveyConfig().Validate(); err != nil {
		return &ConfigError{Field: "Survey", Message: err.Error()}
	}
	if c.Survey.Threshold <= 0 {
		return &ConfigError{Field: "Survey.Threshold", Message: "survey threshold must be positive"}
	}
	return nil
}

// SurveyConfig returns the survey engine configuration.
func (c *Config) SurveyConfig() survey.Config {
	sc := survey.DefaultConfig()
	sc.Threshold = c.Survey.Threshold
	sc.Step = c.Survey.Step
	sc.Settle = c.Survey.Settle
	sc.Capacity = c.Survey.Capacity
	return sc
}

// DriveConfig returns the maneuver configuration.
func (c *Config) DriveConfig() drive.Config {
	return drive.Config{Timeout: c.ManeuverTimeout}
}

// LoopConfig returns the control loop configuration.
func (c *Config) LoopConfig() rover.Config {
	return rover.Config{CycleDelay: c.CycleDelay}
}

// BaseConfig returns the drive base port settings.
func (c *Config) BaseConfig() oi.Config {
	return oi.Config{Port: c.Base.Port, Baud: c.Base.Baud, ReadTimeout: c.Base.ReadTimeout}
}

// BridgeConfig returns the peripheral bridge port settings.
func (c *Config) BridgeConfig() bridge.Config {
	return bridge.Config{Port: c.Bridge.Port, Baud: c.Bridge.Baud, ReadTimeout: c.Bridge.ReadTimeout}
}

// ConsoleConfig returns the console link port settings.
func (c *Config) ConsoleConfig() link.Config {
	return link.Config{Port: c.Console.Port, Baud: c.Console.Baud, ReadTimeout: c.Console.ReadTimeout}
}

// ConfigError represents a configuration validation error.
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return e.Message
}
