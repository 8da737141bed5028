// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strings"
	"time"

	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"
)

// EnvVar names the environment variable holding the config path.
const EnvVar = "SNS_CONFIG"

// Environment represents the deployment environment.
type Environment string

const (
	// Development is for bench setups and simulation.
	Development Environment = "development"
	// Production is for a physical robot.
	Production Environment = "production"
)

// Config is the configuration for sns tools.
type Config struct {
	Environment Environment `yaml:"environment" json:"environment"`

	Producer ProducerConfig `yaml:"producer" json:"producer"`
	Arena    ArenaConfig    `yaml:"arena" json:"arena"`
	Channels ChannelsConfig `yaml:"channels" json:"channels"`
	Plugins  PluginsConfig  `yaml:"plugins" json:"plugins"`
	Logging  LoggingConfig  `yaml:"logging" json:"logging"`
	Watchdog WatchdogConfig `yaml:"watchdog" json:"watchdog"`

	// Per-environment overrides, applied after the base config.
	Development *Overrides `yaml:"development,omitempty" json:"development,omitempty"`
	Production  *Overrides `yaml:"production,omitempty" json:"production,omitempty"`
}

// Overrides contains the sections an environment may override.
type Overrides struct {
	Arena    *ArenaConfig    `yaml:"arena,omitempty" json:"arena,omitempty"`
	Channels *ChannelsConfig `yaml:"channels,omitempty" json:"channels,omitempty"`
	Logging  *LoggingConfig  `yaml:"logging,omitempty" json:"logging,omitempty"`
}

// ProducerConfig configures message header stamping.
type ProducerConfig struct {
	// Ident is the sender identity stamped into headers. Default: the
	// tool name.
	Ident string `yaml:"ident" json:"ident"`

	// Validity is the default validity window. Default: 1s.
	Validity Duration `yaml:"validity" json:"validity"`
}

// ArenaConfig configures the per-goroutine allocation regions.
type ArenaConfig struct {
	// Size is the bytes per region. Default: 1 MiB.
	Size int `yaml:"size" json:"size"`

	// Lock pins regions in RAM with mlock so the control path never
	// page-faults. Default: false (development), true (production).
	Lock bool `yaml:"lock" json:"lock"`
}

// ChannelsConfig configures ring files.
type ChannelsConfig struct {
	// Dir holds ring files. Default: /dev/shm.
	Dir string `yaml:"dir" json:"dir"`

	// Slots and SlotSize size newly created rings.
	Slots    int `yaml:"slots" json:"slots"`
	SlotSize int `yaml:"slot_size" json:"slot_size"`

	// PollInterval is how often waiting readers re-check a ring for
	// frames from other processes. Default: 1ms.
	PollInterval Duration `yaml:"poll_interval" json:"poll_interval"`
}

// PluginsConfig configures runtime-loaded message type support.
type PluginsConfig struct {
	// Dir is searched for <prefix><type><suffix>. Empty disables
	// plugin loading.
	Dir    string `yaml:"dir" json:"dir"`
	Prefix string `yaml:"prefix" json:"prefix"`
	Suffix string `yaml:"suffix" json:"suffix"`
}

// LoggingConfig configures the process logger.
type LoggingConfig struct {
	// Level is debug, info, warn or error. Default: info.
	Level string `yaml:"level" json:"level"`

	// Format is auto, text or json. Auto picks text for terminals.
	Format string `yaml:"format" json:"format"`
}

// WatchdogConfig configures sns-watchdog.
type WatchdogConfig struct {
	// Frequency is the loop rate in Hz. The period between checks is
	// 1/Frequency. Default: 100.
	Frequency float64 `yaml:"frequency" json:"frequency"`

	// HaltValidity is the validity stamped on halt commands.
	// Default: 1s.
	HaltValidity Duration `yaml:"halt_validity" json:"halt_validity"`

	// StepScale multiplies the period to give the look-ahead horizon
	// of the position prediction. Default: 2.
	StepScale float64 `yaml:"step_scale" json:"step_scale"`

	// Limits bounds each joint, in joint order. Joints without an
	// entry are unbounded.
	Limits []JointLimit `yaml:"limits" json:"limits"`
}

// JointLimit bounds one joint. A zero MaxVelocity means no velocity
// bound.
type JointLimit struct {
	Name        string  `yaml:"name" json:"name"`
	Min         float64 `yaml:"min" json:"min"`
	Max         float64 `yaml:"max" json:"max"`
	MaxVelocity float64 `yaml:"max_velocity" json:"max_velocity"`
}

// Period returns the watchdog loop period.
func (w WatchdogConfig) Period() time.Duration {
	return time.Duration(float64(time.Second) / w.Frequency)
}

// Default returns the configuration used when no file is given, and
// the base that a file is merged into.
func Default() *Config {
	return &Config{
		Environment: Development,
		Producer: ProducerConfig{
			Validity: Duration(time.Second),
		},
		Arena: ArenaConfig{
			Size: 1 << 20,
		},
		Channels: ChannelsConfig{
			Dir:          "/dev/shm",
			Slots:        16,
			SlotSize:     4096,
			PollInterval: Duration(time.Millisecond),
		},
		Plugins: PluginsConfig{
			Prefix: "libsns_msg_",
			Suffix: ".so",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "auto",
		},
		Watchdog: WatchdogConfig{
			Frequency:    100,
			HaltValidity: Duration(time.Second),
			StepScale:    2,
		},
	}
}

// Resolve loads the file named by flagPath, or by SNS_CONFIG when
// flagPath is empty. With neither set it returns Default().
func Resolve(flagPath string) (*Config, error) {
	path := flagPath
	if path == "" {
		path = os.Getenv(EnvVar)
	}
	if path == "" {
		cfg := Default()
		cfg.applyEnvironmentOverrides()
		cfg.expandVariables()
		return cfg, nil
	}
	return LoadFile(path)
}

// Load loads configuration from the SNS_CONFIG environment variable.
// It fails when the variable is unset.
func Load() (*Config, error) {
	path := os.Getenv(EnvVar)
	if path == "" {
		return nil, fmt.Errorf("%s environment variable not set; "+
			"set it to the path of your sns config file, or use --config", EnvVar)
	}
	return LoadFile(path)
}

// LoadFile loads configuration from path, on top of Default().
func LoadFile(path string) (*Config, error) {
	cfg := Default()
	if err := cfg.loadFile(path); err != nil {
		return nil, err
	}
	cfg.applyEnvironmentOverrides()
	cfg.expandVariables()
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading config: %w", err)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json", ".jsonc":
		if err := json.Unmarshal(jsonc.ToJSON(data), c); err != nil {
			return fmt.Errorf("parsing config %s: %w", path, err)
		}
	default:
		if err := yaml.Unmarshal(data, c); err != nil {
			return fmt.Errorf("parsing config %s: %w", path, err)
		}
	}
	return nil
}

func (c *Config) applyEnvironmentOverrides() {
	var overrides *Overrides
	switch c.Environment {
	case Development:
		overrides = c.Development
	case Production:
		overrides = c.Production
		if overrides == nil {
			overrides = &Overrides{
				Arena:   &ArenaConfig{Lock: true},
				Logging: &LoggingConfig{Level: "info"},
			}
		}
	}
	if overrides == nil {
		return
	}

	if overrides.Arena != nil {
		if overrides.Arena.Size != 0 {
			c.Arena.Size = overrides.Arena.Size
		}
		// Lock is a bool, so an override section always sets it.
		c.Arena.Lock = overrides.Arena.Lock
	}
	if overrides.Channels != nil {
		if overrides.Channels.Dir != "" {
			c.Channels.Dir = overrides.Channels.Dir
		}
		if overrides.Channels.Slots != 0 {
			c.Channels.Slots = overrides.Channels.Slots
		}
		if overrides.Channels.SlotSize != 0 {
			c.Channels.SlotSize = overrides.Channels.SlotSize
		}
		if overrides.Channels.PollInterval != 0 {
			c.Channels.PollInterval = overrides.Channels.PollInterval
		}
	}
	if overrides.Logging != nil {
		if overrides.Logging.Level != "" {
			c.Logging.Level = overrides.Logging.Level
		}
		if overrides.Logging.Format != "" {
			c.Logging.Format = overrides.Logging.Format
		}
	}
}

func (c *Config) expandVariables() {
	vars := map[string]string{
		"HOME": os.Getenv("HOME"),
	}
	c.Channels.Dir = expandVars(c.Channels.Dir, vars)
	c.Plugins.Dir = expandVars(c.Plugins.Dir, vars)
}

// varPattern matches ${VAR} and ${VAR:-default}.
var varPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

func expandVars(s string, vars map[string]string) string {
	return varPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := varPattern.FindStringSubmatch(match)
		name, defaultValue := parts[1], parts[2]
		if value, ok := vars[name]; ok && value != "" {
			return value
		}
		if value := os.Getenv(name); value != "" {
			return value
		}
		return defaultValue
	})
}

var (
	logLevels  = []string{"debug", "info", "warn", "error"}
	logFormats = []string{"auto", "text", "json"}
)

// Validate checks the configuration, reporting every problem.
func (c *Config) Validate() error {
	var errs []error

	if c.Environment != Development && c.Environment != Production {
		errs = append(errs, fmt.Errorf("invalid environment: %q", c.Environment))
	}
	if c.Producer.Validity <= 0 {
		errs = append(errs, fmt.Errorf("producer.validity must be positive, got %s", c.Producer.Validity))
	}
	if c.Arena.Size < 4096 {
		errs = append(errs, fmt.Errorf("arena.size must be at least 4096 bytes, got %d", c.Arena.Size))
	}
	if c.Channels.Dir == "" {
		errs = append(errs, errors.New("channels.dir is required"))
	}
	if c.Channels.Slots < 1 {
		errs = append(errs, fmt.Errorf("channels.slots must be positive, got %d", c.Channels.Slots))
	}
	if c.Channels.SlotSize < 128 {
		errs = append(errs, fmt.Errorf("channels.slot_size must be at least 128 bytes, got %d", c.Channels.SlotSize))
	}
	if c.Channels.PollInterval <= 0 {
		errs = append(errs, fmt.Errorf("channels.poll_interval must be positive, got %s", c.Channels.PollInterval))
	}
	if c.Plugins.Dir != "" && c.Plugins.Suffix == "" {
		errs = append(errs, errors.New("plugins.suffix is required when plugins.dir is set"))
	}
	if !slices.Contains(logLevels, c.Logging.Level) {
		errs = append(errs, fmt.Errorf("logging.level must be one of: %v", logLevels))
	}
	if !slices.Contains(logFormats, c.Logging.Format) {
		errs = append(errs, fmt.Errorf("logging.format must be one of: %v", logFormats))
	}
	if !(c.Watchdog.Frequency > 0) || math.IsInf(c.Watchdog.Frequency, 0) {
		errs = append(errs, fmt.Errorf("watchdog.frequency must be positive, got %v", c.Watchdog.Frequency))
	}
	if c.Watchdog.HaltValidity <= 0 {
		errs = append(errs, fmt.Errorf("watchdog.halt_validity must be positive, got %s", c.Watchdog.HaltValidity))
	}
	if c.Watchdog.StepScale < 0 {
		errs = append(errs, fmt.Errorf("watchdog.step_scale must not be negative, got %v", c.Watchdog.StepScale))
	}
	for i, limit := range c.Watchdog.Limits {
		if limit.Min > limit.Max {
			errs = append(errs, fmt.Errorf("watchdog.limits[%d] (%s): min %v exceeds max %v", i, limit.Name, limit.Min, limit.Max))
		}
		if limit.MaxVelocity < 0 {
			errs = append(errs, fmt.Errorf("watchdog.limits[%d] (%s): max_velocity must not be negative", i, limit.Name))
		}
	}

	return errors.Join(errs...)
}
