// Package config loads the optional viewtree.yaml file.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/mod/semver"
	"gopkg.in/yaml.v3"
)

// FileName is the name of the configuration file looked up by LoadOptional
// and Find.
const FileName = "viewtree.yaml"

// SupportedMajor is the configuration format major version this build reads.
const SupportedMajor = "v1"

// Config represents viewtree.yaml.
type Config struct {
	Version   string          `yaml:"version,omitempty"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
	Layout    LayoutConfig    `yaml:"layout"`
	Debug     DebugConfig     `yaml:"debug"`
	Trace     TraceConfig     `yaml:"trace"`
}

// SchedulerConfig contains frame budget settings of the mutation queue.
type SchedulerConfig struct {
	FrameIntervalMS      int `yaml:"frame_interval_ms,omitempty"`
	MinTimeLeftInFrameMS int `yaml:"min_time_left_in_frame_ms,omitempty"`
}

// LayoutConfig contains layout settings.
type LayoutConfig struct {
	PoolSize int `yaml:"pool_size,omitempty"`
}

// DebugConfig contains diagnostics settings.
type DebugConfig struct {
	// Assertions makes internal invariant failures panic.
	Assertions bool `yaml:"assertions"`
	// ServerPort starts the debug HTTP server when non-zero.
	ServerPort int  `yaml:"server_port,omitempty"`
	Verbose    bool `yaml:"verbose"`
}

// TraceConfig contains frame trace settings.
type TraceConfig struct {
	Samples     int     `yaml:"samples,omitempty"`
	ThresholdMS float64 `yaml:"threshold_ms,omitempty"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	return &Config{
		Version: "v1.0.0",
		Scheduler: SchedulerConfig{
			FrameIntervalMS:      16,
			MinTimeLeftInFrameMS: 8,
		},
		Layout: LayoutConfig{PoolSize: 256},
		Trace: TraceConfig{
			Samples:     240,
			ThresholdMS: 16.667,
		},
	}
}

// LoadOptional reads viewtree.yaml from dir if present and returns the
// defaults otherwise.
func LoadOptional(dir string) (*Config, error) {
	cfg, err := Load(filepath.Join(dir, FileName))
	if errors.Is(err, os.ErrNotExist) {
		return Default(), nil
	}
	return cfg, err
}

// Load reads the configuration at path. Fields missing from the file keep
// their defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to read %s: %w", filepath.Base(path), err)
	}
	return Parse(data)
}

// Parse decodes and validates a configuration document.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", FileName, err)
	}
	cfg.Version = strings.TrimSpace(cfg.Version)
	if cfg.Version == "" {
		cfg.Version = Default().Version
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Find walks up from dir to the nearest directory holding viewtree.yaml.
func Find(dir string) (string, error) {
	for {
		path := filepath.Join(dir, FileName)
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fmt.Errorf("no %s found", FileName)
		}
		dir = parent
	}
}

// Validate checks the version and the numeric ranges.
func (c *Config) Validate() error {
	if !semver.IsValid(c.Version) {
		return fmt.Errorf("version must be a semantic version like v1.0.0 (got %q)", c.Version)
	}
	if major := semver.Major(c.Version); major != SupportedMajor {
		return fmt.Errorf("unsupported config version %s (this build reads %s.x)", c.Version, SupportedMajor)
	}
	s := c.Scheduler
	if s.FrameIntervalMS <= 0 {
		return fmt.Errorf("scheduler.frame_interval_ms must be positive (got %d)", s.FrameIntervalMS)
	}
	if s.MinTimeLeftInFrameMS < 0 || s.MinTimeLeftInFrameMS > s.FrameIntervalMS {
		return fmt.Errorf("scheduler.min_time_left_in_frame_ms must be between 0 and %d (got %d)",
			s.FrameIntervalMS, s.MinTimeLeftInFrameMS)
	}
	if c.Layout.PoolSize < 0 {
		return fmt.Errorf("layout.pool_size cannot be negative (got %d)", c.Layout.PoolSize)
	}
	if p := c.Debug.ServerPort; p < 0 || p > 65535 {
		return fmt.Errorf("debug.server_port out of range (got %d)", p)
	}
	if c.Trace.Samples < 0 {
		return fmt.Errorf("trace.samples cannot be negative (got %d)", c.Trace.Samples)
	}
	if c.Trace.ThresholdMS < 0 {
		return fmt.Errorf("trace.threshold_ms cannot be negative (got %g)", c.Trace.ThresholdMS)
	}
	return nil
}

// FrameInterval returns the frame length.
func (c *Config) FrameInterval() time.Duration {
	return time.Duration(c.Scheduler.FrameIntervalMS) * time.Millisecond
}

// MinTimeLeftInFrame returns the time that must remain in a frame for more
// view creation to run.
func (c *Config) MinTimeLeftInFrame() time.Duration {
	return time.Duration(c.Scheduler.MinTimeLeftInFrameMS) * time.Millisecond
}

// TraceThreshold returns the frame duration above which a frame counts as
// dropped.
func (c *Config) TraceThreshold() time.Duration {
	return time.Duration(c.Trace.ThresholdMS * float64(time.Millisecond))
}
