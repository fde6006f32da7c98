// Package config provides configuration loading for the perceptron tools.
// It supports loading from YAML files and environment variables.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/maemowong/perceptron/internal/logging"
	"github.com/maemowong/perceptron/proto/bench"
	"github.com/maemowong/perceptron/proto/perceptron"
	"gopkg.in/yaml.v3"
)

// Config contains all settings.
type Config struct {
	// Predictor is the hardware geometry.
	Predictor perceptron.Config `json:"predictor" yaml:"predictor"`

	// Bench describes the clocks and host interface used by replay and verify.
	Bench BenchConfig `json:"bench" yaml:"bench"`

	Logging LoggingConfig `json:"logging" yaml:"logging"`

	Store StoreConfig `json:"store" yaml:"store"`
}

// BenchConfig configures the two-clock testbench.
type BenchConfig struct {
	CorePeriodNS     int64 `json:"core_period_ns" yaml:"core_period_ns"`
	ExternalPeriodNS int64 `json:"external_period_ns" yaml:"external_period_ns"`
	ExternalPhaseNS  int64 `json:"external_phase_ns" yaml:"external_phase_ns"`

	// MemoryLatency is the weight store latency in core cycles.
	MemoryLatency int `json:"memory_latency" yaml:"memory_latency"`

	// Interface is "serial" or "strobe".
	Interface string `json:"interface" yaml:"interface"`

	// StrobeHold is the number of external cycles the strobe stays high.
	StrobeHold int `json:"strobe_hold" yaml:"strobe_hold"`

	// AddressMask truncates trace addresses before they reach the pins.
	AddressMask uint32 `json:"address_mask" yaml:"address_mask"`

	// MaxCycles bounds a run (0 = derived from the branch count).
	MaxCycles uint64 `json:"max_cycles,omitempty" yaml:"max_cycles,omitempty"`
}

// LoggingConfig configures operational logging.
type LoggingConfig struct {
	// Level is "warn", "info" (default), "debug" or "trace".
	// "trace" logs every FSM transition.
	Level string `json:"level" yaml:"level"`
}

// StoreConfig configures run persistence.
type StoreConfig struct {
	// Path is the SQLite database file. Empty disables persistence.
	Path string `json:"path" yaml:"path"`
}

// Default returns a Config with the default geometry and a 10:1 clock ratio.
func Default() *Config {
	return &Config{
		Predictor: perceptron.DefaultConfig(),
		Bench: BenchConfig{
			CorePeriodNS:     100,
			ExternalPeriodNS: 1000,
			ExternalPhaseNS:  0,
			MemoryLatency:    2,
			Interface:        string(bench.InterfaceSerial),
			StrobeHold:       1,
			AddressMask:      0xFF,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load loads configuration from path, or from ~/.perceptron/config.yaml when
// path is empty, then applies environment variables.
// Order: defaults -> file -> environment variables
func Load(path string) (*Config, error) {
	config := Default()

	if path == "" {
		if homeDir, err := os.UserHomeDir(); err == nil {
			candidate := filepath.Join(homeDir, ".perceptron", "config.yaml")
			if _, statErr := os.Stat(candidate); statErr == nil {
				path = candidate
			}
		}
	}

	if path != "" {
		fileConfig, err := LoadFromFile(path)
		if err != nil {
			return nil, fmt.Errorf("loading config file: %w", err)
		}
		config = fileConfig
	}

	applyEnvOverrides(config)

	return config, nil
}

// LoadFromFile loads configuration from a specific YAML file. Keys not present
// in the file keep their defaults.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	config := Default()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}
	return config, nil
}

// Validate checks that the configuration is valid.
func (c *Config) Validate() error {
	if err := c.Predictor.Validate(); err != nil {
		return fmt.Errorf("predictor: %w", err)
	}

	if err := c.Clocks().Validate(); err != nil {
		return fmt.Errorf("bench: %w", err)
	}
	if c.Bench.MemoryLatency < 1 {
		return fmt.Errorf("bench: memory_latency must be at least 1, got %d", c.Bench.MemoryLatency)
	}
	switch bench.Interface(c.Bench.Interface) {
	case bench.InterfaceSerial, bench.InterfaceStrobe:
	default:
		return fmt.Errorf("bench: invalid interface: %s (valid: serial, strobe)", c.Bench.Interface)
	}
	if c.Bench.StrobeHold < 1 {
		return fmt.Errorf("bench: strobe_hold must be at least 1, got %d", c.Bench.StrobeHold)
	}
	if c.Bench.AddressMask == 0 {
		return fmt.Errorf("bench: address_mask must be non-zero")
	}

	if !logging.ValidLevel(c.Logging.Level) {
		return fmt.Errorf("invalid log level: %s (valid: warn, info, debug, trace, or empty for default)", c.Logging.Level)
	}

	return nil
}

// Clocks converts the nanosecond settings into bench clocks.
func (c *Config) Clocks() bench.Clocks {
	return bench.Clocks{
		CorePeriod:     time.Duration(c.Bench.CorePeriodNS) * time.Nanosecond,
		ExternalPeriod: time.Duration(c.Bench.ExternalPeriodNS) * time.Nanosecond,
		ExternalPhase:  time.Duration(c.Bench.ExternalPhaseNS) * time.Nanosecond,
	}
}

// BenchOptions builds the options for a bench run.
func (c *Config) BenchOptions(logger *slog.Logger) bench.Options {
	return bench.Options{
		Config:        c.Predictor,
		Interface:     bench.Interface(c.Bench.Interface),
		Clocks:        c.Clocks(),
		MemoryLatency: c.Bench.MemoryLatency,
		StrobeHold:    c.Bench.StrobeHold,
		MaxCycles:     c.Bench.MaxCycles,
		Logger:        logger,
	}
}

// applyEnvOverrides applies environment variable overrides to the config.
// Unparseable numbers are ignored.
func applyEnvOverrides(config *Config) {
	if v := os.Getenv("PERCEPTRON_LOG_LEVEL"); v != "" {
		config.Logging.Level = v
	}

	if v := os.Getenv("PERCEPTRON_DB"); v != "" {
		config.Store.Path = v
	}

	if v := os.Getenv("PERCEPTRON_HISTORY_LENGTH"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			config.Predictor.HistoryLength = n
		}
	}
	if v := os.Getenv("PERCEPTRON_WEIGHT_BITS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			config.Predictor.WeightBits = n
		}
	}
	if v := os.Getenv("PERCEPTRON_TABLE_BYTES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			config.Predictor.TableBytes = n
		}
	}

	if v := os.Getenv("PERCEPTRON_INTERFACE"); v != "" {
		config.Bench.Interface = v
	}
}
