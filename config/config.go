package config

import (
	"fmt"
	"io"
	"os"
	"runtime"

	"github.com/shirou/gopsutil/v3/mem"
	"gopkg.in/yaml.v3"

	"github.com/INLOpen/regionpress/core"
	"github.com/INLOpen/regionpress/engine"
	"github.com/INLOpen/regionpress/nbt"
)

// PruningConfig holds chunk data pruning configurations.
type PruningConfig struct {
	Enabled bool     `yaml:"enabled"`
	Rules   []string `yaml:"rules"` // Dotted paths; empty means the built-in defaults.
}

// RecompressionConfig holds chunk recompression configurations.
type RecompressionConfig struct {
	Enabled bool   `yaml:"enabled"`
	Scheme  string `yaml:"scheme"` // e.g., "zstd", "zlib", "gzip"
	Level   int    `yaml:"level"`  // 0 means the codec's default.
}

// BatchConfig holds batch orchestration configurations.
type BatchConfig struct {
	Workers         int    `yaml:"workers"` // 0 means auto-size from the machine.
	QueueFactor     int    `yaml:"queue_factor"`
	SkipExisting    bool   `yaml:"skip_existing"`
	SlotErrorPolicy string `yaml:"slot_error_policy"` // "abort", "pass_through", or "drop"
}

// LoggingConfig holds logging-specific configurations.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // e.g., "debug", "info", "warn", "error"
	Output string `yaml:"output"` // e.g., "stdout", "file", "none"
	File   string `yaml:"file"`   // Path to the log file, used if output is "file"
}

// Config is the top-level configuration struct.
type Config struct {
	InputDir      string              `yaml:"input_dir"`
	OutputDir     string              `yaml:"output_dir"`
	Batch         BatchConfig         `yaml:"batch"`
	Pruning       PruningConfig       `yaml:"pruning"`
	Recompression RecompressionConfig `yaml:"recompression"`
	Logging       LoggingConfig       `yaml:"logging"`
}

// perWorkerBudget is the memory headroom assumed per worker when
// auto-sizing. A region file can decompress to a few hundred MiB in
// the worst case, so the budget stays generous.
const perWorkerBudget = 256 * 1024 * 1024

// AutoWorkers picks a worker count from the CPU count, capped so that
// the expected peak memory stays within what the machine has available.
func AutoWorkers() int {
	workers := runtime.NumCPU()
	if vm, err := mem.VirtualMemory(); err == nil {
		byMemory := int(vm.Available / perWorkerBudget)
		if byMemory < 1 {
			byMemory = 1
		}
		if byMemory < workers {
			workers = byMemory
		}
	}
	if workers < 1 {
		workers = 1
	}
	return workers
}

// Load reads configuration from an io.Reader.
// This is the core logic, separated for testability.
func Load(r io.Reader) (*Config, error) {
	// Set default values
	cfg := &Config{
		InputDir:  ".",
		OutputDir: "./out",
		Batch: BatchConfig{
			Workers:         0, // auto
			QueueFactor:     2,
			SkipExisting:    false,
			SlotErrorPolicy: "abort",
		},
		Pruning: PruningConfig{
			Enabled: true,
			Rules:   nil, // built-in defaults
		},
		Recompression: RecompressionConfig{
			Enabled: false,
			Scheme:  "zstd",
			Level:   0,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Output: "stdout",
			File:   "regionpress.log",
		},
	}

	// If the reader is nil, it's like an empty file, return defaults.
	if r == nil {
		return cfg, nil
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read config data: %w", err)
	}

	// If data is empty, return defaults.
	if len(data) == 0 {
		return cfg, nil
	}

	// Unmarshal YAML into the config struct, overwriting defaults
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config yaml: %w", err)
	}

	return cfg, nil
}

// LoadConfig reads configuration from a YAML file by path.
func LoadConfig(path string) (*Config, error) {
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			// If file doesn't exist, return default config by calling Load with a nil reader.
			return Load(nil)
		}
		return nil, fmt.Errorf("failed to open config file %s: %w", path, err)
	}
	defer file.Close()

	return Load(file)
}

// Transform builds the rewrite transform described by the config.
func (c *Config) Transform() (engine.Transform, error) {
	var t engine.Transform

	policy, err := engine.ParseSlotErrorPolicy(c.Batch.SlotErrorPolicy)
	if err != nil {
		return t, err
	}
	t.OnSlotError = policy

	if c.Pruning.Enabled {
		t.Prune = true
		if len(c.Pruning.Rules) == 0 {
			t.Rules = nbt.DefaultRules()
		} else {
			rules, err := nbt.ParseRules(c.Pruning.Rules)
			if err != nil {
				return t, fmt.Errorf("pruning rules: %w", err)
			}
			t.Rules = rules
		}
	}

	if c.Recompression.Enabled {
		scheme, ok := core.ParseCompressionType(c.Recompression.Scheme)
		if !ok {
			return t, fmt.Errorf("unknown recompression scheme %q", c.Recompression.Scheme)
		}
		t.Recompress = true
		t.Scheme = scheme
		t.Level = c.Recompression.Level
	}

	return t, nil
}

// Workers resolves the configured worker count, auto-sizing when zero.
func (c *Config) Workers() int {
	if c.Batch.Workers > 0 {
		return c.Batch.Workers
	}
	return AutoWorkers()
}

// Validate checks the parts of the config that Transform and Workers
// do not already cover.
func (c *Config) Validate() error {
	if c.InputDir == "" {
		return fmt.Errorf("input_dir must not be empty")
	}
	if c.OutputDir == "" {
		return fmt.Errorf("output_dir must not be empty")
	}
	if c.Batch.Workers < 0 {
		return fmt.Errorf("batch.workers must not be negative, got %d", c.Batch.Workers)
	}
	if c.Batch.QueueFactor < 1 {
		return fmt.Errorf("batch.queue_factor must be at least 1, got %d", c.Batch.QueueFactor)
	}
	if _, err := c.Transform(); err != nil {
		return err
	}
	return nil
}
