// Package config loads the planetsim YAML configuration file.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"gopkg.in/yaml.v2"

	"github.com/talgya/planetsim/internal/engine"
	"github.com/talgya/planetsim/internal/world"
)

// ErrInvalid is returned (wrapped) by Validate.
var ErrInvalid = errors.New("invalid configuration")

// Config is the whole configuration file.
type Config struct {
	World      world.GenOptions `yaml:"world"`
	Simulation engine.Config    `yaml:"simulation"`
	Run        RunConfig        `yaml:"run"`
}

// RunConfig controls how the command drives the simulation.
type RunConfig struct {
	// Ticks is the number of ticks to run; 0 runs until interrupted.
	Ticks uint64 `yaml:"ticks"`
	// DeltaTime is simulated years per tick.
	DeltaTime  float64 `yaml:"delta_time"`
	IntervalMS int     `yaml:"interval_ms"`
	// Workers bounds parallel row updates; 0 means one per CPU core.
	Workers         int    `yaml:"workers"`
	ReportEvery     uint64 `yaml:"report_every"`
	CheckpointEvery uint64 `yaml:"checkpoint_every"`
	// DBPath is the SQLite file; empty disables checkpoints.
	DBPath string `yaml:"db_path"`
	// APIPort is the HTTP port; 0 disables the API.
	APIPort     int      `yaml:"api_port"`
	CORSOrigins []string `yaml:"cors_origins"`
	LogLevel    string   `yaml:"log_level"`
}

// Interval returns the wall-clock tick interval.
func (r RunConfig) Interval() time.Duration {
	return time.Duration(r.IntervalMS) * time.Millisecond
}

// SlogLevel maps LogLevel to a slog level. Unknown names map to Info.
func (r RunConfig) SlogLevel() slog.Level {
	switch r.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Default returns the Earth preset with standard tunables.
func Default() *Config {
	return &Config{
		World:      world.EarthPreset(),
		Simulation: engine.DefaultConfig(),
		Run: RunConfig{
			DeltaTime:       1,
			ReportEvery:     100,
			CheckpointEvery: 1000,
			DBPath:          "planetsim.db",
			LogLevel:        "info",
		},
	}
}

// Load reads a YAML file over the defaults. Keys missing from the file keep
// their default; unknown keys are an error.
func Load(path string) (*Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.UnmarshalStrict(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Encode renders cfg as YAML.
func Encode(cfg *Config) ([]byte, error) {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return nil, fmt.Errorf("encode config: %w", err)
	}
	return data, nil
}

// Save writes cfg as YAML.
func Save(cfg *Config, path string) error {
	data, err := Encode(cfg)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// Validate checks the run section and the world options.
func (c *Config) Validate() error {
	if err := c.World.Validate(); err != nil {
		return fmt.Errorf("world: %w", err)
	}
	r := c.Run
	switch {
	case !(r.DeltaTime > 0 && r.DeltaTime <= 100):
		return fmt.Errorf("%w: delta_time %v outside (0,100]", ErrInvalid, r.DeltaTime)
	case r.IntervalMS < 0:
		return fmt.Errorf("%w: interval_ms %d is negative", ErrInvalid, r.IntervalMS)
	case r.Workers < 0:
		return fmt.Errorf("%w: workers %d is negative", ErrInvalid, r.Workers)
	case r.APIPort < 0 || r.APIPort > 65535:
		return fmt.Errorf("%w: api_port %d", ErrInvalid, r.APIPort)
	case c.Simulation.MaxEvents < 0:
		return fmt.Errorf("%w: max_events %d is negative", ErrInvalid, c.Simulation.MaxEvents)
	}
	switch r.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("%w: log_level %q", ErrInvalid, r.LogLevel)
	}
	return nil
}
