package config

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func writeFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "planetsim.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestDefaultIsValid(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Fatalf("default config should validate: %v", err)
	}
}

func TestLoadKeepsDefaults(t *testing.T) {
	path := writeFile(t, `
world:
  width: 64
  height: 32
simulation:
  climate:
    neighbor_weight: 0.2
run:
  delta_time: 0.5
  log_level: debug
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	def := Default()
	if cfg.World.Width != 64 || cfg.World.Height != 32 {
		t.Fatalf("grid size not read: %dx%d", cfg.World.Width, cfg.World.Height)
	}
	if cfg.World.Octaves != def.World.Octaves {
		t.Fatal("unset world keys should keep their defaults")
	}
	if cfg.Simulation.Climate.NeighborWeight != 0.2 {
		t.Fatalf("climate override lost: %v", cfg.Simulation.Climate.NeighborWeight)
	}
	if cfg.Simulation.Climate.SolarGain != def.Simulation.Climate.SolarGain {
		t.Fatal("unset climate keys should keep their defaults")
	}
	if cfg.Run.DeltaTime != 0.5 || cfg.Run.ReportEvery != def.Run.ReportEvery {
		t.Fatalf("run section wrong: %+v", cfg.Run)
	}
	if cfg.Run.SlogLevel().String() != "DEBUG" {
		t.Fatalf("want debug level, got %v", cfg.Run.SlogLevel())
	}
}

func TestLoadRejectsUnknownKeys(t *testing.T) {
	path := writeFile(t, "run:\n  tickz: 5\n")
	if _, err := Load(path); err == nil {
		t.Fatal("misspelled key should be rejected")
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatal("missing file should be an error")
	}
}

func TestValidateRun(t *testing.T) {
	cases := map[string]func(c *Config){
		"zero dt":       func(c *Config) { c.Run.DeltaTime = 0 },
		"huge dt":       func(c *Config) { c.Run.DeltaTime = 1000 },
		"workers":       func(c *Config) { c.Run.Workers = -1 },
		"port":          func(c *Config) { c.Run.APIPort = 70000 },
		"log level":     func(c *Config) { c.Run.LogLevel = "loud" },
		"negative tick": func(c *Config) { c.Run.IntervalMS = -5 },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := Default()
			mutate(cfg)
			if err := cfg.Validate(); !errors.Is(err, ErrInvalid) {
				t.Fatalf("want ErrInvalid, got %v", err)
			}
		})
	}
}

func TestValidateWorld(t *testing.T) {
	cfg := Default()
	cfg.World.Width = 0
	if err := cfg.Validate(); err == nil {
		t.Fatal("zero-width world should be rejected")
	}
}

func TestSaveLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.yaml")
	cfg := Default()
	cfg.World.Seed = 99
	cfg.Run.APIPort = 8080
	cfg.Run.CORSOrigins = []string{"https://planet.example"}
	if err := Save(cfg, path); err != nil {
		t.Fatal(err)
	}
	got, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(got.World, cfg.World) || !reflect.DeepEqual(got.Run, cfg.Run) || got.Simulation.MaxEvents != cfg.Simulation.MaxEvents {
		t.Fatal("saved config should load back unchanged")
	}
}
