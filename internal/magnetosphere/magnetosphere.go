// Package magnetosphere models the planetary dipole, cosmic-ray shielding,
// UV exposure and solar storms, and the radiation damage they cause.
package magnetosphere

import (
	"log/slog"
	"math"

	"github.com/talgya/planetsim/internal/entropy"
	"github.com/talgya/planetsim/internal/world"
)

// Config holds the magnetosphere tunables. Rates are per simulated year.
type Config struct {
	Drift            float64 `yaml:"drift"`
	ReversalChance   float64 `yaml:"reversal_chance"`
	ReversalDuration float64 `yaml:"reversal_duration"` // years
	ReversalFloor    float64 `yaml:"reversal_floor"`    // field fraction at the bottom of a reversal
	SolarStormChance float64 `yaml:"solar_storm_chance"`
	SolarStormLength float64 `yaml:"solar_storm_length"` // years
	SolarStormFactor float64 `yaml:"solar_storm_factor"`
	CosmicRays       float64 `yaml:"cosmic_rays"`
	UV               float64 `yaml:"uv"`
	Background       float64 `yaml:"background"`
	HarmThreshold    float64 `yaml:"harm_threshold"`
	HarmRate         float64 `yaml:"harm_rate"`
	AuroraLatitude   float64 `yaml:"aurora_latitude"`
}

// DefaultConfig returns the standard magnetosphere tunables.
func DefaultConfig() Config {
	return Config{
		Drift:            0.02,
		ReversalChance:   0.0005,
		ReversalDuration: 300,
		ReversalFloor:    0.1,
		SolarStormChance: 0.08,
		SolarStormLength: 0.5,
		SolarStormFactor: 3,
		CosmicRays:       1.0,
		UV:               0.8,
		Background:       0.5,
		HarmThreshold:    2.0,
		HarmRate:         0.1,
		AuroraLatitude:   60,
	}
}

// State is the planet-wide magnetosphere state carried across checkpoints.
type State struct {
	Dipole      float64 `json:"dipole"`
	Reversing   bool    `json:"reversing"`
	ReversalAge float64 `json:"reversal_age"`
	Reversals   int     `json:"reversals"`
	SolarStorm  float64 `json:"solar_storm"` // years remaining
}

// Simulator is the magnetosphere simulator.
type Simulator struct {
	cfg Config
	rng *entropy.Stream
	st  State
}

// New creates a magnetosphere simulator with a present-day dipole.
func New(cfg Config, seed int64) *Simulator {
	return &Simulator{
		cfg: cfg,
		rng: entropy.NewStream(seed, entropy.OffsetMagnetosphere),
		st:  State{Dipole: 1},
	}
}

// State returns a copy of the planet-wide state.
func (s *Simulator) State() State { return s.st }

// SetState restores the planet-wide state.
func (s *Simulator) SetState(st State) { s.st = st }

// StartReversal begins a polarity reversal unless one is already underway.
func (s *Simulator) StartReversal(year float64) {
	if s.st.Reversing {
		return
	}
	s.st.Reversing = true
	s.st.ReversalAge = 0
	slog.Info("magnetic reversal began", "year", year, "dipole", s.st.Dipole)
}

// StartSolarStorm raises radiation for the configured storm length.
func (s *Simulator) StartSolarStorm() {
	s.st.SolarStorm = s.cfg.SolarStormLength
}

// Effective returns the dipole strength including any reversal collapse.
func (s *Simulator) Effective() float64 {
	if !s.st.Reversing {
		return s.st.Dipole
	}
	p := s.st.ReversalAge / s.cfg.ReversalDuration
	floor := s.cfg.ReversalFloor
	var f float64
	switch {
	case p < 1.0/3:
		f = world.Lerp(1, floor, p*3)
	case p < 2.0/3:
		f = floor
	default:
		f = world.Lerp(floor, 1, math.Min(1, (p-2.0/3)*3))
	}
	return s.st.Dipole * f
}

// Update runs one magnetosphere tick.
func (s *Simulator) Update(w *world.World, dt, year float64) {
	s.updateDipole(dt, year)
	eff := s.Effective()
	storm := s.st.SolarStorm > 0

	w.ForEachRow(func(y int) {
		lat := w.Latitude(y)
		for x := 0; x < w.Width; x++ {
			s.updateCell(w.Cell(y*w.Width+x), lat, eff, storm, dt)
		}
	})
}

func (s *Simulator) updateDipole(dt, year float64) {
	st := &s.st
	st.Dipole += s.rng.Normal(0, s.cfg.Drift)*math.Sqrt(dt) + (1-st.Dipole)*0.01*dt
	st.Dipole = world.Clamp(st.Dipole, 0.2, 1.5)

	if st.Reversing {
		st.ReversalAge += dt
		if st.ReversalAge >= s.cfg.ReversalDuration {
			st.Reversing = false
			st.ReversalAge = 0
			st.Reversals++
			slog.Info("magnetic reversal completed", "year", year, "reversals", st.Reversals)
		}
	} else if s.rng.Chance(s.cfg.ReversalChance * dt) {
		s.StartReversal(year)
	}

	if st.SolarStorm > 0 {
		st.SolarStorm = math.Max(0, st.SolarStorm-dt)
	} else if s.rng.Chance(s.cfg.SolarStormChance * dt) {
		st.SolarStorm = s.cfg.SolarStormLength
		slog.Debug("solar storm", "year", year)
	}
}

// FieldStrength is the dipole surface field at a latitude relative to the
// equator.
func FieldStrength(dipole, lat float64) float64 {
	sin := math.Sin(lat * math.Pi / 180)
	return dipole * math.Sqrt(1+3*sin*sin)
}

// Shielding is the fraction of cosmic rays deflected at a latitude. The
// geomagnetic cutoff falls as cos⁴ towards the poles.
func Shielding(dipole, lat float64) float64 {
	cos := math.Cos(lat * math.Pi / 180)
	return world.Clamp(dipole*(0.35+0.65*cos*cos*cos*cos), 0, 1)
}

func (s *Simulator) updateCell(c *world.Cell, lat, eff float64, storm bool, dt float64) {
	m := &c.Magnetic
	m.FieldStrength = FieldStrength(eff, lat)
	m.Shielding = Shielding(eff, lat)

	cosmic := s.cfg.CosmicRays * (1 - m.Shielding) * (1 + math.Max(0, c.Elevation()))
	if storm {
		cosmic *= 1 + (s.cfg.SolarStormFactor-1)*(0.3+0.7*world.PolarStrength(lat))
	}
	ozone := world.Clamp(c.Oxygen()/world.DefaultOxygen, 0, 1)
	uv := s.cfg.UV * (1 - 0.9*ozone) * world.SolarFactor(lat)
	if c.IsWater() {
		cosmic *= 0.2
		uv *= 0.3
	}
	m.Radiation = s.cfg.Background + cosmic + uv

	auroraLat := s.cfg.AuroraLatitude - 20*(1-world.Clamp(eff, 0, 1))
	m.Aurora = storm && math.Abs(lat) >= auroraLat

	if c.IsLand() && m.Radiation > s.cfg.HarmThreshold {
		loss := s.cfg.HarmRate * (m.Radiation - s.cfg.HarmThreshold) * dt
		c.SetBiomass(c.Biomass() * (1 - math.Min(1, loss)))
	}
}
