// Package weather derives seasons, pressure cells, winds and clouds from the
// climate state, and runs the storm lifecycle.
package weather

import (
	"log/slog"
	"math"

	"github.com/google/uuid"

	"github.com/talgya/planetsim/internal/entropy"
	"github.com/talgya/planetsim/internal/world"
)

// Season of the year for one hemisphere.
type Season uint8

const (
	SeasonSpring Season = iota
	SeasonSummer
	SeasonAutumn
	SeasonWinter
)

// SeasonName returns a human-readable season name.
func SeasonName(s Season) string {
	switch s {
	case SeasonSpring:
		return "Spring"
	case SeasonSummer:
		return "Summer"
	case SeasonAutumn:
		return "Autumn"
	case SeasonWinter:
		return "Winter"
	default:
		return "Unknown"
	}
}

func (s Season) String() string { return SeasonName(s) }

// Describe returns a short flavour line for reports.
func (s Season) Describe() string {
	switch s {
	case SeasonSpring:
		return "thaw and greening"
	case SeasonSummer:
		return "peak insolation"
	case SeasonAutumn:
		return "cooling and harvest"
	case SeasonWinter:
		return "freeze and dormancy"
	default:
		return "steady conditions"
	}
}

// SeasonAt returns the season at a latitude for a fractional year. The
// southern hemisphere runs two seasons out of phase.
func SeasonAt(year, lat float64) Season {
	frac := year - math.Floor(year)
	s := Season(int(frac*4) % 4)
	if lat < 0 {
		s = (s + 2) % 4
	}
	return s
}

// Config holds the weather tunables.
type Config struct {
	SeasonalAmplitude float64 `yaml:"seasonal_amplitude"` // °C at the poles
	PressureRelax     float64 `yaml:"pressure_relax"`
	CloudRelax        float64 `yaml:"cloud_relax"`
	GradientWind      float64 `yaml:"gradient_wind"`
	SpawnAttempts     int     `yaml:"spawn_attempts"` // candidate cells sampled per tick
	SpawnChance       float64 `yaml:"spawn_chance"`
	MaxStorms         int     `yaml:"max_storms"`
	StormDecay        float64 `yaml:"storm_decay"` // intensity multiplier per year
	WarmWaterGrowth   float64 `yaml:"warm_water_growth"`
	MinIntensity      float64 `yaml:"min_intensity"`
	MaxAge            float64 `yaml:"max_age"` // years
	StormRain         float64 `yaml:"storm_rain"`
	StormDamage       float64 `yaml:"storm_damage"`
}

// DefaultConfig returns the standard weather tunables.
func DefaultConfig() Config {
	return Config{
		SeasonalAmplitude: 12,
		PressureRelax:     0.5,
		CloudRelax:        0.5,
		GradientWind:      0.15,
		SpawnAttempts:     8,
		SpawnChance:       0.15,
		MaxStorms:         24,
		StormDecay:        0.7,
		WarmWaterGrowth:   1.15,
		MinIntensity:      0.05,
		MaxAge:            4,
		StormRain:         0.15,
		StormDamage:       0.08,
	}
}

// Simulator is the weather simulator.
type Simulator struct {
	cfg    Config
	rng    *entropy.Stream
	storms []*Storm
	next   []float64
}

// New creates a weather simulator with its private stream.
func New(cfg Config, seed int64) *Simulator {
	return &Simulator{
		cfg: cfg,
		rng: entropy.NewStream(seed, entropy.OffsetWeather),
	}
}

// Update runs one weather tick.
func (s *Simulator) Update(w *world.World, dt, year float64) {
	if len(s.next) != w.Len() {
		s.next = make([]float64, w.Len())
	}
	s.updateSeasons(w, year)
	s.updatePressure(w, dt)
	s.updateWind(w)
	s.updateClouds(w, dt)
	s.updateStorms(w, dt, year)
}

// SeasonalAnomaly is the seasonal temperature offset at a latitude: zero on the
// equator, largest at the poles, opposite sign across hemispheres.
func (s *Simulator) SeasonalAnomaly(year, lat float64) float64 {
	frac := year - math.Floor(year)
	phase := math.Sin(2 * math.Pi * (frac - 0.125))
	return s.cfg.SeasonalAmplitude * phase * lat / 90
}

func (s *Simulator) updateSeasons(w *world.World, year float64) {
	for y := 0; y < w.Height; y++ {
		a := s.SeasonalAnomaly(year, w.Latitude(y))
		for x := 0; x < w.Width; x++ {
			c := w.Get(x, y)
			if c.IsWater() {
				// Oceans damp the seasonal swing.
				c.Weather.SeasonalAnomaly = a * 0.5
			} else {
				c.Weather.SeasonalAnomaly = a
			}
		}
	}
}

// PressureTarget returns the equilibrium surface pressure in hPa: subtropical
// and polar highs, equatorial and subpolar lows, lowered where the cell runs
// warmer than its latitude.
func PressureTarget(lat, temp float64) float64 {
	a := math.Abs(lat)
	gauss := func(center, width float64) float64 {
		d := (a - center) / width
		return math.Exp(-d * d)
	}
	p := 1013.0
	p += 12 * gauss(30, 10)
	p += 8 * world.PolarStrength(lat)
	p -= 10 * gauss(0, 10)
	p -= 8 * gauss(60, 10)
	p -= 0.8 * (temp - world.BaseTemperature(lat))
	return world.Clamp(p, 900, 1100)
}

func (s *Simulator) updatePressure(w *world.World, dt float64) {
	relax := math.Min(1, s.cfg.PressureRelax*dt)
	w.ForEachRow(func(y int) {
		lat := w.Latitude(y)
		for x := 0; x < w.Width; x++ {
			c := w.Cell(y*w.Width + x)
			target := PressureTarget(lat, c.Temperature())
			c.Weather.Pressure += (target - c.Weather.Pressure) * relax
		}
	})
}

// PrevailingWind returns the zonal wind component of the three-cell
// circulation: trade easterlies, mid-latitude westerlies, polar easterlies.
func PrevailingWind(lat float64) float64 {
	a := math.Abs(lat)
	switch {
	case a < 30:
		return -1
	case a < 60:
		return 1
	default:
		return -0.5
	}
}

func (s *Simulator) updateWind(w *world.World) {
	k := s.cfg.GradientWind
	w.ForEachRow(func(y int) {
		lat := w.Latitude(y)
		for x := 0; x < w.Width; x++ {
			c := w.Cell(y*w.Width + x)
			east := w.Get(x+1, y).Weather.Pressure
			west := w.Get(x-1, y).Weather.Pressure
			north := w.Get(x, y-1).Weather.Pressure
			south := w.Get(x, y+1).Weather.Pressure
			// Air flows down the pressure gradient. +Y points south.
			c.Weather.WindX = PrevailingWind(lat) - k*(east-west)/2
			c.Weather.WindY = -k * (south - north) / 2
		}
	})
}

func (s *Simulator) updateClouds(w *world.World, dt float64) {
	relax := math.Min(1, s.cfg.CloudRelax*dt)
	w.ForEachRow(func(y int) {
		for x := 0; x < w.Width; x++ {
			c := w.Cell(y*w.Width + x)
			target := 0.7*c.Humidity() + world.Clamp((1013-c.Weather.Pressure)/40, 0, 0.3)
			target = world.Clamp(target, 0, 1)
			cc := c.Weather.CloudCover + (target-c.Weather.CloudCover)*relax
			c.Weather.CloudCover = world.Clamp(cc, 0, 1)
		}
	})
}

// Storms returns a copy of the active storms.
func (s *Simulator) Storms() []Storm {
	out := make([]Storm, len(s.storms))
	for i, st := range s.storms {
		out[i] = *st
	}
	return out
}

// SetStorms replaces the active storms, used on restore and by tests.
func (s *Simulator) SetStorms(storms []Storm) {
	s.storms = s.storms[:0]
	for i := range storms {
		st := storms[i]
		if st.ID == uuid.Nil {
			st.ID = s.rng.ID()
		}
		s.storms = append(s.storms, &st)
	}
}

func (s *Simulator) updateStorms(w *world.World, dt, year float64) {
	for i := 0; i < w.Len(); i++ {
		w.Cell(i).Weather.Storm = false
	}

	n := 0
	for _, st := range s.storms {
		if s.advance(w, st, dt) {
			s.storms[n] = st
			n++
			continue
		}
		slog.Debug("storm dissipated", "id", st.ID, "kind", st.Kind.String(), "age", st.Age)
	}
	clear(s.storms[n:])
	s.storms = s.storms[:n]

	s.spawn(w, dt, year)

	for _, st := range s.storms {
		s.apply(w, st, dt)
	}
}

// advance moves, ages and decays one storm; returns false when it dissipates.
func (s *Simulator) advance(w *world.World, st *Storm, dt float64) bool {
	c := st.Cell(w)
	st.VX = 0.7*st.VX + 0.3*c.Weather.WindX
	st.VY = 0.7*st.VY + 0.3*c.Weather.WindY
	st.X = math.Mod(st.X+st.VX*dt, float64(w.Width))
	if st.X < 0 {
		st.X += float64(w.Width)
	}
	st.Y = world.Clamp(st.Y+st.VY*dt, 0, float64(w.Height-1))
	st.Age += dt

	c = st.Cell(w)
	if st.Kind == StormTropicalCyclone && c.IsWater() && c.Temperature() > 26 {
		st.Intensity = math.Min(1, st.Intensity*s.cfg.WarmWaterGrowth)
	} else {
		st.Intensity *= math.Pow(s.cfg.StormDecay, dt)
	}
	return st.Intensity >= s.cfg.MinIntensity && st.Age <= s.cfg.MaxAge
}

// apply flags cells under the storm, adds rain and damages biomass, falling off
// with distance from the eye.
func (s *Simulator) apply(w *world.World, st *Storm, dt float64) {
	cx, cy := int(math.Floor(st.X)), int(math.Floor(st.Y))
	r := int(math.Ceil(st.Radius))
	for dy := -r; dy <= r; dy++ {
		y := cy + dy
		if y < 0 || y >= w.Height {
			continue
		}
		for dx := -r; dx <= r; dx++ {
			d := math.Hypot(float64(dx), float64(dy))
			if d > st.Radius {
				continue
			}
			falloff := 1 - d/(st.Radius+1)
			c := w.Get(cx+dx, y)
			c.Weather.Storm = true
			c.SetRainfall(c.Rainfall() + s.cfg.StormRain*st.Intensity*falloff*math.Min(1, dt))
			if c.IsLand() {
				c.SetBiomass(c.Biomass() * (1 - s.cfg.StormDamage*st.Intensity*falloff))
			}
		}
	}
}

// spawn samples candidate cells and starts storms where conditions fit a kind.
func (s *Simulator) spawn(w *world.World, dt, year float64) {
	for k := 0; k < s.cfg.SpawnAttempts; k++ {
		if len(s.storms) >= s.cfg.MaxStorms {
			return
		}
		i := s.rng.Intn(w.Len())
		c := w.Cell(i)
		kind, ok := StormKindFor(c, w.Latitude(c.Y))
		if !ok || !s.rng.Chance(s.cfg.SpawnChance*dt) {
			continue
		}
		st := &Storm{
			ID:        s.rng.ID(),
			Kind:      kind,
			X:         float64(c.X) + 0.5,
			Y:         float64(c.Y) + 0.5,
			VX:        c.Weather.WindX,
			VY:        c.Weather.WindY,
			Intensity: s.rng.Range(0.3, 0.7),
			Radius:    kind.Radius(),
		}
		s.storms = append(s.storms, st)
		slog.Debug("storm formed", "id", st.ID, "kind", kind.String(), "x", c.X, "y", c.Y, "year", year)
	}
}
