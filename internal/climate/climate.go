// Package climate relaxes temperature, rainfall and humidity towards
// latitude-driven targets and runs the ice cycle with its sea-level feedback.
package climate

import (
	"log/slog"
	"math"

	"github.com/talgya/planetsim/internal/entropy"
	"github.com/talgya/planetsim/internal/world"
)

// Config holds the climate tunables.
type Config struct {
	// NeighborWeight is the share of the new temperature taken from the
	// 8-neighbor mean; the rest comes from the local target.
	NeighborWeight float64 `yaml:"neighbor_weight"`
	// SolarGain converts absorbed insolation into °C.
	SolarGain float64 `yaml:"solar_gain"`
	// GreenhouseSensitivity is °C per doubling of CO2 over the present-day level.
	GreenhouseSensitivity float64 `yaml:"greenhouse_sensitivity"`
	MaxGreenhouse         float64 `yaml:"max_greenhouse"`
	// LongitudeAmplitude perturbs the base temperature along a row.
	LongitudeAmplitude float64 `yaml:"longitude_amplitude"`
	MinTarget          float64 `yaml:"min_target"`

	RainfallRelax  float64 `yaml:"rainfall_relax"` // fraction of the gap closed per year
	HumidityRelax  float64 `yaml:"humidity_relax"`
	Orographic     float64 `yaml:"orographic"`
	WaterHumidity  float64 `yaml:"water_humidity"` // bonus on water cells
	CoastHumidity  float64 `yaml:"coast_humidity"` // bonus next to water
	Transpiration  float64 `yaml:"transpiration"`
	WaterEvaporate float64 `yaml:"water_evaporate"`

	IceGrowth        float64 `yaml:"ice_growth"` // thickness per year per 10°C below freezing
	IceMelt          float64 `yaml:"ice_melt"`   // thickness per year per 5°C above melting
	IceElevation     float64 `yaml:"ice_elevation"`
	IceFeedback      float64 `yaml:"ice_feedback"`       // °C of extra cooling per unit ice
	IceFeedbackFloor float64 `yaml:"ice_feedback_floor"` // most cooling ice may add, albedo included

	// SeaLevelPerIce is how far the water level moves per unit of mean land ice
	// added or removed across the grid.
	SeaLevelPerIce float64 `yaml:"sea_level_per_ice"`
	MaxSeaLevel    float64 `yaml:"max_sea_level"`

	// AtmosphereMix is the fraction of the gap between a cell's gases and the
	// planet-wide mean closed per year.
	AtmosphereMix float64 `yaml:"atmosphere_mix"`
}

// DefaultConfig returns the standard climate tunables.
func DefaultConfig() Config {
	return Config{
		NeighborWeight:        0.8,
		SolarGain:             20,
		GreenhouseSensitivity: 3,
		MaxGreenhouse:         15,
		LongitudeAmplitude:    1.5,
		MinTarget:             -70,
		RainfallRelax:         0.1,
		HumidityRelax:         0.2,
		Orographic:            0.25,
		WaterHumidity:         0.2,
		CoastHumidity:         0.1,
		Transpiration:         0.6,
		WaterEvaporate:        1.0,
		IceGrowth:             0.02,
		IceMelt:               0.06,
		IceElevation:          0.01,
		IceFeedback:           6,
		IceFeedbackFloor:      -5,
		SeaLevelPerIce:        0.5,
		MaxSeaLevel:           0.2,
		AtmosphereMix:         0.3,
	}
}

// Simulator is the climate simulator.
type Simulator struct {
	cfg   Config
	rng   *entropy.Stream
	phase float64
	waves float64

	prevIce   float64
	primed    bool
	landMask  []bool
	next      []float64
	evap      []float64
	humidNext []float64
}

// New creates a climate simulator with its private stream.
func New(cfg Config, seed int64) *Simulator {
	rng := entropy.NewStream(seed, entropy.OffsetClimate)
	return &Simulator{
		cfg:   cfg,
		rng:   rng,
		phase: rng.Range(0, 2*math.Pi),
		waves: float64(2 + rng.Intn(3)),
	}
}

// Update runs one climate tick: atmospheric mixing, temperature, rainfall,
// humidity, ice and the sea-level feedback, in that order.
func (s *Simulator) Update(w *world.World, dt, year float64) {
	s.ensureBuffers(w.Len())
	s.mixAtmosphere(w, dt)
	s.updateTemperature(w)
	s.updateRainfall(w, dt)
	s.updateHumidity(w, dt)
	s.updateIce(w, dt)
	s.UpdateSeaLevel(w)
}

// mixAtmosphere relaxes cell oxygen and CO2 towards the global means of the
// last aggregation.
func (s *Simulator) mixAtmosphere(w *world.World, dt float64) {
	mix := math.Min(1, s.cfg.AtmosphereMix*dt)
	if mix <= 0 || w.Globals.Oxygen <= 0 {
		return
	}
	o2, co2 := w.Globals.Oxygen, w.Globals.CO2
	w.ForEachRow(func(y int) {
		for x := 0; x < w.Width; x++ {
			c := w.Cell(y*w.Width + x)
			c.SetOxygen(c.Oxygen() + (o2-c.Oxygen())*mix)
			c.SetCO2(c.CO2() + (co2-c.CO2())*mix)
		}
	})
}

func (s *Simulator) ensureBuffers(n int) {
	if len(s.next) != n {
		s.next = make([]float64, n)
		s.evap = make([]float64, n)
		s.humidNext = make([]float64, n)
	}
}

// Target returns the local equilibrium temperature of cell i before neighbor
// blending.
func (s *Simulator) Target(w *world.World, i int) float64 {
	c := w.Cell(i)
	lat := w.Latitude(c.Y)
	solar := world.SolarFactor(lat)

	t := world.BaseTemperature(lat)
	t += s.cfg.LongitudeAmplitude * math.Sin(2*math.Pi*s.waves*float64(c.X)/float64(w.Width)+s.phase)

	// Absorbed sunlight relative to a reference albedo of 0.3, for the surface
	// under any ice.
	insolation := s.cfg.SolarGain * solar * w.Globals.SolarEnergy
	t += s.cfg.SolarGain * solar * (w.Globals.SolarEnergy*(1-bareAlbedo(c)) - 0.7)

	if c.IsLand() {
		t -= world.LapseRate * math.Max(0, c.Elevation()-w.WaterLevel)
	}

	t += s.greenhouse(c)
	t += c.Weather.SeasonalAnomaly

	// Reflected sunlight and direct ice cooling share one floor.
	cooling := -insolation*(Albedo(c)-bareAlbedo(c)) - s.cfg.IceFeedback*c.IceThickness()
	t += math.Max(s.cfg.IceFeedbackFloor, cooling)

	return math.Max(t, s.cfg.MinTarget)
}

func (s *Simulator) greenhouse(c *world.Cell) float64 {
	co2 := math.Max(c.CO2(), 0.001)
	g := s.cfg.GreenhouseSensitivity * math.Log2(co2/world.DefaultCO2)
	g = world.Clamp(g, -s.cfg.MaxGreenhouse, s.cfg.MaxGreenhouse)
	return g + c.Greenhouse
}

func (s *Simulator) updateTemperature(w *world.World) {
	wn := s.cfg.NeighborWeight
	w.ForEachRow(func(y int) {
		for x := 0; x < w.Width; x++ {
			i := y*w.Width + x
			mean := w.NeighborMean(i, (*world.Cell).Temperature)
			s.next[i] = wn*mean + (1-wn)*s.Target(w, i)
		}
	})
	for i := range s.next {
		w.Cell(i).SetTemperature(s.next[i])
	}
}

// evaporation is the moisture a cell contributes: open water scaled by
// temperature, land by plant transpiration.
func (s *Simulator) evaporation(c *world.Cell) float64 {
	if c.IsWater() {
		if c.IsIce() {
			return 0.1
		}
		return s.cfg.WaterEvaporate * world.Clamp((c.Temperature()+10)/40, 0.05, 1)
	}
	return s.cfg.Transpiration * c.Biomass() * world.Clamp((c.Temperature()+5)/30, 0, 1)
}

func (s *Simulator) updateRainfall(w *world.World, dt float64) {
	for i := range s.evap {
		s.evap[i] = s.evaporation(w.Cell(i))
	}
	relax := math.Min(1, s.cfg.RainfallRelax*dt)
	var buf []int
	for i := 0; i < w.Len(); i++ {
		c := w.Cell(i)
		buf = w.NeighborIndices(buf[:0], i)
		moisture := s.evap[i]
		if len(buf) > 0 {
			sum := 0.0
			for _, j := range buf {
				sum += s.evap[j]
			}
			moisture = 0.5*moisture + 0.5*sum/float64(len(buf))
		}

		target := world.CirculationFactor(w.Latitude(c.Y)) * (0.35 + 0.65*moisture)
		if c.IsLand() {
			if lift := c.Elevation() - w.WaterLevel - 0.2; lift > 0 {
				target += s.cfg.Orographic * lift
			}
		}
		target = world.Clamp(target, 0, 1)
		c.SetRainfall(c.Rainfall() + (target-c.Rainfall())*relax)
	}
}

func (s *Simulator) updateHumidity(w *world.World, dt float64) {
	relax := math.Min(1, s.cfg.HumidityRelax*dt)
	w.ForEachRow(func(y int) {
		for x := 0; x < w.Width; x++ {
			i := y*w.Width + x
			c := w.Cell(i)
			target := 0.6*c.Rainfall() + 0.3*w.NeighborMean(i, (*world.Cell).Humidity)
			switch {
			case c.IsWater():
				target += s.cfg.WaterHumidity
			case w.AdjacentWater(i):
				target += s.cfg.CoastHumidity
			}
			target = world.Clamp(target, 0, 1)
			s.humidNext[i] = c.Humidity() + (target-c.Humidity())*relax
		}
	})
	for i := range s.humidNext {
		w.Cell(i).SetHumidity(s.humidNext[i])
	}
}

// Thresholds returns the freeze and melt temperatures for a cell. Polar and
// high cells freeze more readily; melt sits above freeze for hysteresis.
func Thresholds(lat, elevation float64) (freeze, melt float64) {
	freeze = -2 + 4*world.PolarStrength(lat) + 3*math.Max(0, elevation)
	return freeze, freeze + 3
}

func (s *Simulator) updateIce(w *world.World, dt float64) {
	w.ForEachRow(func(y int) {
		lat := w.Latitude(y)
		for x := 0; x < w.Width; x++ {
			c := w.Cell(y*w.Width + x)
			freeze, melt := Thresholds(lat, c.Elevation())
			temp := c.Temperature()
			ice := c.IceThickness()

			var delta float64
			switch {
			case temp < freeze:
				growth := s.cfg.IceGrowth * dt * math.Min(3, (freeze-temp)/10) * (0.3 + c.Rainfall())
				delta = math.Min(growth, 1-ice)
			case temp > melt && ice > 0:
				delta = -math.Min(ice, s.cfg.IceMelt*dt*math.Min(4, (temp-melt)/5+0.2))
			}
			if delta == 0 {
				continue
			}
			c.SetIceThickness(ice + delta)
			// The ice column rides on the surface wherever it formed, so a
			// glacier that floods still unloads as it melts.
			c.SetElevation(c.Elevation() + s.cfg.IceElevation*delta)
		}
	})
}

// UpdateSeaLevel moves WaterLevel opposite to the change in land ice volume
// since the previous call and reclassifies land and water. Both volumes are
// taken over the land of the previous call, so cells that change medium carry
// their ice with them and never move the sea on their own. The first call
// only records the baseline.
func (s *Simulator) UpdateSeaLevel(w *world.World) {
	if !s.primed || len(s.landMask) != w.Len() {
		w.Reclassify()
		s.landMask = w.LandMask(s.landMask)
		s.prevIce = w.IceVolume(s.landMask)
		s.primed = true
		return
	}
	volume := w.IceVolume(s.landMask)
	delta := (volume - s.prevIce) / float64(w.Len())
	if delta != 0 {
		before := w.WaterLevel
		w.WaterLevel = world.Clamp(w.WaterLevel-s.cfg.SeaLevelPerIce*delta, -s.cfg.MaxSeaLevel, s.cfg.MaxSeaLevel)
		if math.Abs(w.WaterLevel-before) > 0.005 {
			slog.Debug("sea level shifted", "from", before, "to", w.WaterLevel, "land_ice", volume)
		}
	}
	w.Reclassify()
	s.landMask = w.LandMask(s.landMask)
	s.prevIce = w.IceVolume(s.landMask)
}

// Reset forgets the ice baseline, used after a checkpoint restore.
func (s *Simulator) Reset() {
	s.primed = false
}
