package biome

import (
	"log/slog"
	"math"

	"github.com/talgya/planetsim/internal/entropy"
	"github.com/talgya/planetsim/internal/world"
)

// Config holds the biome tunables. Rates are per simulated year.
type Config struct {
	AfforestBiomass    float64 `yaml:"afforest_biomass"`
	DesertRainFactor   float64 `yaml:"desert_rain_factor"`
	DesertBiomass      float64 `yaml:"desert_biomass"`
	GlacierUplift      float64 `yaml:"glacier_uplift"`
	RainforestHumidity float64 `yaml:"rainforest_humidity"`
	RainforestRain     float64 `yaml:"rainforest_rain"`
	RainforestCO2      float64 `yaml:"rainforest_co2"`
	DesertDrying       float64 `yaml:"desert_drying"`
	DesertSpread       float64 `yaml:"desert_spread"`
	DesertSpreadRain   float64 `yaml:"desert_spread_rain"` // neighbors drier than this may turn desert
	GlacierChill       float64 `yaml:"glacier_chill"`      // °C per year
	GlacierIce         float64 `yaml:"glacier_ice"`
	GlacierSpreadTemp  float64 `yaml:"glacier_spread_temp"`
	OldGrowthYears     float64 `yaml:"old_growth_years"`
	ForestGrowth       float64 `yaml:"forest_growth"`
}

// DefaultConfig returns the standard biome tunables.
func DefaultConfig() Config {
	return Config{
		AfforestBiomass:    0.1,
		DesertRainFactor:   0.8,
		DesertBiomass:      0.5,
		GlacierUplift:      0.01,
		RainforestHumidity: 0.02,
		RainforestRain:     0.01,
		RainforestCO2:      0.01,
		DesertDrying:       0.02,
		DesertSpread:       0.01,
		DesertSpreadRain:   0.18,
		GlacierChill:       0.3,
		GlacierIce:         0.01,
		GlacierSpreadTemp:  0,
		OldGrowthYears:     300,
		ForestGrowth:       0.05,
	}
}

// Simulator is the biome simulator.
type Simulator struct {
	cfg Config
	rng *entropy.Stream

	target  []world.BiomeType
	accept  []bool
	chill   []float64
	desert  []bool
	Changes int // transitions accepted by the last Update
}

// New creates a biome simulator with its private stream.
func New(cfg Config, seed int64) *Simulator {
	return &Simulator{
		cfg: cfg,
		rng: entropy.NewStream(seed, entropy.OffsetBiome),
	}
}

func (s *Simulator) ensureBuffers(n int) {
	if len(s.target) != n {
		s.target = make([]world.BiomeType, n)
		s.accept = make([]bool, n)
		s.chill = make([]float64, n)
		s.desert = make([]bool, n)
	}
}

// Initialize assigns every cell its classified biome without gating. Used once
// after generation.
func (s *Simulator) Initialize(w *world.World) {
	for i := 0; i < w.Len(); i++ {
		c := w.Cell(i)
		c.Biome.Type = Classify(c, w.Coastal(i), w.WaterLevel)
		c.Biome.YearsSinceChange = 0
	}
}

// Update runs one biome tick: gated transitions, ageing, then ongoing effects.
func (s *Simulator) Update(w *world.World, dt, year float64) {
	s.Changes = s.Transition(w)
	for i := 0; i < w.Len(); i++ {
		w.Cell(i).Biome.YearsSinceChange += dt
	}
	s.effects(w, dt)
	if s.Changes > 0 {
		slog.Debug("biome transitions", "year", year, "changes", s.Changes)
	}
}

// Transition classifies every cell against the old state, then accepts the
// changes the transition table and the neighbor blend permit. Running it twice
// without an intervening tick changes nothing the second time.
func (s *Simulator) Transition(w *world.World) int {
	s.ensureBuffers(w.Len())

	w.ForEachRow(func(y int) {
		for x := 0; x < w.Width; x++ {
			i := y*w.Width + x
			s.target[i] = Classify(w.Cell(i), w.Coastal(i), w.WaterLevel)
		}
	})

	w.ForEachRow(func(y int) {
		var buf []int
		for x := 0; x < w.Width; x++ {
			i := y*w.Width + x
			buf = w.NeighborIndices(buf[:0], i)
			s.accept[i] = s.decide(w, i, buf)
		}
	})

	changed := 0
	for i := 0; i < w.Len(); i++ {
		if !s.accept[i] {
			continue
		}
		s.apply(w.Cell(i), s.target[i])
		changed++
	}
	return changed
}

func (s *Simulator) decide(w *world.World, i int, nbrs []int) bool {
	cur := w.Cell(i).Biome.Type
	tgt := s.target[i]
	if tgt == cur || !Allowed(cur, tgt) {
		return false
	}
	if cur == world.BiomeNone || MediumChange(cur, tgt) {
		return true
	}
	match := 0
	for _, j := range nbrs {
		if w.Cell(j).Biome.Type == tgt || s.target[j] == tgt {
			match++
		}
	}
	return match >= Majority(len(nbrs))
}

// apply switches the biome and applies the step adjustment of the new type.
// Adjustments only push the cell further into the new biome.
func (s *Simulator) apply(c *world.Cell, b world.BiomeType) {
	c.Biome.Type = b
	c.Biome.YearsSinceChange = 0
	switch b {
	case world.BiomeTemperateForest, world.BiomeRainforest, world.BiomeTaiga:
		b := c.Biomass()
		c.SetBiomass(math.Max(b, math.Min(ForestCeiling(0, s.cfg.OldGrowthYears), b+s.cfg.AfforestBiomass)))
	case world.BiomeDesert:
		c.SetRainfall(c.Rainfall() * s.cfg.DesertRainFactor)
		c.SetBiomass(c.Biomass() * s.cfg.DesertBiomass)
	case world.BiomeGlacier:
		c.SetBiomass(0)
		if c.Life != world.LifeCivilization {
			c.Life = world.LifeNone
		}
		c.SetElevation(c.Elevation() + s.cfg.GlacierUplift)
	}
}

// ForestCeiling is the maximum forest biomass after the given years without a
// biome change; it rises from 0.6 towards 0.95 as the stand reaches old growth.
func ForestCeiling(years, oldGrowth float64) float64 {
	if oldGrowth <= 0 {
		return 0.95
	}
	return 0.6 + 0.35*math.Min(1, years/oldGrowth)
}

// effects runs the per-tick biome effects. Spread onto neighbors is collected
// in write-back buffers and applied after the scan.
func (s *Simulator) effects(w *world.World, dt float64) {
	clear(s.chill)
	clear(s.desert)
	cfg := s.cfg

	var buf []int
	for i := 0; i < w.Len(); i++ {
		c := w.Cell(i)
		switch c.Biome.Type {
		case world.BiomeRainforest:
			c.SetHumidity(c.Humidity() + cfg.RainforestHumidity*dt)
			c.SetRainfall(c.Rainfall() + cfg.RainforestRain*dt)
			c.SetCO2(c.CO2() * (1 - math.Min(1, cfg.RainforestCO2*dt)))
			s.growForest(c, dt)
		case world.BiomeTemperateForest, world.BiomeTaiga:
			s.growForest(c, dt)
		case world.BiomeDesert:
			c.SetHumidity(c.Humidity() - cfg.DesertDrying*dt)
			buf = w.NeighborIndices(buf[:0], i)
			for _, j := range buf {
				n := w.Cell(j)
				if n.IsLand() && n.Rainfall() < cfg.DesertSpreadRain &&
					Allowed(n.Biome.Type, world.BiomeDesert) && s.rng.Chance(cfg.DesertSpread*dt) {
					s.desert[j] = true
				}
			}
		case world.BiomeGlacier:
			buf = w.NeighborIndices(buf[:0], i)
			for _, j := range buf {
				n := w.Cell(j)
				if n.IsLand() && n.Biome.Type != world.BiomeGlacier && n.Temperature() < cfg.GlacierSpreadTemp {
					s.chill[j] += cfg.GlacierChill * dt
				}
			}
		}
	}

	for i := 0; i < w.Len(); i++ {
		c := w.Cell(i)
		if s.chill[i] > 0 {
			c.SetTemperature(c.Temperature() - s.chill[i])
			c.SetIceThickness(c.IceThickness() + cfg.GlacierIce*s.chill[i]/cfg.GlacierChill)
		}
		if s.desert[i] && c.Biome.Type != world.BiomeDesert {
			s.apply(c, world.BiomeDesert)
		}
	}
}

func (s *Simulator) growForest(c *world.Cell, dt float64) {
	ceiling := ForestCeiling(c.Biome.YearsSinceChange, s.cfg.OldGrowthYears)
	b := c.Biomass()
	if b > ceiling {
		c.SetBiomass(ceiling)
		return
	}
	c.SetBiomass(b + (ceiling-b)*math.Min(1, s.cfg.ForestGrowth*dt))
}
