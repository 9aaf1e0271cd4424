// Package geology advances plate-boundary tectonics, volcanism and the
// erosion/deposition cycle that grows the sediment columns.
package geology

import (
	"log/slog"
	"math"

	"github.com/talgya/planetsim/internal/entropy"
	"github.com/talgya/planetsim/internal/world"
)

// shoreMargin is how close tectonics and erosion may bring a cell to the
// waterline. Coastlines move only with the sea.
const shoreMargin = 0.01

// Quake is a released stress event handed to the disaster propagator.
type Quake struct {
	X, Y      int
	Magnitude float64
	// Offshore is set when the epicentre is a water cell or on the coast.
	Offshore bool
}

// Config holds the tectonic tunables. Rates are per simulated year.
type Config struct {
	ConvergentStress float64 `yaml:"convergent_stress"`
	DivergentStress  float64 `yaml:"divergent_stress"`
	TransformStress  float64 `yaml:"transform_stress"`
	ReleaseThreshold float64 `yaml:"release_threshold"`
	Uplift           float64 `yaml:"uplift"`
	Rift             float64 `yaml:"rift"`
	MagmaConvergent  float64 `yaml:"magma_convergent"`
	MagmaDivergent   float64 `yaml:"magma_divergent"`
	MagmaHotspot     float64 `yaml:"magma_hotspot"`
	EruptionPressure float64 `yaml:"eruption_pressure"` // magma pressure that makes eruptions possible
	EruptionChance   float64 `yaml:"eruption_chance"`
	EruptionHeat     float64 `yaml:"eruption_heat"` // °C
	EruptionCO2      float64 `yaml:"eruption_co2"`  // percent
	Metamorphism     float64 `yaml:"metamorphism"`
	ErosionRate      float64 `yaml:"erosion_rate"`
	// LayerThickness is the accumulated material that adds or removes one
	// sediment layer.
	LayerThickness  float64 `yaml:"layer_thickness"`
	GreenhouseDecay float64 `yaml:"greenhouse_decay"`
}

// DefaultConfig returns the standard tectonic tunables.
func DefaultConfig() Config {
	return Config{
		ConvergentStress: 0.02,
		DivergentStress:  0.015,
		TransformStress:  0.035,
		ReleaseThreshold: 0.9,
		Uplift:           0.0006,
		Rift:             0.0004,
		MagmaConvergent:  0.01,
		MagmaDivergent:   0.012,
		MagmaHotspot:     0.004,
		EruptionPressure: 0.6,
		EruptionChance:   0.05,
		EruptionHeat:     6,
		EruptionCO2:      0.05,
		Metamorphism:     0.002,
		ErosionRate:      0.01,
		LayerThickness:   0.004,
		GreenhouseDecay:  0.1,
	}
}

// Simulator is the geology simulator.
type Simulator struct {
	cfg Config
	rng *entropy.Stream

	quakes    []Quake
	Eruptions int // total since creation
	delta     []float64
	lowest    []int32
}

// New creates a geology simulator with its private stream.
func New(cfg Config, seed int64) *Simulator {
	return &Simulator{
		cfg: cfg,
		rng: entropy.NewStream(seed, entropy.OffsetGeology),
	}
}

// Update runs one geology tick: tectonics and volcanism, then erosion and
// deposition, then the sediment column rules.
func (s *Simulator) Update(w *world.World, dt, year float64) {
	if len(s.delta) != w.Len() {
		s.delta = make([]float64, w.Len())
		s.lowest = make([]int32, w.Len())
	}
	s.tectonics(w, dt, year)
	s.erode(w, dt)
	s.layer(w)
	w.Reclassify()
}

// DrainQuakes returns the quakes released since the last call and clears them.
func (s *Simulator) DrainQuakes() []Quake {
	q := s.quakes
	s.quakes = nil
	return q
}

func (s *Simulator) tectonics(w *world.World, dt, year float64) {
	cfg := s.cfg
	for i := 0; i < w.Len(); i++ {
		c := w.Cell(i)
		g := &c.Geology
		g.CrustAge += dt

		switch g.Boundary {
		case world.BoundaryConvergent:
			g.Stress += cfg.ConvergentStress * dt
			g.MagmaPressure += cfg.MagmaConvergent * dt
			if c.Elevation() < 0.95 {
				c.SetElevation(keepMedium(c, c.Elevation()+cfg.Uplift*dt, w.WaterLevel))
			}
			g.Metamorphic += cfg.Metamorphism * dt * g.Stress
			g.NormalizeRock()
		case world.BoundaryDivergent:
			g.Stress += cfg.DivergentStress * dt
			g.MagmaPressure += cfg.MagmaDivergent * dt
			if c.Elevation() > -0.95 {
				c.SetElevation(keepMedium(c, c.Elevation()-cfg.Rift*dt, w.WaterLevel))
			}
		case world.BoundaryTransform:
			g.Stress += cfg.TransformStress * dt
		default:
			if g.Volcanism > 0.6 {
				g.MagmaPressure += cfg.MagmaHotspot * dt
			}
		}
		g.Stress = world.Clamp(g.Stress, 0, 1)
		g.MagmaPressure = world.Clamp(g.MagmaPressure, 0, 1)

		if g.Stress >= cfg.ReleaseThreshold {
			q := Quake{
				X:         c.X,
				Y:         c.Y,
				Magnitude: 4 + 5*g.Stress*s.rng.Range(0.6, 1),
				Offshore:  c.IsWater() || w.Coastal(i),
			}
			s.quakes = append(s.quakes, q)
			g.Stress *= 0.2
			slog.Debug("quake", "x", q.X, "y", q.Y, "magnitude", q.Magnitude, "year", year)
		}

		if c.Greenhouse != 0 {
			c.Greenhouse *= math.Max(0, 1-cfg.GreenhouseDecay*dt)
			if math.Abs(c.Greenhouse) < 1e-3 {
				c.Greenhouse = 0
			}
		}

		if g.MagmaPressure < cfg.EruptionPressure {
			continue
		}
		if g.Boundary == world.BoundaryTransform && g.Volcanism < 0.6 {
			continue
		}
		if s.rng.Chance(cfg.EruptionChance * g.MagmaPressure * dt) {
			s.erupt(c, w.WaterLevel, year)
		}
	}
}

// erupt lays down ash, heats the cell, vents CO2 and resets magma pressure.
func (s *Simulator) erupt(c *world.Cell, waterLevel, year float64) {
	g := &c.Geology
	intensity := g.MagmaPressure
	g.AppendSediment(world.SedimentVolcanic)
	g.MagmaPressure = 0
	g.Volcanism = math.Min(1, g.Volcanism+0.05)
	g.Igneous += 0.05 * intensity
	g.NormalizeRock()

	c.SetTemperature(c.Temperature() + s.cfg.EruptionHeat*intensity)
	c.SetCO2(c.CO2() + s.cfg.EruptionCO2*intensity)
	c.Greenhouse += 0.5 * intensity
	c.SetBiomass(c.Biomass() * 0.5)
	c.SetElevation(keepMedium(c, c.Elevation()+0.004*intensity, waterLevel))
	s.Eruptions++

	slog.Debug("eruption", "x", c.X, "y", c.Y, "intensity", intensity, "year", year)
}

// erode moves material from land cells to their lowest neighbor in proportion
// to slope and rainfall. Transfers go through a delta buffer so the result
// does not depend on iteration order. Sediment that would build a seabed past
// the shore margin is carried offshore and lost.
func (s *Simulator) erode(w *world.World, dt float64) {
	clear(s.delta)
	w.ForEachRow(func(y int) {
		var buf []int
		for x := 0; x < w.Width; x++ {
			i := y*w.Width + x
			s.lowest[i] = -1
			if !w.Cell(i).IsLand() {
				continue
			}
			elev := w.Cell(i).Elevation()
			best, bestElev := -1, elev
			buf = w.NeighborIndices(buf[:0], i)
			for _, j := range buf {
				if e := w.Cell(j).Elevation(); e < bestElev {
					best, bestElev = j, e
				}
			}
			s.lowest[i] = int32(best)
		}
	})

	for i := 0; i < w.Len(); i++ {
		j := s.lowest[i]
		if j < 0 {
			continue
		}
		c := w.Cell(i)
		slope := c.Elevation() - w.Cell(int(j)).Elevation()
		amount := s.cfg.ErosionRate * dt * slope * (0.2 + c.Rainfall())
		amount = math.Min(amount, slope/2)
		amount = math.Min(amount, c.Elevation()-keepMedium(c, c.Elevation()-amount, w.WaterLevel))
		if amount <= 0 {
			continue
		}
		s.delta[i] -= amount
		s.delta[j] += amount
		c.Geology.Eroded += amount
		w.Cell(int(j)).Geology.Deposited += amount
	}

	for i, d := range s.delta {
		if d != 0 {
			c := w.Cell(i)
			c.SetElevation(keepMedium(c, c.Elevation()+d, w.WaterLevel))
		}
	}
}

// layer applies the column rules: one layer appended per LayerThickness of
// deposition, one removed per LayerThickness of erosion.
func (s *Simulator) layer(w *world.World) {
	t := s.cfg.LayerThickness
	if t <= 0 {
		return
	}
	for i := 0; i < w.Len(); i++ {
		c := w.Cell(i)
		g := &c.Geology
		if g.Deposited >= t {
			g.Deposited -= t
			regime := world.ClassifyRegime(c.Elevation()-w.WaterLevel, c.IsWater(), w.Coastal(i), c.Rainfall())
			if k := s.rng.Pick(world.SedimentWeights(regime, c.Rainfall(), c.Temperature())); k >= 0 {
				g.AppendSediment(world.SedimentType(k))
				g.Sedimentary += 0.01
				g.NormalizeRock()
			}
		}
		if g.Eroded >= t {
			g.Eroded -= t
			g.ErodeTop()
		}
	}
}

// keepMedium limits a proposed elevation so the cell stays on its side of the
// waterline, shoreMargin away. Cells already inside the margin may only move
// away from the shore.
func keepMedium(c *world.Cell, elev, waterLevel float64) float64 {
	if c.IsLand() {
		return math.Max(elev, math.Min(c.Elevation(), waterLevel+shoreMargin))
	}
	return math.Min(elev, math.Max(c.Elevation(), waterLevel-shoreMargin))
}
