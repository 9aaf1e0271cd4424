// Package ecosystem runs the food web on top of the biome state: producer
// growth, grazing, hunting, colonisation and the evolution ladder.
package ecosystem

import (
	"log/slog"
	"math"

	"github.com/talgya/planetsim/internal/entropy"
	"github.com/talgya/planetsim/internal/world"
)

// Config holds the ecosystem tunables. Rates are per simulated year.
type Config struct {
	ProducerGrowth  float64 `yaml:"producer_growth"`
	GrazeRate       float64 `yaml:"graze_rate"`  // biomass a herbivore may take per year
	MinForage       float64 `yaml:"min_forage"`  // producers below this are not grazed
	Efficiency      float64 `yaml:"efficiency"`  // fraction of eaten biomass kept
	StarveRate      float64 `yaml:"starve_rate"` // biomass lost per year without food
	Metabolism      float64 `yaml:"metabolism"`  // upkeep of fed consumers
	HuntChance      float64 `yaml:"hunt_chance"`
	HuntKill        float64 `yaml:"hunt_kill"` // fraction of prey biomass taken
	OxygenYield     float64 `yaml:"oxygen_yield"`
	CarbonUptake    float64 `yaml:"carbon_uptake"`
	MaxOxygen       float64 `yaml:"max_oxygen"` // production stalls towards this level
	ToleranceLoss   float64 `yaml:"tolerance_loss"`
	DeathBiomass    float64 `yaml:"death_biomass"`
	SeedChance      float64 `yaml:"seed_chance"`
	Abiogenesis     float64 `yaml:"abiogenesis"`
	EvolveChance    float64 `yaml:"evolve_chance"`
	SentienceFactor float64 `yaml:"sentience_factor"` // scales the mammal -> intelligence step
	SpreadChance    float64 `yaml:"spread_chance"`
	SpreadBiomass   float64 `yaml:"spread_biomass"`
}

// DefaultConfig returns the standard ecosystem tunables.
func DefaultConfig() Config {
	return Config{
		ProducerGrowth:  0.15,
		GrazeRate:       0.08,
		MinForage:       0.05,
		Efficiency:      0.3,
		StarveRate:      0.06,
		Metabolism:      0.01,
		HuntChance:      0.3,
		HuntKill:        0.4,
		OxygenYield:     0.02,
		CarbonUptake:    0.002,
		MaxOxygen:       30,
		ToleranceLoss:   0.2,
		DeathBiomass:    0.005,
		SeedChance:      0.1,
		Abiogenesis:     0.0005,
		EvolveChance:    0.002,
		SentienceFactor: 0.1,
		SpreadChance:    0.05,
		SpreadBiomass:   0.3,
	}
}

// Simulator is the ecosystem simulator.
type Simulator struct {
	cfg Config
	rng *entropy.Stream

	next    []float64
	fed     []bool
	hunted  []bool
	gain    []float64
	born    []world.LifeForm
	Evolved int // evolution steps taken by the last Update
}

// New creates an ecosystem simulator with its private stream.
func New(cfg Config, seed int64) *Simulator {
	return &Simulator{
		cfg: cfg,
		rng: entropy.NewStream(seed, entropy.OffsetEcosystem),
	}
}

func (s *Simulator) ensureBuffers(n int) {
	if len(s.next) != n {
		s.next = make([]float64, n)
		s.fed = make([]bool, n)
		s.hunted = make([]bool, n)
		s.gain = make([]float64, n)
		s.born = make([]world.LifeForm, n)
	}
}

// Update runs one ecosystem tick.
func (s *Simulator) Update(w *world.World, dt, year float64) {
	s.ensureBuffers(w.Len())
	s.feed(w, dt)
	s.hunt(w, dt)
	s.commit(w, dt)
	s.colonise(w, dt)
	s.evolve(w, dt, year)
	s.spread(w, dt)
}

// ProducerCeiling is the climate-limited biomass a producer can reach.
func ProducerCeiling(c *world.Cell) float64 {
	t := c.Temperature()
	thermal := world.Smoothstep(-10, 5, t) * (1 - world.Smoothstep(32, 45, t))
	if c.IsWater() {
		return 0.6 * thermal
	}
	return world.Clamp(c.Rainfall()*1.2, 0, 1) * thermal
}

// eats reports whether a herbivore in cell h can graze producer cell p.
func eats(h, p *world.Cell, minForage float64) bool {
	if !p.Life.Traits().Producer || p.Biomass() < minForage {
		return false
	}
	t := h.Life.Traits()
	if p.IsWater() {
		return t.Aquatic
	}
	return t.Terrestrial
}

// forage returns the first producer neighbor herbivore cell h grazes, or -1.
func (s *Simulator) forage(w *world.World, h int) int {
	var arr [8]int
	hc := w.Cell(h)
	for _, j := range w.NeighborIndices(arr[:0], h) {
		if eats(hc, w.Cell(j), s.cfg.MinForage) {
			return j
		}
	}
	return -1
}

func (s *Simulator) bite(w *world.World, p int, dt float64) float64 {
	return math.Min(s.cfg.GrazeRate*dt, 0.5*w.Cell(p).Biomass())
}

// feed computes producer growth and grazing from the old snapshot. Each cell
// writes only its own slot, so rows run in parallel.
func (s *Simulator) feed(w *world.World, dt float64) {
	cfg := s.cfg
	w.ForEachRow(func(y int) {
		var buf []int
		for x := 0; x < w.Width; x++ {
			i := y*w.Width + x
			c := w.Cell(i)
			b := c.Biomass()
			s.next[i] = b
			s.fed[i] = false
			t := c.Life.Traits()

			switch {
			case t.Producer:
				ceiling := ProducerCeiling(c)
				growth := cfg.ProducerGrowth * dt * (ceiling - b)
				loss := 0.0
				buf = w.NeighborIndices(buf[:0], i)
				for _, h := range buf {
					if w.Cell(h).Life.Traits().Herbivore && s.forage(w, h) == i {
						loss += s.bite(w, i, dt)
					}
				}
				s.next[i] = b + growth - loss

				o2 := c.Oxygen()
				c.SetOxygen(o2 + cfg.OxygenYield*b*dt*math.Max(0, 1-o2/cfg.MaxOxygen))
				co2 := c.CO2()
				c.SetCO2(co2 - cfg.CarbonUptake*b*dt*co2/(co2+0.02))

			case t.Herbivore:
				if p := s.forage(w, i); p >= 0 {
					s.next[i] = b + cfg.Efficiency*s.bite(w, p, dt) - cfg.Metabolism*dt
					s.fed[i] = true
				} else {
					s.next[i] = b - cfg.StarveRate*dt
				}
			}
		}
	})
}

// hunt lets carnivores take prey-tagged neighbors. Draws from the stream, so
// it runs serially; each prey cell is taken at most once per tick.
func (s *Simulator) hunt(w *world.World, dt float64) {
	clear(s.hunted)
	clear(s.gain)
	var buf, prey []int
	for i := 0; i < w.Len(); i++ {
		c := w.Cell(i)
		if !c.Life.Traits().Carnivore {
			continue
		}
		prey = prey[:0]
		for _, j := range w.NeighborIndices(buf[:0], i) {
			n := w.Cell(j)
			if s.hunted[j] || n.Life == world.LifeCivilization || !n.Life.Traits().Prey {
				continue
			}
			prey = append(prey, j)
		}
		if len(prey) == 0 || !s.rng.Chance(s.cfg.HuntChance*dt) {
			s.next[i] -= s.cfg.StarveRate * dt
			continue
		}
		j := prey[s.rng.Intn(len(prey))]
		s.hunted[j] = true
		take := s.cfg.HuntKill * s.next[j]
		s.next[j] -= take
		s.gain[i] += take
		s.fed[i] = true
	}
	for i, g := range s.gain {
		if g > 0 {
			s.next[i] += s.cfg.Efficiency*g - s.cfg.Metabolism*dt
		}
	}
}

// commit writes the new biomass, applies thermal and oxygen tolerance and
// clears dead cells.
func (s *Simulator) commit(w *world.World, dt float64) {
	for i := 0; i < w.Len(); i++ {
		c := w.Cell(i)
		if !c.Life.Alive() || c.Life == world.LifeCivilization {
			continue
		}
		b := s.next[i]
		if !c.Life.Tolerates(c.Temperature(), c.Oxygen()) || !c.Life.CanLiveIn(c) {
			b -= s.cfg.ToleranceLoss * dt
		}
		c.SetBiomass(b)
		if c.Biomass() < s.cfg.DeathBiomass {
			c.Life = world.LifeNone
		}
	}
}

// plantSite reports whether an empty cell can host new plant life.
func plantSite(c *world.Cell) bool {
	return c.IsLand() && !c.IsIce() && c.Life == world.LifeNone && c.Rainfall() > 0.2 &&
		world.LifePlant.Tolerates(c.Temperature(), c.Oxygen())
}

// colonise seeds plants next to seed spreaders and starts bacteria in warm
// water. Births are buffered so a new plant does not count this tick.
func (s *Simulator) colonise(w *world.World, dt float64) {
	clear(s.born)
	var buf []int
	for i := 0; i < w.Len(); i++ {
		c := w.Cell(i)
		if c.Life != world.LifeNone {
			continue
		}
		if plantSite(c) {
			for _, j := range w.NeighborIndices(buf[:0], i) {
				if w.Cell(j).Life.Traits().SeedSpreader {
					if s.rng.Chance(s.cfg.SeedChance * dt) {
						s.born[i] = world.LifePlant
					}
					break
				}
			}
			continue
		}
		if c.IsWater() && c.Temperature() > 0 && c.Temperature() < 60 && s.rng.Chance(s.cfg.Abiogenesis*dt) {
			s.born[i] = world.LifeBacteria
		}
	}
	for i, l := range s.born {
		if l != world.LifeNone {
			c := w.Cell(i)
			c.Life = l
			c.SetBiomass(math.Max(c.Biomass(), 0.05))
		}
	}
}

// ladder lists the forms each life-form may evolve into.
var ladder = [world.LifeFormCount][]world.LifeForm{
	world.LifeBacteria:      {world.LifeAlgae, world.LifePlant},
	world.LifeAlgae:         {world.LifeSimpleAnimal},
	world.LifeSimpleAnimal:  {world.LifeComplexAnimal},
	world.LifeComplexAnimal: {world.LifeFish, world.LifeAmphibian},
	world.LifeFish:          {world.LifeMarineDinosaur, world.LifeAmphibian},
	world.LifeAmphibian:     {world.LifeReptile},
	world.LifeReptile:       {world.LifeDinosaur, world.LifeFlyingDinosaur, world.LifeMammal, world.LifeBird},
	world.LifeMammal:        {world.LifeIntelligence},
}

// Successors returns the forms l can evolve into within cell c.
func Successors(l world.LifeForm, c *world.Cell) []world.LifeForm {
	if l >= world.LifeFormCount {
		return nil
	}
	var out []world.LifeForm
	for _, next := range ladder[l] {
		if next.CanLiveIn(c) && next.Tolerates(c.Temperature(), c.Oxygen()) {
			out = append(out, next)
		}
	}
	return out
}

func (s *Simulator) evolve(w *world.World, dt, year float64) {
	s.Evolved = 0
	for i := 0; i < w.Len(); i++ {
		c := w.Cell(i)
		if !c.Life.Alive() {
			continue
		}
		p := s.cfg.EvolveChance * dt
		if c.Life == world.LifeMammal {
			p *= s.cfg.SentienceFactor
		}
		if !s.rng.Chance(p) {
			continue
		}
		options := Successors(c.Life, c)
		if len(options) == 0 {
			continue
		}
		next := options[s.rng.Intn(len(options))]
		if next == world.LifeIntelligence {
			slog.Info("intelligence emerged", "x", c.X, "y", c.Y, "year", year)
		}
		c.Life = next
		s.Evolved++
	}
}

// spread lets established life colonise adjacent empty suitable cells.
func (s *Simulator) spread(w *world.World, dt float64) {
	clear(s.born)
	var buf, open []int
	for i := 0; i < w.Len(); i++ {
		c := w.Cell(i)
		l := c.Life
		if !l.Alive() || l == world.LifeCivilization || l == world.LifeIntelligence || c.Biomass() < s.cfg.SpreadBiomass {
			continue
		}
		if !s.rng.Chance(s.cfg.SpreadChance * dt) {
			continue
		}
		open = open[:0]
		for _, j := range w.NeighborIndices(buf[:0], i) {
			n := w.Cell(j)
			if n.Life == world.LifeNone && s.born[j] == world.LifeNone && l.CanLiveIn(n) &&
				l.Tolerates(n.Temperature(), n.Oxygen()) {
				open = append(open, j)
			}
		}
		if len(open) == 0 {
			continue
		}
		s.born[open[s.rng.Intn(len(open))]] = l
		c.SetBiomass(c.Biomass() - 0.05)
	}
	for i, l := range s.born {
		if l != world.LifeNone {
			c := w.Cell(i)
			c.Life = l
			c.SetBiomass(math.Max(c.Biomass(), 0.05))
		}
	}
}
