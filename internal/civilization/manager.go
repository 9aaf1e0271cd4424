package civilization

import (
	"log/slog"
	"math"
	"slices"

	"github.com/talgya/planetsim/internal/entropy"
	"github.com/talgya/planetsim/internal/world"
)

// Config holds the civilization tunables. Rates are per simulated year.
type Config struct {
	EmergeBiomass     float64 `yaml:"emerge_biomass"`
	EmergeChance      float64 `yaml:"emerge_chance"`
	MaxCivilizations  int     `yaml:"max_civilizations"`
	InitialPopulation int64   `yaml:"initial_population"`

	GrowthRate   float64 `yaml:"growth_rate"`
	CellCapacity float64 `yaml:"cell_capacity"` // people per cell at the tribal stage
	Overcrowding float64 `yaml:"overcrowding"`  // carrying capacity over cell capacity
	TechChance   float64 `yaml:"tech_chance"`
	TechStep     float64 `yaml:"tech_step"`

	ExpandChance float64 `yaml:"expand_chance"`
	MinHabitable float64 `yaml:"min_habitable"` // °C
	MaxHabitable float64 `yaml:"max_habitable"`

	Pollution    float64 `yaml:"pollution"` // CO2 percent per year per stage
	ClearChance  float64 `yaml:"clear_chance"`
	RestoreRate  float64 `yaml:"restore_rate"`
	CaptureRate  float64 `yaml:"capture_rate"`
	EcoThreshold float64 `yaml:"eco_threshold"`

	WarAggression float64 `yaml:"war_aggression"`
	WarChance     float64 `yaml:"war_chance"`
	TechGap       float64 `yaml:"tech_gap"`
	MaxAnnex      int     `yaml:"max_annex"`
	WarLoss       float64 `yaml:"war_loss"`
	CoopChance    float64 `yaml:"coop_chance"`
	CoopRate      float64 `yaml:"coop_rate"`

	CollapseCO2     float64 `yaml:"collapse_co2"`
	CollapseMinTemp float64 `yaml:"collapse_min_temp"`
	CollapseMaxTemp float64 `yaml:"collapse_max_temp"`
	CollapseLoss    float64 `yaml:"collapse_loss"` // population share lost per failed check
	MinPopulation   int64   `yaml:"min_population"`
}

// DefaultConfig returns the standard civilization tunables.
func DefaultConfig() Config {
	return Config{
		EmergeBiomass:     0.3,
		EmergeChance:      0.01,
		MaxCivilizations:  48,
		InitialPopulation: 500,
		GrowthRate:        0.03,
		CellCapacity:      2000,
		Overcrowding:      1.5,
		TechChance:        0.3,
		TechStep:          1,
		ExpandChance:      0.5,
		MinHabitable:      -15,
		MaxHabitable:      40,
		Pollution:         0.002,
		ClearChance:       0.05,
		RestoreRate:       0.02,
		CaptureRate:       0.02,
		EcoThreshold:      0.6,
		WarAggression:     0.5,
		WarChance:         0.1,
		TechGap:           10,
		MaxAnnex:          3,
		WarLoss:           0.2,
		CoopChance:        0.2,
		CoopRate:          0.1,
		CollapseCO2:       1.5,
		CollapseMinTemp:   -35,
		CollapseMaxTemp:   50,
		CollapseLoss:      0.1,
		MinPopulation:     50,
	}
}

// Manager owns every civilization and the per-cell owner index.
type Manager struct {
	cfg Config
	rng *entropy.Stream

	civs   []*Civilization // founding order
	byID   map[uint64]*Civilization
	owner  []uint64 // 0 is unclaimed
	nextID uint64
	names  *namer

	notices []Notice
}

// NewManager creates a civilization manager with its private stream.
func NewManager(cfg Config, seed int64) *Manager {
	return &Manager{
		cfg:    cfg,
		rng:    entropy.NewStream(seed, entropy.OffsetCivilization),
		byID:   make(map[uint64]*Civilization),
		nextID: 1,
		names:  newNamer(),
	}
}

func (m *Manager) ensureIndex(n int) {
	if len(m.owner) != n {
		m.owner = make([]uint64, n)
		for _, c := range m.civs {
			for i := range c.Territory {
				m.owner[i] = c.ID
			}
		}
	}
}

// Active returns the live civilizations in founding order. Callers inside the
// tick may mutate population; territory changes go through the manager.
func (m *Manager) Active() []*Civilization {
	return m.civs
}

// Get returns the civilization with the given id, or nil.
func (m *Manager) Get(id uint64) *Civilization {
	return m.byID[id]
}

// Owner returns the id of the civilization owning cell i, 0 when unclaimed.
func (m *Manager) Owner(i int) uint64 {
	if i < 0 || i >= len(m.owner) {
		return 0
	}
	return m.owner[i]
}

// Snapshot returns deep copies of every live civilization.
func (m *Manager) Snapshot() []Civilization {
	out := make([]Civilization, 0, len(m.civs))
	for _, c := range m.civs {
		out = append(out, c.Clone())
	}
	return out
}

// Restore replaces the manager state with the given civilizations and rebuilds
// the owner index against w.
func (m *Manager) Restore(w *world.World, civs []Civilization) {
	m.civs = m.civs[:0]
	m.byID = make(map[uint64]*Civilization, len(civs))
	m.owner = make([]uint64, w.Len())
	m.names = newNamer()
	m.nextID = 1
	for k := range civs {
		c := civs[k].Clone()
		m.civs = append(m.civs, &c)
		m.byID[c.ID] = &c
		m.names.reserve(c.Name)
		for i := range c.Territory {
			m.owner[i] = c.ID
		}
		m.nextID = max(m.nextID, c.ID+1)
	}
}

// DrainNotices returns the lifecycle notices since the last call.
func (m *Manager) DrainNotices() []Notice {
	n := m.notices
	m.notices = nil
	return n
}

func (m *Manager) notify(kind string, c *Civilization, year float64, detail string) {
	m.notices = append(m.notices, Notice{
		Kind: kind, CivID: c.ID, Name: c.Name,
		X: c.CenterX, Y: c.CenterY, Year: year, Detail: detail,
	})
}

// Harm removes the share of an owner's population living on cell i, scaled
// by severity in [0, 1]. Unclaimed cells are ignored.
func (m *Manager) Harm(i int, severity float64) {
	c := m.byID[m.Owner(i)]
	if c == nil || c.Size() == 0 {
		return
	}
	loss := float64(c.Population) / float64(c.Size()) * world.Clamp(severity, 0, 1)
	c.Population = max(0, c.Population-int64(math.Round(loss)))
}

// Abandon releases cell i from its owner and reverts it to intelligence. A
// civilization left with no cells is removed on the next Update.
func (m *Manager) Abandon(w *world.World, i int) {
	c := m.byID[m.Owner(i)]
	if c == nil {
		return
	}
	m.release(c, i)
	cell := w.Cell(i)
	cell.Life = world.LifeIntelligence
	cell.Engineered = false
}

// Update runs one civilization tick.
func (m *Manager) Update(w *world.World, dt, year float64) {
	m.ensureIndex(w.Len())
	m.reconcile(w, year)
	m.prune()

	m.emerge(w, dt, year)
	for _, c := range m.civs {
		m.grow(c, dt, year)
		m.expand(w, c, dt)
		m.impact(w, c, dt)
	}
	m.interact(w, dt, year)
	for _, c := range m.civs {
		m.checkCollapse(w, c, year)
	}
	m.prune()
}

// reconcile drops owned cells that no longer carry civilization life and
// collapses civilizations left without territory or people.
func (m *Manager) reconcile(w *world.World, year float64) {
	for _, c := range m.civs {
		for _, i := range c.Cells() {
			if w.Cell(i).Life != world.LifeCivilization {
				m.release(c, i)
			}
		}
		if c.Size() == 0 || c.Population <= 0 {
			m.collapse(w, c, year, "territory lost")
		}
	}
}

// prune removes collapsed civilizations from the active list.
func (m *Manager) prune() {
	m.civs = slices.DeleteFunc(m.civs, func(c *Civilization) bool {
		if c.Dead {
			delete(m.byID, c.ID)
			return true
		}
		return false
	})
}

func (m *Manager) claim(w *world.World, c *Civilization, i int) {
	c.Territory[i] = struct{}{}
	m.owner[i] = c.ID
	w.Cell(i).Life = world.LifeCivilization
}

func (m *Manager) release(c *Civilization, i int) {
	delete(c.Territory, i)
	if m.owner[i] == c.ID {
		m.owner[i] = 0
	}
}

func (m *Manager) emerge(w *world.World, dt, year float64) {
	p := m.cfg.EmergeChance * dt
	for i := 0; i < w.Len() && len(m.civs) < m.cfg.MaxCivilizations; i++ {
		cell := w.Cell(i)
		if cell.Life != world.LifeIntelligence || cell.Biomass() < m.cfg.EmergeBiomass || m.owner[i] != 0 {
			continue
		}
		if m.rng.Chance(p) {
			m.found(w, i, year)
		}
	}
}

// FoundAt founds a civilization centred on (x, y). The caller checks that the
// cell is valid land; the manager only refuses claimed cells.
func (m *Manager) FoundAt(w *world.World, x, y int, year float64) (*Civilization, bool) {
	m.ensureIndex(w.Len())
	i := w.Index(x, y)
	if m.owner[i] != 0 {
		return nil, false
	}
	return m.found(w, i, year), true
}

func (m *Manager) found(w *world.World, i int, year float64) *Civilization {
	x, y := w.Coords(i)
	c := &Civilization{
		ID:              m.nextID,
		Name:            m.names.next(m.rng),
		CenterX:         x,
		CenterY:         y,
		Territory:       make(map[int]struct{}),
		Population:      m.cfg.InitialPopulation,
		Stage:           StageTribal,
		Aggression:      m.rng.Float(),
		EcoFriendliness: m.rng.Float(),
		Founded:         year,
	}
	m.nextID++
	m.claim(w, c, i)
	m.civs = append(m.civs, c)
	m.byID[c.ID] = c
	slog.Info("civilization founded", "name", c.Name, "x", x, "y", y, "year", year)
	m.notify("founded", c, year, "")
	return c
}

// Capacity is the population the territory supports before it must expand.
func (m *Manager) Capacity(c *Civilization) float64 {
	return m.cfg.CellCapacity * float64(1+int(c.Stage)) * float64(c.Size())
}

func (m *Manager) grow(c *Civilization, dt, year float64) {
	carrying := m.Capacity(c) * m.cfg.Overcrowding
	if carrying > 0 {
		rate := m.cfg.GrowthRate * (0.5 + 0.5*c.EcoFriendliness)
		pop := float64(c.Population)
		pop += pop * rate * dt * (1 - pop/carrying)
		c.Population = max(0, int64(math.Round(pop)))
	}

	if m.rng.Chance(m.cfg.TechChance * dt) {
		c.Tech += m.cfg.TechStep * m.rng.Range(0.5, 1.5)
	}
	if c.advance() {
		slog.Info("civilization advanced", "name", c.Name, "stage", c.Stage, "year", year)
		m.notify("stage", c, year, c.Stage.String())
	}
}

func (m *Manager) habitable(cell *world.Cell) bool {
	t := cell.Temperature()
	return cell.IsLand() && !cell.IsIce() && cell.Life != world.LifeCivilization &&
		t >= m.cfg.MinHabitable && t <= m.cfg.MaxHabitable
}

// frontier returns the unclaimed habitable cells adjacent to the territory,
// in ascending index order.
func (m *Manager) frontier(w *world.World, c *Civilization) []int {
	var buf, out []int
	for _, i := range c.Cells() {
		for _, j := range w.NeighborIndices(buf[:0], i) {
			if m.owner[j] == 0 && m.habitable(w.Cell(j)) {
				out = append(out, j)
			}
		}
	}
	slices.Sort(out)
	return slices.Compact(out)
}

func (m *Manager) expand(w *world.World, c *Civilization, dt float64) {
	if float64(c.Population) <= m.Capacity(c) || !m.rng.Chance(m.cfg.ExpandChance*dt) {
		return
	}
	edge := m.frontier(w, c)
	if len(edge) == 0 {
		return
	}
	m.claim(w, c, edge[m.rng.Intn(len(edge))])
}

func (m *Manager) impact(w *world.World, c *Civilization, dt float64) {
	cfg := m.cfg
	eco := c.EcoFriendliness >= cfg.EcoThreshold
	pollution := cfg.Pollution * float64(c.Stage) * (1 - c.EcoFriendliness) * dt
	for _, i := range c.Cells() {
		cell := w.Cell(i)
		if pollution > 0 {
			cell.SetCO2(cell.CO2() + pollution)
		}
		if c.Stage >= StageIndustrial {
			cell.Engineered = true
		}
		switch {
		case eco && c.Stage >= StageScientific:
			cell.SetBiomass(cell.Biomass() + cfg.RestoreRate*dt)
			cell.SetCO2(cell.CO2() * (1 - math.Min(1, cfg.CaptureRate*dt)))
		case !eco && cell.Biome.Type.Forested() && m.rng.Chance(cfg.ClearChance*dt):
			cell.SetBiomass(cell.Biomass() * 0.5)
		}
	}
}

// neighbors returns the ids of civilizations sharing a border with c, sorted.
func (m *Manager) neighbors(w *world.World, c *Civilization) []uint64 {
	var buf []int
	var out []uint64
	for _, i := range c.Cells() {
		for _, j := range w.NeighborIndices(buf[:0], i) {
			if o := m.owner[j]; o != 0 && o != c.ID {
				out = append(out, o)
			}
		}
	}
	slices.Sort(out)
	return slices.Compact(out)
}

// border returns the cells of def adjacent to att's territory, sorted.
func (m *Manager) border(w *world.World, att, def *Civilization) []int {
	var buf, out []int
	for _, i := range def.Cells() {
		for _, j := range w.NeighborIndices(buf[:0], i) {
			if m.owner[j] == att.ID {
				out = append(out, i)
				break
			}
		}
	}
	return out
}

func (m *Manager) interact(w *world.World, dt, year float64) {
	cfg := m.cfg
	for _, a := range m.civs {
		for _, id := range m.neighbors(w, a) {
			b := m.byID[id]
			if b == nil || b.ID < a.ID || a.Dead || b.Dead {
				continue
			}
			switch {
			case a.Aggression >= cfg.WarAggression && b.Aggression >= cfg.WarAggression:
				if m.rng.Chance(cfg.WarChance * dt) {
					m.war(w, a, b, year)
				}
			case a.EcoFriendliness >= cfg.EcoThreshold && b.EcoFriendliness >= cfg.EcoThreshold:
				if m.rng.Chance(cfg.CoopChance * dt) {
					gap := b.Tech - a.Tech
					a.Tech += gap * cfg.CoopRate
					b.Tech -= gap * cfg.CoopRate
					a.advance()
					b.advance()
				}
			}
		}
	}
}

// war resolves one conflict. A tech gap of at least TechGap lets the stronger
// side annex border cells; otherwise both sides bleed.
func (m *Manager) war(w *world.World, a, b *Civilization, year float64) {
	cfg := m.cfg
	att, def := a, b
	if b.Tech > a.Tech {
		att, def = b, a
	}
	if att.Tech-def.Tech < cfg.TechGap {
		a.Population -= int64(float64(a.Population) * cfg.WarLoss / 2)
		b.Population -= int64(float64(b.Population) * cfg.WarLoss / 2)
		return
	}

	border := m.border(w, att, def)
	taken := 0
	for taken < cfg.MaxAnnex && len(border) > 0 {
		k := m.rng.Intn(len(border))
		i := border[k]
		border = slices.Delete(border, k, k+1)
		m.release(def, i)
		m.claim(w, att, i)
		taken++
	}
	def.Population -= int64(float64(def.Population) * cfg.WarLoss)
	slog.Info("war", "attacker", att.Name, "defender", def.Name, "annexed", taken, "year", year)
	m.notify("war", att, year, def.Name)
}

// Conditions returns the mean CO2 and temperature over the territory.
func Conditions(w *world.World, c *Civilization) (co2, temp float64) {
	n := c.Size()
	if n == 0 {
		return 0, 0
	}
	for _, i := range c.Cells() {
		co2 += w.Cell(i).CO2()
		temp += w.Cell(i).Temperature()
	}
	return co2 / float64(n), temp / float64(n)
}

func (m *Manager) checkCollapse(w *world.World, c *Civilization, year float64) {
	if c.Dead {
		return
	}
	cfg := m.cfg
	co2, temp := Conditions(w, c)
	if co2 > cfg.CollapseCO2 || temp < cfg.CollapseMinTemp || temp > cfg.CollapseMaxTemp {
		c.Population = int64(float64(c.Population) * (1 - cfg.CollapseLoss))
	}
	switch {
	case c.Size() == 0:
		m.collapse(w, c, year, "territory lost")
	case c.Population < cfg.MinPopulation:
		m.collapse(w, c, year, "population")
	}
}

// collapse reverts every owned cell to intelligence and marks c dead. It is
// removed from the active list by the next prune.
func (m *Manager) collapse(w *world.World, c *Civilization, year float64, reason string) {
	for _, i := range c.Cells() {
		cell := w.Cell(i)
		cell.Life = world.LifeIntelligence
		cell.Engineered = false
		m.release(c, i)
	}
	c.Dead = true
	slog.Info("civilization collapsed", "name", c.Name, "reason", reason, "year", year)
	m.notify("collapsed", c, year, reason)
}
