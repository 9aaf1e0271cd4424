// Package disease spreads pathogens through civilization territory.
package disease

import (
	"fmt"
	"log/slog"
	"maps"
	"slices"

	"github.com/google/uuid"

	"github.com/talgya/planetsim/internal/civilization"
	"github.com/talgya/planetsim/internal/entropy"
	"github.com/talgya/planetsim/internal/world"
)

// Hosts is the view of the civilizations a pathogen can infect.
type Hosts interface {
	Active() []*civilization.Civilization
	Get(id uint64) *civilization.Civilization
	Owner(i int) uint64
}

// Config holds the disease tunables. Rates are per simulated year.
type Config struct {
	OutbreakChance float64 `yaml:"outbreak_chance"`
	Density        float64 `yaml:"density"` // people per cell before outbreaks can start
	MaxOutbreaks   int     `yaml:"max_outbreaks"`
	MinInfectivity float64 `yaml:"min_infectivity"`
	MaxInfectivity float64 `yaml:"max_infectivity"`
	MinLethality   float64 `yaml:"min_lethality"`
	MaxLethality   float64 `yaml:"max_lethality"`
	Recovery       float64 `yaml:"recovery"` // years a cell stays infected
	ImmunityGain   float64 `yaml:"immunity_gain"`
	ImmunityDecay  float64 `yaml:"immunity_decay"`
	MaxAge         float64 `yaml:"max_age"`
}

// DefaultConfig returns the standard disease tunables.
func DefaultConfig() Config {
	return Config{
		OutbreakChance: 0.01,
		Density:        1500,
		MaxOutbreaks:   8,
		MinInfectivity: 0.2,
		MaxInfectivity: 0.6,
		MinLethality:   0.02,
		MaxLethality:   0.15,
		Recovery:       2,
		ImmunityGain:   0.1,
		ImmunityDecay:  0.02,
		MaxAge:         25,
	}
}

// Outbreak is one active pathogen.
type Outbreak struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	Origin      uint64    `json:"origin"` // civilization id
	Infectivity float64   `json:"infectivity"`
	Lethality   float64   `json:"lethality"`
	Age         float64   `json:"age"`
	Deaths      int64     `json:"deaths"`
	// Infected maps cell index to years infected.
	Infected map[int]float64 `json:"infected"`
}

// Clone returns a deep copy.
func (o *Outbreak) Clone() Outbreak {
	cp := *o
	cp.Infected = maps.Clone(o.Infected)
	return cp
}

// Notice reports an outbreak starting or ending.
type Notice struct {
	Kind   string // outbreak, ended
	Name   string
	Host   string
	X, Y   int
	Deaths int64
}

var strains = []string{"Fever", "Pox", "Blight", "Plague", "Cough", "Rot", "Flux"}

// Manager runs every outbreak.
type Manager struct {
	cfg   Config
	rng   *entropy.Stream
	hosts Hosts

	outbreaks []*Outbreak
	immunity  map[uint64]float64 // civilization id -> 0..1
	pending   []int
	notices   []Notice
}

// NewManager creates a disease manager with its private stream.
func NewManager(cfg Config, seed int64, hosts Hosts) *Manager {
	return &Manager{
		cfg:      cfg,
		rng:      entropy.NewStream(seed, entropy.OffsetDisease),
		hosts:    hosts,
		immunity: make(map[uint64]float64),
	}
}

// Outbreaks returns deep copies of the active outbreaks.
func (m *Manager) Outbreaks() []Outbreak {
	out := make([]Outbreak, 0, len(m.outbreaks))
	for _, o := range m.outbreaks {
		out = append(out, o.Clone())
	}
	return out
}

// SetOutbreaks replaces the active outbreaks, used on restore.
func (m *Manager) SetOutbreaks(obs []Outbreak) {
	m.outbreaks = m.outbreaks[:0]
	for k := range obs {
		o := obs[k].Clone()
		if o.Infected == nil {
			o.Infected = make(map[int]float64)
		}
		m.outbreaks = append(m.outbreaks, &o)
	}
}

// Immunity returns the immunity of a civilization.
func (m *Manager) Immunity(civ uint64) float64 {
	return m.immunity[civ]
}

// DrainNotices returns the notices since the last call.
func (m *Manager) DrainNotices() []Notice {
	n := m.notices
	m.notices = nil
	return n
}

// Update runs one disease tick.
func (m *Manager) Update(w *world.World, dt, year float64) {
	m.decayImmunity(dt)
	m.start(w, dt, year)
	for _, o := range m.outbreaks {
		m.spread(w, o, dt)
		m.strike(o, dt)
		o.Age += dt
	}
	m.end(year)
}

func (m *Manager) decayImmunity(dt float64) {
	for id, v := range m.immunity {
		if m.hosts.Get(id) == nil {
			delete(m.immunity, id)
			continue
		}
		m.immunity[id] = max(0, v-m.cfg.ImmunityDecay*dt)
	}
}

// Dense reports whether a civilization is crowded enough to breed outbreaks.
func (m *Manager) Dense(c *civilization.Civilization) bool {
	return c.Size() > 0 && float64(c.Population)/float64(c.Size()) >= m.cfg.Density
}

func (m *Manager) start(w *world.World, dt, year float64) {
	for _, c := range m.hosts.Active() {
		if len(m.outbreaks) >= m.cfg.MaxOutbreaks {
			return
		}
		if !m.Dense(c) || m.infects(c.ID) {
			continue
		}
		if !m.rng.Chance(m.cfg.OutbreakChance * dt * (1 - m.immunity[c.ID])) {
			continue
		}
		cells := c.Cells()
		origin := cells[m.rng.Intn(len(cells))]
		id := m.rng.ID()
		o := &Outbreak{
			ID:          id,
			Name:        fmt.Sprintf("%s %s", strains[m.rng.Intn(len(strains))], id.String()[:4]),
			Origin:      c.ID,
			Infectivity: m.rng.Range(m.cfg.MinInfectivity, m.cfg.MaxInfectivity),
			Lethality:   m.rng.Range(m.cfg.MinLethality, m.cfg.MaxLethality),
			Infected:    map[int]float64{origin: 0},
		}
		m.outbreaks = append(m.outbreaks, o)
		x, y := w.Coords(origin)
		slog.Info("outbreak", "name", o.Name, "host", c.Name, "year", year)
		m.notices = append(m.notices, Notice{Kind: "outbreak", Name: o.Name, Host: c.Name, X: x, Y: y})
	}
}

// infects reports whether any outbreak already holds cells of civ.
func (m *Manager) infects(civ uint64) bool {
	for _, o := range m.outbreaks {
		for i := range o.Infected {
			if m.hosts.Owner(i) == civ {
				return true
			}
		}
	}
	return false
}

// spread infects owned neighbors of infected cells, including cells of
// bordering civilizations. New infections are buffered until the scan ends.
func (m *Manager) spread(w *world.World, o *Outbreak, dt float64) {
	m.pending = m.pending[:0]
	var buf []int
	for _, i := range slices.Sorted(maps.Keys(o.Infected)) {
		for _, j := range w.NeighborIndices(buf[:0], i) {
			owner := m.hosts.Owner(j)
			if owner == 0 {
				continue
			}
			if _, ok := o.Infected[j]; ok || slices.Contains(m.pending, j) {
				continue
			}
			if m.rng.Chance(o.Infectivity * dt * (1 - m.immunity[owner])) {
				m.pending = append(m.pending, j)
			}
		}
	}
	for _, j := range m.pending {
		o.Infected[j] = 0
	}
}

// strike kills the lethal share of each infected cell's people and lets cells
// that have carried the pathogen long enough recover.
func (m *Manager) strike(o *Outbreak, dt float64) {
	for _, i := range slices.Sorted(maps.Keys(o.Infected)) {
		c := m.hosts.Get(m.hosts.Owner(i))
		if c == nil {
			delete(o.Infected, i)
			continue
		}
		share := float64(c.Population) / float64(c.Size())
		deaths := min(c.Population, int64(share*min(1, o.Lethality*dt)))
		c.Population -= deaths
		o.Deaths += deaths

		o.Infected[i] += dt
		if o.Infected[i] >= m.cfg.Recovery {
			delete(o.Infected, i)
			m.immunity[c.ID] = min(1, m.immunity[c.ID]+m.cfg.ImmunityGain)
		}
	}
}

func (m *Manager) end(year float64) {
	m.outbreaks = slices.DeleteFunc(m.outbreaks, func(o *Outbreak) bool {
		if len(o.Infected) > 0 && o.Age < m.cfg.MaxAge {
			return false
		}
		slog.Info("outbreak ended", "name", o.Name, "deaths", o.Deaths, "year", year)
		m.notices = append(m.notices, Notice{Kind: "ended", Name: o.Name, Deaths: o.Deaths})
		return true
	})
}
