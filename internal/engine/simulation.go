// Simulation ties together all planet simulators and runs them each tick.
package engine

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"

	"github.com/talgya/planetsim/internal/biome"
	"github.com/talgya/planetsim/internal/civilization"
	"github.com/talgya/planetsim/internal/climate"
	"github.com/talgya/planetsim/internal/disaster"
	"github.com/talgya/planetsim/internal/disease"
	"github.com/talgya/planetsim/internal/ecosystem"
	"github.com/talgya/planetsim/internal/entropy"
	"github.com/talgya/planetsim/internal/geology"
	"github.com/talgya/planetsim/internal/magnetosphere"
	"github.com/talgya/planetsim/internal/weather"
	"github.com/talgya/planetsim/internal/world"
)

// Config collects every simulator's tunables.
type Config struct {
	Climate       climate.Config       `yaml:"climate"`
	Geology       geology.Config       `yaml:"geology"`
	Weather       weather.Config       `yaml:"weather"`
	Magnetosphere magnetosphere.Config `yaml:"magnetosphere"`
	Biome         biome.Config         `yaml:"biome"`
	Ecosystem     ecosystem.Config     `yaml:"ecosystem"`
	Civilization  civilization.Config  `yaml:"civilization"`
	Disease       disease.Config       `yaml:"disease"`
	Disaster      disaster.Config      `yaml:"disaster"`
	// MaxEvents bounds the event log; older events are trimmed.
	MaxEvents int `yaml:"max_events"`
}

// DefaultConfig returns the standard tunables for every simulator.
func DefaultConfig() Config {
	return Config{
		Climate:       climate.DefaultConfig(),
		Geology:       geology.DefaultConfig(),
		Weather:       weather.DefaultConfig(),
		Magnetosphere: magnetosphere.DefaultConfig(),
		Biome:         biome.DefaultConfig(),
		Ecosystem:     ecosystem.DefaultConfig(),
		Civilization:  civilization.DefaultConfig(),
		Disease:       disease.DefaultConfig(),
		Disaster:      disaster.DefaultConfig(),
		MaxEvents:     1000,
	}
}

// Event is a notable occurrence on the planet.
type Event struct {
	Tick        uint64         `json:"tick"`
	Year        float64        `json:"year"`
	Description string         `json:"description"`
	Category    string         `json:"category"` // "civilization", "disease", "disaster", "intervention", ...
	Meta        map[string]any `json:"meta,omitempty"`
}

// Stats summarises the planet after the last tick.
type Stats struct {
	Globals       world.Globals `json:"globals"`
	WaterLevel    float64       `json:"water_level"`
	Civilizations int           `json:"civilizations"`
	Population    int64         `json:"population"`
	Storms        int           `json:"storms"`
	Outbreaks     int           `json:"outbreaks"`
	Disasters     int           `json:"disasters"`
	BiomeChanges  int           `json:"biome_changes"`
	Evolutions    int           `json:"evolutions"`
	Dipole        float64       `json:"dipole"`
}

// Simulation holds the complete planet state and wires simulators together.
// Every exported method that touches the grid takes the world lock.
type Simulation struct {
	World *world.World

	Climate       *climate.Simulator
	Geology       *geology.Simulator
	Weather       *weather.Simulator
	Magnetosphere *magnetosphere.Simulator
	Biome         *biome.Simulator
	Ecosystem     *ecosystem.Simulator
	Civilizations *civilization.Manager
	Disease       *disease.Manager
	Disasters     *disaster.Propagator

	Year     float64 // simulated years elapsed
	LastTick uint64  // most recent tick processed
	Events   []Event
	Stats    Stats

	cfg  Config
	rng  *entropy.Stream // interventions only
	seen map[uuid.UUID]struct{}

	subMu   sync.Mutex
	subs    map[int]chan Event
	nextSub int
}

// NewSimulation wires every simulator to w. Each simulator draws from its own
// stream derived from the world seed. Biomes are classified once without
// gating.
func NewSimulation(w *world.World, cfg Config) *Simulation {
	seed := w.Options.Seed
	civs := civilization.NewManager(cfg.Civilization, seed)
	s := &Simulation{
		World:         w,
		Climate:       climate.New(cfg.Climate, seed),
		Geology:       geology.New(cfg.Geology, seed),
		Weather:       weather.New(cfg.Weather, seed),
		Magnetosphere: magnetosphere.New(cfg.Magnetosphere, seed),
		Biome:         biome.New(cfg.Biome, seed),
		Ecosystem:     ecosystem.New(cfg.Ecosystem, seed),
		Civilizations: civs,
		Disease:       disease.NewManager(cfg.Disease, seed, civs),
		Disasters:     disaster.New(cfg.Disaster, seed, civs),
		cfg:           cfg,
		rng:           entropy.NewStream(seed, entropy.OffsetIntervention),
		seen:          make(map[uuid.UUID]struct{}),
	}
	s.Biome.Initialize(w)
	w.Aggregate()
	s.updateStats()
	return s
}

// Config returns the tunables the simulation was built with.
func (s *Simulation) Config() Config {
	return s.cfg
}

// CurrentTick returns the most recently processed tick number.
func (s *Simulation) CurrentTick() uint64 {
	return s.LastTick
}

// Tick advances the planet by dt years. Simulators run in a fixed order under
// the world lock; the year only moves once the whole tick has run.
func (s *Simulation) Tick(dt float64) {
	w := s.World
	w.Lock()
	defer w.Unlock()

	year := s.Year
	s.Climate.Update(w, dt, year)
	s.Geology.Update(w, dt, year)
	s.Disasters.Quakes(s.Geology.DrainQuakes())
	s.Weather.Update(w, dt, year)
	s.Magnetosphere.Update(w, dt, year)
	s.Biome.Update(w, dt, year)
	s.Ecosystem.Update(w, dt, year)
	s.Civilizations.Update(w, dt, year)
	s.Disease.Update(w, dt, year)
	s.Disasters.Update(w, dt, year)
	w.Aggregate()

	s.Year += dt
	s.LastTick++
	s.collectNotices()
	s.updateStats()
}

// EmitEvent appends an event to the log and trims the oldest beyond MaxEvents.
// Callers hold the world lock.
func (s *Simulation) EmitEvent(e Event) {
	if e.Tick == 0 {
		e.Tick = s.LastTick
	}
	s.Events = append(s.Events, e)
	if limit := s.cfg.MaxEvents; limit > 0 && len(s.Events) > limit {
		s.Events = append(s.Events[:0], s.Events[len(s.Events)-limit:]...)
	}
	s.broadcast(e)
}

// collectNotices turns simulator notices into log events.
func (s *Simulation) collectNotices() {
	for _, n := range s.Civilizations.DrainNotices() {
		desc := fmt.Sprintf("%s %s", n.Name, n.Kind)
		switch n.Kind {
		case "founded":
			desc = fmt.Sprintf("The %s civilization arises at (%d,%d)", n.Name, n.X, n.Y)
		case "stage":
			desc = fmt.Sprintf("%s enters the %s age", n.Name, n.Detail)
		case "war":
			desc = fmt.Sprintf("%s goes to war with %s", n.Name, n.Detail)
		case "collapsed":
			desc = fmt.Sprintf("%s has collapsed (%s)", n.Name, n.Detail)
		}
		s.EmitEvent(Event{
			Year:        n.Year,
			Description: desc,
			Category:    "civilization",
			Meta:        map[string]any{"civilization_id": n.CivID, "kind": n.Kind},
		})
	}
	for _, n := range s.Disease.DrainNotices() {
		desc := fmt.Sprintf("%s breaks out in %s", n.Name, n.Host)
		if n.Kind == "ended" {
			desc = fmt.Sprintf("%s burns out after %s deaths", n.Name, humanize.Comma(n.Deaths))
		}
		s.EmitEvent(Event{
			Year:        s.Year,
			Description: desc,
			Category:    "disease",
			Meta:        map[string]any{"kind": n.Kind, "x": n.X, "y": n.Y},
		})
	}
	s.collectDisasters("disaster")
}

// collectDisasters logs disaster events not reported before and forgets the
// ones that have faded.
func (s *Simulation) collectDisasters(category string) {
	evs := s.Disasters.Events()
	live := make(map[uuid.UUID]struct{}, len(evs))
	for _, e := range evs {
		live[e.ID] = struct{}{}
		if _, ok := s.seen[e.ID]; ok {
			continue
		}
		s.EmitEvent(Event{
			Year:        s.Year,
			Description: fmt.Sprintf("%s at (%d,%d), intensity %.2f", e.Kind, e.X, e.Y, e.Intensity),
			Category:    category,
			Meta:        map[string]any{"kind": e.Kind.String(), "x": e.X, "y": e.Y, "id": e.ID.String()},
		})
	}
	s.seen = live
}

func (s *Simulation) updateStats() {
	st := Stats{
		Globals:      s.World.Globals,
		WaterLevel:   s.World.WaterLevel,
		Storms:       len(s.Weather.Storms()),
		Outbreaks:    len(s.Disease.Outbreaks()),
		Disasters:    len(s.Disasters.Events()),
		BiomeChanges: s.Biome.Changes,
		Evolutions:   s.Ecosystem.Evolved,
		Dipole:       s.Magnetosphere.Effective(),
	}
	for _, c := range s.Civilizations.Active() {
		st.Civilizations++
		st.Population += c.Population
	}
	s.Stats = st
}

// Report logs a summary line of the current state.
func (s *Simulation) Report() {
	st := s.Status()
	slog.Info("planet report",
		"year", humanize.Ftoa(st.Year),
		"tick", st.Tick,
		"mean_temp", fmt.Sprintf("%.2f", st.Stats.Globals.Temperature),
		"oxygen", fmt.Sprintf("%.2f", st.Stats.Globals.Oxygen),
		"co2", fmt.Sprintf("%.3f", st.Stats.Globals.CO2),
		"land", fmt.Sprintf("%.3f", st.Stats.Globals.LandFraction),
		"biomass", fmt.Sprintf("%.1f", st.Stats.Globals.TotalBiomass),
		"life_cells", humanize.Comma(int64(st.Stats.Globals.LifeCells)),
		"civilizations", st.Stats.Civilizations,
		"population", humanize.Comma(st.Stats.Population),
		"storms", st.Stats.Storms,
		"outbreaks", st.Stats.Outbreaks,
	)
}
