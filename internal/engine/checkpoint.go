package engine

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/talgya/planetsim/internal/civilization"
	"github.com/talgya/planetsim/internal/disaster"
	"github.com/talgya/planetsim/internal/disease"
	"github.com/talgya/planetsim/internal/magnetosphere"
	"github.com/talgya/planetsim/internal/weather"
	"github.com/talgya/planetsim/internal/world"
)

// CivilizationState is a civilization with its territory as a cell list.
type CivilizationState struct {
	civilization.Civilization
	Cells []int `json:"cells"`
}

// Checkpoint is a complete, self-contained copy of the simulation's primary
// state. Derived flags and caches are rebuilt on restore.
type Checkpoint struct {
	ID      uuid.UUID `json:"id"`
	Created time.Time `json:"created"`
	Year    float64   `json:"year"`
	Tick    uint64    `json:"tick"`

	Options    world.GenOptions  `json:"options"`
	WaterLevel float64           `json:"water_level"`
	Globals    world.Globals     `json:"globals"`
	Cells      []world.CellState `json:"cells"`

	Civilizations []CivilizationState `json:"civilizations"`
	Storms        []weather.Storm     `json:"storms"`
	Outbreaks     []disease.Outbreak  `json:"outbreaks"`
	Disasters     []disaster.Event    `json:"disasters"`
	Waves         disaster.WaveState  `json:"waves"`
	Magnetosphere magnetosphere.State `json:"magnetosphere"`
	Events        []Event             `json:"events"`
}

// Checkpoint captures the current state between ticks.
func (s *Simulation) Checkpoint() *Checkpoint {
	w := s.World
	w.Lock()
	defer w.Unlock()

	cp := &Checkpoint{
		ID:            uuid.New(),
		Created:       time.Now().UTC(),
		Year:          s.Year,
		Tick:          s.LastTick,
		Options:       w.Options,
		WaterLevel:    w.WaterLevel,
		Globals:       w.Globals,
		Cells:         w.Snapshot(),
		Storms:        s.Weather.Storms(),
		Outbreaks:     s.Disease.Outbreaks(),
		Disasters:     s.Disasters.Events(),
		Waves:         s.Disasters.Waves(),
		Magnetosphere: s.Magnetosphere.State(),
		Events:        append([]Event(nil), s.Events...),
	}
	for _, c := range s.Civilizations.Snapshot() {
		cp.Civilizations = append(cp.Civilizations, CivilizationState{Civilization: c, Cells: c.Cells()})
	}
	return cp
}

// Restore replaces the simulation state with cp. The grid must have the same
// dimensions.
func (s *Simulation) Restore(cp *Checkpoint) error {
	w := s.World
	w.Lock()
	defer w.Unlock()

	if cp.Options.Width != w.Width || cp.Options.Height != w.Height {
		return fmt.Errorf("checkpoint grid %dx%d does not match world %dx%d",
			cp.Options.Width, cp.Options.Height, w.Width, w.Height)
	}
	w.Options = cp.Options
	w.WaterLevel = cp.WaterLevel
	if err := w.Load(cp.Cells); err != nil {
		return fmt.Errorf("restore cells: %w", err)
	}

	civs := make([]civilization.Civilization, 0, len(cp.Civilizations))
	for _, cs := range cp.Civilizations {
		c := cs.Civilization
		c.Territory = make(map[int]struct{}, len(cs.Cells))
		for _, i := range cs.Cells {
			if i >= 0 && i < w.Len() {
				c.Territory[i] = struct{}{}
			}
		}
		civs = append(civs, c)
	}
	s.Civilizations.Restore(w, civs)
	s.Weather.SetStorms(cp.Storms)
	s.Disease.SetOutbreaks(cp.Outbreaks)
	s.Disasters.SetEvents(cp.Disasters)
	s.Disasters.SetWaves(w, cp.Waves)
	s.Magnetosphere.SetState(cp.Magnetosphere)
	s.Climate.Reset()

	s.Year = cp.Year
	s.LastTick = cp.Tick
	s.Events = append(s.Events[:0], cp.Events...)
	s.seen = make(map[uuid.UUID]struct{}, len(cp.Disasters))
	for _, e := range cp.Disasters {
		s.seen[e.ID] = struct{}{}
	}

	w.Aggregate()
	s.updateStats()
	slog.Info("checkpoint restored",
		"id", cp.ID,
		"year", cp.Year,
		"tick", cp.Tick,
		"civilizations", len(civs),
	)
	return nil
}

// FromCheckpoint builds a simulation around a fresh grid of the checkpoint's
// size and restores cp into it.
func FromCheckpoint(cp *Checkpoint, cfg Config) (*Simulation, error) {
	w := world.New(cp.Options.Width, cp.Options.Height)
	w.Options = cp.Options
	s := NewSimulation(w, cfg)
	if err := s.Restore(cp); err != nil {
		return nil, err
	}
	return s, nil
}
