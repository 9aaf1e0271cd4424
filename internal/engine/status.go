package engine

import (
	"github.com/talgya/planetsim/internal/weather"
	"github.com/talgya/planetsim/internal/world"
)

// Status is a point-in-time summary for presentation consumers.
type Status struct {
	Year   float64 `json:"year"`
	Tick   uint64  `json:"tick"`
	Width  int     `json:"width"`
	Height int     `json:"height"`
	Seed   int64   `json:"seed"`
	Season string  `json:"season"` // northern hemisphere
	Stats  Stats   `json:"stats"`
}

// CellReport is a read-only view of one cell.
type CellReport struct {
	X            int               `json:"x"`
	Y            int               `json:"y"`
	Latitude     float64           `json:"latitude"`
	Elevation    float64           `json:"elevation"`
	Temperature  float64           `json:"temperature"`
	Rainfall     float64           `json:"rainfall"`
	Humidity     float64           `json:"humidity"`
	Biomass      float64           `json:"biomass"`
	Oxygen       float64           `json:"oxygen"`
	CO2          float64           `json:"co2"`
	Ice          float64           `json:"ice"`
	Flood        float64           `json:"flood"`
	Land         bool              `json:"land"`
	Biome        string            `json:"biome"`
	Life         string            `json:"life"`
	Engineered   bool              `json:"engineered"`
	Boundary     string            `json:"boundary"`
	Sediment     []string          `json:"sediment"`
	Weather      world.Meteorology `json:"weather"`
	Magnetic     world.Magnetic    `json:"magnetic"`
	Deposits     []world.Deposit   `json:"deposits,omitempty"`
	Civilization string            `json:"civilization,omitempty"`
	WaveHeight   float64           `json:"wave_height,omitempty"`
}

// View runs fn with the world lock held. fn must not retain references to
// simulation state after it returns.
func (s *Simulation) View(fn func(s *Simulation)) {
	s.World.Lock()
	defer s.World.Unlock()
	fn(s)
}

// Status returns the current summary.
func (s *Simulation) Status() Status {
	s.World.Lock()
	defer s.World.Unlock()
	return Status{
		Year:   s.Year,
		Tick:   s.LastTick,
		Width:  s.World.Width,
		Height: s.World.Height,
		Seed:   s.World.Options.Seed,
		Season: weather.SeasonAt(s.Year, 45).String(),
		Stats:  s.Stats,
	}
}

// Cell returns a report on (x, y). Columns wrap; rows out of range fail.
func (s *Simulation) Cell(x, y int) (CellReport, error) {
	w := s.World
	w.Lock()
	defer w.Unlock()

	i, err := s.locate(x, y)
	if err != nil {
		return CellReport{}, err
	}
	c := w.Cell(i)
	r := CellReport{
		X:           c.X,
		Y:           c.Y,
		Latitude:    w.Latitude(c.Y),
		Elevation:   c.Elevation(),
		Temperature: c.Temperature(),
		Rainfall:    c.Rainfall(),
		Humidity:    c.Humidity(),
		Biomass:     c.Biomass(),
		Oxygen:      c.Oxygen(),
		CO2:         c.CO2(),
		Ice:         c.IceThickness(),
		Flood:       c.FloodWater(),
		Land:        c.IsLand(),
		Biome:       c.Biome.Type.String(),
		Life:        c.Life.String(),
		Engineered:  c.Engineered,
		Boundary:    c.Geology.Boundary.String(),
		Weather:     c.Weather,
		Magnetic:    c.Magnetic,
		Deposits:    append([]world.Deposit(nil), c.Deposits...),
		WaveHeight:  s.Disasters.WaveHeight(i),
	}
	for _, t := range c.Geology.Sediment {
		r.Sediment = append(r.Sediment, t.String())
	}
	if civ := s.Civilizations.Get(s.Civilizations.Owner(i)); civ != nil {
		r.Civilization = civ.Name
	}
	return r, nil
}
