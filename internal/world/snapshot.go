package world

import "fmt"

// CellState is the persisted form of a cell: primary fields only. Derived
// flags are rebuilt on restore.
type CellState struct {
	Elevation   float64     `json:"elevation"`
	Temperature float64     `json:"temperature"`
	Rainfall    float64     `json:"rainfall"`
	Humidity    float64     `json:"humidity"`
	Biomass     float64     `json:"biomass"`
	Oxygen      float64     `json:"oxygen"`
	CO2         float64     `json:"co2"`
	Ice         float64     `json:"ice"`
	Flood       float64     `json:"flood"`
	Greenhouse  float64     `json:"greenhouse"`
	Life        LifeForm    `json:"life"`
	Engineered  bool        `json:"engineered"`
	Geology     Geology     `json:"geology"`
	Biome       BiomeState  `json:"biome"`
	Weather     Meteorology `json:"weather"`
	Magnetic    Magnetic    `json:"magnetic"`
	Deposits    []Deposit   `json:"deposits"`
}

// State returns a deep copy of the cell's primary fields.
func (c *Cell) State() CellState {
	g := c.Geology
	g.Sediment = append([]SedimentType(nil), c.Geology.Sediment...)
	return CellState{
		Elevation:   c.elevation,
		Temperature: c.temperature,
		Rainfall:    c.rainfall,
		Humidity:    c.humidity,
		Biomass:     c.biomass,
		Oxygen:      c.oxygen,
		CO2:         c.co2,
		Ice:         c.ice,
		Flood:       c.flood,
		Greenhouse:  c.Greenhouse,
		Life:        c.Life,
		Engineered:  c.Engineered,
		Geology:     g,
		Biome:       c.Biome,
		Weather:     c.Weather,
		Magnetic:    c.Magnetic,
		Deposits:    append([]Deposit(nil), c.Deposits...),
	}
}

// SetState writes s into the cell through the clamping setters. The caller
// refreshes derived flags afterwards.
func (c *Cell) SetState(s CellState) {
	c.SetElevation(s.Elevation)
	c.SetTemperature(s.Temperature)
	c.SetRainfall(s.Rainfall)
	c.SetHumidity(s.Humidity)
	c.SetBiomass(s.Biomass)
	c.SetOxygen(s.Oxygen)
	c.SetCO2(s.CO2)
	c.SetIceThickness(s.Ice)
	c.SetFloodWater(s.Flood)
	c.Greenhouse = s.Greenhouse
	if s.Life < LifeFormCount {
		c.Life = s.Life
	}
	c.Engineered = s.Engineered
	c.Geology = s.Geology
	c.Geology.Sediment = append([]SedimentType(nil), s.Geology.Sediment...)
	c.Biome = s.Biome
	c.Weather = s.Weather
	c.Magnetic = s.Magnetic
	c.Deposits = append([]Deposit(nil), s.Deposits...)
}

// Snapshot returns the state of every cell in index order.
func (w *World) Snapshot() []CellState {
	out := make([]CellState, len(w.cells))
	for i := range w.cells {
		out[i] = w.cells[i].State()
	}
	return out
}

// Load replaces every cell's state and rebuilds derived flags. The slice must
// match the grid size.
func (w *World) Load(states []CellState) error {
	if len(states) != len(w.cells) {
		return fmt.Errorf("cell count %d does not match %dx%d grid", len(states), w.Width, w.Height)
	}
	for i := range states {
		w.cells[i].SetState(states[i])
	}
	w.Reclassify()
	return nil
}
