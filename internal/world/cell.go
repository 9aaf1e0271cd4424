// Package world provides the toroidal cell grid, the cell data model and the
// staged world-generation pipeline.
//
// The grid wraps horizontally (a cylinder) and clamps vertically at the poles.
// Every auxiliary record (geology, biome, weather, magnetic field, deposits) is a
// field of the cell itself and exists from construction onwards.
package world

import "math"

// Value ranges enforced by the cell setters.
const (
	MinElevation   = -1.0
	MaxElevation   = 1.0
	MinTemperature = -100.0
	MaxTemperature = 100.0
	MaxGasPercent  = 100.0
	MaxFloodWater  = 10.0

	// IceFlagThreshold is the ice thickness above which a cell counts as iced.
	IceFlagThreshold = 0.05
)

// BoundaryType is the relation between a cell's plate and an adjacent plate.
type BoundaryType uint8

const (
	BoundaryNone BoundaryType = iota
	BoundaryConvergent
	BoundaryDivergent
	BoundaryTransform
	boundaryCount
)

var boundaryNames = [boundaryCount]string{
	BoundaryNone:       "None",
	BoundaryConvergent: "Convergent",
	BoundaryDivergent:  "Divergent",
	BoundaryTransform:  "Transform",
}

func (b BoundaryType) String() string {
	if b >= boundaryCount {
		return "Unknown"
	}
	return boundaryNames[b]
}

// SedimentType is one layer of a sediment column.
type SedimentType uint8

const (
	SedimentSand SedimentType = iota
	SedimentSilt
	SedimentClay
	SedimentGravel
	SedimentLimestone
	SedimentShale
	SedimentSandstone
	SedimentConglomerate
	SedimentVolcanic
	SedimentOrganic
	SedimentEvaporite
	SedimentGlacialTill
	SedimentCount
)

var sedimentNames = [SedimentCount]string{
	SedimentSand:         "Sand",
	SedimentSilt:         "Silt",
	SedimentClay:         "Clay",
	SedimentGravel:       "Gravel",
	SedimentLimestone:    "Limestone",
	SedimentShale:        "Shale",
	SedimentSandstone:    "Sandstone",
	SedimentConglomerate: "Conglomerate",
	SedimentVolcanic:     "Volcanic Ash",
	SedimentOrganic:      "Organic",
	SedimentEvaporite:    "Evaporite",
	SedimentGlacialTill:  "Glacial Till",
}

func (s SedimentType) String() string {
	if s >= SedimentCount {
		return "Unknown"
	}
	return sedimentNames[s]
}

// BiomeType is a classified ecological regime.
type BiomeType uint8

const (
	BiomeNone BiomeType = iota
	BiomeOcean
	BiomeGlacier
	BiomeTundra
	BiomeTaiga
	BiomeMountain
	BiomeTemperateForest
	BiomeRainforest
	BiomeGrassland
	BiomeSavanna
	BiomeShrubland
	BiomeDesert
	BiomeWetland
	BiomeCount
)

var biomeNames = [BiomeCount]string{
	BiomeNone:            "None",
	BiomeOcean:           "Ocean",
	BiomeGlacier:         "Glacier",
	BiomeTundra:          "Tundra",
	BiomeTaiga:           "Taiga",
	BiomeMountain:        "Mountain",
	BiomeTemperateForest: "Temperate Forest",
	BiomeRainforest:      "Rainforest",
	BiomeGrassland:       "Grassland",
	BiomeSavanna:         "Savanna",
	BiomeShrubland:       "Shrubland",
	BiomeDesert:          "Desert",
	BiomeWetland:         "Wetland",
}

func (b BiomeType) String() string {
	if b >= BiomeCount {
		return "Unknown"
	}
	return biomeNames[b]
}

// Forested reports whether the biome is a forest of any kind.
func (b BiomeType) Forested() bool {
	return b == BiomeTemperateForest || b == BiomeRainforest || b == BiomeTaiga
}

// Geology is the per-cell tectonic and sedimentary state.
type Geology struct {
	PlateID       int          `json:"plate_id"`
	Boundary      BoundaryType `json:"boundary"`
	Stress        float64      `json:"stress"`         // 0..1, released as earthquakes
	MagmaPressure float64      `json:"magma_pressure"` // 0..1, reset by eruptions
	Volcanism     float64      `json:"volcanism"`      // 0..1, long-run activity level
	// Sediment is the ordered column, oldest layer first.
	Sediment    []SedimentType `json:"sediment"`
	CrustAge    float64        `json:"crust_age"` // years
	Igneous     float64        `json:"igneous"`
	Sedimentary float64        `json:"sedimentary"`
	Metamorphic float64        `json:"metamorphic"`

	// Accumulators for the column rules: a layer is appended or removed once
	// enough material has moved.
	Deposited float64 `json:"deposited"`
	Eroded    float64 `json:"eroded"`
}

// AppendSediment adds a layer on top of the column.
func (g *Geology) AppendSediment(t SedimentType) {
	g.Sediment = append(g.Sediment, t)
}

// ErodeTop removes the top layer. The bottom layer is bedrock cover and is
// never removed; returns false when nothing was eroded.
func (g *Geology) ErodeTop() bool {
	if len(g.Sediment) <= 1 {
		return false
	}
	g.Sediment = g.Sediment[:len(g.Sediment)-1]
	return true
}

// TopSediment returns the most recent layer.
func (g *Geology) TopSediment() (SedimentType, bool) {
	if len(g.Sediment) == 0 {
		return 0, false
	}
	return g.Sediment[len(g.Sediment)-1], true
}

// HasSediment reports whether the column contains the given type.
func (g *Geology) HasSediment(t SedimentType) bool {
	for _, s := range g.Sediment {
		if s == t {
			return true
		}
	}
	return false
}

// NormalizeRock rescales the rock fractions so they sum to 1.
func (g *Geology) NormalizeRock() {
	g.Igneous = math.Max(0, g.Igneous)
	g.Sedimentary = math.Max(0, g.Sedimentary)
	g.Metamorphic = math.Max(0, g.Metamorphic)
	sum := g.Igneous + g.Sedimentary + g.Metamorphic
	if sum <= 0 {
		g.Igneous, g.Sedimentary, g.Metamorphic = 1, 0, 0
		return
	}
	g.Igneous /= sum
	g.Sedimentary /= sum
	g.Metamorphic /= sum
}

// BiomeState is the per-cell biome record.
type BiomeState struct {
	Type             BiomeType `json:"type"`
	YearsSinceChange float64   `json:"years_since_change"`
}

// Meteorology is the per-cell weather record.
type Meteorology struct {
	WindX      float64 `json:"wind_x"`
	WindY      float64 `json:"wind_y"`
	Pressure   float64 `json:"pressure"` // hPa
	CloudCover float64 `json:"cloud_cover"`
	Storm      bool    `json:"storm"`
	// SeasonalAnomaly is the seasonal temperature offset (°C) the climate
	// simulator folds into its local target.
	SeasonalAnomaly float64 `json:"seasonal_anomaly"`
}

// Magnetic is the per-cell magnetosphere and radiation record.
type Magnetic struct {
	FieldStrength float64 `json:"field_strength"` // relative to present-day equator
	Shielding     float64 `json:"shielding"`      // 0..1
	Radiation     float64 `json:"radiation"`      // relative dose, 1 = baseline
	Aurora        bool    `json:"aurora"`
}

// Deposit is a typed resource deposit in a cell.
type Deposit struct {
	Type          ResourceType `json:"type"`
	Amount        float64      `json:"amount"`
	Concentration float64      `json:"concentration"` // 0..1
	Depth         float64      `json:"depth"`         // metres
}

// Cell is one grid unit. Clamped scalar fields are only reachable through
// setters, which clamp every write and ignore NaN.
type Cell struct {
	X, Y int

	elevation   float64
	temperature float64
	rainfall    float64
	humidity    float64
	biomass     float64
	oxygen      float64
	co2         float64
	ice         float64
	flood       float64

	// Greenhouse is extra local greenhouse forcing in °C (volcanic gases,
	// industry).
	Greenhouse float64
	Life       LifeForm
	// Engineered marks urbanised or otherwise engineered surfaces.
	Engineered bool

	// Derived flags, rebuilt from primary fields by World.Refresh.
	land bool
	iced bool

	Geology  Geology
	Biome    BiomeState
	Weather  Meteorology
	Magnetic Magnetic
	Deposits []Deposit
}

func (c *Cell) Elevation() float64 { return c.elevation }
func (c *Cell) Temperature() float64 { return c.temperature }
func (c *Cell) Rainfall() float64 { return c.rainfall }
func (c *Cell) Humidity() float64 { return c.humidity }
func (c *Cell) Biomass() float64 { return c.biomass }
func (c *Cell) Oxygen() float64 { return c.oxygen }
func (c *Cell) CO2() float64 { return c.co2 }
func (c *Cell) IceThickness() float64 { return c.ice }
func (c *Cell) FloodWater() float64 { return c.flood }

// IsLand reports whether the cell is above the current water level.
func (c *Cell) IsLand() bool { return c.land }

// IsWater reports whether the cell is at or below the current water level.
func (c *Cell) IsWater() bool { return !c.land }

// IsIce reports whether the cell carries enough ice to count as frozen.
func (c *Cell) IsIce() bool { return c.iced }

func (c *Cell) SetElevation(v float64) {
	if math.IsNaN(v) {
		return
	}
	c.elevation = Clamp(v, MinElevation, MaxElevation)
}

func (c *Cell) SetTemperature(v float64) {
	if math.IsNaN(v) {
		return
	}
	c.temperature = Clamp(v, MinTemperature, MaxTemperature)
}

func (c *Cell) SetRainfall(v float64) {
	if math.IsNaN(v) {
		return
	}
	c.rainfall = Clamp(v, 0, 1)
}

func (c *Cell) SetHumidity(v float64) {
	if math.IsNaN(v) {
		return
	}
	c.humidity = Clamp(v, 0, 1)
}

func (c *Cell) SetBiomass(v float64) {
	if math.IsNaN(v) {
		return
	}
	c.biomass = Clamp(v, 0, 1)
}

func (c *Cell) SetOxygen(v float64) {
	if math.IsNaN(v) {
		return
	}
	c.oxygen = Clamp(v, 0, MaxGasPercent)
}

func (c *Cell) SetCO2(v float64) {
	if math.IsNaN(v) {
		return
	}
	c.co2 = Clamp(v, 0, MaxGasPercent)
}

// SetIceThickness writes the ice thickness and refreshes the ice flag.
func (c *Cell) SetIceThickness(v float64) {
	if math.IsNaN(v) {
		return
	}
	c.ice = Clamp(v, 0, 1)
	c.iced = c.ice >= IceFlagThreshold
}

func (c *Cell) SetFloodWater(v float64) {
	if math.IsNaN(v) {
		return
	}
	c.flood = Clamp(v, 0, MaxFloodWater)
}

// AddDeposit merges d into the cell's deposits. A deposit of an existing type
// adds to its amount and keeps the richer concentration.
func (c *Cell) AddDeposit(d Deposit) {
	if d.Amount <= 0 || !finite(d.Amount) {
		return
	}
	d.Concentration = Clamp(d.Concentration, 0, 1)
	for i := range c.Deposits {
		if c.Deposits[i].Type == d.Type {
			c.Deposits[i].Amount += d.Amount
			c.Deposits[i].Concentration = math.Max(c.Deposits[i].Concentration, d.Concentration)
			return
		}
	}
	c.Deposits = append(c.Deposits, d)
}

// HasDeposit reports whether the cell holds a deposit of the given type.
func (c *Cell) HasDeposit(t ResourceType) bool {
	for _, d := range c.Deposits {
		if d.Type == t {
			return true
		}
	}
	return false
}

// refresh recomputes the derived flags against the given water level.
func (c *Cell) refresh(waterLevel float64) {
	c.land = c.elevation > waterLevel
	c.iced = c.ice >= IceFlagThreshold
}
