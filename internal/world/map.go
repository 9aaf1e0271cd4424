package world

import (
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/floats"
)

// Default atmosphere for a freshly constructed world.
const (
	DefaultOxygen      = 21.0 // percent
	DefaultCO2         = 0.04 // percent
	DefaultTemperature = 15.0
)

// Globals are planet-wide aggregates. They are rebuilt once per tick by
// Aggregate; simulators read them but never scan the grid to derive them.
type Globals struct {
	Temperature   float64 `json:"temperature"`
	Oxygen        float64 `json:"oxygen"`
	CO2           float64 `json:"co2"`
	SolarEnergy   float64 `json:"solar_energy"` // 1.0 = present-day Earth
	LandIceVolume float64 `json:"land_ice_volume"`
	LandFraction  float64 `json:"land_fraction"`
	TotalBiomass  float64 `json:"total_biomass"`
	MeanRainfall  float64 `json:"mean_rainfall"`
	LifeCells     int     `json:"life_cells"`
}

// Neighbor is an adjacent cell with its wrapped coordinates.
type Neighbor struct {
	X, Y int
	Cell *Cell
}

// Fixed neighbor order: NW, N, NE, W, E, SW, S, SE. Majority votes and
// diffusion averages depend on it.
var neighborOffsets = [8][2]int{
	{-1, -1}, {0, -1}, {1, -1},
	{-1, 0}, {1, 0},
	{-1, 1}, {0, 1}, {1, 1},
}

// World holds the complete cell grid and planet-wide state.
type World struct {
	mu sync.Mutex

	Width   int        `json:"width"`
	Height  int        `json:"height"`
	Options GenOptions `json:"options"`
	Globals Globals    `json:"globals"`
	// WaterLevel is the offset of sea level from elevation 0, moved by the
	// land-ice feedback.
	WaterLevel float64 `json:"water_level"`
	// Workers bounds the goroutines used by ForEachRow. 1 runs passes inline.
	Workers int `json:"-"`

	cells     []Cell
	nbr       []int32 // 8 slots per cell, -1 where the pole cuts the neighborhood
	nbrCount  []uint8
	latitudes []float64
	scratch   []float64
}

// New creates a flat, water-covered world of the given size. Dimensions below
// 1 are raised to 1.
func New(width, height int) *World {
	if width < 1 {
		width = 1
	}
	if height < 1 {
		height = 1
	}
	n := width * height
	w := &World{
		Width:     width,
		Height:    height,
		Workers:   1,
		cells:     make([]Cell, n),
		nbr:       make([]int32, n*8),
		nbrCount:  make([]uint8, n),
		latitudes: make([]float64, height),
		scratch:   make([]float64, n),
	}
	w.Globals.SolarEnergy = 1

	for y := 0; y < height; y++ {
		w.latitudes[y] = 90 - (float64(y)+0.5)/float64(height)*180
	}

	for i := range w.cells {
		x, y := i%width, i/width
		c := &w.cells[i]
		c.X, c.Y = x, y
		c.temperature = DefaultTemperature
		c.oxygen = DefaultOxygen
		c.co2 = DefaultCO2
		c.Weather.Pressure = 1013
		c.Magnetic.FieldStrength = 1
		c.Magnetic.Shielding = 1
		c.Magnetic.Radiation = 1
		c.Geology.Igneous = 1
		c.refresh(0)

		count := 0
		for k, off := range neighborOffsets {
			ny := y + off[1]
			if ny < 0 || ny >= height {
				w.nbr[i*8+k] = -1
				continue
			}
			nx := ((x+off[0])%width + width) % width
			w.nbr[i*8+k] = int32(ny*width + nx)
			count++
		}
		w.nbrCount[i] = uint8(count)
	}
	return w
}

// Lock enters the exclusive grid-mutation section shared by the tick
// orchestrator and manual interventions.
func (w *World) Lock() { w.mu.Lock() }

// Unlock leaves the grid-mutation section.
func (w *World) Unlock() { w.mu.Unlock() }

// Len returns the number of cells.
func (w *World) Len() int { return len(w.cells) }

// Cell returns the cell at linear index i.
func (w *World) Cell(i int) *Cell { return &w.cells[i] }

// Cells exposes the backing slice in row-major order.
func (w *World) Cells() []Cell { return w.cells }

// Index returns the linear index for (x, y). x wraps; a y outside [0, Height)
// is a programming error and panics.
func (w *World) Index(x, y int) int {
	if y < 0 || y >= w.Height {
		panic(fmt.Sprintf("world: row %d out of range [0,%d)", y, w.Height))
	}
	x = ((x % w.Width) + w.Width) % w.Width
	return y*w.Width + x
}

// Wrap wraps x around the cylinder and clamps y to the poles.
func (w *World) Wrap(x, y int) (int, int) {
	x = ((x % w.Width) + w.Width) % w.Width
	y = Clamp(y, 0, w.Height-1)
	return x, y
}

// Get returns the cell at (x, y) with x wrapped and y clamped.
func (w *World) Get(x, y int) *Cell {
	x, y = w.Wrap(x, y)
	return &w.cells[y*w.Width+x]
}

// Coords returns the (x, y) of linear index i.
func (w *World) Coords(i int) (int, int) {
	return i % w.Width, i / w.Width
}

// Latitude returns the latitude of row y in degrees, +90 at the top row.
func (w *World) Latitude(y int) float64 {
	y = Clamp(y, 0, w.Height-1)
	return w.latitudes[y]
}

// NeighborCount returns how many neighbors cell i has (8, or 5 on pole rows).
func (w *World) NeighborCount(i int) int {
	return int(w.nbrCount[i])
}

// NeighborIndices appends the linear indices of cell i's neighbors to buf in
// the fixed neighbor order and returns the extended slice.
func (w *World) NeighborIndices(buf []int, i int) []int {
	base := i * 8
	for k := 0; k < 8; k++ {
		if j := w.nbr[base+k]; j >= 0 {
			buf = append(buf, int(j))
		}
	}
	return buf
}

// Neighbors returns the up-to-8 adjacent cells of (x, y) in the fixed order.
func (w *World) Neighbors(x, y int) []Neighbor {
	i := w.Index(x, y)
	out := make([]Neighbor, 0, 8)
	base := i * 8
	for k := 0; k < 8; k++ {
		j := w.nbr[base+k]
		if j < 0 {
			continue
		}
		c := &w.cells[j]
		out = append(out, Neighbor{X: c.X, Y: c.Y, Cell: c})
	}
	return out
}

// NeighborMean averages value over cell i's neighbors.
func (w *World) NeighborMean(i int, value func(*Cell) float64) float64 {
	base := i * 8
	sum := 0.0
	n := 0
	for k := 0; k < 8; k++ {
		j := w.nbr[base+k]
		if j < 0 {
			continue
		}
		sum += value(&w.cells[j])
		n++
	}
	if n == 0 {
		return value(&w.cells[i])
	}
	return sum / float64(n)
}

// AdjacentWater reports whether any neighbor of cell i is water.
func (w *World) AdjacentWater(i int) bool {
	base := i * 8
	for k := 0; k < 8; k++ {
		if j := w.nbr[base+k]; j >= 0 && !w.cells[j].land {
			return true
		}
	}
	return false
}

// Coastal reports whether cell i is land touching water or water touching land.
func (w *World) Coastal(i int) bool {
	land := w.cells[i].land
	base := i * 8
	for k := 0; k < 8; k++ {
		if j := w.nbr[base+k]; j >= 0 && w.cells[j].land != land {
			return true
		}
	}
	return false
}

// Refresh recomputes the derived flags of one cell.
func (w *World) Refresh(c *Cell) {
	c.refresh(w.WaterLevel)
}

// Reclassify recomputes the derived land/water/ice flags of every cell from the
// primary fields. Called after generation, restore and water-level changes.
func (w *World) Reclassify() {
	for i := range w.cells {
		w.cells[i].refresh(w.WaterLevel)
	}
}

// ForEachRow runs fn once per row, split into row bands across Workers
// goroutines. fn may read any cell but must only write state owned by row y.
func (w *World) ForEachRow(fn func(y int)) {
	workers := w.Workers
	if workers <= 1 || w.Height < 2*workers {
		for y := 0; y < w.Height; y++ {
			fn(y)
		}
		return
	}

	band := (w.Height + workers - 1) / workers
	var g errgroup.Group
	for y0 := 0; y0 < w.Height; y0 += band {
		y1 := min(y0+band, w.Height)
		g.Go(func() error {
			for y := y0; y < y1; y++ {
				fn(y)
			}
			return nil
		})
	}
	_ = g.Wait()
}

// Aggregate rebuilds Globals from the grid. It is the single designated
// full-grid aggregation step of a tick.
func (w *World) Aggregate() {
	n := len(w.cells)
	if n == 0 {
		return
	}
	vals := w.scratch

	for i := range w.cells {
		vals[i] = w.cells[i].temperature
	}
	w.Globals.Temperature = floats.Sum(vals) / float64(n)

	for i := range w.cells {
		vals[i] = w.cells[i].oxygen
	}
	w.Globals.Oxygen = floats.Sum(vals) / float64(n)

	for i := range w.cells {
		vals[i] = w.cells[i].co2
	}
	w.Globals.CO2 = floats.Sum(vals) / float64(n)

	for i := range w.cells {
		vals[i] = w.cells[i].biomass
	}
	w.Globals.TotalBiomass = floats.Sum(vals)

	for i := range w.cells {
		vals[i] = w.cells[i].rainfall
	}
	w.Globals.MeanRainfall = floats.Sum(vals) / float64(n)

	w.Globals.LandIceVolume = w.LandIceVolume()

	land, life := 0, 0
	for i := range w.cells {
		if w.cells[i].land {
			land++
		}
		if w.cells[i].Life.Alive() {
			life++
		}
	}
	w.Globals.LandFraction = float64(land) / float64(n)
	w.Globals.LifeCells = life
}

// LandIceVolume sums ice thickness over land cells.
func (w *World) LandIceVolume() float64 {
	vals := w.scratch[:0]
	for i := range w.cells {
		if w.cells[i].land {
			vals = append(vals, w.cells[i].ice)
		}
	}
	if len(vals) == 0 {
		return 0
	}
	return floats.Sum(vals)
}

// LandMask records which cells are currently land, reusing dst when it is
// large enough.
func (w *World) LandMask(dst []bool) []bool {
	if cap(dst) < len(w.cells) {
		dst = make([]bool, len(w.cells))
	}
	dst = dst[:len(w.cells)]
	for i := range w.cells {
		dst[i] = w.cells[i].land
	}
	return dst
}

// IceVolume sums ice thickness over the cells set in mask, regardless of
// their current classification.
func (w *World) IceVolume(mask []bool) float64 {
	vals := w.scratch[:0]
	for i := range w.cells {
		if i < len(mask) && mask[i] {
			vals = append(vals, w.cells[i].ice)
		}
	}
	if len(vals) == 0 {
		return 0
	}
	return floats.Sum(vals)
}

// LandFraction counts land cells over all cells.
func (w *World) LandFraction() float64 {
	land := 0
	for i := range w.cells {
		if w.cells[i].land {
			land++
		}
	}
	return float64(land) / float64(len(w.cells))
}

// String returns a summary of the world.
func (w *World) String() string {
	return fmt.Sprintf("World(%dx%d, seed=%d, land=%.3f)", w.Width, w.Height, w.Options.Seed, w.LandFraction())
}
