package world

import (
	"math"

	"github.com/talgya/planetsim/internal/entropy"
)

// Regime is the terrain regime that biases a cell's initial sediment column.
type Regime uint8

const (
	RegimeDelta Regime = iota
	RegimeOceanFloor
	RegimeCoastal
	RegimeLowland
	RegimeUpland
	RegimeMountain
	regimeCount
)

var regimeNames = [regimeCount]string{
	RegimeDelta:      "Delta",
	RegimeOceanFloor: "Ocean Floor",
	RegimeCoastal:    "Coastal",
	RegimeLowland:    "Lowland",
	RegimeUpland:     "Upland",
	RegimeMountain:   "Mountain",
}

func (r Regime) String() string {
	if r >= regimeCount {
		return "Unknown"
	}
	return regimeNames[r]
}

type sedimentWeights [SedimentCount]float64

// Sediment probability tables per regime.
var regimeSediment = [regimeCount]sedimentWeights{
	RegimeDelta: {
		SedimentSilt: 0.35, SedimentClay: 0.25, SedimentSand: 0.2, SedimentOrganic: 0.2,
	},
	RegimeOceanFloor: {
		SedimentClay: 0.35, SedimentLimestone: 0.3, SedimentShale: 0.2, SedimentVolcanic: 0.1, SedimentSilt: 0.05,
	},
	RegimeCoastal: {
		SedimentSand: 0.4, SedimentLimestone: 0.2, SedimentSilt: 0.15, SedimentSandstone: 0.15, SedimentGravel: 0.1,
	},
	RegimeLowland: {
		SedimentSilt: 0.25, SedimentClay: 0.2, SedimentSandstone: 0.2, SedimentOrganic: 0.15, SedimentShale: 0.2,
	},
	RegimeUpland: {
		SedimentSandstone: 0.3, SedimentGravel: 0.25, SedimentShale: 0.2, SedimentConglomerate: 0.15, SedimentSand: 0.1,
	},
	RegimeMountain: {
		SedimentGravel: 0.35, SedimentConglomerate: 0.3, SedimentVolcanic: 0.2, SedimentSandstone: 0.15,
	},
}

// Rock fraction baselines per regime (igneous, sedimentary, metamorphic).
var regimeRock = [regimeCount][3]float64{
	RegimeDelta:      {0.05, 0.9, 0.05},
	RegimeOceanFloor: {0.7, 0.25, 0.05},
	RegimeCoastal:    {0.2, 0.7, 0.1},
	RegimeLowland:    {0.2, 0.65, 0.15},
	RegimeUpland:     {0.35, 0.4, 0.25},
	RegimeMountain:   {0.45, 0.15, 0.4},
}

// ClassifyRegime picks the sediment regime from elevation, water proximity
// and the provisional climate (rain 0..1, temp °C).
func ClassifyRegime(elevation float64, water, coastal bool, rain float64) Regime {
	switch {
	case water && elevation < -0.3:
		return RegimeOceanFloor
	case water:
		return RegimeCoastal
	case coastal && elevation < 0.08 && rain > 0.6:
		return RegimeDelta
	case coastal:
		return RegimeCoastal
	case elevation < 0.25:
		return RegimeLowland
	case elevation < 0.55:
		return RegimeUpland
	default:
		return RegimeMountain
	}
}

// SedimentWeights returns the sediment table of a regime adjusted for the
// local climate: hot and dry favours evaporites and sand, freezing favours
// glacial till.
func SedimentWeights(r Regime, rain, temp float64) []float64 {
	weights := regimeSediment[r]
	if temp > 20 && rain < 0.25 {
		weights[SedimentEvaporite] += 0.3
		weights[SedimentSand] += 0.2
	}
	if temp < 0 {
		weights[SedimentGlacialTill] += 0.35
	}
	return weights[:]
}

type plate struct {
	x, y    float64
	vx, vy  float64
	oceanic bool
}

// seedGeology assigns plates, classifies boundaries and lays down the initial
// sediment columns and rock fractions.
func seedGeology(w *World, opts GenOptions) {
	plates := placePlates(w, opts)
	assignPlates(w, plates)
	classifyBoundaries(w, plates)

	rng := entropy.NewStream(opts.Seed, entropy.OffsetSediment)
	for i := range w.cells {
		c := &w.cells[i]
		lat := w.latitudes[c.Y]
		rain := CirculationFactor(lat)
		temp := BaseTemperature(lat) - LapseRate*math.Max(0, c.elevation)
		regime := ClassifyRegime(c.elevation, !c.land, w.AdjacentWater(i), rain)

		depth := 3 + rng.Intn(6)
		weights := SedimentWeights(regime, rain, temp)
		c.Geology.Sediment = make([]SedimentType, 0, depth+4)
		for k := 0; k < depth; k++ {
			if idx := rng.Pick(weights); idx >= 0 {
				c.Geology.AppendSediment(SedimentType(idx))
			}
		}

		rock := regimeRock[regime]
		c.Geology.Igneous = rock[0] + rng.Range(-0.05, 0.05)
		c.Geology.Sedimentary = rock[1] + rng.Range(-0.05, 0.05)
		c.Geology.Metamorphic = rock[2] + rng.Range(-0.05, 0.05)
		c.Geology.NormalizeRock()

		if c.land {
			c.Geology.CrustAge = rng.Range(5e8, 3e9)
		} else {
			c.Geology.CrustAge = rng.Range(5e6, 1.8e8)
		}

		switch c.Geology.Boundary {
		case BoundaryConvergent:
			c.Geology.MagmaPressure = rng.Range(0.1, 0.4)
			c.Geology.Volcanism = rng.Range(0.3, 0.7)
		case BoundaryDivergent:
			c.Geology.MagmaPressure = rng.Range(0.1, 0.3)
			c.Geology.Volcanism = rng.Range(0.2, 0.5)
			c.Geology.CrustAge = rng.Range(0, 1e6)
		case BoundaryTransform:
			c.Geology.Stress = rng.Range(0, 0.3)
			c.Geology.Volcanism = rng.Range(0, 0.1)
		default:
			c.Geology.Volcanism = rng.Range(0, 0.05)
		}
	}
}

func placePlates(w *World, opts GenOptions) []plate {
	rng := entropy.NewStream(opts.Seed, entropy.OffsetPlates)
	plates := make([]plate, opts.Plates)
	for i := range plates {
		angle := rng.Range(0, 2*math.Pi)
		speed := rng.Range(0.2, 1)
		plates[i] = plate{
			x:  rng.Range(0, float64(w.Width)),
			y:  rng.Range(0, float64(w.Height)),
			vx: math.Cos(angle) * speed,
			vy: math.Sin(angle) * speed,
		}
	}
	return plates
}

// wrappedDelta returns the shortest horizontal offset on the cylinder.
func wrappedDelta(dx, width float64) float64 {
	if dx > width/2 {
		return dx - width
	}
	if dx < -width/2 {
		return dx + width
	}
	return dx
}

// assignPlates gives every cell the plate with the nearest centre (wrapped
// Voronoi) and marks plates oceanic when most of their cells are water.
func assignPlates(w *World, plates []plate) {
	waterCount := make([]int, len(plates))
	total := make([]int, len(plates))
	for i := range w.cells {
		c := &w.cells[i]
		best, bestDist := 0, math.Inf(1)
		for p := range plates {
			dx := wrappedDelta(float64(c.X)+0.5-plates[p].x, float64(w.Width))
			dy := float64(c.Y) + 0.5 - plates[p].y
			if d := dx*dx + dy*dy; d < bestDist {
				best, bestDist = p, d
			}
		}
		c.Geology.PlateID = best
		total[best]++
		if !c.land {
			waterCount[best]++
		}
	}
	for p := range plates {
		plates[p].oceanic = total[p] > 0 && waterCount[p]*2 > total[p]
	}
}

// classifyBoundaries marks cells adjacent to another plate. The first foreign
// neighbor in the fixed order decides: plates moving together are convergent,
// apart divergent, otherwise transform.
func classifyBoundaries(w *World, plates []plate) {
	var buf []int
	for i := range w.cells {
		c := &w.cells[i]
		c.Geology.Boundary = BoundaryNone
		buf = w.NeighborIndices(buf[:0], i)
		for _, j := range buf {
			n := &w.cells[j]
			if n.Geology.PlateID == c.Geology.PlateID {
				continue
			}
			a, b := plates[c.Geology.PlateID], plates[n.Geology.PlateID]
			dx := wrappedDelta(float64(n.X-c.X), float64(w.Width))
			dy := float64(n.Y - c.Y)
			length := math.Hypot(dx, dy)
			if length == 0 {
				continue
			}
			closing := ((a.vx-b.vx)*dx + (a.vy-b.vy)*dy) / length
			switch {
			case closing > 0.3:
				c.Geology.Boundary = BoundaryConvergent
			case closing < -0.3:
				c.Geology.Boundary = BoundaryDivergent
			default:
				c.Geology.Boundary = BoundaryTransform
			}
			break
		}
	}
}
