// Package biome classifies cells into biomes and gates biome succession with a
// transition table and a neighbor-majority blend.
package biome

import "github.com/talgya/planetsim/internal/world"

// Classification thresholds.
const (
	GlacierIce       = 0.3 // ice thickness that makes any land cell glacier
	GlacierTemp      = -18.0
	MountainHeight   = 0.7 // above water level
	HighlandHeight   = 0.45
	WetlandHeight    = 0.05
	ForestMinBiomass = 0.15
)

// Classify is the deterministic decision tree: ice first, then elevation bands
// from high to low, then temperature and rainfall within the band.
func Classify(c *world.Cell, coastal bool, waterLevel float64) world.BiomeType {
	if c.IsWater() {
		return world.BiomeOcean
	}
	temp, rain := c.Temperature(), c.Rainfall()
	if c.IceThickness() >= GlacierIce || temp < GlacierTemp {
		return world.BiomeGlacier
	}

	h := c.Elevation() - waterLevel
	wooded := c.Biomass() >= ForestMinBiomass
	switch {
	case h > MountainHeight:
		return world.BiomeMountain
	case h > HighlandHeight:
		switch {
		case temp < 0:
			return world.BiomeTundra
		case rain > 0.45 && wooded:
			return world.BiomeTaiga
		case rain > 0.2:
			return world.BiomeShrubland
		default:
			return world.BiomeMountain
		}
	}

	switch {
	case temp < -5:
		return world.BiomeTundra
	case temp < 3:
		if rain > 0.35 && wooded {
			return world.BiomeTaiga
		}
		return world.BiomeTundra
	case coastal && h < WetlandHeight && rain > 0.6:
		return world.BiomeWetland
	case temp < 18:
		switch {
		case rain > 0.55 && wooded:
			return world.BiomeTemperateForest
		case rain > 0.3:
			return world.BiomeGrassland
		case rain > 0.15:
			return world.BiomeShrubland
		default:
			return world.BiomeDesert
		}
	default:
		switch {
		case rain > 0.7 && wooded:
			return world.BiomeRainforest
		case rain > 0.4:
			return world.BiomeSavanna
		case rain > 0.2:
			return world.BiomeShrubland
		default:
			return world.BiomeDesert
		}
	}
}

// landBiomes are every biome except None and Ocean.
var landBiomes = []world.BiomeType{
	world.BiomeGlacier, world.BiomeTundra, world.BiomeTaiga, world.BiomeMountain,
	world.BiomeTemperateForest, world.BiomeRainforest, world.BiomeGrassland,
	world.BiomeSavanna, world.BiomeShrubland, world.BiomeDesert, world.BiomeWetland,
}

// successions lists the ecologically plausible changes between land biomes.
var successions = map[world.BiomeType][]world.BiomeType{
	world.BiomeGlacier:         {world.BiomeTundra},
	world.BiomeTundra:          {world.BiomeTaiga, world.BiomeGlacier, world.BiomeGrassland, world.BiomeShrubland, world.BiomeMountain},
	world.BiomeTaiga:           {world.BiomeTundra, world.BiomeTemperateForest, world.BiomeGlacier, world.BiomeGrassland, world.BiomeShrubland},
	world.BiomeMountain:        {world.BiomeTundra, world.BiomeGlacier, world.BiomeShrubland, world.BiomeTaiga, world.BiomeGrassland},
	world.BiomeTemperateForest: {world.BiomeGrassland, world.BiomeTaiga, world.BiomeRainforest, world.BiomeShrubland, world.BiomeWetland},
	world.BiomeRainforest:      {world.BiomeTemperateForest, world.BiomeSavanna, world.BiomeWetland},
	world.BiomeGrassland:       {world.BiomeTemperateForest, world.BiomeShrubland, world.BiomeDesert, world.BiomeSavanna, world.BiomeTaiga, world.BiomeTundra, world.BiomeWetland, world.BiomeGlacier, world.BiomeMountain},
	world.BiomeSavanna:         {world.BiomeGrassland, world.BiomeRainforest, world.BiomeDesert, world.BiomeShrubland},
	world.BiomeShrubland:       {world.BiomeGrassland, world.BiomeDesert, world.BiomeTemperateForest, world.BiomeSavanna, world.BiomeTundra, world.BiomeTaiga, world.BiomeMountain, world.BiomeGlacier},
	world.BiomeDesert:          {world.BiomeShrubland, world.BiomeGrassland, world.BiomeSavanna, world.BiomeMountain},
	world.BiomeWetland:         {world.BiomeGrassland, world.BiomeTemperateForest, world.BiomeRainforest},
}

// transitions[from][to] is true when the change is permitted.
var transitions [world.BiomeCount][world.BiomeCount]bool

func init() {
	for to := world.BiomeType(1); to < world.BiomeCount; to++ {
		transitions[world.BiomeNone][to] = true
	}
	for from, tos := range successions {
		for _, to := range tos {
			transitions[from][to] = true
		}
	}
	// Medium changes: the sea floods land or retreats from it.
	for _, b := range landBiomes {
		transitions[world.BiomeOcean][b] = true
		transitions[b][world.BiomeOcean] = true
	}
}

// Allowed reports whether a biome may change from one type to another.
func Allowed(from, to world.BiomeType) bool {
	if from >= world.BiomeCount || to >= world.BiomeCount || from == to {
		return false
	}
	return transitions[from][to]
}

// MediumChange reports whether a change crosses between land and ocean. These
// follow the sea level and bypass the neighbor blend.
func MediumChange(from, to world.BiomeType) bool {
	if from == world.BiomeNone {
		return false
	}
	return (from == world.BiomeOcean) != (to == world.BiomeOcean)
}

// Majority is the number of matching neighbors needed to flip a cell with n
// neighbors: half, rounded up.
func Majority(n int) int {
	return (n + 1) / 2
}
