package climate

import (
	"math"

	"github.com/talgya/planetsim/internal/world"
)

// Surface albedo values.
const (
	AlbedoIce       = 0.8
	AlbedoWater     = 0.06
	AlbedoDesert    = 0.35
	AlbedoForest    = 0.12
	AlbedoGrassland = 0.22
	AlbedoRock      = 0.3
	AlbedoUrban     = 0.15
)

// Albedo returns the fraction of sunlight the cell reflects. Ice dominates by
// thickness; engineered surfaces pull the value halfway towards urban.
func Albedo(c *world.Cell) float64 {
	return engineered(c, world.Lerp(groundAlbedo(c), AlbedoIce, iceCover(c)))
}

// bareAlbedo is Albedo with the ice and glacier cover removed. The difference
// between the two is the ice-albedo share of the ice feedback.
func bareAlbedo(c *world.Cell) float64 {
	return engineered(c, groundAlbedo(c))
}

// iceCover is the weight of ice in the surface albedo: full on glaciers,
// otherwise growing with thickness until 0.5.
func iceCover(c *world.Cell) float64 {
	if c.IsLand() && c.Biome.Type == world.BiomeGlacier {
		return 1
	}
	return math.Min(1, c.IceThickness()*2)
}

func engineered(c *world.Cell, a float64) float64 {
	if c.Engineered {
		return 0.5*a + 0.5*AlbedoUrban
	}
	return a
}

func groundAlbedo(c *world.Cell) float64 {
	if c.IsWater() {
		return AlbedoWater
	}
	switch c.Biome.Type {
	case world.BiomeDesert:
		return AlbedoDesert
	case world.BiomeTemperateForest, world.BiomeRainforest, world.BiomeTaiga, world.BiomeWetland:
		return AlbedoForest
	case world.BiomeGrassland, world.BiomeSavanna, world.BiomeShrubland, world.BiomeTundra:
		return AlbedoGrassland
	case world.BiomeMountain, world.BiomeGlacier:
		return AlbedoRock
	}
	// Unclassified land: bare rock greening with biomass.
	return world.Lerp(AlbedoRock, AlbedoGrassland, c.Biomass())
}
