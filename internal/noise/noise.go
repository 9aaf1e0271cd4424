// Package noise provides the deterministic gradient-noise fields used at world
// generation time. Layers are summed over several octaves (fractal noise).
package noise

import (
	"math"

	opensimplex "github.com/ojrac/opensimplex-go"
)

// Generator produces multi-octave simplex noise in [-1, 1].
type Generator struct {
	src         opensimplex.Noise
	Octaves     int
	Persistence float64 // amplitude falloff per octave
	Lacunarity  float64 // frequency growth per octave
}

// New creates a generator. Non-positive parameters fall back to 4 octaves,
// persistence 0.5 and lacunarity 2.
func New(seed int64, octaves int, persistence, lacunarity float64) *Generator {
	if octaves <= 0 {
		octaves = 4
	}
	if persistence <= 0 {
		persistence = 0.5
	}
	if lacunarity <= 0 {
		lacunarity = 2
	}
	return &Generator{
		src:         opensimplex.New(seed),
		Octaves:     octaves,
		Persistence: persistence,
		Lacunarity:  lacunarity,
	}
}

// Fractal2 samples 2D fractal noise.
func (g *Generator) Fractal2(x, y float64) float64 {
	total := 0.0
	amplitude := 1.0
	frequency := 1.0
	maxVal := 0.0

	for i := 0; i < g.Octaves; i++ {
		total += g.src.Eval2(x*frequency, y*frequency) * amplitude
		maxVal += amplitude
		amplitude *= g.Persistence
		frequency *= g.Lacunarity
	}
	return clampUnit(total / maxVal)
}

// Fractal3 samples 3D fractal noise.
func (g *Generator) Fractal3(x, y, z float64) float64 {
	total := 0.0
	amplitude := 1.0
	frequency := 1.0
	maxVal := 0.0

	for i := 0; i < g.Octaves; i++ {
		total += g.src.Eval3(x*frequency, y*frequency, z*frequency) * amplitude
		maxVal += amplitude
		amplitude *= g.Persistence
		frequency *= g.Lacunarity
	}
	return clampUnit(total / maxVal)
}

// Cylinder samples the grid cell (x, y) of a width×height map projected onto a
// cylinder, so column 0 and column width are the same point and the map tiles
// horizontally without a seam. scale is the number of noise features across
// the circumference.
func (g *Generator) Cylinder(x, y, width, height int, scale float64) float64 {
	if width <= 0 || height <= 0 {
		return 0
	}
	x = ((x % width) + width) % width
	angle := 2 * math.Pi * (float64(x) + 0.5) / float64(width)
	radius := scale / (2 * math.Pi)
	cx := math.Cos(angle) * radius
	cz := math.Sin(angle) * radius
	// Keep the vertical axis on the same scale as the circumference.
	cy := (float64(y) + 0.5) / float64(width) * scale
	return g.Fractal3(cx, cy, cz)
}

// Unit maps a [-1, 1] sample into [0, 1].
func Unit(v float64) float64 {
	return (clampUnit(v) + 1) / 2
}

func clampUnit(v float64) float64 {
	if v < -1 {
		return -1
	}
	if v > 1 {
		return 1
	}
	return v
}
