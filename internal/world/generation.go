// World generation is a strict staged pipeline: elevation, sea-level
// threshold, mountains, polar depression, geology, climate, resources.
// Generation has no side effects until the returned world is committed by the
// caller, so a failed attempt can simply be retried with other options.
package world

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sort"

	"github.com/talgya/planetsim/internal/entropy"
	"github.com/talgya/planetsim/internal/noise"
)

// ErrInvalidOptions is returned (wrapped) when generation options are out of range.
var ErrInvalidOptions = errors.New("invalid generation options")

// Size limits accepted by Validate.
const (
	MinWidth  = 8
	MinHeight = 4
	MaxCells  = 4_000_000
)

// GenOptions holds world generation parameters.
type GenOptions struct {
	Seed          int64   `yaml:"seed" json:"seed"` // 0 = random
	Width         int     `yaml:"width" json:"width"`
	Height        int     `yaml:"height" json:"height"`
	LandRatio     float64 `yaml:"land_ratio" json:"land_ratio"`         // target land fraction
	MountainLevel float64 `yaml:"mountain_level" json:"mountain_level"` // mountain overlay intensity 0..1
	Persistence   float64 `yaml:"persistence" json:"persistence"`
	Lacunarity    float64 `yaml:"lacunarity" json:"lacunarity"`
	Octaves       int     `yaml:"octaves" json:"octaves"`
	// Scale is the number of noise features around the planet.
	Scale float64 `yaml:"scale" json:"scale"`
	// PolarDepression lowers terrain towards the poles (0 disables).
	PolarDepression    float64 `yaml:"polar_depression" json:"polar_depression"`
	Plates             int     `yaml:"plates" json:"plates"`
	ResourceClustering float64 `yaml:"resource_clustering" json:"resource_clustering"`
	InitialOxygen      float64 `yaml:"initial_oxygen" json:"initial_oxygen"` // percent
	InitialCO2         float64 `yaml:"initial_co2" json:"initial_co2"`       // percent
	SolarEnergy        float64 `yaml:"solar_energy" json:"solar_energy"`     // 1 = present-day Earth
}

// DefaultGenOptions returns a medium-sized young planet.
func DefaultGenOptions() GenOptions {
	return GenOptions{
		Seed:               0,
		Width:              160,
		Height:             80,
		LandRatio:          0.35,
		MountainLevel:      0.5,
		Persistence:        0.5,
		Lacunarity:         2.0,
		Octaves:            5,
		Scale:              6,
		PolarDepression:    0.5,
		Plates:             10,
		ResourceClustering: 0.35,
		InitialOxygen:      2,
		InitialCO2:         1.5,
		SolarEnergy:        1,
	}
}

// EarthPreset returns the Earth-like preset: 240×120 and 29% land.
func EarthPreset() GenOptions {
	o := DefaultGenOptions()
	o.Seed = 12345
	o.Width = 240
	o.Height = 120
	o.LandRatio = 0.29
	o.Plates = 14
	o.InitialOxygen = DefaultOxygen
	o.InitialCO2 = DefaultCO2
	return o
}

// SmallTestOptions returns a tiny world for rapid iteration and tests.
func SmallTestOptions() GenOptions {
	o := DefaultGenOptions()
	o.Seed = 42
	o.Width = 48
	o.Height = 24
	o.Octaves = 4
	o.Plates = 5
	o.InitialOxygen = DefaultOxygen
	o.InitialCO2 = DefaultCO2
	return o
}

// Validate checks the options and returns an error wrapping ErrInvalidOptions.
func (o GenOptions) Validate() error {
	switch {
	case o.Width < MinWidth:
		return fmt.Errorf("%w: width %d below %d", ErrInvalidOptions, o.Width, MinWidth)
	case o.Height < MinHeight:
		return fmt.Errorf("%w: height %d below %d", ErrInvalidOptions, o.Height, MinHeight)
	case o.Width*o.Height > MaxCells:
		return fmt.Errorf("%w: %dx%d exceeds %d cells", ErrInvalidOptions, o.Width, o.Height, MaxCells)
	case !(o.LandRatio > 0 && o.LandRatio < 1):
		return fmt.Errorf("%w: land ratio %.3f outside (0,1)", ErrInvalidOptions, o.LandRatio)
	case o.MountainLevel < 0 || o.MountainLevel > 1:
		return fmt.Errorf("%w: mountain level %.3f outside [0,1]", ErrInvalidOptions, o.MountainLevel)
	case o.Octaves < 1 || o.Octaves > 12:
		return fmt.Errorf("%w: octaves %d outside [1,12]", ErrInvalidOptions, o.Octaves)
	case !(o.Persistence > 0 && o.Persistence <= 1):
		return fmt.Errorf("%w: persistence %.3f outside (0,1]", ErrInvalidOptions, o.Persistence)
	case o.Lacunarity < 1:
		return fmt.Errorf("%w: lacunarity %.3f below 1", ErrInvalidOptions, o.Lacunarity)
	case o.Scale <= 0:
		return fmt.Errorf("%w: scale %.3f must be positive", ErrInvalidOptions, o.Scale)
	case o.Plates < 2 || o.Plates > o.Width*o.Height/4:
		return fmt.Errorf("%w: plate count %d outside [2,%d]", ErrInvalidOptions, o.Plates, o.Width*o.Height/4)
	case o.PolarDepression < 0 || o.PolarDepression > 1:
		return fmt.Errorf("%w: polar depression %.3f outside [0,1]", ErrInvalidOptions, o.PolarDepression)
	case o.SolarEnergy <= 0:
		return fmt.Errorf("%w: solar energy %.3f must be positive", ErrInvalidOptions, o.SolarEnergy)
	}
	return nil
}

// Generate creates a complete world: terrain, geology, climate and resources.
func Generate(opts GenOptions) (*World, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	if opts.Seed == 0 {
		opts.Seed = entropy.RandomSeed()
	}

	w := New(opts.Width, opts.Height)
	w.Options = opts
	w.Globals.SolarEnergy = opts.SolarEnergy

	raw := sampleElevation(w, opts)
	applySeaLevel(w, raw, opts.LandRatio)
	applyMountains(w, opts)
	applyPolarDepression(w, opts)
	w.Reclassify()

	seedGeology(w, opts)
	seedClimate(w, opts)
	seedResources(w, opts)
	w.Aggregate()

	slog.Debug("world generated",
		"seed", opts.Seed,
		"width", w.Width,
		"height", w.Height,
		"land_fraction", fmt.Sprintf("%.3f", w.Globals.LandFraction),
		"mean_temp", fmt.Sprintf("%.1f", w.Globals.Temperature),
	)
	return w, nil
}

// sampleElevation draws raw elevation from noise on a cylinder so the
// horizontal axis tiles seamlessly.
func sampleElevation(w *World, opts GenOptions) []float64 {
	gen := noise.New(opts.Seed, opts.Octaves, opts.Persistence, opts.Lacunarity)
	// A slow continental layer keeps land masses coherent.
	continents := noise.New(opts.Seed+1, 2, 0.5, 2)

	raw := make([]float64, w.Len())
	for y := 0; y < w.Height; y++ {
		for x := 0; x < w.Width; x++ {
			detail := gen.Cylinder(x, y, w.Width, w.Height, opts.Scale)
			base := continents.Cylinder(x, y, w.Width, w.Height, opts.Scale/3)
			raw[y*w.Width+x] = 0.65*detail + 0.35*base
		}
	}
	return raw
}

// applySeaLevel ranks raw elevations and marks exactly round(ratio·n) of the
// highest cells as land, then rescales land into (0, 0.6] and water into
// [-1, 0).
func applySeaLevel(w *World, raw []float64, ratio float64) {
	n := len(raw)
	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return raw[order[a]] > raw[order[b]]
	})

	landCount := int(math.Round(ratio * float64(n)))
	landCount = Clamp(landCount, 0, n)

	maxRaw, minRaw := raw[order[0]], raw[order[n-1]]
	threshold := minRaw
	if landCount > 0 && landCount < n {
		threshold = (raw[order[landCount-1]] + raw[order[landCount]]) / 2
	} else if landCount == n {
		threshold = minRaw - 1e-9
	} else {
		threshold = maxRaw + 1e-9
	}

	landSpan := math.Max(maxRaw-threshold, 1e-9)
	waterSpan := math.Max(threshold-minRaw, 1e-9)

	for rank, i := range order {
		c := &w.cells[i]
		if rank < landCount {
			t := Clamp((raw[i]-threshold)/landSpan, 0, 1)
			c.SetElevation(0.02 + 0.58*t)
		} else {
			t := Clamp((threshold-raw[i])/waterSpan, 0, 1)
			c.SetElevation(-0.02 - 0.98*t)
		}
	}
}

// applyMountains adds squared ridge noise to land cells only, so the land
// fraction fixed by the threshold stage is preserved.
func applyMountains(w *World, opts GenOptions) {
	if opts.MountainLevel <= 0 {
		return
	}
	gen := noise.New(opts.Seed+2, opts.Octaves, opts.Persistence, opts.Lacunarity)
	for i := range w.cells {
		c := &w.cells[i]
		if c.elevation <= 0 {
			continue
		}
		m := noise.Unit(gen.Cylinder(c.X, c.Y, w.Width, w.Height, opts.Scale*2))
		peak := m * m * opts.MountainLevel * 0.8
		c.SetElevation(c.elevation + peak*math.Sqrt(c.elevation/0.6+0.2))
	}
}

// applyPolarDepression lowers terrain smoothly towards the poles. Land is scaled
// towards sea level but never submerged.
func applyPolarDepression(w *World, opts GenOptions) {
	if opts.PolarDepression <= 0 {
		return
	}
	for i := range w.cells {
		c := &w.cells[i]
		p := Smoothstep(0.7, 1.0, math.Abs(w.latitudes[c.Y])/90) * opts.PolarDepression
		if p == 0 {
			continue
		}
		if c.elevation > 0 {
			c.SetElevation(math.Max(0.005, c.elevation*(1-0.7*p)))
		} else {
			c.SetElevation(c.elevation - 0.3*p)
		}
	}
}

// seedClimate sets latitude-driven temperature, rainfall, humidity and initial
// ice, with elevation and water-proximity corrections.
func seedClimate(w *World, opts GenOptions) {
	for i := range w.cells {
		c := &w.cells[i]
		lat := w.latitudes[c.Y]
		coastal := w.AdjacentWater(i)

		temp := BaseTemperature(lat)
		rain := CirculationFactor(lat)
		humidity := 0.0

		if c.land {
			temp -= LapseRate * c.elevation
			if coastal {
				temp = temp*0.9 + 1.5
			} else {
				rain *= 0.75
			}
			if c.elevation > 0.3 {
				rain += 0.15 * (c.elevation - 0.3)
			}
			humidity = rain * 0.8
		} else {
			// Water moderates extremes.
			temp = temp*0.85 + 3
			rain = math.Min(1, rain*1.1)
			humidity = rain*0.8 + 0.15
		}

		c.SetTemperature(temp)
		c.SetRainfall(rain)
		c.SetHumidity(humidity)
		c.SetOxygen(opts.InitialOxygen)
		c.SetCO2(opts.InitialCO2)
		if temp < -5 {
			c.SetIceThickness((-5 - temp) / 20)
		}
	}
}
