package weather

import (
	"math"
	"testing"

	"github.com/talgya/planetsim/internal/world"
)

func TestSeasonsOppositeHemispheres(t *testing.T) {
	for _, year := range []float64{0.1, 0.3, 0.6, 0.9, 12.4} {
		n := SeasonAt(year, 45)
		s := SeasonAt(year, -45)
		if (n+2)%4 != s {
			t.Fatalf("year %.2f: north %v south %v not opposite", year, n, s)
		}
	}
	if SeasonAt(0.3, 10) != SeasonSpring+1 {
		t.Fatalf("expected summer at fraction 0.3, got %v", SeasonAt(0.3, 10))
	}
}

func TestSeasonalAnomalySign(t *testing.T) {
	s := New(DefaultConfig(), 1)
	if a := s.SeasonalAnomaly(0.375, 0); a != 0 {
		t.Fatalf("equator should have no seasonal swing, got %f", a)
	}
	north := s.SeasonalAnomaly(0.375, 80)
	south := s.SeasonalAnomaly(0.375, -80)
	if north <= 0 || math.Abs(north+south) > 1e-9 {
		t.Fatalf("hemispheres should mirror: north %f south %f", north, south)
	}
}

func TestPressureCells(t *testing.T) {
	equator := PressureTarget(0, world.BaseTemperature(0))
	subtropic := PressureTarget(30, world.BaseTemperature(30))
	subpolar := PressureTarget(60, world.BaseTemperature(60))
	if subtropic <= equator || subtropic <= subpolar {
		t.Fatalf("subtropical high missing: eq=%f 30=%f 60=%f", equator, subtropic, subpolar)
	}
	if PressureTarget(30, 40) >= subtropic {
		t.Fatal("a warm anomaly should lower pressure")
	}
}

func TestStormDecaysAndIsRemoved(t *testing.T) {
	w := world.New(12, 6)
	for i := 0; i < w.Len(); i++ {
		w.Cell(i).SetElevation(0.2)
		w.Cell(i).SetTemperature(5)
	}
	w.Reclassify()

	cfg := DefaultConfig()
	cfg.SpawnAttempts = 0
	s := New(cfg, 1)
	s.SetStorms([]Storm{{Kind: StormThunderstorm, X: 6, Y: 3, Intensity: 0.06, Radius: 1}})
	s.Update(w, 1, 0)
	if got := len(s.Storms()); got != 0 {
		t.Fatalf("weak storm should dissipate, %d remain", got)
	}
}

func TestStormFlagsAndWetsCells(t *testing.T) {
	w := world.New(12, 6)
	for i := 0; i < w.Len(); i++ {
		w.Cell(i).SetElevation(0.2)
		w.Cell(i).SetBiomass(0.8)
	}
	w.Reclassify()

	cfg := DefaultConfig()
	cfg.SpawnAttempts = 0
	s := New(cfg, 1)
	s.SetStorms([]Storm{{Kind: StormThunderstorm, X: 6.5, Y: 3.5, Intensity: 0.9, Radius: 1.5}})
	s.Update(w, 1, 0)

	storms := s.Storms()
	if len(storms) != 1 {
		t.Fatalf("storm should survive one tick, got %d", len(storms))
	}
	eye := storms[0].Cell(w)
	if !eye.Weather.Storm {
		t.Fatal("cell under the eye should carry the storm flag")
	}
	if eye.Rainfall() <= 0 || eye.Biomass() >= 0.8 {
		t.Fatalf("storm should add rain and damage biomass: rain=%f biomass=%f", eye.Rainfall(), eye.Biomass())
	}
	if storms[0].Intensity >= 0.9 {
		t.Fatal("a storm over land should weaken")
	}
}

func TestCycloneIntensifiesOverWarmWater(t *testing.T) {
	w := world.New(20, 12)
	for i := 0; i < w.Len(); i++ {
		w.Cell(i).SetElevation(-0.5)
		w.Cell(i).SetTemperature(29)
	}
	w.Reclassify()

	cfg := DefaultConfig()
	cfg.SpawnAttempts = 0
	s := New(cfg, 1)
	s.SetStorms([]Storm{{Kind: StormTropicalCyclone, X: 10, Y: 4, Intensity: 0.5, Radius: 3}})
	s.Update(w, 1, 0.5)
	if got := s.Storms()[0].Intensity; got <= 0.5 {
		t.Fatalf("cyclone over warm water should intensify, got %f", got)
	}
}

func TestStormKindFor(t *testing.T) {
	w := world.New(8, 4)
	c := w.Get(0, 1)
	c.SetElevation(-0.4)
	c.SetTemperature(28)
	w.Reclassify()
	if k, ok := StormKindFor(c, 15); !ok || k != StormTropicalCyclone {
		t.Fatalf("warm tropical water should spawn cyclones, got %v %v", k, ok)
	}
	if _, ok := StormKindFor(c, 50); ok {
		t.Fatal("warm mid-latitude water should not spawn anything")
	}
}

func TestWeatherFieldsBounded(t *testing.T) {
	w, err := world.Generate(world.SmallTestOptions())
	if err != nil {
		t.Fatal(err)
	}
	s := New(DefaultConfig(), w.Options.Seed)
	for tick := 0; tick < 40; tick++ {
		s.Update(w, 0.25, float64(tick)*0.25)
	}
	for i := 0; i < w.Len(); i++ {
		m := w.Cell(i).Weather
		if m.CloudCover < 0 || m.CloudCover > 1 || m.Pressure < 900 || m.Pressure > 1100 {
			t.Fatalf("cell %d weather out of range: %+v", i, m)
		}
	}
}
