package geology

import (
	"testing"

	"github.com/talgya/planetsim/internal/world"
)

func flatWorld(elev float64) *world.World {
	w := world.New(10, 6)
	for i := 0; i < w.Len(); i++ {
		w.Cell(i).SetElevation(elev)
		w.Cell(i).Geology.AppendSediment(world.SedimentSand)
	}
	w.Reclassify()
	return w
}

func quietConfig() Config {
	cfg := DefaultConfig()
	cfg.ErosionRate = 0
	cfg.EruptionChance = 0
	return cfg
}

func TestBoundaryElevationChange(t *testing.T) {
	w := flatWorld(0.2)
	conv := w.Get(2, 2)
	div := w.Get(5, 2)
	tr := w.Get(8, 2)
	conv.Geology.Boundary = world.BoundaryConvergent
	div.Geology.Boundary = world.BoundaryDivergent
	tr.Geology.Boundary = world.BoundaryTransform

	s := New(quietConfig(), 1)
	for tick := 0; tick < 10; tick++ {
		s.Update(w, 1, float64(tick))
	}
	if conv.Elevation() <= 0.2 {
		t.Fatalf("convergent boundary should rise, got %f", conv.Elevation())
	}
	if div.Elevation() >= 0.2 {
		t.Fatalf("divergent boundary should sink, got %f", div.Elevation())
	}
	if tr.Elevation() != 0.2 {
		t.Fatalf("transform boundary should keep elevation, got %f", tr.Elevation())
	}
	if tr.Geology.Stress <= conv.Geology.Stress && len(s.quakes) == 0 {
		t.Fatal("transform boundaries should accumulate stress fastest")
	}
}

func TestStressReleaseProducesQuake(t *testing.T) {
	w := flatWorld(-0.3)
	c := w.Get(4, 3)
	c.Geology.Boundary = world.BoundaryTransform
	c.Geology.Stress = 0.89

	s := New(quietConfig(), 1)
	s.Update(w, 1, 0)
	quakes := s.DrainQuakes()
	if len(quakes) != 1 {
		t.Fatalf("expected one quake, got %d", len(quakes))
	}
	q := quakes[0]
	if q.X != 4 || q.Y != 3 || !q.Offshore {
		t.Fatalf("unexpected quake %+v", q)
	}
	if q.Magnitude < 4 || q.Magnitude > 9 {
		t.Fatalf("magnitude %f out of range", q.Magnitude)
	}
	if c.Geology.Stress >= 0.9 {
		t.Fatalf("stress should drop after release, got %f", c.Geology.Stress)
	}
	if len(s.DrainQuakes()) != 0 {
		t.Fatal("DrainQuakes must clear the queue")
	}
}

func TestEruptionResetsMagma(t *testing.T) {
	w := flatWorld(0.3)
	c := w.Get(3, 3)
	c.Geology.Boundary = world.BoundaryConvergent
	c.Geology.MagmaPressure = 1
	co2 := c.CO2()
	layers := len(c.Geology.Sediment)

	cfg := quietConfig()
	cfg.EruptionChance = 100
	s := New(cfg, 1)
	s.Update(w, 1, 0)

	if c.Geology.MagmaPressure != 0 {
		t.Fatalf("magma pressure should reset, got %f", c.Geology.MagmaPressure)
	}
	top, _ := c.Geology.TopSediment()
	if top != world.SedimentVolcanic || len(c.Geology.Sediment) != layers+1 {
		t.Fatal("eruption should append a volcanic layer")
	}
	if c.CO2() <= co2 {
		t.Fatal("eruption should raise local CO2")
	}
	if s.Eruptions != 1 {
		t.Fatalf("expected one eruption, got %d", s.Eruptions)
	}
}

func TestErosionMovesMaterialDownhill(t *testing.T) {
	w := flatWorld(0.1)
	peak := w.Get(5, 3)
	peak.SetElevation(0.8)
	peak.SetRainfall(1)
	w.Reclassify()
	total := func() float64 {
		sum := 0.0
		for i := 0; i < w.Len(); i++ {
			sum += w.Cell(i).Elevation()
		}
		return sum
	}
	before := total()

	cfg := quietConfig()
	cfg.ErosionRate = 0.2
	s := New(cfg, 1)
	s.Update(w, 1, 0)

	if peak.Elevation() >= 0.8 {
		t.Fatalf("peak should erode, got %f", peak.Elevation())
	}
	if diff := total() - before; diff > 1e-9 || diff < -1e-9 {
		t.Fatalf("erosion should conserve material, drift %g", diff)
	}
}

func TestSedimentColumnsNeverEmpty(t *testing.T) {
	w, err := world.Generate(world.SmallTestOptions())
	if err != nil {
		t.Fatal(err)
	}
	cfg := DefaultConfig()
	cfg.ErosionRate = 0.5
	s := New(cfg, w.Options.Seed)
	for tick := 0; tick < 100; tick++ {
		s.Update(w, 1, float64(tick))
	}
	for i := 0; i < w.Len(); i++ {
		c := w.Cell(i)
		if len(c.Geology.Sediment) == 0 {
			t.Fatalf("cell %d lost its whole sediment column", i)
		}
		if c.Elevation() < -1 || c.Elevation() > 1 {
			t.Fatalf("cell %d elevation %f", i, c.Elevation())
		}
	}
}

func TestTectonicsKeepsCoastline(t *testing.T) {
	w := flatWorld(0.3)
	shelf := w.Get(2, 2)
	shelf.SetElevation(-0.011)
	shelf.Geology.Boundary = world.BoundaryConvergent
	lowland := w.Get(6, 2)
	lowland.SetElevation(0.02)
	lowland.Geology.Boundary = world.BoundaryDivergent
	w.Reclassify()

	s := New(quietConfig(), 1)
	for tick := 0; tick < 200; tick++ {
		s.Update(w, 1, float64(tick))
	}
	if !shelf.IsWater() || shelf.Elevation() > w.WaterLevel-shoreMargin {
		t.Fatalf("convergent seabed rose to %f", shelf.Elevation())
	}
	if !lowland.IsLand() || lowland.Elevation() < w.WaterLevel+shoreMargin {
		t.Fatalf("divergent lowland sank to %f", lowland.Elevation())
	}
}

func TestErosionDoesNotFillTheSea(t *testing.T) {
	w := flatWorld(-0.0105)
	peak := w.Get(5, 3)
	peak.SetElevation(0.5)
	peak.SetRainfall(1)
	w.Reclassify()

	cfg := quietConfig()
	cfg.ErosionRate = 0.2
	s := New(cfg, 1)
	for tick := 0; tick < 50; tick++ {
		s.Update(w, 1, float64(tick))
	}
	if peak.Elevation() >= 0.5 {
		t.Fatalf("peak should erode, got %f", peak.Elevation())
	}
	if !peak.IsLand() {
		t.Fatalf("peak eroded below the shore to %f", peak.Elevation())
	}
	for i := 0; i < w.Len(); i++ {
		if c := w.Cell(i); c != peak && (c.IsLand() || c.Elevation() > w.WaterLevel-shoreMargin) {
			t.Fatalf("cell %d built up to %f", i, c.Elevation())
		}
	}
}
