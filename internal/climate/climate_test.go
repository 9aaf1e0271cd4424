package climate

import (
	"math"
	"testing"

	"github.com/talgya/planetsim/internal/geology"
	"github.com/talgya/planetsim/internal/world"
)

// halfLand builds a world whose top half is land at elevation 0.3.
func halfLand(width, height int) *world.World {
	w := world.New(width, height)
	for i := 0; i < w.Len(); i++ {
		c := w.Cell(i)
		if c.Y < height/2 {
			c.SetElevation(0.3)
		} else {
			c.SetElevation(-0.5)
		}
	}
	w.Reclassify()
	return w
}

func TestSeaLevelFollowsLandIce(t *testing.T) {
	w := halfLand(20, 10)
	cfg := DefaultConfig()
	s := New(cfg, 1)
	s.UpdateSeaLevel(w)
	if w.WaterLevel != 0 {
		t.Fatalf("priming must not move the water level, got %f", w.WaterLevel)
	}

	setIce := func(v float64) {
		for i := 0; i < w.Len(); i++ {
			if c := w.Cell(i); c.IsLand() {
				c.SetIceThickness(v)
			}
		}
	}

	prev := w.WaterLevel
	for step := 1; step <= 10; step++ {
		setIce(0.05 * float64(step))
		s.UpdateSeaLevel(w)
		if w.WaterLevel >= prev {
			t.Fatalf("step %d: water level %f did not fall below %f", step, w.WaterLevel, prev)
		}
		if w.WaterLevel < -cfg.MaxSeaLevel {
			t.Fatalf("step %d: water level %f beyond bound", step, w.WaterLevel)
		}
		prev = w.WaterLevel
	}

	for step := 9; step >= 0; step-- {
		setIce(0.05 * float64(step))
		s.UpdateSeaLevel(w)
		if w.WaterLevel <= prev {
			t.Fatalf("melt step %d: water level %f did not rise above %f", step, w.WaterLevel, prev)
		}
		prev = w.WaterLevel
	}
	if math.Abs(w.WaterLevel) > 1e-9 {
		t.Fatalf("full melt should restore the water level, got %f", w.WaterLevel)
	}
}

func TestSeaLevelBounded(t *testing.T) {
	w := halfLand(20, 10)
	cfg := DefaultConfig()
	cfg.SeaLevelPerIce = 50
	s := New(cfg, 1)
	s.UpdateSeaLevel(w)
	for i := 0; i < w.Len(); i++ {
		if c := w.Cell(i); c.IsLand() {
			c.SetIceThickness(1)
		}
	}
	s.UpdateSeaLevel(w)
	if w.WaterLevel != -cfg.MaxSeaLevel {
		t.Fatalf("water level should saturate at %f, got %f", -cfg.MaxSeaLevel, w.WaterLevel)
	}
}

func TestFloodedIceDoesNotMoveSea(t *testing.T) {
	w := halfLand(20, 10)
	shore := 4
	for x := 0; x < w.Width; x++ {
		c := w.Get(x, shore)
		c.SetElevation(0.0001)
		c.SetIceThickness(1)
	}
	inland := w.Get(7, 1)
	inland.SetIceThickness(1)
	w.Reclassify()

	s := New(DefaultConfig(), 1)
	s.UpdateSeaLevel(w)

	inland.SetIceThickness(0)
	s.UpdateSeaLevel(w)
	level := w.WaterLevel
	if level <= 0 {
		t.Fatalf("melting inland ice should raise the sea, got %f", level)
	}
	if w.Get(0, shore).IsLand() {
		t.Fatalf("shore at 0.0001 should flood once the sea reaches %f", level)
	}

	for i := 0; i < 3; i++ {
		s.UpdateSeaLevel(w)
		if w.WaterLevel != level {
			t.Fatalf("call %d: water level moved from %f to %f with no ice change", i, level, w.WaterLevel)
		}
	}
}

func TestClimateStaysBounded(t *testing.T) {
	w, err := world.Generate(world.SmallTestOptions())
	if err != nil {
		t.Fatal(err)
	}
	s := New(DefaultConfig(), w.Options.Seed)
	for tick := 0; tick < 60; tick++ {
		s.Update(w, 1, float64(tick))
	}
	for i := 0; i < w.Len(); i++ {
		c := w.Cell(i)
		if math.IsNaN(c.Temperature()) || c.Temperature() < -100 || c.Temperature() > 100 {
			t.Fatalf("cell %d temperature %f", i, c.Temperature())
		}
		if c.Rainfall() < 0 || c.Rainfall() > 1 || c.Humidity() < 0 || c.Humidity() > 1 {
			t.Fatalf("cell %d moisture out of range", i)
		}
	}
	w.Aggregate()
	if w.Globals.Temperature < -60 || w.Globals.Temperature > 60 {
		t.Fatalf("global temperature drifted to %f", w.Globals.Temperature)
	}
}

func TestLongRunDriftBounded(t *testing.T) {
	if testing.Short() {
		t.Skip("long coupled run")
	}
	w, err := world.Generate(world.SmallTestOptions())
	if err != nil {
		t.Fatal(err)
	}
	cfg := DefaultConfig()
	s := New(cfg, w.Options.Seed)
	gcfg := geology.DefaultConfig()
	// Volcanic CO2 is drawn down by the biosphere, which is not running here.
	gcfg.EruptionChance = 0
	g := geology.New(gcfg, w.Options.Seed)

	tick := 0
	step := func() {
		s.Update(w, 1, float64(tick))
		g.Update(w, 1, float64(tick))
		w.Aggregate()
		tick++
	}
	for tick < 500 {
		step()
	}
	temp, land := w.Globals.Temperature, w.Globals.LandFraction

	for tick < 3000 {
		step()
		if math.Abs(w.WaterLevel) > cfg.MaxSeaLevel {
			t.Fatalf("tick %d: water level %f beyond bound", tick, w.WaterLevel)
		}
	}
	if d := w.Globals.Temperature - temp; math.Abs(d) > 6 {
		t.Fatalf("mean temperature drifted %+.2f°C from %.2f after spin-up", d, temp)
	}
	if d := w.Globals.LandFraction - land; math.Abs(d) > 0.08 {
		t.Fatalf("land fraction drifted %+.3f from %.3f after spin-up", d, land)
	}
}

func TestRainfallRelaxesGradually(t *testing.T) {
	w := halfLand(16, 8)
	s := New(DefaultConfig(), 3)
	s.Update(w, 1, 0)
	for i := 0; i < w.Len(); i++ {
		if r := w.Cell(i).Rainfall(); r > DefaultConfig().RainfallRelax+1e-9 {
			t.Fatalf("cell %d rainfall snapped to %f in one tick", i, r)
		}
	}
}

func TestParallelTemperatureMatchesSerial(t *testing.T) {
	a, err := world.Generate(world.SmallTestOptions())
	if err != nil {
		t.Fatal(err)
	}
	b, err := world.Generate(world.SmallTestOptions())
	if err != nil {
		t.Fatal(err)
	}
	b.Workers = 4
	sa := New(DefaultConfig(), a.Options.Seed)
	sb := New(DefaultConfig(), b.Options.Seed)
	for tick := 0; tick < 5; tick++ {
		sa.Update(a, 1, 0)
		sb.Update(b, 1, 0)
	}
	for i := 0; i < a.Len(); i++ {
		if a.Cell(i).Temperature() != b.Cell(i).Temperature() {
			t.Fatalf("cell %d differs between serial and parallel passes", i)
		}
	}
}

func TestAlbedoOrdering(t *testing.T) {
	w := halfLand(8, 4)
	land := w.Get(1, 0)
	water := w.Get(1, 3)

	land.Biome.Type = world.BiomeDesert
	desert := Albedo(land)
	land.Biome.Type = world.BiomeRainforest
	forest := Albedo(land)
	land.SetIceThickness(1)
	ice := Albedo(land)

	if !(ice > desert && desert > forest && forest > Albedo(water)) {
		t.Fatalf("unexpected albedo ordering: ice=%f desert=%f forest=%f water=%f",
			ice, desert, forest, Albedo(water))
	}
}

func TestIceCoolingFloored(t *testing.T) {
	w := halfLand(20, 10)
	w.Globals.SolarEnergy = 1
	cfg := DefaultConfig()
	s := New(cfg, 1)

	i := w.Index(3, 4)
	c := w.Cell(i)
	c.Biome.Type = world.BiomeGrassland
	bare := s.Target(w, i)

	c.SetIceThickness(1)
	c.Biome.Type = world.BiomeGlacier
	iced := s.Target(w, i)

	if iced >= bare {
		t.Fatalf("ice should cool the target: bare %f, iced %f", bare, iced)
	}
	if cooling := iced - bare; cooling < cfg.IceFeedbackFloor-1e-9 {
		t.Fatalf("ice cooled the target by %f, floor is %f", cooling, cfg.IceFeedbackFloor)
	}
}

func TestThresholdsPolarFreezeEarlier(t *testing.T) {
	fe, me := Thresholds(0, 0)
	fp, _ := Thresholds(85, 0)
	if fp <= fe {
		t.Fatalf("polar freeze threshold %f should exceed equatorial %f", fp, fe)
	}
	if me <= fe {
		t.Fatal("melt threshold must sit above freeze threshold")
	}
}
