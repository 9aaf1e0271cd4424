package world

import (
	"errors"
	"math"
	"slices"
	"testing"
)

func TestGetWrapsHorizontally(t *testing.T) {
	w := New(16, 8)
	for y := 0; y < w.Height; y++ {
		for x := 0; x < w.Width; x++ {
			c := w.Get(x, y)
			if w.Get(x+w.Width, y) != c || w.Get(x-w.Width, y) != c {
				t.Fatalf("Get(%d,%d) does not wrap horizontally", x, y)
			}
		}
	}
}

func TestGetClampsVertically(t *testing.T) {
	w := New(10, 6)
	if w.Get(3, -4) != w.Get(3, 0) {
		t.Fatal("negative y must clamp to the top row")
	}
	if w.Get(3, 99) != w.Get(3, 5) {
		t.Fatal("large y must clamp to the bottom row")
	}
}

func TestIndexPanicsOnBadRow(t *testing.T) {
	w := New(10, 6)
	defer func() {
		if recover() == nil {
			t.Fatal("Index with y out of range must panic")
		}
	}()
	w.Index(0, 6)
}

func TestNeighborsFixedOrder(t *testing.T) {
	w := New(10, 6)
	got := w.Neighbors(0, 2)
	want := [][2]int{{9, 1}, {0, 1}, {1, 1}, {9, 2}, {1, 2}, {9, 3}, {0, 3}, {1, 3}}
	if len(got) != len(want) {
		t.Fatalf("expected %d neighbors, got %d", len(want), len(got))
	}
	for k, n := range got {
		if n.X != want[k][0] || n.Y != want[k][1] {
			t.Fatalf("neighbor %d = (%d,%d), want (%d,%d)", k, n.X, n.Y, want[k][0], want[k][1])
		}
		if n.Cell != w.Get(n.X, n.Y) {
			t.Fatalf("neighbor %d cell pointer mismatch", k)
		}
	}
}

func TestNeighborsAtPoles(t *testing.T) {
	w := New(10, 6)
	if n := len(w.Neighbors(4, 0)); n != 5 {
		t.Fatalf("top row should have 5 neighbors, got %d", n)
	}
	if n := len(w.Neighbors(4, 5)); n != 5 {
		t.Fatalf("bottom row should have 5 neighbors, got %d", n)
	}
	if w.NeighborCount(w.Index(4, 3)) != 8 {
		t.Fatal("interior cell should have 8 neighbors")
	}
}

func TestSettersClamp(t *testing.T) {
	var c Cell
	c.SetBiomass(1.7)
	c.SetRainfall(-0.3)
	c.SetHumidity(4)
	c.SetElevation(-3)
	c.SetTemperature(1e9)
	if c.Biomass() != 1 || c.Rainfall() != 0 || c.Humidity() != 1 || c.Elevation() != -1 {
		t.Fatalf("setters did not clamp: biomass=%f rain=%f hum=%f elev=%f",
			c.Biomass(), c.Rainfall(), c.Humidity(), c.Elevation())
	}
	if c.Temperature() != MaxTemperature {
		t.Fatalf("temperature not clamped: %f", c.Temperature())
	}

	c.SetBiomass(0.4)
	c.SetBiomass(math.NaN())
	if c.Biomass() != 0.4 {
		t.Fatalf("NaN write must keep previous value, got %f", c.Biomass())
	}
	c.SetBiomass(math.Inf(1))
	if c.Biomass() != 1 {
		t.Fatalf("+Inf must clamp to 1, got %f", c.Biomass())
	}
}

func TestIceFlagFollowsThickness(t *testing.T) {
	var c Cell
	c.SetIceThickness(IceFlagThreshold / 2)
	if c.IsIce() {
		t.Fatal("thin ice must not set the ice flag")
	}
	c.SetIceThickness(0.5)
	if !c.IsIce() {
		t.Fatal("thick ice must set the ice flag")
	}
}

func TestReclassifyUsesWaterLevel(t *testing.T) {
	w := New(8, 4)
	c := w.Get(2, 2)
	c.SetElevation(0.05)
	w.Reclassify()
	if !c.IsLand() {
		t.Fatal("cell above sea level should be land")
	}
	w.WaterLevel = 0.1
	w.Reclassify()
	if !c.IsWater() {
		t.Fatal("cell below raised water level should be water")
	}
}

func TestLandFractionMatchesRatio(t *testing.T) {
	for _, ratio := range []float64{0.1, 0.3, 0.5, 0.85} {
		opts := SmallTestOptions()
		opts.Width = 120
		opts.Height = 60
		opts.LandRatio = ratio
		w, err := Generate(opts)
		if err != nil {
			t.Fatalf("generate ratio %.2f: %v", ratio, err)
		}
		if got := w.LandFraction(); math.Abs(got-ratio) > 0.01 {
			t.Fatalf("land fraction %.4f, want %.2f ±0.01", got, ratio)
		}
	}
}

func TestGenerateDeterministic(t *testing.T) {
	a, err := Generate(SmallTestOptions())
	if err != nil {
		t.Fatal(err)
	}
	b, err := Generate(SmallTestOptions())
	if err != nil {
		t.Fatal(err)
	}
	elev := func(w *World) []float64 {
		out := make([]float64, w.Len())
		for i := range out {
			out[i] = w.Cell(i).Elevation()
		}
		return out
	}
	if !slices.Equal(elev(a), elev(b)) {
		t.Fatal("same seed produced different elevation")
	}
}

func TestGenerateInvariants(t *testing.T) {
	w, err := Generate(SmallTestOptions())
	if err != nil {
		t.Fatal(err)
	}
	boundaries := 0
	for i := 0; i < w.Len(); i++ {
		c := w.Cell(i)
		if c.Elevation() < -1 || c.Elevation() > 1 {
			t.Fatalf("cell %d elevation %f out of range", i, c.Elevation())
		}
		if c.Rainfall() < 0 || c.Rainfall() > 1 || c.Humidity() < 0 || c.Humidity() > 1 {
			t.Fatalf("cell %d moisture out of range", i)
		}
		if len(c.Geology.Sediment) == 0 {
			t.Fatalf("cell %d has an empty sediment column", i)
		}
		sum := c.Geology.Igneous + c.Geology.Sedimentary + c.Geology.Metamorphic
		if math.Abs(sum-1) > 1e-9 {
			t.Fatalf("cell %d rock fractions sum to %f", i, sum)
		}
		if c.Geology.Boundary != BoundaryNone {
			boundaries++
		}
	}
	if boundaries == 0 {
		t.Fatal("expected at least one plate boundary")
	}
}

func TestGenerateRejectsBadOptions(t *testing.T) {
	opts := SmallTestOptions()
	opts.LandRatio = 1.2
	if _, err := Generate(opts); !errors.Is(err, ErrInvalidOptions) {
		t.Fatalf("expected ErrInvalidOptions, got %v", err)
	}
	opts = SmallTestOptions()
	opts.Width = 2
	if _, err := Generate(opts); !errors.Is(err, ErrInvalidOptions) {
		t.Fatalf("expected ErrInvalidOptions for tiny width, got %v", err)
	}
}

func TestPolesAreColder(t *testing.T) {
	w, err := Generate(SmallTestOptions())
	if err != nil {
		t.Fatal(err)
	}
	rowMean := func(y int) float64 {
		sum := 0.0
		for x := 0; x < w.Width; x++ {
			sum += w.Get(x, y).Temperature()
		}
		return sum / float64(w.Width)
	}
	if rowMean(0) >= rowMean(w.Height/2) {
		t.Fatal("top row should be colder than the equator")
	}
}

func TestTablesComplete(t *testing.T) {
	for l := LifeForm(0); l < LifeFormCount; l++ {
		if l.Traits().Name == "" {
			t.Fatalf("life-form %d has no traits row", l)
		}
	}
	for b := BiomeType(0); b < BiomeCount; b++ {
		if b.String() == "" {
			t.Fatalf("biome %d has no name", b)
		}
	}
	for s := SedimentType(0); s < SedimentCount; s++ {
		if s.String() == "" {
			t.Fatalf("sediment %d has no name", s)
		}
	}
	for r := ResourceType(0); r < ResourceCount; r++ {
		if r.String() == "" || resourceRules[r].chance == nil {
			t.Fatalf("resource %d has no placement rule", r)
		}
	}
}

func TestCirculationSubtropicalFloor(t *testing.T) {
	if got := CirculationFactor(27.5); math.Abs(got-SubtropicalFloor) > 1e-9 {
		t.Fatalf("subtropical minimum should hit the floor, got %f", got)
	}
	if CirculationFactor(0) <= CirculationFactor(27.5) {
		t.Fatal("equatorial convergence should be wetter than the subtropical high")
	}
	if CirculationFactor(85) >= CirculationFactor(45) {
		t.Fatal("polar zone should be drier than the mid-latitudes")
	}
}

func TestSedimentColumnRules(t *testing.T) {
	var g Geology
	g.AppendSediment(SedimentSand)
	if g.ErodeTop() {
		t.Fatal("the last layer must never be eroded")
	}
	g.AppendSediment(SedimentClay)
	if top, _ := g.TopSediment(); top != SedimentClay {
		t.Fatalf("top layer = %v, want Clay", top)
	}
	if !g.ErodeTop() || len(g.Sediment) != 1 {
		t.Fatal("top layer should erode")
	}
}

func TestForEachRowVisitsAllRows(t *testing.T) {
	w := New(20, 40)
	w.Workers = 4
	seen := make([]int, w.Height)
	w.ForEachRow(func(y int) { seen[y]++ })
	for y, n := range seen {
		if n != 1 {
			t.Fatalf("row %d visited %d times", y, n)
		}
	}
}
