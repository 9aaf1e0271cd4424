package world

import (
	"slices"
	"testing"
)

func TestSnapshotLoadRoundTrip(t *testing.T) {
	src, err := Generate(SmallTestOptions())
	if err != nil {
		t.Fatal(err)
	}
	src.Get(3, 3).Life = LifePlant
	src.Get(4, 3).Engineered = true
	states := src.Snapshot()

	dst := New(src.Width, src.Height)
	if err := dst.Load(states); err != nil {
		t.Fatal(err)
	}
	for i := 0; i < src.Len(); i++ {
		a, b := src.Cell(i), dst.Cell(i)
		if a.Elevation() != b.Elevation() || a.Temperature() != b.Temperature() || a.Biomass() != b.Biomass() {
			t.Fatalf("cell %d scalars differ after load", i)
		}
		if a.IsLand() != b.IsLand() || a.IsIce() != b.IsIce() {
			t.Fatalf("cell %d derived flags not rebuilt", i)
		}
		if a.Life != b.Life || a.Engineered != b.Engineered || a.Biome != b.Biome {
			t.Fatalf("cell %d tags differ after load", i)
		}
		if !slices.Equal(a.Geology.Sediment, b.Geology.Sediment) {
			t.Fatalf("cell %d sediment column differs", i)
		}
	}
}

func TestSnapshotIsDeepCopy(t *testing.T) {
	w := New(8, 4)
	w.Cell(0).Geology.AppendSediment(SedimentSand)
	states := w.Snapshot()
	w.Cell(0).Geology.AppendSediment(SedimentClay)
	if len(states[0].Geology.Sediment) != 1 {
		t.Fatal("snapshot must not alias the live sediment column")
	}
}

func TestLoadRejectsWrongSize(t *testing.T) {
	w := New(8, 4)
	if err := w.Load(make([]CellState, 5)); err == nil {
		t.Fatal("mismatched cell count must fail")
	}
}

func TestLoadClampsValues(t *testing.T) {
	w := New(8, 4)
	states := w.Snapshot()
	states[0].Biomass = 7
	states[0].Elevation = -3
	if err := w.Load(states); err != nil {
		t.Fatal(err)
	}
	if w.Cell(0).Biomass() != 1 || w.Cell(0).Elevation() != MinElevation {
		t.Fatal("loaded values must pass through the clamping setters")
	}
}
