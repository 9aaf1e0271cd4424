package magnetosphere

import (
	"testing"

	"github.com/talgya/planetsim/internal/world"
)

func TestFieldStrongerAtPoles(t *testing.T) {
	if FieldStrength(1, 90) <= FieldStrength(1, 0) {
		t.Fatal("dipole field should be stronger at the poles")
	}
	if got := FieldStrength(1, 90); got < 1.999 || got > 2.001 {
		t.Fatalf("polar field should be twice the equatorial, got %f", got)
	}
	if Shielding(1, 85) >= Shielding(1, 0) {
		t.Fatal("shielding should weaken towards the poles")
	}
}

func TestReversalCollapsesField(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Drift = 0
	cfg.ReversalChance = 0
	cfg.SolarStormChance = 0
	s := New(cfg, 1)
	w := world.New(8, 8)

	s.StartReversal(0)
	for year := 0.0; year < cfg.ReversalDuration/2; year++ {
		s.Update(w, 1, year)
	}
	if eff := s.Effective(); eff > cfg.ReversalFloor+1e-9 {
		t.Fatalf("field should sit at the floor mid-reversal, got %f", eff)
	}
	for year := cfg.ReversalDuration / 2; year <= cfg.ReversalDuration+1; year++ {
		s.Update(w, 1, year)
	}
	st := s.State()
	if st.Reversing || st.Reversals != 1 {
		t.Fatalf("reversal should complete: %+v", st)
	}
	if s.Effective() < 0.9 {
		t.Fatalf("field should recover, got %f", s.Effective())
	}
}

func TestSolarStormAurora(t *testing.T) {
	cfg := DefaultConfig()
	cfg.SolarStormChance = 0
	s := New(cfg, 1)
	w := world.New(8, 18)
	s.StartSolarStorm()
	s.Update(w, 0.1, 0)

	if !w.Get(0, 0).Magnetic.Aurora {
		t.Fatal("polar row should show aurora during a solar storm")
	}
	if w.Get(0, 9).Magnetic.Aurora {
		t.Fatal("equator should not show aurora")
	}
}

func TestRadiationHarmsLandBiomass(t *testing.T) {
	cfg := DefaultConfig()
	cfg.HarmThreshold = 0.1
	s := New(cfg, 1)
	w := world.New(8, 4)
	c := w.Get(2, 1)
	c.SetElevation(0.3)
	c.SetBiomass(0.8)
	c.SetOxygen(0)
	w.Reclassify()

	s.Update(w, 1, 0)
	if c.Biomass() >= 0.8 {
		t.Fatalf("radiation above threshold should damage biomass, got %f", c.Biomass())
	}
	if c.Magnetic.Radiation <= w.Get(2, 3).Magnetic.Radiation {
		t.Fatal("unshielded land without ozone should out-dose open water")
	}
}
