package gardener

import (
	"context"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/talgya/planetsim/internal/api"
	"github.com/talgya/planetsim/internal/engine"
	"github.com/talgya/planetsim/internal/world"
)

// barren builds a 4x2 snapshot: top row land, bottom row water, no life.
func barren() *PlanetSnapshot {
	snap := &PlanetSnapshot{}
	snap.Status.Width, snap.Status.Height = 4, 2
	snap.Status.Tick, snap.Status.Year = 100, 100
	snap.Land = Layer[bool]{Width: 4, Height: 2, Values: []bool{true, true, true, true, false, false, false, false}}
	snap.Life = Layer[string]{Width: 4, Height: 2, Values: []string{"None", "None", "None", "None", "None", "None", "None", "None"}}
	snap.Temperature = Layer[float64]{Width: 4, Height: 2, Values: []float64{-30, 10, 19, 60, 4, 17, 30, 24}}
	return snap
}

func TestTriageLevels(t *testing.T) {
	snap := barren()
	mem := &CycleMemory{}
	if h := Triage(snap, mem); h.CrisisLevel != LevelCritical {
		t.Fatalf("lifeless planet should be critical, got %s", h.CrisisLevel)
	}

	snap.Status.Stats.Globals.LifeCells = 8
	snap.Status.Stats.Globals.TotalBiomass = 4
	snap.Status.Stats.Globals.Oxygen = 21
	snap.Status.Stats.Globals.Temperature = 15
	if h := Triage(snap, mem); h.CrisisLevel != LevelHealthy || h.MeanBiomass != 0.5 {
		t.Fatalf("living planet should be healthy: %+v", h)
	}

	mem.Record(CycleRecord{Tick: 50, MeanBiomass: 0.6})
	h := Triage(snap, mem)
	if h.CrisisLevel != LevelWarning || h.BiomassTrend >= 0 {
		t.Fatalf("biomass falling from 0.6 to 0.5 should warn: %+v", h)
	}

	mem.Record(CycleRecord{Tick: 500, MeanBiomass: 2})
	if h := Triage(snap, mem); h.BiomassTrend != 0 {
		t.Fatal("a record from a later tick belongs to another history")
	}
}

func TestDecideSeedsBarrenLand(t *testing.T) {
	snap := barren()
	h := &PlanetHealth{CrisisLevel: LevelWarning}
	d := Decide(snap, h, &CycleMemory{})
	if d.Action != ActionSeedLife || d.Intervention.Life != "Plant" {
		t.Fatalf("want plants seeded, got %+v", d)
	}
	if d.Intervention.X != 2 || d.Intervention.Y != 0 {
		t.Fatalf("want the 19°C land cell, got (%d,%d)", d.Intervention.X, d.Intervention.Y)
	}
}

func TestDecideCriticalUsesBacteria(t *testing.T) {
	snap := barren()
	d := Decide(snap, &PlanetHealth{CrisisLevel: LevelCritical}, &CycleMemory{})
	if d.Intervention == nil || d.Intervention.Life != "Bacteria" || d.Intervention.Radius != MaxRadius {
		t.Fatalf("critical planet should get a full bacteria brush, got %+v", d)
	}
	if d.Intervention.X != 3 || d.Intervention.Y != 1 {
		t.Fatalf("want the 24°C water cell, got (%d,%d)", d.Intervention.X, d.Intervention.Y)
	}
}

func TestDecideFallsBackToAlgae(t *testing.T) {
	snap := barren()
	for i := 0; i < 4; i++ {
		snap.Life.Values[i] = "Plant"
	}
	d := Decide(snap, &PlanetHealth{CrisisLevel: LevelWarning}, &CycleMemory{})
	if d.Intervention == nil || d.Intervention.Life != "Algae" || d.Intervention.Y != 1 {
		t.Fatalf("with no barren land algae go to sea, got %+v", d)
	}
}

func TestDecideRestraint(t *testing.T) {
	snap := barren()
	if d := Decide(snap, &PlanetHealth{CrisisLevel: LevelHealthy}, &CycleMemory{}); d.Action != ActionNone {
		t.Fatal("healthy planet should be left alone")
	}
	if d := Decide(snap, &PlanetHealth{CrisisLevel: LevelWarning, ActiveDisasters: 1}, &CycleMemory{}); d.Action != ActionNone {
		t.Fatal("warning during a disaster should wait")
	}
	mem := &CycleMemory{}
	mem.Record(CycleRecord{Tick: 90, Year: 90, Action: ActionSeedLife})
	if d := Decide(snap, &PlanetHealth{CrisisLevel: LevelCritical}, mem); d.Action != ActionNone {
		t.Fatal("cooldown should hold back a second intervention")
	}
}

func TestGuardrails(t *testing.T) {
	snap := barren()
	d := &Decision{Action: ActionSeedLife, Intervention: &Intervention{Life: "Dinosaur"}}
	if err := enforceGuardrails(d, snap); err == nil {
		t.Fatal("only simple life may be seeded")
	}
	d = &Decision{Action: ActionSeedLife, Intervention: &Intervention{Life: "Plant", X: 1, Radius: 9}}
	if err := enforceGuardrails(d, snap); err != nil || d.Intervention.Radius != MaxRadius {
		t.Fatalf("radius should be capped: %v %+v", err, d.Intervention)
	}
	d = &Decision{Action: "terraform"}
	if err := enforceGuardrails(d, snap); err == nil {
		t.Fatal("unknown action should be rejected")
	}
}

func TestMemoryPersists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "memory.json")
	mem, err := LoadMemory(path)
	if err != nil || len(mem.Records) != 0 {
		t.Fatalf("missing file should load empty: %v", err)
	}
	for k := 0; k < maxRecords+3; k++ {
		mem.Record(CycleRecord{Tick: uint64(k), Action: ActionNone})
	}
	mem.Record(CycleRecord{Tick: 99, Action: ActionSeedLife})
	if err := mem.Save(); err != nil {
		t.Fatal(err)
	}

	got, err := LoadMemory(path)
	if err != nil {
		t.Fatal(err)
	}
	if got.Records[0].Tick != 4 {
		t.Fatalf("oldest kept record should be tick 4, got %d", got.Records[0].Tick)
	}
	if len(got.Records) != maxRecords {
		t.Fatalf("want %d records, got %d", maxRecords, len(got.Records))
	}
	if last, ok := got.LastAction(); !ok || last.Tick != 99 {
		t.Fatalf("last action lost: %+v", last)
	}
}

func TestCorruptMemoryStartsFresh(t *testing.T) {
	path := filepath.Join(t.TempDir(), "memory.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}
	mem, err := LoadMemory(path)
	if err == nil {
		t.Fatal("want a decode error")
	}
	if mem == nil || len(mem.Records) != 0 {
		t.Fatal("corrupt memory should still yield usable empty memory")
	}
}

func TestCycleAgainstLiveAPI(t *testing.T) {
	w, err := world.Generate(world.SmallTestOptions())
	if err != nil {
		t.Fatal(err)
	}
	sim := engine.NewSimulation(w, engine.DefaultConfig())
	srv := &api.Server{Sim: sim, Eng: engine.NewEngine(sim), AdminKey: "k"}
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	ctx := context.Background()
	if !NewClient(ts.URL, "").Ready(ctx) {
		t.Fatal("API should report ready")
	}
	snap, err := NewClient(ts.URL+"/", "").Observe(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if snap.Status.Width != 48 || len(snap.Life.Values) != 48*24 {
		t.Fatalf("snapshot incomplete: %+v", snap.Status)
	}

	x, y, ok := pickCell(snap, "Bacteria")
	if !ok {
		t.Skip("generated planet has no barren cell")
	}
	res, err := NewClient(ts.URL, "k").Act(ctx, &Intervention{Type: ActionSeedLife, X: x, Y: y, Life: "Bacteria"})
	if err != nil {
		t.Fatal(err)
	}
	if !res.Success || res.Cells != 1 {
		t.Fatalf("seeding one cell: %+v", res)
	}
	if got := sim.World.Get(x, y).Life; got != world.LifeBacteria {
		t.Fatalf("cell holds %s after seeding", got)
	}
	if _, err := NewClient(ts.URL, "wrong").Act(ctx, &Intervention{Type: ActionSeedLife, X: x, Y: y, Life: "Bacteria"}); err == nil {
		t.Fatal("bad admin key should fail")
	}
}
