package engine

import (
	"context"
	"errors"
	"math"
	"reflect"
	"testing"

	"github.com/talgya/planetsim/internal/disaster"
	"github.com/talgya/planetsim/internal/world"
)

func newSim(t *testing.T) *Simulation {
	t.Helper()
	w, err := world.Generate(world.SmallTestOptions())
	if err != nil {
		t.Fatal(err)
	}
	return NewSimulation(w, DefaultConfig())
}

// find returns the coordinates of the first cell matching pred.
func find(t *testing.T, w *world.World, pred func(c *world.Cell) bool) (int, int) {
	t.Helper()
	for i := 0; i < w.Len(); i++ {
		if c := w.Cell(i); pred(c) {
			return c.X, c.Y
		}
	}
	t.Fatal("no matching cell")
	return 0, 0
}

func land(c *world.Cell) bool  { return c.IsLand() && c.Life != world.LifeCivilization }
func water(c *world.Cell) bool { return c.IsWater() }

func TestTickAdvancesYear(t *testing.T) {
	s := newSim(t)
	s.Tick(1)
	s.Tick(0.5)
	if s.Year != 1.5 || s.CurrentTick() != 2 {
		t.Fatalf("year %v tick %d after two ticks", s.Year, s.CurrentTick())
	}
	if st := s.Status(); st.Year != 1.5 || st.Width != 48 {
		t.Fatalf("status out of date: %+v", st)
	}
}

func TestTickDeterministic(t *testing.T) {
	a, b := newSim(t), newSim(t)
	for k := 0; k < 15; k++ {
		a.Tick(1)
		b.Tick(1)
	}
	if !reflect.DeepEqual(a.World.Snapshot(), b.World.Snapshot()) {
		t.Fatal("same seed must produce the same history")
	}
	if a.Stats != b.Stats {
		t.Fatalf("stats diverged: %+v vs %+v", a.Stats, b.Stats)
	}
}

func TestInterventionErrors(t *testing.T) {
	s := newSim(t)
	lx, ly := find(t, s.World, land)
	wx, wy := find(t, s.World, water)

	if _, err := s.SeedLife(0, -1, 1, world.LifePlant); !errors.Is(err, ErrOutOfBounds) {
		t.Fatalf("row -1 should be out of bounds, got %v", err)
	}
	if _, err := s.FoundCivilizationAt(wx, wy); !errors.Is(err, ErrNotLand) {
		t.Fatalf("founding at sea should fail with ErrNotLand, got %v", err)
	}
	if _, err := s.FoundCivilizationAt(lx, ly); err != nil {
		t.Fatal(err)
	}
	if _, err := s.FoundCivilizationAt(lx, ly); !errors.Is(err, ErrOccupied) {
		t.Fatalf("second founding on the same cell should fail with ErrOccupied, got %v", err)
	}
	if err := s.TriggerDisaster(disaster.KindFlood, wx, wy, 1); !errors.Is(err, ErrNotLand) {
		t.Fatalf("flooding the sea should fail, got %v", err)
	}
	if err := s.TriggerDisaster(disaster.KindTsunami, lx, ly, 1); !errors.Is(err, ErrNotWater) {
		t.Fatalf("tsunami on land should fail, got %v", err)
	}
	if _, err := s.PlaceResource(lx, ly, world.ResourceCount, 1); !errors.Is(err, ErrUnknownKind) {
		t.Fatalf("unknown resource should fail, got %v", err)
	}
}

func TestSeedLifeRespectsHabitat(t *testing.T) {
	s := newSim(t)
	lx, ly := find(t, s.World, func(c *world.Cell) bool {
		return land(c) && world.LifePlant.CanLiveIn(c)
	})
	if _, err := s.SeedLife(lx, ly, 0, world.LifeFish); !errors.Is(err, ErrUninhabitable) {
		t.Fatalf("fish cannot be painted on land, got %v", err)
	}
	n, err := s.SeedLife(lx, ly, 0, world.LifePlant)
	if err != nil || n != 1 {
		t.Fatalf("painting one plant cell: n=%d err=%v", n, err)
	}
	if s.World.Get(lx, ly).Life != world.LifePlant {
		t.Fatal("cell should carry the painted life-form")
	}
	last := s.Events[len(s.Events)-1]
	if last.Category != "intervention" {
		t.Fatalf("painting should be logged, last event %+v", last)
	}
}

func TestPlaceResource(t *testing.T) {
	s := newSim(t)
	d, err := s.PlaceResource(3, 3, world.ResourceGold, 42)
	if err != nil {
		t.Fatal(err)
	}
	if d.Amount != 42 || !s.World.Get(3, 3).HasDeposit(world.ResourceGold) {
		t.Fatalf("deposit not placed: %+v", d)
	}
}

func TestDisasterLoggedOnce(t *testing.T) {
	s := newSim(t)
	wx, wy := find(t, s.World, water)
	if err := s.TriggerDisaster(disaster.KindMeteor, wx, wy, 0.5); err != nil {
		t.Fatal(err)
	}
	count := func() int {
		n := 0
		for _, e := range s.Events {
			if e.Meta["kind"] == "Meteor" {
				n++
			}
		}
		return n
	}
	if count() != 1 {
		t.Fatalf("meteor should be logged once, got %d", count())
	}
	s.Tick(1)
	if count() != 1 {
		t.Fatalf("meteor must not be logged again by the next tick, got %d", count())
	}
}

func TestEventsTrimmed(t *testing.T) {
	s := newSim(t)
	s.cfg.MaxEvents = 3
	s.Events = nil
	for k := 0; k < 5; k++ {
		s.EmitEvent(Event{Description: string(rune('a' + k))})
	}
	if len(s.Events) != 3 || s.Events[0].Description != "c" || s.Events[2].Description != "e" {
		t.Fatalf("want the last three events, got %+v", s.Events)
	}
}

func TestCheckpointRoundTrip(t *testing.T) {
	s := newSim(t)
	for k := 0; k < 5; k++ {
		s.Tick(1)
	}
	lx, ly := find(t, s.World, land)
	civ, err := s.FoundCivilizationAt(lx, ly)
	if err != nil {
		t.Fatal(err)
	}
	cp := s.Checkpoint()

	r, err := FromCheckpoint(cp, DefaultConfig())
	if err != nil {
		t.Fatal(err)
	}
	if r.Year != s.Year || r.CurrentTick() != s.CurrentTick() {
		t.Fatalf("clock not restored: year %v tick %d", r.Year, r.CurrentTick())
	}
	if r.World.WaterLevel != s.World.WaterLevel {
		t.Fatal("water level not restored")
	}
	if !reflect.DeepEqual(r.World.Snapshot(), s.World.Snapshot()) {
		t.Fatal("grid differs after restore")
	}
	for i := 0; i < s.World.Len(); i++ {
		if r.World.Cell(i).IsLand() != s.World.Cell(i).IsLand() {
			t.Fatalf("derived land flag differs at %d", i)
		}
	}
	i := s.World.Index(lx, ly)
	if r.Civilizations.Owner(i) != civ.ID || r.Civilizations.Get(civ.ID).Name != civ.Name {
		t.Fatal("civilization territory not restored")
	}
	if len(r.Events) != len(s.Events) {
		t.Fatalf("event log not restored: %d vs %d", len(r.Events), len(s.Events))
	}
	r.Tick(1)
	if r.Year != s.Year+1 {
		t.Fatal("restored simulation should keep ticking")
	}
}

func TestRestoreRejectsOtherGrid(t *testing.T) {
	s := newSim(t)
	cp := s.Checkpoint()
	cp.Options.Width++
	if err := s.Restore(cp); err == nil {
		t.Fatal("restoring a checkpoint of another size must fail")
	}
}

func TestEngineRunsMaxTicks(t *testing.T) {
	s := newSim(t)
	e := NewEngine(s)
	e.MaxTicks = 6
	e.ReportEvery = 2
	e.CheckpointEvery = 3
	ticks, reports, checkpoints := 0, 0, 0
	e.OnTick = func(uint64) { ticks++ }
	e.OnReport = func(uint64) { reports++ }
	e.OnCheckpoint = func(uint64) { checkpoints++ }

	e.Run(context.Background())
	if ticks != 6 || reports != 3 || checkpoints != 2 {
		t.Fatalf("ticks=%d reports=%d checkpoints=%d", ticks, reports, checkpoints)
	}
	if e.Running() {
		t.Fatal("engine should report stopped after Run returns")
	}
}

func TestEngineStopsOnCancel(t *testing.T) {
	s := newSim(t)
	e := NewEngine(s)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	e.Run(ctx)
	if s.CurrentTick() != 0 {
		t.Fatalf("cancelled engine should not tick, ran %d", s.CurrentTick())
	}
}

func TestEarthPresetStability(t *testing.T) {
	if testing.Short() {
		t.Skip("long-run regression")
	}
	w, err := world.Generate(world.EarthPreset())
	if err != nil {
		t.Fatal(err)
	}
	w.Workers = 4
	s := NewSimulation(w, DefaultConfig())
	for k := 0; k < 1000; k++ {
		s.Tick(1)
		g := s.World.Globals
		if math.IsNaN(g.Temperature) || g.Temperature < -60 || g.Temperature > 60 {
			t.Fatalf("tick %d: global temperature %v out of range", k, g.Temperature)
		}
	}
	for i := 0; i < w.Len(); i++ {
		c := w.Cell(i)
		if b := c.Biomass(); math.IsNaN(b) || b < 0 || b > 1 {
			t.Fatalf("cell %d biomass %v", i, b)
		}
		if r := c.Rainfall(); math.IsNaN(r) || r < 0 || r > 1 {
			t.Fatalf("cell %d rainfall %v", i, r)
		}
	}
}

func TestSubscribeReceivesEvents(t *testing.T) {
	s := newSim(t)
	id, ch := s.Subscribe()
	s.EmitEvent(Event{Description: "hello", Category: "test"})
	select {
	case e := <-ch:
		if e.Description != "hello" {
			t.Fatalf("got %+v", e)
		}
	default:
		t.Fatal("subscriber should have the event buffered")
	}

	s.Unsubscribe(id)
	if _, ok := <-ch; ok {
		t.Fatal("channel should be closed after Unsubscribe")
	}
	s.EmitEvent(Event{Description: "after"})
}

func TestSubscribeRecentSplitsBacklog(t *testing.T) {
	s := newSim(t)
	for k := 0; k < 3; k++ {
		s.EmitEvent(Event{Description: "old"})
	}
	id, ch, recent := s.SubscribeRecent(2)
	defer s.Unsubscribe(id)
	if len(recent) != 2 || len(ch) != 0 {
		t.Fatalf("want 2 backlog events and an empty channel, got %d and %d", len(recent), len(ch))
	}

	s.View(func(sim *Simulation) {
		sim.EmitEvent(Event{Description: "new"})
	})
	if len(ch) != 1 {
		t.Fatalf("want the new event on the channel only, got %d", len(ch))
	}
	if e := <-ch; e.Description != "new" {
		t.Fatalf("got %+v", e)
	}
	for _, e := range recent {
		if e.Description != "old" {
			t.Fatalf("backlog picked up %+v", e)
		}
	}
}

func TestSlowSubscriberDoesNotBlock(t *testing.T) {
	s := newSim(t)
	_, ch := s.Subscribe()
	for k := 0; k < subscriberBuffer+10; k++ {
		s.EmitEvent(Event{Description: "flood"})
	}
	if len(ch) != subscriberBuffer {
		t.Fatalf("want a full buffer of %d, got %d", subscriberBuffer, len(ch))
	}
}
