package persistence

import (
	"bytes"
	"errors"
	"log/slog"
	"path/filepath"
	"strings"
	"reflect"
	"slices"
	"testing"

	"github.com/talgya/planetsim/internal/disaster"
	"github.com/talgya/planetsim/internal/engine"
	"github.com/talgya/planetsim/internal/world"
)

func openTemp(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "planet.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func busySim(t *testing.T) *engine.Simulation {
	t.Helper()
	w, err := world.Generate(world.SmallTestOptions())
	if err != nil {
		t.Fatal(err)
	}
	s := engine.NewSimulation(w, engine.DefaultConfig())
	for k := 0; k < 3; k++ {
		s.Tick(1)
	}
	var lx, ly, wx, wy int
	for i := 0; i < w.Len(); i++ {
		c := w.Cell(i)
		if c.IsLand() {
			lx, ly = c.X, c.Y
		} else {
			wx, wy = c.X, c.Y
		}
	}
	if _, err := s.FoundCivilizationAt(lx, ly); err != nil {
		t.Fatal(err)
	}
	if err := s.TriggerDisaster(disaster.KindMeteor, wx, wy, 0.6); err != nil {
		t.Fatal(err)
	}
	return s
}

func TestLoadEmptyDatabase(t *testing.T) {
	db := openTemp(t)
	if _, err := db.LoadCheckpoint(); !errors.Is(err, ErrNoCheckpoint) {
		t.Fatalf("want ErrNoCheckpoint, got %v", err)
	}
}

func TestCheckpointRoundTrip(t *testing.T) {
	db := openTemp(t)
	s := busySim(t)
	cp := s.Checkpoint()
	if err := db.SaveCheckpoint(cp); err != nil {
		t.Fatal(err)
	}

	got, err := db.LoadCheckpoint()
	if err != nil {
		t.Fatal(err)
	}
	if got.ID != cp.ID || !got.Created.Equal(cp.Created) || got.Year != cp.Year || got.Tick != cp.Tick {
		t.Fatalf("header mismatch: %+v", got)
	}
	if got.Options != cp.Options || got.WaterLevel != cp.WaterLevel || got.Globals != cp.Globals {
		t.Fatal("world metadata mismatch")
	}
	if !reflect.DeepEqual(got.Cells, cp.Cells) {
		t.Fatal("cells differ after load")
	}
	if len(got.Civilizations) != len(cp.Civilizations) {
		t.Fatalf("want %d civilizations, got %d", len(cp.Civilizations), len(got.Civilizations))
	}
	for k, c := range cp.Civilizations {
		g := got.Civilizations[k]
		if g.ID != c.ID || g.Name != c.Name || g.Population != c.Population || !slices.Equal(g.Cells, c.Cells) {
			t.Fatalf("civilization %d differs: %+v vs %+v", k, g, c)
		}
	}
	if !reflect.DeepEqual(got.Storms, cp.Storms) {
		t.Fatal("storms differ after load")
	}
	if !reflect.DeepEqual(got.Disasters, cp.Disasters) {
		t.Fatal("disaster events differ after load")
	}
	if !reflect.DeepEqual(got.Waves, cp.Waves) {
		t.Fatal("wave field differs after load")
	}
	if got.Magnetosphere != cp.Magnetosphere {
		t.Fatal("magnetosphere state differs after load")
	}
	if len(got.Events) != len(cp.Events) {
		t.Fatalf("want %d events, got %d", len(cp.Events), len(got.Events))
	}
	for k := range cp.Events {
		if got.Events[k].Description != cp.Events[k].Description {
			t.Fatalf("event %d differs", k)
		}
	}
}

func TestSaveReplacesPrevious(t *testing.T) {
	db := openTemp(t)
	s := busySim(t)
	if err := db.SaveCheckpoint(s.Checkpoint()); err != nil {
		t.Fatal(err)
	}
	s.Tick(1)
	cp := s.Checkpoint()
	if err := db.SaveCheckpoint(cp); err != nil {
		t.Fatal(err)
	}
	got, err := db.LoadCheckpoint()
	if err != nil {
		t.Fatal(err)
	}
	if got.ID != cp.ID || got.Tick != cp.Tick || len(got.Cells) != len(cp.Cells) {
		t.Fatal("second save should fully replace the first")
	}
}

func TestResumeFromDatabase(t *testing.T) {
	db := openTemp(t)
	s := busySim(t)
	if err := db.SaveCheckpoint(s.Checkpoint()); err != nil {
		t.Fatal(err)
	}
	cp, err := db.LoadCheckpoint()
	if err != nil {
		t.Fatal(err)
	}
	r, err := engine.FromCheckpoint(cp, engine.DefaultConfig())
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(r.World.Snapshot(), s.World.Snapshot()) {
		t.Fatal("resumed grid differs from the saved one")
	}
	if r.Stats.Civilizations != s.Stats.Civilizations {
		t.Fatalf("want %d civilizations after resume, got %d", s.Stats.Civilizations, r.Stats.Civilizations)
	}
}

func TestRecentEventsNewestFirst(t *testing.T) {
	db := openTemp(t)
	s := busySim(t)
	cp := s.Checkpoint()
	if err := db.SaveCheckpoint(cp); err != nil {
		t.Fatal(err)
	}
	events, err := db.RecentEvents(1)
	if err != nil {
		t.Fatal(err)
	}
	if len(events) != 1 || events[0].Description != cp.Events[len(cp.Events)-1].Description {
		t.Fatalf("want the newest event, got %+v", events)
	}
}

func TestMetaSurvivesCheckpoint(t *testing.T) {
	db := openTemp(t)
	if _, err := db.GetMeta("config"); !errors.Is(err, ErrNoMeta) {
		t.Fatalf("want ErrNoMeta, got %v", err)
	}
	if err := db.SaveMeta("config", "world: {}"); err != nil {
		t.Fatal(err)
	}
	if err := db.SaveCheckpoint(busySim(t).Checkpoint()); err != nil {
		t.Fatal(err)
	}
	got, err := db.GetMeta("config")
	if err != nil || got != "world: {}" {
		t.Fatalf("got %q, %v", got, err)
	}
}

func TestCorruptEventMetaKeepsEvent(t *testing.T) {
	var logs bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewTextHandler(&logs, nil)))
	t.Cleanup(func() { slog.SetDefault(prev) })

	events := eventsFromRows([]eventRow{
		{Tick: 7, Description: "quake", Category: "disaster", MetaJSON: `{"x":`},
		{Tick: 8, Description: "flood", Category: "disaster", MetaJSON: `{"x":3}`},
	})
	if len(events) != 2 {
		t.Fatalf("want both events, got %d", len(events))
	}
	if events[0].Description != "quake" || events[0].Meta != nil {
		t.Fatalf("corrupt meta should drop only the annotation, got %+v", events[0])
	}
	if events[1].Meta["x"] != 3.0 {
		t.Fatalf("valid meta lost: %+v", events[1].Meta)
	}
	if !strings.Contains(logs.String(), "event meta unreadable") {
		t.Fatalf("corrupt meta should be logged, got %q", logs.String())
	}
}
