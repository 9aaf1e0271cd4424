package engine

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/talgya/planetsim/internal/civilization"
	"github.com/talgya/planetsim/internal/disaster"
	"github.com/talgya/planetsim/internal/geology"
	"github.com/talgya/planetsim/internal/world"
)

// Intervention errors.
var (
	ErrOutOfBounds   = errors.New("coordinates out of bounds")
	ErrNotLand       = errors.New("cell is not land")
	ErrNotWater      = errors.New("cell is not water")
	ErrOccupied      = errors.New("cell already claimed")
	ErrUninhabitable = errors.New("no cell in range can host that life-form")
	ErrUnknownKind   = errors.New("unknown kind")
)

// locate validates the row and returns the cell index; columns wrap.
func (s *Simulation) locate(x, y int) (int, error) {
	if y < 0 || y >= s.World.Height {
		return 0, fmt.Errorf("%w: (%d,%d) on a %dx%d grid", ErrOutOfBounds, x, y, s.World.Width, s.World.Height)
	}
	return s.World.Index(x, y), nil
}

// SeedLife paints life-form l over a disc of the given radius around (x, y).
// Cells l cannot live in and settled cells are skipped. Returns the number of
// cells painted.
func (s *Simulation) SeedLife(x, y, radius int, l world.LifeForm) (int, error) {
	w := s.World
	w.Lock()
	defer w.Unlock()

	if _, err := s.locate(x, y); err != nil {
		return 0, err
	}
	if !l.Alive() || l >= world.LifeCivilization {
		return 0, fmt.Errorf("%w: life-form %s cannot be painted", ErrUnknownKind, l)
	}
	radius = max(0, radius)

	painted := 0
	for dy := -radius; dy <= radius; dy++ {
		yy := y + dy
		if yy < 0 || yy >= w.Height {
			continue
		}
		for dx := -radius; dx <= radius; dx++ {
			if dx*dx+dy*dy > radius*radius {
				continue
			}
			c := w.Get(x+dx, yy)
			if c.Life == world.LifeCivilization || !l.CanLiveIn(c) {
				continue
			}
			c.Life = l
			if c.Biomass() < 0.1 {
				c.SetBiomass(0.1)
			}
			painted++
		}
	}
	if painted == 0 {
		return 0, fmt.Errorf("%w: %s at (%d,%d)", ErrUninhabitable, l, x, y)
	}

	s.EmitEvent(Event{
		Year:        s.Year,
		Description: fmt.Sprintf("%s seeded over %d cells around (%d,%d)", l, painted, x, y),
		Category:    "intervention",
		Meta:        map[string]any{"life": l.String(), "cells": painted, "x": x, "y": y},
	})
	slog.Info("seed life intervention", "life", l, "x", x, "y", y, "cells", painted)
	return painted, nil
}

// PlaceResource adds a deposit of type t to (x, y). A non-positive amount
// draws a random one.
func (s *Simulation) PlaceResource(x, y int, t world.ResourceType, amount float64) (world.Deposit, error) {
	w := s.World
	w.Lock()
	defer w.Unlock()

	i, err := s.locate(x, y)
	if err != nil {
		return world.Deposit{}, err
	}
	if t >= world.ResourceCount {
		return world.Deposit{}, fmt.Errorf("%w: resource %d", ErrUnknownKind, t)
	}
	d := world.NewDeposit(t, s.rng)
	if amount > 0 {
		d.Amount = amount
	}
	w.Cell(i).AddDeposit(d)

	s.EmitEvent(Event{
		Year:        s.Year,
		Description: fmt.Sprintf("A deposit of %s is found at (%d,%d)", t, x, y),
		Category:    "intervention",
		Meta:        map[string]any{"resource": t.String(), "amount": d.Amount, "x": x, "y": y},
	})
	slog.Info("place resource intervention", "resource", t, "x", x, "y", y, "amount", d.Amount)
	return d, nil
}

// TriggerDisaster starts a disaster of the given kind at (x, y). Magnitude is
// the wave height for tsunamis, the Richter magnitude for earthquakes, the
// water depth for floods and the size in (0, 1] for meteors.
func (s *Simulation) TriggerDisaster(kind disaster.Kind, x, y int, magnitude float64) error {
	w := s.World
	w.Lock()
	defer w.Unlock()

	i, err := s.locate(x, y)
	if err != nil {
		return err
	}
	c := w.Cell(i)
	switch kind {
	case disaster.KindTsunami:
		if !c.IsWater() {
			return fmt.Errorf("%w: tsunamis start at sea", ErrNotWater)
		}
		s.Disasters.Launch(w, x, y, magnitude, s.Year)
	case disaster.KindEarthquake:
		s.Disasters.Earthquake(w, geology.Quake{
			X:         c.X,
			Y:         c.Y,
			Magnitude: world.Clamp(magnitude, 4, 9),
			Offshore:  c.IsWater() || w.Coastal(i),
		}, s.Year)
	case disaster.KindFlood:
		if !c.IsLand() {
			return fmt.Errorf("%w: floods need dry ground", ErrNotLand)
		}
		s.Disasters.Flood(w, x, y, magnitude)
	case disaster.KindMeteor:
		s.Disasters.Meteor(w, x, y, magnitude, s.Year)
	default:
		return fmt.Errorf("%w: disaster %d", ErrUnknownKind, kind)
	}
	s.collectDisasters("intervention")
	slog.Info("disaster intervention", "kind", kind, "x", x, "y", y, "magnitude", magnitude)
	return nil
}

// FoundCivilizationAt founds a civilization on the land cell (x, y).
func (s *Simulation) FoundCivilizationAt(x, y int) (civilization.Civilization, error) {
	w := s.World
	w.Lock()
	defer w.Unlock()

	i, err := s.locate(x, y)
	if err != nil {
		return civilization.Civilization{}, err
	}
	if !w.Cell(i).IsLand() {
		return civilization.Civilization{}, fmt.Errorf("%w: (%d,%d)", ErrNotLand, x, y)
	}
	c, ok := s.Civilizations.FoundAt(w, x, y, s.Year)
	if !ok {
		return civilization.Civilization{}, fmt.Errorf("%w: (%d,%d)", ErrOccupied, x, y)
	}
	s.collectNotices()
	s.updateStats()
	return c.Clone(), nil
}

// TriggerSolarStorm raises radiation planet-wide for a few years.
func (s *Simulation) TriggerSolarStorm() {
	s.World.Lock()
	defer s.World.Unlock()
	s.Magnetosphere.StartSolarStorm()
	s.EmitEvent(Event{Year: s.Year, Description: "A solar storm strikes the planet", Category: "intervention"})
}

// TriggerReversal starts a magnetic polarity reversal.
func (s *Simulation) TriggerReversal() {
	s.World.Lock()
	defer s.World.Unlock()
	s.Magnetosphere.StartReversal(s.Year)
	s.EmitEvent(Event{Year: s.Year, Description: "The magnetic poles begin to wander", Category: "intervention"})
}
