// Package gardener implements the autonomous planet steward.
// It observes the planet via the API, triages its health, picks at most one
// intervention per cycle by fixed rules, and acts via the admin intervention
// endpoint.
package gardener

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"
)

// PlanetSnapshot holds all data collected during an observation cycle.
type PlanetSnapshot struct {
	Status        PlanetStatus       `json:"status"`
	Civilizations []CivilizationInfo `json:"civilizations"`
	Disasters     []DisasterInfo     `json:"disasters"`
	Land          Layer[bool]        `json:"land"`
	Life          Layer[string]      `json:"life"`
	Temperature   Layer[float64]     `json:"temperature"`
}

// PlanetStatus mirrors GET /api/v1/status.
type PlanetStatus struct {
	Year    float64 `json:"year"`
	Tick    uint64  `json:"tick"`
	Width   int     `json:"width"`
	Height  int     `json:"height"`
	Seed    int64   `json:"seed"`
	Season  string  `json:"season"`
	Speed   float64 `json:"speed"`
	Running bool    `json:"running"`
	Stats   struct {
		Globals struct {
			Temperature  float64 `json:"temperature"`
			Oxygen       float64 `json:"oxygen"`
			CO2          float64 `json:"co2"`
			TotalBiomass float64 `json:"total_biomass"`
			LifeCells    int     `json:"life_cells"`
		} `json:"globals"`
		Civilizations int   `json:"civilizations"`
		Population    int64 `json:"population"`
		Storms        int   `json:"storms"`
		Outbreaks     int   `json:"outbreaks"`
		Disasters     int   `json:"disasters"`
	} `json:"stats"`
}

// CivilizationInfo mirrors items from GET /api/v1/civilizations.
type CivilizationInfo struct {
	ID         uint64 `json:"id"`
	Name       string `json:"name"`
	Population int64  `json:"population"`
	Stage      string `json:"stage"`
	Cells      int    `json:"cells"`
}

// DisasterInfo mirrors items from GET /api/v1/disasters.
type DisasterInfo struct {
	Kind      string  `json:"kind"`
	X         int     `json:"x"`
	Y         int     `json:"y"`
	Intensity float64 `json:"intensity"`
}

// Layer mirrors GET /api/v1/map for one layer, row-major.
type Layer[T any] struct {
	Width  int `json:"width"`
	Height int `json:"height"`
	Values []T `json:"values"`
}

// Observe fetches the status, lists and map layers concurrently and returns
// a PlanetSnapshot whose layers agree with the reported grid size.
func (c *Client) Observe(ctx context.Context) (*PlanetSnapshot, error) {
	snap := &PlanetSnapshot{}
	sources := []struct {
		path   string
		target any
	}{
		{"/api/v1/status", &snap.Status},
		{"/api/v1/civilizations", &snap.Civilizations},
		{"/api/v1/disasters", &snap.Disasters},
		{"/api/v1/map?layer=land", &snap.Land},
		{"/api/v1/map?layer=life", &snap.Life},
		{"/api/v1/map?layer=temperature", &snap.Temperature},
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, src := range sources {
		g.Go(func() error {
			return c.get(gctx, src.path, src.target)
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("observe: %w", err)
	}

	n := snap.Status.Width * snap.Status.Height
	if len(snap.Land.Values) != n || len(snap.Life.Values) != n || len(snap.Temperature.Values) != n {
		return nil, fmt.Errorf("map layers do not match the %dx%d grid", snap.Status.Width, snap.Status.Height)
	}
	return snap, nil
}
