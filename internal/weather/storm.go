package weather

import (
	"math"

	"github.com/google/uuid"

	"github.com/talgya/planetsim/internal/world"
)

// StormKind tags a storm system.
type StormKind uint8

const (
	StormTropicalCyclone StormKind = iota
	StormBlizzard
	StormThunderstorm
	stormKindCount
)

var stormKindNames = [stormKindCount]string{
	StormTropicalCyclone: "Tropical Cyclone",
	StormBlizzard:        "Blizzard",
	StormThunderstorm:    "Thunderstorm",
}

func (k StormKind) String() string {
	if k >= stormKindCount {
		return "Unknown"
	}
	return stormKindNames[k]
}

// Radius is the footprint of a fresh storm of this kind, in cells.
func (k StormKind) Radius() float64 {
	switch k {
	case StormTropicalCyclone:
		return 3
	case StormBlizzard:
		return 2.5
	default:
		return 1.5
	}
}

// Storm is a transient weather system.
type Storm struct {
	ID        uuid.UUID `json:"id"`
	Kind      StormKind `json:"kind"`
	X         float64   `json:"x"`
	Y         float64   `json:"y"`
	VX        float64   `json:"vx"`
	VY        float64   `json:"vy"`
	Intensity float64   `json:"intensity"` // 0..1
	Radius    float64   `json:"radius"`
	Age       float64   `json:"age"` // years
}

// Cell returns the cell under the eye of the storm.
func (st *Storm) Cell(w *world.World) *world.Cell {
	return w.Get(int(math.Floor(st.X)), int(math.Floor(st.Y)))
}

// StormKindFor reports which storm a cell can spawn, if any: cyclones over warm
// tropical water, blizzards in cold humid high latitudes, thunderstorms over
// warm humid land.
func StormKindFor(c *world.Cell, lat float64) (StormKind, bool) {
	a := math.Abs(lat)
	switch {
	case c.IsWater() && c.Temperature() > 26 && a > 5 && a < 30:
		return StormTropicalCyclone, true
	case a > 45 && c.Temperature() < -2 && c.Humidity() > 0.5:
		return StormBlizzard, true
	case c.IsLand() && c.Temperature() > 20 && c.Humidity() > 0.6:
		return StormThunderstorm, true
	}
	return 0, false
}
