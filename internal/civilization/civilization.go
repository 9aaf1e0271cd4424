// Package civilization runs the settlement state machine: emergence from
// intelligent life, growth, territorial expansion, environmental impact,
// diplomacy and collapse.
package civilization

import (
	"maps"
	"slices"
)

// Stage is the coarse development stage of a civilization.
type Stage uint8

const (
	StageTribal Stage = iota
	StageAgricultural
	StageIndustrial
	StageScientific
	StageSpacefaring
)

// stageThresholds[s] is the tech level at which stage s begins.
var stageThresholds = [...]float64{
	StageTribal:       0,
	StageAgricultural: 10,
	StageIndustrial:   30,
	StageScientific:   60,
	StageSpacefaring:  100,
}

var stageNames = [...]string{"Tribal", "Agricultural", "Industrial", "Scientific", "Spacefaring"}

func (s Stage) String() string {
	if int(s) < len(stageNames) {
		return stageNames[s]
	}
	return "Unknown"
}

// StageFor returns the stage a tech level qualifies for.
func StageFor(tech float64) Stage {
	st := StageTribal
	for s := StageAgricultural; int(s) < len(stageThresholds); s++ {
		if tech >= stageThresholds[s] {
			st = s
		}
	}
	return st
}

// Civilization is one settlement polity and its territory.
type Civilization struct {
	ID      uint64 `json:"id"`
	Name    string `json:"name"`
	CenterX int    `json:"center_x"`
	CenterY int    `json:"center_y"`

	// Territory is the set of owned cell indices.
	Territory map[int]struct{} `json:"-"`

	Population int64   `json:"population"`
	Tech       float64 `json:"tech"`
	Stage      Stage   `json:"stage"`

	// Temperament, both 0..1.
	Aggression      float64 `json:"aggression"`
	EcoFriendliness float64 `json:"eco_friendliness"`

	Founded float64 `json:"founded"` // simulation year
	Dead    bool    `json:"-"`
}

// Size is the number of owned cells.
func (c *Civilization) Size() int {
	return len(c.Territory)
}

// Owns reports whether cell i belongs to the civilization.
func (c *Civilization) Owns(i int) bool {
	_, ok := c.Territory[i]
	return ok
}

// Cells returns the owned cell indices in ascending order.
func (c *Civilization) Cells() []int {
	return slices.Sorted(maps.Keys(c.Territory))
}

// Clone returns a deep copy safe to hand to readers outside the tick.
func (c *Civilization) Clone() Civilization {
	cp := *c
	cp.Territory = maps.Clone(c.Territory)
	if cp.Territory == nil {
		cp.Territory = make(map[int]struct{})
	}
	return cp
}

// advance raises the stage to match the tech level. Stages never go back.
func (c *Civilization) advance() bool {
	if st := StageFor(c.Tech); st > c.Stage {
		c.Stage = st
		return true
	}
	return false
}

// Notice is a lifecycle event reported to the orchestrator.
type Notice struct {
	Kind   string // founded, stage, war, collapsed
	CivID  uint64
	Name   string
	X, Y   int
	Year   float64
	Detail string
}
