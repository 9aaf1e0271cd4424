package gardener

import (
	"fmt"
	"log/slog"
	"math"
)

// Actions the gardener may take.
const (
	ActionNone     = "none"
	ActionSeedLife = "seed_life"
)

// Guardrails.
const (
	// MaxRadius caps the seeding brush.
	MaxRadius = 3
	// Cooldown is the number of simulated years between interventions.
	Cooldown = 25.0
)

// seedable life-forms and their preferred temperature.
var seedable = map[string]struct {
	land, water bool
	min, max    float64
	ideal       float64
}{
	"Bacteria": {land: true, water: true, min: -20, max: 90, ideal: 25},
	"Algae":    {water: true, min: -5, max: 40, ideal: 18},
	"Plant":    {land: true, min: -15, max: 45, ideal: 18},
}

// Decision is the chosen action for one cycle.
type Decision struct {
	Action       string        `json:"action"`
	Rationale    string        `json:"rationale"`
	Intervention *Intervention `json:"intervention"`
}

// Intervention is the payload for POST /api/v1/intervention.
type Intervention struct {
	Type   string `json:"type"`
	X      int    `json:"x"`
	Y      int    `json:"y"`
	Radius int    `json:"radius,omitempty"`
	Life   string `json:"life,omitempty"`
}

// Decide picks zero or one intervention. Critical planets are reseeded with
// bacteria; failing ones get plants on land or algae at sea. Everything else
// is left alone.
func Decide(snap *PlanetSnapshot, h *PlanetHealth, mem *CycleMemory) *Decision {
	none := func(why string) *Decision {
		return &Decision{Action: ActionNone, Rationale: why}
	}

	switch h.CrisisLevel {
	case LevelHealthy, LevelWatch:
		return none(fmt.Sprintf("planet is %s, nothing to do", h.CrisisLevel))
	}
	if last, ok := mem.LastAction(); ok && snap.Status.Year-last.Year < Cooldown && last.Tick <= snap.Status.Tick {
		return none(fmt.Sprintf("last intervention %.0f years ago, waiting", snap.Status.Year-last.Year))
	}

	var life string
	switch {
	case h.CrisisLevel == LevelCritical:
		life = "Bacteria"
	case h.ActiveDisasters > 0:
		return none("disasters in progress, letting them settle")
	default:
		life = "Plant"
	}

	x, y, ok := pickCell(snap, life)
	if !ok && life == "Plant" {
		life = "Algae"
		x, y, ok = pickCell(snap, life)
	}
	if !ok {
		return none("no barren cell can host " + life)
	}

	d := &Decision{
		Action: ActionSeedLife,
		Rationale: fmt.Sprintf("%s: life covers %.1f%% of the planet, biomass trend %+.1f%%",
			h.CrisisLevel, h.LifeShare*100, h.BiomassTrend*100),
		Intervention: &Intervention{
			Type:   ActionSeedLife,
			X:      x,
			Y:      y,
			Radius: MaxRadius,
			Life:   life,
		},
	}
	if h.CrisisLevel == LevelWarning {
		d.Intervention.Radius = 2
	}
	if err := enforceGuardrails(d, snap); err != nil {
		slog.Warn("gardener decision rejected", "error", err)
		return none(err.Error())
	}
	return d
}

// pickCell returns the lifeless cell of the right medium whose temperature is
// closest to what life prefers. Ties go to the lowest index.
func pickCell(snap *PlanetSnapshot, life string) (int, int, bool) {
	hab, ok := seedable[life]
	if !ok {
		return 0, 0, false
	}
	best, bestDist := -1, math.Inf(1)
	for i, l := range snap.Life.Values {
		if l != "None" {
			continue
		}
		land := snap.Land.Values[i]
		if (land && !hab.land) || (!land && !hab.water) {
			continue
		}
		t := snap.Temperature.Values[i]
		if t < hab.min || t > hab.max {
			continue
		}
		if d := math.Abs(t - hab.ideal); d < bestDist {
			best, bestDist = i, d
		}
	}
	if best < 0 {
		return 0, 0, false
	}
	w := snap.Status.Width
	return best % w, best / w, true
}

// enforceGuardrails validates and clamps the decision within safe bounds.
func enforceGuardrails(d *Decision, snap *PlanetSnapshot) error {
	switch d.Action {
	case ActionNone:
		d.Intervention = nil
		return nil
	case ActionSeedLife:
		if d.Intervention == nil {
			return fmt.Errorf("action %q requires an intervention payload", d.Action)
		}
	default:
		return fmt.Errorf("unknown action %q", d.Action)
	}

	iv := d.Intervention
	iv.Type = d.Action
	if _, ok := seedable[iv.Life]; !ok {
		return fmt.Errorf("life-form %q may not be seeded", iv.Life)
	}
	if iv.Y < 0 || iv.Y >= snap.Status.Height || iv.X < 0 || iv.X >= snap.Status.Width {
		return fmt.Errorf("target (%d,%d) outside the %dx%d grid", iv.X, iv.Y, snap.Status.Width, snap.Status.Height)
	}
	if iv.Radius > MaxRadius {
		slog.Warn("gardener radius capped", "requested", iv.Radius, "capped", MaxRadius)
		iv.Radius = MaxRadius
	}
	if iv.Radius < 0 {
		iv.Radius = 0
	}
	return nil
}
