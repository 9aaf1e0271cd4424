package gardener

// Crisis levels, most severe first.
const (
	LevelCritical = "CRITICAL"
	LevelWarning  = "WARNING"
	LevelWatch    = "WATCH"
	LevelHealthy  = "HEALTHY"
)

// Triage thresholds. Life shares are living cells over all cells; declines
// are the relative biomass change since the last cycle.
const (
	criticalLifeShare = 0.02
	warningLifeShare  = 0.15
	criticalDecline   = -0.25
	warningDecline    = -0.10
	lowOxygen         = 5.0 // percent
	coldPlanet        = -10.0
	hotPlanet         = 35.0
)

// PlanetHealth holds derived diagnostic signals computed from a PlanetSnapshot.
type PlanetHealth struct {
	LifeShare       float64
	MeanBiomass     float64
	BiomassTrend    float64 // relative change since the last recorded cycle; 0 without history
	Oxygen          float64
	Temperature     float64
	Civilizations   int
	ActiveDisasters int
	CrisisLevel     string
}

// Triage computes a PlanetHealth from the snapshot and the previous cycles.
func Triage(snap *PlanetSnapshot, mem *CycleMemory) *PlanetHealth {
	g := snap.Status.Stats.Globals
	h := &PlanetHealth{
		Oxygen:          g.Oxygen,
		Temperature:     g.Temperature,
		Civilizations:   snap.Status.Stats.Civilizations,
		ActiveDisasters: len(snap.Disasters),
	}
	if n := snap.Status.Width * snap.Status.Height; n > 0 {
		h.LifeShare = float64(g.LifeCells) / float64(n)
		h.MeanBiomass = g.TotalBiomass / float64(n)
	}

	// A restored or regenerated planet starts a new history: only compare
	// against a record from an earlier tick.
	if last, ok := mem.Last(); ok && last.Tick < snap.Status.Tick && last.MeanBiomass > 0 {
		h.BiomassTrend = (h.MeanBiomass - last.MeanBiomass) / last.MeanBiomass
	}

	h.CrisisLevel = LevelHealthy
	switch {
	case h.LifeShare < criticalLifeShare:
		h.CrisisLevel = LevelCritical
	case h.BiomassTrend < criticalDecline:
		h.CrisisLevel = LevelCritical
	case h.LifeShare < warningLifeShare:
		h.CrisisLevel = LevelWarning
	case h.BiomassTrend < warningDecline:
		h.CrisisLevel = LevelWarning
	case h.Oxygen < lowOxygen:
		h.CrisisLevel = LevelWarning
	case h.Temperature < coldPlanet || h.Temperature > hotPlanet:
		h.CrisisLevel = LevelWatch
	}
	return h
}
