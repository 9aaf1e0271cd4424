// Package disaster propagates catastrophic events over the grid: tsunami wave
// fronts, earthquake shaking, flood drainage and meteor impacts.
package disaster

import (
	"math"

	"github.com/google/uuid"

	"github.com/talgya/planetsim/internal/entropy"
	"github.com/talgya/planetsim/internal/geology"
	"github.com/talgya/planetsim/internal/world"
)

// Kind is the type tag of a disaster event.
type Kind uint8

const (
	KindTsunami Kind = iota
	KindEarthquake
	KindFlood
	KindMeteor
)

var kindNames = [...]string{"Tsunami", "Earthquake", "Flood", "Meteor"}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "Unknown"
}

// KindByName looks up a kind by its display name.
func KindByName(name string) (Kind, bool) {
	for k, n := range kindNames {
		if n == name {
			return Kind(k), true
		}
	}
	return 0, false
}

// Event is a transient disaster. Intensity decays geometrically and the event
// is dropped once it is weak or old enough.
type Event struct {
	ID        uuid.UUID `json:"id"`
	Kind      Kind      `json:"kind"`
	X         int       `json:"x"`
	Y         int       `json:"y"`
	Intensity float64   `json:"intensity"`
	VX        float64   `json:"vx"`
	VY        float64   `json:"vy"`
	Age       float64   `json:"age"`
}

// Settlements is the civilization view disasters can damage.
type Settlements interface {
	// Harm kills a severity share of the people living on cell i.
	Harm(i int, severity float64)
	// Abandon gives up cell i entirely.
	Abandon(w *world.World, i int)
}

// Config holds the disaster tunables.
type Config struct {
	ShallowDepth   float64 `yaml:"shallow_depth"` // water above this elevation is shallow
	ShallowGain    float64 `yaml:"shallow_gain"`
	LandfallGain   float64 `yaml:"landfall_gain"`
	MaxWave        float64 `yaml:"max_wave"`
	MinWave        float64 `yaml:"min_wave"`
	LandDecay      float64 `yaml:"land_decay"`  // share kept per tick on land
	WaterDecay     float64 `yaml:"water_decay"` // share kept per tick on water
	FloodPerWave   float64 `yaml:"flood_per_wave"`
	WaveDamage     float64 `yaml:"wave_damage"` // biomass share lost per unit height
	KillHeight     float64 `yaml:"kill_height"`
	RazeHeight     float64 `yaml:"raze_height"`
	QuakeRadius    float64 `yaml:"quake_radius"` // cells per magnitude above 4
	QuakeDamage    float64 `yaml:"quake_damage"`
	TsunamiQuake   float64 `yaml:"tsunami_quake"` // offshore magnitude that launches a wave
	FloodFlow      float64 `yaml:"flood_flow"`    // share of flood water moved per year
	FloodEvaporate float64 `yaml:"flood_evaporate"`
	FloodDamage    float64 `yaml:"flood_damage"`
	MeteorChance   float64 `yaml:"meteor_chance"`
	EventDecay     float64 `yaml:"event_decay"`
	MinIntensity   float64 `yaml:"min_intensity"`
	MaxEventAge    float64 `yaml:"max_event_age"`
}

// DefaultConfig returns the standard disaster tunables.
func DefaultConfig() Config {
	return Config{
		ShallowDepth:   -0.2,
		ShallowGain:    1.3,
		LandfallGain:   2,
		MaxWave:        30,
		MinWave:        0.05,
		LandDecay:      0.5,
		WaterDecay:     0.98,
		FloodPerWave:   0.1,
		WaveDamage:     0.1,
		KillHeight:     2,
		RazeHeight:     8,
		QuakeRadius:    0.8,
		QuakeDamage:    0.3,
		TsunamiQuake:   7,
		FloodFlow:      0.5,
		FloodEvaporate: 0.05,
		FloodDamage:    0.02,
		MeteorChance:   0.00002,
		EventDecay:     0.7,
		MinIntensity:   0.05,
		MaxEventAge:    30,
	}
}

// WaveState is the persisted tsunami field.
type WaveState struct {
	Height  []float64 `json:"height"`
	Reached []bool    `json:"reached"`
	Front   []bool    `json:"front"`
}

// Propagator is the disaster simulator.
type Propagator struct {
	cfg         Config
	rng         *entropy.Stream
	settlements Settlements

	wave    []float64
	next    []float64
	reached []bool
	front   []bool
	fresh   []bool
	active  bool

	flood  []float64
	quakes []geology.Quake
	events []*Event
}

// New creates a disaster propagator with its private stream. settlements may
// be nil.
func New(cfg Config, seed int64, settlements Settlements) *Propagator {
	return &Propagator{
		cfg:         cfg,
		rng:         entropy.NewStream(seed, entropy.OffsetDisaster),
		settlements: settlements,
	}
}

func (p *Propagator) ensureBuffers(n int) {
	if len(p.wave) != n {
		p.wave = make([]float64, n)
		p.next = make([]float64, n)
		p.reached = make([]bool, n)
		p.front = make([]bool, n)
		p.fresh = make([]bool, n)
		p.flood = make([]float64, n)
	}
}

// Quakes queues earthquakes released by the geology simulator for the next
// Update.
func (p *Propagator) Quakes(qs []geology.Quake) {
	p.quakes = append(p.quakes, qs...)
}

// Update runs one disaster tick.
func (p *Propagator) Update(w *world.World, dt, year float64) {
	p.ensureBuffers(w.Len())
	for _, q := range p.quakes {
		p.Earthquake(w, q, year)
	}
	p.quakes = p.quakes[:0]

	if p.rng.Chance(p.cfg.MeteorChance * dt) {
		x, y := p.rng.Intn(w.Width), p.rng.Intn(w.Height)
		p.Meteor(w, x, y, p.rng.Range(0.3, 1), year)
	}

	p.StepWaves(w)
	p.drainFloods(w, dt)
	p.ageEvents(dt)
}

// Events returns copies of the active events.
func (p *Propagator) Events() []Event {
	out := make([]Event, len(p.events))
	for i, e := range p.events {
		out[i] = *e
	}
	return out
}

// SetEvents replaces the active events, used on restore.
func (p *Propagator) SetEvents(evs []Event) {
	p.events = p.events[:0]
	for i := range evs {
		e := evs[i]
		p.events = append(p.events, &e)
	}
}

// Waves returns a copy of the tsunami field.
func (p *Propagator) Waves() WaveState {
	return WaveState{
		Height:  append([]float64(nil), p.wave...),
		Reached: append([]bool(nil), p.reached...),
		Front:   append([]bool(nil), p.front...),
	}
}

// SetWaves restores the tsunami field. Mismatched lengths reset it.
func (p *Propagator) SetWaves(w *world.World, s WaveState) {
	p.ensureBuffers(w.Len())
	p.resetWaves()
	if len(s.Height) != w.Len() || len(s.Reached) != w.Len() || len(s.Front) != w.Len() {
		return
	}
	copy(p.wave, s.Height)
	copy(p.reached, s.Reached)
	copy(p.front, s.Front)
	for _, h := range p.wave {
		if h >= p.cfg.MinWave {
			p.active = true
			break
		}
	}
}

// WaveHeight returns the tsunami height on cell i.
func (p *Propagator) WaveHeight(i int) float64 {
	if i < 0 || i >= len(p.wave) {
		return 0
	}
	return p.wave[i]
}

// record logs an event at the wrapped position of (x, y).
func (p *Propagator) record(w *world.World, kind Kind, x, y int, intensity float64) *Event {
	x, y = w.Wrap(x, y)
	e := &Event{ID: p.rng.ID(), Kind: kind, X: x, Y: y, Intensity: intensity}
	p.events = append(p.events, e)
	return e
}

func (p *Propagator) ageEvents(dt float64) {
	kept := p.events[:0]
	for _, e := range p.events {
		e.Age += dt
		e.Intensity *= math.Pow(p.cfg.EventDecay, dt)
		if e.Intensity >= p.cfg.MinIntensity && e.Age <= p.cfg.MaxEventAge {
			kept = append(kept, e)
		}
	}
	clear(p.events[len(kept):])
	p.events = kept
}
