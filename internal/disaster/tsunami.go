package disaster

import (
	"log/slog"
	"math"

	"github.com/talgya/planetsim/internal/world"
)

// Launch starts a tsunami of the given height at (x, y) and records the event.
func (p *Propagator) Launch(w *world.World, x, y int, height, year float64) {
	p.ensureBuffers(w.Len())
	if !p.active {
		p.resetWaves()
	}
	x, y = w.Wrap(x, y)
	i := w.Index(x, y)
	h := math.Min(height, p.cfg.MaxWave)
	if h < p.cfg.MinWave {
		return
	}
	p.wave[i] = math.Max(p.wave[i], h)
	p.reached[i] = true
	p.front[i] = true
	p.active = true
	p.record(w, KindTsunami, x, y, h)
	slog.Info("tsunami", "x", x, "y", y, "height", h, "year", year)
}

// Gain is the amplification a wave receives moving from cell a into cell b.
func (p *Propagator) Gain(a, b *world.Cell) float64 {
	switch {
	case b.IsWater() && b.Elevation() > p.cfg.ShallowDepth:
		return p.cfg.ShallowGain
	case b.IsWater():
		return 1
	case a.IsWater():
		return p.cfg.LandfallGain
	default:
		return 1
	}
}

// StepWaves advances the tsunami front by one ring. Front cells spread to
// unreached neighbors once; cells reached before this step then decay. The
// field is double-buffered: every read comes from the old heights.
func (p *Propagator) StepWaves(w *world.World) {
	p.ensureBuffers(w.Len())
	if !p.active {
		return
	}
	cfg := p.cfg
	copy(p.next, p.wave)
	clear(p.fresh)

	var buf []int
	for i, on := range p.front {
		if !on || p.wave[i] < cfg.MinWave {
			continue
		}
		src := w.Cell(i)
		for _, j := range w.NeighborIndices(buf[:0], i) {
			if p.reached[j] {
				continue
			}
			h := math.Min(p.wave[i]*p.Gain(src, w.Cell(j)), cfg.MaxWave)
			if h > p.next[j] {
				p.next[j] = h
			}
			p.fresh[j] = true
		}
	}

	peak := 0.0
	for i := range p.next {
		if p.reached[i] {
			if w.Cell(i).IsLand() {
				p.next[i] *= cfg.LandDecay
			} else {
				p.next[i] *= cfg.WaterDecay
			}
		}
		if p.fresh[i] {
			p.reached[i] = true
		}
		p.front[i] = p.fresh[i]
		peak = math.Max(peak, p.next[i])
	}
	p.wave, p.next = p.next, p.wave

	p.inundate(w)
	if peak < cfg.MinWave {
		p.resetWaves()
	}
}

// inundate applies wave damage to land cells under water.
func (p *Propagator) inundate(w *world.World) {
	cfg := p.cfg
	for i, h := range p.wave {
		if h < cfg.MinWave {
			continue
		}
		c := w.Cell(i)
		if !c.IsLand() {
			continue
		}
		c.SetFloodWater(c.FloodWater() + h*cfg.FloodPerWave)
		c.SetBiomass(c.Biomass() * (1 - math.Min(1, h*cfg.WaveDamage)))
		switch {
		case c.Life == world.LifeCivilization:
			if p.settlements == nil {
				continue
			}
			if h >= cfg.RazeHeight {
				p.settlements.Abandon(w, i)
			} else {
				p.settlements.Harm(i, h/cfg.RazeHeight)
			}
		case c.Life.Alive() && h >= cfg.KillHeight:
			c.Life = world.LifeNone
		}
	}
}

func (p *Propagator) resetWaves() {
	clear(p.wave)
	clear(p.next)
	clear(p.reached)
	clear(p.front)
	p.active = false
}
