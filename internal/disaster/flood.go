package disaster

import (
	"math"

	"github.com/talgya/planetsim/internal/world"
)

// Flood pours water onto (x, y) and its neighbors and records the event.
func (p *Propagator) Flood(w *world.World, x, y int, depth float64) {
	p.ensureBuffers(w.Len())
	x, y = w.Wrap(x, y)
	disc(w, x, y, 1.5, func(i int, d float64) {
		c := w.Cell(i)
		if c.IsLand() {
			c.SetFloodWater(c.FloodWater() + depth*(1-d/3))
		}
	})
	p.record(w, KindFlood, x, y, depth)
}

// drainFloods moves a share of each land cell's flood water to its locally
// lowest neighbor by water surface. Water reaching the sea vanishes. Flows are
// collected in a buffer and applied after the scan.
func (p *Propagator) drainFloods(w *world.World, dt float64) {
	cfg := p.cfg
	share := math.Min(1, cfg.FloodFlow*dt)
	evaporate := cfg.FloodEvaporate * dt
	clear(p.flood)

	var buf []int
	for i := 0; i < w.Len(); i++ {
		c := w.Cell(i)
		f := c.FloodWater()
		if f <= 0 {
			continue
		}
		if c.IsWater() {
			p.flood[i] -= f
			continue
		}
		c.SetBiomass(c.Biomass() - f*cfg.FloodDamage*dt)

		surface := c.Elevation() + f*0.01
		low, lowSurface := -1, surface
		for _, j := range w.NeighborIndices(buf[:0], i) {
			n := w.Cell(j)
			s := n.Elevation() + n.FloodWater()*0.01
			if s < lowSurface {
				low, lowSurface = j, s
			}
		}
		if low < 0 {
			continue
		}
		move := f * share
		p.flood[i] -= move
		if w.Cell(low).IsLand() {
			p.flood[low] += move
		}
	}

	for i, d := range p.flood {
		c := w.Cell(i)
		if d == 0 && c.FloodWater() == 0 {
			continue
		}
		c.SetFloodWater(c.FloodWater() + d - evaporate)
	}
}

// FloodVolume sums flood water over the grid.
func FloodVolume(w *world.World) float64 {
	total := 0.0
	for i := 0; i < w.Len(); i++ {
		total += w.Cell(i).FloodWater()
	}
	return total
}
