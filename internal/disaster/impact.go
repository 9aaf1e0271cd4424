package disaster

import (
	"log/slog"
	"math"

	"github.com/talgya/planetsim/internal/geology"
	"github.com/talgya/planetsim/internal/world"
)

// disc calls fn for every cell within radius r of (x, y) with its distance.
// Rows beyond the poles are skipped; columns wrap.
func disc(w *world.World, x, y int, r float64, fn func(i int, d float64)) {
	n := int(math.Ceil(r))
	for dy := -n; dy <= n; dy++ {
		yy := y + dy
		if yy < 0 || yy >= w.Height {
			continue
		}
		for dx := -n; dx <= n; dx++ {
			d := math.Hypot(float64(dx), float64(dy))
			if d > r {
				continue
			}
			fn(w.Index(x+dx, yy), d)
		}
	}
}

// Earthquake shakes the cells around a released quake and launches a tsunami
// when a strong quake strikes offshore.
func (p *Propagator) Earthquake(w *world.World, q geology.Quake, year float64) {
	p.ensureBuffers(w.Len())
	cfg := p.cfg
	strength := world.Clamp((q.Magnitude-4)/5, 0, 1)
	r := math.Max(1, (q.Magnitude-4)*cfg.QuakeRadius)

	disc(w, q.X, q.Y, r, func(i int, d float64) {
		sev := strength * (1 - d/(r+1)) * p.rng.Range(0.8, 1.2)
		c := w.Cell(i)
		if c.IsLand() {
			c.SetBiomass(c.Biomass() * (1 - math.Min(1, sev*cfg.QuakeDamage)))
		}
		if c.Life == world.LifeCivilization && p.settlements != nil {
			p.settlements.Harm(i, sev*0.5)
		}
	})
	p.record(w, KindEarthquake, q.X, q.Y, strength)
	slog.Debug("earthquake", "x", q.X, "y", q.Y, "magnitude", q.Magnitude, "year", year)

	if !q.Offshore || q.Magnitude < cfg.TsunamiQuake {
		return
	}
	x, y, ok := p.nearestWater(w, q.X, q.Y)
	if ok {
		p.Launch(w, x, y, (q.Magnitude-cfg.TsunamiQuake+1)*2, year)
	}
}

// nearestWater returns (x, y) itself when it is water, else the first water
// neighbor in the fixed neighbor order.
func (p *Propagator) nearestWater(w *world.World, x, y int) (int, int, bool) {
	if w.Get(x, y).IsWater() {
		return x, y, true
	}
	for _, n := range w.Neighbors(x, y) {
		if n.Cell.IsWater() {
			return n.X, n.Y, true
		}
	}
	return 0, 0, false
}

// Meteor strikes (x, y) with a size in (0, 1]: it digs a crater, wipes life,
// heats the air and, in the ocean, launches a tsunami.
func (p *Propagator) Meteor(w *world.World, x, y int, size, year float64) {
	p.ensureBuffers(w.Len())
	x, y = w.Wrap(x, y)
	size = world.Clamp(size, 0.05, 1)
	r := 1 + size*3
	ocean := w.Get(x, y).IsWater()

	disc(w, x, y, r, func(i int, d float64) {
		c := w.Cell(i)
		k := 1 - d/(r+1)
		c.SetElevation(c.Elevation() - size*0.3*k)
		c.SetBiomass(c.Biomass() * (1 - k))
		c.SetTemperature(c.Temperature() + 20*size*k)
		c.SetCO2(c.CO2() + 0.05*size*k)
		if d < r/2 {
			switch {
			case c.Life == world.LifeCivilization && p.settlements != nil:
				p.settlements.Abandon(w, i)
			case c.Life != world.LifeCivilization:
				c.Life = world.LifeNone
			}
		}
		w.Refresh(c)
	})
	w.Get(x, y).Geology.AppendSediment(world.SedimentVolcanic)

	e := p.record(w, KindMeteor, x, y, size)
	e.VX, e.VY = p.rng.Normal(0, 1), p.rng.Normal(0, 1)
	slog.Info("meteor impact", "x", x, "y", y, "size", size, "year", year)
	if ocean {
		p.Launch(w, x, y, size*10, year)
	}
}
