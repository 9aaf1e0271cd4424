package world

import "github.com/talgya/planetsim/internal/entropy"

// ResourceType enumerates mineral and fuel deposits.
type ResourceType uint8

const (
	ResourceIron ResourceType = iota
	ResourceCopper
	ResourceGold
	ResourceCoal
	ResourceOil
	ResourceUranium
	ResourceGems
	ResourceSalt
	ResourcePhosphate
	ResourceCount
)

// resourceRule is the placement rule for one resource type.
type resourceRule struct {
	name     string
	minDepth float64
	maxDepth float64
	// chance returns the per-cell placement probability; 0 rejects the cell.
	chance func(c *Cell) float64
}

var resourceRules = [ResourceCount]resourceRule{
	ResourceIron: {name: "Iron", minDepth: 10, maxDepth: 400, chance: func(c *Cell) float64 {
		if c.IsLand() && (c.Geology.Igneous > 0.4 || c.Elevation() > 0.3) {
			return 0.04
		}
		return 0
	}},
	ResourceCopper: {name: "Copper", minDepth: 50, maxDepth: 800, chance: func(c *Cell) float64 {
		if c.Geology.Volcanism > 0.3 || c.Geology.Boundary == BoundaryConvergent {
			return 0.05
		}
		return 0
	}},
	ResourceGold: {name: "Gold", minDepth: 100, maxDepth: 2000, chance: func(c *Cell) float64 {
		if c.IsLand() && c.Geology.Boundary == BoundaryConvergent && c.Elevation() > 0.3 {
			return 0.03
		}
		return 0
	}},
	ResourceCoal: {name: "Coal", minDepth: 20, maxDepth: 1500, chance: func(c *Cell) float64 {
		if c.IsLand() && c.Geology.Sedimentary > 0.5 && c.Geology.HasSediment(SedimentOrganic) {
			return 0.08
		}
		return 0
	}},
	ResourceOil: {name: "Oil", minDepth: 500, maxDepth: 4000, chance: func(c *Cell) float64 {
		shallow := c.Elevation() > -0.3 && c.Elevation() < 0.2
		if shallow && c.Geology.Sedimentary > 0.5 &&
			(c.Geology.HasSediment(SedimentOrganic) || c.Geology.HasSediment(SedimentShale)) {
			return 0.05
		}
		return 0
	}},
	ResourceUranium: {name: "Uranium", minDepth: 100, maxDepth: 1000, chance: func(c *Cell) float64 {
		if c.IsLand() && c.Geology.Igneous > 0.5 && c.Geology.CrustAge > 1e9 {
			return 0.015
		}
		return 0
	}},
	ResourceGems: {name: "Gems", minDepth: 50, maxDepth: 3000, chance: func(c *Cell) float64 {
		if c.Elevation() > 0.5 && c.Geology.Metamorphic > 0.3 {
			return 0.03
		}
		return 0
	}},
	ResourceSalt: {name: "Salt", minDepth: 5, maxDepth: 600, chance: func(c *Cell) float64 {
		if c.Geology.HasSediment(SedimentEvaporite) {
			return 0.15
		}
		return 0
	}},
	ResourcePhosphate: {name: "Phosphate", minDepth: 5, maxDepth: 300, chance: func(c *Cell) float64 {
		if c.Elevation() > -0.3 && c.Geology.HasSediment(SedimentLimestone) {
			return 0.03
		}
		return 0
	}},
}

func (r ResourceType) String() string {
	if r >= ResourceCount {
		return "Unknown"
	}
	return resourceRules[r].name
}

// ResourceByName looks up a resource type by display name.
func ResourceByName(name string) (ResourceType, bool) {
	for r := ResourceType(0); r < ResourceCount; r++ {
		if resourceRules[r].name == name {
			return r, true
		}
	}
	return 0, false
}

// NewDeposit builds a deposit of type t with amount, concentration and a
// type-appropriate depth drawn from rng.
func NewDeposit(t ResourceType, rng *entropy.Stream) Deposit {
	rule := resourceRules[t%ResourceCount]
	return Deposit{
		Type:          t,
		Amount:        rng.Range(10, 100),
		Concentration: rng.Range(0.1, 1),
		Depth:         rng.Range(rule.minDepth, rule.maxDepth),
	}
}

// seedResources places deposits by per-type predicates, then optionally
// clusters weaker deposits around each seed.
func seedResources(w *World, opts GenOptions) {
	rng := entropy.NewStream(opts.Seed, entropy.OffsetResources)

	type seeded struct {
		cell int
		dep  Deposit
	}
	var seeds []seeded

	for i := range w.cells {
		c := &w.cells[i]
		for t := ResourceType(0); t < ResourceCount; t++ {
			p := resourceRules[t].chance(c)
			if p <= 0 || !rng.Chance(p) {
				continue
			}
			d := NewDeposit(t, rng)
			c.AddDeposit(d)
			seeds = append(seeds, seeded{cell: i, dep: d})
		}
	}

	if opts.ResourceClustering <= 0 {
		return
	}
	var buf []int
	for _, s := range seeds {
		buf = w.NeighborIndices(buf[:0], s.cell)
		for _, j := range buf {
			n := &w.cells[j]
			if n.HasDeposit(s.dep.Type) || !rng.Chance(opts.ResourceClustering) {
				continue
			}
			n.AddDeposit(Deposit{
				Type:          s.dep.Type,
				Amount:        s.dep.Amount * rng.Range(0.2, 0.6),
				Concentration: s.dep.Concentration * 0.7,
				Depth:         s.dep.Depth * rng.Range(0.8, 1.2),
			})
		}
	}
}
