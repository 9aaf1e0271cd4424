package world

// LifeForm is the single dominant life-form of a cell.
type LifeForm uint8

const (
	LifeNone LifeForm = iota
	LifeBacteria
	LifeAlgae
	LifePlant
	LifeSimpleAnimal
	LifeComplexAnimal
	LifeFish
	LifeAmphibian
	LifeReptile
	LifeDinosaur
	LifeMarineDinosaur
	LifeFlyingDinosaur
	LifeMammal
	LifeBird
	LifeIntelligence
	LifeCivilization
	LifeFormCount
)

// LifeTraits is the behavior table row for a life-form.
type LifeTraits struct {
	Name         string
	Aquatic      bool // may live in water cells
	Terrestrial  bool // may live on land cells
	Producer     bool // photosynthesises; food for herbivores
	Herbivore    bool
	Carnivore    bool
	Prey         bool // may be hunted by carnivores
	SeedSpreader bool // lets plants colonise adjacent empty land
	Sentient     bool
	MinTemp      float64
	MaxTemp      float64
	MinOxygen    float64 // percent
}

// lifeTraits is indexed by LifeForm. Every tag must have a row; the table test
// fails on a missing name.
var lifeTraits = [LifeFormCount]LifeTraits{
	LifeNone:           {Name: "None", MinTemp: MinTemperature, MaxTemp: MaxTemperature},
	LifeBacteria:       {Name: "Bacteria", Aquatic: true, Terrestrial: true, MinTemp: -20, MaxTemp: 90},
	LifeAlgae:          {Name: "Algae", Aquatic: true, Producer: true, MinTemp: -5, MaxTemp: 40},
	LifePlant:          {Name: "Plant", Terrestrial: true, Producer: true, MinTemp: -15, MaxTemp: 45, MinOxygen: 1},
	LifeSimpleAnimal:   {Name: "Simple Animal", Aquatic: true, Herbivore: true, Prey: true, MinTemp: -5, MaxTemp: 35, MinOxygen: 2},
	LifeComplexAnimal:  {Name: "Complex Animal", Aquatic: true, Terrestrial: true, Herbivore: true, Prey: true, MinTemp: -10, MaxTemp: 38, MinOxygen: 5},
	LifeFish:           {Name: "Fish", Aquatic: true, Herbivore: true, Prey: true, MinTemp: -2, MaxTemp: 32, MinOxygen: 5},
	LifeAmphibian:      {Name: "Amphibian", Aquatic: true, Terrestrial: true, Carnivore: true, Prey: true, MinTemp: 0, MaxTemp: 35, MinOxygen: 8},
	LifeReptile:        {Name: "Reptile", Terrestrial: true, Herbivore: true, Prey: true, MinTemp: 5, MaxTemp: 45, MinOxygen: 10},
	LifeDinosaur:       {Name: "Dinosaur", Terrestrial: true, Carnivore: true, MinTemp: 5, MaxTemp: 45, MinOxygen: 12},
	LifeMarineDinosaur: {Name: "Marine Dinosaur", Aquatic: true, Carnivore: true, MinTemp: 5, MaxTemp: 35, MinOxygen: 12},
	LifeFlyingDinosaur: {Name: "Flying Dinosaur", Terrestrial: true, Carnivore: true, MinTemp: 5, MaxTemp: 40, MinOxygen: 12},
	LifeMammal:         {Name: "Mammal", Terrestrial: true, Herbivore: true, Prey: true, SeedSpreader: true, MinTemp: -25, MaxTemp: 40, MinOxygen: 15},
	LifeBird:           {Name: "Bird", Terrestrial: true, Herbivore: true, Prey: true, SeedSpreader: true, MinTemp: -20, MaxTemp: 40, MinOxygen: 15},
	LifeIntelligence:   {Name: "Intelligence", Terrestrial: true, Herbivore: true, Sentient: true, MinTemp: -25, MaxTemp: 45, MinOxygen: 15},
	LifeCivilization:   {Name: "Civilization", Terrestrial: true, Sentient: true, MinTemp: -40, MaxTemp: 55, MinOxygen: 10},
}

// Traits returns the behavior row for l. Out-of-range tags map to LifeNone.
func (l LifeForm) Traits() LifeTraits {
	if l >= LifeFormCount {
		return lifeTraits[LifeNone]
	}
	return lifeTraits[l]
}

func (l LifeForm) String() string {
	return l.Traits().Name
}

// Alive reports whether the tag is an actual organism.
func (l LifeForm) Alive() bool {
	return l != LifeNone && l < LifeFormCount
}

// CanLiveIn reports whether the life-form tolerates the cell's medium.
func (l LifeForm) CanLiveIn(c *Cell) bool {
	t := l.Traits()
	if c.IsWater() {
		return t.Aquatic
	}
	return t.Terrestrial
}

// Tolerates reports whether temperature and oxygen are within the
// life-form's range.
func (l LifeForm) Tolerates(temperature, oxygen float64) bool {
	t := l.Traits()
	return temperature >= t.MinTemp && temperature <= t.MaxTemp && oxygen >= t.MinOxygen
}

// LifeFormByName looks up a life-form by its display name (case-sensitive).
func LifeFormByName(name string) (LifeForm, bool) {
	for i := LifeForm(0); i < LifeFormCount; i++ {
		if lifeTraits[i].Name == name {
			return i, true
		}
	}
	return LifeNone, false
}
