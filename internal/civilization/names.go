package civilization

import (
	"fmt"

	"github.com/talgya/planetsim/internal/entropy"
)

var (
	namePrefixes = []string{
		"Ka", "Vel", "Tor", "Ash", "Mir", "Ost", "Zan", "Eld", "Qua", "Ryn",
		"Sol", "Thal", "Ur", "Bel", "Cor", "Dra", "Hel", "Ix", "Lum", "Nor",
	}
	nameSuffixes = []string{
		"ari", "oth", "en", "ia", "un", "esh", "ova", "ir", "ak", "ethi",
		"umar", "os", "and", "ykh", "ene", "adu",
	}
)

// namer produces procedural civilization names by combining syllables. Names
// are unique for the lifetime of the namer.
type namer struct {
	used map[string]bool
}

func newNamer() *namer {
	return &namer{used: make(map[string]bool)}
}

// reserve marks a name as taken, used when civilizations are restored.
func (n *namer) reserve(name string) {
	n.used[name] = true
}

func (n *namer) next(rng *entropy.Stream) string {
	for range 32 {
		name := namePrefixes[rng.Intn(len(namePrefixes))] + nameSuffixes[rng.Intn(len(nameSuffixes))]
		if !n.used[name] {
			n.used[name] = true
			return name
		}
	}
	// Syllables ran dry; fall back to dynastic numbering.
	base := namePrefixes[rng.Intn(len(namePrefixes))] + nameSuffixes[rng.Intn(len(nameSuffixes))]
	for k := 2; ; k++ {
		name := fmt.Sprintf("%s %s", base, roman(k))
		if !n.used[name] {
			n.used[name] = true
			return name
		}
	}
}

// roman formats small ordinals for dynastic names.
func roman(n int) string {
	vals := []int{1000, 900, 500, 400, 100, 90, 50, 40, 10, 9, 5, 4, 1}
	syms := []string{"M", "CM", "D", "CD", "C", "XC", "L", "XL", "X", "IX", "V", "IV", "I"}
	out := ""
	for i, v := range vals {
		for n >= v {
			out += syms[i]
			n -= v
		}
	}
	return out
}
