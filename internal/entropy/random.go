// Package entropy provides the seeded random streams each simulator draws from.
// Every simulator owns a private stream derived from the world seed plus a fixed
// offset, so reordering simulators never perturbs another's random sequence.
package entropy

import (
	"crypto/rand"
	"encoding/binary"
	mathrand "math/rand/v2"

	"github.com/google/uuid"
)

// Per-simulator seed offsets. Values are arbitrary but must never change,
// otherwise saved seeds stop reproducing the same world history.
const (
	OffsetGeneration    int64 = 0
	OffsetPlates        int64 = 101
	OffsetSediment      int64 = 211
	OffsetResources     int64 = 307
	OffsetClimate       int64 = 1009
	OffsetGeology       int64 = 2003
	OffsetWeather       int64 = 3001
	OffsetMagnetosphere int64 = 4001
	OffsetBiome         int64 = 5003
	OffsetEcosystem     int64 = 6007
	OffsetCivilization  int64 = 7001
	OffsetDisease       int64 = 8009
	OffsetDisaster      int64 = 9001
	OffsetIntervention  int64 = 10007
)

// Stream is a deterministic random source owned by exactly one simulator.
// It is not safe for concurrent use; parallel grid passes must not draw from it.
type Stream struct {
	seed int64
	r    *mathrand.Rand
}

// NewStream creates a stream for the given world seed and simulator offset.
func NewStream(seed, offset int64) *Stream {
	s := seed + offset
	return &Stream{
		seed: s,
		r:    mathrand.New(mathrand.NewPCG(uint64(s), uint64(s)^0x9e3779b97f4a7c15)),
	}
}

// Seed returns the effective seed of the stream.
func (s *Stream) Seed() int64 {
	return s.seed
}

// Float returns a float64 in [0, 1).
func (s *Stream) Float() float64 {
	return s.r.Float64()
}

// Range returns a float64 in [lo, hi).
func (s *Stream) Range(lo, hi float64) float64 {
	return lo + s.r.Float64()*(hi-lo)
}

// Intn returns an int in [0, n). Returns 0 when n <= 0.
func (s *Stream) Intn(n int) int {
	if n <= 0 {
		return 0
	}
	return s.r.IntN(n)
}

// Chance reports whether an event with probability p happens.
// Probabilities outside [0, 1] saturate.
func (s *Stream) Chance(p float64) bool {
	if p <= 0 {
		return false
	}
	if p >= 1 {
		return true
	}
	return s.r.Float64() < p
}

// Normal returns a normally distributed value with the given mean and stddev.
func (s *Stream) Normal(mean, stddev float64) float64 {
	return mean + s.r.NormFloat64()*stddev
}

// Pick returns a weighted random index into weights. Zero or negative weights
// are never picked; returns -1 when no weight is positive.
func (s *Stream) Pick(weights []float64) int {
	total := 0.0
	for _, w := range weights {
		if w > 0 {
			total += w
		}
	}
	if total <= 0 {
		return -1
	}
	roll := s.r.Float64() * total
	for i, w := range weights {
		if w <= 0 {
			continue
		}
		roll -= w
		if roll < 0 {
			return i
		}
	}
	// Floating-point slack: fall back to the last positive weight.
	for i := len(weights) - 1; i >= 0; i-- {
		if weights[i] > 0 {
			return i
		}
	}
	return -1
}

// Read fills p with pseudo-random bytes so a stream can serve as an
// io.Reader for identifiers. It never fails.
func (s *Stream) Read(p []byte) (int, error) {
	for i := 0; i < len(p); i += 8 {
		v := s.r.Uint64()
		for k := 0; k < 8 && i+k < len(p); k++ {
			p[i+k] = byte(v >> (8 * k))
		}
	}
	return len(p), nil
}

// ID returns a version 4 UUID drawn from the stream.
func (s *Stream) ID() uuid.UUID {
	id, _ := uuid.NewRandomFromReader(s)
	return id
}

// RandomSeed returns a non-zero seed from crypto/rand, used when a world is
// generated with seed 0.
func RandomSeed() int64 {
	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		// This should never happen; fall back to a fixed seed.
		return 12345
	}
	seed := int64(binary.LittleEndian.Uint64(buf[:]) >> 1)
	if seed == 0 {
		seed = 1
	}
	return seed
}
