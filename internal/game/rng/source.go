// Package rng provides the deterministic randomness used by room generation.
//
// Every value produced is a pure function of the initial Seed and the order
// of calls made against a Random. No entropy source is ever consulted.
package rng

import (
	"fmt"
	"math/rand/v2"
	"strings"
)

// Seed fully determines a pseudo-random sequence.
type Seed uint64

// String returns the seed as a fixed-width hex string.
func (s Seed) String() string {
	return fmt.Sprintf("%016x", uint64(s))
}

// Source is the pluggable algorithm behind a Random.
//
// Implementations MUST be deterministic: two sources built from the same seed
// yield the same sequence. Sources are not safe for concurrent use.
type Source interface {
	// Uint64 returns the next 64 pseudo-random bits.
	Uint64() uint64
}

// splitMix is the SplitMix64 generator.
type splitMix struct {
	state uint64
}

// NewSplitMix returns the default Source, SplitMix64 seeded with seed.
func NewSplitMix(seed Seed) Source {
	return &splitMix{state: uint64(seed)}
}

func (s *splitMix) Uint64() uint64 {
	s.state += 0x9e3779b97f4a7c15
	z := s.state
	z = (z ^ (z >> 30)) * 0xbf58476d1ce4e5b9
	z = (z ^ (z >> 27)) * 0x94d049bb133111eb
	return z ^ (z >> 31)
}

// NewPCG returns a Source backed by the PCG generator in math/rand/v2.
// The second PCG word is derived from seed so a single value suffices.
func NewPCG(seed Seed) Source {
	return rand.NewPCG(uint64(seed), uint64(seed)^0xda3e39cb94b95bdb)
}

// Factory builds a Source from a Seed.
type Factory func(Seed) Source

// Algorithm names accepted by FactoryFor.
const (
	AlgorithmSplitMix = "splitmix"
	AlgorithmPCG      = "pcg"
)

// FactoryFor resolves an algorithm name to its Factory.
//
// Postcondition: Returns a non-nil Factory or an error naming the unknown algorithm.
func FactoryFor(name string) (Factory, error) {
	switch strings.ToLower(name) {
	case "", AlgorithmSplitMix:
		return NewSplitMix, nil
	case AlgorithmPCG:
		return NewPCG, nil
	default:
		return nil, fmt.Errorf("rng: unknown algorithm %q (supported: %s, %s)", name, AlgorithmSplitMix, AlgorithmPCG)
	}
}
