package rng

import (
	"errors"
	"fmt"
	"math"
)

// ErrInvalidRange is returned by IntRange when min > max.
var ErrInvalidRange = errors.New("invalid range")

// ErrInvalidDistribution is returned by the pick functions when no weight is positive,
// or when any weight is negative or not a number.
var ErrInvalidDistribution = errors.New("invalid distribution")

// Random draws values from a Source.
//
// Invariant: the n-th value returned depends only on the seed and the n-1 calls before it.
type Random struct {
	src   Source
	draws int
}

// New returns a Random over the default SplitMix64 source.
func New(seed Seed) *Random {
	return NewWith(NewSplitMix(seed))
}

// NewWith returns a Random over src.
//
// Precondition: src must be non-nil.
func NewWith(src Source) *Random {
	return &Random{src: src}
}

// Draws reports how many values have been consumed from the source.
func (r *Random) Draws() int {
	return r.draws
}

func (r *Random) next() uint64 {
	r.draws++
	return r.src.Uint64()
}

// Float returns a value in [0, 1).
func (r *Random) Float() float64 {
	return float64(r.next()>>11) / (1 << 53)
}

// IntRange returns an integer in [min, max] inclusive.
//
// Postcondition: Returns an error wrapping ErrInvalidRange if min > max; no value
// is consumed in that case.
func (r *Random) IntRange(min, max int) (int, error) {
	if min > max {
		return 0, fmt.Errorf("rng: IntRange(%d, %d): %w", min, max, ErrInvalidRange)
	}
	span := uint64(max-min) + 1
	if span == 0 {
		// Full 64-bit span.
		return int(r.next()), nil
	}
	return min + int(r.next()%span), nil
}

// PickIndex returns an index into weights chosen with probability proportional
// to its weight. Zero-weight entries are never chosen.
//
// Postcondition: Returns an error wrapping ErrInvalidDistribution if weights is
// empty, all zero, or holds a negative or NaN weight.
func (r *Random) PickIndex(weights []float64) (int, error) {
	total, err := Total(weights)
	if err != nil {
		return 0, err
	}
	target := r.Float() * total
	last := -1
	for i, w := range weights {
		if w <= 0 {
			continue
		}
		last = i
		if target < w {
			return i, nil
		}
		target -= w
	}
	// Floating point residue lands on the last eligible entry.
	return last, nil
}

// Total validates weights and returns their sum.
//
// Postcondition: Returns a positive sum, or an error wrapping ErrInvalidDistribution.
func Total(weights []float64) (float64, error) {
	if len(weights) == 0 {
		return 0, fmt.Errorf("rng: empty weight list: %w", ErrInvalidDistribution)
	}
	var total float64
	for i, w := range weights {
		if math.IsNaN(w) || math.IsInf(w, 0) || w < 0 {
			return 0, fmt.Errorf("rng: weight[%d] = %v: %w", i, w, ErrInvalidDistribution)
		}
		total += w
	}
	if total <= 0 {
		return 0, fmt.Errorf("rng: weights sum to zero: %w", ErrInvalidDistribution)
	}
	return total, nil
}

// Weighted pairs a value with its selection weight.
type Weighted[T any] struct {
	Value  T
	Weight float64
}

// Pick returns one element of items chosen with probability proportional to its weight.
//
// Postcondition: Returns an error wrapping ErrInvalidDistribution under the same
// conditions as PickIndex.
func Pick[T any](r *Random, items []Weighted[T]) (T, error) {
	weights := make([]float64, len(items))
	for i, it := range items {
		weights[i] = it.Weight
	}
	idx, err := r.PickIndex(weights)
	if err != nil {
		var zero T
		return zero, err
	}
	return items[idx].Value, nil
}

// SampleWithoutReplacement picks up to n distinct indices of weights, each step
// weighted by the remaining entries. Zero-weight entries are never chosen and n
// is clamped to the number of positive weights.
//
// Postcondition: len(result) == min(n, count of positive weights); result order
// is the draw order.
func (r *Random) SampleWithoutReplacement(weights []float64, n int) ([]int, error) {
	if n < 0 {
		return nil, fmt.Errorf("rng: sample size %d: %w", n, ErrInvalidRange)
	}
	remaining := make([]float64, len(weights))
	copy(remaining, weights)
	eligible := 0
	for _, w := range remaining {
		if w > 0 {
			eligible++
		}
	}
	if n > eligible {
		n = eligible
	}
	picked := make([]int, 0, n)
	for len(picked) < n {
		idx, err := r.PickIndex(remaining)
		if err != nil {
			return nil, err
		}
		picked = append(picked, idx)
		remaining[idx] = 0
	}
	return picked, nil
}
