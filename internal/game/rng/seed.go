package rng

import (
	"github.com/cespare/xxhash/v2"
)

// partSeparator keeps ("ab","c") and ("a","bc") from hashing alike.
const partSeparator = 0x1f

// SeedFromString hashes s into a Seed with xxhash64.
func SeedFromString(s string) Seed {
	return Seed(xxhash.Sum64String(s))
}

// DeriveSeed combines parts into a single Seed.
//
// Postcondition: the result depends on every part and on their order.
func DeriveSeed(parts ...string) Seed {
	d := xxhash.New()
	for i, p := range parts {
		if i > 0 {
			_, _ = d.Write([]byte{partSeparator})
		}
		_, _ = d.WriteString(p)
	}
	return Seed(d.Sum64())
}
