package room

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/cory-johannsen/roomgen/internal/game/rng"
	"github.com/cory-johannsen/roomgen/internal/game/zone"
)

// nameFormat joins the sampled prefix and suffix.
const nameFormat = "%s %s"

// Generator synthesizes rooms. It holds no mutable state and is safe for concurrent use.
type Generator struct {
	factory rng.Factory
	logger  *zap.Logger
}

// Option configures a Generator.
type Option func(*Generator)

// WithFactory selects the random source algorithm. Changing it changes every
// generated room, so it must stay fixed for the life of a catalog version.
func WithFactory(f rng.Factory) Option {
	return func(g *Generator) { g.factory = f }
}

// WithLogger logs each generation at debug level.
func WithLogger(l *zap.Logger) Option {
	return func(g *Generator) { g.logger = l }
}

// NewGenerator returns a Generator using SplitMix64 and a no-op logger unless overridden.
func NewGenerator(opts ...Option) *Generator {
	g := &Generator{factory: rng.NewSplitMix, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Generate composes one room for t from seed.
//
// Precondition: t must come from a validated zone.Catalog.
// Postcondition: Identical (t, seed) always yield an identical Descriptor;
// len(result.Exits) <= t.MaxExits(). Returns an error only if t violates catalog invariants.
func (g *Generator) Generate(t *zone.Template, seed rng.Seed) (Descriptor, error) {
	r := rng.NewWith(g.factory(seed))

	countIdx, err := r.PickIndex(t.ExitCountWeights())
	if err != nil {
		return Descriptor{}, fmt.Errorf("zone %q: exit count: %w", t.ID, err)
	}
	picked, err := r.SampleWithoutReplacement(t.DirectionWeights(), t.ExitCounts[countIdx].Count)
	if err != nil {
		return Descriptor{}, fmt.Errorf("zone %q: directions: %w", t.ID, err)
	}
	exits := make([]Exit, len(picked))
	for i, idx := range picked {
		d := t.Directions[idx]
		exits[i] = Exit{Direction: string(d.Direction), Target: d.Target}
	}

	encounter := realize(r, t.Encounter)
	discovery := realize(r, t.Discovery)

	prefix, err := r.IntRange(0, len(t.Names.Prefixes)-1)
	if err != nil {
		return Descriptor{}, fmt.Errorf("zone %q: name prefix: %w", t.ID, err)
	}
	suffix, err := r.IntRange(0, len(t.Names.Suffixes)-1)
	if err != nil {
		return Descriptor{}, fmt.Errorf("zone %q: name suffix: %w", t.ID, err)
	}

	d := Descriptor{
		ID:         GeneratedID(t.ID, seed),
		ZoneID:     t.ID,
		Name:       fmt.Sprintf(nameFormat, t.Names.Prefixes[prefix], t.Names.Suffixes[suffix]),
		Exits:      exits,
		Encounter:  encounter,
		Discovery:  discovery,
		Provenance: Generated,
	}
	g.logger.Debug("room generated",
		zap.String("zone", t.ID),
		zap.Stringer("seed", seed),
		zap.String("room_id", d.ID),
		zap.Int("exits", len(d.Exits)),
		zap.Bool("encounter", d.Encounter),
		zap.Bool("discovery", d.Discovery),
		zap.Int("draws", r.Draws()),
	)
	return d, nil
}

// realize samples a probability within rg and compares a second draw against it.
// Both draws happen even for a fixed range so the call sequence never depends on the template.
func realize(r *rng.Random, rg zone.Range) bool {
	p := rg.Min + (rg.Max-rg.Min)*r.Float()
	return r.Float() < p
}
