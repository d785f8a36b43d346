package room_test

import (
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
	"pgregory.net/rapid"

	"github.com/cory-johannsen/roomgen/internal/game/rng"
	"github.com/cory-johannsen/roomgen/internal/game/room"
	"github.com/cory-johannsen/roomgen/internal/game/zone"
)

func kelpForest() *zone.Template {
	return &zone.Template{
		ID:   "kelp_forest",
		Name: "Kelp Forest",
		ExitCounts: []zone.ExitCount{
			{Count: 1, Weight: 0.5},
			{Count: 2, Weight: 0.5},
		},
		Directions: []zone.DirectionOption{
			{Direction: zone.North, Weight: 1, Target: zone.Interior},
			{Direction: zone.South, Weight: 1, Target: zone.Interior},
			{Direction: zone.East, Weight: 1, Target: "coral_reef"},
		},
		Encounter: zone.Range{Min: 0.3, Max: 0.3},
		Discovery: zone.Range{Min: 0.1, Max: 0.2},
		Names: zone.NameBank{
			Prefixes: []string{"Swaying", "Murky", "Sunlit"},
			Suffixes: []string{"Thicket", "Canopy", "Hollow"},
		},
	}
}

func TestGenerate_Deterministic(t *testing.T) {
	g := room.NewGenerator()
	a, err := g.Generate(kelpForest(), 12345)
	require.NoError(t, err)
	b, err := g.Generate(kelpForest(), 12345)
	require.NoError(t, err)

	aj, err := json.Marshal(a)
	require.NoError(t, err)
	bj, err := json.Marshal(b)
	require.NoError(t, err)
	assert.Equal(t, string(aj), string(bj), "identical inputs must serialize byte-identically")
	assert.Equal(t, room.Generated, a.Provenance)
	assert.Equal(t, "kelp_forest", a.ZoneID)
}

func TestGenerate_IDDependsOnZoneAndSeed(t *testing.T) {
	g := room.NewGenerator()
	a, err := g.Generate(kelpForest(), 1)
	require.NoError(t, err)
	b, err := g.Generate(kelpForest(), 2)
	require.NoError(t, err)
	assert.NotEqual(t, a.ID, b.ID)
	assert.Equal(t, room.GeneratedID("kelp_forest", 1), a.ID)
}

func TestGenerate_ClampsExitCountToPool(t *testing.T) {
	tmpl := kelpForest()
	tmpl.ExitCounts = []zone.ExitCount{{Count: 6, Weight: 1}}
	g := room.NewGenerator()
	for seed := rng.Seed(0); seed < 50; seed++ {
		d, err := g.Generate(tmpl, seed)
		require.NoError(t, err)
		assert.Len(t, d.Exits, 3)
	}
}

func TestGenerate_SkipsZeroWeightDirections(t *testing.T) {
	tmpl := kelpForest()
	tmpl.Directions[0].Weight = 0
	tmpl.ExitCounts = []zone.ExitCount{{Count: 3, Weight: 1}}
	g := room.NewGenerator()
	d, err := g.Generate(tmpl, 9)
	require.NoError(t, err)
	require.Len(t, d.Exits, 2)
	for _, e := range d.Exits {
		assert.NotEqual(t, "north", e.Direction)
	}
}

func TestGenerate_NameFromBanks(t *testing.T) {
	tmpl := kelpForest()
	tmpl.Names = zone.NameBank{Prefixes: []string{"Drowned"}, Suffixes: []string{"Arch"}}
	d, err := room.NewGenerator().Generate(tmpl, 77)
	require.NoError(t, err)
	assert.Equal(t, "Drowned Arch", d.Name)
}

func TestGenerate_EncounterRateMatchesFixedProbability(t *testing.T) {
	g := room.NewGenerator()
	tmpl := kelpForest()
	const n = 10000
	hits := 0
	for i := 0; i < n; i++ {
		d, err := g.Generate(tmpl, rng.SeedFromString(fmt.Sprintf("seed-%d", i)))
		require.NoError(t, err)
		if d.Encounter {
			hits++
		}
	}
	assert.InDelta(t, 0.3, float64(hits)/n, 0.02)
}

func TestGenerate_DiscoveryRateMatchesRangeMidpoint(t *testing.T) {
	g := room.NewGenerator(room.WithFactory(rng.NewPCG))
	tmpl := kelpForest()
	const n = 10000
	hits := 0
	for i := 0; i < n; i++ {
		d, err := g.Generate(tmpl, rng.DeriveSeed("p", "kelp_forest", fmt.Sprint(i)))
		require.NoError(t, err)
		if d.Discovery {
			hits++
		}
	}
	assert.InDelta(t, 0.15, float64(hits)/n, 0.02)
}

func TestGenerate_FactoryChangesOutputNotDeterminism(t *testing.T) {
	pcg := room.NewGenerator(room.WithFactory(rng.NewPCG))
	a, err := pcg.Generate(kelpForest(), 5)
	require.NoError(t, err)
	b, err := pcg.Generate(kelpForest(), 5)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestGenerate_LogsAtDebug(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	g := room.NewGenerator(room.WithLogger(zap.New(core)))
	_, err := g.Generate(kelpForest(), 3)
	require.NoError(t, err)
	entries := logs.FilterMessage("room generated").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "kelp_forest", entries[0].ContextMap()["zone"])
}

func TestFromSpecial(t *testing.T) {
	grotto := &zone.SpecialRoom{
		ID:        "hidden_grotto",
		Name:      "Hidden Grotto",
		Exits:     []zone.Exit{{Direction: zone.South, Target: zone.Interior}},
		Discovery: true,
		OneTime:   true,
	}
	d := room.FromSpecial("kelp_forest", grotto)
	assert.Equal(t, room.Descriptor{
		ID:         room.SpecialID("kelp_forest", "hidden_grotto"),
		ZoneID:     "kelp_forest",
		Name:       "Hidden Grotto",
		Exits:      []room.Exit{{Direction: "south", Target: "interior"}},
		Discovery:  true,
		Provenance: room.Special,
	}, d)
}

func TestDescriptor_JSONShape(t *testing.T) {
	d := room.Descriptor{
		ID: "x", ZoneID: "z", Name: "n",
		Exits:      []room.Exit{{Direction: "north", Target: "interior"}},
		Provenance: room.Generated,
	}
	out, err := json.Marshal(d)
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":"x","zoneId":"z","name":"n","exits":[{"direction":"north","target":"interior"}],"encounter":false,"discovery":false,"provenance":"generated"}`, string(out))
}

func TestPropertyGenerateDeterministicAndBounded(t *testing.T) {
	g := room.NewGenerator()
	rapid.Check(t, func(rt *rapid.T) {
		seed := rng.Seed(rapid.Uint64().Draw(rt, "seed"))
		tmpl := kelpForest()
		maxCount := rapid.IntRange(0, 6).Draw(rt, "max_count")
		tmpl.ExitCounts = []zone.ExitCount{{Count: 0, Weight: 1}, {Count: maxCount, Weight: 2}}

		a, err := g.Generate(tmpl, seed)
		require.NoError(rt, err)
		b, err := g.Generate(tmpl, seed)
		require.NoError(rt, err)
		assert.Equal(rt, a, b)

		assert.LessOrEqual(rt, len(a.Exits), tmpl.MaxExits())
		assert.LessOrEqual(rt, len(a.Exits), len(tmpl.Directions))
		seen := map[string]bool{}
		for _, e := range a.Exits {
			assert.False(rt, seen[e.Direction], "duplicate direction %q", e.Direction)
			seen[e.Direction] = true
		}
	})
}
