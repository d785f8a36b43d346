package zone

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

const kelpForestYAML = `
zones:
  - id: kelp_forest
    name: Kelp Forest
    exits:
      counts:
        - {count: 1, weight: 0.5}
        - {count: 2, weight: 0.5}
      directions:
        - {direction: north}
        - {direction: south}
        - {direction: east, target: coral_reef}
    encounter: {min: 0.3, max: 0.3}
    discovery: {min: 0.1, max: 0.2}
    names:
      prefixes: [Swaying, Murky, Sunlit]
      suffixes: [Thicket, Canopy, Hollow]
    specials:
      - id: hidden_grotto
        trigger: {on_visit: 5}
  - id: coral_reef
    name: Coral Reef
    exits:
      counts: [{count: 1, weight: 1}]
      directions: [{direction: west, target: kelp_forest}]
    encounter: {min: 0.1, max: 0.5}
    discovery: {min: 0.0, max: 1.0}
    names:
      prefixes: [Bleached]
      suffixes: [Shelf]
special_rooms:
  - id: hidden_grotto
    name: Hidden Grotto
    one_time: true
    discovery: true
    exits:
      - {direction: south}
`

func mustDefs(t *testing.T, src string) Definitions {
	t.Helper()
	defs, err := LoadDefinitionsFromBytes([]byte(src))
	require.NoError(t, err)
	return defs
}

func requireSchemaError(t *testing.T, err error, zoneID string) *SchemaError {
	t.Helper()
	require.Error(t, err)
	var se *SchemaError
	require.True(t, errors.As(err, &se), "expected a *SchemaError, got %T: %v", err, err)
	if zoneID != "" {
		assert.Equal(t, zoneID, se.Zone)
	}
	return se
}

func TestNewCatalog_Valid(t *testing.T) {
	cat, err := NewCatalog(mustDefs(t, kelpForestYAML))
	require.NoError(t, err)

	assert.Equal(t, []string{"coral_reef", "kelp_forest"}, cat.ZoneIDs())
	assert.Equal(t, 2, cat.ZoneCount())
	assert.Equal(t, 1, cat.SpecialCount())

	kelp, err := cat.Get("kelp_forest")
	require.NoError(t, err)
	assert.Equal(t, "Kelp Forest", kelp.Name)
	assert.Equal(t, 2, kelp.MaxExits())
	require.Len(t, kelp.Directions, 3)
	assert.Equal(t, Interior, kelp.Directions[0].Target)
	assert.Equal(t, 1.0, kelp.Directions[0].Weight)
	assert.Equal(t, "coral_reef", kelp.Directions[2].Target)
	require.Len(t, kelp.Specials, 1)
	assert.Equal(t, "hidden_grotto", kelp.Specials[0].Room.ID)
	assert.True(t, kelp.Specials[0].Room.OneTime)
	assert.Equal(t, uint64(5), kelp.Specials[0].Trigger.OnVisit)

	grotto, err := cat.Special("hidden_grotto")
	require.NoError(t, err)
	assert.Equal(t, []Exit{{Direction: South, Target: Interior}}, grotto.Exits)
}

func TestCatalog_Get_NotFound(t *testing.T) {
	cat, err := NewCatalog(mustDefs(t, kelpForestYAML))
	require.NoError(t, err)

	_, err = cat.Get("abyss")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = cat.Special("abyss")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCatalog_Version_StableAndContentSensitive(t *testing.T) {
	a, err := NewCatalog(mustDefs(t, kelpForestYAML))
	require.NoError(t, err)
	b, err := NewCatalog(mustDefs(t, kelpForestYAML))
	require.NoError(t, err)
	assert.Equal(t, a.Version(), b.Version())

	defs := mustDefs(t, kelpForestYAML)
	defs.Zones[0].Names.Prefixes = append(defs.Zones[0].Names.Prefixes, "Tangled")
	c, err := NewCatalog(defs)
	require.NoError(t, err)
	assert.NotEqual(t, a.Version(), c.Version())
}

func TestNewCatalog_DanglingSpecialReference(t *testing.T) {
	defs := mustDefs(t, kelpForestYAML)
	defs.SpecialRooms = nil

	cat, err := NewCatalog(defs)
	assert.Nil(t, cat, "no zone may be registered from a partially valid catalog")
	se := requireSchemaError(t, err, "kelp_forest")
	assert.Equal(t, "hidden_grotto", se.Special)
	assert.Contains(t, err.Error(), "unknown special room")
}

func TestNewCatalog_ZeroWeightPool(t *testing.T) {
	defs := mustDefs(t, kelpForestYAML)
	defs.Zones[0].Exits.Counts = []ExitCountDef{{Count: 1, Weight: 0}, {Count: 2, Weight: 0}}

	cat, err := NewCatalog(defs)
	assert.Nil(t, cat)
	requireSchemaError(t, err, "kelp_forest")
	assert.Contains(t, err.Error(), "weights sum to zero")
}

func TestNewCatalog_ZeroWeightDirections(t *testing.T) {
	zero := 0.0
	defs := mustDefs(t, kelpForestYAML)
	for i := range defs.Zones[0].Exits.Directions {
		defs.Zones[0].Exits.Directions[i].Weight = &zero
	}
	_, err := NewCatalog(defs)
	requireSchemaError(t, err, "kelp_forest")
	assert.Contains(t, err.Error(), "exits.directions")
}

func TestNewCatalog_EmptyDirections(t *testing.T) {
	defs := mustDefs(t, kelpForestYAML)
	defs.Zones[1].Exits.Directions = nil
	_, err := NewCatalog(defs)
	requireSchemaError(t, err, "coral_reef")
	assert.Contains(t, err.Error(), "direction set must not be empty")
}

func TestNewCatalog_BadRanges(t *testing.T) {
	cases := map[string]RangeDef{
		"above one":  {Min: 0.2, Max: 1.2},
		"below zero": {Min: -0.1, Max: 0.5},
		"inverted":   {Min: 0.6, Max: 0.4},
	}
	for name, r := range cases {
		defs := mustDefs(t, kelpForestYAML)
		defs.Zones[0].Discovery = r
		_, err := NewCatalog(defs)
		requireSchemaError(t, err, "kelp_forest")
		assert.Contains(t, err.Error(), "discovery", name)
	}
}

func TestNewCatalog_UnknownExitTarget(t *testing.T) {
	defs := mustDefs(t, kelpForestYAML)
	defs.Zones[0].Exits.Directions[2].Target = "atlantis"
	_, err := NewCatalog(defs)
	requireSchemaError(t, err, "kelp_forest")
	assert.Contains(t, err.Error(), "atlantis")
}

func TestNewCatalog_TriggerValidation(t *testing.T) {
	zero := uint64(0)
	big := 1.5
	cases := map[string]TriggerDef{
		"none":         {},
		"two set":      {Every: ptrU(2), OnVisit: ptrU(3)},
		"zero every":   {Every: &zero},
		"zero visit":   {OnVisit: &zero},
		"chance > 1":   {Chance: &big},
		"script error": {Script: "return visit %% "},
	}
	for name, td := range cases {
		defs := mustDefs(t, kelpForestYAML)
		defs.Zones[0].Specials[0].Trigger = td
		_, err := NewCatalog(defs)
		se := requireSchemaError(t, err, "kelp_forest")
		assert.Equal(t, "trigger", se.Field, name)
	}
}

func TestNewCatalog_DuplicateIDs(t *testing.T) {
	defs := mustDefs(t, kelpForestYAML)
	defs.Zones = append(defs.Zones, defs.Zones[1])
	_, err := NewCatalog(defs)
	requireSchemaError(t, err, "coral_reef")
	assert.Contains(t, err.Error(), "duplicate zone ID")

	defs = mustDefs(t, kelpForestYAML)
	defs.SpecialRooms = append(defs.SpecialRooms, defs.SpecialRooms[0])
	_, err = NewCatalog(defs)
	assert.Contains(t, err.Error(), "duplicate special room ID")
}

func TestNewCatalog_ReportsEveryViolation(t *testing.T) {
	defs := mustDefs(t, kelpForestYAML)
	defs.Zones[0].Names.Prefixes = nil
	defs.Zones[1].Names.Suffixes = nil
	_, err := NewCatalog(defs)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `zone "kelp_forest": names.prefixes`)
	assert.Contains(t, err.Error(), `zone "coral_reef": names.suffixes`)
}

func TestNewCatalog_SpecialPriorityOrder(t *testing.T) {
	defs := mustDefs(t, kelpForestYAML)
	defs.SpecialRooms = append(defs.SpecialRooms,
		SpecialRoomDef{ID: "sunken_shrine", Name: "Sunken Shrine", Priority: -1},
		SpecialRoomDef{ID: "eel_den", Name: "Eel Den", Priority: 0},
	)
	defs.Zones[0].Specials = append(defs.Zones[0].Specials,
		SpecialRefDef{ID: "sunken_shrine", Trigger: TriggerDef{Every: ptrU(5)}},
		SpecialRefDef{ID: "eel_den", Trigger: TriggerDef{Every: ptrU(5)}},
	)
	cat, err := NewCatalog(defs)
	require.NoError(t, err)
	kelp, err := cat.Get("kelp_forest")
	require.NoError(t, err)

	var order []string
	for _, ref := range kelp.Specials {
		order = append(order, ref.Room.ID)
	}
	assert.Equal(t, []string{"sunken_shrine", "hidden_grotto", "eel_den"}, order,
		"lower priority first; equal priority keeps declaration order")
}

func TestSpecialRef_Fires(t *testing.T) {
	room := &SpecialRoom{ID: "s"}
	onFive := SpecialRef{Room: room, Trigger: Trigger{OnVisit: 5}}
	every := SpecialRef{Room: room, Trigger: Trigger{Every: 3}}

	for visit := uint64(1); visit <= 12; visit++ {
		fired, err := onFive.Fires("p1", "z", visit)
		require.NoError(t, err)
		assert.Equal(t, visit == 5, fired)

		fired, err = every.Fires("p1", "z", visit)
		require.NoError(t, err)
		assert.Equal(t, visit%3 == 0, fired)
	}
}

func TestSpecialRef_ChanceIsDeterministic(t *testing.T) {
	ref := SpecialRef{Room: &SpecialRoom{ID: "s"}, Trigger: Trigger{Chance: 0.5, HasChance: true}}
	fired := 0
	for visit := uint64(1); visit <= 2000; visit++ {
		a, err := ref.Fires("p1", "z", visit)
		require.NoError(t, err)
		b, err := ref.Fires("p1", "z", visit)
		require.NoError(t, err)
		assert.Equal(t, a, b)
		if a {
			fired++
		}
	}
	assert.InDelta(t, 1000, fired, 150)
}

func TestLoadDefinitionsFromDir(t *testing.T) {
	dir := t.TempDir()
	defs := mustDefs(t, kelpForestYAML)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a_zones.yaml"), []byte(kelpForestYAML), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "readme.txt"), []byte("ignore me"), 0644))

	loaded, err := LoadDefinitionsFromDir(dir)
	require.NoError(t, err)
	assert.Equal(t, defs, loaded)
}

func TestLoadDefinitionsFromDir_Empty(t *testing.T) {
	_, err := LoadDefinitionsFromDir(t.TempDir())
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "no template files found")
}

func TestLoadDefinitionsFromBytes_InvalidYAML(t *testing.T) {
	_, err := LoadDefinitionsFromBytes([]byte("zones: [not valid"))
	assert.Error(t, err)
}

func TestLoadDefinitionsFromBytes_WrongTypesAreSchemaErrors(t *testing.T) {
	_, err := LoadDefinitionsFromBytes([]byte(`
zones:
  - id: kelp_forest
    exits:
      counts: [{count: abc, weight: 1}]
    specials:
      - id: hidden_grotto
        trigger: {on_visit: -1}
  - id: coral_reef
    name: Coral Reef
special_rooms:
  - id: hidden_grotto
    one_time: sometimes
`))
	require.Error(t, err)

	se := requireSchemaError(t, err, "kelp_forest")
	assert.Equal(t, "yaml", se.Field)
	assert.Contains(t, err.Error(), `zone "kelp_forest": yaml:`)
	assert.Contains(t, err.Error(), `special room "hidden_grotto": yaml:`)
	assert.NotContains(t, err.Error(), "coral_reef")
}

func TestLoadDefinitionsFromBytes_WrongTopLevelType(t *testing.T) {
	_, err := LoadDefinitionsFromBytes([]byte("zones: 7\n"))
	var se *SchemaError
	require.True(t, errors.As(err, &se), "expected a *SchemaError, got %T: %v", err, err)
	assert.Equal(t, "yaml", se.Field)
	assert.Empty(t, se.Zone)
}

func TestLoadActualContent(t *testing.T) {
	cat, err := LoadCatalogFromDir("../../../content/templates")
	require.NoError(t, err)
	assert.GreaterOrEqual(t, cat.ZoneCount(), 3)
	_, err = cat.Get("kelp_forest")
	assert.NoError(t, err)
}

func TestPropertyMaxExitsBoundedByDirections(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		nDirs := rapid.IntRange(1, 6).Draw(rt, "dirs")
		dirs := make([]DirectionOption, nDirs)
		for i := range dirs {
			dirs[i] = DirectionOption{Direction: Direction(string(rune('a' + i))), Weight: 1}
		}
		counts := rapid.SliceOfN(rapid.IntRange(0, 10), 1, 4).Draw(rt, "counts")
		tmpl := &Template{Directions: dirs}
		for _, c := range counts {
			tmpl.ExitCounts = append(tmpl.ExitCounts, ExitCount{Count: c, Weight: 1})
		}
		assert.LessOrEqual(rt, tmpl.MaxExits(), nDirs)
	})
}

func ptrU(v uint64) *uint64 { return &v }
