package redis_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cory-johannsen/roomgen/internal/game/world"
	"github.com/cory-johannsen/roomgen/internal/game/zone"
	"github.com/cory-johannsen/roomgen/internal/storage/redis"
	"github.com/cory-johannsen/roomgen/internal/testutil"
)

func setupStore(t *testing.T) *redis.VisitStore {
	t.Helper()
	cfg := testutil.NewRedisContainer(t)
	rdb, err := redis.NewClient(context.Background(), cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = rdb.Close() })
	return redis.NewVisitStore(rdb, cfg.KeyPrefix)
}

func uniquePlayer(prefix string) string {
	return fmt.Sprintf("%s_%d", prefix, time.Now().UnixNano())
}

func TestVisitStore_GetMissing(t *testing.T) {
	store := setupStore(t)
	_, ok, err := store.Get(context.Background(), uniquePlayer("p"), "kelp_forest")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestVisitStore_PutGetRoundTrip(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()
	player := uniquePlayer("p")

	state := world.VisitState{
		PlayerID: player,
		ZoneID:   "kelp_forest",
		Visits:   5,
		Consumed: []string{"hidden_grotto"},
		LastSeed: 0xfedcba9876543210,
		Specials: map[uint64]string{5: "hidden_grotto"},
	}
	require.NoError(t, store.Put(ctx, player, "kelp_forest", state))

	got, ok, err := store.Get(ctx, player, "kelp_forest")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, state, got)
}

func TestVisitStore_PutRejectsStaleCounter(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()
	player := uniquePlayer("p")

	require.NoError(t, store.Put(ctx, player, "z", world.VisitState{PlayerID: player, ZoneID: "z", Visits: 3}))
	err := store.Put(ctx, player, "z", world.VisitState{PlayerID: player, ZoneID: "z", Visits: 3})
	require.ErrorIs(t, err, redis.ErrStaleVisitState)

	got, _, err := store.Get(ctx, player, "z")
	require.NoError(t, err)
	assert.Equal(t, uint64(3), got.Visits)
}

func TestVisitStore_Reset(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()
	player := uniquePlayer("p")

	require.NoError(t, store.Put(ctx, player, "z", world.VisitState{PlayerID: player, ZoneID: "z", Visits: 1}))
	require.NoError(t, store.Reset(ctx, player, "z"))
	_, ok, err := store.Get(ctx, player, "z")
	require.NoError(t, err)
	assert.False(t, ok)
	require.NoError(t, store.Reset(ctx, player, "z"))
}

func TestVisitStore_BacksManager(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()
	player := uniquePlayer("diver")

	defs, err := zone.LoadDefinitionsFromBytes([]byte(`
zones:
  - id: shallows
    name: Shallows
    exits:
      counts: [{count: 1, weight: 1}]
      directions: [{direction: north}, {direction: south}]
    encounter: {min: 0, max: 0}
    discovery: {min: 0, max: 0}
    names: {prefixes: [Sunlit], suffixes: [Shelf]}
`))
	require.NoError(t, err)
	catalog, err := zone.NewCatalog(defs)
	require.NoError(t, err)

	mgr, err := world.NewManager(catalog, store)
	require.NoError(t, err)
	for i := 1; i <= 3; i++ {
		res, err := mgr.Enter(ctx, player, "shallows")
		require.NoError(t, err)
		assert.Equal(t, uint64(i), res.State.Visits)
	}
	got, ok, err := store.Get(ctx, player, "shallows")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, uint64(3), got.Visits)
}
