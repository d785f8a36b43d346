// Package redis provides a VisitStore backed by Redis via go-redis v9.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/cory-johannsen/roomgen/internal/config"
	"github.com/cory-johannsen/roomgen/internal/game/world"
)

// KeyVisitState is the key layout for one (player, zone) visit state, after the prefix.
const KeyVisitState = "%s:visit:%s:%s"

// ErrStaleVisitState is returned by Put when the stored counter is already at
// or beyond the one being written.
var ErrStaleVisitState = errors.New("stale visit state")

// putScript writes ARGV[1] only when it advances the stored visit counter.
var putScript = redis.NewScript(`
	local current = redis.call("get", KEYS[1])
	if current then
		local stored = cjson.decode(current)
		if tonumber(stored["visits"]) >= tonumber(ARGV[2]) then
			return 0
		end
	end
	redis.call("set", KEYS[1], ARGV[1])
	return 1
`)

// VisitStore persists world.VisitState as JSON documents.
type VisitStore struct {
	rdb    *redis.Client
	prefix string
}

// NewClient connects to Redis and verifies the connection with a ping.
func NewClient(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("connecting to redis at %s: %w", cfg.Addr, err)
	}
	return rdb, nil
}

// NewVisitStore returns a VisitStore writing keys under prefix.
//
// Precondition: rdb must be non-nil.
func NewVisitStore(rdb *redis.Client, prefix string) *VisitStore {
	if prefix == "" {
		prefix = "roomgen"
	}
	return &VisitStore{rdb: rdb, prefix: prefix}
}

func (s *VisitStore) key(playerID, zoneID string) string {
	return fmt.Sprintf(KeyVisitState, s.prefix, playerID, zoneID)
}

// Get implements world.VisitStore.
func (s *VisitStore) Get(ctx context.Context, playerID, zoneID string) (world.VisitState, bool, error) {
	data, err := s.rdb.Get(ctx, s.key(playerID, zoneID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return world.VisitState{}, false, nil
		}
		return world.VisitState{}, false, fmt.Errorf("reading visit state: %w", err)
	}
	var state world.VisitState
	if err := json.Unmarshal(data, &state); err != nil {
		return world.VisitState{}, false, fmt.Errorf("decoding visit state: %w", err)
	}
	return state, true, nil
}

// Put implements world.VisitStore.
//
// Postcondition: Returns nil on success, or ErrStaleVisitState if the stored counter is not lower.
func (s *VisitStore) Put(ctx context.Context, playerID, zoneID string, state world.VisitState) error {
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("encoding visit state: %w", err)
	}
	written, err := putScript.Run(ctx, s.rdb, []string{s.key(playerID, zoneID)}, data, state.Visits).Int()
	if err != nil {
		return fmt.Errorf("saving visit state: %w", err)
	}
	if written == 0 {
		return fmt.Errorf("player %q zone %q visit %d: %w", playerID, zoneID, state.Visits, ErrStaleVisitState)
	}
	return nil
}

// Reset deletes the visit state for (playerID, zoneID).
func (s *VisitStore) Reset(ctx context.Context, playerID, zoneID string) error {
	if err := s.rdb.Del(ctx, s.key(playerID, zoneID)).Err(); err != nil {
		return fmt.Errorf("resetting visit state: %w", err)
	}
	return nil
}

var _ world.VisitStore = (*VisitStore)(nil)
