package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"go.uber.org/zap"

	"github.com/cory-johannsen/roomgen/internal/config"
	"github.com/cory-johannsen/roomgen/internal/game/room"
	"github.com/cory-johannsen/roomgen/internal/game/world"
	"github.com/cory-johannsen/roomgen/internal/storage/postgres"
	"github.com/cory-johannsen/roomgen/internal/storage/redis"
)

// healthTimeout bounds the startup database health check.
const healthTimeout = 5 * time.Second

// errReplayNeedsPersistence is returned when -replay is combined with the memory backend.
var errReplayNeedsPersistence = errors.New("-replay requires store.backend postgres or redis: memory state does not outlive the process")

type request struct {
	player string
	zone   string
	visits int
	replay uint64
}

// validate rejects requests that cannot succeed against backend.
func (req request) validate(backend string) error {
	if req.player == "" || req.zone == "" {
		return errors.New("both -player and -zone are required")
	}
	if req.replay > 0 && (backend == config.BackendMemory || backend == "") {
		return errReplayNeedsPersistence
	}
	return nil
}

// run enters req.zone req.visits times, or replays visit req.replay, writing
// one descriptor per line to w.
func run(ctx context.Context, mgr *world.Manager, req request, w io.Writer) error {
	enc := json.NewEncoder(w)
	if req.replay > 0 {
		desc, err := mgr.Replay(ctx, req.player, req.zone, req.replay)
		if err != nil {
			return err
		}
		return enc.Encode(desc)
	}
	if req.visits < 1 {
		return fmt.Errorf("visits must be >= 1, got %d", req.visits)
	}
	for i := 0; i < req.visits; i++ {
		res, err := mgr.Enter(ctx, req.player, req.zone)
		if err != nil {
			return err
		}
		if err := enc.Encode(res.Room); err != nil {
			return fmt.Errorf("writing %s: %w", describe(res.Room), err)
		}
	}
	return nil
}

func describe(d room.Descriptor) string {
	return fmt.Sprintf("room %s (%s)", d.ID, d.Provenance)
}

// openStore builds the VisitStore named by cfg.Store.Backend. The returned
// close function is always non-nil.
func openStore(ctx context.Context, cfg config.Config, logger *zap.Logger) (world.VisitStore, func(), error) {
	switch cfg.Store.Backend {
	case config.BackendMemory, "":
		return world.NewMemoryStore(), func() {}, nil
	case config.BackendPostgres:
		pool, err := postgres.NewPool(ctx, cfg.Database)
		if err != nil {
			return nil, nil, err
		}
		if err := pool.Health(ctx, healthTimeout); err != nil {
			pool.Close()
			return nil, nil, fmt.Errorf("database health check: %w", err)
		}
		logger.Info("database connected", zap.String("host", cfg.Database.Host))
		return pool.Visits(), pool.Close, nil
	case config.BackendRedis:
		rdb, err := redis.NewClient(ctx, cfg.Redis)
		if err != nil {
			return nil, nil, err
		}
		logger.Info("redis connected", zap.String("addr", cfg.Redis.Addr))
		return redis.NewVisitStore(rdb, cfg.Redis.KeyPrefix), func() { _ = rdb.Close() }, nil
	default:
		return nil, nil, fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
	}
}
