// Package main provides the roomgen binary, which enters or replays zones for
// a player and prints one JSON room descriptor per line.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/cory-johannsen/roomgen/internal/config"
	"github.com/cory-johannsen/roomgen/internal/game/rng"
	"github.com/cory-johannsen/roomgen/internal/game/room"
	"github.com/cory-johannsen/roomgen/internal/game/world"
	"github.com/cory-johannsen/roomgen/internal/game/zone"
	"github.com/cory-johannsen/roomgen/internal/observability"
)

func main() {
	start := time.Now()

	configPath := flag.String("config", "configs/dev.yaml", "path to configuration file")
	playerID := flag.String("player", "", "player ID")
	zoneID := flag.String("zone", "", "zone ID")
	visits := flag.Int("visits", 1, "number of times to enter the zone")
	replay := flag.Uint64("replay", 0, "replay this past visit instead of entering (0 = enter)")
	flag.Parse()

	ctx := context.Background()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}

	req := request{player: *playerID, zone: *zoneID, visits: *visits, replay: *replay}
	if err := req.validate(cfg.Store.Backend); err != nil {
		log.Fatalf("invalid request: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logging)
	if err != nil {
		log.Fatalf("initializing logger: %v", err)
	}
	defer logger.Sync()

	catalogStart := time.Now()
	catalog, err := zone.LoadCatalogFromDir(cfg.Content.TemplatesDir,
		zone.WithScriptInstructionLimit(cfg.Generation.ScriptInstructionLimit))
	if err != nil {
		logger.Fatal("loading template catalog", zap.Error(err))
	}
	logger.Info("catalog loaded",
		zap.Int("zones", catalog.ZoneCount()),
		zap.Int("special_rooms", catalog.SpecialCount()),
		zap.String("version", catalog.Version()),
		zap.Duration("elapsed", time.Since(catalogStart)),
	)

	factory, err := rng.FactoryFor(cfg.Generation.Algorithm)
	if err != nil {
		logger.Fatal("selecting random source", zap.Error(err))
	}

	store, closeStore, err := openStore(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("opening visit store", zap.Error(err))
	}
	defer closeStore()

	mgr, err := world.NewManager(catalog, store,
		world.WithLogger(observability.Component(logger, "world")),
		world.WithGenerator(room.NewGenerator(
			room.WithFactory(factory),
			room.WithLogger(observability.Component(logger, "room")),
		)),
		world.WithCacheSize(cfg.Generation.CacheSize),
	)
	if err != nil {
		logger.Fatal("creating zone manager", zap.Error(err))
	}

	if err := run(ctx, mgr, req, os.Stdout); err != nil {
		logger.Fatal("generating rooms", zap.Error(err))
	}
	logger.Info("done",
		zap.String("backend", cfg.Store.Backend),
		zap.Duration("elapsed", time.Since(start)),
	)
}
