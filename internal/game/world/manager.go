// Package world orchestrates per-player zone visits: it owns VisitState,
// derives seeds, injects special rooms and memoizes generated rooms for replay.
package world

import (
	"context"
	"fmt"
	"strconv"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"

	"github.com/cory-johannsen/roomgen/internal/game/rng"
	"github.com/cory-johannsen/roomgen/internal/game/room"
	"github.com/cory-johannsen/roomgen/internal/game/zone"
)

// ErrVisitNotFound is returned when no visit state exists where one is required.
// It wraps zone.ErrNotFound.
var ErrVisitNotFound = fmt.Errorf("visit state %w", zone.ErrNotFound)

// DefaultCacheSize is the number of generated rooms memoized for replay.
const DefaultCacheSize = 4096

// EnterResult is the outcome of one Enter call.
type EnterResult struct {
	Room  room.Descriptor
	State VisitState
}

type cacheKey struct {
	zone string
	seed rng.Seed
}

// Manager serves rooms to players. It is safe for concurrent use: Enter calls
// for the same (player, zone) are serialized, calls for different keys never block
// one another.
type Manager struct {
	catalog   *zone.Catalog
	store     VisitStore
	generator *room.Generator
	logger    *zap.Logger
	cacheSize int
	cache     *lru.Cache[cacheKey, room.Descriptor]
	locks     *keyedMutex
}

// Option configures a Manager.
type Option func(*Manager)

// WithGenerator replaces the default room generator.
func WithGenerator(g *room.Generator) Option {
	return func(m *Manager) { m.generator = g }
}

// WithLogger sets the manager's logger.
func WithLogger(l *zap.Logger) Option {
	return func(m *Manager) { m.logger = l }
}

// WithCacheSize bounds the replay cache. 0 disables memoization.
func WithCacheSize(n int) Option {
	return func(m *Manager) { m.cacheSize = n }
}

// NewManager creates a Manager over catalog and store.
//
// Precondition: catalog and store must be non-nil.
// Postcondition: Returns a ready Manager or an error if the cache cannot be built.
func NewManager(catalog *zone.Catalog, store VisitStore, opts ...Option) (*Manager, error) {
	m := &Manager{
		catalog:   catalog,
		store:     store,
		logger:    zap.NewNop(),
		cacheSize: DefaultCacheSize,
		locks:     newKeyedMutex(),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.generator == nil {
		m.generator = room.NewGenerator(room.WithLogger(m.logger))
	}
	if m.cacheSize > 0 {
		c, err := lru.New[cacheKey, room.Descriptor](m.cacheSize)
		if err != nil {
			return nil, fmt.Errorf("creating replay cache: %w", err)
		}
		m.cache = c
	}
	return m, nil
}

// VisitSeed derives the generation seed for a player's n-th visit to a zone.
func VisitSeed(playerID, zoneID string, visit uint64) rng.Seed {
	return rng.DeriveSeed(playerID, zoneID, strconv.FormatUint(visit, 10))
}

// Enter advances playerID's visit counter for zoneID and returns the room served.
//
// Special rooms are evaluated against the post-increment counter in priority
// order; the first whose trigger fires, and which is not an already consumed
// one-time room, replaces generation. At most one special room is served per visit.
//
// Postcondition: On success the persisted counter is exactly one greater than
// before. Returns an error wrapping zone.ErrNotFound for an unknown zone.
func (m *Manager) Enter(ctx context.Context, playerID, zoneID string) (EnterResult, error) {
	tmpl, err := m.catalog.Get(zoneID)
	if err != nil {
		return EnterResult{}, err
	}

	unlock := m.locks.lock(visitKey{playerID, zoneID})
	defer unlock()

	state, ok, err := m.store.Get(ctx, playerID, zoneID)
	if err != nil {
		return EnterResult{}, fmt.Errorf("loading visit state for %q in %q: %w", playerID, zoneID, err)
	}
	if !ok {
		state = VisitState{PlayerID: playerID, ZoneID: zoneID}
	}

	state.Visits++
	state.LastSeed = VisitSeed(playerID, zoneID, state.Visits)

	var desc room.Descriptor
	if special := m.selectSpecial(tmpl, state); special != nil {
		if special.OneTime {
			state.consume(special.ID)
		}
		if state.Specials == nil {
			state.Specials = make(map[uint64]string)
		}
		state.Specials[state.Visits] = special.ID
		desc = room.FromSpecial(zoneID, special)
	} else {
		desc, err = m.generate(tmpl, state.LastSeed)
		if err != nil {
			return EnterResult{}, err
		}
	}

	if err := m.store.Put(ctx, playerID, zoneID, state); err != nil {
		return EnterResult{}, fmt.Errorf("saving visit state for %q in %q: %w", playerID, zoneID, err)
	}

	m.logger.Debug("zone entered",
		zap.String("player", playerID),
		zap.String("zone", zoneID),
		zap.Uint64("visit", state.Visits),
		zap.String("room_id", desc.ID),
		zap.String("provenance", string(desc.Provenance)),
	)
	return EnterResult{Room: desc, State: state.Clone()}, nil
}

// selectSpecial returns the first eligible special room for the state's current visit, or nil.
func (m *Manager) selectSpecial(tmpl *zone.Template, state VisitState) *zone.SpecialRoom {
	for _, ref := range tmpl.Specials {
		if ref.Room.OneTime && state.HasConsumed(ref.Room.ID) {
			continue
		}
		fired, err := ref.Fires(state.PlayerID, tmpl.ID, state.Visits)
		if err != nil {
			m.logger.Warn("special room trigger failed",
				zap.String("zone", tmpl.ID),
				zap.String("special", ref.Room.ID),
				zap.Uint64("visit", state.Visits),
				zap.Error(err),
			)
			continue
		}
		if fired {
			return ref.Room
		}
	}
	return nil
}

// Replay reproduces the room served on a past visit without changing any state.
//
// Precondition: visit >= 1.
// Postcondition: Returns the same descriptor Enter returned for that visit, or an
// error wrapping zone.ErrNotFound if the zone is unknown or the visit has not happened.
func (m *Manager) Replay(ctx context.Context, playerID, zoneID string, visit uint64) (room.Descriptor, error) {
	tmpl, err := m.catalog.Get(zoneID)
	if err != nil {
		return room.Descriptor{}, err
	}
	state, err := m.Peek(ctx, playerID, zoneID)
	if err != nil {
		return room.Descriptor{}, err
	}
	if visit < 1 || visit > state.Visits {
		return room.Descriptor{}, fmt.Errorf("visit %d of %q in %q (have %d): %w",
			visit, playerID, zoneID, state.Visits, ErrVisitNotFound)
	}
	if id, ok := state.Specials[visit]; ok {
		special, err := m.catalog.Special(id)
		if err != nil {
			return room.Descriptor{}, err
		}
		return room.FromSpecial(zoneID, special), nil
	}
	return m.generate(tmpl, VisitSeed(playerID, zoneID, visit))
}

// Peek returns the current visit state without mutating it.
//
// Postcondition: Returns ErrVisitNotFound if the player has never entered the zone.
func (m *Manager) Peek(ctx context.Context, playerID, zoneID string) (VisitState, error) {
	state, ok, err := m.store.Get(ctx, playerID, zoneID)
	if err != nil {
		return VisitState{}, fmt.Errorf("loading visit state for %q in %q: %w", playerID, zoneID, err)
	}
	if !ok {
		return VisitState{}, fmt.Errorf("%q in %q: %w", playerID, zoneID, ErrVisitNotFound)
	}
	return state, nil
}

func (m *Manager) generate(tmpl *zone.Template, seed rng.Seed) (room.Descriptor, error) {
	key := cacheKey{zone: tmpl.ID, seed: seed}
	if m.cache != nil {
		if d, ok := m.cache.Get(key); ok {
			return d.Clone(), nil
		}
	}
	d, err := m.generator.Generate(tmpl, seed)
	if err != nil {
		return room.Descriptor{}, fmt.Errorf("generating room: %w", err)
	}
	if m.cache != nil {
		m.cache.Add(key, d.Clone())
	}
	return d, nil
}
