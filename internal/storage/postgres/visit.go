package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cory-johannsen/roomgen/internal/game/rng"
	"github.com/cory-johannsen/roomgen/internal/game/world"
)

// ErrStaleVisitState is returned by Put when the stored visit counter is already
// at or beyond the one being written, e.g. another process advanced it first.
var ErrStaleVisitState = errors.New("stale visit state")

// VisitRepository persists world.VisitState in the visit_states table.
// It implements world.VisitStore.
type VisitRepository struct {
	db *pgxpool.Pool
}

// NewVisitRepository creates a VisitRepository backed by the given pool.
//
// Precondition: db must be a valid, open connection pool.
func NewVisitRepository(db *pgxpool.Pool) *VisitRepository {
	return &VisitRepository{db: db}
}

// Get implements world.VisitStore.
//
// Postcondition: Returns (state, true, nil) if a row exists, (zero, false, nil) if not.
func (r *VisitRepository) Get(ctx context.Context, playerID, zoneID string) (world.VisitState, bool, error) {
	var (
		visits   int64
		lastSeed int64
		specials []byte
		state    = world.VisitState{PlayerID: playerID, ZoneID: zoneID}
	)
	err := r.db.QueryRow(ctx, `
		SELECT visits, consumed, last_seed, specials
		FROM visit_states WHERE player_id = $1 AND zone_id = $2`,
		playerID, zoneID,
	).Scan(&visits, &state.Consumed, &lastSeed, &specials)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return world.VisitState{}, false, nil
		}
		return world.VisitState{}, false, fmt.Errorf("querying visit state: %w", err)
	}
	state.Visits = uint64(visits)
	state.LastSeed = rng.Seed(uint64(lastSeed))
	if len(specials) > 0 {
		if err := json.Unmarshal(specials, &state.Specials); err != nil {
			return world.VisitState{}, false, fmt.Errorf("decoding visit specials: %w", err)
		}
		if len(state.Specials) == 0 {
			state.Specials = nil
		}
	}
	return state, true, nil
}

// Put implements world.VisitStore. The write only applies when it advances the
// stored counter, so counters never regress across processes.
//
// Postcondition: Returns nil on success, or ErrStaleVisitState if the stored counter is not lower.
func (r *VisitRepository) Put(ctx context.Context, playerID, zoneID string, state world.VisitState) error {
	specials := []byte("{}")
	if len(state.Specials) > 0 {
		var err error
		if specials, err = json.Marshal(state.Specials); err != nil {
			return fmt.Errorf("encoding visit specials: %w", err)
		}
	}
	consumed := state.Consumed
	if consumed == nil {
		consumed = []string{}
	}
	tag, err := r.db.Exec(ctx, `
		INSERT INTO visit_states (player_id, zone_id, visits, consumed, last_seed, specials)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (player_id, zone_id) DO UPDATE SET
			visits     = EXCLUDED.visits,
			consumed   = EXCLUDED.consumed,
			last_seed  = EXCLUDED.last_seed,
			specials   = EXCLUDED.specials,
			updated_at = NOW()
		WHERE visit_states.visits < EXCLUDED.visits`,
		playerID, zoneID, int64(state.Visits), consumed, int64(uint64(state.LastSeed)), specials,
	)
	if err != nil {
		return fmt.Errorf("saving visit state: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("player %q zone %q visit %d: %w", playerID, zoneID, state.Visits, ErrStaleVisitState)
	}
	return nil
}

// Reset deletes the visit state for (playerID, zoneID).
//
// Postcondition: The pair is unvisited afterwards; deleting a missing row is not an error.
func (r *VisitRepository) Reset(ctx context.Context, playerID, zoneID string) error {
	if _, err := r.db.Exec(ctx, `DELETE FROM visit_states WHERE player_id = $1 AND zone_id = $2`, playerID, zoneID); err != nil {
		return fmt.Errorf("resetting visit state: %w", err)
	}
	return nil
}

// CountByPlayer returns how many zones playerID has visited.
func (r *VisitRepository) CountByPlayer(ctx context.Context, playerID string) (int, error) {
	var n int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM visit_states WHERE player_id = $1`, playerID).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting visit states: %w", err)
	}
	return n, nil
}
