package world

import (
	"context"
	"sort"
	"sync"

	"github.com/cory-johannsen/roomgen/internal/game/rng"
)

// VisitState is the per (player, zone) record owned by the Manager.
type VisitState struct {
	PlayerID string `json:"playerId"`
	ZoneID   string `json:"zoneId"`
	// Visits is the number of completed Enter calls.
	Visits uint64 `json:"visits"`
	// Consumed holds the one-time special room IDs already served, sorted.
	Consumed []string `json:"consumed"`
	// LastSeed is the seed derived for the most recent visit.
	LastSeed rng.Seed `json:"lastSeed"`
	// Specials maps each visit that served a special room to that room's ID.
	Specials map[uint64]string `json:"specials,omitempty"`
}

// HasConsumed reports whether the one-time special room id has been served.
func (s VisitState) HasConsumed(id string) bool {
	i := sort.SearchStrings(s.Consumed, id)
	return i < len(s.Consumed) && s.Consumed[i] == id
}

func (s *VisitState) consume(id string) {
	i := sort.SearchStrings(s.Consumed, id)
	if i < len(s.Consumed) && s.Consumed[i] == id {
		return
	}
	s.Consumed = append(s.Consumed, "")
	copy(s.Consumed[i+1:], s.Consumed[i:])
	s.Consumed[i] = id
}

// Clone returns a deep copy of s.
func (s VisitState) Clone() VisitState {
	out := s
	out.Consumed = append([]string(nil), s.Consumed...)
	if s.Specials != nil {
		out.Specials = make(map[uint64]string, len(s.Specials))
		for k, v := range s.Specials {
			out.Specials[k] = v
		}
	}
	return out
}

// VisitStore persists VisitState. The Manager serializes calls per key, so
// implementations need only be safe for concurrent use across keys.
type VisitStore interface {
	// Get returns the state for (playerID, zoneID) and whether it exists.
	Get(ctx context.Context, playerID, zoneID string) (VisitState, bool, error)
	// Put stores state for (playerID, zoneID), replacing any previous value.
	Put(ctx context.Context, playerID, zoneID string, state VisitState) error
}

// MemoryStore is an in-process VisitStore. All methods are safe for concurrent use.
type MemoryStore struct {
	mu     sync.RWMutex
	states map[visitKey]VisitState
}

type visitKey struct {
	player string
	zone   string
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{states: make(map[visitKey]VisitState)}
}

// Get implements VisitStore.
func (m *MemoryStore) Get(_ context.Context, playerID, zoneID string) (VisitState, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.states[visitKey{playerID, zoneID}]
	if !ok {
		return VisitState{}, false, nil
	}
	return s.Clone(), true, nil
}

// Put implements VisitStore.
func (m *MemoryStore) Put(_ context.Context, playerID, zoneID string, state VisitState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.states[visitKey{playerID, zoneID}] = state.Clone()
	return nil
}

// Reset deletes the state for (playerID, zoneID), returning it to unvisited.
func (m *MemoryStore) Reset(_ context.Context, playerID, zoneID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.states, visitKey{playerID, zoneID})
	return nil
}

// Len returns the number of stored states.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.states)
}
