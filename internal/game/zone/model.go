// Package zone provides the static generation rules for zones: templates,
// special rooms, and the validated, immutable Catalog that indexes them.
package zone

import (
	"strconv"

	"github.com/cory-johannsen/roomgen/internal/game/rng"
	"github.com/cory-johannsen/roomgen/internal/scripting"
)

// Direction represents a compass direction or named exit.
type Direction string

// Standard compass directions and vertical movements.
const (
	North     Direction = "north"
	South     Direction = "south"
	East      Direction = "east"
	West      Direction = "west"
	Northeast Direction = "northeast"
	Northwest Direction = "northwest"
	Southeast Direction = "southeast"
	Southwest Direction = "southwest"
	Up        Direction = "up"
	Down      Direction = "down"
)

// Interior is the exit target marking a passage that stays inside the zone.
const Interior = "interior"

// ExitCount is one entry of a template's weighted exit-count pool.
type ExitCount struct {
	Count  int
	Weight float64
}

// DirectionOption is one entry of a template's weighted direction pool.
type DirectionOption struct {
	Direction Direction
	Weight    float64
	// Target is a zone ID or Interior.
	Target string
}

// Range is a closed probability interval.
//
// Invariant: 0 <= Min <= Max <= 1 after catalog validation.
type Range struct {
	Min float64
	Max float64
}

// NameBank holds the fragments room names are composed from.
type NameBank struct {
	Prefixes []string
	Suffixes []string
}

// Exit is a fixed passage out of a special room.
type Exit struct {
	Direction Direction
	Target    string
}

// SpecialRoom is a hand-authored room substituted for a generated one.
type SpecialRoom struct {
	ID        string
	Name      string
	Exits     []Exit
	Encounter bool
	Discovery bool
	// OneTime rooms are emitted at most once per (player, zone).
	OneTime bool
	// Priority orders evaluation within a zone; lower values are evaluated first.
	Priority int
}

// Trigger decides on which visits a special room is eligible.
// Exactly one condition is set after catalog validation.
type Trigger struct {
	// OnVisit fires when the visit counter equals this value.
	OnVisit uint64
	// Every fires when the visit counter is a multiple of this value.
	Every uint64
	// Chance fires when a draw seeded by (player, zone, visit, special) is below it.
	Chance    float64
	HasChance bool
	// Script fires when the compiled Lua chunk returns a truthy value.
	Script    *scripting.Script
	instLimit int
}

// SpecialRef binds a SpecialRoom to a zone with the trigger that injects it.
type SpecialRef struct {
	Room    *SpecialRoom
	Trigger Trigger
}

// Fires reports whether the trigger holds for the given player on the given
// (post-increment) visit of zoneID.
//
// Postcondition: deterministic in (playerID, zoneID, visit); returns an error only
// when a script trigger fails to evaluate.
func (ref SpecialRef) Fires(playerID, zoneID string, visit uint64) (bool, error) {
	t := ref.Trigger
	switch {
	case t.OnVisit > 0:
		return visit == t.OnVisit, nil
	case t.Every > 0:
		return visit%t.Every == 0, nil
	case t.HasChance:
		seed := rng.DeriveSeed(playerID, zoneID, strconv.FormatUint(visit, 10), "special", ref.Room.ID)
		return rng.New(seed).Float() < t.Chance, nil
	case t.Script != nil:
		return t.Script.Eval(scripting.Env{Visit: visit, Zone: zoneID, Player: playerID}, t.instLimit)
	default:
		return false, nil
	}
}

// Template is the immutable generation ruleset for one zone.
type Template struct {
	ID         string
	Name       string
	ExitCounts []ExitCount
	Directions []DirectionOption
	Encounter  Range
	Discovery  Range
	Names      NameBank
	// Specials are sorted by Room.Priority; equal priorities keep declaration order.
	Specials []SpecialRef
}

// MaxExits returns the largest exit count the template can produce.
//
// Postcondition: result <= number of positive-weight directions.
func (t *Template) MaxExits() int {
	maxCount := 0
	for _, ec := range t.ExitCounts {
		if ec.Weight > 0 && ec.Count > maxCount {
			maxCount = ec.Count
		}
	}
	eligible := 0
	for _, d := range t.Directions {
		if d.Weight > 0 {
			eligible++
		}
	}
	if maxCount > eligible {
		return eligible
	}
	return maxCount
}

// ExitCountWeights returns the exit-count pool weights in declaration order.
func (t *Template) ExitCountWeights() []float64 {
	w := make([]float64, len(t.ExitCounts))
	for i, ec := range t.ExitCounts {
		w[i] = ec.Weight
	}
	return w
}

// DirectionWeights returns the direction pool weights in declaration order.
func (t *Template) DirectionWeights() []float64 {
	w := make([]float64, len(t.Directions))
	for i, d := range t.Directions {
		w[i] = d.Weight
	}
	return w
}
