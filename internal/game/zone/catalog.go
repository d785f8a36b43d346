package zone

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/cespare/xxhash/v2"
	"gopkg.in/yaml.v3"

	"github.com/cory-johannsen/roomgen/internal/scripting"
)

// Catalog is the validated, immutable registry of zone templates and special rooms.
//
// A Catalog is never mutated after NewCatalog returns; concurrent reads need no locking.
type Catalog struct {
	zones    map[string]*Template
	specials map[string]*SpecialRoom
	version  string
}

type catalogOptions struct {
	scriptInstructionLimit int
}

// Option configures catalog construction.
type Option func(*catalogOptions)

// WithScriptInstructionLimit caps the Lua opcodes a script trigger may run per evaluation.
func WithScriptInstructionLimit(n int) Option {
	return func(o *catalogOptions) { o.scriptInstructionLimit = n }
}

// NewCatalog validates defs and indexes them.
//
// Postcondition: Returns a Catalog holding every definition, or a nil Catalog and an
// error joining one *SchemaError per violation. Nothing is registered on failure.
func NewCatalog(defs Definitions, opts ...Option) (*Catalog, error) {
	o := catalogOptions{scriptInstructionLimit: scripting.DefaultInstructionLimit}
	for _, opt := range opts {
		opt(&o)
	}

	var errs []error
	specials := make(map[string]*SpecialRoom, len(defs.SpecialRooms))
	for _, sd := range defs.SpecialRooms {
		room, err := convertSpecial(sd)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if _, dup := specials[room.ID]; dup {
			errs = append(errs, &SchemaError{Special: room.ID, Field: "id", Reason: "duplicate special room ID"})
			continue
		}
		specials[room.ID] = room
	}

	zoneIDs := make(map[string]bool, len(defs.Zones))
	for _, zd := range defs.Zones {
		if zd.ID != "" {
			zoneIDs[zd.ID] = true
		}
	}

	zones := make(map[string]*Template, len(defs.Zones))
	for _, zd := range defs.Zones {
		tmpl, zerrs := convertZone(zd, specials, zoneIDs, o)
		if len(zerrs) > 0 {
			errs = append(errs, zerrs...)
			continue
		}
		if _, dup := zones[tmpl.ID]; dup {
			errs = append(errs, &SchemaError{Zone: tmpl.ID, Field: "id", Reason: "duplicate zone ID"})
			continue
		}
		zones[tmpl.ID] = tmpl
	}

	for _, room := range specials {
		for _, exit := range room.Exits {
			if exit.Target != Interior && !zoneIDs[exit.Target] {
				errs = append(errs, &SchemaError{Special: room.ID, Field: "exits",
					Reason: fmt.Sprintf("exit %q targets unknown zone %q", exit.Direction, exit.Target)})
			}
		}
	}

	if len(errs) > 0 {
		sortSchemaErrors(errs)
		return nil, errors.Join(errs...)
	}

	version, err := definitionsVersion(defs)
	if err != nil {
		return nil, err
	}
	return &Catalog{zones: zones, specials: specials, version: version}, nil
}

// Get returns the template for zoneID.
//
// Postcondition: Returns the template, or an error wrapping ErrNotFound.
func (c *Catalog) Get(zoneID string) (*Template, error) {
	t, ok := c.zones[zoneID]
	if !ok {
		return nil, fmt.Errorf("zone %q: %w", zoneID, ErrNotFound)
	}
	return t, nil
}

// Special returns the special room with the given ID.
//
// Postcondition: Returns the room, or an error wrapping ErrNotFound.
func (c *Catalog) Special(id string) (*SpecialRoom, error) {
	s, ok := c.specials[id]
	if !ok {
		return nil, fmt.Errorf("special room %q: %w", id, ErrNotFound)
	}
	return s, nil
}

// ZoneIDs returns all registered zone IDs in sorted order.
func (c *Catalog) ZoneIDs() []string {
	ids := make([]string, 0, len(c.zones))
	for id := range c.zones {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// ZoneCount returns the number of registered zones.
func (c *Catalog) ZoneCount() int {
	return len(c.zones)
}

// SpecialCount returns the number of registered special rooms.
func (c *Catalog) SpecialCount() int {
	return len(c.specials)
}

// Version identifies the definitions the catalog was built from. Determinism
// holds only between catalogs with equal versions.
func (c *Catalog) Version() string {
	return c.version
}

func definitionsVersion(defs Definitions) (string, error) {
	canonical, err := yaml.Marshal(defs)
	if err != nil {
		return "", fmt.Errorf("encoding catalog version: %w", err)
	}
	return fmt.Sprintf("%016x", xxhash.Sum64(canonical)), nil
}

func convertSpecial(sd SpecialRoomDef) (*SpecialRoom, error) {
	if sd.ID == "" {
		return nil, &SchemaError{Field: "id", Reason: "special room ID must not be empty"}
	}
	if sd.Name == "" {
		return nil, &SchemaError{Special: sd.ID, Field: "name", Reason: "must not be empty"}
	}
	room := &SpecialRoom{
		ID:        sd.ID,
		Name:      sd.Name,
		Encounter: sd.Encounter,
		Discovery: sd.Discovery,
		OneTime:   sd.OneTime,
		Priority:  sd.Priority,
		Exits:     make([]Exit, 0, len(sd.Exits)),
	}
	seen := make(map[string]bool, len(sd.Exits))
	for _, ed := range sd.Exits {
		if ed.Direction == "" {
			return nil, &SchemaError{Special: sd.ID, Field: "exits", Reason: "exit direction must not be empty"}
		}
		if seen[ed.Direction] {
			return nil, &SchemaError{Special: sd.ID, Field: "exits", Reason: fmt.Sprintf("duplicate exit direction %q", ed.Direction)}
		}
		seen[ed.Direction] = true
		room.Exits = append(room.Exits, Exit{Direction: Direction(ed.Direction), Target: targetOrInterior(ed.Target)})
	}
	return room, nil
}

func convertZone(zd ZoneDef, specials map[string]*SpecialRoom, zoneIDs map[string]bool, o catalogOptions) (*Template, []error) {
	if zd.ID == "" {
		return nil, []error{&SchemaError{Field: "id", Reason: "zone ID must not be empty"}}
	}
	var errs []error
	fail := func(field, format string, args ...any) {
		errs = append(errs, &SchemaError{Zone: zd.ID, Field: field, Reason: fmt.Sprintf(format, args...)})
	}

	t := &Template{ID: zd.ID, Name: zd.Name}
	if t.Name == "" {
		t.Name = zd.ID
	}

	if len(zd.Exits.Counts) == 0 {
		fail("exits.counts", "pool must not be empty")
	}
	var countTotal float64
	for i, ec := range zd.Exits.Counts {
		if ec.Count < 0 {
			fail("exits.counts", "entry %d: count must be >= 0, got %d", i, ec.Count)
		}
		if !validWeight(ec.Weight) {
			fail("exits.counts", "entry %d: weight must be a finite number >= 0, got %v", i, ec.Weight)
		}
		countTotal += ec.Weight
		t.ExitCounts = append(t.ExitCounts, ExitCount{Count: ec.Count, Weight: ec.Weight})
	}
	if len(zd.Exits.Counts) > 0 && countTotal <= 0 {
		fail("exits.counts", "weights sum to zero")
	}

	if len(zd.Exits.Directions) == 0 {
		fail("exits.directions", "direction set must not be empty")
	}
	var dirTotal float64
	seen := make(map[string]bool, len(zd.Exits.Directions))
	for i, dd := range zd.Exits.Directions {
		w := 1.0
		if dd.Weight != nil {
			w = *dd.Weight
		}
		switch {
		case dd.Direction == "":
			fail("exits.directions", "entry %d: direction must not be empty", i)
		case seen[dd.Direction]:
			fail("exits.directions", "duplicate direction %q", dd.Direction)
		}
		seen[dd.Direction] = true
		if !validWeight(w) {
			fail("exits.directions", "entry %d: weight must be a finite number >= 0, got %v", i, w)
		}
		target := targetOrInterior(dd.Target)
		if target != Interior && !zoneIDs[target] {
			fail("exits.directions", "direction %q targets unknown zone %q", dd.Direction, target)
		}
		dirTotal += w
		t.Directions = append(t.Directions, DirectionOption{Direction: Direction(dd.Direction), Weight: w, Target: target})
	}
	if len(zd.Exits.Directions) > 0 && dirTotal <= 0 {
		fail("exits.directions", "weights sum to zero")
	}

	for field, r := range map[string]RangeDef{"encounter": zd.Encounter, "discovery": zd.Discovery} {
		if err := validateRange(r); err != nil {
			fail(field, "%v", err)
		}
	}
	t.Encounter = Range{Min: zd.Encounter.Min, Max: zd.Encounter.Max}
	t.Discovery = Range{Min: zd.Discovery.Min, Max: zd.Discovery.Max}

	if len(zd.Names.Prefixes) == 0 {
		fail("names.prefixes", "bank must not be empty")
	}
	if len(zd.Names.Suffixes) == 0 {
		fail("names.suffixes", "bank must not be empty")
	}
	t.Names = NameBank{
		Prefixes: append([]string(nil), zd.Names.Prefixes...),
		Suffixes: append([]string(nil), zd.Names.Suffixes...),
	}

	refSeen := make(map[string]bool, len(zd.Specials))
	for _, rd := range zd.Specials {
		room, ok := specials[rd.ID]
		if !ok {
			errs = append(errs, &SchemaError{Zone: zd.ID, Special: rd.ID, Field: "specials", Reason: "references unknown special room"})
			continue
		}
		if refSeen[rd.ID] {
			errs = append(errs, &SchemaError{Zone: zd.ID, Special: rd.ID, Field: "specials", Reason: "referenced more than once"})
			continue
		}
		refSeen[rd.ID] = true
		trig, err := convertTrigger(zd.ID, rd, o)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		t.Specials = append(t.Specials, SpecialRef{Room: room, Trigger: trig})
	}
	sort.SliceStable(t.Specials, func(i, j int) bool {
		return t.Specials[i].Room.Priority < t.Specials[j].Room.Priority
	})

	if len(errs) > 0 {
		return nil, errs
	}
	return t, nil
}

func convertTrigger(zoneID string, rd SpecialRefDef, o catalogOptions) (Trigger, error) {
	td := rd.Trigger
	fail := func(reason string) (Trigger, error) {
		return Trigger{}, &SchemaError{Zone: zoneID, Special: rd.ID, Field: "trigger", Reason: reason}
	}

	set := 0
	for _, present := range []bool{td.OnVisit != nil, td.Every != nil, td.Chance != nil, td.Script != ""} {
		if present {
			set++
		}
	}
	if set != 1 {
		return fail(fmt.Sprintf("exactly one of on_visit, every, chance, script must be set, got %d", set))
	}

	switch {
	case td.OnVisit != nil:
		if *td.OnVisit < 1 {
			return fail("on_visit must be >= 1")
		}
		return Trigger{OnVisit: *td.OnVisit}, nil
	case td.Every != nil:
		if *td.Every < 1 {
			return fail("every must be >= 1")
		}
		return Trigger{Every: *td.Every}, nil
	case td.Chance != nil:
		p := *td.Chance
		if math.IsNaN(p) || p < 0 || p > 1 {
			return fail(fmt.Sprintf("chance must be in [0, 1], got %v", p))
		}
		return Trigger{Chance: p, HasChance: true}, nil
	default:
		script, err := scripting.Compile(zoneID+"/"+rd.ID, td.Script)
		if err != nil {
			return fail(err.Error())
		}
		return Trigger{Script: script, instLimit: o.scriptInstructionLimit}, nil
	}
}

func validWeight(w float64) bool {
	return !math.IsNaN(w) && !math.IsInf(w, 0) && w >= 0
}

func validateRange(r RangeDef) error {
	if math.IsNaN(r.Min) || math.IsNaN(r.Max) || r.Min < 0 || r.Max > 1 {
		return fmt.Errorf("range [%v, %v] must lie within [0, 1]", r.Min, r.Max)
	}
	if r.Min > r.Max {
		return fmt.Errorf("range min %v must not exceed max %v", r.Min, r.Max)
	}
	return nil
}

func targetOrInterior(target string) string {
	if target == "" {
		return Interior
	}
	return target
}

// sortSchemaErrors orders errors by their message so map iteration never
// changes the reported order.
func sortSchemaErrors(errs []error) {
	sort.SliceStable(errs, func(i, j int) bool {
		return errs[i].Error() < errs[j].Error()
	})
}
