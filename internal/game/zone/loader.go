package zone

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Definitions is the raw, unvalidated template data a Catalog is built from.
type Definitions struct {
	Zones        []ZoneDef        `yaml:"zones"`
	SpecialRooms []SpecialRoomDef `yaml:"special_rooms"`
}

// ZoneDef is the YAML representation of a zone template.
type ZoneDef struct {
	ID        string          `yaml:"id"`
	Name      string          `yaml:"name"`
	Exits     ExitsDef        `yaml:"exits"`
	Encounter RangeDef        `yaml:"encounter"`
	Discovery RangeDef        `yaml:"discovery"`
	Names     NamesDef        `yaml:"names"`
	Specials  []SpecialRefDef `yaml:"specials,omitempty"`
}

// ExitsDef holds the exit-count and direction pools.
type ExitsDef struct {
	Counts     []ExitCountDef `yaml:"counts"`
	Directions []DirectionDef `yaml:"directions"`
}

// ExitCountDef is one weighted exit-count entry.
type ExitCountDef struct {
	Count  int     `yaml:"count"`
	Weight float64 `yaml:"weight"`
}

// DirectionDef is one weighted direction entry. Weight defaults to 1 and
// Target defaults to Interior.
type DirectionDef struct {
	Direction string   `yaml:"direction"`
	Weight    *float64 `yaml:"weight,omitempty"`
	Target    string   `yaml:"target,omitempty"`
}

// RangeDef is a closed probability interval.
type RangeDef struct {
	Min float64 `yaml:"min"`
	Max float64 `yaml:"max"`
}

// NamesDef holds the name banks.
type NamesDef struct {
	Prefixes []string `yaml:"prefixes"`
	Suffixes []string `yaml:"suffixes"`
}

// SpecialRefDef references a special room by ID from a zone.
type SpecialRefDef struct {
	ID      string     `yaml:"id"`
	Trigger TriggerDef `yaml:"trigger"`
}

// TriggerDef sets exactly one trigger condition.
type TriggerDef struct {
	OnVisit *uint64  `yaml:"on_visit,omitempty"`
	Every   *uint64  `yaml:"every,omitempty"`
	Chance  *float64 `yaml:"chance,omitempty"`
	Script  string   `yaml:"script,omitempty"`
}

// SpecialRoomDef is the YAML representation of a special room.
type SpecialRoomDef struct {
	ID        string    `yaml:"id"`
	Name      string    `yaml:"name"`
	OneTime   bool      `yaml:"one_time"`
	Priority  int       `yaml:"priority"`
	Encounter bool      `yaml:"encounter"`
	Discovery bool      `yaml:"discovery"`
	Exits     []ExitDef `yaml:"exits"`
}

// ExitDef is a fixed special-room exit. Target defaults to Interior.
type ExitDef struct {
	Direction string `yaml:"direction"`
	Target    string `yaml:"target,omitempty"`
}

// Merge appends other's definitions to d.
func (d *Definitions) Merge(other Definitions) {
	d.Zones = append(d.Zones, other.Zones...)
	d.SpecialRooms = append(d.SpecialRooms, other.SpecialRooms...)
}

// LoadDefinitionsFromBytes parses template definitions from YAML bytes.
//
// Postcondition: Returns parsed (not yet validated) Definitions, a parse error for
// malformed YAML, or one *SchemaError with Field "yaml" per wrongly typed entry.
func LoadDefinitionsFromBytes(data []byte) (Definitions, error) {
	var raw struct {
		Zones        []yaml.Node `yaml:"zones"`
		SpecialRooms []yaml.Node `yaml:"special_rooms"`
	}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		var typeErr *yaml.TypeError
		if errors.As(err, &typeErr) {
			return Definitions{}, &SchemaError{Field: "yaml", Reason: strings.Join(typeErr.Errors, "; ")}
		}
		return Definitions{}, fmt.Errorf("parsing template YAML: %w", err)
	}

	var (
		defs Definitions
		errs []error
	)
	for i := range raw.Zones {
		var zd ZoneDef
		if err := decodeEntry(&raw.Zones[i], &zd); err != nil {
			errs = append(errs, &SchemaError{Zone: entryID(&raw.Zones[i], "zones", i), Field: "yaml", Reason: err.Error()})
			continue
		}
		defs.Zones = append(defs.Zones, zd)
	}
	for i := range raw.SpecialRooms {
		var sd SpecialRoomDef
		if err := decodeEntry(&raw.SpecialRooms[i], &sd); err != nil {
			errs = append(errs, &SchemaError{Special: entryID(&raw.SpecialRooms[i], "special_rooms", i), Field: "yaml", Reason: err.Error()})
			continue
		}
		defs.SpecialRooms = append(defs.SpecialRooms, sd)
	}
	if len(errs) > 0 {
		return Definitions{}, errors.Join(errs...)
	}
	return defs, nil
}

// decodeEntry decodes one list entry, flattening yaml type errors into their messages.
func decodeEntry(node *yaml.Node, out any) error {
	err := node.Decode(out)
	var typeErr *yaml.TypeError
	if errors.As(err, &typeErr) {
		return errors.New(strings.Join(typeErr.Errors, "; "))
	}
	return err
}

// entryID returns the entry's id, or "<list>[<i>]" when the id itself is unusable.
func entryID(node *yaml.Node, list string, i int) string {
	var head struct {
		ID string `yaml:"id"`
	}
	if err := node.Decode(&head); err == nil && head.ID != "" {
		return head.ID
	}
	return fmt.Sprintf("%s[%d]", list, i)
}

// LoadDefinitionsFromFile reads and parses a single YAML definitions file.
//
// Precondition: path must point to a readable YAML file.
func LoadDefinitionsFromFile(path string) (Definitions, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Definitions{}, fmt.Errorf("reading template file %s: %w", path, err)
	}
	defs, err := LoadDefinitionsFromBytes(data)
	if err != nil {
		return Definitions{}, fmt.Errorf("%s: %w", path, err)
	}
	return defs, nil
}

// LoadDefinitionsFromDir merges every .yaml/.yml file in dir, in lexical order.
//
// Precondition: dir must be a readable directory.
// Postcondition: Returns merged Definitions, or an error if any file fails or none exist.
func LoadDefinitionsFromDir(dir string) (Definitions, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return Definitions{}, fmt.Errorf("reading template directory %s: %w", dir, err)
	}

	var names []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if strings.HasSuffix(name, ".yaml") || strings.HasSuffix(name, ".yml") {
			names = append(names, name)
		}
	}
	if len(names) == 0 {
		return Definitions{}, fmt.Errorf("no template files found in %s", dir)
	}
	sort.Strings(names)

	var merged Definitions
	for _, name := range names {
		defs, err := LoadDefinitionsFromFile(filepath.Join(dir, name))
		if err != nil {
			return Definitions{}, err
		}
		merged.Merge(defs)
	}
	return merged, nil
}

// LoadCatalogFromDir loads every definitions file in dir and builds a Catalog.
//
// Postcondition: Returns a fully validated Catalog or a non-nil error.
func LoadCatalogFromDir(dir string, opts ...Option) (*Catalog, error) {
	defs, err := LoadDefinitionsFromDir(dir)
	if err != nil {
		return nil, err
	}
	return NewCatalog(defs, opts...)
}
