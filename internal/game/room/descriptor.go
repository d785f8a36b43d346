// Package room composes room descriptors from zone templates and seeds.
package room

import (
	"github.com/google/uuid"

	"github.com/cory-johannsen/roomgen/internal/game/rng"
	"github.com/cory-johannsen/roomgen/internal/game/zone"
)

// Provenance tags how a descriptor was produced.
type Provenance string

const (
	// Generated descriptors are synthesized from a template and seed.
	Generated Provenance = "generated"
	// Special descriptors are hand-authored special rooms.
	Special Provenance = "special"
)

// Exit is one passage out of a described room.
type Exit struct {
	Direction string `json:"direction"`
	Target    string `json:"target"`
}

// Descriptor is the serialized result of entering a zone. The caller owns it.
type Descriptor struct {
	ID         string     `json:"id"`
	ZoneID     string     `json:"zoneId"`
	Name       string     `json:"name"`
	Exits      []Exit     `json:"exits"`
	Encounter  bool       `json:"encounter"`
	Discovery  bool       `json:"discovery"`
	Provenance Provenance `json:"provenance"`
}

// idNamespace scopes descriptor UUIDs to this engine.
var idNamespace = uuid.MustParse("6f1c2b7e-3d4a-5e9f-8b21-0c7d4e5f6a90")

// GeneratedID returns the deterministic ID of the room generated for (zoneID, seed).
func GeneratedID(zoneID string, seed rng.Seed) string {
	return uuid.NewSHA1(idNamespace, []byte(zoneID+":"+seed.String())).String()
}

// SpecialID returns the deterministic ID of special room specialID served in zoneID.
func SpecialID(zoneID, specialID string) string {
	return uuid.NewSHA1(idNamespace, []byte(zoneID+":special:"+specialID)).String()
}

// FromSpecial returns the fixed descriptor of a special room served in zoneID.
//
// Postcondition: The result carries Provenance Special and is identical on every call.
func FromSpecial(zoneID string, s *zone.SpecialRoom) Descriptor {
	exits := make([]Exit, len(s.Exits))
	for i, e := range s.Exits {
		exits[i] = Exit{Direction: string(e.Direction), Target: e.Target}
	}
	return Descriptor{
		ID:         SpecialID(zoneID, s.ID),
		ZoneID:     zoneID,
		Name:       s.Name,
		Exits:      exits,
		Encounter:  s.Encounter,
		Discovery:  s.Discovery,
		Provenance: Special,
	}
}

// Clone returns a copy of d that shares no memory with it.
func (d Descriptor) Clone() Descriptor {
	out := d
	out.Exits = append(make([]Exit, 0, len(d.Exits)), d.Exits...)
	return out
}
