package parser

import (
	"fmt"
	"sort"

	"github.com/OCAP2/tetrad/pkg/core"
)

// ParseObject builds a WorldObject from one host record.
// Every field is required; the first missing or malformed one is returned.
func ParseObject(id int, rec Record) (core.WorldObject, error) {
	var obj core.WorldObject
	var err error

	obj.ID = id
	if obj.Name, err = requireString(rec, "Name"); err != nil {
		return obj, err
	}
	if obj.Country, err = requireInt(rec, "Country"); err != nil {
		return obj, err
	}
	if obj.Coalition, err = requireString(rec, "Coalition"); err != nil {
		return obj, err
	}
	if obj.CoalitionID, err = requireInt(rec, "CoalitionID"); err != nil {
		return obj, err
	}

	lla, err := requireTable(rec, "LatLongAlt")
	if err != nil {
		return obj, err
	}
	if obj.LatLonAlt.Lat, err = requireFloat(lla, "Lat"); err != nil {
		return obj, fmt.Errorf("LatLongAlt: %w", err)
	}
	if obj.LatLonAlt.Lon, err = requireFloat(lla, "Long"); err != nil {
		return obj, fmt.Errorf("LatLongAlt: %w", err)
	}
	if obj.LatLonAlt.Alt, err = requireFloat(lla, "Alt"); err != nil {
		return obj, fmt.Errorf("LatLongAlt: %w", err)
	}

	if obj.Heading, err = requireFloat(rec, "Heading"); err != nil {
		return obj, err
	}
	if obj.Pitch, err = requireFloat(rec, "Pitch"); err != nil {
		return obj, err
	}
	if obj.Bank, err = requireFloat(rec, "Bank"); err != nil {
		return obj, err
	}

	pos, err := requireTable(rec, "Position")
	if err != nil {
		return obj, err
	}
	if obj.Position.X, err = requireFloat(pos, "x"); err != nil {
		return obj, fmt.Errorf("Position: %w", err)
	}
	if obj.Position.Y, err = requireFloat(pos, "y"); err != nil {
		return obj, fmt.Errorf("Position: %w", err)
	}
	if obj.Position.Z, err = requireFloat(pos, "z"); err != nil {
		return obj, fmt.Errorf("Position: %w", err)
	}

	if err := obj.Validate(); err != nil {
		return obj, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return obj, nil
}

// ParseUnit builds a WorldUnit. UnitName and GroupName are optional; a missing
// name becomes core.Unnamed and a numeric one is kept as its string form.
func ParseUnit(id int, rec Record) (core.WorldUnit, error) {
	obj, err := ParseObject(id, rec)
	if err != nil {
		return core.WorldUnit{}, err
	}
	return core.NewWorldUnit(obj, optionalName(rec, "UnitName"), optionalName(rec, "GroupName")), nil
}

// Objects parses a frame's ballistic entries in id order.
// Entries that fail to parse are logged and skipped.
func (p *Parser) Objects(entries []Entry) []core.WorldObject {
	out := make([]core.WorldObject, 0, len(entries))
	for _, e := range sortedEntries(entries) {
		obj, err := ParseObject(e.ID, e.Record)
		if err != nil {
			p.logger.Warn("Skipping world object", "id", e.ID, "error", err)
			continue
		}
		out = append(out, obj)
	}
	return out
}

// Units parses a frame's unit entries in id order.
// Entries that fail to parse are logged and skipped.
func (p *Parser) Units(entries []Entry) []core.WorldUnit {
	out := make([]core.WorldUnit, 0, len(entries))
	for _, e := range sortedEntries(entries) {
		unit, err := ParseUnit(e.ID, e.Record)
		if err != nil {
			p.logger.Warn("Skipping world unit", "id", e.ID, "error", err)
			continue
		}
		out = append(out, unit)
	}
	return out
}

func sortedEntries(entries []Entry) []Entry {
	if sort.SliceIsSorted(entries, func(i, j int) bool { return entries[i].ID < entries[j].ID }) {
		return entries
	}
	sorted := make([]Entry, len(entries))
	copy(sorted, entries)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })
	return sorted
}
