// pkg/core/object.go
package core

import (
	"errors"
	"fmt"
	"math"
)

// Unnamed is recorded for units whose unit or group name the host omitted.
const Unnamed = "NoName"

// ErrInvalidObject is returned by Validate for kinematically impossible objects.
var ErrInvalidObject = errors.New("invalid world object")

// LatLonAlt is a geodetic position. Lat/Lon in degrees, Alt in meters ASL.
type LatLonAlt struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
	Alt float64 `json:"alt"`
}

// Position is the host's map-local cartesian position in meters
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// WorldObject is one dynamic entity as seen in a single frame.
// ID is the host's identifier and may be recycled after the entity is destroyed.
type WorldObject struct {
	ID          int       `json:"id"`
	Name        string    `json:"name"`
	Country     int       `json:"country"`
	Coalition   string    `json:"coalition"`
	CoalitionID int       `json:"coalitionId"`
	LatLonAlt   LatLonAlt `json:"latLonAlt"`
	Heading     float64   `json:"heading"`
	Pitch       float64   `json:"pitch"`
	Bank        float64   `json:"bank"`
	Position    Position  `json:"position"`
}

// Validate rejects objects carrying non-finite numbers or out of range coordinates.
func (o WorldObject) Validate() error {
	for name, v := range map[string]float64{
		"lat":     o.LatLonAlt.Lat,
		"lon":     o.LatLonAlt.Lon,
		"alt":     o.LatLonAlt.Alt,
		"heading": o.Heading,
		"pitch":   o.Pitch,
		"bank":    o.Bank,
		"x":       o.Position.X,
		"y":       o.Position.Y,
		"z":       o.Position.Z,
	} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: %s is not finite", ErrInvalidObject, name)
		}
	}
	if o.LatLonAlt.Lat < -90 || o.LatLonAlt.Lat > 90 {
		return fmt.Errorf("%w: lat %v out of range", ErrInvalidObject, o.LatLonAlt.Lat)
	}
	if o.LatLonAlt.Lon < -180 || o.LatLonAlt.Lon > 180 {
		return fmt.Errorf("%w: lon %v out of range", ErrInvalidObject, o.LatLonAlt.Lon)
	}
	return nil
}

// WorldUnit is a crewed unit. It owns its WorldObject by value.
type WorldUnit struct {
	Object    WorldObject `json:"object"`
	UnitName  string      `json:"unitName"`
	GroupName string      `json:"groupName"`
}

// NewWorldUnit builds a unit. Names are kept as given, including empty ones.
func NewWorldUnit(obj WorldObject, unitName, groupName string) WorldUnit {
	return WorldUnit{Object: obj, UnitName: unitName, GroupName: groupName}
}
