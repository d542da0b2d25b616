package geo

import (
	"errors"
	"math"
	"testing"

	"github.com/OCAP2/tetrad/pkg/core"
)

func TestXY3857_Origin(t *testing.T) {
	xy, err := XY3857(core.LatLonAlt{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if math.Abs(xy.X) > 1e-6 || math.Abs(xy.Y) > 1e-6 {
		t.Errorf("expected origin, got %v", xy)
	}
}

func TestXY3857_KnownPoint(t *testing.T) {
	// Batumi airfield
	xy, err := XY3857(core.LatLonAlt{Lat: 41.6, Lon: 41.6})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// 41.6 degrees of longitude on the mercator sphere
	wantX := 41.6 * math.Pi / 180 * 6378137
	if math.Abs(xy.X-wantX) > 1 {
		t.Errorf("expected x=%f, got %f", wantX, xy.X)
	}
	if xy.Y <= xy.X {
		t.Errorf("expected y stretched above x at this latitude, got %v", xy)
	}
}

func TestXY3857_Invalid(t *testing.T) {
	tests := []core.LatLonAlt{
		{Lat: 91},
		{Lon: -181},
		{Lat: math.NaN()},
	}
	for _, lla := range tests {
		if _, err := XY3857(lla); !errors.Is(err, ErrInvalidCoordinates) {
			t.Errorf("XY3857(%v) error = %v, want ErrInvalidCoordinates", lla, err)
		}
	}
}

func TestPoint3857_KeepsAltitude(t *testing.T) {
	p, err := Point3857(core.LatLonAlt{Lat: 10, Lon: 20, Alt: 1500})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	coords, ok := p.Coordinates()
	if !ok {
		t.Fatal("expected non-empty point")
	}
	if coords.Z != 1500 {
		t.Errorf("expected Z=1500, got %f", coords.Z)
	}
}

func TestExtent(t *testing.T) {
	s := &core.FrameSnapshot{
		Units: []core.WorldUnit{
			{Object: core.WorldObject{LatLonAlt: core.LatLonAlt{Lat: 41, Lon: 41}}},
			{Object: core.WorldObject{LatLonAlt: core.LatLonAlt{Lat: 43, Lon: 45}}},
		},
		Ballistics: []core.WorldObject{
			{LatLonAlt: core.LatLonAlt{Lat: 42, Lon: 40}},
			{LatLonAlt: core.LatLonAlt{Lat: 95, Lon: 0}}, // ignored
		},
	}

	env := Extent(s)
	lo, hi, ok := env.MinMaxXYs()
	if !ok {
		t.Fatal("expected non-empty extent")
	}
	west, _ := XY3857(core.LatLonAlt{Lat: 41, Lon: 40})
	northEast, _ := XY3857(core.LatLonAlt{Lat: 43, Lon: 45})
	if math.Abs(lo.X-west.X) > 1e-6 || math.Abs(lo.Y-west.Y) > 1e-6 {
		t.Errorf("min = %v, want %v", lo, west)
	}
	if math.Abs(hi.X-northEast.X) > 1e-6 || math.Abs(hi.Y-northEast.Y) > 1e-6 {
		t.Errorf("max = %v, want %v", hi, northEast)
	}
}

func TestExtent_Empty(t *testing.T) {
	if env := Extent(&core.FrameSnapshot{}); !env.IsEmpty() {
		t.Errorf("expected empty envelope, got %v", env)
	}
	if env := Extent(nil); !env.IsEmpty() {
		t.Errorf("expected empty envelope for nil snapshot")
	}
}

func TestExtent_SinglePosition(t *testing.T) {
	s := &core.FrameSnapshot{
		Ballistics: []core.WorldObject{{LatLonAlt: core.LatLonAlt{Lat: 42, Lon: 42}}},
	}
	lo, hi, ok := Extent(s).MinMaxXYs()
	if !ok {
		t.Fatal("expected non-empty extent")
	}
	if lo != hi {
		t.Errorf("expected a degenerate envelope, got %v..%v", lo, hi)
	}
}

func TestPoint3857_InvalidIsEmpty(t *testing.T) {
	p, err := Point3857(core.LatLonAlt{Lat: 100})
	if !errors.Is(err, ErrInvalidCoordinates) {
		t.Fatalf("error = %v, want ErrInvalidCoordinates", err)
	}
	if !p.IsEmpty() {
		t.Error("expected empty point")
	}
}
