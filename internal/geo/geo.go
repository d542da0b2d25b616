package geo

import (
	"errors"
	"math"

	"github.com/OCAP2/tetrad/pkg/core"
	geom "github.com/peterstace/simplefeatures/geom"
	"github.com/wroge/wgs84"
)

// Positions are projected to EPSG:3857 so extents are in metres.

// ErrInvalidCoordinates is returned when the coordinates are invalid
var ErrInvalidCoordinates = errors.New("invalid coordinates provided")

var to3857 = wgs84.EPSG().Transform(4326, 3857)

// XY3857 projects a latitude/longitude pair to web mercator.
func XY3857(lla core.LatLonAlt) (geom.XY, error) {
	if math.IsNaN(lla.Lat) || math.IsNaN(lla.Lon) || math.Abs(lla.Lat) > 90 || math.Abs(lla.Lon) > 180 {
		return geom.XY{}, ErrInvalidCoordinates
	}
	x, y, _ := to3857(lla.Lon, lla.Lat, 0)
	return geom.XY{X: x, Y: y}, nil
}

// Point3857 creates a 3857 point carrying the altitude as Z.
func Point3857(lla core.LatLonAlt) (geom.Point, error) {
	xy, err := XY3857(lla)
	if err != nil {
		return geom.NewEmptyPoint(geom.DimXYZ), err
	}
	return geom.NewPoint(geom.Coordinates{
		XY:   xy,
		Z:    lla.Alt,
		Type: geom.DimXYZ,
	})
}

// Extent is the bounding box of every valid entity position in a snapshot.
// Positions that project to a non-finite point, such as the poles, are skipped.
func Extent(s *core.FrameSnapshot) geom.Envelope {
	var env geom.Envelope
	if s == nil {
		return env
	}
	for i := range s.Units {
		env = extend(env, s.Units[i].Object.LatLonAlt)
	}
	for i := range s.Ballistics {
		env = extend(env, s.Ballistics[i].LatLonAlt)
	}
	return env
}

func extend(env geom.Envelope, lla core.LatLonAlt) geom.Envelope {
	xy, err := XY3857(lla)
	if err != nil {
		return env
	}
	if e, err := env.ExtendToIncludeXY(xy); err == nil {
		return e
	}
	return env
}
