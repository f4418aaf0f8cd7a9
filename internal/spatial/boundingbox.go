// Package spatial provides the coordinate handling shared by submission
// validation and search: valid-range bounding boxes per coordinate reference
// system and the WGS84 to British National Grid projection.
package spatial

import "fmt"

// Names of the two supported coordinate reference systems, as they appear in
// submitted documents.
const (
	CrsOsgb36 = "osgb36Epsg27700"
	CrsWgs84  = "wgs84Epsg4326"
)

// BoundingBox is an axis-aligned extent. For wgs84Epsg4326 the axes are
// degrees of longitude/latitude; for osgb36Epsg27700 they are easting and
// northing in meters, kept in the same longitude/latitude field naming.
type BoundingBox struct {
	West  float64
	South float64
	East  float64
	North float64
}

// Valid coordinate ranges per CRS, used to reject out-of-range geometry at
// submission time.
var (
	Osgb36Bounds = BoundingBox{West: -103976.3, South: -16703.87, East: 652897.98, North: 1199851.44}
	Wgs84Bounds  = BoundingBox{West: -7.56, South: 49.96, East: 1.78, North: 60.84}
)

// BoundsFor returns the valid-range box for a CRS name (exact match).
func BoundsFor(crs string) (BoundingBox, bool) {
	switch crs {
	case CrsOsgb36:
		return Osgb36Bounds, true
	case CrsWgs84:
		return Wgs84Bounds, true
	default:
		return BoundingBox{}, false
	}
}

// Contains reports whether the point lies within the box, inclusive on all
// four edges.
func (b BoundingBox) Contains(longitude, latitude float64) bool {
	return latitude >= b.South && latitude <= b.North &&
		longitude >= b.West && longitude <= b.East
}

// AxisErrors describes which axes of a containment check failed.
type AxisErrors struct {
	Longitude string
	Latitude  string
}

// ContainsVerbose is the diagnostic variant of Contains. On failure it
// returns per-axis explanations; on success the errors are nil. Note the
// diagnostic thresholds are exclusive where Contains is inclusive, so a point
// exactly on an edge passes Contains but is reported here.
func (b BoundingBox) ContainsVerbose(longitude, latitude float64) (bool, *AxisErrors) {
	var longitudeError, latitudeError string

	if longitude <= b.West {
		longitudeError = fmt.Sprintf("%v is below the minimum longitude of %v.", longitude, b.West)
	} else if longitude >= b.East {
		longitudeError = fmt.Sprintf("%v is above the maximum longitude of %v.", longitude, b.East)
	}

	if latitude <= b.South {
		latitudeError = fmt.Sprintf("%v is below the minimum latitude of %v.", latitude, b.South)
	} else if latitude >= b.North {
		latitudeError = fmt.Sprintf("%v is above the maximum latitude of %v.", latitude, b.North)
	}

	if longitudeError != "" || latitudeError != "" {
		return false, &AxisErrors{Longitude: longitudeError, Latitude: latitudeError}
	}
	return true, nil
}

// Overlaps reports whether the two boxes share any point, edges included.
func (b BoundingBox) Overlaps(other BoundingBox) bool {
	return b.South <= other.North && other.South <= b.North &&
		b.West <= other.East && other.West <= b.East
}

// Coordinates is a single point in whichever CRS the context implies.
type Coordinates struct {
	Longitude float64
	Latitude  float64
}

// Wrapping computes the minimal box enclosing all coordinates. An empty input
// yields the zero box.
func Wrapping(coordinates []Coordinates) BoundingBox {
	if len(coordinates) == 0 {
		return BoundingBox{}
	}

	box := BoundingBox{
		West:  coordinates[0].Longitude,
		South: coordinates[0].Latitude,
		East:  coordinates[0].Longitude,
		North: coordinates[0].Latitude,
	}
	for _, c := range coordinates[1:] {
		if c.Longitude < box.West {
			box.West = c.Longitude
		}
		if c.Longitude > box.East {
			box.East = c.Longitude
		}
		if c.Latitude < box.South {
			box.South = c.Latitude
		}
		if c.Latitude > box.North {
			box.North = c.Latitude
		}
	}
	return box
}
