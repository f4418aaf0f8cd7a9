// Package index derives the flat search fields stored alongside a D-TRO
// document from its nested payload.
package index

import (
	"fmt"
	"time"

	"dtro/internal/dtro/models"
	"dtro/internal/spatial"
	"dtro/pkg/jsontree"
)

// Infer computes the record's index fields from its payload. The payload is
// schema-validated before this runs, so structural gaps degrade to empty
// fields; an unsupported geometry type is a hard error since it indicates a
// schema/code mismatch.
func Infer(record *models.Record, projection *spatial.Projection) error {
	data := record.Data
	provisions := jsontree.Objects(data, "source.provision")

	var regulations []map[string]any
	for _, provision := range provisions {
		regulations = append(regulations, jsontree.Objects(provision, "regulations")...)
	}

	// "ta" with "ha" as the legacy fallback field name.
	if jsontree.Has(data, "source.ta") {
		record.TrafficAuthorityID = jsontree.Int(data, "source.ta")
	} else {
		record.TrafficAuthorityID = jsontree.Int(data, "source.ha")
	}
	record.TroName = jsontree.String(data, "source.troName")

	record.RegulationTypes = distinctStrings(regulations, func(regulation map[string]any) []string {
		if t := jsontree.String(regulation, "regulationType"); t != "" {
			return []string{t}
		}
		return nil
	})

	record.VehicleTypes = distinctStrings(regulations, func(regulation map[string]any) []string {
		var types []string
		for _, condition := range jsontree.Objects(regulation, "conditions") {
			types = append(types, jsontree.Strings(condition, "vehicleCharacteristics.vehicleType")...)
		}
		return types
	})

	record.OrderReportingPoints = distinctStrings(provisions, func(provision map[string]any) []string {
		if p := jsontree.String(provision, "orderReportingPoint"); p != "" {
			return []string{p}
		}
		return nil
	})

	record.RegulationStart, record.RegulationEnd = regulationPeriod(regulations)

	coordinates, err := regulatedPlaceCoordinates(provisions, projection)
	if err != nil {
		return err
	}
	record.Location = spatial.Wrapping(coordinates)

	return nil
}

func regulationPeriod(regulations []map[string]any) (start, end *time.Time) {
	for _, regulation := range regulations {
		if s := jsontree.Time(regulation, "overallPeriod.start"); s != nil {
			if start == nil || s.Before(*start) {
				start = s
			}
		}
		if e := jsontree.Time(regulation, "overallPeriod.end"); e != nil {
			if end == nil || e.After(*end) {
				end = e
			}
		}
	}
	return start, end
}

// regulatedPlaceCoordinates flattens every regulated place geometry into
// OSGB36 points. Geometries tagged with any CRS other than the exact string
// "osgb36Epsg27700" are treated as WGS84 and projected.
func regulatedPlaceCoordinates(provisions []map[string]any, projection *spatial.Projection) ([]spatial.Coordinates, error) {
	var result []spatial.Coordinates

	for _, provision := range provisions {
		for _, place := range jsontree.Objects(provision, "regulatedPlaces") {
			geometry := jsontree.Object(place, "geometry")
			if geometry == nil {
				continue
			}

			points, err := flattenGeometry(jsontree.Object(geometry, "coordinates"))
			if err != nil {
				return nil, err
			}

			if jsontree.String(geometry, "crs") != spatial.CrsOsgb36 {
				for i, point := range points {
					points[i] = projection.Wgs84ToOsgb36(point)
				}
			}
			result = append(result, points...)
		}
	}
	return result, nil
}

func flattenGeometry(geometry map[string]any) ([]spatial.Coordinates, error) {
	geometryType := jsontree.String(geometry, "type")
	coords := jsontree.List(geometry, "coordinates")

	switch geometryType {
	case "Point":
		point, ok := toPoint(coords)
		if !ok {
			return nil, nil
		}
		return []spatial.Coordinates{point}, nil
	case "LineString":
		return toPoints(coords), nil
	case "Polygon":
		var result []spatial.Coordinates
		for _, ring := range coords {
			if pairs, ok := ring.([]any); ok {
				result = append(result, toPoints(pairs)...)
			}
		}
		return result, nil
	default:
		return nil, fmt.Errorf("coordinate type %q unsupported", geometryType)
	}
}

func toPoints(pairs []any) []spatial.Coordinates {
	var result []spatial.Coordinates
	for _, pair := range pairs {
		if values, ok := pair.([]any); ok {
			if point, ok := toPoint(values); ok {
				result = append(result, point)
			}
		}
	}
	return result
}

func toPoint(values []any) (spatial.Coordinates, bool) {
	if len(values) < 2 {
		return spatial.Coordinates{}, false
	}
	lon, lonOK := toFloat(values[0])
	lat, latOK := toFloat(values[1])
	if !lonOK || !latOK {
		return spatial.Coordinates{}, false
	}
	return spatial.Coordinates{Longitude: lon, Latitude: lat}, true
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}

// distinctStrings collects values from each source object, deduplicated in
// first-seen order.
func distinctStrings(sources []map[string]any, collect func(map[string]any) []string) []string {
	seen := make(map[string]struct{})
	var result []string
	for _, source := range sources {
		for _, value := range collect(source) {
			if _, ok := seen[value]; ok {
				continue
			}
			seen[value] = struct{}{}
			result = append(result, value)
		}
	}
	return result
}
