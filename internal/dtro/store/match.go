package store

import (
	"slices"
	"strings"
	"time"

	"dtro/internal/dtro/models"
	"dtro/internal/spatial"
)

// matcher evaluates search predicates against record index fields in memory.
// The memory and file stores share it; the Postgres store compiles the same
// semantics to SQL.
type matcher struct {
	projection *spatial.Projection
}

// matchesAny reports whether any of the queries matches the record.
func (m matcher) matchesAny(record *models.Record, queries []models.SearchQuery) (bool, error) {
	for _, query := range queries {
		ok, err := m.matches(record, query)
		if err != nil {
			return false, err
		}
		if ok {
			return true, nil
		}
	}
	return false, nil
}

// matches evaluates a single conjunction. The deletion scope applies to every
// search query: DeletionTime set selects records deleted at or after it,
// otherwise only live records qualify.
func (m matcher) matches(record *models.Record, query models.SearchQuery) (bool, error) {
	if query.DeletionTime == nil && record.Deleted {
		return false, nil
	}
	return m.predicates(record, query)
}

// predicates evaluates the explicit predicates of a conjunction, without the
// implicit live-records scope.
func (m matcher) predicates(record *models.Record, query models.SearchQuery) (bool, error) {
	if query.DeletionTime != nil {
		if record.DeletionTime == nil || record.DeletionTime.Before(*query.DeletionTime) {
			return false, nil
		}
	}

	if query.HighwayAuthorityID != nil && record.TrafficAuthorityID != *query.HighwayAuthorityID {
		return false, nil
	}

	if query.PublicationTime != nil {
		if record.Created == nil || record.Created.Before(*query.PublicationTime) {
			return false, nil
		}
	}

	if query.TroName != nil {
		if !strings.Contains(strings.ToLower(record.TroName), strings.ToLower(*query.TroName)) {
			return false, nil
		}
	}

	if query.RegulationType != nil && !slices.Contains(record.RegulationTypes, *query.RegulationType) {
		return false, nil
	}
	if query.VehicleType != nil && !slices.Contains(record.VehicleTypes, *query.VehicleType) {
		return false, nil
	}
	if query.OrderReportingPoint != nil && !slices.Contains(record.OrderReportingPoints, *query.OrderReportingPoint) {
		return false, nil
	}

	if query.RegulationStart != nil {
		ok, err := satisfiesDate(record.RegulationStart, *query.RegulationStart)
		if err != nil || !ok {
			return false, err
		}
	}
	if query.RegulationEnd != nil {
		ok, err := satisfiesDate(record.RegulationEnd, *query.RegulationEnd)
		if err != nil || !ok {
			return false, err
		}
	}

	if query.Location != nil {
		if !m.queryBox(*query.Location).Overlaps(record.Location) {
			return false, nil
		}
	}

	return true, nil
}

// queryBox brings the query bounding box into the index CRS. Stored boxes are
// always OSGB36, so any other (case-sensitive) CRS value gets projected.
func (m matcher) queryBox(location models.Location) spatial.BoundingBox {
	if location.Crs == spatial.CrsOsgb36 {
		return location.Bbox
	}
	return m.projection.Wgs84BoxToOsgb36(location.Bbox)
}

// satisfiesDate applies a date condition to an optional index timestamp.
// Records without the timestamp never match, mirroring SQL NULL comparison.
func satisfiesDate(value *time.Time, condition models.DateCondition) (bool, error) {
	if value == nil {
		return false, nil
	}
	return condition.Satisfied(*value)
}
