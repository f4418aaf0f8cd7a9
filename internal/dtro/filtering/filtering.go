// Package filtering implements the in-memory search and event engines: a set
// of OR-combined queries evaluated per document, with the matched documents'
// search fields extracted for the response.
package filtering

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"dtro/internal/dtro/models"
	"dtro/internal/spatial"
	"dtro/pkg/apierrors"
	"dtro/pkg/jsontree"
)

// Service filters documents in memory. Data is filtered here instead of on
// the database side because of the shape of the stored payloads.
type Service struct {
	searchServiceURL string
	projection       *spatial.Projection
}

// New returns a filtering service. searchServiceURL prefixes the self links
// attached to results.
func New(searchServiceURL string, projection *spatial.Projection) (*Service, error) {
	if projection == nil {
		return nil, fmt.Errorf("projection is required")
	}
	return &Service{searchServiceURL: searchServiceURL, projection: projection}, nil
}

type match struct {
	record models.Record
	data   models.ExtractedData
}

// Filter evaluates the search criteria against the documents and returns the
// requested result page. Each query scopes deletion itself: a deletionTime
// bound makes only documents deleted at or after it eligible, while a query
// without one sees only live documents.
func (s *Service) Filter(records []models.Record, criteria models.SearchCriteria) (models.PaginatedResponse[models.SearchResult], error) {
	scoped := make([]models.Record, 0, len(records))
	for _, record := range records {
		if anyDeletionScopeAdmits(record, criteria.Queries) {
			scoped = append(scoped, record)
		}
	}

	if len(scoped) == 0 {
		return models.NewPaginatedResponse([]models.SearchResult{}, criteria.Page, 0), nil
	}

	// The page bound is checked against every document in scope, not the
	// match count.
	if pageOutOfRange(criteria.Page, criteria.PageSize, len(scoped)) {
		return models.PaginatedResponse[models.SearchResult]{},
			apierrors.New(apierrors.CodeBadRequest, "Requested page does not exist.")
	}

	matches, err := s.filterAndExtract(scoped, criteria.Queries, true)
	if err != nil {
		return models.PaginatedResponse[models.SearchResult]{}, err
	}

	results := make([]models.SearchResult, 0, len(matches))
	for _, m := range matches {
		results = append(results, models.SearchResult{
			TroName:             jsontree.String(m.record.Data, "source.troName"),
			HighwayAuthorityID:  jsontree.Int(m.record.Data, "source.ha"),
			PublicationTime:     derefTime(m.record.Created),
			RegulationType:      m.data.RegulationTypes,
			VehicleType:         m.data.VehicleTypes,
			OrderReportingPoint: m.data.OrderReportingPoints,
			RegulationStart:     m.data.PeriodStartDates,
			RegulationEnd:       m.data.PeriodEndDates,
			Links:               s.links(m.record),
		})
	}

	return models.NewPaginatedResponse(page(results, criteria.Page, criteria.PageSize), criteria.Page, len(results)), nil
}

// Results maps records that were already filtered at the index level into
// search results, extracting the response fields from each payload.
func (s *Service) Results(records []models.Record) []models.SearchResult {
	results := make([]models.SearchResult, 0, len(records))
	for _, record := range records {
		extracted := extract(record.Data)
		results = append(results, models.SearchResult{
			TroName:             jsontree.String(record.Data, "source.troName"),
			HighwayAuthorityID:  jsontree.Int(record.Data, "source.ha"),
			PublicationTime:     derefTime(record.Created),
			RegulationType:      extracted.RegulationTypes,
			VehicleType:         extracted.VehicleTypes,
			OrderReportingPoint: extracted.OrderReportingPoints,
			RegulationStart:     extracted.PeriodStartDates,
			RegulationEnd:       extracted.PeriodEndDates,
			Links:               s.links(record),
		})
	}
	return results
}

// FilterEvents evaluates an event search: matched documents are partitioned
// into create/update/delete events against the Since timestamp, sorted
// oldest-first, then paginated. Deleted documents stay in scope so deletions
// are reported.
func (s *Service) FilterEvents(records []models.Record, search models.EventSearch) (models.EventSearchResult, error) {
	matches, err := s.filterAndExtract(records, []models.SearchQuery{search.Query()}, false)
	if err != nil {
		return models.EventSearchResult{}, err
	}

	var events []models.Event
	for _, m := range matches {
		record := m.record
		if record.Created != nil && record.Created.After(search.Since) {
			events = append(events, s.event(m, models.EventCreate, *record.Created))
		}
		if record.LastUpdated != nil && record.LastUpdated.After(search.Since) &&
			!timesEqual(record.LastUpdated, record.Created) {
			events = append(events, s.event(m, models.EventUpdate, *record.LastUpdated))
		}
		if record.DeletionTime != nil && record.DeletionTime.After(search.Since) {
			events = append(events, s.event(m, models.EventDelete, *record.DeletionTime))
		}
	}

	sort.SliceStable(events, func(i, j int) bool {
		return events[i].EventTime.Before(events[j].EventTime)
	})

	return models.EventSearchResult{
		Page:       search.Page,
		PageSize:   search.PageSize,
		TotalCount: len(events),
		Events:     page(events, search.Page, search.PageSize),
	}, nil
}

// filterAndExtract returns the documents matching at least one query, in
// input order, each paired with its extracted search fields. scopeDeletion
// applies the per-query deletion scope; the event search leaves deleted
// documents in play regardless.
func (s *Service) filterAndExtract(records []models.Record, queries []models.SearchQuery, scopeDeletion bool) ([]match, error) {
	var matches []match

	for _, record := range records {
		extracted := extract(record.Data)

		matched, err := s.anyQueryMatches(record, extracted, queries, scopeDeletion)
		if err != nil {
			return nil, err
		}
		if matched {
			matches = append(matches, match{record: record, data: extracted.ExtractedData})
		}
	}
	return matches, nil
}

func (s *Service) anyQueryMatches(record models.Record, extracted extraction, queries []models.SearchQuery, scopeDeletion bool) (bool, error) {
	for _, query := range queries {
		matched, err := s.queryMatches(record, extracted, query, scopeDeletion)
		if err != nil {
			return false, err
		}
		if matched {
			return true, nil
		}
	}
	return false, nil
}

func (s *Service) queryMatches(record models.Record, extracted extraction, query models.SearchQuery, scopeDeletion bool) (bool, error) {
	if scopeDeletion && !deletionScopeAdmits(record, query) {
		return false, nil
	}

	if query.TroName != nil {
		name := strings.ToLower(jsontree.String(record.Data, "source.troName"))
		if !strings.Contains(name, strings.ToLower(*query.TroName)) {
			return false, nil
		}
	}

	if query.OrderReportingPoint != nil && !contains(extracted.OrderReportingPoints, *query.OrderReportingPoint) {
		return false, nil
	}
	if query.RegulationType != nil && !contains(extracted.RegulationTypes, *query.RegulationType) {
		return false, nil
	}
	if query.VehicleType != nil && !contains(extracted.VehicleTypes, *query.VehicleType) {
		return false, nil
	}

	// Exact source.ha only, without the "ta" fallback used by indexing.
	if query.HighwayAuthorityID != nil && jsontree.Int(record.Data, "source.ha") != *query.HighwayAuthorityID {
		return false, nil
	}

	if query.RegulationStart != nil {
		ok, err := anySatisfies(*query.RegulationStart, extracted.PeriodStartDates)
		if err != nil || !ok {
			return false, err
		}
	}
	if query.RegulationEnd != nil {
		ok, err := anySatisfies(*query.RegulationEnd, extracted.PeriodEndDates)
		if err != nil || !ok {
			return false, err
		}
	}

	if query.Location != nil && !s.locationMatches(*query.Location, extracted.coordinates) {
		return false, nil
	}

	return true, nil
}

// locationMatches tests each document coordinate against the query box. CRS
// names are compared lowercased. When the CRSes differ, the side reprojected
// depends on which one is the national grid: an osgb36 query projects the
// document coordinate, otherwise the query box itself is projected once.
func (s *Service) locationMatches(location models.Location, coordinates []taggedCoordinate) bool {
	queryCrs := strings.ToLower(location.Crs)
	var projectedBox *spatial.BoundingBox

	for _, tagged := range coordinates {
		switch {
		case queryCrs == tagged.crs:
			if location.Bbox.Contains(tagged.point.Longitude, tagged.point.Latitude) {
				return true
			}
		case queryCrs == strings.ToLower(spatial.CrsOsgb36):
			projected := s.projection.Wgs84ToOsgb36(tagged.point)
			if location.Bbox.Contains(projected.Longitude, projected.Latitude) {
				return true
			}
		default:
			if projectedBox == nil {
				box := s.projection.Wgs84BoxToOsgb36(location.Bbox)
				projectedBox = &box
			}
			if projectedBox.Contains(tagged.point.Longitude, tagged.point.Latitude) {
				return true
			}
		}
	}
	return false
}

func (s *Service) event(m match, eventType models.EventType, eventTime time.Time) models.Event {
	return models.Event{
		PublicationTime:     derefTime(m.record.Created),
		HighwayAuthorityID:  jsontree.Int(m.record.Data, "source.ha"),
		TroName:             jsontree.String(m.record.Data, "source.troName"),
		RegulationType:      m.data.RegulationTypes,
		VehicleType:         m.data.VehicleTypes,
		OrderReportingPoint: m.data.OrderReportingPoints,
		RegulationStart:     m.data.PeriodStartDates,
		RegulationEnd:       m.data.PeriodEndDates,
		EventType:           eventType,
		EventTime:           eventTime,
		Links:               s.links(m.record),
	}
}

func (s *Service) links(record models.Record) models.Links {
	return models.Links{Self: fmt.Sprintf("%s/v1/dtros/%s", s.searchServiceURL, record.ID)}
}

// extraction is the per-document working set: the response fields plus the
// tagged coordinates used only for spatial matching.
type extraction struct {
	models.ExtractedData
	coordinates []taggedCoordinate
}

type taggedCoordinate struct {
	point spatial.Coordinates
	crs   string
}

func extract(data map[string]any) extraction {
	provisions := jsontree.Objects(data, "source.provision")

	var regulations []map[string]any
	for _, provision := range provisions {
		regulations = append(regulations, jsontree.Objects(provision, "regulations")...)
	}

	var orderReportingPoints, vehicleTypes, regulationTypes []string
	var periodStarts, periodEnds []time.Time
	offListRegulation := false

	seenPoints := map[string]struct{}{}
	for _, provision := range provisions {
		if point := jsontree.String(provision, "orderReportingPoint"); point != "" {
			if _, ok := seenPoints[point]; !ok {
				seenPoints[point] = struct{}{}
				orderReportingPoints = append(orderReportingPoints, point)
			}
		}
	}

	seenVehicles := map[string]struct{}{}
	seenRegulations := map[string]struct{}{}
	for _, regulation := range regulations {
		for _, condition := range jsontree.Objects(regulation, "conditions") {
			for _, vehicleType := range jsontree.Strings(condition, "vehicleCharacteristics.vehicleType") {
				if _, ok := seenVehicles[vehicleType]; !ok {
					seenVehicles[vehicleType] = struct{}{}
					vehicleTypes = append(vehicleTypes, vehicleType)
				}
			}
		}

		// The regulation-type query also covers regulations without a
		// regulationType field: speed limit "type" values, and the synthetic
		// "offListRegulation" for free-text regulations.
		for _, key := range []string{"regulationType", "type"} {
			if value := jsontree.String(regulation, key); value != "" {
				if _, ok := seenRegulations[value]; !ok {
					seenRegulations[value] = struct{}{}
					regulationTypes = append(regulationTypes, value)
				}
			}
		}
		if jsontree.String(regulation, "regulationFullText") != "" {
			offListRegulation = true
		}

		if start := jsontree.Time(regulation, "overallPeriod.start"); start != nil {
			periodStarts = append(periodStarts, *start)
		}
		if end := jsontree.Time(regulation, "overallPeriod.end"); end != nil {
			periodEnds = append(periodEnds, *end)
		}
	}
	if offListRegulation {
		regulationTypes = append(regulationTypes, "offListRegulation")
	}

	return extraction{
		ExtractedData: models.ExtractedData{
			VehicleTypes:         vehicleTypes,
			RegulationTypes:      regulationTypes,
			OrderReportingPoints: orderReportingPoints,
			PeriodStartDates:     periodStarts,
			PeriodEndDates:       periodEnds,
		},
		coordinates: extractCoordinates(provisions),
	}
}

func extractCoordinates(provisions []map[string]any) []taggedCoordinate {
	var result []taggedCoordinate

	for _, provision := range provisions {
		places := jsontree.Objects(provision, "regulatedPlaces")
		places = append(places, jsontree.Objects(provision, "regulatedPlace")...)

		for _, place := range places {
			geometry := jsontree.Object(place, "geometry")
			if geometry == nil {
				continue
			}
			crs := strings.ToLower(jsontree.String(geometry, "crs"))
			for _, point := range flattenPairs(jsontree.List(geometry, "coordinates.coordinates")) {
				result = append(result, taggedCoordinate{point: point, crs: crs})
			}
		}
	}
	return result
}

// flattenPairs collects [lon, lat] pairs at any nesting depth, covering
// Point, LineString and Polygon shapes uniformly.
func flattenPairs(values []any) []spatial.Coordinates {
	if point, ok := asPair(values); ok {
		return []spatial.Coordinates{point}
	}

	var result []spatial.Coordinates
	for _, value := range values {
		if nested, ok := value.([]any); ok {
			result = append(result, flattenPairs(nested)...)
		}
	}
	return result
}

func asPair(values []any) (spatial.Coordinates, bool) {
	if len(values) != 2 {
		return spatial.Coordinates{}, false
	}
	lon, lonOK := asFloat(values[0])
	lat, latOK := asFloat(values[1])
	if !lonOK || !latOK {
		return spatial.Coordinates{}, false
	}
	return spatial.Coordinates{Longitude: lon, Latitude: lat}, true
}

func asFloat(v any) (float64, bool) {
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

func anySatisfies(condition models.DateCondition, values []time.Time) (bool, error) {
	for _, value := range values {
		ok, err := condition.Satisfied(value)
		if err != nil {
			return false, err
		}
		if ok {
			return true, nil
		}
	}
	return false, nil
}

// deletionScopeAdmits evaluates the implicit deletion predicate of a single
// query, matching the store-level search scope.
func deletionScopeAdmits(record models.Record, query models.SearchQuery) bool {
	if query.DeletionTime == nil {
		return !record.Deleted
	}
	return record.DeletionTime != nil && !record.DeletionTime.Before(*query.DeletionTime)
}

// anyDeletionScopeAdmits reports whether at least one query's deletion scope
// admits the record. Without queries only live documents are in scope.
func anyDeletionScopeAdmits(record models.Record, queries []models.SearchQuery) bool {
	if len(queries) == 0 {
		return !record.Deleted
	}
	for _, query := range queries {
		if deletionScopeAdmits(record, query) {
			return true
		}
	}
	return false
}

func pageOutOfRange(page, pageSize, total int) bool {
	if pageSize <= 0 {
		return true
	}
	lastPage := (total + pageSize - 1) / pageSize
	return page > lastPage
}

func page[T any](items []T, page, pageSize int) []T {
	start := pageSize * (page - 1)
	if start < 0 || start >= len(items) {
		return []T{}
	}
	end := start + pageSize
	if end > len(items) {
		end = len(items)
	}
	return items[start:end]
}

func contains(values []string, target string) bool {
	for _, value := range values {
		if value == target {
			return true
		}
	}
	return false
}

func derefTime(t *time.Time) time.Time {
	if t == nil {
		return time.Time{}
	}
	return *t
}

func timesEqual(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Equal(*b)
}
