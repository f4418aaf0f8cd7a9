package models

import (
	"fmt"
	"time"

	"dtro/internal/spatial"
)

// ComparisonOperator names the comparators accepted in date conditions.
type ComparisonOperator string

const (
	OperatorEqual              ComparisonOperator = "Equal"
	OperatorLessThan           ComparisonOperator = "LessThan"
	OperatorLessThanOrEqual    ComparisonOperator = "LessThanOrEqual"
	OperatorGreaterThan        ComparisonOperator = "GreaterThan"
	OperatorGreaterThanOrEqual ComparisonOperator = "GreaterThanOrEqual"
)

// DateCondition is a comparator applied to a document timestamp.
type DateCondition struct {
	Operator ComparisonOperator `json:"operator"`
	Value    time.Time          `json:"value"`
}

// Satisfied evaluates the condition against a value. An unknown operator is a
// server-side invariant violation, not a match failure.
func (c DateCondition) Satisfied(value time.Time) (bool, error) {
	switch c.Operator {
	case OperatorEqual:
		return value.Equal(c.Value), nil
	case OperatorLessThan:
		return value.Before(c.Value), nil
	case OperatorLessThanOrEqual:
		return !value.After(c.Value), nil
	case OperatorGreaterThan:
		return value.After(c.Value), nil
	case OperatorGreaterThanOrEqual:
		return !value.Before(c.Value), nil
	default:
		return false, fmt.Errorf("unknown comparison operator %q", c.Operator)
	}
}

// Location is the spatial part of a search query.
type Location struct {
	Crs  string              `json:"crs"`
	Bbox spatial.BoundingBox `json:"bbox"`
}

// SearchQuery is a single conjunction of optional predicates. A document
// matches when every supplied predicate holds.
type SearchQuery struct {
	Location            *Location      `json:"location,omitempty"`
	PublicationTime     *time.Time     `json:"publicationTime,omitempty"`
	DeletionTime        *time.Time     `json:"deletionTime,omitempty"`
	HighwayAuthorityID  *int           `json:"ha,omitempty"`
	TroName             *string        `json:"troName,omitempty"`
	RegulationType      *string        `json:"regulationType,omitempty"`
	VehicleType         *string        `json:"vehicleType,omitempty"`
	OrderReportingPoint *string        `json:"orderReportingPoint,omitempty"`
	RegulationStart     *DateCondition `json:"regulationStart,omitempty"`
	RegulationEnd       *DateCondition `json:"regulationEnd,omitempty"`
}

// SearchCriteria is a paginated OR-combination of queries.
type SearchCriteria struct {
	Page     int           `json:"page"`
	PageSize int           `json:"pageSize"`
	Queries  []SearchQuery `json:"queries"`
}

// Links holds hypermedia references attached to search results.
type Links struct {
	Self string `json:"self"`
}

// SearchResult is one matched document with its extracted search fields.
type SearchResult struct {
	TroName             string      `json:"troName"`
	HighwayAuthorityID  int         `json:"ha"`
	PublicationTime     time.Time   `json:"publicationTime"`
	RegulationType      []string    `json:"regulationType"`
	VehicleType         []string    `json:"vehicleType"`
	OrderReportingPoint []string    `json:"orderReportingPoint"`
	RegulationStart     []time.Time `json:"regulationStart"`
	RegulationEnd       []time.Time `json:"regulationEnd"`
	Links               Links       `json:"_links"`
}

// ExtractedData collects the search-relevant values pulled from a document's
// payload during filtering.
type ExtractedData struct {
	VehicleTypes         []string
	RegulationTypes      []string
	OrderReportingPoints []string
	PeriodStartDates     []time.Time
	PeriodEndDates       []time.Time
}

// PaginatedResult is a raw store query result: one page of records plus the
// total match count.
type PaginatedResult[T any] struct {
	Results    []T `json:"results"`
	TotalCount int `json:"totalCount"`
}

// PaginatedResponse is the API shape of one result page.
type PaginatedResponse[T any] struct {
	Results    []T `json:"results"`
	Page       int `json:"page"`
	PageSize   int `json:"pageSize"`
	TotalCount int `json:"totalCount"`
}

// NewPaginatedResponse builds a response page; PageSize reflects the actual
// number of results on this page.
func NewPaginatedResponse[T any](results []T, page, totalCount int) PaginatedResponse[T] {
	return PaginatedResponse[T]{
		Results:    results,
		Page:       page,
		PageSize:   len(results),
		TotalCount: totalCount,
	}
}
