package models

import "time"

// EventType partitions document history into creations, updates and
// deletions.
type EventType string

const (
	EventCreate EventType = "create"
	EventUpdate EventType = "update"
	EventDelete EventType = "delete"
)

// Event is one change to a document visible to event consumers.
type Event struct {
	PublicationTime     time.Time   `json:"publicationTime"`
	HighwayAuthorityID  int         `json:"ha"`
	TroName             string      `json:"troName"`
	RegulationType      []string    `json:"regulationType"`
	VehicleType         []string    `json:"vehicleType"`
	OrderReportingPoint []string    `json:"orderReportingPoint"`
	RegulationStart     []time.Time `json:"regulationStart"`
	RegulationEnd       []time.Time `json:"regulationEnd"`
	EventType           EventType   `json:"eventType"`
	EventTime           time.Time   `json:"eventTime"`
	Links               Links       `json:"_links"`
}

// EventSearch is a paginated single-query event request. Since bounds which
// changes are reported.
type EventSearch struct {
	Page     int       `json:"page"`
	PageSize int       `json:"pageSize"`
	Since    time.Time `json:"since"`

	Location            *Location      `json:"location,omitempty"`
	DeletionTime        *time.Time     `json:"deletionTime,omitempty"`
	HighwayAuthorityID  *int           `json:"ha,omitempty"`
	TroName             *string        `json:"troName,omitempty"`
	RegulationType      *string        `json:"regulationType,omitempty"`
	VehicleType         *string        `json:"vehicleType,omitempty"`
	OrderReportingPoint *string        `json:"orderReportingPoint,omitempty"`
	RegulationStart     *DateCondition `json:"regulationStart,omitempty"`
	RegulationEnd       *DateCondition `json:"regulationEnd,omitempty"`
}

// Query folds the event search's flat predicate fields into the shared
// search-query shape.
func (s EventSearch) Query() SearchQuery {
	return SearchQuery{
		Location:            s.Location,
		DeletionTime:        s.DeletionTime,
		HighwayAuthorityID:  s.HighwayAuthorityID,
		TroName:             s.TroName,
		RegulationType:      s.RegulationType,
		VehicleType:         s.VehicleType,
		OrderReportingPoint: s.OrderReportingPoint,
		RegulationStart:     s.RegulationStart,
		RegulationEnd:       s.RegulationEnd,
	}
}

// EventSearchResult is one page of matched events.
type EventSearchResult struct {
	Page       int     `json:"page"`
	PageSize   int     `json:"pageSize"`
	TotalCount int     `json:"totalCount"`
	Events     []Event `json:"events"`
}
