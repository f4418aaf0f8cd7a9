// Package models holds the persisted D-TRO record and the request/response
// shapes of the search and event APIs.
package models

import (
	"time"

	"github.com/google/uuid"

	"dtro/internal/spatial"
)

// Record is a stored D-TRO document: the submitted payload plus metadata and
// the index fields inferred from the payload at submission time.
//
// Created and CreatedCorrelationID are write-once: set on first save and
// preserved by ApplyUpdate.
type Record struct {
	ID            uuid.UUID      `json:"id"`
	SchemaVersion SchemaVersion  `json:"schemaVersion"`
	Data          map[string]any `json:"data"`

	Created                  *time.Time `json:"created,omitempty"`
	LastUpdated              *time.Time `json:"lastUpdated,omitempty"`
	CreatedCorrelationID     string     `json:"createdCorrelationId,omitempty"`
	LastUpdatedCorrelationID string     `json:"lastUpdatedCorrelationId,omitempty"`

	Deleted      bool       `json:"deleted"`
	DeletionTime *time.Time `json:"deletionTime,omitempty"`

	// Index fields inferred from Data; never supplied by clients.
	TrafficAuthorityID   int                 `json:"-"`
	TroName              string              `json:"-"`
	RegulationTypes      []string            `json:"-"`
	VehicleTypes         []string            `json:"-"`
	OrderReportingPoints []string            `json:"-"`
	RegulationStart      *time.Time          `json:"-"`
	RegulationEnd        *time.Time          `json:"-"`
	Location             spatial.BoundingBox `json:"-"`
}

// ApplyUpdate replaces the record's content with the incoming submission
// while preserving the write-once fields and identity of the original.
func (r *Record) ApplyUpdate(incoming Record) {
	id, created, createdCorrelationID := r.ID, r.Created, r.CreatedCorrelationID

	*r = incoming

	r.ID = id
	r.Created = created
	r.CreatedCorrelationID = createdCorrelationID
}
