// Package events publishes D-TRO change notices to downstream consumers.
package events

import (
	"context"
	"time"

	"github.com/google/uuid"

	"dtro/internal/dtro/models"
)

// ChangeNotice announces one change to a D-TRO record.
type ChangeNotice struct {
	RecordID           uuid.UUID        `json:"recordId"`
	EventType          models.EventType `json:"eventType"`
	EventTime          time.Time        `json:"eventTime"`
	TrafficAuthorityID int              `json:"trafficAuthorityId"`
	TroName            string           `json:"troName"`
	CorrelationID      string           `json:"correlationId,omitempty"`
}

// Producer delivers change notices to a broker.
type Producer interface {
	Produce(ctx context.Context, notice ChangeNotice) error
	Close()
}

// Notice builds a change notice from a record.
func Notice(record *models.Record, eventType models.EventType, eventTime time.Time, correlationID string) ChangeNotice {
	return ChangeNotice{
		RecordID:           record.ID,
		EventType:          eventType,
		EventTime:          eventTime,
		TrafficAuthorityID: record.TrafficAuthorityID,
		TroName:            record.TroName,
		CorrelationID:      correlationID,
	}
}
