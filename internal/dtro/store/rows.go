package store

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/lib/pq"

	"dtro/internal/dtro/models"
)

type rowScanner interface {
	Scan(dest ...any) error
}

func marshalData(record *models.Record) ([]byte, error) {
	data, err := json.Marshal(record.Data)
	if err != nil {
		return nil, fmt.Errorf("marshal record data: %w", err)
	}
	return data, nil
}

func scanRecord(row rowScanner) (*models.Record, error) {
	return scanInto(row, nil)
}

func scanRecordWithTotal(row rowScanner) (*models.Record, int, error) {
	var total int
	record, err := scanInto(row, &total)
	return record, total, err
}

func scanInto(row rowScanner, total *int) (*models.Record, error) {
	var (
		record          models.Record
		version         string
		data            []byte
		created         sql.NullTime
		lastUpdated     sql.NullTime
		deletionTime    sql.NullTime
		regulationStart sql.NullTime
		regulationEnd   sql.NullTime
	)

	dest := []any{
		&record.ID, &version, &data, &created, &lastUpdated,
		&record.CreatedCorrelationID, &record.LastUpdatedCorrelationID,
		&record.Deleted, &deletionTime,
		&record.TrafficAuthorityID, &record.TroName,
		pq.Array(&record.RegulationTypes), pq.Array(&record.VehicleTypes),
		pq.Array(&record.OrderReportingPoints),
		&regulationStart, &regulationEnd,
		&record.Location.West, &record.Location.South,
		&record.Location.East, &record.Location.North,
	}
	if total != nil {
		dest = append(dest, total)
	}
	if err := row.Scan(dest...); err != nil {
		return nil, err
	}

	parsed, err := models.ParseSchemaVersion(version)
	if err != nil {
		return nil, fmt.Errorf("stored schema version: %w", err)
	}
	record.SchemaVersion = parsed

	if err := json.Unmarshal(data, &record.Data); err != nil {
		return nil, fmt.Errorf("unmarshal record data: %w", err)
	}

	record.Created = timePtr(created)
	record.LastUpdated = timePtr(lastUpdated)
	record.DeletionTime = timePtr(deletionTime)
	record.RegulationStart = timePtr(regulationStart)
	record.RegulationEnd = timePtr(regulationEnd)
	return &record, nil
}
