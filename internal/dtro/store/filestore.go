package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"dtro/internal/dtro/models"
	"dtro/pkg/platform/sentinel"
)

// FileStore persists each record as a JSON document under a directory. It is
// a write-through archive backend: reads and writes work, index searches do
// not.
type FileStore struct {
	dir string
}

// NewFile constructs a file-backed record store rooted at dir.
func NewFile(dir string) (*FileStore, error) {
	if dir == "" {
		return nil, fmt.Errorf("storage directory is required")
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("create storage directory: %w", err)
	}
	return &FileStore{dir: dir}, nil
}

func (s *FileStore) CanSearch() bool { return false }

func (s *FileStore) path(id uuid.UUID) string {
	return filepath.Join(s.dir, id.String()+".json")
}

func (s *FileStore) Exists(_ context.Context, id uuid.UUID) (bool, error) {
	record, err := s.read(id)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	return !record.Deleted, nil
}

func (s *FileStore) Get(_ context.Context, id uuid.UUID) (*models.Record, error) {
	return s.read(id)
}

func (s *FileStore) Save(_ context.Context, record *models.Record) error {
	return s.write(record)
}

func (s *FileStore) Update(_ context.Context, record *models.Record) error {
	existing, err := s.read(record.ID)
	if err != nil {
		return err
	}
	if existing.Deleted {
		return sentinel.ErrNotFound
	}
	return s.write(record)
}

func (s *FileStore) SoftDelete(_ context.Context, id uuid.UUID, deletionTime time.Time) error {
	record, err := s.read(id)
	if err != nil {
		return err
	}
	if record.Deleted {
		return sentinel.ErrNotFound
	}
	record.Deleted = true
	record.DeletionTime = &deletionTime
	return s.write(record)
}

func (s *FileStore) Find(context.Context, models.SearchCriteria) (models.PaginatedResult[models.Record], error) {
	return models.PaginatedResult[models.Record]{}, fmt.Errorf("file store cannot search: %w", sentinel.ErrUnavailable)
}

func (s *FileStore) FindSince(context.Context, time.Time) ([]models.Record, error) {
	return nil, fmt.Errorf("file store cannot search: %w", sentinel.ErrUnavailable)
}

func (s *FileStore) read(id uuid.UUID) (*models.Record, error) {
	data, err := os.ReadFile(s.path(id))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("read record file: %w", err)
	}
	var record storedRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, fmt.Errorf("decode record file: %w", err)
	}
	return record.toRecord(), nil
}

func (s *FileStore) write(record *models.Record) error {
	data, err := json.MarshalIndent(newStoredRecord(record), "", "  ")
	if err != nil {
		return fmt.Errorf("encode record file: %w", err)
	}
	if err := os.WriteFile(s.path(record.ID), data, 0o640); err != nil {
		return fmt.Errorf("write record file: %w", err)
	}
	return nil
}

// storedRecord is the on-disk shape: the record plus its inferred index
// fields, which the JSON shape of models.Record deliberately omits.
type storedRecord struct {
	models.Record
	Index storedIndex `json:"index"`
}

type storedIndex struct {
	TrafficAuthorityID   int        `json:"trafficAuthorityId"`
	TroName              string     `json:"troName"`
	RegulationTypes      []string   `json:"regulationTypes"`
	VehicleTypes         []string   `json:"vehicleTypes"`
	OrderReportingPoints []string   `json:"orderReportingPoints"`
	RegulationStart      *time.Time `json:"regulationStart,omitempty"`
	RegulationEnd        *time.Time `json:"regulationEnd,omitempty"`
	LocationWest         float64    `json:"locationWest"`
	LocationSouth        float64    `json:"locationSouth"`
	LocationEast         float64    `json:"locationEast"`
	LocationNorth        float64    `json:"locationNorth"`
}

func newStoredRecord(record *models.Record) storedRecord {
	return storedRecord{
		Record: *record,
		Index: storedIndex{
			TrafficAuthorityID:   record.TrafficAuthorityID,
			TroName:              record.TroName,
			RegulationTypes:      record.RegulationTypes,
			VehicleTypes:         record.VehicleTypes,
			OrderReportingPoints: record.OrderReportingPoints,
			RegulationStart:      record.RegulationStart,
			RegulationEnd:        record.RegulationEnd,
			LocationWest:         record.Location.West,
			LocationSouth:        record.Location.South,
			LocationEast:         record.Location.East,
			LocationNorth:        record.Location.North,
		},
	}
}

func (s storedRecord) toRecord() *models.Record {
	record := s.Record
	record.TrafficAuthorityID = s.Index.TrafficAuthorityID
	record.TroName = s.Index.TroName
	record.RegulationTypes = s.Index.RegulationTypes
	record.VehicleTypes = s.Index.VehicleTypes
	record.OrderReportingPoints = s.Index.OrderReportingPoints
	record.RegulationStart = s.Index.RegulationStart
	record.RegulationEnd = s.Index.RegulationEnd
	record.Location.West = s.Index.LocationWest
	record.Location.South = s.Index.LocationSouth
	record.Location.East = s.Index.LocationEast
	record.Location.North = s.Index.LocationNorth
	return &record
}
