package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"dtro/internal/dtro/models"
	"dtro/internal/spatial"
	"dtro/pkg/platform/sentinel"
)

// MemoryStore is an in-memory Storage implementation for development and
// tests.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[uuid.UUID]models.Record
	match   matcher
}

// NewMemory constructs an in-memory store.
func NewMemory(projection *spatial.Projection) (*MemoryStore, error) {
	if projection == nil {
		return nil, fmt.Errorf("projection is required")
	}
	return &MemoryStore{
		records: make(map[uuid.UUID]models.Record),
		match:   matcher{projection: projection},
	}, nil
}

func (s *MemoryStore) CanSearch() bool { return true }

func (s *MemoryStore) Exists(_ context.Context, id uuid.UUID) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	record, ok := s.records[id]
	return ok && !record.Deleted, nil
}

func (s *MemoryStore) Get(_ context.Context, id uuid.UUID) (*models.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	record, ok := s.records[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return &record, nil
}

func (s *MemoryStore) Save(_ context.Context, record *models.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.records[record.ID]; ok {
		return sentinel.ErrConflict
	}
	s.records[record.ID] = *record
	return nil
}

func (s *MemoryStore) Update(_ context.Context, record *models.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.records[record.ID]
	if !ok || existing.Deleted {
		return sentinel.ErrNotFound
	}
	s.records[record.ID] = *record
	return nil
}

func (s *MemoryStore) SoftDelete(_ context.Context, id uuid.UUID, deletionTime time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	record, ok := s.records[id]
	if !ok || record.Deleted {
		return sentinel.ErrNotFound
	}
	record.Deleted = true
	record.DeletionTime = &deletionTime
	s.records[id] = record
	return nil
}

func (s *MemoryStore) Find(_ context.Context, criteria models.SearchCriteria) (models.PaginatedResult[models.Record], error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var matched []models.Record
	for _, record := range s.records {
		ok, err := s.match.matchesAny(&record, criteria.Queries)
		if err != nil {
			return models.PaginatedResult[models.Record]{}, err
		}
		if ok {
			matched = append(matched, record)
		}
	}
	sortByCreated(matched)

	return models.PaginatedResult[models.Record]{
		Results:    pageOf(matched, criteria.Page, criteria.PageSize),
		TotalCount: len(matched),
	}, nil
}

func (s *MemoryStore) FindSince(_ context.Context, since time.Time) ([]models.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var matched []models.Record
	for _, record := range s.records {
		if record.Created != nil && !record.Created.Before(since) {
			matched = append(matched, record)
		}
	}
	sortByCreated(matched)
	return matched, nil
}

func sortByCreated(records []models.Record) {
	sort.SliceStable(records, func(i, j int) bool {
		a, b := records[i].Created, records[j].Created
		switch {
		case a == nil:
			return b != nil
		case b == nil:
			return false
		default:
			return a.Before(*b)
		}
	})
}

func pageOf(records []models.Record, page, pageSize int) []models.Record {
	if page < 1 || pageSize < 1 {
		return nil
	}
	start := (page - 1) * pageSize
	if start >= len(records) {
		return nil
	}
	end := min(start+pageSize, len(records))
	return records[start:end]
}
