package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"dtro/internal/dtro/models"
	"dtro/pkg/platform/sentinel"
)

// MultiStore composes several backends. Reads return the first successful
// answer; writes fan out to every backend so the archive copies stay in step
// with the searchable one. Searches go to the first backend that supports
// them.
type MultiStore struct {
	stores        []Storage
	writeFileOnly bool
}

// MultiOption configures a MultiStore.
type MultiOption func(*MultiStore)

// WithFileOnlyWrites routes writes to the first file backend instead of
// fanning out. Used when another system owns the database copy and this
// instance only maintains the archive.
func WithFileOnlyWrites() MultiOption {
	return func(m *MultiStore) {
		m.writeFileOnly = true
	}
}

// NewMulti composes the given backends in priority order.
func NewMulti(stores []Storage, opts ...MultiOption) (*MultiStore, error) {
	if len(stores) == 0 {
		return nil, fmt.Errorf("at least one storage backend is required")
	}
	m := &MultiStore{stores: stores}
	for _, opt := range opts {
		if opt != nil {
			opt(m)
		}
	}
	if m.writeFileOnly && m.fileStore() == nil {
		return nil, fmt.Errorf("file-only writes require a file backend")
	}
	return m, nil
}

func (m *MultiStore) CanSearch() bool {
	return m.searcher() != nil
}

func (m *MultiStore) Exists(ctx context.Context, id uuid.UUID) (bool, error) {
	var errs []error
	for _, store := range m.stores {
		exists, err := store.Exists(ctx, id)
		if err == nil {
			return exists, nil
		}
		errs = append(errs, err)
	}
	return false, errors.Join(errs...)
}

func (m *MultiStore) Get(ctx context.Context, id uuid.UUID) (*models.Record, error) {
	var errs []error
	for _, store := range m.stores {
		record, err := store.Get(ctx, id)
		if err == nil {
			return record, nil
		}
		errs = append(errs, err)
	}
	return nil, errors.Join(errs...)
}

func (m *MultiStore) Save(ctx context.Context, record *models.Record) error {
	return m.write(func(store Storage) error {
		return store.Save(ctx, record)
	})
}

func (m *MultiStore) Update(ctx context.Context, record *models.Record) error {
	return m.write(func(store Storage) error {
		return store.Update(ctx, record)
	})
}

func (m *MultiStore) SoftDelete(ctx context.Context, id uuid.UUID, deletionTime time.Time) error {
	return m.write(func(store Storage) error {
		return store.SoftDelete(ctx, id, deletionTime)
	})
}

func (m *MultiStore) Find(ctx context.Context, criteria models.SearchCriteria) (models.PaginatedResult[models.Record], error) {
	searcher := m.searcher()
	if searcher == nil {
		return models.PaginatedResult[models.Record]{}, fmt.Errorf("no searchable backend: %w", sentinel.ErrUnavailable)
	}
	return searcher.Find(ctx, criteria)
}

func (m *MultiStore) FindSince(ctx context.Context, since time.Time) ([]models.Record, error) {
	searcher := m.searcher()
	if searcher == nil {
		return nil, fmt.Errorf("no searchable backend: %w", sentinel.ErrUnavailable)
	}
	return searcher.FindSince(ctx, since)
}

// write fans a mutation out to every backend, or routes it to the file
// backend alone in file-only mode. The first failure stops the fan-out so a
// not-found verdict from one backend is not masked by later successes.
func (m *MultiStore) write(mutate func(Storage) error) error {
	if m.writeFileOnly {
		return mutate(m.fileStore())
	}
	for _, store := range m.stores {
		if err := mutate(store); err != nil {
			return err
		}
	}
	return nil
}

func (m *MultiStore) searcher() Storage {
	for _, store := range m.stores {
		if store.CanSearch() {
			return store
		}
	}
	return nil
}

func (m *MultiStore) fileStore() Storage {
	for _, store := range m.stores {
		if fileStore, ok := store.(*FileStore); ok {
			return fileStore
		}
	}
	return nil
}
