// Package store persists D-TRO records and answers index-field searches.
package store

import (
	"context"
	"time"

	"github.com/google/uuid"

	"dtro/internal/dtro/models"
)

// Storage is the persistence contract for D-TRO records. Implementations are
// interface-driven so the service layer can compose database, file and cache
// backends without rewiring business code.
//
// Find evaluates an OR-of-ANDs over the record index fields: each query in
// the criteria is a conjunction of its supplied predicates, and a record
// matches when any query matches. Every query implicitly scopes deletion:
// a query with DeletionTime set matches records deleted at or after that
// time, while a query without it matches only live records.
type Storage interface {
	// CanSearch reports whether Find and FindSince are supported.
	CanSearch() bool

	// Exists reports whether a live (non-deleted) record with the id exists.
	Exists(ctx context.Context, id uuid.UUID) (bool, error)

	// Get returns the record with the id, deleted or not. Missing records
	// yield sentinel.ErrNotFound.
	Get(ctx context.Context, id uuid.UUID) (*models.Record, error)

	// Save persists a new record.
	Save(ctx context.Context, record *models.Record) error

	// Update replaces an existing live record. A missing or deleted record
	// yields sentinel.ErrNotFound.
	Update(ctx context.Context, record *models.Record) error

	// SoftDelete marks the record deleted at deletionTime. A missing or
	// already-deleted record yields sentinel.ErrNotFound.
	SoftDelete(ctx context.Context, id uuid.UUID, deletionTime time.Time) error

	// Find returns one page of records matching the criteria, ordered by
	// creation time, together with the total match count.
	Find(ctx context.Context, criteria models.SearchCriteria) (models.PaginatedResult[models.Record], error)

	// FindSince returns every record created at or after since, deleted
	// records included, ordered by creation time. It feeds the in-memory
	// filtering engine, which applies the search predicates itself.
	FindSince(ctx context.Context, since time.Time) ([]models.Record, error)
}
