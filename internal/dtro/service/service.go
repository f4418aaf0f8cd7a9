// Package service orchestrates submission validation, persistence, search and
// the change feed for D-TRO records.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"dtro/internal/dtro/filtering"
	"dtro/internal/dtro/index"
	"dtro/internal/dtro/models"
	"dtro/internal/dtro/store"
	"dtro/internal/events"
	"dtro/internal/spatial"
	"dtro/internal/validation"
	"dtro/pkg/apierrors"
	"dtro/pkg/platform/sentinel"
)

var tracer = otel.Tracer("dtro/service")

// Submission is an incoming D-TRO document: the declared schema version plus
// the payload validated against it.
type Submission struct {
	SchemaVersion models.SchemaVersion `json:"schemaVersion"`
	Data          map[string]any       `json:"data"`
}

// ValidationFailure rejects a submission with user-facing errors. Structural
// schema violations carry only a message; logic and semantic failures also
// carry the payload path.
type ValidationFailure struct {
	Errors []validation.SemanticError
}

func (e *ValidationFailure) Error() string {
	return fmt.Sprintf("submission failed validation with %d error(s)", len(e.Errors))
}

// Publisher is the slice of the change-feed publisher the service needs.
type Publisher interface {
	Enqueue(notice events.ChangeNotice)
}

// Service implements the D-TRO operations.
type Service struct {
	store      store.Storage
	schemas    *validation.SchemaValidator
	logic      *validation.LogicValidator
	semantics  *validation.SemanticValidator
	filtering  *filtering.Service
	projection *spatial.Projection
	publisher  Publisher
	logger     *slog.Logger
	now        func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithPublisher attaches a change-feed publisher.
func WithPublisher(publisher Publisher) Option {
	return func(s *Service) {
		s.publisher = publisher
	}
}

// WithLogger sets the service logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithClock sets the time source for testability.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// New wires the service from its collaborators.
func New(
	storage store.Storage,
	schemas *validation.SchemaValidator,
	logic *validation.LogicValidator,
	semantics *validation.SemanticValidator,
	filteringService *filtering.Service,
	projection *spatial.Projection,
	opts ...Option,
) (*Service, error) {
	if storage == nil {
		return nil, fmt.Errorf("storage is required")
	}
	if schemas == nil {
		return nil, fmt.Errorf("schema validator is required")
	}
	if logic == nil {
		return nil, fmt.Errorf("logic validator is required")
	}
	if semantics == nil {
		return nil, fmt.Errorf("semantic validator is required")
	}
	if filteringService == nil {
		return nil, fmt.Errorf("filtering service is required")
	}
	if projection == nil {
		return nil, fmt.Errorf("projection is required")
	}

	svc := &Service{
		store:      storage,
		schemas:    schemas,
		logic:      logic,
		semantics:  semantics,
		filtering:  filteringService,
		projection: projection,
		logger:     slog.Default(),
		now:        time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(svc)
		}
	}
	return svc, nil
}

// Create validates a submission, infers its index fields and persists it as a
// new record. Validation runs schema first, then logic rules, then semantic
// checks; the first failing stage rejects the submission.
func (s *Service) Create(ctx context.Context, submission Submission, correlationID string) (*models.Record, error) {
	ctx, span := tracer.Start(ctx, "dtro.Create",
		trace.WithAttributes(attribute.String("schema_version", submission.SchemaVersion.String())))
	defer span.End()

	record := &models.Record{
		ID:            uuid.New(),
		SchemaVersion: submission.SchemaVersion,
		Data:          submission.Data,
	}

	if err := s.validate(ctx, record); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	record.Created = &now
	record.LastUpdated = &now
	record.CreatedCorrelationID = correlationID
	record.LastUpdatedCorrelationID = correlationID

	if err := index.Infer(record, s.projection); err != nil {
		return nil, fmt.Errorf("infer index fields: %w", err)
	}

	if err := s.store.Save(ctx, record); err != nil {
		return nil, fmt.Errorf("save record: %w", err)
	}

	s.logger.Info("record created", "record_id", record.ID, "schema_version", record.SchemaVersion)
	s.notify(record, models.EventCreate, now, correlationID)
	return record, nil
}

// Update validates a submission and replaces an existing live record with it.
// The original identity, creation time and creation correlation id survive.
func (s *Service) Update(ctx context.Context, id uuid.UUID, submission Submission, correlationID string) (*models.Record, error) {
	ctx, span := tracer.Start(ctx, "dtro.Update",
		trace.WithAttributes(attribute.String("record_id", id.String())))
	defer span.End()

	incoming := models.Record{
		SchemaVersion: submission.SchemaVersion,
		Data:          submission.Data,
	}

	if err := s.validate(ctx, &incoming); err != nil {
		return nil, err
	}

	record, err := s.store.Get(ctx, id)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, notFound(id)
		}
		return nil, fmt.Errorf("get record: %w", err)
	}
	if record.Deleted {
		return nil, notFound(id)
	}

	record.ApplyUpdate(incoming)
	now := s.now().UTC()
	record.LastUpdated = &now
	record.LastUpdatedCorrelationID = correlationID

	if err := index.Infer(record, s.projection); err != nil {
		return nil, fmt.Errorf("infer index fields: %w", err)
	}

	if err := s.store.Update(ctx, record); err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, notFound(id)
		}
		return nil, fmt.Errorf("update record: %w", err)
	}

	s.logger.Info("record updated", "record_id", id)
	s.notify(record, models.EventUpdate, now, correlationID)
	return record, nil
}

// Get returns a live record by id.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*models.Record, error) {
	record, err := s.store.Get(ctx, id)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, notFound(id)
		}
		return nil, fmt.Errorf("get record: %w", err)
	}
	if record.Deleted {
		return nil, notFound(id)
	}
	return record, nil
}

// Delete soft-deletes a live record.
func (s *Service) Delete(ctx context.Context, id uuid.UUID, correlationID string) error {
	ctx, span := tracer.Start(ctx, "dtro.Delete",
		trace.WithAttributes(attribute.String("record_id", id.String())))
	defer span.End()

	record, err := s.store.Get(ctx, id)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return notFound(id)
		}
		return fmt.Errorf("get record: %w", err)
	}
	if record.Deleted {
		return notFound(id)
	}

	now := s.now().UTC()
	if err := s.store.SoftDelete(ctx, id, now); err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return notFound(id)
		}
		return fmt.Errorf("delete record: %w", err)
	}

	s.logger.Info("record deleted", "record_id", id)
	s.notify(record, models.EventDelete, now, correlationID)
	return nil
}

// Search evaluates OR-combined queries over the stored documents and returns
// one result page. Candidates are narrowed by creation time where every query
// supplies a publication-time bound; the filtering engine applies the rest.
func (s *Service) Search(ctx context.Context, criteria models.SearchCriteria) (models.PaginatedResponse[models.SearchResult], error) {
	ctx, span := tracer.Start(ctx, "dtro.Search",
		trace.WithAttributes(attribute.Int("query_count", len(criteria.Queries))))
	defer span.End()

	var zero models.PaginatedResponse[models.SearchResult]
	now := s.now()

	var since time.Time
	allBounded := len(criteria.Queries) > 0
	for _, query := range criteria.Queries {
		if query.PublicationTime == nil {
			allBounded = false
			continue
		}
		if query.PublicationTime.After(now) {
			return zero, apierrors.New(apierrors.CodeBadRequest,
				"The datetime for the publicationTime field cannot be in the future.")
		}
	}
	if allBounded {
		since = *criteria.Queries[0].PublicationTime
		for _, query := range criteria.Queries[1:] {
			if query.PublicationTime.Before(since) {
				since = *query.PublicationTime
			}
		}
		since = since.UTC()
	}

	records, err := s.store.FindSince(ctx, since)
	if err != nil {
		return zero, fmt.Errorf("fetch search candidates: %w", err)
	}
	return s.filtering.Filter(records, criteria)
}

// Events reports create/update/delete changes since a timestamp.
func (s *Service) Events(ctx context.Context, search models.EventSearch) (models.EventSearchResult, error) {
	ctx, span := tracer.Start(ctx, "dtro.Events")
	defer span.End()

	var zero models.EventSearchResult

	if search.Since.After(s.now()) {
		return zero, apierrors.New(apierrors.CodeBadRequest,
			"The datetime for the since field cannot be in the future.")
	}

	records, err := s.store.FindSince(ctx, search.Since.UTC())
	if err != nil {
		return zero, fmt.Errorf("fetch event candidates: %w", err)
	}
	return s.filtering.FilterEvents(records, search)
}

// SchemaVersions lists the schema versions submissions can declare.
func (s *Service) SchemaVersions() ([]string, error) {
	return s.schemas.Versions()
}

// Schema returns the raw schema document for a version.
func (s *Service) Schema(version string) (map[string]any, error) {
	schema, err := s.schemas.Schema(version)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, apierrors.New(apierrors.CodeNotFound, "Schema version not found")
		}
		return nil, err
	}
	return schema, nil
}

// validate runs the three validation stages in order: structural schema
// checks, declarative logic rules, then semantic condition and coordinate
// checks. An unknown schema version is not-found, not a validation failure.
func (s *Service) validate(ctx context.Context, record *models.Record) error {
	messages, err := s.schemas.Validate(record.SchemaVersion, record.Data)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return apierrors.New(apierrors.CodeNotFound, "Schema version not found")
		}
		return fmt.Errorf("schema validation: %w", err)
	}
	if len(messages) > 0 {
		failures := make([]validation.SemanticError, 0, len(messages))
		for _, message := range messages {
			failures = append(failures, validation.SemanticError{Message: message})
		}
		return &ValidationFailure{Errors: failures}
	}

	logicErrors, err := s.logic.ValidateCreation(ctx, record)
	if err != nil {
		return fmt.Errorf("logic validation: %w", err)
	}
	if len(logicErrors) > 0 {
		return &ValidationFailure{Errors: logicErrors}
	}

	semanticErrors, err := s.semantics.ValidateCreation(record)
	if err != nil {
		return fmt.Errorf("semantic validation: %w", err)
	}
	if len(semanticErrors) > 0 {
		return &ValidationFailure{Errors: semanticErrors}
	}
	return nil
}

func (s *Service) notify(record *models.Record, eventType models.EventType, eventTime time.Time, correlationID string) {
	if s.publisher == nil {
		return
	}
	s.publisher.Enqueue(events.Notice(record, eventType, eventTime, correlationID))
}

func notFound(id uuid.UUID) error {
	return apierrors.Newf(apierrors.CodeNotFound, "D-TRO with id %s not found", id)
}
