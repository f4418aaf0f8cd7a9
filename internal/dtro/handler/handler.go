// Package handler exposes the D-TRO operations over HTTP.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"dtro/internal/dtro/models"
	"dtro/internal/dtro/service"
	"dtro/internal/platform/config"
	"dtro/internal/platform/metrics"
	"dtro/internal/platform/middleware"
	"dtro/pkg/apierrors"
	"dtro/pkg/platform/sentinel"
)

// Service defines the interface for D-TRO operations.
type Service interface {
	Create(ctx context.Context, submission service.Submission, correlationID string) (*models.Record, error)
	Update(ctx context.Context, id uuid.UUID, submission service.Submission, correlationID string) (*models.Record, error)
	Get(ctx context.Context, id uuid.UUID) (*models.Record, error)
	Delete(ctx context.Context, id uuid.UUID, correlationID string) error
	Search(ctx context.Context, criteria models.SearchCriteria) (models.PaginatedResponse[models.SearchResult], error)
	Events(ctx context.Context, search models.EventSearch) (models.EventSearchResult, error)
	SchemaVersions() ([]string, error)
	Schema(version string) (map[string]any, error)
}

// Handler handles the D-TRO endpoints.
type Handler struct {
	logger       *slog.Logger
	service      Service
	metrics      *metrics.Metrics
	features     config.FeatureFlags
	jwtValidator middleware.JWTValidator
}

// New creates a new D-TRO Handler.
func New(
	svc Service,
	logger *slog.Logger,
	m *metrics.Metrics,
	features config.FeatureFlags,
	jwtValidator middleware.JWTValidator) *Handler {
	return &Handler{
		logger:       logger,
		service:      svc,
		metrics:      m,
		features:     features,
		jwtValidator: jwtValidator,
	}
}

// Register registers the D-TRO routes with the chi router.
func (h *Handler) Register(r chi.Router) {
	router := chi.NewRouter()
	router.Use(middleware.Recovery(h.logger))
	router.Use(middleware.RequestID)
	router.Use(middleware.CorrelationID)
	router.Use(middleware.Logger(h.logger))
	router.Use(middleware.Timeout(30 * time.Second))
	router.Use(middleware.ContentTypeJSON)
	router.Use(middleware.Latency(h.metrics))
	router.Use(middleware.RequireAuth(h.jwtValidator, h.logger))

	router.Group(func(r chi.Router) {
		r.Use(h.requireFeature(h.features.DtroWrite))
		r.Post("/v1/dtros", h.handleCreate)
		r.Put("/v1/dtros/{id}", h.handleUpdate)
		r.Delete("/v1/dtros/{id}", h.handleDelete)
	})

	router.Group(func(r chi.Router) {
		r.Use(h.requireFeature(h.features.DtroRead))
		r.Get("/v1/dtros/{id}", h.handleGet)
		r.Post("/v1/search", h.handleSearch)
		r.Post("/v1/events", h.handleEvents)
		r.Get("/v1/schemas", h.handleSchemaVersions)
		r.Get("/v1/schemas/{version}", h.handleSchema)
	})

	r.Mount("/", router)
}

// requireFeature hides a route group on deployments where its surface is
// switched off.
func (h *Handler) requireFeature(enabled bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !enabled {
				h.writeError(w, r, apierrors.New(apierrors.CodeNotFound, "Not found"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var submission service.Submission
	if err := json.NewDecoder(r.Body).Decode(&submission); err != nil {
		h.writeError(w, r, apierrors.New(apierrors.CodeBadRequest, "invalid request body"))
		return
	}

	record, err := h.service.Create(ctx, submission, middleware.GetCorrelationID(ctx))
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	h.metrics.RecordsCreated.Inc()
	h.writeJSON(w, r, http.StatusCreated, idResponse{ID: record.ID})
}

func (h *Handler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	id, err := h.recordID(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	var submission service.Submission
	if err := json.NewDecoder(r.Body).Decode(&submission); err != nil {
		h.writeError(w, r, apierrors.New(apierrors.CodeBadRequest, "invalid request body"))
		return
	}

	record, err := h.service.Update(ctx, id, submission, middleware.GetCorrelationID(ctx))
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	h.metrics.RecordsUpdated.Inc()
	h.writeJSON(w, r, http.StatusOK, idResponse{ID: record.ID})
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	id, err := h.recordID(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	record, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	h.writeJSON(w, r, http.StatusOK, record)
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	id, err := h.recordID(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	if err := h.service.Delete(ctx, id, middleware.GetCorrelationID(ctx)); err != nil {
		h.writeError(w, r, err)
		return
	}

	h.metrics.RecordsDeleted.Inc()
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleSearch(w http.ResponseWriter, r *http.Request) {
	var criteria models.SearchCriteria
	if err := json.NewDecoder(r.Body).Decode(&criteria); err != nil {
		h.writeError(w, r, apierrors.New(apierrors.CodeBadRequest, "invalid request body"))
		return
	}

	page, err := h.service.Search(r.Context(), criteria)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	h.metrics.SearchRequests.Inc()
	h.writeJSON(w, r, http.StatusOK, page)
}

func (h *Handler) handleEvents(w http.ResponseWriter, r *http.Request) {
	var search models.EventSearch
	if err := json.NewDecoder(r.Body).Decode(&search); err != nil {
		h.writeError(w, r, apierrors.New(apierrors.CodeBadRequest, "invalid request body"))
		return
	}

	result, err := h.service.Events(r.Context(), search)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	h.writeJSON(w, r, http.StatusOK, result)
}

func (h *Handler) handleSchemaVersions(w http.ResponseWriter, r *http.Request) {
	versions, err := h.service.SchemaVersions()
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, r, http.StatusOK, map[string][]string{"versions": versions})
}

func (h *Handler) handleSchema(w http.ResponseWriter, r *http.Request) {
	schema, err := h.service.Schema(chi.URLParam(r, "version"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, r, http.StatusOK, schema)
}

func (h *Handler) recordID(r *http.Request) (uuid.UUID, error) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		return uuid.Nil, apierrors.New(apierrors.CodeBadRequest, "id must be a UUID")
	}
	return id, nil
}

type idResponse struct {
	ID uuid.UUID `json:"id"`
}

type errorResponse struct {
	Error  string                  `json:"error"`
	Errors []validationErrorDetail `json:"errors,omitempty"`
}

type validationErrorDetail struct {
	Message string `json:"message"`
	Path    string `json:"path,omitempty"`
}

// writeError maps service errors onto HTTP statuses: validation failures and
// coded bad requests are the caller's fault, a missing search backend is 503,
// anything else is a 500 with the detail kept server-side.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	ctx := r.Context()

	var failure *service.ValidationFailure
	if errors.As(err, &failure) {
		h.metrics.SubmissionsFailed.Inc()
		details := make([]validationErrorDetail, 0, len(failure.Errors))
		for _, e := range failure.Errors {
			details = append(details, validationErrorDetail{Message: e.Message, Path: e.Path})
		}
		h.writeJSON(w, r, http.StatusBadRequest, errorResponse{Error: "Bad request", Errors: details})
		return
	}

	var coded *apierrors.Error
	if errors.As(err, &coded) {
		status := apierrors.ToHTTPStatus(coded.Code)
		if status >= http.StatusInternalServerError {
			h.logger.ErrorContext(ctx, "request failed",
				"error", err,
				"request_id", middleware.GetRequestID(ctx),
			)
		}
		h.writeJSON(w, r, status, errorResponse{Error: coded.Message})
		return
	}

	if errors.Is(err, sentinel.ErrUnavailable) {
		h.writeJSON(w, r, http.StatusServiceUnavailable, errorResponse{Error: "Search is not available on this instance."})
		return
	}

	h.logger.ErrorContext(ctx, "request failed",
		"error", err,
		"request_id", middleware.GetRequestID(ctx),
	)
	h.writeJSON(w, r, http.StatusInternalServerError, errorResponse{Error: "internal server error"})
}

func (h *Handler) writeJSON(w http.ResponseWriter, r *http.Request, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		h.logger.ErrorContext(r.Context(), "failed to write response",
			"error", err,
			"request_id", middleware.GetRequestID(r.Context()),
		)
	}
}
