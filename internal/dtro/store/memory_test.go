package store

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"dtro/internal/dtro/models"
	"dtro/internal/spatial"
	"dtro/pkg/platform/sentinel"
)

// =============================================================================
// Memory Store Test Suite
// =============================================================================

// Justification for unit tests: the memory store is the reference
// implementation of the search semantics every backend must honour, and the
// service tests lean on it. The predicate matrix is exercised here once.
type MemoryStoreSuite struct {
	suite.Suite
	store *MemoryStore
}

func TestMemoryStoreSuite(t *testing.T) {
	suite.Run(t, new(MemoryStoreSuite))
}

func (s *MemoryStoreSuite) SetupTest() {
	var err error
	s.store, err = NewMemory(spatial.NewProjection())
	s.Require().NoError(err)
}

func makeRecord(name string, ha int, created time.Time) *models.Record {
	createdAt := created
	start := created.AddDate(0, 1, 0)
	end := created.AddDate(0, 6, 0)
	return &models.Record{
		ID:            uuid.New(),
		SchemaVersion: models.SchemaVersion{Major: 3, Minor: 1, Patch: 2},
		Data:          map[string]any{"source": map[string]any{"troName": name}},
		Created:       &createdAt,

		TrafficAuthorityID:   ha,
		TroName:              name,
		RegulationTypes:      []string{"noWaiting"},
		VehicleTypes:         []string{"bus", "taxi"},
		OrderReportingPoints: []string{"permanentNoticeOfMaking"},
		RegulationStart:      &start,
		RegulationEnd:        &end,
		// A small patch around central London in easting/northing.
		Location: spatial.BoundingBox{West: 529000, South: 180000, East: 531000, North: 182000},
	}
}

func criteria(queries ...models.SearchQuery) models.SearchCriteria {
	return models.SearchCriteria{Page: 1, PageSize: 10, Queries: queries}
}

func strPtr(v string) *string          { return &v }
func intPtr(v int) *int                { return &v }
func timePtrOf(v time.Time) *time.Time { return &v }

func (s *MemoryStoreSuite) TestCrud() {
	ctx := context.Background()
	record := makeRecord("No waiting on High Street", 10, time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC))

	s.Run("save then get round-trips", func() {
		s.Require().NoError(s.store.Save(ctx, record))

		got, err := s.store.Get(ctx, record.ID)
		s.Require().NoError(err)
		s.Equal(record.TroName, got.TroName)
		s.Equal(record.TrafficAuthorityID, got.TrafficAuthorityID)
	})

	s.Run("saving the same id twice conflicts", func() {
		s.ErrorIs(s.store.Save(ctx, record), sentinel.ErrConflict)
	})

	s.Run("missing record is not found", func() {
		_, err := s.store.Get(ctx, uuid.New())
		s.ErrorIs(err, sentinel.ErrNotFound)
	})

	s.Run("exists reports live records only", func() {
		exists, err := s.store.Exists(ctx, record.ID)
		s.Require().NoError(err)
		s.True(exists)

		exists, err = s.store.Exists(ctx, uuid.New())
		s.Require().NoError(err)
		s.False(exists)
	})

	s.Run("update replaces a live record", func() {
		updated := *record
		updated.TroName = "No waiting on Low Street"
		s.Require().NoError(s.store.Update(ctx, &updated))

		got, err := s.store.Get(ctx, record.ID)
		s.Require().NoError(err)
		s.Equal("No waiting on Low Street", got.TroName)
	})

	s.Run("updating a missing record is not found", func() {
		missing := makeRecord("ghost", 1, time.Now())
		s.ErrorIs(s.store.Update(ctx, missing), sentinel.ErrNotFound)
	})

	s.Run("soft delete hides the record from exists but not get", func() {
		deletedAt := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
		s.Require().NoError(s.store.SoftDelete(ctx, record.ID, deletedAt))

		exists, err := s.store.Exists(ctx, record.ID)
		s.Require().NoError(err)
		s.False(exists)

		got, err := s.store.Get(ctx, record.ID)
		s.Require().NoError(err)
		s.True(got.Deleted)
		s.Require().NotNil(got.DeletionTime)
		s.True(got.DeletionTime.Equal(deletedAt))
	})

	s.Run("deleting twice is not found", func() {
		s.ErrorIs(s.store.SoftDelete(ctx, record.ID, time.Now()), sentinel.ErrNotFound)
	})

	s.Run("updating a deleted record is not found", func() {
		s.ErrorIs(s.store.Update(ctx, record), sentinel.ErrNotFound)
	})
}

func (s *MemoryStoreSuite) TestFindPredicates() {
	ctx := context.Background()
	highStreet := makeRecord("No waiting on High Street", 10, time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC))
	lowStreet := makeRecord("Speed limit on Low Street", 20, time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC))
	lowStreet.RegulationTypes = []string{"speedLimit"}
	s.Require().NoError(s.store.Save(ctx, highStreet))
	s.Require().NoError(s.store.Save(ctx, lowStreet))

	s.Run("tro name matches case-insensitive substrings", func() {
		page, err := s.store.Find(ctx, criteria(models.SearchQuery{TroName: strPtr("HIGH street")}))
		s.Require().NoError(err)
		s.Require().Len(page.Results, 1)
		s.Equal(highStreet.ID, page.Results[0].ID)
	})

	s.Run("traffic authority matches exactly", func() {
		page, err := s.store.Find(ctx, criteria(models.SearchQuery{HighwayAuthorityID: intPtr(20)}))
		s.Require().NoError(err)
		s.Require().Len(page.Results, 1)
		s.Equal(lowStreet.ID, page.Results[0].ID)
	})

	s.Run("publication time is a lower bound", func() {
		page, err := s.store.Find(ctx, criteria(models.SearchQuery{
			PublicationTime: timePtrOf(time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)),
		}))
		s.Require().NoError(err)
		s.Require().Len(page.Results, 1)
		s.Equal(lowStreet.ID, page.Results[0].ID)
	})

	s.Run("list predicates test membership", func() {
		page, err := s.store.Find(ctx, criteria(models.SearchQuery{RegulationType: strPtr("speedLimit")}))
		s.Require().NoError(err)
		s.Require().Len(page.Results, 1)

		page, err = s.store.Find(ctx, criteria(models.SearchQuery{VehicleType: strPtr("bus")}))
		s.Require().NoError(err)
		s.Len(page.Results, 2)

		page, err = s.store.Find(ctx, criteria(models.SearchQuery{OrderReportingPoint: strPtr("unknown")}))
		s.Require().NoError(err)
		s.Empty(page.Results)
	})

	s.Run("regulation start honours the comparator", func() {
		page, err := s.store.Find(ctx, criteria(models.SearchQuery{
			RegulationStart: &models.DateCondition{
				Operator: models.OperatorGreaterThan,
				Value:    time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC),
			},
		}))
		s.Require().NoError(err)
		s.Require().Len(page.Results, 1)
		s.Equal(lowStreet.ID, page.Results[0].ID)
	})

	s.Run("unknown comparator is an error", func() {
		_, err := s.store.Find(ctx, criteria(models.SearchQuery{
			RegulationStart: &models.DateCondition{Operator: "Near", Value: time.Now()},
		}))
		s.Require().Error(err)
		s.Contains(err.Error(), "unknown comparison operator")
	})

	s.Run("queries combine as alternatives", func() {
		page, err := s.store.Find(ctx, criteria(
			models.SearchQuery{TroName: strPtr("high street")},
			models.SearchQuery{HighwayAuthorityID: intPtr(20)},
		))
		s.Require().NoError(err)
		s.Len(page.Results, 2)
		s.Equal(2, page.TotalCount)
	})

	s.Run("no queries match nothing", func() {
		page, err := s.store.Find(ctx, criteria())
		s.Require().NoError(err)
		s.Empty(page.Results)
		s.Zero(page.TotalCount)
	})
}

func (s *MemoryStoreSuite) TestFindLocation() {
	ctx := context.Background()
	record := makeRecord("No waiting on High Street", 10, time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC))
	s.Require().NoError(s.store.Save(ctx, record))

	s.Run("an overlapping box in the index crs matches", func() {
		page, err := s.store.Find(ctx, criteria(models.SearchQuery{Location: &models.Location{
			Crs:  spatial.CrsOsgb36,
			Bbox: spatial.BoundingBox{West: 530000, South: 181000, East: 540000, North: 190000},
		}}))
		s.Require().NoError(err)
		s.Len(page.Results, 1)
	})

	s.Run("a wgs84 box is projected before the overlap test", func() {
		page, err := s.store.Find(ctx, criteria(models.SearchQuery{Location: &models.Location{
			Crs:  spatial.CrsWgs84,
			Bbox: spatial.BoundingBox{West: -0.2, South: 51.4, East: 0, North: 51.6},
		}}))
		s.Require().NoError(err)
		s.Len(page.Results, 1)
	})

	s.Run("a disjoint box does not match", func() {
		page, err := s.store.Find(ctx, criteria(models.SearchQuery{Location: &models.Location{
			Crs:  spatial.CrsOsgb36,
			Bbox: spatial.BoundingBox{West: 0, South: 0, East: 1000, North: 1000},
		}}))
		s.Require().NoError(err)
		s.Empty(page.Results)
	})
}

func (s *MemoryStoreSuite) TestFindDeletionScope() {
	ctx := context.Background()
	live := makeRecord("live order", 10, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	deleted := makeRecord("deleted order", 10, time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC))
	s.Require().NoError(s.store.Save(ctx, live))
	s.Require().NoError(s.store.Save(ctx, deleted))
	s.Require().NoError(s.store.SoftDelete(ctx, deleted.ID, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)))

	s.Run("queries see live records by default", func() {
		page, err := s.store.Find(ctx, criteria(models.SearchQuery{HighwayAuthorityID: intPtr(10)}))
		s.Require().NoError(err)
		s.Require().Len(page.Results, 1)
		s.Equal(live.ID, page.Results[0].ID)
	})

	s.Run("a deletion time bound selects deleted records instead", func() {
		page, err := s.store.Find(ctx, criteria(models.SearchQuery{
			DeletionTime: timePtrOf(time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)),
		}))
		s.Require().NoError(err)
		s.Require().Len(page.Results, 1)
		s.Equal(deleted.ID, page.Results[0].ID)
	})

	s.Run("records deleted before the bound stay hidden", func() {
		page, err := s.store.Find(ctx, criteria(models.SearchQuery{
			DeletionTime: timePtrOf(time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC)),
		}))
		s.Require().NoError(err)
		s.Empty(page.Results)
	})
}

func (s *MemoryStoreSuite) TestFindPagination() {
	ctx := context.Background()
	for month := 1; month <= 5; month++ {
		record := makeRecord("order", 10, time.Date(2024, time.Month(month), 1, 0, 0, 0, 0, time.UTC))
		s.Require().NoError(s.store.Save(ctx, record))
	}

	s.Run("pages are ordered by creation time", func() {
		page, err := s.store.Find(ctx, models.SearchCriteria{
			Page: 2, PageSize: 2,
			Queries: []models.SearchQuery{{HighwayAuthorityID: intPtr(10)}},
		})
		s.Require().NoError(err)
		s.Require().Len(page.Results, 2)
		s.Equal(5, page.TotalCount)
		s.Equal(time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), *page.Results[0].Created)
		s.Equal(time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC), *page.Results[1].Created)
	})

	s.Run("a page past the end is empty but keeps the count", func() {
		page, err := s.store.Find(ctx, models.SearchCriteria{
			Page: 9, PageSize: 2,
			Queries: []models.SearchQuery{{HighwayAuthorityID: intPtr(10)}},
		})
		s.Require().NoError(err)
		s.Empty(page.Results)
		s.Equal(5, page.TotalCount)
	})
}

func (s *MemoryStoreSuite) TestFindSince() {
	ctx := context.Background()
	before := makeRecord("too old", 10, time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC))
	live := makeRecord("live order", 10, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	deleted := makeRecord("deleted order", 10, time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC))
	s.Require().NoError(s.store.Save(ctx, before))
	s.Require().NoError(s.store.Save(ctx, live))
	s.Require().NoError(s.store.Save(ctx, deleted))
	s.Require().NoError(s.store.SoftDelete(ctx, deleted.ID, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)))

	s.Run("deleted records stay visible to the candidate fetch", func() {
		records, err := s.store.FindSince(ctx, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
		s.Require().NoError(err)
		s.Require().Len(records, 2)
		s.Equal(live.ID, records[0].ID)
		s.Equal(deleted.ID, records[1].ID)
		s.True(records[1].Deleted)
	})

	s.Run("the zero time fetches everything", func() {
		records, err := s.store.FindSince(ctx, time.Time{})
		s.Require().NoError(err)
		s.Len(records, 3)
		s.Equal(before.ID, records[0].ID)
	})
}
