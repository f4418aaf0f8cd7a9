//go:build integration

package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"dtro/internal/dtro/models"
	"dtro/internal/spatial"
	"dtro/pkg/platform/sentinel"
	"dtro/pkg/testutil/containers"
)

// =============================================================================
// Postgres Store Integration Test Suite
// =============================================================================

// Justification for integration tests: the Postgres store compiles the search
// semantics to SQL instead of sharing the in-memory matcher, so the predicate
// translation needs verifying against a real database.
type PostgresStoreSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *PostgresStore
}

func TestPostgresStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	s.postgres = containers.NewPostgresContainer(s.T())

	var err error
	s.store, err = NewPostgres(s.postgres.DB, spatial.NewProjection())
	s.Require().NoError(err)
	s.Require().NoError(s.store.EnsureSchema(context.Background()))
}

func (s *PostgresStoreSuite) SetupTest() {
	_, err := s.postgres.DB.Exec(`TRUNCATE dtros`)
	s.Require().NoError(err)
}

func (s *PostgresStoreSuite) TestCrud() {
	ctx := context.Background()
	record := makeRecord("No waiting on High Street", 10, time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC))

	s.Run("save then get round-trips the record and its index", func() {
		s.Require().NoError(s.store.Save(ctx, record))

		got, err := s.store.Get(ctx, record.ID)
		s.Require().NoError(err)
		s.Equal(record.TroName, got.TroName)
		s.Equal(record.SchemaVersion, got.SchemaVersion)
		s.Equal(record.VehicleTypes, got.VehicleTypes)
		s.Equal(record.Location, got.Location)
		s.Require().NotNil(got.Created)
		s.True(got.Created.Equal(*record.Created))
	})

	s.Run("duplicate saves conflict", func() {
		s.ErrorIs(s.store.Save(ctx, record), sentinel.ErrConflict)
	})

	s.Run("update replaces a live record", func() {
		updated := *record
		updated.TroName = "No waiting on Low Street"
		s.Require().NoError(s.store.Update(ctx, &updated))

		got, err := s.store.Get(ctx, record.ID)
		s.Require().NoError(err)
		s.Equal("No waiting on Low Street", got.TroName)
	})

	s.Run("soft delete hides the record from exists", func() {
		s.Require().NoError(s.store.SoftDelete(ctx, record.ID, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)))

		exists, err := s.store.Exists(ctx, record.ID)
		s.Require().NoError(err)
		s.False(exists)

		s.ErrorIs(s.store.SoftDelete(ctx, record.ID, time.Now()), sentinel.ErrNotFound)
		s.ErrorIs(s.store.Update(ctx, record), sentinel.ErrNotFound)
	})
}

func (s *PostgresStoreSuite) TestFind() {
	ctx := context.Background()
	highStreet := makeRecord("No waiting on High Street", 10, time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC))
	lowStreet := makeRecord("Speed limit on Low Street", 20, time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC))
	lowStreet.RegulationTypes = []string{"speedLimit"}
	deleted := makeRecord("Deleted order", 30, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	s.Require().NoError(s.store.Save(ctx, highStreet))
	s.Require().NoError(s.store.Save(ctx, lowStreet))
	s.Require().NoError(s.store.Save(ctx, deleted))
	s.Require().NoError(s.store.SoftDelete(ctx, deleted.ID, time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)))

	s.Run("name, authority and membership predicates translate to SQL", func() {
		page, err := s.store.Find(ctx, criteria(models.SearchQuery{TroName: strPtr("HIGH street")}))
		s.Require().NoError(err)
		s.Require().Len(page.Results, 1)
		s.Equal(highStreet.ID, page.Results[0].ID)

		page, err = s.store.Find(ctx, criteria(models.SearchQuery{
			HighwayAuthorityID: intPtr(20),
			RegulationType:     strPtr("speedLimit"),
		}))
		s.Require().NoError(err)
		s.Require().Len(page.Results, 1)
		s.Equal(lowStreet.ID, page.Results[0].ID)
	})

	s.Run("queries combine as alternatives with a total count", func() {
		page, err := s.store.Find(ctx, criteria(
			models.SearchQuery{TroName: strPtr("high street")},
			models.SearchQuery{HighwayAuthorityID: intPtr(20)},
		))
		s.Require().NoError(err)
		s.Len(page.Results, 2)
		s.Equal(2, page.TotalCount)
	})

	s.Run("a wgs84 location query is projected before matching", func() {
		page, err := s.store.Find(ctx, criteria(models.SearchQuery{Location: &models.Location{
			Crs:  spatial.CrsWgs84,
			Bbox: spatial.BoundingBox{West: -0.2, South: 51.4, East: 0, North: 51.6},
		}}))
		s.Require().NoError(err)
		s.Len(page.Results, 2)
	})

	s.Run("the deletion scope swaps live for deleted records", func() {
		page, err := s.store.Find(ctx, criteria(models.SearchQuery{
			DeletionTime: timePtrOf(time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC)),
		}))
		s.Require().NoError(err)
		s.Require().Len(page.Results, 1)
		s.Equal(deleted.ID, page.Results[0].ID)
	})

	s.Run("an out-of-range page keeps the total count", func() {
		page, err := s.store.Find(ctx, models.SearchCriteria{
			Page: 5, PageSize: 2,
			Queries: []models.SearchQuery{{VehicleType: strPtr("bus")}},
		})
		s.Require().NoError(err)
		s.Empty(page.Results)
		s.Equal(2, page.TotalCount)
	})
}

func (s *PostgresStoreSuite) TestFindSince() {
	ctx := context.Background()
	live := makeRecord("live order", 10, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	deleted := makeRecord("deleted order", 10, time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC))
	old := makeRecord("too old", 10, time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC))
	s.Require().NoError(s.store.Save(ctx, live))
	s.Require().NoError(s.store.Save(ctx, deleted))
	s.Require().NoError(s.store.Save(ctx, old))
	s.Require().NoError(s.store.SoftDelete(ctx, deleted.ID, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)))

	records, err := s.store.FindSince(ctx, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	s.Require().NoError(err)
	s.Require().Len(records, 2)
	s.Equal(live.ID, records[0].ID)
	s.Equal(deleted.ID, records[1].ID)
	s.True(records[1].Deleted)
}
