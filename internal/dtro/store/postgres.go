package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"dtro/internal/dtro/models"
	"dtro/internal/spatial"
	"dtro/pkg/platform/sentinel"
)

// SchemaDDL creates the dtros table. Applied by EnsureSchema on startup and
// by integration tests against a fresh database.
const SchemaDDL = `
CREATE TABLE IF NOT EXISTS dtros (
	id uuid PRIMARY KEY,
	schema_version text NOT NULL,
	data jsonb NOT NULL,
	created timestamptz,
	last_updated timestamptz,
	created_correlation_id text NOT NULL DEFAULT '',
	last_updated_correlation_id text NOT NULL DEFAULT '',
	deleted boolean NOT NULL DEFAULT false,
	deletion_time timestamptz,
	traffic_authority_id integer NOT NULL DEFAULT 0,
	tro_name text NOT NULL DEFAULT '',
	regulation_types text[] NOT NULL DEFAULT '{}',
	vehicle_types text[] NOT NULL DEFAULT '{}',
	order_reporting_points text[] NOT NULL DEFAULT '{}',
	regulation_start timestamptz,
	regulation_end timestamptz,
	location_west double precision NOT NULL DEFAULT 0,
	location_south double precision NOT NULL DEFAULT 0,
	location_east double precision NOT NULL DEFAULT 0,
	location_north double precision NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_dtros_created ON dtros (created);
CREATE INDEX IF NOT EXISTS idx_dtros_traffic_authority ON dtros (traffic_authority_id);
`

// PostgresStore persists D-TRO records in PostgreSQL.
type PostgresStore struct {
	db         *sql.DB
	projection *spatial.Projection
}

// NewPostgres constructs a PostgreSQL-backed record store.
func NewPostgres(db *sql.DB, projection *spatial.Projection) (*PostgresStore, error) {
	if db == nil {
		return nil, fmt.Errorf("database handle is required")
	}
	if projection == nil {
		return nil, fmt.Errorf("projection is required")
	}
	return &PostgresStore{db: db, projection: projection}, nil
}

// EnsureSchema applies the table definition.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, SchemaDDL); err != nil {
		return fmt.Errorf("ensure dtros schema: %w", err)
	}
	return nil
}

func (s *PostgresStore) CanSearch() bool { return true }

func (s *PostgresStore) Exists(ctx context.Context, id uuid.UUID) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM dtros WHERE id = $1 AND NOT deleted)`, id,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check record exists: %w", err)
	}
	return exists, nil
}

const recordColumns = `id, schema_version, data, created, last_updated,
	created_correlation_id, last_updated_correlation_id, deleted, deletion_time,
	traffic_authority_id, tro_name, regulation_types, vehicle_types,
	order_reporting_points, regulation_start, regulation_end,
	location_west, location_south, location_east, location_north`

func (s *PostgresStore) Get(ctx context.Context, id uuid.UUID) (*models.Record, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+recordColumns+` FROM dtros WHERE id = $1`, id)
	record, err := scanRecord(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("get record: %w", err)
	}
	return record, nil
}

func (s *PostgresStore) Save(ctx context.Context, record *models.Record) error {
	data, err := marshalData(record)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO dtros (`+recordColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20)`,
		record.ID, record.SchemaVersion.String(), data,
		nullTime(record.Created), nullTime(record.LastUpdated),
		record.CreatedCorrelationID, record.LastUpdatedCorrelationID,
		record.Deleted, nullTime(record.DeletionTime),
		record.TrafficAuthorityID, record.TroName,
		pq.Array(record.RegulationTypes), pq.Array(record.VehicleTypes),
		pq.Array(record.OrderReportingPoints),
		nullTime(record.RegulationStart), nullTime(record.RegulationEnd),
		record.Location.West, record.Location.South, record.Location.East, record.Location.North,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code.Name() == "unique_violation" {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("save record: %w", err)
	}
	return nil
}

func (s *PostgresStore) Update(ctx context.Context, record *models.Record) error {
	data, err := marshalData(record)
	if err != nil {
		return err
	}
	result, err := s.db.ExecContext(ctx, `
		UPDATE dtros SET
			schema_version = $2, data = $3, last_updated = $4,
			last_updated_correlation_id = $5,
			traffic_authority_id = $6, tro_name = $7,
			regulation_types = $8, vehicle_types = $9, order_reporting_points = $10,
			regulation_start = $11, regulation_end = $12,
			location_west = $13, location_south = $14, location_east = $15, location_north = $16
		WHERE id = $1 AND NOT deleted`,
		record.ID, record.SchemaVersion.String(), data,
		nullTime(record.LastUpdated), record.LastUpdatedCorrelationID,
		record.TrafficAuthorityID, record.TroName,
		pq.Array(record.RegulationTypes), pq.Array(record.VehicleTypes),
		pq.Array(record.OrderReportingPoints),
		nullTime(record.RegulationStart), nullTime(record.RegulationEnd),
		record.Location.West, record.Location.South, record.Location.East, record.Location.North,
	)
	if err != nil {
		return fmt.Errorf("update record: %w", err)
	}
	return requireRow(result)
}

func (s *PostgresStore) SoftDelete(ctx context.Context, id uuid.UUID, deletionTime time.Time) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE dtros SET deleted = true, deletion_time = $2 WHERE id = $1 AND NOT deleted`,
		id, deletionTime,
	)
	if err != nil {
		return fmt.Errorf("delete record: %w", err)
	}
	return requireRow(result)
}

func (s *PostgresStore) Find(ctx context.Context, criteria models.SearchCriteria) (models.PaginatedResult[models.Record], error) {
	var zero models.PaginatedResult[models.Record]

	where, args, err := s.buildDisjunction(criteria.Queries)
	if err != nil {
		return zero, err
	}
	if where == "" {
		return zero, nil
	}
	if criteria.Page < 1 || criteria.PageSize < 1 {
		return zero, nil
	}

	query := `SELECT ` + recordColumns + `, count(*) OVER () AS total_count
		FROM dtros WHERE ` + where + `
		ORDER BY created
		LIMIT ` + placeholder(len(args)+1) + ` OFFSET ` + placeholder(len(args)+2)
	args = append(args, criteria.PageSize, (criteria.Page-1)*criteria.PageSize)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return zero, fmt.Errorf("find records: %w", err)
	}
	defer rows.Close()

	var page models.PaginatedResult[models.Record]
	for rows.Next() {
		record, total, err := scanRecordWithTotal(rows)
		if err != nil {
			return zero, fmt.Errorf("find records: %w", err)
		}
		page.Results = append(page.Results, *record)
		page.TotalCount = total
	}
	if err := rows.Err(); err != nil {
		return zero, fmt.Errorf("find records: %w", err)
	}

	// An out-of-range page returns no rows, losing the window count.
	if page.Results == nil {
		countQuery := `SELECT count(*) FROM dtros WHERE ` + where
		if err := s.db.QueryRowContext(ctx, countQuery, args[:len(args)-2]...).Scan(&page.TotalCount); err != nil {
			return zero, fmt.Errorf("count records: %w", err)
		}
	}
	return page, nil
}

func (s *PostgresStore) FindSince(ctx context.Context, since time.Time) ([]models.Record, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+recordColumns+` FROM dtros WHERE created >= $1 ORDER BY created`, since)
	if err != nil {
		return nil, fmt.Errorf("find records since: %w", err)
	}
	defer rows.Close()

	var records []models.Record
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("find records since: %w", err)
		}
		records = append(records, *record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("find records since: %w", err)
	}
	return records, nil
}

// buildDisjunction compiles the OR-of-ANDs search into a WHERE clause.
func (s *PostgresStore) buildDisjunction(queries []models.SearchQuery) (string, []any, error) {
	builder := newPredicateBuilder()
	var disjuncts []string

	for _, query := range queries {
		builder.conjuncts = nil
		if query.DeletionTime != nil {
			builder.add("deletion_time >= " + builder.bind(*query.DeletionTime))
		} else {
			builder.add("NOT deleted")
		}
		if err := s.appendPredicates(builder, query); err != nil {
			return "", nil, err
		}
		disjuncts = append(disjuncts, "("+strings.Join(builder.conjuncts, " AND ")+")")
	}

	if len(disjuncts) == 0 {
		return "", nil, nil
	}
	return strings.Join(disjuncts, " OR "), builder.args, nil
}

// appendPredicates compiles the explicit predicates of one conjunction. The
// deletion scope is handled by the caller, which differs between search and
// event queries.
func (s *PostgresStore) appendPredicates(b *predicateBuilder, query models.SearchQuery) error {
	if query.HighwayAuthorityID != nil {
		b.add("traffic_authority_id = " + b.bind(*query.HighwayAuthorityID))
	}
	if query.PublicationTime != nil {
		b.add("created >= " + b.bind(*query.PublicationTime))
	}
	if query.TroName != nil {
		b.add("strpos(lower(tro_name), lower(" + b.bind(*query.TroName) + ")) > 0")
	}
	if query.RegulationType != nil {
		b.add(b.bind(*query.RegulationType) + " = ANY (regulation_types)")
	}
	if query.VehicleType != nil {
		b.add(b.bind(*query.VehicleType) + " = ANY (vehicle_types)")
	}
	if query.OrderReportingPoint != nil {
		b.add(b.bind(*query.OrderReportingPoint) + " = ANY (order_reporting_points)")
	}
	if query.RegulationStart != nil {
		op, err := sqlComparator(query.RegulationStart.Operator)
		if err != nil {
			return err
		}
		b.add("regulation_start " + op + " " + b.bind(query.RegulationStart.Value))
	}
	if query.RegulationEnd != nil {
		op, err := sqlComparator(query.RegulationEnd.Operator)
		if err != nil {
			return err
		}
		b.add("regulation_end " + op + " " + b.bind(query.RegulationEnd.Value))
	}
	if query.Location != nil {
		box := matcher{projection: s.projection}.queryBox(*query.Location)
		b.add("location_east >= " + b.bind(box.West) +
			" AND location_west <= " + b.bind(box.East) +
			" AND location_north >= " + b.bind(box.South) +
			" AND location_south <= " + b.bind(box.North))
	}
	return nil
}

func sqlComparator(operator models.ComparisonOperator) (string, error) {
	switch operator {
	case models.OperatorEqual:
		return "=", nil
	case models.OperatorLessThan:
		return "<", nil
	case models.OperatorLessThanOrEqual:
		return "<=", nil
	case models.OperatorGreaterThan:
		return ">", nil
	case models.OperatorGreaterThanOrEqual:
		return ">=", nil
	default:
		return "", fmt.Errorf("unknown comparison operator %q", operator)
	}
}

// predicateBuilder accumulates SQL conjuncts and their positional arguments.
type predicateBuilder struct {
	conjuncts []string
	args      []any
}

func newPredicateBuilder() *predicateBuilder {
	return &predicateBuilder{}
}

// bind appends an argument and returns its placeholder.
func (b *predicateBuilder) bind(arg any) string {
	b.args = append(b.args, arg)
	return placeholder(len(b.args))
}

func (b *predicateBuilder) add(conjunct string) {
	b.conjuncts = append(b.conjuncts, conjunct)
}

func placeholder(n int) string {
	return fmt.Sprintf("$%d", n)
}

func requireRow(result sql.Result) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func nullTime(value *time.Time) sql.NullTime {
	if value == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *value, Valid: true}
}

func timePtr(value sql.NullTime) *time.Time {
	if !value.Valid {
		return nil
	}
	t := value.Time
	return &t
}
