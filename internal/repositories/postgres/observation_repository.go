package postgres

import (
	"context"
	"fmt"

	"github.com/chrisdamba/availmap/internal/models"
	"github.com/chrisdamba/availmap/internal/repositories"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// DB is the subset of *pgxpool.Pool used by the repository.
type DB interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error)
}

var (
	_ DB                                 = (*pgxpool.Pool)(nil)
	_ repositories.ObservationRepository = (*ObservationRepository)(nil)
)

type ObservationRepository struct {
	db    DB
	table pgx.Identifier
}

func NewObservationRepository(db DB, table string) *ObservationRepository {
	return &ObservationRepository{db: db, table: pgx.Identifier{table}}
}

// Connect opens a pgx pool and verifies it with a ping.
func Connect(ctx context.Context, url string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return pool, nil
}

func (r *ObservationRepository) BulkCreate(ctx context.Context, observations []models.Observation) error {
	n, err := r.db.CopyFrom(ctx, r.table, []string{"lat", "lon", "hod"},
		pgx.CopyFromSlice(len(observations), func(i int) ([]any, error) {
			o := observations[i]
			return []any{o.Lat, o.Lon, int32(o.Hod)}, nil
		}))
	if err != nil {
		return fmt.Errorf("copy observations into %s: %w", r.table.Sanitize(), err)
	}
	if int(n) != len(observations) {
		return fmt.Errorf("copy observations into %s: wrote %d of %d rows", r.table.Sanitize(), n, len(observations))
	}
	return nil
}

func (r *ObservationRepository) GetAll(ctx context.Context) ([]models.Observation, error) {
	query := fmt.Sprintf("SELECT lat, lon, hod FROM %s", r.table.Sanitize())

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query observations: %w", err)
	}
	defer rows.Close()

	var observations []models.Observation
	for rows.Next() {
		var o models.Observation
		var hod int32
		if err := rows.Scan(&o.Lat, &o.Lon, &hod); err != nil {
			return nil, fmt.Errorf("scan observation %d: %w", len(observations)+1, err)
		}
		o.Hod = int(hod)
		if err := o.Validate(); err != nil {
			return nil, fmt.Errorf("observation %d: %w", len(observations)+1, err)
		}
		observations = append(observations, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read observations: %w", err)
	}
	return observations, nil
}

func (r *ObservationRepository) Count(ctx context.Context) (int, error) {
	var count int
	err := r.db.QueryRow(ctx, fmt.Sprintf("SELECT COUNT(*) FROM %s", r.table.Sanitize())).Scan(&count)
	return count, err
}

func (r *ObservationRepository) DeleteAll(ctx context.Context) error {
	_, err := r.db.Exec(ctx, fmt.Sprintf("TRUNCATE TABLE %s", r.table.Sanitize()))
	return err
}
