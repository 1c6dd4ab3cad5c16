package history

import (
	"context"
	"database/sql"
)

type Repository interface {
	Save(ctx context.Context, c *Conversion) error
	List(ctx context.Context, limit, offset int) ([]Conversion, error)
	Get(ctx context.Context, id string) (*Conversion, error)
	Count(ctx context.Context) (int, error)
}

type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo {
	return &PostgresRepo{db: db}
}

func (r *PostgresRepo) Save(ctx context.Context, c *Conversion) error {
	query := `INSERT INTO conversions (id, kind, filename, hash, status, error, duration_ms, correlation_id) VALUES ($1, $2, $3, $4, $5, $6, $7, $8) RETURNING created_at`
	return r.db.QueryRowContext(ctx, query, c.ID, c.Kind, c.Filename, c.Hash, c.Status, c.Error, c.DurationMs, c.CorrelationID).Scan(&c.CreatedAt)
}

func (r *PostgresRepo) List(ctx context.Context, limit, offset int) ([]Conversion, error) {
	query := `SELECT id, kind, filename, hash, status, error, duration_ms, correlation_id, created_at FROM conversions ORDER BY created_at DESC LIMIT $1 OFFSET $2`
	rows, err := r.db.QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Conversion
	for rows.Next() {
		var c Conversion
		if err := rows.Scan(&c.ID, &c.Kind, &c.Filename, &c.Hash, &c.Status, &c.Error, &c.DurationMs, &c.CorrelationID, &c.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *PostgresRepo) Get(ctx context.Context, id string) (*Conversion, error) {
	c := &Conversion{}
	query := `SELECT id, kind, filename, hash, status, error, duration_ms, correlation_id, created_at FROM conversions WHERE id = $1`
	err := r.db.QueryRowContext(ctx, query, id).Scan(&c.ID, &c.Kind, &c.Filename, &c.Hash, &c.Status, &c.Error, &c.DurationMs, &c.CorrelationID, &c.CreatedAt)
	if err != nil {
		return nil, err
	}
	return c, nil
}

func (r *PostgresRepo) Count(ctx context.Context) (int, error) {
	var count int
	query := `SELECT COUNT(*) FROM conversions`
	err := r.db.QueryRowContext(ctx, query).Scan(&count)
	return count, err
}
