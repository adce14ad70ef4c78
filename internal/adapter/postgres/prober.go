package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/wozamali/admin-console/internal/domain"
)

// Prober issues minimal reads to check that the database answers.
type Prober struct {
	pool *pgxpool.Pool
}

var _ domain.Prober = (*Prober)(nil)

func NewProber(pool *pgxpool.Pool) *Prober {
	return &Prober{pool: pool}
}

// Probe reads up to limit rows from table. An empty table is not an error.
func (p *Prober) Probe(ctx context.Context, table string, limit int) (bool, error) {
	rows, err := p.pool.Query(ctx, "SELECT 1 FROM "+pgx.Identifier{table}.Sanitize()+" LIMIT $1", limit)
	if err != nil {
		return false, fmt.Errorf("probe %s: %w", table, err)
	}
	defer rows.Close()

	found := rows.Next()
	if err := rows.Err(); err != nil {
		return false, fmt.Errorf("probe %s: %w", table, err)
	}
	return found, nil
}
