package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/wozamali/admin-console/internal/domain"
)

// collectionColumns must match the Scan order in scanCollection. Expects the
// collection aliased as c.
const collectionColumns = `c.id, c.user_id, COALESCE(p.full_name, ''), c.material_type, c.weight_kg, c.amount,
	c.status, c.created_at, c.exported_at`

const exportColumns = `id, admin_id, format, filename, collection_count, range_from, range_to, created_at`

type CollectionRepo struct {
	pool *pgxpool.Pool
}

func NewCollectionRepo(pool *pgxpool.Pool) *CollectionRepo {
	return &CollectionRepo{pool: pool}
}

func scanCollection(row pgx.Row) (*domain.Collection, error) {
	var (
		c      domain.Collection
		status string
	)
	if err := row.Scan(&c.ID, &c.UserID, &c.MemberName, &c.MaterialType, &c.WeightKg, &c.Amount,
		&status, &c.CreatedAt, &c.ExportedAt); err != nil {
		return nil, err
	}
	c.Status = domain.CollectionStatus(status)
	return &c, nil
}

func scanExport(row pgx.Row) (*domain.Export, error) {
	var (
		e      domain.Export
		format string
	)
	if err := row.Scan(&e.ID, &e.AdminID, &format, &e.Filename, &e.CollectionCount, &e.From, &e.To, &e.CreatedAt); err != nil {
		return nil, err
	}
	e.Format = domain.ReportFormat(format)
	return &e, nil
}

// nullTime maps the zero time to SQL NULL, meaning "unbounded".
func nullTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

func collectRows(rows pgx.Rows, op string) ([]domain.Collection, error) {
	defer rows.Close()

	collections := []domain.Collection{}
	for rows.Next() {
		c, err := scanCollection(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan collection: %w", err)
		}
		collections = append(collections, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to %s: %w", op, err)
	}
	return collections, nil
}

// List returns collections newest first. Limit 0 means no limit.
func (r *CollectionRepo) List(ctx context.Context, filter domain.CollectionFilter) ([]domain.Collection, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+collectionColumns+`
		FROM collections c
		LEFT JOIN profiles p ON p.id = c.user_id
		WHERE ($1::text = '' OR c.status = $1::text)
		  AND ($2::timestamptz IS NULL OR c.created_at >= $2)
		  AND ($3::timestamptz IS NULL OR c.created_at < $3)
		ORDER BY c.created_at DESC, c.id
		LIMIT NULLIF($4::int, 0) OFFSET $5`,
		string(filter.Status), nullTime(filter.From), nullTime(filter.To), filter.Limit, filter.Offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list collections: %w", err)
	}
	return collectRows(rows, "list collections")
}

// UpdateStatus moves a pending collection to status.
func (r *CollectionRepo) UpdateStatus(ctx context.Context, id uuid.UUID, status domain.CollectionStatus) (*domain.Collection, error) {
	row := r.pool.QueryRow(ctx, `
		WITH c AS (
			UPDATE collections SET status = $2
			WHERE id = $1 AND status = 'pending'
			RETURNING *
		)
		SELECT `+collectionColumns+`
		FROM c
		LEFT JOIN profiles p ON p.id = c.user_id`, id, string(status))
	c, err := scanCollection(row)
	if err == nil {
		return c, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("failed to update collection status: %w", err)
	}

	var exists bool
	if err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM collections WHERE id = $1)`, id).Scan(&exists); err != nil {
		return nil, fmt.Errorf("failed to check collection: %w", err)
	}
	if !exists {
		return nil, domain.ErrCollectionNotFound
	}
	return nil, domain.ErrNotPending
}

// ListExportable returns approved, not yet exported collections in [from, to), oldest first.
func (r *CollectionRepo) ListExportable(ctx context.Context, from, to time.Time) ([]domain.Collection, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+collectionColumns+`
		FROM collections c
		LEFT JOIN profiles p ON p.id = c.user_id
		WHERE c.status = 'approved' AND c.exported_at IS NULL
		  AND ($1::timestamptz IS NULL OR c.created_at >= $1)
		  AND ($2::timestamptz IS NULL OR c.created_at < $2)
		ORDER BY c.created_at, c.id`,
		nullTime(from), nullTime(to))
	if err != nil {
		return nil, fmt.Errorf("failed to list exportable collections: %w", err)
	}
	return collectRows(rows, "list exportable collections")
}

// MarkExported stamps ids as exported and records the export in one
// transaction. If any id was exported concurrently nothing is changed.
func (r *CollectionRepo) MarkExported(ctx context.Context, req domain.ExportRequest, ids []uuid.UUID) (*domain.Export, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx,
		`UPDATE collections SET exported_at = NOW() WHERE id = ANY($1) AND exported_at IS NULL`, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to mark collections exported: %w", err)
	}
	if tag.RowsAffected() != int64(len(ids)) {
		return nil, domain.ErrAlreadyExported
	}

	export, err := scanExport(tx.QueryRow(ctx, `
		INSERT INTO collection_exports (admin_id, format, filename, collection_count, range_from, range_to)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING `+exportColumns,
		req.AdminID, string(req.Format), req.Filename, len(ids), nullTime(req.From), nullTime(req.To)))
	if err != nil {
		return nil, fmt.Errorf("failed to record export: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit export: %w", err)
	}
	return export, nil
}

func (r *CollectionRepo) ListExports(ctx context.Context, limit int) ([]domain.Export, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+exportColumns+`
		FROM collection_exports
		ORDER BY created_at DESC, id
		LIMIT NULLIF($1::int, 0)`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list exports: %w", err)
	}
	defer rows.Close()

	exports := []domain.Export{}
	for rows.Next() {
		e, err := scanExport(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan export: %w", err)
		}
		exports = append(exports, *e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list exports: %w", err)
	}
	return exports, nil
}
