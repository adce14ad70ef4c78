package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/wozamali/admin-console/internal/domain"
)

const (
	sqlStateNoDataFound = "P0002"
	sqlStateNotPending  = "WZ409"
)

// earningColumns must match the Scan order in scanEarning. Expects the
// earning aliased as e.
const earningColumns = `e.id, e.user_id, COALESCE(p.full_name, ''), e.ad_id, e.amount, e.status,
	e.reviewed_by, e.reviewed_at, COALESCE(e.rejection_reason, ''), e.created_at`

type EarningRepo struct {
	pool *pgxpool.Pool
}

func NewEarningRepo(pool *pgxpool.Pool) *EarningRepo {
	return &EarningRepo{pool: pool}
}

func scanEarning(row pgx.Row) (*domain.Earning, error) {
	var (
		e      domain.Earning
		status string
	)
	if err := row.Scan(&e.ID, &e.UserID, &e.MemberName, &e.AdID, &e.Amount, &status,
		&e.ReviewedBy, &e.ReviewedAt, &e.RejectionReason, &e.CreatedAt); err != nil {
		return nil, err
	}
	e.Status = domain.EarningStatus(status)
	return &e, nil
}

// List returns earnings newest first. Limit 0 means no limit.
func (r *EarningRepo) List(ctx context.Context, filter domain.EarningFilter) ([]domain.Earning, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+earningColumns+`
		FROM watch_ad_earnings e
		LEFT JOIN profiles p ON p.id = e.user_id
		WHERE ($1::text = '' OR e.status = $1::text)
		ORDER BY e.created_at DESC, e.id
		LIMIT NULLIF($2::int, 0) OFFSET $3`,
		string(filter.Status), filter.Limit, filter.Offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list earnings: %w", err)
	}
	defer rows.Close()

	earnings := []domain.Earning{}
	for rows.Next() {
		e, err := scanEarning(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan earning: %w", err)
		}
		earnings = append(earnings, *e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list earnings: %w", err)
	}
	return earnings, nil
}

// Approve runs approve_watch_ad_earning, which also credits the member's wallet.
func (r *EarningRepo) Approve(ctx context.Context, earningID, adminID uuid.UUID) (*domain.Earning, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+earningColumns+`
		FROM approve_watch_ad_earning($1, $2) e
		LEFT JOIN profiles p ON p.id = e.user_id`, earningID, adminID)
	e, err := scanEarning(row)
	if err != nil {
		return nil, mapProcedureError("approve earning", err)
	}
	return e, nil
}

func (r *EarningRepo) Reject(ctx context.Context, earningID, adminID uuid.UUID, reason string) (*domain.Earning, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+earningColumns+`
		FROM reject_watch_ad_earning($1, $2, $3) e
		LEFT JOIN profiles p ON p.id = e.user_id`, earningID, adminID, reason)
	e, err := scanEarning(row)
	if err != nil {
		return nil, mapProcedureError("reject earning", err)
	}
	return e, nil
}

func mapProcedureError(op string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case sqlStateNoDataFound:
			return domain.ErrEarningNotFound
		case sqlStateNotPending:
			return domain.ErrNotPending
		}
	}
	return fmt.Errorf("failed to %s: %w", op, err)
}
