package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/wozamali/admin-console/internal/domain"
)

type AdminRepo struct {
	pool *pgxpool.Pool
}

func NewAdminRepo(pool *pgxpool.Pool) *AdminRepo {
	return &AdminRepo{pool: pool}
}

func (r *AdminRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Admin, error) {
	var (
		a    domain.Admin
		role string
	)
	err := r.pool.QueryRow(ctx,
		`SELECT id, email, full_name, role, is_active, created_at FROM admin_users WHERE id = $1`, id,
	).Scan(&a.ID, &a.Email, &a.FullName, &role, &a.IsActive, &a.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrAdminNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get admin by ID: %w", err)
	}
	a.Role = domain.AdminRole(role)
	return &a, nil
}
