package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type AdminRole string

const (
	RoleAdmin      AdminRole = "admin"
	RoleSuperAdmin AdminRole = "super_admin"
)

// CanAccessConsole reports whether the role may sign in to the console.
func (r AdminRole) CanAccessConsole() bool {
	return r == RoleAdmin || r == RoleSuperAdmin
}

type Admin struct {
	ID        uuid.UUID
	Email     string
	FullName  string
	Role      AdminRole
	IsActive  bool
	CreatedAt time.Time
}

type AdminRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*Admin, error)
}
