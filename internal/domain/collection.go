package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type CollectionStatus string

const (
	CollectionPending  CollectionStatus = "pending"
	CollectionApproved CollectionStatus = "approved"
	CollectionRejected CollectionStatus = "rejected"
)

func ParseCollectionStatus(s string) (CollectionStatus, bool) {
	switch CollectionStatus(s) {
	case CollectionPending, CollectionApproved, CollectionRejected:
		return CollectionStatus(s), true
	default:
		return "", false
	}
}

// Collection is one weighed drop-off of recyclable material by a member.
type Collection struct {
	ID           uuid.UUID        `json:"id"`
	UserID       uuid.UUID        `json:"user_id"`
	MemberName   string           `json:"member_name"`
	MaterialType string           `json:"material_type"`
	WeightKg     float64          `json:"weight_kg"`
	Amount       float64          `json:"amount"`
	Status       CollectionStatus `json:"status"`
	CreatedAt    time.Time        `json:"created_at"`
	ExportedAt   *time.Time       `json:"exported_at,omitempty"`
}

type CollectionFilter struct {
	Status CollectionStatus // empty means any
	From   time.Time        // inclusive; zero means unbounded
	To     time.Time        // exclusive; zero means unbounded
	Limit  int
	Offset int
}

// Export is the audit record of one generated collection export file.
type Export struct {
	ID              uuid.UUID    `json:"id"`
	AdminID         uuid.UUID    `json:"admin_id"`
	Format          ReportFormat `json:"format"`
	Filename        string       `json:"filename"`
	CollectionCount int          `json:"collection_count"`
	From            *time.Time   `json:"from,omitempty"`
	To              *time.Time   `json:"to,omitempty"`
	CreatedAt       time.Time    `json:"created_at"`
}

type ExportRequest struct {
	AdminID  uuid.UUID
	Format   ReportFormat
	Filename string
	From     time.Time
	To       time.Time
}

type CollectionRepository interface {
	List(ctx context.Context, filter CollectionFilter) ([]Collection, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status CollectionStatus) (*Collection, error)
	ListExportable(ctx context.Context, from, to time.Time) ([]Collection, error)
	MarkExported(ctx context.Context, req ExportRequest, ids []uuid.UUID) (*Export, error)
	ListExports(ctx context.Context, limit int) ([]Export, error)
}

// ChangeNotifier tells every connected console that a table changed.
type ChangeNotifier interface {
	NotifyChange(ctx context.Context, channel ChangeChannel, id uuid.UUID) error
}

type ChangeChannel string

const (
	ChannelEarnings    ChangeChannel = "earnings_changed"
	ChannelCollections ChangeChannel = "collections_changed"
)
