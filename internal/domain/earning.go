package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type EarningStatus string

const (
	EarningPending  EarningStatus = "pending"
	EarningApproved EarningStatus = "approved"
	EarningRejected EarningStatus = "rejected"
)

func ParseEarningStatus(s string) (EarningStatus, bool) {
	switch EarningStatus(s) {
	case EarningPending, EarningApproved, EarningRejected:
		return EarningStatus(s), true
	default:
		return "", false
	}
}

// Earning is a member's "watch ad" reward claim awaiting admin review.
type Earning struct {
	ID              uuid.UUID     `json:"id"`
	UserID          uuid.UUID     `json:"user_id"`
	MemberName      string        `json:"member_name"`
	AdID            string        `json:"ad_id"`
	Amount          float64       `json:"amount"`
	Status          EarningStatus `json:"status"`
	ReviewedBy      *uuid.UUID    `json:"reviewed_by,omitempty"`
	ReviewedAt      *time.Time    `json:"reviewed_at,omitempty"`
	RejectionReason string        `json:"rejection_reason,omitempty"`
	CreatedAt       time.Time     `json:"created_at"`
}

type EarningFilter struct {
	Status EarningStatus // empty means any
	Limit  int
	Offset int
}

type EarningRepository interface {
	List(ctx context.Context, filter EarningFilter) ([]Earning, error)
	Approve(ctx context.Context, earningID, adminID uuid.UUID) (*Earning, error)
	Reject(ctx context.Context, earningID, adminID uuid.UUID, reason string) (*Earning, error)
}
