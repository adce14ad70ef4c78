package app

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/wozamali/admin-console/internal/adapter/metrics"
	"github.com/wozamali/admin-console/internal/domain"
)

const (
	defaultPageSize = 50
	maxPageSize     = 200
)

func clampPage(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

// ApprovalService reviews watch-ad earnings.
type ApprovalService struct {
	earnings domain.EarningRepository
	notifier domain.ChangeNotifier
	clock    clockwork.Clock
	metrics  *metrics.ReviewMetrics
}

// NewApprovalService creates the approval service. m may be nil.
func NewApprovalService(earnings domain.EarningRepository, notifier domain.ChangeNotifier, clock clockwork.Clock, m *metrics.ReviewMetrics) *ApprovalService {
	return &ApprovalService{earnings: earnings, notifier: notifier, clock: clock, metrics: m}
}

func (s *ApprovalService) ListEarnings(ctx context.Context, filter domain.EarningFilter) ([]domain.Earning, error) {
	filter.Limit, filter.Offset = clampPage(filter.Limit, filter.Offset)
	return s.earnings.List(ctx, filter)
}

// Approve marks a pending earning approved and credits the member.
func (s *ApprovalService) Approve(ctx context.Context, earningID, adminID uuid.UUID) (*domain.Earning, error) {
	start := s.clock.Now()
	earning, err := s.earnings.Approve(ctx, earningID, adminID)
	if err != nil {
		return nil, err
	}
	s.decided(start, "approved")
	s.notify(ctx, earningID)

	slog.InfoContext(ctx, "Earning approved", "earning_id", earningID.String(), "admin_id", adminID.String(), "amount", earning.Amount)
	return earning, nil
}

// Reject marks a pending earning rejected. A reason is required.
func (s *ApprovalService) Reject(ctx context.Context, earningID, adminID uuid.UUID, reason string) (*domain.Earning, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, domain.ErrReasonRequired
	}

	start := s.clock.Now()
	earning, err := s.earnings.Reject(ctx, earningID, adminID, reason)
	if err != nil {
		return nil, err
	}
	s.decided(start, "rejected")
	s.notify(ctx, earningID)

	slog.InfoContext(ctx, "Earning rejected", "earning_id", earningID.String(), "admin_id", adminID.String())
	return earning, nil
}

func (s *ApprovalService) decided(start time.Time, decision string) {
	if s.metrics == nil {
		return
	}
	s.metrics.Decisions.WithLabelValues("earning", decision).Inc()
	s.metrics.DecisionTime.Observe(s.clock.Since(start).Seconds())
}

// notify is best-effort: the decision is already committed.
func (s *ApprovalService) notify(ctx context.Context, id uuid.UUID) {
	if err := s.notifier.NotifyChange(ctx, domain.ChannelEarnings, id); err != nil {
		slog.WarnContext(ctx, "Failed to notify earning change", "earning_id", id.String(), "error", err)
	}
}
