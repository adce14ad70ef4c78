package app

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/wozamali/admin-console/internal/adapter/metrics"
	"github.com/wozamali/admin-console/internal/domain"
)

// CollectionService reviews collections and produces exports and reports.
type CollectionService struct {
	collections domain.CollectionRepository
	notifier    domain.ChangeNotifier
	renderers   map[domain.ReportFormat]domain.ReportRenderer
	clock       clockwork.Clock
	metrics     *metrics.ReviewMetrics
}

// NewCollectionService creates the collection service. m may be nil.
func NewCollectionService(collections domain.CollectionRepository, notifier domain.ChangeNotifier, renderers []domain.ReportRenderer, clock clockwork.Clock, m *metrics.ReviewMetrics) *CollectionService {
	byFormat := make(map[domain.ReportFormat]domain.ReportRenderer, len(renderers))
	for _, r := range renderers {
		byFormat[r.Format()] = r
	}
	return &CollectionService{
		collections: collections,
		notifier:    notifier,
		renderers:   byFormat,
		clock:       clock,
		metrics:     m,
	}
}

// File is a rendered document ready to be sent as an attachment.
type File struct {
	Filename    string
	ContentType string
	Body        []byte
}

func (s *CollectionService) ListCollections(ctx context.Context, filter domain.CollectionFilter) ([]domain.Collection, error) {
	filter.Limit, filter.Offset = clampPage(filter.Limit, filter.Offset)
	return s.collections.List(ctx, filter)
}

// UpdateStatus approves or rejects a pending collection.
func (s *CollectionService) UpdateStatus(ctx context.Context, id uuid.UUID, status domain.CollectionStatus) (*domain.Collection, error) {
	if status != domain.CollectionApproved && status != domain.CollectionRejected {
		return nil, domain.ErrInvalidStatus
	}

	start := s.clock.Now()
	collection, err := s.collections.UpdateStatus(ctx, id, status)
	if err != nil {
		return nil, err
	}
	if s.metrics != nil {
		s.metrics.Decisions.WithLabelValues("collection", string(status)).Inc()
		s.metrics.DecisionTime.Observe(s.clock.Since(start).Seconds())
	}

	if err := s.notifier.NotifyChange(ctx, domain.ChannelCollections, id); err != nil {
		slog.WarnContext(ctx, "Failed to notify collection change", "collection_id", id.String(), "error", err)
	}
	return collection, nil
}

// Export renders the approved, not yet exported collections in [from, to)
// and marks them exported. Nothing is marked if rendering fails.
func (s *CollectionService) Export(ctx context.Context, adminID uuid.UUID, format domain.ReportFormat, from, to time.Time) (*File, *domain.Export, error) {
	renderer, ok := s.renderers[format]
	if !ok {
		return nil, nil, domain.ErrUnknownFormat
	}

	rows, err := s.collections.ListExportable(ctx, from, to)
	if err != nil {
		return nil, nil, err
	}
	if len(rows) == 0 {
		return nil, nil, domain.ErrNothingToExport
	}

	now := s.clock.Now()
	report := BuildReport("Collections export", rows, from, to, now)

	var buf bytes.Buffer
	if err := renderer.Render(&buf, report); err != nil {
		return nil, nil, fmt.Errorf("failed to render export: %w", err)
	}

	ids := make([]uuid.UUID, len(rows))
	for i, r := range rows {
		ids[i] = r.ID
	}
	filename := fmt.Sprintf("collections-export-%s.%s", now.Format("20060102-150405"), format)
	export, err := s.collections.MarkExported(ctx, domain.ExportRequest{
		AdminID:  adminID,
		Format:   format,
		Filename: filename,
		From:     from,
		To:       to,
	}, ids)
	if err != nil {
		return nil, nil, err
	}

	if s.metrics != nil {
		s.metrics.ExportsCreated.WithLabelValues(string(format)).Inc()
		s.metrics.ExportedRows.Add(float64(len(ids)))
	}
	if err := s.notifier.NotifyChange(ctx, domain.ChannelCollections, export.ID); err != nil {
		slog.WarnContext(ctx, "Failed to notify export", "export_id", export.ID.String(), "error", err)
	}

	slog.InfoContext(ctx, "Collections exported", "export_id", export.ID.String(), "format", format, "count", len(ids))
	return &File{Filename: filename, ContentType: renderer.ContentType(), Body: buf.Bytes()}, export, nil
}

func (s *CollectionService) ListExports(ctx context.Context, limit int) ([]domain.Export, error) {
	limit, _ = clampPage(limit, 0)
	return s.collections.ListExports(ctx, limit)
}

// Report renders the approved collections in [from, to) with a per-material
// summary. An empty range still yields a document.
func (s *CollectionService) Report(ctx context.Context, format domain.ReportFormat, from, to time.Time) (*File, error) {
	renderer, ok := s.renderers[format]
	if !ok {
		return nil, domain.ErrUnknownFormat
	}

	rows, err := s.collections.List(ctx, domain.CollectionFilter{Status: domain.CollectionApproved, From: from, To: to})
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	var buf bytes.Buffer
	if err := renderer.Render(&buf, BuildReport("Collections report", rows, from, to, now)); err != nil {
		return nil, fmt.Errorf("failed to render report: %w", err)
	}

	return &File{
		Filename:    fmt.Sprintf("collections-report-%s.%s", now.Format("20060102"), format),
		ContentType: renderer.ContentType(),
		Body:        buf.Bytes(),
	}, nil
}
