package app

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/wozamali/admin-console/internal/domain"
)

// --- Mock implementations ---

type mockProvider struct {
	signInFn  func(ctx context.Context, email, password string) (*domain.AuthTokens, error)
	refreshFn func(ctx context.Context, refreshToken string) (*domain.AuthTokens, error)
	signOutFn func(ctx context.Context, accessToken string) error

	mu       sync.Mutex
	signOuts []string
}

func (m *mockProvider) SignInWithPassword(ctx context.Context, email, password string) (*domain.AuthTokens, error) {
	if m.signInFn != nil {
		return m.signInFn(ctx, email, password)
	}
	return nil, fmt.Errorf("not implemented")
}

func (m *mockProvider) Refresh(ctx context.Context, refreshToken string) (*domain.AuthTokens, error) {
	if m.refreshFn != nil {
		return m.refreshFn(ctx, refreshToken)
	}
	return nil, fmt.Errorf("not implemented")
}

func (m *mockProvider) SignOut(ctx context.Context, accessToken string) error {
	m.mu.Lock()
	m.signOuts = append(m.signOuts, accessToken)
	m.mu.Unlock()
	if m.signOutFn != nil {
		return m.signOutFn(ctx, accessToken)
	}
	return nil
}

type mockAdminRepo struct {
	getByIDFn func(ctx context.Context, id uuid.UUID) (*domain.Admin, error)
}

func (m *mockAdminRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Admin, error) {
	if m.getByIDFn != nil {
		return m.getByIDFn(ctx, id)
	}
	return nil, domain.ErrAdminNotFound
}

// memSessions is an in-memory SessionRepository.
type memSessions struct {
	mu   sync.Mutex
	data map[string]domain.AuthSession
}

func newMemSessions() *memSessions {
	return &memSessions{data: make(map[string]domain.AuthSession)}
}

func (m *memSessions) Save(ctx context.Context, s *domain.AuthSession) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[s.ID] = *s
	return nil
}

func (m *memSessions) Get(_ context.Context, id string) (*domain.AuthSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.data[id]
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	return &s, nil
}

func (m *memSessions) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, id)
	return nil
}

type mockRevoker struct {
	mu      sync.Mutex
	revoked []string
}

func (m *mockRevoker) PublishRevocation(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.revoked = append(m.revoked, id)
	return nil
}

type mockNotifier struct {
	mu      sync.Mutex
	changes []domain.ChangeChannel
	err     error
}

func (m *mockNotifier) NotifyChange(_ context.Context, channel domain.ChangeChannel, _ uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.changes = append(m.changes, channel)
	return m.err
}

type mockEarningRepo struct {
	listFn    func(ctx context.Context, filter domain.EarningFilter) ([]domain.Earning, error)
	approveFn func(ctx context.Context, earningID, adminID uuid.UUID) (*domain.Earning, error)
	rejectFn  func(ctx context.Context, earningID, adminID uuid.UUID, reason string) (*domain.Earning, error)
}

func (m *mockEarningRepo) List(ctx context.Context, filter domain.EarningFilter) ([]domain.Earning, error) {
	if m.listFn != nil {
		return m.listFn(ctx, filter)
	}
	return nil, nil
}

func (m *mockEarningRepo) Approve(ctx context.Context, earningID, adminID uuid.UUID) (*domain.Earning, error) {
	if m.approveFn != nil {
		return m.approveFn(ctx, earningID, adminID)
	}
	return nil, fmt.Errorf("not implemented")
}

func (m *mockEarningRepo) Reject(ctx context.Context, earningID, adminID uuid.UUID, reason string) (*domain.Earning, error) {
	if m.rejectFn != nil {
		return m.rejectFn(ctx, earningID, adminID, reason)
	}
	return nil, fmt.Errorf("not implemented")
}

type mockCollectionRepo struct {
	listFn           func(ctx context.Context, filter domain.CollectionFilter) ([]domain.Collection, error)
	updateStatusFn   func(ctx context.Context, id uuid.UUID, status domain.CollectionStatus) (*domain.Collection, error)
	listExportableFn func(ctx context.Context, from, to time.Time) ([]domain.Collection, error)
	markExportedFn   func(ctx context.Context, req domain.ExportRequest, ids []uuid.UUID) (*domain.Export, error)
	listExportsFn    func(ctx context.Context, limit int) ([]domain.Export, error)
}

func (m *mockCollectionRepo) List(ctx context.Context, filter domain.CollectionFilter) ([]domain.Collection, error) {
	if m.listFn != nil {
		return m.listFn(ctx, filter)
	}
	return nil, nil
}

func (m *mockCollectionRepo) UpdateStatus(ctx context.Context, id uuid.UUID, status domain.CollectionStatus) (*domain.Collection, error) {
	if m.updateStatusFn != nil {
		return m.updateStatusFn(ctx, id, status)
	}
	return nil, fmt.Errorf("not implemented")
}

func (m *mockCollectionRepo) ListExportable(ctx context.Context, from, to time.Time) ([]domain.Collection, error) {
	if m.listExportableFn != nil {
		return m.listExportableFn(ctx, from, to)
	}
	return nil, nil
}

func (m *mockCollectionRepo) MarkExported(ctx context.Context, req domain.ExportRequest, ids []uuid.UUID) (*domain.Export, error) {
	if m.markExportedFn != nil {
		return m.markExportedFn(ctx, req, ids)
	}
	return nil, fmt.Errorf("not implemented")
}

func (m *mockCollectionRepo) ListExports(ctx context.Context, limit int) ([]domain.Export, error) {
	if m.listExportsFn != nil {
		return m.listExportsFn(ctx, limit)
	}
	return nil, nil
}

// fakeRenderer writes one line per row so tests can inspect what was rendered.
type fakeRenderer struct {
	format domain.ReportFormat
	err    error
	last   *domain.CollectionReport
}

func (r *fakeRenderer) Format() domain.ReportFormat { return r.format }
func (r *fakeRenderer) ContentType() string         { return "text/plain" }

func (r *fakeRenderer) Render(w io.Writer, report *domain.CollectionReport) error {
	r.last = report
	if r.err != nil {
		return r.err
	}
	for _, row := range report.Rows {
		if _, err := fmt.Fprintln(w, row.ID); err != nil {
			return err
		}
	}
	return nil
}
