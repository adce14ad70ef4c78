package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
	"github.com/wozamali/admin-console/internal/adapter/metrics"
	"github.com/wozamali/admin-console/internal/app"
	"github.com/wozamali/admin-console/internal/domain"
	"github.com/wozamali/admin-console/internal/platform/config"
)

var (
	testAdminID   = uuid.MustParse("7c9e6679-7425-40de-944b-e07fc1f90ae7")
	testSessionID = "0d8c3a5e-3f1b-4a57-9d7e-2f5c1b6a9e11"
	testExpiresAt = time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
)

// --- Mock implementations ---

type mockAuth struct {
	loginFn   func(ctx context.Context, email, password string) (*domain.AuthSession, error)
	sessionFn func(ctx context.Context, sessionID string) (*domain.AuthSession, error)
	logoutFn  func(ctx context.Context, sessionID string) error

	mu      sync.Mutex
	logouts []string
}

func (m *mockAuth) Login(ctx context.Context, email, password string) (*domain.AuthSession, error) {
	if m.loginFn != nil {
		return m.loginFn(ctx, email, password)
	}
	return nil, errors.New("not implemented")
}

// Session defaults to one valid session under testSessionID.
func (m *mockAuth) Session(ctx context.Context, sessionID string) (*domain.AuthSession, error) {
	if m.sessionFn != nil {
		return m.sessionFn(ctx, sessionID)
	}
	if sessionID == testSessionID {
		return testSession(), nil
	}
	return nil, domain.ErrSessionNotFound
}

func (m *mockAuth) Logout(ctx context.Context, sessionID string) error {
	m.mu.Lock()
	m.logouts = append(m.logouts, sessionID)
	m.mu.Unlock()
	if m.logoutFn != nil {
		return m.logoutFn(ctx, sessionID)
	}
	return nil
}

func (m *mockAuth) loggedOut() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.logouts...)
}

type mockApprovals struct {
	listFn    func(ctx context.Context, filter domain.EarningFilter) ([]domain.Earning, error)
	approveFn func(ctx context.Context, earningID, adminID uuid.UUID) (*domain.Earning, error)
	rejectFn  func(ctx context.Context, earningID, adminID uuid.UUID, reason string) (*domain.Earning, error)
}

func (m *mockApprovals) ListEarnings(ctx context.Context, filter domain.EarningFilter) ([]domain.Earning, error) {
	if m.listFn != nil {
		return m.listFn(ctx, filter)
	}
	return []domain.Earning{}, nil
}

func (m *mockApprovals) Approve(ctx context.Context, earningID, adminID uuid.UUID) (*domain.Earning, error) {
	if m.approveFn != nil {
		return m.approveFn(ctx, earningID, adminID)
	}
	return nil, errors.New("not implemented")
}

func (m *mockApprovals) Reject(ctx context.Context, earningID, adminID uuid.UUID, reason string) (*domain.Earning, error) {
	if m.rejectFn != nil {
		return m.rejectFn(ctx, earningID, adminID, reason)
	}
	return nil, errors.New("not implemented")
}

type mockCollections struct {
	listFn        func(ctx context.Context, filter domain.CollectionFilter) ([]domain.Collection, error)
	updateFn      func(ctx context.Context, id uuid.UUID, status domain.CollectionStatus) (*domain.Collection, error)
	exportFn      func(ctx context.Context, adminID uuid.UUID, format domain.ReportFormat, from, to time.Time) (*app.File, *domain.Export, error)
	listExportsFn func(ctx context.Context, limit int) ([]domain.Export, error)
	reportFn      func(ctx context.Context, format domain.ReportFormat, from, to time.Time) (*app.File, error)
}

func (m *mockCollections) ListCollections(ctx context.Context, filter domain.CollectionFilter) ([]domain.Collection, error) {
	if m.listFn != nil {
		return m.listFn(ctx, filter)
	}
	return []domain.Collection{}, nil
}

func (m *mockCollections) UpdateStatus(ctx context.Context, id uuid.UUID, status domain.CollectionStatus) (*domain.Collection, error) {
	if m.updateFn != nil {
		return m.updateFn(ctx, id, status)
	}
	return nil, errors.New("not implemented")
}

func (m *mockCollections) Export(ctx context.Context, adminID uuid.UUID, format domain.ReportFormat, from, to time.Time) (*app.File, *domain.Export, error) {
	if m.exportFn != nil {
		return m.exportFn(ctx, adminID, format, from, to)
	}
	return nil, nil, errors.New("not implemented")
}

func (m *mockCollections) ListExports(ctx context.Context, limit int) ([]domain.Export, error) {
	if m.listExportsFn != nil {
		return m.listExportsFn(ctx, limit)
	}
	return []domain.Export{}, nil
}

func (m *mockCollections) Report(ctx context.Context, format domain.ReportFormat, from, to time.Time) (*app.File, error) {
	if m.reportFn != nil {
		return m.reportFn(ctx, format, from, to)
	}
	return nil, errors.New("not implemented")
}

// --- Test helpers ---

func testSession() *domain.AuthSession {
	return &domain.AuthSession{
		ID:           testSessionID,
		AdminID:      testAdminID,
		Email:        "ops@wozamali.co.za",
		Role:         domain.RoleAdmin,
		AccessToken:  "access",
		RefreshToken: "refresh",
		ExpiresAt:    testExpiresAt,
	}
}

func testConfig() *config.Config {
	return &config.Config{
		AppEnv:        "test",
		Port:          "0",
		SessionSecret: "test-secret-key-32-bytes-long!!!",
		SessionMaxAge: time.Hour,
	}
}

func newTestServer(t *testing.T, opts ...func(*Deps)) *Server {
	t.Helper()

	deps := Deps{
		Auth:        &mockAuth{},
		Approvals:   &mockApprovals{},
		Collections: &mockCollections{},
		HTTPMetrics: metrics.NewHTTPMetrics(prometheus.NewRegistry()),
	}
	for _, opt := range opts {
		opt(&deps)
	}
	return NewServer(testConfig(), deps)
}

func withAuth(a authService) func(*Deps) {
	return func(d *Deps) { d.Auth = a }
}

func withApprovals(a approvalService) func(*Deps) {
	return func(d *Deps) { d.Approvals = a }
}

func withCollections(c collectionService) func(*Deps) {
	return func(d *Deps) { d.Collections = c }
}

func withHealthChecks(checks ...HealthCheck) func(*Deps) {
	return func(d *Deps) { d.HealthChecks = checks }
}

// authCookie returns a console cookie carrying sessionID.
func authCookie(t *testing.T, srv *Server, sessionID string) *http.Cookie {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()

	session, err := srv.sessionStore.Get(req, sessionName)
	require.NoError(t, err)
	session.Values[sessionKeyID] = sessionID
	require.NoError(t, session.Save(req, rec))

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	return cookies[0]
}

type authedClient struct {
	t         *testing.T
	srv       *Server
	cookies   []*http.Cookie
	csrfToken string
}

// signedIn fetches /api/session once to pick up the CSRF token and cookie.
func signedIn(t *testing.T, srv *Server) *authedClient {
	t.Helper()
	ac := &authedClient{t: t, srv: srv, cookies: []*http.Cookie{authCookie(t, srv, testSessionID)}}

	rec := ac.do(http.MethodGet, "/api/session", "", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var body sessionResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.NotEmpty(t, body.CSRFToken)
	ac.csrfToken = body.CSRFToken

	for _, c := range rec.Result().Cookies() {
		if c.Name == "csrf_token" {
			ac.cookies = append(ac.cookies, c)
		}
	}
	return ac
}

func (ac *authedClient) do(method, target, contentType string, body io.Reader) *httptest.ResponseRecorder {
	ac.t.Helper()
	req := httptest.NewRequest(method, target, body)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	return ac.serve(req)
}

// serve sends req with the session and CSRF cookies and the CSRF header.
func (ac *authedClient) serve(req *http.Request) *httptest.ResponseRecorder {
	ac.t.Helper()
	for _, c := range ac.cookies {
		req.AddCookie(c)
	}
	if ac.csrfToken != "" {
		req.Header.Set("X-CSRF-Token", ac.csrfToken)
	}
	rec := httptest.NewRecorder()
	ac.srv.echo.ServeHTTP(rec, req)
	return rec
}

func (ac *authedClient) get(target string) *httptest.ResponseRecorder {
	return ac.do(http.MethodGet, target, "", nil)
}

func (ac *authedClient) postJSON(target, body string) *httptest.ResponseRecorder {
	return ac.do(http.MethodPost, target, "application/json", strings.NewReader(body))
}

func (ac *authedClient) patchJSON(target, body string) *httptest.ResponseRecorder {
	return ac.do(http.MethodPatch, target, "application/json", strings.NewReader(body))
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body), rec.Body.String())
	return body
}
