package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	ws "github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wozamali/admin-console/internal/adapter/metrics"
	"github.com/wozamali/admin-console/internal/adapter/websocket"
	"github.com/wozamali/admin-console/internal/domain"
	"github.com/wozamali/admin-console/internal/liveness"
)

type stubConsoleSession struct {
	mu         sync.Mutex
	session    *domain.AuthSession
	refreshErr error
}

func (s *stubConsoleSession) GetSession(context.Context) (*domain.AuthSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.session, nil
}

func (s *stubConsoleSession) RefreshSession(context.Context) (*domain.AuthSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.refreshErr != nil {
		return nil, s.refreshErr
	}
	return s.session, nil
}

type okProber struct{}

func (okProber) Probe(context.Context, string, int) (bool, error) { return true, nil }

type nopChannel struct{}

func (nopChannel) ReconnectNow() {}

type consoleHarness struct {
	srv      *Server
	server   *httptest.Server
	hub      *websocket.Hub
	clock    *clockwork.FakeClock
	auth     *mockAuth
	sessions *stubConsoleSession
	liveness *metrics.LivenessMetrics
}

func newConsoleHarness(t *testing.T) *consoleHarness {
	t.Helper()

	clock := clockwork.NewFakeClockAt(time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC))
	reg := prometheus.NewRegistry()
	h := &consoleHarness{
		hub:      websocket.NewHub(metrics.NewWebSocketMetrics(reg)),
		clock:    clock,
		auth:     &mockAuth{},
		sessions: &stubConsoleSession{},
		liveness: metrics.NewLivenessMetrics(reg),
	}
	h.sessions.session = &domain.AuthSession{ID: testSessionID, ExpiresAt: clock.Now().Add(30 * time.Minute)}
	t.Cleanup(h.hub.Stop)

	h.srv = newTestServer(t, withAuth(h.auth), func(d *Deps) {
		d.Hub = h.hub
		d.LivenessMetrics = h.liveness
		d.Liveness = &liveness.Factory{
			Prober:  okProber{},
			Channel: nopChannel{},
			Clock:   clock,
			Metrics: h.liveness,
		}
		d.ConsoleSession = func(sessionID string) domain.SessionSource {
			assert.Equal(t, testSessionID, sessionID)
			return h.sessions
		}
	})

	h.server = httptest.NewServer(h.srv.echo)
	t.Cleanup(h.server.Close)
	return h
}

func (h *consoleHarness) dial(t *testing.T, cookie *http.Cookie) (*ws.Conn, *http.Response, error) {
	t.Helper()
	url := "ws" + strings.TrimPrefix(h.server.URL, "http") + "/ws/console"
	header := http.Header{}
	if cookie != nil {
		header.Set("Cookie", cookie.String())
	}
	conn, resp, err := ws.DefaultDialer.Dial(url, header)
	if conn != nil {
		t.Cleanup(func() { _ = conn.Close() })
	}
	return conn, resp, err
}

func readConsoleMessage(t *testing.T, conn *ws.Conn) websocket.Message {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)

	var msg websocket.Message
	require.NoError(t, json.Unmarshal(data, &msg))
	return msg
}

func TestConsoleSocket_RequiresSession(t *testing.T) {
	h := newConsoleHarness(t)

	_, resp, err := h.dial(t, nil)

	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, 0, h.hub.ClientCount(""))
}

func TestConsoleSocket_ManagerLivesWithSocket(t *testing.T) {
	h := newConsoleHarness(t)

	conn, _, err := h.dial(t, authCookie(t, h.srv, testSessionID))
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return h.hub.ClientCount(testSessionID) == 1 && testutil.ToFloat64(h.liveness.ActiveManagers) == 1
	}, 2*time.Second, 5*time.Millisecond)

	require.NoError(t, conn.WriteJSON(websocket.Message{Type: websocket.TypeActivity, Kind: string(liveness.ActivityClick)}))
	require.NoError(t, conn.Close())

	require.Eventually(t, func() bool {
		return h.hub.ClientCount(testSessionID) == 0 && testutil.ToFloat64(h.liveness.ActiveManagers) == 0
	}, 2*time.Second, 5*time.Millisecond)
}

func TestConsoleSocket_FailedRefreshLogsOutAndRedirects(t *testing.T) {
	h := newConsoleHarness(t)
	h.sessions.session.ExpiresAt = h.clock.Now().Add(time.Minute)
	h.sessions.refreshErr = errors.New("refresh token revoked")

	conn, _, err := h.dial(t, authCookie(t, h.srv, testSessionID))
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, h.clock.BlockUntilContext(ctx, 3)) // one ticker per periodic task

	h.clock.Advance(liveness.AuthRefreshInterval)

	logout := readConsoleMessage(t, conn)
	assert.Equal(t, websocket.TypeLogout, logout.Type)

	redirect := readConsoleMessage(t, conn)
	assert.Equal(t, websocket.TypeRedirect, redirect.Type)
	assert.Equal(t, "/", redirect.Location)

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err = conn.ReadMessage()
	assert.True(t, ws.IsCloseError(err, ws.CloseNormalClosure), "expected normal close, got %v", err)

	assert.Equal(t, []string{testSessionID}, h.auth.loggedOut())
}

func TestConsoleSocket_DataChangedFanout(t *testing.T) {
	h := newConsoleHarness(t)

	conn, _, err := h.dial(t, authCookie(t, h.srv, testSessionID))
	require.NoError(t, err)
	require.True(t, waitFor(func() bool { return h.hub.ClientCount(testSessionID) == 1 }))

	websocket.ChangeFanout(h.hub)(context.Background(), domain.ChannelEarnings, "3f2504e0-4f89-41d3-9a0c-0305e82c3301")

	msg := readConsoleMessage(t, conn)
	assert.Equal(t, websocket.TypeDataChanged, msg.Type)
	assert.Equal(t, domain.ChannelEarnings, msg.Channel)
}

func waitFor(cond func() bool) bool {
	for range 400 {
		if cond() {
			return true
		}
		time.Sleep(5 * time.Millisecond)
	}
	return false
}
