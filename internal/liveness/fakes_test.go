package liveness

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/wozamali/admin-console/internal/domain"
	"github.com/wozamali/admin-console/internal/platform/correlation"
)

var (
	t0             = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	errUnreachable = errors.New("connection refused")
)

type fakeSessions struct {
	mu         sync.Mutex
	session    *domain.AuthSession
	getErr     error
	refreshErr error
	getCalls   int
	refreshes  int
	block      chan struct{} // when set, GetSession waits for it to close
	panicOnGet bool
	getIDs     []string // correlation IDs seen by GetSession
}

func (f *fakeSessions) GetSession(ctx context.Context) (*domain.AuthSession, error) {
	f.mu.Lock()
	f.getCalls++
	id, _ := correlation.ID(ctx)
	f.getIDs = append(f.getIDs, id)
	block, panicOnGet := f.block, f.panicOnGet
	f.mu.Unlock()

	if panicOnGet {
		panic("session store exploded")
	}
	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	return f.session, f.getErr
}

func (f *fakeSessions) correlationIDs() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.getIDs...)
}

func (f *fakeSessions) RefreshSession(context.Context) (*domain.AuthSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.refreshes++
	if f.refreshErr != nil {
		return nil, f.refreshErr
	}
	return f.session, nil
}

func (f *fakeSessions) counts() (gets, refreshes int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.getCalls, f.refreshes
}

func (f *fakeSessions) setPanic(v bool) {
	f.mu.Lock()
	f.panicOnGet = v
	f.mu.Unlock()
}

func sessionExpiringIn(clock clockwork.Clock, d time.Duration) *domain.AuthSession {
	return &domain.AuthSession{ID: "sess-1", Email: "admin@wozamali.co.za", ExpiresAt: clock.Now().Add(d)}
}

type fakeProber struct {
	mu     sync.Mutex
	err    error
	found  bool
	hang   bool
	calls  int
	tables []string
}

func (f *fakeProber) Probe(ctx context.Context, table string, limit int) (bool, error) {
	f.mu.Lock()
	f.calls++
	f.tables = append(f.tables, table)
	hang, found, err := f.hang, f.found, f.err
	f.mu.Unlock()

	if hang {
		<-ctx.Done()
		return false, ctx.Err()
	}
	return found, err
}

func (f *fakeProber) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeChannel struct {
	mu         sync.Mutex
	reconnects int
}

func (f *fakeChannel) ReconnectNow() {
	f.mu.Lock()
	f.reconnects++
	f.mu.Unlock()
}

func (f *fakeChannel) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.reconnects
}

type fakeNavigator struct {
	mu        sync.Mutex
	calls     []string
	logoutErr error
}

func (f *fakeNavigator) PerformCompleteLogout(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, "logout")
	return f.logoutErr
}

func (f *fakeNavigator) ForceRedirectToHome(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, "redirect")
	return nil
}

func (f *fakeNavigator) recorded() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

type harness struct {
	clock    *clockwork.FakeClock
	sessions *fakeSessions
	prober   *fakeProber
	channel  *fakeChannel
	nav      *fakeNavigator
	bus      *Bus
}

func newHarness() *harness {
	clock := clockwork.NewFakeClockAt(t0)
	return &harness{
		clock:    clock,
		sessions: &fakeSessions{session: sessionExpiringIn(clock, 30*time.Minute)},
		prober:   &fakeProber{},
		channel:  &fakeChannel{},
		nav:      &fakeNavigator{},
		bus:      NewBus(nil),
	}
}

func (h *harness) manager() *Manager {
	return NewManager(Deps{
		Sessions:  h.sessions,
		Prober:    h.prober,
		Channel:   h.channel,
		Navigator: h.nav,
		Publisher: h.bus,
	}, Options{Clock: h.clock, Logger: slog.Default()})
}

func (h *harness) refresher(active bool) *SessionRefresher {
	return &SessionRefresher{
		sessions:  h.sessions,
		navigator: h.nav,
		clock:     h.clock,
		active:    func() bool { return active },
		logger:    slog.Default(),
	}
}

func (h *harness) reconnector(active bool) *reconnector {
	return &reconnector{channel: h.channel, active: func() bool { return active }, logger: slog.Default()}
}
