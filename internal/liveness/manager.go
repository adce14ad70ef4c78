package liveness

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/wozamali/admin-console/internal/adapter/metrics"
	"github.com/wozamali/admin-console/internal/domain"
	"github.com/wozamali/admin-console/internal/platform/correlation"
)

const (
	AuthRefreshInterval    = 4 * time.Minute
	ConnectionPingInterval = 15 * time.Second
	IdleCheckInterval      = 5 * time.Minute
)

const (
	taskAuthRefresh    = "auth_refresh"
	taskConnectionPing = "connection_ping"
	taskIdleCheck      = "idle_check"
	taskVisibility     = "visibility"
)

// Deps are the collaborators of one console's manager.
type Deps struct {
	Sessions  domain.SessionSource
	Prober    domain.Prober
	Channel   domain.Reconnector
	Navigator domain.Navigator
	Publisher domain.RefreshPublisher
}

type Options struct {
	ProbeTable string
	Clock      clockwork.Clock
	Metrics    *metrics.LivenessMetrics
	Logger     *slog.Logger
}

// Manager keeps one console's session and realtime connection alive.
// Start and Stop are idempotent and may be called from any goroutine.
type Manager struct {
	clock   clockwork.Clock
	metrics *metrics.LivenessMetrics
	logger  *slog.Logger

	activity  *ActivityTracker
	refresher *SessionRefresher
	prober    *ConnectionProber
	monitor   *VisibilityMonitor

	mu           sync.Mutex
	running      bool
	runCtx       context.Context
	cancel       context.CancelFunc
	stopOnDone   func() bool
	pendingStart clockwork.Timer
	startGen     uint64 // bumped by Stop; a delayed start from an older generation is void
	timers       timers

	authBusy       atomic.Bool
	pingBusy       atomic.Bool
	idleBusy       atomic.Bool
	visibilityBusy atomic.Bool

	wg sync.WaitGroup
}

// timers holds at most one ticker per periodic concern.
type timers struct {
	authRefresh    clockwork.Ticker
	connectionPing clockwork.Ticker
	idleCheck      clockwork.Ticker
}

func (t *timers) count() int {
	n := 0
	for _, tk := range []clockwork.Ticker{t.authRefresh, t.connectionPing, t.idleCheck} {
		if tk != nil {
			n++
		}
	}
	return n
}

func (t *timers) stop() {
	for _, tk := range []clockwork.Ticker{t.authRefresh, t.connectionPing, t.idleCheck} {
		if tk != nil {
			tk.Stop()
		}
	}
	*t = timers{}
}

func NewManager(deps Deps, opts Options) *Manager {
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.ProbeTable == "" {
		opts.ProbeTable = DefaultProbeTable
	}

	m := &Manager{
		clock:    opts.Clock,
		metrics:  opts.Metrics,
		logger:   opts.Logger,
		activity: NewActivityTracker(opts.Clock),
	}

	reconnect := &reconnector{
		channel: deps.Channel,
		active:  m.Active,
		metrics: opts.Metrics,
		logger:  opts.Logger,
	}
	m.refresher = &SessionRefresher{
		sessions:  deps.Sessions,
		navigator: deps.Navigator,
		clock:     opts.Clock,
		active:    m.Active,
		metrics:   opts.Metrics,
		logger:    opts.Logger,
	}
	m.prober = &ConnectionProber{
		prober:    deps.Prober,
		reconnect: reconnect,
		activity:  m.activity,
		clock:     opts.Clock,
		table:     opts.ProbeTable,
		timeout:   ProbeTimeout,
		metrics:   opts.Metrics,
		logger:    opts.Logger,
	}
	m.monitor = &VisibilityMonitor{
		clock:     opts.Clock,
		activity:  m.activity,
		refresher: m.refresher,
		reconnect: reconnect,
		publisher: deps.Publisher,
		logger:    opts.Logger,
	}
	return m
}

// Start begins activity tracking and the periodic tasks. The manager stops
// by itself when ctx is cancelled. Calling Start on a running manager is a no-op.
func (m *Manager) Start(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.startLocked(ctx)
}

func (m *Manager) startLocked(ctx context.Context) {
	if m.pendingStart != nil {
		m.pendingStart.Stop()
		m.pendingStart = nil
	}
	if m.running || ctx.Err() != nil {
		return
	}

	m.runCtx, m.cancel = context.WithCancel(ctx)
	m.activity.Reset()
	m.monitor.reset()

	m.timers = timers{
		authRefresh:    m.clock.NewTicker(AuthRefreshInterval),
		connectionPing: m.clock.NewTicker(ConnectionPingInterval),
		idleCheck:      m.clock.NewTicker(IdleCheckInterval),
	}
	m.running = true

	go m.loop(m.runCtx, m.timers.authRefresh, taskAuthRefresh, &m.authBusy, m.refresher.Tick)
	go m.loop(m.runCtx, m.timers.connectionPing, taskConnectionPing, &m.pingBusy, m.prober.Tick)
	go m.loop(m.runCtx, m.timers.idleCheck, taskIdleCheck, &m.idleBusy, m.monitor.IdleCheck)

	m.stopOnDone = context.AfterFunc(ctx, m.Stop)
	m.metrics.ManagerStarted()
	m.logger.InfoContext(ctx, "Liveness manager started")
}

// StartAfter starts the manager once delay has passed, giving the session
// and realtime clients time to come up. A Stop before then cancels the start.
func (m *Manager) StartAfter(ctx context.Context, delay time.Duration) {
	if delay <= 0 {
		m.Start(ctx)
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.running || m.pendingStart != nil {
		return
	}
	gen := m.startGen
	m.pendingStart = m.clock.AfterFunc(delay, func() { m.startIfCurrent(ctx, gen) })
}

// startIfCurrent runs a delayed start unless Stop was called after it was
// scheduled.
func (m *Manager) startIfCurrent(ctx context.Context, gen uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if gen != m.startGen {
		return
	}
	m.startLocked(ctx)
}

// Stop cancels the periodic tasks and clears their timers. Runs already in
// flight see a cancelled context and skip escalation. Activity recording
// keeps working after Stop.
func (m *Manager) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.startGen++
	if m.pendingStart != nil {
		m.pendingStart.Stop()
		m.pendingStart = nil
	}
	if !m.running {
		return
	}

	m.running = false
	m.cancel()
	m.stopOnDone()
	m.timers.stop()

	m.metrics.ManagerStopped()
	m.logger.Info("Liveness manager stopped")
}

func (m *Manager) Active() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

func (m *Manager) LastActivity() time.Time {
	return m.activity.Last()
}

// RecordActivity records a user input event reported by the browser.
func (m *Manager) RecordActivity(kind ActivityKind) {
	m.activity.Touch(kind)
}

// OnVisibilityChange records a tab visibility change. Coming back into view
// after being hidden for more than a second, or after a minute without a
// visible event, starts a recovery run in the background.
func (m *Manager) OnVisibilityChange(visible bool) {
	needsRecovery, hidden := m.monitor.Observe(visible)
	if !needsRecovery {
		return
	}

	m.mu.Lock()
	ctx, running := m.runCtx, m.running
	m.mu.Unlock()
	if !running {
		return
	}

	m.run(ctx, taskVisibility, &m.visibilityBusy, func(ctx context.Context) {
		m.monitor.Recover(ctx, hidden)
	})
}

func (m *Manager) loop(ctx context.Context, ticker clockwork.Ticker, task string, busy *atomic.Bool, fn func(context.Context)) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			m.run(ctx, task, busy, fn)
		}
	}
}

// run starts fn in its own goroutine unless the previous run of the same
// task is still in flight.
func (m *Manager) run(ctx context.Context, task string, busy *atomic.Bool, fn func(context.Context)) bool {
	if !busy.CompareAndSwap(false, true) {
		m.metrics.SkippedTick(task)
		m.logger.DebugContext(ctx, "Previous run still in flight, skipping tick", "task", task)
		return false
	}

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		defer busy.Store(false)

		taskCtx := correlation.WithID(ctx, correlation.NewID())
		defer func() {
			if r := recover(); r != nil {
				m.logger.ErrorContext(taskCtx, "Liveness task panicked", "task", task, "panic", fmt.Sprint(r))
			}
		}()
		fn(taskCtx)
	}()
	return true
}

// wait blocks until every started task run has returned.
func (m *Manager) wait() {
	m.wg.Wait()
}

// Factory builds managers that share the process-wide collaborators.
type Factory struct {
	Prober     domain.Prober
	Channel    domain.Reconnector
	ProbeTable string
	Clock      clockwork.Clock
	Metrics    *metrics.LivenessMetrics
}

// New builds a manager for one console session.
func (f *Factory) New(sessions domain.SessionSource, navigator domain.Navigator, publisher domain.RefreshPublisher, logger *slog.Logger) *Manager {
	return NewManager(Deps{
		Sessions:  sessions,
		Prober:    f.Prober,
		Channel:   f.Channel,
		Navigator: navigator,
		Publisher: publisher,
	}, Options{
		ProbeTable: f.ProbeTable,
		Clock:      f.Clock,
		Metrics:    f.Metrics,
		Logger:     logger,
	})
}
