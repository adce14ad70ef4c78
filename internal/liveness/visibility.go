package liveness

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/wozamali/admin-console/internal/domain"
)

const (
	HiddenThreshold = time.Second
	StaleThreshold  = 60 * time.Second
	IdleThreshold   = 10 * time.Minute
)

// VisibilityMonitor recovers the console when its tab comes back into view
// and refreshes it periodically while it sits visible but idle.
type VisibilityMonitor struct {
	clock     clockwork.Clock
	activity  *ActivityTracker
	refresher *SessionRefresher
	reconnect *reconnector
	publisher domain.RefreshPublisher
	logger    *slog.Logger

	mu          sync.Mutex
	visible     bool
	lastHidden  time.Time
	lastVisible time.Time
}

// reset marks the tab visible as of now.
func (v *VisibilityMonitor) reset() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.visible = true
	v.lastVisible = v.clock.Now()
}

func (v *VisibilityMonitor) Visible() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.visible
}

// Observe records a visibility change and reports whether the console needs
// recovery, along with how long the tab was hidden.
func (v *VisibilityMonitor) Observe(visible bool) (needsRecovery bool, hidden time.Duration) {
	v.mu.Lock()
	defer v.mu.Unlock()

	now := v.clock.Now()
	v.visible = visible
	if !visible {
		v.lastHidden = now
		return false, 0
	}

	if !v.lastHidden.IsZero() {
		hidden = now.Sub(v.lastHidden)
	}
	sinceVisible := now.Sub(v.lastVisible)
	v.lastVisible = now

	return hidden > HiddenThreshold || sinceVisible > StaleThreshold, hidden
}

// Recover refreshes the session, reconnects the realtime channel and asks
// every listener to reload its data.
func (v *VisibilityMonitor) Recover(ctx context.Context, hidden time.Duration) {
	v.logger.InfoContext(ctx, "Console visible again, recovering", "hidden_for", hidden.Round(time.Millisecond))

	if err := v.refresher.RefreshOrEscalate(ctx, triggerVisibility); err != nil {
		return
	}
	v.reconnect.now(ctx)

	ms := hidden.Milliseconds()
	event := domain.RefreshEvent{Reason: domain.RefreshVisibilityChange, HiddenDuration: &ms}
	if err := v.publisher.PublishRefresh(ctx, event); err != nil {
		v.logger.WarnContext(ctx, "Refresh broadcast failed", "reason", event.Reason, "error", err)
	}
}

// IdleCheck runs one idle cycle.
func (v *VisibilityMonitor) IdleCheck(ctx context.Context) {
	idle := v.activity.IdleFor()
	if idle <= IdleThreshold || !v.Visible() {
		return
	}

	v.logger.InfoContext(ctx, "Console idle, refreshing", "idle_for", idle.Round(time.Second))
	v.refresher.BestEffortRefresh(ctx, triggerIdle)

	event := domain.RefreshEvent{Reason: domain.RefreshIdle}
	if err := v.publisher.PublishRefresh(ctx, event); err != nil {
		v.logger.WarnContext(ctx, "Refresh broadcast failed", "reason", event.Reason, "error", err)
	}
	v.activity.Reset()
}
