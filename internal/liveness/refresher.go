package liveness

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/wozamali/admin-console/internal/adapter/metrics"
	"github.com/wozamali/admin-console/internal/domain"
)

const (
	// RefreshWindow: sessions closer than this to expiry are refreshed.
	RefreshWindow = 5 * time.Minute
	// MaxExpectedLifetime: sessions further than this from expiry are refreshed
	// to bring the expiry back to what the provider issues.
	MaxExpectedLifetime = 60 * time.Minute
)

const (
	triggerTick       = "tick"
	triggerRecovery   = "recovery"
	triggerVisibility = "visibility"
	triggerIdle       = "idle"
)

// NeedsRefresh reports whether a session expiring in untilExpiry should be refreshed.
func NeedsRefresh(untilExpiry time.Duration) bool {
	return untilExpiry < RefreshWindow || untilExpiry > MaxExpectedLifetime
}

// SessionRefresher keeps the console's auth session away from expiry.
// A failed refresh of an existing session escalates to logout and redirect.
type SessionRefresher struct {
	sessions  domain.SessionSource
	navigator domain.Navigator
	clock     clockwork.Clock
	active    func() bool
	metrics   *metrics.LivenessMetrics
	logger    *slog.Logger

	escalated atomic.Bool
}

// Tick runs one refresh cycle.
func (r *SessionRefresher) Tick(ctx context.Context) {
	session, err := r.sessions.GetSession(ctx)
	if err != nil {
		r.logger.WarnContext(ctx, "Session fetch failed, attempting recovery refresh", "error", err)
		if _, err := r.sessions.RefreshSession(ctx); err != nil {
			r.metrics.Refresh(triggerRecovery, "error")
			r.logger.WarnContext(ctx, "Recovery refresh failed, retrying next cycle", "error", err)
			return
		}
		r.metrics.Refresh(triggerRecovery, "ok")
		return
	}

	if session == nil {
		r.logger.InfoContext(ctx, "No active session, skipping refresh")
		return
	}

	untilExpiry := session.ExpiresAt.Sub(r.clock.Now())
	if !NeedsRefresh(untilExpiry) {
		r.logger.DebugContext(ctx, "Session valid, no refresh needed", "expires_in", untilExpiry.Round(time.Second))
		return
	}

	r.logger.InfoContext(ctx, "Refreshing session", "expires_in", untilExpiry.Round(time.Second))
	// failure is already logged and escalated; the next tick carries on
	_ = r.RefreshOrEscalate(ctx, triggerTick)
}

// RefreshOrEscalate refreshes the session and, if that fails, logs the admin
// out and sends the browser home.
func (r *SessionRefresher) RefreshOrEscalate(ctx context.Context, trigger string) error {
	if _, err := r.sessions.RefreshSession(ctx); err != nil {
		r.metrics.Refresh(trigger, "error")
		r.logger.ErrorContext(ctx, "Session refresh failed", "trigger", trigger, "error", err)
		r.escalate(ctx)
		return err
	}
	r.metrics.Refresh(trigger, "ok")
	return nil
}

// BestEffortRefresh refreshes the session and only logs a failure.
func (r *SessionRefresher) BestEffortRefresh(ctx context.Context, trigger string) {
	if _, err := r.sessions.RefreshSession(ctx); err != nil {
		r.metrics.Refresh(trigger, "error")
		r.logger.WarnContext(ctx, "Best-effort session refresh failed", "trigger", trigger, "error", err)
		return
	}
	r.metrics.Refresh(trigger, "ok")
}

// escalate runs logout then redirect at most once per manager. The redirect
// happens even if logout fails. Nothing happens once the manager has stopped.
func (r *SessionRefresher) escalate(ctx context.Context) {
	if !r.active() {
		r.logger.InfoContext(ctx, "Manager stopped, skipping forced logout")
		return
	}
	if !r.escalated.CompareAndSwap(false, true) {
		return
	}
	r.metrics.Escalation()

	if err := r.navigator.PerformCompleteLogout(ctx); err != nil {
		r.logger.ErrorContext(ctx, "Forced logout failed", "error", err)
	}
	if err := r.navigator.ForceRedirectToHome(ctx); err != nil {
		r.logger.ErrorContext(ctx, "Redirect to home failed", "error", err)
	}
}
