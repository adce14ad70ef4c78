package domain

import "context"

// RefreshReason says why a console was asked to reload its data.
type RefreshReason string

const (
	RefreshVisibilityChange RefreshReason = "visibility-change"
	RefreshIdle             RefreshReason = "idle-refresh"
)

// RefreshEvent is broadcast to every listener of one console when its data
// should be reloaded. HiddenDuration is in milliseconds and only set for
// visibility-change events.
type RefreshEvent struct {
	Reason         RefreshReason `json:"reason"`
	HiddenDuration *int64        `json:"hiddenDuration,omitempty"`
}

// SessionSource reads and refreshes one console's auth session.
// GetSession returns (nil, nil) when no session exists.
type SessionSource interface {
	GetSession(ctx context.Context) (*AuthSession, error)
	RefreshSession(ctx context.Context) (*AuthSession, error)
}

// Prober issues a minimal read against table. found=false with a nil error
// (no rows) still proves the connection works.
type Prober interface {
	Probe(ctx context.Context, table string, limit int) (found bool, err error)
}

// Reconnector asks the realtime channel to drop and re-establish its
// connection. Fire-and-forget.
type Reconnector interface {
	ReconnectNow()
}

// Navigator ends a console's session and sends the browser home.
type Navigator interface {
	PerformCompleteLogout(ctx context.Context) error
	ForceRedirectToHome(ctx context.Context) error
}

type RefreshPublisher interface {
	PublishRefresh(ctx context.Context, event RefreshEvent) error
}
