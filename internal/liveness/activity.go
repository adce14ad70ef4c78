package liveness

import (
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"
)

// ActivityKind names the input event that counts as user activity.
type ActivityKind string

const (
	ActivityPointerDown ActivityKind = "pointer-down"
	ActivityPointerMove ActivityKind = "pointer-move"
	ActivityKeyPress    ActivityKind = "key-press"
	ActivityScroll      ActivityKind = "scroll"
	ActivityTouchStart  ActivityKind = "touch-start"
	ActivityClick       ActivityKind = "click"

	// ActivityProbe is recorded by a successful connection probe.
	ActivityProbe ActivityKind = "probe"
)

// ParseActivityKind accepts the user input kinds a browser may report.
func ParseActivityKind(s string) (ActivityKind, bool) {
	switch k := ActivityKind(s); k {
	case ActivityPointerDown, ActivityPointerMove, ActivityKeyPress, ActivityScroll, ActivityTouchStart, ActivityClick:
		return k, true
	default:
		return "", false
	}
}

// ActivityTracker holds the time of the last recorded activity. Safe for
// concurrent use; Touch never blocks.
type ActivityTracker struct {
	clock clockwork.Clock
	last  atomic.Int64 // unix nanos
}

func NewActivityTracker(clock clockwork.Clock) *ActivityTracker {
	t := &ActivityTracker{clock: clock}
	t.Reset()
	return t
}

func (t *ActivityTracker) Touch(ActivityKind) {
	t.last.Store(t.clock.Now().UnixNano())
}

// Reset sets the last activity to now.
func (t *ActivityTracker) Reset() {
	t.last.Store(t.clock.Now().UnixNano())
}

func (t *ActivityTracker) Last() time.Time {
	return time.Unix(0, t.last.Load())
}

// IdleFor returns the time elapsed since the last activity.
func (t *ActivityTracker) IdleFor() time.Duration {
	return t.clock.Since(t.Last())
}
