package liveness

import (
	"context"
	"log/slog"
	"sync"

	"github.com/wozamali/admin-console/internal/adapter/metrics"
	"github.com/wozamali/admin-console/internal/domain"
)

const defaultSubscriptionBuffer = 8

// Bus fans refresh-requested events out to any number of subscribers.
// Delivery is best-effort: a subscriber whose buffer is full misses the event.
type Bus struct {
	metrics *metrics.LivenessMetrics

	mu   sync.RWMutex
	subs map[*Subscription]struct{}
}

var _ domain.RefreshPublisher = (*Bus)(nil)

func NewBus(m *metrics.LivenessMetrics) *Bus {
	return &Bus{
		metrics: m,
		subs:    make(map[*Subscription]struct{}),
	}
}

// Subscription receives events on C until Close is called.
type Subscription struct {
	C <-chan domain.RefreshEvent

	ch   chan domain.RefreshEvent
	bus  *Bus
	once sync.Once
}

// Subscribe registers a new listener. buffer <= 0 uses a small default.
func (b *Bus) Subscribe(buffer int) *Subscription {
	if buffer <= 0 {
		buffer = defaultSubscriptionBuffer
	}
	ch := make(chan domain.RefreshEvent, buffer)
	sub := &Subscription{C: ch, ch: ch, bus: b}

	b.mu.Lock()
	b.subs[sub] = struct{}{}
	b.mu.Unlock()
	return sub
}

// Close unregisters the subscription and closes C. Safe to call twice.
func (s *Subscription) Close() {
	s.once.Do(func() {
		s.bus.mu.Lock()
		delete(s.bus.subs, s)
		close(s.ch)
		s.bus.mu.Unlock()
	})
}

// Subscribers returns the current number of listeners.
func (b *Bus) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// PublishRefresh delivers event to every subscriber without waiting.
func (b *Bus) PublishRefresh(ctx context.Context, event domain.RefreshEvent) error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	dropped := 0
	for sub := range b.subs {
		select {
		case sub.ch <- event:
		default:
			dropped++
		}
	}
	b.metrics.Broadcast(string(event.Reason))

	if dropped > 0 {
		slog.DebugContext(ctx, "Refresh event dropped for slow subscribers", "reason", event.Reason, "dropped", dropped)
	}
	return nil
}
