package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jonboulle/clockwork"
	"github.com/wozamali/admin-console/internal/adapter/metrics"
	"github.com/wozamali/admin-console/internal/domain"
)

const (
	listenerMinBackoff = 500 * time.Millisecond
	listenerMaxBackoff = 30 * time.Second
)

var errReconnectRequested = errors.New("reconnect requested")

// ChangeHandler receives every notification on a listened channel.
type ChangeHandler func(ctx context.Context, channel domain.ChangeChannel, payload string)

// Listener is the realtime channel: a dedicated connection running LISTEN on
// the change channels. It re-dials on failure with backoff and immediately on
// ReconnectNow.
type Listener struct {
	config   *pgx.ConnConfig
	channels []domain.ChangeChannel
	handler  ChangeHandler
	clock    clockwork.Clock
	metrics  *metrics.StoreMetrics

	reconnect chan struct{}
	connected atomic.Bool
}

var _ domain.Reconnector = (*Listener)(nil)

// NewListener dials with the pool's connection config. m may be nil.
func NewListener(pool *pgxpool.Pool, handler ChangeHandler, clock clockwork.Clock, m *metrics.StoreMetrics) *Listener {
	return &Listener{
		config:    pool.Config().ConnConfig.Copy(),
		channels:  []domain.ChangeChannel{domain.ChannelEarnings, domain.ChannelCollections},
		handler:   handler,
		clock:     clock,
		metrics:   m,
		reconnect: make(chan struct{}, 1),
	}
}

// ReconnectNow asks the listener to drop its connection and dial again.
// Requests made while one is already pending are merged.
func (l *Listener) ReconnectNow() {
	select {
	case l.reconnect <- struct{}{}:
	default:
	}
}

// Connected reports whether the listener currently holds a LISTEN connection.
func (l *Listener) Connected() bool {
	return l.connected.Load()
}

// Run listens until ctx is cancelled.
func (l *Listener) Run(ctx context.Context) {
	backoff := listenerMinBackoff
	for {
		err := l.listen(ctx)
		if ctx.Err() != nil {
			return
		}
		if l.metrics != nil {
			l.metrics.ListenerRestarts.Inc()
		}

		if errors.Is(err, errReconnectRequested) {
			slog.InfoContext(ctx, "Realtime listener reconnecting on request")
			backoff = listenerMinBackoff
			continue
		}

		slog.WarnContext(ctx, "Realtime listener failed, retrying", "error", err, "backoff", backoff)
		select {
		case <-ctx.Done():
			return
		case <-l.clock.After(backoff):
		case <-l.reconnect:
		}
		backoff = min(backoff*2, listenerMaxBackoff)
	}
}

func (l *Listener) listen(ctx context.Context) error {
	conn, err := pgx.ConnectConfig(ctx, l.config)
	if err != nil {
		return fmt.Errorf("failed to connect listener: %w", err)
	}
	defer func() {
		l.connected.Store(false)
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = conn.Close(closeCtx)
	}()

	for _, ch := range l.channels {
		if _, err := conn.Exec(ctx, "LISTEN "+pgx.Identifier{string(ch)}.Sanitize()); err != nil {
			return fmt.Errorf("failed to listen on %s: %w", ch, err)
		}
	}
	l.connected.Store(true)
	slog.InfoContext(ctx, "Realtime listener connected", "channels", len(l.channels))

	// drop requests that arrived while we were dialing
	select {
	case <-l.reconnect:
	default:
	}

	waitCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	var requested atomic.Bool
	go func() {
		select {
		case <-l.reconnect:
			requested.Store(true)
			cancel()
		case <-waitCtx.Done():
		}
	}()

	for {
		n, err := conn.WaitForNotification(waitCtx)
		if err != nil {
			if requested.Load() {
				return errReconnectRequested
			}
			return fmt.Errorf("wait for notification: %w", err)
		}
		l.handler(ctx, domain.ChangeChannel(n.Channel), n.Payload)
	}
}

// Notifier publishes change notifications with pg_notify.
type Notifier struct {
	pool *pgxpool.Pool
}

var _ domain.ChangeNotifier = (*Notifier)(nil)

func NewNotifier(pool *pgxpool.Pool) *Notifier {
	return &Notifier{pool: pool}
}

func (n *Notifier) NotifyChange(ctx context.Context, channel domain.ChangeChannel, id uuid.UUID) error {
	if _, err := n.pool.Exec(ctx, "SELECT pg_notify($1, $2)", string(channel), id.String()); err != nil {
		return fmt.Errorf("failed to notify %s: %w", channel, err)
	}
	return nil
}
