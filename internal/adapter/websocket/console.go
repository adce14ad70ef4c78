package websocket

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/gorilla/websocket"
	"github.com/wozamali/admin-console/internal/domain"
	"github.com/wozamali/admin-console/internal/liveness"
)

// HomeLocation is where a console is sent after its session ends.
const HomeLocation = "/"

// Sink receives what the console page reports about its user.
type Sink interface {
	RecordActivity(kind liveness.ActivityKind)
	OnVisibilityChange(visible bool)
}

// LogoutFunc ends the auth session behind a console.
type LogoutFunc func(ctx context.Context, sessionID string) error

// Navigator logs a console out and sends its page home through the socket.
type Navigator struct {
	hub    *Hub
	client *Client
	logout LogoutFunc
}

var _ domain.Navigator = (*Navigator)(nil)

func NewNavigator(hub *Hub, client *Client, logout LogoutFunc) *Navigator {
	return &Navigator{hub: hub, client: client, logout: logout}
}

func (n *Navigator) PerformCompleteLogout(ctx context.Context) error {
	if err := n.logout(ctx, n.client.SessionID); err != nil {
		return fmt.Errorf("console logout failed: %w", err)
	}
	n.hub.Send(n.client, Message{Type: TypeLogout})
	return nil
}

func (n *Navigator) ForceRedirectToHome(context.Context) error {
	msg := RedirectMessage(HomeLocation)
	n.hub.Close(n.client, &msg)
	return nil
}

// ForwardRefreshes writes every event to client until events is closed.
func ForwardRefreshes(hub *Hub, client *Client, events <-chan domain.RefreshEvent) {
	for ev := range events {
		hub.Send(client, RefreshMessage(ev))
	}
}

// Serve reads inbound messages until the socket closes or ctx is done.
// Malformed or unknown messages are logged and skipped.
func Serve(ctx context.Context, client *Client, sink Sink, logger *slog.Logger) {
	conn := client.conn
	conn.SetReadLimit(maxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	go func() {
		select {
		case <-ctx.Done():
			client.stop()
		case <-client.Done():
		}
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.Debug("Console socket closed unexpectedly", "error", err)
			}
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))

		msg, err := decode(data)
		if err != nil {
			logger.Debug("Ignoring console message", "error", err)
			continue
		}
		dispatch(msg, sink, logger)
	}
}

func dispatch(msg Message, sink Sink, logger *slog.Logger) {
	switch msg.Type {
	case TypeActivity:
		kind, ok := liveness.ParseActivityKind(msg.Kind)
		if !ok {
			logger.Debug("Ignoring unknown activity kind", "kind", msg.Kind)
			return
		}
		sink.RecordActivity(kind)
	case TypeVisibility:
		if msg.Visible == nil {
			logger.Debug("Ignoring visibility message without state")
			return
		}
		sink.OnVisibilityChange(*msg.Visible)
	default:
		logger.Debug("Ignoring console message", "type", msg.Type)
	}
}

// ChangeFanout pushes a data_changed message to every console on this instance.
func ChangeFanout(hub *Hub) func(ctx context.Context, channel domain.ChangeChannel, payload string) {
	return func(_ context.Context, channel domain.ChangeChannel, payload string) {
		hub.Broadcast(DataChangedMessage(channel, payload))
	}
}

// RevocationHandler closes every console of a revoked session, sending each
// page home first.
func RevocationHandler(hub *Hub) func(ctx context.Context, sessionID string) {
	return func(_ context.Context, sessionID string) {
		msg := RedirectMessage(HomeLocation)
		hub.CloseSession(sessionID, &msg)
	}
}
