package httpserver

import (
	"context"
	"log/slog"

	"github.com/labstack/echo/v4"
	"github.com/wozamali/admin-console/internal/adapter/websocket"
	"github.com/wozamali/admin-console/internal/liveness"
	"github.com/wozamali/admin-console/internal/platform/logging"
)

func (s *Server) registerConsoleRoutes() {
	s.echo.GET("/ws/console", s.handleConsoleSocket, s.requireAuth)
}

// handleConsoleSocket serves one console tab. The tab gets its own liveness
// manager, started after the configured delay and stopped when the socket
// closes.
func (s *Server) handleConsoleSocket(c echo.Context) error {
	session, err := currentSession(c)
	if err != nil {
		return err
	}

	conn, err := s.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		// the upgrader has already written the HTTP error
		slog.DebugContext(c.Request().Context(), "Console socket upgrade failed", "error", err)
		return nil
	}

	client, err := s.hub.Register(session.ID, conn)
	if err != nil {
		slog.WarnContext(c.Request().Context(), "Console socket rejected", "admin_id", session.AdminID.String(), "error", err)
		return nil
	}
	defer s.hub.Unregister(client)

	ctx, cancel := context.WithCancel(c.Request().Context())
	defer cancel()

	logger := logging.WithAdmin(slog.Default(), session.AdminID.String())

	bus := liveness.NewBus(s.livenessMetrics)
	sub := bus.Subscribe(0)
	defer sub.Close()
	go websocket.ForwardRefreshes(s.hub, client, sub.C)

	navigator := websocket.NewNavigator(s.hub, client, s.auth.Logout)
	manager := s.liveness.New(s.consoleSession(session.ID), navigator, bus, logger)
	manager.StartAfter(ctx, s.config.LivenessStartupDelay)
	defer manager.Stop()

	logger.InfoContext(ctx, "Console socket opened")
	websocket.Serve(ctx, client, manager, logger)
	logger.InfoContext(ctx, "Console socket closed")
	return nil
}
