package httpserver

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/sessions"
	ws "github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/wozamali/admin-console/internal/adapter/metrics"
	"github.com/wozamali/admin-console/internal/adapter/websocket"
	"github.com/wozamali/admin-console/internal/app"
	"github.com/wozamali/admin-console/internal/domain"
	"github.com/wozamali/admin-console/internal/liveness"
	"github.com/wozamali/admin-console/internal/platform/config"
)

type authService interface {
	Login(ctx context.Context, email, password string) (*domain.AuthSession, error)
	Session(ctx context.Context, sessionID string) (*domain.AuthSession, error)
	Logout(ctx context.Context, sessionID string) error
}

type approvalService interface {
	ListEarnings(ctx context.Context, filter domain.EarningFilter) ([]domain.Earning, error)
	Approve(ctx context.Context, earningID, adminID uuid.UUID) (*domain.Earning, error)
	Reject(ctx context.Context, earningID, adminID uuid.UUID, reason string) (*domain.Earning, error)
}

type collectionService interface {
	ListCollections(ctx context.Context, filter domain.CollectionFilter) ([]domain.Collection, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status domain.CollectionStatus) (*domain.Collection, error)
	Export(ctx context.Context, adminID uuid.UUID, format domain.ReportFormat, from, to time.Time) (*app.File, *domain.Export, error)
	ListExports(ctx context.Context, limit int) ([]domain.Export, error)
	Report(ctx context.Context, format domain.ReportFormat, from, to time.Time) (*app.File, error)
}

type managerFactory interface {
	New(sessions domain.SessionSource, navigator domain.Navigator, publisher domain.RefreshPublisher, logger *slog.Logger) *liveness.Manager
}

// Deps are the collaborators the HTTP server routes to.
type Deps struct {
	Auth        authService
	Approvals   approvalService
	Collections collectionService

	// ConsoleSession binds a session ID to the source a liveness manager reads.
	ConsoleSession func(sessionID string) domain.SessionSource

	Hub             *websocket.Hub
	Liveness        managerFactory
	LivenessMetrics *metrics.LivenessMetrics

	HTTPMetrics    *metrics.HTTPMetrics
	MetricsHandler http.Handler
	HealthChecks   []HealthCheck
}

type Server struct {
	echo   *echo.Echo
	config *config.Config

	auth           authService
	approvals      approvalService
	collections    collectionService
	consoleSession func(sessionID string) domain.SessionSource

	hub             *websocket.Hub
	liveness        managerFactory
	livenessMetrics *metrics.LivenessMetrics
	upgrader        ws.Upgrader

	httpMetrics    *metrics.HTTPMetrics
	metricsHandler http.Handler
	sessionStore   *sessions.CookieStore
	healthChecks   []HealthCheck
	startTime      time.Time
}

func NewServer(cfg *config.Config, deps Deps) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	srv := &Server{
		echo:            e,
		config:          cfg,
		auth:            deps.Auth,
		approvals:       deps.Approvals,
		collections:     deps.Collections,
		consoleSession:  deps.ConsoleSession,
		hub:             deps.Hub,
		liveness:        deps.Liveness,
		livenessMetrics: deps.LivenessMetrics,
		upgrader: ws.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     websocket.NewCheckOrigin(cfg.Origins(), cfg.AppEnv != "production"),
		},
		httpMetrics:    deps.HTTPMetrics,
		metricsHandler: deps.MetricsHandler,
		sessionStore:   setupSessionStore(cfg),
		healthChecks:   deps.HealthChecks,
		startTime:      time.Now(),
	}

	srv.registerRoutes()
	return srv
}

func (s *Server) Start() error {
	slog.Info("Starting server", "port", s.config.Port)
	if err := s.echo.Start(":" + s.config.Port); err != nil {
		return fmt.Errorf("failed to start server: %w", err)
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	if err := s.echo.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown server: %w", err)
	}
	return nil
}

// Session keys
const (
	sessionName    = "wozamali-console"
	sessionKeyID   = "sid"
	contextSession = "session"
	contextAdminID = "adminID"
)

func setupSessionStore(cfg *config.Config) *sessions.CookieStore {
	sessionStore := sessions.NewCookieStore([]byte(cfg.SessionSecret))
	sessionStore.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   int(cfg.SessionMaxAge.Seconds()),
		HttpOnly: true,
		Secure:   cfg.AppEnv == "production",
		SameSite: http.SameSiteLaxMode,
	}
	return sessionStore
}
