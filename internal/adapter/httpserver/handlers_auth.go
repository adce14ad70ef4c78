package httpserver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/wozamali/admin-console/internal/domain"
	apperrors "github.com/wozamali/admin-console/internal/platform/errors"
)

const authTimeout = 15 * time.Second

func (s *Server) registerAuthRoutes(csrfMiddleware, rateLimiter echo.MiddlewareFunc) {
	s.echo.POST("/auth/login", s.handleLogin, rateLimiter)
	s.echo.POST("/auth/logout", s.handleLogout, s.requireAuth, csrfMiddleware)
	s.echo.GET("/api/session", s.handleSession, s.requireAuth, csrfMiddleware)
}

type loginRequest struct {
	Email    string `json:"email" form:"email"`
	Password string `json:"password" form:"password"`
}

type sessionResponse struct {
	AdminID   string           `json:"admin_id"`
	Email     string           `json:"email"`
	Role      domain.AdminRole `json:"role"`
	ExpiresAt time.Time        `json:"expires_at"`
	CSRFToken string           `json:"csrf_token,omitempty"`
}

// requireAuth loads the token session behind the cookie. API and socket
// requests get 401 when it is missing; page requests are sent home.
func (s *Server) requireAuth(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		cookie, err := s.sessionStore.Get(c.Request(), sessionName)
		if err != nil {
			return s.unauthenticated(c)
		}

		sessionID, ok := cookie.Values[sessionKeyID].(string)
		if !ok || sessionID == "" {
			return s.unauthenticated(c)
		}

		session, err := s.auth.Session(c.Request().Context(), sessionID)
		if errors.Is(err, domain.ErrSessionNotFound) {
			slog.InfoContext(c.Request().Context(), "Cookie references unknown session, invalidating")
			cookie.Options.MaxAge = -1
			_ = cookie.Save(c.Request(), c.Response().Writer)
			return s.unauthenticated(c)
		}
		if err != nil {
			return apperrors.InternalError("failed to load session", err)
		}

		c.Set(contextSession, session)
		c.Set(contextAdminID, session.AdminID)
		return next(c)
	}
}

func (s *Server) unauthenticated(c echo.Context) error {
	path := c.Request().URL.Path
	if strings.HasPrefix(path, "/api/") || strings.HasPrefix(path, "/ws/") || wantsJSON(c) {
		return apperrors.UnauthorizedError("authentication required")
	}
	if err := c.Redirect(http.StatusFound, "/"); err != nil {
		return fmt.Errorf("failed to redirect: %w", err)
	}
	return nil
}

func wantsJSON(c echo.Context) bool {
	return strings.Contains(c.Request().Header.Get(echo.HeaderAccept), echo.MIMEApplicationJSON)
}

func currentSession(c echo.Context) (*domain.AuthSession, error) {
	session, ok := c.Get(contextSession).(*domain.AuthSession)
	if !ok {
		return nil, apperrors.InternalError("missing session in context", nil)
	}
	return session, nil
}

func (s *Server) handleLogin(c echo.Context) error {
	var req loginRequest
	if err := c.Bind(&req); err != nil {
		return apperrors.ValidationError("invalid login request")
	}
	req.Email = strings.TrimSpace(req.Email)
	if req.Email == "" || req.Password == "" {
		return apperrors.ValidationError("email and password are required")
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), authTimeout)
	defer cancel()

	session, err := s.auth.Login(ctx, req.Email, req.Password)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidCredentials) || errors.Is(err, domain.ErrNotAdmin) {
			return err
		}
		return apperrors.ExternalError("sign-in failed", err)
	}

	// A cookie that fails to decode still yields a fresh session to write into.
	cookie, _ := s.sessionStore.Get(c.Request(), sessionName)
	if cookie == nil {
		return apperrors.InternalError("failed to create session cookie", nil)
	}
	clear(cookie.Values)
	cookie.Values[sessionKeyID] = session.ID
	if err := cookie.Save(c.Request(), c.Response().Writer); err != nil {
		return apperrors.InternalError("failed to save session cookie", err)
	}

	if err := c.JSON(http.StatusOK, sessionResponse{
		AdminID:   session.AdminID.String(),
		Email:     session.Email,
		Role:      session.Role,
		ExpiresAt: session.ExpiresAt,
	}); err != nil {
		return fmt.Errorf("failed to send JSON response: %w", err)
	}
	return nil
}

func (s *Server) handleSession(c echo.Context) error {
	session, err := currentSession(c)
	if err != nil {
		return err
	}

	token, _ := c.Get(middleware.DefaultCSRFConfig.ContextKey).(string)
	if err := c.JSON(http.StatusOK, sessionResponse{
		AdminID:   session.AdminID.String(),
		Email:     session.Email,
		Role:      session.Role,
		ExpiresAt: session.ExpiresAt,
		CSRFToken: token,
	}); err != nil {
		return fmt.Errorf("failed to send JSON response: %w", err)
	}
	return nil
}

func (s *Server) handleLogout(c echo.Context) error {
	ctx := c.Request().Context()
	session, err := currentSession(c)
	if err != nil {
		return err
	}

	if err := s.auth.Logout(ctx, session.ID); err != nil {
		return apperrors.InternalError("failed to log out", err)
	}

	cookie, err := s.sessionStore.Get(c.Request(), sessionName)
	if err != nil && cookie == nil {
		return apperrors.InternalError("failed to load session cookie", err)
	}
	cookie.Options.MaxAge = -1
	if err := cookie.Save(c.Request(), c.Response().Writer); err != nil {
		return apperrors.InternalError("failed to clear session cookie", err)
	}

	if wantsJSON(c) {
		return c.NoContent(http.StatusNoContent)
	}
	if err := c.Redirect(http.StatusFound, "/"); err != nil {
		return fmt.Errorf("failed to redirect: %w", err)
	}
	return nil
}
