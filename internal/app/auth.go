package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/wozamali/admin-console/internal/adapter/metrics"
	"github.com/wozamali/admin-console/internal/domain"
	"golang.org/x/sync/singleflight"
)

// AuthService signs admins in against the auth provider and keeps their
// server-side token sessions current.
type AuthService struct {
	provider     domain.AuthProvider
	admins       domain.AdminRepository
	sessions     domain.SessionRepository
	revoker      domain.SessionRevoker
	clock        clockwork.Clock
	metrics      *metrics.SessionMetrics
	refreshGroup singleflight.Group
}

// NewAuthService creates the auth service. m may be nil.
func NewAuthService(provider domain.AuthProvider, admins domain.AdminRepository, sessions domain.SessionRepository, revoker domain.SessionRevoker, clock clockwork.Clock, m *metrics.SessionMetrics) *AuthService {
	return &AuthService{
		provider: provider,
		admins:   admins,
		sessions: sessions,
		revoker:  revoker,
		clock:    clock,
		metrics:  m,
	}
}

// Login exchanges email and password for a token session. Users without an
// active admin role are signed out again and get ErrNotAdmin.
func (s *AuthService) Login(ctx context.Context, email, password string) (*domain.AuthSession, error) {
	tokens, err := s.provider.SignInWithPassword(ctx, email, password)
	if err != nil {
		return nil, err
	}

	admin, err := s.admins.GetByID(ctx, tokens.UserID)
	if err != nil && !errors.Is(err, domain.ErrAdminNotFound) {
		return nil, fmt.Errorf("failed to load admin: %w", err)
	}
	if admin == nil || !admin.IsActive || !admin.Role.CanAccessConsole() {
		if err := s.provider.SignOut(ctx, tokens.AccessToken); err != nil {
			slog.WarnContext(ctx, "Sign-out of non-admin failed", "user_id", tokens.UserID.String(), "error", err)
		}
		return nil, domain.ErrNotAdmin
	}

	now := s.clock.Now()
	session := &domain.AuthSession{
		ID:           uuid.NewString(),
		AdminID:      admin.ID,
		Email:        admin.Email,
		Role:         admin.Role,
		AccessToken:  tokens.AccessToken,
		RefreshToken: tokens.RefreshToken,
		ExpiresAt:    tokens.ExpiresAt,
		CreatedAt:    now,
		RefreshedAt:  now,
	}
	if err := s.sessions.Save(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to save session: %w", err)
	}

	slog.InfoContext(ctx, "Admin signed in", "admin_id", admin.ID.String(), "role", admin.Role)
	return session, nil
}

// Session loads the token session behind sessionID.
func (s *AuthService) Session(ctx context.Context, sessionID string) (*domain.AuthSession, error) {
	session, err := s.sessions.Get(ctx, sessionID)
	switch {
	case errors.Is(err, domain.ErrSessionNotFound):
		s.lookup("miss")
		return nil, err
	case err != nil:
		s.lookup("error")
		return nil, err
	}
	s.lookup("hit")
	return session, nil
}

// refreshTimeout bounds a shared refresh once it no longer follows the
// caller that started it.
const refreshTimeout = 10 * time.Second

// Refresh trades the session's refresh token for new tokens. Concurrent
// refreshes of one session share a single upstream call. The shared call
// outlives a cancelled caller, which only stops waiting for it.
func (s *AuthService) Refresh(ctx context.Context, sessionID string) (*domain.AuthSession, error) {
	ch := s.refreshGroup.DoChan(sessionID, func() (any, error) {
		flightCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), refreshTimeout)
		defer cancel()
		return s.refresh(flightCtx, sessionID)
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		// each caller gets its own copy
		refreshed := *res.Val.(*domain.AuthSession)
		return &refreshed, nil
	}
}

func (s *AuthService) refresh(ctx context.Context, sessionID string) (*domain.AuthSession, error) {
	session, err := s.sessions.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	tokens, err := s.provider.Refresh(ctx, session.RefreshToken)
	if err != nil {
		s.refreshed("error")
		if errors.Is(err, domain.ErrInvalidCredentials) {
			return nil, domain.ErrSessionExpired
		}
		return nil, err
	}
	s.refreshed("ok")

	session.AccessToken = tokens.AccessToken
	session.RefreshToken = tokens.RefreshToken
	session.ExpiresAt = tokens.ExpiresAt
	session.RefreshedAt = s.clock.Now()
	if err := s.sessions.Save(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to save refreshed session: %w", err)
	}
	return session, nil
}

// Logout signs the session out upstream (best-effort), deletes it and tells
// every instance so open consoles for it are sent home. Unknown sessions are
// not an error.
func (s *AuthService) Logout(ctx context.Context, sessionID string) error {
	session, err := s.sessions.Get(ctx, sessionID)
	if errors.Is(err, domain.ErrSessionNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	if err := s.provider.SignOut(ctx, session.AccessToken); err != nil {
		slog.WarnContext(ctx, "Upstream sign-out failed", "admin_id", session.AdminID.String(), "error", err)
	}
	if err := s.sessions.Delete(ctx, sessionID); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	if err := s.revoker.PublishRevocation(ctx, sessionID); err != nil {
		slog.WarnContext(ctx, "Failed to publish session revocation", "error", err)
	} else if s.metrics != nil {
		s.metrics.Revocations.Inc()
	}

	slog.InfoContext(ctx, "Admin signed out", "admin_id", session.AdminID.String())
	return nil
}

// ConsoleSession binds one console's session ID to the service so a
// liveness manager can read and refresh it.
func (s *AuthService) ConsoleSession(sessionID string) *ConsoleSession {
	return &ConsoleSession{auth: s, id: sessionID}
}

func (s *AuthService) lookup(result string) {
	if s.metrics != nil {
		s.metrics.Lookups.WithLabelValues(result).Inc()
	}
}

func (s *AuthService) refreshed(result string) {
	if s.metrics != nil {
		s.metrics.Refreshes.WithLabelValues(result).Inc()
	}
}

type ConsoleSession struct {
	auth *AuthService
	id   string
}

var _ domain.SessionSource = (*ConsoleSession)(nil)

// GetSession returns (nil, nil) once the session is gone.
func (c *ConsoleSession) GetSession(ctx context.Context) (*domain.AuthSession, error) {
	session, err := c.auth.Session(ctx, c.id)
	if errors.Is(err, domain.ErrSessionNotFound) {
		return nil, nil
	}
	return session, err
}

func (c *ConsoleSession) RefreshSession(ctx context.Context) (*domain.AuthSession, error) {
	return c.auth.Refresh(ctx, c.id)
}
