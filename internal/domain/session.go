package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// AuthTokens is what the auth provider hands back on sign-in or refresh.
type AuthTokens struct {
	UserID       uuid.UUID
	Email        string
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
}

// AuthSession is the server-side token session behind a console cookie.
// Tokens never leave the server; the browser only holds ID.
type AuthSession struct {
	ID           string    `json:"id"`
	AdminID      uuid.UUID `json:"admin_id"`
	Email        string    `json:"email"`
	Role         AdminRole `json:"role"`
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresAt    time.Time `json:"expires_at"`
	CreatedAt    time.Time `json:"created_at"`
	RefreshedAt  time.Time `json:"refreshed_at"`
}

// AuthProvider is the hosted authentication service (Supabase Auth).
type AuthProvider interface {
	SignInWithPassword(ctx context.Context, email, password string) (*AuthTokens, error)
	Refresh(ctx context.Context, refreshToken string) (*AuthTokens, error)
	SignOut(ctx context.Context, accessToken string) error
}

// SessionRepository persists token sessions keyed by session ID.
type SessionRepository interface {
	Save(ctx context.Context, session *AuthSession) error
	Get(ctx context.Context, sessionID string) (*AuthSession, error)
	Delete(ctx context.Context, sessionID string) error
}

// SessionRevoker fans a revoked session ID out to every instance so open
// console sockets for it can be sent home.
type SessionRevoker interface {
	PublishRevocation(ctx context.Context, sessionID string) error
}
