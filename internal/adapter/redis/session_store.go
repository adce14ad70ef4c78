package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/wozamali/admin-console/internal/domain"
	"github.com/wozamali/admin-console/internal/platform/crypto"
)

const sessionKeyPrefix = "console:session:"

// SessionStore keeps token sessions as JSON strings with a sliding TTL.
// Access and refresh tokens are sealed with cipher before they are written.
type SessionStore struct {
	rdb    goredis.Cmdable
	ttl    time.Duration
	cipher crypto.Cipher
}

var _ domain.SessionRepository = (*SessionStore)(nil)

// NewSessionStore stores tokens in plaintext when cipher is nil.
func NewSessionStore(rdb goredis.Cmdable, ttl time.Duration, cipher crypto.Cipher) *SessionStore {
	if cipher == nil {
		cipher = crypto.Noop{}
	}
	return &SessionStore{rdb: rdb, ttl: ttl, cipher: cipher}
}

func sessionKey(id string) string {
	return sessionKeyPrefix + id
}

// Save writes the session and resets its TTL.
func (s *SessionStore) Save(ctx context.Context, session *domain.AuthSession) error {
	sealed := *session
	var err error
	if sealed.AccessToken, err = s.cipher.Seal(session.AccessToken); err != nil {
		return fmt.Errorf("failed to seal access token: %w", err)
	}
	if sealed.RefreshToken, err = s.cipher.Seal(session.RefreshToken); err != nil {
		return fmt.Errorf("failed to seal refresh token: %w", err)
	}

	data, err := json.Marshal(&sealed)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}
	if err := s.rdb.Set(ctx, sessionKey(session.ID), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	return nil
}

func (s *SessionStore) Get(ctx context.Context, sessionID string) (*domain.AuthSession, error) {
	data, err := s.rdb.Get(ctx, sessionKey(sessionID)).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, domain.ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}

	var session domain.AuthSession
	if err := json.Unmarshal(data, &session); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session: %w", err)
	}
	if session.AccessToken, err = s.cipher.Open(session.AccessToken); err != nil {
		return nil, fmt.Errorf("failed to open access token: %w", err)
	}
	if session.RefreshToken, err = s.cipher.Open(session.RefreshToken); err != nil {
		return nil, fmt.Errorf("failed to open refresh token: %w", err)
	}
	return &session, nil
}

// Delete removes the session. Deleting a missing session is not an error.
func (s *SessionStore) Delete(ctx context.Context, sessionID string) error {
	if err := s.rdb.Del(ctx, sessionKey(sessionID)).Err(); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

const scanCount = 100

// Each calls fn for every stored session. Sessions that vanish or fail to
// decode mid-scan are skipped.
func (s *SessionStore) Each(ctx context.Context, fn func(*domain.AuthSession) error) error {
	var cursor uint64
	for {
		keys, next, err := s.rdb.Scan(ctx, cursor, sessionKeyPrefix+"*", scanCount).Result()
		if err != nil {
			return fmt.Errorf("failed to scan sessions: %w", err)
		}

		for _, key := range keys {
			session, err := s.Get(ctx, strings.TrimPrefix(key, sessionKeyPrefix))
			if errors.Is(err, domain.ErrSessionNotFound) {
				continue
			}
			if err != nil {
				slog.WarnContext(ctx, "Skipping unreadable session", "key", key, "error", err)
				continue
			}
			if err := fn(session); err != nil {
				return err
			}
		}

		cursor = next
		if cursor == 0 {
			return nil
		}
	}
}
