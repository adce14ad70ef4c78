// Command revoke-sessions deletes console token sessions from Redis and tells
// every running instance to send the affected consoles home.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net/url"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/wozamali/admin-console/internal/adapter/redis"
	"github.com/wozamali/admin-console/internal/domain"
	"github.com/wozamali/admin-console/internal/platform/logging"
)

type selector struct {
	admin   uuid.UUID
	all     bool
	expired bool
	now     time.Time
}

func (s selector) matches(session *domain.AuthSession) bool {
	switch {
	case s.all:
		return true
	case s.admin != uuid.Nil && session.AdminID == s.admin:
		return true
	case s.expired && session.ExpiresAt.Before(s.now):
		return true
	}
	return false
}

func main() {
	var (
		redisURL = flag.String("redis", os.Getenv("REDIS_URL"), "Redis URL (or set REDIS_URL env)")
		adminID  = flag.String("admin", "", "Revoke every session of this admin ID")
		all      = flag.Bool("all", false, "Revoke every console session")
		expired  = flag.Bool("expired", false, "Revoke sessions whose access token has expired")
		dryRun   = flag.Bool("dry-run", false, "Dry run mode (don't write to Redis)")
		verbose  = flag.Bool("verbose", false, "Verbose logging")
	)
	flag.Parse()

	if *redisURL == "" {
		log.Fatal("Redis URL required (--redis or REDIS_URL env)")
	}

	sel := selector{all: *all, expired: *expired, now: time.Now()}
	if *adminID != "" {
		id, err := uuid.Parse(*adminID)
		if err != nil {
			log.Fatalf("Invalid --admin: %v", err)
		}
		sel.admin = id
	}
	if !sel.all && !sel.expired && sel.admin == uuid.Nil {
		log.Fatal("Nothing selected (use --admin, --expired or --all)")
	}

	level := "info"
	if *verbose {
		level = "debug"
	}
	logging.InitLogger(level, "text")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	rdb, err := redis.NewClient(ctx, *redisURL)
	if err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}
	defer func() { _ = rdb.Close() }()
	slog.Info("Connected to Redis", "url", sanitizeURL(*redisURL))

	// Sessions are only matched and deleted, so tokens stay sealed and the
	// TTL is unused.
	store := redis.NewSessionStore(rdb, 0, nil)
	publisher := redis.NewRevocationPublisher(rdb)

	if err := revoke(ctx, store, publisher, sel, *dryRun); err != nil {
		log.Fatalf("Revocation failed: %v", err)
	}
}

func revoke(ctx context.Context, store *redis.SessionStore, publisher domain.SessionRevoker, sel selector, dryRun bool) error {
	start := time.Now()
	var scanned, revoked int

	slog.Info("Starting revocation", "dry_run", dryRun)

	err := store.Each(ctx, func(session *domain.AuthSession) error {
		scanned++
		if !sel.matches(session) {
			return nil
		}

		slog.Debug("Revoking session",
			"session_id", session.ID,
			"admin_id", session.AdminID.String(),
			"expires_at", session.ExpiresAt.Format(time.RFC3339))
		revoked++

		if dryRun {
			return nil
		}
		if err := store.Delete(ctx, session.ID); err != nil {
			return err
		}
		if err := publisher.PublishRevocation(ctx, session.ID); err != nil {
			return fmt.Errorf("failed to publish revocation for %s: %w", session.ID, err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	slog.Info("Revocation summary",
		"scanned", scanned,
		"revoked", revoked,
		"duration_ms", time.Since(start).Milliseconds())
	return nil
}

// sanitizeURL hides the password in a Redis URL for logging.
func sanitizeURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return "invalid URL"
	}
	return u.Redacted()
}
