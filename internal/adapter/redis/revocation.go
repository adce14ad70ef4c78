package redis

import (
	"context"
	"fmt"
	"log/slog"

	goredis "github.com/redis/go-redis/v9"
	"github.com/wozamali/admin-console/internal/domain"
)

const revocationChannel = "console:session:revoked"

// RevocationPublisher announces logged-out sessions to every instance.
type RevocationPublisher struct {
	rdb *goredis.Client
}

var _ domain.SessionRevoker = (*RevocationPublisher)(nil)

func NewRevocationPublisher(rdb *goredis.Client) *RevocationPublisher {
	return &RevocationPublisher{rdb: rdb}
}

func (p *RevocationPublisher) PublishRevocation(ctx context.Context, sessionID string) error {
	if err := p.rdb.Publish(ctx, revocationChannel, sessionID).Err(); err != nil {
		return fmt.Errorf("failed to publish session revocation: %w", err)
	}
	return nil
}

// RevocationSubscriber calls onRevoke for every revoked session ID.
type RevocationSubscriber struct {
	rdb      *goredis.Client
	onRevoke func(ctx context.Context, sessionID string)
}

func NewRevocationSubscriber(rdb *goredis.Client, onRevoke func(ctx context.Context, sessionID string)) *RevocationSubscriber {
	return &RevocationSubscriber{rdb: rdb, onRevoke: onRevoke}
}

// Start blocks until ctx is cancelled.
func (s *RevocationSubscriber) Start(ctx context.Context) {
	pubsub := s.rdb.Subscribe(ctx, revocationChannel)
	defer func() { _ = pubsub.Close() }()

	ch := pubsub.Channel()
	for {
		select {
		case msg := <-ch:
			if msg == nil {
				return
			}
			s.handle(ctx, msg.Payload)
		case <-ctx.Done():
			return
		}
	}
}

func (s *RevocationSubscriber) handle(ctx context.Context, sessionID string) {
	if sessionID == "" {
		slog.Warn("Empty session revocation message")
		return
	}
	s.onRevoke(ctx, sessionID)
	slog.Debug("Session revocation received via pub/sub")
}
