package redisb

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/ebk1996/services/internal/domain"
	"github.com/ebk1996/services/internal/logger"
)

// PutSession stores or refreshes a session record. The physical TTL is
// twice the logical lifetime, so the sweeper still sees recently
// expired records; deleting a record is what actually revokes it.
func (c *Conn) PutSession(ctx context.Context, session *domain.Session) error {
	if c.isClosed() {
		return ErrClosed
	}

	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}

	pipe := c.client.TxPipeline()
	pipe.Set(ctx, c.keys.session(session.UID), data, 2*c.sessionTTL)
	pipe.SAdd(ctx, c.keys.sessionIndex(), session.UID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("store session: %w", err)
	}
	return nil
}

// DeleteSession removes a session record and publishes the revocation,
// which any connection currently signed in as uid observes as an
// external sign-out.
func (c *Conn) DeleteSession(ctx context.Context, uid string) error {
	if c.isClosed() {
		return ErrClosed
	}

	pipe := c.client.TxPipeline()
	pipe.Del(ctx, c.keys.session(uid))
	pipe.SRem(ctx, c.keys.sessionIndex(), uid)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("delete session %s: %w", uid, err)
	}

	if err := c.client.Publish(ctx, c.keys.auth(), uid).Err(); err != nil {
		c.logger.Warn("failed to publish session revocation",
			logger.String("uid", uid),
			logger.Error(err))
	}
	// Revoke locally as well, so this process reacts even when pub/sub
	// is unavailable.
	c.revoke(uid)
	return nil
}

// Sessions reads the tenant's session records, expired ones included.
// Index entries whose record aged out physically are pruned on the way
// through.
func (c *Conn) Sessions(ctx context.Context) ([]*domain.Session, error) {
	if c.isClosed() {
		return nil, ErrClosed
	}

	uids, err := c.client.SMembers(ctx, c.keys.sessionIndex()).Result()
	if err != nil {
		return nil, fmt.Errorf("read session index: %w", err)
	}

	sessions := make([]*domain.Session, 0, len(uids))
	for _, uid := range uids {
		data, err := c.client.Get(ctx, c.keys.session(uid)).Bytes()
		if errors.Is(err, redis.Nil) {
			_ = c.client.SRem(ctx, c.keys.sessionIndex(), uid).Err()
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("read session %s: %w", uid, err)
		}

		var s domain.Session
		if err := json.Unmarshal(data, &s); err != nil {
			c.logger.Warn("skipping unreadable session",
				logger.String("uid", uid),
				logger.Error(err))
			continue
		}
		sessions = append(sessions, &s)
	}
	return sessions, nil
}
