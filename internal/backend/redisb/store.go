package redisb

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/ebk1996/services/internal/domain"
	"github.com/ebk1996/services/internal/logger"
)

// CreateListing stores a listing document under a server timestamp and
// publishes the change. An ID is minted when the listing carries none,
// so seed imports can pass stable ids and stay idempotent.
func (c *Conn) CreateListing(ctx context.Context, listing *domain.Listing) (string, error) {
	if c.isClosed() {
		return "", ErrClosed
	}

	now, err := c.ServerTime(ctx)
	if err != nil {
		return "", err
	}

	stored := *listing
	if stored.ID == "" {
		stored.ID = uuid.NewString()
	}
	stored.CreatedAt = now

	data, err := json.Marshal(&stored)
	if err != nil {
		return "", fmt.Errorf("marshal listing: %w", err)
	}

	pipe := c.client.TxPipeline()
	pipe.Set(ctx, c.keys.listing(stored.ID), data, 0)
	pipe.SAdd(ctx, c.keys.listingIndex(), stored.ID)
	if _, err := pipe.Exec(ctx); err != nil {
		return "", fmt.Errorf("store listing: %w", err)
	}

	c.publishEvent(ctx, "created:"+stored.ID)
	return stored.ID, nil
}

// DeleteListing removes a listing document. Unknown ids are a no-op,
// and the change is only published when something was actually removed.
func (c *Conn) DeleteListing(ctx context.Context, id string) error {
	if c.isClosed() {
		return ErrClosed
	}

	removed, err := c.client.SRem(ctx, c.keys.listingIndex(), id).Result()
	if err != nil {
		return fmt.Errorf("delete listing %s: %w", id, err)
	}
	if err := c.client.Del(ctx, c.keys.listing(id)).Err(); err != nil {
		return fmt.Errorf("delete listing %s: %w", id, err)
	}

	if removed > 0 {
		c.publishEvent(ctx, "deleted:"+id)
	}
	return nil
}

// Listings reads the full collection, unordered. Index entries whose
// document is gone are pruned on the way through; unreadable documents
// are skipped rather than taking the whole board down.
func (c *Conn) Listings(ctx context.Context) ([]*domain.Listing, error) {
	if c.isClosed() {
		return nil, ErrClosed
	}

	ids, err := c.client.SMembers(ctx, c.keys.listingIndex()).Result()
	if err != nil {
		return nil, fmt.Errorf("read listing index: %w", err)
	}

	listings := make([]*domain.Listing, 0, len(ids))
	for _, id := range ids {
		data, err := c.client.Get(ctx, c.keys.listing(id)).Bytes()
		if errors.Is(err, redis.Nil) {
			_ = c.client.SRem(ctx, c.keys.listingIndex(), id).Err()
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("read listing %s: %w", id, err)
		}

		var l domain.Listing
		if err := json.Unmarshal(data, &l); err != nil {
			c.logger.Warn("skipping unreadable listing",
				logger.String("id", id),
				logger.Error(err))
			continue
		}
		listings = append(listings, &l)
	}
	return listings, nil
}

// publishEvent is best effort: a missed event only delays convergence
// until the next change, it never loses data.
func (c *Conn) publishEvent(ctx context.Context, event string) {
	if err := c.client.Publish(ctx, c.keys.events(), event).Err(); err != nil {
		c.logger.Warn("failed to publish listing event",
			logger.String("event", event),
			logger.Error(err))
	}
}
