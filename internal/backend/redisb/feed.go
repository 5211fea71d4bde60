package redisb

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/ebk1996/services/internal/backend"
)

// SubscribeListings opens a live feed over the tenant's collection. The
// feed re-reads the collection after every published change, so
// subscribers converge on the stored state even when individual events
// are dropped.
func (c *Conn) SubscribeListings(ctx context.Context) (*backend.Subscription, error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, ErrClosed
	}
	pubsub := c.client.Subscribe(ctx, c.keys.events())
	c.feeds[pubsub] = struct{}{}
	c.mu.Unlock()

	if _, err := pubsub.Receive(ctx); err != nil {
		c.dropFeed(pubsub)
		return nil, fmt.Errorf("subscribe listings: %w", err)
	}

	sub := backend.NewSubscription(func() { _ = pubsub.Close() })
	go c.pumpListings(ctx, pubsub, sub)
	return sub, nil
}

// pumpListings is the feed's single producer: it alone pushes, fails,
// and finally terminates the subscription.
func (c *Conn) pumpListings(ctx context.Context, pubsub *redis.PubSub, sub *backend.Subscription) {
	defer sub.Terminate()
	defer c.dropFeed(pubsub)

	// Current contents first.
	c.refresh(ctx, sub)

	ch := pubsub.Channel()
	for {
		select {
		case _, ok := <-ch:
			if !ok {
				return
			}
			// A burst of changes collapses into one re-read.
			drainEvents(ch)
			c.refresh(ctx, sub)
		case <-ctx.Done():
			return
		}
	}
}

func (c *Conn) refresh(ctx context.Context, sub *backend.Subscription) {
	listings, err := c.Listings(ctx)
	if err != nil {
		sub.Fail(fmt.Errorf("refresh listings: %w", err))
		return
	}
	sub.Push(listings)
}

func (c *Conn) dropFeed(pubsub *redis.PubSub) {
	c.mu.Lock()
	delete(c.feeds, pubsub)
	c.mu.Unlock()
	_ = pubsub.Close()
}

func drainEvents(ch <-chan *redis.Message) {
	for {
		select {
		case _, ok := <-ch:
			if !ok {
				return
			}
		default:
			return
		}
	}
}
