package pubsub

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/payops/payops/internal/shared/goroutine"
	"github.com/payops/payops/internal/shared/logger"
)

// subscribeWithReconnect keeps a channel subscription alive until ctx ends,
// backing off exponentially between reconnects.
func subscribeWithReconnect(ctx context.Context, client *redis.Client, log logger.Interface, channel string, handler func(payload string)) error {
	backoff := time.Second
	maxBackoff := 30 * time.Second

	for {
		err := subscribe(ctx, client, log, channel, handler)
		if ctx.Err() != nil {
			return ctx.Err()
		}

		log.Warnw("subscription disconnected, reconnecting",
			"channel", channel,
			"error", err,
			"backoff", backoff,
		)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}

		backoff = min(backoff*2, maxBackoff)
	}
}

func subscribe(ctx context.Context, client *redis.Client, log logger.Interface, channel string, handler func(payload string)) error {
	ps := client.Subscribe(ctx, channel)
	defer ps.Close()

	if _, err := ps.Receive(ctx); err != nil {
		return fmt.Errorf("failed to subscribe to channel %s: %w", channel, err)
	}
	log.Infow("subscribed to channel", "channel", channel)

	ch := ps.Channel()
	for {
		select {
		case <-ctx.Done():
			log.Infow("subscriber stopped", "channel", channel, "reason", ctx.Err())
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				log.Warnw("subscription channel closed", "channel", channel)
				return nil
			}
			goroutine.SafeGo(log, "pubsub-handler-"+channel, func() {
				handler(msg.Payload)
			})
		}
	}
}
