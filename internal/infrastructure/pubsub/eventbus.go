// Package pubsub carries outbound engine events and cross-instance cache
// invalidations.
package pubsub

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/payops/payops/internal/domain/shared/events"
	"github.com/payops/payops/internal/shared/logger"
)

// EventHandler consumes one decoded event.
type EventHandler func(ctx context.Context, event events.Event)

// RedisEventBus publishes engine events as JSON on a Redis channel.
type RedisEventBus struct {
	client  *redis.Client
	channel string
	logger  logger.Interface
}

func NewRedisEventBus(client *redis.Client, channel string, log logger.Interface) *RedisEventBus {
	return &RedisEventBus{client: client, channel: channel, logger: log}
}

func (b *RedisEventBus) Publish(ctx context.Context, event events.Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	if err := b.client.Publish(ctx, b.channel, data).Err(); err != nil {
		b.logger.Errorw("failed to publish event",
			"event_id", event.ID,
			"type", event.Type,
			"error", err,
		)
		return fmt.Errorf("failed to publish event: %w", err)
	}
	b.logger.Debugw("event published",
		"event_id", event.ID,
		"type", event.Type,
		"subscription_id", event.SubscriptionID,
	)
	return nil
}

// Subscribe blocks until ctx is done, handing each event to handler.
func (b *RedisEventBus) Subscribe(ctx context.Context, handler EventHandler) error {
	return subscribeWithReconnect(ctx, b.client, b.logger, b.channel, func(payload string) {
		var event events.Event
		if err := json.Unmarshal([]byte(payload), &event); err != nil {
			b.logger.Warnw("failed to unmarshal event", "payload", payload, "error", err)
			return
		}
		handler(ctx, event)
	})
}

func (b *RedisEventBus) Close() error { return nil }
