package pubsub

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/payops/payops/internal/domain/shared/events"
	sharedConfig "github.com/payops/payops/internal/shared/config"
	"github.com/payops/payops/internal/shared/logger"
)

const (
	DriverRedis    = "redis"
	DriverRabbitMQ = "rabbitmq"
	DriverMemory   = "memory"
)

// EventBus is an events.Publisher that owns a connection.
type EventBus interface {
	events.Publisher
	Close() error
}

var (
	_ EventBus = (*RedisEventBus)(nil)
	_ EventBus = (*AMQPEventBus)(nil)
	_ EventBus = (*MemoryEventBus)(nil)
)

// NewEventBus builds the outbound bus selected by cfg.Driver.
func NewEventBus(_ context.Context, cfg sharedConfig.EventBusConfig, client *redis.Client, log logger.Interface) (EventBus, error) {
	switch cfg.Driver {
	case "", DriverRedis:
		if client == nil {
			return nil, fmt.Errorf("redis event bus requires a redis client")
		}
		return NewRedisEventBus(client, cfg.Channel, log), nil
	case DriverRabbitMQ:
		return NewAMQPEventBus(cfg.AMQPURL, cfg.Exchange, log)
	case DriverMemory:
		return NewMemoryEventBus(), nil
	}
	return nil, fmt.Errorf("unknown event bus driver: %q", cfg.Driver)
}
