package pubsub

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/payops/payops/internal/domain/shared/events"
	"github.com/payops/payops/internal/shared/logger"
)

// AMQPEventBus publishes events to a durable topic exchange, routed by event
// type.
type AMQPEventBus struct {
	mu       sync.Mutex
	conn     *amqp.Connection
	channel  *amqp.Channel
	exchange string
	logger   logger.Interface
}

func NewAMQPEventBus(url, exchange string, log logger.Interface) (*AMQPEventBus, error) {
	conn, err := amqp.DialConfig(url, amqp.Config{Dial: amqp.DefaultDial(10 * time.Second)})
	if err != nil {
		return nil, fmt.Errorf("failed to dial amqp: %w", err)
	}
	b := &AMQPEventBus{conn: conn, exchange: exchange, logger: log}
	if err := b.reopen(); err != nil {
		conn.Close()
		return nil, err
	}
	return b, nil
}

func (b *AMQPEventBus) reopen() error {
	ch, err := b.conn.Channel()
	if err != nil {
		return fmt.Errorf("failed to open amqp channel: %w", err)
	}
	if err := ch.ExchangeDeclare(b.exchange, "topic", true, false, false, false, nil); err != nil {
		ch.Close()
		return fmt.Errorf("failed to declare exchange %s: %w", b.exchange, err)
	}
	b.channel = ch
	return nil
}

// Publish retries once on a fresh channel when the current one failed.
func (b *AMQPEventBus) Publish(ctx context.Context, event events.Event) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	msg := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    event.ID,
		Timestamp:    event.OccurredAt,
		Body:         body,
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	err = b.channel.PublishWithContext(ctx, b.exchange, string(event.Type), false, false, msg)
	if err == nil {
		return nil
	}
	b.logger.Warnw("amqp publish failed, reopening channel",
		"exchange", b.exchange,
		"type", event.Type,
		"error", err,
	)
	if reopenErr := b.reopen(); reopenErr != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}
	if err := b.channel.PublishWithContext(ctx, b.exchange, string(event.Type), false, false, msg); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}
	return nil
}

func (b *AMQPEventBus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.channel != nil {
		b.channel.Close()
	}
	return b.conn.Close()
}
