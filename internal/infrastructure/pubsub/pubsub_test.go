package pubsub

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/payops/payops/internal/domain/shared/events"
	sharedConfig "github.com/payops/payops/internal/shared/config"
	"github.com/payops/payops/internal/shared/logger"
)

func newClient(t *testing.T) *redis.Client {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestRedisEventBus_PublishSubscribe(t *testing.T) {
	client := newClient(t)
	bus := NewRedisEventBus(client, "payops:events", logger.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	received := make(chan events.Event, 1)
	go func() {
		_ = bus.Subscribe(ctx, func(_ context.Context, e events.Event) { received <- e })
	}()

	sent := events.New(events.SubscriptionSuspended, "org_1", "sub_1", "cli_1", "ABONNEMENT_SUSPENDED", time.Now().UTC())
	require.Eventually(t, func() bool {
		if err := bus.Publish(ctx, sent); err != nil {
			return false
		}
		select {
		case got := <-received:
			assert.Equal(t, sent.ID, got.ID)
			assert.Equal(t, events.SubscriptionSuspended, got.Type)
			assert.Equal(t, "sub_1", got.SubscriptionID)
			return true
		case <-time.After(50 * time.Millisecond):
			return false
		}
	}, 2*time.Second, 10*time.Millisecond)
}

func TestRuleInvalidationBus_SkipsOwnInstance(t *testing.T) {
	client := newClient(t)
	local := NewRuleInvalidationBus(client, "payops:", logger.NewNop())
	remote := NewRuleInvalidationBus(client, "payops:", logger.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	got := make(chan string, 4)
	go func() {
		_ = local.Subscribe(ctx, func(org, company string) { got <- org + "/" + company })
	}()

	require.Eventually(t, func() bool {
		_ = local.PublishRulesChanged(ctx, "org_1", "self")
		_ = remote.PublishRulesChanged(ctx, "org_1", "co_1")
		select {
		case key := <-got:
			assert.Equal(t, "org_1/co_1", key)
			return true
		case <-time.After(50 * time.Millisecond):
			return false
		}
	}, 2*time.Second, 10*time.Millisecond)
}

func TestMemoryEventBus(t *testing.T) {
	bus := NewMemoryEventBus()
	ctx := context.Background()

	require.NoError(t, bus.Publish(ctx, events.New(events.SubscriptionSuspended, "org_1", "sub_1", "", "", time.Now())))
	require.NoError(t, bus.Publish(ctx, events.New(events.CommissionCancelRecurring, "org_1", "sub_1", "", "", time.Now())))
	assert.Len(t, bus.Events(), 2)
	assert.Len(t, bus.OfType(events.CommissionCancelRecurring), 1)

	bus.FailWith(errors.New("down"))
	assert.Error(t, bus.Publish(ctx, events.New(events.SubscriptionRestored, "org_1", "sub_1", "", "", time.Now())))
	assert.Len(t, bus.Events(), 2)
}

func TestNewEventBus(t *testing.T) {
	bus, err := NewEventBus(context.Background(), sharedConfig.EventBusConfig{Driver: DriverMemory}, nil, logger.NewNop())
	require.NoError(t, err)
	assert.IsType(t, &MemoryEventBus{}, bus)

	_, err = NewEventBus(context.Background(), sharedConfig.EventBusConfig{Driver: DriverRedis}, nil, logger.NewNop())
	assert.Error(t, err)

	_, err = NewEventBus(context.Background(), sharedConfig.EventBusConfig{Driver: "kafka"}, nil, logger.NewNop())
	assert.Error(t, err)
}
