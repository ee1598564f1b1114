package pubsub

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/payops/payops/internal/shared/biztime"
	"github.com/payops/payops/internal/shared/logger"
)

// RulesChangedEvent tells other instances to drop a company's cached rules.
type RulesChangedEvent struct {
	OrganizationID string `json:"organization_id"`
	CompanyID      string `json:"company_id"`
	Timestamp      int64  `json:"timestamp"`
	InstanceID     string `json:"instance_id"`
}

// RuleInvalidationBus relays routing-rule changes between instances.
type RuleInvalidationBus struct {
	client     *redis.Client
	channel    string
	logger     logger.Interface
	instanceID string
}

func NewRuleInvalidationBus(client *redis.Client, prefix string, log logger.Interface) *RuleInvalidationBus {
	return &RuleInvalidationBus{
		client:     client,
		channel:    prefix + "routing:rules:changed",
		logger:     log,
		instanceID: uuid.NewString(),
	}
}

func (b *RuleInvalidationBus) PublishRulesChanged(ctx context.Context, organizationID, companyID string) error {
	data, err := json.Marshal(RulesChangedEvent{
		OrganizationID: organizationID,
		CompanyID:      companyID,
		Timestamp:      biztime.NowUTC().Unix(),
		InstanceID:     b.instanceID,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal rules changed event: %w", err)
	}
	if err := b.client.Publish(ctx, b.channel, data).Err(); err != nil {
		return fmt.Errorf("failed to publish rules changed event: %w", err)
	}
	return nil
}

// Subscribe calls invalidate for changes made by other instances. The local
// cache is already invalidated by the writer.
func (b *RuleInvalidationBus) Subscribe(ctx context.Context, invalidate func(organizationID, companyID string)) error {
	return subscribeWithReconnect(ctx, b.client, b.logger, b.channel, func(payload string) {
		var event RulesChangedEvent
		if err := json.Unmarshal([]byte(payload), &event); err != nil {
			b.logger.Warnw("failed to unmarshal rules changed event", "payload", payload, "error", err)
			return
		}
		if event.InstanceID == b.instanceID {
			return
		}
		invalidate(event.OrganizationID, event.CompanyID)
	})
}
