// Package audit holds the transition ledger and idempotency keys.
package audit

import (
	"context"
	"encoding/json"
	"time"

	"github.com/payops/payops/internal/shared/id"
)

type EntityType string

const (
	EntityRetrySchedule   EntityType = "retry_schedule"
	EntityRetryPolicy     EntityType = "retry_policy"
	EntityDunningRun      EntityType = "dunning_run"
	EntityDunningConfig   EntityType = "dunning_config"
	EntityRoutingRule     EntityType = "routing_rule"
	EntityOverride        EntityType = "provider_override"
	EntityPaymentSchedule EntityType = "payment_schedule"
	EntityBillingLine     EntityType = "billing_line"
	EntityInvoice         EntityType = "invoice"
)

// SystemActor marks transitions made by the engine itself.
const SystemActor = "system"

// Entry is one recorded state transition.
type Entry struct {
	ID             string
	OrganizationID string
	EntityType     EntityType
	EntityID       string
	Action         string
	Actor          string
	Before         json.RawMessage
	After          json.RawMessage
	IdempotencyKey string
	CreatedAt      time.Time
}

func NewEntry(organizationID string, entityType EntityType, entityID, action, actor string, before, after json.RawMessage, now time.Time) *Entry {
	if actor == "" {
		actor = SystemActor
	}
	return &Entry{
		ID:             id.New(id.PrefixAuditEntry),
		OrganizationID: organizationID,
		EntityType:     entityType,
		EntityID:       entityID,
		Action:         action,
		Actor:          actor,
		Before:         before,
		After:          after,
		CreatedAt:      now,
	}
}

type Repository interface {
	Append(ctx context.Context, entry *Entry) error
	ListByEntity(ctx context.Context, entityType EntityType, entityID string) ([]*Entry, error)
}

// IdempotencyRepository stores consumed idempotency keys.
type IdempotencyRepository interface {
	// Claim inserts key and reports false when it was already present.
	Claim(ctx context.Context, key, scope string, now time.Time) (bool, error)
	Exists(ctx context.Context, key string) (bool, error)
}
