// Package events defines the outbound events the engine publishes.
package events

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type Type string

const (
	SubscriptionSuspended      Type = "subscription.suspended"
	SubscriptionRestored       Type = "subscription.restored"
	CommissionCancelRecurring  Type = "commission.cancel_recurring"
	CommissionRestartRecurring Type = "commission.restart_recurring"
	PaymentRetryRequested      Type = "payment.retry_requested"
)

// Event is delivered at least once. Consumers deduplicate on ID and stay
// idempotent on SubscriptionID.
type Event struct {
	ID             string            `json:"id"`
	Type           Type              `json:"type"`
	OrganizationID string            `json:"organization_id"`
	SubscriptionID string            `json:"subscription_id"`
	ClientID       string            `json:"client_id,omitempty"`
	Reason         string            `json:"reason,omitempty"`
	OccurredAt     time.Time         `json:"occurred_at"`
	Attributes     map[string]string `json:"attributes,omitempty"`
}

func New(t Type, organizationID, subscriptionID, clientID, reason string, occurredAt time.Time) Event {
	return Event{
		ID:             uuid.NewString(),
		Type:           t,
		OrganizationID: organizationID,
		SubscriptionID: subscriptionID,
		ClientID:       clientID,
		Reason:         reason,
		OccurredAt:     occurredAt,
	}
}

// Publisher sends events to the outbound bus.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
}
