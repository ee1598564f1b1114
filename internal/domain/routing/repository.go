package routing

import (
	"context"
	"time"
)

type RuleRepository interface {
	Create(ctx context.Context, rule *Rule) error
	Update(ctx context.Context, rule *Rule) error
	GetByID(ctx context.Context, id string) (*Rule, error)
	// ListByCompany returns enabled and disabled rules of a company.
	ListByCompany(ctx context.Context, organizationID, companyID string) ([]*Rule, error)
	Delete(ctx context.Context, id string) error
}

type OverrideRepository interface {
	// Upsert inserts or replaces the override for its (organization, scope, scope id).
	Upsert(ctx context.Context, override *Override) error
	// Find returns nil, nil when no override exists for the key.
	Find(ctx context.Context, organizationID string, scope OverrideScope, scopeID string) (*Override, error)
	Delete(ctx context.Context, organizationID string, scope OverrideScope, scopeID string) error
}

// DecisionLog is the persisted record of one routing evaluation.
type DecisionLog struct {
	ID             string
	OrganizationID string
	CompanyID      string
	PaymentID      string
	Input          Payment
	Decision       Decision
	CreatedAt      time.Time
}

type DecisionLogRepository interface {
	Append(ctx context.Context, entry *DecisionLog) error
	ListByPayment(ctx context.Context, organizationID, paymentID string) ([]*DecisionLog, error)
}
