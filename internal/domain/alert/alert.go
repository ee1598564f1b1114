package alert

import (
	"context"
	"time"

	"github.com/payops/payops/internal/shared/id"
)

type Severity string

const (
	SeverityInfo     Severity = "INFO"
	SeverityWarning  Severity = "WARNING"
	SeverityCritical Severity = "CRITICAL"
)

const (
	CodeRoutingNotFound      = "PROVIDER_ROUTING_NOT_FOUND"
	CodeReminderFailed       = "REMINDER_FAILED"
	CodeSideEffectDead       = "SIDE_EFFECT_DEAD_LETTER"
	CodeDunningConfigMissing = "DUNNING_CONFIG_NOT_FOUND"
	CodeRetryPolicyMissing   = "RETRY_POLICY_NOT_FOUND"
)

// Alert surfaces a condition to operators, scoped to a company.
type Alert struct {
	ID             string
	OrganizationID string
	CompanyID      string
	Code           string
	Severity       Severity
	Message        string
	Context        map[string]string
	CreatedAt      time.Time
}

func New(organizationID, companyID, code string, severity Severity, message string, ctx map[string]string, now time.Time) *Alert {
	return &Alert{
		ID:             id.New(id.PrefixAlert),
		OrganizationID: organizationID,
		CompanyID:      companyID,
		Code:           code,
		Severity:       severity,
		Message:        message,
		Context:        ctx,
		CreatedAt:      now,
	}
}

// Actionable reports whether the alert needs an operator.
func (a *Alert) Actionable() bool {
	return a.Severity != SeverityInfo
}

type Repository interface {
	Create(ctx context.Context, a *Alert) error
	ListByCompany(ctx context.Context, organizationID, companyID string, limit int) ([]*Alert, error)
	CountByCode(ctx context.Context, organizationID, companyID, code string) (int64, error)
}
