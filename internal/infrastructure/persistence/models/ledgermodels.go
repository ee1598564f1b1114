package models

import (
	"time"

	"gorm.io/datatypes"

	"github.com/payops/payops/internal/shared/constants"
)

type AuditEntryModel struct {
	ID             string `gorm:"primaryKey;size:32"`
	OrganizationID string `gorm:"not null;size:64"`
	EntityType     string `gorm:"not null;size:40;index:idx_audit_entity,priority:1"`
	EntityID       string `gorm:"not null;size:64;index:idx_audit_entity,priority:2"`
	Action         string `gorm:"not null;size:64"`
	Actor          string `gorm:"not null;size:64"`
	Before         datatypes.JSON
	After          datatypes.JSON
	IdempotencyKey string    `gorm:"size:191"`
	CreatedAt      time.Time `gorm:"index"`
}

func (AuditEntryModel) TableName() string {
	return constants.TableAuditEntries
}

type IdempotencyKeyModel struct {
	Key       string `gorm:"primaryKey;size:191"`
	Scope     string `gorm:"not null;size:64"`
	CreatedAt time.Time
}

func (IdempotencyKeyModel) TableName() string {
	return constants.TableIdempotencyKeys
}

type AlertModel struct {
	ID             string `gorm:"primaryKey;size:32"`
	OrganizationID string `gorm:"not null;size:64;index:idx_alert_company,priority:1"`
	CompanyID      string `gorm:"size:64;index:idx_alert_company,priority:2"`
	Code           string `gorm:"not null;size:64;index:idx_alert_company,priority:3"`
	Severity       string `gorm:"not null;size:16"`
	Message        string `gorm:"size:1000"`
	Context        datatypes.JSONMap
	CreatedAt      time.Time `gorm:"index"`
}

func (AlertModel) TableName() string {
	return constants.TableAlerts
}

// SideEffectModel is one outbox row. DedupKey makes enqueueing idempotent.
type SideEffectModel struct {
	ID             string         `gorm:"primaryKey;size:32"`
	OrganizationID string         `gorm:"not null;size:64"`
	Kind           string         `gorm:"not null;size:32"`
	DedupKey       string         `gorm:"not null;size:191;uniqueIndex:uk_side_effect_dedup"`
	Payload        datatypes.JSON `gorm:"not null"`
	Status         string         `gorm:"not null;size:16;index:idx_side_effect_due,priority:1"`
	Attempts       int            `gorm:"not null;default:0"`
	NextAttemptAt  time.Time      `gorm:"index:idx_side_effect_due,priority:2"`
	LastError      string         `gorm:"size:1000"`
	CompletedAt    *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

func (SideEffectModel) TableName() string {
	return constants.TableSideEffects
}

type PaymentLinkModel struct {
	ID             string    `gorm:"primaryKey;size:32"`
	OrganizationID string    `gorm:"not null;size:64"`
	ClientID       string    `gorm:"not null;size:64;index:idx_payment_link_client,priority:1"`
	ScheduleID     string    `gorm:"size:64;index:idx_payment_link_client,priority:2"`
	TokenHash      string    `gorm:"not null;size:64;uniqueIndex"`
	ExpiresAt      time.Time `gorm:"not null;index"`
	UsedAt         *time.Time
	RevokedAt      *time.Time
	CreatedAt      time.Time
}

func (PaymentLinkModel) TableName() string {
	return constants.TablePaymentLinks
}

// All lists every model the engine persists, in migration order.
func All() []any {
	return []any{
		&RoutingRuleModel{}, &ProviderOverrideModel{}, &RoutingDecisionModel{},
		&RetryPolicyModel{}, &RetryScheduleModel{}, &RetryAttemptModel{}, &ReminderModel{},
		&DunningConfigModel{}, &DunningRunModel{},
		&PaymentScheduleModel{}, &BillingLineModel{}, &InvoiceModel{}, &ServiceBundleModel{},
		&AuditEntryModel{}, &IdempotencyKeyModel{}, &AlertModel{},
		&SideEffectModel{}, &PaymentLinkModel{},
	}
}
