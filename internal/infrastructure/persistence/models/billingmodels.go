package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"

	"github.com/payops/payops/internal/shared/constants"
)

type PaymentScheduleModel struct {
	ID             string `gorm:"primaryKey;size:64"`
	OrganizationID string `gorm:"not null;size:64;index:idx_payment_schedule_client,priority:1"`
	ClientID       string `gorm:"not null;size:64;index:idx_payment_schedule_client,priority:2"`
	ContractID     string `gorm:"size:64"`
	SubscriptionID string `gorm:"size:64;index"`
	Status         string `gorm:"not null;size:16"`
	RetryCount     int    `gorm:"not null;default:0"`
	PauseReason    string `gorm:"size:255"`
	PausedAt       *time.Time
	Metadata       datatypes.JSONMap
	Version        int `gorm:"not null;default:1"`
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

func (PaymentScheduleModel) TableName() string {
	return constants.TablePaymentSchedules
}

type BillingLineModel struct {
	ID                string `gorm:"primaryKey;size:64"`
	OrganizationID    string `gorm:"not null;size:64;index:idx_billing_line_client,priority:1"`
	ClientID          string `gorm:"not null;size:64;index:idx_billing_line_client,priority:2"`
	ContractID        string `gorm:"size:64"`
	InvoiceID         string `gorm:"size:64;index"`
	ServiceCode       string `gorm:"not null;size:64"`
	Description       string `gorm:"size:255"`
	Quantity          int    `gorm:"not null"`
	UnitPriceCents    int64  `gorm:"not null"`
	CatalogPriceCents int64  `gorm:"not null"`
	BundleDiscounted  bool   `gorm:"not null;default:false"`
	Active            bool   `gorm:"not null"`
	Version           int    `gorm:"not null;default:1"`
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

func (BillingLineModel) TableName() string {
	return constants.TableBillingLines
}

type InvoiceModel struct {
	ID             string          `gorm:"primaryKey;size:64"`
	OrganizationID string          `gorm:"not null;size:64;index"`
	ClientID       string          `gorm:"not null;size:64"`
	ContractID     string          `gorm:"size:64"`
	Status         string          `gorm:"not null;size:16"`
	Currency       string          `gorm:"size:3"`
	TaxRate        decimal.Decimal `gorm:"type:decimal(7,4);not null"`
	SubtotalCents  int64           `gorm:"not null"`
	TaxCents       int64           `gorm:"not null"`
	TotalCents     int64           `gorm:"not null"`
	Version        int             `gorm:"not null;default:1"`
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

func (InvoiceModel) TableName() string {
	return constants.TableInvoices
}

type ServiceBundleModel struct {
	ID                string                      `gorm:"primaryKey;size:32"`
	OrganizationID    string                      `gorm:"not null;size:64;uniqueIndex:uk_bundle_name,priority:1;index:idx_bundle_anchor,priority:1"`
	Name              string                      `gorm:"not null;size:120;uniqueIndex:uk_bundle_name,priority:2"`
	AnchorServiceCode string                      `gorm:"not null;size:64;index:idx_bundle_anchor,priority:2"`
	MemberCodes       datatypes.JSONSlice[string] `gorm:"not null"`
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

func (ServiceBundleModel) TableName() string {
	return constants.TableServiceBundles
}
