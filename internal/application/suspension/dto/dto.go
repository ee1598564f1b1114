package dto

import (
	"time"

	"github.com/payops/payops/internal/domain/billing"
	"github.com/payops/payops/internal/shared/mapper"
)

type Action string

const (
	ActionNoAction              Action = "NO_ACTION"
	ActionBundleDiscountRemoved Action = "BUNDLE_DISCOUNT_REMOVED"
	ActionSchedulesSuspended    Action = "SCHEDULES_SUSPENDED"
)

type BillingLineDTO struct {
	ID                string    `json:"id"`
	ClientID          string    `json:"client_id"`
	ContractID        string    `json:"contract_id,omitempty"`
	InvoiceID         string    `json:"invoice_id,omitempty"`
	ServiceCode       string    `json:"service_code"`
	Quantity          int       `json:"quantity"`
	UnitPriceCents    int64     `json:"unit_price_cents"`
	CatalogPriceCents int64     `json:"catalog_price_cents"`
	BundleDiscounted  bool      `json:"bundle_discounted"`
	UpdatedAt         time.Time `json:"updated_at"`
}

type InvoiceDTO struct {
	ID            string `json:"id"`
	Status        string `json:"status"`
	Currency      string `json:"currency"`
	SubtotalCents int64  `json:"subtotal_cents"`
	TaxCents      int64  `json:"tax_cents"`
	TotalCents    int64  `json:"total_cents"`
}

type PaymentScheduleDTO struct {
	ID             string            `json:"id"`
	ClientID       string            `json:"client_id"`
	ContractID     string            `json:"contract_id,omitempty"`
	SubscriptionID string            `json:"subscription_id,omitempty"`
	ServiceCode    string            `json:"service_code"`
	Status         string            `json:"status"`
	RetryCount     int               `json:"retry_count"`
	PauseReason    string            `json:"pause_reason,omitempty"`
	PausedAt       *time.Time        `json:"paused_at,omitempty"`
	Metadata       map[string]string `json:"metadata,omitempty"`
}

// NonPaymentResultDTO reports what a service non-payment changed.
type NonPaymentResultDTO struct {
	Action               Action            `json:"action"`
	ServiceCode          string            `json:"service_code"`
	UpdatedLines         []*BillingLineDTO `json:"updated_lines"`
	RecomputedInvoices   []*InvoiceDTO     `json:"recomputed_invoices,omitempty"`
	SuspendedScheduleIDs []string          `json:"suspended_schedule_ids"`
	// Duplicate is set when the idempotency key was already consumed.
	Duplicate bool `json:"duplicate,omitempty"`
}

func ToBillingLineDTO(l *billing.Line) *BillingLineDTO {
	if l == nil {
		return nil
	}
	return &BillingLineDTO{
		ID:                l.ID(),
		ClientID:          l.ClientID(),
		ContractID:        l.ContractID(),
		InvoiceID:         l.InvoiceID(),
		ServiceCode:       l.ServiceCode(),
		Quantity:          l.Quantity(),
		UnitPriceCents:    l.UnitPriceCents(),
		CatalogPriceCents: l.CatalogPriceCents(),
		BundleDiscounted:  l.IsBundleDiscounted(),
		UpdatedAt:         l.UpdatedAt(),
	}
}

func ToBillingLineDTOs(lines []*billing.Line) []*BillingLineDTO {
	return mapper.MapSlicePtr(lines, ToBillingLineDTO)
}

func ToInvoiceDTO(i *billing.Invoice) *InvoiceDTO {
	if i == nil {
		return nil
	}
	return &InvoiceDTO{
		ID:            i.ID(),
		Status:        string(i.Status()),
		Currency:      i.Currency(),
		SubtotalCents: i.SubtotalCents(),
		TaxCents:      i.TaxCents(),
		TotalCents:    i.TotalCents(),
	}
}

func ToInvoiceDTOs(invoices []*billing.Invoice) []*InvoiceDTO {
	return mapper.MapSlicePtr(invoices, ToInvoiceDTO)
}

func ToPaymentScheduleDTO(s *billing.PaymentSchedule) *PaymentScheduleDTO {
	if s == nil {
		return nil
	}
	return &PaymentScheduleDTO{
		ID:             s.ID(),
		ClientID:       s.ClientID(),
		ContractID:     s.ContractID(),
		SubscriptionID: s.SubscriptionID(),
		ServiceCode:    s.ServiceCode(),
		Status:         string(s.Status()),
		RetryCount:     s.RetryCount(),
		PauseReason:    s.PauseReason(),
		PausedAt:       s.PausedAt(),
		Metadata:       s.Metadata(),
	}
}
