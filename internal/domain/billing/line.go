package billing

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Line is one priced service on a client's invoice.
type Line struct {
	id                string
	organizationID    string
	clientID          string
	contractID        string
	invoiceID         string
	serviceCode       string
	description       string
	quantity          int
	unitPriceCents    int64
	catalogPriceCents int64
	bundleDiscounted  bool
	active            bool
	version           int
	createdAt         time.Time
	updatedAt         time.Time
}

func ReconstructLine(
	lineID, organizationID, clientID, contractID, invoiceID, serviceCode, description string,
	quantity int,
	unitPriceCents, catalogPriceCents int64,
	bundleDiscounted, active bool,
	version int,
	createdAt, updatedAt time.Time,
) *Line {
	return &Line{
		id:                lineID,
		organizationID:    organizationID,
		clientID:          clientID,
		contractID:        contractID,
		invoiceID:         invoiceID,
		serviceCode:       serviceCode,
		description:       description,
		quantity:          quantity,
		unitPriceCents:    unitPriceCents,
		catalogPriceCents: catalogPriceCents,
		bundleDiscounted:  bundleDiscounted,
		active:            active,
		version:           version,
		createdAt:         createdAt,
		updatedAt:         updatedAt,
	}
}

// ID returns the billing line ID.
func (l *Line) ID() string {
	return l.id
}

// OrganizationID returns the organization ID.
func (l *Line) OrganizationID() string {
	return l.organizationID
}

// ClientID returns the client ID.
func (l *Line) ClientID() string {
	return l.clientID
}

// ContractID returns the contract ID.
func (l *Line) ContractID() string {
	return l.contractID
}

// InvoiceID returns the invoice ID.
func (l *Line) InvoiceID() string {
	return l.invoiceID
}

// ServiceCode returns the service code.
func (l *Line) ServiceCode() string {
	return l.serviceCode
}

// Description returns the billing line description.
func (l *Line) Description() string {
	return l.description
}

// Quantity returns the billing line quantity.
func (l *Line) Quantity() int {
	return l.quantity
}

// UnitPriceCents returns the unit price in cents.
func (l *Line) UnitPriceCents() int64 {
	return l.unitPriceCents
}

// CatalogPriceCents returns the catalog price in cents.
func (l *Line) CatalogPriceCents() int64 {
	return l.catalogPriceCents
}

// IsBundleDiscounted reports whether the billing line is bundle discounted.
func (l *Line) IsBundleDiscounted() bool {
	return l.bundleDiscounted
}

// IsActive reports whether the billing line is active.
func (l *Line) IsActive() bool {
	return l.active
}

// Version returns the optimistic lock version.
func (l *Line) Version() int {
	return l.version
}

// CreatedAt returns when the billing line was created.
func (l *Line) CreatedAt() time.Time {
	return l.createdAt
}

// UpdatedAt returns when the billing line was last updated.
func (l *Line) UpdatedAt() time.Time {
	return l.updatedAt
}

func (l *Line) AmountCents() int64 {
	return int64(l.quantity) * l.unitPriceCents
}

// RemoveBundleDiscount reverts the line to catalog price. It returns false
// when the line carried no bundle discount.
func (l *Line) RemoveBundleDiscount(now time.Time) bool {
	if !l.bundleDiscounted {
		return false
	}
	l.unitPriceCents = l.catalogPriceCents
	l.bundleDiscounted = false
	l.updatedAt = now
	return true
}

type InvoiceStatus string

const (
	InvoiceOpen InvoiceStatus = "OPEN"
	InvoicePaid InvoiceStatus = "PAID"
	InvoiceVoid InvoiceStatus = "VOID"
)

// Invoice carries totals derived from its lines.
type Invoice struct {
	id             string
	organizationID string
	clientID       string
	contractID     string
	status         InvoiceStatus
	currency       string
	taxRate        decimal.Decimal
	subtotalCents  int64
	taxCents       int64
	totalCents     int64
	version        int
	createdAt      time.Time
	updatedAt      time.Time
}

func ReconstructInvoice(
	invoiceID, organizationID, clientID, contractID string,
	status InvoiceStatus,
	currency string,
	taxRate decimal.Decimal,
	subtotalCents, taxCents, totalCents int64,
	version int,
	createdAt, updatedAt time.Time,
) *Invoice {
	return &Invoice{
		id:             invoiceID,
		organizationID: organizationID,
		clientID:       clientID,
		contractID:     contractID,
		status:         status,
		currency:       currency,
		taxRate:        taxRate,
		subtotalCents:  subtotalCents,
		taxCents:       taxCents,
		totalCents:     totalCents,
		version:        version,
		createdAt:      createdAt,
		updatedAt:      updatedAt,
	}
}

// ID returns the invoice ID.
func (i *Invoice) ID() string {
	return i.id
}

// OrganizationID returns the organization ID.
func (i *Invoice) OrganizationID() string {
	return i.organizationID
}

// ClientID returns the client ID.
func (i *Invoice) ClientID() string {
	return i.clientID
}

// ContractID returns the contract ID.
func (i *Invoice) ContractID() string {
	return i.contractID
}

// Status returns the invoice status.
func (i *Invoice) Status() InvoiceStatus {
	return i.status
}

// Currency returns the invoice currency.
func (i *Invoice) Currency() string {
	return i.currency
}

// TaxRate returns the tax rate.
func (i *Invoice) TaxRate() decimal.Decimal {
	return i.taxRate
}

// SubtotalCents returns the subtotal in cents.
func (i *Invoice) SubtotalCents() int64 {
	return i.subtotalCents
}

// TaxCents returns the tax in cents.
func (i *Invoice) TaxCents() int64 {
	return i.taxCents
}

// TotalCents returns the total in cents.
func (i *Invoice) TotalCents() int64 {
	return i.totalCents
}

// Version returns the optimistic lock version.
func (i *Invoice) Version() int {
	return i.version
}

// CreatedAt returns when the invoice was created.
func (i *Invoice) CreatedAt() time.Time {
	return i.createdAt
}

// UpdatedAt returns when the invoice was last updated.
func (i *Invoice) UpdatedAt() time.Time {
	return i.updatedAt
}

// Recompute derives totals from the invoice's active lines. Tax rounds half
// away from zero to the cent.
func (i *Invoice) Recompute(lines []*Line, now time.Time) error {
	if i.status != InvoiceOpen {
		return fmt.Errorf("invoice %s is %s", i.id, i.status)
	}
	var subtotal int64
	for _, l := range lines {
		if l.invoiceID != i.id || !l.active {
			continue
		}
		subtotal += l.AmountCents()
	}
	tax := decimal.NewFromInt(subtotal).Mul(i.taxRate).Round(0).IntPart()

	i.subtotalCents = subtotal
	i.taxCents = tax
	i.totalCents = subtotal + tax
	i.updatedAt = now
	return nil
}

func (l *Line) SetVersion(v int)    { l.version = v }
func (i *Invoice) SetVersion(v int) { i.version = v }
