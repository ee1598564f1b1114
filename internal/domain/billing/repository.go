package billing

import "context"

// ClientScope selects a client's records, optionally narrowed to one contract.
type ClientScope struct {
	OrganizationID string
	ClientID       string
	ContractID     string
}

type PaymentScheduleRepository interface {
	Create(ctx context.Context, schedule *PaymentSchedule) error
	Update(ctx context.Context, schedule *PaymentSchedule) error
	GetByID(ctx context.Context, id string) (*PaymentSchedule, error)
	// FindBySubscription returns nil, nil when the subscription has no schedule.
	FindBySubscription(ctx context.Context, organizationID, subscriptionID string) (*PaymentSchedule, error)
	ListActiveByClient(ctx context.Context, scope ClientScope) ([]*PaymentSchedule, error)
}

type LineRepository interface {
	Create(ctx context.Context, line *Line) error
	Update(ctx context.Context, line *Line) error
	ListActiveByClient(ctx context.Context, scope ClientScope) ([]*Line, error)
	ListByInvoice(ctx context.Context, invoiceID string) ([]*Line, error)
}

type InvoiceRepository interface {
	Create(ctx context.Context, invoice *Invoice) error
	Update(ctx context.Context, invoice *Invoice) error
	GetByID(ctx context.Context, id string) (*Invoice, error)
}

type BundleRepository interface {
	Upsert(ctx context.Context, bundle *Bundle) error
	// FindByAnchor returns nil, nil when serviceCode anchors no bundle.
	FindByAnchor(ctx context.Context, organizationID, serviceCode string) (*Bundle, error)
	FindByName(ctx context.Context, organizationID, name string) (*Bundle, error)
	ListByOrganization(ctx context.Context, organizationID string) ([]*Bundle, error)
}
