package usecases

import (
	"context"

	"github.com/payops/payops/internal/domain/retry"
	"github.com/payops/payops/internal/domain/routing"
)

// PaymentRouter selects the provider account of a payment.
type PaymentRouter interface {
	Route(ctx context.Context, organizationID, companyID string, p routing.Payment) (routing.Decision, error)
}

// PaymentSource rebuilds the routable view of a schedule's payment.
type PaymentSource interface {
	LoadPayment(ctx context.Context, s *retry.Schedule) (routing.Payment, error)
}

// RetrySubmission is one retry handed to a provider account.
type RetrySubmission struct {
	OrganizationID    string
	CompanyID         string
	ScheduleID        string
	PaymentID         string
	ClientID          string
	SubscriptionID    string
	ProviderAccountID string
	AmountCents       int64
	Currency          string
	AttemptNumber     int
}

// PaymentRetryExecutor submits a retry. It runs inside the transaction that
// marks the schedule submitted and returns a reference for the pending
// outcome.
type PaymentRetryExecutor interface {
	SubmitRetry(ctx context.Context, sub RetrySubmission) (string, error)
}

// Locker serializes work on one schedule across sweeps and requests.
type Locker interface {
	Acquire(ctx context.Context, key string) (func(), error)
}

func scheduleLockKey(scheduleID string) string {
	return "retry:" + scheduleID
}
