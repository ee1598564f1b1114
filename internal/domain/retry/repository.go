package retry

import (
	"context"
	"time"
)

type PolicyRepository interface {
	Create(ctx context.Context, policy *Policy) error
	Update(ctx context.Context, policy *Policy) error
	GetByID(ctx context.Context, id string) (*Policy, error)
	ListByOrganization(ctx context.Context, organizationID string) ([]*Policy, error)
}

type ScheduleRepository interface {
	Create(ctx context.Context, schedule *Schedule) error
	// Update fails with errors.ErrVersionConflict when the persisted row moved.
	Update(ctx context.Context, schedule *Schedule) error
	GetByID(ctx context.Context, id string) (*Schedule, error)
	// FindByPayment returns nil, nil when the payment has no schedule.
	FindByPayment(ctx context.Context, organizationID, paymentID string) (*Schedule, error)
	// ListDue and ListStaleSubmissions page by id, starting after afterID.
	ListDue(ctx context.Context, now time.Time, afterID string, limit int) ([]*Schedule, error)
	ListStaleSubmissions(ctx context.Context, submittedBefore time.Time, afterID string, limit int) ([]*Schedule, error)
	ListOpenByContract(ctx context.Context, organizationID, contractID string) ([]*Schedule, error)
	ListOpenByClient(ctx context.Context, organizationID, clientID string) ([]*Schedule, error)
}

type AttemptRepository interface {
	Create(ctx context.Context, attempt *Attempt) error
	ListBySchedule(ctx context.Context, scheduleID string) ([]*Attempt, error)
}

type ReminderRepository interface {
	Create(ctx context.Context, reminder *Reminder) error
	ListBySchedule(ctx context.Context, scheduleID string) ([]*Reminder, error)
	ListByRun(ctx context.Context, dunningRunID string) ([]*Reminder, error)
}
