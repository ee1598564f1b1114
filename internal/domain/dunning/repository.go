package dunning

import "context"

type ConfigRepository interface {
	Create(ctx context.Context, cfg *Config) error
	Update(ctx context.Context, cfg *Config) error
	GetByID(ctx context.Context, id string) (*Config, error)
	ListByOrganization(ctx context.Context, organizationID string) ([]*Config, error)
}

type RunRepository interface {
	Create(ctx context.Context, run *Run) error
	// Update fails with errors.ErrVersionConflict when the persisted row moved.
	Update(ctx context.Context, run *Run) error
	GetByID(ctx context.Context, id string) (*Run, error)
	// FindActiveBySubscription returns nil, nil when no unresolved run exists.
	FindActiveBySubscription(ctx context.Context, organizationID, subscriptionID string) (*Run, error)
	ListActive(ctx context.Context, afterID string, limit int) ([]*Run, error)
}
