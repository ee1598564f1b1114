package usecases

import (
	"context"
	"time"
)

// Locker serializes work on one subscription across sweeps and events.
type Locker interface {
	Acquire(ctx context.Context, key string) (func(), error)
}

func runLockKey(organizationID, subscriptionID string) string {
	return "dunning:" + organizationID + ":" + subscriptionID
}

// IssuedLink is a freshly minted payment-update link. Token is only known to
// the caller; the store keeps its hash.
type IssuedLink struct {
	LinkID    string
	Token     string
	URL       string
	ExpiresAt time.Time
}

// LinkIssuer mints a single-use payment link bound to a client and schedule.
// It runs inside the step transaction.
type LinkIssuer interface {
	Issue(ctx context.Context, organizationID, clientID, scheduleID string) (*IssuedLink, error)
}
