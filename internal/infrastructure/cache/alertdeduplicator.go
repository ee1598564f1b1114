package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const alertKeyPrefix = "alert:"

// AlertDeduplicator suppresses repeated operator alerts for the same company
// and code within a cooldown window.
type AlertDeduplicator struct {
	client *redis.Client
	prefix string
}

func NewAlertDeduplicator(client *redis.Client, prefix string) *AlertDeduplicator {
	return &AlertDeduplicator{client: client, prefix: prefix}
}

// Format: {prefix}alert:{org}:{company}:{code}:{subject}
func (d *AlertDeduplicator) buildKey(organizationID, companyID, code, subject string) string {
	return fmt.Sprintf("%s%s%s:%s:%s:%s", d.prefix, alertKeyPrefix, organizationID, companyID, code, subject)
}

// TryAcquire reports whether the caller should raise the alert. SetNX keeps
// two instances from both raising it.
func (d *AlertDeduplicator) TryAcquire(ctx context.Context, organizationID, companyID, code, subject string, ttl time.Duration) (bool, error) {
	acquired, err := d.client.SetNX(ctx, d.buildKey(organizationID, companyID, code, subject), "1", ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to acquire alert lock: %w", err)
	}
	return acquired, nil
}

// Clear ends the cooldown, e.g. once a routing rule is added.
func (d *AlertDeduplicator) Clear(ctx context.Context, organizationID, companyID, code, subject string) error {
	if err := d.client.Del(ctx, d.buildKey(organizationID, companyID, code, subject)).Err(); err != nil {
		return fmt.Errorf("failed to clear alert: %w", err)
	}
	return nil
}

// RemainingCooldown returns 0 when no cooldown is active.
func (d *AlertDeduplicator) RemainingCooldown(ctx context.Context, organizationID, companyID, code, subject string) (time.Duration, error) {
	ttl, err := d.client.TTL(ctx, d.buildKey(organizationID, companyID, code, subject)).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to get cooldown: %w", err)
	}
	// TTL returns -2 if key doesn't exist, -1 if no TTL set
	if ttl < 0 {
		return 0, nil
	}
	return ttl, nil
}
