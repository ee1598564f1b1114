package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"github.com/payops/payops/internal/domain/dunning"
	"github.com/payops/payops/internal/domain/retry"
	"github.com/payops/payops/internal/infrastructure/persistence/mappers"
	"github.com/payops/payops/internal/infrastructure/persistence/models"
	"github.com/payops/payops/internal/shared/db"
	"github.com/payops/payops/internal/shared/logger"
)

const (
	retryPolicyKeyPrefix   = "policy:retry:"
	dunningConfigKeyPrefix = "policy:dunning:"
)

// jitter spreads expirations by up to a third of ttl (anti-stampede).
func jitter(ttl time.Duration) time.Duration {
	if ttl <= 0 {
		return ttl
	}
	return ttl + time.Duration(rand.Int64N(int64(ttl/3)+1))
}

// orgCache is a cache-aside store of one organization's rows, encoded as
// their persistence models.
type orgCache[M any] struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
	group  singleflight.Group
	logger logger.Interface
}

func (c *orgCache[M]) key(organizationID string) string {
	return c.prefix + organizationID
}

// load returns cached rows or calls fetch once per key across concurrent
// callers. Redis failures fall through to fetch.
func (c *orgCache[M]) load(ctx context.Context, organizationID string, fetch func() ([]*M, error)) ([]*M, error) {
	raw, err := c.client.Get(ctx, c.key(organizationID)).Bytes()
	switch {
	case err == nil:
		var rows []*M
		if jsonErr := json.Unmarshal(raw, &rows); jsonErr == nil {
			return rows, nil
		}
		c.logger.Warnw("dropping undecodable cache entry", "key", c.key(organizationID))
	case !errors.Is(err, redis.Nil):
		c.logger.Warnw("policy cache read failed", "key", c.key(organizationID), "error", err)
	}

	v, err, _ := c.group.Do(organizationID, func() (any, error) {
		rows, err := fetch()
		if err != nil {
			return nil, err
		}
		if data, err := json.Marshal(rows); err == nil {
			if err := c.client.Set(ctx, c.key(organizationID), data, jitter(c.ttl)).Err(); err != nil {
				c.logger.Warnw("policy cache write failed", "key", c.key(organizationID), "error", err)
			}
		}
		return rows, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]*M), nil
}

func (c *orgCache[M]) invalidate(ctx context.Context, organizationID string) {
	if err := c.client.Del(ctx, c.key(organizationID)).Err(); err != nil {
		c.logger.Warnw("policy cache invalidation failed", "key", c.key(organizationID), "error", err)
	}
}

// invalidateAfterCommit drops the entry once the write is visible, so a reader
// racing the commit cannot cache the old rows for a full ttl.
func (c *orgCache[M]) invalidateAfterCommit(ctx context.Context, organizationID string) {
	db.AfterCommit(ctx, func(ctx context.Context) {
		c.invalidate(ctx, organizationID)
	})
}

// CachedRetryPolicyRepository decorates a retry.PolicyRepository with a
// Redis cache of ListByOrganization. Committed writes invalidate the
// organization.
type CachedRetryPolicyRepository struct {
	inner  retry.PolicyRepository
	cache  *orgCache[models.RetryPolicyModel]
	mapper mappers.RetryMapper
}

func NewCachedRetryPolicyRepository(inner retry.PolicyRepository, client *redis.Client, prefix string, ttl time.Duration, log logger.Interface) *CachedRetryPolicyRepository {
	return &CachedRetryPolicyRepository{
		inner:  inner,
		cache:  &orgCache[models.RetryPolicyModel]{client: client, prefix: prefix + retryPolicyKeyPrefix, ttl: ttl, logger: log},
		mapper: mappers.NewRetryMapper(),
	}
}

func (r *CachedRetryPolicyRepository) Create(ctx context.Context, policy *retry.Policy) error {
	if err := r.inner.Create(ctx, policy); err != nil {
		return err
	}
	r.cache.invalidateAfterCommit(ctx, policy.Scope().OrganizationID)
	return nil
}

func (r *CachedRetryPolicyRepository) Update(ctx context.Context, policy *retry.Policy) error {
	if err := r.inner.Update(ctx, policy); err != nil {
		return err
	}
	r.cache.invalidateAfterCommit(ctx, policy.Scope().OrganizationID)
	return nil
}

func (r *CachedRetryPolicyRepository) GetByID(ctx context.Context, id string) (*retry.Policy, error) {
	return r.inner.GetByID(ctx, id)
}

// ListByOrganization bypasses the cache inside a transaction so writers see
// their own changes.
func (r *CachedRetryPolicyRepository) ListByOrganization(ctx context.Context, organizationID string) ([]*retry.Policy, error) {
	if db.InTransaction(ctx) {
		return r.inner.ListByOrganization(ctx, organizationID)
	}
	rows, err := r.cache.load(ctx, organizationID, func() ([]*models.RetryPolicyModel, error) {
		policies, err := r.inner.ListByOrganization(ctx, organizationID)
		if err != nil {
			return nil, err
		}
		out := make([]*models.RetryPolicyModel, 0, len(policies))
		for _, p := range policies {
			m, err := r.mapper.PolicyToModel(p)
			if err != nil {
				return nil, err
			}
			out = append(out, m)
		}
		return out, nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load retry policies: %w", err)
	}
	return r.mapper.PoliciesToEntities(rows)
}

// Invalidate drops the cached policies of an organization.
func (r *CachedRetryPolicyRepository) Invalidate(ctx context.Context, organizationID string) {
	r.cache.invalidate(ctx, organizationID)
}

// CachedDunningConfigRepository is the dunning.ConfigRepository counterpart.
type CachedDunningConfigRepository struct {
	inner  dunning.ConfigRepository
	cache  *orgCache[models.DunningConfigModel]
	mapper mappers.DunningMapper
}

func NewCachedDunningConfigRepository(inner dunning.ConfigRepository, client *redis.Client, prefix string, ttl time.Duration, log logger.Interface) *CachedDunningConfigRepository {
	return &CachedDunningConfigRepository{
		inner:  inner,
		cache:  &orgCache[models.DunningConfigModel]{client: client, prefix: prefix + dunningConfigKeyPrefix, ttl: ttl, logger: log},
		mapper: mappers.NewDunningMapper(),
	}
}

func (r *CachedDunningConfigRepository) Create(ctx context.Context, cfg *dunning.Config) error {
	if err := r.inner.Create(ctx, cfg); err != nil {
		return err
	}
	r.cache.invalidateAfterCommit(ctx, cfg.OrganizationID())
	return nil
}

func (r *CachedDunningConfigRepository) Update(ctx context.Context, cfg *dunning.Config) error {
	if err := r.inner.Update(ctx, cfg); err != nil {
		return err
	}
	r.cache.invalidateAfterCommit(ctx, cfg.OrganizationID())
	return nil
}

func (r *CachedDunningConfigRepository) GetByID(ctx context.Context, id string) (*dunning.Config, error) {
	return r.inner.GetByID(ctx, id)
}

func (r *CachedDunningConfigRepository) ListByOrganization(ctx context.Context, organizationID string) ([]*dunning.Config, error) {
	if db.InTransaction(ctx) {
		return r.inner.ListByOrganization(ctx, organizationID)
	}
	rows, err := r.cache.load(ctx, organizationID, func() ([]*models.DunningConfigModel, error) {
		configs, err := r.inner.ListByOrganization(ctx, organizationID)
		if err != nil {
			return nil, err
		}
		out := make([]*models.DunningConfigModel, 0, len(configs))
		for _, c := range configs {
			m, err := r.mapper.ConfigToModel(c)
			if err != nil {
				return nil, err
			}
			out = append(out, m)
		}
		return out, nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load dunning configs: %w", err)
	}
	return r.mapper.ConfigsToEntities(rows)
}

func (r *CachedDunningConfigRepository) Invalidate(ctx context.Context, organizationID string) {
	r.cache.invalidate(ctx, organizationID)
}
