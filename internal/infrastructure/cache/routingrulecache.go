package cache

import (
	"context"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/payops/payops/internal/domain/routing"
	"github.com/payops/payops/internal/shared/db"
	"github.com/payops/payops/internal/shared/logger"
)

const defaultRuleCacheSize = 1024

type cachedRules struct {
	rules     []*routing.Rule
	expiresAt time.Time
}

// RuleInvalidationPublisher tells other instances that a company's rules
// changed.
type RuleInvalidationPublisher interface {
	PublishRulesChanged(ctx context.Context, organizationID, companyID string) error
}

// CachedRoutingRuleRepository keeps each company's rule set in a size-bound
// in-process LRU. Rules are read on every routing evaluation.
type CachedRoutingRuleRepository struct {
	inner     routing.RuleRepository
	cache     *lru.Cache[string, *cachedRules]
	ttl       time.Duration
	publisher RuleInvalidationPublisher
	logger    logger.Interface
}

func NewCachedRoutingRuleRepository(inner routing.RuleRepository, size int, ttl time.Duration, log logger.Interface) *CachedRoutingRuleRepository {
	if size <= 0 {
		size = defaultRuleCacheSize
	}
	c, err := lru.New[string, *cachedRules](size)
	if err != nil {
		log.Errorw("failed to create LRU cache, using fallback", "error", err)
		c, _ = lru.New[string, *cachedRules](defaultRuleCacheSize)
	}
	return &CachedRoutingRuleRepository{inner: inner, cache: c, ttl: ttl, logger: log}
}

// SetPublisher wires cross-instance invalidation.
func (r *CachedRoutingRuleRepository) SetPublisher(p RuleInvalidationPublisher) {
	r.publisher = p
}

func ruleKey(organizationID, companyID string) string {
	return organizationID + "|" + companyID
}

func (r *CachedRoutingRuleRepository) Create(ctx context.Context, rule *routing.Rule) error {
	if err := r.inner.Create(ctx, rule); err != nil {
		return err
	}
	r.changed(ctx, rule.OrganizationID(), rule.CompanyID())
	return nil
}

func (r *CachedRoutingRuleRepository) Update(ctx context.Context, rule *routing.Rule) error {
	if err := r.inner.Update(ctx, rule); err != nil {
		return err
	}
	r.changed(ctx, rule.OrganizationID(), rule.CompanyID())
	return nil
}

func (r *CachedRoutingRuleRepository) GetByID(ctx context.Context, id string) (*routing.Rule, error) {
	return r.inner.GetByID(ctx, id)
}

func (r *CachedRoutingRuleRepository) Delete(ctx context.Context, id string) error {
	rule, err := r.inner.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if err := r.inner.Delete(ctx, id); err != nil {
		return err
	}
	r.changed(ctx, rule.OrganizationID(), rule.CompanyID())
	return nil
}

func (r *CachedRoutingRuleRepository) ListByCompany(ctx context.Context, organizationID, companyID string) ([]*routing.Rule, error) {
	if db.InTransaction(ctx) {
		return r.inner.ListByCompany(ctx, organizationID, companyID)
	}
	key := ruleKey(organizationID, companyID)
	if entry, ok := r.cache.Get(key); ok && time.Now().Before(entry.expiresAt) {
		return entry.rules, nil
	}
	rules, err := r.inner.ListByCompany(ctx, organizationID, companyID)
	if err != nil {
		return nil, err
	}
	r.cache.Add(key, &cachedRules{rules: rules, expiresAt: time.Now().Add(r.ttl)})
	return rules, nil
}

// Invalidate drops a company's cached rules on this instance only.
func (r *CachedRoutingRuleRepository) Invalidate(organizationID, companyID string) {
	r.cache.Remove(ruleKey(organizationID, companyID))
}

func (r *CachedRoutingRuleRepository) Len() int {
	return r.cache.Len()
}

// changed drops the company's rules here and on other instances once the
// write is committed.
func (r *CachedRoutingRuleRepository) changed(ctx context.Context, organizationID, companyID string) {
	db.AfterCommit(ctx, func(ctx context.Context) {
		r.Invalidate(organizationID, companyID)
		if r.publisher == nil {
			return
		}
		if err := r.publisher.PublishRulesChanged(ctx, organizationID, companyID); err != nil {
			r.logger.Warnw("failed to broadcast routing rule invalidation",
				"organization_id", organizationID,
				"company_id", companyID,
				"error", err,
			)
		}
	})
}
