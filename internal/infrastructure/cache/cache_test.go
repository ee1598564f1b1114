package cache

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/payops/payops/internal/domain/retry"
	"github.com/payops/payops/internal/domain/routing"
	"github.com/payops/payops/internal/infrastructure/database"
	"github.com/payops/payops/internal/shared/db"
	"github.com/payops/payops/internal/shared/logger"
)

func newTxManager(t *testing.T) *db.TransactionManager {
	t.Helper()
	gdb, err := database.OpenSQLite(":memory:")
	require.NoError(t, err)
	return db.NewTransactionManager(gdb)
}

func newRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestAlertDeduplicator(t *testing.T) {
	mr, client := newRedis(t)
	d := NewAlertDeduplicator(client, "payops:")
	ctx := context.Background()

	ok, err := d.TryAcquire(ctx, "org_1", "co_1", "PROVIDER_ROUTING_NOT_FOUND", "pay_1", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = d.TryAcquire(ctx, "org_1", "co_1", "PROVIDER_ROUTING_NOT_FOUND", "pay_1", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	remaining, err := d.RemainingCooldown(ctx, "org_1", "co_1", "PROVIDER_ROUTING_NOT_FOUND", "pay_1")
	require.NoError(t, err)
	assert.Greater(t, remaining, time.Duration(0))

	mr.FastForward(2 * time.Minute)
	ok, err = d.TryAcquire(ctx, "org_1", "co_1", "PROVIDER_ROUTING_NOT_FOUND", "pay_1", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
}

type countingPolicyRepo struct {
	retry.PolicyRepository
	policies []*retry.Policy
	lists    atomic.Int32
}

func (r *countingPolicyRepo) Create(_ context.Context, p *retry.Policy) error {
	r.policies = append(r.policies, p)
	return nil
}

func (r *countingPolicyRepo) ListByOrganization(_ context.Context, _ string) ([]*retry.Policy, error) {
	r.lists.Add(1)
	return r.policies, nil
}

func TestCachedRetryPolicyRepository(t *testing.T) {
	_, client := newRedis(t)
	inner := &countingPolicyRepo{}
	repo := NewCachedRetryPolicyRepository(inner, client, "payops:", time.Minute, logger.NewNop())
	ctx := context.Background()

	p, err := retry.NewPolicy(retry.Scope{OrganizationID: "org_1"}, "standard", retry.Plan{RetryDelaysDays: []int{3}, MaxAttempts: 1}, true)
	require.NoError(t, err)
	require.NoError(t, repo.Create(ctx, p))

	first, err := repo.ListByOrganization(ctx, "org_1")
	require.NoError(t, err)
	require.Len(t, first, 1)
	second, err := repo.ListByOrganization(ctx, "org_1")
	require.NoError(t, err)
	require.Len(t, second, 1)
	assert.Equal(t, p.ID(), second[0].ID())
	assert.Equal(t, []int{3}, second[0].Plan().RetryDelaysDays)
	assert.EqualValues(t, 1, inner.lists.Load(), "second read is served from redis")

	other, err := retry.NewPolicy(retry.Scope{OrganizationID: "org_1", ProductCode: "TV"}, "tv", retry.Plan{RetryDelaysDays: []int{2}, MaxAttempts: 1}, false)
	require.NoError(t, err)
	require.NoError(t, repo.Create(ctx, other))

	third, err := repo.ListByOrganization(ctx, "org_1")
	require.NoError(t, err)
	assert.Len(t, third, 2, "create invalidates the organization")
	assert.EqualValues(t, 2, inner.lists.Load())
}

// committedPolicyRepo serves only committed policies. Writes made inside a
// transaction become visible when it commits.
type committedPolicyRepo struct {
	retry.PolicyRepository
	committed []*retry.Policy
}

func (r *committedPolicyRepo) Create(ctx context.Context, p *retry.Policy) error {
	db.AfterCommit(ctx, func(context.Context) { r.committed = append(r.committed, p) })
	return nil
}

func (r *committedPolicyRepo) ListByOrganization(context.Context, string) ([]*retry.Policy, error) {
	return r.committed, nil
}

func TestCachedRetryPolicyRepository_InvalidatesAfterCommit(t *testing.T) {
	_, client := newRedis(t)
	inner := &committedPolicyRepo{}
	repo := NewCachedRetryPolicyRepository(inner, client, "payops:", time.Hour, logger.NewNop())
	tm := newTxManager(t)
	ctx := context.Background()

	p, err := retry.NewPolicy(retry.Scope{OrganizationID: "org_1"}, "standard", retry.Plan{RetryDelaysDays: []int{3}, MaxAttempts: 1}, true)
	require.NoError(t, err)

	err = tm.RunInTransaction(ctx, func(txCtx context.Context) error {
		require.NoError(t, repo.Create(txCtx, p))
		// A reader outside the transaction still sees the old rows and caches them.
		before, err := repo.ListByOrganization(ctx, "org_1")
		require.NoError(t, err)
		assert.Empty(t, before)
		return nil
	})
	require.NoError(t, err)

	after, err := repo.ListByOrganization(ctx, "org_1")
	require.NoError(t, err)
	require.Len(t, after, 1, "the committed write is not hidden behind the stale entry")
	assert.Equal(t, p.ID(), after[0].ID())
}

func TestCachedRoutingRuleRepository_BroadcastsAfterCommit(t *testing.T) {
	inner := &countingRuleRepo{}
	pub := &recordingPublisher{}
	repo := NewCachedRoutingRuleRepository(inner, 8, time.Hour, logger.NewNop())
	repo.SetPublisher(pub)
	tm := newTxManager(t)
	ctx := context.Background()

	rule, err := routing.NewRule("org_1", "co_1", "fallback", 100, routing.Conditions{}, "psp_x", true)
	require.NoError(t, err)

	err = tm.RunInTransaction(ctx, func(txCtx context.Context) error {
		require.NoError(t, repo.Create(txCtx, rule))
		assert.Empty(t, pub.calls, "nothing is broadcast before commit")
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"org_1/co_1"}, pub.calls)

	err = tm.RunInTransaction(ctx, func(txCtx context.Context) error {
		require.NoError(t, repo.Create(txCtx, rule))
		return errors.New("rolled back")
	})
	require.Error(t, err)
	assert.Len(t, pub.calls, 1, "a rolled back write is not broadcast")
}

type countingRuleRepo struct {
	routing.RuleRepository
	rules []*routing.Rule
	lists int
}

func (r *countingRuleRepo) Create(_ context.Context, rule *routing.Rule) error {
	r.rules = append(r.rules, rule)
	return nil
}

func (r *countingRuleRepo) ListByCompany(_ context.Context, _, _ string) ([]*routing.Rule, error) {
	r.lists++
	return r.rules, nil
}

type recordingPublisher struct{ calls []string }

func (p *recordingPublisher) PublishRulesChanged(_ context.Context, org, company string) error {
	p.calls = append(p.calls, org+"/"+company)
	return nil
}

func TestCachedRoutingRuleRepository(t *testing.T) {
	inner := &countingRuleRepo{}
	pub := &recordingPublisher{}
	repo := NewCachedRoutingRuleRepository(inner, 8, time.Minute, logger.NewNop())
	repo.SetPublisher(pub)
	ctx := context.Background()

	_, err := repo.ListByCompany(ctx, "org_1", "co_1")
	require.NoError(t, err)
	_, err = repo.ListByCompany(ctx, "org_1", "co_1")
	require.NoError(t, err)
	assert.Equal(t, 1, inner.lists)

	rule, err := routing.NewRule("org_1", "co_1", "fallback", 100, routing.Conditions{}, "psp_x", true)
	require.NoError(t, err)
	require.NoError(t, repo.Create(ctx, rule))
	assert.Equal(t, []string{"org_1/co_1"}, pub.calls)

	rules, err := repo.ListByCompany(ctx, "org_1", "co_1")
	require.NoError(t, err)
	assert.Len(t, rules, 1)
	assert.Equal(t, 2, inner.lists)

	repo.Invalidate("org_1", "co_1")
	assert.Equal(t, 0, repo.Len())
}
