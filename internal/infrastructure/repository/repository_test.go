package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/payops/payops/internal/domain/billing"
	"github.com/payops/payops/internal/domain/dunning"
	"github.com/payops/payops/internal/domain/outbox"
	"github.com/payops/payops/internal/domain/paymentlink"
	"github.com/payops/payops/internal/domain/retry"
	"github.com/payops/payops/internal/domain/routing"
	"github.com/payops/payops/internal/infrastructure/database"
	"github.com/payops/payops/internal/infrastructure/persistence/models"
	"github.com/payops/payops/internal/shared/db"
	apperrors "github.com/payops/payops/internal/shared/errors"
	"github.com/payops/payops/internal/shared/logger"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	gdb, err := database.OpenSQLite(":memory:")
	require.NoError(t, err)
	require.NoError(t, gdb.AutoMigrate(models.All()...))
	return gdb
}

func testPolicy(t *testing.T) *retry.Policy {
	t.Helper()
	p, err := retry.NewPolicy(retry.Scope{OrganizationID: "org_1"}, "standard", retry.Plan{
		RetryDelaysDays: []int{3, 7, 14},
		MaxAttempts:     3,
	}, true)
	require.NoError(t, err)
	return p
}

func TestRetryScheduleRepository_OptimisticUpdate(t *testing.T) {
	gdb := setupTestDB(t)
	repo := NewRetryScheduleRepository(gdb, logger.NewNop())
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)

	s, err := retry.OpenSchedule(retry.RejectedPayment{
		OrganizationID: "org_1", PaymentID: "pay_1", ClientID: "cl_1", ContractID: "ct_1",
		AmountCents: 4990, Currency: "EUR", RejectionCode: "AM04", RejectedAt: now,
	}, testPolicy(t), now)
	require.NoError(t, err)
	require.NoError(t, repo.Create(ctx, s))

	t.Run("duplicate payment is a conflict", func(t *testing.T) {
		dup, err := retry.OpenSchedule(retry.RejectedPayment{OrganizationID: "org_1", PaymentID: "pay_1", ClientID: "cl_1"}, testPolicy(t), now)
		require.NoError(t, err)
		assert.True(t, apperrors.IsConflictError(repo.Create(ctx, dup)))
	})

	t.Run("stale copy loses the race", func(t *testing.T) {
		first, err := repo.GetByID(ctx, s.ID())
		require.NoError(t, err)
		second, err := repo.GetByID(ctx, s.ID())
		require.NoError(t, err)

		due := now.AddDate(0, 0, 3)
		require.NoError(t, first.MarkSubmitted("psp_a", due))
		require.NoError(t, repo.Update(ctx, first))
		assert.Equal(t, 2, first.Version())

		require.NoError(t, second.MarkSubmitted("psp_b", due))
		assert.ErrorIs(t, repo.Update(ctx, second), apperrors.ErrVersionConflict)
	})

	t.Run("due and stale listings", func(t *testing.T) {
		due, err := repo.ListDue(ctx, now.AddDate(0, 0, 10), "", 10)
		require.NoError(t, err)
		assert.Empty(t, due, "a submitted schedule is not due again")

		stale, err := repo.ListStaleSubmissions(ctx, now.AddDate(0, 0, 4), "", 10)
		require.NoError(t, err)
		require.Len(t, stale, 1)
		assert.Equal(t, "psp_a", stale[0].ProviderAccountID())
	})

	t.Run("find by payment", func(t *testing.T) {
		found, err := repo.FindByPayment(ctx, "org_1", "pay_1")
		require.NoError(t, err)
		require.NotNil(t, found)
		assert.Equal(t, []int{3, 7, 14}, found.Plan().RetryDelaysDays)

		missing, err := repo.FindByPayment(ctx, "org_1", "pay_404")
		require.NoError(t, err)
		assert.Nil(t, missing)
	})
}

func TestDunningRunRepository_OneOpenRunPerSubscription(t *testing.T) {
	gdb := setupTestDB(t)
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	configs := NewDunningConfigRepository(gdb, logger.NewNop())
	runs := NewDunningRunRepository(gdb, logger.NewNop())

	retryStep, err := dunning.NewStep(0, dunning.ActionRetryPayment, []dunning.Channel{dunning.ChannelEmail}, false, "J0")
	require.NoError(t, err)
	suspendStep, err := dunning.NewStep(15, dunning.ActionSuspend, nil, false, "J15")
	require.NoError(t, err)
	cfg, err := dunning.NewConfig("org_1", "", "default", []dunning.Step{retryStep, suspendStep}, true)
	require.NoError(t, err)
	require.NoError(t, configs.Create(ctx, cfg))

	loaded, err := configs.GetByID(ctx, cfg.ID())
	require.NoError(t, err)
	require.Equal(t, 2, loaded.StepCount())
	assert.Equal(t, dunning.ActionSuspend, loaded.Steps()[1].Kind())
	assert.True(t, loaded.Steps()[0].HasChannel(dunning.ChannelEmail))

	failure := dunning.Failure{OrganizationID: "org_1", SubscriptionID: "sub_1", ClientID: "cl_1", FailedAt: now}
	run, err := dunning.OpenRun(failure, cfg, now)
	require.NoError(t, err)
	require.NoError(t, runs.Create(ctx, run))

	again, err := dunning.OpenRun(failure, cfg, now)
	require.NoError(t, err)
	assert.True(t, apperrors.IsConflictError(runs.Create(ctx, again)))

	active, err := runs.FindActiveBySubscription(ctx, "org_1", "sub_1")
	require.NoError(t, err)
	require.NotNil(t, active)
	assert.Equal(t, dunning.NotStarted, active.LastCompletedStep())

	require.NoError(t, active.CompleteStep(0, now))
	require.NoError(t, active.Resolve(dunning.ResolutionPaymentSucceeded, "", now))
	require.NoError(t, runs.Update(ctx, active))

	none, err := runs.FindActiveBySubscription(ctx, "org_1", "sub_1")
	require.NoError(t, err)
	assert.Nil(t, none)

	// a resolved run frees the slot for a new one
	require.NoError(t, runs.Create(ctx, again))
	page, err := runs.ListActive(ctx, "", 10)
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, again.ID(), page[0].ID())
}

func TestIdempotencyRepository_Claim(t *testing.T) {
	gdb := setupTestDB(t)
	repo := NewIdempotencyRepository(gdb)
	ctx := context.Background()
	now := time.Now().UTC()

	ok, err := repo.Claim(ctx, "evt-1", "payment_event", now)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.Claim(ctx, "evt-1", "payment_event", now)
	require.NoError(t, err)
	assert.False(t, ok)

	exists, err := repo.Exists(ctx, "evt-1")
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestSideEffectRepository_Dedup(t *testing.T) {
	gdb := setupTestDB(t)
	repo := NewSideEffectRepository(gdb)
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)

	task, err := outbox.NewTask("org_1", outbox.KindEmail, "dr_1:0:email", outbox.Message{Recipient: "a@b.c"}, now)
	require.NoError(t, err)
	inserted, err := repo.Enqueue(ctx, task)
	require.NoError(t, err)
	assert.True(t, inserted)

	dup, err := outbox.NewTask("org_1", outbox.KindEmail, "dr_1:0:email", outbox.Message{Recipient: "a@b.c"}, now)
	require.NoError(t, err)
	inserted, err = repo.Enqueue(ctx, dup)
	require.NoError(t, err)
	assert.False(t, inserted)

	other, err := outbox.NewTask("org_1", outbox.KindSMS, "dr_10:0:sms", outbox.Message{Recipient: "+33"}, now.Add(time.Hour))
	require.NoError(t, err)
	_, err = repo.Enqueue(ctx, other)
	require.NoError(t, err)

	due, err := repo.ListDue(ctx, now, 10)
	require.NoError(t, err)
	require.Len(t, due, 1)

	byRun, err := repo.ListByDedupPrefix(ctx, "dr_1:")
	require.NoError(t, err)
	require.Len(t, byRun, 1, "prefix must not match dr_10")

	due[0].MarkDone(now)
	require.NoError(t, repo.Update(ctx, due[0]))
	due, err = repo.ListDue(ctx, now.Add(2*time.Hour), 10)
	require.NoError(t, err)
	require.Len(t, due, 1)
	assert.Equal(t, outbox.KindSMS, due[0].Kind())
}

func TestSideEffectRepository_ClaimOnce(t *testing.T) {
	gdb := setupTestDB(t)
	repo := NewSideEffectRepository(gdb)
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)

	task, err := outbox.NewTask("org_1", outbox.KindEmail, "dr_1:0:email", outbox.Message{Recipient: "a@b.c"}, now)
	require.NoError(t, err)
	_, err = repo.Enqueue(ctx, task)
	require.NoError(t, err)

	first, err := repo.ListDue(ctx, now, 10)
	require.NoError(t, err)
	second, err := repo.ListDue(ctx, now, 10)
	require.NoError(t, err)
	require.Len(t, first, 1)
	require.Len(t, second, 1)

	first[0].Claim(now.Add(time.Minute), now)
	claimed, err := repo.Claim(ctx, first[0], now)
	require.NoError(t, err)
	assert.True(t, claimed)

	second[0].Claim(now.Add(time.Minute), now)
	claimed, err = repo.Claim(ctx, second[0], now)
	require.NoError(t, err)
	assert.False(t, claimed, "the lease is already held")

	due, err := repo.ListDue(ctx, now.Add(30*time.Second), 10)
	require.NoError(t, err)
	assert.Empty(t, due)
}

func TestPaymentLinkRepository_RevokeAndPurge(t *testing.T) {
	gdb := setupTestDB(t)
	repo := NewPaymentLinkRepository(gdb)
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)

	first, err := paymentlink.NewLink("org_1", "cl_1", "ps_1", "hash-1", 24*time.Hour, now)
	require.NoError(t, err)
	require.NoError(t, repo.Create(ctx, first))

	revoked, err := repo.RevokeActive(ctx, "cl_1", "ps_1", now.Add(time.Hour))
	require.NoError(t, err)
	assert.EqualValues(t, 1, revoked)

	loaded, err := repo.FindByTokenHash(ctx, "hash-1")
	require.NoError(t, err)
	assert.False(t, loaded.IsUsable(now.Add(time.Hour)))

	second, err := paymentlink.NewLink("org_1", "cl_1", "ps_1", "hash-2", 24*time.Hour, now)
	require.NoError(t, err)
	require.NoError(t, repo.Create(ctx, second))
	require.NoError(t, second.Consume(now.Add(time.Minute)))
	require.NoError(t, repo.MarkUsed(ctx, second))
	assert.True(t, apperrors.IsConflictError(repo.MarkUsed(ctx, second)))

	purged, err := repo.DeleteExpired(ctx, now.Add(48*time.Hour))
	require.NoError(t, err)
	assert.EqualValues(t, 2, purged)
}

func TestRoutingRepositories(t *testing.T) {
	gdb := setupTestDB(t)
	ctx := context.Background()
	rules := NewRoutingRuleRepository(gdb, logger.NewNop())
	overrides := NewProviderOverrideRepository(gdb, logger.NewNop())

	low, err := routing.NewRule("org_1", "co_1", "web", 20, routing.Conditions{SourceChannels: []string{"WEB"}}, "psp_web", false)
	require.NoError(t, err)
	high, err := routing.NewRule("org_1", "co_1", "premium", 10, routing.Conditions{RiskTiers: []string{"LOW"}}, "psp_premium", false)
	require.NoError(t, err)
	require.NoError(t, rules.Create(ctx, low))
	require.NoError(t, rules.Create(ctx, high))

	list, err := rules.ListByCompany(ctx, "org_1", "co_1")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "premium", list[0].Name())
	assert.Equal(t, []string{"LOW"}, list[0].Conditions().RiskTiers)

	list[1].Disable()
	require.NoError(t, rules.Update(ctx, list[1]))
	reloaded, err := rules.GetByID(ctx, low.ID())
	require.NoError(t, err)
	assert.False(t, reloaded.IsEnabled())

	o, err := routing.NewOverride("org_1", routing.ScopeContract, "ct_1", "psp_a", "migration", "ops")
	require.NoError(t, err)
	require.NoError(t, overrides.Upsert(ctx, o))
	replacement, err := routing.NewOverride("org_1", routing.ScopeContract, "ct_1", "psp_b", "rollback", "ops")
	require.NoError(t, err)
	require.NoError(t, overrides.Upsert(ctx, replacement))

	found, err := overrides.Find(ctx, "org_1", routing.ScopeContract, "ct_1")
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, "psp_b", found.ProviderAccountID())
	assert.Equal(t, 2, found.Version())

	none, err := overrides.Find(ctx, "org_1", routing.ScopeClient, "cl_1")
	require.NoError(t, err)
	assert.Nil(t, none)
}

func TestBillingRepositories_InTransaction(t *testing.T) {
	gdb := setupTestDB(t)
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	schedules := NewPaymentScheduleRepository(gdb)
	tm := db.NewTransactionManager(gdb)

	ps, err := billing.NewPaymentSchedule("ps_1", "org_1", "cl_1", "ct_1", "sub_1", "TV", now)
	require.NoError(t, err)
	require.NoError(t, schedules.Create(ctx, ps))

	err = tm.RunInTransaction(ctx, func(ctx context.Context) error {
		active, err := schedules.ListActiveByClient(ctx, billing.ClientScope{OrganizationID: "org_1", ClientID: "cl_1"})
		if err != nil {
			return err
		}
		for _, s := range active {
			s.Pause("dunning suspension", now)
			if err := schedules.Update(ctx, s); err != nil {
				return err
			}
		}
		return nil
	})
	require.NoError(t, err)

	loaded, err := schedules.GetByID(ctx, "ps_1")
	require.NoError(t, err)
	assert.True(t, loaded.IsPaused())
	assert.Equal(t, "TV", loaded.ServiceCode())
	assert.Equal(t, 2, loaded.Version())
}
