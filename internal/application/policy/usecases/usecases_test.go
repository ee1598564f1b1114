package usecases

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dunningdto "github.com/payops/payops/internal/application/dunning/dto"
	"github.com/payops/payops/internal/application/testutil"
	"github.com/payops/payops/internal/domain/audit"
	"github.com/payops/payops/internal/domain/retry"
	apperrors "github.com/payops/payops/internal/shared/errors"
)

const org = "org_1"

func plan(delays ...int) retry.Plan {
	return retry.Plan{RetryDelaysDays: delays, MaxAttempts: len(delays), MaxTotalDays: 30}
}

func TestUpsertRetryPolicy_NewDefaultDemotesPrevious(t *testing.T) {
	env := testutil.NewEnv(t)
	ctx := env.Ctx()
	uc := NewUpsertRetryPolicyUseCase(env.Policies, env.Tx, env.Ledger, env.Logger)
	scope := retry.Scope{OrganizationID: org}

	first, err := uc.Execute(ctx, UpsertRetryPolicyCommand{Scope: scope, Name: "standard", Plan: plan(3, 7), IsDefault: true, Enabled: true, Actor: "ops"})
	require.NoError(t, err)
	assert.True(t, first.Created)

	second, err := uc.Execute(ctx, UpsertRetryPolicyCommand{Scope: scope, Name: "gentle", Plan: plan(5, 10, 15), IsDefault: true, Enabled: true, Actor: "ops"})
	require.NoError(t, err)

	list, err := NewListRetryPoliciesUseCase(env.Policies, env.Logger).Execute(ctx, ListRetryPoliciesQuery{OrganizationID: org})
	require.NoError(t, err)
	require.Len(t, list, 2)
	defaults := map[string]bool{}
	for _, p := range list {
		defaults[p.ID] = p.IsDefault
	}
	assert.False(t, defaults[first.Policy.ID])
	assert.True(t, defaults[second.Policy.ID])

	resolved, err := NewResolveRetryPolicyUseCase(env.Policies).Execute(ctx, ResolveRetryPolicyQuery{Scope: retry.Scope{OrganizationID: org, ProductCode: "JUSTI_PLUS"}})
	require.NoError(t, err)
	assert.Equal(t, second.Policy.ID, resolved.ID)

	history, err := env.Ledger.History(ctx, audit.EntityRetryPolicy, first.Policy.ID)
	require.NoError(t, err)
	assert.Len(t, history, 2, "create then clear_default")
}

func TestUpsertRetryPolicy_UpdateBumpsVersion(t *testing.T) {
	env := testutil.NewEnv(t)
	ctx := env.Ctx()
	uc := NewUpsertRetryPolicyUseCase(env.Policies, env.Tx, env.Ledger, env.Logger)
	scope := retry.Scope{OrganizationID: org, CompanyID: "co_1"}

	created, err := uc.Execute(ctx, UpsertRetryPolicyCommand{Scope: scope, Name: "standard", Plan: plan(3), Enabled: true})
	require.NoError(t, err)

	updated, err := uc.Execute(ctx, UpsertRetryPolicyCommand{Scope: scope, Name: "Standard", Plan: plan(3, 7), Enabled: true})
	require.NoError(t, err)
	assert.False(t, updated.Created)
	assert.Equal(t, created.Policy.ID, updated.Policy.ID)
	assert.Equal(t, created.Policy.Version+1, updated.Policy.Version)
	assert.Equal(t, []int{3, 7}, updated.Policy.Plan.RetryDelaysDays)

	_, err = uc.Execute(ctx, UpsertRetryPolicyCommand{Scope: scope, Name: "broken", Plan: retry.Plan{}})
	assert.True(t, apperrors.IsValidationError(err))
}

func TestResolveRetryPolicy_NoneApplies(t *testing.T) {
	env := testutil.NewEnv(t)
	_, err := NewResolveRetryPolicyUseCase(env.Policies).Execute(env.Ctx(), ResolveRetryPolicyQuery{Scope: retry.Scope{OrganizationID: org}})
	assert.True(t, apperrors.IsNotFoundError(err))
}

func TestUpsertDunningConfig(t *testing.T) {
	env := testutil.NewEnv(t)
	ctx := env.Ctx()
	uc := NewUpsertDunningConfigUseCase(env.Configs, env.Tx, env.Ledger, env.Logger)

	steps := []dunningdto.StepInput{
		{DelayDays: 0, Action: "RETRY_PAYMENT", Label: "J0"},
		{DelayDays: 3, Action: "RETRY_PAYMENT_AND_NOTIFY", Channels: []string{"EMAIL", "SMS"}, IncludePaymentLink: true, Label: "J+3"},
		{DelayDays: 10, Action: "SUSPEND", Channels: []string{"EMAIL"}, Label: "J+10"},
	}
	created, err := uc.Execute(ctx, UpsertDunningConfigCommand{OrganizationID: org, Name: "standard", Steps: steps, IsDefault: true, Enabled: true, Actor: "ops"})
	require.NoError(t, err)
	assert.True(t, created.Created)
	assert.Len(t, created.Config.Steps, 3)

	company, err := uc.Execute(ctx, UpsertDunningConfigCommand{OrganizationID: org, CompanyID: "co_1", Name: "standard", Steps: steps[:2], IsDefault: true, Enabled: true})
	require.NoError(t, err)
	assert.True(t, company.Created, "company configs are scoped apart from the organization")

	misordered := []dunningdto.StepInput{steps[2], steps[1]}
	_, err = uc.Execute(ctx, UpsertDunningConfigCommand{OrganizationID: org, Name: "standard", Steps: misordered, Enabled: true})
	assert.True(t, apperrors.IsValidationError(err), "SUSPEND must be the final step")

	configs, err := NewListDunningConfigsUseCase(env.Configs, env.Logger).Execute(ctx, ListDunningConfigsQuery{OrganizationID: org})
	require.NoError(t, err)
	require.Len(t, configs, 2)
	for _, c := range configs {
		assert.True(t, c.IsDefault, "one default per scope survives")
		assert.Equal(t, 1, c.Version)
	}
}

func TestUpsertServiceBundle(t *testing.T) {
	env := testutil.NewEnv(t)
	ctx := env.Ctx()
	uc := NewUpsertServiceBundleUseCase(env.Bundles, env.Clock, env.Logger)

	b, err := uc.Execute(ctx, UpsertServiceBundleCommand{OrganizationID: org, Name: "Pack", AnchorServiceCode: "conciergerie", MemberCodes: []string{"justi_plus"}})
	require.NoError(t, err)
	assert.Equal(t, "CONCIERGERIE", b.AnchorServiceCode)

	again, err := uc.Execute(ctx, UpsertServiceBundleCommand{OrganizationID: org, Name: "Pack", AnchorServiceCode: "CONCIERGERIE", MemberCodes: []string{"JUSTI_PLUS", "WINCASH"}})
	require.NoError(t, err)
	assert.Equal(t, b.ID, again.ID)
	assert.ElementsMatch(t, []string{"JUSTI_PLUS", "WINCASH"}, again.MemberCodes)

	_, err = uc.Execute(ctx, UpsertServiceBundleCommand{OrganizationID: org, Name: "Loop", AnchorServiceCode: "WINCASH", MemberCodes: []string{"wincash"}})
	assert.True(t, apperrors.IsValidationError(err))

	list, err := NewListServiceBundlesUseCase(env.Bundles).Execute(ctx, org)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}
