package seeds

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dunningdto "github.com/payops/payops/internal/application/dunning/dto"
	policyusecases "github.com/payops/payops/internal/application/policy/usecases"
	routingusecases "github.com/payops/payops/internal/application/routing/usecases"
	"github.com/payops/payops/internal/application/testutil"
	"github.com/payops/payops/internal/domain/retry"
	apperrors "github.com/payops/payops/internal/shared/errors"
)

const sample = `
retry_policies:
  - organization_id: org_1
    name: standard
    retry_delays_days: [3, 7]
    max_attempts: 2
    max_total_days: 20
    stop_on_contract_cancel: false
    is_default: true
dunning_configs:
  - organization_id: org_1
    name: standard
    is_default: true
    steps:
      - {delay_days: 0, action: RETRY_PAYMENT_AND_NOTIFY, channels: [EMAIL]}
      - {delay_days: 10, action: SUSPEND}
routing_rules:
  - organization_id: org_1
    company_id: co_1
    name: web
    priority: 1
    provider_account_id: acct_a
    source_channels: [WEB]
  - organization_id: org_1
    company_id: co_1
    name: fallback
    priority: 99
    provider_account_id: acct_b
    fallback: true
service_bundles:
  - organization_id: org_1
    name: conciergerie
    anchor_service_code: CONCIERGERIE
    member_codes: [JUSTI_PLUS]
`

func newSeeder(env *testutil.Env) *Seeder {
	return NewSeeder(
		policyusecases.NewUpsertRetryPolicyUseCase(env.Policies, env.Tx, env.Ledger, env.Logger),
		policyusecases.NewUpsertDunningConfigUseCase(env.Configs, env.Tx, env.Ledger, env.Logger),
		routingusecases.NewCreateRoutingRuleUseCase(env.Rules, env.Tx, env.Ledger, env.Logger),
		routingusecases.NewListRoutingRulesUseCase(env.Rules, env.Logger),
		policyusecases.NewUpsertServiceBundleUseCase(env.Bundles, env.Clock, env.Logger),
		env.Logger,
	)
}

func TestParse_Validates(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"unknown key", "retry_policy:\n  - name: x\n"},
		{"policy without organization", "retry_policies:\n  - name: x\n    retry_delays_days: [1]\n    max_attempts: 1\n    max_total_days: 5\n"},
		{"bad step action", "dunning_configs:\n  - organization_id: o\n    name: x\n    steps:\n      - {delay_days: 0, action: CALL}\n"},
		{"bundle without members", "service_bundles:\n  - organization_id: o\n    name: x\n    anchor_service_code: A\n"},
		{"debit day out of range", "routing_rules:\n  - {organization_id: o, company_id: c, name: x, provider_account_id: p, preferred_debit_days: [32]}\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(strings.NewReader(tt.doc))
			assert.Error(t, err)
		})
	}

	f, err := Parse(strings.NewReader(""))
	require.NoError(t, err)
	assert.Empty(t, f.RetryPolicies)
}

func TestLoadFile_ShippedSeedsAreValid(t *testing.T) {
	f, err := LoadFile(filepath.Join("..", "..", "..", "configs", "seeds.yaml"))
	require.NoError(t, err)
	assert.NotEmpty(t, f.RetryPolicies)
	assert.NotEmpty(t, f.DunningConfigs)
	assert.NotEmpty(t, f.RoutingRules)
	assert.NotEmpty(t, f.ServiceBundles)
}

func TestSeeder_ApplyIsIdempotent(t *testing.T) {
	env := testutil.NewEnv(t)
	ctx := env.Ctx()
	s := newSeeder(env)

	f, err := Parse(strings.NewReader(sample))
	require.NoError(t, err)

	first, err := s.Apply(ctx, f)
	require.NoError(t, err)
	assert.Equal(t, &Report{PoliciesCreated: 1, ConfigsCreated: 1, RulesCreated: 2, BundlesSaved: 1}, first)

	second, err := s.Apply(ctx, f)
	require.NoError(t, err)
	assert.Equal(t, &Report{PoliciesUpdated: 1, ConfigsUpdated: 1, RulesSkipped: 2, BundlesSaved: 1}, second)

	policies, err := env.Policies.ListByOrganization(ctx, "org_1")
	require.NoError(t, err)
	require.Len(t, policies, 1)
	plan := policies[0].Plan()
	assert.Equal(t, retry.StopConditions{OnSettlement: true, OnContractCancel: false, OnMandateRevocation: true}, plan.Stop)

	configs, err := env.Configs.ListByOrganization(ctx, "org_1")
	require.NoError(t, err)
	assert.Len(t, configs, 1)

	bundles, err := env.Bundles.ListByOrganization(ctx, "org_1")
	require.NoError(t, err)
	assert.Len(t, bundles, 1)
}

func TestSeeder_StopsOnInvalidRecord(t *testing.T) {
	env := testutil.NewEnv(t)
	f := &File{DunningConfigs: []DunningConfigSeed{{
		OrganizationID: "org_1",
		Name:           "broken",
	}}}
	f.DunningConfigs[0].Steps = append(f.DunningConfigs[0].Steps, stepInput(10, "RETRY_PAYMENT"), stepInput(3, "RETRY_PAYMENT"))

	report, err := newSeeder(env).Apply(env.Ctx(), f)
	require.Error(t, err)
	assert.True(t, apperrors.IsValidationError(err))
	assert.Zero(t, report.ConfigsCreated)
}

func stepInput(delay int, action string) dunningdto.StepInput {
	return dunningdto.StepInput{DelayDays: delay, Action: action}
}
