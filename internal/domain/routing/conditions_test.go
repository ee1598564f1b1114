package routing

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func intPtr(v int) *int { return &v }

func TestPaymentResolve_FirstNonEmptySourceWins(t *testing.T) {
	p := Payment{
		SourceChannel: "",
		Contract:      &Contract{SourceChannel: "PHONE", ProductCode: "WINCASH"},
		ProductCode:   "JUSTI_PLUS",
		Metadata:      map[string]string{"source_channel": "WEB", "risk_tier": "high"},
	}

	v, src := p.Resolve(AttrSourceChannel)
	assert.Equal(t, "PHONE", v)
	assert.Equal(t, SourceContract, src)

	v, src = p.Resolve(AttrProductCode)
	assert.Equal(t, "JUSTI_PLUS", v)
	assert.Equal(t, SourcePayment, src)

	v, src = p.Resolve(AttrRiskTier)
	assert.Equal(t, "high", v)
	assert.Equal(t, SourceMetadata, src)

	_, src = p.Resolve(AttrDebitLotCode)
	assert.Equal(t, SourceNone, src)
}

func TestConditionsEvaluate(t *testing.T) {
	start := time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC)
	now := time.Date(2026, 1, 20, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		cond    Conditions
		payment Payment
		want    bool
	}{
		{
			name:    "no conditions always match",
			cond:    Conditions{},
			payment: Payment{},
			want:    true,
		},
		{
			name:    "list match is case-insensitive",
			cond:    Conditions{SourceChannels: []string{"Web", "PHONE"}},
			payment: Payment{SourceChannel: "web"},
			want:    true,
		},
		{
			name:    "missing attribute fails",
			cond:    Conditions{DebitLotCodes: []string{"LOT_A"}},
			payment: Payment{},
			want:    false,
		},
		{
			name:    "contract age from contract start date",
			cond:    Conditions{MinContractAgeMonths: intPtr(12)},
			payment: Payment{Contract: &Contract{StartDate: &start}},
			want:    true,
		},
		{
			name:    "contract age too young",
			cond:    Conditions{MinContractAgeMonths: intPtr(13)},
			payment: Payment{Contract: &Contract{StartDate: &start}},
			want:    false,
		},
		{
			name:    "contract age from metadata date",
			cond:    Conditions{MinContractAgeMonths: intPtr(6)},
			payment: Payment{Metadata: map[string]string{"contract_start_date": "2025-05-01"}},
			want:    true,
		},
		{
			name:    "preferred debit day from metadata",
			cond:    Conditions{PreferredDebitDays: []int{5, 10}},
			payment: Payment{Metadata: map[string]string{"preferred_debit_day": "10"}},
			want:    true,
		},
		{
			name: "all conditions must pass",
			cond: Conditions{
				SourceChannels: []string{"WEB"},
				RiskTiers:      []string{"LOW"},
			},
			payment: Payment{SourceChannel: "WEB", RiskTier: "HIGH"},
			want:    false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			results, ok := tt.cond.Evaluate(tt.payment, now)
			assert.Equal(t, tt.want, ok)
			assert.Len(t, results, tt.cond.Declared())
			for _, r := range results {
				assert.NotEmpty(t, r.Reason)
			}
		})
	}
}

func TestConditionsValidate(t *testing.T) {
	assert.NoError(t, Conditions{PreferredDebitDays: []int{1, 31}}.Validate())
	assert.Error(t, Conditions{PreferredDebitDays: []int{0}}.Validate())
	assert.Error(t, Conditions{MinContractAgeMonths: intPtr(-1)}.Validate())

	_, err := NewRule("org_1", "co_1", "bad", 1, Conditions{PreferredDebitDays: []int{40}}, "acct", false)
	require.Error(t, err)
}

func TestOverrideReplaceKeepsIdentity(t *testing.T) {
	o, err := NewOverride("org_1", ScopeContract, "ct_1", "acct_a", "", "alice")
	require.NoError(t, err)
	before := o.ID()

	require.NoError(t, o.Replace("acct_b", "provider outage", "bob"))
	assert.Equal(t, before, o.ID())
	assert.Equal(t, "acct_b", o.ProviderAccountID())
	assert.Equal(t, 2, o.Version())

	_, err = NewOverride("org_1", OverrideScope("COMPANY"), "x", "acct", "", "")
	assert.Error(t, err)
}
