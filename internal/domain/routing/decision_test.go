package routing

import (
	"fmt"
	"math/rand/v2"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var evalNow = time.Date(2026, 6, 1, 10, 0, 0, 0, time.UTC)

func mustRule(t *testing.T, priority int, cond Conditions, provider string, fallback bool) *Rule {
	t.Helper()
	r, err := NewRule("org_1", "co_1", fmt.Sprintf("rule-%d", priority), priority, cond, provider, fallback)
	require.NoError(t, err)
	return r
}

func TestEvaluate_PrimaryRuleBeatsFallback(t *testing.T) {
	nonMatching := mustRule(t, 1, Conditions{SourceChannels: []string{"PHONE"}}, "acct_phone", false)
	matching := mustRule(t, 2, Conditions{ProductCodes: []string{"justi_plus"}}, "acct_justi", false)
	fallback := mustRule(t, 99, Conditions{}, "acct_default", true)

	p := Payment{ID: "pay_1", ClientID: "cl_1", SourceChannel: "web", ProductCode: "JUSTI_PLUS"}
	d := Evaluate(p, Candidates{Rules: []*Rule{fallback, matching, nonMatching}}, evalNow)

	assert.Equal(t, MatchedByRule, d.MatchedBy)
	assert.Equal(t, matching.ID(), d.RuleID)
	assert.Equal(t, "acct_justi", d.ProviderAccountID)
	require.Len(t, d.Evaluations, 2)
	assert.Equal(t, nonMatching.ID(), d.Evaluations[0].RuleID)
	assert.False(t, d.Evaluations[0].Matched)
	assert.Contains(t, d.Evaluations[0].Reason, "not in the allowed list")
	assert.True(t, d.Evaluations[1].Selected)
}

func TestEvaluate_OverridePreemptsRules(t *testing.T) {
	rule := mustRule(t, 1, Conditions{}, "acct_rule", false)
	clientOv, err := NewOverride("org_1", ScopeClient, "cl_1", "acct_client", "vip", "ops")
	require.NoError(t, err)
	contractOv, err := NewOverride("org_1", ScopeContract, "ct_1", "acct_contract", "migration", "ops")
	require.NoError(t, err)

	p := Payment{ID: "pay_1", ClientID: "cl_1", ContractID: "ct_1"}

	d := Evaluate(p, Candidates{ClientOverride: clientOv, ContractOverride: contractOv, Rules: []*Rule{rule}}, evalNow)
	assert.Equal(t, MatchedByOverride, d.MatchedBy)
	assert.Equal(t, contractOv.ID(), d.OverrideID)
	assert.Equal(t, "acct_contract", d.ProviderAccountID)
	assert.Empty(t, d.Evaluations)

	d = Evaluate(p, Candidates{ClientOverride: clientOv, Rules: []*Rule{rule}}, evalNow)
	assert.Equal(t, clientOv.ID(), d.OverrideID)
}

func TestEvaluate_NoMatch(t *testing.T) {
	rule := mustRule(t, 1, Conditions{RiskTiers: []string{"LOW"}}, "acct_low", false)
	d := Evaluate(Payment{ID: "pay_1", RiskTier: "HIGH"}, Candidates{Rules: []*Rule{rule}}, evalNow)

	assert.Equal(t, MatchedByNone, d.MatchedBy)
	assert.False(t, d.Found())
	assert.Empty(t, d.ProviderAccountID)
	assert.Empty(t, d.RuleID)
}

func TestEvaluate_AmbiguousFallbackSelectsNone(t *testing.T) {
	a := mustRule(t, 10, Conditions{}, "acct_a", true)
	b := mustRule(t, 11, Conditions{}, "acct_b", true)
	d := Evaluate(Payment{ID: "pay_1"}, Candidates{Rules: []*Rule{a, b}}, evalNow)

	assert.Equal(t, MatchedByNone, d.MatchedBy)
	assert.Len(t, d.Evaluations, 2)
	for _, ev := range d.Evaluations {
		assert.False(t, ev.Selected)
	}
}

func TestEvaluate_DisabledRulesIgnored(t *testing.T) {
	r := mustRule(t, 1, Conditions{}, "acct_x", false)
	r.Disable()
	fb := mustRule(t, 5, Conditions{}, "acct_fb", true)

	d := Evaluate(Payment{ID: "pay_1"}, Candidates{Rules: []*Rule{r, fb}}, evalNow)
	assert.Equal(t, MatchedByFallback, d.MatchedBy)
	assert.Equal(t, fb.ID(), d.RuleID)
}

func TestEvaluate_TiesBrokenByCreationOrder(t *testing.T) {
	older := ReconstructRule("rr_b", "org_1", "co_1", "older", 1, Conditions{}, "acct_old", false, true, 1,
		evalNow.Add(-2*time.Hour), evalNow)
	newer := ReconstructRule("rr_a", "org_1", "co_1", "newer", 1, Conditions{}, "acct_new", false, true, 1,
		evalNow.Add(-time.Hour), evalNow)

	d := Evaluate(Payment{ID: "pay_1"}, Candidates{Rules: []*Rule{newer, older}}, evalNow)
	assert.Equal(t, "rr_b", d.RuleID)
	assert.Contains(t, d.Evaluations[1].Reason, "has precedence")
}

func TestEvaluate_AtMostOneSelection(t *testing.T) {
	rng := rand.New(rand.NewPCG(7, 11))
	channels := []string{"WEB", "PHONE", "SHOP"}

	for i := range 200 {
		var rules []*Rule
		for j := range rng.IntN(6) {
			cond := Conditions{}
			if rng.IntN(2) == 0 {
				cond.SourceChannels = []string{channels[rng.IntN(len(channels))]}
			}
			rules = append(rules, mustRule(t, rng.IntN(3), cond, fmt.Sprintf("acct_%d", j), rng.IntN(4) == 0))
		}
		var cand Candidates
		cand.Rules = rules
		if rng.IntN(5) == 0 {
			ov, err := NewOverride("org_1", ScopeClient, "cl_1", "acct_ov", "", "ops")
			require.NoError(t, err)
			cand.ClientOverride = ov
		}

		d := Evaluate(Payment{ID: "pay", ClientID: "cl_1", SourceChannel: channels[rng.IntN(len(channels))]}, cand, evalNow)

		selected := 0
		for _, ev := range d.Evaluations {
			if ev.Selected {
				selected++
			}
		}
		switch d.MatchedBy {
		case MatchedByOverride:
			assert.Zero(t, selected, "iteration %d", i)
			assert.Empty(t, d.RuleID)
		case MatchedByRule, MatchedByFallback:
			assert.Equal(t, 1, selected, "iteration %d", i)
			assert.Empty(t, d.OverrideID)
		case MatchedByNone:
			assert.Zero(t, selected, "iteration %d", i)
			assert.Empty(t, d.ProviderAccountID)
		}
	}
}
