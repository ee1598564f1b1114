package routing

import (
	"fmt"
	"slices"
	"time"
)

type MatchedBy string

const (
	MatchedByOverride MatchedBy = "OVERRIDE"
	MatchedByRule     MatchedBy = "RULE"
	MatchedByFallback MatchedBy = "FALLBACK"
	MatchedByNone     MatchedBy = "NONE"
)

const AlertCodeRoutingNotFound = "PROVIDER_ROUTING_NOT_FOUND"

// RuleEvaluation is the trace of one rule against one payment.
type RuleEvaluation struct {
	RuleID     string            `json:"rule_id"`
	RuleName   string            `json:"rule_name,omitempty"`
	Priority   int               `json:"priority"`
	Fallback   bool              `json:"fallback"`
	Matched    bool              `json:"matched"`
	Selected   bool              `json:"selected"`
	Conditions []ConditionResult `json:"conditions,omitempty"`
	Reason     string            `json:"reason"`
}

// Decision is the outcome of a routing evaluation. Exactly one of override,
// rule, fallback or none is selected.
type Decision struct {
	MatchedBy         MatchedBy        `json:"matched_by"`
	RuleID            string           `json:"rule_id,omitempty"`
	OverrideID        string           `json:"override_id,omitempty"`
	ProviderAccountID string           `json:"provider_account_id,omitempty"`
	Reason            string           `json:"reason"`
	Evaluations       []RuleEvaluation `json:"evaluations"`
	EvaluatedAt       time.Time        `json:"evaluated_at"`
}

func (d Decision) Found() bool {
	return d.MatchedBy != MatchedByNone
}

// Candidates is everything an evaluation may select from.
type Candidates struct {
	ContractOverride *Override
	ClientOverride   *Override
	Rules            []*Rule
}

// Evaluate applies override, then primary rules, then fallback. It has no
// side effects.
func Evaluate(p Payment, c Candidates, now time.Time) Decision {
	d := Decision{EvaluatedAt: now, Evaluations: []RuleEvaluation{}}

	for _, o := range []*Override{c.ContractOverride, c.ClientOverride} {
		if o == nil {
			continue
		}
		d.MatchedBy = MatchedByOverride
		d.OverrideID = o.ID()
		d.ProviderAccountID = o.ProviderAccountID()
		d.Reason = fmt.Sprintf("%s override %s for %s", o.Scope(), o.ID(), o.ScopeID())
		return d
	}

	var primary, fallbacks []*Rule
	for _, r := range c.Rules {
		if !r.IsEnabled() {
			continue
		}
		if r.IsFallback() {
			fallbacks = append(fallbacks, r)
		} else {
			primary = append(primary, r)
		}
	}
	slices.SortStableFunc(primary, compareRules)

	var winner *Rule
	for _, r := range primary {
		results, ok := r.Conditions().Evaluate(p, now)
		ev := RuleEvaluation{
			RuleID:     r.ID(),
			RuleName:   r.Name(),
			Priority:   r.Priority(),
			Matched:    ok,
			Conditions: results,
		}
		switch {
		case ok && winner == nil:
			winner = r
			ev.Selected = true
			ev.Reason = "all declared conditions passed"
		case ok:
			ev.Reason = fmt.Sprintf("matches but rule %s has precedence", winner.ID())
		default:
			ev.Reason = firstFailure(results)
		}
		d.Evaluations = append(d.Evaluations, ev)
	}

	if winner != nil {
		d.MatchedBy = MatchedByRule
		d.RuleID = winner.ID()
		d.ProviderAccountID = winner.ProviderAccountID()
		d.Reason = fmt.Sprintf("rule %s matched at priority %d", winner.ID(), winner.Priority())
		return d
	}

	switch len(fallbacks) {
	case 0:
		d.MatchedBy = MatchedByNone
		d.Reason = "no rule matched and no fallback rule is enabled"
	case 1:
		fb := fallbacks[0]
		d.Evaluations = append(d.Evaluations, RuleEvaluation{
			RuleID:   fb.ID(),
			RuleName: fb.Name(),
			Priority: fb.Priority(),
			Fallback: true,
			Matched:  true,
			Selected: true,
			Reason:   "fallback rule selected",
		})
		d.MatchedBy = MatchedByFallback
		d.RuleID = fb.ID()
		d.ProviderAccountID = fb.ProviderAccountID()
		d.Reason = fmt.Sprintf("no primary rule matched, fallback %s selected", fb.ID())
	default:
		for _, fb := range fallbacks {
			d.Evaluations = append(d.Evaluations, RuleEvaluation{
				RuleID:   fb.ID(),
				RuleName: fb.Name(),
				Priority: fb.Priority(),
				Fallback: true,
				Reason:   "ignored: more than one fallback rule is enabled",
			})
		}
		d.MatchedBy = MatchedByNone
		d.Reason = fmt.Sprintf("no rule matched and %d fallback rules are enabled", len(fallbacks))
	}
	return d
}

func compareRules(a, b *Rule) int {
	switch {
	case a.precedes(b):
		return -1
	case b.precedes(a):
		return 1
	}
	return 0
}

func firstFailure(results []ConditionResult) string {
	for _, r := range results {
		if !r.Passed {
			return r.Reason
		}
	}
	return "no conditions"
}
