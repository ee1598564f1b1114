package routing

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/cases"

	"github.com/payops/payops/internal/shared/biztime"
)

// Conditions is the condition set of a rule. Empty fields are not declared and
// always pass.
type Conditions struct {
	SourceChannels       []string `json:"source_channels,omitempty"`
	ProductCodes         []string `json:"product_codes,omitempty"`
	MinContractAgeMonths *int     `json:"min_contract_age_months,omitempty"`
	DebitLotCodes        []string `json:"debit_lot_codes,omitempty"`
	PreferredDebitDays   []int    `json:"preferred_debit_days,omitempty"`
	RiskTiers            []string `json:"risk_tiers,omitempty"`
}

// ConditionResult is one line of an evaluation trace.
type ConditionResult struct {
	Field    Attribute `json:"field"`
	Expected string    `json:"expected"`
	Actual   string    `json:"actual,omitempty"`
	Source   Source    `json:"source,omitempty"`
	Passed   bool      `json:"passed"`
	Reason   string    `json:"reason"`
}

// Declared reports how many conditions the set declares.
func (c Conditions) Declared() int {
	n := 0
	for _, declared := range []bool{
		len(c.SourceChannels) > 0,
		len(c.ProductCodes) > 0,
		c.MinContractAgeMonths != nil,
		len(c.DebitLotCodes) > 0,
		len(c.PreferredDebitDays) > 0,
		len(c.RiskTiers) > 0,
	} {
		if declared {
			n++
		}
	}
	return n
}

func (c Conditions) Validate() error {
	if c.MinContractAgeMonths != nil && *c.MinContractAgeMonths < 0 {
		return fmt.Errorf("min contract age must not be negative")
	}
	for _, d := range c.PreferredDebitDays {
		if d < 1 || d > 31 {
			return fmt.Errorf("preferred debit day %d out of range 1-31", d)
		}
	}
	return nil
}

// Evaluate checks every declared condition against p. The set matches only
// when all results pass.
func (c Conditions) Evaluate(p Payment, now time.Time) ([]ConditionResult, bool) {
	var results []ConditionResult
	if len(c.SourceChannels) > 0 {
		results = append(results, matchList(p, AttrSourceChannel, c.SourceChannels))
	}
	if len(c.ProductCodes) > 0 {
		results = append(results, matchList(p, AttrProductCode, c.ProductCodes))
	}
	if c.MinContractAgeMonths != nil {
		results = append(results, matchContractAge(p, *c.MinContractAgeMonths, now))
	}
	if len(c.DebitLotCodes) > 0 {
		results = append(results, matchList(p, AttrDebitLotCode, c.DebitLotCodes))
	}
	if len(c.PreferredDebitDays) > 0 {
		results = append(results, matchDays(p, c.PreferredDebitDays))
	}
	if len(c.RiskTiers) > 0 {
		results = append(results, matchList(p, AttrRiskTier, c.RiskTiers))
	}

	for _, r := range results {
		if !r.Passed {
			return results, false
		}
	}
	return results, true
}

func matchList(p Payment, attr Attribute, allowed []string) ConditionResult {
	actual, src := p.Resolve(attr)
	res := ConditionResult{
		Field:    attr,
		Expected: "one of [" + strings.Join(allowed, ", ") + "]",
		Actual:   actual,
		Source:   src,
	}
	if actual == "" {
		res.Reason = fmt.Sprintf("%s is not set on payment, contract or metadata", attr)
		return res
	}

	fold := cases.Fold()
	want := fold.String(actual)
	for _, a := range allowed {
		if fold.String(strings.TrimSpace(a)) == want {
			res.Passed = true
			res.Reason = fmt.Sprintf("%s %q (from %s) is in the allowed list", attr, actual, src)
			return res
		}
	}
	res.Reason = fmt.Sprintf("%s %q (from %s) is not in the allowed list", attr, actual, src)
	return res
}

func matchDays(p Payment, allowed []int) ConditionResult {
	actual, src := p.Resolve(AttrPreferredDebitDay)
	parts := make([]string, len(allowed))
	for i, d := range allowed {
		parts[i] = strconv.Itoa(d)
	}
	res := ConditionResult{
		Field:    AttrPreferredDebitDay,
		Expected: "one of [" + strings.Join(parts, ", ") + "]",
		Actual:   actual,
		Source:   src,
	}
	if actual == "" {
		res.Reason = "preferred debit day is not set"
		return res
	}
	day, err := strconv.Atoi(actual)
	if err != nil {
		res.Reason = fmt.Sprintf("preferred debit day %q is not a number", actual)
		return res
	}
	if slices.Contains(allowed, day) {
		res.Passed = true
		res.Reason = fmt.Sprintf("preferred debit day %d is allowed", day)
		return res
	}
	res.Reason = fmt.Sprintf("preferred debit day %d is not allowed", day)
	return res
}

func matchContractAge(p Payment, minMonths int, now time.Time) ConditionResult {
	res := ConditionResult{
		Field:    AttrContractStartDate,
		Expected: fmt.Sprintf("contract age >= %d months", minMonths),
	}
	start, src, ok := p.contractStart()
	res.Source = src
	if !ok {
		if src == SourceNone {
			res.Reason = "contract start date is unknown"
		} else {
			res.Reason = "contract start date is not a valid date"
		}
		return res
	}
	age := biztime.MonthsBetween(start, now)
	res.Actual = fmt.Sprintf("%d months", age)
	if age >= minMonths {
		res.Passed = true
		res.Reason = fmt.Sprintf("contract is %d months old (minimum %d)", age, minMonths)
		return res
	}
	res.Reason = fmt.Sprintf("contract is only %d months old (minimum %d)", age, minMonths)
	return res
}
