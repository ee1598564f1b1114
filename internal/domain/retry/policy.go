package retry

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/payops/payops/internal/shared/biztime"
	"github.com/payops/payops/internal/shared/id"
)

// Scope addresses a policy. Empty company, product or channel act as wildcards.
type Scope struct {
	OrganizationID string
	CompanyID      string
	ProductCode    string
	Channel        string
}

func (s Scope) Key() string {
	return strings.Join([]string{s.OrganizationID, s.CompanyID, s.ProductCode, s.Channel}, "|")
}

type StopConditions struct {
	OnSettlement        bool `json:"on_settlement"`
	OnContractCancel    bool `json:"on_contract_cancel"`
	OnMandateRevocation bool `json:"on_mandate_revocation"`
}

// stops reports whether sig ends a schedule under these conditions. A blocked
// client always stops retries.
func (c StopConditions) stops(sig Signal) bool {
	switch sig {
	case SignalPaymentSettled:
		return c.OnSettlement
	case SignalContractCancelled:
		return c.OnContractCancel
	case SignalMandateRevoked:
		return c.OnMandateRevocation
	case SignalClientBlocked:
		return true
	}
	return false
}

// Plan is the part of a policy a schedule snapshots when it opens.
type Plan struct {
	RetryDelaysDays   []int          `json:"retry_delays_days"`
	MaxAttempts       int            `json:"max_attempts"`
	MaxTotalDays      int            `json:"max_total_days"`
	RetryableCodes    []string       `json:"retryable_codes,omitempty"`
	NonRetryableCodes []string       `json:"non_retryable_codes,omitempty"`
	Stop              StopConditions `json:"stop"`
}

func (p Plan) Validate() error {
	if len(p.RetryDelaysDays) == 0 {
		return fmt.Errorf("at least one retry delay is required")
	}
	prev := 0
	for i, d := range p.RetryDelaysDays {
		if d <= prev {
			return fmt.Errorf("retry delays must be positive and strictly increasing (index %d)", i)
		}
		prev = d
	}
	if p.MaxAttempts < 1 {
		return fmt.Errorf("max attempts must be at least 1")
	}
	if p.MaxTotalDays < 0 {
		return fmt.Errorf("max total days must not be negative")
	}
	for _, c := range p.RetryableCodes {
		if containsFold(p.NonRetryableCodes, c) {
			return fmt.Errorf("code %s is both retryable and non-retryable", c)
		}
	}
	return nil
}

// Classify decides eligibility for a rejection code. A non-empty retryable
// list acts as an allow list.
func (p Plan) Classify(code string) Eligibility {
	if containsFold(p.NonRetryableCodes, code) {
		return NotEligibleReasonCode
	}
	if len(p.RetryableCodes) > 0 && !containsFold(p.RetryableCodes, code) {
		return NotEligibleReasonCode
	}
	return Eligible
}

// DelayFor returns the day offset from the first rejection for the retry
// following attempt. ok is false once the plan is exhausted.
func (p Plan) DelayFor(attempt int) (days int, ok bool) {
	if attempt < 0 || attempt >= len(p.RetryDelaysDays) {
		return 0, false
	}
	days = p.RetryDelaysDays[attempt]
	if p.MaxTotalDays > 0 && days > p.MaxTotalDays {
		return 0, false
	}
	return days, true
}

func containsFold(list []string, v string) bool {
	return slices.ContainsFunc(list, func(s string) bool {
		return strings.EqualFold(strings.TrimSpace(s), strings.TrimSpace(v))
	})
}

// Policy is a scoped retry policy.
type Policy struct {
	id        string
	scope     Scope
	name      string
	plan      Plan
	isDefault bool
	enabled   bool
	version   int
	createdAt time.Time
	updatedAt time.Time
}

func NewPolicy(scope Scope, name string, plan Plan, isDefault bool) (*Policy, error) {
	if scope.OrganizationID == "" {
		return nil, fmt.Errorf("organization is required")
	}
	if strings.TrimSpace(name) == "" {
		return nil, fmt.Errorf("policy name is required")
	}
	if err := plan.Validate(); err != nil {
		return nil, err
	}
	now := biztime.NowUTC()
	return &Policy{
		id:        id.New(id.PrefixRetryPolicy),
		scope:     scope,
		name:      strings.TrimSpace(name),
		plan:      plan,
		isDefault: isDefault,
		enabled:   true,
		version:   1,
		createdAt: now,
		updatedAt: now,
	}, nil
}

func ReconstructPolicy(policyID string, scope Scope, name string, plan Plan, isDefault, enabled bool, version int, createdAt, updatedAt time.Time) *Policy {
	return &Policy{
		id:        policyID,
		scope:     scope,
		name:      name,
		plan:      plan,
		isDefault: isDefault,
		enabled:   enabled,
		version:   version,
		createdAt: createdAt,
		updatedAt: updatedAt,
	}
}

// ID returns the retry policy ID.
func (p *Policy) ID() string {
	return p.id
}

// Scope returns the retry policy scope.
func (p *Policy) Scope() Scope {
	return p.scope
}

// Name returns the retry policy name.
func (p *Policy) Name() string {
	return p.name
}

// Plan returns the retry policy plan.
func (p *Policy) Plan() Plan {
	return p.plan
}

// IsDefault reports whether the retry policy is the organization default.
func (p *Policy) IsDefault() bool {
	return p.isDefault
}

// IsEnabled reports whether the retry policy is enabled.
func (p *Policy) IsEnabled() bool {
	return p.enabled
}

// Version returns the optimistic lock version.
func (p *Policy) Version() int {
	return p.version
}

// CreatedAt returns when the retry policy was created.
func (p *Policy) CreatedAt() time.Time {
	return p.createdAt
}

// UpdatedAt returns when the retry policy was last updated.
func (p *Policy) UpdatedAt() time.Time {
	return p.updatedAt
}

func (p *Policy) Update(name string, plan Plan, isDefault, enabled bool) error {
	if err := plan.Validate(); err != nil {
		return err
	}
	if strings.TrimSpace(name) != "" {
		p.name = strings.TrimSpace(name)
	}
	p.plan = plan
	p.isDefault = isDefault
	p.enabled = enabled
	p.updatedAt = biztime.NowUTC()
	p.version++
	return nil
}

// ClearDefault drops the default flag, used when another policy of the same
// scope tuple becomes default.
func (p *Policy) ClearDefault() {
	if p.isDefault {
		p.isDefault = false
		p.updatedAt = biztime.NowUTC()
		p.version++
	}
}

// specificity returns how many scope fields p pins for s, or -1 when p does
// not apply to s.
func (p *Policy) specificity(s Scope) int {
	if p.scope.OrganizationID != s.OrganizationID {
		return -1
	}
	n := 0
	for _, f := range [][2]string{
		{p.scope.CompanyID, s.CompanyID},
		{p.scope.ProductCode, s.ProductCode},
		{p.scope.Channel, s.Channel},
	} {
		switch {
		case f[0] == "":
		case strings.EqualFold(f[0], f[1]):
			n++
		default:
			return -1
		}
	}
	return n
}

// SelectPolicy picks the most specific enabled policy applying to s. Among
// equally specific candidates the default one wins, then the oldest.
func SelectPolicy(policies []*Policy, s Scope) *Policy {
	var best *Policy
	bestScore := -1
	for _, p := range policies {
		if !p.enabled {
			continue
		}
		score := p.specificity(s)
		if score < 0 {
			continue
		}
		switch {
		case score > bestScore:
		case score == bestScore && p.isDefault && !best.isDefault:
		case score == bestScore && p.isDefault == best.isDefault && p.createdAt.Before(best.createdAt):
		default:
			continue
		}
		best, bestScore = p, score
	}
	return best
}
