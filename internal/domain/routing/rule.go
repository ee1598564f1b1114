package routing

import (
	"fmt"
	"strings"
	"time"

	"github.com/payops/payops/internal/shared/biztime"
	"github.com/payops/payops/internal/shared/id"
)

// Rule selects a provider account for payments matching its conditions.
type Rule struct {
	id                string
	organizationID    string
	companyID         string
	name              string
	priority          int
	conditions        Conditions
	providerAccountID string
	fallback          bool
	enabled           bool
	version           int
	createdAt         time.Time
	updatedAt         time.Time
}

func NewRule(organizationID, companyID, name string, priority int, conditions Conditions, providerAccountID string, fallback bool) (*Rule, error) {
	if organizationID == "" || companyID == "" {
		return nil, fmt.Errorf("organization and company are required")
	}
	if strings.TrimSpace(providerAccountID) == "" {
		return nil, fmt.Errorf("provider account is required")
	}
	if priority < 0 {
		return nil, fmt.Errorf("priority must not be negative")
	}
	if err := conditions.Validate(); err != nil {
		return nil, err
	}

	now := biztime.NowUTC()
	return &Rule{
		id:                id.New(id.PrefixRoutingRule),
		organizationID:    organizationID,
		companyID:         companyID,
		name:              strings.TrimSpace(name),
		priority:          priority,
		conditions:        conditions,
		providerAccountID: providerAccountID,
		fallback:          fallback,
		enabled:           true,
		version:           1,
		createdAt:         now,
		updatedAt:         now,
	}, nil
}

// ReconstructRule rebuilds a rule from persistence.
func ReconstructRule(
	ruleID, organizationID, companyID, name string,
	priority int,
	conditions Conditions,
	providerAccountID string,
	fallback, enabled bool,
	version int,
	createdAt, updatedAt time.Time,
) *Rule {
	return &Rule{
		id:                ruleID,
		organizationID:    organizationID,
		companyID:         companyID,
		name:              name,
		priority:          priority,
		conditions:        conditions,
		providerAccountID: providerAccountID,
		fallback:          fallback,
		enabled:           enabled,
		version:           version,
		createdAt:         createdAt,
		updatedAt:         updatedAt,
	}
}

// ID returns the routing rule ID.
func (r *Rule) ID() string {
	return r.id
}

// OrganizationID returns the organization ID.
func (r *Rule) OrganizationID() string {
	return r.organizationID
}

// CompanyID returns the company ID.
func (r *Rule) CompanyID() string {
	return r.companyID
}

// Name returns the routing rule name.
func (r *Rule) Name() string {
	return r.name
}

// Priority returns the routing rule priority.
func (r *Rule) Priority() int {
	return r.priority
}

// Conditions returns the routing rule conditions.
func (r *Rule) Conditions() Conditions {
	return r.conditions
}

// ProviderAccountID returns the provider account ID.
func (r *Rule) ProviderAccountID() string {
	return r.providerAccountID
}

// IsFallback reports whether the routing rule is the company fallback.
func (r *Rule) IsFallback() bool {
	return r.fallback
}

// IsEnabled reports whether the routing rule is enabled.
func (r *Rule) IsEnabled() bool {
	return r.enabled
}

// Version returns the optimistic lock version.
func (r *Rule) Version() int {
	return r.version
}

// CreatedAt returns when the routing rule was created.
func (r *Rule) CreatedAt() time.Time {
	return r.createdAt
}

// UpdatedAt returns when the routing rule was last updated.
func (r *Rule) UpdatedAt() time.Time {
	return r.updatedAt
}

// Update replaces the matching definition of the rule.
func (r *Rule) Update(name string, priority int, conditions Conditions, providerAccountID string) error {
	return r.Revise(name, priority, conditions, providerAccountID, r.enabled)
}

// Revise replaces the definition and the enabled flag as one change.
func (r *Rule) Revise(name string, priority int, conditions Conditions, providerAccountID string, enabled bool) error {
	if strings.TrimSpace(providerAccountID) == "" {
		return fmt.Errorf("provider account is required")
	}
	if priority < 0 {
		return fmt.Errorf("priority must not be negative")
	}
	if err := conditions.Validate(); err != nil {
		return err
	}
	r.name = strings.TrimSpace(name)
	r.priority = priority
	r.conditions = conditions
	r.providerAccountID = providerAccountID
	r.enabled = enabled
	r.touch()
	return nil
}

func (r *Rule) Enable() {
	if !r.enabled {
		r.enabled = true
		r.touch()
	}
}

func (r *Rule) Disable() {
	if r.enabled {
		r.enabled = false
		r.touch()
	}
}

func (r *Rule) touch() {
	r.updatedAt = biztime.NowUTC()
	r.version++
}

// precedes orders rules by priority, then creation time, then id.
func (r *Rule) precedes(o *Rule) bool {
	if r.priority != o.priority {
		return r.priority < o.priority
	}
	if !r.createdAt.Equal(o.createdAt) {
		return r.createdAt.Before(o.createdAt)
	}
	return r.id < o.id
}
