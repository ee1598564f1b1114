package routing

import (
	"fmt"
	"time"

	"github.com/payops/payops/internal/shared/biztime"
	"github.com/payops/payops/internal/shared/id"
)

type OverrideScope string

const (
	ScopeClient   OverrideScope = "CLIENT"
	ScopeContract OverrideScope = "CONTRACT"
)

func (s OverrideScope) Valid() bool {
	return s == ScopeClient || s == ScopeContract
}

// Override pins a client or contract to a provider account ahead of any rule.
type Override struct {
	id                string
	organizationID    string
	scope             OverrideScope
	scopeID           string
	providerAccountID string
	reason            string
	createdBy         string
	version           int
	createdAt         time.Time
	updatedAt         time.Time
}

func NewOverride(organizationID string, scope OverrideScope, scopeID, providerAccountID, reason, actor string) (*Override, error) {
	if !scope.Valid() {
		return nil, fmt.Errorf("invalid override scope: %s", scope)
	}
	if organizationID == "" || scopeID == "" || providerAccountID == "" {
		return nil, fmt.Errorf("organization, scope id and provider account are required")
	}
	now := biztime.NowUTC()
	return &Override{
		id:                id.New(id.PrefixProviderOverride),
		organizationID:    organizationID,
		scope:             scope,
		scopeID:           scopeID,
		providerAccountID: providerAccountID,
		reason:            reason,
		createdBy:         actor,
		version:           1,
		createdAt:         now,
		updatedAt:         now,
	}, nil
}

func ReconstructOverride(
	overrideID, organizationID string,
	scope OverrideScope,
	scopeID, providerAccountID, reason, createdBy string,
	version int,
	createdAt, updatedAt time.Time,
) *Override {
	return &Override{
		id:                overrideID,
		organizationID:    organizationID,
		scope:             scope,
		scopeID:           scopeID,
		providerAccountID: providerAccountID,
		reason:            reason,
		createdBy:         createdBy,
		version:           version,
		createdAt:         createdAt,
		updatedAt:         updatedAt,
	}
}

// ID returns the provider override ID.
func (o *Override) ID() string {
	return o.id
}

// OrganizationID returns the organization ID.
func (o *Override) OrganizationID() string {
	return o.organizationID
}

// Scope returns the provider override scope.
func (o *Override) Scope() OverrideScope {
	return o.scope
}

// ScopeID returns the scope ID.
func (o *Override) ScopeID() string {
	return o.scopeID
}

// ProviderAccountID returns the provider account ID.
func (o *Override) ProviderAccountID() string {
	return o.providerAccountID
}

// Reason returns the provider override reason.
func (o *Override) Reason() string {
	return o.reason
}

// CreatedBy returns the created by.
func (o *Override) CreatedBy() string {
	return o.createdBy
}

// Version returns the optimistic lock version.
func (o *Override) Version() int {
	return o.version
}

// CreatedAt returns when the provider override was created.
func (o *Override) CreatedAt() time.Time {
	return o.createdAt
}

// UpdatedAt returns when the provider override was last updated.
func (o *Override) UpdatedAt() time.Time {
	return o.updatedAt
}

// Replace points an existing override at a new provider account. Upserts keep
// the original identity.
func (o *Override) Replace(providerAccountID, reason, actor string) error {
	if providerAccountID == "" {
		return fmt.Errorf("provider account is required")
	}
	o.providerAccountID = providerAccountID
	o.reason = reason
	o.createdBy = actor
	o.updatedAt = biztime.NowUTC()
	o.version++
	return nil
}
