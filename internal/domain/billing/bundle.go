package billing

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/payops/payops/internal/shared/id"
)

// Bundle groups services sold together. Non-payment of the anchor service
// removes the bundle discount instead of suspending anything.
type Bundle struct {
	id                string
	organizationID    string
	name              string
	anchorServiceCode string
	memberCodes       []string
	createdAt         time.Time
	updatedAt         time.Time
}

func NewBundle(organizationID, name, anchorServiceCode string, memberCodes []string, now time.Time) (*Bundle, error) {
	if organizationID == "" || anchorServiceCode == "" {
		return nil, fmt.Errorf("organization and anchor service are required")
	}
	return &Bundle{
		id:                id.New(id.PrefixServiceBundle),
		organizationID:    organizationID,
		name:              name,
		anchorServiceCode: anchorServiceCode,
		memberCodes:       memberCodes,
		createdAt:         now,
		updatedAt:         now,
	}, nil
}

func ReconstructBundle(bundleID, organizationID, name, anchorServiceCode string, memberCodes []string, createdAt, updatedAt time.Time) *Bundle {
	return &Bundle{
		id:                bundleID,
		organizationID:    organizationID,
		name:              name,
		anchorServiceCode: anchorServiceCode,
		memberCodes:       memberCodes,
		createdAt:         createdAt,
		updatedAt:         updatedAt,
	}
}

// ID returns the service bundle ID.
func (b *Bundle) ID() string {
	return b.id
}

// OrganizationID returns the organization ID.
func (b *Bundle) OrganizationID() string {
	return b.organizationID
}

// Name returns the service bundle name.
func (b *Bundle) Name() string {
	return b.name
}

// AnchorServiceCode returns the anchor service code.
func (b *Bundle) AnchorServiceCode() string {
	return b.anchorServiceCode
}

// MemberCodes returns the member codes.
func (b *Bundle) MemberCodes() []string {
	return b.memberCodes
}

// CreatedAt returns when the service bundle was created.
func (b *Bundle) CreatedAt() time.Time {
	return b.createdAt
}

// UpdatedAt returns when the service bundle was last updated.
func (b *Bundle) UpdatedAt() time.Time {
	return b.updatedAt
}

func (b *Bundle) IsAnchor(serviceCode string) bool {
	return strings.EqualFold(b.anchorServiceCode, serviceCode)
}

// Covers reports whether serviceCode is discounted by this bundle. An empty
// member list covers every service.
func (b *Bundle) Covers(serviceCode string) bool {
	if len(b.memberCodes) == 0 {
		return true
	}
	return slices.ContainsFunc(b.memberCodes, func(c string) bool {
		return strings.EqualFold(c, serviceCode)
	})
}

// Redefine replaces the bundle's anchor and members.
func (b *Bundle) Redefine(name, anchorServiceCode string, memberCodes []string, now time.Time) {
	b.name = name
	b.anchorServiceCode = anchorServiceCode
	b.memberCodes = memberCodes
	b.updatedAt = now
}
