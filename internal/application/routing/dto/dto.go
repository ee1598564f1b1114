package dto

import (
	"time"

	"github.com/payops/payops/internal/domain/routing"
	"github.com/payops/payops/internal/shared/mapper"
)

type RoutingRuleDTO struct {
	ID                string             `json:"id"`
	OrganizationID    string             `json:"organization_id"`
	CompanyID         string             `json:"company_id"`
	Name              string             `json:"name"`
	Priority          int                `json:"priority"`
	Conditions        routing.Conditions `json:"conditions"`
	ProviderAccountID string             `json:"provider_account_id"`
	Fallback          bool               `json:"fallback"`
	Enabled           bool               `json:"enabled"`
	Version           int                `json:"version"`
	CreatedAt         time.Time          `json:"created_at"`
	UpdatedAt         time.Time          `json:"updated_at"`
}

type ProviderOverrideDTO struct {
	ID                string    `json:"id"`
	OrganizationID    string    `json:"organization_id"`
	Scope             string    `json:"scope"`
	ScopeID           string    `json:"scope_id"`
	ProviderAccountID string    `json:"provider_account_id"`
	Reason            string    `json:"reason,omitempty"`
	CreatedBy         string    `json:"created_by,omitempty"`
	Version           int       `json:"version"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// RoutingDecisionDTO is the answer of evaluate and testRouting.
type RoutingDecisionDTO struct {
	PaymentID string           `json:"payment_id"`
	CompanyID string           `json:"company_id"`
	Found     bool             `json:"found"`
	Decision  routing.Decision `json:"decision"`
}

func ToRoutingRuleDTO(r *routing.Rule) *RoutingRuleDTO {
	if r == nil {
		return nil
	}
	return &RoutingRuleDTO{
		ID:                r.ID(),
		OrganizationID:    r.OrganizationID(),
		CompanyID:         r.CompanyID(),
		Name:              r.Name(),
		Priority:          r.Priority(),
		Conditions:        r.Conditions(),
		ProviderAccountID: r.ProviderAccountID(),
		Fallback:          r.IsFallback(),
		Enabled:           r.IsEnabled(),
		Version:           r.Version(),
		CreatedAt:         r.CreatedAt(),
		UpdatedAt:         r.UpdatedAt(),
	}
}

func ToRoutingRuleDTOs(rules []*routing.Rule) []*RoutingRuleDTO {
	return mapper.MapSlicePtr(rules, ToRoutingRuleDTO)
}

func ToProviderOverrideDTO(o *routing.Override) *ProviderOverrideDTO {
	if o == nil {
		return nil
	}
	return &ProviderOverrideDTO{
		ID:                o.ID(),
		OrganizationID:    o.OrganizationID(),
		Scope:             string(o.Scope()),
		ScopeID:           o.ScopeID(),
		ProviderAccountID: o.ProviderAccountID(),
		Reason:            o.Reason(),
		CreatedBy:         o.CreatedBy(),
		Version:           o.Version(),
		UpdatedAt:         o.UpdatedAt(),
	}
}

func ToRoutingDecisionDTO(p routing.Payment, companyID string, d routing.Decision) *RoutingDecisionDTO {
	return &RoutingDecisionDTO{
		PaymentID: p.ID,
		CompanyID: companyID,
		Found:     d.Found(),
		Decision:  d,
	}
}
