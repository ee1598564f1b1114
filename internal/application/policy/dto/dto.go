package dto

import (
	"time"

	"github.com/payops/payops/internal/domain/billing"
	"github.com/payops/payops/internal/shared/mapper"
)

type ServiceBundleDTO struct {
	ID                string    `json:"id"`
	OrganizationID    string    `json:"organization_id"`
	Name              string    `json:"name"`
	AnchorServiceCode string    `json:"anchor_service_code"`
	MemberCodes       []string  `json:"member_codes"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

func ToServiceBundleDTO(b *billing.Bundle) *ServiceBundleDTO {
	if b == nil {
		return nil
	}
	return &ServiceBundleDTO{
		ID:                b.ID(),
		OrganizationID:    b.OrganizationID(),
		Name:              b.Name(),
		AnchorServiceCode: b.AnchorServiceCode(),
		MemberCodes:       b.MemberCodes(),
		CreatedAt:         b.CreatedAt(),
		UpdatedAt:         b.UpdatedAt(),
	}
}

func ToServiceBundleDTOs(bundles []*billing.Bundle) []*ServiceBundleDTO {
	return mapper.MapSlicePtr(bundles, ToServiceBundleDTO)
}
