package mappers

import (
	"slices"

	"gorm.io/datatypes"

	"github.com/payops/payops/internal/domain/billing"
	"github.com/payops/payops/internal/infrastructure/persistence/models"
)

type BillingMapper interface {
	ScheduleToEntity(model *models.PaymentScheduleModel) *billing.PaymentSchedule
	ScheduleToModel(entity *billing.PaymentSchedule) *models.PaymentScheduleModel
	LineToEntity(model *models.BillingLineModel) *billing.Line
	LineToModel(entity *billing.Line) *models.BillingLineModel
	InvoiceToEntity(model *models.InvoiceModel) *billing.Invoice
	InvoiceToModel(entity *billing.Invoice) *models.InvoiceModel
	BundleToEntity(model *models.ServiceBundleModel) *billing.Bundle
	BundleToModel(entity *billing.Bundle) *models.ServiceBundleModel
}

type BillingMapperImpl struct{}

func NewBillingMapper() BillingMapper {
	return &BillingMapperImpl{}
}

func (m *BillingMapperImpl) ScheduleToEntity(model *models.PaymentScheduleModel) *billing.PaymentSchedule {
	meta := make(map[string]string, len(model.Metadata))
	for k, v := range model.Metadata {
		if s, ok := v.(string); ok {
			meta[k] = s
		}
	}
	return billing.ReconstructPaymentSchedule(
		model.ID,
		model.OrganizationID,
		model.ClientID,
		model.ContractID,
		model.SubscriptionID,
		billing.ScheduleStatus(model.Status),
		model.RetryCount,
		model.PauseReason,
		model.PausedAt,
		meta,
		model.Version,
		model.CreatedAt,
		model.UpdatedAt,
	)
}

func (m *BillingMapperImpl) ScheduleToModel(entity *billing.PaymentSchedule) *models.PaymentScheduleModel {
	meta := make(datatypes.JSONMap)
	for k, v := range entity.Metadata() {
		meta[k] = v
	}
	return &models.PaymentScheduleModel{
		ID:             entity.ID(),
		OrganizationID: entity.OrganizationID(),
		ClientID:       entity.ClientID(),
		ContractID:     entity.ContractID(),
		SubscriptionID: entity.SubscriptionID(),
		Status:         string(entity.Status()),
		RetryCount:     entity.RetryCount(),
		PauseReason:    entity.PauseReason(),
		PausedAt:       entity.PausedAt(),
		Metadata:       meta,
		Version:        entity.Version(),
		CreatedAt:      entity.CreatedAt(),
		UpdatedAt:      entity.UpdatedAt(),
	}
}

func (m *BillingMapperImpl) LineToEntity(model *models.BillingLineModel) *billing.Line {
	return billing.ReconstructLine(
		model.ID,
		model.OrganizationID,
		model.ClientID,
		model.ContractID,
		model.InvoiceID,
		model.ServiceCode,
		model.Description,
		model.Quantity,
		model.UnitPriceCents,
		model.CatalogPriceCents,
		model.BundleDiscounted,
		model.Active,
		model.Version,
		model.CreatedAt,
		model.UpdatedAt,
	)
}

func (m *BillingMapperImpl) LineToModel(entity *billing.Line) *models.BillingLineModel {
	return &models.BillingLineModel{
		ID:                entity.ID(),
		OrganizationID:    entity.OrganizationID(),
		ClientID:          entity.ClientID(),
		ContractID:        entity.ContractID(),
		InvoiceID:         entity.InvoiceID(),
		ServiceCode:       entity.ServiceCode(),
		Description:       entity.Description(),
		Quantity:          entity.Quantity(),
		UnitPriceCents:    entity.UnitPriceCents(),
		CatalogPriceCents: entity.CatalogPriceCents(),
		BundleDiscounted:  entity.IsBundleDiscounted(),
		Active:            entity.IsActive(),
		Version:           entity.Version(),
		CreatedAt:         entity.CreatedAt(),
		UpdatedAt:         entity.UpdatedAt(),
	}
}

func (m *BillingMapperImpl) InvoiceToEntity(model *models.InvoiceModel) *billing.Invoice {
	return billing.ReconstructInvoice(
		model.ID,
		model.OrganizationID,
		model.ClientID,
		model.ContractID,
		billing.InvoiceStatus(model.Status),
		model.Currency,
		model.TaxRate,
		model.SubtotalCents,
		model.TaxCents,
		model.TotalCents,
		model.Version,
		model.CreatedAt,
		model.UpdatedAt,
	)
}

func (m *BillingMapperImpl) InvoiceToModel(entity *billing.Invoice) *models.InvoiceModel {
	return &models.InvoiceModel{
		ID:             entity.ID(),
		OrganizationID: entity.OrganizationID(),
		ClientID:       entity.ClientID(),
		ContractID:     entity.ContractID(),
		Status:         string(entity.Status()),
		Currency:       entity.Currency(),
		TaxRate:        entity.TaxRate(),
		SubtotalCents:  entity.SubtotalCents(),
		TaxCents:       entity.TaxCents(),
		TotalCents:     entity.TotalCents(),
		Version:        entity.Version(),
		CreatedAt:      entity.CreatedAt(),
		UpdatedAt:      entity.UpdatedAt(),
	}
}

func (m *BillingMapperImpl) BundleToEntity(model *models.ServiceBundleModel) *billing.Bundle {
	return billing.ReconstructBundle(model.ID, model.OrganizationID, model.Name, model.AnchorServiceCode,
		[]string(model.MemberCodes), model.CreatedAt, model.UpdatedAt)
}

func (m *BillingMapperImpl) BundleToModel(entity *billing.Bundle) *models.ServiceBundleModel {
	return &models.ServiceBundleModel{
		ID:                entity.ID(),
		OrganizationID:    entity.OrganizationID(),
		Name:              entity.Name(),
		AnchorServiceCode: entity.AnchorServiceCode(),
		MemberCodes:       datatypes.JSONSlice[string](slices.Clone(entity.MemberCodes())),
		CreatedAt:         entity.CreatedAt(),
		UpdatedAt:         entity.UpdatedAt(),
	}
}
