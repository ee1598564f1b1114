package repository

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/payops/payops/internal/domain/billing"
	"github.com/payops/payops/internal/infrastructure/persistence/mappers"
	"github.com/payops/payops/internal/infrastructure/persistence/models"
	"github.com/payops/payops/internal/shared/db"
	apperrors "github.com/payops/payops/internal/shared/errors"
)

// PaymentScheduleRepositoryImpl implements billing.PaymentScheduleRepository.
type PaymentScheduleRepositoryImpl struct {
	db     *gorm.DB
	mapper mappers.BillingMapper
}

func NewPaymentScheduleRepository(db *gorm.DB) billing.PaymentScheduleRepository {
	return &PaymentScheduleRepositoryImpl{db: db, mapper: mappers.NewBillingMapper()}
}

func (r *PaymentScheduleRepositoryImpl) Create(ctx context.Context, schedule *billing.PaymentSchedule) error {
	if err := db.GetTxFromContext(ctx, r.db).Create(r.mapper.ScheduleToModel(schedule)).Error; err != nil {
		if apperrors.IsDuplicateError(err) {
			return apperrors.NewConflictError("payment schedule already exists", schedule.ID())
		}
		return fmt.Errorf("failed to create payment schedule: %w", err)
	}
	return nil
}

func (r *PaymentScheduleRepositoryImpl) Update(ctx context.Context, schedule *billing.PaymentSchedule) error {
	model := r.mapper.ScheduleToModel(schedule)
	next := model.Version + 1
	result := db.GetTxFromContext(ctx, r.db).Model(&models.PaymentScheduleModel{}).
		Where("id = ? AND version = ?", model.ID, model.Version).
		Updates(map[string]any{
			"status":       model.Status,
			"retry_count":  model.RetryCount,
			"pause_reason": model.PauseReason,
			"paused_at":    model.PausedAt,
			"metadata":     model.Metadata,
			"version":      next,
			"updated_at":   model.UpdatedAt,
		})
	if result.Error != nil {
		return fmt.Errorf("failed to update payment schedule: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return apperrors.ErrVersionConflict
	}
	schedule.SetVersion(next)
	return nil
}

func (r *PaymentScheduleRepositoryImpl) GetByID(ctx context.Context, id string) (*billing.PaymentSchedule, error) {
	var model models.PaymentScheduleModel
	if err := db.GetTxFromContext(ctx, r.db).Where("id = ?", id).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NewNotFoundError("payment schedule not found", id)
		}
		return nil, fmt.Errorf("failed to get payment schedule: %w", err)
	}
	return r.mapper.ScheduleToEntity(&model), nil
}

func (r *PaymentScheduleRepositoryImpl) FindBySubscription(ctx context.Context, organizationID, subscriptionID string) (*billing.PaymentSchedule, error) {
	var model models.PaymentScheduleModel
	err := db.GetTxFromContext(ctx, r.db).
		Where("organization_id = ? AND subscription_id = ?", organizationID, subscriptionID).
		Order("created_at DESC").
		First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find payment schedule: %w", err)
	}
	return r.mapper.ScheduleToEntity(&model), nil
}

func (r *PaymentScheduleRepositoryImpl) ListActiveByClient(ctx context.Context, scope billing.ClientScope) ([]*billing.PaymentSchedule, error) {
	q := db.GetTxFromContext(ctx, r.db).
		Where("organization_id = ? AND client_id = ? AND status = ?", scope.OrganizationID, scope.ClientID, string(billing.ScheduleActive))
	if scope.ContractID != "" {
		q = q.Where("contract_id = ?", scope.ContractID)
	}
	var list []*models.PaymentScheduleModel
	if err := q.Order("id ASC").Find(&list).Error; err != nil {
		return nil, fmt.Errorf("failed to list payment schedules: %w", err)
	}
	out := make([]*billing.PaymentSchedule, 0, len(list))
	for _, m := range list {
		out = append(out, r.mapper.ScheduleToEntity(m))
	}
	return out, nil
}

// BillingLineRepositoryImpl implements billing.LineRepository.
type BillingLineRepositoryImpl struct {
	db     *gorm.DB
	mapper mappers.BillingMapper
}

func NewBillingLineRepository(db *gorm.DB) billing.LineRepository {
	return &BillingLineRepositoryImpl{db: db, mapper: mappers.NewBillingMapper()}
}

func (r *BillingLineRepositoryImpl) Create(ctx context.Context, line *billing.Line) error {
	if err := db.GetTxFromContext(ctx, r.db).Create(r.mapper.LineToModel(line)).Error; err != nil {
		return fmt.Errorf("failed to create billing line: %w", err)
	}
	return nil
}

func (r *BillingLineRepositoryImpl) Update(ctx context.Context, line *billing.Line) error {
	model := r.mapper.LineToModel(line)
	next := model.Version + 1
	result := db.GetTxFromContext(ctx, r.db).Model(&models.BillingLineModel{}).
		Where("id = ? AND version = ?", model.ID, model.Version).
		Updates(map[string]any{
			"unit_price_cents":  model.UnitPriceCents,
			"bundle_discounted": model.BundleDiscounted,
			"active":            model.Active,
			"version":           next,
			"updated_at":        model.UpdatedAt,
		})
	if result.Error != nil {
		return fmt.Errorf("failed to update billing line: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return apperrors.ErrVersionConflict
	}
	line.SetVersion(next)
	return nil
}

func (r *BillingLineRepositoryImpl) ListActiveByClient(ctx context.Context, scope billing.ClientScope) ([]*billing.Line, error) {
	q := db.GetTxFromContext(ctx, r.db).
		Where("organization_id = ? AND client_id = ? AND active = ?", scope.OrganizationID, scope.ClientID, true)
	if scope.ContractID != "" {
		q = q.Where("contract_id = ?", scope.ContractID)
	}
	return r.find(q)
}

func (r *BillingLineRepositoryImpl) ListByInvoice(ctx context.Context, invoiceID string) ([]*billing.Line, error) {
	return r.find(db.GetTxFromContext(ctx, r.db).Where("invoice_id = ?", invoiceID))
}

func (r *BillingLineRepositoryImpl) find(q *gorm.DB) ([]*billing.Line, error) {
	var list []*models.BillingLineModel
	if err := q.Order("id ASC").Find(&list).Error; err != nil {
		return nil, fmt.Errorf("failed to list billing lines: %w", err)
	}
	out := make([]*billing.Line, 0, len(list))
	for _, m := range list {
		out = append(out, r.mapper.LineToEntity(m))
	}
	return out, nil
}

// InvoiceRepositoryImpl implements billing.InvoiceRepository.
type InvoiceRepositoryImpl struct {
	db     *gorm.DB
	mapper mappers.BillingMapper
}

func NewInvoiceRepository(db *gorm.DB) billing.InvoiceRepository {
	return &InvoiceRepositoryImpl{db: db, mapper: mappers.NewBillingMapper()}
}

func (r *InvoiceRepositoryImpl) Create(ctx context.Context, invoice *billing.Invoice) error {
	if err := db.GetTxFromContext(ctx, r.db).Create(r.mapper.InvoiceToModel(invoice)).Error; err != nil {
		return fmt.Errorf("failed to create invoice: %w", err)
	}
	return nil
}

func (r *InvoiceRepositoryImpl) Update(ctx context.Context, invoice *billing.Invoice) error {
	model := r.mapper.InvoiceToModel(invoice)
	next := model.Version + 1
	result := db.GetTxFromContext(ctx, r.db).Model(&models.InvoiceModel{}).
		Where("id = ? AND version = ?", model.ID, model.Version).
		Updates(map[string]any{
			"status":         model.Status,
			"subtotal_cents": model.SubtotalCents,
			"tax_cents":      model.TaxCents,
			"total_cents":    model.TotalCents,
			"version":        next,
			"updated_at":     model.UpdatedAt,
		})
	if result.Error != nil {
		return fmt.Errorf("failed to update invoice: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return apperrors.ErrVersionConflict
	}
	invoice.SetVersion(next)
	return nil
}

func (r *InvoiceRepositoryImpl) GetByID(ctx context.Context, id string) (*billing.Invoice, error) {
	var model models.InvoiceModel
	if err := db.GetTxFromContext(ctx, r.db).Where("id = ?", id).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NewNotFoundError("invoice not found", id)
		}
		return nil, fmt.Errorf("failed to get invoice: %w", err)
	}
	return r.mapper.InvoiceToEntity(&model), nil
}

// ServiceBundleRepositoryImpl implements billing.BundleRepository.
type ServiceBundleRepositoryImpl struct {
	db     *gorm.DB
	mapper mappers.BillingMapper
}

func NewServiceBundleRepository(db *gorm.DB) billing.BundleRepository {
	return &ServiceBundleRepositoryImpl{db: db, mapper: mappers.NewBillingMapper()}
}

// Upsert keys bundles by (organization, name).
func (r *ServiceBundleRepositoryImpl) Upsert(ctx context.Context, bundle *billing.Bundle) error {
	model := r.mapper.BundleToModel(bundle)
	err := db.GetTxFromContext(ctx, r.db).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "organization_id"}, {Name: "name"}},
		DoUpdates: clause.AssignmentColumns([]string{"anchor_service_code", "member_codes", "updated_at"}),
	}).Create(model).Error
	if err != nil {
		return fmt.Errorf("failed to upsert service bundle: %w", err)
	}
	return nil
}

func (r *ServiceBundleRepositoryImpl) FindByAnchor(ctx context.Context, organizationID, serviceCode string) (*billing.Bundle, error) {
	return r.findOne(ctx, "organization_id = ? AND anchor_service_code = ?", organizationID, serviceCode)
}

func (r *ServiceBundleRepositoryImpl) FindByName(ctx context.Context, organizationID, name string) (*billing.Bundle, error) {
	return r.findOne(ctx, "organization_id = ? AND name = ?", organizationID, name)
}

func (r *ServiceBundleRepositoryImpl) findOne(ctx context.Context, where string, args ...any) (*billing.Bundle, error) {
	var model models.ServiceBundleModel
	if err := db.GetTxFromContext(ctx, r.db).Where(where, args...).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find service bundle: %w", err)
	}
	return r.mapper.BundleToEntity(&model), nil
}

func (r *ServiceBundleRepositoryImpl) ListByOrganization(ctx context.Context, organizationID string) ([]*billing.Bundle, error) {
	var list []*models.ServiceBundleModel
	if err := db.GetTxFromContext(ctx, r.db).Where("organization_id = ?", organizationID).Order("name ASC").Find(&list).Error; err != nil {
		return nil, fmt.Errorf("failed to list service bundles: %w", err)
	}
	out := make([]*billing.Bundle, 0, len(list))
	for _, m := range list {
		out = append(out, r.mapper.BundleToEntity(m))
	}
	return out, nil
}
