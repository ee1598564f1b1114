package repository

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/payops/payops/internal/domain/routing"
	"github.com/payops/payops/internal/infrastructure/persistence/mappers"
	"github.com/payops/payops/internal/infrastructure/persistence/models"
	"github.com/payops/payops/internal/shared/db"
	apperrors "github.com/payops/payops/internal/shared/errors"
	"github.com/payops/payops/internal/shared/logger"
)

// RoutingRuleRepositoryImpl implements routing.RuleRepository.
type RoutingRuleRepositoryImpl struct {
	db     *gorm.DB
	mapper mappers.RoutingMapper
	logger logger.Interface
}

func NewRoutingRuleRepository(db *gorm.DB, logger logger.Interface) routing.RuleRepository {
	return &RoutingRuleRepositoryImpl{
		db:     db,
		mapper: mappers.NewRoutingMapper(),
		logger: logger,
	}
}

func (r *RoutingRuleRepositoryImpl) Create(ctx context.Context, rule *routing.Rule) error {
	model, err := r.mapper.RuleToModel(rule)
	if err != nil {
		return err
	}
	if err := db.GetTxFromContext(ctx, r.db).Create(model).Error; err != nil {
		if apperrors.IsDuplicateError(err) {
			return apperrors.NewConflictError("routing rule already exists")
		}
		r.logger.Errorw("failed to create routing rule", "id", model.ID, "error", err)
		return fmt.Errorf("failed to create routing rule: %w", err)
	}
	return nil
}

// Update persists rule when the stored version is the one it was loaded at.
func (r *RoutingRuleRepositoryImpl) Update(ctx context.Context, rule *routing.Rule) error {
	model, err := r.mapper.RuleToModel(rule)
	if err != nil {
		return err
	}
	result := db.GetTxFromContext(ctx, r.db).Model(&models.RoutingRuleModel{}).
		Where("id = ? AND version = ?", model.ID, model.Version-1).
		Updates(map[string]any{
			"name":                model.Name,
			"priority":            model.Priority,
			"conditions":          model.Conditions,
			"provider_account_id": model.ProviderAccountID,
			"is_fallback":         model.IsFallback,
			"enabled":             model.Enabled,
			"version":             model.Version,
			"updated_at":          model.UpdatedAt,
		})
	if result.Error != nil {
		r.logger.Errorw("failed to update routing rule", "id", model.ID, "error", result.Error)
		return fmt.Errorf("failed to update routing rule: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return apperrors.ErrVersionConflict
	}
	return nil
}

func (r *RoutingRuleRepositoryImpl) GetByID(ctx context.Context, id string) (*routing.Rule, error) {
	var model models.RoutingRuleModel
	if err := db.GetTxFromContext(ctx, r.db).Where("id = ?", id).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NewNotFoundError("routing rule not found", id)
		}
		return nil, fmt.Errorf("failed to get routing rule: %w", err)
	}
	return r.mapper.RuleToEntity(&model)
}

func (r *RoutingRuleRepositoryImpl) ListByCompany(ctx context.Context, organizationID, companyID string) ([]*routing.Rule, error) {
	var list []*models.RoutingRuleModel
	err := db.GetTxFromContext(ctx, r.db).
		Where("organization_id = ? AND company_id = ?", organizationID, companyID).
		Order("priority ASC, created_at ASC, id ASC").
		Find(&list).Error
	if err != nil {
		r.logger.Errorw("failed to list routing rules", "company_id", companyID, "error", err)
		return nil, fmt.Errorf("failed to list routing rules: %w", err)
	}
	return r.mapper.RulesToEntities(list)
}

func (r *RoutingRuleRepositoryImpl) Delete(ctx context.Context, id string) error {
	result := db.GetTxFromContext(ctx, r.db).Where("id = ?", id).Delete(&models.RoutingRuleModel{})
	if result.Error != nil {
		return fmt.Errorf("failed to delete routing rule: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return apperrors.NewNotFoundError("routing rule not found", id)
	}
	return nil
}

// ProviderOverrideRepositoryImpl implements routing.OverrideRepository.
type ProviderOverrideRepositoryImpl struct {
	db     *gorm.DB
	mapper mappers.RoutingMapper
	logger logger.Interface
}

func NewProviderOverrideRepository(db *gorm.DB, logger logger.Interface) routing.OverrideRepository {
	return &ProviderOverrideRepositoryImpl{db: db, mapper: mappers.NewRoutingMapper(), logger: logger}
}

func (r *ProviderOverrideRepositoryImpl) Upsert(ctx context.Context, override *routing.Override) error {
	model := r.mapper.OverrideToModel(override)
	tx := db.GetTxFromContext(ctx, r.db)

	var existing models.ProviderOverrideModel
	err := tx.Where("organization_id = ? AND scope = ? AND scope_id = ?", model.OrganizationID, model.Scope, model.ScopeID).
		First(&existing).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		if err := tx.Create(model).Error; err != nil {
			if apperrors.IsDuplicateError(err) {
				return apperrors.ErrVersionConflict
			}
			return fmt.Errorf("failed to create provider override: %w", err)
		}
		return nil
	case err != nil:
		return fmt.Errorf("failed to load provider override: %w", err)
	}

	result := tx.Model(&models.ProviderOverrideModel{}).
		Where("id = ? AND version = ?", existing.ID, existing.Version).
		Updates(map[string]any{
			"provider_account_id": model.ProviderAccountID,
			"reason":              model.Reason,
			"created_by":          model.CreatedBy,
			"version":             existing.Version + 1,
			"updated_at":          model.UpdatedAt,
		})
	if result.Error != nil {
		r.logger.Errorw("failed to update provider override", "id", existing.ID, "error", result.Error)
		return fmt.Errorf("failed to update provider override: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return apperrors.ErrVersionConflict
	}
	return nil
}

func (r *ProviderOverrideRepositoryImpl) Find(ctx context.Context, organizationID string, scope routing.OverrideScope, scopeID string) (*routing.Override, error) {
	if scopeID == "" {
		return nil, nil
	}
	var model models.ProviderOverrideModel
	err := db.GetTxFromContext(ctx, r.db).
		Where("organization_id = ? AND scope = ? AND scope_id = ?", organizationID, string(scope), scopeID).
		First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find provider override: %w", err)
	}
	return r.mapper.OverrideToEntity(&model), nil
}

func (r *ProviderOverrideRepositoryImpl) Delete(ctx context.Context, organizationID string, scope routing.OverrideScope, scopeID string) error {
	result := db.GetTxFromContext(ctx, r.db).
		Where("organization_id = ? AND scope = ? AND scope_id = ?", organizationID, string(scope), scopeID).
		Delete(&models.ProviderOverrideModel{})
	if result.Error != nil {
		return fmt.Errorf("failed to delete provider override: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return apperrors.NewNotFoundError("provider override not found", scopeID)
	}
	return nil
}

// RoutingDecisionRepositoryImpl implements routing.DecisionLogRepository.
type RoutingDecisionRepositoryImpl struct {
	db     *gorm.DB
	mapper mappers.RoutingMapper
}

func NewRoutingDecisionRepository(db *gorm.DB) routing.DecisionLogRepository {
	return &RoutingDecisionRepositoryImpl{db: db, mapper: mappers.NewRoutingMapper()}
}

func (r *RoutingDecisionRepositoryImpl) Append(ctx context.Context, entry *routing.DecisionLog) error {
	model, err := r.mapper.DecisionToModel(entry)
	if err != nil {
		return err
	}
	if err := db.GetTxFromContext(ctx, r.db).Create(model).Error; err != nil {
		return fmt.Errorf("failed to append routing decision: %w", err)
	}
	return nil
}

func (r *RoutingDecisionRepositoryImpl) ListByPayment(ctx context.Context, organizationID, paymentID string) ([]*routing.DecisionLog, error) {
	var list []*models.RoutingDecisionModel
	err := db.GetTxFromContext(ctx, r.db).
		Where("organization_id = ? AND payment_id = ?", organizationID, paymentID).
		Order("created_at ASC, id ASC").
		Find(&list).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list routing decisions: %w", err)
	}
	out := make([]*routing.DecisionLog, 0, len(list))
	for _, m := range list {
		entry, err := r.mapper.DecisionToEntity(m)
		if err != nil {
			return nil, err
		}
		out = append(out, entry)
	}
	return out, nil
}
