package repository

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/payops/payops/internal/domain/dunning"
	"github.com/payops/payops/internal/infrastructure/persistence/mappers"
	"github.com/payops/payops/internal/infrastructure/persistence/models"
	"github.com/payops/payops/internal/shared/db"
	apperrors "github.com/payops/payops/internal/shared/errors"
	"github.com/payops/payops/internal/shared/logger"
)

// DunningConfigRepositoryImpl implements dunning.ConfigRepository.
type DunningConfigRepositoryImpl struct {
	db     *gorm.DB
	mapper mappers.DunningMapper
	logger logger.Interface
}

func NewDunningConfigRepository(db *gorm.DB, logger logger.Interface) dunning.ConfigRepository {
	return &DunningConfigRepositoryImpl{db: db, mapper: mappers.NewDunningMapper(), logger: logger}
}

func (r *DunningConfigRepositoryImpl) Create(ctx context.Context, cfg *dunning.Config) error {
	model, err := r.mapper.ConfigToModel(cfg)
	if err != nil {
		return err
	}
	if err := db.GetTxFromContext(ctx, r.db).Create(model).Error; err != nil {
		r.logger.Errorw("failed to create dunning config", "id", model.ID, "error", err)
		return fmt.Errorf("failed to create dunning config: %w", err)
	}
	return nil
}

func (r *DunningConfigRepositoryImpl) Update(ctx context.Context, cfg *dunning.Config) error {
	model, err := r.mapper.ConfigToModel(cfg)
	if err != nil {
		return err
	}
	result := db.GetTxFromContext(ctx, r.db).Model(&models.DunningConfigModel{}).
		Where("id = ? AND version = ?", model.ID, model.Version-1).
		Updates(map[string]any{
			"name":       model.Name,
			"steps":      model.Steps,
			"is_default": model.IsDefault,
			"enabled":    model.Enabled,
			"version":    model.Version,
			"updated_at": model.UpdatedAt,
		})
	if result.Error != nil {
		r.logger.Errorw("failed to update dunning config", "id", model.ID, "error", result.Error)
		return fmt.Errorf("failed to update dunning config: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return apperrors.ErrVersionConflict
	}
	return nil
}

func (r *DunningConfigRepositoryImpl) GetByID(ctx context.Context, id string) (*dunning.Config, error) {
	var model models.DunningConfigModel
	if err := db.GetTxFromContext(ctx, r.db).Where("id = ?", id).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NewNotFoundError("dunning config not found", id)
		}
		return nil, fmt.Errorf("failed to get dunning config: %w", err)
	}
	return r.mapper.ConfigToEntity(&model)
}

func (r *DunningConfigRepositoryImpl) ListByOrganization(ctx context.Context, organizationID string) ([]*dunning.Config, error) {
	var list []*models.DunningConfigModel
	err := db.GetTxFromContext(ctx, r.db).
		Where("organization_id = ?", organizationID).
		Order("created_at ASC, id ASC").
		Find(&list).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list dunning configs: %w", err)
	}
	return r.mapper.ConfigsToEntities(list)
}

// DunningRunRepositoryImpl implements dunning.RunRepository.
type DunningRunRepositoryImpl struct {
	db     *gorm.DB
	mapper mappers.DunningMapper
	logger logger.Interface
}

func NewDunningRunRepository(db *gorm.DB, logger logger.Interface) dunning.RunRepository {
	return &DunningRunRepositoryImpl{db: db, mapper: mappers.NewDunningMapper(), logger: logger}
}

func (r *DunningRunRepositoryImpl) Create(ctx context.Context, run *dunning.Run) error {
	model := r.mapper.RunToModel(run)
	if err := db.GetTxFromContext(ctx, r.db).Create(model).Error; err != nil {
		if apperrors.IsDuplicateError(err) {
			return apperrors.NewConflictError("subscription already has an open dunning run", run.SubscriptionID())
		}
		r.logger.Errorw("failed to create dunning run", "subscription_id", model.SubscriptionID, "error", err)
		return fmt.Errorf("failed to create dunning run: %w", err)
	}
	return nil
}

func (r *DunningRunRepositoryImpl) Update(ctx context.Context, run *dunning.Run) error {
	model := r.mapper.RunToModel(run)
	next := model.Version + 1
	result := db.GetTxFromContext(ctx, r.db).Model(&models.DunningRunModel{}).
		Where("id = ? AND version = ?", model.ID, model.Version).
		Updates(map[string]any{
			"active_key":          model.ActiveKey,
			"retry_schedule_id":   model.RetryScheduleID,
			"last_completed_step": model.LastCompletedStep,
			"total_attempts":      model.TotalAttempts,
			"last_error":          model.LastError,
			"is_resolved":         model.IsResolved,
			"resolution_reason":   model.ResolutionReason,
			"resolved_at":         model.ResolvedAt,
			"resolved_by":         model.ResolvedBy,
			"version":             next,
			"updated_at":          model.UpdatedAt,
		})
	if result.Error != nil {
		r.logger.Errorw("failed to update dunning run", "id", model.ID, "error", result.Error)
		return fmt.Errorf("failed to update dunning run: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return apperrors.ErrVersionConflict
	}
	run.SetVersion(next)
	return nil
}

func (r *DunningRunRepositoryImpl) GetByID(ctx context.Context, id string) (*dunning.Run, error) {
	var model models.DunningRunModel
	if err := db.GetTxFromContext(ctx, r.db).Where("id = ?", id).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NewNotFoundError("dunning run not found", id)
		}
		return nil, fmt.Errorf("failed to get dunning run: %w", err)
	}
	return r.mapper.RunToEntity(&model), nil
}

func (r *DunningRunRepositoryImpl) FindActiveBySubscription(ctx context.Context, organizationID, subscriptionID string) (*dunning.Run, error) {
	var model models.DunningRunModel
	err := db.GetTxFromContext(ctx, r.db).
		Where("active_key = ?", mappers.ActiveRunKey(organizationID, subscriptionID)).
		First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find active dunning run: %w", err)
	}
	return r.mapper.RunToEntity(&model), nil
}

// ListActive pages open runs by id, starting after afterID.
func (r *DunningRunRepositoryImpl) ListActive(ctx context.Context, afterID string, limit int) ([]*dunning.Run, error) {
	var list []*models.DunningRunModel
	err := db.GetTxFromContext(ctx, r.db).
		Where("is_resolved = ? AND id > ?", false, afterID).
		Order("id ASC").
		Limit(limit).
		Find(&list).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list active dunning runs: %w", err)
	}
	out := make([]*dunning.Run, 0, len(list))
	for _, m := range list {
		out = append(out, r.mapper.RunToEntity(m))
	}
	return out, nil
}
