package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/payops/payops/internal/domain/retry"
	"github.com/payops/payops/internal/infrastructure/persistence/mappers"
	"github.com/payops/payops/internal/infrastructure/persistence/models"
	"github.com/payops/payops/internal/shared/db"
	apperrors "github.com/payops/payops/internal/shared/errors"
	"github.com/payops/payops/internal/shared/logger"
)

// RetryPolicyRepositoryImpl implements retry.PolicyRepository.
type RetryPolicyRepositoryImpl struct {
	db     *gorm.DB
	mapper mappers.RetryMapper
	logger logger.Interface
}

func NewRetryPolicyRepository(db *gorm.DB, logger logger.Interface) retry.PolicyRepository {
	return &RetryPolicyRepositoryImpl{db: db, mapper: mappers.NewRetryMapper(), logger: logger}
}

func (r *RetryPolicyRepositoryImpl) Create(ctx context.Context, policy *retry.Policy) error {
	model, err := r.mapper.PolicyToModel(policy)
	if err != nil {
		return err
	}
	if err := db.GetTxFromContext(ctx, r.db).Create(model).Error; err != nil {
		r.logger.Errorw("failed to create retry policy", "id", model.ID, "error", err)
		return fmt.Errorf("failed to create retry policy: %w", err)
	}
	return nil
}

func (r *RetryPolicyRepositoryImpl) Update(ctx context.Context, policy *retry.Policy) error {
	model, err := r.mapper.PolicyToModel(policy)
	if err != nil {
		return err
	}
	result := db.GetTxFromContext(ctx, r.db).Model(&models.RetryPolicyModel{}).
		Where("id = ? AND version = ?", model.ID, model.Version-1).
		Updates(map[string]any{
			"name":       model.Name,
			"plan":       model.Plan,
			"is_default": model.IsDefault,
			"enabled":    model.Enabled,
			"version":    model.Version,
			"updated_at": model.UpdatedAt,
		})
	if result.Error != nil {
		r.logger.Errorw("failed to update retry policy", "id", model.ID, "error", result.Error)
		return fmt.Errorf("failed to update retry policy: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return apperrors.ErrVersionConflict
	}
	return nil
}

func (r *RetryPolicyRepositoryImpl) GetByID(ctx context.Context, id string) (*retry.Policy, error) {
	var model models.RetryPolicyModel
	if err := db.GetTxFromContext(ctx, r.db).Where("id = ?", id).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NewNotFoundError("retry policy not found", id)
		}
		return nil, fmt.Errorf("failed to get retry policy: %w", err)
	}
	return r.mapper.PolicyToEntity(&model)
}

func (r *RetryPolicyRepositoryImpl) ListByOrganization(ctx context.Context, organizationID string) ([]*retry.Policy, error) {
	var list []*models.RetryPolicyModel
	err := db.GetTxFromContext(ctx, r.db).
		Where("organization_id = ?", organizationID).
		Order("created_at ASC, id ASC").
		Find(&list).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list retry policies: %w", err)
	}
	return r.mapper.PoliciesToEntities(list)
}

// RetryScheduleRepositoryImpl implements retry.ScheduleRepository.
type RetryScheduleRepositoryImpl struct {
	db     *gorm.DB
	mapper mappers.RetryMapper
	logger logger.Interface
}

func NewRetryScheduleRepository(db *gorm.DB, logger logger.Interface) retry.ScheduleRepository {
	return &RetryScheduleRepositoryImpl{db: db, mapper: mappers.NewRetryMapper(), logger: logger}
}

func (r *RetryScheduleRepositoryImpl) Create(ctx context.Context, schedule *retry.Schedule) error {
	model, err := r.mapper.ScheduleToModel(schedule)
	if err != nil {
		return err
	}
	if err := db.GetTxFromContext(ctx, r.db).Create(model).Error; err != nil {
		if apperrors.IsDuplicateError(err) {
			return apperrors.NewConflictError("retry schedule already exists for payment", schedule.PaymentID())
		}
		r.logger.Errorw("failed to create retry schedule", "payment_id", model.PaymentID, "error", err)
		return fmt.Errorf("failed to create retry schedule: %w", err)
	}
	return nil
}

// Update writes every mutable column and bumps the version. A concurrent
// writer makes it fail with ErrVersionConflict.
func (r *RetryScheduleRepositoryImpl) Update(ctx context.Context, schedule *retry.Schedule) error {
	model, err := r.mapper.ScheduleToModel(schedule)
	if err != nil {
		return err
	}
	next := model.Version + 1
	result := db.GetTxFromContext(ctx, r.db).Model(&models.RetryScheduleModel{}).
		Where("id = ? AND version = ?", model.ID, model.Version).
		Updates(map[string]any{
			"current_attempt":     model.CurrentAttempt,
			"next_retry_date":     model.NextRetryDate,
			"eligibility":         model.Eligibility,
			"awaiting_outcome":    model.AwaitingOutcome,
			"submitted_at":        model.SubmittedAt,
			"provider_account_id": model.ProviderAccountID,
			"is_resolved":         model.IsResolved,
			"resolution_reason":   model.ResolutionReason,
			"resolved_at":         model.ResolvedAt,
			"resolved_by":         model.ResolvedBy,
			"version":             next,
			"updated_at":          model.UpdatedAt,
		})
	if result.Error != nil {
		r.logger.Errorw("failed to update retry schedule", "id", model.ID, "error", result.Error)
		return fmt.Errorf("failed to update retry schedule: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return apperrors.ErrVersionConflict
	}
	schedule.SetVersion(next)
	return nil
}

func (r *RetryScheduleRepositoryImpl) GetByID(ctx context.Context, id string) (*retry.Schedule, error) {
	var model models.RetryScheduleModel
	if err := db.GetTxFromContext(ctx, r.db).Where("id = ?", id).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NewNotFoundError("retry schedule not found", id)
		}
		return nil, fmt.Errorf("failed to get retry schedule: %w", err)
	}
	return r.mapper.ScheduleToEntity(&model)
}

func (r *RetryScheduleRepositoryImpl) FindByPayment(ctx context.Context, organizationID, paymentID string) (*retry.Schedule, error) {
	var model models.RetryScheduleModel
	err := db.GetTxFromContext(ctx, r.db).
		Where("organization_id = ? AND payment_id = ?", organizationID, paymentID).
		First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find retry schedule: %w", err)
	}
	return r.mapper.ScheduleToEntity(&model)
}

func (r *RetryScheduleRepositoryImpl) ListDue(ctx context.Context, now time.Time, afterID string, limit int) ([]*retry.Schedule, error) {
	var list []*models.RetryScheduleModel
	err := db.GetTxFromContext(ctx, r.db).
		Where("is_resolved = ? AND awaiting_outcome = ? AND next_retry_date IS NOT NULL AND next_retry_date <= ?", false, false, now).
		Where("id > ?", afterID).
		Order("id ASC").
		Limit(limit).
		Find(&list).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list due retry schedules: %w", err)
	}
	return r.mapper.SchedulesToEntities(list)
}

func (r *RetryScheduleRepositoryImpl) ListStaleSubmissions(ctx context.Context, submittedBefore time.Time, afterID string, limit int) ([]*retry.Schedule, error) {
	var list []*models.RetryScheduleModel
	err := db.GetTxFromContext(ctx, r.db).
		Where("is_resolved = ? AND awaiting_outcome = ? AND submitted_at < ?", false, true, submittedBefore).
		Where("id > ?", afterID).
		Order("id ASC").
		Limit(limit).
		Find(&list).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list stale retry submissions: %w", err)
	}
	return r.mapper.SchedulesToEntities(list)
}

func (r *RetryScheduleRepositoryImpl) ListOpenByContract(ctx context.Context, organizationID, contractID string) ([]*retry.Schedule, error) {
	return r.listOpen(ctx, "organization_id = ? AND contract_id = ?", organizationID, contractID)
}

func (r *RetryScheduleRepositoryImpl) ListOpenByClient(ctx context.Context, organizationID, clientID string) ([]*retry.Schedule, error) {
	return r.listOpen(ctx, "organization_id = ? AND client_id = ?", organizationID, clientID)
}

func (r *RetryScheduleRepositoryImpl) listOpen(ctx context.Context, where string, args ...any) ([]*retry.Schedule, error) {
	var list []*models.RetryScheduleModel
	err := db.GetTxFromContext(ctx, r.db).
		Where(where, args...).
		Where("is_resolved = ?", false).
		Order("created_at ASC, id ASC").
		Find(&list).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list open retry schedules: %w", err)
	}
	return r.mapper.SchedulesToEntities(list)
}

// RetryAttemptRepositoryImpl implements retry.AttemptRepository.
type RetryAttemptRepositoryImpl struct {
	db     *gorm.DB
	mapper mappers.RetryMapper
}

func NewRetryAttemptRepository(db *gorm.DB) retry.AttemptRepository {
	return &RetryAttemptRepositoryImpl{db: db, mapper: mappers.NewRetryMapper()}
}

func (r *RetryAttemptRepositoryImpl) Create(ctx context.Context, attempt *retry.Attempt) error {
	if err := db.GetTxFromContext(ctx, r.db).Create(r.mapper.AttemptToModel(attempt)).Error; err != nil {
		return fmt.Errorf("failed to record retry attempt: %w", err)
	}
	return nil
}

func (r *RetryAttemptRepositoryImpl) ListBySchedule(ctx context.Context, scheduleID string) ([]*retry.Attempt, error) {
	var list []*models.RetryAttemptModel
	err := db.GetTxFromContext(ctx, r.db).
		Where("schedule_id = ?", scheduleID).
		Order("attempted_at ASC, id ASC").
		Find(&list).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list retry attempts: %w", err)
	}
	out := make([]*retry.Attempt, 0, len(list))
	for _, m := range list {
		out = append(out, r.mapper.AttemptToEntity(m))
	}
	return out, nil
}

// ReminderRepositoryImpl implements retry.ReminderRepository.
type ReminderRepositoryImpl struct {
	db     *gorm.DB
	mapper mappers.RetryMapper
}

func NewReminderRepository(db *gorm.DB) retry.ReminderRepository {
	return &ReminderRepositoryImpl{db: db, mapper: mappers.NewRetryMapper()}
}

func (r *ReminderRepositoryImpl) Create(ctx context.Context, reminder *retry.Reminder) error {
	if err := db.GetTxFromContext(ctx, r.db).Create(r.mapper.ReminderToModel(reminder)).Error; err != nil {
		return fmt.Errorf("failed to record reminder: %w", err)
	}
	return nil
}

func (r *ReminderRepositoryImpl) ListBySchedule(ctx context.Context, scheduleID string) ([]*retry.Reminder, error) {
	return r.list(ctx, "schedule_id = ?", scheduleID)
}

func (r *ReminderRepositoryImpl) ListByRun(ctx context.Context, dunningRunID string) ([]*retry.Reminder, error) {
	return r.list(ctx, "dunning_run_id = ?", dunningRunID)
}

func (r *ReminderRepositoryImpl) list(ctx context.Context, where string, arg string) ([]*retry.Reminder, error) {
	var list []*models.ReminderModel
	if err := db.GetTxFromContext(ctx, r.db).Where(where, arg).Order("sent_at ASC, id ASC").Find(&list).Error; err != nil {
		return nil, fmt.Errorf("failed to list reminders: %w", err)
	}
	out := make([]*retry.Reminder, 0, len(list))
	for _, m := range list {
		out = append(out, r.mapper.ReminderToEntity(m))
	}
	return out, nil
}
