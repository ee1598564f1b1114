package repository

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/payops/payops/internal/domain/alert"
	"github.com/payops/payops/internal/domain/audit"
	"github.com/payops/payops/internal/infrastructure/persistence/mappers"
	"github.com/payops/payops/internal/infrastructure/persistence/models"
	"github.com/payops/payops/internal/shared/db"
)

// AuditRepositoryImpl implements audit.Repository.
type AuditRepositoryImpl struct {
	db *gorm.DB
}

func NewAuditRepository(db *gorm.DB) audit.Repository {
	return &AuditRepositoryImpl{db: db}
}

func (r *AuditRepositoryImpl) Append(ctx context.Context, entry *audit.Entry) error {
	if err := db.GetTxFromContext(ctx, r.db).Create(mappers.AuditEntryToModel(entry)).Error; err != nil {
		return fmt.Errorf("failed to append audit entry: %w", err)
	}
	return nil
}

func (r *AuditRepositoryImpl) ListByEntity(ctx context.Context, entityType audit.EntityType, entityID string) ([]*audit.Entry, error) {
	var list []*models.AuditEntryModel
	err := db.GetTxFromContext(ctx, r.db).
		Where("entity_type = ? AND entity_id = ?", string(entityType), entityID).
		Order("created_at ASC, id ASC").
		Find(&list).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list audit entries: %w", err)
	}
	out := make([]*audit.Entry, 0, len(list))
	for _, m := range list {
		out = append(out, mappers.AuditEntryToEntity(m))
	}
	return out, nil
}

// IdempotencyRepositoryImpl implements audit.IdempotencyRepository.
type IdempotencyRepositoryImpl struct {
	db *gorm.DB
}

func NewIdempotencyRepository(db *gorm.DB) audit.IdempotencyRepository {
	return &IdempotencyRepositoryImpl{db: db}
}

// Claim inserts the key with ON CONFLICT DO NOTHING, so two concurrent
// claimers cannot both win.
func (r *IdempotencyRepositoryImpl) Claim(ctx context.Context, key, scope string, now time.Time) (bool, error) {
	result := db.GetTxFromContext(ctx, r.db).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&models.IdempotencyKeyModel{Key: key, Scope: scope, CreatedAt: now})
	if result.Error != nil {
		return false, fmt.Errorf("failed to claim idempotency key: %w", result.Error)
	}
	return result.RowsAffected == 1, nil
}

func (r *IdempotencyRepositoryImpl) Exists(ctx context.Context, key string) (bool, error) {
	var count int64
	if err := db.GetTxFromContext(ctx, r.db).Model(&models.IdempotencyKeyModel{}).Where(&models.IdempotencyKeyModel{Key: key}).Count(&count).Error; err != nil {
		return false, fmt.Errorf("failed to check idempotency key: %w", err)
	}
	return count > 0, nil
}

// AlertRepositoryImpl implements alert.Repository.
type AlertRepositoryImpl struct {
	db *gorm.DB
}

func NewAlertRepository(db *gorm.DB) alert.Repository {
	return &AlertRepositoryImpl{db: db}
}

func (r *AlertRepositoryImpl) Create(ctx context.Context, a *alert.Alert) error {
	if err := db.GetTxFromContext(ctx, r.db).Create(mappers.AlertToModel(a)).Error; err != nil {
		return fmt.Errorf("failed to create alert: %w", err)
	}
	return nil
}

func (r *AlertRepositoryImpl) ListByCompany(ctx context.Context, organizationID, companyID string, limit int) ([]*alert.Alert, error) {
	var list []*models.AlertModel
	err := db.GetTxFromContext(ctx, r.db).
		Where("organization_id = ? AND company_id = ?", organizationID, companyID).
		Order("created_at DESC, id DESC").
		Limit(limit).
		Find(&list).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list alerts: %w", err)
	}
	out := make([]*alert.Alert, 0, len(list))
	for _, m := range list {
		out = append(out, mappers.AlertToEntity(m))
	}
	return out, nil
}

func (r *AlertRepositoryImpl) CountByCode(ctx context.Context, organizationID, companyID, code string) (int64, error) {
	var count int64
	err := db.GetTxFromContext(ctx, r.db).Model(&models.AlertModel{}).
		Where("organization_id = ? AND company_id = ? AND code = ?", organizationID, companyID, code).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("failed to count alerts: %w", err)
	}
	return count, nil
}
