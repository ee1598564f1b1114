package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/payops/payops/internal/domain/outbox"
	"github.com/payops/payops/internal/domain/paymentlink"
	"github.com/payops/payops/internal/infrastructure/persistence/mappers"
	"github.com/payops/payops/internal/infrastructure/persistence/models"
	"github.com/payops/payops/internal/shared/db"
	apperrors "github.com/payops/payops/internal/shared/errors"
)

// SideEffectRepositoryImpl implements outbox.Repository.
type SideEffectRepositoryImpl struct {
	db *gorm.DB
}

func NewSideEffectRepository(db *gorm.DB) outbox.Repository {
	return &SideEffectRepositoryImpl{db: db}
}

func (r *SideEffectRepositoryImpl) Enqueue(ctx context.Context, t *outbox.Task) (bool, error) {
	result := db.GetTxFromContext(ctx, r.db).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "dedup_key"}}, DoNothing: true}).
		Create(mappers.TaskToModel(t))
	if result.Error != nil {
		return false, fmt.Errorf("failed to enqueue side effect: %w", result.Error)
	}
	return result.RowsAffected == 1, nil
}

func (r *SideEffectRepositoryImpl) ListDue(ctx context.Context, now time.Time, limit int) ([]*outbox.Task, error) {
	var list []*models.SideEffectModel
	err := db.GetTxFromContext(ctx, r.db).
		Where("status = ? AND next_attempt_at <= ?", string(outbox.StatusPending), now).
		Order("next_attempt_at ASC, id ASC").
		Limit(limit).
		Find(&list).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list due side effects: %w", err)
	}
	return toTasks(list), nil
}

func (r *SideEffectRepositoryImpl) Claim(ctx context.Context, t *outbox.Task, now time.Time) (bool, error) {
	result := db.GetTxFromContext(ctx, r.db).Model(&models.SideEffectModel{}).
		Where("id = ? AND status = ? AND next_attempt_at <= ?", t.ID(), string(outbox.StatusPending), now).
		Updates(map[string]any{
			"next_attempt_at": t.NextAttemptAt(),
			"updated_at":      t.UpdatedAt(),
		})
	if result.Error != nil {
		return false, fmt.Errorf("failed to claim side effect: %w", result.Error)
	}
	return result.RowsAffected == 1, nil
}

func (r *SideEffectRepositoryImpl) ListByDedupPrefix(ctx context.Context, prefix string) ([]*outbox.Task, error) {
	var list []*models.SideEffectModel
	escaped := strings.NewReplacer("!", "!!", "%", "!%", "_", "!_").Replace(prefix)
	err := db.GetTxFromContext(ctx, r.db).
		Where("dedup_key LIKE ? ESCAPE '!'", escaped+"%").
		Order("created_at ASC, id ASC").
		Find(&list).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list side effects: %w", err)
	}
	return toTasks(list), nil
}

func (r *SideEffectRepositoryImpl) Update(ctx context.Context, t *outbox.Task) error {
	m := mappers.TaskToModel(t)
	err := db.GetTxFromContext(ctx, r.db).Model(&models.SideEffectModel{}).
		Where("id = ?", m.ID).
		Updates(map[string]any{
			"status":          m.Status,
			"attempts":        m.Attempts,
			"next_attempt_at": m.NextAttemptAt,
			"last_error":      m.LastError,
			"completed_at":    m.CompletedAt,
			"updated_at":      m.UpdatedAt,
		}).Error
	if err != nil {
		return fmt.Errorf("failed to update side effect: %w", err)
	}
	return nil
}

func toTasks(list []*models.SideEffectModel) []*outbox.Task {
	out := make([]*outbox.Task, 0, len(list))
	for _, m := range list {
		out = append(out, mappers.TaskToEntity(m))
	}
	return out
}

// PaymentLinkRepositoryImpl implements paymentlink.Repository.
type PaymentLinkRepositoryImpl struct {
	db *gorm.DB
}

func NewPaymentLinkRepository(db *gorm.DB) paymentlink.Repository {
	return &PaymentLinkRepositoryImpl{db: db}
}

func (r *PaymentLinkRepositoryImpl) Create(ctx context.Context, link *paymentlink.Link) error {
	if err := db.GetTxFromContext(ctx, r.db).Create(mappers.LinkToModel(link)).Error; err != nil {
		return fmt.Errorf("failed to create payment link: %w", err)
	}
	return nil
}

func (r *PaymentLinkRepositoryImpl) RevokeActive(ctx context.Context, clientID, scheduleID string, now time.Time) (int64, error) {
	result := db.GetTxFromContext(ctx, r.db).Model(&models.PaymentLinkModel{}).
		Where("client_id = ? AND schedule_id = ? AND used_at IS NULL AND revoked_at IS NULL AND expires_at > ?", clientID, scheduleID, now).
		Update("revoked_at", now)
	if result.Error != nil {
		return 0, fmt.Errorf("failed to revoke payment links: %w", result.Error)
	}
	return result.RowsAffected, nil
}

func (r *PaymentLinkRepositoryImpl) FindByTokenHash(ctx context.Context, tokenHash string) (*paymentlink.Link, error) {
	var m models.PaymentLinkModel
	if err := db.GetTxFromContext(ctx, r.db).Where("token_hash = ?", tokenHash).First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NewNotFoundError("payment link not found")
		}
		return nil, fmt.Errorf("failed to find payment link: %w", err)
	}
	return mappers.LinkToEntity(&m), nil
}

// MarkUsed sets used_at once. A second consumer affects no row.
func (r *PaymentLinkRepositoryImpl) MarkUsed(ctx context.Context, link *paymentlink.Link) error {
	result := db.GetTxFromContext(ctx, r.db).Model(&models.PaymentLinkModel{}).
		Where("id = ? AND used_at IS NULL", link.ID()).
		Update("used_at", link.UsedAt())
	if result.Error != nil {
		return fmt.Errorf("failed to mark payment link used: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return apperrors.NewConflictError("payment link already used")
	}
	return nil
}

func (r *PaymentLinkRepositoryImpl) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	result := db.GetTxFromContext(ctx, r.db).Where("expires_at < ?", before).Delete(&models.PaymentLinkModel{})
	if result.Error != nil {
		return 0, fmt.Errorf("failed to purge payment links: %w", result.Error)
	}
	return result.RowsAffected, nil
}
