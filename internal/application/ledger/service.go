// Package ledger records state transitions, consumes idempotency keys and
// raises operator alerts.
package ledger

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/payops/payops/internal/domain/alert"
	"github.com/payops/payops/internal/domain/audit"
	"github.com/payops/payops/internal/shared/biztime"
	"github.com/payops/payops/internal/shared/logger"
)

// AlertDeduplicator suppresses repeated alerts inside a window.
type AlertDeduplicator interface {
	TryAcquire(ctx context.Context, organizationID, companyID, code, subject string, ttl time.Duration) (bool, error)
}

type Service struct {
	auditRepo   audit.Repository
	idemRepo    audit.IdempotencyRepository
	alertRepo   alert.Repository
	dedup       AlertDeduplicator
	dedupWindow time.Duration
	clock       biztime.Clock
	logger      logger.Interface
}

func NewService(
	auditRepo audit.Repository,
	idemRepo audit.IdempotencyRepository,
	alertRepo alert.Repository,
	clock biztime.Clock,
	logger logger.Interface,
) *Service {
	return &Service{
		auditRepo: auditRepo,
		idemRepo:  idemRepo,
		alertRepo: alertRepo,
		clock:     clock,
		logger:    logger,
	}
}

// WithAlertDeduplication enables suppression of identical alerts for window.
func (s *Service) WithAlertDeduplication(d AlertDeduplicator, window time.Duration) *Service {
	s.dedup = d
	s.dedupWindow = window
	return s
}

// Transition is one state change to record.
type Transition struct {
	OrganizationID string
	EntityType     audit.EntityType
	EntityID       string
	Action         string
	Actor          string
	Before         any
	After          any
	IdempotencyKey string
}

// Record appends t to the audit log. Call it inside the transaction that
// persisted the change.
func (s *Service) Record(ctx context.Context, t Transition) error {
	before, err := snapshot(t.Before)
	if err != nil {
		return err
	}
	after, err := snapshot(t.After)
	if err != nil {
		return err
	}
	entry := audit.NewEntry(t.OrganizationID, t.EntityType, t.EntityID, t.Action, t.Actor, before, after, s.clock.Now())
	entry.IdempotencyKey = t.IdempotencyKey
	if err := s.auditRepo.Append(ctx, entry); err != nil {
		return fmt.Errorf("failed to record %s %s: %w", t.EntityType, t.Action, err)
	}
	return nil
}

func snapshot(v any) (json.RawMessage, error) {
	if v == nil {
		return nil, nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to snapshot state: %w", err)
	}
	return raw, nil
}

// Claim consumes key. It reports false when the key was already used, in
// which case the caller must skip the operation.
func (s *Service) Claim(ctx context.Context, key, scope string) (bool, error) {
	if key == "" {
		return true, nil
	}
	ok, err := s.idemRepo.Claim(ctx, key, scope, s.clock.Now())
	if err != nil {
		return false, fmt.Errorf("failed to claim idempotency key: %w", err)
	}
	if !ok {
		s.logger.Infow("idempotency key already processed", "key", key, "scope", scope)
	}
	return ok, nil
}

// History returns the recorded transitions of one entity.
func (s *Service) History(ctx context.Context, entityType audit.EntityType, entityID string) ([]*audit.Entry, error) {
	return s.auditRepo.ListByEntity(ctx, entityType, entityID)
}

// Raise stores a and reports whether it was recorded. A deduplicator
// failure records the alert anyway.
func (s *Service) Raise(ctx context.Context, a *alert.Alert, subject string) (bool, error) {
	if s.dedup != nil && s.dedupWindow > 0 {
		ok, err := s.dedup.TryAcquire(ctx, a.OrganizationID, a.CompanyID, a.Code, subject, s.dedupWindow)
		switch {
		case err != nil:
			s.logger.Warnw("alert deduplication unavailable", "code", a.Code, "error", err)
		case !ok:
			s.logger.Debugw("alert suppressed", "code", a.Code, "company_id", a.CompanyID)
			return false, nil
		}
	}
	if err := s.alertRepo.Create(ctx, a); err != nil {
		return false, fmt.Errorf("failed to store alert %s: %w", a.Code, err)
	}
	log := s.logger.Infow
	if a.Actionable() {
		log = s.logger.Warnw
	}
	log("alert raised",
		"code", a.Code,
		"severity", a.Severity,
		"organization_id", a.OrganizationID,
		"company_id", a.CompanyID,
		"message", a.Message,
	)
	return true, nil
}

// Alerts lists recent alerts of a company.
func (s *Service) Alerts(ctx context.Context, organizationID, companyID string, limit int) ([]*alert.Alert, error) {
	return s.alertRepo.ListByCompany(ctx, organizationID, companyID, limit)
}
