package mappers

import (
	"github.com/payops/payops/internal/domain/alert"
	"github.com/payops/payops/internal/domain/audit"
	"github.com/payops/payops/internal/domain/outbox"
	"github.com/payops/payops/internal/domain/paymentlink"
	"github.com/payops/payops/internal/infrastructure/persistence/models"
)

func AuditEntryToModel(e *audit.Entry) *models.AuditEntryModel {
	return &models.AuditEntryModel{
		ID:             e.ID,
		OrganizationID: e.OrganizationID,
		EntityType:     string(e.EntityType),
		EntityID:       e.EntityID,
		Action:         e.Action,
		Actor:          e.Actor,
		Before:         []byte(e.Before),
		After:          []byte(e.After),
		IdempotencyKey: e.IdempotencyKey,
		CreatedAt:      e.CreatedAt,
	}
}

func AuditEntryToEntity(m *models.AuditEntryModel) *audit.Entry {
	return &audit.Entry{
		ID:             m.ID,
		OrganizationID: m.OrganizationID,
		EntityType:     audit.EntityType(m.EntityType),
		EntityID:       m.EntityID,
		Action:         m.Action,
		Actor:          m.Actor,
		Before:         []byte(m.Before),
		After:          []byte(m.After),
		IdempotencyKey: m.IdempotencyKey,
		CreatedAt:      m.CreatedAt,
	}
}

func AlertToModel(a *alert.Alert) *models.AlertModel {
	ctx := make(map[string]any, len(a.Context))
	for k, v := range a.Context {
		ctx[k] = v
	}
	return &models.AlertModel{
		ID:             a.ID,
		OrganizationID: a.OrganizationID,
		CompanyID:      a.CompanyID,
		Code:           a.Code,
		Severity:       string(a.Severity),
		Message:        a.Message,
		Context:        ctx,
		CreatedAt:      a.CreatedAt,
	}
}

func AlertToEntity(m *models.AlertModel) *alert.Alert {
	ctx := make(map[string]string, len(m.Context))
	for k, v := range m.Context {
		if s, ok := v.(string); ok {
			ctx[k] = s
		}
	}
	return &alert.Alert{
		ID:             m.ID,
		OrganizationID: m.OrganizationID,
		CompanyID:      m.CompanyID,
		Code:           m.Code,
		Severity:       alert.Severity(m.Severity),
		Message:        m.Message,
		Context:        ctx,
		CreatedAt:      m.CreatedAt,
	}
}

func TaskToModel(t *outbox.Task) *models.SideEffectModel {
	return &models.SideEffectModel{
		ID:             t.ID(),
		OrganizationID: t.OrganizationID(),
		Kind:           string(t.Kind()),
		DedupKey:       t.DedupKey(),
		Payload:        []byte(t.Payload()),
		Status:         string(t.Status()),
		Attempts:       t.Attempts(),
		NextAttemptAt:  t.NextAttemptAt(),
		LastError:      t.LastError(),
		CompletedAt:    t.CompletedAt(),
		CreatedAt:      t.CreatedAt(),
		UpdatedAt:      t.UpdatedAt(),
	}
}

func TaskToEntity(m *models.SideEffectModel) *outbox.Task {
	return outbox.ReconstructTask(m.ID, m.OrganizationID, outbox.Kind(m.Kind), m.DedupKey, []byte(m.Payload),
		outbox.Status(m.Status), m.Attempts, m.NextAttemptAt, m.LastError, m.CreatedAt, m.UpdatedAt, m.CompletedAt)
}

func LinkToModel(l *paymentlink.Link) *models.PaymentLinkModel {
	return &models.PaymentLinkModel{
		ID:             l.ID(),
		OrganizationID: l.OrganizationID(),
		ClientID:       l.ClientID(),
		ScheduleID:     l.ScheduleID(),
		TokenHash:      l.TokenHash(),
		ExpiresAt:      l.ExpiresAt(),
		UsedAt:         l.UsedAt(),
		RevokedAt:      l.RevokedAt(),
		CreatedAt:      l.CreatedAt(),
	}
}

func LinkToEntity(m *models.PaymentLinkModel) *paymentlink.Link {
	return paymentlink.ReconstructLink(m.ID, m.OrganizationID, m.ClientID, m.ScheduleID, m.TokenHash,
		m.ExpiresAt, m.UsedAt, m.RevokedAt, m.CreatedAt)
}
