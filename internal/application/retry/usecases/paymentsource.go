package usecases

import (
	"context"
	"fmt"
	"strconv"

	"github.com/payops/payops/internal/domain/outbox"
	"github.com/payops/payops/internal/domain/retry"
	"github.com/payops/payops/internal/domain/routing"
	"github.com/payops/payops/internal/domain/shared/events"
	"github.com/payops/payops/internal/shared/biztime"
)

// DecisionLogPaymentSource reuses the input of the payment's latest routing
// decision and overlays the schedule's own amount and parties.
type DecisionLogPaymentSource struct {
	decisionRepo routing.DecisionLogRepository
}

func NewDecisionLogPaymentSource(decisionRepo routing.DecisionLogRepository) *DecisionLogPaymentSource {
	return &DecisionLogPaymentSource{decisionRepo: decisionRepo}
}

func (s *DecisionLogPaymentSource) LoadPayment(ctx context.Context, sch *retry.Schedule) (routing.Payment, error) {
	logs, err := s.decisionRepo.ListByPayment(ctx, sch.OrganizationID(), sch.PaymentID())
	if err != nil {
		return routing.Payment{}, fmt.Errorf("failed to load routing history: %w", err)
	}

	var p routing.Payment
	if n := len(logs); n > 0 {
		p = logs[n-1].Input
	}
	p.ID = sch.PaymentID()
	p.OrganizationID = sch.OrganizationID()
	p.ClientID = sch.ClientID()
	if sch.ContractID() != "" {
		p.ContractID = sch.ContractID()
	}
	p.AmountCents = sch.AmountCents()
	if sch.Currency() != "" {
		p.Currency = sch.Currency()
	}
	return p, nil
}

// OutboxRetryExecutor submits retries as payment.retry_requested events. The
// provider adapter consuming them reports the outcome back.
type OutboxRetryExecutor struct {
	outboxRepo outbox.Repository
	clock      biztime.Clock
}

func NewOutboxRetryExecutor(outboxRepo outbox.Repository, clock biztime.Clock) *OutboxRetryExecutor {
	return &OutboxRetryExecutor{outboxRepo: outboxRepo, clock: clock}
}

func (e *OutboxRetryExecutor) SubmitRetry(ctx context.Context, sub RetrySubmission) (string, error) {
	now := e.clock.Now()
	ev := events.New(events.PaymentRetryRequested, sub.OrganizationID, sub.SubscriptionID, sub.ClientID, "", now)
	ev.Attributes = map[string]string{
		"company_id":          sub.CompanyID,
		"schedule_id":         sub.ScheduleID,
		"payment_id":          sub.PaymentID,
		"provider_account_id": sub.ProviderAccountID,
		"amount_cents":        strconv.FormatInt(sub.AmountCents, 10),
		"currency":            sub.Currency,
		"attempt":             strconv.Itoa(sub.AttemptNumber),
	}

	key := fmt.Sprintf("retry:%s:%d:%d", sub.ScheduleID, sub.AttemptNumber, now.Unix())
	task, err := outbox.NewEventTask(key, ev, now)
	if err != nil {
		return "", err
	}
	if _, err := e.outboxRepo.Enqueue(ctx, task); err != nil {
		return "", fmt.Errorf("failed to enqueue retry request: %w", err)
	}
	return ev.ID, nil
}
